// Package config loads zigbee-bridge's runtime configuration the way the
// teacher's internal/config package does: every setting is sourced from an
// environment variable with a documented default, via a single getEnv helper.
package config

import (
	"os"
	"strconv"
	"strings"
)

// Config is the full option surface spec.md §6 names.
type Config struct {
	// MQTT transport
	MQTTHost        string
	MQTTPort        int
	ProtocolVersion uint
	Topic           string
	Username        string
	Password        string
	CAFile          string
	CertFile        string
	KeyFile         string
	RejectUnauthorized bool
	ClientID        string
	Keepalive       int // seconds
	ReconnectPeriod int // seconds
	ConnectTimeout  int // seconds

	// Entity registry filtering
	WhiteList              []string
	BlackList              []string
	SwitchList             []string
	LightList              []string
	OutletList             []string
	FeatureBlackList       []string
	DeviceFeatureBlackList map[string][]string

	// Naming / presentation
	Postfix      string
	ScenesType   string
	ScenesPrefix bool

	// Lifecycle
	Debug                bool
	UnregisterOnShutdown bool
	InjectDevices        string // path to a JSON bridge-devices snapshot, test harnesses only
	InjectPayloads       string // path to a JSON array of {topic,payload} entries, test harnesses only

	// Diagnostics
	DiagnosticsDir string

	// Optional state-cache accelerator
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisEnabled  bool
	RedisTTLSeconds int

	// Observability / HTTP
	HTTPAddr       string
	ServiceName    string
	OTLPEndpoint   string

	// Northbound host fabric
	NorthboundTopicPrefix string
}

// Load builds a Config from the process environment, following the
// teacher's getEnv(key, default) pattern with legacy-name fallbacks where
// spec.md §6 options have more than one historically used env var name.
func Load() Config {
	return Config{
		MQTTHost:        getEnv("ZB_MQTT_HOST", getEnv("MQTT_HOST", "mqtt://localhost")),
		MQTTPort:        getEnvInt("ZB_MQTT_PORT", 1883),
		ProtocolVersion: uint(getEnvInt("ZB_MQTT_PROTOCOL_VERSION", 4)),
		Topic:           getEnv("ZB_TOPIC", getEnv("MQTT_TOPIC", "zigbee2mqtt")),
		Username:        getEnv("ZB_MQTT_USERNAME", getEnv("MQTT_USERNAME", "")),
		Password:        getEnv("ZB_MQTT_PASSWORD", getEnv("MQTT_PASSWORD", "")),
		CAFile:          getEnv("ZB_MQTT_CA", ""),
		CertFile:        getEnv("ZB_MQTT_CERT", ""),
		KeyFile:         getEnv("ZB_MQTT_KEY", ""),
		RejectUnauthorized: getEnvBool("ZB_MQTT_REJECT_UNAUTHORIZED", true),
		ClientID:        getEnv("ZB_MQTT_CLIENT_ID", ""),
		Keepalive:       getEnvInt("ZB_MQTT_KEEPALIVE", 60),
		ReconnectPeriod: getEnvInt("ZB_MQTT_RECONNECT_PERIOD", 5),
		ConnectTimeout:  getEnvInt("ZB_MQTT_CONNECT_TIMEOUT", 60),

		WhiteList:              getEnvList("ZB_WHITELIST", nil),
		BlackList:              getEnvList("ZB_BLACKLIST", nil),
		SwitchList:             getEnvList("ZB_SWITCH_LIST", nil),
		LightList:              getEnvList("ZB_LIGHT_LIST", nil),
		OutletList:             getEnvList("ZB_OUTLET_LIST", nil),
		FeatureBlackList:       getEnvList("ZB_FEATURE_BLACKLIST", nil),
		DeviceFeatureBlackList: getEnvDeviceFeatureBlackList("ZB_DEVICE_FEATURE_BLACKLIST"),

		Postfix:      getEnv("ZB_POSTFIX", ""),
		ScenesType:   getEnv("ZB_SCENES_TYPE", ""),
		ScenesPrefix: getEnvBool("ZB_SCENES_PREFIX", false),

		Debug:                getEnvBool("ZB_DEBUG", false),
		UnregisterOnShutdown: getEnvBool("ZB_UNREGISTER_ON_SHUTDOWN", false),
		InjectDevices:        getEnv("ZB_INJECT_DEVICES", ""),
		InjectPayloads:       getEnv("ZB_INJECT_PAYLOADS", ""),

		DiagnosticsDir: getEnv("ZB_DIAGNOSTICS_DIR", "./data/diagnostics"),

		RedisAddr:       getEnv("ZB_REDIS_ADDR", getEnv("REDIS_ADDR", "")),
		RedisPassword:   getEnv("ZB_REDIS_PASSWORD", getEnv("REDIS_PASSWORD", "")),
		RedisDB:         getEnvInt("ZB_REDIS_DB", 0),
		RedisEnabled:    getEnvBool("ZB_REDIS_ENABLED", false),
		RedisTTLSeconds: getEnvInt("ZB_REDIS_TTL_SECONDS", 300),

		HTTPAddr:     getEnv("ZB_HTTP_ADDR", ":8090"),
		ServiceName:  getEnv("ZB_SERVICE_NAME", "zigbee-bridge"),
		OTLPEndpoint: getEnv("ZB_OTLP_ENDPOINT", ""),

		NorthboundTopicPrefix: getEnv("ZB_NORTHBOUND_PREFIX", "homenavi/hdp"),
	}
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getEnvInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// getEnvDeviceFeatureBlackList parses the per-device feature blacklist
// (spec.md §6 "deviceFeatureBlackList (map<friendly_name, string[]>)") from a
// single environment variable using ";"-separated device entries and
// "|"-separated feature names: "Lamp1:brightness|color_temp;Sensor2:battery".
func getEnvDeviceFeatureBlackList(key string) map[string][]string {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return nil
	}
	out := map[string][]string{}
	for _, entry := range strings.Split(v, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, features, found := strings.Cut(entry, ":")
		if !found || name == "" {
			continue
		}
		var feats []string
		for _, f := range strings.Split(features, "|") {
			f = strings.TrimSpace(f)
			if f != "" {
				feats = append(feats, f)
			}
		}
		if len(feats) > 0 {
			out[name] = feats
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func getEnvList(key string, def []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

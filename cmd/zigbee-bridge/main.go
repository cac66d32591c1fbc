// Command zigbee-bridge wires the MQTT transport, bridge state controller,
// entity registry and northbound host together, the way the teacher's
// cmd/zigbee-adapter/main.go wires its equivalents, adapted to the new
// component set and graceful-shutdown surface.
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"zigbee-bridge/internal/bridgestate"
	"zigbee-bridge/internal/config"
	"zigbee-bridge/internal/diagnostics"
	"zigbee-bridge/internal/mqttclient"
	"zigbee-bridge/internal/northbound"
	"zigbee-bridge/internal/observability"
	"zigbee-bridge/internal/registry"
)

func main() {
	cfg := config.Load()

	obs := observability.Setup(cfg.ServiceName, cfg.Debug)
	slog.Info("starting zigbee-bridge", "service", cfg.ServiceName, "topic", cfg.Topic)

	diagStore := diagnostics.New(cfg.DiagnosticsDir, cfg.Debug)

	filter := registry.Filter{
		WhiteList:              cfg.WhiteList,
		BlackList:              cfg.BlackList,
		FeatureBlackList:       cfg.FeatureBlackList,
		DeviceFeatureBlackList: cfg.DeviceFeatureBlackList,
	}
	reg := registry.New(filter)

	var tlsMaterial *mqttclient.TLSMaterial
	if cfg.CAFile != "" || cfg.CertFile != "" {
		tlsMaterial = loadTLSMaterial(cfg)
	}

	mqttClient, err := mqttclient.New(mqttclient.Options{
		Host:            cfg.MQTTHost,
		Port:            cfg.MQTTPort,
		TopicPrefix:     cfg.Topic,
		Username:        cfg.Username,
		Password:        cfg.Password,
		ClientID:        cfg.ClientID,
		ProtocolVersion: cfg.ProtocolVersion,
		TLS:             tlsMaterial,
		Keepalive:       time.Duration(cfg.Keepalive) * time.Second,
		ConnectTimeout:  time.Duration(cfg.ConnectTimeout) * time.Second,
		ReconnectPeriod: time.Duration(cfg.ReconnectPeriod) * time.Second,
		OnEvent: func(event string, err error) {
			if err != nil {
				obs.Metrics.MessagesReceived.WithLabelValues("mqtt_error").Inc()
				slog.Warn("mqtt event", "event", event, "error", err)
				return
			}
			slog.Debug("mqtt event", "event", event)
			if event == "mqtt_connect" {
				obs.Metrics.MQTTConnected.Set(1)
			}
			if event == "mqtt_disconnect" || event == "mqtt_offline" {
				obs.Metrics.MQTTConnected.Set(0)
			}
		},
	})
	if err != nil {
		slog.Error("failed to build mqtt client", "error", err)
		os.Exit(1)
	}

	host := northbound.New(cfg.NorthboundTopicPrefix, mqttClient)
	host.SetPostfix(cfg.Postfix)

	controller := bridgestate.New(cfg.Topic, mqttClient, reg, host, diagStore)
	controller.SetDeviceTypeOverrides(cfg.LightList, cfg.OutletList, cfg.SwitchList)
	controller.SetScenesConfig(cfg.ScenesType, cfg.ScenesPrefix)

	commandRouter := northbound.NewCommandRouter(cfg.Topic, mqttClient, host, diagStore)

	injectSeedData(cfg, controller)

	if err := mqttClient.Subscribe(cfg.Topic+"/#", func(topic string, payload []byte) {
		controller.HandleMessage(topic, payload)
	}); err != nil {
		slog.Error("failed to register subscription handler", "error", err)
		os.Exit(1)
	}
	if err := mqttClient.Subscribe(cfg.NorthboundTopicPrefix+"/+/command", commandRouter.Handle); err != nil {
		slog.Error("failed to register northbound command handler", "error", err)
		os.Exit(1)
	}

	if err := mqttClient.Connect(); err != nil {
		slog.Error("failed to connect to mqtt broker", "error", err)
		os.Exit(1)
	}

	connectCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ConnectTimeout)*time.Second)
	if err := controller.WaitReady(connectCtx); err != nil {
		cancel()
		slog.Error("bridge did not become ready in time", "error", err)
		os.Exit(1)
	}
	cancel()
	host.PublishStatus("online")
	slog.Info("bridge ready", "entities", reg.Len())

	httpServer := &http.Server{Addr: cfg.HTTPAddr, Handler: obs.Mux}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("http server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	slog.Info("shutting down")
	if cfg.UnregisterOnShutdown {
		for _, name := range reg.Names() {
			reg.Unregister(name)
		}
	}
	host.PublishStatus("offline")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = httpServer.Shutdown(shutdownCtx)
	_ = obs.Shutdown(shutdownCtx)
	mqttClient.Shutdown()
}

// injectSeedData replays recorded bridge traffic through the controller at
// startup, per spec.md §6 injectDevices/injectPayloads — a test-harness
// substitute for the live zigbee2mqtt connection, consumed before the real
// MQTT subscription is established so any later live traffic simply
// overwrites the seeded state.
func injectSeedData(cfg config.Config, controller *bridgestate.Controller) {
	if cfg.InjectDevices != "" {
		body, err := os.ReadFile(cfg.InjectDevices)
		if err != nil {
			slog.Error("failed to read injectDevices file", "path", cfg.InjectDevices, "error", err)
		} else {
			controller.HandleMessage(cfg.Topic+"/bridge/devices", body)
		}
	}

	if cfg.InjectPayloads != "" {
		body, err := os.ReadFile(cfg.InjectPayloads)
		if err != nil {
			slog.Error("failed to read injectPayloads file", "path", cfg.InjectPayloads, "error", err)
			return
		}
		var entries []struct {
			Topic   string          `json:"topic"`
			Payload json.RawMessage `json:"payload"`
		}
		if err := json.Unmarshal(body, &entries); err != nil {
			slog.Error("failed to decode injectPayloads file", "path", cfg.InjectPayloads, "error", err)
			return
		}
		for _, e := range entries {
			controller.HandleMessage(e.Topic, e.Payload)
		}
	}
}

func loadTLSMaterial(cfg config.Config) *mqttclient.TLSMaterial {
	m := &mqttclient.TLSMaterial{RejectUnauthorized: cfg.RejectUnauthorized}
	if cfg.CAFile != "" {
		b, err := os.ReadFile(cfg.CAFile)
		if err != nil {
			slog.Warn("failed to read mqtt CA file", "path", cfg.CAFile, "error", err)
		} else {
			m.CA = b
		}
	}
	if cfg.CertFile != "" {
		b, err := os.ReadFile(cfg.CertFile)
		if err != nil {
			slog.Warn("failed to read mqtt cert file", "path", cfg.CertFile, "error", err)
		} else {
			m.Cert = b
		}
	}
	if cfg.KeyFile != "" {
		b, err := os.ReadFile(cfg.KeyFile)
		if err != nil {
			slog.Warn("failed to read mqtt key file", "path", cfg.KeyFile, "error", err)
		} else {
			m.Key = b
		}
	}
	return m
}

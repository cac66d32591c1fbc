package mqttclient

import "testing"

func TestResolveBrokerURL(t *testing.T) {
	cases := []struct {
		name   string
		opts   Options
		want   string
		scheme string
	}{
		{"plain_host_no_scheme", Options{Host: "localhost", Port: 1883}, "tcp://localhost:1883", "mqtt"},
		{"mqtt_scheme", Options{Host: "mqtt://broker.local", Port: 1883}, "tcp://broker.local:1883", "mqtt"},
		{"mqtts_scheme", Options{Host: "mqtts://broker.local", Port: 8883}, "ssl://broker.local:8883", "mqtts"},
		{"ws_scheme", Options{Host: "ws://broker.local", Port: 9001}, "ws://broker.local:9001", "ws"},
		{"unix_scheme", Options{Host: "mqtt+unix:///var/run/mqtt.sock"}, "unix:///var/run/mqtt.sock", "mqtt+unix"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, scheme, err := resolveBrokerURL(tc.opts)
			if err != nil {
				t.Fatal(err)
			}
			if got != tc.want {
				t.Errorf("resolveBrokerURL = %q, want %q", got, tc.want)
			}
			if scheme != tc.scheme {
				t.Errorf("scheme = %q, want %q", scheme, tc.scheme)
			}
		})
	}
}

func TestGenerateClientIDShape(t *testing.T) {
	id := generateClientID("zigbee2mqtt")
	if len(id) <= len("zigbee2mqtt_") {
		t.Fatalf("generated client id too short: %q", id)
	}
	suffix := id[len("zigbee2mqtt_"):]
	if len(suffix) != 16 {
		t.Errorf("expected 16-hex-char suffix, got %q (%d chars)", suffix, len(suffix))
	}
}

func TestTopicMatchesWildcards(t *testing.T) {
	cases := []struct {
		pattern, topic string
		want           bool
	}{
		{"zigbee2mqtt/#", "zigbee2mqtt/bridge/state", true},
		{"zigbee2mqtt/+/availability", "zigbee2mqtt/light1/availability", true},
		{"zigbee2mqtt/+/availability", "zigbee2mqtt/light1/state", false},
		{"zigbee2mqtt/bridge/state", "zigbee2mqtt/bridge/state", true},
		{"zigbee2mqtt/bridge/state", "zigbee2mqtt/bridge/devices", false},
	}
	for _, tc := range cases {
		if got := topicMatches(tc.pattern, tc.topic); got != tc.want {
			t.Errorf("topicMatches(%q, %q) = %v, want %v", tc.pattern, tc.topic, got, tc.want)
		}
	}
}

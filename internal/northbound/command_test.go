package northbound

import (
	"encoding/json"
	"testing"
)

type capturingZigbeePublisher struct {
	published []struct{ topic string; payload []byte }
}

func (p *capturingZigbeePublisher) PublishQueued(topic string, payload []byte) {
	p.published = append(p.published, struct {
		topic   string
		payload []byte
	}{topic, payload})
}

func TestCommandRouterTranslatesStateCommand(t *testing.T) {
	hostPub := &capturingPublisher{}
	host := New("homenavi/hdp", hostPub)
	zigbeePub := &capturingZigbeePublisher{}
	router := NewCommandRouter("zigbee2mqtt", zigbeePub, host, nil)

	router.Handle("homenavi/hdp/light1/command", []byte(`{"capability":"state","value":"on","correlation_id":"abc"}`))

	if len(zigbeePub.published) != 1 {
		t.Fatalf("expected one outbound publish, got %d", len(zigbeePub.published))
	}
	if zigbeePub.published[0].topic != "zigbee2mqtt/light1/set" {
		t.Errorf("unexpected outbound topic: %s", zigbeePub.published[0].topic)
	}

	var resultFound bool
	for _, p := range hostPub.published {
		if p.topic == "homenavi/hdp/light1/command_result" {
			var body map[string]any
			if err := json.Unmarshal(p.payload, &body); err != nil {
				t.Fatal(err)
			}
			if body["correlation_id"] == "abc" && body["ok"] == true {
				resultFound = true
			}
		}
	}
	if !resultFound {
		t.Errorf("expected a successful command_result echo, got %+v", hostPub.published)
	}
}

func TestCommandRouterRejectsUnsupportedCapability(t *testing.T) {
	hostPub := &capturingPublisher{}
	host := New("homenavi/hdp", hostPub)
	zigbeePub := &capturingZigbeePublisher{}
	router := NewCommandRouter("zigbee2mqtt", zigbeePub, host, nil)

	router.Handle("homenavi/hdp/light1/command", []byte(`{"capability":"bogus","value":1}`))

	if len(zigbeePub.published) != 0 {
		t.Errorf("expected no outbound publish for an unsupported capability, got %+v", zigbeePub.published)
	}
}

func TestCommandRouterLockUsesAbsoluteTopic(t *testing.T) {
	hostPub := &capturingPublisher{}
	host := New("homenavi/hdp", hostPub)
	zigbeePub := &capturingZigbeePublisher{}
	router := NewCommandRouter("zigbee2mqtt", zigbeePub, host, nil)

	router.Handle("homenavi/hdp/pairing_lock/command", []byte(`{"capability":"lock","value":true}`))

	if len(zigbeePub.published) != 1 {
		t.Fatalf("expected one outbound publish, got %d", len(zigbeePub.published))
	}
	if zigbeePub.published[0].topic != "zigbee2mqtt/bridge/request/permit_join" {
		t.Errorf("unexpected outbound topic: %s", zigbeePub.published[0].topic)
	}
}

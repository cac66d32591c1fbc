package entity

import (
	"testing"

	"zigbee-bridge/internal/model"
)

type recordedCall struct {
	cluster, attribute string
	value              any
}

type fakeEndpoint struct {
	calls  []recordedCall
	events []string
}

func (f *fakeEndpoint) SetAttribute(cluster, attribute string, value any) {
	f.calls = append(f.calls, recordedCall{cluster, attribute, value})
}

func (f *fakeEndpoint) EmitEvent(name string, data map[string]any) {
	f.events = append(f.events, name)
}

func (f *fakeEndpoint) Unregister() {}

func TestApplyInboundOnOff(t *testing.T) {
	ep := &fakeEndpoint{}
	e := &model.Entity{Name: "light1", BridgedEndpoint: ep}
	if err := ApplyInbound(e, []byte(`{"state":"ON"}`)); err != nil {
		t.Fatal(err)
	}
	if len(ep.calls) != 1 || ep.calls[0].cluster != "OnOff" || ep.calls[0].value != true {
		t.Errorf("unexpected calls: %+v", ep.calls)
	}
}

func TestApplyInboundIsIdempotent(t *testing.T) {
	ep := &fakeEndpoint{}
	e := &model.Entity{Name: "light1", BridgedEndpoint: ep}
	payload := []byte(`{"state":"ON","brightness":120}`)

	if err := ApplyInbound(e, payload); err != nil {
		t.Fatal(err)
	}
	first := len(ep.calls)
	if err := ApplyInbound(e, payload); err != nil {
		t.Fatal(err)
	}
	second := len(ep.calls) - first
	if first != second {
		t.Errorf("replaying the same payload produced a different call count: %d vs %d", first, second)
	}
}

func TestApplyInboundTemperatureRounding(t *testing.T) {
	ep := &fakeEndpoint{}
	e := &model.Entity{Name: "sensor1", BridgedEndpoint: ep}
	if err := ApplyInbound(e, []byte(`{"temperature":21.345}`)); err != nil {
		t.Fatal(err)
	}
	if len(ep.calls) != 1 {
		t.Fatalf("expected one call, got %d", len(ep.calls))
	}
	if ep.calls[0].value != float64(2135) {
		t.Errorf("temperature = %v, want 2135 (round(21.345*100))", ep.calls[0].value)
	}
}

func TestApplyInboundIlluminanceClamps(t *testing.T) {
	ep := &fakeEndpoint{}
	e := &model.Entity{Name: "sensor1", BridgedEndpoint: ep}
	if err := ApplyInbound(e, []byte(`{"illuminance_lux":10000000}`)); err != nil {
		t.Fatal(err)
	}
	if len(ep.calls) != 1 {
		t.Fatalf("expected one call, got %d", len(ep.calls))
	}
	if ep.calls[0].value != float64(0xFFFE) {
		t.Errorf("illuminance = %v, want clamped to 0xFFFE", ep.calls[0].value)
	}
}

func TestApplyInboundAction(t *testing.T) {
	ep := &fakeEndpoint{}
	e := &model.Entity{Name: "switch1", BridgedEndpoint: ep}
	if err := ApplyInbound(e, []byte(`{"action":"single"}`)); err != nil {
		t.Fatal(err)
	}
	if len(ep.events) != 1 || ep.events[0] != "action" {
		t.Errorf("expected one 'action' event, got %+v", ep.events)
	}
}

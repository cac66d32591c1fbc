package diagnostics

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"zigbee-bridge/internal/model"
)

func TestNewWithEmptyDirDisablesDiagnostics(t *testing.T) {
	s := New("", true)
	if s != nil {
		t.Fatalf("expected New(\"\", true) to return nil")
	}
	// every method must be a safe no-op on a nil *Store
	s.SaveBridgeInfo(model.BridgeInfo{})
	s.SaveDevices(nil)
	s.SaveGroups(nil)
	s.SaveNetworkMap(nil)
	s.AppendEvent("x", nil)
	s.AppendPayload("x", nil)
	s.AppendPublish("x", nil)
}

func TestSaveDevicesWritesJSONFile(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, true)
	if s == nil {
		t.Fatal("expected a non-nil store")
	}

	devices := []model.BridgeDevice{{FriendlyName: "light1"}}
	s.SaveDevices(devices)

	body, err := os.ReadFile(filepath.Join(dir, "bridge-devices.json"))
	if err != nil {
		t.Fatal(err)
	}
	var got []model.BridgeDevice
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].FriendlyName != "light1" {
		t.Errorf("unexpected bridge-devices.json content: %+v", got)
	}
}

func TestSaveDevicesNoopsWhenDebugDisabled(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, false)

	s.SaveDevices([]model.BridgeDevice{{FriendlyName: "light1"}})

	if _, err := os.Stat(filepath.Join(dir, "bridge-devices.json")); !os.IsNotExist(err) {
		t.Errorf("expected no bridge-devices.json to be written when debug is disabled")
	}
}

func TestSaveNetworkMapSplitsByType(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, true)

	s.SaveNetworkMap([]byte(`{"data":{"type":"graphviz","value":"digraph{}"}}`))
	body, err := os.ReadFile(filepath.Join(dir, "networkmap_graphviz.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(body) != "digraph{}" {
		t.Errorf("unexpected networkmap_graphviz.txt content: %q", body)
	}

	s.SaveNetworkMap([]byte(`{"data":{"type":"raw","value":{"nodes":[]}}}`))
	if _, err := os.Stat(filepath.Join(dir, "networkmap_raw.json")); err != nil {
		t.Errorf("expected networkmap_raw.json to be written: %v", err)
	}
}

func TestRecentEventsReturnsLatestAppendedEvent(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, true)

	s.AppendEvent("device_joined", []byte(`{"ieee_address":"0x1"}`))
	s.AppendEvent("device_leave", []byte(`{"ieee_address":"0x2"}`))

	recent := s.RecentEvents(1)
	if len(recent) != 1 || recent[0].Kind != "device_leave" {
		t.Errorf("expected the most recent event to be device_leave, got %+v", recent)
	}
}

func TestAppendPayloadWritesOneJSONObjectPerLine(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, true)

	s.AppendPayload("zigbee2mqtt/unknown1", []byte(`{"x":1}`))
	s.AppendPayload("zigbee2mqtt/unknown2", []byte(`{"x":2}`))

	body, err := os.ReadFile(filepath.Join(dir, "bridge-payloads.txt"))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), body)
	}
	var entry logEntry
	if err := json.Unmarshal([]byte(lines[1]), &entry); err != nil {
		t.Fatal(err)
	}
	if entry.Topic != "zigbee2mqtt/unknown2" {
		t.Errorf("unexpected second line topic: %s", entry.Topic)
	}
}

func TestAppendPublishWritesToMirrorLog(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, true)

	s.AppendPublish("zigbee2mqtt/Lamp1/set", []byte(`{"state":"ON"}`))

	if _, err := os.Stat(filepath.Join(dir, "bridge-publish-payloads.txt")); err != nil {
		t.Errorf("expected bridge-publish-payloads.txt to be written: %v", err)
	}
}

package dispatch

import "testing"

func TestClassify(t *testing.T) {
	d := New("zigbee2mqtt")

	cases := []struct {
		topic        string
		wantKind     Kind
		wantFriendly string
	}{
		{"zigbee2mqtt/bridge/state", KindBridgeState, ""},
		{"zigbee2mqtt/bridge/info", KindBridgeInfo, ""},
		{"zigbee2mqtt/bridge/devices", KindBridgeDevices, ""},
		{"zigbee2mqtt/bridge/groups", KindBridgeGroups, ""},
		{"zigbee2mqtt/bridge/event", KindBridgeEvent, ""},
		{"zigbee2mqtt/bridge/logging", KindBridgeLogging, ""},
		{"zigbee2mqtt/bridge/response/permit_join", KindBridgeResponsePermitJoin, ""},
		{"zigbee2mqtt/bridge/response/networkmap", KindBridgeResponseNetworkMap, ""},
		{"zigbee2mqtt/bridge/response/device/rename", KindBridgeResponseDevice, ""},
		{"zigbee2mqtt/bridge/response/group/members/add", KindBridgeResponseGroup, ""},
		{"zigbee2mqtt/living_room_light/availability", KindEntityAvailability, "living_room_light"},
		{"zigbee2mqtt/living_room_light", KindEntityState, "living_room_light"},
		{"zigbee2mqtt/floor/living_room_light", KindEntityState, "floor/living_room_light"},
		{"zigbee2mqtt/living_room_light/set", KindUnknown, ""},
		{"other_prefix/foo", KindUnknown, ""},
	}

	for _, tc := range cases {
		got := d.Classify(tc.topic)
		if got.Kind != tc.wantKind {
			t.Errorf("Classify(%q).Kind = %v, want %v", tc.topic, got.Kind, tc.wantKind)
		}
		if got.FriendlyName != tc.wantFriendly {
			t.Errorf("Classify(%q).FriendlyName = %q, want %q", tc.topic, got.FriendlyName, tc.wantFriendly)
		}
	}
}

func TestClassifyOrderingPrefersBridgeRoutesOverEntityCatchAll(t *testing.T) {
	d := New("zigbee2mqtt")
	got := d.Classify("zigbee2mqtt/bridge/devices")
	if got.Kind != KindBridgeDevices {
		t.Fatalf("expected bridge/devices to win over the entity catch-all, got %v", got.Kind)
	}
}

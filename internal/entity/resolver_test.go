package entity

import (
	"testing"

	"zigbee-bridge/internal/model"
)

func capsFromProps(props ...string) map[string]model.Capability {
	caps := map[string]model.Capability{}
	for _, p := range props {
		caps[p] = model.Capability{Property: p}
	}
	return caps
}

func TestResolveDeviceTypes(t *testing.T) {
	cases := []struct {
		name  string
		props []string
		want  model.DeviceTypeCode
	}{
		{"on_off_switch", []string{"state"}, model.DeviceTypeSwitch},
		{"dimmable_light", []string{"state", "brightness"}, model.DeviceTypeDimmableLight},
		{"color_light", []string{"state", "brightness", "color_temp", "color"}, model.DeviceTypeColorLight},
		{"contact", []string{"contact"}, model.DeviceTypeContactSensor},
		{"temperature", []string{"temperature"}, model.DeviceTypeTemperatureSensor},
		{"generic_switch_action", []string{"action"}, model.DeviceTypeGenericSwitch},
		{"cover", []string{"position"}, model.DeviceTypeCover},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ResolveDeviceTypes(capsFromProps(tc.props...))
			found := false
			for _, dt := range got {
				if dt == tc.want {
					found = true
				}
			}
			if !found {
				t.Errorf("ResolveDeviceTypes(%v) = %v, want to contain %v", tc.props, got, tc.want)
			}
		})
	}
}

func TestResolveDeviceTypesUnknownForEmptyCapabilities(t *testing.T) {
	got := ResolveDeviceTypes(map[string]model.Capability{})
	if len(got) != 1 || got[0] != model.DeviceTypeUnknown {
		t.Errorf("expected [Unknown] for empty capabilities, got %v", got)
	}
}

func TestResolveDeviceTypesExclusiveFamilyPicksOnlyOne(t *testing.T) {
	caps := capsFromProps("state", "brightness", "color_temp", "color")
	got := ResolveDeviceTypes(caps)
	count := 0
	for _, dt := range got {
		switch dt {
		case model.DeviceTypeColorLight, model.DeviceTypeDimmableLight, model.DeviceTypeOnOffLight, model.DeviceTypeSwitch:
			count++
		}
	}
	if count != 1 {
		t.Errorf("expected exactly one light-family device type, got %d in %v", count, got)
	}
}

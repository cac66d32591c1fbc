// Package entity implements the Entity Update Pipeline (spec.md §4.5): the
// declarative expose-to-device-type resolver table (Design Note #9), the
// inbound payload-to-attribute mapping, and the outbound command
// translation. Grounded on the teacher's buildCapabilitiesFromExposes and
// the long if/else chain in zigbee.go's onDeviceMessage, rewritten as an
// ordered table of predicates evaluated first-match-wins instead of nested
// conditionals.
package entity

import "zigbee-bridge/internal/model"

// deviceTypeRule is one row of the resolver table: if Match accepts the
// capability set, the entity is assigned DeviceType (and evaluation stops
// for that capability group).
type deviceTypeRule struct {
	deviceType model.DeviceTypeCode
	match      func(caps map[string]model.Capability) bool
}

// resolverTable is evaluated top to bottom. Within the mutually-exclusive
// light/outlet/lock/switch family the first matching rule wins; every other
// matching rule adds its device type as well (see ResolveDeviceTypes).
// More specific device types (color before dimmable before on/off) are
// listed first so a color light's "state" + "brightness" + "color_temp" +
// "color" capability set doesn't fall through to the on/off-only rule.
var resolverTable = []deviceTypeRule{
	{model.DeviceTypeColorLight, func(c map[string]model.Capability) bool {
		return hasProp(c, "state") && (hasProp(c, "color") || hasProp(c, "color_xy") || hasProp(c, "color_hs"))
	}},
	{model.DeviceTypeDimmableLight, func(c map[string]model.Capability) bool {
		return hasProp(c, "state") && (hasProp(c, "brightness") || hasProp(c, "color_temp"))
	}},
	{model.DeviceTypeOnOffLight, func(c map[string]model.Capability) bool {
		return hasProp(c, "state") && capLooksLikeLight(c)
	}},
	{model.DeviceTypeOutlet, func(c map[string]model.Capability) bool {
		return hasProp(c, "state") && capDeviceClass(c, "outlet")
	}},
	{model.DeviceTypeLock, func(c map[string]model.Capability) bool {
		return hasProp(c, "state") && capDeviceClass(c, "lock")
	}},
	{model.DeviceTypeCover, func(c map[string]model.Capability) bool {
		return hasProp(c, "position") || hasProp(c, "tilt") || capDeviceClass(c, "cover")
	}},
	{model.DeviceTypeThermostat, func(c map[string]model.Capability) bool {
		return hasProp(c, "occupied_heating_setpoint") || hasProp(c, "current_heating_setpoint")
	}},
	{model.DeviceTypeGenericSwitch, func(c map[string]model.Capability) bool {
		return hasProp(c, "action")
	}},
	{model.DeviceTypeSwitch, func(c map[string]model.Capability) bool {
		return hasProp(c, "state") && !capLooksLikeLight(c)
	}},
	{model.DeviceTypeSmokeSensor, func(c map[string]model.Capability) bool { return hasProp(c, "smoke") }},
	{model.DeviceTypeWaterLeakSensor, func(c map[string]model.Capability) bool { return hasProp(c, "water_leak") }},
	{model.DeviceTypeContactSensor, func(c map[string]model.Capability) bool { return hasProp(c, "contact") }},
	{model.DeviceTypeOccupancySensor, func(c map[string]model.Capability) bool { return hasProp(c, "occupancy") }},
	{model.DeviceTypeAirQualitySensor, func(c map[string]model.Capability) bool {
		return hasProp(c, "air_quality") || hasProp(c, "voc") || hasProp(c, "co2")
	}},
	{model.DeviceTypeHumiditySensor, func(c map[string]model.Capability) bool {
		return hasProp(c, "humidity") && !hasProp(c, "temperature")
	}},
	{model.DeviceTypeTemperatureSensor, func(c map[string]model.Capability) bool {
		return hasProp(c, "temperature")
	}},
}

func hasProp(caps map[string]model.Capability, prop string) bool {
	_, ok := caps[prop]
	return ok
}

func capLooksLikeLight(caps map[string]model.Capability) bool {
	return hasProp(caps, "brightness") || hasProp(caps, "color_temp") || capDeviceClass(caps, "light")
}

func capDeviceClass(caps map[string]model.Capability, class string) bool {
	for _, c := range caps {
		if c.DeviceClass == class {
			return true
		}
	}
	return false
}

// ResolveDeviceTypes runs the resolver table against a device's (or group's
// synthesized) capability set and returns every matching device type — a
// device can legitimately present as more than one northbound endpoint type
// (e.g. a sensor cluster alongside a generic_switch action cluster), but
// within the mutually-exclusive family (light/outlet/lock/switch) only the
// highest-priority match is kept.
func ResolveDeviceTypes(caps map[string]model.Capability) []model.DeviceTypeCode {
	exclusiveFamily := map[model.DeviceTypeCode]bool{
		model.DeviceTypeColorLight:    true,
		model.DeviceTypeDimmableLight: true,
		model.DeviceTypeOnOffLight:    true,
		model.DeviceTypeOutlet:        true,
		model.DeviceTypeSwitch:        true,
		model.DeviceTypeLock:          true,
	}

	var out []model.DeviceTypeCode
	familyClaimed := false
	for _, rule := range resolverTable {
		if exclusiveFamily[rule.deviceType] {
			if familyClaimed {
				continue
			}
			if rule.match(caps) {
				out = append(out, rule.deviceType)
				familyClaimed = true
			}
			continue
		}
		if rule.match(caps) {
			out = append(out, rule.deviceType)
		}
	}
	if len(out) == 0 {
		out = append(out, model.DeviceTypeUnknown)
	}
	return out
}

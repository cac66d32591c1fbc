package entity

import (
	"encoding/json"
	"math"

	"zigbee-bridge/internal/colorconv"
	"zigbee-bridge/internal/model"
)

// ApplyInbound decodes a device/group state payload and mirrors every
// recognized property onto entity's BridgedEndpoint, per spec.md §4.5's
// inbound mapping table. Calling it twice with the same payload produces the
// same SetAttribute/EmitEvent calls with the same values (the order of the
// contact/water_leak/smoke/carbon_monoxide attributes follows map iteration
// and is not fixed), with one exception: a "TOGGLE" state flips the last
// mirrored on/off value on every call.
func ApplyInbound(e *model.Entity, raw []byte) error {
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return err
	}
	e.LastPayload = json.RawMessage(raw)

	if e.BridgedEndpoint == nil {
		return nil
	}

	if v, ok := payload["state"]; ok {
		applyState(e, v)
	}
	if v, ok := payload["brightness"]; ok {
		if n, ok := numeric(v); ok {
			e.BridgedEndpoint.SetAttribute("LevelControl", "currentLevel", n)
		}
	}
	if mode, ok := payload["color_mode"]; ok {
		applyColor(e, mode, payload)
	}
	if v, ok := payload["temperature"]; ok {
		if n, ok := numeric(v); ok {
			e.BridgedEndpoint.SetAttribute("TemperatureMeasurement", "measuredValue", round(n*100))
		}
	}
	if v, ok := payload["humidity"]; ok {
		if n, ok := numeric(v); ok {
			e.BridgedEndpoint.SetAttribute("RelativeHumidityMeasurement", "measuredValue", round(n*100))
		}
	}
	if v, ok := payload["pressure"]; ok {
		if n, ok := numeric(v); ok {
			e.BridgedEndpoint.SetAttribute("PressureMeasurement", "measuredValue", round(n))
		}
	}
	if v, ok := firstOf(payload, "illuminance_lux", "illuminance"); ok {
		if n, ok := numeric(v); ok && n > 0 {
			lux := clamp(round(10000*math.Log10(n)+1), 0, 0xFFFE)
			e.BridgedEndpoint.SetAttribute("IlluminanceMeasurement", "measuredValue", lux)
		}
	}
	for prop, cluster := range boolClusters {
		if v, ok := payload[prop]; ok {
			e.BridgedEndpoint.SetAttribute(cluster, prop, coerceBool(v))
		}
	}
	if v, ok := payload["occupancy"]; ok {
		e.BridgedEndpoint.SetAttribute("OccupancySensing", "occupancy", coerceBool(v))
	}
	if v, ok := payload["air_quality"]; ok {
		if s, ok := v.(string); ok {
			e.BridgedEndpoint.SetAttribute("AirQuality", "airQuality", s)
		}
	}
	if v, ok := payload["action"]; ok {
		if s, ok := v.(string); ok && s != "" {
			e.BridgedEndpoint.EmitEvent("action", map[string]any{"action": s})
		}
	}

	return nil
}

var boolClusters = map[string]string{
	"contact":            "BooleanState",
	"water_leak":         "IASZone",
	"smoke":              "IASZone",
	"carbon_monoxide":    "IASZone",
}

func applyState(e *model.Entity, v any) {
	s, ok := v.(string)
	if !ok {
		return
	}
	switch s {
	case "ON":
		setOnOff(e, true)
	case "OFF":
		setOnOff(e, false)
	case "TOGGLE":
		last := false
		if e.LastOnOff != nil {
			last = *e.LastOnOff
		}
		setOnOff(e, !last)
	}
}

func setOnOff(e *model.Entity, on bool) {
	e.BridgedEndpoint.SetAttribute("OnOff", "onOff", on)
	e.LastOnOff = &on
}

func applyColor(e *model.Entity, mode any, payload map[string]any) {
	modeStr, _ := mode.(string)
	switch modeStr {
	case "color_temp":
		if v, ok := payload["color_temp"]; ok {
			if n, ok := numeric(v); ok {
				e.BridgedEndpoint.SetAttribute("ColorControl", "colorTemperatureMireds", n)
				e.BridgedEndpoint.SetAttribute("ColorControl", "colorMode", "ColorTemperatureMireds")
			}
		}
	case "xy":
		colorVal, ok := payload["color"].(map[string]any)
		if !ok {
			return
		}
		x, okX := numeric(colorVal["x"])
		y, okY := numeric(colorVal["y"])
		if !okX || !okY {
			return
		}
		hue, sat := colorconv.XYToHS(colorconv.XY{X: x, Y: y})
		e.BridgedEndpoint.SetAttribute("ColorControl", "currentHue", hue/360*254)
		e.BridgedEndpoint.SetAttribute("ColorControl", "currentSaturation", sat/100*254)
		e.BridgedEndpoint.SetAttribute("ColorControl", "colorMode", "CurrentHueAndCurrentSaturation")
	}
}

func firstOf(m map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			return v, true
		}
	}
	return nil, false
}

func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func coerceBool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		return b == "true" || b == "ON" || b == "1"
	}
	return false
}

func round(v float64) float64 {
	return math.Round(v)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

package entity

import (
	"encoding/json"
	"fmt"

	"zigbee-bridge/internal/colorconv"
)

// Command is a resolved outbound instruction. TopicSuffix is normally
// appended to "<friendly_name>/"; when Absolute is true, TopicSuffix is
// instead a full base-relative topic (e.g. "bridge/request/permit_join")
// that ignores the entity's friendly_name entirely.
type Command struct {
	TopicSuffix string
	Absolute    bool
	Payload     []byte
}

func jsonCmd(suffix string, body map[string]any) (Command, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return Command{}, err
	}
	return Command{TopicSuffix: suffix, Payload: b}, nil
}

func jsonAbsoluteCmd(topic string, body map[string]any) (Command, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return Command{}, err
	}
	return Command{TopicSuffix: topic, Absolute: true, Payload: b}, nil
}

// OnOff builds the on/off/toggle command for an OnOff cluster write, per
// spec.md §4.5's outbound table (Door-Lock operations go through
// LockDoor/UnlockDoor instead).
func OnOff(state string) (Command, error) {
	switch state {
	case "ON", "OFF", "TOGGLE":
		return jsonCmd("set", map[string]any{"state": state})
	default:
		return Command{}, fmt.Errorf("invalid on/off state %q", state)
	}
}

// MoveToLevel builds a brightness-only moveToLevel, or moveToLevelWithOnOff
// when withOnOff requests the level change also turn the light on.
func MoveToLevel(level int, withOnOff bool) (Command, error) {
	if level < 0 || level > 254 {
		return Command{}, fmt.Errorf("level %d out of range 0..254", level)
	}
	body := map[string]any{"brightness": level}
	if withOnOff && level > 0 {
		body["state"] = "ON"
	}
	return jsonCmd("set", body)
}

// MoveToColorTemperature builds the color_temp (mireds) outbound command.
func MoveToColorTemperature(mireds int) (Command, error) {
	return jsonCmd("set", map[string]any{"color_temp": mireds})
}

// MoveToHueAndSaturation converts hue/saturation into the RGB color payload
// zigbee2mqtt expects, fixing luminance at 50% per spec.md §4.5.
func MoveToHueAndSaturation(hueDegrees, saturationPercent float64) (Command, error) {
	rgb := colorconv.HSLToRGB(colorconv.HSL{H: hueDegrees, S: saturationPercent / 100, L: 0.5})
	return jsonCmd("set", map[string]any{
		"color": map[string]any{
			"r": scale255(rgb.R),
			"g": scale255(rgb.G),
			"b": scale255(rgb.B),
		},
	})
}

// MoveToHue is MoveToHueAndSaturation with saturation held at 100%.
func MoveToHue(hueDegrees float64) (Command, error) {
	return MoveToHueAndSaturation(hueDegrees, 100)
}

// MoveToSaturation is MoveToHueAndSaturation with hue held at the last known
// value; callers that don't track hue should prefer MoveToHueAndSaturation.
func MoveToSaturation(hueDegrees, saturationPercent float64) (Command, error) {
	return MoveToHueAndSaturation(hueDegrees, saturationPercent)
}

func scale255(v float64) int {
	return int(clamp(v*255, 0, 255))
}

// CoverCommand builds the position/state command for blind and curtain
// endpoints.
func CoverCommand(state string, position *int) (Command, error) {
	body := map[string]any{}
	if state != "" {
		body["state"] = state
	}
	if position != nil {
		body["position"] = *position
	}
	if len(body) == 0 {
		return Command{}, fmt.Errorf("cover command requires state or position")
	}
	return jsonCmd("set", body)
}

// LockDoor/UnlockDoor translate to zigbee2mqtt's permit_join bridge request,
// per spec.md's mapping of the Door-Lock Lock/Unlock operations onto the
// coordinator's pairing window rather than an actual Zigbee lock cluster
// command (the "lock" entity type here represents network pairing control,
// not a physical door lock device).
func LockDoor() (Command, error) {
	return jsonAbsoluteCmd("bridge/request/permit_join", map[string]any{"value": false})
}

func UnlockDoor(timeoutSeconds int) (Command, error) {
	body := map[string]any{"value": true}
	if timeoutSeconds > 0 {
		body["time"] = timeoutSeconds
	}
	return jsonAbsoluteCmd("bridge/request/permit_join", body)
}

// SetpointRaiseLower builds the current_heating_setpoint command for
// thermostat entities, translating the Matterish raise/lower amount into an
// absolute setpoint the caller has already resolved.
func SetpointRaiseLower(setpointCelsius float64) (Command, error) {
	return jsonCmd("set", map[string]any{"current_heating_setpoint": setpointCelsius})
}

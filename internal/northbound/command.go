package northbound

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"zigbee-bridge/internal/entity"
)

// commandRequest is the shape a host-issued command arrives in, on
// "<prefix>/<friendly_name>/command".
type commandRequest struct {
	Capability    string  `json:"capability"`
	Value         any     `json:"value"`
	CorrelationID string  `json:"correlation_id"`
}

// ZigbeePublisher is the subset of the MQTT transport needed to publish an
// outbound zigbee2mqtt command, distinct from Publisher (which targets the
// northbound fabric) since the two publish under different topic roots.
type ZigbeePublisher interface {
	PublishQueued(topic string, payload []byte)
}

// PublishLogger mirrors outbound publishes for diagnostics (spec.md §4.6
// bridge-publish-payloads.txt); satisfied by *diagnostics.Store. Nil
// disables mirroring entirely.
type PublishLogger interface {
	AppendPublish(topic string, payload []byte)
}

// CommandRouter translates host-issued commands arriving on the northbound
// fabric into outbound zigbee2mqtt publishes, and echoes the result back to
// the fabric keyed by correlation id. This is the outbound half of the
// Entity Update Pipeline the teacher's zigbee.go only implements inline
// per-capability; here it is centralized so every entity.* translator in
// internal/entity gets a uniform host-facing entry point.
type CommandRouter struct {
	zigbeeTopicPrefix string
	zigbeePub         ZigbeePublisher
	host              *Host
	diag              PublishLogger
}

// NewCommandRouter builds a router that publishes translated commands under
// zigbeeTopicPrefix and echoes results back through host. diag may be nil,
// in which case outbound publishes are not mirrored to diagnostics.
func NewCommandRouter(zigbeeTopicPrefix string, zigbeePub ZigbeePublisher, host *Host, diag PublishLogger) *CommandRouter {
	return &CommandRouter{zigbeeTopicPrefix: zigbeeTopicPrefix, zigbeePub: zigbeePub, host: host, diag: diag}
}

// Handle is wired to the MQTT client's subscription for
// "<northboundPrefix>/+/command".
func (r *CommandRouter) Handle(topic string, payload []byte) {
	name := friendlyNameFromCommandTopic(topic)
	if name == "" {
		slog.Warn("northbound command on unrecognized topic", "topic", topic)
		return
	}

	var req commandRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		slog.Error("failed to decode northbound command", "topic", topic, "error", err)
		r.host.PublishCommandResult(name, "", false, err.Error())
		return
	}

	cmd, err := translate(req)
	if err != nil {
		slog.Warn("failed to translate northbound command", "entity", name, "error", err)
		r.host.PublishCommandResult(name, req.CorrelationID, false, err.Error())
		return
	}

	outboundTopic := r.zigbeeTopicPrefix + "/" + cmd.TopicSuffix
	if !cmd.Absolute {
		outboundTopic = r.zigbeeTopicPrefix + "/" + name + "/" + cmd.TopicSuffix
	}
	r.zigbeePub.PublishQueued(outboundTopic, cmd.Payload)
	if r.diag != nil {
		r.diag.AppendPublish(outboundTopic, cmd.Payload)
	}
	r.host.PublishCommandResult(name, req.CorrelationID, true, "")
}

func friendlyNameFromCommandTopic(topic string) string {
	const suffix = "/command"
	if !strings.HasSuffix(topic, suffix) {
		return ""
	}
	trimmed := strings.TrimSuffix(topic, suffix)
	idx := strings.LastIndex(trimmed, "/")
	if idx < 0 {
		return ""
	}
	return trimmed[idx+1:]
}

func translate(req commandRequest) (entity.Command, error) {
	switch req.Capability {
	case "state":
		state, _ := req.Value.(string)
		return entity.OnOff(strings.ToUpper(state))
	case "brightness":
		level, ok := asInt(req.Value)
		if !ok {
			return entity.Command{}, fmt.Errorf("brightness value must be numeric")
		}
		return entity.MoveToLevel(level, true)
	case "color_temp":
		mireds, ok := asInt(req.Value)
		if !ok {
			return entity.Command{}, fmt.Errorf("color_temp value must be numeric")
		}
		return entity.MoveToColorTemperature(mireds)
	case "color_hs":
		hs, ok := req.Value.(map[string]any)
		if !ok {
			return entity.Command{}, fmt.Errorf("color_hs value must be an object with hue/saturation")
		}
		hue, _ := asFloat(hs["hue"])
		sat, _ := asFloat(hs["saturation"])
		return entity.MoveToHueAndSaturation(hue, sat)
	case "cover_position":
		pos, ok := asInt(req.Value)
		if !ok {
			return entity.Command{}, fmt.Errorf("cover_position value must be numeric")
		}
		return entity.CoverCommand("", &pos)
	case "lock":
		enable, _ := req.Value.(bool)
		if enable {
			return entity.UnlockDoor(0)
		}
		return entity.LockDoor()
	case "setpoint":
		v, ok := asFloat(req.Value)
		if !ok {
			return entity.Command{}, fmt.Errorf("setpoint value must be numeric")
		}
		return entity.SetpointRaiseLower(v)
	default:
		return entity.Command{}, fmt.Errorf("unsupported capability %q", req.Capability)
	}
}

func asInt(v any) (int, bool) {
	f, ok := asFloat(v)
	if !ok {
		return 0, false
	}
	return int(f), true
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}

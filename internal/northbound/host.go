// Package northbound generalizes the teacher's publishHDPState / publishHDPMeta
// / publishHDPEvent / publishHDPCommandResult family into the spec's
// northbound host contract: every registered Entity gets a BridgedEndpoint
// that mirrors attribute and event changes onto a second MQTT fabric the
// host application consumes, under "<prefix>/<friendly_name>/...".
package northbound

import (
	"encoding/json"
	"log/slog"
	"time"

	"zigbee-bridge/internal/model"
)

// Publisher is the narrow MQTT surface northbound needs.
type Publisher interface {
	Publish(topic string, payload []byte) error
	PublishQueued(topic string, payload []byte)
}

// Host publishes the host fabric contract over MQTT under TopicPrefix.
type Host struct {
	prefix  string
	pub     Publisher
	postfix string
}

// New builds a Host publishing under prefix (spec.md §6
// northboundTopicPrefix, default "homenavi/hdp").
func New(prefix string, pub Publisher) *Host {
	return &Host{prefix: prefix, pub: pub}
}

// SetPostfix wires spec.md §6's postfix (≤3 chars): appended to the
// display name announced in publishMeta so the host fabric can disambiguate
// endpoints sharing a friendly_name across independent bridge instances.
// It never alters the MQTT routing name (e.Name), only the presented one.
func (h *Host) SetPostfix(postfix string) {
	if len(postfix) > 3 {
		postfix = postfix[:3]
	}
	h.postfix = postfix
}

// Register announces a newly (re-)registered entity to the host fabric and
// returns a BridgedEndpoint bound to it.
func (h *Host) Register(e *model.Entity) model.BridgedEndpoint {
	ep := &endpoint{host: h, name: e.Name}
	h.publishMeta(e)
	h.publishHello(e.Name)
	return ep
}

func (h *Host) topic(name, suffix string) string {
	return h.prefix + "/" + name + "/" + suffix
}

func (h *Host) publishMeta(e *model.Entity) {
	displayName := e.Name
	if h.postfix != "" {
		displayName = e.Name + h.postfix
	}
	meta := map[string]any{
		"name":          displayName,
		"is_group":      e.IsGroup,
		"is_router":     e.IsRouter,
		"device_types":  e.DeviceTypes,
		"capabilities":  e.Capabilities,
		"announced_at":  time.Now().UTC().Format(time.RFC3339),
	}
	body, err := json.Marshal(meta)
	if err != nil {
		slog.Error("failed to marshal northbound meta", "entity", e.Name, "error", err)
		return
	}
	h.pub.PublishQueued(h.topic(e.Name, "meta"), body)
}

func (h *Host) publishHello(name string) {
	h.pub.PublishQueued(h.topic(name, "hello"), []byte(`{"status":"registered"}`))
}

// PublishStatus announces the adapter's overall run status to the host
// fabric, mirroring the teacher's publishHDPStatus.
func (h *Host) PublishStatus(status string) {
	body, _ := json.Marshal(map[string]any{"status": status, "at": time.Now().UTC().Format(time.RFC3339)})
	h.pub.Publish(h.prefix+"/status", body)
}

// PublishCommandResult echoes the outcome of a host-issued command back to
// the fabric, keyed by the correlation id the host supplied on the request,
// per spec.md's "correlation-id echoing" supplement.
func (h *Host) PublishCommandResult(name, correlationID string, ok bool, errMsg string) {
	body, _ := json.Marshal(map[string]any{
		"correlation_id": correlationID,
		"ok":              ok,
		"error":           errMsg,
	})
	h.pub.PublishQueued(h.topic(name, "command_result"), body)
}

// endpoint is the per-entity model.BridgedEndpoint implementation.
type endpoint struct {
	host *Host
	name string
}

func (e *endpoint) SetAttribute(cluster, attribute string, value any) {
	body, err := json.Marshal(map[string]any{
		"cluster":   cluster,
		"attribute": attribute,
		"value":     value,
		"at":        time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		slog.Error("failed to marshal northbound attribute", "entity", e.name, "error", err)
		return
	}
	e.host.pub.PublishQueued(e.host.topic(e.name, "state"), body)
}

func (e *endpoint) EmitEvent(name string, data map[string]any) {
	body, err := json.Marshal(map[string]any{
		"event": name,
		"data":  data,
		"at":    time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		slog.Error("failed to marshal northbound event", "entity", e.name, "error", err)
		return
	}
	e.host.pub.PublishQueued(e.host.topic(e.name, "event"), body)
}

func (e *endpoint) Unregister() {
	e.host.pub.PublishQueued(e.host.topic(e.name, "goodbye"), []byte(`{"status":"unregistered"}`))
}

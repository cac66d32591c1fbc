package model

import "encoding/json"

// BridgedEndpoint is the minimal surface the northbound host exposes for one
// registered entity (spec.md §6 "northbound host contract"). Implemented by
// internal/northbound.
type BridgedEndpoint interface {
	// SetAttribute mirrors one semantic attribute change onto the endpoint,
	// e.g. cluster="OnOff", attribute="onOff", value=true.
	SetAttribute(cluster, attribute string, value any)
	// EmitEvent mirrors a momentary/derived event onto the endpoint, e.g. a
	// Switch "press" or a reachableChanged notification.
	EmitEvent(name string, data map[string]any)
	// Unregister tears the endpoint down on the host side.
	Unregister()
}

// Entity is the union described by spec.md §3: either a device-backed or a
// group-backed registration. Exactly one Entity exists per friendly_name at
// any time (the global uniqueness invariant).
type Entity struct {
	Name            string
	IsGroup         bool
	IsRouter         bool
	Availability    Availability
	LastPayload     json.RawMessage
	LastOnOff       *bool // last mirrored OnOff.onOff value, tracked for TOGGLE
	BridgedEndpoint BridgedEndpoint
	DeviceTypes     []DeviceTypeCode
	Capabilities    map[string]Capability // keyed by the expose's property name

	// identity back-reference, exactly one of these is populated
	Device *BridgeDevice
	Group  *BridgeGroup
}

// PublishQueueEntry is one FIFO entry of the queued-publish path (spec.md §3).
type PublishQueueEntry struct {
	Topic   string
	Payload []byte
}

// Package dispatch classifies incoming zigbee2mqtt topics into the handful
// of shapes the Bridge State Controller and Entity Registry care about. It
// generalizes the long if/else chain the teacher's handleMessage switch used
// into the declarative, ordered, first-match-wins table spec.md Design Note
// #9 calls for: each Route is a predicate over topic segments plus the kind
// it produces, evaluated in order until one matches.
package dispatch

import "strings"

// Kind enumerates the topic shapes the bridge must recognize.
type Kind int

const (
	KindUnknown Kind = iota
	KindBridgeState
	KindBridgeInfo
	KindBridgeDevices
	KindBridgeGroups
	KindBridgeEvent
	KindBridgeLogging
	KindBridgeExtensions
	KindBridgeResponseNetworkMap
	KindBridgeResponsePermitJoin
	KindBridgeResponseDevice
	KindBridgeResponseGroup
	KindEntityAvailability
	KindEntityState
)

func (k Kind) String() string {
	switch k {
	case KindBridgeState:
		return "bridge_state"
	case KindBridgeInfo:
		return "bridge_info"
	case KindBridgeDevices:
		return "bridge_devices"
	case KindBridgeGroups:
		return "bridge_groups"
	case KindBridgeEvent:
		return "bridge_event"
	case KindBridgeLogging:
		return "bridge_logging"
	case KindBridgeExtensions:
		return "bridge_extensions"
	case KindBridgeResponseNetworkMap:
		return "bridge_response_networkmap"
	case KindBridgeResponsePermitJoin:
		return "bridge_response_permit_join"
	case KindBridgeResponseDevice:
		return "bridge_response_device"
	case KindBridgeResponseGroup:
		return "bridge_response_group"
	case KindEntityAvailability:
		return "entity_availability"
	case KindEntityState:
		return "entity_state"
	default:
		return "unknown"
	}
}

// Classified is the result of dispatching one topic under the configured
// base prefix.
type Classified struct {
	Kind         Kind
	FriendlyName string // populated for KindEntity*
	RequestID    string // populated for KindBridgeResponseDevice/KindBridgeResponseGroup: the action segment(s) after device/ or group/
}

// route is one entry of the ordered classification table.
type route struct {
	kind  Kind
	match func(segs []string) (Classified, bool)
}

// Dispatcher classifies topics relative to a configured base prefix
// (spec.md §6's "topic", default "zigbee2mqtt").
type Dispatcher struct {
	prefix string
	routes []route
}

// New builds a Dispatcher for the given base topic prefix.
func New(prefix string) *Dispatcher {
	d := &Dispatcher{prefix: strings.TrimSuffix(prefix, "/")}
	d.routes = []route{
		{KindBridgeState, matchExact([]string{"bridge", "state"}, KindBridgeState)},
		{KindBridgeInfo, matchExact([]string{"bridge", "info"}, KindBridgeInfo)},
		{KindBridgeDevices, matchExact([]string{"bridge", "devices"}, KindBridgeDevices)},
		{KindBridgeGroups, matchExact([]string{"bridge", "groups"}, KindBridgeGroups)},
		{KindBridgeEvent, matchExact([]string{"bridge", "event"}, KindBridgeEvent)},
		{KindBridgeLogging, matchExact([]string{"bridge", "logging"}, KindBridgeLogging)},
		{KindBridgeExtensions, matchPrefix([]string{"bridge", "extensions"}, KindBridgeExtensions)},
		{KindBridgeResponseNetworkMap, matchExact([]string{"bridge", "response", "networkmap"}, KindBridgeResponseNetworkMap)},
		{KindBridgeResponsePermitJoin, matchExact([]string{"bridge", "response", "permit_join"}, KindBridgeResponsePermitJoin)},
		{KindBridgeResponseDevice, matchBridgeResponseDevice},
		{KindBridgeResponseGroup, matchBridgeResponseGroup},
		{KindEntityAvailability, matchEntityAvailability},
		{KindEntityState, matchEntityState},
	}
	return d
}

// Classify resolves one full topic string (including the base prefix) into
// a Classified result. Topics outside the configured prefix return
// KindUnknown.
func (d *Dispatcher) Classify(topic string) Classified {
	rest := strings.TrimPrefix(topic, d.prefix+"/")
	if rest == topic && topic != d.prefix {
		return Classified{Kind: KindUnknown}
	}
	segs := strings.Split(rest, "/")
	for _, r := range d.routes {
		if c, ok := r.match(segs); ok {
			return c
		}
	}
	return Classified{Kind: KindUnknown}
}

func matchExact(want []string, kind Kind) func([]string) (Classified, bool) {
	return func(segs []string) (Classified, bool) {
		if len(segs) != len(want) {
			return Classified{}, false
		}
		for i, w := range want {
			if segs[i] != w {
				return Classified{}, false
			}
		}
		return Classified{Kind: kind}, true
	}
}

func matchPrefix(want []string, kind Kind) func([]string) (Classified, bool) {
	return func(segs []string) (Classified, bool) {
		if len(segs) < len(want) {
			return Classified{}, false
		}
		for i, w := range want {
			if segs[i] != w {
				return Classified{}, false
			}
		}
		return Classified{Kind: kind}, true
	}
}

// matchBridgeResponseDevice matches bridge/response/device/{rename,remove,options}.
func matchBridgeResponseDevice(segs []string) (Classified, bool) {
	if len(segs) != 4 || segs[0] != "bridge" || segs[1] != "response" || segs[2] != "device" {
		return Classified{}, false
	}
	return Classified{Kind: KindBridgeResponseDevice, RequestID: segs[3]}, true
}

// matchBridgeResponseGroup matches
// bridge/response/group/{add,remove,rename,members/add,members/remove}.
func matchBridgeResponseGroup(segs []string) (Classified, bool) {
	if len(segs) < 4 || segs[0] != "bridge" || segs[1] != "response" || segs[2] != "group" {
		return Classified{}, false
	}
	return Classified{Kind: KindBridgeResponseGroup, RequestID: strings.Join(segs[3:], "/")}, true
}

// matchEntityAvailability matches "<friendly_name>/availability", which may
// itself contain slashes if the friendly_name was given one.
func matchEntityAvailability(segs []string) (Classified, bool) {
	if len(segs) < 2 || segs[len(segs)-1] != "availability" {
		return Classified{}, false
	}
	if segs[0] == "bridge" {
		return Classified{}, false
	}
	name := strings.Join(segs[:len(segs)-1], "/")
	return Classified{Kind: KindEntityAvailability, FriendlyName: name}, true
}

// matchEntityState matches a bare "<friendly_name>" topic (device or group
// state publish). This is the catch-all route and must stay last.
func matchEntityState(segs []string) (Classified, bool) {
	if len(segs) == 0 || segs[0] == "bridge" {
		return Classified{}, false
	}
	// reject zigbee2mqtt's own "/set", "/get" echo topics; those are
	// commands the bridge itself published and never subscribes back to.
	last := segs[len(segs)-1]
	if last == "set" || last == "get" {
		return Classified{}, false
	}
	return Classified{Kind: KindEntityState, FriendlyName: strings.Join(segs, "/")}, true
}

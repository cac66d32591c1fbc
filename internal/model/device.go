package model

import "time"

// DeviceKind mirrors the zigbee-herdsman device type classification carried
// on every bridge-devices entry.
type DeviceKind string

const (
	KindCoordinator DeviceKind = "Coordinator"
	KindRouter      DeviceKind = "Router"
	KindEndDevice   DeviceKind = "EndDevice"
	KindGreenPower  DeviceKind = "GreenPower"
	KindUnknown     DeviceKind = "Unknown"
)

// Definition is the model/vendor/exposes block the gateway attaches to a
// bridge-devices entry.
type Definition struct {
	Model       string   `json:"model"`
	Vendor      string   `json:"vendor"`
	Description string   `json:"description"`
	Exposes     []any    `json:"exposes"`
	Options     []any    `json:"options"`
}

// Endpoint is a single Zigbee endpoint on a device, keyed by numeric id in
// BridgeDevice.Endpoints.
type Endpoint struct {
	ID       int      `json:"-"`
	Bindings []any    `json:"bindings,omitempty"`
	Clusters []string `json:"clusters,omitempty"`
}

// BridgeDevice is one entry of a zigbee2mqtt/bridge/devices snapshot.
type BridgeDevice struct {
	IEEEAddress        string              `json:"ieee_address"`
	FriendlyName       string              `json:"friendly_name"`
	Type               DeviceKind          `json:"type"`
	Supported          bool                `json:"supported"`
	Disabled           bool                `json:"disabled"`
	InterviewCompleted bool                `json:"interview_completed"`
	PowerSource        string              `json:"power_source"`
	Definition         *Definition         `json:"definition"`
	Endpoints          map[string]Endpoint `json:"endpoints"`
}

// IsRouter reports whether this device should present as a router-class
// entity (coordinator or a configured router), per spec.md §3 Entity.isRouter.
func (d BridgeDevice) IsRouter() bool {
	return d.Type == KindCoordinator || d.Type == KindRouter
}

// GroupMember is one member entry of a BridgeGroup.
type GroupMember struct {
	IEEEAddress string `json:"ieee_address"`
	Endpoint    int    `json:"endpoint"`
}

// Scene is one scene entry of a BridgeGroup.
type Scene struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// BridgeGroup is one entry of a zigbee2mqtt/bridge/groups snapshot.
type BridgeGroup struct {
	ID           int           `json:"id"`
	FriendlyName string        `json:"friendly_name"`
	Members      []GroupMember `json:"members"`
	Scenes       []Scene       `json:"scenes"`
}

// Availability is the tri-state availability of an Entity.
type Availability int

const (
	AvailabilityUnknown Availability = iota
	AvailabilityOnline
	AvailabilityOffline
)

func (a Availability) String() string {
	switch a {
	case AvailabilityOnline:
		return "online"
	case AvailabilityOffline:
		return "offline"
	default:
		return "unknown"
	}
}

// BridgeInfo is the parsed zigbee2mqtt/bridge/info payload.
type BridgeInfo struct {
	Version             string `json:"version"`
	ZigbeeHerdsmanVer   string `json:"zigbee_herdsman_version"`
	PermitJoin           bool   `json:"permit_join"`
	PermitJoinTimeout    int    `json:"permit_join_timeout"`
	Advanced             struct {
		Output                      string `json:"output"`
		LegacyAPI                   bool   `json:"legacy_api"`
		LegacyAvailabilityPayload   bool   `json:"legacy_availability_payload"`
	} `json:"advanced"`
	Config struct {
		Availability bool `json:"availability"`
	} `json:"config"`
	ReceivedAt time.Time `json:"-"`
}

// OutputValid reports the advanced.output invariant of spec.md §3.
func (b BridgeInfo) OutputValid() bool {
	return b.Advanced.Output == "" || b.Advanced.Output == "json" || b.Advanced.Output == "attribute_and_json"
}

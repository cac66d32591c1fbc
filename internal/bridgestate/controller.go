// Package bridgestate implements the Bridge State Controller (spec.md
// §4.3): it owns the bounded startup wait for the bridge's retained state,
// the registration sweep that turns a bridge/devices + bridge/groups
// snapshot into registry entries, and the live bridge/event handling that
// keeps the registry in sync after startup. Grounded on the teacher's
// zigbee.go message handler, generalized from its single big switch into
// the Dispatcher-driven flow described in SPEC_FULL.md.
package bridgestate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"zigbee-bridge/internal/dispatch"
	"zigbee-bridge/internal/entity"
	"zigbee-bridge/internal/model"
	"zigbee-bridge/internal/registry"
)

// Publisher is the narrow MQTT surface the controller needs; satisfied by
// *mqttclient.Client.
type Publisher interface {
	Publish(topic string, payload []byte) error
	PublishQueued(topic string, payload []byte)
}

// Snapshotter persists retained-state snapshots for diagnostics; satisfied
// by *diagnostics.Store. Nil disables diagnostics entirely.
type Snapshotter interface {
	SaveBridgeInfo(model.BridgeInfo)
	SaveDevices([]model.BridgeDevice)
	SaveGroups([]model.BridgeGroup)
	SaveNetworkMap(raw json.RawMessage)
	AppendEvent(kind string, payload []byte)
	AppendPayload(topic string, payload []byte)
}

// NorthboundFactory creates a BridgedEndpoint for a newly registered
// entity; satisfied by *northbound.Host.
type NorthboundFactory interface {
	Register(e *model.Entity) model.BridgedEndpoint
}

// Controller owns the bridge-level retained state and drives the
// registration sweep and live event handling.
type Controller struct {
	topicPrefix string
	pub         Publisher
	diag        Snapshotter
	host        NorthboundFactory
	reg         *registry.Registry
	dispatcher  *dispatch.Dispatcher

	mu       sync.Mutex
	info     *model.BridgeInfo
	devices     []model.BridgeDevice
	groups      []model.BridgeGroup
	devicesSeen bool
	groupsSeen  bool
	online      bool
	sweepDone   bool

	overrides    deviceTypeOverrides
	scenesType   string
	scenesPrefix bool

	ready chan struct{}
	readyOnce sync.Once
}

// deviceTypeOverrides mirrors spec.md §6's switchList/lightList/outletList:
// name lists that force a device's resolved device type rather than letting
// entity.ResolveDeviceTypes infer it from exposes.
type deviceTypeOverrides struct {
	light  map[string]bool
	outlet map[string]bool
	switchT map[string]bool
}

// SetDeviceTypeOverrides wires spec.md §6's switchList/lightList/outletList
// into device-type resolution: a friendly_name present in one of these lists
// is forced to that device type regardless of its exposes.
func (c *Controller) SetDeviceTypeOverrides(lightList, outletList, switchList []string) {
	c.overrides = deviceTypeOverrides{
		light:   stringSet(lightList),
		outlet:  stringSet(outletList),
		switchT: stringSet(switchList),
	}
}

// SetScenesConfig wires spec.md §6's scenesType/scenesPrefix: when scenesType
// names a known device type, every BridgeGroup.Scenes entry is additionally
// registered as its own addressable entity of that type, so the northbound
// fabric can present scene recall as a regular switch/light/outlet control.
func (c *Controller) SetScenesConfig(scenesType string, scenesPrefix bool) {
	c.scenesType = scenesType
	c.scenesPrefix = scenesPrefix
}

func stringSet(items []string) map[string]bool {
	if len(items) == 0 {
		return nil
	}
	out := make(map[string]bool, len(items))
	for _, i := range items {
		out[i] = true
	}
	return out
}

// New builds a Controller. topicPrefix is the base zigbee2mqtt topic
// (spec.md §6 "topic").
func New(topicPrefix string, pub Publisher, reg *registry.Registry, host NorthboundFactory, diag Snapshotter) *Controller {
	return &Controller{
		topicPrefix: topicPrefix,
		pub:         pub,
		diag:        diag,
		host:        host,
		reg:         reg,
		dispatcher:  dispatch.New(topicPrefix),
		ready:       make(chan struct{}),
	}
}

// HandleMessage is the single entry point wired to the MQTT client's
// dispatch handler for the "<topicPrefix>/#" subscription.
func (c *Controller) HandleMessage(topic string, payload []byte) {
	classified := c.dispatcher.Classify(topic)
	switch classified.Kind {
	case dispatch.KindBridgeState:
		c.onBridgeState(payload)
	case dispatch.KindBridgeInfo:
		c.onBridgeInfo(payload)
	case dispatch.KindBridgeDevices:
		c.onBridgeDevices(payload)
	case dispatch.KindBridgeGroups:
		c.onBridgeGroups(payload)
	case dispatch.KindBridgeEvent:
		c.onBridgeEvent(payload)
	case dispatch.KindBridgeResponseNetworkMap:
		if c.diag != nil {
			c.diag.SaveNetworkMap(payload)
		}
	case dispatch.KindBridgeResponsePermitJoin, dispatch.KindBridgeResponseDevice, dispatch.KindBridgeResponseGroup:
		// request acknowledgements; the authoritative mutation happens off
		// the corresponding bridge/event, this is purely informational.
		slog.Debug("bridge response", "topic", topic, "kind", classified.Kind, "request", classified.RequestID)
	case dispatch.KindEntityAvailability:
		c.onAvailability(classified.FriendlyName, payload)
	case dispatch.KindEntityState:
		c.onEntityState(classified.FriendlyName, payload)
	case dispatch.KindUnknown:
		if c.diag != nil {
			c.diag.AppendPayload(topic, payload)
		}
	default:
		// bridge/logging, bridge/extensions are intentionally ignored.
	}
}

func (c *Controller) onBridgeState(payload []byte) {
	s := string(payload)
	c.mu.Lock()
	c.online = s == "online" || s == `"online"`
	c.mu.Unlock()
	c.maybeReady()
}

func (c *Controller) onBridgeInfo(payload []byte) {
	var info model.BridgeInfo
	if err := json.Unmarshal(payload, &info); err != nil {
		slog.Error("failed to decode bridge/info", "error", err)
		return
	}
	if !info.OutputValid() {
		slog.Warn("bridge advanced.output is not json-compatible, entity state may not update", "output", info.Advanced.Output)
	}
	c.mu.Lock()
	c.info = &info
	c.mu.Unlock()
	if c.diag != nil {
		c.diag.SaveBridgeInfo(info)
	}
	c.maybeReady()
}

func (c *Controller) onBridgeDevices(payload []byte) {
	var devices []model.BridgeDevice
	if err := json.Unmarshal(payload, &devices); err != nil {
		slog.Error("failed to decode bridge/devices", "error", err)
		return
	}
	c.mu.Lock()
	c.devices = devices
	c.devicesSeen = true
	c.mu.Unlock()
	if c.diag != nil {
		c.diag.SaveDevices(devices)
	}
	c.maybeReady()
	c.maybeSweep()
}

func (c *Controller) onBridgeGroups(payload []byte) {
	var groups []model.BridgeGroup
	if err := json.Unmarshal(payload, &groups); err != nil {
		slog.Error("failed to decode bridge/groups", "error", err)
		return
	}
	c.mu.Lock()
	prevLen := len(c.groups)
	c.groups = groups
	c.groupsSeen = true
	c.mu.Unlock()
	if c.diag != nil {
		c.diag.SaveGroups(groups)
	}
	// An empty groups snapshot does not unregister previously-known groups
	// (resolved Open Question, see DESIGN.md): only a bridge/event
	// group_remove for a specific group does that.
	_ = prevLen
	c.maybeReady()
	c.maybeSweep()
}

// maybeReady closes the ready channel WaitReady blocks on once bridge state
// is online and both info and
// at least one of devices/groups has arrived, per spec.md §4.3's bounded
// startup condition.
func (c *Controller) maybeReady() {
	c.mu.Lock()
	ready := c.online && c.info != nil && (c.devicesSeen || c.groupsSeen)
	c.mu.Unlock()
	if ready {
		c.readyOnce.Do(func() { close(c.ready) })
	}
}

// WaitReady blocks until the startup condition is satisfied or ctx expires.
func (c *Controller) WaitReady(ctx context.Context) error {
	select {
	case <-c.ready:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("bridge did not report ready within timeout: %w", ctx.Err())
	}
}

// maybeSweep runs the registration sweep exactly once, the first time both
// a devices and a groups snapshot (even an empty one) have been observed.
// Later bridge/devices or bridge/groups snapshots only replace the stored
// lists: they neither register entities that are new in the snapshot nor
// unregister entities that are missing from it.
func (c *Controller) maybeSweep() {
	c.mu.Lock()
	if c.sweepDone || !c.devicesSeen || !c.groupsSeen {
		c.mu.Unlock()
		return
	}
	c.sweepDone = true
	devices := append([]model.BridgeDevice(nil), c.devices...)
	groups := append([]model.BridgeGroup(nil), c.groups...)
	c.mu.Unlock()

	c.sweepDevices(devices)
	c.sweepGroups(groups)
}

func (c *Controller) sweepDevices(devices []model.BridgeDevice) {
	for _, d := range devices {
		if d.Type == model.KindGreenPower {
			continue
		}
		c.registerDevice(d)
	}
}

func (c *Controller) sweepGroups(groups []model.BridgeGroup) {
	for _, g := range groups {
		c.registerGroup(g)
	}
}

func (c *Controller) registerDevice(d model.BridgeDevice) {
	caps := capabilitiesFromDefinition(d.Definition)
	deviceTypes := entity.ResolveDeviceTypes(caps)
	switch {
	case c.overrides.light[d.FriendlyName]:
		deviceTypes = []model.DeviceTypeCode{model.DeviceTypeOnOffLight}
	case c.overrides.outlet[d.FriendlyName]:
		deviceTypes = []model.DeviceTypeCode{model.DeviceTypeOutlet}
	case c.overrides.switchT[d.FriendlyName]:
		deviceTypes = []model.DeviceTypeCode{model.DeviceTypeSwitch}
	}
	e := &model.Entity{
		Name:         d.FriendlyName,
		IsRouter:     d.IsRouter(),
		Availability: model.AvailabilityUnknown,
		DeviceTypes:  deviceTypes,
		Capabilities: caps,
		Device:       &d,
	}
	if !c.reg.Register(e) {
		return
	}
	if c.host != nil {
		e.BridgedEndpoint = c.host.Register(e)
	}
}

func (c *Controller) registerGroup(g model.BridgeGroup) {
	e := &model.Entity{
		Name:         g.FriendlyName,
		IsGroup:      true,
		Availability: model.AvailabilityUnknown,
		DeviceTypes:  []model.DeviceTypeCode{model.DeviceTypeUnknown},
		Group:        &g,
	}
	if !c.reg.Register(e) {
		return
	}
	if c.host != nil {
		e.BridgedEndpoint = c.host.Register(e)
	}
	c.registerGroupScenes(g)
}

// registerGroupScenes synthesizes one additional addressable entity per
// BridgeGroup.Scenes entry when scenesType names a known device type
// (spec.md §6 scenesType/scenesPrefix), so scene recall can be presented to
// the northbound fabric as a regular device-typed control.
func (c *Controller) registerGroupScenes(g model.BridgeGroup) {
	dt, ok := sceneDeviceType(c.scenesType)
	if !ok {
		return
	}
	for _, scene := range g.Scenes {
		name := scene.Name
		if c.scenesPrefix {
			name = g.FriendlyName + "_" + scene.Name
		}
		se := &model.Entity{
			Name:         name,
			IsGroup:      true,
			Availability: model.AvailabilityUnknown,
			DeviceTypes:  []model.DeviceTypeCode{dt},
			Group:        &g,
		}
		if !c.reg.Register(se) {
			continue
		}
		if c.host != nil {
			se.BridgedEndpoint = c.host.Register(se)
		}
	}
}

func sceneDeviceType(scenesType string) (model.DeviceTypeCode, bool) {
	switch scenesType {
	case "light":
		return model.DeviceTypeOnOffLight, true
	case "outlet":
		return model.DeviceTypeOutlet, true
	case "switch":
		return model.DeviceTypeSwitch, true
	case "mounted_switch":
		return model.DeviceTypeGenericSwitch, true
	default:
		return "", false
	}
}

func (c *Controller) onEntityState(name string, payload []byte) {
	e, ok := c.reg.Get(name)
	if !ok {
		return
	}
	if err := entity.ApplyInbound(e, payload); err != nil {
		slog.Error("failed to apply inbound state", "entity", name, "error", err)
	}
}

func (c *Controller) onAvailability(name string, payload []byte) {
	e, ok := c.reg.Get(name)
	if !ok {
		return
	}
	avail := parseAvailability(payload)
	e.Availability = avail
	if e.BridgedEndpoint != nil {
		reachable := avail == model.AvailabilityOnline
		e.BridgedEndpoint.SetAttribute("", "reachable", reachable)
		e.BridgedEndpoint.EmitEvent("reachableChanged", map[string]any{"reachable": reachable})
	}
}

func parseAvailability(payload []byte) model.Availability {
	var legacy string
	if err := json.Unmarshal(payload, &legacy); err == nil {
		if legacy == "online" {
			return model.AvailabilityOnline
		}
		if legacy == "offline" {
			return model.AvailabilityOffline
		}
	}
	var obj struct {
		State string `json:"state"`
	}
	if err := json.Unmarshal(payload, &obj); err == nil {
		if obj.State == "online" {
			return model.AvailabilityOnline
		}
		if obj.State == "offline" {
			return model.AvailabilityOffline
		}
	}
	return model.AvailabilityUnknown
}

// bridgeEvent mirrors the zigbee2mqtt bridge/event payload shape, per
// spec.md §8 scenarios 5 and 6: rename/permit_join events carry bare
// from/to strings and device/time/value fields, not nested objects.
type bridgeEvent struct {
	Type string `json:"type"`
	Data struct {
		FriendlyName string              `json:"friendly_name"`
		IEEE         string              `json:"ieee"`
		From         string              `json:"from"`
		To           string              `json:"to"`
		Group        *model.BridgeGroup  `json:"group"`
		Member       *model.GroupMember  `json:"member"`
		Device       string              `json:"device"`
		Value        bool                `json:"value"`
		Time         int                 `json:"time"`
	} `json:"data"`
}

func (c *Controller) onBridgeEvent(payload []byte) {
	var ev bridgeEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		slog.Error("failed to decode bridge/event", "error", err)
		return
	}
	if c.diag != nil {
		c.diag.AppendEvent(ev.Type, payload)
	}
	switch ev.Type {
	case "device_joined", "device_interview":
		// no registry change is made for these events, and a later
		// bridge/devices snapshot does not register the device either (see
		// maybeSweep): a device that joins after the sweep stays unregistered.
	case "device_leave", "device_remove":
		c.reg.Unregister(ev.Data.FriendlyName)
	case "device_rename":
		if ev.Data.From == "" || ev.Data.To == "" {
			return
		}
		if e, ok := c.reg.Rename(ev.Data.From, ev.Data.To); ok {
			if c.host != nil {
				e.BridgedEndpoint = c.host.Register(e)
			}
		}
	case "group_add":
		if ev.Data.Group != nil {
			c.registerGroup(*ev.Data.Group)
		}
	case "group_remove":
		c.reg.Unregister(ev.Data.FriendlyName)
	case "group_rename":
		if ev.Data.From == "" || ev.Data.To == "" {
			return
		}
		if e, ok := c.reg.Rename(ev.Data.From, ev.Data.To); ok {
			if c.host != nil {
				e.BridgedEndpoint = c.host.Register(e)
			}
		}
	case "group_add_member", "group_remove_member":
		// no registry change is made for membership changes, and a later
		// bridge/groups snapshot does not re-register the group either (see
		// maybeSweep).
	case "permit_join":
		c.onPermitJoin(ev.Data.Device, ev.Data.Value, ev.Data.Time)
	}
}

// onPermitJoin fans permit_join out to every router-class entity (the
// "virtual lock representing the coordinator/router", spec.md §3), filtered
// by device name when one is given, or applied to all routers otherwise. It
// mirrors value onto a Door-Lock-style lockState attribute and emits the
// matching Lock/Unlock operation event, per spec.md §4.3/§4.5.
func (c *Controller) onPermitJoin(device string, value bool, timeoutSeconds int) {
	c.mu.Lock()
	if c.info != nil {
		c.info.PermitJoin = value
		c.info.PermitJoinTimeout = timeoutSeconds
	}
	c.mu.Unlock()

	operation := "Lock"
	if value {
		operation = "Unlock"
	}
	for _, e := range c.reg.All() {
		if !e.IsRouter {
			continue
		}
		if device != "" && e.Name != device {
			continue
		}
		if e.BridgedEndpoint == nil {
			continue
		}
		e.BridgedEndpoint.SetAttribute("DoorLock", "lockState", value)
		e.BridgedEndpoint.EmitEvent(operation, nil)
	}
}

func capabilitiesFromDefinition(def *model.Definition) map[string]model.Capability {
	caps := map[string]model.Capability{}
	if def == nil {
		return caps
	}
	for _, raw := range def.Exposes {
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		exposeCap := capabilityFromExpose(m)
		if exposeCap.Property != "" {
			caps[exposeCap.Property] = exposeCap
		}
		if features, ok := m["features"].([]any); ok {
			for _, fraw := range features {
				fm, ok := fraw.(map[string]any)
				if !ok {
					continue
				}
				fc := capabilityFromExpose(fm)
				if fc.Property != "" {
					caps[fc.Property] = fc
				}
			}
		}
	}
	return caps
}

func capabilityFromExpose(m map[string]any) model.Capability {
	property, _ := m["property"].(string)
	name, _ := m["name"].(string)
	typ, _ := m["type"].(string)
	unit, _ := m["unit"].(string)

	var accessBits int
	switch a := m["access"].(type) {
	case float64:
		accessBits = int(a)
	case int:
		accessBits = a
	}

	c := model.Capability{
		ID:        name,
		Name:      name,
		Kind:      typ,
		Property:  property,
		ValueType: typ,
		Unit:      unit,
		Access: model.CapabilityAccess{
			Published: accessBits&1 != 0,
			Settable:  accessBits&2 != 0,
			Gettable:  accessBits&4 != 0,
		},
	}
	if min, ok := m["value_min"].(float64); ok {
		max, _ := m["value_max"].(float64)
		c.Range = &model.CapabilityRange{Min: min, Max: max}
	}
	if vals, ok := m["values"].([]any); ok {
		for _, v := range vals {
			if s, ok := v.(string); ok {
				c.Enum = append(c.Enum, s)
			}
		}
	}
	return c
}

package bridgestate

import (
	"context"
	"testing"
	"time"

	"zigbee-bridge/internal/model"
	"zigbee-bridge/internal/registry"
)

type noopPublisher struct{}

func (noopPublisher) Publish(topic string, payload []byte) error { return nil }
func (noopPublisher) PublishQueued(topic string, payload []byte) {}

type fakeEndpoint struct {
	attrs        []string
	events       []string
	unregistered bool
}

func (f *fakeEndpoint) SetAttribute(cluster, attribute string, value any) {
	f.attrs = append(f.attrs, cluster+"."+attribute)
}
func (f *fakeEndpoint) EmitEvent(name string, data map[string]any) { f.events = append(f.events, name) }
func (f *fakeEndpoint) Unregister()                                { f.unregistered = true }

type fakeHost struct {
	endpoints map[string]*fakeEndpoint
}

func newFakeHost() *fakeHost { return &fakeHost{endpoints: map[string]*fakeEndpoint{}} }

func (h *fakeHost) Register(e *model.Entity) model.BridgedEndpoint {
	ep := &fakeEndpoint{}
	h.endpoints[e.Name] = ep
	return ep
}

func newTestController() (*Controller, *fakeHost) {
	reg := registry.New(registry.Filter{})
	host := newFakeHost()
	c := New("zigbee2mqtt", noopPublisher{}, reg, host, nil)
	return c, host
}

func TestWaitReadyRequiresStateInfoAndDevices(t *testing.T) {
	c, _ := newTestController()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := c.WaitReady(ctx); err == nil {
		t.Fatalf("expected WaitReady to time out before any state arrives")
	}

	c2, _ := newTestController()
	c2.onBridgeState([]byte("online"))
	c2.onBridgeInfo([]byte(`{"version":"1.0"}`))
	c2.onBridgeDevices([]byte(`[]`))

	ctx2, cancel2 := context.WithTimeout(context.Background(), time.Second)
	defer cancel2()
	if err := c2.WaitReady(ctx2); err != nil {
		t.Fatalf("expected WaitReady to succeed once online+info+devices arrived: %v", err)
	}
}

func TestRegistrationSweepRegistersDevicesAndGroups(t *testing.T) {
	c, host := newTestController()

	devicesPayload := []byte(`[{"ieee_address":"0x1","friendly_name":"light1","type":"Router",
		"definition":{"exposes":[{"type":"binary","property":"state","name":"state","access":7}]}}]`)
	groupsPayload := []byte(`[{"id":1,"friendly_name":"group1"}]`)

	c.onBridgeDevices(devicesPayload)
	c.onBridgeGroups(groupsPayload)

	if _, ok := c.reg.Get("light1"); !ok {
		t.Errorf("expected light1 to be registered")
	}
	if _, ok := c.reg.Get("group1"); !ok {
		t.Errorf("expected group1 to be registered")
	}
	if _, ok := host.endpoints["light1"]; !ok {
		t.Errorf("expected a northbound endpoint for light1")
	}
}

func TestRegistrationSweepRunsOnlyOnce(t *testing.T) {
	c, _ := newTestController()
	c.onBridgeDevices([]byte(`[{"friendly_name":"light1"}]`))
	c.onBridgeGroups([]byte(`[]`))
	c.onBridgeDevices([]byte(`[{"friendly_name":"light2"}]`))

	if _, ok := c.reg.Get("light2"); ok {
		t.Errorf("expected a second bridge/devices publish not to re-trigger the sweep")
	}
}

func TestDeviceLeaveUnregistersEntity(t *testing.T) {
	c, host := newTestController()
	c.onBridgeDevices([]byte(`[{"friendly_name":"light1"}]`))
	c.onBridgeGroups([]byte(`[]`))

	ep := host.endpoints["light1"]
	c.onBridgeEvent([]byte(`{"type":"device_leave","data":{"friendly_name":"light1"}}`))

	if _, ok := c.reg.Get("light1"); ok {
		t.Errorf("expected light1 to be unregistered after device_leave")
	}
	if !ep.unregistered {
		t.Errorf("expected the endpoint to observe Unregister")
	}
}

func TestPermitJoinFansOutToRouterEntitiesAndEmitsUnlock(t *testing.T) {
	c, host := newTestController()
	coordinator := &model.Entity{Name: "Coordinator", IsRouter: true}
	c.reg.Register(coordinator)
	coordinator.BridgedEndpoint = host.Register(coordinator)

	c.onBridgeEvent([]byte(`{"type":"permit_join","data":{"device":"Coordinator","time":30,"value":true}}`))

	ep := host.endpoints["Coordinator"]
	foundAttr := false
	for _, a := range ep.attrs {
		if a == "DoorLock.lockState" {
			foundAttr = true
		}
	}
	if !foundAttr {
		t.Errorf("expected permit_join to set DoorLock.lockState, got %v", ep.attrs)
	}
	foundEvent := false
	for _, ev := range ep.events {
		if ev == "Unlock" {
			foundEvent = true
		}
	}
	if !foundEvent {
		t.Errorf("expected permit_join value=true to emit an Unlock operation event, got %v", ep.events)
	}
}

func TestPermitJoinIgnoresNonRouterEntities(t *testing.T) {
	c, host := newTestController()
	lamp := &model.Entity{Name: "Lamp1"}
	c.reg.Register(lamp)
	lamp.BridgedEndpoint = host.Register(lamp)

	c.onBridgeEvent([]byte(`{"type":"permit_join","data":{"time":30,"value":true}}`))

	ep := host.endpoints["Lamp1"]
	if len(ep.attrs) != 0 {
		t.Errorf("expected permit_join to skip a non-router entity, got %v", ep.attrs)
	}
}

func TestDeviceRenameUnregistersOldNameAndRegistersNew(t *testing.T) {
	c, host := newTestController()
	c.onBridgeDevices([]byte(`[{"friendly_name":"Lamp1"}]`))
	c.onBridgeGroups([]byte(`[]`))

	c.onBridgeEvent([]byte(`{"type":"device_rename","data":{"ieee":"0xabc","from":"Lamp1","to":"Lamp2"}}`))

	if _, ok := c.reg.Get("Lamp1"); ok {
		t.Errorf("expected Lamp1 to be unregistered after device_rename")
	}
	if _, ok := c.reg.Get("Lamp2"); !ok {
		t.Errorf("expected Lamp2 to be registered after device_rename")
	}
	if _, ok := host.endpoints["Lamp2"]; !ok {
		t.Errorf("expected a northbound endpoint for the renamed entity")
	}
}

func TestEmptyGroupsSnapshotDoesNotUnregisterExistingGroups(t *testing.T) {
	c, _ := newTestController()
	c.onBridgeDevices([]byte(`[]`))
	c.onBridgeGroups([]byte(`[{"id":1,"friendly_name":"group1"}]`))

	if _, ok := c.reg.Get("group1"); !ok {
		t.Fatalf("expected group1 to exist before the empty snapshot")
	}

	c.onBridgeGroups([]byte(`[]`))

	if _, ok := c.reg.Get("group1"); !ok {
		t.Errorf("expected group1 to survive an empty bridge/groups republish")
	}
}

package model

// Capability, CapabilityAccess, CapabilityRange and DeviceInput mirror the
// teacher's internal/model/capability.go — the resolved, flattened form of a
// Zigbee "expose" feature. zigbee-bridge resolves BridgeDevice.Definition.Exposes
// into a map[string]Capability once per device, keyed by Property exactly as
// the expose gives it (no case folding).
type Capability struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Kind        string           `json:"kind"`
	Property    string           `json:"property"`
	ValueType   string           `json:"value_type"`
	Unit        string           `json:"unit,omitempty"`
	DeviceClass string           `json:"device_class,omitempty"`
	Access      CapabilityAccess `json:"access"`
	Description string           `json:"description,omitempty"`
	Range       *CapabilityRange `json:"range,omitempty"`
	Enum        []string         `json:"enum,omitempty"`
	SubType     string           `json:"sub_type,omitempty"`
	TrueValue   string           `json:"true_value,omitempty"`
	FalseValue  string           `json:"false_value,omitempty"`
}

// CapabilityAccess decodes the Zigbee expose "access" bitmask: bit 0
// (value 1) published, bit 1 (value 2) settable, bit 2 (value 4) gettable.
type CapabilityAccess struct {
	Published bool `json:"published"`
	Settable  bool `json:"settable"`
	Gettable  bool `json:"gettable"`
}

type CapabilityRange struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Step float64 `json:"step,omitempty"`
}

// DeviceInput describes one settable surface derived from a Capability, used
// by the northbound host to render a control.
type DeviceInput struct {
	ID           string           `json:"id"`
	Label        string           `json:"label"`
	Type         string           `json:"type"`
	CapabilityID string           `json:"capability_id"`
	Property     string           `json:"property"`
	Range        *CapabilityRange `json:"range,omitempty"`
	Options      []InputOption    `json:"options,omitempty"`
}

type InputOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// DeviceTypeCode enumerates the northbound endpoint device types spec.md §1
// names ("light, outlet, switch, sensor, cover, lock, thermostat, generic
// switch, air-quality sensor, ...").
type DeviceTypeCode string

const (
	DeviceTypeOnOffLight     DeviceTypeCode = "on_off_light"
	DeviceTypeDimmableLight  DeviceTypeCode = "dimmable_light"
	DeviceTypeColorLight     DeviceTypeCode = "color_light"
	DeviceTypeOutlet         DeviceTypeCode = "outlet"
	DeviceTypeSwitch         DeviceTypeCode = "switch"
	DeviceTypeGenericSwitch  DeviceTypeCode = "generic_switch"
	DeviceTypeContactSensor  DeviceTypeCode = "contact_sensor"
	DeviceTypeOccupancySensor DeviceTypeCode = "occupancy_sensor"
	DeviceTypeTemperatureSensor DeviceTypeCode = "temperature_sensor"
	DeviceTypeHumiditySensor DeviceTypeCode = "humidity_sensor"
	DeviceTypeAirQualitySensor DeviceTypeCode = "air_quality_sensor"
	DeviceTypeSmokeSensor    DeviceTypeCode = "smoke_sensor"
	DeviceTypeWaterLeakSensor DeviceTypeCode = "water_leak_sensor"
	DeviceTypeCover          DeviceTypeCode = "cover"
	DeviceTypeLock           DeviceTypeCode = "lock"
	DeviceTypeThermostat     DeviceTypeCode = "thermostat"
	DeviceTypeRouter         DeviceTypeCode = "router"
	DeviceTypeUnknown        DeviceTypeCode = "unknown"
)

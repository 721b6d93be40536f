package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultDevice is assumed when a config names no target_device.
const DefaultDevice = "cpu"

// DeviceSpec describes the capabilities of a deployment target.
type DeviceSpec struct {
	Name              string   `yaml:"name"`
	MemoryMB          float64  `yaml:"memory_mb"`
	SupportsFP16      bool     `yaml:"supports_fp16"`
	SupportsInt8      bool     `yaml:"supports_int8"`
	Formats           []string `yaml:"formats"`
	RelativeSpeed     float64  `yaml:"relative_speed"`
	BasePowerMW       float64  `yaml:"base_power_mw"`
	RuntimeOverheadMB float64  `yaml:"runtime_overhead_mb"`
	GPU               bool     `yaml:"gpu"`
	Microcontroller   bool     `yaml:"microcontroller"`
}

// SupportsFormat reports whether the device runs models with extension ext
// (with or without the leading dot).
func (d DeviceSpec) SupportsFormat(ext string) bool {
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	for _, f := range d.Formats {
		if strings.TrimPrefix(strings.ToLower(f), ".") == ext {
			return true
		}
	}
	return false
}

// DeviceSpecFile is the on-disk shape of --device-spec-file.
type DeviceSpecFile struct {
	Devices []DeviceSpec `yaml:"devices"`
}

// DeviceCatalog is a read-only set of device specs keyed by lower-case name.
type DeviceCatalog struct {
	devices map[string]DeviceSpec
}

var builtinDevices = []DeviceSpec{
	{Name: "cpu", MemoryMB: 4096, SupportsFP16: true, SupportsInt8: true,
		Formats: []string{"tflite", "onnx", "pb", "h5", "keras", "pt", "pth"},
		RelativeSpeed: 1.0, BasePowerMW: 15000, RuntimeOverheadMB: 50},
	{Name: "gpu", MemoryMB: 8192, SupportsFP16: true, SupportsInt8: true,
		Formats: []string{"tflite", "onnx", "pb", "h5", "keras", "pt", "pth"},
		RelativeSpeed: 4.0, BasePowerMW: 75000, RuntimeOverheadMB: 300, GPU: true},
	{Name: "raspberry_pi", MemoryMB: 2048, SupportsFP16: true, SupportsInt8: true,
		Formats: []string{"tflite", "onnx"},
		RelativeSpeed: 0.25, BasePowerMW: 5000, RuntimeOverheadMB: 30},
	{Name: "jetson_nano", MemoryMB: 4096, SupportsFP16: true, SupportsInt8: true,
		Formats: []string{"tflite", "onnx", "pb", "pt", "pth"},
		RelativeSpeed: 1.5, BasePowerMW: 10000, RuntimeOverheadMB: 200, GPU: true},
	{Name: "jetson_xavier", MemoryMB: 8192, SupportsFP16: true, SupportsInt8: true,
		Formats: []string{"tflite", "onnx", "pb", "pt", "pth"},
		RelativeSpeed: 3.0, BasePowerMW: 20000, RuntimeOverheadMB: 250, GPU: true},
	{Name: "coral_edgetpu", MemoryMB: 1024, SupportsFP16: false, SupportsInt8: true,
		Formats: []string{"tflite"},
		RelativeSpeed: 2.0, BasePowerMW: 2000, RuntimeOverheadMB: 20},
	{Name: "esp32", MemoryMB: 4, SupportsFP16: false, SupportsInt8: true,
		Formats: []string{"tflite"},
		RelativeSpeed: 0.02, BasePowerMW: 500, RuntimeOverheadMB: 0.1, Microcontroller: true},
	{Name: "cortex_m4", MemoryMB: 1, SupportsFP16: false, SupportsInt8: true,
		Formats: []string{"tflite"},
		RelativeSpeed: 0.01, BasePowerMW: 100, RuntimeOverheadMB: 0.05, Microcontroller: true},
}

// DefaultDevices returns the built-in catalog.
func DefaultDevices() *DeviceCatalog {
	c := &DeviceCatalog{devices: make(map[string]DeviceSpec, len(builtinDevices))}
	for _, d := range builtinDevices {
		c.devices[d.Name] = d
	}
	return c
}

// LoadDeviceSpecs reads a YAML device spec file and merges it over the
// built-in catalog. Entries with an existing name replace the built-in.
func LoadDeviceSpecs(path string) (*DeviceCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading device spec file: %w", err)
	}

	var file DeviceSpecFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing device spec YAML: %w", err)
	}

	c := DefaultDevices()
	for i, d := range file.Devices {
		name := strings.ToLower(strings.TrimSpace(d.Name))
		if name == "" {
			return nil, fmt.Errorf("devices[%d].name: is required", i)
		}
		if d.MemoryMB <= 0 {
			return nil, fmt.Errorf("devices[%d].memory_mb: must be positive", i)
		}
		if d.RelativeSpeed <= 0 {
			d.RelativeSpeed = 1.0
		}
		if len(d.Formats) == 0 {
			d.Formats = []string{"tflite"}
		}
		d.Name = name
		c.devices[name] = d
	}
	return c, nil
}

// Lookup finds a device by name, case-insensitively.
func (c *DeviceCatalog) Lookup(name string) (DeviceSpec, bool) {
	d, ok := c.devices[strings.ToLower(strings.TrimSpace(name))]
	return d, ok
}

// Names lists known device names in sorted order.
func (c *DeviceCatalog) Names() []string {
	names := make([]string, 0, len(c.devices))
	for n := range c.devices {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// TargetDevice returns the config's target_device or DefaultDevice.
func (c *Config) TargetDevice() string {
	if d := strings.TrimSpace(c.String("target_device")); d != "" {
		return d
	}
	return DefaultDevice
}

// ResolveModelPath resolves the model reference against the config file's
// directory when it is relative.
func (c *Config) ResolveModelPath() string {
	m := c.Model()
	if m == "" || isAbs(m) || c.source == "" {
		return m
	}
	return joinDir(c.source, m)
}

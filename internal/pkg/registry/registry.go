package registry

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"slices"
	"strings"

	"github.com/anicoll/iot-simulator/internal/pkg/model"
	"github.com/gosimple/slug"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

var (
	ErrEmptyRegistry      = errors.New("registry has no devices")
	ErrInvalidSerial      = errors.New("serial number must be 10 digits")
	ErrDuplicateSerial    = errors.New("duplicate serial number")
	ErrNoParameters       = errors.New("device reports no parameters")
	ErrDuplicateParameter = errors.New("duplicate parameter")
)

var serialPattern = regexp.MustCompile(`^[0-9]{10}$`)

// Registry is the fixed, ordered fleet of simulated devices. It is never
// mutated after construction; iteration order is publish order.
type Registry struct {
	devices []model.Device
}

type file struct {
	Devices []model.Device `yaml:"devices"`
}

func New(devices ...model.Device) (*Registry, error) {
	if len(devices) == 0 {
		return nil, ErrEmptyRegistry
	}
	seen := make(map[string]struct{}, len(devices))
	owned := make([]model.Device, 0, len(devices))
	for _, d := range devices {
		if !serialPattern.MatchString(d.SerialNumber) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidSerial, d.SerialNumber)
		}
		if _, exists := seen[d.SerialNumber]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateSerial, d.SerialNumber)
		}
		seen[d.SerialNumber] = struct{}{}

		if len(d.Parameters) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrNoParameters, d.SerialNumber)
		}
		if dups := lo.FindDuplicates(d.Parameters); len(dups) > 0 {
			return nil, fmt.Errorf("%w: %s reports %v more than once", ErrDuplicateParameter, d.SerialNumber, dups)
		}

		d.Parameters = slices.Clone(d.Parameters)
		d.DeviceType = strings.Replace(slug.Make(d.DeviceType), "-", "_", -1)
		owned = append(owned, d)
	}
	return &Registry{devices: owned}, nil
}

// Default returns the built-in demo fleet.
func Default() *Registry {
	r, err := New(
		model.Device{
			SerialNumber: "1234567890",
			Name:         "Temperature Sensor - Warehouse A",
			DeviceType:   "temperature_sensor",
			Parameters:   []model.Parameter{model.Temperature, model.Humidity},
		},
		model.Device{
			SerialNumber: "1234567891",
			Name:         "Multi Sensor - Office",
			DeviceType:   "multi_sensor",
			Parameters:   []model.Parameter{model.Temperature, model.Humidity, model.Pressure},
		},
		model.Device{
			SerialNumber: "1234567892",
			Name:         "Smart Meter - Building 1",
			DeviceType:   "smart_meter",
			Parameters:   []model.Parameter{model.Power, model.Voltage, model.Current},
		},
	)
	if err != nil {
		panic(err)
	}
	return r
}

// Load reads a YAML device list of the form:
//
//	devices:
//	  - serialNumber: "1234567890"
//	    name: Warehouse A
//	    deviceType: temperature_sensor
//	    parameters: [temperature, humidity]
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func Parse(data []byte) (*Registry, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse device list: %w", err)
	}
	return New(f.Devices...)
}

// Devices returns a copy of the fleet in registry order.
func (r *Registry) Devices() []model.Device {
	return lo.Map(r.devices, func(d model.Device, _ int) model.Device {
		d.Parameters = slices.Clone(d.Parameters)
		return d
	})
}

func (r *Registry) Len() int {
	return len(r.devices)
}

func (r *Registry) Get(serialNumber string) (model.Device, bool) {
	d, ok := lo.Find(r.devices, func(d model.Device) bool {
		return d.SerialNumber == serialNumber
	})
	if ok {
		d.Parameters = slices.Clone(d.Parameters)
	}
	return d, ok
}

// UnknownParameters lists, per serial number, the parameters outside the
// sensor vocabulary. Those never produce a reading.
func (r *Registry) UnknownParameters() map[string][]model.Parameter {
	unknown := map[string][]model.Parameter{}
	for _, d := range r.devices {
		if params := lo.Reject(d.Parameters, func(p model.Parameter, _ int) bool { return p.Known() }); len(params) > 0 {
			unknown[d.SerialNumber] = params
		}
	}
	return unknown
}

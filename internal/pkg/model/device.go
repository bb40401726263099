package model

type Parameter string

func (p Parameter) String() string {
	return string(p)
}

const (
	Temperature Parameter = "temperature"
	Humidity    Parameter = "humidity"
	Pressure    Parameter = "pressure"
	Power       Parameter = "power"
	Voltage     Parameter = "voltage"
	Current     Parameter = "current"
)

var Parameters = []Parameter{
	Temperature,
	Humidity,
	Pressure,
	Power,
	Voltage,
	Current,
}

// Known reports whether p belongs to the fixed sensor vocabulary.
func (p Parameter) Known() bool {
	for _, known := range Parameters {
		if p == known {
			return true
		}
	}
	return false
}

type Device struct {
	SerialNumber string      `json:"serialNumber" yaml:"serialNumber"`
	Name         string      `json:"name" yaml:"name"`
	DeviceType   string      `json:"deviceType" yaml:"deviceType"`
	Parameters   []Parameter `json:"parameters" yaml:"parameters"`
}

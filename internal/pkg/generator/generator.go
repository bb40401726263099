package generator

import (
	"math"
	"math/rand/v2"

	"github.com/anicoll/iot-simulator/internal/pkg/model"
	"go.uber.org/zap"
)

// Source yields uniformly distributed values in [0, 1).
type Source interface {
	Float64() float64
}

type globalSource struct{}

func (globalSource) Float64() float64 {
	return rand.Float64()
}

// GlobalSource returns the process-wide random source, safe for concurrent use.
func GlobalSource() Source {
	return globalSource{}
}

type bounds struct {
	min, max float64
}

var ranges = map[model.Parameter]bounds{
	model.Temperature: {15.0, 35.0},
	model.Humidity:    {30.0, 80.0},
	model.Pressure:    {980.0, 1040.0},
	model.Power:       {100.0, 500.0},
	model.Voltage:     {220.0, 240.0},
	model.Current:     {1.0, 10.0},
}

// Range returns the closed interval readings of p are drawn from.
func Range(p model.Parameter) (float64, float64, bool) {
	b, ok := ranges[p]
	return b.min, b.max, ok
}

type Generator struct {
	src    Source
	logger *zap.Logger
}

func New(src Source, logger *zap.Logger) *Generator {
	if src == nil {
		src = GlobalSource()
	}
	if logger == nil {
		logger = zap.L()
	}
	return &Generator{
		src:    src,
		logger: logger,
	}
}

// Generate draws one reading for p, rounded to two decimals. Unrecognised
// parameters yield no reading.
func (g *Generator) Generate(p model.Parameter) (model.Reading, bool) {
	b, ok := ranges[p]
	if !ok {
		g.logger.Debug("unrecognised parameter, no reading generated", zap.String("parameter", p.String()))
		return model.Reading{}, false
	}
	v := b.min + g.src.Float64()*(b.max-b.min)
	return model.Reading{Parameter: p, Value: round2(v)}, true
}

// GenerateAll returns one reading per recognised parameter, in order.
func (g *Generator) GenerateAll(params []model.Parameter) []model.Reading {
	readings := make([]model.Reading, 0, len(params))
	for _, p := range params {
		if r, ok := g.Generate(p); ok {
			readings = append(readings, r)
		}
	}
	return readings
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

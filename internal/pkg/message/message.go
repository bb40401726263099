package message

import (
	"fmt"
	"time"

	"github.com/anicoll/iot-simulator/internal/pkg/model"
)

const (
	telemetrySuffix = "telemetry"
	statusSuffix    = "status"
)

type readingGenerator interface {
	GenerateAll(params []model.Parameter) []model.Reading
}

// Builder shapes topics and payloads for one topic namespace.
type Builder struct {
	namespace       string
	gen             readingGenerator
	now             func() time.Time
	statusTimestamp bool
}

func WithClock(now func() time.Time) func(*Builder) {
	return func(b *Builder) {
		b.now = now
	}
}

func WithStatusTimestamp(enabled bool) func(*Builder) {
	return func(b *Builder) {
		b.statusTimestamp = enabled
	}
}

func New(namespace string, gen readingGenerator, opts ...func(*Builder)) *Builder {
	b := &Builder{
		namespace:       namespace,
		gen:             gen,
		now:             time.Now,
		statusTimestamp: true,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

func (b *Builder) TelemetryTopic(serialNumber string) string {
	return b.topic(serialNumber, telemetrySuffix)
}

func (b *Builder) StatusTopic(serialNumber string) string {
	return b.topic(serialNumber, statusSuffix)
}

func (b *Builder) topic(serialNumber, kind string) string {
	return fmt.Sprintf("%s/devices/%s/%s", b.namespace, serialNumber, kind)
}

func (b *Builder) TelemetryPayload(device model.Device) model.TelemetryMessage {
	return model.TelemetryMessage{
		Timestamp: b.timestamp(),
		Readings:  b.gen.GenerateAll(device.Parameters),
	}
}

func (b *Builder) StatusPayload() model.StatusMessage {
	msg := model.StatusMessage{Status: model.StatusOnline}
	if b.statusTimestamp {
		msg.Timestamp = b.timestamp()
	}
	return msg
}

func (b *Builder) timestamp() string {
	return b.now().UTC().Format(model.TimestampLayout)
}

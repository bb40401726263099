package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/anicoll/iot-simulator/internal/pkg/config"
	"github.com/anicoll/iot-simulator/internal/pkg/contxt"
	"github.com/anicoll/iot-simulator/internal/pkg/model"
	"go.uber.org/zap"
)

var ErrPublish = errors.New("publish failed")

// Publisher transmits one payload with acknowledged delivery.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

type deviceSource interface {
	Devices() []model.Device
}

type messageBuilder interface {
	TelemetryTopic(serialNumber string) string
	StatusTopic(serialNumber string) string
	TelemetryPayload(device model.Device) model.TelemetryMessage
	StatusPayload() model.StatusMessage
}

type Stats struct {
	Rounds    uint64
	Telemetry uint64
	Status    uint64
	Failures  uint64
}

// Driver publishes one telemetry message per device per round. It keeps no
// per-device state: every round is computed from the registry alone.
type Driver struct {
	conn    Publisher
	devices deviceSource
	builder messageBuilder
	cfg     *config.SimulatorConfig
	logger  *zap.Logger
	sleep   func(ctx context.Context, d time.Duration) error

	round     uint64
	rounds    atomic.Uint64
	telemetry atomic.Uint64
	status    atomic.Uint64
	failures  atomic.Uint64
}

// WithSleep replaces the pause between devices and rounds.
func WithSleep(f func(ctx context.Context, d time.Duration) error) func(*Driver) {
	return func(d *Driver) {
		d.sleep = f
	}
}

func New(conn Publisher, devices deviceSource, builder messageBuilder, cfg *config.SimulatorConfig, logger *zap.Logger, opts ...func(*Driver)) *Driver {
	if logger == nil {
		logger = zap.L()
	}
	d := &Driver{
		conn:    conn,
		devices: devices,
		builder: builder,
		cfg:     cfg,
		logger:  logger,
		sleep:   contxt.Sleep,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Run publishes rounds until ctx is cancelled or a publish fails. Cancellation
// is not an error.
func (d *Driver) Run(ctx context.Context) error {
	for {
		if err := d.Tick(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if err := d.sleep(ctx, d.cfg.RoundInterval); err != nil {
			return nil
		}
	}
}

// Tick runs exactly one round in registry order, pausing after each device.
func (d *Driver) Tick(ctx context.Context) error {
	d.round++
	round := d.round
	d.rounds.Add(1)
	if round%10 == 1 {
		d.logger.Info("starting round", zap.Uint64("round", round))
	}

	for _, device := range d.devices.Devices() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := d.publishTelemetry(ctx, device); err != nil {
			return err
		}
		if d.statusDue(round) {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := d.publishStatus(ctx, device); err != nil {
				return err
			}
		}
		if err := d.sleep(ctx, d.cfg.DeviceInterval); err != nil {
			return err
		}
	}
	return nil
}

func (d *Driver) statusDue(round uint64) bool {
	return d.cfg.StatusEvery > 0 && round%uint64(d.cfg.StatusEvery) == 0
}

func (d *Driver) publishTelemetry(ctx context.Context, device model.Device) error {
	msg := d.builder.TelemetryPayload(device)
	if err := d.publish(ctx, d.builder.TelemetryTopic(device.SerialNumber), msg); err != nil {
		return err
	}
	d.telemetry.Add(1)

	fields := make([]zap.Field, 0, len(msg.Readings)+1)
	fields = append(fields, zap.String("device", device.SerialNumber))
	for _, r := range msg.Readings {
		fields = append(fields, zap.Float64(r.Parameter.String(), r.Value))
	}
	d.logger.Info("published telemetry", fields...)
	return nil
}

func (d *Driver) publishStatus(ctx context.Context, device model.Device) error {
	if err := d.publish(ctx, d.builder.StatusTopic(device.SerialNumber), d.builder.StatusPayload()); err != nil {
		return err
	}
	d.status.Add(1)
	d.logger.Debug("published status", zap.String("device", device.SerialNumber))
	return nil
}

func (d *Driver) publish(ctx context.Context, topic string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if err := d.conn.Publish(ctx, topic, data); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		d.failures.Add(1)
		d.logger.Error("failed to publish data", zap.Error(err), zap.String("topic", topic))
		return fmt.Errorf("%w: %s: %w", ErrPublish, topic, err)
	}
	return nil
}

func (d *Driver) Stats() Stats {
	return Stats{
		Rounds:    d.rounds.Load(),
		Telemetry: d.telemetry.Load(),
		Status:    d.status.Load(),
		Failures:  d.failures.Load(),
	}
}

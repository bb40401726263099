package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anicoll/iot-simulator/internal/pkg/contxt"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	ErrConnect        = errors.New("failed to connect to broker")
	ErrConnectionLost = errors.New("broker connection lost")
)

// Connection is the broker link owned by the Manager.
type Connection interface {
	Connect(ctx context.Context) error
	Disconnect()
	Lost() <-chan error
}

// Runner is the publish loop. Run must return nil when ctx is cancelled.
type Runner interface {
	Run(ctx context.Context) error
}

type Manager struct {
	conn    Connection
	runner  Runner
	settle  time.Duration
	machine *Machine
	logger  *zap.Logger
	sleep   func(ctx context.Context, d time.Duration) error
}

func WithSleep(f func(ctx context.Context, d time.Duration) error) func(*Manager) {
	return func(m *Manager) {
		m.sleep = f
	}
}

// WithObserver is notified of every state transition.
func WithObserver(f func(Transition)) func(*Manager) {
	return func(m *Manager) {
		m.machine.observers = append(m.machine.observers, f)
	}
}

func New(conn Connection, runner Runner, settle time.Duration, logger *zap.Logger, opts ...func(*Manager)) *Manager {
	if logger == nil {
		logger = zap.L()
	}
	m := &Manager{
		conn:   conn,
		runner: runner,
		settle: settle,
		logger: logger,
		sleep:  contxt.Sleep,
	}
	m.machine = NewMachine(func(tr Transition) {
		logger.Debug("connection state changed",
			zap.Stringer("from", tr.From),
			zap.Stringer("to", tr.To),
			zap.Stringer("event", tr.Event))
	})
	for _, o := range opts {
		o(m)
	}
	return m
}

func (m *Manager) State() State {
	return m.machine.State()
}

// Run connects, hands control to the runner and tears the connection down
// exactly once. An interrupt (ctx cancellation) in any phase returns nil.
func (m *Manager) Run(ctx context.Context) error {
	m.fire(EventConnect)
	if err := m.conn.Connect(ctx); err != nil {
		// the client may still complete an abandoned attempt; Disconnect stops it.
		if ctx.Err() != nil {
			m.shutdown(EventCancel)
			return nil
		}
		m.fire(EventConnectFailed)
		m.conn.Disconnect()
		m.logger.Error("failed to connect to broker", zap.Error(err))
		return fmt.Errorf("%w: %w", ErrConnect, err)
	}
	m.fire(EventConnectOK)

	if err := m.sleep(ctx, m.settle); err != nil {
		m.shutdown(EventCancel)
		return nil
	}
	m.fire(EventSettled)
	m.logger.Info("simulation running")

	err := m.running(ctx)
	if err != nil {
		m.logger.Error("halting simulation", zap.Error(err))
		m.shutdown(EventConnectionLost)
		return err
	}
	m.logger.Info("stopping simulation")
	m.shutdown(EventCancel)
	return nil
}

func (m *Manager) running(ctx context.Context) error {
	eg, egCtx := errgroup.WithContext(ctx)
	stop, cancel := context.WithCancel(egCtx)
	defer cancel()

	eg.Go(func() error {
		defer cancel()
		return m.runner.Run(stop)
	})
	eg.Go(func() error {
		select {
		case err := <-m.conn.Lost():
			return fmt.Errorf("%w: %w", ErrConnectionLost, err)
		case <-stop.Done():
			return nil
		}
	})
	return eg.Wait()
}

func (m *Manager) shutdown(cause Event) {
	m.fire(cause)
	m.conn.Disconnect()
	m.fire(EventClosed)
}

func (m *Manager) fire(event Event) {
	if _, err := m.machine.Fire(event); err != nil {
		m.logger.Error("unexpected connection event", zap.Error(err))
	}
}

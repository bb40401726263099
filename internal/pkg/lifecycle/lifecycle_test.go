package lifecycle

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/anicoll/iot-simulator/internal/pkg/config"
	"github.com/anicoll/iot-simulator/internal/pkg/generator"
	"github.com/anicoll/iot-simulator/internal/pkg/message"
	"github.com/anicoll/iot-simulator/internal/pkg/publisher"
	"github.com/anicoll/iot-simulator/internal/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// MockConnection implements Connection and Publisher.
type MockConnection struct {
	ConnectFunc func(ctx context.Context) error
	PublishFunc func(ctx context.Context, topic string, payload []byte) error
	lost        chan error
	disconnects atomic.Int32
	publishes   atomic.Int32
}

func newMockConnection() *MockConnection {
	return &MockConnection{lost: make(chan error, 1)}
}

func (m *MockConnection) Connect(ctx context.Context) error {
	if m.ConnectFunc != nil {
		return m.ConnectFunc(ctx)
	}
	return nil
}

func (m *MockConnection) Publish(ctx context.Context, topic string, payload []byte) error {
	if m.PublishFunc != nil {
		if err := m.PublishFunc(ctx, topic, payload); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.publishes.Add(1)
	return nil
}

func (m *MockConnection) Disconnect() {
	m.disconnects.Add(1)
}

func (m *MockConnection) Lost() <-chan error {
	return m.lost
}

type MockRunner struct {
	RunFunc func(ctx context.Context) error
	calls   atomic.Int32
}

func (m *MockRunner) Run(ctx context.Context) error {
	m.calls.Add(1)
	if m.RunFunc != nil {
		return m.RunFunc(ctx)
	}
	<-ctx.Done()
	return nil
}

type transitionLog struct {
	mu  sync.Mutex
	all []Transition
}

func (l *transitionLog) observe(tr Transition) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.all = append(l.all, tr)
}

func (l *transitionLog) states() []State {
	l.mu.Lock()
	defer l.mu.Unlock()
	states := []State{}
	for _, tr := range l.all {
		states = append(states, tr.To)
	}
	return states
}

func newDriver(t *testing.T, conn publisher.Publisher) *publisher.Driver {
	t.Helper()
	logger := zaptest.NewLogger(t)
	cfg := &config.SimulatorConfig{
		Namespace:      "iot",
		DeviceInterval: 10 * time.Millisecond,
		RoundInterval:  50 * time.Millisecond,
		StatusEvery:    2,
	}
	builder := message.New(cfg.Namespace, generator.New(nil, logger))
	return publisher.New(conn, registry.Default(), builder, cfg, logger)
}

func TestRun_ConnectFailurePreventsPublish(t *testing.T) {
	conn := newMockConnection()
	conn.ConnectFunc = func(ctx context.Context) error {
		return errors.New("connection refused")
	}
	log := &transitionLog{}
	m := New(conn, newDriver(t, conn), 0, zaptest.NewLogger(t), WithObserver(log.observe))

	err := m.Run(context.Background())

	assert.ErrorIs(t, err, ErrConnect)
	assert.Equal(t, Disconnected, m.State())
	assert.Equal(t, []State{Connecting, Disconnected}, log.states())
	assert.Equal(t, int32(0), conn.publishes.Load())
	assert.Equal(t, int32(1), conn.disconnects.Load(), "abandoned connect attempt must be torn down")
}

func TestRun_InterruptMidRound(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	firstPublish := make(chan struct{})
	var once sync.Once
	conn := newMockConnection()
	conn.PublishFunc = func(ctx context.Context, topic string, payload []byte) error {
		once.Do(func() { close(firstPublish) })
		return nil
	}
	log := &transitionLog{}
	m := New(conn, newDriver(t, conn), 0, zaptest.NewLogger(t), WithObserver(log.observe))

	done := make(chan error, 1)
	go func() {
		done <- m.Run(ctx)
	}()

	<-firstPublish
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("simulation did not stop after interrupt")
	}

	assert.Equal(t, Disconnected, m.State())
	assert.Equal(t, int32(1), conn.disconnects.Load())
	assert.Equal(t, []State{Connecting, Connected, Running, Disconnecting, Disconnected}, log.states())

	published := conn.publishes.Load()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, published, conn.publishes.Load(), "publish after shutdown")
}

func TestRun_CancelDuringSettle(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	conn := newMockConnection()
	runner := &MockRunner{}
	log := &transitionLog{}
	m := New(conn, runner, time.Hour, zaptest.NewLogger(t), WithObserver(log.observe))

	time.AfterFunc(50*time.Millisecond, cancel)
	require.NoError(t, m.Run(ctx))

	assert.Equal(t, int32(0), runner.calls.Load())
	assert.Equal(t, int32(1), conn.disconnects.Load())
	assert.Equal(t, []State{Connecting, Connected, Disconnecting, Disconnected}, log.states())
}

func TestRun_CancelDuringConnect(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	conn := newMockConnection()
	conn.ConnectFunc = func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}
	runner := &MockRunner{}
	log := &transitionLog{}
	m := New(conn, runner, 0, zaptest.NewLogger(t), WithObserver(log.observe))

	time.AfterFunc(50*time.Millisecond, cancel)
	require.NoError(t, m.Run(ctx))

	assert.Equal(t, Disconnected, m.State())
	assert.Equal(t, int32(0), runner.calls.Load())
	assert.Equal(t, int32(1), conn.disconnects.Load())
	assert.Equal(t, []State{Connecting, Disconnecting, Disconnected}, log.states())
}

func TestRun_ConnectionLostIsFatal(t *testing.T) {
	conn := newMockConnection()
	runnerStopped := make(chan struct{})
	runner := &MockRunner{
		RunFunc: func(ctx context.Context) error {
			defer close(runnerStopped)
			<-ctx.Done()
			return nil
		},
	}
	log := &transitionLog{}
	m := New(conn, runner, 0, zaptest.NewLogger(t), WithObserver(log.observe))

	conn.lost <- errors.New("EOF")
	err := m.Run(context.Background())

	assert.ErrorIs(t, err, ErrConnectionLost)
	<-runnerStopped
	assert.Equal(t, Disconnected, m.State())
	assert.Equal(t, int32(1), conn.disconnects.Load())
	assert.Equal(t, []State{Connecting, Connected, Running, Disconnecting, Disconnected}, log.states())
}

func TestRun_RunnerFailureHalts(t *testing.T) {
	conn := newMockConnection()
	conn.PublishFunc = func(ctx context.Context, topic string, payload []byte) error {
		return errors.New("not connected")
	}
	m := New(conn, newDriver(t, conn), 0, zaptest.NewLogger(t))

	err := m.Run(context.Background())

	assert.ErrorIs(t, err, publisher.ErrPublish)
	assert.Equal(t, Disconnected, m.State())
	assert.Equal(t, int32(1), conn.disconnects.Load())
	assert.Equal(t, int32(0), conn.publishes.Load())
}

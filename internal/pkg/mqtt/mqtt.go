package mqtt

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/anicoll/iot-simulator/internal/pkg/config"
	paho_mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

const disconnectQuiesceMs = 250

var (
	ErrConnectTimeout = errors.New("unable to connect in time")
	ErrPublishTimeout = errors.New("publish not acknowledged in time")
)

type service struct {
	client         paho_mqtt.Client
	qos            byte
	connectTimeout time.Duration
	publishTimeout time.Duration
	lost           chan error
	logger         *zap.Logger
}

func New(client paho_mqtt.Client, cfg *config.MqttConfig) *service {
	return &service{
		client:         client,
		qos:            byte(cfg.QoS),
		connectTimeout: cfg.ConnectTimeout,
		publishTimeout: cfg.PublishTimeout,
		lost:           make(chan error, 1),
		logger:         zap.L(), // returns the global logger.
	}
}

// NewClient builds a paho client for the configured broker. Automatic
// reconnection is disabled: a lost connection is reported on Lost.
func NewClient(cfg *config.MqttConfig) *service {
	s := New(nil, cfg)
	opts := paho_mqtt.NewClientOptions()
	opts.AddBroker(cfg.Host)
	opts.SetClientID(ClientID(cfg.ClientPrefix))
	opts.SetKeepAlive(cfg.KeepAlive)
	opts.SetConnectTimeout(cfg.ConnectTimeout)
	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)
	opts.SetCleanSession(true)
	opts.SetConnectionLostHandler(s.onConnectionLost)
	s.client = paho_mqtt.NewClient(opts)
	return s
}

// ClientID mirrors the broker-side naming used by the dashboard, e.g. iot_simulator_4821.
func ClientID(prefix string) string {
	return fmt.Sprintf("%s_%d", prefix, 1000+rand.IntN(9000))
}

func (s *service) onConnectionLost(_ paho_mqtt.Client, err error) {
	s.logger.Error("connection to broker lost", zap.Error(err))
	select {
	case s.lost <- err:
	default:
	}
}

func (s *service) Connect(ctx context.Context) error {
	token := s.client.Connect()
	if err := s.wait(ctx, token, s.connectTimeout, ErrConnectTimeout); err != nil {
		return err
	}
	s.logger.Info("connected to broker")
	return nil
}

// Lost delivers at most one error when the broker connection drops unexpectedly.
func (s *service) Lost() <-chan error {
	return s.lost
}

func (s *service) Disconnect() {
	s.client.Disconnect(disconnectQuiesceMs)
	s.logger.Info("disconnected from broker")
}

func (s *service) wait(ctx context.Context, token paho_mqtt.Token, timeout time.Duration, timeoutErr error) error {
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-expired:
		return timeoutErr
	}
}

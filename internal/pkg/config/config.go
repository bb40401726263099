package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	MqttCfg       *MqttConfig
	SimulatorCfg  *SimulatorConfig
	DevicesFile   string `env:"DEVICES_FILE"`
	StatsSchedule string `env:"STATS_SCHEDULE" envDefault:"@every 1m"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"INFO"`
}

type MqttConfig struct {
	Host           string        `env:"MQTT_HOST" envDefault:"tcp://broker.hivemq.com:1883"`
	ClientPrefix   string        `env:"MQTT_CLIENT_PREFIX" envDefault:"iot_simulator"`
	QoS            int           `env:"MQTT_QOS" envDefault:"1"`
	KeepAlive      time.Duration `env:"MQTT_KEEPALIVE" envDefault:"60s"`
	ConnectTimeout time.Duration `env:"MQTT_CONNECT_TIMEOUT" envDefault:"5s"`
	PublishTimeout time.Duration `env:"MQTT_PUBLISH_TIMEOUT" envDefault:"10s"`
}

type SimulatorConfig struct {
	// Namespace must match the topic prefix the consuming backend subscribes to.
	Namespace       string        `env:"TOPIC_NAMESPACE" envDefault:"iot"`
	DeviceInterval  time.Duration `env:"DEVICE_INTERVAL" envDefault:"300ms"`
	RoundInterval   time.Duration `env:"ROUND_INTERVAL" envDefault:"10s"`
	SettleDelay     time.Duration `env:"SETTLE_DELAY" envDefault:"2s"`
	StatusEvery     int           `env:"STATUS_EVERY" envDefault:"20"`
	StatusTimestamp bool          `env:"STATUS_TIMESTAMP" envDefault:"true"`
}

// Load reads the configuration from the environment, applying defaults.
func Load() (*Config, error) {
	cfg := &Config{
		MqttCfg:      &MqttConfig{},
		SimulatorCfg: &SimulatorConfig{},
	}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.MqttCfg == nil || c.SimulatorCfg == nil {
		return fmt.Errorf("%w: missing section", ErrInvalidConfig)
	}
	if c.MqttCfg.Host == "" {
		return fmt.Errorf("%w: mqtt host is required", ErrInvalidConfig)
	}
	if c.MqttCfg.QoS < 0 || c.MqttCfg.QoS > 2 {
		return fmt.Errorf("%w: qos must be 0, 1 or 2, got %d", ErrInvalidConfig, c.MqttCfg.QoS)
	}
	if c.SimulatorCfg.Namespace == "" {
		return fmt.Errorf("%w: topic namespace is required", ErrInvalidConfig)
	}
	if c.SimulatorCfg.StatusEvery < 0 {
		return fmt.Errorf("%w: status cadence cannot be negative", ErrInvalidConfig)
	}
	if c.SimulatorCfg.DeviceInterval < 0 || c.SimulatorCfg.RoundInterval < 0 || c.SimulatorCfg.SettleDelay < 0 {
		return fmt.Errorf("%w: intervals cannot be negative", ErrInvalidConfig)
	}
	return nil
}

package cmd

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/anicoll/iot-simulator/internal/pkg/config"
	"github.com/anicoll/iot-simulator/internal/pkg/contxt"
	"github.com/anicoll/iot-simulator/internal/pkg/generator"
	"github.com/anicoll/iot-simulator/internal/pkg/lifecycle"
	"github.com/anicoll/iot-simulator/internal/pkg/message"
	"github.com/anicoll/iot-simulator/internal/pkg/mqtt"
	"github.com/anicoll/iot-simulator/internal/pkg/publisher"
	"github.com/anicoll/iot-simulator/internal/pkg/registry"
	"github.com/anicoll/iot-simulator/internal/pkg/stats"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// SimulatorCommand is the main entry point: it publishes telemetry until interrupted.
func SimulatorCommand(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync() // flushes buffer, if any.
	}()
	zap.ReplaceGlobals(logger)

	reg, err := loadRegistry(cfg)
	if err != nil {
		return err
	}

	runCtx, stop := contxt.WithInterrupt(ctx.Context)
	defer stop()

	logger.Info("connecting to broker", zap.String("host", cfg.MqttCfg.Host))
	return run(runCtx, cfg, mqtt.NewClient(cfg.MqttCfg), reg, logger)
}

// DevicesCommand lists the serial numbers that must be registered in the dashboard.
func DevicesCommand(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	reg, err := loadRegistry(cfg)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(ctx.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SERIAL\tNAME\tTYPE\tPARAMETERS")
	for _, d := range reg.Devices() {
		params := make([]string, 0, len(d.Parameters))
		for _, p := range d.Parameters {
			params = append(params, p.String())
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", d.SerialNumber, d.Name, d.DeviceType, strings.Join(params, ","))
	}
	return w.Flush()
}

func run(ctx context.Context, cfg *config.Config, conn Connection, reg *registry.Registry, logger *zap.Logger) error {
	announce(reg, logger)

	gen := generator.New(generator.GlobalSource(), logger)
	builder := message.New(cfg.SimulatorCfg.Namespace, gen, message.WithStatusTimestamp(cfg.SimulatorCfg.StatusTimestamp))
	driver := publisher.New(conn, reg, builder, cfg.SimulatorCfg, logger)
	manager := lifecycle.New(conn, driver, cfg.SimulatorCfg.SettleDelay, logger)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	eg, egCtx := errgroup.WithContext(ctx)

	if cfg.StatsSchedule != "" {
		reporter, err := stats.New(cfg.StatsSchedule, driver, logger)
		if err != nil {
			return fmt.Errorf("stats schedule: %w", err)
		}
		eg.Go(func() error {
			return reporter.Run(egCtx)
		})
	}

	eg.Go(func() error {
		defer cancel()
		return manager.Run(egCtx)
	})

	return eg.Wait()
}

func announce(reg *registry.Registry, logger *zap.Logger) {
	logger.Info("devices must be registered manually via the dashboard", zap.Int("count", reg.Len()))
	for _, d := range reg.Devices() {
		logger.Info("simulated device", zap.String("serial", d.SerialNumber), zap.String("name", d.Name), zap.String("type", d.DeviceType))
	}
	for serial, params := range reg.UnknownParameters() {
		logger.Warn("device declares parameters without a sensor model; they will not be published",
			zap.String("serial", serial), zap.Any("parameters", params))
	}
}

func loadConfig(ctx *cli.Context) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if ctx.IsSet("mqtt-host") {
		cfg.MqttCfg.Host = ctx.String("mqtt-host")
	}
	if ctx.IsSet("namespace") {
		cfg.SimulatorCfg.Namespace = ctx.String("namespace")
	}
	if ctx.IsSet("devices-file") {
		cfg.DevicesFile = ctx.String("devices-file")
	}
	if ctx.IsSet("round-interval") {
		cfg.SimulatorCfg.RoundInterval = ctx.Duration("round-interval")
	}
	if ctx.IsSet("device-interval") {
		cfg.SimulatorCfg.DeviceInterval = ctx.Duration("device-interval")
	}
	if ctx.IsSet("status-every") {
		cfg.SimulatorCfg.StatusEvery = ctx.Int("status-every")
	}
	if ctx.IsSet("log-level") {
		cfg.LogLevel = ctx.String("log-level")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadRegistry(cfg *config.Config) (*registry.Registry, error) {
	if cfg.DevicesFile == "" {
		return registry.Default(), nil
	}
	return registry.Load(cfg.DevicesFile)
}

func newLogger(level string) (*zap.Logger, error) {
	var err error
	logCfg := zap.NewProductionConfig()

	logCfg.Level, err = zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	logCfg.OutputPaths = []string{"stdout"}
	logCfg.ErrorOutputPaths = []string{"stdout"}
	logCfg.Sampling = nil
	return logCfg.Build(zap.AddCaller(), zap.AddStacktrace(zap.ErrorLevel))
}

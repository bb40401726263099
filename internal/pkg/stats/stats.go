package stats

import (
	"context"

	"github.com/anicoll/iot-simulator/internal/pkg/publisher"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type statsSource interface {
	Stats() publisher.Stats
}

// Reporter logs publish counters on a cron schedule, e.g. "@every 1m".
type Reporter struct {
	cron   *cron.Cron
	src    statsSource
	logger *zap.Logger
}

func New(schedule string, src statsSource, logger *zap.Logger) (*Reporter, error) {
	if logger == nil {
		logger = zap.L()
	}
	r := &Reporter{
		cron:   cron.New(),
		src:    src,
		logger: logger,
	}
	if _, err := r.cron.AddFunc(schedule, r.Report); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Reporter) Report() {
	s := r.src.Stats()
	r.logger.Info("publish stats",
		zap.Uint64("rounds", s.Rounds),
		zap.Uint64("telemetry", s.Telemetry),
		zap.Uint64("status", s.Status),
		zap.Uint64("failures", s.Failures))
}

// Run reports until ctx is done, then waits for a running report to finish.
func (r *Reporter) Run(ctx context.Context) error {
	r.cron.Start()
	<-ctx.Done()
	<-r.cron.Stop().Done()
	r.Report()
	return nil
}

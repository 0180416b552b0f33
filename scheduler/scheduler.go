package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Dosada05/contest-system/services"
)

// Ticker is the periodic driver step, implemented by services.ContestService.
type Ticker interface {
	Tick(ctx context.Context, today time.Time) (*services.TickReport, error)
}

// Scheduler runs the driver tick on a cron schedule. A tick still running
// when the next one is due makes the next one skip.
type Scheduler struct {
	cron    *cron.Cron
	ticker  Ticker
	now     func() time.Time
	timeout time.Duration
	logger  *slog.Logger
	ctx     context.Context
}

func New(spec string, ticker Ticker, loc *time.Location, logger *slog.Logger) (*Scheduler, error) {
	if loc == nil {
		loc = time.UTC
	}
	adapter := cronLogger{logger: logger}
	s := &Scheduler{
		ticker:  ticker,
		now:     func() time.Time { return time.Now().In(loc) },
		timeout: 10 * time.Minute,
		logger:  logger,
		ctx:     context.Background(),
	}
	s.cron = cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(adapter),
		cron.WithChain(cron.Recover(adapter), cron.SkipIfStillRunning(adapter)),
	)
	if _, err := s.cron.AddFunc(spec, func() { s.RunOnce(s.ctx) }); err != nil {
		return nil, fmt.Errorf("invalid tick schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start runs the schedule in the background; ticks use ctx as their parent.
func (s *Scheduler) Start(ctx context.Context) {
	s.ctx = ctx
	s.cron.Start()
	s.logger.Info("tick scheduler started", slog.Time("next_run", s.Next()))
}

// Stop prevents new ticks and waits for a running one to finish or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.logger.Warn("tick still running at shutdown")
	}
}

func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// RunOnce performs one tick for the current day.
func (s *Scheduler) RunOnce(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	report, err := s.ticker.Tick(ctx, s.now())
	if err != nil {
		s.logger.Error("tick failed", slog.Any("error", err))
		return
	}
	if report.Failed > 0 {
		s.logger.Warn("tick left contests behind",
			slog.String("run_id", report.RunID),
			slog.Int("failed", report.Failed),
		)
	}
}

// cronLogger routes cron's own logging into slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append([]interface{}{slog.Any("error", err)}, keysAndValues...)...)
}

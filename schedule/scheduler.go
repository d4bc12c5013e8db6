package schedule

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"golang.org/x/xerrors"
)

// DefaultSpec runs every 12 hours.
const DefaultSpec = "0 */12 * * *"

// Scheduler runs a job on a standard five-field cron spec. A trigger that
// fires while the previous run is still going is skipped.
type Scheduler struct {
	spec   string
	sched  cron.Schedule
	logger zerolog.Logger
	cron   *cron.Cron

	// ctx is the context passed to Run. Jobs only fire after it is set.
	ctx context.Context
}

// New parses spec and builds a Scheduler running job at each trigger.
func New(spec string, logger zerolog.Logger, job func(context.Context) error) (*Scheduler, error) {
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, xerrors.Errorf("failed to parse schedule %q: %w", spec, err)
	}

	cl := cronLogger{logger: logger}
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	s := &Scheduler{spec: spec, sched: sched, logger: logger, cron: c}

	c.Schedule(sched, cron.FuncJob(func() {
		ctx := logger.WithContext(s.ctx)
		if err := job(ctx); err != nil {
			logger.Error().Err(err).Str("schedule", spec).Msg("scheduled run failed")
		}
	}))

	return s, nil
}

// Next returns the first trigger time after from.
func (s *Scheduler) Next(from time.Time) time.Time {
	return s.sched.Next(from)
}

// Run starts the scheduler and blocks until ctx is done. Jobs run with ctx,
// so canceling it also interrupts a running job, which Run waits for before
// returning.
func (s *Scheduler) Run(ctx context.Context) error {
	s.ctx = ctx
	s.cron.Start()
	s.logger.Info().Str("schedule", s.spec).Time("next", s.Next(time.Now())).Msg("scheduler started")

	<-ctx.Done()

	<-s.cron.Stop().Done()
	s.logger.Info().Msg("scheduler stopped")

	return nil
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}

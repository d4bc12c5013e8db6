package etl

import (
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/xerrors"

	"go.plantopia.dev/etl/schedule"
	"go.plantopia.dev/etl/staging"
)

// Option configures Pipeline.
type Option interface {
	apply(*Pipeline) error
}

type optionFunc func(*Pipeline) error

func (f optionFunc) apply(p *Pipeline) error {
	return f(p)
}

// WithLogLevel sets the log level such as "debug" or "info".
func WithLogLevel(level string) Option {
	return optionFunc(func(p *Pipeline) error {
		l, err := zerolog.ParseLevel(level)
		if err != nil {
			return xerrors.Errorf("failed to parse log level %q: %w", level, err)
		}
		p.logLevel = l
		return nil
	})
}

// WithPrettyLogging configures Pipeline to print human friendly logs.
func WithPrettyLogging() Option {
	return optionFunc(func(p *Pipeline) error {
		p.prettyLogging = true
		return nil
	})
}

// WithConcurrency sets how many tables are loaded in parallel.
func WithConcurrency(n int) Option {
	return optionFunc(func(p *Pipeline) error {
		if n < 1 {
			return xerrors.Errorf("concurrency must be positive, got %d", n)
		}
		p.concurrency = n
		return nil
	})
}

// WithRetry sets how failed stages and table loads are retried.
func WithRetry(r schedule.Retry) Option {
	return optionFunc(func(p *Pipeline) error {
		if r.Retries < 0 || r.Delay < 0 {
			return xerrors.Errorf("invalid retry %+v", r)
		}
		p.retry = r
		return nil
	})
}

// WithSource sets the database Extract reads from.
func WithSource(s Source) Option {
	return optionFunc(func(p *Pipeline) error {
		p.source = s
		return nil
	})
}

// WithWarehouse sets the destination Load writes to.
func WithWarehouse(w Warehouse) Option {
	return optionFunc(func(p *Pipeline) error {
		p.warehouse = w
		return nil
	})
}

// WithStaging replaces the default staging directories.
func WithStaging(s *staging.Store) Option {
	return optionFunc(func(p *Pipeline) error {
		p.store = s
		return nil
	})
}

// WithNotifier reports every stage result to n.
func WithNotifier(n Notifier) Option {
	return optionFunc(func(p *Pipeline) error {
		p.notifier = n
		return nil
	})
}

// WithClock sets the source of processing time.
func WithClock(now func() time.Time) Option {
	return optionFunc(func(p *Pipeline) error {
		p.now = now
		return nil
	})
}

package etl

import (
	"context"
	"os"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"

	"go.plantopia.dev/etl/frame"
	"go.plantopia.dev/etl/schedule"
	"go.plantopia.dev/etl/staging"
	"go.plantopia.dev/etl/transform"
)

var (
	// ErrNoSource is returned by Extract when no Source is configured.
	ErrNoSource = xerrors.New("no source configured")

	// ErrNoWarehouse is returned by Load when no Warehouse is configured.
	ErrNoWarehouse = xerrors.New("no warehouse configured")

	// ErrNothingToLoad is returned by Load when the final area is empty.
	ErrNothingToLoad = xerrors.New("no final tables to load")
)

// Source lists and reads whole tables from the operational database.
type Source interface {
	ListTables(context.Context) ([]string, error)
	ReadTable(context.Context, string) (*frame.Table, error)
}

// Warehouse replaces a destination table with t.
type Warehouse interface {
	Load(ctx context.Context, name string, t *frame.Table) error
}

// Stage names a pipeline stage.
type Stage string

const (
	StageExtract   Stage = "extract"
	StageTransform Stage = "transform"
	StageLoad      Stage = "load"
)

// Pipeline runs Extract, Transform and Load over the staging areas.
type Pipeline struct {
	source    Source
	warehouse Warehouse
	store     *staging.Store
	notifier  Notifier

	retry       schedule.Retry
	concurrency int
	now         func() time.Time

	logLevel      zerolog.Level
	prettyLogging bool
	logger        zerolog.Logger
}

// New builds a Pipeline. By default staging lives in the working directory
// and failed tasks are retried once after a minute.
func New(opts ...Option) (*Pipeline, error) {
	p := &Pipeline{
		store:       staging.New(afero.NewOsFs(), "data_source_csv", "data_source_dimensional", "data_source_to_load"),
		retry:       schedule.DefaultRetry,
		concurrency: 4,
		now:         time.Now,
		logLevel:    zerolog.InfoLevel,
	}

	for _, o := range opts {
		if err := o.apply(p); err != nil {
			return nil, err
		}
	}

	if p.prettyLogging {
		p.logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(p.logLevel).With().Timestamp().Logger()
	} else {
		p.logger = zerolog.New(os.Stderr).Level(p.logLevel).With().Timestamp().Logger()
	}

	return p, nil
}

// Logger returns the pipeline logger.
func (p *Pipeline) Logger() zerolog.Logger {
	return p.logger
}

func (p *Pipeline) context(ctx context.Context) context.Context {
	if log.Ctx(ctx).GetLevel() == zerolog.Disabled {
		ctx = p.logger.WithContext(ctx)
	}
	if _, ok := processingTimeFrom(ctx); !ok {
		ctx = withProcessingTime(ctx, p.now().UTC())
	}
	return ctx
}

// Run executes Extract, Transform and Load in order and stops at the first
// failing stage. Every stage sees the same processing time.
func (p *Pipeline) Run(ctx context.Context) error {
	ctx = p.context(ctx)

	processed, _ := processingTimeFrom(ctx)
	log.Ctx(ctx).Info().Time("processing_time", processed).Msg("pipeline started")
	started := time.Now()

	for _, stage := range []func(context.Context) error{p.Extract, p.Transform, p.Load} {
		if err := stage(ctx); err != nil {
			return err
		}
	}

	log.Ctx(ctx).Info().Dur("elapsed", time.Since(started)).Msg("pipeline finished")

	return nil
}

// Extract reads every source table, cleanses and normalizes it, writes it
// to the raw area and copies it to the dimensional area as dim_<table>.
func (p *Pipeline) Extract(ctx context.Context) error {
	return p.runStage(ctx, StageExtract, func(ctx context.Context, r *Result) error {
		if p.source == nil {
			return ErrNoSource
		}

		return p.retry.Do(ctx, string(StageExtract), func(ctx context.Context) error {
			r.Tables, r.Rows = 0, 0
			return p.extract(ctx, r)
		})
	})
}

func (p *Pipeline) extract(ctx context.Context, r *Result) error {
	now, _ := processingTimeFrom(ctx)

	names, err := p.source.ListTables(ctx)
	if err != nil {
		return xerrors.Errorf("failed to list source tables: %w", err)
	}

	cl := transform.ForDimension(now)
	for _, name := range names {
		t, err := p.source.ReadTable(ctx, name)
		if err != nil {
			return xerrors.Errorf("failed to extract %s: %w", name, err)
		}

		t, _ = cl.Cleanse(ctx, t)
		t = transform.NormalizeTypes(t, now)

		if err := p.store.Write(ctx, staging.Raw, t); err != nil {
			return err
		}
		if err := p.store.Write(ctx, staging.Dimensional, t.Named(transform.DimensionalName(name))); err != nil {
			return err
		}

		r.Tables++
		r.Rows += t.Len()
	}

	return nil
}

// Transform reads the dimensional area, builds every dimension and fact
// table and writes them to the final area.
func (p *Pipeline) Transform(ctx context.Context) error {
	return p.runStage(ctx, StageTransform, func(ctx context.Context, r *Result) error {
		return p.retry.Do(ctx, string(StageTransform), func(ctx context.Context) error {
			r.Tables, r.Rows = 0, 0
			return p.transform(ctx, r)
		})
	})
}

func (p *Pipeline) transform(ctx context.Context, r *Result) error {
	now, _ := processingTimeFrom(ctx)

	staged, err := p.store.ReadAll(ctx, staging.Dimensional)
	if err != nil {
		return xerrors.Errorf("failed to read dimensional tables: %w", err)
	}

	out, err := transform.Run(ctx, transform.Tables(staged), now)
	if err != nil {
		return xerrors.Errorf("failed to transform: %w", err)
	}

	for _, name := range transform.Outputs {
		t := out[name]
		if err := p.store.Write(ctx, staging.Final, t); err != nil {
			return err
		}
		r.Tables++
		r.Rows += t.Len()
	}

	return nil
}

// Load loads every final table into the warehouse. Each file is one unit of
// work, retried on its own, and up to the configured concurrency run in
// parallel.
func (p *Pipeline) Load(ctx context.Context) error {
	return p.runStage(ctx, StageLoad, func(ctx context.Context, r *Result) error {
		if p.warehouse == nil {
			return ErrNoWarehouse
		}
		return p.load(ctx, r)
	})
}

func (p *Pipeline) load(ctx context.Context, r *Result) error {
	names, err := p.store.List(staging.Final)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		return ErrNothingToLoad
	}

	var tables, rows atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for _, name := range names {
		g.Go(func() error {
			return p.retry.Do(ctx, "load "+name, func(ctx context.Context) error {
				t, err := p.store.Read(ctx, staging.Final, name)
				if err != nil {
					return err
				}
				if err := p.warehouse.Load(ctx, name, t); err != nil {
					return xerrors.Errorf("failed to load %s: %w", name, err)
				}
				tables.Add(1)
				rows.Add(int64(t.Len()))
				return nil
			})
		})
	}

	err = g.Wait()
	r.Tables, r.Rows = int(tables.Load()), int(rows.Load())

	return err
}

// runStage logs, times and reports a stage.
func (p *Pipeline) runStage(ctx context.Context, stage Stage, fn func(context.Context, *Result) error) error {
	ctx = p.context(ctx)
	l := log.Ctx(ctx).With().Str("stage", string(stage)).Logger()
	ctx = l.WithContext(ctx)

	l.Info().Msg("stage started")
	started := time.Now()

	r := &Result{Stage: stage}
	err := fn(ctx, r)
	r.Elapsed = time.Since(started)
	r.Error = err

	if err != nil {
		l.Error().Err(err).Msg("stage failed")
		err = xerrors.Errorf("%s failed: %w", stage, err)
	} else {
		l.Info().Int("tables", r.Tables).Int("rows", r.Rows).Dur("elapsed", r.Elapsed).Msg("stage finished")
	}

	if p.notifier != nil {
		if nerr := p.notifier.Notify(ctx, r); nerr != nil {
			l.Warn().Err(nerr).Msg("failed to notify")
		}
	}

	return err
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"
	"golang.org/x/xerrors"

	"go.plantopia.dev/etl"
	"go.plantopia.dev/etl/config"
	"go.plantopia.dev/etl/schedule"
	"go.plantopia.dev/etl/source"
	"go.plantopia.dev/etl/staging"
	"go.plantopia.dev/etl/warehouse"
)

var version = "dev"

type needs struct {
	source    bool
	warehouse bool
}

type command func(ctx context.Context, cfg *config.Config, p *etl.Pipeline) error

func stage(fn func(*etl.Pipeline, context.Context) error) command {
	return func(ctx context.Context, _ *config.Config, p *etl.Pipeline) error {
		return fn(p, ctx)
	}
}

func scheduled(ctx context.Context, cfg *config.Config, p *etl.Pipeline) error {
	s, err := schedule.New(cfg.Schedule.Spec, p.Logger(), p.Run)
	if err != nil {
		return err
	}
	return s.Run(ctx)
}

func main() {
	var envFile string
	var isDebug bool

	action := func(n needs, run command) cli.ActionFunc {
		return func(c *cli.Context) error {
			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := config.Load(envFile)
			if err != nil {
				return err
			}
			if isDebug {
				cfg.Log.Level = "debug"
			}

			p, closer, err := build(ctx, cfg, n)
			if err != nil {
				return err
			}
			defer closer()

			return run(p.Logger().WithContext(ctx), cfg, p)
		}
	}

	app := &cli.App{
		Name:    "plantetl",
		Version: version,
		Usage:   "Extract Plantopia's database into a star schema and load it into BigQuery",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "env-file",
				Value:       ".env",
				Usage:       "read settings from this dotenv file when it exists",
				Destination: &envFile,
			},
			&cli.BoolFlag{
				Name:        "debug",
				Value:       false,
				Usage:       "show debug information",
				Destination: &isDebug,
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "extract",
				Usage:  "copy every source table into the raw and dimensional staging areas",
				Action: action(needs{source: true}, stage((*etl.Pipeline).Extract)),
			},
			{
				Name:   "transform",
				Usage:  "build the dimension and fact tables from the dimensional area",
				Action: action(needs{}, stage((*etl.Pipeline).Transform)),
			},
			{
				Name:   "load",
				Usage:  "replace the warehouse tables with the final area",
				Action: action(needs{warehouse: true}, stage((*etl.Pipeline).Load)),
			},
			{
				Name:   "run",
				Usage:  "extract, transform and load once",
				Action: action(needs{source: true, warehouse: true}, stage((*etl.Pipeline).Run)),
			},
			{
				Name:   "schedule",
				Usage:  "run the pipeline on the configured cron schedule",
				Action: action(needs{source: true, warehouse: true}, scheduled),
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "plantetl: %v\n", err)
		os.Exit(1)
	}
}

// build wires the pipeline and returns a func closing every client it opened.
func build(ctx context.Context, cfg *config.Config, n needs) (*etl.Pipeline, func(), error) {
	var closers []func() error
	closer := func() {
		for _, c := range closers {
			_ = c()
		}
	}
	fail := func(err error) (*etl.Pipeline, func(), error) {
		closer()
		return nil, nil, err
	}

	opts := []etl.Option{
		etl.WithLogLevel(cfg.Log.Level),
		etl.WithStaging(staging.New(afero.NewOsFs(), cfg.Staging.RawDir, cfg.Staging.DimensionalDir, cfg.Staging.FinalDir)),
		etl.WithRetry(schedule.Retry{Retries: cfg.Schedule.Retries, Delay: cfg.Schedule.RetryDelay}),
		etl.WithConcurrency(cfg.Warehouse.Concurrency),
	}
	if cfg.Log.Pretty {
		opts = append(opts, etl.WithPrettyLogging())
	}
	if cfg.Slack.Enabled() {
		opts = append(opts, etl.WithNotifier(&etl.SlackNotifier{
			Channel:  cfg.Slack.Channel,
			Token:    cfg.Slack.Token,
			Username: "plantetl",
		}))
	}

	if n.source {
		if err := cfg.ValidateDatabase(); err != nil {
			return fail(err)
		}
		db, err := source.Open(ctx, source.Config{
			Username: cfg.Database.User,
			Password: cfg.Database.Password,
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			Database: cfg.Database.Name,
		})
		if err != nil {
			return fail(err)
		}
		closers = append(closers, db.Close)
		opts = append(opts, etl.WithSource(db))
	}

	if n.warehouse {
		if err := cfg.ValidateWarehouse(); err != nil {
			return fail(err)
		}

		var lopts []warehouse.LoaderOption
		if cfg.Warehouse.Bucket != "" {
			u, err := warehouse.NewUploader(ctx, cfg.Warehouse.Bucket, cfg.Staging.FinalDir, cfg.Warehouse.ServiceAccount)
			if err != nil {
				return fail(err)
			}
			lopts = append(lopts, warehouse.WithUploader(u))
		}

		l, err := warehouse.NewLoader(ctx, cfg.Warehouse.ProjectID, cfg.Warehouse.DatasetID, cfg.Warehouse.ServiceAccount, lopts...)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, l.Close)
		opts = append(opts, etl.WithWarehouse(l))
	}

	p, err := etl.New(opts...)
	if err != nil {
		return fail(xerrors.Errorf("failed to build pipeline: %w", err))
	}

	return p, closer, nil
}

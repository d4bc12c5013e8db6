/*

Package etl is the batch pipeline moving Plantopia's operational MySQL
database into a BigQuery star schema.

A run has three stages sharing CSV staging directories.

	Extract    every source table -> cleanse -> raw/<table>.csv, dim/dim_<table>.csv
	Transform  dim/*.csv -> renames and merges -> final/<dim_|fact_>*.csv
	Load       final/*.csv -> one WRITE_TRUNCATE load job per file

Getting started

	p, err := etl.New(
		etl.WithSource(db),        // *source.DB
		etl.WithWarehouse(loader), // *warehouse.Loader
		etl.WithNotifier(&etl.SlackNotifier{
			Token:   os.Getenv("SLACK_TOKEN"),
			Channel: os.Getenv("SLACK_CHANNEL"),
		}),
	)
	if err != nil {
		panic(err)
	}

	if err := p.Run(ctx); err != nil {
		log.Fatal(err)
	}

The plantetl command wires the same pipeline from the environment and runs
single stages, a full run, or a twelve-hourly schedule.

*/
package etl

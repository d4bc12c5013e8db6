package warehouse

import (
	"bytes"
	"context"
	"io"

	"cloud.google.com/go/bigquery"
	"github.com/rs/zerolog/log"
	"golang.org/x/xerrors"
	"google.golang.org/api/option"

	"go.plantopia.dev/etl/frame"
)

// Loader replaces BigQuery tables in one dataset.
type Loader struct {
	client   *bigquery.Client
	dataset  string
	uploader *Uploader
}

// LoaderOption configures Loader.
type LoaderOption func(*Loader)

// WithUploader makes Loader stage files in Cloud Storage and load them by
// gs:// reference instead of streaming the file into the load job.
func WithUploader(u *Uploader) LoaderOption {
	return func(l *Loader) {
		l.uploader = u
	}
}

func clientOptions(credentialsFile string) []option.ClientOption {
	if credentialsFile == "" {
		return nil
	}
	return []option.ClientOption{option.WithCredentialsFile(credentialsFile)}
}

// NewLoader builds a Loader. An empty credentialsFile uses application
// default credentials.
func NewLoader(ctx context.Context, project, dataset, credentialsFile string, opts ...LoaderOption) (*Loader, error) {
	bq, err := bigquery.NewClient(ctx, project, clientOptions(credentialsFile)...)
	if err != nil {
		return nil, xerrors.Errorf("failed to build bigquery client for %s: %w", project, err)
	}

	l := &Loader{client: bq, dataset: dataset}
	for _, o := range opts {
		o(l)
	}

	return l, nil
}

// Close closes the underlying clients.
func (l *Loader) Close() error {
	if l.uploader != nil {
		if err := l.uploader.Close(); err != nil {
			return err
		}
	}
	return l.client.Close()
}

func fileConfig(schema bigquery.Schema) bigquery.FileConfig {
	fc := bigquery.FileConfig{SourceFormat: bigquery.CSV, Schema: schema}
	fc.SkipLeadingRows = 1
	// Cleansed descriptions keep their line breaks inside quoted fields.
	fc.AllowQuotedNewlines = true
	return fc
}

// newLoadSource returns a gs:// reference when uri is set and a reader
// source over r otherwise.
func newLoadSource(r io.Reader, uri string, schema bigquery.Schema) bigquery.LoadSource {
	if uri != "" {
		ref := bigquery.NewGCSReference(uri)
		ref.FileConfig = fileConfig(schema)
		return ref
	}

	rs := bigquery.NewReaderSource(r)
	rs.FileConfig = fileConfig(schema)
	return rs
}

// Load truncates the table called name and loads t into it.
func (l *Loader) Load(ctx context.Context, name string, t *frame.Table) error {
	logger := log.Ctx(ctx).With().Str("table", name).Logger()

	buf := &bytes.Buffer{}
	if err := frame.WriteCSV(buf, t); err != nil {
		return xerrors.Errorf("failed to write csv for %s: %w", name, err)
	}

	var uri string
	if l.uploader != nil {
		var err error
		if uri, err = l.uploader.Upload(ctx, name+".csv", buf); err != nil {
			return xerrors.Errorf("failed to stage %s: %w", name, err)
		}
	}

	schema := InferSchema(t)
	loader := l.client.Dataset(l.dataset).Table(name).LoaderFrom(newLoadSource(buf, uri, schema))
	loader.WriteDisposition = bigquery.WriteTruncate
	loader.CreateDisposition = bigquery.CreateIfNeeded

	job, err := loader.Run(ctx)
	if err != nil {
		return xerrors.Errorf("failed to run bigquery load job for %s: %w", name, err)
	}
	logger.Debug().Str("job", job.ID()).Msg("load job started")

	status, err := job.Wait(ctx)
	if err != nil {
		return xerrors.Errorf("failed to wait load job %s: %w", job.ID(), err)
	}

	if err := status.Err(); err != nil {
		logger.Error().Interface("errors", status.Errors).Msg("load job failed")
		return xerrors.Errorf("failed to load %s: %w", name, err)
	}

	logger.Info().Int("rows", t.Len()).Int("fields", len(schema)).Msg("loaded table")

	return nil
}

package warehouse

import (
	"context"
	"fmt"
	"io"
	"path"

	"cloud.google.com/go/storage"
	"github.com/rs/zerolog/log"
	"golang.org/x/xerrors"
)

// Uploader stages CSV files in a Cloud Storage bucket.
type Uploader struct {
	storage *storage.Client
	bucket  string
	prefix  string
}

// NewUploader builds an Uploader writing under gs://bucket/prefix.
func NewUploader(ctx context.Context, bucket, prefix, credentialsFile string) (*Uploader, error) {
	s, err := storage.NewClient(ctx, clientOptions(credentialsFile)...)
	if err != nil {
		return nil, xerrors.Errorf("failed to build storage client for %s: %w", bucket, err)
	}

	return &Uploader{storage: s, bucket: bucket, prefix: prefix}, nil
}

// URI returns the gs:// path an object name is uploaded to.
func (u *Uploader) URI(name string) string {
	return fmt.Sprintf("gs://%s/%s", u.bucket, u.object(name))
}

func (u *Uploader) object(name string) string {
	return path.Join(u.prefix, name)
}

// Upload copies r to the named object and returns its gs:// URI.
func (u *Uploader) Upload(ctx context.Context, name string, r io.Reader) (string, error) {
	w := u.storage.Bucket(u.bucket).Object(u.object(name)).NewWriter(ctx)
	w.ContentType = "text/csv"

	n, err := io.Copy(w, r)
	if err != nil {
		if cerr := w.Close(); cerr != nil {
			log.Ctx(ctx).Debug().Err(cerr).Str("uri", u.URI(name)).Msg("failed to close aborted upload")
		}
		return "", xerrors.Errorf("failed to write %s: %w", u.URI(name), err)
	}

	if err := w.Close(); err != nil {
		return "", xerrors.Errorf("failed to finalize %s: %w", u.URI(name), err)
	}

	log.Ctx(ctx).Debug().Str("uri", u.URI(name)).Int64("bytes", n).Msg("uploaded staging file")

	return u.URI(name), nil
}

// Close closes the storage client.
func (u *Uploader) Close() error {
	return u.storage.Close()
}

// Package schedule triggers pipeline runs on a cron schedule and retries
// failed tasks after a fixed delay.
package schedule

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/xerrors"
)

// Retry reruns a failed task a fixed number of times with a fixed delay.
type Retry struct {
	Retries int
	Delay   time.Duration
}

// DefaultRetry is one retry after one minute.
var DefaultRetry = Retry{Retries: 1, Delay: time.Minute}

// Do calls fn until it succeeds or the retries are used up, and returns the
// last error. Waiting between attempts stops when ctx is done.
func (r Retry) Do(ctx context.Context, task string, fn func(context.Context) error) error {
	l := log.Ctx(ctx)

	var err error
	for attempt := 0; attempt <= r.Retries; attempt++ {
		if attempt > 0 {
			l.Warn().Err(err).Str("task", task).Int("attempt", attempt+1).Dur("delay", r.Delay).Msg("retrying task")
			select {
			case <-time.After(r.Delay):
			case <-ctx.Done():
				return xerrors.Errorf("%s canceled while waiting to retry: %w", task, ctx.Err())
			}
		}

		if err = fn(ctx); err == nil {
			return nil
		}
	}

	return xerrors.Errorf("%s failed after %d attempts: %w", task, r.Retries+1, err)
}

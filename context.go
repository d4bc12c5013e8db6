package etl

import (
	"context"
	"time"
)

type contextKey string

const (
	processingTimeKey contextKey = "processingTime"
)

// withProcessingTime fixes the timestamp used to fill missing and
// unparsable times for one run.
func withProcessingTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, processingTimeKey, t)
}

func processingTimeFrom(ctx context.Context) (time.Time, bool) {
	t, ok := ctx.Value(processingTimeKey).(time.Time)
	return t, ok
}

package schedule_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/xerrors"

	"go.plantopia.dev/etl/schedule"
)

func TestRetry_Do(t *testing.T) {
	t.Parallel()

	errFlaky := errors.New("flaky")

	cases := []struct {
		name     string
		failures int
		retries  int
		wantErr  bool
		wantRuns int
	}{
		{name: "success", failures: 0, retries: 1, wantRuns: 1},
		{name: "one failure is retried", failures: 1, retries: 1, wantRuns: 2},
		{name: "retries are used up", failures: 5, retries: 1, wantErr: true, wantRuns: 2},
		{name: "no retries", failures: 1, retries: 0, wantErr: true, wantRuns: 1},
	}

	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()

			runs := 0
			r := schedule.Retry{Retries: c.retries, Delay: time.Millisecond}
			err := r.Do(context.Background(), "extract", func(context.Context) error {
				runs++
				if runs <= c.failures {
					return errFlaky
				}
				return nil
			})

			if c.wantErr != (err != nil) {
				t.Errorf("unexpected error: %v", err)
			}
			if c.wantErr && !xerrors.Is(err, errFlaky) {
				t.Errorf("last error should be wrapped, but %v", err)
			}
			if runs != c.wantRuns {
				t.Errorf("task should run %d times, but %d", c.wantRuns, runs)
			}
		})
	}
}

func TestRetry_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runs := 0
	r := schedule.Retry{Retries: 3, Delay: time.Hour}
	err := r.Do(ctx, "load", func(context.Context) error {
		runs++
		return errors.New("down")
	})

	if !xerrors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled but %v", err)
	}
	if runs != 1 {
		t.Errorf("task should run once, but %d", runs)
	}
}

func noop(context.Context) error { return nil }

func TestScheduler_Next(t *testing.T) {
	t.Parallel()

	s, err := schedule.New(schedule.DefaultSpec, zerolog.Nop(), noop)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	from := time.Date(2024, 6, 1, 0, 30, 0, 0, time.UTC)
	if next := s.Next(from); !next.Equal(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("next run should be at noon, but %s", next)
	}

	from = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	if next := s.Next(from); !next.Equal(time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("next run should be at midnight, but %s", next)
	}
}

func TestScheduler_BadSpec(t *testing.T) {
	t.Parallel()

	if _, err := schedule.New("every twelve hours", zerolog.Nop(), noop); err == nil {
		t.Error("a malformed spec should fail")
	}
}

func TestScheduler_Run(t *testing.T) {
	t.Parallel()

	s, err := schedule.New(schedule.DefaultSpec, zerolog.Nop(), noop)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Unexpected error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Error("Run should return after the context is canceled")
	}
}

func TestScheduler_RunCancelsJob(t *testing.T) {
	t.Parallel()

	var once sync.Once
	started := make(chan struct{})
	jobErr := make(chan error, 1)
	job := func(ctx context.Context) error {
		once.Do(func() { close(started) })
		<-ctx.Done()
		select {
		case jobErr <- ctx.Err():
		default:
		}
		return ctx.Err()
	}

	s, err := schedule.New("@every 1s", zerolog.Nop(), job)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("job should be triggered")
	}

	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run should return once the running job sees the cancellation")
	}

	if err := <-jobErr; !errors.Is(err, context.Canceled) {
		t.Errorf("job context should be canceled, but %v", err)
	}
}

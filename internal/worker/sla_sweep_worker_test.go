package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-sla/internal/service"
)

type blockingSweeper struct {
	started chan struct{}
	release chan struct{}
	calls   int
}

func (s *blockingSweeper) Sweep(ctx context.Context) (service.SweepResult, error) {
	s.calls++
	if s.started != nil {
		close(s.started)
	}
	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
			return service.SweepResult{}, ctx.Err()
		}
	}
	return service.SweepResult{Checked: 3, Changed: 1}, nil
}

func TestNewSweepWorker_InvalidSchedule(t *testing.T) {
	_, err := NewSweepWorker(&blockingSweeper{}, "every now and then", time.UTC, nil)
	assert.Error(t, err)
}

func TestSweepWorker_RunOnce(t *testing.T) {
	sweeper := &blockingSweeper{}
	w, err := NewSweepWorker(sweeper, "*/10 * * * *", time.UTC, nil)
	require.NoError(t, err)

	res, err := w.RunOnce(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 3, res.Checked)
	assert.Equal(t, 1, sweeper.calls)
}

func TestSweepWorker_SkipsOverlap(t *testing.T) {
	sweeper := &blockingSweeper{started: make(chan struct{}), release: make(chan struct{})}
	w, err := NewSweepWorker(sweeper, "*/10 * * * *", time.UTC, nil)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := w.RunOnce(context.Background())
		done <- err
	}()
	<-sweeper.started

	_, err = w.RunOnce(context.Background())
	assert.ErrorIs(t, err, ErrSweepInProgress)

	close(sweeper.release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, sweeper.calls)
}

func TestSweepWorker_ScheduleUsesLocation(t *testing.T) {
	loc, err := time.LoadLocation("America/Los_Angeles")
	require.NoError(t, err)
	w, err := NewSweepWorker(&blockingSweeper{}, "0 9 * * *", loc, nil)
	require.NoError(t, err)

	w.Start()
	defer func() { require.NoError(t, w.Stop(context.Background())) }()

	next := w.Next().In(loc)
	assert.Equal(t, 9, next.Hour())
	assert.Equal(t, 0, next.Minute())
}

func TestSweepWorker_AddJob(t *testing.T) {
	w, err := NewSweepWorker(&blockingSweeper{}, "*/10 * * * *", time.UTC, nil)
	require.NoError(t, err)

	assert.NoError(t, w.AddJob("@daily", "calendar_reload", func() error { return nil }))
	assert.Error(t, w.AddJob("not cron", "calendar_reload", func() error { return errors.New("x") }))
}

func TestSweepWorker_StopCancelsInFlightSweep(t *testing.T) {
	sweeper := &blockingSweeper{started: make(chan struct{}), release: make(chan struct{})}
	w, err := NewSweepWorker(sweeper, "@every 1h", time.UTC, nil)
	require.NoError(t, err)
	w.Start()

	done := make(chan struct{})
	go func() {
		w.scheduled()
		close(done)
	}()
	<-sweeper.started

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, w.Stop(ctx))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("in-flight sweep was not cancelled")
	}
}

func TestSweepWorker_JobsRunWithoutScheduledSweep(t *testing.T) {
	sweeper := &blockingSweeper{}
	w, err := NewSweepWorker(sweeper, "", time.UTC, nil)
	require.NoError(t, err)

	ran := make(chan struct{}, 1)
	require.NoError(t, w.AddJob("@every 1s", "calendar_reload", func() error {
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	}))
	w.Start()
	defer func() { require.NoError(t, w.Stop(context.Background())) }()

	assert.True(t, w.Next().IsZero())
	select {
	case <-ran:
	case <-time.After(3 * time.Second):
		t.Fatal("calendar reload job never ran")
	}
	assert.Zero(t, sweeper.calls)
}

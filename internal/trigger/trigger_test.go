package trigger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/xtxerr/rcaeda/internal/errors"
	"github.com/xtxerr/rcaeda/internal/testutil"
)

func TestNewRejectsBadSchedule(t *testing.T) {
	_, err := New("every half hour", func(context.Context) {})
	if !errors.Is(err, errors.ErrInvalidConfig) {
		t.Fatalf("error = %v, want ErrInvalidConfig", err)
	}
}

func TestNextHalfHour(t *testing.T) {
	tr, err := New("*/30 * * * *", func(context.Context) {})
	if err != nil {
		t.Fatal(err)
	}
	now := time.Date(2024, 3, 1, 10, 7, 0, 0, time.UTC)
	if got, want := tr.Next(now), time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("Next = %v, want %v", got, want)
	}
	if got, want := tr.Next(time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)), time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("Next = %v, want %v", got, want)
	}
}

func TestRunNowSkipsWhileRunning(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	tr, err := New("*/30 * * * *", func(context.Context) {
		close(started)
		<-release
	})
	if err != nil {
		t.Fatal(err)
	}

	first := make(chan struct{})
	go func() {
		tr.RunNow()
		close(first)
	}()
	<-started

	// a second run while the first is active is dropped
	tr.RunNow()
	fired, runs, skipped := tr.Stats()
	if fired != 2 || runs != 1 || skipped != 1 {
		t.Errorf("Stats = fired %d runs %d skipped %d, want 2 1 1", fired, runs, skipped)
	}

	close(release)
	<-first
}

func TestStopCancelsRun(t *testing.T) {
	started := make(chan struct{})
	tr, err := New("*/30 * * * *", func(ctx context.Context) {
		close(started)
		<-ctx.Done()
	})
	if err != nil {
		t.Fatal(err)
	}
	tr.Start(context.Background())

	go tr.RunNow()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tr.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestParentCancelStopsRun(t *testing.T) {
	done := make(chan struct{})
	tr, err := New("*/30 * * * *", func(ctx context.Context) {
		<-ctx.Done()
		close(done)
	})
	if err != nil {
		t.Fatal(err)
	}

	parent, cancel := context.WithCancel(context.Background())
	tr.Start(parent)
	go tr.RunNow()
	cancel()

	err = testutil.WithTimeout(5*time.Second, func() error {
		<-done
		return nil
	})
	if err != nil {
		t.Fatalf("run not cancelled by parent context: %v", err)
	}
	_ = tr.Stop(context.Background())
}

func TestRunNowCountsRuns(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	tr, err := New("*/30 * * * *", func(context.Context) {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		go tr.RunNow()
	}
	// every tick either ran the job or was skipped
	err = testutil.Eventually(5*time.Second, 5*time.Millisecond, func() bool {
		fired, runs, skipped := tr.Stats()
		mu.Lock()
		defer mu.Unlock()
		return fired == 3 && runs+skipped == 3 && int64(calls) == runs
	})
	if err != nil {
		t.Fatal(err)
	}
}

package scheduler

import (
	"bytes"
	"context"
	"errors"
	"log"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/avast/retry-go/v4"
)

type countingRefresher struct {
	calls atomic.Int32
}

func (r *countingRefresher) Refresh(context.Context) error {
	r.calls.Add(1)
	return nil
}

func TestDisabledScheduler(t *testing.T) {
	target := &countingRefresher{}
	s := New(0, target)

	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	s.Stop()

	if n := target.calls.Load(); n != 0 {
		t.Fatalf("expected no refreshes, got %d", n)
	}
}

func TestSchedulerRefreshesPeriodically(t *testing.T) {
	target := &countingRefresher{}
	s := New(20*time.Millisecond, target)

	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Stop()

	err := retry.Do(func() error {
		if target.calls.Load() < 2 {
			return errors.New("waiting for refreshes")
		}
		return nil
	},
		retry.Attempts(100),
		retry.Delay(20*time.Millisecond),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		t.Fatal(err)
	}
}

type failingRefresher struct{}

func (failingRefresher) Refresh(context.Context) error { return errors.New("upstream down") }

func TestFailedRefreshIsLoggedAsError(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })

	New(time.Minute, failingRefresher{}).run()

	out := buf.String()
	if !strings.Contains(out, "ERROR: scheduler: refresh failed: upstream down") {
		t.Fatalf("unexpected log output %q", out)
	}
}

package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"FinSight/internal/domain/models"
	drepo "FinSight/internal/domain/repository"
	domservice "FinSight/internal/domain/service"
)

func newTestCascade(t *testing.T, debounce time.Duration, backends ...domservice.WakeWordBackend) (*WakeWordCascade, *fakeMetrics) {
	t.Helper()
	m := newFakeMetrics()
	return NewWakeWordCascade(backends, debounce, m, nil, newTestLogger(t)), m
}

func statusOf(t *testing.T, c *WakeWordCascade, name string) models.BackendStatus {
	t.Helper()
	for _, st := range c.Statuses() {
		if st.Name == name {
			return st
		}
	}
	t.Fatalf("no status for backend %q", name)
	return models.BackendStatus{}
}

func TestCascadeActiveBackendShadowsLaterOnes(t *testing.T) {
	a := newFakeBackend("a")
	b := newFakeBackend("b")
	c, _ := newTestCascade(t, time.Second, a, b)

	c.Start(context.Background())
	defer c.Stop(context.Background())

	if got := c.State(); got != models.CascadeListening {
		t.Fatalf("state = %q, want listening", got)
	}
	if st := statusOf(t, c, "a"); st.State != models.BackendActive {
		t.Errorf("a state = %q, want active", st.State)
	}
	if st := statusOf(t, c, "b"); st.State != models.BackendNotTried {
		t.Errorf("b state = %q, want not_tried", st.State)
	}
	if b.wasProbed() || b.wasStarted() {
		t.Error("backends after the active one must not be touched")
	}
}

func TestCascadeUnavailableSkippedWithoutStart(t *testing.T) {
	a := newFakeBackend("a")
	a.availErr = fmt.Errorf("probe: %w", drepo.ErrBackendUnavailable)
	b := newFakeBackend("b")
	c, _ := newTestCascade(t, time.Second, a, b)

	c.Start(context.Background())
	defer c.Stop(context.Background())

	if st := statusOf(t, c, "a"); st.State != models.BackendUnavailable {
		t.Errorf("a state = %q, want unavailable", st.State)
	}
	if a.wasStarted() {
		t.Error("unavailable backend must never get a start attempt")
	}
	if st := statusOf(t, c, "b"); st.State != models.BackendActive {
		t.Errorf("b state = %q, want active", st.State)
	}
}

func TestCascadeFailedToStartFallsThrough(t *testing.T) {
	a := newFakeBackend("a")
	a.startOK = false
	b := newFakeBackend("b")
	b.startOK = false
	b.startErr = errors.New("engine crashed")
	c3 := newFakeBackend("c")
	c, _ := newTestCascade(t, time.Second, a, b, c3)

	c.Start(context.Background())
	defer c.Stop(context.Background())

	if st := statusOf(t, c, "a"); st.State != models.BackendFailedToStart {
		t.Errorf("a state = %q, want failed_to_start", st.State)
	}
	if st := statusOf(t, c, "b"); st.State != models.BackendFailedToStart || st.Detail != "engine crashed" {
		t.Errorf("b status = %+v, want failed_to_start with detail", st)
	}
	if st := statusOf(t, c, "c"); st.State != models.BackendActive {
		t.Errorf("c state = %q, want active", st.State)
	}
}

func TestCascadeExhaustion(t *testing.T) {
	a := newFakeBackend("a")
	a.availErr = drepo.ErrBackendUnavailable
	b := newFakeBackend("b")
	b.startOK = false
	c, _ := newTestCascade(t, time.Second, a, b)

	var fired atomic.Int32
	c.OnWake(func(models.WakeEvent) { fired.Add(1) })
	c.Start(context.Background())

	if got := c.State(); got != models.CascadeExhausted {
		t.Fatalf("state = %q, want exhausted", got)
	}
	if fired.Load() != 0 {
		t.Error("exhausted cascade must never fire the callback")
	}
	c.Stop(context.Background())
}

func TestCascadeDebounceCollapsesBurst(t *testing.T) {
	a := newFakeBackend("a")
	c, m := newTestCascade(t, 50*time.Millisecond, a)

	var fired atomic.Int32
	c.OnWake(func(models.WakeEvent) { fired.Add(1) })
	c.Start(context.Background())
	defer c.Stop(context.Background())

	a.emit("finsight")
	a.emit("finsight")
	a.emit("finsight")

	waitFor(t, func() bool { return m.wake("a", "debounced") == 2 }, time.Second, "burst to be debounced")
	if fired.Load() != 1 {
		t.Fatalf("callback fired %d times for one burst, want 1", fired.Load())
	}

	time.Sleep(70 * time.Millisecond)
	a.emit("finsight")
	waitFor(t, func() bool { return fired.Load() == 2 }, time.Second, "second utterance to fire")
}

func TestCascadeStopIsSynchronous(t *testing.T) {
	a := newFakeBackend("a")
	c, _ := newTestCascade(t, time.Millisecond, a)

	var fired atomic.Int32
	c.OnWake(func(models.WakeEvent) { fired.Add(1) })
	c.Start(context.Background())

	a.emit("finsight")
	waitFor(t, func() bool { return fired.Load() == 1 }, time.Second, "first detection")

	c.Stop(context.Background())
	if !a.wasStopped() {
		t.Error("active backend must be stopped during teardown")
	}

	before := fired.Load()
	a.emit("finsight")
	time.Sleep(30 * time.Millisecond)
	if fired.Load() != before {
		t.Error("no callback may fire after Stop returns")
	}
	if got := c.State(); got != models.CascadeStopped {
		t.Errorf("state = %q, want stopped", got)
	}
}

func TestCascadeReleasesBackendsThatSupportIt(t *testing.T) {
	rb := &releasableBackend{newFakeBackend("pv")}
	c, _ := newTestCascade(t, time.Second, rb)

	c.Start(context.Background())
	c.Stop(context.Background())

	if !rb.wasReleased() {
		t.Error("releasable backend must be released during teardown")
	}
}

package usecase

import (
	"context"
	"errors"
	"testing"
	"time"
)

func waitFor(t *testing.T, cond func() bool, within time.Duration, msg string) {
	t.Helper()
	deadline := time.Now().Add(within)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not reached within %v: %s", within, msg)
}

func TestHealthGateOpensAfterSettle(t *testing.T) {
	m := newFakeMetrics()
	g := NewHealthGate(&fakeChecker{}, 100*time.Millisecond, 30*time.Millisecond, m, newTestLogger(t))

	started := time.Now()
	g.Start(context.Background())

	if g.CanQuery() {
		t.Fatal("gate must not open before the check settles")
	}

	select {
	case <-g.Ready():
	case <-time.After(time.Second):
		t.Fatal("gate never opened")
	}

	if elapsed := time.Since(started); elapsed < 30*time.Millisecond {
		t.Errorf("gate opened after %v, before the settle delay", elapsed)
	}
	if !g.Healthy() || !g.CanQuery() {
		t.Error("open gate must report healthy and queryable")
	}
	if m.gateCheck("ok") != 1 {
		t.Errorf("expected one ok check, got %d", m.gateCheck("ok"))
	}
}

func TestHealthGateFailureKeepsGateClosed(t *testing.T) {
	m := newFakeMetrics()
	g := NewHealthGate(&fakeChecker{err: errors.New("connection refused")}, 100*time.Millisecond, 5*time.Millisecond, m, newTestLogger(t))

	g.Start(context.Background())
	waitFor(t, func() bool { return g.Status().State != "checking" && g.Status().State != "unknown" }, time.Second, "check to finish")

	select {
	case <-g.Ready():
		t.Fatal("gate must never open after a failed check")
	case <-time.After(50 * time.Millisecond):
	}

	st := g.Status()
	if st.Healthy || st.CanQuery {
		t.Errorf("failed check must keep the gate closed: %+v", st)
	}
	if st.Err == "" {
		t.Error("failure must record the error text")
	}
	if m.gateCheck("fail") != 1 {
		t.Errorf("expected one failed check, got %d", m.gateCheck("fail"))
	}
}

func TestHealthGateTimeout(t *testing.T) {
	m := newFakeMetrics()
	g := NewHealthGate(&fakeChecker{delay: 500 * time.Millisecond}, 20*time.Millisecond, 0, m, newTestLogger(t))

	g.Start(context.Background())
	waitFor(t, func() bool { return m.gateCheck("timeout") == 1 }, time.Second, "timeout to be recorded")

	if g.Healthy() || g.CanQuery() {
		t.Error("timed-out check must keep the gate closed")
	}
}

func TestHealthGateZeroSettleOpensImmediately(t *testing.T) {
	g := NewHealthGate(&fakeChecker{}, 100*time.Millisecond, 0, newFakeMetrics(), newTestLogger(t))

	g.Start(context.Background())
	select {
	case <-g.Ready():
	case <-time.After(time.Second):
		t.Fatal("zero settle delay must open the gate right after the check")
	}
}

func TestHealthGateStopCancelsSettleTimer(t *testing.T) {
	g := NewHealthGate(&fakeChecker{}, 100*time.Millisecond, 60*time.Millisecond, newFakeMetrics(), newTestLogger(t))

	g.Start(context.Background())
	waitFor(t, g.Healthy, time.Second, "check to succeed")

	g.Stop()
	time.Sleep(100 * time.Millisecond)

	if g.CanQuery() {
		t.Error("settle timer must not fire after Stop")
	}
}

func TestHealthGateDiscardsResultAfterStop(t *testing.T) {
	g := NewHealthGate(&fakeChecker{delay: 30 * time.Millisecond}, 200*time.Millisecond, 0, newFakeMetrics(), newTestLogger(t))

	g.Start(context.Background())
	g.Stop()
	time.Sleep(60 * time.Millisecond)

	st := g.Status()
	if st.Healthy || st.CanQuery {
		t.Errorf("check completing after Stop must be discarded: %+v", st)
	}
}

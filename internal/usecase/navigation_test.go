package usecase

import (
	"testing"
	"time"

	"FinSight/internal/domain/models"
	svccache "FinSight/internal/service/cache"
)

func newTestDispatcher(t *testing.T, ttl time.Duration) (*NavigationDispatcher, *fakeMetrics) {
	t.Helper()
	m := newFakeMetrics()
	d := NewNavigationDispatcher(ttl, time.Minute, svccache.NewTTLCache(), m, nil, newTestLogger(t))
	return d, m
}

func TestDispatcherDeliversWhenBound(t *testing.T) {
	d, m := newTestDispatcher(t, time.Second)

	got := make(chan *models.NavigationRequest, 4)
	d.Bind(func(r *models.NavigationRequest) { got <- r })

	req, outcome := d.NavigateTo("Portfolio", map[string]any{"tab": "holdings"})
	if outcome != models.NavDelivered {
		t.Fatalf("outcome = %q, want delivered", outcome)
	}

	select {
	case r := <-got:
		if r.ID != req.ID || r.Screen != "Portfolio" {
			t.Errorf("delivered %+v, want %+v", r, req)
		}
	default:
		t.Fatal("bound handler must receive the request synchronously")
	}
	if m.navigation(models.NavDelivered) != 1 {
		t.Errorf("delivered count = %d", m.navigation(models.NavDelivered))
	}
}

func TestDispatcherPendingDeliveredOnceAtBind(t *testing.T) {
	d, m := newTestDispatcher(t, time.Second)

	req, outcome := d.NavigateTo("StockDetail", map[string]any{"symbol": "AAPL"})
	if outcome != models.NavPending {
		t.Fatalf("outcome = %q, want pending", outcome)
	}

	got := make(chan *models.NavigationRequest, 4)
	d.Bind(func(r *models.NavigationRequest) { got <- r })

	select {
	case r := <-got:
		if r.Seq != req.Seq {
			t.Errorf("delivered seq %d, want %d", r.Seq, req.Seq)
		}
	default:
		t.Fatal("bind must deliver the fresh pending request")
	}

	// Re-binding must not redeliver a consumed request.
	d.Unbind()
	d.Bind(func(r *models.NavigationRequest) { got <- r })
	select {
	case r := <-got:
		t.Errorf("consumed request redelivered: %+v", r)
	default:
	}
	if m.navigation(models.NavDelivered) != 1 {
		t.Errorf("delivered count = %d, want 1", m.navigation(models.NavDelivered))
	}
}

func TestDispatcherNewerPendingSupersedes(t *testing.T) {
	d, m := newTestDispatcher(t, time.Second)

	d.NavigateTo("ScreenA", nil)
	d.NavigateTo("ScreenB", nil)

	got := make(chan *models.NavigationRequest, 4)
	d.Bind(func(r *models.NavigationRequest) { got <- r })

	select {
	case r := <-got:
		if r.Screen != "ScreenB" {
			t.Errorf("delivered %q, want the newest pending ScreenB", r.Screen)
		}
	default:
		t.Fatal("newest pending request must be delivered")
	}
	select {
	case r := <-got:
		t.Errorf("superseded request delivered: %+v", r)
	default:
	}
	if m.navigation(models.NavSuperseded) != 1 {
		t.Errorf("superseded count = %d", m.navigation(models.NavSuperseded))
	}
}

func TestDispatcherPendingExpires(t *testing.T) {
	d, m := newTestDispatcher(t, 30*time.Millisecond)

	d.NavigateTo("Gone", nil)
	waitFor(t, func() bool { return m.navigation(models.NavExpired) == 1 }, time.Second, "pending to expire")

	got := make(chan *models.NavigationRequest, 4)
	d.Bind(func(r *models.NavigationRequest) { got <- r })
	select {
	case r := <-got:
		t.Errorf("expired request delivered: %+v", r)
	default:
	}
}

func TestDispatcherParamsReadOnce(t *testing.T) {
	d, _ := newTestDispatcher(t, time.Second)
	d.Bind(func(*models.NavigationRequest) {})

	d.NavigateTo("StockDetail", map[string]any{"symbol": "MSFT"})

	p, ok := d.TakeParams("StockDetail")
	if !ok || p["symbol"] != "MSFT" {
		t.Fatalf("first read = %v/%v, want params", p, ok)
	}
	if _, ok := d.TakeParams("StockDetail"); ok {
		t.Error("second read must miss")
	}
}

func TestDispatcherParamsNotReadableBeforeDelivery(t *testing.T) {
	d, _ := newTestDispatcher(t, time.Second)

	d.NavigateTo("StockDetail", map[string]any{"symbol": "JNJ"})
	if _, ok := d.TakeParams("StockDetail"); ok {
		t.Error("params must not be readable while the request is undelivered")
	}

	d.Bind(func(*models.NavigationRequest) {})
	if p, ok := d.TakeParams("StockDetail"); !ok || p["symbol"] != "JNJ" {
		t.Errorf("params must be readable after delivery, got %v/%v", p, ok)
	}
}

func TestDispatcherUnbindQueuesAgain(t *testing.T) {
	d, _ := newTestDispatcher(t, time.Second)

	got := make(chan *models.NavigationRequest, 4)
	d.Bind(func(r *models.NavigationRequest) { got <- r })
	d.Unbind()

	d.NavigateTo("Later", nil)
	select {
	case r := <-got:
		t.Errorf("unbound dispatcher delivered %+v", r)
	default:
	}

	d.Bind(func(r *models.NavigationRequest) { got <- r })
	select {
	case r := <-got:
		if r.Screen != "Later" {
			t.Errorf("delivered %q, want Later", r.Screen)
		}
	default:
		t.Fatal("re-bind must deliver the queued request")
	}
}

func TestDispatcherReset(t *testing.T) {
	d, m := newTestDispatcher(t, 40*time.Millisecond)

	d.Bind(func(*models.NavigationRequest) {})
	d.NavigateTo("WithParams", map[string]any{"k": "v"})
	d.Unbind()
	d.NavigateTo("Pending", nil)

	d.Reset()

	if st := d.Status(); st.Bound || st.HasPending || st.LastDelivered != 0 {
		t.Errorf("reset left state behind: %+v", st)
	}
	if _, ok := d.TakeParams("WithParams"); ok {
		t.Error("reset must clear the params store")
	}

	got := make(chan *models.NavigationRequest, 4)
	d.Bind(func(r *models.NavigationRequest) { got <- r })
	select {
	case r := <-got:
		t.Errorf("reset dispatcher delivered %+v", r)
	default:
	}

	// The old pending timer must not count an expiry after reset.
	time.Sleep(80 * time.Millisecond)
	if m.navigation(models.NavExpired) != 0 {
		t.Errorf("expired count after reset = %d, want 0", m.navigation(models.NavExpired))
	}
}

package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"FinSight/internal/domain/models"
	svccache "FinSight/internal/service/cache"
	"FinSight/internal/usecase"
	"FinSight/pkg/logger"
)

type noopMetrics struct{}

func (noopMetrics) RecordGateCheck(string)            {}
func (noopMetrics) RecordSourceUpdate(string)         {}
func (noopMetrics) RecordFieldSource(string, string)  {}
func (noopMetrics) RecordWake(string, string)         {}
func (noopMetrics) RecordBackendState(string, string) {}
func (noopMetrics) RecordNavigation(string)           {}
func (noopMetrics) RecordHistoryWrite(int)            {}
func (noopMetrics) RecordError(string)                {}
func (noopMetrics) RecordLatency(string, float64)     {}

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return l
}

func testHandler(t *testing.T) (*DashboardHandler, *usecase.NavigationDispatcher) {
	t.Helper()
	d := usecase.NewNavigationDispatcher(time.Minute, time.Minute, svccache.NewTTLCache(), noopMetrics{}, nil, testLogger(t))
	h := NewDashboardHandler(testLogger(t), nil, nil, nil, d)
	return h, d
}

func perform(h *DashboardHandler, method, target, body string) *httptest.ResponseRecorder {
	e := echo.New()
	h.RegisterRoutes(e)
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return env
}

func TestNavigateDeliveredToBoundHandler(t *testing.T) {
	h, d := testHandler(t)

	var got *models.NavigationRequest
	d.Bind(func(r *models.NavigationRequest) { got = r })

	rec := perform(h, http.MethodPost, "/api/navigate", `{"screen":"Portfolio","params":{"symbol":"AAPL"}}`)
	env := decode(t, rec)
	if env.Status != http.StatusOK {
		t.Fatalf("status = %d, want %d", env.Status, http.StatusOK)
	}

	var view struct {
		RequestID string `json:"requestId"`
		Screen    string `json:"screen"`
		Outcome   string `json:"outcome"`
	}
	if err := json.Unmarshal(env.Data, &view); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if view.Outcome != models.NavDelivered {
		t.Errorf("outcome = %q, want %q", view.Outcome, models.NavDelivered)
	}
	if view.Screen != "Portfolio" {
		t.Errorf("screen = %q, want Portfolio", view.Screen)
	}
	if got == nil || got.ID != view.RequestID {
		t.Errorf("handler did not receive the delivered request")
	}
}

func TestNavigateParksWithoutHandler(t *testing.T) {
	h, _ := testHandler(t)

	rec := perform(h, http.MethodPost, "/api/navigate", `{"screen":"StockDetail"}`)
	env := decode(t, rec)

	var view struct {
		Outcome string `json:"outcome"`
	}
	if err := json.Unmarshal(env.Data, &view); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if view.Outcome != models.NavPending {
		t.Errorf("outcome = %q, want %q", view.Outcome, models.NavPending)
	}
}

func TestNavigateRejectsMissingScreen(t *testing.T) {
	h, _ := testHandler(t)

	rec := perform(h, http.MethodPost, "/api/navigate", `{"params":{}}`)
	env := decode(t, rec)
	if env.Status != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", env.Status, http.StatusBadRequest)
	}
}

func TestNavigateRateLimited(t *testing.T) {
	h, d := testHandler(t)
	d.Bind(func(*models.NavigationRequest) {})

	for i := 0; i < 5; i++ {
		env := decode(t, perform(h, http.MethodPost, "/api/navigate", `{"screen":"Portfolio"}`))
		if env.Status != http.StatusOK {
			t.Fatalf("request %d status = %d, want %d", i, env.Status, http.StatusOK)
		}
	}
	env := decode(t, perform(h, http.MethodPost, "/api/navigate", `{"screen":"Portfolio"}`))
	if env.Status != http.StatusTooManyRequests {
		t.Errorf("status = %d, want %d", env.Status, http.StatusTooManyRequests)
	}
}

func TestNavigationParamsReadOnce(t *testing.T) {
	h, d := testHandler(t)
	d.Bind(func(*models.NavigationRequest) {})

	perform(h, http.MethodPost, "/api/navigate", `{"screen":"StockDetail","params":{"symbol":"MSFT"}}`)

	rec := perform(h, http.MethodGet, "/api/navigation/params/StockDetail", "")
	env := decode(t, rec)
	if env.Status != http.StatusOK {
		t.Fatalf("first read status = %d, want %d", env.Status, http.StatusOK)
	}
	var view struct {
		Screen string         `json:"screen"`
		Params map[string]any `json:"params"`
	}
	if err := json.Unmarshal(env.Data, &view); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if view.Params["symbol"] != "MSFT" {
		t.Errorf("params = %v, want symbol MSFT", view.Params)
	}

	rec = perform(h, http.MethodGet, "/api/navigation/params/StockDetail", "")
	env = decode(t, rec)
	if env.Status != http.StatusNotFound {
		t.Errorf("second read status = %d, want %d", env.Status, http.StatusNotFound)
	}
}

func TestVoiceStatusWhenDisabled(t *testing.T) {
	h, _ := testHandler(t)

	rec := perform(h, http.MethodGet, "/api/voice", "")
	env := decode(t, rec)
	if env.Status != http.StatusNotFound {
		t.Errorf("status = %d, want %d", env.Status, http.StatusNotFound)
	}
}

func TestHistoryWhenDisabled(t *testing.T) {
	h, _ := testHandler(t)

	rec := perform(h, http.MethodGet, "/api/portfolio/history", "")
	env := decode(t, rec)
	if env.Status != http.StatusNotFound {
		t.Errorf("status = %d, want %d", env.Status, http.StatusNotFound)
	}
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	models "FinSight/internal/domain/models"
	drepo "FinSight/internal/domain/repository"
	icache "FinSight/internal/service/cache"
	"FinSight/internal/service/ratelimit"
	"FinSight/internal/usecase"
	xhttp "FinSight/pkg/http"
	xlogger "FinSight/pkg/logger"

	"github.com/labstack/echo/v4"
)

const historyResponseTTL = 15 * time.Second

// queryInvalidator drops cached query state on session reset.
type queryInvalidator interface {
	Invalidate(ctx context.Context)
}

// DashboardHandler exposes the resolved dashboard over HTTP.
type DashboardHandler struct {
	logger      *xlogger.Logger
	session     *usecase.DashboardSession
	history     *usecase.HistoryUseCase
	cascade     *usecase.WakeWordCascade
	dispatcher  *usecase.NavigationDispatcher
	invalidator queryInvalidator
	cache       icache.BytesCache
	rl          *ratelimit.Limiter
}

// NewDashboardHandler creates a new DashboardHandler instance. history and
// cascade may be nil when those features are disabled.
func NewDashboardHandler(logger *xlogger.Logger, session *usecase.DashboardSession, history *usecase.HistoryUseCase, cascade *usecase.WakeWordCascade, dispatcher *usecase.NavigationDispatcher) *DashboardHandler {
	return &DashboardHandler{
		logger:     logger,
		session:    session,
		history:    history,
		cascade:    cascade,
		dispatcher: dispatcher,
		rl:         ratelimit.New(),
	}
}

// SetCache injects a response cache for history queries.
func (h *DashboardHandler) SetCache(c icache.BytesCache) { h.cache = c }

// SetInvalidator injects the cached-query invalidation hook used by reset.
func (h *DashboardHandler) SetInvalidator(inv queryInvalidator) { h.invalidator = inv }

func (h *DashboardHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/portfolio", h.Portfolio)
	g.POST("/portfolio/refresh", h.RefreshPortfolio)
	g.GET("/portfolio/history", h.History)
	g.GET("/health/gate", h.GateStatus)
	g.GET("/voice", h.VoiceStatus)
	g.POST("/navigate", h.Navigate)
	g.GET("/navigation/params/:screen", h.NavigationParams)
	g.POST("/session/reset", h.ResetSession)
}

type holdingView struct {
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name"`
	Quantity      float64 `json:"quantity"`
	Price         float64 `json:"price"`
	Value         float64 `json:"value"`
	CostBasis     float64 `json:"costBasis"`
	Return        float64 `json:"return"`
	ReturnPercent float64 `json:"returnPercent"`
	Sector        string  `json:"sector"`
}

type sourcesView struct {
	TotalValue         string `json:"totalValue"`
	TotalReturn        string `json:"totalReturn"`
	TotalReturnPercent string `json:"totalReturnPercent"`
	Holdings           string `json:"holdings"`
}

type snapshotView struct {
	TotalValue         float64       `json:"totalValue"`
	TotalReturn        float64       `json:"totalReturn"`
	TotalReturnPercent float64       `json:"totalReturnPercent"`
	Holdings           []holdingView `json:"holdings"`
	Sources            sourcesView   `json:"sources"`
	ResolvedAt         time.Time     `json:"resolvedAt"`
	PushConnected      bool          `json:"pushConnected"`
}

func (h *DashboardHandler) snapshotView() snapshotView {
	snap := h.session.Snapshot()
	view := snapshotView{
		TotalValue:         snap.TotalValue,
		TotalReturn:        snap.TotalReturn,
		TotalReturnPercent: snap.TotalReturnPercent,
		Holdings:           make([]holdingView, 0, len(snap.Holdings)),
		Sources: sourcesView{
			TotalValue:         snap.Sources.TotalValue,
			TotalReturn:        snap.Sources.TotalReturn,
			TotalReturnPercent: snap.Sources.TotalReturnPercent,
			Holdings:           snap.Sources.Holdings,
		},
		ResolvedAt:    snap.ResolvedAt,
		PushConnected: h.session.IsConnected(),
	}
	for _, p := range snap.Holdings {
		view.Holdings = append(view.Holdings, holdingView{
			Symbol:        p.Symbol,
			Name:          p.Name,
			Quantity:      p.Quantity,
			Price:         p.Price,
			Value:         p.Value,
			CostBasis:     p.CostBasis,
			Return:        p.Return,
			ReturnPercent: p.ReturnPercent,
			Sector:        p.Sector,
		})
	}
	return view
}

// Portfolio returns the current resolved snapshot.
func (h *DashboardHandler) Portfolio(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.snapshotView())
}

// RefreshPortfolio re-runs the cached query on demand. Blocked until the
// health gate opens.
func (h *DashboardHandler) RefreshPortfolio(c echo.Context) error {
	if !h.rl.Allow(c.RealIP()+":refresh", 2, 0.5) {
		h.logger.Warn("refresh rate_limited", xlogger.String("remote", c.RealIP()))
		return xhttp.AppErrorResponse(c, xhttp.NewAppError("ERR_RATE_LIMITED", "", "too many refresh requests", http.StatusTooManyRequests))
	}
	if err := h.session.RefreshQuery(c.Request().Context()); err != nil {
		if errors.Is(err, drepo.ErrQueryBlocked) {
			appErr := xhttp.NewAppError("ERR_GATE_CLOSED", "", "health gate has not opened", http.StatusConflict)
			return xhttp.AppErrorResponse(c, appErr)
		}
		h.logger.Error("refresh query error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, h.snapshotView())
}

type historyRowView struct {
	SessionID          string    `json:"sessionId"`
	ResolvedAt         time.Time `json:"resolvedAt"`
	TotalValue         float64   `json:"totalValue"`
	TotalReturn        float64   `json:"totalReturn"`
	TotalReturnPercent float64   `json:"totalReturnPercent"`
	HoldingCount       int       `json:"holdingCount"`
	ValueSource        string    `json:"valueSource"`
}

type historyView struct {
	From  time.Time        `json:"from"`
	To    time.Time        `json:"to"`
	Count int              `json:"count"`
	Rows  []historyRowView `json:"rows"`
}

// History lists persisted snapshots in a time range. Defaults to the
// last 24 hours.
func (h *DashboardHandler) History(c echo.Context) error {
	if h.history == nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("history is not enabled"))
	}
	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	from, to := xhttp.RangeWithDefaults(req.From, req.To, time.Now(), 24*time.Hour)

	cacheKey := "history:" + from.UTC().Format(time.RFC3339) + ":" + to.UTC().Format(time.RFC3339) + ":" + strconv.Itoa(req.Limit)
	if h.cache != nil {
		if b, ok, err := h.cache.GetBytes(cacheKey); err == nil && ok {
			return xhttp.SuccessResponse(c, json.RawMessage(b))
		}
	}

	res, err := h.history.GetHistory(c.Request().Context(), usecase.GetHistoryParams{
		From:  from,
		To:    to,
		Limit: req.Limit,
	})
	if err != nil {
		h.logger.Error("history usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}

	view := historyView{
		From:  res.From,
		To:    res.To,
		Count: res.Count,
		Rows:  make([]historyRowView, 0, len(res.Snapshots)),
	}
	for _, r := range res.Snapshots {
		view.Rows = append(view.Rows, historyRowView{
			SessionID:          r.SessionID,
			ResolvedAt:         r.ResolvedAt,
			TotalValue:         r.TotalValue,
			TotalReturn:        r.TotalReturn,
			TotalReturnPercent: r.TotalReturnPercent,
			HoldingCount:       r.HoldingCount,
			ValueSource:        r.ValueSource,
		})
	}

	if h.cache != nil {
		if b, err := json.Marshal(view); err == nil {
			_ = h.cache.SetBytes(cacheKey, b, historyResponseTTL)
		}
	}
	return xhttp.SuccessResponse(c, view)
}

type gateView struct {
	State     string    `json:"state"`
	Healthy   bool      `json:"healthy"`
	CanQuery  bool      `json:"canQuery"`
	CheckedAt time.Time `json:"checkedAt"`
	Error     string    `json:"error,omitempty"`
}

// GateStatus reports the health gate state.
func (h *DashboardHandler) GateStatus(c echo.Context) error {
	st := h.session.GateStatus()
	return xhttp.SuccessResponse(c, gateView{
		State:     string(st.State),
		Healthy:   st.Healthy,
		CanQuery:  st.CanQuery,
		CheckedAt: st.CheckedAt,
		Error:     st.Err,
	})
}

type backendView struct {
	Name   string `json:"name"`
	State  string `json:"state"`
	Detail string `json:"detail,omitempty"`
}

type voiceView struct {
	State    string        `json:"state"`
	Backends []backendView `json:"backends"`
}

// VoiceStatus reports the wake word cascade and per-backend states.
func (h *DashboardHandler) VoiceStatus(c echo.Context) error {
	if h.cascade == nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("voice is not enabled"))
	}
	view := voiceView{State: string(h.cascade.State())}
	for _, st := range h.cascade.Statuses() {
		view.Backends = append(view.Backends, backendView{
			Name:   st.Name,
			State:  string(st.State),
			Detail: st.Detail,
		})
	}
	return xhttp.SuccessResponse(c, view)
}

type navigateView struct {
	RequestID string `json:"requestId"`
	Screen    string `json:"screen"`
	Outcome   string `json:"outcome"`
}

// Navigate routes one navigation intent through the dispatcher.
func (h *DashboardHandler) Navigate(c echo.Context) error {
	if !h.rl.Allow(c.RealIP()+":navigate", 5, 2) {
		h.logger.Warn("navigate rate_limited", xlogger.String("remote", c.RealIP()))
		return xhttp.AppErrorResponse(c, xhttp.NewAppError("ERR_RATE_LIMITED", "", "too many navigation requests", http.StatusTooManyRequests))
	}
	req := &models.NavigateRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	nr, outcome := h.dispatcher.NavigateTo(req.Screen, req.Params)
	return xhttp.SuccessResponse(c, navigateView{
		RequestID: nr.ID,
		Screen:    nr.Screen,
		Outcome:   outcome,
	})
}

type paramsView struct {
	Screen string         `json:"screen"`
	Params map[string]any `json:"params"`
}

// NavigationParams hands out a screen's params exactly once.
func (h *DashboardHandler) NavigationParams(c echo.Context) error {
	screen := c.Param("screen")
	params, ok := h.dispatcher.TakeParams(screen)
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("no params staged for %s", screen))
	}
	return xhttp.SuccessResponse(c, paramsView{Screen: screen, Params: params})
}

// ResetSession restores the dispatcher container and drops cached query
// state. Meant for remounts and test harnesses.
func (h *DashboardHandler) ResetSession(c echo.Context) error {
	h.dispatcher.Reset()
	if h.invalidator != nil {
		h.invalidator.Invalidate(c.Request().Context())
	}
	h.logger.Info("session state reset")
	return xhttp.SuccessResponse(c, map[string]bool{"reset": true})
}

package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"FinSight/internal/domain/models"
	"FinSight/pkg/logger"
)

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

// fakeMetrics counts recorded events so tests can assert on them.
type fakeMetrics struct {
	mu          sync.Mutex
	gateChecks  map[string]int
	sources     map[string]int
	fields      map[string]string
	wakes       map[string]int
	states      map[string]string
	navigations map[string]int
	history     int
	errors      map[string]int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{
		gateChecks:  map[string]int{},
		sources:     map[string]int{},
		fields:      map[string]string{},
		wakes:       map[string]int{},
		states:      map[string]string{},
		navigations: map[string]int{},
		errors:      map[string]int{},
	}
}

func (f *fakeMetrics) RecordGateCheck(outcome string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gateChecks[outcome]++
}

func (f *fakeMetrics) RecordSourceUpdate(source string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sources[source]++
}

func (f *fakeMetrics) RecordFieldSource(field, source string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fields[field] = source
}

func (f *fakeMetrics) RecordWake(backend, outcome string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.wakes[backend+"/"+outcome]++
}

func (f *fakeMetrics) RecordBackendState(backend, state string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states[backend] = state
}

func (f *fakeMetrics) RecordNavigation(outcome string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.navigations[outcome]++
}

func (f *fakeMetrics) RecordHistoryWrite(count int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.history += count
}

func (f *fakeMetrics) RecordError(kind string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors[kind]++
}

func (f *fakeMetrics) RecordLatency(op string, seconds float64) {}

func (f *fakeMetrics) gateCheck(outcome string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gateChecks[outcome]
}

func (f *fakeMetrics) wake(backend, outcome string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.wakes[backend+"/"+outcome]
}

func (f *fakeMetrics) navigation(outcome string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.navigations[outcome]
}

// fakeChecker is a scripted HealthChecker.
type fakeChecker struct {
	err   error
	delay time.Duration
}

func (f *fakeChecker) Check(ctx context.Context) error {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return f.err
}

// fakeSource returns a fixed metrics value per Fetch.
type fakeSource struct {
	mu   sync.Mutex
	next *models.PortfolioMetrics
	err  error
	hits int
}

func (f *fakeSource) Fetch(ctx context.Context) (*models.PortfolioMetrics, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hits++
	return f.next, f.err
}

func (f *fakeSource) set(m *models.PortfolioMetrics, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next, f.err = m, err
}

func (f *fakeSource) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits
}

// fakeQuery implements PortfolioQuery.
type fakeQuery struct {
	mu   sync.Mutex
	next *models.PortfolioMetrics
	err  error
	hits int
}

func (f *fakeQuery) Query(ctx context.Context) (*models.PortfolioMetrics, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hits++
	return f.next, f.err
}

func (f *fakeQuery) queryCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits
}

// fakeStream implements PushStream over in-memory channels.
type fakeStream struct {
	mu        sync.Mutex
	deltas    chan *models.PortfolioMetrics
	errs      chan error
	connected bool
}

func newFakeStream() *fakeStream {
	return &fakeStream{
		deltas: make(chan *models.PortfolioMetrics, 16),
		errs:   make(chan error, 16),
	}
}

func (f *fakeStream) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = true
	return nil
}

func (f *fakeStream) Subscribe(ctx context.Context) error { return nil }

func (f *fakeStream) Read(ctx context.Context) (<-chan *models.PortfolioMetrics, <-chan error) {
	return f.deltas, f.errs
}

func (f *fakeStream) Reconnect(ctx context.Context) error { return nil }

func (f *fakeStream) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	return nil
}

func (f *fakeStream) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeStream) push(m *models.PortfolioMetrics) { f.deltas <- m }

// fakeBackend is a scripted WakeWordBackend.
type fakeBackend struct {
	name       string
	availErr   error
	startOK    bool
	startErr   error
	events    chan models.WakeEvent
	mu        sync.Mutex
	probed    bool
	started   bool
	stopped   bool
	released  bool
	stopDelay time.Duration
}

func newFakeBackend(name string) *fakeBackend {
	return &fakeBackend{name: name, startOK: true, events: make(chan models.WakeEvent, 16)}
}

func (f *fakeBackend) Name() string { return f.name }

func (f *fakeBackend) Available(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.probed = true
	return f.availErr
}

func (f *fakeBackend) Start(ctx context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = true
	return f.startOK, f.startErr
}

func (f *fakeBackend) Detections() <-chan models.WakeEvent { return f.events }

func (f *fakeBackend) Stop(ctx context.Context) error {
	if f.stopDelay > 0 {
		time.Sleep(f.stopDelay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
	return nil
}

func (f *fakeBackend) wasProbed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.probed
}

func (f *fakeBackend) wasStarted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.started
}

func (f *fakeBackend) wasStopped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopped
}

func (f *fakeBackend) wasReleased() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.released
}

func (f *fakeBackend) emit(keyword string) {
	f.events <- models.WakeEvent{Backend: f.name, Keyword: keyword, At: time.Now()}
}

// releasableBackend adds the optional Release hook.
type releasableBackend struct {
	*fakeBackend
}

func (r *releasableBackend) Release(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.released = true
	return nil
}

// fakeHistory collects written records in memory.
type fakeHistory struct {
	mu          sync.Mutex
	rows        []*models.SnapshotRecord
	batches     int
	queryResult []*models.SnapshotRecord
	queryErr    error
	lastLimit   int
}

func (f *fakeHistory) Init(ctx context.Context) error { return nil }

func (f *fakeHistory) Record(ctx context.Context, rec *models.SnapshotRecord) error {
	return f.RecordBatch(ctx, []*models.SnapshotRecord{rec})
}

func (f *fakeHistory) RecordBatch(ctx context.Context, recs []*models.SnapshotRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, recs...)
	f.batches++
	return nil
}

func (f *fakeHistory) Query(ctx context.Context, from, to time.Time, limit int) ([]*models.SnapshotRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastLimit = limit
	return f.queryResult, f.queryErr
}

func (f *fakeHistory) Purge(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeHistory) Health(ctx context.Context) error { return nil }

func (f *fakeHistory) Close() error { return nil }

func (f *fakeHistory) rowCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

func (f *fakeHistory) batchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.batches
}

// fakeQueueSvc captures enqueued payloads.
type fakeQueueSvc struct {
	mu   sync.Mutex
	msgs []interface{}
	err  error
}

func (f *fakeQueueSvc) PublishMessage(ctx context.Context, msgType string, payload interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, payload)
	return nil
}

func (f *fakeQueueSvc) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.msgs)
}

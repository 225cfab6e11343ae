package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/iconidentify/xreply/internal/cache"
	"github.com/iconidentify/xreply/internal/domain"
	"github.com/iconidentify/xreply/internal/extract"
	"github.com/iconidentify/xreply/internal/kvstore"
	"github.com/iconidentify/xreply/internal/repository"
	"github.com/iconidentify/xreply/pkg/shadow"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeClock is a settable time source.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// testEnv wires the real repositories over an in-memory store.
type testEnv struct {
	store        *kvstore.MemoryStore
	config       *repository.KVConfigRepository
	history      *repository.KVHistoryRepository
	licenseCache *repository.KVLicenseCacheRepository
	clock        *fakeClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := kvstore.NewMemoryStore(testLogger())
	t.Cleanup(func() { store.Close() })

	clock := newFakeClock()
	return &testEnv{
		store:        store,
		config:       repository.NewKVConfigRepository(store),
		history:      repository.NewKVHistoryRepository(store, repository.HistoryLimit),
		licenseCache: repository.NewKVLicenseCacheRepository(store, 60*time.Second, clock.Now),
		clock:        clock,
	}
}

func (e *testEnv) setLicenseKey(t *testing.T, key string) {
	t.Helper()
	if err := e.config.SetLicenseKey(context.Background(), key); err != nil {
		t.Fatalf("SetLicenseKey() error = %v", err)
	}
}

func (e *testEnv) replyService(t *testing.T, gen Generator) *ReplyService {
	t.Helper()
	c, err := cache.New(16, true, testLogger())
	if err != nil {
		t.Fatalf("cache.New() error = %v", err)
	}
	svc := NewReplyService(extract.New(extract.WithLogger(testLogger())), gen, c, e.config, e.history, testLogger())
	svc.now = e.clock.Now
	return svc
}

func (e *testEnv) licenseService(client *mockLicenseClient) *LicenseService {
	svc := NewLicenseService(e.config, e.licenseCache, client, testLogger())
	svc.now = e.clock.Now
	return svc
}

func (e *testEnv) settingsService() *SettingsService {
	svc := NewSettingsService(e.config, testLogger())
	svc.now = e.clock.Now
	return svc
}

// mockLicenseClient implements license.Client.
type mockLicenseClient struct {
	mu            sync.Mutex
	validateErr   error
	info          *domain.LicenseInfo
	fetchErr      error
	validateCalls int
	fetchCalls    int
	lastKey       string
}

func (m *mockLicenseClient) Validate(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.validateCalls++
	m.lastKey = key
	if key == "" {
		return domain.ErrMissingLicenseKey
	}
	return m.validateErr
}

func (m *mockLicenseClient) FetchInfo(_ context.Context, key string) (*domain.LicenseInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchCalls++
	m.lastKey = key
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	if m.info == nil {
		return nil, nil
	}
	info := *m.info
	return &info, nil
}

func (m *mockLicenseClient) fetches() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetchCalls
}

// mockShadowClient implements shadow.Client.
type mockShadowClient struct {
	mu      sync.Mutex
	reply   string
	err     error
	calls   int
	lastKey string
	lastReq shadow.Request
}

func (m *mockShadowClient) Generate(_ context.Context, licenseKey string, req shadow.Request) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.lastKey = licenseKey
	m.lastReq = req
	return m.reply, m.err
}

// mockGenerator implements Generator. When release is set, calls block until
// it is closed.
type mockGenerator struct {
	reply   string
	err     error
	calls   atomic.Int32
	release chan struct{}
	lastReq atomic.Value
}

func (m *mockGenerator) Generate(ctx context.Context, req domain.GenerateRequest) (string, error) {
	m.calls.Add(1)
	m.lastReq.Store(req)
	if m.release != nil {
		select {
		case <-m.release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return m.reply, m.err
}

func (m *mockGenerator) last() domain.GenerateRequest {
	req, _ := m.lastReq.Load().(domain.GenerateRequest)
	return req
}

// mockInserter implements ComposerInserter.
type mockInserter struct {
	mu    sync.Mutex
	texts []string
	err   error
}

func (m *mockInserter) InsertReply(_ context.Context, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.texts = append(m.texts, text)
	return nil
}

// recordingEmitter implements domain.EventEmitter.
type recordingEmitter struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *recordingEmitter) Emit(event domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingEmitter) EmitInfo(category domain.EventCategory, message string, metadata domain.EventMetadata) {
	r.Emit(domain.Event{Severity: domain.EventSeverityInfo, Category: category, Message: message, Metadata: metadata.ToJSON()})
}

func (r *recordingEmitter) EmitWarning(category domain.EventCategory, message string, metadata domain.EventMetadata) {
	r.Emit(domain.Event{Severity: domain.EventSeverityWarning, Category: category, Message: message, Metadata: metadata.ToJSON()})
}

func (r *recordingEmitter) snapshot() []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Event(nil), r.events...)
}

func intPtr(v int) *int { return &v }

func boolPtr(v bool) *bool { return &v }

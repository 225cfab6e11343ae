package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/iconidentify/xreply/internal/cache"
	"github.com/iconidentify/xreply/internal/domain"
	"github.com/iconidentify/xreply/internal/extract"
	"github.com/iconidentify/xreply/internal/kvstore"
	"github.com/iconidentify/xreply/internal/repository"
	"github.com/iconidentify/xreply/internal/service"
)

// testLogger returns a silent logger for tests.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const testPage = `<html><body><article data-testid="tweet">
<a href="/bob">Bob</a>
<a href="/bob/status/555"><time>1h</time></a>
<div data-testid="tweetText">shipping today</div>
<div role="group"><button data-xreply-trigger="1">Reply</button></div>
</article></body></html>`

// testEnv wires real services over an in-memory store.
type testEnv struct {
	store    *kvstore.MemoryStore
	config   *repository.KVConfigRepository
	gen      *mockGenerator
	replies  *service.ReplyService
	settings *service.SettingsService
	license  *service.LicenseService
	lic      *mockLicenseClient
	events   *service.EventService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := kvstore.NewMemoryStore(testLogger())
	t.Cleanup(func() { store.Close() })

	config := repository.NewKVConfigRepository(store)
	history := repository.NewKVHistoryRepository(store, repository.HistoryLimit)
	licenseCache := repository.NewKVLicenseCacheRepository(store, 60*time.Second, time.Now)

	c, err := cache.New(16, true, testLogger())
	if err != nil {
		t.Fatalf("cache.New() error = %v", err)
	}

	gen := &mockGenerator{reply: "ser this is alpha"}
	lic := &mockLicenseClient{}
	events := service.NewEventService(0, testLogger())

	replies := service.NewReplyService(extract.New(extract.WithLogger(testLogger())), gen, c, config, history, testLogger())
	replies.SetEventEmitter(events)
	license := service.NewLicenseService(config, licenseCache, lic, testLogger())
	license.SetEventEmitter(events)

	return &testEnv{
		store:    store,
		config:   config,
		gen:      gen,
		replies:  replies,
		settings: service.NewSettingsService(config, testLogger()),
		license:  license,
		lic:      lic,
		events:   events,
	}
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

func errorBody(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	decodeBody(t, w, &body)
	return body["error"]
}

// mockGenerator implements service.Generator.
type mockGenerator struct {
	mu      sync.Mutex
	reply   string
	err     error
	calls   int
	lastReq domain.GenerateRequest
}

func (m *mockGenerator) Generate(_ context.Context, req domain.GenerateRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.lastReq = req
	return m.reply, m.err
}

// mockLicenseClient implements license.Client.
type mockLicenseClient struct {
	mu       sync.Mutex
	info     *domain.LicenseInfo
	fetchErr error
}

func (m *mockLicenseClient) Validate(_ context.Context, key string) error {
	if key == "" {
		return domain.ErrMissingLicenseKey
	}
	return nil
}

func (m *mockLicenseClient) FetchInfo(_ context.Context, key string) (*domain.LicenseInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if key == "" {
		return nil, domain.ErrMissingLicenseKey
	}
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	if m.info == nil {
		return nil, nil
	}
	info := *m.info
	return &info, nil
}

// mockComposerLister implements ComposerLister.
type mockComposerLister struct {
	composers []domain.ComposerInfo
	err       error
}

func (m *mockComposerLister) Composers(context.Context) ([]domain.ComposerInfo, error) {
	return m.composers, m.err
}

// mockPage implements LivePage over a fixed snapshot.
type mockPage struct {
	html       string
	markErr    error
	snapErr    error
	lastMarked string
}

func (m *mockPage) MarkTrigger(_ context.Context, selector string) error {
	m.lastMarked = selector
	return m.markErr
}

func (m *mockPage) Snapshot(context.Context) (string, error) {
	return m.html, m.snapErr
}

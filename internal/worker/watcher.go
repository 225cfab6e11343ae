package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/iconidentify/xreply/internal/domain"
)

// ErrShutdownTimeout is returned when the watcher doesn't stop within timeout.
var ErrShutdownTimeout = errors.New("composer watcher shutdown timed out")

// ComposerSource reports the composers currently on the page.
type ComposerSource interface {
	Composers(ctx context.Context) ([]domain.ComposerInfo, error)
}

// ComposerEventType says whether a composer appeared or went away.
type ComposerEventType string

const (
	ComposerAdded   ComposerEventType = "added"
	ComposerRemoved ComposerEventType = "removed"
)

// ComposerEvent is one change in the page's composers.
type ComposerEvent struct {
	Type     ComposerEventType
	Composer domain.ComposerInfo
}

// Config holds watcher configuration.
type Config struct {
	PollInterval time.Duration
}

// Watcher re-scans the page for reply composers and reports each composer
// to its emitter once when it appears and once when it goes away.
type Watcher struct {
	pollInterval time.Duration
	source       ComposerSource
	logger       *slog.Logger

	mu      sync.Mutex
	emitter domain.EventEmitter
	seen    map[string]domain.ComposerInfo

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// NewWatcher creates a new composer watcher.
func NewWatcher(cfg Config, source ComposerSource, logger *slog.Logger) *Watcher {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Watcher{
		pollInterval: cfg.PollInterval,
		source:       source,
		logger:       logger,
		seen:         make(map[string]domain.ComposerInfo),
		ctx:          ctx,
		cancel:       cancel,
	}
}

// SetEventEmitter sets where composer changes are reported.
func (w *Watcher) SetEventEmitter(emitter domain.EventEmitter) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.emitter = emitter
}

// Start launches the polling loop.
func (w *Watcher) Start() {
	w.logger.Info("starting composer watcher", "poll_interval", w.pollInterval)

	w.wg.Add(1)
	go w.run()
}

// Stop stops polling and waits for the loop to exit.
func (w *Watcher) Stop(timeout time.Duration) error {
	w.logger.Info("stopping composer watcher")
	w.cancel()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("composer watcher stopped")
		return nil
	case <-time.After(timeout):
		return ErrShutdownTimeout
	}
}

func (w *Watcher) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.scan()
	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.scan()
		}
	}
}

func (w *Watcher) scan() {
	ctx, cancel := context.WithTimeout(w.ctx, w.pollInterval)
	defer cancel()

	composers, err := w.source.Composers(ctx)
	if err != nil {
		if w.ctx.Err() == nil {
			w.logger.Debug("composer scan failed", "error", err)
		}
		return
	}

	current := make(map[string]domain.ComposerInfo, len(composers))
	for _, c := range composers {
		current[c.Key] = c
	}

	w.mu.Lock()
	var changes []ComposerEvent
	for key, c := range current {
		if _, ok := w.seen[key]; !ok {
			changes = append(changes, ComposerEvent{Type: ComposerAdded, Composer: c})
		}
	}
	for key, c := range w.seen {
		if _, ok := current[key]; !ok {
			changes = append(changes, ComposerEvent{Type: ComposerRemoved, Composer: c})
		}
	}
	w.seen = current
	emitter := w.emitter
	w.mu.Unlock()

	for _, ev := range changes {
		w.publish(ev, emitter)
	}
}

var composerMessages = map[ComposerEventType]string{
	ComposerAdded:   "Reply composer opened",
	ComposerRemoved: "Reply composer closed",
}

func (w *Watcher) publish(ev ComposerEvent, emitter domain.EventEmitter) {
	w.logger.Debug("composer changed", "type", ev.Type, "key", ev.Composer.Key, "modal", ev.Composer.InModal)

	if emitter == nil {
		return
	}
	emitter.EmitInfo(domain.EventCategoryComposer, composerMessages[ev.Type], domain.EventMetadata{
		"key":   ev.Composer.Key,
		"modal": ev.Composer.InModal,
	})
}

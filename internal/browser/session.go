package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"

	"github.com/iconidentify/xreply/internal/domain"
	"github.com/iconidentify/xreply/internal/extract"
)

// ErrNoComposer is returned when the page has no reply composer to type into.
var ErrNoComposer = errors.New("no reply composer open")

const (
	composerSelector      = `div[data-testid="tweetTextarea_0"]`
	modalComposerSelector = `[role="dialog"] div[data-testid="tweetTextarea_0"]`
)

// annotateJS copies rendered geometry onto the DOM so a static snapshot can
// answer layout questions.
var annotateJS = `(function() {
	const top = "` + extract.AttrRectTop + `", bottom = "` + extract.AttrRectBottom + `";
	document.querySelectorAll('article, [data-testid="tweet"], [data-testid="cellInnerDiv"], [data-xreply-trigger]').forEach(el => {
		const r = el.getBoundingClientRect();
		el.setAttribute(top, String(r.top + window.scrollY));
		el.setAttribute(bottom, String(r.bottom + window.scrollY));
	});
	document.querySelectorAll('img').forEach(img => {
		if (img.naturalWidth) img.setAttribute("` + extract.AttrNaturalWidth + `", String(img.naturalWidth));
		if (img.naturalHeight) img.setAttribute("` + extract.AttrNaturalHeight + `", String(img.naturalHeight));
	});
	return true;
})()`

// Config configures a browser session.
type Config struct {
	// RemoteURL attaches to a running Chrome's debugging endpoint instead of
	// launching one.
	RemoteURL  string
	Visible    bool
	ProfileDir string
	PageURL    string
}

// Session is one attached tab.
type Session struct {
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger

	// mu serializes page actions so snapshots and insertions do not interleave.
	mu sync.Mutex
}

// Open starts or attaches to Chrome and loads cfg.PageURL.
func Open(parent context.Context, cfg Config, logger *slog.Logger) (*Session, error) {
	var (
		allocCtx    context.Context
		allocCancel context.CancelFunc
	)
	if cfg.RemoteURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(parent, cfg.RemoteURL)
	} else {
		allocCtx, allocCancel = chromedp.NewExecAllocator(parent, Options(cfg.Visible, cfg.ProfileDir)...)
	}

	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			logger.Debug(fmt.Sprintf(format, args...))
		}),
	)
	cancel := func() {
		tabCancel()
		allocCancel()
	}

	if cfg.PageURL != "" {
		if err := chromedp.Run(tabCtx, chromedp.Navigate(cfg.PageURL)); err != nil {
			cancel()
			return nil, fmt.Errorf("load %s: %w", cfg.PageURL, err)
		}
	} else if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	logger.Info("browser attached", "remote", cfg.RemoteURL != "", "page", cfg.PageURL)
	return &Session{ctx: tabCtx, cancel: cancel, logger: logger}, nil
}

// run executes actions in the tab, bounded by ctx.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Tie the caller's deadline to the tab's context.
	runCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

// Snapshot returns the page's markup with layout attributes written in.
func (s *Session) Snapshot(ctx context.Context) (string, error) {
	var (
		ok  bool
		out string
	)
	err := s.run(ctx,
		chromedp.Evaluate(annotateJS, &ok),
		chromedp.OuterHTML("html", &out, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("snapshot page: %w", err)
	}
	return out, nil
}

// MarkTrigger sets the trigger attribute on the first element matching
// selector, so the next snapshot can be extracted around it.
func (s *Session) MarkTrigger(ctx context.Context, selector string) error {
	js := fmt.Sprintf(`(function() {
	document.querySelectorAll('[%[1]s]').forEach(el => el.removeAttribute('%[1]s'));
	const el = document.querySelector(%[2]q);
	if (!el) return false;
	el.setAttribute('%[1]s', '1');
	return true;
})()`, extract.TriggerAttr, selector)

	var found bool
	if err := s.run(ctx, chromedp.Evaluate(js, &found)); err != nil {
		return fmt.Errorf("mark trigger: %w", err)
	}
	if !found {
		return domain.ErrTriggerNotFound
	}
	return nil
}

// Composers lists the reply composers currently on the page.
func (s *Session) Composers(ctx context.Context) ([]domain.ComposerInfo, error) {
	page, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return ComposersFromHTML(page)
}

// ComposersFromHTML lists the reply composers in a page snapshot.
func ComposersFromHTML(page string) ([]domain.ComposerInfo, error) {
	doc, err := extract.ParseString(page)
	if err != nil {
		return nil, err
	}
	found := extract.FindComposers(doc)
	out := make([]domain.ComposerInfo, 0, len(found))
	for i, c := range found {
		out = append(out, domain.ComposerInfo{
			Key:     c.Key(i),
			Text:    c.Text(),
			InModal: c.InModal,
		})
	}
	return out, nil
}

// targetSelector picks the composer a reply goes into: the modal one when a
// reply dialog is open, otherwise the first inline composer.
func targetSelector(composers []domain.ComposerInfo) (string, string, bool) {
	if len(composers) == 0 {
		return "", "", false
	}
	for _, c := range composers {
		if c.InModal {
			return modalComposerSelector, c.Text, true
		}
	}
	return composerSelector, composers[0].Text, true
}

// InsertReply types text into the active reply composer, after a space when
// the composer already has content.
func (s *Session) InsertReply(ctx context.Context, text string) error {
	composers, err := s.Composers(ctx)
	if err != nil {
		return err
	}
	selector, existing, ok := targetSelector(composers)
	if !ok {
		return ErrNoComposer
	}

	insert := extract.InsertionText(existing, strings.TrimSpace(text))
	err = s.run(ctx,
		chromedp.Focus(selector, chromedp.ByQuery, chromedp.NodeVisible),
		chromedp.ActionFunc(func(ctx context.Context) error {
			return input.InsertText(insert).Do(ctx)
		}),
	)
	if err != nil {
		return fmt.Errorf("insert reply: %w", err)
	}
	s.logger.Debug("reply inserted", "chars", len(insert))
	return nil
}

// Close detaches from the tab and stops a launched browser.
func (s *Session) Close() {
	s.cancel()
}

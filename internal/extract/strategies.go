package extract

import (
	"golang.org/x/net/html"

	"github.com/iconidentify/xreply/internal/domain"
)

// Context is where the trigger sits on the page.
type Context string

const (
	ContextTimeline   Context = "timeline"
	ContextReplyModal Context = "reply-modal"
)

// Strategy is one way of locating the tweet container. Find returns nil when
// it has no confident match.
type Strategy struct {
	Name string
	Find func(scope, trigger *html.Node, layout Layout) *html.Node
}

// Resolution records which strategy located the container.
type Resolution struct {
	Context   Context
	Strategy  string
	Container *html.Node
}

// ModalStrategies locate the tweet being replied to inside a reply dialog,
// never the composer.
func ModalStrategies() []Strategy {
	return []Strategy{
		{Name: "modal-tweet-container", Find: findModalTweetContainer},
		{Name: "modal-content-article", Find: findModalContentArticle},
		{Name: "modal-any-article", Find: findModalAnyArticle},
	}
}

// TimelineStrategies locate the tweet owning a timeline trigger.
func TimelineStrategies() []Strategy {
	return []Strategy{
		{Name: "ancestor-article", Find: findAncestorArticle},
		{Name: "nearest-article-above", Find: findNearestArticleAbove},
	}
}

// Resolve finds the tweet container for trigger. In a reply dialog only the
// modal strategies run: a miss there is final so that a neighbouring timeline
// tweet is never answered by mistake.
func Resolve(trigger *html.Node, layout Layout) (*Resolution, error) {
	if trigger == nil {
		return nil, domain.ErrTriggerNotFound
	}
	if layout == nil {
		layout = AttrLayout{}
	}

	if dialog := closest(trigger, isDialog); dialog != nil {
		return runStrategies(ContextReplyModal, ModalStrategies(), dialog, trigger, layout)
	}
	return runStrategies(ContextTimeline, TimelineStrategies(), documentRoot(trigger), trigger, layout)
}

func runStrategies(ctx Context, strategies []Strategy, scope, trigger *html.Node, layout Layout) (*Resolution, error) {
	for _, s := range strategies {
		if c := s.Find(scope, trigger, layout); c != nil {
			return &Resolution{Context: ctx, Strategy: s.Name, Container: c}, nil
		}
	}
	return nil, domain.ErrTweetNotFound
}

func documentRoot(n *html.Node) *html.Node {
	for n.Parent != nil {
		n = n.Parent
	}
	return n
}

// findModalTweetContainer picks the article around div[data-testid="tweet"],
// or an article[data-testid="tweet"], skipping composer articles.
func findModalTweetContainer(scope, _ *html.Node, _ Layout) *html.Node {
	for _, inner := range findAll(scope, isInnerTweet) {
		if art := closest(inner, isArticle); art != nil && contains(scope, art) && !isComposerArticle(art) {
			return art
		}
	}
	for _, art := range findAll(scope, isTweetArticle) {
		if !isComposerArticle(art) {
			return art
		}
	}
	return nil
}

// findModalContentArticle picks the first non-composer article that shows
// tweet content.
func findModalContentArticle(scope, _ *html.Node, _ Layout) *html.Node {
	for _, art := range findAll(scope, isArticle) {
		if !isComposerArticle(art) && hasContentMarkers(art) {
			return art
		}
	}
	return nil
}

// findModalAnyArticle picks any non-composer article.
func findModalAnyArticle(scope, _ *html.Node, _ Layout) *html.Node {
	for _, art := range findAll(scope, isArticle) {
		if !isComposerArticle(art) {
			return art
		}
	}
	return nil
}

func findAncestorArticle(_, trigger *html.Node, _ Layout) *html.Node {
	return closest(trigger, isArticle)
}

// findNearestArticleAbove handles affordances rendered below their tweet:
// among articles whose bottom edge is at or above the trigger's top, the one
// with the greatest bottom wins.
func findNearestArticleAbove(scope, trigger *html.Node, layout Layout) *html.Node {
	tr, ok := layout.Rect(trigger)
	if !ok {
		return nil
	}

	var best *html.Node
	var bestBottom float64
	for _, art := range findAll(scope, isArticle) {
		r, ok := layout.Rect(art)
		if !ok || r.Bottom > tr.Top {
			continue
		}
		if best == nil || r.Bottom > bestBottom {
			best, bestBottom = art, r.Bottom
		}
	}
	return best
}

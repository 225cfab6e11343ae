// Package extract pulls tweet content out of X.com markup: it locates the
// tweet a reply button belongs to and reads its text, media, video markers
// and metadata.
package extract

import (
	"io"
	"log/slog"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/iconidentify/xreply/internal/domain"
)

// DefaultMinImageSize is the smallest accepted media dimension in pixels.
const DefaultMinImageSize = 40

var (
	statusIDRe  = regexp.MustCompile(`/status/(\d+)`)
	shortLinkRe = regexp.MustCompile(`(?:https?://)?(?:pic\.twitter\.com|pic\.x\.com)/[A-Za-z0-9]+`)
	spaceRunRe  = regexp.MustCompile(`[ \t]{2,}`)
)

// Option configures an Extractor.
type Option func(*Extractor)

// WithLayout sets the geometry source.
func WithLayout(l Layout) Option {
	return func(e *Extractor) { e.layout = l }
}

// WithMinImageSize overrides the avatar/emoji size threshold.
func WithMinImageSize(px int) Option {
	return func(e *Extractor) { e.minImageSize = px }
}

// WithShortLinkRedaction removes pic.twitter.com / pic.x.com links from the
// returned text; they are still reported in MediaShortLinks.
func WithShortLinkRedaction(enabled bool) Option {
	return func(e *Extractor) { e.redactShortLinks = enabled }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Extractor) { e.logger = l }
}

// Extractor reads TweetData from parsed markup.
type Extractor struct {
	layout           Layout
	minImageSize     int
	redactShortLinks bool
	logger           *slog.Logger
}

// New creates an Extractor.
func New(opts ...Option) *Extractor {
	e := &Extractor{
		layout:       AttrLayout{},
		minImageSize: DefaultMinImageSize,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// FindTrigger returns the element marked with TriggerAttr.
func FindTrigger(doc *html.Node) (*html.Node, error) {
	if doc != nil && isTrigger(doc) {
		return doc, nil
	}
	if doc == nil {
		return nil, domain.ErrTriggerNotFound
	}
	if n := findFirst(doc, isTrigger); n != nil {
		return n, nil
	}
	return nil, domain.ErrTriggerNotFound
}

// ExtractHTML parses a page snapshot and extracts the tweet around its
// marked trigger.
func (e *Extractor) ExtractHTML(r io.Reader) (*domain.TweetData, error) {
	doc, err := Parse(r)
	if err != nil {
		return nil, err
	}
	trigger, err := FindTrigger(doc)
	if err != nil {
		return nil, err
	}
	return e.Extract(trigger)
}

// Extract locates the tweet for trigger and reads its content. It returns
// domain.ErrTweetNotFound when no container can be isolated. Empty content is
// not an error here; callers check TweetData.IsEmpty.
func (e *Extractor) Extract(trigger *html.Node) (*domain.TweetData, error) {
	res, err := Resolve(trigger, e.layout)
	if err != nil {
		e.logger.Debug("tweet container not resolved", "error", err)
		return nil, err
	}
	e.logger.Debug("tweet container resolved", "context", res.Context, "strategy", res.Strategy)
	return e.ExtractContainer(res.Container), nil
}

// ExtractContainer reads content from an already resolved tweet container.
func (e *Extractor) ExtractContainer(container *html.Node) *domain.TweetData {
	text := extractText(container)
	links := extractShortLinks(container, text)
	if e.redactShortLinks && len(links) > 0 {
		text = redactShortLinks(text)
	}

	hints := extractVideoHints(container)
	url, id := extractStatus(container)

	return &domain.TweetData{
		Text:            text,
		Images:          e.extractImages(container),
		HasVideo:        len(hints) > 0,
		VideoHints:      hints,
		MediaShortLinks: links,
		TweetURL:        url,
		TweetID:         id,
		AuthorHandle:    extractAuthor(container),
	}
}

// extractText joins every tweet text block, one trimmed block per line.
func extractText(container *html.Node) string {
	var parts []string
	for _, block := range findAll(container, isTweetText) {
		if t := strings.TrimSpace(innerText(block)); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

func (e *Extractor) extractImages(container *html.Node) []string {
	images := []string{}
	for _, img := range findAll(container, isMediaImage) {
		if e.keepImage(img) {
			images = append(images, absoluteSrc(attr(img, "src")))
		}
	}
	return images
}

// keepImage drops avatars, emoji, badges and other non-media images.
func (e *Extractor) keepImage(img *html.Node) bool {
	src := attr(img, "src")

	w, h := e.layout.ImageSize(img)
	if w > 0 && h > 0 && (w < e.minImageSize || h < e.minImageSize) {
		return false
	}
	for _, marker := range excludedImageMarkers {
		if strings.Contains(src, marker) {
			return false
		}
	}
	if closest(img, isTweetText) != nil {
		return false
	}
	if attr(img, "aria-hidden") == "true" && !strings.Contains(src, "/media/") && !strings.Contains(src, MediaHost) {
		return false
	}
	return true
}

func absoluteSrc(src string) string {
	if strings.HasPrefix(src, "//") {
		return "https:" + src
	}
	return src
}

// extractVideoHints emits one opaque hint per video element found.
func extractVideoHints(container *html.Node) []string {
	hints := []string{}
	for range findAll(container, isVideo) {
		hints = append(hints, domain.VideoHint)
	}
	return hints
}

// extractStatus returns the absolute tweet URL and numeric id from the first
// status link.
func extractStatus(container *html.Node) (string, string) {
	link := findFirst(container, isStatusLink)
	if link == nil {
		return "", ""
	}
	href := attr(link, "href")
	if href == "" {
		return "", ""
	}

	url := href
	if !strings.HasPrefix(href, "http") {
		url = "https://x.com" + href
	}
	var id string
	if m := statusIDRe.FindStringSubmatch(href); m != nil {
		id = m[1]
	}
	return url, id
}

// extractAuthor derives @handle from the first internal non-status link.
func extractAuthor(container *html.Node) string {
	link := findFirst(container, isProfileLink)
	if link == nil {
		return ""
	}
	path := strings.TrimPrefix(attr(link, "href"), "/")
	handle, _, _ := strings.Cut(path, "/")
	handle, _, _ = strings.Cut(handle, "?")
	if handle == "" {
		return ""
	}
	return "@" + handle
}

// extractShortLinks finds media short links in the text and anchors,
// de-duplicated in first-seen order.
func extractShortLinks(container *html.Node, text string) []string {
	seen := map[string]bool{}
	var links []string
	add := func(s string) {
		for _, m := range shortLinkRe.FindAllString(s, -1) {
			if !strings.HasPrefix(m, "http") {
				m = "https://" + m
			}
			if !seen[m] {
				seen[m] = true
				links = append(links, m)
			}
		}
	}

	add(text)
	for _, a := range findAll(container, func(n *html.Node) bool { return isElement(n, "a") }) {
		add(attr(a, "href"))
		add(innerText(a))
	}
	return links
}

func redactShortLinks(text string) string {
	out := shortLinkRe.ReplaceAllString(text, "")
	lines := strings.Split(out, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(spaceRunRe.ReplaceAllString(l, " "))
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

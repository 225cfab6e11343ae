package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/iconidentify/xreply/internal/cache"
	"github.com/iconidentify/xreply/internal/domain"
	"github.com/iconidentify/xreply/internal/extract"
	"github.com/iconidentify/xreply/internal/repository"
)

// NoticeCachedReply is shown when a reply is served from the cache.
const NoticeCachedReply = "Used cached reply"

// ComposerInserter types a reply into the page's active reply composer.
type ComposerInserter interface {
	InsertReply(ctx context.Context, text string) error
}

// ReplyResult is the outcome of one reply action.
type ReplyResult struct {
	Reply    string            `json:"reply"`
	Cached   bool              `json:"cached"`
	Notice   string            `json:"notice,omitempty"`
	Inserted bool              `json:"inserted"`
	Tweet    *domain.TweetData `json:"tweet"`
	// HistoryID is set when the reply was appended to history.
	HistoryID string `json:"historyId,omitempty"`
}

// ReplyService runs the content-side flow: extract, check the cache, relay,
// then record the reply.
type ReplyService struct {
	extractor *extract.Extractor
	relay     Generator
	cache     *cache.ReplyCache
	config    repository.ConfigRepository
	history   repository.HistoryRepository
	logger    *slog.Logger
	now       func() time.Time

	mu       sync.RWMutex
	inserter ComposerInserter
	events   domain.EventEmitter
}

// NewReplyService creates a new reply service.
func NewReplyService(
	extractor *extract.Extractor,
	relay Generator,
	replyCache *cache.ReplyCache,
	config repository.ConfigRepository,
	history repository.HistoryRepository,
	logger *slog.Logger,
) *ReplyService {
	return &ReplyService{
		extractor: extractor,
		relay:     relay,
		cache:     replyCache,
		config:    config,
		history:   history,
		logger:    logger,
		now:       time.Now,
	}
}

// AttachInserter enables composer insertion for requests that ask for it.
func (s *ReplyService) AttachInserter(i ComposerInserter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inserter = i
}

func (s *ReplyService) getInserter() ComposerInserter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inserter
}

// SetEventEmitter sets the activity feed for reply events.
func (s *ReplyService) SetEventEmitter(emitter domain.EventEmitter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = emitter
}

func (s *ReplyService) emit(severity domain.EventSeverity, message string, metadata domain.EventMetadata) {
	s.mu.RLock()
	emitter := s.events
	s.mu.RUnlock()
	if emitter == nil {
		return
	}
	emitter.Emit(domain.Event{
		Severity: severity,
		Category: domain.EventCategoryReply,
		Message:  message,
		Metadata: metadata.ToJSON(),
	})
}

// Extract reads tweet data around the marked trigger in a page snapshot.
func (s *ReplyService) Extract(r io.Reader) (*domain.TweetData, error) {
	return s.extractor.ExtractHTML(r)
}

// ReplyFromHTML extracts the tweet from a page snapshot and replies to it.
func (s *ReplyService) ReplyFromHTML(ctx context.Context, page io.Reader, mode string, insert bool) (*ReplyResult, error) {
	tweet, err := s.Extract(page)
	if err != nil {
		return nil, err
	}
	return s.Reply(ctx, mode, tweet, insert)
}

// Reply produces a reply for tweet in mode. A cache hit skips the network
// and history. When insert is true and an inserter is attached, the reply is
// typed into the active composer.
func (s *ReplyService) Reply(ctx context.Context, mode string, tweet *domain.TweetData, insert bool) (*ReplyResult, error) {
	if tweet.IsEmpty() {
		return nil, domain.ErrEmptyTweet
	}
	mode = strings.TrimSpace(mode)
	if mode == "" {
		return nil, domain.ErrUnknownMode
	}

	personaID, err := s.config.ActivePersonaID(ctx)
	if err != nil {
		return nil, fmt.Errorf("load active persona: %w", err)
	}

	result := &ReplyResult{Tweet: tweet}

	if reply, ok := s.cache.Get(tweet.TweetID, mode, personaID); ok {
		s.logger.Debug("using cached reply", "tweet_id", tweet.TweetID, "mode", mode, "persona_id", personaID)
		result.Reply = reply
		result.Cached = true
		result.Notice = NoticeCachedReply
		s.maybeInsert(ctx, result, insert)
		return result, nil
	}

	if len(tweet.Images) == 0 && len(tweet.MediaShortLinks) > 0 {
		s.logger.Debug("no images in markup but tweet links to media", "tweet_id", tweet.TweetID, "links", len(tweet.MediaShortLinks))
	}

	// The generation may be shared with concurrent callers and outlive this
	// request, so it records its own reply. Only the caller that ran it sees
	// historyID.
	var historyID string
	key := cache.Key(tweet.TweetID, mode, personaID)
	reply, _, err := s.cache.Do(ctx, key, func(genCtx context.Context) (string, error) {
		reply, err := s.relay.Generate(genCtx, domain.NewGenerateRequest(mode, tweet))
		if err != nil {
			return "", err
		}
		if reply == "" {
			return "", domain.ErrEmptyReply
		}
		historyID = s.record(genCtx, tweet, mode, personaID, reply)
		return reply, nil
	})
	if err != nil {
		s.emit(domain.EventSeverityWarning, UserMessage(err), domain.EventMetadata{"tweet_id": tweet.TweetID, "mode": mode})
		return nil, err
	}
	result.Reply = reply
	result.HistoryID = historyID

	s.maybeInsert(ctx, result, insert)
	return result, nil
}

// record caches a generated reply and appends it to history. It returns the
// history id, or "" when the append failed.
func (s *ReplyService) record(ctx context.Context, tweet *domain.TweetData, mode, personaID, reply string) string {
	s.cache.Set(tweet.TweetID, mode, personaID, reply)
	s.emit(domain.EventSeverityInfo, "Reply generated", domain.EventMetadata{"tweet_id": tweet.TweetID, "mode": mode, "persona_id": personaID})

	item, err := s.appendHistory(ctx, tweet, mode, personaID, reply)
	if err != nil {
		s.logger.Warn("failed to store reply history", "tweet_id", tweet.TweetID, "error", err)
		return ""
	}
	return item.ID
}

func (s *ReplyService) appendHistory(ctx context.Context, tweet *domain.TweetData, mode, personaID, reply string) (domain.HistoryItem, error) {
	var personaName string
	if personaID != "" {
		personas, err := s.config.Personas(ctx)
		if err != nil {
			return domain.HistoryItem{}, err
		}
		for _, p := range personas {
			if p.ID == personaID {
				personaName = p.Name
				break
			}
		}
	}

	ts := s.now().UnixMilli()
	item := domain.HistoryItem{
		ID:          strconv.FormatInt(ts, 10),
		Timestamp:   ts,
		PersonaName: personaName,
		TweetURL:    tweet.TweetURL,
		Mode:        mode,
		ReplyText:   reply,
	}
	if _, err := s.history.Append(ctx, item); err != nil {
		return domain.HistoryItem{}, err
	}
	return item, nil
}

func (s *ReplyService) maybeInsert(ctx context.Context, result *ReplyResult, insert bool) {
	if !insert {
		return
	}
	inserter := s.getInserter()
	if inserter == nil {
		return
	}
	if err := inserter.InsertReply(ctx, result.Reply); err != nil {
		s.logger.Warn("failed to insert reply", "error", err)
		return
	}
	result.Inserted = true
}

// History returns the stored replies, newest first.
func (s *ReplyService) History(ctx context.Context) ([]domain.HistoryItem, error) {
	return s.history.List(ctx)
}

// ClearHistory removes every stored reply.
func (s *ReplyService) ClearHistory(ctx context.Context) error {
	return s.history.Clear(ctx)
}

// PurgeCache drops every cached reply.
func (s *ReplyService) PurgeCache() {
	s.cache.Purge()
}

// User-facing messages for errors without a dedicated text.
const (
	MessageLicense   = "License invalid or expired. Check your key in Shadow Intern settings."
	MessageLimit     = "Daily limit reached. Try again later."
	MessageServer    = "Server error. Please try again."
	MessageNoReply   = "No reply generated. Please try again."
	MessageNoNetwork = "No response from server. Please check your connection."
)

// UserMessage turns an error from the reply flow into the text shown to the
// user. Remote and validation messages are classified by substring.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, domain.ErrEmptyReply):
		return MessageNoReply
	case errors.Is(err, domain.ErrTweetNotFound),
		errors.Is(err, domain.ErrEmptyTweet),
		errors.Is(err, domain.ErrNoActiveMode):
		return rootMessage(err)
	case domain.IsNetwork(err):
		return MessageNoNetwork
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "license"), strings.Contains(msg, "License"):
		return MessageLicense
	case strings.Contains(msg, "limit"), strings.Contains(msg, "Limit"):
		return MessageLimit
	case strings.Contains(msg, "server"), strings.Contains(msg, "Server"):
		return MessageServer
	}
	return msg
}

// rootMessage returns the message of the domain sentinel err wraps.
func rootMessage(err error) string {
	for _, sentinel := range []error{domain.ErrTweetNotFound, domain.ErrEmptyTweet, domain.ErrNoActiveMode} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return err.Error()
}

// Package cache holds generated replies for the lifetime of the process.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// DefaultSize is the default number of replies kept.
const DefaultSize = 512

const (
	noTweetID      = "no-id"
	defaultPersona = "default"
)

// Key builds the cache key for a tweet, mode and persona. A missing tweet id
// or persona id collapses onto a shared placeholder.
func Key(tweetID, mode, personaID string) string {
	if tweetID == "" {
		tweetID = noTweetID
	}
	if personaID == "" {
		personaID = defaultPersona
	}
	return tweetID + "::" + mode + "::" + personaID
}

// ReplyCache is a bounded in-memory reply cache. It is never persisted.
type ReplyCache struct {
	entries  *lru.Cache[string, string]
	inflight singleflight.Group
	coalesce bool
	logger   *slog.Logger
}

// New creates a ReplyCache holding at most size replies. When coalesce is
// true, concurrent Do calls for the same key share one generation.
func New(size int, coalesce bool, logger *slog.Logger) (*ReplyCache, error) {
	if size <= 0 {
		size = DefaultSize
	}
	entries, err := lru.New[string, string](size)
	if err != nil {
		return nil, fmt.Errorf("create reply cache: %w", err)
	}
	return &ReplyCache{
		entries:  entries,
		coalesce: coalesce,
		logger:   logger,
	}, nil
}

// Get returns the cached reply for the tuple.
func (c *ReplyCache) Get(tweetID, mode, personaID string) (string, bool) {
	return c.entries.Get(Key(tweetID, mode, personaID))
}

// Set stores reply for the tuple.
func (c *ReplyCache) Set(tweetID, mode, personaID, reply string) {
	c.entries.Add(Key(tweetID, mode, personaID), reply)
}

// Len returns the number of cached replies.
func (c *ReplyCache) Len() int {
	return c.entries.Len()
}

// Purge drops every cached reply.
func (c *ReplyCache) Purge() {
	c.entries.Purge()
}

// SharedCallTimeout bounds a coalesced generation once it no longer follows
// any single caller's context.
const SharedCallTimeout = 2 * time.Minute

// Do runs fn for key, sharing the result with any concurrent caller for the
// same key when coalescing is on. shared reports whether the result came from
// another caller's call. Do does not read or write the cache itself.
//
// A coalesced fn runs on a context detached from ctx, so one caller giving up
// does not fail the others. Each caller still returns ctx.Err() as soon as
// its own ctx is done.
func (c *ReplyCache) Do(ctx context.Context, key string, fn func(context.Context) (string, error)) (reply string, shared bool, err error) {
	if !c.coalesce {
		reply, err = fn(ctx)
		return reply, false, err
	}

	// singleflight reports shared to the caller that ran fn as well, so
	// leadership is tracked here. leader is written before the result is
	// sent on ch.
	leader := false
	ch := c.inflight.DoChan(key, func() (any, error) {
		leader = true
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), SharedCallTimeout)
		defer cancel()
		return fn(callCtx)
	})

	select {
	case res := <-ch:
		if !leader {
			c.logger.Debug("coalesced reply generation", "key", key)
		}
		s, _ := res.Val.(string)
		return s, !leader, res.Err
	case <-ctx.Done():
		return "", false, ctx.Err()
	}
}

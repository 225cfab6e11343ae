package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iconidentify/xreply/internal/domain"
)

// DefaultEventBufferSize is the number of events kept in memory.
const DefaultEventBufferSize = 200

// EventService keeps recent activity in a ring buffer and fans it out to
// stream subscribers.
type EventService struct {
	logger *slog.Logger

	mu     sync.RWMutex
	events []domain.Event
	head   int
	count  int

	subMu       sync.RWMutex
	subscribers map[uint64]chan domain.Event
	subSeq      uint64
}

// NewEventService creates an event service keeping size events.
func NewEventService(size int, logger *slog.Logger) *EventService {
	if size <= 0 {
		size = DefaultEventBufferSize
	}
	return &EventService{
		logger:      logger,
		events:      make([]domain.Event, size),
		subscribers: make(map[uint64]chan domain.Event),
	}
}

// Emit records event and notifies subscribers.
func (s *EventService) Emit(event domain.Event) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Severity == "" {
		event.Severity = domain.EventSeverityInfo
	}

	s.mu.Lock()
	s.events[s.head] = event
	s.head = (s.head + 1) % len(s.events)
	if s.count < len(s.events) {
		s.count++
	}
	s.mu.Unlock()

	s.notifySubscribers(event)

	level := slog.LevelDebug
	if event.Severity == domain.EventSeverityWarning {
		level = slog.LevelWarn
	}
	s.logger.Log(context.Background(), level, "event emitted",
		"event_id", event.ID,
		"category", event.Category,
		"message", event.Message,
	)
}

// EmitInfo records an info event.
func (s *EventService) EmitInfo(category domain.EventCategory, message string, metadata domain.EventMetadata) {
	s.Emit(domain.Event{
		Severity: domain.EventSeverityInfo,
		Category: category,
		Message:  message,
		Metadata: metadata.ToJSON(),
	})
}

// EmitWarning records a warning event.
func (s *EventService) EmitWarning(category domain.EventCategory, message string, metadata domain.EventMetadata) {
	s.Emit(domain.Event{
		Severity: domain.EventSeverityWarning,
		Category: category,
		Message:  message,
		Metadata: metadata.ToJSON(),
	})
}

// Query returns matching events newest first. Limit defaults to 50 and is
// capped at the buffer size.
func (s *EventService) Query(filter domain.EventFilter, limit, offset int) *domain.EventQueryResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	limit = min(limit, len(s.events))
	offset = max(offset, 0)

	matched := make([]domain.Event, 0, s.count)
	for i := 0; i < s.count; i++ {
		idx := (s.head - 1 - i + len(s.events)) % len(s.events)
		event := s.events[idx]
		if matchesFilter(event, filter) {
			matched = append(matched, event)
		}
	}

	total := len(matched)
	if offset >= total {
		return &domain.EventQueryResult{Events: []domain.Event{}, Total: total}
	}
	end := min(offset+limit, total)
	return &domain.EventQueryResult{
		Events:  matched[offset:end],
		Total:   total,
		HasMore: end < total,
	}
}

func matchesFilter(event domain.Event, filter domain.EventFilter) bool {
	if filter.Category != "" && event.Category != filter.Category {
		return false
	}
	if filter.Severity != "" && event.Severity != filter.Severity {
		return false
	}
	return true
}

// Subscribe returns a channel receiving every new event. The caller must call
// Unsubscribe when done.
func (s *EventService) Subscribe() (uint64, <-chan domain.Event) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	s.subSeq++
	id := s.subSeq
	ch := make(chan domain.Event, 100)
	s.subscribers[id] = ch

	s.logger.Debug("event subscriber added", "subscriber_id", id, "total_subscribers", len(s.subscribers))
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (s *EventService) Unsubscribe(id uint64) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	if ch, ok := s.subscribers[id]; ok {
		close(ch)
		delete(s.subscribers, id)
		s.logger.Debug("event subscriber removed", "subscriber_id", id, "total_subscribers", len(s.subscribers))
	}
}

func (s *EventService) notifySubscribers(event domain.Event) {
	s.subMu.RLock()
	defer s.subMu.RUnlock()

	for id, ch := range s.subscribers {
		select {
		case ch <- event:
		default:
			s.logger.Warn("event subscriber buffer full, dropping event", "subscriber_id", id, "event_id", event.ID)
		}
	}
}

// SubscriberCount returns the number of stream subscribers.
func (s *EventService) SubscriberCount() int {
	s.subMu.RLock()
	defer s.subMu.RUnlock()
	return len(s.subscribers)
}

package domain

import (
	"encoding/json"
	"time"
)

// EventSeverity is the level of an activity event.
type EventSeverity string

const (
	EventSeverityInfo    EventSeverity = "info"
	EventSeverityWarning EventSeverity = "warning"
	EventSeverityError   EventSeverity = "error"
)

// EventCategory groups activity events for filtering.
type EventCategory string

const (
	EventCategoryReply    EventCategory = "reply"
	EventCategoryLicense  EventCategory = "license"
	EventCategoryComposer EventCategory = "composer"
	EventCategorySettings EventCategory = "settings"
)

// Event is one entry of the activity feed pushed to the extension.
type Event struct {
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Severity  EventSeverity   `json:"severity"`
	Category  EventCategory   `json:"category"`
	Message   string          `json:"message"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
}

// EventMetadata is a helper type for building event metadata.
type EventMetadata map[string]any

// ToJSON encodes the metadata, or returns nil when it cannot.
func (m EventMetadata) ToJSON() json.RawMessage {
	if m == nil {
		return nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil
	}
	return data
}

// EventEmitter is implemented by the activity feed.
type EventEmitter interface {
	Emit(event Event)
	EmitInfo(category EventCategory, message string, metadata EventMetadata)
	EmitWarning(category EventCategory, message string, metadata EventMetadata)
}

// EventFilter selects events by category and severity. Zero values match all.
type EventFilter struct {
	Category EventCategory `json:"category,omitempty"`
	Severity EventSeverity `json:"severity,omitempty"`
}

// EventQueryResult is one page of events, newest first.
type EventQueryResult struct {
	Events  []Event `json:"events"`
	Total   int     `json:"total"`
	HasMore bool    `json:"hasMore"`
}

package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/iconidentify/xreply/internal/domain"
	"github.com/iconidentify/xreply/internal/service"
)

// keepaliveInterval is how often an idle stream sends a comment line.
var keepaliveInterval = 30 * time.Second

// EventHandler handles event-related HTTP requests.
type EventHandler struct {
	eventSvc *service.EventService
	logger   *slog.Logger
}

// NewEventHandler creates a new event handler.
func NewEventHandler(eventSvc *service.EventService, logger *slog.Logger) *EventHandler {
	return &EventHandler{
		eventSvc: eventSvc,
		logger:   logger,
	}
}

// EventListResponse contains paginated event list.
type EventListResponse struct {
	Events  []domain.Event `json:"events"`
	Total   int            `json:"total"`
	Limit   int            `json:"limit"`
	Offset  int            `json:"offset"`
	HasMore bool           `json:"hasMore"`
}

// List handles GET /api/v1/events
// Query parameters:
//   - severity: filter by severity (info, warning, error)
//   - category: filter by category (reply, license, composer, settings)
//   - limit: max events to return (default 50)
//   - offset: pagination offset
func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := 50, 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	filter := domain.EventFilter{
		Severity: domain.EventSeverity(r.URL.Query().Get("severity")),
		Category: domain.EventCategory(r.URL.Query().Get("category")),
	}

	result := h.eventSvc.Query(filter, limit, offset)

	writeJSON(w, http.StatusOK, EventListResponse{
		Events:  result.Events,
		Total:   result.Total,
		Limit:   limit,
		Offset:  offset,
		HasMore: result.HasMore,
	})
}

// Stream handles GET /api/v1/events/stream
// Server-Sent Events endpoint for real-time event streaming.
func (h *EventHandler) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// The server's write timeout would cut the stream; it ends with the client.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	subID, eventCh := h.eventSvc.Subscribe()
	defer h.eventSvc.Unsubscribe(subID)

	h.logger.Info("SSE client connected", "subscriber_id", subID, "remote_addr", r.RemoteAddr)

	fmt.Fprintf(w, "event: connected\ndata: {\"subscriber_id\": %d}\n\n", subID)
	flusher.Flush()

	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			h.logger.Info("SSE client disconnected", "subscriber_id", subID)
			return

		case event, ok := <-eventCh:
			if !ok {
				return
			}

			data, err := json.Marshal(event)
			if err != nil {
				h.logger.Warn("failed to serialize event", "event_id", event.ID, "error", err)
				continue
			}

			fmt.Fprintf(w, "event: event\ndata: %s\n\n", data)
			flusher.Flush()

		case <-keepalive.C:
			fmt.Fprintf(w, ": keepalive\n\n")
			flusher.Flush()
		}
	}
}

package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/iconidentify/xreply/internal/domain"
	"github.com/iconidentify/xreply/internal/service"
)

// LivePage is an attached browser tab that can be snapshotted around a
// clicked element.
type LivePage interface {
	MarkTrigger(ctx context.Context, selector string) error
	Snapshot(ctx context.Context) (string, error)
}

// ReplyHandler handles the content-side reply flow.
type ReplyHandler struct {
	replies *service.ReplyService
	relay   service.Generator
	page    LivePage
	logger  *slog.Logger
}

// NewReplyHandler creates a new reply handler.
func NewReplyHandler(replies *service.ReplyService, relay service.Generator, logger *slog.Logger) *ReplyHandler {
	return &ReplyHandler{
		replies: replies,
		relay:   relay,
		logger:  logger,
	}
}

// AttachPage enables POST /api/v1/replies/live.
func (h *ReplyHandler) AttachPage(page LivePage) {
	h.page = page
}

// ReplyRequest is the body of POST /api/v1/replies. Either HTML, a page
// snapshot with the clicked trigger marked, or a prebuilt Tweet is required.
type ReplyRequest struct {
	Mode   string            `json:"mode"`
	HTML   string            `json:"html,omitempty"`
	Tweet  *domain.TweetData `json:"tweet,omitempty"`
	Insert bool              `json:"insert"`
}

// readReplyRequest accepts JSON, or a raw text/html snapshot with mode and
// insert in the query string.
func readReplyRequest(w http.ResponseWriter, r *http.Request) (*ReplyRequest, bool) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	r.Body = http.MaxBytesReader(w, r.Body, maxHTMLBody)

	if mediaType == "text/html" {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return nil, false
		}
		insert, _ := strconv.ParseBool(r.URL.Query().Get("insert"))
		return &ReplyRequest{
			Mode:   r.URL.Query().Get("mode"),
			HTML:   string(data),
			Insert: insert,
		}, true
	}

	var req ReplyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return nil, false
	}
	return &req, true
}

// Reply handles POST /api/v1/replies
func (h *ReplyHandler) Reply(w http.ResponseWriter, r *http.Request) {
	req, ok := readReplyRequest(w, r)
	if !ok {
		return
	}

	var (
		result *service.ReplyResult
		err    error
	)
	switch {
	case req.Tweet != nil:
		result, err = h.replies.Reply(r.Context(), req.Mode, req.Tweet, req.Insert)
	case strings.TrimSpace(req.HTML) != "":
		result, err = h.replies.ReplyFromHTML(r.Context(), strings.NewReader(req.HTML), req.Mode, req.Insert)
	default:
		writeError(w, http.StatusBadRequest, "html or tweet is required")
		return
	}
	if err != nil {
		writeServiceError(w, h.logger, "reply", err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// LiveReplyRequest is the body of POST /api/v1/replies/live.
type LiveReplyRequest struct {
	Mode string `json:"mode"`
	// Selector is a CSS selector for the clicked element on the live page.
	Selector string `json:"selector"`
	Insert   bool   `json:"insert"`
}

// LiveReply handles POST /api/v1/replies/live
// The attached tab is snapshotted around Selector and replied to.
func (h *ReplyHandler) LiveReply(w http.ResponseWriter, r *http.Request) {
	if h.page == nil {
		writeError(w, http.StatusServiceUnavailable, "no browser attached")
		return
	}

	var req LiveReplyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Selector) == "" {
		writeError(w, http.StatusBadRequest, "selector is required")
		return
	}

	if err := h.page.MarkTrigger(r.Context(), req.Selector); err != nil {
		writeServiceError(w, h.logger, "mark trigger", err)
		return
	}
	page, err := h.page.Snapshot(r.Context())
	if err != nil {
		h.logger.Warn("failed to snapshot page", "error", err)
		writeError(w, http.StatusBadGateway, "failed to read the page")
		return
	}

	result, err := h.replies.ReplyFromHTML(r.Context(), strings.NewReader(page), req.Mode, req.Insert)
	if err != nil {
		writeServiceError(w, h.logger, "reply", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Generate handles POST /api/v1/generate
// The relay's own errors pass through with their status so the caller can
// classify them.
func (h *ReplyHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req domain.GenerateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	reply, err := h.relay.Generate(r.Context(), req)
	if err != nil {
		status := domain.HTTPStatus(err)
		if status >= http.StatusInternalServerError {
			h.logger.Warn("generate failed", "mode", req.Mode, "error", err)
		}
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"reply": reply})
}

// Extract handles POST /api/v1/extract
func (h *ReplyHandler) Extract(w http.ResponseWriter, r *http.Request) {
	req, ok := readReplyRequest(w, r)
	if !ok {
		return
	}
	if strings.TrimSpace(req.HTML) == "" {
		writeError(w, http.StatusBadRequest, "html is required")
		return
	}

	tweet, err := h.replies.Extract(strings.NewReader(req.HTML))
	if err != nil {
		writeServiceError(w, h.logger, "extract", err)
		return
	}
	if tweet.IsEmpty() {
		writeServiceError(w, h.logger, "extract", domain.ErrEmptyTweet)
		return
	}

	writeJSON(w, http.StatusOK, tweet)
}

// HistoryResponse wraps the history list.
type HistoryResponse struct {
	Items []domain.HistoryItem `json:"items"`
}

// History handles GET /api/v1/history
func (h *ReplyHandler) History(w http.ResponseWriter, r *http.Request) {
	items, err := h.replies.History(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, "list history", err)
		return
	}
	if items == nil {
		items = []domain.HistoryItem{}
	}
	writeJSON(w, http.StatusOK, HistoryResponse{Items: items})
}

// ClearHistory handles DELETE /api/v1/history
func (h *ReplyHandler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	if err := h.replies.ClearHistory(r.Context()); err != nil {
		writeServiceError(w, h.logger, "clear history", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PurgeCache handles DELETE /api/v1/cache
func (h *ReplyHandler) PurgeCache(w http.ResponseWriter, r *http.Request) {
	h.replies.PurgeCache()
	w.WriteHeader(http.StatusNoContent)
}

package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/iconidentify/xreply/internal/domain"
)

// ComposerLister reports the reply composers on the attached page.
type ComposerLister interface {
	Composers(ctx context.Context) ([]domain.ComposerInfo, error)
}

// ComposerHandler exposes the attached browser's composers.
type ComposerHandler struct {
	lister ComposerLister
	logger *slog.Logger
}

// NewComposerHandler creates a new composer handler. lister may be nil when
// no browser is attached.
func NewComposerHandler(lister ComposerLister, logger *slog.Logger) *ComposerHandler {
	return &ComposerHandler{
		lister: lister,
		logger: logger,
	}
}

// ComposersResponse wraps the composer list.
type ComposersResponse struct {
	Composers []domain.ComposerInfo `json:"composers"`
}

// List handles GET /api/v1/composers
func (h *ComposerHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.lister == nil {
		writeError(w, http.StatusServiceUnavailable, "no browser attached")
		return
	}

	composers, err := h.lister.Composers(r.Context())
	if err != nil {
		h.logger.Warn("failed to list composers", "error", err)
		writeError(w, http.StatusBadGateway, "failed to read the page")
		return
	}
	if composers == nil {
		composers = []domain.ComposerInfo{}
	}
	writeJSON(w, http.StatusOK, ComposersResponse{Composers: composers})
}

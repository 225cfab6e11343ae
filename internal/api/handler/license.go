package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/iconidentify/xreply/internal/service"
)

// LicenseHandler serves the popup license model.
type LicenseHandler struct {
	svc    *service.LicenseService
	logger *slog.Logger
}

// NewLicenseHandler creates a new license handler.
func NewLicenseHandler(svc *service.LicenseService, logger *slog.Logger) *LicenseHandler {
	return &LicenseHandler{
		svc:    svc,
		logger: logger,
	}
}

// Status handles GET /api/v1/license
// Query parameters:
//   - cached: if "true", render the cached entry without a network call
func (h *LicenseHandler) Status(w http.ResponseWriter, r *http.Request) {
	cachedOnly, _ := strconv.ParseBool(r.URL.Query().Get("cached"))

	var (
		st  *service.LicenseStatus
		err error
	)
	if cachedOnly {
		st, err = h.svc.CachedStatus(r.Context())
	} else {
		st, err = h.svc.Status(r.Context())
	}
	if err != nil {
		writeServiceError(w, h.logger, "license status", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/iconidentify/xreply/internal/domain"
	"github.com/iconidentify/xreply/internal/service"
	"github.com/iconidentify/xreply/internal/settings"
)

// PassphraseHeader carries the export passphrase. It is never read from the
// query string.
const PassphraseHeader = "X-Export-Passphrase"

// SettingsHandler handles the popup and options endpoints.
type SettingsHandler struct {
	svc    *service.SettingsService
	logger *slog.Logger
}

// NewSettingsHandler creates a new settings handler.
func NewSettingsHandler(svc *service.SettingsService, logger *slog.Logger) *SettingsHandler {
	return &SettingsHandler{
		svc:    svc,
		logger: logger,
	}
}

// SettingsResponse is the popup settings view.
type SettingsResponse struct {
	Settings       domain.GlobalSettings    `json:"settings"`
	LengthSegments []settings.LengthSegment `json:"lengthSegments"`
}

// GetSettings handles GET /api/v1/settings
func (h *SettingsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	gs, err := h.svc.GlobalSettings(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, "load settings", err)
		return
	}
	writeJSON(w, http.StatusOK, SettingsResponse{Settings: gs, LengthSegments: h.svc.LengthSegments()})
}

// UpdateSettings handles PUT /api/v1/settings
// The body is a partial settings object; invalid values fall back to defaults.
func (h *SettingsHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var patch settings.RawGlobalSettings
	if !decodeJSON(w, r, &patch) {
		return
	}

	gs, err := h.svc.UpdateGlobalSettings(r.Context(), patch)
	if err != nil {
		writeServiceError(w, h.logger, "update settings", err)
		return
	}
	writeJSON(w, http.StatusOK, SettingsResponse{Settings: gs, LengthSegments: h.svc.LengthSegments()})
}

// ModesResponse lists every mode and the enabled subset.
type ModesResponse struct {
	Modes  []domain.ModeConfig `json:"modes"`
	Active []domain.ModeConfig `json:"active"`
	// Notice is set when no mode is enabled.
	Notice string `json:"notice,omitempty"`
}

func (h *SettingsHandler) modesResponse(w http.ResponseWriter, r *http.Request, modes []domain.ModeConfig) {
	resp := ModesResponse{Modes: modes, Active: []domain.ModeConfig{}}
	active, err := h.svc.ActiveModes(r.Context())
	switch {
	case errors.Is(err, domain.ErrNoActiveMode):
		resp.Notice = err.Error()
	case err != nil:
		writeServiceError(w, h.logger, "load active modes", err)
		return
	default:
		resp.Active = active
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetModes handles GET /api/v1/modes
func (h *SettingsHandler) GetModes(w http.ResponseWriter, r *http.Request) {
	modes, err := h.svc.Modes(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, "load modes", err)
		return
	}
	h.modesResponse(w, r, modes)
}

// UpdateModesRequest is the body of PUT /api/v1/modes.
type UpdateModesRequest struct {
	Modes []service.ModeEdit `json:"modes"`
}

// UpdateModes handles PUT /api/v1/modes
func (h *SettingsHandler) UpdateModes(w http.ResponseWriter, r *http.Request) {
	var req UpdateModesRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	modes, err := h.svc.UpdateModes(r.Context(), req.Modes)
	if err != nil {
		writeServiceError(w, h.logger, "update modes", err)
		return
	}
	h.modesResponse(w, r, modes)
}

// PersonasResponse lists personas and the active selection.
type PersonasResponse struct {
	Personas        []domain.Persona `json:"personas"`
	ActivePersonaID string           `json:"activePersonaId"`
	MaxPersonas     int              `json:"maxPersonas"`
}

func (h *SettingsHandler) writePersonas(w http.ResponseWriter, r *http.Request, status int) {
	snap, err := h.svc.Snapshot(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, "load personas", err)
		return
	}
	personas := snap.Personas
	if personas == nil {
		personas = []domain.Persona{}
	}
	writeJSON(w, status, PersonasResponse{
		Personas:        personas,
		ActivePersonaID: snap.ActivePersonaID,
		MaxPersonas:     domain.MaxPersonas,
	})
}

// ListPersonas handles GET /api/v1/personas
func (h *SettingsHandler) ListPersonas(w http.ResponseWriter, r *http.Request) {
	h.writePersonas(w, r, http.StatusOK)
}

// AddPersonaRequest is the body of POST /api/v1/personas.
type AddPersonaRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// AddPersona handles POST /api/v1/personas
func (h *SettingsHandler) AddPersona(w http.ResponseWriter, r *http.Request) {
	var req AddPersonaRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	p, err := h.svc.AddPersona(r.Context(), req.Name, req.Description)
	if err != nil {
		writeServiceError(w, h.logger, "add persona", err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// SavePersonasRequest is the body of PUT /api/v1/personas.
type SavePersonasRequest struct {
	Personas []domain.Persona `json:"personas"`
}

// SavePersonas handles PUT /api/v1/personas
func (h *SettingsHandler) SavePersonas(w http.ResponseWriter, r *http.Request) {
	var req SavePersonasRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if _, err := h.svc.SavePersonas(r.Context(), req.Personas); err != nil {
		writeServiceError(w, h.logger, "save personas", err)
		return
	}
	h.writePersonas(w, r, http.StatusOK)
}

// SetActivePersonaRequest is the body of POST /api/v1/personas/active.
// An empty id selects the default voice.
type SetActivePersonaRequest struct {
	ID string `json:"id"`
}

// SetActivePersona handles POST /api/v1/personas/active
func (h *SettingsHandler) SetActivePersona(w http.ResponseWriter, r *http.Request) {
	var req SetActivePersonaRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.svc.SetActivePersona(r.Context(), req.ID); err != nil {
		writeServiceError(w, h.logger, "set active persona", err)
		return
	}
	h.writePersonas(w, r, http.StatusOK)
}

// SetLicenseKeyRequest is the body of PUT /api/v1/license/key.
type SetLicenseKeyRequest struct {
	LicenseKey string `json:"licenseKey"`
}

// SetLicenseKey handles PUT /api/v1/license/key
func (h *SettingsHandler) SetLicenseKey(w http.ResponseWriter, r *http.Request) {
	var req SetLicenseKeyRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.svc.SetLicenseKey(r.Context(), req.LicenseKey); err != nil {
		writeServiceError(w, h.logger, "set license key", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetGeneralPromptRequest is the body of PUT /api/v1/prompt.
type SetGeneralPromptRequest struct {
	GeneralPrompt string `json:"generalPrompt"`
}

// SetGeneralPrompt handles PUT /api/v1/prompt
func (h *SettingsHandler) SetGeneralPrompt(w http.ResponseWriter, r *http.Request) {
	var req SetGeneralPromptRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.svc.SetGeneralPrompt(r.Context(), req.GeneralPrompt); err != nil {
		writeServiceError(w, h.logger, "set general prompt", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetOptions handles GET /api/v1/options
// Returns everything the options page renders.
func (h *SettingsHandler) GetOptions(w http.ResponseWriter, r *http.Request) {
	snap, err := h.svc.Snapshot(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, "load options", err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// SaveOptions handles PUT /api/v1/options
func (h *SettingsHandler) SaveOptions(w http.ResponseWriter, r *http.Request) {
	var form service.OptionsForm
	if !decodeJSON(w, r, &form) {
		return
	}

	snap, err := h.svc.SaveOptions(r.Context(), form)
	if err != nil {
		writeServiceError(w, h.logger, "save options", err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// Export handles GET /api/v1/export
// With an X-Export-Passphrase header the document is sealed.
func (h *SettingsHandler) Export(w http.ResponseWriter, r *http.Request) {
	passphrase := r.Header.Get(PassphraseHeader)

	data, err := h.svc.Export(r.Context(), passphrase)
	if err != nil {
		writeServiceError(w, h.logger, "export settings", err)
		return
	}

	name := "xreply-settings-" + time.Now().Format("20060102-150405")
	if passphrase != "" {
		w.Header().Set("Content-Type", "application/octet-stream")
		name += ".xrcr"
	} else {
		w.Header().Set("Content-Type", "application/json")
		name += ".json"
	}
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// Import handles POST /api/v1/import
// The body is an export document, plain or sealed.
func (h *SettingsHandler) Import(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.svc.Import(r.Context(), data, r.Header.Get(PassphraseHeader)); err != nil {
		writeServiceError(w, h.logger, "import settings", err)
		return
	}

	snap, err := h.svc.Snapshot(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, "load options", err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

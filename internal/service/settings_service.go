package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/iconidentify/xreply/internal/domain"
	"github.com/iconidentify/xreply/internal/repository"
	"github.com/iconidentify/xreply/internal/settings"
	"github.com/iconidentify/xreply/pkg/crypto"
)

// ErrPassphraseRequired is returned when importing a sealed export without a passphrase.
var ErrPassphraseRequired = errors.New("this export is encrypted, a passphrase is required")

// ModeEdit is one row of the options page mode editor.
type ModeEdit struct {
	ID             string `json:"id"`
	Label          string `json:"label"`
	PromptTemplate string `json:"promptTemplate"`
	Enabled        *bool  `json:"enabled,omitempty"`
}

// OptionsForm is the whole options page as submitted by Save.
type OptionsForm struct {
	LicenseKey     string                     `json:"licenseKey"`
	GlobalSettings settings.RawGlobalSettings `json:"globalSettings"`
	Modes          []ModeEdit                 `json:"modes"`
	GeneralPrompt  string                     `json:"generalPrompt"`
	Personas       []domain.Persona           `json:"personas"`
}

// SettingsService backs the popup and options surfaces.
type SettingsService struct {
	config repository.ConfigRepository
	logger *slog.Logger
	now    func() time.Time
}

// NewSettingsService creates a new settings service.
func NewSettingsService(config repository.ConfigRepository, logger *slog.Logger) *SettingsService {
	return &SettingsService{
		config: config,
		logger: logger,
		now:    time.Now,
	}
}

// Snapshot returns every setting, resolved.
func (s *SettingsService) Snapshot(ctx context.Context) (*repository.Snapshot, error) {
	return s.config.Snapshot(ctx)
}

// GlobalSettings returns the normalized global settings.
func (s *SettingsService) GlobalSettings(ctx context.Context) (domain.GlobalSettings, error) {
	return s.config.GlobalSettings(ctx)
}

// UpdateGlobalSettings applies the keys present in patch on top of the stored
// settings. Invalid values fall back to defaults.
func (s *SettingsService) UpdateGlobalSettings(ctx context.Context, patch settings.RawGlobalSettings) (domain.GlobalSettings, error) {
	current, err := s.config.GlobalSettings(ctx)
	if err != nil {
		return domain.GlobalSettings{}, fmt.Errorf("load global settings: %w", err)
	}

	raw := settings.RawGlobalSettings{
		"maxChars": current.MaxChars,
		"tone":     string(current.Tone),
		"humanize": current.Humanize,
	}
	for k, v := range patch {
		raw[k] = v
	}

	next := settings.NormalizeGlobalSettings(raw)
	if err := s.config.SetGlobalSettings(ctx, next); err != nil {
		return domain.GlobalSettings{}, fmt.Errorf("save global settings: %w", err)
	}
	s.logger.Debug("global settings updated", "max_chars", next.MaxChars, "tone", next.Tone, "humanize", next.Humanize)
	return next, nil
}

// LengthSegments returns the popup length presets.
func (s *SettingsService) LengthSegments() []settings.LengthSegment {
	return settings.LengthSegments
}

// Modes returns every mode, merged and in preset order.
func (s *SettingsService) Modes(ctx context.Context) ([]domain.ModeConfig, error) {
	modes, err := s.config.Modes(ctx)
	if err != nil {
		return nil, fmt.Errorf("load modes: %w", err)
	}
	return settings.OrderedModes(modes), nil
}

// ActiveModes returns the enabled modes in preset order, or ErrNoActiveMode.
func (s *SettingsService) ActiveModes(ctx context.Context) ([]domain.ModeConfig, error) {
	modes, err := s.config.Modes(ctx)
	if err != nil {
		return nil, fmt.Errorf("load modes: %w", err)
	}
	active := settings.ActiveModes(modes)
	if len(active) == 0 {
		return nil, domain.ErrNoActiveMode
	}
	return active, nil
}

// UpdateModes applies edits to the merged modes and stores the full result.
// An empty label restores the preset label. Unknown ids are rejected.
func (s *SettingsService) UpdateModes(ctx context.Context, edits []ModeEdit) ([]domain.ModeConfig, error) {
	modes, err := s.config.Modes(ctx)
	if err != nil {
		return nil, fmt.Errorf("load modes: %w", err)
	}
	if err := applyModeEdits(modes, edits); err != nil {
		return nil, err
	}
	if err := s.config.SetModeOverrides(ctx, settings.OverridesFrom(modes)); err != nil {
		return nil, fmt.Errorf("save modes: %w", err)
	}
	return settings.OrderedModes(modes), nil
}

func applyModeEdits(modes map[string]domain.ModeConfig, edits []ModeEdit) error {
	presets := settings.DefaultModes()
	for _, e := range edits {
		id := strings.TrimSpace(e.ID)
		preset, ok := presets[id]
		if !ok {
			return fmt.Errorf("%w: %q", domain.ErrUnknownMode, e.ID)
		}
		mode := modes[id]
		mode.Label = strings.TrimSpace(e.Label)
		if mode.Label == "" {
			mode.Label = preset.Label
		}
		mode.PromptTemplate = strings.TrimSpace(e.PromptTemplate)
		if e.Enabled != nil {
			mode.Enabled = *e.Enabled
		}
		modes[id] = mode
	}
	return nil
}

// GeneralPrompt returns the free-form prompt appended to every request.
func (s *SettingsService) GeneralPrompt(ctx context.Context) (string, error) {
	return s.config.GeneralPrompt(ctx)
}

// SetGeneralPrompt stores the trimmed general prompt.
func (s *SettingsService) SetGeneralPrompt(ctx context.Context, prompt string) error {
	return s.config.SetGeneralPrompt(ctx, prompt)
}

// SetLicenseKey stores the trimmed license key.
func (s *SettingsService) SetLicenseKey(ctx context.Context, key string) error {
	if err := s.config.SetLicenseKey(ctx, key); err != nil {
		return fmt.Errorf("save license key: %w", err)
	}
	s.logger.Info("license key updated", "set", strings.TrimSpace(key) != "")
	return nil
}

// Personas returns the stored personas.
func (s *SettingsService) Personas(ctx context.Context) ([]domain.Persona, error) {
	return s.config.Personas(ctx)
}

// AddPersona appends a new persona with a fresh id.
func (s *SettingsService) AddPersona(ctx context.Context, name, description string) (domain.Persona, error) {
	p := domain.Persona{
		Name:        strings.TrimSpace(name),
		Description: strings.TrimSpace(description),
	}
	if p.IsEmpty() {
		return domain.Persona{}, domain.ErrEmptyPersona
	}

	personas, err := s.config.Personas(ctx)
	if err != nil {
		return domain.Persona{}, fmt.Errorf("load personas: %w", err)
	}
	if len(personas) >= domain.MaxPersonas {
		return domain.Persona{}, domain.ErrTooManyPersonas
	}

	p.ID = settings.NewPersonaID(s.now())
	if err := s.config.SetPersonas(ctx, append(personas, p)); err != nil {
		return domain.Persona{}, fmt.Errorf("save personas: %w", err)
	}
	s.logger.Info("persona added", "persona_id", p.ID)
	return p, nil
}

// SavePersonas replaces the persona list. Empty personas are dropped and
// legacy keys are removed. The active persona is cleared if it was removed.
func (s *SettingsService) SavePersonas(ctx context.Context, personas []domain.Persona) ([]domain.Persona, error) {
	clean := settings.SanitizePersonas(personas, s.now())
	if err := settings.ValidatePersonas(clean); err != nil {
		return nil, err
	}
	if err := s.config.SetPersonas(ctx, clean); err != nil {
		return nil, fmt.Errorf("save personas: %w", err)
	}
	if err := s.config.RemoveLegacyKeys(ctx); err != nil {
		return nil, fmt.Errorf("remove legacy keys: %w", err)
	}

	activeID, err := s.config.ActivePersonaID(ctx)
	if err != nil {
		return nil, fmt.Errorf("load active persona: %w", err)
	}
	if activeID != "" && settings.FindPersona(clean, activeID) == nil {
		if err := s.config.SetActivePersonaID(ctx, ""); err != nil {
			return nil, fmt.Errorf("clear active persona: %w", err)
		}
	}
	return clean, nil
}

// SetActivePersona selects the persona with id. An empty id clears it.
func (s *SettingsService) SetActivePersona(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id != "" {
		personas, err := s.config.Personas(ctx)
		if err != nil {
			return fmt.Errorf("load personas: %w", err)
		}
		if settings.FindPersona(personas, id) == nil {
			return domain.ErrPersonaNotFound
		}
	}
	return s.config.SetActivePersonaID(ctx, id)
}

// SaveOptions writes the options page in one store update and removes the
// legacy keys. Modes not in the form keep their current values.
func (s *SettingsService) SaveOptions(ctx context.Context, form OptionsForm) (*repository.Snapshot, error) {
	personas := settings.SanitizePersonas(form.Personas, s.now())
	if err := settings.ValidatePersonas(personas); err != nil {
		return nil, err
	}

	modes, err := s.config.Modes(ctx)
	if err != nil {
		return nil, fmt.Errorf("load modes: %w", err)
	}
	if err := applyModeEdits(modes, form.Modes); err != nil {
		return nil, err
	}

	values := map[string]any{
		settings.KeyLicenseKey:     strings.TrimSpace(form.LicenseKey),
		settings.KeyGlobalSettings: settings.NormalizeGlobalSettings(form.GlobalSettings),
		settings.KeyModes:          settings.OverridesFrom(modes),
		settings.KeyGeneralPrompt:  strings.TrimSpace(form.GeneralPrompt),
		settings.KeyPersonas:       personas,
	}
	doc := make(settings.Document, len(values))
	for k, v := range values {
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", k, err)
		}
		doc[k] = data
	}

	if err := s.config.Import(ctx, doc); err != nil {
		return nil, fmt.Errorf("save options: %w", err)
	}
	if err := s.config.RemoveLegacyKeys(ctx); err != nil {
		return nil, fmt.Errorf("remove legacy keys: %w", err)
	}
	s.logger.Info("options saved", "personas", len(personas))
	return s.config.Snapshot(ctx)
}

// Export returns the settings document. With a passphrase the document is
// sealed.
func (s *SettingsService) Export(ctx context.Context, passphrase string) ([]byte, error) {
	doc, err := s.config.Export(ctx)
	if err != nil {
		return nil, fmt.Errorf("export settings: %w", err)
	}
	data, err := doc.Marshal()
	if err != nil {
		return nil, fmt.Errorf("encode settings: %w", err)
	}
	if passphrase == "" {
		return data, nil
	}
	return crypto.Seal(data, passphrase)
}

// ExportFile writes an export into dir and returns its path.
func (s *SettingsService) ExportFile(ctx context.Context, dir, passphrase string) (string, error) {
	data, err := s.Export(ctx, passphrase)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}

	ext := ".json"
	if passphrase != "" {
		ext = ".xrcr"
	}
	path := filepath.Join(dir, "xreply-settings-"+s.now().Format("20060102-150405")+ext)
	if err := os.WriteFile(path, data, 0600); err != nil {
		return "", fmt.Errorf("write export: %w", err)
	}
	s.logger.Info("settings exported", "path", path, "sealed", passphrase != "")
	return path, nil
}

// Import overwrites every known key present in data. Sealed exports need the
// passphrase they were sealed with.
func (s *SettingsService) Import(ctx context.Context, data []byte, passphrase string) error {
	if crypto.IsSealed(data) {
		if passphrase == "" {
			return fmt.Errorf("%w: %w", domain.ErrInvalidImport, ErrPassphraseRequired)
		}
		opened, err := crypto.Open(data, passphrase)
		if err != nil {
			return fmt.Errorf("%w: %w", domain.ErrInvalidImport, err)
		}
		data = opened
	}

	doc, err := settings.ParseDocument(data)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidImport, err)
	}
	if err := s.config.Import(ctx, doc); err != nil {
		return fmt.Errorf("import settings: %w", err)
	}
	s.logger.Info("settings imported", "keys", len(doc))
	return nil
}

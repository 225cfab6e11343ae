package repository

import (
	"context"

	"github.com/iconidentify/xreply/internal/domain"
	"github.com/iconidentify/xreply/internal/settings"
)

// Snapshot is the full resolved configuration read in one pass.
type Snapshot struct {
	LicenseKey      string                       `json:"licenseKey"`
	GlobalSettings  domain.GlobalSettings        `json:"globalSettings"`
	Modes           map[string]domain.ModeConfig `json:"modes"`
	GeneralPrompt   string                       `json:"generalPrompt"`
	Personas        []domain.Persona             `json:"personas"`
	ActivePersonaID string                       `json:"activePersonaId,omitempty"`
	ActivePersona   *domain.Persona              `json:"activePersona,omitempty"`
}

// ConfigRepository reads and writes the sync-tier configuration.
type ConfigRepository interface {
	// Snapshot returns every setting, normalized and merged.
	Snapshot(ctx context.Context) (*Snapshot, error)

	// LicenseKey returns the stored key, or "" when unset.
	LicenseKey(ctx context.Context) (string, error)
	SetLicenseKey(ctx context.Context, key string) error

	// GlobalSettings returns normalized settings.
	GlobalSettings(ctx context.Context) (domain.GlobalSettings, error)
	SetGlobalSettings(ctx context.Context, g domain.GlobalSettings) error

	// ModeOverrides returns the sparse stored overrides.
	ModeOverrides(ctx context.Context) (domain.ModeOverrides, error)
	// Modes returns overrides merged onto the presets.
	Modes(ctx context.Context) (map[string]domain.ModeConfig, error)
	SetModeOverrides(ctx context.Context, overrides domain.ModeOverrides) error

	GeneralPrompt(ctx context.Context) (string, error)
	SetGeneralPrompt(ctx context.Context, prompt string) error

	Personas(ctx context.Context) ([]domain.Persona, error)
	// SetPersonas stores the list as given. Limits are enforced by callers.
	SetPersonas(ctx context.Context, personas []domain.Persona) error

	ActivePersonaID(ctx context.Context) (string, error)
	// SetActivePersonaID stores id, or clears it when id is empty.
	SetActivePersonaID(ctx context.Context, id string) error

	// RemoveLegacyKeys deletes keys written by older versions.
	RemoveLegacyKeys(ctx context.Context) error

	// Export returns the import/export document.
	Export(ctx context.Context) (settings.Document, error)
	// Import overwrites every key present in doc.
	Import(ctx context.Context, doc settings.Document) error
}

// HistoryRepository manages the bounded local reply history.
type HistoryRepository interface {
	// List returns items newest first.
	List(ctx context.Context) ([]domain.HistoryItem, error)

	// Append prepends item, truncates to the cap and returns the new list.
	Append(ctx context.Context, item domain.HistoryItem) ([]domain.HistoryItem, error)

	// Clear removes all history.
	Clear(ctx context.Context) error
}

// LicenseCacheRepository stores the last validated license info locally.
type LicenseCacheRepository interface {
	// Get returns the cached entry and whether it is still fresh.
	// A nil entry means nothing is cached.
	Get(ctx context.Context) (*domain.LicenseInfo, bool, error)

	// GetFresh returns the entry only when it is fresh, else nil.
	GetFresh(ctx context.Context) (*domain.LicenseInfo, error)

	// Put stamps info with the current time and stores it.
	Put(ctx context.Context, info domain.LicenseInfo) error

	// Clear removes the cached entry.
	Clear(ctx context.Context) error
}

package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/iconidentify/xreply/internal/domain"
	"github.com/iconidentify/xreply/internal/kvstore"
	"github.com/iconidentify/xreply/internal/settings"
)

// KVConfigRepository implements ConfigRepository over a kvstore.Store.
type KVConfigRepository struct {
	store kvstore.Store
}

// NewKVConfigRepository creates a config repository backed by store.
func NewKVConfigRepository(store kvstore.Store) *KVConfigRepository {
	return &KVConfigRepository{store: store}
}

// Snapshot reads the whole sync tier once and resolves it.
func (r *KVConfigRepository) Snapshot(ctx context.Context) (*Snapshot, error) {
	all, err := r.store.GetAll(ctx, kvstore.TierSync)
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	snap := &Snapshot{
		LicenseKey:      decodeString(all[settings.KeyLicenseKey]),
		GlobalSettings:  settings.NormalizeGlobalSettings(settings.ParseRawGlobalSettings(all[settings.KeyGlobalSettings])),
		Modes:           settings.MergeModes(decodeOverrides(all[settings.KeyModes])),
		GeneralPrompt:   strings.TrimSpace(decodeString(all[settings.KeyGeneralPrompt])),
		Personas:        decodePersonas(all[settings.KeyPersonas]),
		ActivePersonaID: decodeString(all[settings.KeyActivePersonaID]),
	}
	snap.ActivePersona = settings.FindPersona(snap.Personas, snap.ActivePersonaID)
	return snap, nil
}

// LicenseKey implements ConfigRepository.
func (r *KVConfigRepository) LicenseKey(ctx context.Context) (string, error) {
	raw, err := r.get(ctx, settings.KeyLicenseKey)
	if err != nil {
		return "", err
	}
	return decodeString(raw), nil
}

// SetLicenseKey implements ConfigRepository.
func (r *KVConfigRepository) SetLicenseKey(ctx context.Context, key string) error {
	return kvstore.SetJSON(ctx, r.store, kvstore.TierSync, settings.KeyLicenseKey, strings.TrimSpace(key))
}

// GlobalSettings implements ConfigRepository.
func (r *KVConfigRepository) GlobalSettings(ctx context.Context) (domain.GlobalSettings, error) {
	raw, err := r.get(ctx, settings.KeyGlobalSettings)
	if err != nil {
		return domain.GlobalSettings{}, err
	}
	return settings.NormalizeGlobalSettings(settings.ParseRawGlobalSettings(raw)), nil
}

// SetGlobalSettings implements ConfigRepository.
func (r *KVConfigRepository) SetGlobalSettings(ctx context.Context, g domain.GlobalSettings) error {
	return kvstore.SetJSON(ctx, r.store, kvstore.TierSync, settings.KeyGlobalSettings, settings.Normalize(g))
}

// ModeOverrides implements ConfigRepository.
func (r *KVConfigRepository) ModeOverrides(ctx context.Context) (domain.ModeOverrides, error) {
	raw, err := r.get(ctx, settings.KeyModes)
	if err != nil {
		return nil, err
	}
	return decodeOverrides(raw), nil
}

// Modes implements ConfigRepository.
func (r *KVConfigRepository) Modes(ctx context.Context) (map[string]domain.ModeConfig, error) {
	overrides, err := r.ModeOverrides(ctx)
	if err != nil {
		return nil, err
	}
	return settings.MergeModes(overrides), nil
}

// SetModeOverrides implements ConfigRepository.
func (r *KVConfigRepository) SetModeOverrides(ctx context.Context, overrides domain.ModeOverrides) error {
	return kvstore.SetJSON(ctx, r.store, kvstore.TierSync, settings.KeyModes, overrides)
}

// GeneralPrompt implements ConfigRepository.
func (r *KVConfigRepository) GeneralPrompt(ctx context.Context) (string, error) {
	raw, err := r.get(ctx, settings.KeyGeneralPrompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(decodeString(raw)), nil
}

// SetGeneralPrompt implements ConfigRepository.
func (r *KVConfigRepository) SetGeneralPrompt(ctx context.Context, prompt string) error {
	return kvstore.SetJSON(ctx, r.store, kvstore.TierSync, settings.KeyGeneralPrompt, strings.TrimSpace(prompt))
}

// Personas implements ConfigRepository.
func (r *KVConfigRepository) Personas(ctx context.Context) ([]domain.Persona, error) {
	raw, err := r.get(ctx, settings.KeyPersonas)
	if err != nil {
		return nil, err
	}
	return decodePersonas(raw), nil
}

// SetPersonas implements ConfigRepository.
func (r *KVConfigRepository) SetPersonas(ctx context.Context, personas []domain.Persona) error {
	if personas == nil {
		personas = []domain.Persona{}
	}
	return kvstore.SetJSON(ctx, r.store, kvstore.TierSync, settings.KeyPersonas, personas)
}

// ActivePersonaID implements ConfigRepository.
func (r *KVConfigRepository) ActivePersonaID(ctx context.Context) (string, error) {
	raw, err := r.get(ctx, settings.KeyActivePersonaID)
	if err != nil {
		return "", err
	}
	return decodeString(raw), nil
}

// SetActivePersonaID implements ConfigRepository.
func (r *KVConfigRepository) SetActivePersonaID(ctx context.Context, id string) error {
	if id == "" {
		return r.store.Remove(ctx, kvstore.TierSync, settings.KeyActivePersonaID)
	}
	return kvstore.SetJSON(ctx, r.store, kvstore.TierSync, settings.KeyActivePersonaID, id)
}

// RemoveLegacyKeys implements ConfigRepository.
func (r *KVConfigRepository) RemoveLegacyKeys(ctx context.Context) error {
	return r.store.Remove(ctx, kvstore.TierSync, settings.LegacyKeys...)
}

// Export implements ConfigRepository. Personas beyond the limit are left out.
func (r *KVConfigRepository) Export(ctx context.Context) (settings.Document, error) {
	snap, err := r.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	overrides, err := r.ModeOverrides(ctx)
	if err != nil {
		return nil, err
	}

	personas := snap.Personas
	if len(personas) > domain.MaxPersonas {
		personas = personas[:domain.MaxPersonas]
	}

	doc := settings.Document{}
	values := map[string]any{
		settings.KeyLicenseKey:     snap.LicenseKey,
		settings.KeyGlobalSettings: snap.GlobalSettings,
		settings.KeyModes:          overrides,
		settings.KeyGeneralPrompt:  snap.GeneralPrompt,
		settings.KeyPersonas:       personas,
	}
	for k, v := range values {
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", k, err)
		}
		doc[k] = data
	}
	return doc, nil
}

// Import implements ConfigRepository.
func (r *KVConfigRepository) Import(ctx context.Context, doc settings.Document) error {
	if len(doc) == 0 {
		return nil
	}
	values := make(map[string]json.RawMessage, len(doc))
	for k, v := range doc {
		values[k] = v
	}
	return r.store.Set(ctx, kvstore.TierSync, values)
}

// get returns the raw value or nil when absent.
func (r *KVConfigRepository) get(ctx context.Context, key string) (json.RawMessage, error) {
	raw, err := r.store.Get(ctx, kvstore.TierSync, key)
	if err == nil {
		return raw, nil
	}
	if isNotFound(err) {
		return nil, nil
	}
	return nil, fmt.Errorf("read %s: %w", key, err)
}

func decodeString(raw json.RawMessage) string {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}

func decodeOverrides(raw json.RawMessage) domain.ModeOverrides {
	var o domain.ModeOverrides
	if len(raw) == 0 || json.Unmarshal(raw, &o) != nil {
		return nil
	}
	return o
}

func decodePersonas(raw json.RawMessage) []domain.Persona {
	var p []domain.Persona
	if len(raw) == 0 || json.Unmarshal(raw, &p) != nil || p == nil {
		return []domain.Persona{}
	}
	return p
}

package settings

import (
	"strings"

	"github.com/iconidentify/xreply/internal/domain"
)

// MergeModes overlays stored overrides on the presets. Unknown ids are
// dropped; an override only replaces enabled when it is a bool, and label or
// prompt only when non-empty after trimming. The merge is idempotent.
func MergeModes(stored domain.ModeOverrides) map[string]domain.ModeConfig {
	merged := DefaultModes()
	for id, o := range stored {
		mode, ok := merged[id]
		if !ok {
			continue
		}
		if o.Enabled != nil {
			mode.Enabled = *o.Enabled
		}
		if label := strings.TrimSpace(o.Label); label != "" {
			mode.Label = label
		}
		if prompt := strings.TrimSpace(o.PromptTemplate); prompt != "" {
			mode.PromptTemplate = prompt
		}
		merged[id] = mode
	}
	return merged
}

// OverridesFrom turns a merged mode map back into its persisted form.
func OverridesFrom(modes map[string]domain.ModeConfig) domain.ModeOverrides {
	out := make(domain.ModeOverrides, len(modes))
	for id, m := range modes {
		enabled := m.Enabled
		out[id] = domain.ModeOverride{
			Enabled:        &enabled,
			Label:          m.Label,
			PromptTemplate: m.PromptTemplate,
		}
	}
	return out
}

// OrderedModes returns the merged modes in preset order.
func OrderedModes(modes map[string]domain.ModeConfig) []domain.ModeConfig {
	out := make([]domain.ModeConfig, 0, len(presets))
	for _, p := range presets {
		if m, ok := modes[p.id]; ok {
			out = append(out, m)
		}
	}
	return out
}

// ActiveModes returns the enabled modes in preset order.
func ActiveModes(modes map[string]domain.ModeConfig) []domain.ModeConfig {
	var out []domain.ModeConfig
	for _, m := range OrderedModes(modes) {
		if m.Enabled {
			out = append(out, m)
		}
	}
	return out
}

// ResolveMode returns the effective mode for id. Ids outside the merged map
// resolve to an enabled mode labelled with the id and no prompt.
func ResolveMode(modes map[string]domain.ModeConfig, id string) domain.ModeConfig {
	if m, ok := modes[id]; ok {
		if m.Label == "" {
			m.Label = id
		}
		return m
	}
	return domain.ModeConfig{ID: id, Label: id, Enabled: true}
}

package domain

import (
	"encoding/json"
	"strings"
)

// Tone is the coarse global style dial applied to every reply.
type Tone string

const (
	ToneNeutral      Tone = "neutral"
	ToneDegen        Tone = "degen"
	ToneProfessional Tone = "professional"
	ToneToxic        Tone = "toxic"
)

// String returns the string representation of the Tone.
func (t Tone) String() string {
	return string(t)
}

// GlobalSettings are the user-wide generation settings.
type GlobalSettings struct {
	MaxChars int  `json:"maxChars"`
	Tone     Tone `json:"tone"`
	Humanize bool `json:"humanize"`
}

// ModeConfig is a named reply style with its prompt fragment.
type ModeConfig struct {
	ID             string `json:"id"`
	Label          string `json:"label"`
	PromptTemplate string `json:"promptTemplate"`
	Enabled        bool   `json:"enabled"`
}

// ModeOverride is a sparse user edit of a preset mode as persisted in the
// sync tier. Fields are only meaningful when set.
type ModeOverride struct {
	Enabled        *bool  `json:"enabled,omitempty"`
	Label          string `json:"label,omitempty"`
	PromptTemplate string `json:"promptTemplate,omitempty"`
}

// UnmarshalJSON tolerates values of the wrong type: a non-boolean "enabled"
// or a non-string label is treated as absent instead of failing the decode.
func (o *ModeOverride) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		// Anything that is not an object carries no override.
		*o = ModeOverride{}
		return nil
	}

	out := ModeOverride{}
	if v, ok := raw["enabled"].(bool); ok {
		out.Enabled = &v
	}
	if v, ok := raw["label"].(string); ok {
		out.Label = v
	}
	if v, ok := raw["promptTemplate"].(string); ok {
		out.PromptTemplate = v
	}
	*o = out
	return nil
}

// ModeOverrides maps mode ids to their stored overrides.
type ModeOverrides map[string]ModeOverride

// Persona is a user-authored voice profile layered on top of a mode.
type Persona struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// IsEmpty reports whether the persona has neither a name nor a description.
func (p Persona) IsEmpty() bool {
	return strings.TrimSpace(p.Name) == "" && strings.TrimSpace(p.Description) == ""
}

// DisplayName returns the persona name, or a short label derived from its id.
func (p Persona) DisplayName() string {
	if name := strings.TrimSpace(p.Name); name != "" {
		return name
	}
	id := p.ID
	if len(id) > 4 {
		id = id[len(id)-4:]
	}
	return "Persona " + id
}

// Package settings holds the pure rules for reply settings: built-in mode
// presets, normalization of persisted values and the merge of user overrides.
package settings

import "github.com/iconidentify/xreply/internal/domain"

// Defaults for GlobalSettings.
const (
	DefaultMaxChars = 220
	DefaultTone     = domain.ToneNeutral
	DefaultHumanize = true

	MinMaxChars = 50
	MaxMaxChars = 500
)

// Tones lists the accepted tone values in display order.
var Tones = []domain.Tone{
	domain.ToneNeutral,
	domain.ToneDegen,
	domain.ToneProfessional,
	domain.ToneToxic,
}

// LengthSegment is a one-click reply length preset shown by the popup.
type LengthSegment struct {
	Label    string `json:"label"`
	MaxChars int    `json:"maxChars"`
}

// LengthSegments are the popup length presets.
var LengthSegments = []LengthSegment{
	{Label: "Short", MaxChars: 100},
	{Label: "Medium", MaxChars: 220},
	{Label: "Long", MaxChars: 400},
}

type preset struct {
	id             string
	label          string
	promptTemplate string
}

var presets = []preset{
	{"one-liner", "☝️ One-Liner", "Drop one ruthless bar that nails the core of the tweet."},
	{"agree", "👍 Agree", "Back the tweet up with extra alpha or a sharp supporting angle."},
	{"disagree", "👎 Disagree", "Challenge the take with swagger, but keep it platform-safe."},
	{"funny", "😏 Funny", "Add a sarcastic or meme-able twist that still reacts to the tweet."},
	{"question", "🤔 Question", "Ask a pointed question that drags more context out of the author."},
	{"quote", "😎 Quote", "Make it sound like a legendary CT quote that people will repost."},
	{"answer", "🤓 Answer", "Provide the missing insight or alpha the tweet is begging for."},
	{"congrats", "👏 Congrats", "Hype them up while keeping the CT edge."},
	{"thanks", "🙏 Thanks", "Show gratitude but keep the tone playful and on-brand."},
}

// ModeIDs returns the preset ids in display order.
func ModeIDs() []string {
	ids := make([]string, len(presets))
	for i, p := range presets {
		ids[i] = p.id
	}
	return ids
}

// IsKnownMode reports whether id names a built-in preset.
func IsKnownMode(id string) bool {
	for _, p := range presets {
		if p.id == id {
			return true
		}
	}
	return false
}

// DefaultModes returns a fresh map of every preset, all enabled.
func DefaultModes() map[string]domain.ModeConfig {
	modes := make(map[string]domain.ModeConfig, len(presets))
	for _, p := range presets {
		modes[p.id] = domain.ModeConfig{
			ID:             p.id,
			Label:          p.label,
			PromptTemplate: p.promptTemplate,
			Enabled:        true,
		}
	}
	return modes
}

// DefaultGlobalSettings returns the factory settings.
func DefaultGlobalSettings() domain.GlobalSettings {
	return domain.GlobalSettings{
		MaxChars: DefaultMaxChars,
		Tone:     DefaultTone,
		Humanize: DefaultHumanize,
	}
}

package settings

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/iconidentify/xreply/internal/domain"
)

// RawGlobalSettings is the persisted settings object as decoded from JSON.
// Values may be of any type; NormalizeGlobalSettings sorts them out.
type RawGlobalSettings map[string]any

// ParseRawGlobalSettings decodes stored JSON. Malformed input yields an empty
// map so that normalization falls back to defaults.
func ParseRawGlobalSettings(data []byte) RawGlobalSettings {
	var raw RawGlobalSettings
	if len(data) == 0 {
		return RawGlobalSettings{}
	}
	if err := json.Unmarshal(data, &raw); err != nil || raw == nil {
		return RawGlobalSettings{}
	}
	return raw
}

// NormalizeGlobalSettings coerces stored values into a valid GlobalSettings.
// Invalid values fall back to defaults silently.
func NormalizeGlobalSettings(raw RawGlobalSettings) domain.GlobalSettings {
	out := DefaultGlobalSettings()
	if raw == nil {
		return out
	}

	if v, ok := raw["maxChars"]; ok {
		out.MaxChars = SanitizeMaxChars(v)
	}
	if v, ok := raw["tone"]; ok {
		out.Tone = SanitizeTone(v)
	}
	if v, ok := raw["humanize"]; ok {
		out.Humanize = SanitizeHumanize(v)
	}
	return out
}

// Normalize re-validates an already typed GlobalSettings.
func Normalize(g domain.GlobalSettings) domain.GlobalSettings {
	return domain.GlobalSettings{
		MaxChars: SanitizeMaxChars(g.MaxChars),
		Tone:     SanitizeTone(string(g.Tone)),
		Humanize: g.Humanize,
	}
}

// SanitizeMaxChars coerces v to a number, rounds it and clamps it to
// [MinMaxChars, MaxMaxChars]. Non-numeric input yields DefaultMaxChars.
func SanitizeMaxChars(v any) int {
	n, ok := toNumber(v)
	if !ok || math.IsNaN(n) || math.IsInf(n, 0) {
		return DefaultMaxChars
	}
	// Rounds half up, matching the popup's integer display.
	r := math.Floor(n + 0.5)
	if r < MinMaxChars {
		return MinMaxChars
	}
	if r > MaxMaxChars {
		return MaxMaxChars
	}
	return int(r)
}

// SanitizeTone passes v through when it names a known tone.
func SanitizeTone(v any) domain.Tone {
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case domain.Tone:
		s = string(t)
	default:
		return DefaultTone
	}
	for _, tone := range Tones {
		if string(tone) == s {
			return tone
		}
	}
	return DefaultTone
}

// SanitizeHumanize accepts a bool or the strings "true" and "false", which an
// earlier storage format used.
func SanitizeHumanize(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch t {
		case "true":
			return true
		case "false":
			return false
		}
	}
	return DefaultHumanize
}

// toNumber follows loose numeric coercion: null and empty strings are zero,
// booleans are 0 or 1, numeric strings parse, everything else fails.
func toNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case nil:
		return 0, true
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, true
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

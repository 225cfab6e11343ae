package settings

import "strings"

// NoValue is shown when a field has nothing to display.
const NoValue = "—"

var planNames = map[string]string{
	"pro":     "Pro",
	"max":     "Max",
	"basic":   "Basic",
	"starter": "Starter",
}

// FormatPlanName maps plan codes such as "pro_monthly" to a display name.
// Unknown codes are returned unchanged.
func FormatPlanName(planCode string) string {
	if planCode == "" {
		return NoValue
	}
	code := strings.ToLower(planCode)
	for _, suffix := range []string{"_monthly", "_yearly"} {
		if base, ok := strings.CutSuffix(code, suffix); ok {
			if name, ok := planNames[base]; ok {
				return name
			}
			return planCode
		}
	}
	if name, ok := planNames[code]; ok {
		return name
	}
	return planCode
}

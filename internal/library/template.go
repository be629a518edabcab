package library

import (
	"strings"
	"time"
)

// DefaultTemplate is used when neither a channel override nor a global
// setting is configured (spec §4.9).
const DefaultTemplate = "{designer}/{channel}/{title}"

// TemplateVars is the enumerated token vocabulary of spec §4.9.
type TemplateVars struct {
	Designer string
	Title    string
	Channel  string
}

// Render substitutes every {token} in template with its sanitized value,
// using now for the date/year/month tokens.
func Render(template string, vars TemplateVars, now time.Time) string {
	designer := SanitizeName(orDefault(vars.Designer, "Unknown"))
	title := SanitizeName(orDefault(vars.Title, "Untitled"))
	channel := SanitizeName(orDefault(vars.Channel, "Unknown Channel"))

	replacer := strings.NewReplacer(
		"{designer}", designer,
		"{title}", title,
		"{channel}", channel,
		"{date}", now.UTC().Format("2006-01-02"),
		"{year}", now.UTC().Format("2006"),
		"{month}", now.UTC().Format("01"),
	)
	return replacer.Replace(template)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// ResolveTemplate implements spec §4.9's precedence: per-channel override >
// global setting > DefaultTemplate.
func ResolveTemplate(channelOverride, globalSetting string) string {
	if channelOverride != "" {
		return channelOverride
	}
	if globalSetting != "" {
		return globalSetting
	}
	return DefaultTemplate
}

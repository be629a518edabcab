package settings

import "github.com/polyforge/polyforge/internal/types"

func floatPtr(f float64) *float64 { return &f }

// Entry describes one recognised setting's type, bounds, default, and
// restart requirement (spec §6 "enumerated set of settings").
type Entry struct {
	Type            types.SettingValueType
	Min             *float64
	Max             *float64
	Default         any
	RestartRequired bool
	Description     string
}

// requiredTemplateVar is the substring library_template_global must
// contain; validated separately from the generic type/range checks
// since it's a content constraint, not a type constraint.
const requiredTemplateVar = "{title}"

// Schema is the full enumerated set of recognised settings (spec §6). A
// key outside this map is still accepted by Set (matching the original's
// "unknown key, no validation" behaviour) but carries no metadata.
var Schema = map[string]Entry{
	"library_template_global": {
		Type:        types.SettingTypeString,
		Default:     "{designer}/{channel}/{title}",
		Description: "Template for library folder structure. Must contain {title}.",
	},
	"max_concurrent_downloads": {
		Type: types.SettingTypeInt, Min: floatPtr(1), Max: floatPtr(10),
		Default:     3,
		Description: "Maximum concurrent download workers",
	},
	"delete_archives_after_extraction": {
		Type:        types.SettingTypeBool,
		Default:     true,
		Description: "Delete archive files after successful extraction",
	},
	"telegram_rate_limit_rpm": {
		Type: types.SettingTypeInt, Min: floatPtr(10), Max: floatPtr(100),
		Default:     30,
		Description: "Maximum chat-platform API requests per minute",
	},
	"telegram_channel_spacing": {
		Type: types.SettingTypeFloat, Min: floatPtr(0.5), Max: floatPtr(10),
		Default:     2.0,
		Description: "Minimum seconds between requests to the same channel",
	},
	"sync_enabled": {
		Type: types.SettingTypeBool, Default: true, RestartRequired: true,
		Description: "Enable live channel monitoring",
	},
	"sync_poll_interval": {
		Type: types.SettingTypeInt, Min: floatPtr(60), Max: floatPtr(3600),
		Default:     300,
		Description: "Interval in seconds for catch-up sync polling",
	},
	"sync_batch_size": {
		Type: types.SettingTypeInt, Min: floatPtr(10), Max: floatPtr(500),
		Default:     100,
		Description: "Maximum messages to process per sync batch",
	},
	"upload_max_size_mb": {
		Type: types.SettingTypeInt, Min: floatPtr(1), Max: floatPtr(10000),
		Default:     500,
		Description: "Maximum upload size in megabytes",
	},
	"upload_retention_hours": {
		Type: types.SettingTypeInt, Min: floatPtr(1), Max: floatPtr(168),
		Default:     24,
		Description: "Hours to retain unprocessed uploads before cleanup",
	},
	"auto_queue_render_after_import": {
		Type:        types.SettingTypeBool,
		Default:     true,
		Description: "Automatically queue preview render jobs after import",
	},
	"auto_queue_render_priority": {
		Type: types.SettingTypeInt, Min: floatPtr(-10), Max: floatPtr(10),
		Default:     -1,
		Description: "Priority for auto-queued render jobs",
	},
	"google_request_delay": {
		Type: types.SettingTypeFloat, Min: floatPtr(0), Max: floatPtr(10),
		Default:     0.5,
		Description: "Delay in seconds between Google API requests",
	},
	"google_requests_per_minute": {
		Type: types.SettingTypeInt, Min: floatPtr(10), Max: floatPtr(1000),
		Default:     60,
		Description: "Maximum Google API requests per minute",
	},
	"ai_rate_limit_rpm": {
		Type: types.SettingTypeInt, Min: floatPtr(1), Max: floatPtr(120),
		Default:     15,
		Description: "Maximum AI tagging requests per minute",
	},
	"ai_max_tags_per_design": {
		Type: types.SettingTypeInt, Min: floatPtr(1), Max: floatPtr(100),
		Default:     20,
		Description: "Maximum tags attached by AI analysis per design",
	},
	"ai_select_best_preview": {
		Type:        types.SettingTypeBool,
		Default:     true,
		Description: "Let AI analysis choose the primary preview image",
	},
}

// Defaults returns a fresh map of every schema key to its default value.
func Defaults() map[string]any {
	out := make(map[string]any, len(Schema))
	for key, entry := range Schema {
		out[key] = entry.Default
	}
	return out
}

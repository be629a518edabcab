package types

import "time"

// Channel is an upstream chat-platform content source (spec §3).
type Channel struct {
	ID                   string       `json:"id" gorm:"primaryKey"`
	PeerID               string       `json:"peer_id" gorm:"uniqueIndex;not null"`
	Username             string       `json:"username,omitempty"`
	Title                string       `json:"title"`
	LastIngestedMessageID int64       `json:"last_ingested_message_id"`
	LastSyncAt           *time.Time   `json:"last_sync_at,omitempty"`
	DownloadMode         DownloadMode `json:"download_mode" gorm:"default:MANUAL"`
	DownloadModeEnabledAt *time.Time  `json:"download_mode_enabled_at,omitempty"`
	Enabled              bool         `json:"enabled" gorm:"default:true"`
	TemplateOverride     string       `json:"template_override,omitempty"`
	CreatedAt            time.Time    `json:"created_at"`
	UpdatedAt            time.Time    `json:"updated_at"`
}

// SubscribesToSync implements the invariant
// "enabled ∧ mode ≠ MANUAL ⇒ sync loop must subscribe" (spec §3).
func (c *Channel) SubscribesToSync() bool {
	return c.Enabled && c.DownloadMode != DownloadModeManual
}

// Message is a post within a Channel, unique per (channel, upstream id).
type Message struct {
	ID                string    `json:"id" gorm:"primaryKey"`
	ChannelID         string    `json:"channel_id" gorm:"index:idx_message_channel_upstream,unique"`
	UpstreamMessageID int64     `json:"upstream_message_id" gorm:"index:idx_message_channel_upstream,unique"`
	CaptionRaw        string    `json:"caption_raw,omitempty"`
	CaptionNormalized string    `json:"caption_normalized,omitempty"`
	PostedAt          time.Time `json:"posted_at"`
	AuthorLabel       string    `json:"author_label,omitempty"`
	CreatedAt         time.Time `json:"created_at"`

	Attachments []Attachment `json:"attachments,omitempty" gorm:"foreignKey:MessageID"`
}

// Attachment is a media item of a Message.
type Attachment struct {
	ID                    string         `json:"id" gorm:"primaryKey"`
	MessageID             string         `json:"message_id" gorm:"index"`
	UpstreamFileID        string         `json:"upstream_file_id,omitempty"`
	Type                  AttachmentType `json:"type"`
	Filename              string         `json:"filename"`
	Ext                   string         `json:"ext"`
	SizeBytes             int64          `json:"size_bytes"`
	Mime                  string         `json:"mime,omitempty"`
	IsCandidateDesignFile bool           `json:"is_candidate_design_file"`
	DownloadStatus        DownloadStatus `json:"download_status" gorm:"default:NONE"`
	ContentHash           string         `json:"content_hash,omitempty"`
	CreatedAt             time.Time      `json:"created_at"`
}

// CandidateDesignExtensions are archive/model extensions that mark an
// attachment as relevant to the catalog (spec §3 Attachment).
var CandidateDesignExtensions = map[string]bool{
	".zip": true, ".7z": true, ".rar": true, ".tar": true, ".gz": true,
	".stl": true, ".3mf": true, ".obj": true, ".step": true, ".stp": true,
}

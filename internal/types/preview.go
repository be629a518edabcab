package types

import "time"

// PreviewAsset is a stored preview image for a Design (spec §3, §4.10).
type PreviewAsset struct {
	ID              string        `json:"id" gorm:"primaryKey"`
	DesignID        string        `json:"design_id" gorm:"index"`
	Source          PreviewSource `json:"source"`
	Kind            PreviewKind   `json:"kind" gorm:"default:THUMBNAIL"`
	RelativePath    string        `json:"relative_path"`
	SizeBytes       int64         `json:"size_bytes"`
	Width           int           `json:"width,omitempty"`
	Height          int           `json:"height,omitempty"`
	UpstreamFileID  string        `json:"upstream_file_id,omitempty"`
	IsPrimary       bool          `json:"is_primary"`
	SortOrder       int           `json:"sort_order"`
	CreatedAt       time.Time     `json:"created_at"`
}

package types

import "time"

// Design is the catalog entity representing one printable model (spec §3).
type Design struct {
	ID              string             `json:"id" gorm:"primaryKey"`
	Title           string             `json:"title"`
	Designer        string             `json:"designer,omitempty"`
	Authority       MetadataAuthority  `json:"authority" gorm:"default:ORIGINAL"`
	Status          DesignStatus       `json:"status" gorm:"default:DISCOVERED;index"`
	Description     string             `json:"description,omitempty"`
	TotalSizeBytes  int64              `json:"total_size_bytes"`
	PrimaryFileTypes string            `json:"primary_file_types,omitempty"` // comma-joined distinct extensions
	Multicolor      MulticolorFlag     `json:"multicolor" gorm:"default:UNKNOWN"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`

	Sources  []DesignSource  `json:"sources,omitempty" gorm:"foreignKey:DesignID"`
	Files    []DesignFile    `json:"files,omitempty" gorm:"foreignKey:DesignID"`
	Previews []PreviewAsset  `json:"previews,omitempty" gorm:"foreignKey:DesignID"`
	Tags     []DesignTag     `json:"tags,omitempty" gorm:"foreignKey:DesignID"`
}

// terminalStatuses are states that a terminal job failure / cancel must not
// clobber without going through explicit user action.
var terminalStatuses = map[DesignStatus]bool{
	DesignOrganized: true,
	DesignFailed:    true,
	DesignDeleted:   true,
}

// IsTerminal reports whether the design has reached a state that jobs no
// longer advance automatically.
func (d *Design) IsTerminal() bool {
	return terminalStatuses[d.Status]
}

// DesignSource links a Design to the Message or ImportRecord it came from.
// Exactly one of MessageID / ImportRecordID is set.
type DesignSource struct {
	ID             string    `json:"id" gorm:"primaryKey"`
	DesignID       string    `json:"design_id" gorm:"index"`
	MessageID      *string   `json:"message_id,omitempty"`
	ImportRecordID *string   `json:"import_record_id,omitempty"`
	Rank           int       `json:"rank"`
	IsPreferred    bool      `json:"is_preferred"`
	CreatedAt      time.Time `json:"created_at"`
}

// DesignFile is one physical file belonging to a Design.
type DesignFile struct {
	ID            string    `json:"id" gorm:"primaryKey"`
	DesignID      string    `json:"design_id" gorm:"index"`
	RelativePath  string    `json:"relative_path"`
	Filename      string    `json:"filename"`
	Ext           string    `json:"ext"`
	SizeBytes     int64     `json:"size_bytes"`
	SHA256        string    `json:"sha256" gorm:"index"`
	Kind          FileKind  `json:"kind"`
	ModelKind     ModelKind `json:"model_kind,omitempty"`
	IsFromArchive bool      `json:"is_from_archive"`
	CreatedAt     time.Time `json:"created_at"`
}

// DesignTag is a tag attached to a Design, either by a user or the AI tagger.
type DesignTag struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	DesignID  string    `json:"design_id" gorm:"index:idx_design_tag,unique"`
	Tag       string    `json:"tag" gorm:"index:idx_design_tag,unique"`
	Source    TagSource `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}

// ExternalMetadataSource records a link to an external platform found in
// ingested content (spec §4.11).
type ExternalMetadataSource struct {
	ID             string               `json:"id" gorm:"primaryKey"`
	DesignID       string               `json:"design_id" gorm:"index"`
	Type           ExternalMetadataType `json:"type"`
	ExternalID     string               `json:"external_id"`
	URL            string               `json:"url"`
	Confidence     float64              `json:"confidence"`
	MatchMethod    MatchMethod          `json:"match_method"`
	FetchedTitle   string               `json:"fetched_title,omitempty"`
	FetchedDesigner string              `json:"fetched_designer,omitempty"`
	FetchedTags    string               `json:"fetched_tags,omitempty"`
	CreatedAt      time.Time            `json:"created_at"`
}

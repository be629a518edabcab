package types

import "time"

// ImportSource is a user-declared, repeatedly-scanned feed (spec §3).
type ImportSource struct {
	ID                string             `json:"id" gorm:"primaryKey"`
	Type              ImportSourceType   `json:"type"`
	Status            ImportSourceStatus `json:"status" gorm:"default:ACTIVE"`
	SyncEnabled       bool               `json:"sync_enabled" gorm:"default:true"`
	SyncIntervalHours float64            `json:"sync_interval_hours" gorm:"default:24"`
	LastSyncAt        *time.Time         `json:"last_sync_at,omitempty"`
	LastError         string             `json:"last_error,omitempty"`
	DefaultDesigner   string             `json:"default_designer,omitempty"`
	ProfileID         string             `json:"profile_id,omitempty"`

	// BULK_FOLDER
	FolderPath string `json:"folder_path,omitempty"`

	// GOOGLE_DRIVE
	DriveFolderID  string `json:"drive_folder_id,omitempty"`
	DriveStartPageToken string `json:"drive_start_page_token,omitempty"`

	// PHPBB
	CredentialsRef string `json:"credentials_ref,omitempty"`
	ForumBaseURL   string `json:"forum_base_url,omitempty"`
	ForumID        string `json:"forum_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DueForSync implements spec §4.2(b): enabled+ACTIVE sources whose
// last_sync_at + sync_interval_hours has elapsed.
func (s *ImportSource) DueForSync(now time.Time) bool {
	if !s.SyncEnabled || s.Status != ImportSourceActive {
		return false
	}
	if s.LastSyncAt == nil {
		return true
	}
	due := s.LastSyncAt.Add(time.Duration(s.SyncIntervalHours * float64(time.Hour)))
	return !now.Before(due)
}

// ImportRecord is one detected design within an ImportSource (spec §3).
type ImportRecord struct {
	ID             string             `json:"id" gorm:"primaryKey"`
	ImportSourceID string             `json:"import_source_id" gorm:"index:idx_record_source_path,unique"`
	SourcePath     string             `json:"source_path" gorm:"index:idx_record_source_path,unique"`
	Status         ImportRecordStatus `json:"status" gorm:"default:PENDING"`
	DetectedTitle  string             `json:"detected_title,omitempty"`
	DetectedDesigner string           `json:"detected_designer,omitempty"`
	SizeBytes      int64              `json:"size_bytes"`
	Fingerprint    string             `json:"fingerprint"`
	Mtime          time.Time          `json:"mtime"`
	DriveFolderID  string             `json:"drive_folder_id,omitempty"`
	ErrorMessage   string             `json:"error_message,omitempty"`
	DesignID       *string            `json:"design_id,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

// ImportProfile is a declarative detection ruleset (spec §4.5).
type ImportProfile struct {
	ID          string             `json:"id" gorm:"primaryKey"`
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	IsBuiltin   bool               `json:"is_builtin" gorm:"default:false"`
	Config      ImportProfileConfig `json:"config" gorm:"serializer:json"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// ImportProfileConfig holds the recognised option groups from spec §4.5.
type ImportProfileConfig struct {
	Detection DetectionConfig `json:"detection"`
	Title     TitleConfig     `json:"title"`
	Preview   PreviewConfig   `json:"preview"`
	Ignore    IgnoreConfig    `json:"ignore"`
	AutoTags  AutoTagsConfig  `json:"auto_tags"`
}

type Structure string

const (
	StructureFlat   Structure = "flat"
	StructureNested Structure = "nested"
	StructureAuto   Structure = "auto"
)

type DetectionConfig struct {
	ModelExtensions        []string  `json:"model_extensions"`
	ArchiveExtensions      []string  `json:"archive_extensions"`
	MinModelFiles          int       `json:"min_model_files"`
	Structure              Structure `json:"structure"`
	ModelSubfolders        []string  `json:"model_subfolders"`
	RequirePreviewFolder   bool      `json:"require_preview_folder"`
	DesignDepth            *int      `json:"design_depth,omitempty"`
	// AllowNestedDesignsBelowDepth is stored with the profile, but the
	// detector does not read it: traversal never goes below design_depth,
	// whatever its value.
	AllowNestedDesignsBelowDepth bool `json:"allow_nested_designs_below_depth"`
}

type CaseTransform string

const (
	CaseNone  CaseTransform = "none"
	CaseTitle CaseTransform = "title"
	CaseLower CaseTransform = "lower"
	CaseUpper CaseTransform = "upper"
)

type TitleSource string

const (
	TitleFromFolder       TitleSource = "folder_name"
	TitleFromParentFolder TitleSource = "parent_folder"
	TitleFromFilename     TitleSource = "filename"
)

type TitleConfig struct {
	Source        TitleSource   `json:"source"`
	StripPatterns []string      `json:"strip_patterns"`
	CaseTransform CaseTransform `json:"case_transform"`
}

type PreviewConfig struct {
	Folders         []string `json:"folders"`
	WildcardFolders []string `json:"wildcard_folders"`
	Extensions      []string `json:"extensions"`
	IncludeRoot     bool     `json:"include_root"`
}

type IgnoreConfig struct {
	Folders    []string `json:"folders"`
	Extensions []string `json:"extensions"`
	Patterns   []string `json:"patterns"`
}

type AutoTagsConfig struct {
	FromSubfolders  bool     `json:"from_subfolders"`
	SubfolderLevels int      `json:"subfolder_levels"`
	StripPatterns   []string `json:"strip_patterns"`
	FromFilename    bool     `json:"from_filename"`
}

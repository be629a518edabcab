package types

// DownloadMode controls how a Channel's new messages are handled.
type DownloadMode string

const (
	DownloadModeManual         DownloadMode = "MANUAL"
	DownloadModeDownloadAllNew DownloadMode = "DOWNLOAD_ALL_NEW"
	DownloadModeDownloadAll    DownloadMode = "DOWNLOAD_ALL"
)

// AttachmentType classifies a Message attachment.
type AttachmentType string

const (
	AttachmentPhoto    AttachmentType = "PHOTO"
	AttachmentVideo    AttachmentType = "VIDEO"
	AttachmentDocument AttachmentType = "DOCUMENT"
	AttachmentOther    AttachmentType = "OTHER"
)

// DownloadStatus tracks attachment download progress.
type DownloadStatus string

const (
	DownloadStatusNone       DownloadStatus = "NONE"
	DownloadStatusDownloading DownloadStatus = "DOWNLOADING"
	DownloadStatusDownloaded DownloadStatus = "DOWNLOADED"
	DownloadStatusFailed     DownloadStatus = "FAILED"
)

// DesignStatus is the Design lifecycle state machine.
type DesignStatus string

const (
	DesignDiscovered DesignStatus = "DISCOVERED"
	DesignWanted     DesignStatus = "WANTED"
	DesignDownloading DesignStatus = "DOWNLOADING"
	DesignDownloaded DesignStatus = "DOWNLOADED"
	DesignExtracting DesignStatus = "EXTRACTING"
	DesignExtracted  DesignStatus = "EXTRACTED"
	DesignImporting  DesignStatus = "IMPORTING"
	DesignOrganized  DesignStatus = "ORGANIZED"
	DesignFailed     DesignStatus = "FAILED"
	DesignDeleted    DesignStatus = "DELETED"
)

// MulticolorFlag records whether a design is known to be multicolor.
type MulticolorFlag string

const (
	MulticolorUnknown MulticolorFlag = "UNKNOWN"
	MulticolorYes     MulticolorFlag = "YES"
	MulticolorNo      MulticolorFlag = "NO"
)

// FileKind classifies a DesignFile by purpose.
type FileKind string

const (
	FileKindModel   FileKind = "MODEL"
	FileKindArchive FileKind = "ARCHIVE"
	FileKindImage   FileKind = "IMAGE"
	FileKindOther   FileKind = "OTHER"
)

// ModelKind classifies a MODEL DesignFile by format.
type ModelKind string

const (
	ModelKindSTL     ModelKind = "STL"
	ModelKind3MF     ModelKind = "THREE_MF"
	ModelKindOBJ     ModelKind = "OBJ"
	ModelKindSTEP    ModelKind = "STEP"
	ModelKindUnknown ModelKind = "UNKNOWN"
)

// PreviewSource identifies where a PreviewAsset came from.
type PreviewSource string

const (
	PreviewSourceTelegram   PreviewSource = "TELEGRAM"
	PreviewSourceThangs     PreviewSource = "THANGS"
	PreviewSourceArchive    PreviewSource = "ARCHIVE"
	PreviewSourceEmbedded3MF PreviewSource = "EMBEDDED_3MF"
	PreviewSourceRendered   PreviewSource = "RENDERED"
)

// previewSourcePriority implements auto_select_primary's ranking (spec §4.10):
// lower number wins.
var previewSourcePriority = map[PreviewSource]int{
	PreviewSourceRendered:    1,
	PreviewSourceEmbedded3MF: 2,
	PreviewSourceArchive:     3,
	PreviewSourceThangs:      4,
	PreviewSourceTelegram:    5,
}

// Priority returns the auto-select priority of the source; lower is preferred.
func (s PreviewSource) Priority() int {
	if p, ok := previewSourcePriority[s]; ok {
		return p
	}
	return 99
}

// PreviewKind classifies a PreviewAsset's role.
type PreviewKind string

const (
	PreviewKindThumbnail PreviewKind = "THUMBNAIL"
	PreviewKindFull      PreviewKind = "FULL"
	PreviewKindGallery   PreviewKind = "GALLERY"
)

// ImportSourceType identifies the kind of feed an ImportSource scans.
type ImportSourceType string

const (
	ImportSourceBulkFolder  ImportSourceType = "BULK_FOLDER"
	ImportSourceGoogleDrive ImportSourceType = "GOOGLE_DRIVE"
	ImportSourcePHPBB       ImportSourceType = "PHPBB"
)

// ImportSourceStatus is the health state of an ImportSource.
type ImportSourceStatus string

const (
	ImportSourceActive ImportSourceStatus = "ACTIVE"
	ImportSourceError  ImportSourceStatus = "ERROR"
	ImportSourcePaused ImportSourceStatus = "PAUSED"
)

// ImportRecordStatus is the ImportRecord lifecycle state machine.
type ImportRecordStatus string

const (
	ImportRecordPending   ImportRecordStatus = "PENDING"
	ImportRecordImporting ImportRecordStatus = "IMPORTING"
	ImportRecordImported  ImportRecordStatus = "IMPORTED"
	ImportRecordSkipped   ImportRecordStatus = "SKIPPED"
	ImportRecordError     ImportRecordStatus = "ERROR"
)

// JobType enumerates all job kinds the queue and worker fleet know about.
type JobType string

const (
	JobDownloadDesign        JobType = "DOWNLOAD_DESIGN"
	JobDownloadImportRecord  JobType = "DOWNLOAD_IMPORT_RECORD"
	JobExtractArchive        JobType = "EXTRACT_ARCHIVE"
	JobImportToLibrary       JobType = "IMPORT_TO_LIBRARY"
	JobGenerateRender        JobType = "GENERATE_RENDER"
	JobDownloadTelegramImages JobType = "DOWNLOAD_TELEGRAM_IMAGES"
	JobAIAnalyze             JobType = "AI_ANALYZE"
	JobSyncImportSource      JobType = "SYNC_IMPORT_SOURCE"
)

// DesignJobTypes are job types that affect a Design's status on terminal
// failure or cancel (spec §4.1 complete/cancel).
var DesignJobTypes = map[JobType]bool{
	JobDownloadDesign:         true,
	JobDownloadImportRecord:   true,
	JobExtractArchive:         true,
	JobImportToLibrary:        true,
	JobGenerateRender:         true,
	JobDownloadTelegramImages: true,
}

// JobStatus is the Job lifecycle state machine (spec §4.1).
type JobStatus string

const (
	JobQueued   JobStatus = "QUEUED"
	JobRunning  JobStatus = "RUNNING"
	JobSuccess  JobStatus = "SUCCESS"
	JobFailed   JobStatus = "FAILED"
	JobCanceled JobStatus = "CANCELED"
)

// DiscoverySourceType records how a DiscoveredChannel reference was found.
type DiscoverySourceType string

const (
	DiscoveryForward     DiscoverySourceType = "FORWARD"
	DiscoveryCaptionLink DiscoverySourceType = "CAPTION_LINK"
	DiscoveryMention     DiscoverySourceType = "MENTION"
	DiscoveryTextLink    DiscoverySourceType = "TEXT_LINK"
)

// DuplicateMatchType records which signal produced a DuplicateCandidate.
type DuplicateMatchType string

const (
	DuplicateMatchHash       DuplicateMatchType = "CONTENT_HASH"
	DuplicateMatchExternalID DuplicateMatchType = "EXTERNAL_ID"
	DuplicateMatchFuzzyTitle DuplicateMatchType = "FUZZY_TITLE_DESIGNER"
	DuplicateMatchFilename   DuplicateMatchType = "FILENAME_SIZE"
)

// DuplicateStatus is the DuplicateCandidate review state.
type DuplicateStatus string

const (
	DuplicatePending  DuplicateStatus = "PENDING"
	DuplicateMerged   DuplicateStatus = "MERGED"
	DuplicateRejected DuplicateStatus = "REJECTED"
)

// MetadataAuthority records who owns a Design's displayed metadata.
type MetadataAuthority string

const (
	AuthorityOriginal MetadataAuthority = "ORIGINAL"
	AuthorityUser     MetadataAuthority = "USER"
)

// ExternalMetadataType identifies the external platform a link refers to.
type ExternalMetadataType string

const (
	ExternalThangs      ExternalMetadataType = "THANGS"
	ExternalPrintables  ExternalMetadataType = "PRINTABLES"
	ExternalThingiverse ExternalMetadataType = "THINGIVERSE"
)

// MatchMethod records how an ExternalMetadataSource was discovered.
type MatchMethod string

const (
	MatchMethodLink  MatchMethod = "LINK"
	MatchMethodFetch MatchMethod = "FETCH"
)

// TagSource records who/what attached a tag to a Design.
type TagSource string

const (
	TagSourceUser   TagSource = "USER"
	TagSourceAutoAI TagSource = "AUTO_AI"
)

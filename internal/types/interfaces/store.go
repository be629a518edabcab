package interfaces

import (
	"context"

	"github.com/polyforge/polyforge/internal/types"
)

// ChannelRepository persists Channel and Message/Attachment rows.
type ChannelRepository interface {
	Create(ctx context.Context, ch *types.Channel) error
	Get(ctx context.Context, id string) (*types.Channel, error)
	GetByPeerID(ctx context.Context, peerID string) (*types.Channel, error)
	GetByUsername(ctx context.Context, username string) (*types.Channel, error)
	Update(ctx context.Context, ch *types.Channel) error
	ListEnabled(ctx context.Context) ([]*types.Channel, error)
	List(ctx context.Context) ([]*types.Channel, error)

	CreateMessage(ctx context.Context, m *types.Message) error
	GetMessageByUpstreamID(ctx context.Context, channelID string, upstreamID int64) (*types.Message, error)
	CreateAttachment(ctx context.Context, a *types.Attachment) error
	UpdateAttachment(ctx context.Context, a *types.Attachment) error
	GetMessage(ctx context.Context, id string) (*types.Message, error)
}

// DesignRepository persists Design and its dependent rows.
type DesignRepository interface {
	Create(ctx context.Context, d *types.Design) error
	Get(ctx context.Context, id string) (*types.Design, error)
	GetWithRelations(ctx context.Context, id string) (*types.Design, error)
	Update(ctx context.Context, d *types.Design) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, status types.DesignStatus) ([]*types.Design, error)

	CreateSource(ctx context.Context, s *types.DesignSource) error
	ListSources(ctx context.Context, designID string) ([]*types.DesignSource, error)
	GetPreferredSource(ctx context.Context, designID string) (*types.DesignSource, error)
	ReassignSources(ctx context.Context, fromDesignID, toDesignID string) error

	CreateFile(ctx context.Context, f *types.DesignFile) error
	ListFiles(ctx context.Context, designID string) ([]*types.DesignFile, error)
	UpdateFile(ctx context.Context, f *types.DesignFile) error
	FindFileBySHA256(ctx context.Context, designID, sha256 string) (*types.DesignFile, error)
	MoveFiles(ctx context.Context, fromDesignID, toDesignID string, skipSHA256 map[string]bool) error

	CreatePreview(ctx context.Context, p *types.PreviewAsset) error
	ListPreviews(ctx context.Context, designID string) ([]*types.PreviewAsset, error)
	UpdatePreview(ctx context.Context, p *types.PreviewAsset) error
	ClearPrimaryPreview(ctx context.Context, designID string) error

	CreateTag(ctx context.Context, t *types.DesignTag) error
	ListTags(ctx context.Context, designID string) ([]*types.DesignTag, error)
	HasTagsFromSource(ctx context.Context, designID string, source types.TagSource) (bool, error)

	CreateExternalMetadata(ctx context.Context, e *types.ExternalMetadataSource) error
	ListExternalMetadata(ctx context.Context, designID string) ([]*types.ExternalMetadataSource, error)
	ReassignExternalMetadata(ctx context.Context, fromDesignID, toDesignID string) error

	FindByFileHash(ctx context.Context, sha256 string, excludeDesignID string) ([]*types.Design, error)
	FindByExternalID(ctx context.Context, extType types.ExternalMetadataType, externalID string, excludeDesignID string) ([]*types.Design, error)
	FindByFilenameSize(ctx context.Context, filename string, minSize, maxSize int64, excludeDesignID string) ([]*types.Design, error)
	ListAll(ctx context.Context, excludeDesignID string) ([]*types.Design, error)
}

// ImportRepository persists ImportSource, ImportRecord, ImportProfile rows.
type ImportRepository interface {
	CreateSource(ctx context.Context, s *types.ImportSource) error
	GetSource(ctx context.Context, id string) (*types.ImportSource, error)
	UpdateSource(ctx context.Context, s *types.ImportSource) error
	DeleteSource(ctx context.Context, id string) error
	ListSources(ctx context.Context) ([]*types.ImportSource, error)
	ListDueSources(ctx context.Context) ([]*types.ImportSource, error)

	UpsertRecord(ctx context.Context, r *types.ImportRecord) (bool, error) // returns created
	GetRecord(ctx context.Context, id string) (*types.ImportRecord, error)
	GetRecordByPath(ctx context.Context, sourceID, path string) (*types.ImportRecord, error)
	UpdateRecord(ctx context.Context, r *types.ImportRecord) error
	ListRecords(ctx context.Context, sourceID string) ([]*types.ImportRecord, error)
	ListRecordsByStatus(ctx context.Context, sourceID string, status types.ImportRecordStatus) ([]*types.ImportRecord, error)
	ListOrphanRecords(ctx context.Context) ([]*types.ImportRecord, error)

	CreateProfile(ctx context.Context, p *types.ImportProfile) error
	GetProfile(ctx context.Context, id string) (*types.ImportProfile, error)
	UpsertBuiltinProfile(ctx context.Context, p *types.ImportProfile) error
	UpdateProfile(ctx context.Context, p *types.ImportProfile) error
	DeleteProfile(ctx context.Context, id string) error
	ListProfiles(ctx context.Context) ([]*types.ImportProfile, error)
}

// DiscoveredChannelRepository persists DiscoveredChannel rows.
type DiscoveredChannelRepository interface {
	Upsert(ctx context.Context, dc *types.DiscoveredChannel) error
	FindMatch(ctx context.Context, peerID, username, inviteHash string) (*types.DiscoveredChannel, error)
	Get(ctx context.Context, id string) (*types.DiscoveredChannel, error)
	List(ctx context.Context, sortBy string, limit, offset int) ([]*types.DiscoveredChannel, int64, error)
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context) (map[string]int64, error)
}

// DuplicateRepository persists DuplicateCandidate rows.
type DuplicateRepository interface {
	Create(ctx context.Context, c *types.DuplicateCandidate) error
	ListPending(ctx context.Context) ([]*types.DuplicateCandidate, error)
	Update(ctx context.Context, c *types.DuplicateCandidate) error
}

// SettingsRepository persists Setting rows.
type SettingsRepository interface {
	Get(ctx context.Context, key string) (*types.Setting, error)
	Set(ctx context.Context, s *types.Setting) error
	List(ctx context.Context) ([]*types.Setting, error)
	Delete(ctx context.Context, key string) error
}

// CredentialsRepository persists encrypted Credential rows.
type CredentialsRepository interface {
	Upsert(ctx context.Context, c *types.Credential) error
	Get(ctx context.Context, provider types.CredentialProvider, refID string) (*types.Credential, error)
	Delete(ctx context.Context, provider types.CredentialProvider, refID string) error
}

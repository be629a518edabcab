package store

import (
	"context"
	"errors"

	"github.com/polyforge/polyforge/internal/types"
	"github.com/polyforge/polyforge/internal/types/interfaces"
	"gorm.io/gorm"
)

type channelRepository struct {
	db *gorm.DB
}

// NewChannelRepository builds the gorm-backed ChannelRepository.
func NewChannelRepository(db *gorm.DB) interfaces.ChannelRepository {
	return &channelRepository{db: db}
}

func (r *channelRepository) Create(ctx context.Context, ch *types.Channel) error {
	return r.db.WithContext(ctx).Create(ch).Error
}

func (r *channelRepository) Get(ctx context.Context, id string) (*types.Channel, error) {
	var ch types.Channel
	if err := r.db.WithContext(ctx).First(&ch, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &ch, nil
}

func (r *channelRepository) GetByPeerID(ctx context.Context, peerID string) (*types.Channel, error) {
	var ch types.Channel
	if err := r.db.WithContext(ctx).First(&ch, "peer_id = ?", peerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &ch, nil
}

func (r *channelRepository) GetByUsername(ctx context.Context, username string) (*types.Channel, error) {
	var ch types.Channel
	if err := r.db.WithContext(ctx).First(&ch, "username = ?", username).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &ch, nil
}

func (r *channelRepository) Update(ctx context.Context, ch *types.Channel) error {
	return r.db.WithContext(ctx).Save(ch).Error
}

func (r *channelRepository) ListEnabled(ctx context.Context) ([]*types.Channel, error) {
	var chans []*types.Channel
	if err := r.db.WithContext(ctx).Where("enabled = ?", true).Find(&chans).Error; err != nil {
		return nil, err
	}
	return chans, nil
}

func (r *channelRepository) List(ctx context.Context) ([]*types.Channel, error) {
	var chans []*types.Channel
	if err := r.db.WithContext(ctx).Find(&chans).Error; err != nil {
		return nil, err
	}
	return chans, nil
}

func (r *channelRepository) CreateMessage(ctx context.Context, m *types.Message) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *channelRepository) GetMessageByUpstreamID(ctx context.Context, channelID string, upstreamID int64) (*types.Message, error) {
	var m types.Message
	err := r.db.WithContext(ctx).
		Preload("Attachments").
		Where("channel_id = ? AND upstream_message_id = ?", channelID, upstreamID).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

func (r *channelRepository) CreateAttachment(ctx context.Context, a *types.Attachment) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *channelRepository) UpdateAttachment(ctx context.Context, a *types.Attachment) error {
	return r.db.WithContext(ctx).Save(a).Error
}

func (r *channelRepository) GetMessage(ctx context.Context, id string) (*types.Message, error) {
	var m types.Message
	if err := r.db.WithContext(ctx).Preload("Attachments").First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

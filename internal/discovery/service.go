package discovery

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	polyerrors "github.com/polyforge/polyforge/internal/errors"
	"github.com/polyforge/polyforge/internal/logger"
	"github.com/polyforge/polyforge/internal/types"
	"github.com/polyforge/polyforge/internal/types/interfaces"
)

// Service tracks channel references found in monitored content as
// DiscoveredChannel rows, skipping anything already monitored.
type Service struct {
	channels   interfaces.ChannelRepository
	discovered interfaces.DiscoveredChannelRepository
}

// NewService builds a Service.
func NewService(channels interfaces.ChannelRepository, discovered interfaces.DiscoveredChannelRepository) *Service {
	return &Service{channels: channels, discovered: discovered}
}

// ProcessMessage runs all detection sources over one message's forward
// metadata and caption, tracking each non-monitored reference found. The
// caption is fed once through the link detector and once through the
// mention detector (a single message body can carry links and mentions at
// once).
func (s *Service) ProcessMessage(ctx context.Context, fwd *ForwardMetadata, caption string) ([]*types.DiscoveredChannel, error) {
	var candidates []Candidate

	if c := DetectFromForward(fwd); c != nil {
		candidates = append(candidates, *c)
	}
	candidates = append(candidates, DetectLinks(caption, types.DiscoveryCaptionLink)...)
	candidates = append(candidates, DetectMentions(caption)...)

	var tracked []*types.DiscoveredChannel
	for _, c := range candidates {
		if c.empty() {
			continue
		}
		monitored, err := s.isMonitored(ctx, c)
		if err != nil {
			return nil, err
		}
		if monitored {
			continue
		}
		dc, err := s.Track(ctx, c)
		if err != nil {
			return nil, err
		}
		tracked = append(tracked, dc)
	}
	return tracked, nil
}

func (s *Service) isMonitored(ctx context.Context, c Candidate) (bool, error) {
	if c.PeerID != "" {
		ch, err := s.channels.GetByPeerID(ctx, c.PeerID)
		if err != nil {
			return false, err
		}
		if ch != nil {
			return true, nil
		}
	}
	if c.Username != "" {
		ch, err := s.channels.GetByUsername(ctx, c.Username)
		if err != nil {
			return false, err
		}
		if ch != nil {
			return true, nil
		}
	}
	return false, nil
}

// Track upserts a DiscoveredChannel for c: a new row if no match exists by
// peer id, username, or invite hash, or a reference-count increment and
// source-type union against an existing one.
func (s *Service) Track(ctx context.Context, c Candidate) (*types.DiscoveredChannel, error) {
	dc := &types.DiscoveredChannel{
		ID:          uuid.NewString(),
		PeerID:      c.PeerID,
		Username:    c.Username,
		InviteHash:  c.InviteHash,
		Title:       c.Title,
		SourceTypes: string(c.SourceType),
	}
	if err := s.discovered.Upsert(ctx, dc); err != nil {
		return nil, err
	}
	logger.Info(ctx, "discovered_channel_tracked", "id", dc.ID, "username", dc.Username,
		"reference_count", dc.ReferenceCount, "source_type", c.SourceType)
	return dc, nil
}

// Promote turns a DiscoveredChannel into a monitored Channel (the REST
// "add" operation of spec §6's /discovered-channels table), then removes
// the discovery row so it stops surfacing as an unmonitored reference.
func (s *Service) Promote(ctx context.Context, discoveredID string) (*types.Channel, error) {
	dc, err := s.discovered.Get(ctx, discoveredID)
	if err != nil {
		return nil, err
	}
	if dc == nil {
		return nil, polyerrors.NewInput(fmt.Errorf("discovery: discovered channel %s not found", discoveredID))
	}
	if dc.PeerID == "" {
		return nil, polyerrors.NewInput(fmt.Errorf("discovery: discovered channel %s has no resolvable peer id", discoveredID))
	}

	ch := &types.Channel{
		ID:           uuid.NewString(),
		PeerID:       dc.PeerID,
		Username:     dc.Username,
		Title:        dc.Title,
		DownloadMode: types.DownloadModeManual,
		Enabled:      true,
	}
	if err := s.channels.Create(ctx, ch); err != nil {
		return nil, err
	}
	if err := s.discovered.Delete(ctx, dc.ID); err != nil {
		return nil, err
	}
	logger.Info(ctx, "discovered_channel_promoted", "discovered_id", dc.ID, "channel_id", ch.ID, "peer_id", ch.PeerID)
	return ch, nil
}

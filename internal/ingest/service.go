package ingest

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/polyforge/polyforge/internal/logger"
	"github.com/polyforge/polyforge/internal/types"
	"github.com/polyforge/polyforge/internal/types/interfaces"
)

// RawAttachment is one media item as reported by a chat client, prior to
// persistence.
type RawAttachment struct {
	UpstreamFileID string
	Type           types.AttachmentType
	Filename       string
	SizeBytes      int64
	Mime           string
}

// RawMessage is a chat-platform message as reported by a chat client,
// prior to persistence.
type RawMessage struct {
	UpstreamMessageID int64
	PostedAt          time.Time
	AuthorLabel       string
	CaptionRaw        string
	Attachments       []RawAttachment
}

// Service turns RawMessages into Message/Attachment/Design/DesignSource
// rows (spec §4.11).
type Service struct {
	channels interfaces.ChannelRepository
	designs  interfaces.DesignRepository
}

// NewService builds a Service.
func NewService(channels interfaces.ChannelRepository, designs interfaces.DesignRepository) *Service {
	return &Service{channels: channels, designs: designs}
}

// IngestMessage stores raw as a Message (idempotent on channel+upstream
// id), its Attachments, and — if any attachment is a candidate design
// file — a new Design plus its preferred DesignSource and any detected
// external-platform links. Returns the stored message and the id of the
// Design created for it, or "" if no Design was created (spec §4.4 uses
// this to decide whether to enqueue an auto-download job).
func (s *Service) IngestMessage(ctx context.Context, channel *types.Channel, raw RawMessage) (*types.Message, string, error) {
	existing, err := s.channels.GetMessageByUpstreamID(ctx, channel.ID, raw.UpstreamMessageID)
	if err != nil {
		return nil, "", err
	}
	if existing != nil {
		logger.Info(ctx, "message_already_exists", "channel_id", channel.ID, "upstream_message_id", raw.UpstreamMessageID)
		return existing, "", nil
	}

	posted := raw.PostedAt
	if posted.IsZero() {
		posted = time.Now().UTC()
	}

	message := &types.Message{
		ID:                uuid.NewString(),
		ChannelID:         channel.ID,
		UpstreamMessageID: raw.UpstreamMessageID,
		CaptionRaw:        raw.CaptionRaw,
		CaptionNormalized: NormalizeCaption(raw.CaptionRaw),
		PostedAt:          posted,
		AuthorLabel:       raw.AuthorLabel,
	}
	if err := s.channels.CreateMessage(ctx, message); err != nil {
		return nil, "", err
	}

	attachments, err := s.storeAttachments(ctx, message.ID, raw.Attachments)
	if err != nil {
		return nil, "", err
	}

	var hasDesignFile bool
	for _, a := range attachments {
		if a.IsCandidateDesignFile {
			hasDesignFile = true
			break
		}
	}

	if !hasDesignFile {
		logger.Info(ctx, "message_ingested_no_design", "channel_id", channel.ID, "upstream_message_id", raw.UpstreamMessageID)
		return message, "", nil
	}

	designID, err := s.createDesign(ctx, channel, message, attachments)
	if err != nil {
		return nil, "", err
	}
	logger.Info(ctx, "design_detected", "channel_id", channel.ID, "message_id", message.ID,
		"upstream_message_id", raw.UpstreamMessageID)
	return message, designID, nil
}

func (s *Service) storeAttachments(ctx context.Context, messageID string, raws []RawAttachment) ([]*types.Attachment, error) {
	attachments := make([]*types.Attachment, 0, len(raws))
	for _, r := range raws {
		ext := ExtractExtension(r.Filename)
		a := &types.Attachment{
			ID:                    uuid.NewString(),
			MessageID:             messageID,
			UpstreamFileID:        r.UpstreamFileID,
			Type:                  r.Type,
			Filename:              r.Filename,
			Ext:                   ext,
			SizeBytes:             r.SizeBytes,
			Mime:                  r.Mime,
			IsCandidateDesignFile: IsCandidateDesignFile(ext),
		}
		if err := s.channels.CreateAttachment(ctx, a); err != nil {
			return nil, err
		}
		attachments = append(attachments, a)
	}
	return attachments, nil
}

func (s *Service) createDesign(ctx context.Context, channel *types.Channel, message *types.Message, attachments []*types.Attachment) (string, error) {
	var firstCandidate string
	extSet := map[string]bool{}
	for _, a := range attachments {
		if !a.IsCandidateDesignFile {
			continue
		}
		if firstCandidate == "" && a.Filename != "" {
			firstCandidate = a.Filename
		}
		if a.Ext != "" {
			extSet[strings.ToUpper(strings.TrimPrefix(a.Ext, "."))] = true
		}
	}

	extensions := make([]string, 0, len(extSet))
	for ext := range extSet {
		extensions = append(extensions, ext)
	}
	sort.Strings(extensions)

	title := ExtractTitle(message.CaptionRaw, firstCandidate, message.PostedAt)

	design := &types.Design{
		ID:               uuid.NewString(),
		Title:            title,
		Authority:        types.AuthorityOriginal,
		Status:           types.DesignDiscovered,
		Multicolor:       types.MulticolorUnknown,
		PrimaryFileTypes: strings.Join(extensions, ","),
	}
	if err := s.designs.Create(ctx, design); err != nil {
		return "", err
	}

	messageID := message.ID
	source := &types.DesignSource{
		ID:          uuid.NewString(),
		DesignID:    design.ID,
		MessageID:   &messageID,
		Rank:        1,
		IsPreferred: true,
	}
	if err := s.designs.CreateSource(ctx, source); err != nil {
		return "", err
	}

	logger.Info(ctx, "design_created", "design_id", design.ID, "title", title, "file_types", extensions)

	if err := s.processExternalLinks(ctx, design, message.CaptionRaw); err != nil {
		logger.Warn(ctx, "external_url_processing_failed", "design_id", design.ID, "error", err.Error())
	}

	_ = channel
	return design.ID, nil
}

func (s *Service) processExternalLinks(ctx context.Context, design *types.Design, caption string) error {
	links := DetectExternalLinks(caption)
	for _, link := range links {
		ext := &types.ExternalMetadataSource{
			ID:          uuid.NewString(),
			DesignID:    design.ID,
			Type:        link.Type,
			ExternalID:  link.ExternalID,
			URL:         link.URL,
			Confidence:  1.0,
			MatchMethod: types.MatchMethodLink,
		}
		if err := s.designs.CreateExternalMetadata(ctx, ext); err != nil {
			return err
		}
	}
	if len(links) > 0 {
		logger.Info(ctx, "external_urls_processed", "design_id", design.ID, "count", len(links))
	}
	return nil
}

package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/polyforge/polyforge/internal/logger"
	"github.com/polyforge/polyforge/internal/preview"
	"github.com/polyforge/polyforge/internal/types"
	"github.com/polyforge/polyforge/internal/types/interfaces"

	polyerrors "github.com/polyforge/polyforge/internal/errors"
)

// maxTelegramImagesPerMessage caps how many PHOTO attachments of a single
// message get downloaded (spec §4.10).
const maxTelegramImagesPerMessage = 10

// DownloadTelegramImagesPayload is the JobDownloadTelegramImages job's
// payload.
type DownloadTelegramImagesPayload struct {
	DesignID      string `json:"design_id"`
	MessageID     string `json:"message_id"`
	ChannelPeerID string `json:"channel_peer_id"`
}

// DownloadTelegramImagesWorker downloads a message's PHOTO attachments as
// preview images, deduped by upstream file id (spec §4.10).
type DownloadTelegramImagesWorker struct {
	designs     interfaces.DesignRepository
	channels    interfaces.ChannelRepository
	chat        interfaces.ChatClient
	previews    *preview.Service
	stagingRoot string
}

// NewDownloadTelegramImagesWorker builds a DownloadTelegramImagesWorker.
func NewDownloadTelegramImagesWorker(designs interfaces.DesignRepository, channels interfaces.ChannelRepository, chat interfaces.ChatClient, previews *preview.Service, stagingRoot string) *DownloadTelegramImagesWorker {
	return &DownloadTelegramImagesWorker{designs: designs, channels: channels, chat: chat, previews: previews, stagingRoot: stagingRoot}
}

func (w *DownloadTelegramImagesWorker) Name() string { return "download_telegram_images" }

func (w *DownloadTelegramImagesWorker) JobTypes() []types.JobType {
	return []types.JobType{types.JobDownloadTelegramImages}
}

func (w *DownloadTelegramImagesWorker) Process(ctx context.Context, job *types.Job, payload []byte) (any, error) {
	var p DownloadTelegramImagesPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("download_telegram_images: decode payload: %w", err)
	}
	if p.DesignID == "" && job.DesignID != nil {
		p.DesignID = *job.DesignID
	}
	if p.DesignID == "" || p.MessageID == "" || p.ChannelPeerID == "" {
		return nil, polyerrors.NewInput(fmt.Errorf(
			"download_telegram_images: missing required payload fields: design_id=%q message_id=%q channel_peer_id=%q",
			p.DesignID, p.MessageID, p.ChannelPeerID))
	}

	design, err := w.designs.Get(ctx, p.DesignID)
	if err != nil {
		return nil, err
	}
	if design == nil {
		return nil, polyerrors.NewInput(fmt.Errorf("download_telegram_images: design %s not found", p.DesignID))
	}

	msg, err := w.channels.GetMessage(ctx, p.MessageID)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, polyerrors.NewInput(fmt.Errorf("download_telegram_images: message %s not found", p.MessageID))
	}

	existing, err := w.designs.ListPreviews(ctx, design.ID)
	if err != nil {
		return nil, err
	}
	have := make(map[string]bool, len(existing))
	for _, ex := range existing {
		if ex.UpstreamFileID != "" {
			have[ex.UpstreamFileID] = true
		}
	}

	var photos []types.Attachment
	for _, att := range msg.Attachments {
		if att.Type == types.AttachmentPhoto && !have[att.UpstreamFileID] {
			photos = append(photos, att)
		}
	}
	skipped := len(msg.Attachments) - len(photos)
	if len(photos) == 0 {
		logger.Info(ctx, "image_download_skipped_all_exist", "design_id", design.ID, "existing_count", len(have))
		return map[string]any{"images_downloaded": 0, "images_skipped": skipped}, nil
	}
	if len(photos) > maxTelegramImagesPerMessage {
		photos = photos[:maxTelegramImagesPerMessage]
	}

	tmpDir := filepath.Join(w.stagingRoot, "telegram_images_"+design.ID)
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return nil, polyerrors.NewTransient(err)
	}
	defer os.RemoveAll(tmpDir)

	var saved int
	for i, att := range photos {
		destPath := filepath.Join(tmpDir, fmt.Sprintf("%d_%s", i, att.Filename))
		if err := w.chat.DownloadMedia(ctx, p.ChannelPeerID, att.UpstreamFileID, destPath, func(int64, int64) {}); err != nil {
			logger.Warn(ctx, "image_download_failed", "design_id", design.ID, "attachment_id", att.ID, "error", err)
			continue
		}

		data, err := os.ReadFile(destPath)
		if err != nil {
			logger.Warn(ctx, "image_download_read_failed", "design_id", design.ID, "attachment_id", att.ID, "error", err)
			continue
		}

		if _, err := w.previews.Save(ctx, design.ID, types.PreviewSourceTelegram, data, preview.SaveOptions{
			Filename:       att.Filename,
			Kind:           types.PreviewKindThumbnail,
			UpstreamFileID: att.UpstreamFileID,
		}); err != nil {
			logger.Warn(ctx, "preview_save_failed", "design_id", design.ID, "error", err)
			continue
		}
		saved++
	}

	if saved > 0 {
		if _, err := w.previews.AutoSelectPrimary(ctx, design.ID); err != nil {
			return nil, err
		}
	}

	logger.Info(ctx, "image_download_complete", "design_id", design.ID, "images_downloaded", saved)
	return map[string]any{"images_downloaded": saved, "images_attempted": len(photos)}, nil
}

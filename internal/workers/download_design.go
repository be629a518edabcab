package workers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/polyforge/polyforge/internal/duplicate"
	polyerrors "github.com/polyforge/polyforge/internal/errors"
	"github.com/polyforge/polyforge/internal/library"
	"github.com/polyforge/polyforge/internal/logger"
	"github.com/polyforge/polyforge/internal/types"
	"github.com/polyforge/polyforge/internal/types/interfaces"
)

// progressForwardInterval throttles a worker's own UpdateProgress calls,
// mirroring internal/worker.Runner's progressUpdateInterval.
const progressForwardInterval = time.Second

// DownloadDesignPayload is the JobDownloadDesign job's payload.
type DownloadDesignPayload struct {
	DesignID string `json:"design_id"`
}

// DownloadDesignWorker fetches a Design's candidate chat-platform
// attachments into staging (spec §4.6).
type DownloadDesignWorker struct {
	designs     interfaces.DesignRepository
	channels    interfaces.ChannelRepository
	chat        interfaces.ChatClient
	queue       interfaces.JobQueue
	limiter     interfaces.RateLimiter
	duplicates  *duplicate.Service
	stagingRoot string
}

// NewDownloadDesignWorker builds a DownloadDesignWorker.
func NewDownloadDesignWorker(designs interfaces.DesignRepository, channels interfaces.ChannelRepository, chat interfaces.ChatClient, queue interfaces.JobQueue, limiter interfaces.RateLimiter, duplicates *duplicate.Service, stagingRoot string) *DownloadDesignWorker {
	return &DownloadDesignWorker{designs: designs, channels: channels, chat: chat, queue: queue, limiter: limiter, duplicates: duplicates, stagingRoot: stagingRoot}
}

func (w *DownloadDesignWorker) Name() string { return "download_design" }

func (w *DownloadDesignWorker) JobTypes() []types.JobType {
	return []types.JobType{types.JobDownloadDesign}
}

func (w *DownloadDesignWorker) Process(ctx context.Context, job *types.Job, payload []byte) (any, error) {
	var p DownloadDesignPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("download_design: decode payload: %w", err)
	}
	if p.DesignID == "" && job.DesignID != nil {
		p.DesignID = *job.DesignID
	}
	if p.DesignID == "" {
		return nil, polyerrors.NewInput(fmt.Errorf("download_design: missing design_id"))
	}

	design, err := w.designs.GetWithRelations(ctx, p.DesignID)
	if err != nil {
		return nil, err
	}
	if design == nil {
		return nil, polyerrors.NewInput(fmt.Errorf("download_design: design %s not found", p.DesignID))
	}

	type pendingMessage struct {
		msg     *types.Message
		channel *types.Channel
	}
	var pending []pendingMessage
	var hints []duplicate.FileHint
	for _, source := range design.Sources {
		if source.MessageID == nil {
			continue
		}
		msg, err := w.channels.GetMessage(ctx, *source.MessageID)
		if err != nil {
			return nil, err
		}
		if msg == nil {
			continue
		}
		channel, err := w.channels.Get(ctx, msg.ChannelID)
		if err != nil {
			return nil, err
		}
		if channel == nil {
			continue
		}
		pending = append(pending, pendingMessage{msg: msg, channel: channel})
		for _, att := range msg.Attachments {
			if att.IsCandidateDesignFile {
				hints = append(hints, duplicate.FileHint{Filename: att.Filename, Size: att.SizeBytes})
			}
		}
	}

	if w.duplicates != nil {
		hits, matchType, confidence, target, err := w.duplicates.CheckPreDownload(ctx, design.Title, design.Designer, hints, design.ID)
		if err != nil {
			return nil, err
		}
		if hits && target != nil && target.ID != design.ID {
			merged, err := w.duplicates.MergeDesigns(ctx, design, target)
			if err != nil {
				return nil, err
			}
			logger.Info(ctx, "download_design_duplicate_skip", "design_id", design.ID, "target_design_id", merged.ID,
				"match_type", matchType, "confidence", confidence)
			return map[string]any{"merged_into": merged.ID, "skipped_download": true}, nil
		}
	}

	design.Status = types.DesignDownloading
	if err := w.designs.Update(ctx, design); err != nil {
		return nil, err
	}

	destDir := filepath.Join(w.stagingRoot, design.ID)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, polyerrors.NewTransient(err)
	}

	var filesDownloaded int
	var totalBytes int64
	var anyArchive bool
	lastUpdate := time.Time{}

	for _, p := range pending {
		msg, channel := p.msg, p.channel

		for i := range msg.Attachments {
			att := &msg.Attachments[i]
			if !att.IsCandidateDesignFile || att.DownloadStatus == types.DownloadStatusDownloaded {
				continue
			}

			if err := w.limiter.Acquire(ctx, channel.PeerID); err != nil {
				return nil, err
			}

			filename, err := library.ResolveCollision(destDir, att.Filename)
			if err != nil {
				return nil, polyerrors.NewInput(err)
			}
			destPath := filepath.Join(destDir, filename)

			att.DownloadStatus = types.DownloadStatusDownloading
			if err := w.channels.UpdateAttachment(ctx, att); err != nil {
				return nil, err
			}

			progress := func(bytes, total int64) {
				now := time.Now()
				if lastUpdate.IsZero() || now.Sub(lastUpdate) >= progressForwardInterval {
					_ = w.queue.UpdateProgress(ctx, job.ID, int(bytes), int(total), &types.JobProgress{
						CurrentFile: att.Filename, CurrentFileBytes: bytes, CurrentFileTotal: total,
					})
					lastUpdate = now
				}
			}

			if err := w.chat.DownloadMedia(ctx, channel.PeerID, att.UpstreamFileID, destPath, progress); err != nil {
				att.DownloadStatus = types.DownloadStatusFailed
				_ = w.channels.UpdateAttachment(ctx, att)
				return nil, err
			}

			hash, size, err := sha256File(destPath)
			if err != nil {
				return nil, polyerrors.NewTransient(err)
			}

			att.ContentHash = hash
			att.SizeBytes = size
			att.DownloadStatus = types.DownloadStatusDownloaded
			if err := w.channels.UpdateAttachment(ctx, att); err != nil {
				return nil, err
			}

			filesDownloaded++
			totalBytes += size
			if isArchiveExt(att.Ext) {
				anyArchive = true
			}
		}
	}

	design.Status = types.DesignDownloaded
	design.TotalSizeBytes += totalBytes
	if err := w.designs.Update(ctx, design); err != nil {
		return nil, err
	}

	nextType := types.JobImportToLibrary
	if anyArchive {
		nextType = types.JobExtractArchive
	}
	if _, err := w.queue.Enqueue(ctx, nextType, interfaces.EnqueueOptions{
		DesignID:    design.ID,
		Priority:    5,
		DisplayName: fmt.Sprintf("%s %s", strings.ToLower(string(nextType)), design.Title),
	}); err != nil {
		return nil, err
	}

	logger.Info(ctx, "download_design_done", "design_id", design.ID,
		"files_downloaded", filesDownloaded, "total_bytes", totalBytes, "next_job", nextType)

	return map[string]any{"files_downloaded": filesDownloaded, "total_bytes": totalBytes, "next_job": nextType}, nil
}

func sha256File(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	h := sha256.New()
	size, err := io.Copy(h, f)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), size, nil
}

// isArchiveExt mirrors ingest.ExtractExtension's handling of double
// extensions when deciding whether an attachment's extension is an archive.
func isArchiveExt(ext string) bool {
	switch strings.ToLower(ext) {
	case ".zip", ".rar", ".7z", ".tar", ".gz", ".tgz":
		return true
	}
	return false
}

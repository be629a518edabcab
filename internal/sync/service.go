// Package sync implements the chat-platform sync service (spec §4.4): a
// singleton that subscribes to real-time new-message events for enabled
// Channels and runs a periodic catch-up loop for anything missed while
// disconnected.
package sync

import (
	"context"
	"time"

	"github.com/polyforge/polyforge/internal/discovery"
	"github.com/polyforge/polyforge/internal/ingest"
	"github.com/polyforge/polyforge/internal/logger"
	"github.com/polyforge/polyforge/internal/types"
	"github.com/polyforge/polyforge/internal/types/interfaces"
)

// catchUpBatchSize bounds a single IterMessages call during the catch-up
// path (spec §4.4: "min-id-bounded batch of 100").
const catchUpBatchSize = 100

// autoDownloadPriority is the job priority used for real-time and
// catch-up auto-download enqueues (spec §4.4).
const autoDownloadPriority = 5

// floodWaitBuffer is added on top of a FloodWaitError's reported wait so
// the remote's rate limit window has fully elapsed before retrying.
const floodWaitBuffer = 5 * time.Second

// errorBackoff is how long the catch-up loop waits after an unexpected,
// non-flood-wait error before trying again.
const errorBackoff = 30 * time.Second

// Stats mirrors the original service's runtime counters, useful for a
// status endpoint.
type Stats struct {
	Running            bool       `json:"running"`
	StartedAt          *time.Time `json:"started_at,omitempty"`
	SubscribedChannels int        `json:"subscribed_channels"`
	MessagesProcessed  int64      `json:"messages_processed"`
	DesignsCreated     int64      `json:"designs_created"`
	LastSyncAt         *time.Time `json:"last_sync_at,omitempty"`
}

// Service runs the real-time subscription and catch-up poll loop.
type Service struct {
	client    interfaces.ChatClient
	channels  interfaces.ChannelRepository
	designs   interfaces.DesignRepository
	ingest    *ingest.Service
	discovery *discovery.Service
	queue     interfaces.JobQueue

	pollInterval time.Duration

	startedAt         time.Time
	messagesProcessed int64
	designsCreated    int64
	lastSyncAt        time.Time
}

// NewService builds a Service.
func NewService(
	client interfaces.ChatClient,
	channels interfaces.ChannelRepository,
	designs interfaces.DesignRepository,
	ingestSvc *ingest.Service,
	discoverySvc *discovery.Service,
	queue interfaces.JobQueue,
	pollInterval time.Duration,
) *Service {
	if pollInterval <= 0 {
		pollInterval = 5 * time.Minute
	}
	return &Service{
		client:       client,
		channels:     channels,
		designs:      designs,
		ingest:       ingestSvc,
		discovery:    discoverySvc,
		queue:        queue,
		pollInterval: pollInterval,
	}
}

// Run subscribes to real-time events and runs the catch-up loop until ctx
// is canceled. If the chat client isn't authenticated, it logs and
// returns immediately without error — the caller is expected to retry
// once the operator has completed the chat platform's login flow.
func (s *Service) Run(ctx context.Context) error {
	if !s.client.IsAuthenticated(ctx) {
		logger.Warn(ctx, "sync_service_not_authenticated")
		return nil
	}

	msgCh, err := s.client.Subscribe(ctx)
	if err != nil {
		return err
	}

	s.startedAt = time.Now().UTC()
	logger.Info(ctx, "sync_service_starting", "poll_interval", s.pollInterval.String())

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.realtimeLoop(ctx, msgCh)
	}()

	s.catchUpLoop(ctx)
	<-done

	logger.Info(ctx, "sync_service_stopped",
		"messages_processed", s.messagesProcessed,
		"designs_created", s.designsCreated)
	return nil
}

// Stats reports the service's running counters.
func (s *Service) Stats() Stats {
	st := Stats{
		Running:           !s.startedAt.IsZero(),
		MessagesProcessed: s.messagesProcessed,
		DesignsCreated:    s.designsCreated,
	}
	if !s.startedAt.IsZero() {
		startedAt := s.startedAt
		st.StartedAt = &startedAt
	}
	if !s.lastSyncAt.IsZero() {
		lastSyncAt := s.lastSyncAt
		st.LastSyncAt = &lastSyncAt
	}
	return st
}

// realtimeLoop processes the chat client's subscription channel until ctx
// is canceled or the channel is closed (spec §4.4 "Real-time path").
func (s *Service) realtimeLoop(ctx context.Context, msgCh <-chan *interfaces.ChatMessage) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgCh:
			if !ok {
				return
			}
			if err := s.handleRealtimeMessage(ctx, msg); err != nil {
				logger.Error(ctx, "sync_message_handler_error", "error", err)
			}
		}
	}
}

func (s *Service) handleRealtimeMessage(ctx context.Context, msg *interfaces.ChatMessage) error {
	channel, err := s.channels.GetByPeerID(ctx, msg.PeerID)
	if err != nil {
		return err
	}
	if channel == nil || !channel.Enabled {
		return nil
	}
	return s.ingestOne(ctx, channel, msg)
}

// catchUpLoop runs the periodic catch-up sweep until ctx is canceled
// (spec §4.4 "Catch-up path"), sleeping pollInterval between sweeps and
// honouring a FloodWaitError by pausing for its reported duration plus a
// buffer instead of the normal interval.
func (s *Service) catchUpLoop(ctx context.Context) {
	for {
		wait := s.pollInterval
		if err := s.catchUpAll(ctx); err != nil {
			if fw, ok := err.(*interfaces.FloodWaitError); ok {
				wait = time.Duration(fw.Seconds)*time.Second + floodWaitBuffer
				logger.Warn(ctx, "sync_rate_limited", "wait_seconds", fw.Seconds)
			} else {
				wait = errorBackoff
				logger.Error(ctx, "sync_loop_error", "error", err)
			}
		} else {
			s.lastSyncAt = time.Now().UTC()
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

func (s *Service) catchUpAll(ctx context.Context) error {
	channels, err := s.channels.ListEnabled(ctx)
	if err != nil {
		return err
	}
	for _, channel := range channels {
		if ctx.Err() != nil {
			return nil
		}
		if err := s.catchUpChannel(ctx, channel); err != nil {
			if fw, ok := err.(*interfaces.FloodWaitError); ok {
				return fw
			}
			logger.Warn(ctx, "sync_catch_up_channel_error", "channel_id", channel.ID, "error", err)
		}
	}
	return nil
}

func (s *Service) catchUpChannel(ctx context.Context, channel *types.Channel) error {
	msgs, err := s.client.IterMessages(ctx, channel.PeerID, channel.LastIngestedMessageID, catchUpBatchSize)
	if err != nil {
		return err
	}

	var fetched int
	for _, msg := range msgs {
		if ctx.Err() != nil {
			break
		}
		if err := s.ingestOne(ctx, channel, msg); err != nil {
			return err
		}
		fetched++
	}
	if fetched > 0 {
		logger.Info(ctx, "sync_catch_up_complete", "channel_id", channel.ID, "channel_title", channel.Title,
			"messages_fetched", fetched)
	}
	return nil
}

// ingestOne runs §4.11 ingest and §4.11 discovery over a single message,
// advances the channel's cursor, and enqueues an auto-download job when
// the channel's mode calls for it. It is shared by the real-time and
// catch-up paths, which differ only in how they obtain msg.
func (s *Service) ingestOne(ctx context.Context, channel *types.Channel, msg *interfaces.ChatMessage) error {
	raw := toRawMessage(msg)
	_, designID, err := s.ingest.IngestMessage(ctx, channel, raw)
	if err != nil {
		return err
	}
	s.messagesProcessed++

	fwd := &discovery.ForwardMetadata{
		PeerID:   msg.ForwardFromPeerID,
		Title:    msg.ForwardFromTitle,
		Username: msg.ForwardFromUsername,
	}
	if _, err := s.discovery.ProcessMessage(ctx, fwd, msg.CaptionRaw); err != nil {
		logger.Warn(ctx, "sync_discovery_error", "channel_id", channel.ID, "error", err)
	}

	if designID != "" {
		s.designsCreated++
		if err := s.maybeAutoDownload(ctx, channel, designID); err != nil {
			logger.Warn(ctx, "sync_auto_download_enqueue_failed", "channel_id", channel.ID, "design_id", designID, "error", err)
		}
	}

	if msg.UpstreamID > channel.LastIngestedMessageID {
		channel.LastIngestedMessageID = msg.UpstreamID
		now := time.Now().UTC()
		channel.LastSyncAt = &now
		if err := s.channels.Update(ctx, channel); err != nil {
			return err
		}
	}
	return nil
}

// maybeAutoDownload enqueues a JobDownloadDesign for designID when the
// channel's mode calls for it (spec §4.4). DOWNLOAD_ALL_NEW only applies
// to designs created after the mode was switched on; designs reaching
// this path were just created by ingest, so the check only ever excludes
// a design whose enablement timestamp is somehow in the future.
func (s *Service) maybeAutoDownload(ctx context.Context, channel *types.Channel, designID string) error {
	if channel.DownloadMode != types.DownloadModeDownloadAll && channel.DownloadMode != types.DownloadModeDownloadAllNew {
		return nil
	}
	if channel.DownloadMode == types.DownloadModeDownloadAllNew && channel.DownloadModeEnabledAt != nil {
		design, err := s.designs.Get(ctx, designID)
		if err != nil {
			return err
		}
		if design == nil || design.CreatedAt.Before(*channel.DownloadModeEnabledAt) {
			return nil
		}
	}

	_, err := s.queue.Enqueue(ctx, types.JobDownloadDesign, interfaces.EnqueueOptions{
		DesignID: designID,
		Priority: autoDownloadPriority,
		Payload:  map[string]string{"design_id": designID},
	})
	if err != nil {
		return err
	}
	logger.Info(ctx, "sync_auto_download_queued", "channel_id", channel.ID, "design_id", designID)
	return nil
}

func toRawMessage(msg *interfaces.ChatMessage) ingest.RawMessage {
	attachments := make([]ingest.RawAttachment, 0, len(msg.Attachments))
	for _, a := range msg.Attachments {
		attachments = append(attachments, ingest.RawAttachment{
			UpstreamFileID: a.UpstreamFileID,
			Type:           types.AttachmentType(a.Type),
			Filename:       a.Filename,
			SizeBytes:      a.SizeBytes,
			Mime:           a.Mime,
		})
	}
	return ingest.RawMessage{
		UpstreamMessageID: msg.UpstreamID,
		AuthorLabel:       msg.AuthorLabel,
		CaptionRaw:        msg.CaptionRaw,
		Attachments:       attachments,
	}
}

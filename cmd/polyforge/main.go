// Command polyforge is the process entrypoint: it loads configuration,
// opens the database, wires every domain service and worker pool, and
// runs the HTTP API and worker fleet side by side until signaled to stop.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"github.com/polyforge/polyforge/internal/chatclient"
	"github.com/polyforge/polyforge/internal/cleanup"
	"github.com/polyforge/polyforge/internal/config"
	"github.com/polyforge/polyforge/internal/cryptoutil"
	"github.com/polyforge/polyforge/internal/discovery"
	"github.com/polyforge/polyforge/internal/duplicate"
	"github.com/polyforge/polyforge/internal/eventbus"
	"github.com/polyforge/polyforge/internal/handler"
	"github.com/polyforge/polyforge/internal/importprofile"
	"github.com/polyforge/polyforge/internal/ingest"
	"github.com/polyforge/polyforge/internal/jobqueue"
	"github.com/polyforge/polyforge/internal/library"
	"github.com/polyforge/polyforge/internal/logger"
	"github.com/polyforge/polyforge/internal/preview"
	"github.com/polyforge/polyforge/internal/ratelimit"
	"github.com/polyforge/polyforge/internal/scanners/bulkfolder"
	"github.com/polyforge/polyforge/internal/scanners/clouddrive"
	"github.com/polyforge/polyforge/internal/scanners/forum"
	"github.com/polyforge/polyforge/internal/settings"
	"github.com/polyforge/polyforge/internal/store"
	"github.com/polyforge/polyforge/internal/sync"
	"github.com/polyforge/polyforge/internal/tagger"
	"github.com/polyforge/polyforge/internal/telemetry"
	"github.com/polyforge/polyforge/internal/types"
	"github.com/polyforge/polyforge/internal/types/interfaces"
	"github.com/polyforge/polyforge/internal/worker"
	"github.com/polyforge/polyforge/internal/workers"
)

func main() {
	if err := run(); err != nil {
		logger.Error(context.Background(), "fatal", "error", err.Error())
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.Configure(cfg.LogJSON, level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(cfg.DatabaseDriver, cfg.DatabaseDSN, "internal/store/migrations")
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	tracer, err := telemetry.NewProvider(ctx, cfg.TelemetryServiceName, cfg.TelemetryOTLPEndpoint, nil)
	if err != nil {
		return fmt.Errorf("start telemetry: %w", err)
	}
	defer func() { _ = tracer.Shutdown(context.Background()) }()

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
	}

	box, err := encryptionBox(cfg)
	if err != nil {
		return fmt.Errorf("init credential box: %w", err)
	}

	channels := store.NewChannelRepository(db)
	designs := store.NewDesignRepository(db)
	imports := store.NewImportRepository(db)
	discovered := store.NewDiscoveredChannelRepository(db)
	credentials := store.NewCredentialsRepository(db)
	settingsRepo := store.NewSettingsRepository(db)
	duplicatesRepo := store.NewDuplicateRepository(db)

	settingsSvc := settings.NewService(settingsRepo, cfg)

	bus := eventbus.New()

	var wakeScheduler *jobqueue.WakeScheduler
	if cfg.RedisAddr != "" {
		redisOpt := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
		wakeScheduler = jobqueue.NewWakeScheduler(redisOpt)
		defer wakeScheduler.Close()

		wakeServer := asynq.NewServer(redisOpt, asynq.Config{Concurrency: 1, LogLevel: asynq.WarnLevel})
		wakeMux := asynq.NewServeMux()
		jobqueue.RegisterWakeHandler(wakeMux)
		if err := wakeServer.Start(wakeMux); err != nil {
			return fmt.Errorf("start wake task server: %w", err)
		}
		defer wakeServer.Shutdown()
	}
	queue := jobqueue.New(db, bus, wakeScheduler)

	profiles := importprofile.NewService(imports)
	if err := profiles.EnsureBuiltins(ctx); err != nil {
		return fmt.Errorf("seed import profiles: %w", err)
	}
	configFor := func(ctx context.Context, profileID string) (types.ImportProfileConfig, error) {
		profile, err := imports.GetProfile(ctx, profileID)
		if err != nil {
			return types.ImportProfileConfig{}, err
		}
		if profile == nil {
			return types.ImportProfileConfig{}, fmt.Errorf("import profile %q not found", profileID)
		}
		return profile.Config, nil
	}

	telegramRPM, err := settingsSvc.GetInt(ctx, "telegram_rate_limit_rpm")
	if err != nil {
		return fmt.Errorf("load telegram_rate_limit_rpm setting: %w", err)
	}
	telegramSpacing, err := settingsSvc.GetFloat(ctx, "telegram_channel_spacing")
	if err != nil {
		return fmt.Errorf("load telegram_channel_spacing setting: %w", err)
	}
	aiRPM, err := settingsSvc.GetInt(ctx, "ai_rate_limit_rpm")
	if err != nil {
		return fmt.Errorf("load ai_rate_limit_rpm setting: %w", err)
	}
	telegramLimiter := ratelimit.NewTelegramLimiter(telegramRPM, telegramSpacing, rdb)
	aiLimiter := ratelimit.NewAILimiter(aiRPM, rdb)

	chatClient := chatclient.NewFake()

	previewSvc := preview.NewService(designs, cfg.DataDir+"/library")
	libraryImporter := library.NewImporter(designs, channels, cfg.DataDir+"/library", cfg.DataDir+"/staging",
		func(ctx context.Context) (string, error) { return settingsSvc.GetString(ctx, "library_template_global") })
	discoverySvc := discovery.NewService(channels, discovered)
	ingestSvc := ingest.NewService(channels, designs)
	duplicatesSvc := duplicate.NewService(designs, duplicatesRepo)

	taggerClient := tagger.NewClient(cfg.AIAPIKey, cfg.AIAPIBase, cfg.AIModel)
	taggerSvc := tagger.NewService(designs, channels, previewSvc, aiLimiter, taggerClient, cfg.AIMaxTagsPerDesign)

	driveClient := driveClientFor(ctx, cfg, credentials, box)
	bulkfolderScanner := bulkfolder.NewScanner(configFor)
	clouddriveScanner := clouddrive.NewScanner(driveClient, clouddrive.NewFolderCache(), configFor)
	forumScanner := forum.NewScanner(credentials, box, 0)
	scannersByType := map[types.ImportSourceType]interfaces.Scanner{
		types.ImportSourceBulkFolder:  bulkfolderScanner,
		types.ImportSourceGoogleDrive: clouddriveScanner,
		types.ImportSourcePHPBB:       forumScanner,
	}

	syncSvc := sync.NewService(chatClient, channels, designs, ingestSvc, discoverySvc, queue, cfg.SyncPollInterval)

	cleanupSvc := cleanup.NewService(queue, imports, designs, cfg.DataDir+"/staging")

	cpuPool, err := worker.NewCPUPool(runtime.NumCPU())
	if err != nil {
		return fmt.Errorf("start cpu pool: %w", err)
	}
	defer cpuPool.Release()

	manager := worker.NewManager(queue, []worker.PoolConfig{
		{Worker: workers.NewDownloadDesignWorker(designs, channels, chatClient, queue, telegramLimiter, duplicatesSvc, cfg.DataDir+"/staging"), Count: 2, PollInterval: time.Second},
		{Worker: workers.NewDownloadTelegramImagesWorker(designs, channels, chatClient, previewSvc, cfg.DataDir+"/staging"), Count: 1, PollInterval: time.Second},
		{Worker: workers.NewDownloadImportRecordWorker(imports, designs, driveClient, queue, duplicatesSvc, cfg.DataDir+"/staging"), Count: 1, PollInterval: time.Second},
		{Worker: workers.NewExtractArchiveWorker(designs, queue, cpuPool, cfg.DataDir+"/staging"), Count: 2, PollInterval: time.Second},
		{Worker: workers.NewImportToLibraryWorker(designs, duplicatesSvc, libraryImporter), Count: 2, PollInterval: time.Second},
		{Worker: workers.NewGenerateRenderWorker(designs, previewSvc, cpuPool, cfg.DataDir+"/library", cfg.RendererPath), Count: 1, PollInterval: 2 * time.Second},
		{Worker: workers.NewAIAnalyzeWorker(designs, previewSvc, taggerSvc, cfg.AISelectBestPreview), Count: 1, PollInterval: 2 * time.Second},
		{Worker: workers.NewSyncImportSourceWorker(imports, scannersByType), Count: 1, PollInterval: time.Minute},
	}, worker.MaintenanceConfig{
		Interval:       cfg.MaintenanceInterval,
		StaleThreshold: cfg.StaleJobThreshold,
		ImportRepo:     imports,
	})
	manager.WithTracer(tracer)

	router := handler.NewRouter(handler.Deps{
		Config:     cfg,
		Channels:   channels,
		Designs:    designs,
		Queue:      queue,
		Settings:   settingsSvc,
		Discovered: discovered,
		Discovery:  discoverySvc,
	})
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	errCh := make(chan error, 3)
	go func() { errCh <- manager.Run(ctx) }()
	go func() { errCh <- syncSvc.Run(ctx) }()
	go func() { errCh <- cleanupSvc.Start(ctx, "*/10 * * * *") }()
	go func() {
		logger.Info(ctx, "http_server_starting", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			logger.Error(ctx, "service_exited", "error", err.Error())
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// encryptionBox builds the credential box from config.EncryptionKeyB64,
// generating an ephemeral key with a logged warning when unset so a local
// dev run still starts (spec §3 Credentials are at-rest encrypted, but
// nothing in this repo depends on keys surviving a dev restart).
func encryptionBox(cfg *config.Config) (*cryptoutil.Box, error) {
	key := make([]byte, cryptoutil.KeySize)
	if cfg.EncryptionKeyB64 != "" {
		decoded, err := decodeKey(cfg.EncryptionKeyB64)
		if err != nil {
			return nil, err
		}
		key = decoded
	} else {
		logger.Warn(context.Background(), "encryption_key_unset_using_ephemeral_key")
		if _, err := readRandom(key); err != nil {
			return nil, err
		}
	}
	return cryptoutil.NewBox(key)
}

// driveClientFor builds an HTTP DriveClient whose tokens come from a
// stored Google Credential via credentialTokenSource, refreshing through
// oauth2.Config's own TokenSource wrapper so the library (not this
// command) owns the refresh-token exchange.
func driveClientFor(ctx context.Context, cfg *config.Config, credentials interfaces.CredentialsRepository, box *cryptoutil.Box) clouddrive.DriveClient {
	oauthCfg := clouddrive.NewOAuthConfig(cfg.GoogleClientID, cfg.GoogleClientSecret, "")
	ts := &credentialTokenSource{ctx: ctx, cfg: oauthCfg, credentials: credentials, box: box}
	return clouddrive.NewHTTPDriveClient(ctx, oauth2.ReuseTokenSource(nil, ts))
}

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	api "client-update-agent/cmd/api"
	agentdelivery "client-update-agent/internal/agent/delivery"
	agentscheduler "client-update-agent/internal/agent/scheduler"
	agentusecase "client-update-agent/internal/agent/usecase"
	authdelivery "client-update-agent/internal/auth/delivery"
	authdomain "client-update-agent/internal/auth/domain"
	authrepo "client-update-agent/internal/auth/repository"
	authusecase "client-update-agent/internal/auth/usecase"
	clientdelivery "client-update-agent/internal/client/delivery"
	clientdomain "client-update-agent/internal/client/domain"
	clientrepo "client-update-agent/internal/client/repository"
	clientusecase "client-update-agent/internal/client/usecase"
	"client-update-agent/internal/notification"
	qbdelivery "client-update-agent/internal/quickbooks/delivery"
	qbdomain "client-update-agent/internal/quickbooks/domain"
	qbrepo "client-update-agent/internal/quickbooks/repository"
	qbusecase "client-update-agent/internal/quickbooks/usecase"
	snapshotdomain "client-update-agent/internal/snapshot/domain"
	snapshotrepo "client-update-agent/internal/snapshot/repository"
	updatedelivery "client-update-agent/internal/update/delivery"
	updatedomain "client-update-agent/internal/update/domain"
	updaterepo "client-update-agent/internal/update/repository"
	updateusecase "client-update-agent/internal/update/usecase"
	"client-update-agent/pkg/ai"
	"client-update-agent/pkg/config"
	"client-update-agent/pkg/database"
	"client-update-agent/pkg/fcm"
	"client-update-agent/pkg/gmail"
	"client-update-agent/pkg/logger"
	"client-update-agent/pkg/qbo"
	"client-update-agent/pkg/runlock"
	"client-update-agent/pkg/telemetry"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// the logger depends on config, so fall back to a default one
		zap.NewExample().Fatal("Failed to load config", zap.Error(err))
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	defer func() { _ = log.Sync() }()

	tracer, err := telemetry.Setup(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to set up tracing", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracer.Shutdown(shutdownCtx); err != nil {
			log.Warn("Failed to flush traces", zap.Error(err))
		}
	}()

	// Initialize database
	db, err := database.Open(cfg, log)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}

	// Auto-migrate database schemas
	if err := db.AutoMigrate(
		&authdomain.Tenant{},
		&authdomain.User{},
		&authdomain.RefreshToken{},
		&authdomain.DeviceToken{},
		&qbdomain.Connection{},
		&clientdomain.Client{},
		&snapshotdomain.ClientSnapshot{},
		&updatedomain.PendingUpdate{},
		&updatedomain.UpdateHistory{},
	); err != nil {
		log.Fatal("Failed to migrate database", zap.Error(err))
	}

	// Initialize repositories (dependency injection)
	userRepo := authrepo.NewUserRepository(db)
	deviceRepo := authrepo.NewDeviceTokenRepository(db)
	connRepo := qbrepo.NewConnectionRepository(db)
	clientRepo := clientrepo.NewClientRepository(db)
	snapshotRepo := snapshotrepo.NewSnapshotRepository(db)
	updateRepo := updaterepo.NewUpdateRepository(db)

	// Run lock: redis when configured, in-process otherwise
	var locker runlock.Locker = runlock.NewMemoryLocker()
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn("Redis unreachable, using in-process run lock", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		} else {
			locker = runlock.NewRedisLocker(rdb, "agent:")
			defer rdb.Close()
			log.Info("Using redis run lock", zap.String("addr", cfg.RedisAddr))
		}
	}

	// QuickBooks
	oauthCfg := qbo.OAuthConfig(cfg.QBClientID, cfg.QBClientSecret, cfg.QBRedirectURI, cfg.QBAuthURL, cfg.QBTokenURL)
	qbClient := qbo.NewClient(cfg.QBAPIBase(), cfg.QBRateLimitRPS, nil)
	connManager := qbusecase.NewConnectionManager(connRepo, oauthCfg, []byte(cfg.JWTSecret), api.TenantLookup(userRepo), log)
	fetcher := qbusecase.NewFetcher(connManager, qbClient)

	// AI
	runtimeCfg := api.NewRuntimeConfig(cfg.OllamaBaseURL, cfg.OllamaModel)
	generator, err := ai.NewGenerator(ai.Config{
		Provider:         ai.ProviderType(cfg.AIProvider),
		OpenAIAPIKey:     cfg.OpenAIAPIKey,
		OpenAIModel:      cfg.OpenAIModel,
		OpenAIBaseURL:    cfg.OpenAIBaseURL,
		GeminiAPIKey:     cfg.GeminiAPIKey,
		GetOllamaBaseURL: runtimeCfg.OllamaBaseURL,
		GetOllamaModel:   runtimeCfg.OllamaModel,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize AI provider", zap.Error(err))
	}
	log.Info("AI provider initialized", zap.String("provider", generator.Name()))

	// Mail delivery (optional)
	var mailer updateusecase.Mailer
	if cfg.MailerEnabled() {
		gm, err := gmail.NewMailer(ctx, cfg.GmailClientID, cfg.GmailClientSecret, cfg.GmailRefreshToken, cfg.GmailSender, "", log)
		if err != nil {
			log.Warn("Failed to initialize Gmail mailer, sends will only be recorded", zap.Error(err))
		} else {
			mailer = api.NewMailerAdapter(gm)
			log.Info("Gmail mailer initialized", zap.String("sender", cfg.GmailSender))
		}
	} else {
		log.Info("Gmail not configured, sends will only be recorded")
	}

	// Domain events (optional)
	var publisher *notification.PubSubPublisher
	if cfg.GoogleProjectID != "" && cfg.PubSubTopic != "" {
		publisher, err = notification.NewPubSubPublisher(ctx, cfg.GoogleProjectID, cfg.PubSubTopic, cfg.FirebaseCredentials, log)
		if err != nil {
			log.Warn("Failed to initialize Pub/Sub publisher, events disabled", zap.Error(err))
			publisher = nil
		} else {
			defer publisher.Close()
		}
	}

	// Initialize use cases (dependency injection)
	authUc := authusecase.NewAuthUsecase(userRepo, deviceRepo, cfg, log)
	clientUc := clientusecase.NewClientUsecase(clientRepo, snapshotRepo, fetcher, log)

	var updatePublisher updateusecase.EventPublisher
	if publisher != nil {
		updatePublisher = publisher
	}
	updateUc := updateusecase.NewUpdateUsecase(updateRepo, clientRepo, mailer, updatePublisher, log)

	composer := agentusecase.NewDraftComposer(generator, cfg.AITimeout, cfg.AIMaxRetries, log)
	agentUc := agentusecase.NewAgentUsecase(db, connManager, clientUc, fetcher, clientRepo, snapshotRepo, updateRepo, composer, locker, log)
	if publisher != nil {
		agentUc.SetPublisher(publisher)
	}

	// Reviewer push (optional)
	if cfg.FirebaseCredentials != "" {
		fcmClient, err := fcm.NewClient(ctx, cfg.FirebaseCredentials, log)
		if err != nil {
			log.Warn("Failed to initialize FCM client, push notifications disabled", zap.Error(err))
		} else {
			agentUc.SetNotifier(notification.NewReviewerNotifier(deviceRepo, fcmClient, cfg.FrontendURL, log))
		}
	}

	// Scheduled runs (optional)
	if cfg.SchedulerEnabled {
		sched := agentscheduler.NewRunScheduler(agentUc, api.NewActiveTenants(connManager, userRepo), cfg.SchedulerInterval, log)
		sched.Start()
		defer sched.Stop()
	}

	ollamaPinger := ai.NewOllamaServiceWithGetters(runtimeCfg.OllamaBaseURL, runtimeCfg.OllamaModel)

	// Initialize HTTP server
	server := api.NewServer(cfg, authUc, api.Handlers{
		Auth:       authdelivery.NewAuthHandler(authUc, cfg, log),
		Clients:    clientdelivery.NewClientHandler(clientUc, log),
		Updates:    updatedelivery.NewUpdateHandler(updateUc, log),
		QuickBooks: qbdelivery.NewQuickBooksHandler(connManager, cfg.FrontendURL, log),
		Agent:      agentdelivery.NewAgentHandler(agentUc, updateUc, log),
		Settings:   api.NewSettingsHandler(runtimeCfg, ollamaPinger, generator.Name()),
	}, tracer.Enabled(), log)

	if err := server.Run(ctx); err != nil {
		log.Error("Server stopped with error", zap.Error(err))
	}
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"atamind/internal/agents"
	"atamind/internal/analytics"
	"atamind/internal/config"
	"atamind/internal/content"
	"atamind/internal/database"
	"atamind/internal/handlers"
	"atamind/internal/locks"
	"atamind/internal/logger"
	"atamind/internal/media"
	"atamind/internal/orchestrator"
	"atamind/internal/repository"
	"atamind/internal/security"
	"atamind/internal/service"
)

// writeMargin is added to the pipeline timeout so a slow generation can still be answered
const writeMargin = 30 * time.Second

func main() {
	// Load configuration
	cfg := config.Load()

	if err := logger.Init(cfg.LogLevel, cfg.LogFormat); err != nil {
		panic(err)
	}
	defer logger.Sync()
	log := logger.Log

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database with config (supports sqlite, postgres, mysql)
	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		log.Fatal("failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	log.Info("database connection established", zap.String("type", cfg.DatabaseType))

	if err := db.RunMigrations(ctx, cfg.MigrationsPath); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	if err := db.SeedBlockedTerms(ctx, database.BlockedTermSources); err != nil {
		log.Warn("failed to seed blocked terms", zap.Error(err))
	}
	blockedTerms, err := db.LoadBlockedTerms(ctx)
	if err != nil || len(blockedTerms) == 0 {
		log.Warn("using built-in blocked terms", zap.Error(err))
		blockedTerms = database.BuiltinBlockedTerms()
	}

	// Content generation: Gemini for text, images and audio, OpenAI for narration when configured
	gemini, err := content.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiImageModel, log)
	if err != nil {
		log.Fatal("failed to initialize Gemini client", zap.Error(err))
	}
	composite := &content.Composite{Text: gemini}
	if cfg.OpenAIAPIKey != "" {
		composite.Speech = content.NewOpenAISpeech(cfg.OpenAIAPIKey, log)
	}
	contentService := content.NewResilient(composite, content.ResilienceConfig{
		TextTimeout:  cfg.AITimeout,
		MediaTimeout: cfg.MediaTimeout,
	}, log.Named("content"))

	store, err := media.NewStore(cfg.UploadsPath)
	if err != nil {
		log.Fatal("failed to create uploads directory", zap.Error(err))
	}
	mediaService := media.NewService(contentService, media.NewGoogleNarrator(), store, log)

	locker, closeLocker := newLocker(ctx, cfg.RedisURL, log)
	defer closeLocker()

	// Initialize repositories
	guardianRepo := repository.NewGuardianRepository(db)
	childRepo := repository.NewChildRepository(db)
	storyRepo := repository.NewStoryRepository(db)
	listeningRepo := repository.NewListeningRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	ratingRepo := repository.NewRatingRepository(db)
	reportRepo := repository.NewReportRepository(db)
	voiceRepo := repository.NewVoiceRepository(db)

	// Story pipeline
	messageAnalyzer := agents.NewMessageAnalyzer(contentService, log)
	pipeline := orchestrator.New(
		agents.NewProfiler(contentService, log),
		messageAnalyzer,
		agents.NewComposer(contentService, log),
		agents.NewValidator(contentService, blockedTerms, log),
		mediaService,
		orchestrator.Config{
			Policy: orchestrator.Policy{
				FallbackProfile:  cfg.FallbackProfile,
				FallbackMessage:  cfg.FallbackMessage,
				FallbackCompose:  cfg.FallbackCompose,
				FallbackValidate: cfg.FallbackValidate,
			},
			MediaTimeout:    cfg.MediaTimeout,
			PipelineTimeout: cfg.PipelineTimeout,
		},
		log,
	)

	// Initialize services
	tokens := security.TokenService{Secret: []byte(cfg.JWTSecret), Issuer: cfg.JWTIssuer, TTL: cfg.TokenTTL}
	authService := service.NewAuthService(guardianRepo, tokens)
	childService := service.NewChildService(childRepo)
	storyService := service.NewStoryService(childService, storyRepo, listeningRepo, pipeline, mediaService, log)
	voiceService := service.NewVoiceService(childService, voiceRepo, messageAnalyzer, mediaService, log)
	analyticsService := service.NewAnalyticsService(
		childService, sessionRepo, ratingRepo, reportRepo,
		analytics.NewAdvisor(contentService, log),
		locker, log,
	)

	emailService, err := service.NewEmailService(ctx, cfg.AWSRegion, cfg.SESFromEmail, cfg.SESFromName, cfg.AppBaseURL, log)
	if err != nil {
		log.Warn("email disabled", zap.Error(err))
		emailService = nil
	}
	delivery := service.NewReportDelivery(guardianRepo, emailService, log)

	oauthProviders := map[string]handlers.OAuthProvider{
		"google": {
			Name:  "google",
			Label: "Google",
			Config: &oauth2.Config{
				ClientID:     cfg.GoogleClientID,
				ClientSecret: cfg.GoogleClientSecret,
				Endpoint:     google.Endpoint,
				Scopes:       []string{"openid", "email", "profile"},
			},
			UserInfoURL: "https://www.googleapis.com/oauth2/v2/userinfo",
		},
	}

	// Setup routes
	mux := http.NewServeMux()
	handlers.Routes{
		Middleware:      handlers.NewMiddleware(authService),
		Auth:            handlers.NewAuthHandler(authService, emailService, oauthProviders, cfg.OAuthRedirectBaseURL, security.NewStateSigner(cfg.JWTSecret)),
		Children:        handlers.NewChildHandler(childService),
		Stories:         handlers.NewStoryHandler(storyService),
		Voice:           handlers.NewVoiceHandler(voiceService, cfg.UploadMaxSize),
		Analytics:       handlers.NewAnalyticsHandler(analyticsService, childService, delivery),
		LoginLimiter:    security.NewRateLimiter(10, time.Minute),
		GenerateLimiter: security.NewRateLimiter(5, time.Minute),
		UploadsDir:      store.Dir(),
	}.Register(mux)

	corsHandler := cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	})
	handler := corsHandler(handlers.Recover(handlers.Logging(mux)))

	// Start server
	addr := ":" + cfg.ServerPort
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.PipelineTimeout + writeMargin,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("server starting", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
		os.Exit(1)
	}
	log.Info("server exited")
}

// newLocker uses Redis when a URL is configured so several instances share per-child locks
func newLocker(ctx context.Context, redisURL string, log *zap.Logger) (locks.Locker, func()) {
	if redisURL == "" {
		return locks.NewLocalLocker(), func() {}
	}
	rl, err := locks.NewRedisLocker(ctx, redisURL)
	if err != nil {
		log.Warn("redis unavailable, using in-process locks", zap.Error(err))
		return locks.NewLocalLocker(), func() {}
	}
	log.Info("using redis locks")
	return rl, func() { _ = rl.Close() }
}

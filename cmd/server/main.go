// Package main is the entry point for the Level App funnel server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/levelapp/funnel/internal/cache"
	"github.com/levelapp/funnel/internal/chat"
	"github.com/levelapp/funnel/internal/clock"
	"github.com/levelapp/funnel/internal/config"
	"github.com/levelapp/funnel/internal/database"
	"github.com/levelapp/funnel/internal/domain"
	"github.com/levelapp/funnel/internal/handler"
	"github.com/levelapp/funnel/internal/knowledge"
	"github.com/levelapp/funnel/internal/llm"
	"github.com/levelapp/funnel/internal/logging"
	"github.com/levelapp/funnel/internal/metrics"
	"github.com/levelapp/funnel/internal/middleware"
	"github.com/levelapp/funnel/internal/ratelimit"
	"github.com/levelapp/funnel/internal/repository"
	"github.com/levelapp/funnel/internal/repository/supabase"
	"github.com/levelapp/funnel/internal/service"
	"github.com/levelapp/funnel/internal/shutdown"
)

// version is set at build time with -ldflags.
var version = "dev"

// sessionSweepInterval is how often expired admin sessions are removed.
const sessionSweepInterval = time.Hour

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	levels, err := initLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger := levels.Zap()
	defer func() { _ = logger.Sync() }()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	logger.Info("starting funnel server",
		zap.String("version", version),
		zap.String("addr", cfg.Server.Addr()),
		zap.String("env", cfg.Server.Environment),
		zap.String("storage", cfg.Storage.Driver),
	)

	ctx := context.Background()
	m := metrics.NewMetrics()
	clk := clock.New()

	// Initialize storage
	st, err := openStores(ctx, cfg, m, logger)
	if err != nil {
		logger.Fatal("failed to open storage", zap.Error(err))
	}
	if !cfg.StorageConfigured() {
		logger.Warn("no storage configured, serving built-in knowledge and rejecting writes")
	}

	// Initialize the compiled prompt cache
	compiler := knowledge.NewCompiler(st.knowledge, m, logger)
	var (
		prompts     knowledge.PromptBuilder = compiler
		invalidator service.PromptInvalidator
		cacheHealth handler.HealthChecker
		closeCache  = func() error { return nil }
	)
	if cfg.Redis.Enabled() {
		client, err := cache.NewClient(ctx, cache.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			logger.Fatal("failed to connect to redis", zap.Error(err))
		}
		promptCache := cache.NewPromptCache(client, "", cfg.Redis.PromptCacheTTL)
		cached := knowledge.NewCachedCompiler(compiler, promptCache, m, logger)
		prompts = cached
		invalidator = cached
		cacheHealth = promptCache
		closeCache = client.Close
		logger.Info("prompt cache enabled", zap.String("addr", cfg.Redis.Addr))
	}

	// Initialize LLM client and chat relay
	llmClient := llm.NewClient(llm.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     cfg.LLM.Timeout,
	}, m, logger)
	relay := chat.NewRelay(llmClient, prompts, chat.Config{MaxHistory: cfg.Chat.MaxHistory}, m, logger)

	// Initialize services
	authService := service.NewAuthService(st.users, st.sessions, cfg.Auth.SessionDuration, clk, m, logger)
	leadService := service.NewLeadService(st.leads, m, logger)
	quoteService := service.NewQuoteService(st.quotes, m, logger)
	knowledgeService := service.NewKnowledgeService(st.knowledge, st.tx, compiler, invalidator, m, logger)

	if cfg.StorageConfigured() {
		if err := authService.EnsureAdmin(ctx, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword); err != nil {
			logger.Fatal("failed to bootstrap admin user", zap.Error(err))
		}
	}

	// Initialize rate limiters
	rateLimiter := middleware.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window, clk, m, logger)
	loginRateLimiter := middleware.NewLoginRateLimiter(clk, m, logger)
	chatLimiterConfig := ratelimit.DefaultChatLimiterConfig()
	chatLimiterConfig.Rate = cfg.Chat.RateLimit
	chatLimiterConfig.Burst = cfg.Chat.Burst
	chatLimiterConfig.MaxConcurrent = cfg.Chat.MaxConcurrent
	chatLimiter := ratelimit.NewChatLimiter(chatLimiterConfig, clk, logger)
	logger.Info("initialized chat rate limiter",
		zap.Float64("rate", chatLimiterConfig.Rate),
		zap.Int("burst", chatLimiterConfig.Burst),
		zap.Int("max_concurrent", chatLimiterConfig.MaxConcurrent),
	)

	// Initialize shutdown coordinator
	shutdownCoord := shutdown.NewCoordinator(&shutdown.Config{
		Timeout: cfg.Server.ShutdownTimeout,
	}, logger)
	readiness := shutdown.NewReadinessProbe(shutdownCoord)

	// Initialize handlers
	router := handler.NewRouter(handler.RouterConfig{
		Health: handler.NewHealthHandler(handler.HealthHandlerConfig{
			Store:     st.health,
			Cache:     cacheHealth,
			LLM:       llmClient,
			Readiness: readiness,
			Version:   version,
			Logger:    logger,
		}),
		Auth: handler.NewAuthHandler(handler.AuthHandlerConfig{
			AuthService:      authService,
			LoginRateLimiter: loginRateLimiter,
			SecureCookie:     cfg.Auth.SecureCookie,
			Logger:           logger,
		}),
		Funnel:    handler.NewFunnelHandler(leadService, logger),
		Chat:      handler.NewChatHandler(relay, logger),
		Quotes:    handler.NewQuoteHandler(quoteService, logger),
		Knowledge: handler.NewKnowledgeHandler(knowledgeService, logger),
		LogLevel:  handler.NewLogLevelHandler(levels, logger),

		Metrics:     m,
		RateLimiter: rateLimiter,
		ChatLimiter: chatLimiter,
		Logger:      logger,
	})

	// Start background workers
	workerCtx, stopWorkers := context.WithCancel(ctx)
	workersDone := startWorkers(workerCtx, []func(context.Context){
		rateLimiter.Run,
		loginRateLimiter.Run,
		chatLimiter.Run,
		func(ctx context.Context) {
			if cfg.StorageConfigured() {
				authService.RunSessionSweeper(ctx, sessionSweepInterval)
			}
		},
	})

	// Create server. No WriteTimeout: chat answers stream for as long as the
	// provider keeps sending.
	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	// Drain: let in-flight requests and chat streams complete
	shutdownCoord.RegisterFunc(shutdown.PhaseDrain, "http-server", func(ctx context.Context) error {
		return server.Shutdown(ctx)
	})

	// Shutdown: stop background workers
	shutdownCoord.RegisterFunc(shutdown.PhaseShutdown, "workers", func(ctx context.Context) error {
		stopWorkers()
		select {
		case <-workersDone:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	// Cleanup: close connections
	shutdownCoord.RegisterFunc(shutdown.PhaseCleanup, "storage", func(ctx context.Context) error {
		st.close()
		return nil
	})
	shutdownCoord.RegisterFunc(shutdown.PhaseCleanup, "prompt-cache", func(ctx context.Context) error {
		return closeCache()
	})
	shutdownCoord.RegisterFunc(shutdown.PhaseCleanup, "llm-client", func(ctx context.Context) error {
		llmClient.CloseIdleConnections()
		return nil
	})

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("received shutdown signal")

	// Execute graceful shutdown
	if err := shutdownCoord.Shutdown(ctx); err != nil {
		logger.Error("shutdown completed with errors", zap.Error(err))
	}
}

// initLogger builds the process logger from the log and server sections.
func initLogger(cfg *config.Config) (*logging.Logger, error) {
	return logging.New(&logging.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		Environment: cfg.Server.Environment,
	})
}

// stores holds the repositories of the selected storage driver. Every field
// is nil when no driver is configured.
type stores struct {
	knowledge domain.KnowledgeRepository
	leads     domain.LeadRepository
	quotes    domain.QuoteRepository
	users     domain.AdminUserRepository
	sessions  domain.SessionRepository
	tx        service.Transactor
	health    handler.HealthChecker
	close     func()
}

// openStores connects the storage driver named by cfg.Storage.Driver.
func openStores(ctx context.Context, cfg *config.Config, m *metrics.Metrics, logger *zap.Logger) (*stores, error) {
	switch cfg.Storage.Driver {
	case config.StorageDriverPostgres:
		db, err := database.New(ctx, &cfg.Database, m, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if cfg.Database.RunMigrations {
			if err := db.Migrate(ctx); err != nil {
				db.Close()
				return nil, fmt.Errorf("failed to run migrations: %w", err)
			}
		}
		return &stores{
			knowledge: repository.NewKnowledgeRepository(db.TxManager),
			leads:     repository.NewLeadRepository(db.TxManager),
			quotes:    repository.NewQuoteRepository(db.TxManager),
			users:     repository.NewAdminUserRepository(db.TxManager),
			sessions:  repository.NewSessionRepository(db.TxManager),
			tx:        db.TxManager,
			health:    db,
			close:     db.Close,
		}, nil

	case config.StorageDriverSupabase:
		client, err := supabase.New(supabase.Config{
			URL:    cfg.Supabase.URL,
			APIKey: cfg.Supabase.APIKey,
		})
		if err != nil {
			return nil, err
		}
		logger.Info("supabase client created", zap.String("url", cfg.Supabase.URL))
		return &stores{
			knowledge: supabase.NewKnowledgeRepository(client),
			leads:     supabase.NewLeadRepository(client),
			quotes:    supabase.NewQuoteRepository(client),
			users:     supabase.NewAdminUserRepository(client),
			sessions:  supabase.NewSessionRepository(client),
			tx:        client,
			health:    client,
			close:     func() { _ = client.Close() },
		}, nil

	case config.StorageDriverNone:
		return &stores{close: func() {}}, nil

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

// startWorkers runs every worker in its own goroutine. The returned channel
// is closed once all of them have returned.
func startWorkers(ctx context.Context, workers []func(context.Context)) <-chan struct{} {
	done := make(chan struct{})
	finished := make(chan struct{}, len(workers))
	for _, run := range workers {
		go func(run func(context.Context)) {
			defer func() { finished <- struct{}{} }()
			run(ctx)
		}(run)
	}
	go func() {
		for range workers {
			<-finished
		}
		close(done)
	}()
	return done
}

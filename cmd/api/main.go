package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/helpline-labs/escalation-gateway/internal/api/http"
	"github.com/helpline-labs/escalation-gateway/internal/api/http/handlers"
	"github.com/helpline-labs/escalation-gateway/internal/auth"
	"github.com/helpline-labs/escalation-gateway/internal/config"
	"github.com/helpline-labs/escalation-gateway/internal/dedup"
	"github.com/helpline-labs/escalation-gateway/internal/domain"
	"github.com/helpline-labs/escalation-gateway/internal/events"
	"github.com/helpline-labs/escalation-gateway/internal/helpdesk"
	"github.com/helpline-labs/escalation-gateway/internal/idempotency"
	"github.com/helpline-labs/escalation-gateway/internal/ingest"
	"github.com/helpline-labs/escalation-gateway/internal/observability"
	"github.com/helpline-labs/escalation-gateway/internal/persistence"
	"github.com/helpline-labs/escalation-gateway/internal/ratelimit"
	"github.com/helpline-labs/escalation-gateway/internal/repository"
	"github.com/helpline-labs/escalation-gateway/internal/service"
	"github.com/helpline-labs/escalation-gateway/internal/worker"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()

	dispatcher := events.NewInMemoryDispatcher(logger)
	notifications := service.NewNotificationService(dispatcher, redis, cfg.Redis.Channel, logger)
	worker.StartNotificationWorker(notifications, logger)

	var audit repository.EscalationAuditRepository
	if pg.Enabled() {
		audit = repository.NewEscalationAuditRepository(pg.PoolHandle())
	}

	hd := newHelpdesk(cfg.Helpdesk, logger)

	authenticator := auth.NewAuthenticator(auth.Options{
		Modes:        authModes(cfg.Auth.Modes),
		SharedSecret: cfg.Auth.SharedSecret,
		HMACSecret:   cfg.Auth.HMACSecret,
		Tokens:       tokenManager(cfg.Auth),
		ReplayWindow: cfg.Auth.ReplayWindow(),
	})
	limiter := ratelimit.NewLimiter(cfg.RateLimit.Max, cfg.RateLimit.Window(), nil)
	idem := idempotency.NewCache[ingest.Response](cfg.Idempotency.TTL(), nil)
	tickets := dedup.NewStore(cfg.Dedup.TicketTTL(), cfg.Dedup.Window(), nil)

	orchestrator := ingest.NewOrchestrator(ingest.Dependencies{
		Authenticator:      authenticator,
		Limiter:            limiter,
		Idempotency:        idem,
		Deduplicator:       dedup.NewDeduplicator(tickets, cfg.Helpdesk.Timeout(), logger),
		Helpdesk:           hd,
		Dispatcher:         dispatcher,
		Audit:              audit,
		Metrics:            metrics,
		Logger:             logger,
		AppendNoteOnDupHit: cfg.Dedup.AppendNoteOnDupHit,
		NoteAuthor:         cfg.App.Name,
	})

	sweeper := worker.NewSweeper(cfg.Worker.SweepInterval(), metrics, logger)
	sweeper.Register("idempotency", idem)
	sweeper.Register("replay", authenticator.Replay())
	sweeper.Register("rate_limit", limiter)
	sweeper.Register("tickets", tickets)
	sweeper.Start(ctx)
	defer sweeper.Stop()

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ErrorHandler: httptransport.ErrorHandler(logger),
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:      handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, hd, pg, redis),
		Escalations: handlers.NewEscalationHandler(orchestrator),
		Tools:       handlers.NewToolHandler(orchestrator),
		Metrics:     metrics,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Warn("fiber shutdown", zap.Error(err))
	}
}

func newHelpdesk(cfg config.HelpdeskConfig, logger *zap.Logger) helpdesk.Client {
	if cfg.BaseURL == "" {
		logger.Warn("HELPDESK_BASE_URL not provided; using in-memory helpdesk")
		return helpdesk.NewMemoryClient("")
	}
	return helpdesk.NewHTTPClient(helpdesk.HTTPOptions{
		BaseURL:       cfg.BaseURL,
		APIKey:        cfg.APIKey,
		Timeout:       cfg.Timeout(),
		RatePerSecond: cfg.RatePerSecond,
		Burst:         cfg.Burst,
	}, logger)
}

func authModes(names []string) []domain.AuthMode {
	modes := make([]domain.AuthMode, 0, len(names))
	for _, name := range names {
		modes = append(modes, domain.AuthMode(name))
	}
	return modes
}

func tokenManager(cfg config.AuthConfig) *auth.TokenManager {
	if cfg.JWTSecret == "" {
		return nil
	}
	return auth.NewTokenManager(cfg.JWTSecret)
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}

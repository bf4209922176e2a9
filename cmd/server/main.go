package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/attendfi/attendfi-api/api/swagger"
	"github.com/attendfi/attendfi-api/internal/handler"
	"github.com/attendfi/attendfi-api/internal/middleware"
	"github.com/attendfi/attendfi-api/internal/models"
	"github.com/attendfi/attendfi-api/internal/notifier"
	"github.com/attendfi/attendfi-api/internal/repository"
	"github.com/attendfi/attendfi-api/internal/service"
	"github.com/attendfi/attendfi-api/internal/token"
	"github.com/attendfi/attendfi-api/pkg/cache"
	"github.com/attendfi/attendfi-api/pkg/clock"
	"github.com/attendfi/attendfi-api/pkg/config"
	"github.com/attendfi/attendfi-api/pkg/database"
	"github.com/attendfi/attendfi-api/pkg/logger"
	corsmiddleware "github.com/attendfi/attendfi-api/pkg/middleware/cors"
	reqidmiddleware "github.com/attendfi/attendfi-api/pkg/middleware/requestid"
	"github.com/attendfi/attendfi-api/pkg/storage"
)

// @title AttendFi API
// @version 1.0.0
// @description Commitment-based event participation settlement engine
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, notifications stay websocket-only", zap.Error(err))
		redisClient = nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := service.NewMetricsService()

	hub := notifier.NewHub(logr)
	emitter := notifier.New(redisClient, hub, cfg.Notifications, logr)
	emitter.Start(ctx)
	defer emitter.Stop()

	ledger := token.NewClient(cfg.TokenLedger, cfg.TokenLedger.CustodyAddress)

	settlementRepo := repository.NewSettlementRepository(db).WithObserver(metrics.ObserveDBQuery)
	eventRepo := repository.NewEventRepository(db)
	participantRepo := repository.NewParticipantRepository(db)
	organizerRepo := repository.NewOrganizerRepository(db)
	protocolRepo := repository.NewProtocolRepository(db)
	accountRepo := repository.NewAccountRepository(db)

	validate := validator.New()
	clk := clock.System{}

	observed := observedEmitter{emitter: emitter, metrics: metrics}

	authService := service.NewAuthService(accountRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	eventService := service.NewEventService(settlementRepo, eventRepo, protocolRepo, observed, validate, logr, clk)
	enrollmentService := service.NewEnrollmentService(settlementRepo, participantRepo, ledger, cfg.TokenLedger.CustodyAddress, observed, logr, clk)
	sessionService := service.NewSessionService(settlementRepo, ledger, observed, logr, clk)
	attendanceService := service.NewAttendanceService(settlementRepo, ledger, observed, logr, clk)
	claimService := service.NewClaimService(settlementRepo, organizerRepo, ledger, observed, logr, clk)
	statementService := service.NewStatementService(eventRepo, participantRepo, organizerRepo, logr, clk)
	if cfg.Statements.Enabled {
		archive, err := storage.NewLocalStorage(cfg.Statements.Dir)
		if err != nil {
			logr.Fatal("failed to prepare statement storage", zap.Error(err))
		}
		signer := storage.NewSignedURLSigner(cfg.JWT.Secret, cfg.Statements.LinkTTL)
		statementService.WithArchive(archive, signer)
		go statementJanitor(ctx, archive, cfg.Statements.Retention, logr)
	}

	handlers := handler.Handlers{
		Auth:             handler.NewAuthHandler(authService),
		Event:            handler.NewEventHandler(eventService),
		Enrollment:       handler.NewEnrollmentHandler(enrollmentService),
		Session:          handler.NewSessionHandler(sessionService, attendanceService),
		Claim:            handler.NewClaimHandler(claimService),
		Protocol:         handler.NewProtocolHandler(eventService, metrics),
		Statement:        handler.NewStatementHandler(statementService),
		Notification:     handler.NewNotificationHandler(hub, logr),
		Metrics:          handler.NewMetricsHandler(metrics, db, redisClient),
		AuthService:      authService,
		EnableStatements: cfg.Statements.Enabled,
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	handler.RegisterRoutes(r, cfg.APIPrefix, handlers)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

// statementJanitor drops archived statements past their retention window.
func statementJanitor(ctx context.Context, archive *storage.LocalStorage, retention time.Duration, logr *zap.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := archive.CleanupOlderThan(retention)
			if err != nil {
				logr.Warn("statement cleanup failed", zap.Error(err))
				continue
			}
			if len(deleted) > 0 {
				logr.Info("statements expired", zap.Int("count", len(deleted)))
			}
		}
	}
}

// observedEmitter forwards notifications and counts them as settlement
// operations.
type observedEmitter struct {
	emitter *notifier.Notifier
	metrics *service.MetricsService
}

func (e observedEmitter) Emit(n models.Notification) {
	e.metrics.ObserveSettlement(string(n.Type), n.Amount, nil)
	e.emitter.Emit(n)
}

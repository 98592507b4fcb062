package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/wgdashboard/wg_dashboard/internal/config"
	"github.com/wgdashboard/wg_dashboard/internal/db"
	"github.com/wgdashboard/wg_dashboard/internal/events"
	"github.com/wgdashboard/wg_dashboard/internal/hash"
	"github.com/wgdashboard/wg_dashboard/internal/httpserver"
	"github.com/wgdashboard/wg_dashboard/internal/logging"
	authmw "github.com/wgdashboard/wg_dashboard/internal/middleware/auth"
	loggingmw "github.com/wgdashboard/wg_dashboard/internal/middleware/logging"
	"github.com/wgdashboard/wg_dashboard/internal/refresh"
	"github.com/wgdashboard/wg_dashboard/internal/repo"
	"github.com/wgdashboard/wg_dashboard/internal/service"
	"github.com/wgdashboard/wg_dashboard/internal/tokens"
)

func main() {
	cfg := config.Load(config.EnvDefault("ENV_FILE", ".env"))
	cfg.Validate()

	logger := logging.New(cfg.LogLevel).With("service", cfg.ServiceName, "env", cfg.Environment)
	slog.SetDefault(logger)
	baseCtx := logging.IntoContext(context.Background(), logger)

	initCtx, cancel := context.WithTimeout(baseCtx, 10*time.Second)
	gdb, err := db.Open(initCtx, cfg.DBDriver, cfg.DatabaseURL)
	cancel()
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		log.Fatalf("db migrate error: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		log.Fatalf("db() error: %v", err)
	}

	var pub events.Publisher = events.Noop{}
	if len(cfg.KafkaBrokers) > 0 {
		pub = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		logger.Info("kafka_events_enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	gormRepo := repo.New(gdb)
	codec := tokens.NewCodec(tokens.CodecConfig{
		Key:                   cfg.JWTSecret,
		Issuer:                cfg.JWTIssuer,
		Audience:              cfg.JWTAudience,
		TTL:                   cfg.AccessTokenTTL,
		EnforceIssuerAudience: cfg.EnforceIssuerAudience,
	})

	boot, err := service.ResolveBootstrap(baseCtx, gormRepo, cfg.Admin, cfg.Production())
	if err != nil {
		log.Fatalf("bootstrap settings: %v", err)
	}
	sessions := service.NewSessionService(
		gormRepo,
		hash.New(cfg.BcryptCost, cfg.HashWorkers),
		codec,
		refresh.NewStore(gormRepo, cfg.RefreshTokenTTL),
		pub,
		boot,
	)
	if err := sessions.Bootstrap(baseCtx); err != nil {
		log.Fatalf("admin bootstrap: %v", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID(), loggingmw.RequestLogger(logger))

	httpserver.Register(e, &httpserver.Deps{
		AuthHandler:  &httpserver.AuthHTTP{Svc: sessions},
		UsersHandler: &httpserver.UsersHTTP{Svc: &service.UserService{Repo: gormRepo, Events: pub}},
		PeersHandler: &httpserver.PeersHTTP{Svc: &service.PeerService{Repo: gormRepo, Events: pub}},
		Bearer:       authmw.NewBearer(codec),
		DB:           sqlDB,
	})

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.ServerPort),
		Handler:           e,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 3 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		logger.Info("http_server_started", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting_down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server_shutdown_error", "error", err)
	}
	if err := pub.Close(); err != nil {
		logger.Error("kafka_close_error", "error", err)
	}
	if err := db.Close(gdb); err != nil {
		logger.Error("db_close_error", "error", err)
	}

	logger.Info("shutdown_complete")
}

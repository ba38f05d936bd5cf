// api/main.go
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"cloudboard/api/config"
	"cloudboard/api/database"
	"cloudboard/api/handlers"
	"cloudboard/api/logger"
	"cloudboard/api/middleware"
	"cloudboard/api/sessions"
	"cloudboard/api/static"
	"cloudboard/api/store"
	"cloudboard/api/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zapLogger, err := logger.New(cfg.Environment)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = zapLogger.Sync() }()

	if err := run(cfg, zapLogger); err != nil {
		zapLogger.Fatal("Server exited with error", zap.Error(err))
	}
	zapLogger.Info("Server exiting")
}

func run(cfg *config.Config, zapLogger *zap.Logger) error {
	if cfg.GinMode == gin.ReleaseMode || cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- PostgreSQL: users, domains, credentials, sessions ---
	dbClient, err := database.NewPostgresDB(ctx, cfg, zapLogger)
	if err != nil {
		return err
	}
	defer dbClient.Close()

	// --- ClickHouse: raw events ---
	chClient, err := database.NewClickHouseDB(ctx, cfg, zapLogger)
	if err != nil {
		return err
	}
	defer chClient.Close()

	if err := database.MigratePostgres(ctx, dbClient.DB); err != nil {
		return err
	}
	if err := database.MigrateClickHouse(ctx, chClient.Conn); err != nil {
		return err
	}

	// --- Stores ---
	userStore := store.NewUserStore(dbClient.DB, zapLogger)
	domainStore := store.NewDomainStore(dbClient.DB, zapLogger)
	credentialStore := store.NewCredentialStore(dbClient.DB, zapLogger)
	sessionStore := store.NewSessionStore(dbClient.DB, zapLogger)
	eventStore := store.NewEventStore(chClient, zapLogger)

	// --- Session reconstruction ---
	var geo sessions.GeoLocator
	if cfg.GeoIPDBPath != "" {
		locator, err := sessions.OpenGeoIP(cfg.GeoIPDBPath)
		if err != nil {
			zapLogger.Warn("GeoIP database unavailable, sessions will have no country", zap.Error(err))
		} else {
			defer locator.Close()
			geo = locator
		}
	}
	builder := sessions.NewBuilder(sessions.UAParser{}, geo)
	reconstructor := sessions.NewReconstructor(domainStore, eventStore, sessionStore, builder, zapLogger)

	tokens := utils.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.AccessTokenTTL).WithDomainTTL(cfg.DomainTokenTTL)
	auth := middleware.NewAuthenticator(tokens, credentialStore, domainStore, zapLogger)

	r := newRouter(cfg, zapLogger, auth, routes{
		auth: handlers.NewAuthHandlers(userStore, domainStore, credentialStore, tokens, handlers.AuthConfig{
			RefreshTTL:    cfg.RefreshTokenTTL,
			SecureCookies: cfg.SecureCookies,
		}, zapLogger),
		domains:   handlers.NewDomainHandlers(domainStore, zapLogger),
		users:     handlers.NewUserHandlers(userStore, zapLogger),
		events:    handlers.NewEventHandlers(eventStore, domainStore, cfg.QueryTimeout, zapLogger),
		analytics: handlers.NewAnalyticsHandlers(reconstructor, domainStore, cfg.ReconstructTimeout, zapLogger),
		system: handlers.NewSystemHandlers(cfg.Version, static.TrackerJS, map[string]handlers.Pinger{
			"postgres":   dbClient,
			"clickhouse": chClient,
		}, zapLogger),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		zapLogger.Info("API server starting", zap.String("port", cfg.Port), zap.String("environment", cfg.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}
	zapLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
		return err
	}
	return nil
}

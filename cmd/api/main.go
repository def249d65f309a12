package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/pocketbroker-gate/internal/application/identity"
	"github.com/pocketbroker-gate/internal/config"
	"github.com/pocketbroker-gate/internal/infrastructure/dynamo"
	"github.com/pocketbroker-gate/internal/infrastructure/google"
	jwtinfra "github.com/pocketbroker-gate/internal/infrastructure/jwt"
	otelinfra "github.com/pocketbroker-gate/internal/infrastructure/otel"
	"github.com/pocketbroker-gate/internal/infrastructure/sealed"
	"github.com/pocketbroker-gate/internal/infrastructure/sqlstore"
	"github.com/pocketbroker-gate/internal/logging"
	transporthttp "github.com/pocketbroker-gate/internal/transport/http"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var envFile string
	var skipBootstrap bool

	flagSet := pflag.NewFlagSet("api", pflag.ContinueOnError)
	flagSet.StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	flagSet.BoolVar(&skipBootstrap, "skip-bootstrap", false, "do not create the profile table on startup")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	envErr := godotenv.Load(envFile)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.SetDefault(logging.New(os.Stdout, cfg.Logging))
	if envErr != nil {
		slog.Info("no env file found, reading from environment", "path", envFile)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otelinfra.Setup(ctx, cfg.OTelEndpoint, cfg.OTelServiceName)
	if err != nil {
		return fmt.Errorf("otel setup: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(sctx)
	}()

	profiles, closeStore, err := openProfileStore(ctx, cfg, skipBootstrap)
	if err != nil {
		return err
	}
	defer closeStore()

	jwtProvider, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		return fmt.Errorf("jwt provider: %w", err)
	}
	if cfg.Google.ClientID == "" {
		slog.Warn("GOOGLE_CLIENT_ID is empty, sign in will fail")
	}
	identitySvc := identity.NewService(
		google.NewExchanger(cfg.Google),
		google.NewVerifier(cfg.Google.ClientID),
		jwtProvider,
	)

	sealer, err := sealed.NewSealer(cfg.ExchangeKeyRecipients)
	if err != nil {
		return fmt.Errorf("exchange key sealer: %w", err)
	}
	if !sealer.Enabled() {
		slog.Warn("EXCHANGE_KEY_RECIPIENTS is empty, exchange API keys are stored unsealed")
	}

	router := transporthttp.NewRouter(ctx, cfg, &transporthttp.Deps{
		Profiles: profiles,
		Sealer:   sealer,
		Identity: identitySvc,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.AppPort, "env", cfg.AppEnv, "store", cfg.ProfileStore)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down server")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	slog.Info("server stopped")
	return nil
}

// openProfileStore connects the configured profile backend and, unless
// skipBootstrap is set, makes sure its table exists.
func openProfileStore(ctx context.Context, cfg *config.Config, skipBootstrap bool) (transporthttp.ProfileRepository, func(), error) {
	switch cfg.ProfileStore {
	case config.StorePostgres, config.StoreSQLite:
		db, err := sqlstore.Open(ctx, cfg.ProfileStore, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if !skipBootstrap {
			if err := sqlstore.EnsureTable(ctx, db); err != nil {
				_ = db.Close()
				return nil, nil, err
			}
		}
		return sqlstore.NewProfileRepo(db), func() { _ = db.Close() }, nil
	default:
		client, err := dynamo.NewClient(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		if !skipBootstrap {
			dynamo.Bootstrap(ctx, client, cfg.DynamoTables)
		}
		return dynamo.NewProfileRepo(client, cfg.DynamoTables.Profiles), func() {}, nil
	}
}

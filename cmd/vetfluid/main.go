package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vetfluid/vetfluid/internal/config"
	"github.com/vetfluid/vetfluid/internal/domain/fluidtherapy"
	"github.com/vetfluid/vetfluid/internal/domain/protocol"
	"github.com/vetfluid/vetfluid/internal/platform/auth"
	"github.com/vetfluid/vetfluid/internal/platform/cdshooks"
	"github.com/vetfluid/vetfluid/internal/platform/db"
	"github.com/vetfluid/vetfluid/internal/platform/middleware"
	"github.com/vetfluid/vetfluid/internal/platform/telemetry"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:           "vetfluid",
		Short:         "Veterinary fluid therapy and parenteral nutrition calculator",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(serveCmd(), computeCmd(), migrateCmd(), protocolsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the calculator API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	return logger.Level(level)
}

func openPool(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*pgxpool.Pool, error) {
	return db.NewPool(ctx, db.PoolConfig{
		URL:        cfg.DatabaseURL,
		MaxConns:   cfg.DBMaxConns,
		MinConns:   cfg.DBMinConns,
		Retries:    cfg.DBConnectRetries,
		MaxElapsed: time.Minute,
	}, logger)
}

// stack holds the wired services shared by the HTTP server.
type stack struct {
	pool      *pgxpool.Pool
	catalog   *protocol.Catalog
	protocols *protocol.Service
	fluids    *fluidtherapy.Service
}

// buildStack opens the protocol store, seeds it and wires the calculator.
// metrics may be nil.
func buildStack(ctx context.Context, cfg *config.Config, metrics fluidtherapy.Recorder, logger zerolog.Logger) (*stack, error) {
	s := &stack{}

	repo := protocol.NewMemoryRepo()
	var inTx protocol.TxRunner
	if cfg.UsesDatabase() {
		pool, err := openPool(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		logger.Info().Msg("connected to database")
		s.pool = pool
		repo = protocol.NewBreakerRepo(protocol.NewRepoPG(pool), protocol.BreakerSettings{Name: "protocol-store"}, logger)
		inTx = db.InTx(pool)
	} else {
		logger.Info().Msg("DATABASE_URL not set, protocols kept in memory")
	}

	var extra []*protocol.Protocol
	if cfg.ProtocolsFile != "" {
		loaded, err := protocol.LoadFile(cfg.ProtocolsFile)
		if err != nil {
			s.close()
			return nil, err
		}
		extra = loaded
		logger.Info().Str("file", cfg.ProtocolsFile).Int("protocols", len(loaded)).Msg("protocols file loaded")
	}

	s.catalog = protocol.NewCatalog(repo, cfg.DefaultProtocol, logger)
	s.protocols = protocol.NewService(repo, s.catalog, inTx, logger)
	if _, err := s.protocols.Seed(ctx, extra); err != nil {
		s.close()
		return nil, fmt.Errorf("seed protocols: %w", err)
	}
	s.fluids = fluidtherapy.NewService(s.catalog, metrics, logger)
	return s, nil
}

func (s *stack) close() {
	if s.catalog != nil {
		s.catalog.Stop()
	}
	if s.pool != nil {
		s.pool.Close()
	}
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Error().Err(err).Msg("invalid configuration")
		return err
	}

	tp := telemetry.NewTelemetryProvider(telemetry.TelemetryConfig{
		ServiceName:    "vetfluid",
		ServiceVersion: version,
		Environment:    cfg.Env,
		MetricsEnabled: telemetry.BoolPtr(cfg.MetricsEnabled),
	})

	ctx := context.Background()
	st, err := buildStack(ctx, cfg, tp, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to start")
		return err
	}
	defer st.close()

	if cfg.UsesDatabase() && cfg.ProtocolRefreshCron != "" {
		if err := st.catalog.StartRefresh(ctx, cfg.ProtocolRefreshCron); err != nil {
			return err
		}
	}

	e := newServer(cfg, st, tp, logger)

	addr := ":" + cfg.Port
	go func() {
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// newServer builds the Echo instance with the global middleware chain and
// every route mounted.
func newServer(cfg *config.Config, st *stack, tp *telemetry.TelemetryProvider, logger zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(tp.MetricsMiddleware())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
	}))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))

	// Auth middleware
	if cfg.IsDev() && cfg.AuthSigningKey == "" {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			SigningKey: []byte(cfg.AuthSigningKey),
			Skipper:    auth.AuthSkipper,
		}))
	}

	// Health and metrics
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", db.HealthHandler(st.pool, tp.HealthMetrics()))
	e.GET("/metrics", tp.PrometheusHandler())

	// API
	apiV1 := e.Group("/api/v1")
	apiV1.Use(middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}))
	apiV1.Use(middleware.Audit(logger))

	fluidtherapy.NewHandler(st.fluids).RegisterRoutes(apiV1)
	protocol.NewHandler(st.protocols).RegisterRoutes(apiV1)

	// CDS Hooks
	cds := cdshooks.NewHandler()
	fluidtherapy.RegisterCDSService(cds, st.fluids)
	cds.RegisterRoutes(e)

	return e
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/radorder/radorder/internal/config"
	"github.com/radorder/radorder/internal/domain/admin"
	"github.com/radorder/radorder/internal/domain/identity"
	"github.com/radorder/radorder/internal/domain/order"
	"github.com/radorder/radorder/internal/domain/validation"
	"github.com/radorder/radorder/internal/platform/auth"
	"github.com/radorder/radorder/internal/platform/blobstore"
	"github.com/radorder/radorder/internal/platform/db"
	"github.com/radorder/radorder/internal/platform/events"
	"github.com/radorder/radorder/internal/platform/llm"
	"github.com/radorder/radorder/internal/platform/lock"
	"github.com/radorder/radorder/internal/platform/metrics"
	"github.com/radorder/radorder/internal/platform/middleware"
	"github.com/radorder/radorder/migrations"
)

// orderPatients lets the order service create and look up patients
// without importing the identity package.
type orderPatients struct {
	svc *identity.Service
}

func (t orderPatients) CreateTemporaryPatient(ctx context.Context, organizationID int64, p order.TemporaryPatient) (int64, error) {
	id, err := t.svc.CreateTemporaryPatient(ctx, organizationID, identity.TemporaryPatientInput{
		FirstName:   p.FirstName,
		LastName:    p.LastName,
		DateOfBirth: p.DateOfBirth,
		Gender:      p.Gender,
		PhoneNumber: p.PhoneNumber,
	})
	return id, patientError(err)
}

func (t orderPatients) PatientOrganization(ctx context.Context, patientID int64) (int64, error) {
	p, err := t.svc.GetPatientForValidation(ctx, patientID)
	if err != nil {
		return 0, patientError(err)
	}
	return p.OrganizationID, nil
}

// patientError turns identity failures into order errors so the caller can
// report input problems as such.
func patientError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, identity.ErrInvalidPhone), errors.Is(err, identity.ErrInvalidPatch):
		return fmt.Errorf("%w: patientInfo: %v", order.ErrInvalidPayload, err)
	case errors.Is(err, identity.ErrPatientNotFound):
		return order.ErrPatientNotFound
	default:
		return err
	}
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "radorder-server",
		Short: "Radiology order validation API server",
	}
	root.AddCommand(serveCmd())
	root.AddCommand(migrateCmd())
	return root
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

// migrationFS returns the embedded migrations unless dir overrides them.
func migrationFS(dir string) fs.FS {
	if dir == "" {
		return migrations.Files
	}
	return os.DirFS(dir)
}

func openMigrator(ctx context.Context, dir string) (*db.Migrator, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	pool, err := db.NewPool(ctx, db.PoolConfig{URL: cfg.DatabaseURL, MaxConns: 2})
	if err != nil {
		return nil, nil, err
	}
	return db.NewMigrator(pool, migrationFS(dir)), pool.Close, nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			ctx := cmd.Context()
			migrator, closeFn, err := openMigrator(ctx, dir)
			if err != nil {
				return err
			}
			defer closeFn()

			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "", "Read migrations from this directory instead of the embedded set")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			ctx := cmd.Context()
			migrator, closeFn, err := openMigrator(ctx, dir)
			if err != nil {
				return err
			}
			defer closeFn()

			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			printStatus(cmd.OutOrStdout(), statuses)
			return nil
		},
	}
	statusCmd.Flags().String("dir", "", "Read migrations from this directory instead of the embedded set")
	cmd.AddCommand(statusCmd)

	return cmd
}

func printStatus(w io.Writer, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	fmt.Fprintln(w, "---------- ---------------------------------------- ---------- --------------------")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(w, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// newLocker picks the attempt-numbering lock backend. The advisory lock
// needs no extra infrastructure; Redis is for deployments that already run it.
func newLocker(backend string, rdb *redis.Client, ttl time.Duration) (lock.Locker, error) {
	switch backend {
	case "", "postgres":
		return lock.NewAdvisory(), nil
	case "redis":
		if rdb == nil {
			return nil, fmt.Errorf("redis lock backend requires REDIS_URL")
		}
		return lock.NewRedis(rdb, "radorder:", ttl), nil
	default:
		return nil, fmt.Errorf("unknown lock backend %q", backend)
	}
}

func runServer() error {
	logger := newLogger(os.Getenv("ENV"))

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, db.PoolConfig{
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	checks := map[string]db.Check{"postgres": db.PoolCheck(pool)}

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("invalid REDIS_URL")
		}
		rdb = redis.NewClient(opts)
		defer rdb.Close()
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	locker, err := newLocker(cfg.AttemptLockBackend, rdb, cfg.AttemptLockTTL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure attempt lock")
	}

	var publisher events.Publisher = events.Nop{}
	if cfg.AMQPURL != "" {
		amqpPub, err := events.DialAMQP(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to rabbitmq")
		}
		defer amqpPub.Close()
		publisher = amqpPub
		checks["rabbitmq"] = amqpPub.Ping
	} else {
		logger.Warn().Msg("AMQP_URL not set; order events are not published")
	}

	gwCfg, err := cfg.LLMGateway()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid LLM configuration")
	}
	gateway, err := llm.New(gwCfg, &http.Client{}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build validation gateway")
	}
	logger.Info().Strs("providers", gateway.ProviderNames()).Msg("validation gateway ready")

	// Domains
	tx := db.NewTransactor(pool)
	members := admin.NewMembership(admin.NewUserRepoPG(pool), admin.NewOrganizationRepoPG(pool))

	identitySvc := identity.NewService(identity.NewPatientRepo(pool), identity.NewInsuranceRepo(pool), tx, cfg.PhoneDefaultRegion)

	tracker := order.NewAttemptTracker(order.NewAttemptRepoPG(pool), tx, locker)
	orderSvc := order.NewService(order.NewOrderRepoPG(pool), order.NewHistoryRepoPG(pool), tracker, tx, members, logger)
	patients := orderPatients{svc: identitySvc}
	orderSvc.SetPatientCreator(patients)
	orderSvc.SetPatientLookup(patients)
	orderSvc.SetPublisher(publisher)

	if cfg.StorageEndpoint != "" {
		presigner, err := blobstore.NewMinioPresigner(cfg.Storage())
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to configure signature storage")
		}
		orderSvc.SetSignatureUploader(blobstore.NewStore(presigner, cfg.SignatureUploadExpiry))
	} else {
		logger.Warn().Msg("STORAGE_ENDPOINT not set; signature uploads are disabled")
	}

	adminSvc := admin.NewService(members, identitySvc, orderSvc, logger)
	validationSvc := validation.NewService(orderSvc, members, gateway, logger)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(metrics.Middleware())
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
	}))

	if cfg.ResolvedAuthMode() == "development" {
		logger.Warn().Msg("development auth is active; every request runs as the dev identity")
		e.Use(auth.DevAuthMiddleware(auth.DevIdentity{
			UserID: 1,
			OrgID:  1,
			Roles:  []string{auth.RolePhysician, auth.RoleAdminReferring, auth.RoleAdminStaff},
		}))
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:   cfg.AuthIssuer,
			Audience: cfg.AuthAudience,
			JWKSURL:  cfg.AuthJWKSURL,
			Skipper:  auth.AuthSkipper,
		}))
	}

	e.GET("/health", db.HealthHandler(pool, checks))
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	apiV1 := e.Group("/api/v1")
	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))
	apiV1.Use(middleware.BodyLimit("256K"))
	apiV1.Use(middleware.RequestTimeout(cfg.RequestTimeout))

	validation.NewHandler(validationSvc).RegisterRoutes(apiV1)
	order.NewHandler(orderSvc).RegisterRoutes(apiV1)
	identity.NewHandler(identitySvc).RegisterRoutes(apiV1)
	admin.NewHandler(adminSvc).RegisterRoutes(apiV1)

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Bool("tls", cfg.TLSEnabled).Msg("starting server")
		var err error
		if cfg.TLSEnabled {
			err = e.StartTLS(addr, cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = e.Start(addr)
		}
		if err != nil && err != http.ErrServerClosed {
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
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

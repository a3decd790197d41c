package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/caregrid/caregrid/internal/config"
	"github.com/caregrid/caregrid/internal/domain/assignment"
	"github.com/caregrid/caregrid/internal/domain/careplan"
	"github.com/caregrid/caregrid/internal/domain/identity"
	"github.com/caregrid/caregrid/internal/domain/shift"
	"github.com/caregrid/caregrid/internal/platform/auth"
	"github.com/caregrid/caregrid/internal/platform/db"
	"github.com/caregrid/caregrid/internal/platform/middleware"
	"github.com/caregrid/caregrid/internal/platform/notification"
	"github.com/caregrid/caregrid/internal/platform/sweeper"
)

// assignmentDirAdapter exposes the assignment service as the consumer-side
// view the shift ranker needs.
type assignmentDirAdapter struct {
	svc *assignment.Service
}

func (a *assignmentDirAdapter) ListActiveByAgency(ctx context.Context, agencyID uuid.UUID) ([]shift.Assignment, error) {
	items, err := a.svc.ListActiveByAgency(ctx, agencyID)
	if err != nil {
		return nil, err
	}
	out := make([]shift.Assignment, 0, len(items))
	for _, item := range items {
		out = append(out, shift.Assignment{
			CaregiverID: item.CaregiverID,
			ElderIDs:    item.ElderIDs,
		})
	}
	return out, nil
}

// identityDirAdapter exposes the identity service to the shift and care plan
// domains without importing them from identity.
type identityDirAdapter struct {
	svc *identity.Service
}

func (a *identityDirAdapter) GetElder(ctx context.Context, id uuid.UUID) (*shift.ElderInfo, error) {
	e, err := a.svc.GetElder(ctx, id)
	if err != nil {
		return nil, err
	}
	return &shift.ElderInfo{
		ID:                 e.ID,
		Name:               e.DisplayName(),
		PrimaryCaregiverID: e.PrimaryCaregiverID,
	}, nil
}

func (a *identityDirAdapter) GetCaregiver(ctx context.Context, id uuid.UUID) (*shift.CaregiverProfile, error) {
	u, err := a.svc.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	return &shift.CaregiverProfile{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
	}, nil
}

func (a *identityDirAdapter) ElderName(ctx context.Context, id uuid.UUID) (string, error) {
	e, err := a.svc.GetElder(ctx, id)
	if err != nil {
		return "", err
	}
	return e.DisplayName(), nil
}

func (a *identityDirAdapter) IsActiveCaregiver(ctx context.Context, id uuid.UUID) (bool, error) {
	u, err := a.svc.GetUser(ctx, id)
	if err != nil {
		return false, err
	}
	return u.Active && u.HasRole(identity.RoleCaregiver), nil
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "caregrid-server",
		Short: "CareGrid coordination API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(tenantCmd())
	rootCmd.AddCommand(sweepCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
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

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	// migrate up
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			fmt.Printf("Running migrations on schema: %s\n", schema)

			count, err := migrator.Up(ctx, schema)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("schema", "tenant_default", "Target schema for migrations")
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	// migrate status
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx, schema)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("Migration status for schema: %s\n", schema)
			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("schema", "tenant_default", "Target schema for migrations")
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func tenantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Manage agency tenants",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new tenant schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			dir, _ := cmd.Flags().GetString("dir")
			if name == "" {
				return fmt.Errorf("--name is required")
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			fmt.Printf("Creating tenant schema: tenant_%s\n", name)
			if err := db.CreateTenantSchema(ctx, pool, name, dir); err != nil {
				return err
			}
			fmt.Println("Tenant created successfully.")
			return nil
		},
	}
	createCmd.Flags().String("name", "", "Tenant identifier (alphanumeric)")
	createCmd.Flags().String("dir", "./migrations", "Path to migrations directory")

	cmd.AddCommand(createCmd)
	return cmd
}

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Advance expired cascade offers once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			app := buildApp(pool, logger)
			advanced, err := app.sweeper.RunOnce(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Advanced %d expired offer(s).\n", advanced)
			return nil
		},
	}
}

// app holds the wired services and handlers shared by serve and sweep.
type app struct {
	identitySvc     *identity.Service
	assignmentSvc   *assignment.Service
	careplanSvc     *careplan.Service
	shiftSvc        *shift.Service
	notificationSvc *notification.Service
	sweeper         *sweeper.Sweeper

	identityHandler     *identity.Handler
	assignmentHandler   *assignment.Handler
	careplanHandler     *careplan.Handler
	shiftHandler        *shift.Handler
	notificationHandler *notification.Handler
}

func buildApp(pool *pgxpool.Pool, logger zerolog.Logger) *app {
	userRepo := identity.NewUserRepoPG(pool)
	elderRepo := identity.NewElderRepoPG(pool)
	assignmentRepo := assignment.NewRepoPG(pool)
	shiftRepo := shift.NewRepoPG(pool)
	itemRepo := careplan.NewItemRepoPG(pool)
	logRepo := careplan.NewLogRepoPG(pool)
	notificationRepo := notification.NewRepoPG(pool)

	identitySvc := identity.NewService(userRepo, elderRepo, logger)
	identityDir := &identityDirAdapter{svc: identitySvc}

	assignmentSvc := assignment.NewService(assignmentRepo, identityDir, logger)
	assignmentDir := &assignmentDirAdapter{svc: assignmentSvc}

	notificationSvc := notification.NewService(notificationRepo, logger)

	ranker := shift.NewRanker(shiftRepo, assignmentDir, identityDir, identityDir, logger)
	shiftSvc := shift.NewService(shiftRepo, ranker, notificationSvc, db.NewTxRunner(pool), logger)

	careplanSvc := careplan.NewService(itemRepo, logRepo, identityDir)

	return &app{
		identitySvc:     identitySvc,
		assignmentSvc:   assignmentSvc,
		careplanSvc:     careplanSvc,
		shiftSvc:        shiftSvc,
		notificationSvc: notificationSvc,
		sweeper:         sweeper.New(shiftSvc, pool, logger),

		identityHandler:     identity.NewHandler(identitySvc),
		assignmentHandler:   assignment.NewHandler(assignmentSvc),
		careplanHandler:     careplan.NewHandler(careplanSvc),
		shiftHandler:        shift.NewHandler(shiftSvc),
		notificationHandler: notification.NewHandler(notificationSvc),
	}
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit("1M"))
	e.Use(middleware.RequestTimeout(30 * time.Second))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", "X-Tenant-ID"},
	}))

	// Auth middleware
	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			SigningKey: []byte(cfg.JWTSecret),
		}))
	}

	// Tenant middleware
	e.Use(db.TenantMiddleware(pool, cfg.DefaultTenant))

	// API group
	apiV1 := e.Group("/api/v1")

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))

	// Health checks
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	// Domain wiring
	application := buildApp(pool, logger)
	application.identityHandler.RegisterRoutes(apiV1)
	application.assignmentHandler.RegisterRoutes(apiV1)
	application.careplanHandler.RegisterRoutes(apiV1)
	application.shiftHandler.RegisterRoutes(apiV1)
	application.notificationHandler.RegisterRoutes(apiV1)

	// Background offer sweep. Interval zero leaves expiry to lazy
	// detection on reads.
	if cfg.SweepInterval > 0 {
		if err := application.sweeper.Start(cfg.SweepInterval); err != nil {
			logger.Fatal().Err(err).Msg("failed to start offer sweeper")
		}
		defer application.sweeper.Stop()
	}

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
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

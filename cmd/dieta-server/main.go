package main

import (
	"context"
	crypto_rand "crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dieta/dieta/internal/config"
	"github.com/dieta/dieta/internal/domain/nutrition"
	"github.com/dieta/dieta/internal/domain/patients"
	"github.com/dieta/dieta/internal/domain/professionals"
	"github.com/dieta/dieta/internal/domain/wellbeing"
	"github.com/dieta/dieta/internal/platform/auth"
	"github.com/dieta/dieta/internal/platform/db"
	"github.com/dieta/dieta/internal/platform/middleware"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "dieta-server",
		Short: "Dietary clinic API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())

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
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	// migrate status
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
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
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

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
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	// migrate down - keep as warning
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Rollback last migration (not supported)",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("WARNING: migrate down is destructive and not supported by the built-in runner.")
			fmt.Println("Restore from a database backup instead.")
			return nil
		},
	})

	return cmd
}

// seedCmd creates the first professional account directly in the database,
// so a fresh deployment has someone who can log in and create patients.
func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the initial professional account",
		RunE: func(cmd *cobra.Command, args []string) error {
			firstName, _ := cmd.Flags().GetString("first-name")
			lastName, _ := cmd.Flags().GetString("last-name")
			email, _ := cmd.Flags().GetString("email")
			if firstName == "" || lastName == "" {
				return fmt.Errorf("--first-name and --last-name are required")
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

			svc := professionals.NewService(professionals.NewRepo(pool))
			pro := &professionals.Professional{
				FirstName: firstName,
				LastName:  lastName,
			}
			if email != "" {
				pro.Email = &email
			}
			if err := svc.CreateProfessional(ctx, pro); err != nil {
				return fmt.Errorf("failed to create professional: %w", err)
			}

			fmt.Printf("Created professional %s %s (id %d).\n", pro.FirstName, pro.LastName, pro.ID)
			fmt.Printf("Access code: %s\n", pro.AccessCode)
			fmt.Println("Store this code securely; it is the account's only credential.")
			return nil
		},
	}
	cmd.Flags().String("first-name", "", "First name of the professional")
	cmd.Flags().String("last-name", "", "Last name of the professional")
	cmd.Flags().String("email", "", "Contact email (optional)")
	return cmd
}

// resolveDevSigningKey returns the HMAC key used to verify federated identity
// tokens when no JWKS endpoint is configured. It reads a hex-encoded key from
// DEV_FEDERATED_SIGNING_KEY, or generates a random one for the process.
func resolveDevSigningKey() ([]byte, error) {
	if hexKey := os.Getenv("DEV_FEDERATED_SIGNING_KEY"); hexKey != "" {
		key, err := hex.DecodeString(hexKey)
		if err != nil {
			return nil, fmt.Errorf("DEV_FEDERATED_SIGNING_KEY is not valid hex: %w", err)
		}
		if len(key) < 32 {
			return nil, fmt.Errorf("DEV_FEDERATED_SIGNING_KEY must be at least 32 bytes, got %d", len(key))
		}
		return key, nil
	}

	key := make([]byte, 32)
	if _, err := crypto_rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate signing key: %w", err)
	}
	return key, nil
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
		logger.Fatal().Err(err).Msg("invalid config")
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
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Request-ID", "X-Patient-Session", "X-Professional-Code"},
		AllowCredentials: true,
	}))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(middleware.RequestTimeout(time.Duration(cfg.RequestTimeoutSecs) * time.Second))
	e.Use(middleware.Audit(logger))

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	e.Use(middleware.RateLimit(rateLimitCfg))

	// Session and federated identity
	codec := auth.NewSessionCodec(cfg.SessionSecret, time.Duration(cfg.SessionTTLHours)*time.Hour)
	fedCfg := auth.FederatedConfig{
		Issuer:   cfg.AuthIssuer,
		Audience: cfg.AuthAudience,
		JWKSURL:  cfg.AuthJWKSURL,
	}
	if fedCfg.JWKSURL == "" && cfg.IsDev() {
		key, err := resolveDevSigningKey()
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to resolve dev signing key")
		}
		fedCfg.SigningKey = key
		logger.Warn().Msg("no JWKS URL configured, verifying federated tokens with a local dev key")
	}
	federated := auth.NewFederatedVerifier(fedCfg)

	// Repositories and services
	txRunner := db.NewPoolTxRunner(pool)
	patientSvc := patients.NewService(patients.NewRepo(pool), txRunner, time.Duration(cfg.CodeTTLDays)*24*time.Hour)
	professionalSvc := professionals.NewService(professionals.NewRepo(pool))
	nutritionSvc := nutrition.NewService(nutrition.NewRepo(pool))
	wellbeingSvc := wellbeing.NewService(wellbeing.NewRepo(pool))

	resolver := auth.NewResolver(codec, federated, patientSvc, professionalSvc)

	// Route groups. The public group carries the two code-validation
	// endpoints behind a much stricter per-IP limiter, since access codes
	// are short enough to be worth guessing.
	public := e.Group("")
	public.Use(middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.ValidateRPS,
		BurstSize:         cfg.ValidateBurst,
	}))
	patientG := e.Group("/patient", auth.RequirePatient(resolver))
	professionalG := e.Group("/professional", auth.RequireProfessional(resolver))

	secureCookies := cfg.IsProduction()

	patientHandler := patients.NewHandler(patientSvc, codec, federated, professionalSvc, secureCookies)
	patientHandler.RegisterRoutes(public, patientG, professionalG)

	professionalHandler := professionals.NewHandler(professionalSvc, codec, federated, secureCookies)
	professionalHandler.RegisterRoutes(public, professionalG)

	// Patients own a diet level; nutrition only needs to read it. The
	// closure keeps the packages decoupled.
	nutritionHandler := nutrition.NewHandler(nutritionSvc, func(ctx context.Context, patientID int64) (int, error) {
		p, err := patientSvc.GetPatient(ctx, patientID)
		if err != nil {
			return 0, err
		}
		return p.DietLevel, nil
	})
	nutritionHandler.RegisterRoutes(patientG, professionalG)

	wellbeingHandler := wellbeing.NewHandler(wellbeingSvc)
	wellbeingHandler.RegisterRoutes(patientG, professionalG)

	// Health checks
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))

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

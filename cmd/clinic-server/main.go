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
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/clinic/clinic/internal/config"
	"github.com/clinic/clinic/internal/domain/identity"
	"github.com/clinic/clinic/internal/domain/prescription"
	"github.com/clinic/clinic/internal/domain/scheduling"
	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/db"
	"github.com/clinic/clinic/internal/platform/middleware"
	"github.com/clinic/clinic/internal/platform/notification"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "clinic-server",
		Short: "Clinic scheduling API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the clinic API server",
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

	return cmd
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
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	// Auth middleware
	revocations := auth.NewRevocationStore()
	defer revocations.Close()
	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:      cfg.AuthIssuer,
			Audience:    cfg.AuthAudience,
			JWKSURL:     cfg.AuthJWKSURL,
			SigningKey:  []byte(cfg.JWTSigningKey),
			Revocations: revocations,
		}))
	}

	// Health checks
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))

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

	auth.RegisterRevocationRoutes(apiV1, revocations)

	// Notifications. The outbox routes expose patient contact details, so
	// they are admin-only.
	logSender := notification.NewLogSender(logger, cfg.NotifyFromEmail)
	dispatcher := notification.NewDispatcher(logSender, logSender, notification.NewTemplateSet())
	notification.NewHandler(dispatcher).RegisterRoutes(apiV1, auth.RequireRole("admin"))

	// Identity domain
	identitySvc := identity.NewService(
		identity.NewDoctorRepoPG(pool),
		identity.NewPatientRepoPG(pool),
	)
	identity.NewHandler(identitySvc).RegisterRoutes(apiV1)

	// Scheduling domain
	schedulingSvc := scheduling.NewService(
		scheduling.NewSessionRepoPG(pool),
		scheduling.NewAppointmentRepoPG(pool),
		scheduling.NewTxRunnerPG(pool),
		time.Duration(cfg.BookingLockWaitMS)*time.Millisecond,
	)
	schedulingSvc.SetNotifier(&bookingNotifier{
		identity:   identitySvc,
		dispatcher: dispatcher,
		logger:     logger,
	})
	scheduling.NewHandler(schedulingSvc).RegisterRoutes(apiV1)

	// Prescription domain
	rxSvc := prescription.NewService(
		prescription.NewRepoPG(pool),
		prescription.NewTxRunnerPG(pool),
	)
	if cfg.CompleteOnRxSave {
		rxSvc.SetCompleter(&appointmentCompleter{scheduling: schedulingSvc})
	}
	prescription.NewHandler(rxSvc).RegisterRoutes(apiV1)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
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
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

// bookingNotifier delivers booking lifecycle notifications. The scheduling
// service invokes it after the surrounding transaction commits, so a slow or
// failing delivery never blocks a booking.
type bookingNotifier struct {
	identity   *identity.Service
	dispatcher *notification.Dispatcher
	logger     zerolog.Logger
}

func (n *bookingNotifier) AppointmentBooked(ctx context.Context, sess *scheduling.Session, appt *scheduling.Appointment) {
	n.send(ctx, "booking-confirmed", sess, appt)
}

func (n *bookingNotifier) AppointmentCancelled(ctx context.Context, sess *scheduling.Session, appt *scheduling.Appointment) {
	n.send(ctx, "appointment-cancelled", sess, appt)
}

func (n *bookingNotifier) SessionCancelled(ctx context.Context, sess *scheduling.Session, cancelled []*scheduling.Appointment) {
	for _, appt := range cancelled {
		n.send(ctx, "session-cancelled", sess, appt)
	}
}

func (n *bookingNotifier) send(ctx context.Context, templateID string, sess *scheduling.Session, appt *scheduling.Appointment) {
	patient, err := n.identity.GetPatient(ctx, appt.PatientID)
	if err != nil {
		n.logger.Warn().Err(err).Str("patient_id", appt.PatientID.String()).Msg("notification skipped: patient lookup failed")
		return
	}
	if patient.Email == nil {
		return
	}

	data := sessionTemplateData(sess, patient.Name)
	if doctor, err := n.identity.GetDoctor(ctx, sess.DoctorID); err == nil {
		data["doctor_name"] = doctor.Name
	}

	if _, err := n.dispatcher.SendTemplate(ctx, templateID, data, *patient.Email); err != nil {
		n.logger.Warn().Err(err).Str("template", templateID).Msg("notification delivery failed")
	}
}

func sessionTemplateData(sess *scheduling.Session, patientName string) map[string]string {
	return map[string]string{
		"patient_name": patientName,
		"doctor_name":  "your doctor",
		"date":         sess.Date.Format("2006-01-02"),
		"start_time":   sess.StartTime.Format("15:04"),
		"end_time":     sess.EndTime.Format("15:04"),
	}
}

// appointmentCompleter lets a saved prescription mark the appointment
// completed through the scheduling service.
type appointmentCompleter struct {
	scheduling *scheduling.Service
}

func (a *appointmentCompleter) Complete(ctx context.Context, appointmentID uuid.UUID) error {
	_, err := a.scheduling.MarkCompleted(ctx, appointmentID)
	return err
}

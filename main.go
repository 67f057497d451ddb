package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"public-eye-service/config"
	"public-eye-service/internal/auth"
	"public-eye-service/internal/database"
	"public-eye-service/internal/geocode"
	"public-eye-service/internal/handler"
	"public-eye-service/internal/logger"
	"public-eye-service/internal/messaging"
	"public-eye-service/internal/repository"
	"public-eye-service/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

var (
	configPath string
	tokenUser  string
	tokenTTL   time.Duration

	cfg *config.Config
	log *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "public-eye",
	Short:         "Civic complaint tracking and citizen rewards API",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		log, err = logger.New(cfg.Log)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			_ = log.Sync()
		}
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, outbox relay and notification consumer",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema and exit",
	RunE:  runMigrate,
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an admin bearer token for status updates",
	RunE:  runToken,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config/config.json", "path to the JSON config file")
	tokenCmd.Flags().StringVar(&tokenUser, "user", "admin", "user id recorded in the token")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
	rootCmd.AddCommand(serveCmd, migrateCmd, tokenCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	db, err := database.Open(cfg.Database, log)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.Migrate(cmd.Context(), db, cfg.Database.Driver); err != nil {
		return err
	}
	log.Info("schema applied", zap.String("driver", cfg.Database.Driver))
	return nil
}

func runToken(cmd *cobra.Command, _ []string) error {
	token, err := auth.Issue(cfg.JWT.Secret, tokenUser, auth.RoleAdmin, tokenTTL)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	db, err := database.Open(cfg.Database, log)
	if err != nil {
		return err
	}
	defer db.Close()
	log.Info("connected to database", zap.String("driver", cfg.Database.Driver))

	if err := database.Migrate(ctx, db, cfg.Database.Driver); err != nil {
		return err
	}

	// Initialize repositories
	outboxRepo := repository.NewOutboxRepository(db)
	sequenceRepo := repository.NewSequenceRepository(db, cfg.Complaint.IDPrefix)
	citizenRepo := repository.NewCitizenRepository(db, outboxRepo)
	complaintRepo := repository.NewComplaintRepository(db, sequenceRepo, citizenRepo, outboxRepo)
	notificationRepo := repository.NewNotificationRepository(db)

	// Events go through RabbitMQ when configured, otherwise straight to the consumer
	var rmq *messaging.RabbitMQ
	if cfg.RabbitMQ.Enabled() {
		rmq, err = messaging.NewRabbitMQ(cfg.RabbitMQ, log)
		if err != nil {
			return err
		}
		defer rmq.Close()
	}

	consumer := messaging.NewNotificationConsumer(rmq, notificationRepo, log)
	var publisher messaging.Publisher = messaging.NewLocalPublisher(consumer)
	if rmq != nil {
		publisher = rmq
	}
	worker := messaging.NewOutboxWorker(outboxRepo, publisher, log)

	// Initialize services
	complaintService := service.NewComplaintService(complaintRepo, cfg.Complaint, log)
	feedbackService := service.NewFeedbackService(complaintRepo)
	rewardService := service.NewRewardService(citizenRepo)
	notificationService := service.NewNotificationService(notificationRepo)

	if log.Core().Enabled(zap.DebugLevel) {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := handler.NewRouter(handler.Handlers{
		Complaint:    handler.NewComplaintHandler(complaintService, feedbackService),
		Reward:       handler.NewRewardHandler(rewardService),
		Notification: handler.NewNotificationHandler(notificationService),
		Location:     handler.NewLocationHandler(geocode.NewClient(cfg.Geocoder, log)),
		Health:       handler.NewHealthHandler(worker),
	}, handler.RouterConfig{
		JWTSecret:      cfg.JWT.Secret,
		RequestTimeout: cfg.Server.RequestTimeout(),
	}, log)

	if cfg.JWT.Secret == "" {
		log.Warn("jwt secret not set, status updates are unauthenticated")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	worker.Start()
	consumer.Start()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("public-eye starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)

		worker.Stop()
		consumer.Stop()
		return err
	})

	return g.Wait()
}

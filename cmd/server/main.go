package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"reprography-backend/internal/config"
	"reprography-backend/internal/database"
	"reprography-backend/internal/handlers"
	"reprography-backend/internal/logging"
	"reprography-backend/internal/middleware"
	"reprography-backend/internal/notify"
	"reprography-backend/internal/services"
	"reprography-backend/internal/supabase"
)

var cfgFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "reprography-server",
		Short: "Print-order intake backend",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("supabase-url", defaults.GetString("supabase.url"), "Supabase project URL")
	cmd.PersistentFlags().String("storage-bucket", defaults.GetString("storage.bucket"), "Storage bucket holding print files")
	cmd.PersistentFlags().String("database-url", defaults.GetString("database.url"), "Postgres connection string")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("environment", defaults.GetString("environment"), "Runtime environment")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "supabase.url", "supabase-url")
	bindFlag(cmd, "storage.bucket", "storage-bucket")
	bindFlag(cmd, "database.url", "database-url")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "environment", "environment")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context) error {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Migrations are best-effort at startup: a failure is loud but does
	// not stop a server that may still be able to serve existing tables.
	migrator, err := database.NewMigrator(cfg.DatabaseURL, logger)
	if err != nil {
		logger.Warn("failed to initialize migrator", zap.Error(err))
	} else {
		if err := migrator.Run(); err != nil {
			logger.Warn("migration failed", zap.Error(err))
		}
		migrator.Close()
	}

	dbClient, err := supabase.NewDatabaseClient(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer dbClient.Close()

	storageClient, err := supabase.NewStorageClient(cfg.SupabaseURL, cfg.SupabaseServiceKey, cfg.StorageBucket)
	if err != nil {
		return err
	}

	authClient, err := supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseServiceKey)
	if err != nil {
		return err
	}

	var notifier services.CompletionNotifier
	if cfg.PushEnabled() {
		notifier = notify.NewDispatcher(notify.DispatcherConfig{
			Subscriptions:   dbClient,
			Logger:          logger,
			VAPIDPublicKey:  cfg.VAPIDPublicKey,
			VAPIDPrivateKey: cfg.VAPIDPrivateKey,
			Subscriber:      cfg.VAPIDSubscriber,
		})
	} else {
		logger.Warn("VAPID keys not configured, push notifications disabled")
	}

	orderService := services.NewOrderService(storageClient, dbClient, notifier, logger)

	ordersHandler := handlers.NewOrdersHandler(orderService, cfg, logger)
	subscriptionsHandler := handlers.NewSubscriptionsHandler(authClient, dbClient, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", handlers.HealthHandler)

	api := router.Group("/api/v1")

	// Order submission and listing accept guests.
	api.POST("/orders", middleware.OptionalAuth(cfg), ordersHandler.CreateOrders)
	api.GET("/orders", middleware.OptionalAuth(cfg), ordersHandler.ListOrders)

	// Subscription registration resolves its identity against Supabase
	// Auth from the access token.
	api.POST("/notifications/subscribe", subscriptionsHandler.Subscribe)

	admin := api.Group("/admin")
	admin.Use(middleware.RequireAuth(cfg), middleware.RequireAdmin())
	admin.GET("/orders", ordersHandler.AdminListOrders)
	admin.PATCH("/orders/:order_id", ordersHandler.UpdateOrderStatus)

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddress,
		Handler: router,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", cfg.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

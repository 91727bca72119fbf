package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"timesheets/internal/cloudinary"
	"timesheets/internal/config"
	"timesheets/internal/handler"
	"timesheets/internal/httpmiddleware"
	"timesheets/internal/store"
	"timesheets/internal/timesheet"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "timesheets",
	Short: "Developer timesheet API",
	Long:  `timesheets serves a JSON API for developers and their daily work logs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveCmd.RunE(cmd, args)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Migrate the database and start the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		// Set Gin mode based on environment
		if cfg.IsProduction() {
			gin.SetMode(gin.ReleaseMode)
		}
		return runHTTP(cfg)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations and print the schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		db, err := store.NewDB(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()

		status, err := db.Migrate()
		if err != nil {
			return err
		}
		fmt.Printf("schema version %d (dirty=%t) on %s\n", status.Version, status.Dirty, db.Dialect)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "TOML config file (defaults to $CONFIG_FILE)")
	rootCmd.AddCommand(serveCmd, migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runHTTP(cfg config.App) error {
	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	status, err := db.Migrate()
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	log.Printf("database %s ready at schema version %d", db.Dialect, status.Version)

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()

	// Cloudinary client (nil when not configured)
	var cdnClient *cloudinary.Client
	if cfg.Cloudinary.Enabled() {
		cdnClient = cloudinary.New(cfg.Cloudinary.CloudName, cfg.Cloudinary.APIKey, cfg.Cloudinary.APISecret, cfg.Cloudinary.Folder)
		log.Println("Cloudinary configured:", cfg.Cloudinary.CloudName)
	} else {
		log.Println("Cloudinary not configured (CLOUDINARY_CLOUD_NAME / API_KEY / API_SECRET not set)")
	}

	var limiter httpmiddleware.Limiter
	switch {
	case cfg.RateLimitPerMin <= 0:
		log.Println("rate limiting disabled")
	case redisClient != nil:
		limiter = httpmiddleware.NewRedisLimiter(redisClient.Client, cfg.RateLimitPerMin)
	default:
		limiter = httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin)
	}

	svc := timesheet.NewService(timesheet.NewRepository(db))
	h := handler.New(svc, cdnClient, db, redisClient)
	r := handler.NewRouter(h, handler.RouterOptions{
		CORSOrigins: cfg.CORSOrigins,
		Limiter:     limiter,
		Metrics:     httpmiddleware.NewMetrics(),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for interrupt signal or a listener failure
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-quit:
	}
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

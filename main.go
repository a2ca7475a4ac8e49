package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GokhanYmn/NakitAkisGrafana/src/config"
	"github.com/GokhanYmn/NakitAkisGrafana/src/database"
	"github.com/GokhanYmn/NakitAkisGrafana/src/handlers"
	"github.com/GokhanYmn/NakitAkisGrafana/src/logger"
	"github.com/GokhanYmn/NakitAkisGrafana/src/model"
	"github.com/GokhanYmn/NakitAkisGrafana/src/processors"
	"github.com/GokhanYmn/NakitAkisGrafana/src/query"
	"github.com/GokhanYmn/NakitAkisGrafana/src/services"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var cfg *config.AppConfig

func main() {
	decimal.MarshalJSONWithoutQuotes = true

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "nakitakis",
	Short: "Cash-flow interest reconciliation service with a Grafana datasource",
	Long: `nakitakis compares the interest actually earned on placements with the
interest a simple or compound model predicts, and serves the results as a
REST API, a Grafana simple-JSON datasource and CSV/HTML reports.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if level, _ := cmd.Flags().GetString("log-level"); level != "" {
			cfg.LogLevel = level
		}
		logger.InitLogger(cfg.LogLevel)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(snapshotCmd)
}

// app is the wired object graph shared by every subcommand.
type app struct {
	db      *sql.DB
	store   *model.CashFlowStore
	nakit   services.NakitAkisService
	catalog services.CatalogService
	export  services.ExportService
}

func openApp(migrate bool) (*app, error) {
	logger.L.Info("Initializing database...", "driver", cfg.DatabaseDriver)
	db, err := database.Open(cfg.DatabaseDriver, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if migrate {
		if err := database.RunMigrations(db, cfg.DatabaseDriver); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	store := model.NewCashFlowStore(db, query.DialectFor(cfg.DatabaseDriver), cfg.QueryTimeout)
	accrual := processors.NewAccrualProcessor(cfg.FallbackRules)
	series := processors.NewSeriesProcessor()

	return &app{
		db:      db,
		store:   store,
		nakit:   services.NewNakitAkisService(store, accrual, series),
		catalog: services.NewCatalogService(store),
		export:  services.NewExportService(),
	}, nil
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		logger.L.Warn("Failed to close database", "error", err)
	}
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger.L.Info("NakitAkis backend server starting...")

		a, err := openApp(cfg.AutoMigrate)
		if err != nil {
			return err
		}
		defer a.Close()

		defaults := handlers.DefaultsFromConfig(cfg)
		router := handlers.NewRouter(
			handlers.NewNakitAkisHandler(a.nakit, a.catalog, defaults),
			handlers.NewGrafanaHandler(a.nakit, a.catalog, defaults, cfg.GrafanaLookback),
			handlers.NewExportHandler(a.nakit, a.export, defaults),
			handlers.RouterOptions{
				AllowedOrigins: cfg.CORSAllowedOrigins,
				Limiter:        handlers.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
			},
		)

		serverAddr := ":" + cfg.Port
		server := &http.Server{
			Addr:         serverAddr,
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			logger.L.Info("Server starting", "address", serverAddr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("failed to start server: %w", err)
			}
			return nil
		case <-ctx.Done():
		}

		logger.L.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		logger.L.Info("Server stopped")
		return nil
	},
}

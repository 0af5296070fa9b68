package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/danielhkuo/card-auction/cliparse"
	"github.com/danielhkuo/card-auction/db"
	"github.com/danielhkuo/card-auction/handlers"
	"github.com/danielhkuo/card-auction/metrics"
	"github.com/danielhkuo/card-auction/middleware"
	"github.com/danielhkuo/card-auction/notify"
	"github.com/danielhkuo/card-auction/router"
)

const (
	shutdownTimeout = 10 * time.Second
	collectInterval = 30 * time.Second
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "auctiond",
	Short: "Card auction API server",
	Long: `auctiond serves the card auction API: accounts, auctions, bidding,
watch lists, notifications and live auction streams.

Running it without a subcommand is the same as "auctiond serve".`,
	SilenceUsage: true,
	RunE:         runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the API server",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the database schema and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := cliparse.Load(cmd.Flags())
		if err != nil {
			return err
		}
		setupLogging(cfg)

		conn, err := openDatabase(cfg)
		if err != nil {
			return err
		}
		defer conn.Close()

		slog.Info("Database schema ready", "type", cfg.DatabaseType)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().AddFlagSet(cliparse.NewFlagSet())

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
}

func setupLogging(cfg cliparse.Config) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.EqualFold(cfg.LogFormat, "json") {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func openDatabase(cfg cliparse.Config) (*sql.DB, error) {
	conn, err := db.Open(cfg.DatabaseType, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	// Create schema (tables)
	if err := db.CreateSchema(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("schema creation failed: %w", err)
	}
	return conn, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := cliparse.Load(cmd.Flags())
	if err != nil {
		return err
	}
	setupLogging(cfg)

	conn, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer conn.Close()
	slog.Info("Database schema ready", "type", cfg.DatabaseType)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := notify.NewHub()
	hub.Start()
	defer hub.Stop()

	lc := handlers.NewLifecycle(conn, cfg, hub)
	defer lc.Stop()

	if _, err := lc.Restore(ctx); err != nil {
		return err
	}

	collector := metrics.NewCollector(conn, collectInterval)
	collector.Start()
	defer collector.Stop()

	server := &http.Server{
		Handler:           middleware.CORS(router.NewRouter(conn, cfg, lc)),
		Addr:              ":" + strconv.Itoa(cfg.Port),
		ReadHeaderTimeout: 10 * time.Second,
		// Long polls and streams end when the server is told to stop
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Listening", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	slog.Info("Server closed", "error", err)
	return err
}

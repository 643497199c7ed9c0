package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/atvirokodosprendimai/hostledger/internal/config"
	"github.com/atvirokodosprendimai/hostledger/internal/db"
	"github.com/atvirokodosprendimai/hostledger/internal/inventory"
	"github.com/atvirokodosprendimai/hostledger/internal/logging"
	"github.com/atvirokodosprendimai/hostledger/internal/messaging"
	"github.com/atvirokodosprendimai/hostledger/internal/server/api"
	"github.com/atvirokodosprendimai/hostledger/internal/server/ingest"
	"github.com/nats-io/nats.go"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

func main() {
	cmd := &cli.Command{
		Name:  "inventory-server",
		Usage: "Client, computer and port inventory service.",
		Commands: []*cli.Command{
			{
				Name:  "start",
				Usage: "Start the HTTP API and the NATS report ingest",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "config", Usage: "Path to a YAML config file"},
					&cli.StringFlag{Name: "http-addr", Value: "127.0.0.1:57935", Usage: "HTTP server bind address"},
					&cli.StringFlag{Name: "db-path", Value: "inventory.db", Usage: "Path to the SQLite database file"},
					&cli.BoolFlag{Name: "nats", Value: true, Usage: "Publish change events and accept reports over NATS"},
					&cli.BoolFlag{Name: "nats-embedded", Value: true, Usage: "Run an embedded NATS server"},
					&cli.StringFlag{Name: "nats-addr", Value: "127.0.0.1:4222", Usage: "Embedded NATS bind address (host:port)"},
					&cli.StringFlag{Name: "nats-url", Usage: "External NATS server URL, used when not embedded"},
					&cli.StringFlag{Name: "log-level", Value: "info", Usage: "Log level (debug, info, warn, error)"},
				},
				Action: runServer,
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

func loadConfig(cmd *cli.Command) (config.Config, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return cfg, err
	}
	if cmd.IsSet("http-addr") {
		cfg.HTTP.Addr = cmd.String("http-addr")
	}
	if cmd.IsSet("db-path") {
		cfg.Database.Path = cmd.String("db-path")
	}
	if cmd.IsSet("nats") {
		cfg.NATS.Enabled = cmd.Bool("nats")
	}
	if cmd.IsSet("nats-embedded") {
		cfg.NATS.Embedded = cmd.Bool("nats-embedded")
	}
	if cmd.IsSet("nats-addr") {
		cfg.NATS.Addr = cmd.String("nats-addr")
	}
	if cmd.IsSet("nats-url") {
		cfg.NATS.URL = cmd.String("nats-url")
	}
	if cmd.IsSet("log-level") {
		cfg.Log.Level = cmd.String("log-level")
	}
	return cfg, cfg.Validate()
}

func runServer(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := logging.New(cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting inventory server")

	// 1. Initialize Database
	gormDB, err := db.NewDatabase(cfg.Database.Path, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	if sqlDB, err := gormDB.DB(); err == nil {
		defer sqlDB.Close()
	}
	store := db.NewStore(gormDB)

	// 2. Connect NATS (events out, reports in)
	var notifier inventory.Notifier
	var nc *nats.Conn
	if cfg.NATS.Enabled {
		natsURL := cfg.NATS.URL
		if cfg.NATS.Embedded {
			ns, err := messaging.StartEmbedded(cfg.NATS.Addr)
			if err != nil {
				return err
			}
			defer ns.Shutdown()
			natsURL = ns.ClientURL()
			logger.Info("embedded NATS server started", zap.String("addr", cfg.NATS.Addr))
		}

		nc, err = messaging.Connect(natsURL, "inventory-server", logger)
		if err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		defer nc.Close()
		notifier = messaging.NewPublisher(nc, logger)
	}

	inv := inventory.NewService(store, notifier, logger)

	// 3. Subscribe to reports
	if nc != nil {
		ingestSvc := ingest.NewService(nc, inv, logger)
		if err := ingestSvc.Start(); err != nil {
			return err
		}
		defer ingestSvc.Stop()
	}

	// 4. Start HTTP Server
	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.NewRouter(inv, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTP.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

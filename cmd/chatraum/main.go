// chatraum is the chat room server: a single shared room over websockets
// with SQLite-backed history.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/codefionn/chatraum/internal/config"
	"github.com/codefionn/chatraum/internal/logger"
	"github.com/codefionn/chatraum/internal/server"
	"github.com/codefionn/chatraum/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", "", "path to JSON config file")
		addr       = flag.String("addr", "", "listen address (overrides config)")
		dbPath     = flag.String("db", "", "SQLite database path (overrides config)")
		logLevel   = flag.String("log-level", "", "log level: debug, info, warn, error, none")
		logPath    = flag.String("log-path", "", "log file (default: stderr)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *dbPath != "" {
		cfg.DatabasePath = *dbPath
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *logPath != "" {
		cfg.LogPath = *logPath
	}

	level := logger.ParseLevel(cfg.LogLevel)
	var log *logger.Logger
	if cfg.LogPath != "" {
		log, err = logger.NewFile(level, cfg.LogPath, "")
		if err != nil {
			return err
		}
		defer log.Close()
	} else {
		log = logger.New(level, os.Stderr, "")
	}
	logger.SetGlobal(log)

	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open message store: %w", err)
	}
	defer st.Close()

	srv := server.New(cfg, st)
	if err := srv.Start(); err != nil {
		return err
	}

	logger.Info("chatraum listening on %s (db: %s)", srv.Addr(), cfg.DatabasePath)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received %s, shutting down", sig)

	return srv.Stop()
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/defistate/vault-ledger-go/cmd/ledger/config"
	"github.com/defistate/vault-ledger-go/store"
	"github.com/defistate/vault-ledger-go/vault"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to the configuration file.")
	opsPath := flag.String("ops", "", "Path to a JSON file of ops to replay. Reads stdin if empty.")
	flag.Parse()

	close := func() {
		os.Exit(1)
	}

	log.Printf("Loading configuration from: %s", *configPath)
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		close()
	}

	rootLogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	prometheusRegistry := prometheus.DefaultRegisterer

	// Create a context that cancels when the OS sends an interrupt (Ctrl+C) or termination signal.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := openStore(cfg.Store)
	if err != nil {
		rootLogger.Error("Failed to open store", "path", cfg.Store.Path, "error", err)
		close()
	}
	defer s.Close()

	blocks := vault.NewBlockCounter(cfg.StartBlock)
	v, err := vault.NewVault(&vault.Config{
		Store:    s,
		Blocks:   blocks,
		Logger:   rootLogger.With("component", "vault"),
		Registry: prometheusRegistry,
	})
	if err != nil {
		rootLogger.Error("Failed to initialize vault", "error", err)
		close()
	}

	if cfg.MetricsAddr != "" {
		server := &http.Server{Addr: cfg.MetricsAddr, Handler: promhttp.Handler()}
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				rootLogger.Error("Metrics server stopped", "error", err)
			}
		}()
		defer server.Shutdown(context.Background())
		rootLogger.Info("Serving metrics", "addr", cfg.MetricsAddr)
	}

	in := os.Stdin
	if *opsPath != "" {
		f, err := os.Open(*opsPath)
		if err != nil {
			rootLogger.Error("Failed to open ops", "path", *opsPath, "error", err)
			close()
		}
		defer f.Close()
		in = f
	}
	ops, err := DecodeOps(in)
	if err != nil {
		rootLogger.Error("Failed to read ops", "error", err)
		close()
	}

	failed := newReplayer(v, blocks, rootLogger.With("component", "replay")).run(ops)
	rootLogger.Info("Replay finished", "ops", len(ops), "failed", failed, "block", blocks.BlockNumber())

	snapshot, err := v.Snapshot()
	if err != nil {
		rootLogger.Error("Failed to build snapshot", "error", err)
		close()
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snapshot); err != nil {
		rootLogger.Error("Failed to write snapshot", "error", err)
		close()
	}

	if cfg.MetricsAddr != "" {
		// keep serving metrics until interrupted
		<-ctx.Done()
	}
}

func openStore(cfg config.StoreConfig) (store.Store, error) {
	if cfg.Path == "" {
		return store.OpenInMemoryLevelDB()
	}
	return store.OpenLevelDB(cfg.Path, cfg.ReadOnly)
}

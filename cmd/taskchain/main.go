// Command taskchain runs the sync daemon for one chain: it hydrates the
// local store and keeps it reconciled with the remote blob.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/uledev/taskchain/internal/config"
	"github.com/uledev/taskchain/internal/keychain"
	"github.com/uledev/taskchain/internal/store"
	"github.com/uledev/taskchain/internal/store/sqlite"
	"github.com/uledev/taskchain/internal/syncer"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	genPhrase := flag.Bool("generate-phrase", false, "print a fresh recovery phrase and exit")
	phraseFile := flag.String("phrase-file", "", "file containing the recovery phrase (required)")
	serverURL := flag.String("server", "", "sync server URL (overrides TASKCHAIN_SERVER_URL)")
	dbPath := flag.String("db", "", "local database path (overrides TASKCHAIN_DB_PATH)")
	flag.Parse()

	if *genPhrase {
		phrase, err := keychain.NewPhrase()
		if err != nil {
			fmt.Fprintln(os.Stderr, "generate phrase:", err)
			os.Exit(1)
		}
		fmt.Println(phrase)
		return
	}

	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
	)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	if *serverURL != "" {
		cfg.ServerURL = *serverURL
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}

	if *phraseFile == "" {
		logger.Fatal("missing recovery phrase (--phrase-file)")
	}
	raw, err := os.ReadFile(*phraseFile)
	if err != nil {
		logger.Fatal("read phrase file", zap.Error(err))
	}
	keys, err := keychain.Derive(strings.TrimSpace(string(raw)))
	if err != nil {
		logger.Fatal("derive keypair", zap.Error(err))
	}
	logger.Info("chain", zap.String("publicKey", keys.PublicKeyHex()))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, err := sqlite.Open(ctx, cfg.DBPath)
	if err != nil {
		logger.Fatal("open local db", zap.Error(err))
	}
	defer repo.Close()

	st := store.New(repo, logger)
	client := syncer.NewClient(cfg.ServerURL, keys, st, nil, logger)
	sched := syncer.NewScheduler(client, st, nil, syncer.SchedulerConfig{
		PullInterval: cfg.PullInterval,
		PushDebounce: cfg.PushDebounce,
		PullDebounce: cfg.PullDebounce,
	}, logger)

	// Sync failing to start must not take the process down.
	if err := sched.Start(ctx); err != nil {
		logger.Warn("sync disabled", zap.Error(err))
	}
	defer sched.Stop()

	// SIGUSR1 pokes the scheduler the way a regained window focus would.
	poke := make(chan os.Signal, 1)
	signal.Notify(poke, syscall.SIGUSR1)
	for {
		select {
		case <-ctx.Done():
			logger.Info("shutdown complete")
			return
		case <-poke:
			sched.NotifyActive()
		}
	}
}

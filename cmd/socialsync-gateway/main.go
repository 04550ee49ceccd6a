package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/RyanW02/chainsocial/internal/config"
	"github.com/RyanW02/chainsocial/internal/logging"
	"github.com/RyanW02/chainsocial/internal/server"
	"github.com/RyanW02/chainsocial/pkg/broadcast"
	"github.com/RyanW02/chainsocial/pkg/journal"
	"github.com/RyanW02/chainsocial/pkg/ledger/chain"
	"github.com/RyanW02/chainsocial/pkg/session"
	"github.com/RyanW02/chainsocial/pkg/socialclient"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := logging.Build(cfg)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	shutdownOrchestrator := broadcast.NewErrorWaitChannel()

	ledgerClient, err := chain.Dial(cfg.Ledger, logger.With(zap.String("module", "ledger")))
	if err != nil {
		logger.Fatal("Failed to connect to ledger nodes", zap.Error(err))
	}
	defer ledgerClient.Close()

	j := openJournal(cfg, logger)
	defer j.Close(context.Background())

	client := socialclient.New(cfg, logger.With(zap.String("module", "social")), ledgerClient, j)

	// Resume the configured identity straight away if its key exists, otherwise wait for POST /session
	if _, err := os.Stat(cfg.Client.KeyFile); err == nil {
		connect(cfg, logger, client)
	}

	httpServer := server.NewServer(cfg, logger.With(zap.String("module", "server")), client, shutdownOrchestrator)

	go func() {
		if err := httpServer.Run(); err != nil {
			logger.Fatal("Failed to run HTTP server", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	<-stop

	logger.Info("Received shutdown signal!")

	if err := shutdownOrchestrator.Await(time.Second * 5); err != nil {
		logger.Error("Failed to close stream connections", zap.Error(err))
	} else {
		logger.Info("Stream connections closed successfully")
	}

	client.Disconnect()
}

func connect(cfg config.Config, logger *zap.Logger, client *socialclient.Client) {
	key, err := session.LoadKey(cfg.Client.KeyFile)
	if err != nil {
		logger.Error("Failed to load private key", zap.Error(err), zap.String("key_file", cfg.Client.KeyFile))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*15)
	defer cancel()

	active, err := client.Connect(ctx, key)
	if err != nil {
		logger.Error("Failed to connect session", zap.Error(err))
		return
	}

	logger.Info("Session connected", zap.String("identity", active.Session.Identity().String()))
}

func openJournal(cfg config.Config, logger *zap.Logger) journal.Journal {
	if !cfg.Journal.Enabled {
		logger.Info("Write journal disabled, pending writes will not survive a restart")
		return journal.NewNoopJournal()
	}

	j, err := journal.NewLevelDBJournal(cfg.Journal.Path)
	if err != nil {
		logger.Fatal("Failed to open write journal", zap.Error(err), zap.String("path", cfg.Journal.Path))
	}

	return j
}

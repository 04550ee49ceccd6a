package main

import (
	"context"
	"errors"

	"github.com/RyanW02/chainsocial/internal/cli"
	"github.com/RyanW02/chainsocial/internal/config"
	"github.com/RyanW02/chainsocial/internal/logging"
	"github.com/RyanW02/chainsocial/internal/prompt"
	"github.com/RyanW02/chainsocial/pkg/journal"
	"github.com/RyanW02/chainsocial/pkg/ledger/chain"
	"github.com/RyanW02/chainsocial/pkg/socialclient"
	"github.com/manifoldco/promptui"
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

	ledgerClient, err := chain.Dial(cfg.Ledger, logger.With(zap.String("module", "ledger")))
	if err != nil {
		logger.Fatal("Failed to connect to ledger nodes", zap.Error(err))
	}
	defer ledgerClient.Close()

	j := openJournal(cfg, logger)
	defer j.Close(context.Background())

	client := cli.Client{
		Config: cfg,
		Logger: logger,
		Social: socialclient.New(cfg, logger.With(zap.String("module", "social")), ledgerClient, j),
	}
	defer client.Social.Disconnect()

	for {
		if err := client.OpenMainMenu(); err != nil {
			// Deferred closes flush the journal, so return rather than exit
			if errors.Is(err, promptui.ErrInterrupt) {
				return
			} else {
				if err := prompt.Display("Error", err.Error()); err != nil {
					panic(err)
				}
			}
		}
	}
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

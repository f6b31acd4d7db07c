package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"lendledger/config"
	"lendledger/native/lending"
	"lendledger/observability"
	"lendledger/observability/logging"
	"lendledger/rpc"
	"lendledger/state"
	"lendledger/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	logger := logging.Setup("lendledgerd", cfg.Env)

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	store := state.NewLedgerStore(db)
	journal := state.NewEventJournal(db)

	engine := lending.NewEngine()
	engine.SetState(store)
	engine.SetEmitter(observability.NewSinkEmitter(logger, journal))

	if err := bootstrap(engine, cfg, logger); err != nil {
		logger.Error("Failed to bootstrap ledger", slog.Any("error", err))
		os.Exit(1)
	}

	server := rpc.NewServer(engine, logger)
	logger.Info("ledger daemon ready",
		slog.String("network", cfg.NetworkName),
		slog.String("rpc", cfg.RPCAddress),
		slog.String("data_dir", cfg.DataDir),
	)
	if err := server.Start(cfg.RPCAddress); err != nil {
		logger.Error("RPC server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

// bootstrap creates the ledger on first start. Subsequent starts observe the
// durable ledger and skip creation.
func bootstrap(engine *lending.Engine, cfg *config.Config, logger *slog.Logger) error {
	initialized, err := engine.Initialized()
	if err != nil {
		return err
	}
	if initialized {
		logger.Info("ledger already initialised, skipping bootstrap")
		return nil
	}

	admin, model, asset, err := cfg.BootstrapAddresses()
	if err != nil {
		return err
	}
	if admin.IsZero() {
		return fmt.Errorf("ledger.Admin must be configured for first start")
	}
	if err := engine.Initialize(model, asset, admin); err != nil {
		return err
	}
	logger.Info("ledger initialised",
		slog.String("admin", admin.String()),
	)
	return nil
}

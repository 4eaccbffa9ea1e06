package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/GravitonINC/xeenon-tokens-mcp-server/internal/apiserver"
	"github.com/GravitonINC/xeenon-tokens-mcp-server/internal/catalog"
	"github.com/GravitonINC/xeenon-tokens-mcp-server/internal/config"
	"github.com/GravitonINC/xeenon-tokens-mcp-server/internal/logging"
	"github.com/GravitonINC/xeenon-tokens-mcp-server/internal/mayflower"
	"github.com/GravitonINC/xeenon-tokens-mcp-server/internal/metrics"
	"github.com/GravitonINC/xeenon-tokens-mcp-server/internal/position"
	"github.com/GravitonINC/xeenon-tokens-mcp-server/internal/tools"
	"github.com/GravitonINC/xeenon-tokens-mcp-server/internal/txn"
	"github.com/GravitonINC/xeenon-tokens-mcp-server/internal/wallet"
	"github.com/gagliardetto/solana-go/rpc"
	_ "github.com/joho/godotenv/autoload"
)

func main() {
	bootstrapLogger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.LoadToolServerConfig()
	if err != nil {
		bootstrapLogger.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	logger, closeLogger, err := logging.New("tools-server", cfg.Log)
	if err != nil {
		bootstrapLogger.Error("failed to initialize logger", "err", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := closeLogger(); closeErr != nil {
			bootstrapLogger.Error("failed to close logger", "err", closeErr)
		}
	}()

	if source, sourceErr := config.CurrentSource(); sourceErr == nil {
		logger.Info("configuration loaded", "phase", source.Phase, "path", source.Path, "loaded", source.Loaded)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("tools-server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.ToolServerConfig, logger *slog.Logger) error {
	key, err := wallet.LoadKey(cfg.Solana.PrivateKey, cfg.Solana.KeypairPath)
	if err != nil {
		return err
	}
	logger.Info("wallet loaded", "public_key", key.PublicKey())

	catalogClient, err := catalog.NewClient(catalog.Config{
		BaseURL:           cfg.Catalog.BaseURL,
		APIKey:            cfg.Catalog.APIKey,
		Timeout:           cfg.Catalog.Timeout,
		RequestsPerMinute: float64(cfg.Catalog.RequestsPerMinute),
	})
	if err != nil {
		return err
	}

	var feeTier txn.FeeTier
	if !cfg.Tx.PriorityFeeDisabled {
		if feeTier, err = txn.ParseFeeTier(cfg.Tx.PriorityFeeTier); err != nil {
			return err
		}
	}

	m := metrics.New()
	rpcClient := rpc.New(cfg.Solana.RPCURL)
	submitter := txn.NewSubmitter(txn.Config{
		Commitment:         cfg.Solana.Commitment,
		SkipPreflight:      cfg.Tx.SkipPreflight,
		SubmitRetries:      cfg.Tx.SubmitRetries,
		NodeMaxRetries:     cfg.Tx.NodeMaxRetries,
		DefaultPriorityFee: cfg.Tx.DefaultPriorityFee,
		ComputeUnitLimit:   cfg.Tx.ComputeUnitLimit,
	}, rpcClient, key, txn.NewHeliusEstimator(cfg.Tx.PriorityFeeEndpoint, cfg.Tx.PriorityFeeTimeout), m, logger)

	toolService, err := tools.New(tools.Config{
		Programs: position.ProgramIDs{
			Xeenon:    cfg.Programs.XeenonProgramID,
			Mayflower: cfg.Programs.MayflowerProgramID,
			MintMain:  cfg.Programs.CrediezMint,
			Tenant:    cfg.Programs.Tenant,
		},
		MainDecimals:   cfg.Programs.CrediezDecimals,
		ExplorerURL:    cfg.Tx.ExplorerURL,
		FeePolicy:      txn.FeePolicy{Disabled: cfg.Tx.PriorityFeeDisabled, Tier: feeTier},
		ConfirmTimeout: cfg.Tx.ConfirmTimeout,
		PollInterval:   cfg.Tx.ConfirmPollInterval,
	}, tools.Deps{
		Catalog:   catalogClient,
		Positions: position.NewSyncer(rpcClient, cfg.Solana.Commitment),
		Markets:   mayflower.NewClient(cfg.Programs.MayflowerProgramID, rpcClient, cfg.Solana.Commitment),
		Submitter: submitter,
	}, m, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return apiserver.New(cfg.Server, toolService, m, logger).Run(ctx)
}

package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"math/big"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ruteri/people-registry/cmd/flags"
	"github.com/ruteri/people-registry/httpserver"
	"github.com/ruteri/people-registry/interfaces"
	"github.com/ruteri/people-registry/ledger"
	"github.com/ruteri/people-registry/registry"
	"github.com/ruteri/people-registry/storage"
	"github.com/urfave/cli/v2"
)

var (
	flagListenAddr = &cli.StringFlag{
		Name:    "listen-addr",
		Value:   "127.0.0.1:8080",
		Usage:   "address to listen on for API",
		EnvVars: flags.EnvVars("listen-addr"),
	}
	flagConfig = &cli.StringFlag{
		Name:    "config",
		Usage:   "TOML file with registry settings; flags override it",
		EnvVars: flags.EnvVars("config"),
	}
	flagOwner = &cli.StringFlag{
		Name:    "owner",
		Usage:   "address allowed to delete records and withdraw funds",
		EnvVars: flags.EnvVars("owner"),
	}
	flagMinFee = &cli.StringFlag{
		Name:    "min-fee",
		Usage:   "minimum registration payment, e.g. 1ether or 1000000000000000000",
		EnvVars: flags.EnvVars("min-fee"),
	}
	flagSeniorAge = &cli.UintFlag{
		Name:    "senior-age",
		Usage:   "age from which records are flagged as senior",
		EnvVars: flags.EnvVars("senior-age"),
	}
	flagMaxAge = &cli.UintFlag{
		Name:    "max-age",
		Usage:   "largest accepted age",
		EnvVars: flags.EnvVars("max-age"),
	}
	flagLedger = &cli.StringFlag{
		Name:    "ledger",
		Usage:   "value transfer mechanism: 'memory' or 'onchain'",
		EnvVars: flags.EnvVars("ledger"),
	}
	flagCustodyKey = &cli.StringFlag{
		Name:    "custody-key",
		Usage:   "hex-encoded private key of the custody account (onchain ledger)",
		EnvVars: flags.EnvVars("custody-key"),
	}
	flagCustodyKeystore = &cli.StringFlag{
		Name:    "custody-keystore",
		Usage:   "encrypted JSON key file of the custody account (onchain ledger)",
		EnvVars: flags.EnvVars("custody-keystore"),
	}
	flagCustodyPassword = &cli.StringFlag{
		Name:    "custody-password",
		Usage:   "password of the custody keystore",
		EnvVars: flags.EnvVars("custody-password"),
	}
	flagStorage = &cli.StringSliceFlag{
		Name:    "storage",
		Usage:   "state storage URI, repeatable; the first is the primary (file://, s3://, ipfs://, vault://, redis://, postgres://); onchain ledger only",
		EnvVars: flags.EnvVars("storage"),
	}
	flagDevFund = &cli.StringSliceFlag{
		Name:  "dev-fund",
		Usage: "credit an account of the memory ledger at startup, as address=amount (repeatable); the memory ledger keeps no state across restarts and refuses --storage",
	}
	flagAuthWindow = &cli.DurationFlag{
		Name:    "auth-window",
		Usage:   "accepted clock skew of signed requests",
		EnvVars: flags.EnvVars("auth-window"),
	}
)

func main() {
	app := &cli.App{
		Name:  "people-registry",
		Usage: "Serve the people registry API",
		Flags: append([]cli.Flag{
			flagListenAddr,
			flagConfig,
			flagOwner,
			flagMinFee,
			flagSeniorAge,
			flagMaxAge,
			flagLedger,
			flags.RpcAddrFlag,
			flagCustodyKey,
			flagCustodyKeystore,
			flagCustodyPassword,
			flagStorage,
			flagDevFund,
			flagAuthWindow,
		}, flags.CommonFlags...),
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(cCtx *cli.Context) error {
	logger := flags.SetupLogger(cCtx)

	cfg, err := loadConfig(cCtx)
	if err != nil {
		logger.Error("Invalid configuration", "err", err)
		return err
	}

	ctx, cancel := context.WithTimeout(cCtx.Context, time.Minute)
	defer cancel()

	store, err := setupStorage(cfg.Storage, logger)
	if err != nil {
		logger.Error("Failed to set up state storage", "err", err)
		return err
	}

	l, err := setupLedger(ctx, cCtx, cfg, store, logger)
	if err != nil {
		logger.Error("Failed to set up ledger", "ledger", cfg.Ledger, "err", err)
		return err
	}

	reg, err := registry.New(registry.Config{
		Owner:    cfg.Owner,
		Params:   cfg.Params,
		Treasury: l,
		Store:    store,
		Log:      logger,
	})
	if err != nil {
		logger.Error("Failed to create registry", "err", err)
		return err
	}
	if err := reg.Restore(ctx); err != nil {
		logger.Error("Failed to restore registry state", "err", err)
		return err
	}

	logger.Info("Registry ready",
		"owner", cfg.Owner.Hex(),
		"minFee", interfaces.FormatAmount(cfg.Params.MinFee),
		"seniorAge", cfg.Params.SeniorAge,
		"maxAge", cfg.Params.MaxAge,
		"ledger", l.Name(),
		"records", reg.Count())

	handler := httpserver.NewHandler(reg, l, httpserver.NewAuthenticator(cfg.AuthWindow, logger), logger)
	server, err := httpserver.New(flags.ConfigureServer(cCtx, logger, cCtx.String(flagListenAddr.Name)), handler)
	if err != nil {
		logger.Error("Failed to create server", "err", err)
		return err
	}
	server.RunInBackground()

	// Wait for termination signal
	exit := make(chan os.Signal, 1)
	signal.Notify(exit, os.Interrupt, syscall.SIGTERM)

	logger.Info("Server is running, press Ctrl+C to stop")
	<-exit
	logger.Info("Shutdown signal received")

	server.Shutdown()
	logger.Info("Server shutdown complete")
	return nil
}

// loadConfig reads the config file and applies the flags that were set.
func loadConfig(cCtx *cli.Context) (flags.RegistryConfig, error) {
	cfg, err := flags.LoadRegistryConfig(cCtx.String(flagConfig.Name))
	if err != nil {
		return cfg, err
	}

	if cCtx.IsSet(flagOwner.Name) {
		if cfg.Owner, err = interfaces.NewIdentityFromHex(cCtx.String(flagOwner.Name)); err != nil {
			return cfg, err
		}
	}
	if cCtx.IsSet(flagMinFee.Name) {
		if cfg.Params.MinFee, err = interfaces.ParseAmount(cCtx.String(flagMinFee.Name)); err != nil {
			return cfg, fmt.Errorf("min-fee: %w", err)
		}
	}
	if cCtx.IsSet(flagSeniorAge.Name) {
		if cfg.Params.SeniorAge, err = flags.Uint32(cCtx, flagSeniorAge.Name); err != nil {
			return cfg, err
		}
	}
	if cCtx.IsSet(flagMaxAge.Name) {
		if cfg.Params.MaxAge, err = flags.Uint32(cCtx, flagMaxAge.Name); err != nil {
			return cfg, err
		}
	}
	if cCtx.IsSet(flagLedger.Name) {
		cfg.Ledger = cCtx.String(flagLedger.Name)
	}
	if cCtx.IsSet(flags.RpcAddrFlag.Name) {
		cfg.RPCAddr = cCtx.String(flags.RpcAddrFlag.Name)
	}
	if cCtx.IsSet(flagStorage.Name) {
		cfg.Storage = cCtx.StringSlice(flagStorage.Name)
	}
	if cCtx.IsSet(flagAuthWindow.Name) {
		cfg.AuthWindow = cCtx.Duration(flagAuthWindow.Name)
	}

	return cfg, cfg.Validate()
}

// setupStorage returns nil when no storage is configured, leaving the registry in memory only.
func setupStorage(uris []string, logger *slog.Logger) (interfaces.StateStore, error) {
	if len(uris) == 0 {
		logger.Warn("No state storage configured, registry state will not survive restarts")
		return nil, nil
	}

	locations := make([]interfaces.StateStoreLocation, 0, len(uris))
	for _, uri := range uris {
		loc, err := interfaces.NewStateStoreLocation(uri)
		if err != nil {
			return nil, err
		}
		locations = append(locations, loc)
	}

	return storage.NewStorageBackendFactory(logger).CreateMultiBackend(locations)
}

func setupLedger(ctx context.Context, cCtx *cli.Context, cfg flags.RegistryConfig, store interfaces.StateStore, logger *slog.Logger) (interfaces.Ledger, error) {
	switch cfg.Ledger {
	case flags.LedgerOnchain:
		key, err := flags.LoadPrivateKey(
			cCtx.String(flagCustodyKey.Name),
			cCtx.String(flagCustodyKeystore.Name),
			cCtx.String(flagCustodyPassword.Name),
		)
		if err != nil {
			return nil, fmt.Errorf("custody key: %w", err)
		}

		logger.Info("Connecting to Ethereum RPC", "address", cfg.RPCAddr)
		ethClient, err := ethclient.DialContext(ctx, cfg.RPCAddr)
		if err != nil {
			return nil, fmt.Errorf("failed to dial RPC: %w", err)
		}
		return ledger.NewOnchainLedger(ctx, ethClient, key, store, logger)

	default:
		mem := ledger.NewMemoryLedger(logger)
		for _, entry := range cCtx.StringSlice(flagDevFund.Name) {
			id, amount, err := parseDevFund(entry)
			if err != nil {
				return nil, err
			}
			mem.Deposit(id, amount)
			logger.Info("Funded development account", "account", id.Hex(), "amount", interfaces.FormatAmount(amount))
		}
		return mem, nil
	}
}

func parseDevFund(entry string) (interfaces.Identity, *big.Int, error) {
	addr, amountStr, ok := strings.Cut(entry, "=")
	if !ok {
		return interfaces.Identity{}, nil, fmt.Errorf("invalid dev-fund %q: expected address=amount", entry)
	}
	id, err := interfaces.NewIdentityFromHex(strings.TrimSpace(addr))
	if err != nil {
		return interfaces.Identity{}, nil, fmt.Errorf("invalid dev-fund %q: %w", entry, err)
	}
	amount, err := interfaces.ParseAmount(amountStr)
	if err != nil {
		return interfaces.Identity{}, nil, fmt.Errorf("invalid dev-fund %q: %w", entry, err)
	}
	return id, amount, nil
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"veritasor/config"
	"veritasor/core/events"
	"veritasor/core/state"
	"veritasor/native/attest"
	"veritasor/native/bonds"
	"veritasor/observability/logging"
	"veritasor/rpc"
	"veritasor/storage"
)

const (
	envName     = "VERITASOR_ENV"
	rpcTokenEnv = "VERITASOR_RPC_TOKEN"
)

// attestationBridge adapts the attestation engine to the lookup interface the
// bond engine consults during redemptions and dispute intake.
type attestationBridge struct {
	engine *attest.Engine
}

func (b attestationBridge) HasAttestation(business [20]byte, period string) (bool, error) {
	_, ok, err := b.engine.Get(business, period)
	return ok, err
}

func (b attestationBridge) IsRevoked(business [20]byte, period string) (bool, error) {
	return b.engine.IsRevoked(business, period)
}

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	inMemory := flag.Bool("memdb", false, "DEV ONLY: run against an in-memory database")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv(envName))
	logger := logging.Setup("veritasord", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Error("Failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	var db storage.Database
	if *inMemory {
		db = storage.NewMemDB()
	} else {
		leveldb, err := storage.NewLevelDB(cfg.DataDir)
		if err != nil {
			logger.Error("Failed to open database", slog.String("dir", cfg.DataDir), slog.Any("error", err))
			os.Exit(1)
		}
		db = leveldb
	}
	defer db.Close()

	manager := state.NewManager(db)
	if !manager.TokenExists(cfg.TokenSymbol) {
		if err := manager.RegisterToken(cfg.TokenSymbol, cfg.TokenName, cfg.TokenDecimals); err != nil {
			logger.Error("Failed to register settlement token", slog.Any("error", err))
			os.Exit(1)
		}
	}

	admin, err := cfg.Admin()
	if err != nil {
		logger.Error("Invalid admin address", slog.Any("error", err))
		os.Exit(1)
	}

	attestEngine := attest.NewEngine()
	attestEngine.SetState(manager)
	bondEngine := bonds.NewEngine()
	bondEngine.SetState(manager)
	bondEngine.SetAttestationSource(attestationBridge{engine: attestEngine})

	emitter := events.LogEmitter{Logger: logger}
	attestEngine.SetEmitter(emitter)
	bondEngine.SetEmitter(emitter)

	firstBoot := false
	if err := attestEngine.Initialize(admin); err != nil {
		if !errors.Is(err, attest.ErrAlreadyInitialized) {
			logger.Error("Failed to initialize attestation registry", slog.Any("error", err))
			os.Exit(1)
		}
	} else {
		firstBoot = true
	}
	if err := bondEngine.Initialize(admin); err != nil && !errors.Is(err, bonds.ErrAlreadyInitialized) {
		logger.Error("Failed to initialize bond registry", slog.Any("error", err))
		os.Exit(1)
	}

	// Genesis balances are seeded exactly once, on the boot that performed the
	// admin bootstrap.
	if firstBoot {
		balances, err := cfg.Balances()
		if err != nil {
			logger.Error("Invalid genesis balances", slog.Any("error", err))
			os.Exit(1)
		}
		for addr, amount := range balances {
			if err := manager.SetBalance(addr[:], cfg.TokenSymbol, amount); err != nil {
				logger.Error("Failed to seed genesis balance", slog.Any("error", err))
				os.Exit(1)
			}
		}
		if len(balances) > 0 {
			logger.Info("Seeded genesis balances", slog.Int("accounts", len(balances)))
		}
	}

	authToken := strings.TrimSpace(os.Getenv(rpcTokenEnv))
	if authToken == "" {
		authToken = cfg.RPCAuthToken
	}
	if strings.TrimSpace(authToken) == "" {
		logger.Warn("No RPC auth token configured; mutating RPC methods will be rejected")
	}

	server := rpc.NewServer(attestEngine, bondEngine, authToken, logger)
	httpServer := &http.Server{
		Addr:              cfg.RPCAddress,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting JSON-RPC server",
			slog.String("addr", cfg.RPCAddress),
			slog.String("network", cfg.NetworkName))
		errCh <- httpServer.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		logger.Info("Shutting down", slog.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			logger.Error("Shutdown failed", slog.Any("error", err))
			os.Exit(1)
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("RPC server failed", slog.Any("error", err))
			os.Exit(1)
		}
	}
	fmt.Println("veritasord stopped")
}

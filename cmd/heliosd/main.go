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

	"helios/config"
	"helios/core"
	"helios/crypto"
	"helios/native/pricefeed"
	"helios/observability/logging"
	"helios/observability/metrics"
	"helios/rpc"
	"helios/storage"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const keystorePassEnv = "HELIOS_KEYSTORE_PASS"

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	logger := logging.Setup("heliosd", cfg.Env, logging.Options{FilePath: cfg.LogFile})

	passphrase := strings.TrimSpace(os.Getenv(keystorePassEnv))
	operatorKey, err := crypto.LoadFromKeystore(cfg.OperatorKeystorePath, passphrase)
	if err != nil {
		panic(fmt.Sprintf("Failed to load operator key: %v", err))
	}
	operator := operatorKey.PubKey().Address()

	funder, err := cfg.Funder(operator)
	if err != nil {
		panic(fmt.Sprintf("Failed to resolve funder address: %v", err))
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	stages, err := cfg.SaleStages()
	if err != nil {
		panic(fmt.Sprintf("Failed to parse sale stages: %v", err))
	}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	ledger, err := core.NewLedger(db, core.Params{
		Stages:             stages,
		SaleCapUnits:       cfg.SaleCap(),
		MinPurchaseUSD:     cfg.MinPurchase(),
		SaleInventoryUnits: cfg.SaleInventory(),
		FunderGrantUnits:   cfg.FunderGrant(),
		Plans:              cfg.StakingPlans(),
		Funder:             funder,
		Feed:               pricefeed.NewManualFeed(),
		OracleMaxAge:       cfg.OracleMaxAge(),
	}, logger, m)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialise ledger: %v", err))
	}

	logger.Info("ledger initialised",
		"network", cfg.NetworkName,
		"operator", operator.String(),
		"funder", funder.String(),
		"dataDir", cfg.DataDir)

	rpcServer := rpc.NewServer(ledger, logger, m)
	rpcErrCh := make(chan error, 1)
	go func() {
		rpcErrCh <- rpcServer.Start(cfg.RPCAddress)
	}()

	opsServer := newOpsServer(cfg.OpsAddress, registry)
	opsErrCh := make(chan error, 1)
	go func() {
		err := opsServer.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		opsErrCh <- err
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-rpcErrCh:
		if err != nil {
			logger.Error("RPC server terminated", slog.Any("error", err))
		}
	case err := <-opsErrCh:
		if err != nil {
			logger.Error("ops server terminated", slog.Any("error", err))
		}
	}

	rpcServer.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = opsServer.Shutdown(shutdownCtx)
	logger.Info("daemon stopped")
}

func newOpsServer(addr string, registry *prometheus.Registry) *http.Server {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	return &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

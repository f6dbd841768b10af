package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"gopkg.in/yaml.v3"

	"github.com/voservices/vospace/internal/logger"
	"github.com/voservices/vospace/pkg/api"
	"github.com/voservices/vospace/pkg/config"
	"github.com/voservices/vospace/pkg/endpoint"
	"github.com/voservices/vospace/pkg/namespace"
	"github.com/voservices/vospace/pkg/transfer"
	"github.com/voservices/vospace/pkg/uws"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default: "+config.GetDefaultConfigPath()+")")
	logLevel := flag.String("log-level", "", "Log level override (DEBUG, INFO, WARN, ERROR)")
	dumpConfig := flag.Bool("dump-config", false, "Print the effective configuration and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}

	if *dumpConfig {
		out, err := yaml.Marshal(cfg)
		if err != nil {
			log.Fatalf("Failed to render configuration: %v", err)
		}
		fmt.Print(string(out))
		return
	}

	logger.SetLevel(cfg.Logging.Level)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fmt.Println("vospaced - distributed storage control plane")
	logger.Info("Log level set to: %s", cfg.Logging.Level)
	logger.Info("Space root: %s", cfg.Space.RootURI)

	st, err := config.CreateStore(ctx, &cfg.Space, &cfg.Store)
	if err != nil {
		log.Fatalf("Failed to create store: %v", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error("Store close error: %v", err)
		}
	}()
	logger.Info("Store initialized: %s", cfg.Store.Type)

	be, err := config.CreateBackend(ctx, &cfg.Backend)
	if err != nil {
		log.Fatalf("Failed to create backend: %v", err)
	}
	logger.Info("Backend initialized: %s", cfg.Backend.Type)

	ns, err := namespace.New(ctx, st, be, cfg.Space.RootURI)
	if err != nil {
		log.Fatalf("Failed to initialize namespace: %v", err)
	}

	ledger := uws.NewLedger(st)
	endpoints := endpoint.NewRegistry(st, cfg.Transfer.EndpointTTL)
	coord := transfer.New(ns, ledger, endpoints, st, config.BuildTables(&cfg.Tables), cfg.Server.BaseURL)

	reconciler := uws.NewReconciler(ledger, cfg.Transfer.ReconcileInterval, coord.Reconcile)
	go reconciler.Run(ctx)
	logger.Info("Reconciler sweeping every %v", cfg.Transfer.ReconcileInterval)

	srv := api.New(api.Config{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, ns, coord, be, nil)

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- srv.Start(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Service is running on %s:%d. Press Ctrl+C to stop.", cfg.Server.Host, cfg.Server.Port)

	select {
	case <-sigChan:
		logger.Info("Shutdown signal received, initiating graceful shutdown...")
		cancel()
		if err := <-serverDone; err != nil && err != context.Canceled {
			logger.Error("Server shutdown error: %v", err)
			os.Exit(1)
		}
		logger.Info("Server stopped gracefully")

	case err := <-serverDone:
		if err != nil {
			logger.Error("Server error: %v", err)
			os.Exit(1)
		}
		logger.Info("Server stopped")
	}
}

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/portalkeeper/portalkeeper/internal/client/api"
	"github.com/portalkeeper/portalkeeper/internal/client/auth"
	"github.com/portalkeeper/portalkeeper/internal/client/cli"
	"github.com/portalkeeper/portalkeeper/internal/client/identity"
	"github.com/portalkeeper/portalkeeper/internal/client/iocli"
	"github.com/portalkeeper/portalkeeper/internal/client/orchestrator"
	"github.com/portalkeeper/portalkeeper/internal/client/portal"
	"github.com/portalkeeper/portalkeeper/internal/client/session"
	"github.com/portalkeeper/portalkeeper/internal/client/storage/boltdb"
	"github.com/portalkeeper/portalkeeper/internal/client/storage/memory"
	"github.com/portalkeeper/portalkeeper/internal/client/verify"
	"github.com/portalkeeper/portalkeeper/internal/config"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Глобальные флаги
	showVersion := flag.Bool("version", false, "Show version information")
	serverURL := flag.String("server", "http://localhost:8080", "Proxy server URL")
	orgSlug := flag.String("org", "default", "Organization slug")
	dbPath := flag.String("db", "portalkeeper-client.db", "Path to local session database")
	configPath := flag.String("config", "config.yaml", "Path to config file")

	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	// Получаем команду
	args := flag.Args()
	if len(args) == 0 {
		cli.PrintUsage()
		os.Exit(1)
	}

	command := args[0]
	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	org, ok := cfg.Organization(*orgSlug)
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown organization: %s\n", *orgSlug)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

	// Durable слот: переживает перезапуски клиента ("remember me").
	durable, err := boltdb.New(ctx, *dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if err := durable.Close(); err != nil {
			logger.Error("failed to close database", slog.Any("error", err))
		}
	}()

	// Ephemeral слот живет ровно один запуск процесса.
	ephemeral := memory.New()
	resolver := session.New(durable, ephemeral, org.Slug)

	apiClient := api.NewClient(*serverURL, org.Slug)
	identityStore := identity.New()

	authService := auth.NewService(apiClient, resolver, identityStore, logger)
	bridge, err := portal.NewBridge(apiClient, resolver, org.CaptivePortal, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up gateway client: %v\n", err)
		os.Exit(1)
	}
	smsService := verify.NewSMSService(apiClient, resolver, identityStore, logger)
	paymentFlow := verify.NewPaymentFlow(apiClient, identityStore, org.Settings, *serverURL, logger)

	orch := orchestrator.New(authService, bridge, smsService, identityStore, resolver, logger)

	app := cli.New(orch, smsService, paymentFlow, *serverURL, iocli.NewStdio())
	app.Run(ctx, command, args[1:])
}

func printVersion() {
	fmt.Printf("PortalKeeper Client\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}

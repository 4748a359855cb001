package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/portalkeeper/portalkeeper/internal/server"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to the organization registry")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	app, err := server.NewApp(*configPath, Version)
	if err != nil {
		fmt.Fprintf(os.Stderr, "portalkeeper: %v\n", err)
		os.Exit(1)
	}

	if err := app.Run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "portalkeeper: %v\n", err)
		os.Exit(1)
	}
}

func printVersion() {
	fmt.Printf("PortalKeeper Session Proxy\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}

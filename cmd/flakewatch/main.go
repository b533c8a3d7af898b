// Copyright 2026 © The Flakewatch Authors
// SPDX-License-Identifier: Apache-2.0

// Package main implements the flakewatch CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jllopis/flakewatch/pkg/config"
	"github.com/jllopis/flakewatch/pkg/telemetry"
)

const version = "0.3.0"

type globalFlags struct {
	ConfigPath string
	Sets       []string
	JSON       bool
	Verbose    bool
	Help       bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	global, args, err := parseGlobalFlags(os.Args[1:])
	if err != nil {
		fatalUsage(err)
	}
	if global.Help || len(args) == 0 {
		printUsage()
		return
	}

	cmd := args[0]
	if cmd == "help" {
		printUsage()
		return
	}
	if cmd == "version" {
		fmt.Println(version)
		return
	}
	if cmd == "init" {
		runInit(args[1:], global)
		return
	}

	cfg, err := config.LoadWithOverrides(global.ConfigPath, global.Sets)
	if err != nil {
		exitWith(err, global.JSON)
	}

	level := cfg.Log.Level
	if global.Verbose {
		level = "debug"
	}
	telemetry.ConfigureSlog(os.Stderr, level, cfg.Log.Format)

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.Init("flakewatch", version, telemetry.Config{
			Exporter:     cfg.Telemetry.Exporter,
			OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
			OTLPInsecure: cfg.Telemetry.OTLPInsecure,
		})
		if err != nil {
			exitWith(err, global.JSON)
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(sctx)
		}()
	}

	switch cmd {
	case "detect":
		runDetect(ctx, global, cfg, args[1:])
	case "report":
		runReport(ctx, global, cfg, args[1:])
	case "mcp":
		runMCP(ctx, global, cfg, args[1:])
	default:
		fatalUsage(fmt.Errorf("unknown command %q", cmd))
	}
}

func parseGlobalFlags(args []string) (globalFlags, []string, error) {
	var flags globalFlags
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			return flags, args[i+1:], nil
		}
		if !strings.HasPrefix(arg, "-") {
			return flags, args[i:], nil
		}
		switch {
		case arg == "-h" || arg == "--help":
			flags.Help = true
			return flags, nil, nil
		case arg == "--json":
			flags.JSON = true
		case arg == "--verbose" || arg == "-v":
			flags.Verbose = true
		case arg == "--config":
			if i+1 >= len(args) {
				return flags, nil, fmt.Errorf("missing value for --config")
			}
			flags.ConfigPath = args[i+1]
			i++
		case strings.HasPrefix(arg, "--config="):
			flags.ConfigPath = strings.TrimPrefix(arg, "--config=")
		case arg == "--set":
			if i+1 >= len(args) {
				return flags, nil, fmt.Errorf("missing value for --set")
			}
			flags.Sets = append(flags.Sets, args[i+1])
			i++
		case strings.HasPrefix(arg, "--set="):
			flags.Sets = append(flags.Sets, strings.TrimPrefix(arg, "--set="))
		default:
			return flags, nil, fmt.Errorf("unknown global flag %q", arg)
		}
	}
	return flags, nil, nil
}

func runInit(args []string, global globalFlags) {
	path := "flakewatch.yaml"
	if len(args) > 0 {
		path = args[0]
	}
	if err := config.WriteDefault(path); err != nil {
		exitWith(err, global.JSON)
	}
	fmt.Printf("wrote %s\n", path)
}

func printUsage() {
	fmt.Println(`flakewatch — flaky test-failure pattern detection

Usage:
  flakewatch [global flags] <command> [args]

Global flags:
  --config <path>      Path to flakewatch.yaml
  --set key=value      Override config (repeatable, wins over file and env)
  --json               JSON output
  --verbose            Debug logging

Commands:
  detect [--days N] [--epsilon F] [--min-points N] [--min-cluster-size N]
         [--max-clusters N] [--distance cosine|euclidean]
         [--store memory|file|sqlite|gcs] [--store-path <path>]
         [--input report.json] [--embedder gemini|mock] [--dry-run]
  report [--limit N]
  mcp
  init [path]
  version
  help

Environment:
  GENAI_API_KEY                   Gemini embedding credential
  GOOGLE_APPLICATION_CREDENTIALS  Cloud store credential
  FLAKEWATCH_*                    Config overrides (e.g. FLAKEWATCH_STORE_ADAPTER)`)
}

func fatalUsage(err error) {
	fmt.Fprintln(os.Stderr, err)
	fmt.Fprintln(os.Stderr, "run 'flakewatch help' for usage")
	os.Exit(exitUsage)
}

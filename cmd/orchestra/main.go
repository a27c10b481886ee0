/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// orchestra runs the multi-agent orchestration bus: the dashboard HTTP
// server, background agent monitor, and optional Telegram bridge
// (`orchestra serve`), or performs a single one-shot LLM completion
// against a natural-language task (`orchestra run "<task>"`).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/marcus-qen/orchestra/internal/app"
	"github.com/marcus-qen/orchestra/internal/config"
	"github.com/marcus-qen/orchestra/internal/llmrun"
	"github.com/marcus-qen/orchestra/internal/telemetry"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "orchestra:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		return serveCmd(nil)
	}
	switch args[0] {
	case "serve":
		return serveCmd(args[1:])
	case "run":
		return runCmd(args[1:])
	case "version":
		fmt.Printf("orchestra %s (commit %s, built %s)\n", version, commit, date)
		return nil
	default:
		return fmt.Errorf("unknown command %q (want serve, run, version)", args[0])
	}
}

func serveCmd(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", os.Getenv("ORCHESTRA_CONFIG"), "path to JSON config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdownTracing, err := telemetry.InitTraceProvider(ctx, cfg.OTLPEndpoint, version)
	if err != nil {
		logger.Warn("tracing disabled: init failed", zap.Error(err))
	} else {
		defer shutdownTracing(context.Background())
	}

	application, err := app.New(ctx, cfg, *configPath, logger)
	if err != nil {
		return fmt.Errorf("assemble app: %w", err)
	}

	logger.Info("orchestra starting",
		zap.String("addr", cfg.ListenAddr),
		zap.String("version", version),
		zap.Bool("telegram", cfg.HasTelegram()),
		zap.Bool("tracing", cfg.OTLPEndpoint != ""),
	)

	return application.Run(ctx)
}

func runCmd(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", os.Getenv("ORCHESTRA_CONFIG"), "path to JSON config file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: orchestra run \"<task>\"")
	}
	task := fs.Arg(0)

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if !cfg.HasLLM() {
		return fmt.Errorf("no LLM provider configured (set llm.provider in config or ORCHESTRA_LLM_PROVIDER)")
	}

	runner, err := llmrun.New(cfg.LLM)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	result, err := runner.Run(ctx, task)
	if err != nil {
		return fmt.Errorf("run task: %w", err)
	}
	fmt.Println(result.Content)
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if level != "" {
		var lvl zap.AtomicLevel
		if err := lvl.UnmarshalText([]byte(level)); err == nil {
			cfg.Level = lvl
		}
	}
	return cfg.Build()
}

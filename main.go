// JarvisBridge - voice conversation orchestrator for hands-free coding
package main

import (
	"bufio"
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/normanking/jarvisbridge/internal/automation"
	"github.com/normanking/jarvisbridge/internal/config"
	"github.com/normanking/jarvisbridge/internal/logging"
	"github.com/normanking/jarvisbridge/internal/session"
)

// Global logger instance
var syslog *logging.Logger

// loadEnvFile loads settings from ~/.jarvisbridge/.env into the process
// environment, without overriding variables already set.
func loadEnvFile() {
	home, err := os.UserHomeDir()
	if err != nil {
		zl := syslog.Zerolog()
		zl.Warn().Err(err).Msg("could not get home directory")
		return
	}

	envPath := filepath.Join(home, ".jarvisbridge", ".env")
	file, err := os.Open(envPath)
	if err != nil {
		return // File doesn't exist, skip
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	loaded := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.Trim(strings.TrimSpace(parts[1]), "\"'")

		if os.Getenv(key) == "" {
			os.Setenv(key, value)
			loaded++
		}
	}
	if loaded > 0 {
		zl := syslog.Zerolog()
		zl.Info().Int("count", loaded).Str("source", envPath).Msg("loaded environment variables")
	}
}

func main() {
	// Initialize structured logger FIRST
	var err error
	syslog, err = logging.New(nil) // Uses default config
	if err != nil {
		// Fallback to standard log if logger fails
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer syslog.Close()

	mainLog := syslog.Component("main")
	mainLog.Info().Msg("JarvisBridge starting...")

	loadEnvFile()

	cfg, err := config.Load()
	if err != nil {
		mainLog.Warn().Err(err).Msg("failed to load config, using defaults")
		cfg = config.DefaultConfig()
	}
	mainLog.Info().
		Str("model", cfg.LLM.Model).
		Str("target", cfg.Automation.PreferredTitle).
		Str("summaryPath", cfg.Feedback.SummaryPath).
		Msg("configuration loaded")

	driver, err := automation.NewDriver(syslog.Component("automation"))
	if err != nil {
		mainLog.Error().Err(err).Msg("no automation driver for this platform")
		os.Exit(1)
	}
	if !driver.IsAvailable() {
		mainLog.Warn().Msg("automation tooling not found; instructions will not reach the code agent")
	}

	sess := session.New(cfg, driver, syslog.Zerolog())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := sess.Start(ctx); err != nil {
		mainLog.Error().Err(err).Msg("session failed to start")
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	mainLog.Info().Str("signal", sig.String()).Msg("shutting down")

	sess.Stop()
	mainLog.Info().Msg("JarvisBridge exited normally")
}

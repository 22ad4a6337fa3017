package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ent0n29/voicedirect/internal/app"
	"github.com/ent0n29/voicedirect/internal/capture/microphone"
	"github.com/ent0n29/voicedirect/internal/config"
	"github.com/ent0n29/voicedirect/internal/console"
	"github.com/ent0n29/voicedirect/internal/observability"
	"github.com/ent0n29/voicedirect/internal/playback"
	"github.com/ent0n29/voicedirect/internal/playback/speaker"
	"github.com/ent0n29/voicedirect/internal/voice"
)

func newConsoleCmd() *cobra.Command {
	var (
		personaID string
		logFile   string
	)
	cmd := &cobra.Command{
		Use:   "console",
		Short: "Talk through the local microphone and speaker",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if personaID != "" {
				cfg.DefaultPersona = personaID
			}
			return runConsole(cmd.Context(), cfg, logFile)
		},
	}
	cmd.Flags().StringVar(&personaID, "persona", "", "persona to start with (overrides PERSONA_DEFAULT)")
	cmd.Flags().StringVar(&logFile, "log-file", filepath.Join(os.TempDir(), "voicedirect-console.log"), "where to write logs while the UI owns the terminal")
	return cmd
}

func runConsole(parent context.Context, cfg config.Config, logFile string) error {
	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	logger := observability.InitLogger(cfg.LogLevel, false, f)

	ctx, stop := signal.NotifyContext(contextOrBackground(parent), syscall.SIGTERM)
	defer stop()

	metrics := observability.NewMetrics(cfg.MetricsNamespace)
	pipeline, err := app.BuildPipeline(ctx, cfg, metrics, logger)
	if err != nil {
		return err
	}

	var player voice.Player
	switch config.Normalize(cfg.AudioOutput) {
	case "timed":
		player = playback.NewTimedPlayer(logger)
	default:
		player = speaker.New(logger)
	}

	orch, err := pipeline.NewConversation(cfg.DefaultPersona, microphone.New(cfg.CaptureSampleRate, logger), player, logger)
	if err != nil {
		return err
	}
	defer orch.Close()

	return console.Run(ctx, orch)
}

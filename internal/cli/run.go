package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/forPelevin/minutes/internal/config"
	"github.com/forPelevin/minutes/internal/pipeline"
)

func run(cmd *cobra.Command, input string) error {
	cfgPath, _ := cmd.Flags().GetString("config")
	settings, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	applyFlags(cmd, settings)

	absIn, err := filepath.Abs(input)
	if err != nil {
		return err
	}

	cfg := pipeline.Config{Input: absIn, Settings: settings}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log := newLogger(settings.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, 3*time.Hour)
	defer cancel()

	rt := pipeline.NewRuntime(settings, log)
	defer rt.Close()

	res, err := rt.Process(ctx, absIn)
	if err != nil {
		return err
	}
	for _, w := range res.Report.Warnings {
		log.Warn(w)
	}
	fmt.Fprintln(cmd.OutOrStdout(), res.RunDir)
	return nil
}

// applyFlags overrides settings with the flags the user actually passed.
func applyFlags(cmd *cobra.Command, c *config.Config) {
	f := cmd.Flags()
	if f.Changed("out") {
		c.OutDir, _ = f.GetString("out")
	}
	if f.Changed("concurrency") {
		c.Concurrency, _ = f.GetInt("concurrency")
	}
	if f.Changed("speakers") {
		c.Diarization.Speakers, _ = f.GetInt("speakers")
	}
	if f.Changed("asr") {
		c.Transcription.Backend, _ = f.GetString("asr")
	}
	if f.Changed("diarization") {
		c.Diarization.Backend, _ = f.GetString("diarization")
	}
	if f.Changed("diarization-policy") {
		c.Diarization.Policy, _ = f.GetString("diarization-policy")
	}
	if f.Changed("subtitles") {
		c.Subtitles, _ = f.GetBool("subtitles")
	}
	if f.Changed("redis") {
		c.Cache.RedisAddr, _ = f.GetString("redis")
	}
	if v, _ := f.GetBool("verbose"); v {
		c.LogLevel = "debug"
	}
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}

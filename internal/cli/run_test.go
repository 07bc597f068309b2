package cli

import (
	"testing"

	"github.com/forPelevin/minutes/internal/config"
)

func TestApplyFlags_OnlyChangedFlagsOverride(t *testing.T) {
	cmd := newRootCmd()
	if err := cmd.ParseFlags([]string{"--concurrency", "8", "--diarization", "none", "--subtitles", "-v"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	c := config.Default()
	c.OutDir = "from-config"
	applyFlags(cmd, c)

	if c.Concurrency != 8 {
		t.Fatalf("concurrency = %d", c.Concurrency)
	}
	if c.Diarization.Backend != config.DiarizationNone {
		t.Fatalf("diarization = %q", c.Diarization.Backend)
	}
	if !c.Subtitles || c.LogLevel != "debug" {
		t.Fatalf("subtitles=%v log=%q", c.Subtitles, c.LogLevel)
	}
	if c.OutDir != "from-config" {
		t.Fatalf("unset --out must keep config value, got %q", c.OutDir)
	}
	if c.Transcription.Backend != config.BackendWhisperCPP {
		t.Fatalf("unset --asr must keep default, got %q", c.Transcription.Backend)
	}
}

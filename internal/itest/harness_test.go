//go:build integration

package itest

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"testing"

	"github.com/forPelevin/minutes/internal/audio"
	"github.com/forPelevin/minutes/internal/types"
)

// findRepoRoot walks up from the working directory to the go.mod.
func findRepoRoot() (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for dir := wd; ; {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("could not locate go.mod above " + wd)
		}
		dir = parent
	}
}

func mustRepoRoot(t *testing.T) string {
	t.Helper()

	repoRoot, err := findRepoRoot()
	if err != nil {
		t.Fatalf("repo root: %v", err)
	}
	return repoRoot
}

func staticArgs(args ...string) func(t *testing.T, _ string) []string {
	clone := append([]string(nil), args...)
	return func(t *testing.T, _ string) []string {
		t.Helper()
		return append([]string(nil), clone...)
	}
}

// writeSample writes one second of near-silence as a valid WAV fixture.
func writeSample(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "meeting.wav")
	clip := types.AudioClip{SampleRate: audio.ModelSampleRate, Samples: make([]float32, audio.ModelSampleRate)}
	if err := audio.WriteWAV(p, clip); err != nil {
		t.Fatalf("write sample: %v", err)
	}
	return p
}

func withSample(extra ...string) func(t *testing.T, _ string) []string {
	clone := append([]string(nil), extra...)
	return func(t *testing.T, _ string) []string {
		t.Helper()
		return append([]string{writeSample(t)}, clone...)
	}
}

func mergeEnv(base []string, overrides ...map[string]string) []string {
	env := make(map[string]string, len(base))
	for _, kv := range base {
		i := strings.IndexByte(kv, '=')
		if i <= 0 {
			continue
		}
		env[kv[:i]] = kv[i+1:]
	}

	for _, set := range overrides {
		for k, v := range set {
			env[k] = v
		}
	}

	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, fmt.Sprintf("%s=%s", k, v))
	}
	sort.Strings(out)
	return out
}

// probeDuration asks ffprobe for the container duration of a fixture.
func probeDuration(path string) (float64, error) {
	out, err := exec.Command("ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	).CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: %w\n%s", filepath.Base(path), err, out)
	}
	return strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
}

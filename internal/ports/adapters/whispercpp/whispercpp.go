package whispercpp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/forPelevin/minutes/internal/audio"
	apperr "github.com/forPelevin/minutes/internal/errors"
	"github.com/forPelevin/minutes/internal/types"
)

// Adapter shells out to the whisper.cpp CLI once per audio slice. It holds no
// mutable state, so one instance is shared by all concurrent callers.
type Adapter struct {
	bin    string
	model  string
	tmpDir string
}

// New checks that the binary and the ggml weights exist. A missing file is
// reported as ModelUnavailable so the pipeline can fail with an actionable
// message instead of erroring on every segment.
func New(binPath, modelPath, tmpDir string) (*Adapter, error) {
	bin, err := exec.LookPath(binPath)
	if err != nil {
		return nil, apperr.Wrapf(err, apperr.ModelUnavailable, "whisper.cpp binary not found at %q", binPath)
	}
	st, err := os.Stat(modelPath)
	if err != nil {
		return nil, apperr.Wrapf(err, apperr.ModelUnavailable, "whisper model not found at %q (set WHISPER_MODEL or MODELS_DIR)", modelPath)
	}
	if st.IsDir() || st.Size() == 0 {
		return nil, apperr.Newf(apperr.ModelUnavailable, "whisper model %q is not a weights file", modelPath)
	}
	return &Adapter{bin: bin, model: modelPath, tmpDir: tmpDir}, nil
}

// ID identifies the backend and weights for cache keys.
func (a *Adapter) ID() string { return "whispercpp:" + filepath.Base(a.model) }

func (a *Adapter) Transcribe(ctx context.Context, clip types.AudioClip) (string, error) {
	if clip.SampleRate != audio.ModelSampleRate {
		return "", apperr.Newf(apperr.InferenceError, "whisper expects %d Hz audio, got %d Hz", audio.ModelSampleRate, clip.SampleRate)
	}
	if len(clip.Samples) == 0 {
		return "", apperr.New(apperr.InferenceError, "empty audio slice")
	}

	dir, err := os.MkdirTemp(a.tmpDir, "whisper-*")
	if err != nil {
		return "", fmt.Errorf("whisper temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	wavPath := filepath.Join(dir, "slice.wav")
	if err := audio.WriteWAV(wavPath, clip); err != nil {
		return "", apperr.Wrap(err, apperr.InferenceError, "write slice wav")
	}

	outPrefix := filepath.Join(dir, "whisper")
	args := []string{
		"-m", a.model,
		"-f", wavPath,
		"-oj",
		"-of", outPrefix,
		"-np",
	}
	cmd := exec.CommandContext(ctx, a.bin, args...)
	b, err := cmd.CombinedOutput()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", apperr.Wrapf(err, apperr.InferenceError, "whisper.cpp failed\n%s", truncate(string(b), 400))
	}

	jb, err := os.ReadFile(outPrefix + ".json")
	if err != nil {
		return "", apperr.Wrap(err, apperr.InferenceError, "read whisper output")
	}
	return parseOutput(jb)
}

type output struct {
	Transcription []struct {
		Text string `json:"text"`
	} `json:"transcription"`
}

func parseOutput(b []byte) (string, error) {
	var out output
	if err := json.Unmarshal(b, &out); err != nil {
		return "", apperr.Wrap(err, apperr.InferenceError, "parse whisper output")
	}
	parts := make([]string, 0, len(out.Transcription))
	for _, s := range out.Transcription {
		t := strings.TrimSpace(nonSpeechRE.ReplaceAllString(s.Text, ""))
		if t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " "), nil
}

// whisper emits markers like [BLANK_AUDIO] or (silence) for non-speech.
var nonSpeechRE = regexp.MustCompile(`(?i)[\[(]\s*(blank_audio|silence|music|inaudible|no speech)\s*[\])]`)

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

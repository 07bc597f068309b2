package ffmpeg

import (
	"context"
	"fmt"
	"os/exec"

	apperr "github.com/forPelevin/minutes/internal/errors"
)

type Adapter struct {
	ffmpeg string
}

func New(ffmpegPath string) *Adapter {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &Adapter{ffmpeg: ffmpegPath}
}

// ExtractAudioMono16k decodes any container ffmpeg understands (wav, mp3, m4a,
// video files) into the mono 16 kHz PCM WAV the models expect.
func (a *Adapter) ExtractAudioMono16k(ctx context.Context, in, outWav string) error {
	if _, err := exec.LookPath(a.ffmpeg); err != nil {
		return apperr.Wrapf(err, apperr.Internal, "ffmpeg not found at %q", a.ffmpeg)
	}
	cmd := exec.CommandContext(ctx, a.ffmpeg, extractArgs(in, outWav)...)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg extract audio: %w\n%s", err, string(b))
	}
	return nil
}

func extractArgs(in, outWav string) []string {
	return []string{
		"-y",
		"-i", in,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		"-f", "wav",
		outWav,
	}
}

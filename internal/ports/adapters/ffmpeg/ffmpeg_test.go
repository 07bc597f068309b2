package ffmpeg

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	apperr "github.com/forPelevin/minutes/internal/errors"
)

func TestExtractArgs_MonoPCM16k(t *testing.T) {
	got := strings.Join(extractArgs("in.m4a", "out.wav"), " ")
	for _, want := range []string{"-i in.m4a", "-ac 1", "-ar 16000", "-c:a pcm_s16le", "out.wav"} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected %q in args %q", want, got)
		}
	}
}

func TestExtractAudio_MissingBinary(t *testing.T) {
	a := New(filepath.Join(t.TempDir(), "no-such-ffmpeg"))
	err := a.ExtractAudioMono16k(context.Background(), "in.wav", "out.wav")
	if !apperr.IsCode(err, apperr.Internal) {
		t.Fatalf("expected Internal, got %v", err)
	}
}

package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func Main() {
	_ = godotenv.Load() // best-effort: load .env if present

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "minutes <audio>",
		Short:        "Turn a meeting recording into a speaker-labeled transcript and minutes",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args[0])
		},
	}

	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)
	root.SilenceErrors = true

	f := root.Flags()
	f.String("config", "", "YAML config file")
	f.String("out", "", "Output directory (default from config, \"out\")")
	f.Int("concurrency", 0, "Parallel segment transcriptions (default from config, 4)")
	f.Int("speakers", 0, "Expected number of speakers (0 lets the diarizer decide)")
	f.String("asr", "", "Transcription backend: whispercpp or openai")
	f.String("diarization", "", "Diarization backend: pyannote or none")
	f.String("diarization-policy", "", "When diarization is unavailable: strict or single-speaker")
	f.Bool("subtitles", false, "Also write an ASS subtitle track of the transcript")
	f.BoolP("verbose", "v", false, "Debug logging")

	// Hidden tuning flag (internal)
	f.String("redis", "", "Redis address for the segment transcription cache")
	_ = f.MarkHidden("redis")

	return root
}

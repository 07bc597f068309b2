package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/forPelevin/minutes/internal/audio"
	"github.com/forPelevin/minutes/internal/config"
	"github.com/forPelevin/minutes/internal/domain/export"
	"github.com/forPelevin/minutes/internal/domain/minutes"
	"github.com/forPelevin/minutes/internal/domain/subtitles"
	apperr "github.com/forPelevin/minutes/internal/errors"
	"github.com/forPelevin/minutes/internal/models"
	"github.com/forPelevin/minutes/internal/ports"
	"github.com/forPelevin/minutes/internal/ports/adapters/cassandra"
	"github.com/forPelevin/minutes/internal/ports/adapters/ffmpeg"
	"github.com/forPelevin/minutes/internal/ports/adapters/openaiasr"
	"github.com/forPelevin/minutes/internal/ports/adapters/openrouter"
	"github.com/forPelevin/minutes/internal/ports/adapters/pyannote"
	"github.com/forPelevin/minutes/internal/ports/adapters/rediscache"
	"github.com/forPelevin/minutes/internal/ports/adapters/singlespeaker"
	"github.com/forPelevin/minutes/internal/ports/adapters/whispercpp"
	"github.com/forPelevin/minutes/internal/resilience"
	"github.com/forPelevin/minutes/internal/summarize"
	"github.com/forPelevin/minutes/internal/types"
	"github.com/forPelevin/minutes/internal/usecase"
)

type Config struct {
	Input    string
	Settings *config.Config
}

func (c Config) Validate() error {
	if c.Input == "" {
		return errors.New("input is empty")
	}
	if _, err := os.Stat(c.Input); err != nil {
		return fmt.Errorf("stat input: %w", err)
	}
	if c.Settings == nil {
		return errors.New("settings are required")
	}
	if err := c.Settings.Validate(); err != nil {
		return err
	}

	// Keys are only ever sent to trusted hosts.
	t := c.Settings.Transcription
	if t.Backend == config.BackendOpenAI && t.OpenAIAPIKey != "" {
		if err := openaiasr.ValidateBaseURL(t.OpenAIBaseURL, t.OpenAIAllowedHosts); err != nil {
			return err
		}
	}
	s := c.Settings.Summarization
	if s.APIKey != "" {
		return openrouter.ValidateBaseURL(s.BaseURL, s.AllowedHosts)
	}
	return nil
}

// Runtime owns the model backends for the life of the process. Backends are
// loaded on first use and then shared read-only by concurrent Process calls.
type Runtime struct {
	cfg   *config.Config
	log   *slog.Logger
	audio ports.AudioTool

	diarizer    *models.Cell[ports.Diarizer]
	transcriber *models.Cell[ports.Transcriber]
	store       *models.Cell[ports.MeetingStore]
	summarizer  *summarize.Chain
	// summaryModel names the generative model, empty when none is configured.
	summaryModel string

	mu      sync.Mutex
	closers []func()
	now     func() time.Time
}

func NewRuntime(cfg *config.Config, log *slog.Logger) *Runtime {
	if log == nil {
		log = slog.Default()
	}
	r := &Runtime{
		cfg:   cfg,
		log:   log,
		audio: ffmpeg.New(cfg.FFmpegPath),
		now:   time.Now,
	}
	r.diarizer = models.NewCell(r.loadDiarizer)
	r.transcriber = models.NewCell(r.loadTranscriber)
	r.store = models.NewCell(r.loadStore)
	r.summarizer = r.buildSummarizer()
	return r
}

// Close releases network clients opened by the backends.
func (r *Runtime) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
	r.closers = nil
}

func (r *Runtime) onClose(fn func()) {
	r.mu.Lock()
	r.closers = append(r.closers, fn)
	r.mu.Unlock()
}

func (r *Runtime) loadDiarizer(context.Context) (ports.Diarizer, error) {
	d := r.cfg.Diarization
	if d.Backend == config.DiarizationNone {
		return singlespeaker.New(""), nil
	}
	c, err := pyannote.New(pyannote.Options{Addr: d.Addr, Token: d.HFToken, NumSpeakers: d.Speakers})
	if err != nil {
		return nil, err
	}
	r.onClose(func() { _ = c.Close() })
	return c, nil
}

func (r *Runtime) loadTranscriber(ctx context.Context) (ports.Transcriber, error) {
	t := r.cfg.Transcription
	var asr ports.Transcriber
	switch t.Backend {
	case config.BackendOpenAI:
		asr = openaiasr.New(t.OpenAIAPIKey, t.OpenAIModel, t.OpenAIBaseURL)
	default:
		tmp := filepath.Join(r.cfg.CacheDir, "tmp")
		if err := os.MkdirAll(tmp, 0o755); err != nil {
			return nil, err
		}
		w, err := whispercpp.New(t.WhisperBin, t.WhisperModel, tmp)
		if err != nil {
			return nil, err
		}
		asr = w
	}

	if r.cfg.Cache.RedisAddr == "" {
		return asr, nil
	}
	store, err := rediscache.Connect(ctx, r.cfg.Cache.RedisAddr, r.cfg.Cache.TTL)
	if err != nil {
		r.log.Warn("segment cache disabled", "addr", r.cfg.Cache.RedisAddr, "error", err)
		return asr, nil
	}
	r.onClose(func() { _ = store.Close() })
	return rediscache.Wrap(asr, store, r.log), nil
}

func (r *Runtime) loadStore(ctx context.Context) (ports.MeetingStore, error) {
	s := r.cfg.Store
	if len(s.CassandraHosts) == 0 {
		return nil, nil
	}
	st, err := cassandra.Connect(s.CassandraHosts, s.CassandraKeyspace)
	if err != nil {
		return nil, err
	}
	if err := st.EnsureSchema(ctx); err != nil {
		st.Close()
		return nil, err
	}
	r.onClose(st.Close)
	return st, nil
}

func (r *Runtime) buildSummarizer() *summarize.Chain {
	var gen ports.Summarizer
	s := r.cfg.Summarization
	if s.APIKey != "" {
		llm := openrouter.New(s.APIKey, s.Model, s.BaseURL)
		r.summaryModel = llm.Model()
		gen = llm
	}
	br := resilience.New(resilience.Config{Name: "summarizer"}, r.log)
	chain := summarize.New(gen, minutes.NewExtractive(), br, r.log)
	if !chain.HasGenerative() {
		r.log.Info("OPENROUTER_API_KEY not set, minutes will be extractive")
	}
	return chain
}

// Result is one processed recording and where its files were written.
type Result struct {
	Report types.Report
	RunDir string
}

func (r *Runtime) Process(ctx context.Context, input string) (Result, error) {
	started := r.now()
	log := r.log.With("input", filepath.Base(input))

	if err := os.MkdirAll(r.cfg.OutDir, 0o755); err != nil {
		return Result{}, err
	}
	runsDir := filepath.Join(r.cfg.CacheDir, "runs")
	if err := os.MkdirAll(runsDir, 0o755); err != nil {
		return Result{}, err
	}
	// Each run gets its own scratch dir so concurrent runs on one input
	// never share audio.wav.
	scratch, err := os.MkdirTemp(runsDir, hash(input)+"-*")
	if err != nil {
		return Result{}, err
	}
	defer os.RemoveAll(scratch)
	log.Debug("scratch", "dir", scratch)

	wav := filepath.Join(scratch, "audio.wav")
	log.Info("extracting audio")
	if err := r.audio.ExtractAudioMono16k(ctx, input, wav); err != nil {
		return Result{}, err
	}
	clip, err := audio.LoadWAV(wav)
	if err != nil {
		return Result{}, fmt.Errorf("decode audio: %w", err)
	}

	diarizer, err := r.diarizer.Get(ctx)
	if err != nil {
		if !apperr.IsCode(err, apperr.ModelUnavailable) {
			return Result{}, fmt.Errorf("diarize: %w", err)
		}
		// Let the use case apply the configured policy.
		diarizer = unavailableDiarizer{err: err}
	}
	transcriber, err := r.transcriber.Get(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("transcribe: %w", err)
	}

	uc := usecase.New(usecase.Deps{
		Diarizer:         diarizer,
		FallbackDiarizer: singlespeaker.New(""),
		Transcriber:      transcriber,
		Summarizer:       r.summarizer,
		Logger:           log,
	})
	res, err := uc.Run(ctx, usecase.Input{
		Clip:                       clip,
		Concurrency:                r.cfg.Concurrency,
		SingleSpeakerOnUnavailable: r.cfg.Diarization.Policy == config.PolicySingleSpeaker,
	})
	if err != nil {
		return Result{}, err
	}

	rep := types.Report{
		ID:         uuid.NewString(),
		Input:      input,
		Duration:   clip.Duration(),
		Provenance: res.Outcome.Provenance,
		Fallback:   res.Outcome.Reason,
		Warnings:   res.Warnings,
		Transcript: res.Transcript,
		Minutes:    res.Minutes,
	}

	if store, err := r.store.Get(ctx); err != nil {
		log.Warn("meeting store unavailable", "error", err)
		rep.Warnings = append(rep.Warnings, "meeting not persisted: "+err.Error())
	} else if store != nil {
		if err := store.SaveMeeting(ctx, rep); err != nil {
			log.Warn("persist meeting failed", "error", err)
			rep.Warnings = append(rep.Warnings, "meeting not persisted: "+err.Error())
		} else {
			log.Info("meeting persisted", "id", rep.ID)
		}
	}
	rep.Elapsed = r.now().Sub(started)

	runDir := buildRunOutDir(r.cfg.OutDir, input, started.UTC())
	if err := r.writeOutputs(runDir, rep); err != nil {
		return Result{}, err
	}
	log.Info("outputs written", "dir", runDir, "segments", len(rep.Transcript.Segments), "provenance", rep.Provenance)
	return Result{Report: rep, RunDir: runDir}, nil
}

func (r *Runtime) writeOutputs(runDir string, rep types.Report) error {
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return err
	}

	if err := writeFile(filepath.Join(runDir, "transcript.txt"), []byte(export.Text(rep.Transcript))); err != nil {
		return err
	}

	md := export.Markdown(export.Metadata{
		Title:      strings.TrimSuffix(filepath.Base(rep.Input), filepath.Ext(rep.Input)),
		Source:     filepath.Base(rep.Input),
		ASR:        r.cfg.Transcription.Backend,
		Summarizer: r.summaryModel,
		Provenance: rep.Provenance,
		Fallback:   rep.Fallback,
		Generated:  r.now().UTC().Format(time.RFC3339),
		Duration:   time.Duration(rep.Duration * float64(time.Second)),
	}, rep.Transcript, rep.Minutes)
	if err := writeFile(filepath.Join(runDir, "minutes.md"), []byte(md)); err != nil {
		return err
	}

	b, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	if err := writeFile(filepath.Join(runDir, "result.json"), b); err != nil {
		return err
	}

	if r.cfg.Subtitles {
		if err := writeFile(filepath.Join(runDir, "transcript.ass"), []byte(subtitles.RenderASS(rep.Transcript))); err != nil {
			return err
		}
	}
	return nil
}

type unavailableDiarizer struct{ err error }

func (u unavailableDiarizer) Diarize(context.Context, types.AudioClip) ([]types.DiarizationSegment, error) {
	return nil, u.err
}

func writeFile(path string, b []byte) error {
	return os.WriteFile(path, b, 0o644)
}

func buildRunOutDir(outRoot, input string, now time.Time) string {
	name := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	name = normalizePathSegment(name)
	if name == "" {
		name = "input"
	}
	ts := now.UTC().Format("20060102-150405Z")
	runSeed := fmt.Sprintf("%s|%d", input, now.UTC().UnixNano())
	suffix := hash(runSeed)[:6]
	return filepath.Join(outRoot, fmt.Sprintf("%s-%s-%s", name, ts, suffix))
}

func normalizePathSegment(s string) string {
	var b strings.Builder
	prevDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
			prevDash = false
		default:
			if !prevDash {
				b.WriteByte('-')
				prevDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

func hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:12]
}

// ensure adapters implement ports
var _ ports.AudioTool = (*ffmpeg.Adapter)(nil)
var _ ports.Transcriber = (*whispercpp.Adapter)(nil)
var _ ports.Transcriber = (*openaiasr.Adapter)(nil)
var _ ports.Transcriber = (*rediscache.Transcriber)(nil)
var _ ports.SegmentCache = (*rediscache.Store)(nil)
var _ ports.Diarizer = (*pyannote.Client)(nil)
var _ ports.Diarizer = (*singlespeaker.Diarizer)(nil)
var _ ports.Summarizer = (*openrouter.Adapter)(nil)
var _ ports.Summarizer = (*minutes.Extractive)(nil)
var _ ports.Summarizer = (*summarize.Chain)(nil)
var _ ports.MeetingStore = (*cassandra.Store)(nil)

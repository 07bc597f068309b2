package rediscache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/forPelevin/minutes/internal/ports"
	"github.com/forPelevin/minutes/internal/types"
)

const (
	keyPrefix  = "minutes:asr:"
	DefaultTTL = 7 * 24 * time.Hour
)

// Store is a ports.SegmentCache backed by Redis string keys.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// Connect dials addr and pings it once so a misconfigured cache shows up at
// startup rather than as a warning per segment.
func Connect(ctx context.Context, addr string, ttl time.Duration) (*Store, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewStore(client, ttl), nil
}

func NewStore(client *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{client: client, ttl: ttl}
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.Get(ctx, keyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get: %w", err)
	}
	return v, true, nil
}

func (s *Store) Set(ctx context.Context, key, text string) error {
	if err := s.client.Set(ctx, keyPrefix+key, text, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

// Identified is implemented by transcribers whose output depends on more than
// the audio, such as the model weights.
type Identified interface {
	ID() string
}

// Transcriber serves repeated slices from the cache. Cache failures are
// logged and bypassed; only the wrapped backend's errors reach the caller,
// and only successful transcriptions are stored.
type Transcriber struct {
	next  ports.Transcriber
	cache ports.SegmentCache
	id    string
	log   *slog.Logger
}

func Wrap(next ports.Transcriber, cache ports.SegmentCache, log *slog.Logger) *Transcriber {
	if log == nil {
		log = slog.Default()
	}
	id := fmt.Sprintf("%T", next)
	if n, ok := next.(Identified); ok {
		id = n.ID()
	}
	return &Transcriber{next: next, cache: cache, id: id, log: log}
}

func (t *Transcriber) ID() string { return t.id }

func (t *Transcriber) Transcribe(ctx context.Context, clip types.AudioClip) (string, error) {
	key := Key(t.id, clip)
	if text, ok, err := t.cache.Get(ctx, key); err != nil {
		t.log.Warn("segment cache get failed", "error", err)
	} else if ok {
		return text, nil
	}

	text, err := t.next.Transcribe(ctx, clip)
	if err != nil {
		return "", err
	}
	if err := t.cache.Set(ctx, key, text); err != nil {
		t.log.Warn("segment cache set failed", "error", err)
	}
	return text, nil
}

// Key hashes the backend id, sample rate and raw samples.
func Key(backend string, clip types.AudioClip) string {
	h := sha256.New()
	h.Write([]byte(backend))
	h.Write([]byte{0})
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(clip.SampleRate))
	h.Write(buf[:])
	for _, s := range clip.Samples {
		binary.LittleEndian.PutUint32(buf[:4], math.Float32bits(s))
		h.Write(buf[:4])
	}
	return hex.EncodeToString(h.Sum(nil))
}

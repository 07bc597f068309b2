// Package cassandra persists finished meetings: one row per meeting plus one
// row per transcript segment, clustered by position.
package cassandra

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gocql/gocql"

	"github.com/forPelevin/minutes/internal/types"
)

const (
	createMeetings = `
		CREATE TABLE IF NOT EXISTS meetings (
			id uuid PRIMARY KEY,
			input text,
			duration_sec double,
			provenance text,
			fallback_reason text,
			minutes_json text,
			skipped_json text,
			created_at timestamp
		)`
	createSegments = `
		CREATE TABLE IF NOT EXISTS meeting_segments (
			meeting_id uuid,
			idx int,
			speaker text,
			start_sec double,
			end_sec double,
			text text,
			flag text,
			error text,
			PRIMARY KEY (meeting_id, idx)
		) WITH CLUSTERING ORDER BY (idx ASC)`

	insertMeeting = `
		INSERT INTO meetings (
			id, input, duration_sec, provenance, fallback_reason, minutes_json, skipped_json, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	insertSegment = `
		INSERT INTO meeting_segments (
			meeting_id, idx, speaker, start_sec, end_sec, text, flag, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
)

type Store struct {
	session *gocql.Session
	now     func() time.Time
}

// Connect opens a session on keyspace. The keyspace itself must exist.
func Connect(hosts []string, keyspace string) (*Store, error) {
	cluster := gocql.NewCluster(hosts...)
	cluster.Keyspace = keyspace
	cluster.Consistency = gocql.Quorum
	cluster.Timeout = 10 * time.Second
	cluster.ConnectTimeout = 10 * time.Second

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Cassandra: %w", err)
	}
	return &Store{session: session, now: time.Now}, nil
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range []string{createMeetings, createSegments} {
		if err := s.session.Query(stmt).WithContext(ctx).Exec(); err != nil {
			return fmt.Errorf("cassandra schema: %w", err)
		}
	}
	return nil
}

func (s *Store) SaveMeeting(ctx context.Context, rep types.Report) error {
	stmts, err := statements(rep, s.now())
	if err != nil {
		return err
	}
	for _, st := range stmts {
		if err := s.session.Query(st.cql, st.args...).WithContext(ctx).Exec(); err != nil {
			return fmt.Errorf("cassandra save meeting %s: %w", rep.ID, err)
		}
	}
	return nil
}

func (s *Store) Close() {
	s.session.Close()
}

type statement struct {
	cql  string
	args []any
}

// statements writes segments before the meeting row so a reader never sees a
// meeting whose transcript is still missing.
func statements(rep types.Report, now time.Time) ([]statement, error) {
	id, err := gocql.ParseUUID(rep.ID)
	if err != nil {
		return nil, fmt.Errorf("cassandra: meeting id %q: %w", rep.ID, err)
	}
	mj, err := json.Marshal(rep.Minutes)
	if err != nil {
		return nil, fmt.Errorf("marshal minutes: %w", err)
	}
	skipped := rep.Transcript.Skipped
	if skipped == nil {
		skipped = []types.SkippedSegment{}
	}
	sj, err := json.Marshal(skipped)
	if err != nil {
		return nil, fmt.Errorf("marshal skipped segments: %w", err)
	}

	out := make([]statement, 0, len(rep.Transcript.Segments)+1)
	for i, seg := range rep.Transcript.Segments {
		out = append(out, statement{cql: insertSegment, args: []any{
			id, i, seg.Speaker, seg.Start, seg.End, seg.Text, seg.Flag, seg.Err,
		}})
	}
	out = append(out, statement{cql: insertMeeting, args: []any{
		id, rep.Input, rep.Duration, string(rep.Provenance), rep.Fallback, string(mj), string(sj), now,
	}})
	return out, nil
}

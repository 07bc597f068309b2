package cassandra

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/forPelevin/minutes/internal/types"
)

func TestStatements_SegmentsThenMeeting(t *testing.T) {
	rep := types.Report{
		ID:         uuid.NewString(),
		Input:      "standup.m4a",
		Provenance: types.ProvenanceExtractive,
		Transcript: types.Transcript{
			Segments: []types.TranscribedSegment{
				{DiarizationSegment: types.DiarizationSegment{Speaker: "A", Start: 0, End: 5}, Text: "hello"},
				{DiarizationSegment: types.DiarizationSegment{Speaker: "B", Start: 5, End: 9}, Flag: types.FlagInferenceError, Err: "decoder crashed"},
			},
			Skipped: []types.SkippedSegment{
				{Index: 2, Segment: types.DiarizationSegment{Speaker: "C", Start: 9, End: 8}, Reason: "end 8.000 not after start 9.000"},
			},
		},
		Minutes: types.EmptyMinutes(),
	}
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	stmts, err := statements(rep, now)
	if err != nil {
		t.Fatalf("statements: %v", err)
	}
	if len(stmts) != 3 {
		t.Fatalf("expected 3 statements, got %d", len(stmts))
	}
	for i := 0; i < 2; i++ {
		if !strings.Contains(stmts[i].cql, "meeting_segments") {
			t.Fatalf("statement %d should insert a segment", i)
		}
		if stmts[i].args[1] != i {
			t.Fatalf("segment %d idx = %v", i, stmts[i].args[1])
		}
	}
	if got := stmts[1].args[6]; got != types.FlagInferenceError {
		t.Fatalf("flag = %v", got)
	}
	if got := stmts[1].args[7]; got != "decoder crashed" {
		t.Fatalf("segment error = %v", got)
	}
	last := stmts[2]
	if !strings.Contains(last.cql, "INSERT INTO meetings") {
		t.Fatalf("last statement should insert the meeting")
	}
	if last.args[3] != "extractive" || last.args[7] != now {
		t.Fatalf("unexpected meeting args: %v", last.args)
	}
	if !strings.Contains(last.args[5].(string), `"key_points":[]`) {
		t.Fatalf("minutes json should keep empty lists: %v", last.args[5])
	}
	var skipped []types.SkippedSegment
	if err := json.Unmarshal([]byte(last.args[6].(string)), &skipped); err != nil {
		t.Fatalf("skipped json: %v", err)
	}
	if len(skipped) != 1 || skipped[0].Index != 2 || skipped[0].Segment.Speaker != "C" {
		t.Fatalf("unexpected skipped segments %+v", skipped)
	}
}

func TestStatements_SkippedSegmentsPersisted(t *testing.T) {
	rep := types.Report{ID: uuid.NewString(), Minutes: types.EmptyMinutes()}
	stmts, err := statements(rep, time.Now())
	if err != nil {
		t.Fatalf("statements: %v", err)
	}
	if got := stmts[0].args[6]; got != "[]" {
		t.Fatalf("no skipped segments should store [], got %v", got)
	}
}

func TestStatements_RejectsBadID(t *testing.T) {
	if _, err := statements(types.Report{ID: "not-a-uuid"}, time.Now()); err == nil {
		t.Fatalf("expected error for invalid id")
	}
}

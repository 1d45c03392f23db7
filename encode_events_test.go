package earmark

import (
	"bytes"
	"strings"
	"testing"
)

func testChunk() *EventChunk {
	meta := testMeta()
	return &EventChunk{
		Header: ChunkHeader{ChunkID: 3, FromVersion: 7, ToVersion: 8, CreatedAt: testTime},
		Events: []StoredEvent{
			{PendingEvent: newEvent(meta, AccountCreated{AccountID: "acc", Name: "Bank", Scope: ScopePersonal}), Version: 7},
			{PendingEvent: newEvent(meta, AllocationSet{GoalID: "g", PositionID: "p", Before: 0, After: 100}), Version: 8},
			{PendingEvent: newEvent(meta, GoalSpent{GoalID: "g", SpentAt: testTime, Payments: []SpendPayment{
				{PositionID: "p", Amount: 100, Allocated: 100, ValueBefore: 500, ValueAfter: 400},
			}}), Version: 8},
		},
	}
}

func TestEventChunkRoundTrip(t *testing.T) {
	chunk := testChunk()
	var buf bytes.Buffer
	if err := EncodeEventChunk(&buf, chunk); err != nil {
		t.Fatal(err)
	}

	got, err := DecodeEventChunk(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if got.Header.ChunkID != 3 || got.Header.FromVersion != 7 || got.Header.ToVersion != 8 {
		t.Errorf("header = %+v", got.Header)
	}
	if got.Header.EventCount != 3 {
		t.Errorf("event count = %d, want 3", got.Header.EventCount)
	}
	if got.Skipped != 0 {
		t.Errorf("skipped = %d", got.Skipped)
	}
	if len(got.Events) != 3 {
		t.Fatalf("events = %d", len(got.Events))
	}

	spent, ok := got.Events[2].Payload.(GoalSpent)
	if !ok {
		t.Fatalf("payload type %T", got.Events[2].Payload)
	}
	if len(spent.Payments) != 1 || spent.Payments[0].ValueAfter != 400 {
		t.Errorf("payload = %+v", spent)
	}
	if got.Events[2].Version != 8 {
		t.Errorf("version = %d", got.Events[2].Version)
	}
}

func TestDecodeEventChunkSkipsBadLines(t *testing.T) {
	chunk := testChunk()
	var buf bytes.Buffer
	if err := EncodeEventChunk(&buf, chunk); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	// Corrupt one event, add an unknown type and a blank line.
	lines[2] = `{"id":"x","type":"goal_merged","version":1,"payload":{}}`
	lines = append(lines, "", "not json at all")
	input := strings.Join(lines, "\n")

	got, err := DecodeEventChunk(strings.NewReader(input))
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Events) != 2 {
		t.Errorf("events = %d, want 2 survivors", len(got.Events))
	}
	if got.Skipped != 2 {
		t.Errorf("skipped = %d, want 2", got.Skipped)
	}
}

func TestDecodeEventChunkBadHeaderFatal(t *testing.T) {
	if _, err := DecodeEventChunk(strings.NewReader("not a header\n")); err == nil {
		t.Error("malformed header accepted")
	}
	if _, err := DecodeEventChunk(strings.NewReader("")); err == nil {
		t.Error("empty file accepted")
	}
}

func TestChunkNames(t *testing.T) {
	name := ChunkName(42)
	if name != "chunk-00000042.ndjson" {
		t.Errorf("name = %q", name)
	}
	id, err := ParseChunkName(name)
	if err != nil || id != 42 {
		t.Errorf("parsed %d, %v", id, err)
	}
	if _, err := ParseChunkName("snapshot.json"); err == nil {
		t.Error("non-chunk name accepted")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	f := newFixture().
		account("acc", ScopeShared).
		position("pos", "acc", 12345, ModeRatio).
		goal("g", ScopeShared, 100000, 2).
		alloc("a", "g", "pos", 5000)

	var buf bytes.Buffer
	if err := EncodeSnapshot(&buf, &Snapshot{Version: 9, State: f.state, UpdatedAt: testTime}); err != nil {
		t.Fatal(err)
	}
	got, err := DecodeSnapshot(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if got.Version != 9 {
		t.Errorf("version = %d", got.Version)
	}
	if got.State.Positions["pos"].MarketValue != 12345 {
		t.Errorf("position = %+v", got.State.Positions["pos"])
	}
	wantAmounts(t, got.State, map[string]int64{"g/pos": 5000})
}

func TestDecodeSnapshotRejectsNegativeVersion(t *testing.T) {
	if _, err := DecodeSnapshot(strings.NewReader(`{"version":-1,"stateJson":{}}`)); err == nil {
		t.Error("negative version accepted")
	}
}

package earmark

import (
	"testing"
	"time"
)

func allocFixture() *fixture {
	return newFixture().
		account("acc", ScopePersonal).
		position("pos", "acc", 100, ModeFixed).
		goal("g", ScopePersonal, 100, 0)
}

func TestSetAllocation(t *testing.T) {
	f := allocFixture()
	m, err := f.state.SetAllocation("g", "pos", 60, testMeta())
	if err != nil {
		t.Fatal(err)
	}
	wantAmounts(t, m.State, map[string]int64{"g/pos": 60})

	set := m.Events[0].Payload.(AllocationSet)
	if set.Before != 0 || set.After != 60 {
		t.Errorf("event = %+v", set)
	}

	// Updating replaces the amount, it does not add.
	m2, err := m.State.SetAllocation("g", "pos", 80, testMeta())
	if err != nil {
		t.Fatal(err)
	}
	wantAmounts(t, m2.State, map[string]int64{"g/pos": 80})

	// Zero deletes.
	m3, err := m2.State.SetAllocation("g", "pos", 0, testMeta())
	if err != nil {
		t.Fatal(err)
	}
	if len(m3.State.Allocations) != 0 {
		t.Error("zero amount did not delete the allocation")
	}
}

func TestSetAllocationRejects(t *testing.T) {
	f := allocFixture().
		position("pos2", "acc", 100, ModeFixed).
		alloc("a", "g", "pos2", 50)

	t.Run("unknown goal", func(t *testing.T) {
		if _, err := f.state.SetAllocation("nope", "pos", 10, testMeta()); err == nil {
			t.Error("accepted")
		}
	})
	t.Run("unknown position", func(t *testing.T) {
		if _, err := f.state.SetAllocation("g", "nope", 10, testMeta()); err == nil {
			t.Error("accepted")
		}
	})
	t.Run("negative amount", func(t *testing.T) {
		if _, err := f.state.SetAllocation("g", "pos", -1, testMeta()); err == nil {
			t.Error("accepted")
		}
	})
	t.Run("over position value", func(t *testing.T) {
		if _, err := f.state.SetAllocation("g", "pos", 101, testMeta()); err == nil {
			t.Error("accepted")
		}
	})
	t.Run("over goal target", func(t *testing.T) {
		// 50 already allocated from pos2 against a target of 100.
		if _, err := f.state.SetAllocation("g", "pos", 51, testMeta()); err == nil {
			t.Error("accepted")
		}
	})
	t.Run("zero without allocation", func(t *testing.T) {
		if _, err := f.state.SetAllocation("g", "pos", 0, testMeta()); err == nil {
			t.Error("accepted")
		}
	})
	t.Run("cross scope", func(t *testing.T) {
		f := newFixture().
			account("ours", ScopeShared).
			position("shared-pos", "ours", 100, ModeFixed).
			goal("g", ScopePersonal, 100, 0)
		if _, err := f.state.SetAllocation("g", "shared-pos", 10, testMeta()); err == nil {
			t.Error("accepted")
		}
	})
	t.Run("spent goal", func(t *testing.T) {
		f := allocFixture()
		g := f.state.Goals["g"]
		g.Status = GoalStatusClosed
		spentAt := testTime.Add(-time.Hour)
		g.SpentAt = &spentAt
		f.state.Goals["g"] = g
		if _, err := f.state.SetAllocation("g", "pos", 10, testMeta()); err == nil {
			t.Error("accepted")
		}
	})
}

func TestReduceAllocationsAtomic(t *testing.T) {
	f := allocFixture().
		position("pos2", "acc", 100, ModeFixed).
		alloc("a1", "g", "pos", 50).
		alloc("a2", "g", "pos2", 30)

	// One bad reduction fails the whole batch.
	_, err := f.state.ReduceAllocations([]AllocationReduction{
		{GoalID: "g", PositionID: "pos", Amount: 20},
		{GoalID: "g", PositionID: "pos2", Amount: 31},
	}, testMeta())
	if err == nil {
		t.Fatal("over-reduction accepted")
	}
	wantAmounts(t, f.state, map[string]int64{"g/pos": 50, "g/pos2": 30})

	m, err := f.state.ReduceAllocations([]AllocationReduction{
		{GoalID: "g", PositionID: "pos", Amount: 20},
		{GoalID: "g", PositionID: "pos2", Amount: 30},
	}, testMeta())
	if err != nil {
		t.Fatal(err)
	}
	// A reduction to zero removes the allocation.
	wantAmounts(t, m.State, map[string]int64{"g/pos": 30})

	if len(m.Events) != 1 {
		t.Fatalf("events = %v, want a single batch event", m.Events)
	}
	reduced := m.Events[0].Payload.(AllocationsReduced)
	if reduced.Reason != ReasonBatch || len(reduced.Changes) != 2 {
		t.Errorf("payload = %+v", reduced)
	}
}

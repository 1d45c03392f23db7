package earmark

import (
	"testing"
	"time"
)

func TestRepairCleanStateUntouched(t *testing.T) {
	f := newFixture().
		account("acc", ScopePersonal).
		position("pos", "acc", 100, ModeFixed).
		goal("g", ScopePersonal, 100, 0).
		alloc("a", "g", "pos", 50)

	res := Repair(f.state, testMeta())
	if res.Changed {
		t.Fatalf("clean state repaired: %v", res.Warnings)
	}
	if len(res.Events) != 0 || res.Notice != nil {
		t.Error("clean repair emitted events or a notice")
	}
}

func TestRepairClampsAndDrops(t *testing.T) {
	spentAt := testTime.Add(-time.Hour)
	f := newFixture().
		account("mine", ScopePersonal).
		account("ours", ScopeShared).
		position("pos", "mine", -50, ModeFixed).
		position("shared-pos", "ours", 100, ModeFixed).
		goal("g", ScopePersonal, 100, 0).
		goal("spent", ScopePersonal, 100, 0).
		alloc("dangling-goal", "ghost", "pos", 10).
		alloc("dangling-pos", "g", "ghost", 10).
		alloc("cross", "g", "shared-pos", 10).
		alloc("to-spent", "spent", "pos", 10)
	sg := f.state.Goals["spent"]
	sg.Status = GoalStatusClosed
	sg.SpentAt = &spentAt
	f.state.Goals["spent"] = sg

	res := Repair(f.state, testMeta())
	if !res.Changed {
		t.Fatal("nothing repaired")
	}
	if got := res.State.Positions["pos"].MarketValue; got != 0 {
		t.Errorf("negative value clamped to %d", got)
	}
	if len(res.State.Allocations) != 0 {
		t.Errorf("invalid allocations survived: %v", res.State.Allocations)
	}
	summary := res.Events[0].Payload.(StateRepaired)
	if summary.ClampedValues != 1 || summary.DroppedAllocations != 4 {
		t.Errorf("summary = %+v", summary)
	}
}

func TestRepairDeduplicatesKeepingLarger(t *testing.T) {
	f := newFixture().
		account("acc", ScopePersonal).
		position("pos", "acc", 100, ModeFixed).
		goal("g", ScopePersonal, 100, 0).
		alloc("small", "g", "pos", 20).
		alloc("large", "g", "pos", 60)

	res := Repair(f.state, testMeta())
	if !res.Changed {
		t.Fatal("duplicate not repaired")
	}
	wantAmounts(t, res.State, map[string]int64{"g/pos": 60})
}

func TestRepairRefitsOverAllocatedPosition(t *testing.T) {
	f := newFixture().
		account("acc", ScopePersonal).
		position("pos", "acc", 100, ModeFixed).
		goal("urgent", ScopePersonal, 100, 0).
		goal("relaxed", ScopePersonal, 100, 5).
		alloc("a1", "urgent", "pos", 80).
		alloc("a2", "relaxed", "pos", 80)

	res := Repair(f.state, testMeta())
	if !res.Changed {
		t.Fatal("over-allocation not repaired")
	}
	// 60 excess comes out of the least urgent goal first.
	wantAmounts(t, res.State, map[string]int64{"urgent/pos": 80, "relaxed/pos": 20})
	if res.Notice == nil || res.Notice.Reason != ReasonRepair {
		t.Errorf("notice = %+v", res.Notice)
	}
}

func TestRepairShrinksOverFundedGoalProportionally(t *testing.T) {
	f := newFixture().
		account("acc", ScopePersonal).
		position("p1", "acc", 1000, ModeFixed).
		position("p2", "acc", 1000, ModeFixed).
		goal("g", ScopePersonal, 100, 0).
		alloc("a1", "g", "p1", 120).
		alloc("a2", "g", "p2", 80)

	res := Repair(f.state, testMeta())
	if !res.Changed {
		t.Fatal("over-funding not repaired")
	}
	// 200 -> 100 proportionally: 60 and 40.
	wantAmounts(t, res.State, map[string]int64{"g/p1": 60, "g/p2": 40})
}

func TestRepairIsIdempotent(t *testing.T) {
	f := newFixture().
		account("acc", ScopePersonal).
		position("pos", "acc", -10, ModeFixed).
		goal("g", ScopePersonal, 50, 0).
		alloc("dup1", "g", "pos", 30).
		alloc("dup2", "g", "pos", 40).
		alloc("dangling", "ghost", "pos", 5)

	first := Repair(f.state, testMeta())
	if !first.Changed {
		t.Fatal("nothing repaired")
	}
	second := Repair(first.State, testMeta())
	if second.Changed {
		t.Fatalf("repair of repaired state changed again: %v", second.Warnings)
	}
}

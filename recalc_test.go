package earmark

import (
	"testing"
	"time"
)

func TestRecalculateAllocations(t *testing.T) {
	tests := []struct {
		name     string
		allocs   []Allocation
		oldValue int64
		newValue int64
		want     []int64
	}{
		{
			name: "remainder goes to the largest amount",
			allocs: []Allocation{
				{ID: "a", Amount: 60},
				{ID: "b", Amount: 40},
			},
			oldValue: 100,
			newValue: 101,
			want:     []int64{61, 40},
		},
		{
			name: "equal amounts tie-break by id",
			allocs: []Allocation{
				{ID: "alloc-b", Amount: 50},
				{ID: "alloc-a", Amount: 50},
			},
			oldValue: 100,
			newValue: 101,
			want:     []int64{50, 51},
		},
		{
			name: "halving floors then compensates the largest",
			allocs: []Allocation{
				{ID: "a", Amount: 33},
				{ID: "b", Amount: 33},
				{ID: "c", Amount: 34},
			},
			oldValue: 100,
			newValue: 50,
			want:     []int64{16, 16, 18},
		},
		{
			name: "zero old value returns input unchanged",
			allocs: []Allocation{
				{ID: "a", Amount: 10},
			},
			oldValue: 0,
			newValue: 100,
			want:     []int64{10},
		},
		{
			name: "scale to zero",
			allocs: []Allocation{
				{ID: "a", Amount: 60},
				{ID: "b", Amount: 40},
			},
			oldValue: 100,
			newValue: 0,
			want:     []int64{0, 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RecalculateAllocations(tt.allocs, tt.oldValue, tt.newValue)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d allocations, want %d", len(got), len(tt.want))
			}
			for i, want := range tt.want {
				if got[i].Amount != want {
					t.Errorf("alloc %q = %d, want %d", got[i].ID, got[i].Amount, want)
				}
			}
		})
	}
}

func TestRecalculateAllocationsPreservesSum(t *testing.T) {
	allocs := []Allocation{
		{ID: "a", Amount: 17},
		{ID: "b", Amount: 29},
		{ID: "c", Amount: 54},
	}
	for _, newValue := range []int64{1, 7, 99, 100, 101, 250, 999} {
		got := RecalculateAllocations(allocs, 100, newValue)
		var sum int64
		for _, a := range got {
			sum += a.Amount
		}
		if sum != newValue {
			t.Errorf("newValue %d: amounts sum to %d", newValue, sum)
		}
	}
}

func TestReduceToTotalOrder(t *testing.T) {
	older := testTime.Add(-48 * time.Hour)
	newer := testTime.Add(-2 * time.Hour)

	f := newFixture().
		account("acc", ScopePersonal).
		position("pos", "acc", 1000, ModeFixed).
		goal("urgent", ScopePersonal, 500, 0).
		goal("relaxed", ScopePersonal, 500, 5).
		closedGoal("closed-old", ScopePersonal, 500, older).
		closedGoal("closed-new", ScopePersonal, 500, newer).
		alloc("a1", "urgent", "pos", 100).
		alloc("a2", "relaxed", "pos", 100).
		alloc("a3", "closed-old", "pos", 100).
		alloc("a4", "closed-new", "pos", 100)

	// Shrinking to 150 must consume: closed-new (100), closed-old (100),
	// relaxed (50). Urgent is untouched.
	changes := reduceToTotal(f.state, f.state.AllocationsOf("pos"), 150)

	want := []AllocationChange{
		{GoalID: "closed-new", PositionID: "pos", Before: 100, After: 0},
		{GoalID: "closed-old", PositionID: "pos", Before: 100, After: 0},
		{GoalID: "relaxed", PositionID: "pos", Before: 100, After: 50},
	}
	if len(changes) != len(want) {
		t.Fatalf("got %d changes %v, want %d", len(changes), changes, len(want))
	}
	for i, w := range want {
		if changes[i] != w {
			t.Errorf("change %d = %+v, want %+v", i, changes[i], w)
		}
	}
}

func TestReduceToTotalNoExcess(t *testing.T) {
	f := newFixture().
		account("acc", ScopePersonal).
		position("pos", "acc", 100, ModeFixed).
		goal("g", ScopePersonal, 100, 0).
		alloc("a", "g", "pos", 50)

	if changes := reduceToTotal(f.state, f.state.AllocationsOf("pos"), 50); changes != nil {
		t.Fatalf("expected no changes, got %v", changes)
	}
}

func TestRatioRescaleKeepsShares(t *testing.T) {
	f := newFixture().
		account("acc", ScopePersonal).
		position("pos", "acc", 100, ModeRatio).
		goal("g1", ScopePersonal, 1000, 0).
		goal("g2", ScopePersonal, 1000, 1).
		alloc("a1", "g1", "pos", 50).
		alloc("a2", "g2", "pos", 25)

	// 25 unallocated. Doubling the value doubles every share.
	changes := rescalePosition(f.state, f.state.Positions["pos"], 100, 200)
	applyChanges(f.state, changes)
	wantAmounts(t, f.state, map[string]int64{"g1/pos": 100, "g2/pos": 50})
}

func TestRatioRescaleClampsToGoalTarget(t *testing.T) {
	f := newFixture().
		account("acc", ScopePersonal).
		position("pos", "acc", 100, ModeRatio).
		goal("small", ScopePersonal, 60, 0).
		goal("large", ScopePersonal, 1000, 1).
		alloc("a1", "small", "pos", 50).
		alloc("a2", "large", "pos", 50)

	// Doubling would push "small" to 100, but its target caps it at 60. The
	// overflow stays unallocated, it never leaks into "large".
	changes := rescalePosition(f.state, f.state.Positions["pos"], 100, 200)
	applyChanges(f.state, changes)
	wantAmounts(t, f.state, map[string]int64{"small/pos": 60, "large/pos": 100})
}

func TestRatioRescaleFromZeroBehavesLikeFixed(t *testing.T) {
	f := newFixture().
		account("acc", ScopePersonal).
		position("pos", "acc", 0, ModeRatio).
		goal("g", ScopePersonal, 100, 0).
		alloc("a", "g", "pos", 80)

	changes := rescalePosition(f.state, f.state.Positions["pos"], 0, 50)
	applyChanges(f.state, changes)
	wantAmounts(t, f.state, map[string]int64{"g/pos": 50})
}

func TestPriorityModeDistributesIncrease(t *testing.T) {
	f := newFixture().
		account("acc", ScopePersonal).
		position("pos", "acc", 100, ModePriority).
		goal("first", ScopePersonal, 60, 0).
		goal("second", ScopePersonal, 1000, 1).
		alloc("a1", "first", "pos", 40).
		alloc("a2", "second", "pos", 30)

	// +100: "first" takes 20 up to its target, "second" absorbs the rest.
	changes := rescalePosition(f.state, f.state.Positions["pos"], 100, 200)
	applyChanges(f.state, changes)
	wantAmounts(t, f.state, map[string]int64{"first/pos": 60, "second/pos": 110})
}

func TestPriorityModeDecreaseReduces(t *testing.T) {
	f := newFixture().
		account("acc", ScopePersonal).
		position("pos", "acc", 100, ModePriority).
		goal("urgent", ScopePersonal, 100, 0).
		goal("relaxed", ScopePersonal, 100, 9).
		alloc("a1", "urgent", "pos", 50).
		alloc("a2", "relaxed", "pos", 50)

	changes := rescalePosition(f.state, f.state.Positions["pos"], 100, 70)
	applyChanges(f.state, changes)
	wantAmounts(t, f.state, map[string]int64{"urgent/pos": 50, "relaxed/pos": 20})
}

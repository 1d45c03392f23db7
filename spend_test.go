package earmark

import (
	"testing"
	"time"
)

// spendFixture stages a closed goal funded from two positions, plus a
// bystander goal on the first position.
func spendFixture() *fixture {
	f := newFixture().
		account("acc", ScopePersonal).
		position("p1", "acc", 100, ModeFixed).
		position("p2", "acc", 100, ModeFixed).
		closedGoal("g", ScopePersonal, 100, testTime.Add(-time.Hour)).
		goal("other", ScopePersonal, 100, 0).
		alloc("a1", "g", "p1", 60).
		alloc("a2", "g", "p2", 40).
		alloc("a3", "other", "p1", 40)
	return f
}

func TestSpendGoal(t *testing.T) {
	f := spendFixture()
	m, err := f.state.SpendGoal("g", map[string]int64{"p1": 60, "p2": 40}, testMeta())
	if err != nil {
		t.Fatal(err)
	}
	next := m.State

	if got := next.Positions["p1"].MarketValue; got != 40 {
		t.Errorf("p1 value = %d, want 40", got)
	}
	if got := next.Positions["p2"].MarketValue; got != 60 {
		t.Errorf("p2 value = %d, want 60", got)
	}
	g := next.Goals["g"]
	if !g.Spent() || !g.SpentAt.Equal(testTime) {
		t.Errorf("goal not spent: %+v", g)
	}
	// The goal's allocations are gone; the bystander survives since p1
	// still covers it (40 <= 40).
	wantAmounts(t, next, map[string]int64{"other/p1": 40})

	spent := m.Events[0].Payload.(GoalSpent)
	if len(spent.Payments) != 2 {
		t.Fatalf("payments = %+v", spent.Payments)
	}
	if spent.Payments[0].PositionID != "p1" || spent.Payments[0].ValueBefore != 100 || spent.Payments[0].ValueAfter != 40 {
		t.Errorf("payment detail = %+v", spent.Payments[0])
	}
}

func TestSpendGoalRefitsBystanders(t *testing.T) {
	f := newFixture().
		account("acc", ScopePersonal).
		position("p1", "acc", 110, ModeFixed).
		closedGoal("g", ScopePersonal, 100, testTime.Add(-time.Hour)).
		goal("other", ScopePersonal, 100, 0).
		alloc("a1", "g", "p1", 60).
		alloc("a2", "other", "p1", 60)

	m, err := f.state.SpendGoal("g", map[string]int64{"p1": 60}, testMeta())
	if err != nil {
		t.Fatal(err)
	}
	// p1 drops to 50; the bystander's 60 no longer fits and shrinks.
	wantAmounts(t, m.State, map[string]int64{"other/p1": 50})
	if m.Notice == nil || m.Notice.Reason != ReasonSpend {
		t.Fatalf("notice = %+v, want a goal_spent reduction", m.Notice)
	}
	if len(m.Events) != 2 || m.Events[1].Type() != EvAllocationsReduced {
		t.Errorf("events = %v, want goal_spent then allocations_reduced", m.Events)
	}
}

func TestSpendGoalRejects(t *testing.T) {
	cases := []struct {
		name     string
		goal     string
		payments map[string]int64
		stage    func(*fixture)
	}{
		{"unknown goal", "nope", map[string]int64{"p1": 60}, nil},
		{"active goal", "other", map[string]int64{"p1": 40}, nil},
		{"payments under total", "g", map[string]int64{"p1": 60, "p2": 39}, nil},
		{"payments over allocation", "g", map[string]int64{"p1": 61, "p2": 39}, nil},
		{"payment from unallocated position", "g", map[string]int64{"p1": 60, "p2": 30, "px": 10}, nil},
		{"negative payment", "g", map[string]int64{"p1": -1, "p2": 40}, nil},
		{"payment over position value", "g", map[string]int64{"p1": 60, "p2": 40}, func(f *fixture) {
			p := f.state.Positions["p2"]
			p.MarketValue = 39
			f.state.Positions["p2"] = p
		}},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			f := spendFixture()
			if tt.stage != nil {
				tt.stage(f)
			}
			if _, err := f.state.SpendGoal(tt.goal, tt.payments, testMeta()); err == nil {
				t.Error("accepted")
			}
		})
	}
}

func TestSpendGoalRequiresAllocations(t *testing.T) {
	f := newFixture().closedGoal("g", ScopePersonal, 100, testTime)
	if _, err := f.state.SpendGoal("g", nil, testMeta()); err == nil {
		t.Error("spend of unfunded goal accepted")
	}
}

func TestUndoSpendRestores(t *testing.T) {
	f := spendFixture()
	m, err := f.state.SpendGoal("g", map[string]int64{"p1": 60, "p2": 40}, testMeta())
	if err != nil {
		t.Fatal(err)
	}
	payload := m.Events[0].Payload.(GoalSpent)

	undone, err := m.State.UndoSpend(payload, testMeta())
	if err != nil {
		t.Fatal(err)
	}
	next := undone.State
	if got := next.Positions["p1"].MarketValue; got != 100 {
		t.Errorf("p1 value = %d, want 100", got)
	}
	if got := next.Positions["p2"].MarketValue; got != 100 {
		t.Errorf("p2 value = %d, want 100", got)
	}
	if next.Goals["g"].Spent() {
		t.Error("goal still spent")
	}
	wantAmounts(t, next, map[string]int64{"g/p1": 60, "g/p2": 40, "other/p1": 40})

	if undone.Events[0].Type() != EvSpendUndone {
		t.Errorf("first event = %v", undone.Events[0].Type())
	}
}

func TestUndoSpendRejects(t *testing.T) {
	f := spendFixture()
	m, err := f.state.SpendGoal("g", map[string]int64{"p1": 60, "p2": 40}, testMeta())
	if err != nil {
		t.Fatal(err)
	}
	payload := m.Events[0].Payload.(GoalSpent)

	t.Run("not spent", func(t *testing.T) {
		if _, err := f.state.UndoSpend(payload, testMeta()); err == nil {
			t.Error("undo on unspent state accepted")
		}
	})
	t.Run("mismatched timestamp", func(t *testing.T) {
		stale := payload
		stale.SpentAt = payload.SpentAt.Add(time.Minute)
		if _, err := m.State.UndoSpend(stale, testMeta()); err == nil {
			t.Error("stale record accepted")
		}
	})
	t.Run("goal regained allocations", func(t *testing.T) {
		s := m.State.Clone()
		s.Allocations["new"] = Allocation{ID: "new", GoalID: "g", PositionID: "p1", Amount: 1}
		if _, err := s.UndoSpend(payload, testMeta()); err == nil {
			t.Error("undo accepted despite a newer allocation")
		}
	})
	t.Run("paying position deleted", func(t *testing.T) {
		s := m.State.Clone()
		delete(s.Positions, "p2")
		if _, err := s.UndoSpend(payload, testMeta()); err == nil {
			t.Error("undo accepted with a missing position")
		}
	})
}

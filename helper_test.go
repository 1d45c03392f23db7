package earmark

import (
	"fmt"
	"testing"
	"time"
)

// testTime is the fixed clock all tests mint events at.
var testTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// testMeta returns a deterministic EventMeta: a fixed clock and sequential
// ids ("id-1", "id-2", ...).
func testMeta() EventMeta {
	n := 0
	return EventMeta{
		Now: testTime,
		NewID: func() string {
			n++
			return fmt.Sprintf("id-%d", n)
		},
	}
}

// fixture builds states for tests. Entities are inserted directly, skipping
// the mutation layer, so invalid shapes can be staged for repair tests.
type fixture struct {
	state *NormalizedState
}

func newFixture() *fixture {
	return &fixture{state: NewState()}
}

func (f *fixture) account(id string, scope Scope) *fixture {
	f.state.Accounts[id] = Account{ID: id, Scope: scope, Name: "account " + id}
	return f
}

func (f *fixture) position(id, accountID string, value int64, mode AllocationMode) *fixture {
	f.state.Positions[id] = Position{
		ID:          id,
		AccountID:   accountID,
		AssetType:   AssetSavings,
		Label:       "position " + id,
		MarketValue: value,
		Mode:        mode,
		UpdatedAt:   testTime,
	}
	return f
}

func (f *fixture) goal(id string, scope Scope, target int64, priority int) *fixture {
	f.state.Goals[id] = Goal{
		ID:       id,
		Scope:    scope,
		Name:     "goal " + id,
		Target:   target,
		Priority: priority,
		Status:   GoalStatusActive,
	}
	return f
}

func (f *fixture) closedGoal(id string, scope Scope, target int64, closedAt time.Time) *fixture {
	f.goal(id, scope, target, 0)
	g := f.state.Goals[id]
	g.Status = GoalStatusClosed
	g.ClosedAt = &closedAt
	f.state.Goals[id] = g
	return f
}

func (f *fixture) alloc(id, goalID, positionID string, amount int64) *fixture {
	f.state.Allocations[id] = Allocation{ID: id, GoalID: goalID, PositionID: positionID, Amount: amount}
	return f
}

// amounts returns the allocation amounts keyed by (goal, position).
func amounts(s *NormalizedState) map[string]int64 {
	out := make(map[string]int64)
	for _, a := range s.Allocations {
		out[a.GoalID+"/"+a.PositionID] = a.Amount
	}
	return out
}

// wantAmounts fails the test unless the state's allocations match want
// exactly.
func wantAmounts(t *testing.T, s *NormalizedState, want map[string]int64) {
	t.Helper()
	got := amounts(s)
	if len(got) != len(want) {
		t.Fatalf("got %d allocations %v, want %d %v", len(got), got, len(want), want)
	}
	for key, amount := range want {
		if got[key] != amount {
			t.Errorf("allocation %s = %d, want %d", key, got[key], amount)
		}
	}
}

package earmark

import (
	"sort"
	"time"
)

// Account groups positions under one scope. The scope is fixed at creation;
// moving an account between scopes would silently break the scope invariant
// of every allocation below it.
type Account struct {
	ID    string `json:"id"`
	Scope Scope  `json:"scope"`
	Name  string `json:"name"`
}

// Position is a valued holding inside an account. MarketValue is a
// non-negative integer in the smallest currency unit.
type Position struct {
	ID          string         `json:"id"`
	AccountID   string         `json:"accountId"`
	AssetType   AssetType      `json:"assetType"`
	Label       string         `json:"label"`
	MarketValue int64          `json:"marketValue"`
	Mode        AllocationMode `json:"allocationMode"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// Goal is a savings target. Priority orders goals, lower is more urgent.
// A goal with SpentAt set is terminal: immutable and without allocations.
type Goal struct {
	ID        string     `json:"id"`
	Scope     Scope      `json:"scope"`
	Name      string     `json:"name"`
	Target    int64      `json:"targetAmount"`
	Priority  int        `json:"priority"`
	Status    GoalStatus `json:"status"`
	StartDate Date       `json:"startDate,omitzero"`
	EndDate   Date       `json:"endDate,omitzero"`
	ClosedAt  *time.Time `json:"closedAt,omitempty"`
	SpentAt   *time.Time `json:"spentAt,omitempty"`
}

// Spent reports whether the goal has been spent (terminal state).
func (g Goal) Spent() bool { return g.SpentAt != nil }

// Inactive reports whether the goal no longer competes for funds.
func (g Goal) Inactive() bool { return g.Status == GoalStatusClosed || g.Spent() }

// Allocation earmarks part of a position's value for a goal. Amount is
// strictly positive: a zero allocation is deleted, never stored. At most one
// allocation exists per (goal, position) pair.
type Allocation struct {
	ID         string `json:"id"`
	GoalID     string `json:"goalId"`
	PositionID string `json:"positionId"`
	Amount     int64  `json:"allocatedAmount"`
}

// NormalizedState is the in-memory relational snapshot of all four entity
// collections, keyed by id. It is treated as immutable: every mutation clones
// the maps it touches and returns a new value. Entities are plain values,
// related only by id, never by pointer.
type NormalizedState struct {
	Accounts    map[string]Account
	Positions   map[string]Position
	Goals       map[string]Goal
	Allocations map[string]Allocation
}

// NewState creates an empty state.
func NewState() *NormalizedState {
	return &NormalizedState{
		Accounts:    make(map[string]Account),
		Positions:   make(map[string]Position),
		Goals:       make(map[string]Goal),
		Allocations: make(map[string]Allocation),
	}
}

// Clone returns a deep copy. Entities are values, so copying the maps is
// enough.
func (s *NormalizedState) Clone() *NormalizedState {
	next := &NormalizedState{
		Accounts:    make(map[string]Account, len(s.Accounts)),
		Positions:   make(map[string]Position, len(s.Positions)),
		Goals:       make(map[string]Goal, len(s.Goals)),
		Allocations: make(map[string]Allocation, len(s.Allocations)),
	}
	for id, a := range s.Accounts {
		next.Accounts[id] = a
	}
	for id, p := range s.Positions {
		next.Positions[id] = p
	}
	for id, g := range s.Goals {
		next.Goals[id] = g
	}
	for id, a := range s.Allocations {
		next.Allocations[id] = a
	}
	return next
}

// EventMeta carries the impure inputs a mutation needs to mint audit events:
// the current time and an id generator. Keeping them out of the mutation
// bodies keeps the functions deterministic and testable.
type EventMeta struct {
	Now   time.Time
	NewID func() string
}

// Mutation is the result of a successful state mutation.
type Mutation struct {
	State  *NormalizedState
	Events []PendingEvent
	Notice *AllocationNotice
}

// --- deterministic iteration helpers ---
//
// Go map iteration order is random; every algorithm below that walks a
// collection does so through one of these sorted views.

// SortedAccounts returns all accounts ordered by id.
func (s *NormalizedState) SortedAccounts() []Account {
	out := make([]Account, 0, len(s.Accounts))
	for _, a := range s.Accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SortedPositions returns all positions ordered by id.
func (s *NormalizedState) SortedPositions() []Position {
	out := make([]Position, 0, len(s.Positions))
	for _, p := range s.Positions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SortedGoals returns all goals ordered by id.
func (s *NormalizedState) SortedGoals() []Goal {
	out := make([]Goal, 0, len(s.Goals))
	for _, g := range s.Goals {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SortedAllocations returns all allocations ordered by (goalId, positionId).
func (s *NormalizedState) SortedAllocations() []Allocation {
	out := make([]Allocation, 0, len(s.Allocations))
	for _, a := range s.Allocations {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].GoalID != out[j].GoalID {
			return out[i].GoalID < out[j].GoalID
		}
		return out[i].PositionID < out[j].PositionID
	})
	return out
}

// --- relational lookups ---

// AllocationsOf returns the allocations drawing on a position, ordered by
// goal id.
func (s *NormalizedState) AllocationsOf(positionID string) []Allocation {
	var out []Allocation
	for _, a := range s.SortedAllocations() {
		if a.PositionID == positionID {
			out = append(out, a)
		}
	}
	return out
}

// AllocationsFor returns the allocations funding a goal, ordered by position
// id.
func (s *NormalizedState) AllocationsFor(goalID string) []Allocation {
	var out []Allocation
	for _, a := range s.SortedAllocations() {
		if a.GoalID == goalID {
			out = append(out, a)
		}
	}
	return out
}

// AllocationByKey returns the unique allocation for a (goal, position) pair.
func (s *NormalizedState) AllocationByKey(goalID, positionID string) (Allocation, bool) {
	for _, a := range s.Allocations {
		if a.GoalID == goalID && a.PositionID == positionID {
			return a, true
		}
	}
	return Allocation{}, false
}

// PositionTotal returns the sum of allocation amounts drawing on a position.
func (s *NormalizedState) PositionTotal(positionID string) int64 {
	var total int64
	for _, a := range s.Allocations {
		if a.PositionID == positionID {
			total += a.Amount
		}
	}
	return total
}

// GoalTotal returns the sum of allocation amounts funding a goal.
func (s *NormalizedState) GoalTotal(goalID string) int64 {
	var total int64
	for _, a := range s.Allocations {
		if a.GoalID == goalID {
			total += a.Amount
		}
	}
	return total
}

// PositionsOf returns the positions of an account, ordered by id.
func (s *NormalizedState) PositionsOf(accountID string) []Position {
	var out []Position
	for _, p := range s.SortedPositions() {
		if p.AccountID == accountID {
			out = append(out, p)
		}
	}
	return out
}

// positionScope resolves the scope of the account owning a position.
func (s *NormalizedState) positionScope(positionID string) (Scope, bool) {
	p, ok := s.Positions[positionID]
	if !ok {
		return "", false
	}
	acc, ok := s.Accounts[p.AccountID]
	if !ok {
		return "", false
	}
	return acc.Scope, true
}

// maxActivePriority returns the highest priority number among active goals,
// or -1 when there is none.
func (s *NormalizedState) maxActivePriority() int {
	max := -1
	for _, g := range s.Goals {
		if g.Status == GoalStatusActive && !g.Spent() && g.Priority > max {
			max = g.Priority
		}
	}
	return max
}

package earmark

import "fmt"

// SetAllocation creates, updates or deletes the unique allocation for a
// (goal, position) pair. Setting the amount to 0 deletes it. The amount is
// validated against the position's remaining capacity, the goal's remaining
// capacity, the scope invariant, and the spent-goal rule.
func (s *NormalizedState) SetAllocation(goalID, positionID string, amount int64, meta EventMeta) (Mutation, error) {
	meta = meta.withDefaults()
	g, ok := s.Goals[goalID]
	if !ok {
		return Mutation{}, errUnknown("goal", goalID)
	}
	pos, ok := s.Positions[positionID]
	if !ok {
		return Mutation{}, errUnknown("position", positionID)
	}
	if err := requireNonNegative("allocated amount", amount); err != nil {
		return Mutation{}, err
	}
	if g.Spent() {
		return Mutation{}, errGoalSpent(goalID)
	}
	scope, ok := s.positionScope(positionID)
	if !ok || scope != g.Scope {
		return Mutation{}, errScopeMismatch(goalID, positionID)
	}

	existing, exists := s.AllocationByKey(goalID, positionID)
	var own int64
	if exists {
		own = existing.Amount
	}
	if amount > 0 {
		if s.PositionTotal(positionID)-own+amount > pos.MarketValue {
			return Mutation{}, fmt.Errorf("allocating %d exceeds the value of position %q", amount, positionID)
		}
		if s.GoalTotal(goalID)-own+amount > g.Target {
			return Mutation{}, fmt.Errorf("allocating %d exceeds the target of goal %q", amount, goalID)
		}
	}

	next := s.Clone()
	switch {
	case amount == 0 && !exists:
		return Mutation{}, fmt.Errorf("no allocation between goal %q and position %q", goalID, positionID)
	case amount == 0:
		delete(next.Allocations, existing.ID)
	case exists:
		existing.Amount = amount
		next.Allocations[existing.ID] = existing
	default:
		id := meta.NewID()
		next.Allocations[id] = Allocation{ID: id, GoalID: goalID, PositionID: positionID, Amount: amount}
	}

	return Mutation{
		State: next,
		Events: []PendingEvent{newEvent(meta, AllocationSet{
			GoalID:     goalID,
			PositionID: positionID,
			Before:     own,
			After:      amount,
		})},
	}, nil
}

// AllocationReduction asks ReduceAllocations to lower the (goal, position)
// allocation by Amount.
type AllocationReduction struct {
	GoalID     string
	PositionID string
	Amount     int64
}

// ReduceAllocations reduces a set of allocations by the given amounts in one
// atomic mutation, backing "remove all" style actions. It fails, changing
// nothing, if any reduction exceeds the current allocation amount or targets
// a spent goal.
func (s *NormalizedState) ReduceAllocations(reductions []AllocationReduction, meta EventMeta) (Mutation, error) {
	meta = meta.withDefaults()
	if len(reductions) == 0 {
		return Mutation{}, fmt.Errorf("no reductions given")
	}

	changes := make([]AllocationChange, 0, len(reductions))
	for _, r := range reductions {
		a, ok := s.AllocationByKey(r.GoalID, r.PositionID)
		if !ok {
			return Mutation{}, fmt.Errorf("no allocation between goal %q and position %q", r.GoalID, r.PositionID)
		}
		if g, ok := s.Goals[r.GoalID]; ok && g.Spent() {
			return Mutation{}, errGoalSpent(r.GoalID)
		}
		if r.Amount <= 0 {
			return Mutation{}, fmt.Errorf("reduction for goal %q must be positive, got %d", r.GoalID, r.Amount)
		}
		if r.Amount > a.Amount {
			return Mutation{}, fmt.Errorf("cannot reduce allocation of %d by %d for goal %q", a.Amount, r.Amount, r.GoalID)
		}
		changes = append(changes, AllocationChange{
			GoalID:     r.GoalID,
			PositionID: r.PositionID,
			Before:     a.Amount,
			After:      a.Amount - r.Amount,
		})
	}

	next := s.Clone()
	applyChanges(next, changes)
	return Mutation{
		State:  next,
		Events: []PendingEvent{newEvent(meta, AllocationsReduced{Reason: ReasonBatch, Changes: changes})},
	}, nil
}

package earmark

import (
	"fmt"
	"sort"
)

// SpendGoal consumes a closed goal: the caller says how much to pay out of
// each allocated position, the payments must add up to the goal's allocation
// total exactly, and each payment is capped by that position's allocation for
// the goal. Position values drop by their payment, the goal's allocations are
// removed, the goal is stamped spent, and every paying position is re-fitted
// to its new, lower value.
//
// The emitted goal_spent event carries a full snapshot of the operation,
// sufficient to reverse it with UndoSpend.
func (s *NormalizedState) SpendGoal(goalID string, payments map[string]int64, meta EventMeta) (Mutation, error) {
	meta = meta.withDefaults()
	g, ok := s.Goals[goalID]
	if !ok {
		return Mutation{}, errUnknown("goal", goalID)
	}
	if g.Spent() {
		return Mutation{}, errGoalSpent(goalID)
	}
	if g.Status != GoalStatusClosed {
		return Mutation{}, fmt.Errorf("goal %q must be closed before it can be spent", goalID)
	}
	allocs := s.AllocationsFor(goalID)
	if len(allocs) == 0 {
		return Mutation{}, fmt.Errorf("goal %q has no allocations to spend", goalID)
	}

	allocated := make(map[string]int64, len(allocs))
	var allocTotal int64
	for _, a := range allocs {
		allocated[a.PositionID] = a.Amount
		allocTotal += a.Amount
	}
	var paymentTotal int64
	for pid, amount := range payments {
		own, ok := allocated[pid]
		if !ok {
			return Mutation{}, fmt.Errorf("payment from position %q, which has no allocation for goal %q", pid, goalID)
		}
		if amount < 0 {
			return Mutation{}, fmt.Errorf("payment from position %q must not be negative", pid)
		}
		if amount > own {
			return Mutation{}, fmt.Errorf("payment %d from position %q exceeds its allocation of %d", amount, pid, own)
		}
		if p := s.Positions[pid]; amount > p.MarketValue {
			return Mutation{}, fmt.Errorf("payment %d from position %q exceeds its value of %d", amount, pid, p.MarketValue)
		}
		paymentTotal += amount
	}
	if paymentTotal != allocTotal {
		return Mutation{}, fmt.Errorf("payments total %d but goal %q has %d allocated; they must match exactly", paymentTotal, goalID, allocTotal)
	}

	next := s.Clone()

	// Build the reversible payload walking the goal's allocations in
	// position order.
	spent := GoalSpent{GoalID: goalID, SpentAt: meta.Now}
	for _, a := range allocs {
		pos := next.Positions[a.PositionID]
		payment := payments[a.PositionID]
		detail := SpendPayment{
			PositionID:  a.PositionID,
			Amount:      payment,
			Allocated:   a.Amount,
			ValueBefore: pos.MarketValue,
			ValueAfter:  pos.MarketValue - payment,
		}
		spent.Payments = append(spent.Payments, detail)

		pos.MarketValue = detail.ValueAfter
		pos.UpdatedAt = meta.Now
		next.Positions[a.PositionID] = pos
		delete(next.Allocations, a.ID)
	}

	spentAt := meta.Now
	g.SpentAt = &spentAt
	next.Goals[goalID] = g

	// The paying positions shrank; other goals' allocations on them may no
	// longer fit.
	var reductions []AllocationChange
	for _, detail := range spent.Payments {
		pos := next.Positions[detail.PositionID]
		if next.PositionTotal(pos.ID) <= pos.MarketValue {
			continue
		}
		changes := reduceToTotal(next, next.AllocationsOf(pos.ID), pos.MarketValue)
		applyChanges(next, changes)
		reductions = append(reductions, changes...)
	}

	events := []PendingEvent{newEvent(meta, spent)}
	var notice *AllocationNotice
	if len(reductions) > 0 {
		notice = newNotice(s, ReasonSpend, affectedPositionValue(next, reductions), reductions)
		events = append(events, newEvent(meta, AllocationsReduced{Reason: ReasonSpend, Changes: reductions}))
	}
	return Mutation{State: next, Events: events, Notice: notice}, nil
}

// UndoSpend reverses a spend, given the goal_spent payload recorded when it
// happened. It is legal only while the goal is still spent with the exact
// same timestamp, and only if the goal has gained no allocation since: any
// allocation created after the spend permanently forecloses undo, by design.
//
// Position values and allocations are restored from the payload, then an
// integrity-repair pass absorbs any drift (a position may have changed value
// since the spend).
func (s *NormalizedState) UndoSpend(payload GoalSpent, meta EventMeta) (Mutation, error) {
	meta = meta.withDefaults()
	g, ok := s.Goals[payload.GoalID]
	if !ok {
		return Mutation{}, errUnknown("goal", payload.GoalID)
	}
	if !g.Spent() {
		return Mutation{}, fmt.Errorf("goal %q is not spent", payload.GoalID)
	}
	if !g.SpentAt.Equal(payload.SpentAt) {
		return Mutation{}, fmt.Errorf("spend record does not match goal %q: it was spent at %s", payload.GoalID, g.SpentAt)
	}
	if len(s.AllocationsFor(payload.GoalID)) != 0 {
		return Mutation{}, fmt.Errorf("goal %q has gained allocations since the spend; undo is no longer possible", payload.GoalID)
	}
	for _, detail := range payload.Payments {
		if _, ok := s.Positions[detail.PositionID]; !ok {
			return Mutation{}, fmt.Errorf("position %q from the spend no longer exists", detail.PositionID)
		}
		if _, exists := s.AllocationByKey(payload.GoalID, detail.PositionID); exists {
			return Mutation{}, fmt.Errorf("restoring the allocation on position %q would collide with a newer one", detail.PositionID)
		}
	}

	next := s.Clone()
	details := make([]SpendPayment, len(payload.Payments))
	copy(details, payload.Payments)
	sort.Slice(details, func(i, j int) bool { return details[i].PositionID < details[j].PositionID })
	for _, detail := range details {
		pos := next.Positions[detail.PositionID]
		pos.MarketValue += detail.Amount
		pos.UpdatedAt = meta.Now
		next.Positions[detail.PositionID] = pos

		id := meta.NewID()
		next.Allocations[id] = Allocation{
			ID:         id,
			GoalID:     payload.GoalID,
			PositionID: detail.PositionID,
			Amount:     detail.Allocated,
		}
	}
	g.SpentAt = nil
	next.Goals[payload.GoalID] = g

	events := []PendingEvent{newEvent(meta, SpendUndone{GoalID: payload.GoalID, SpentAt: payload.SpentAt})}

	// The world may have moved since the spend; let repair settle the rest.
	repaired := Repair(next, meta)
	events = append(events, repaired.Events...)
	return Mutation{State: repaired.State, Events: events, Notice: repaired.Notice}, nil
}

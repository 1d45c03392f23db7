package earmark

import (
	"fmt"
	"sort"
)

// RepairResult is the outcome of an integrity-repair pass.
type RepairResult struct {
	State    *NormalizedState
	Notice   *AllocationNotice
	Warnings []string
	Events   []PendingEvent
	Changed  bool
}

// Repair closes integrity gaps in a freshly loaded state: gaps left by prior
// bugs, concurrent edits, or partial failures. It is pure and idempotent;
// running it on its own output changes nothing.
//
// Steps, in order: clamp negative amounts to zero; drop allocations with a
// missing or spent goal, a missing position, or mismatched scopes;
// de-duplicate allocations sharing a (goal, position) key; re-fit every
// position whose allocations exceed its value; proportionally shrink every
// goal allocated beyond its target; remove allocations left at zero.
//
// If anything changed, a single state_repaired event summarizes the pass, and
// reductions are surfaced through an integrity_repair notice.
func Repair(state *NormalizedState, meta EventMeta) RepairResult {
	meta = meta.withDefaults()
	next := state.Clone()
	var warnings []string
	var summary StateRepaired

	warn := func(format string, args ...any) {
		warnings = append(warnings, fmt.Sprintf(format, args...))
	}

	// Step 1: clamp negative amounts.
	for _, p := range next.SortedPositions() {
		if p.MarketValue < 0 {
			warn("position %q had negative value %d, clamped to 0", p.ID, p.MarketValue)
			p.MarketValue = 0
			next.Positions[p.ID] = p
			summary.ClampedValues++
		}
	}
	for _, g := range next.SortedGoals() {
		if g.Target < 0 {
			warn("goal %q had negative target %d, clamped to 0", g.ID, g.Target)
			g.Target = 0
			next.Goals[g.ID] = g
			summary.ClampedValues++
		}
	}
	for _, a := range next.SortedAllocations() {
		if a.Amount < 0 {
			warn("allocation %q had negative amount %d, clamped to 0", a.ID, a.Amount)
			a.Amount = 0
			next.Allocations[a.ID] = a
			summary.ClampedValues++
		}
	}

	// Step 2: drop dangling, cross-scope and spent-goal allocations.
	for _, a := range next.SortedAllocations() {
		g, goalOK := next.Goals[a.GoalID]
		scope, posOK := next.positionScope(a.PositionID)
		switch {
		case !goalOK:
			warn("allocation %q references missing goal %q, dropped", a.ID, a.GoalID)
		case !posOK:
			warn("allocation %q references missing position %q, dropped", a.ID, a.PositionID)
		case g.Spent():
			warn("allocation %q funds spent goal %q, dropped", a.ID, a.GoalID)
		case g.Scope != scope:
			warn("allocation %q links goal %q and position %q across scopes, dropped", a.ID, a.GoalID, a.PositionID)
		default:
			continue
		}
		delete(next.Allocations, a.ID)
		summary.DroppedAllocations++
	}

	// Step 3: de-duplicate by (goal, position) key, keeping the largest.
	byKey := make(map[[2]string]Allocation)
	for _, a := range next.SortedAllocations() {
		key := [2]string{a.GoalID, a.PositionID}
		kept, seen := byKey[key]
		if !seen {
			byKey[key] = a
			continue
		}
		drop := a
		if a.Amount > kept.Amount {
			drop = kept
			byKey[key] = a
		}
		warn("duplicate allocation for goal %q and position %q, kept the larger", a.GoalID, a.PositionID)
		delete(next.Allocations, drop.ID)
		summary.Deduplicated++
	}

	// Step 4: re-fit positions over capacity.
	var reductions []AllocationChange
	for _, p := range next.SortedPositions() {
		if next.PositionTotal(p.ID) <= p.MarketValue {
			continue
		}
		warn("position %q is allocated beyond its value, reduced to fit", p.ID)
		changes := reduceToTotal(next, next.AllocationsOf(p.ID), p.MarketValue)
		applyChanges(next, changes)
		reductions = append(reductions, changes...)
	}

	// Step 5: proportionally shrink goals over target. The rounding remainder
	// goes to the largest allocation, ties by positionId.
	for _, g := range next.SortedGoals() {
		allocs := next.AllocationsFor(g.ID)
		var sum int64
		for _, a := range allocs {
			sum += a.Amount
		}
		if sum <= g.Target {
			continue
		}
		warn("goal %q is funded beyond its target, reduced to fit", g.ID)
		scaled := proportionalScale(allocs, sum, g.Target, func(a, b Allocation) bool {
			return a.PositionID < b.PositionID
		})
		for i, a := range allocs {
			if scaled[i].Amount == a.Amount {
				continue
			}
			c := AllocationChange{GoalID: a.GoalID, PositionID: a.PositionID, Before: a.Amount, After: scaled[i].Amount}
			applyChanges(next, []AllocationChange{c})
			reductions = append(reductions, c)
		}
	}
	summary.ReducedAllocations = len(reductions)

	// Step 6: remove allocations left at zero.
	for _, a := range next.SortedAllocations() {
		if a.Amount == 0 {
			warn("allocation %q is empty, removed", a.ID)
			delete(next.Allocations, a.ID)
			summary.RemovedEmpty++
		}
	}

	result := RepairResult{State: next, Warnings: warnings}
	changed := summary != (StateRepaired{})
	if !changed {
		return result
	}
	result.Changed = true
	result.Events = []PendingEvent{newEvent(meta, summary)}
	if len(reductions) > 0 {
		result.Notice = newNotice(state, ReasonRepair, affectedPositionValue(next, reductions), reductions)
	}
	return result
}

// affectedPositionValue aggregates the market value of every distinct
// position touched by a set of reductions. It is the base value against
// which repair reductions are judged "too large".
func affectedPositionValue(state *NormalizedState, changes []AllocationChange) int64 {
	seen := make(map[string]bool)
	var ids []string
	for _, c := range changes {
		if !seen[c.PositionID] {
			seen[c.PositionID] = true
			ids = append(ids, c.PositionID)
		}
	}
	sort.Strings(ids)
	var total int64
	for _, id := range ids {
		if p, ok := state.Positions[id]; ok {
			total += p.MarketValue
		}
	}
	return total
}

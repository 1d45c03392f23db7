package earmark

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// This file implements the allocation recalculation engine: the reduction
// primitive, the proportional rescaling helper, and the three position-level
// modes (fixed, ratio, priority). All orderings below are fully deterministic
// and are part of the package's contract; tests pin them down.

// scaleFloor computes floor(amount * newValue / oldValue) exactly. The
// intermediate product can overflow int64 for large balances, so the math
// goes through decimals.
func scaleFloor(amount, oldValue, newValue int64) int64 {
	num := decimal.NewFromInt(amount).Mul(decimal.NewFromInt(newValue))
	q, _ := num.QuoRem(decimal.NewFromInt(oldValue), 0)
	return q.IntPart()
}

// RecalculateAllocations proportionally rescales a set of allocations from an
// oldValue base to a newValue base: every amount is scaled with floor
// division, then the rounding remainder (newValue - sum of floored amounts)
// is handed out one unit at a time to the allocations sorted by original
// amount descending, ties broken by id ascending.
//
// When oldValue is 0 there is no base to scale from and the input is returned
// unchanged.
func RecalculateAllocations(allocs []Allocation, oldValue, newValue int64) []Allocation {
	return proportionalScale(allocs, oldValue, newValue, func(a, b Allocation) bool {
		return a.ID < b.ID
	})
}

// proportionalScale is the shared floor-then-remainder rescaling, with a
// caller-chosen tie-break for equal original amounts. RecalculateAllocations
// breaks ties by allocation id; repair's per-goal shrink breaks them by
// positionId.
func proportionalScale(allocs []Allocation, oldValue, newValue int64, tieLess func(a, b Allocation) bool) []Allocation {
	out := make([]Allocation, len(allocs))
	copy(out, allocs)
	if oldValue == 0 || len(allocs) == 0 {
		return out
	}

	var sum int64
	for i := range out {
		out[i].Amount = scaleFloor(out[i].Amount, oldValue, newValue)
		sum += out[i].Amount
	}

	// Hand out the remainder by original weight. The order is computed on the
	// inputs, not the scaled values.
	order := make([]int, len(allocs))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		ia, ib := allocs[order[a]], allocs[order[b]]
		if ia.Amount != ib.Amount {
			return ia.Amount > ib.Amount
		}
		return tieLess(ia, ib)
	})
	for remainder := newValue - sum; remainder > 0; {
		for _, idx := range order {
			if remainder == 0 {
				break
			}
			out[idx].Amount++
			remainder--
		}
	}
	return out
}

// goalClosedTime returns when a goal stopped being active, for the
// most-recently-closed-first ordering. Spent goals fall back to their spend
// time when the close time is missing.
func goalClosedTime(g Goal, ok bool) time.Time {
	if !ok {
		return time.Time{}
	}
	if g.ClosedAt != nil {
		return *g.ClosedAt
	}
	if g.SpentAt != nil {
		return *g.SpentAt
	}
	return time.Time{}
}

// reduceToTotal shrinks a set of allocations until their sum fits target.
// This is the single reduction primitive shared by position-value shrink,
// goal-target shrink, spend re-fitting and integrity repair.
//
// Reduction order: allocations of inactive goals (closed or spent) lose
// first, most recently closed first; then active goals, highest priority
// number (least urgent) first; ties broken by goalId then positionId. Each
// allocation absorbs min(its amount, what is still needed).
//
// The state is only read; the returned changes are not applied.
func reduceToTotal(state *NormalizedState, allocs []Allocation, target int64) []AllocationChange {
	var sum int64
	for _, a := range allocs {
		sum += a.Amount
	}
	excess := sum - target
	if excess <= 0 {
		return nil
	}

	ordered := make([]Allocation, len(allocs))
	copy(ordered, allocs)
	sort.Slice(ordered, func(i, j int) bool {
		gi, iok := state.Goals[ordered[i].GoalID]
		gj, jok := state.Goals[ordered[j].GoalID]
		ii := !iok || gi.Inactive()
		ij := !jok || gj.Inactive()
		if ii != ij {
			return ii // inactive first
		}
		if ii {
			ti, tj := goalClosedTime(gi, iok), goalClosedTime(gj, jok)
			if !ti.Equal(tj) {
				return ti.After(tj) // most recently closed first
			}
		} else if gi.Priority != gj.Priority {
			return gi.Priority > gj.Priority // least urgent first
		}
		if ordered[i].GoalID != ordered[j].GoalID {
			return ordered[i].GoalID < ordered[j].GoalID
		}
		return ordered[i].PositionID < ordered[j].PositionID
	})

	var changes []AllocationChange
	for _, a := range ordered {
		if excess == 0 {
			break
		}
		cut := min(a.Amount, excess)
		changes = append(changes, AllocationChange{
			GoalID:     a.GoalID,
			PositionID: a.PositionID,
			Before:     a.Amount,
			After:      a.Amount - cut,
		})
		excess -= cut
	}
	return changes
}

// rescalePosition recomputes a position's allocations after its market value
// moved from oldValue to newValue, according to the position's allocation
// mode. The returned changes (reductions and, for ratio/priority, increases)
// are not applied to the state.
func rescalePosition(state *NormalizedState, pos Position, oldValue, newValue int64) []AllocationChange {
	allocs := state.AllocationsOf(pos.ID)
	if len(allocs) == 0 {
		return nil
	}

	switch pos.Mode {
	case ModeRatio:
		if oldValue == 0 {
			// No base to redistribute from: behave like fixed.
			return reduceToTotal(state, allocs, newValue)
		}
		return ratioRescale(state, pos, allocs, oldValue, newValue)
	case ModePriority:
		if newValue > oldValue {
			return distributeIncrease(state, allocs, newValue-oldValue)
		}
		return reduceToTotal(state, allocs, newValue)
	default: // ModeFixed
		return reduceToTotal(state, allocs, newValue)
	}
}

// ratioBucket is one share of a position's value during ratio rescaling: an
// allocation, or the synthetic unallocated remainder (alloc == nil).
type ratioBucket struct {
	alloc  *Allocation
	weight int64 // original amount
	scaled int64
}

// ratioRescale scales every allocation of the position, plus a synthetic
// "unallocated" bucket, by newValue/oldValue with floor division, then
// distributes the rounding remainder one unit per bucket ordered by: largest
// original weight, allocation buckets before the unallocated one, active
// goals before inactive, lower goal priority, then goalId, then positionId.
//
// After distribution each allocation is clamped to its goal's remaining
// capacity; clamped amounts flow back to the unallocated bucket, never to
// other goals.
func ratioRescale(state *NormalizedState, pos Position, allocs []Allocation, oldValue, newValue int64) []AllocationChange {
	buckets := make([]*ratioBucket, 0, len(allocs)+1)
	var allocated int64
	for i := range allocs {
		buckets = append(buckets, &ratioBucket{alloc: &allocs[i], weight: allocs[i].Amount})
		allocated += allocs[i].Amount
	}
	buckets = append(buckets, &ratioBucket{weight: oldValue - allocated})

	var sum int64
	for _, b := range buckets {
		b.scaled = scaleFloor(b.weight, oldValue, newValue)
		sum += b.scaled
	}

	order := make([]*ratioBucket, len(buckets))
	copy(order, buckets)
	sort.Slice(order, func(i, j int) bool {
		bi, bj := order[i], order[j]
		if bi.weight != bj.weight {
			return bi.weight > bj.weight
		}
		if (bi.alloc == nil) != (bj.alloc == nil) {
			return bi.alloc != nil // allocations before the unallocated bucket
		}
		if bi.alloc == nil {
			return false
		}
		gi, iok := state.Goals[bi.alloc.GoalID]
		gj, jok := state.Goals[bj.alloc.GoalID]
		ii := !iok || gi.Inactive()
		ij := !jok || gj.Inactive()
		if ii != ij {
			return ij // active goals first
		}
		if gi.Priority != gj.Priority {
			return gi.Priority < gj.Priority
		}
		if bi.alloc.GoalID != bj.alloc.GoalID {
			return bi.alloc.GoalID < bj.alloc.GoalID
		}
		return bi.alloc.PositionID < bj.alloc.PositionID
	})
	for remainder := newValue - sum; remainder > 0; {
		for _, b := range order {
			if remainder == 0 {
				break
			}
			b.scaled++
			remainder--
		}
	}

	var changes []AllocationChange
	for _, b := range buckets {
		if b.alloc == nil {
			continue
		}
		next := b.scaled
		if g, ok := state.Goals[b.alloc.GoalID]; ok {
			// Never exceed the goal's capacity left by its other positions.
			elsewhere := state.GoalTotal(g.ID) - b.alloc.Amount
			next = min(next, max(g.Target-elsewhere, 0))
		}
		if next != b.alloc.Amount {
			changes = append(changes, AllocationChange{
				GoalID:     b.alloc.GoalID,
				PositionID: b.alloc.PositionID,
				Before:     b.alloc.Amount,
				After:      next,
			})
		}
	}
	return changes
}

// distributeIncrease feeds a value increase to the existing allocations of
// active goals, most urgent (lowest priority number) first, each capped at
// its goal's remaining headroom. Whatever is left over simply stays
// unallocated.
func distributeIncrease(state *NormalizedState, allocs []Allocation, delta int64) []AllocationChange {
	candidates := make([]Allocation, 0, len(allocs))
	for _, a := range allocs {
		if g, ok := state.Goals[a.GoalID]; ok && !g.Inactive() {
			candidates = append(candidates, a)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		gi, gj := state.Goals[candidates[i].GoalID], state.Goals[candidates[j].GoalID]
		if gi.Priority != gj.Priority {
			return gi.Priority < gj.Priority
		}
		if candidates[i].GoalID != candidates[j].GoalID {
			return candidates[i].GoalID < candidates[j].GoalID
		}
		return candidates[i].PositionID < candidates[j].PositionID
	})

	var changes []AllocationChange
	for _, a := range candidates {
		if delta == 0 {
			break
		}
		g := state.Goals[a.GoalID]
		headroom := g.Target - state.GoalTotal(g.ID)
		if headroom <= 0 {
			continue
		}
		add := min(delta, headroom)
		changes = append(changes, AllocationChange{
			GoalID:     a.GoalID,
			PositionID: a.PositionID,
			Before:     a.Amount,
			After:      a.Amount + add,
		})
		delta -= add
	}
	return changes
}

// applyChanges writes a change list into the state's allocation arena,
// deleting allocations that land on zero. The state must already be a
// private clone.
func applyChanges(state *NormalizedState, changes []AllocationChange) {
	for _, c := range changes {
		a, ok := state.AllocationByKey(c.GoalID, c.PositionID)
		if !ok {
			continue
		}
		if c.After == 0 {
			delete(state.Allocations, a.ID)
			continue
		}
		a.Amount = c.After
		state.Allocations[a.ID] = a
	}
}

// reducedOnly filters a change list down to actual reductions.
func reducedOnly(changes []AllocationChange) []AllocationChange {
	var out []AllocationChange
	for _, c := range changes {
		if c.Before > c.After {
			out = append(out, c)
		}
	}
	return out
}

package earmark

// NoticeReason identifies what triggered an automatic allocation reduction.
type NoticeReason string

const (
	// ReasonPositionValue: a position's market value shrank below its
	// allocation total.
	ReasonPositionValue NoticeReason = "position_value_change"
	// ReasonGoalTarget: a goal's target shrank below its allocation total.
	ReasonGoalTarget NoticeReason = "goal_target_change"
	// ReasonSpend: positions were re-fitted after a spend lowered their value.
	ReasonSpend NoticeReason = "goal_spent"
	// ReasonRepair: the integrity-repair pass reduced allocations.
	ReasonRepair NoticeReason = "integrity_repair"
	// ReasonBatch: an explicit batch reduction requested by the caller.
	ReasonBatch NoticeReason = "batch_reduction"
)

// AllocationChange describes one allocation amount moving from Before to
// After.
type AllocationChange struct {
	GoalID     string `json:"goalId"`
	PositionID string `json:"positionId"`
	Before     int64  `json:"before"`
	After      int64  `json:"after"`
}

// AllocationNotice is the user-facing description of automatic allocation
// reductions caused by a mutation. RequiresDirectEdit marks reductions too
// large (or too surprising) to silently accept.
type AllocationNotice struct {
	Reason             NoticeReason       `json:"reason"`
	BaseValue          int64              `json:"baseValue"`
	Changes            []AllocationChange `json:"changes"`
	RequiresDirectEdit bool               `json:"requiresDirectEdit"`
}

// TotalReduced returns the aggregate amount removed across all changes.
func (n *AllocationNotice) TotalReduced() int64 {
	var total int64
	for _, c := range n.Changes {
		if c.Before > c.After {
			total += c.Before - c.After
		}
	}
	return total
}

// newNotice builds a notice for a set of reductions, deciding the
// RequiresDirectEdit flag against the state the reductions were computed on.
//
// The flag is set when any reduced allocation belongs to a closed or spent
// goal, when more than 3 distinct goals are affected, or when the total
// reduction exceeds 10% of the triggering base value. Goal-target reductions
// are always accepted silently: the user just typed the new target, the
// consequence is not a surprise.
func newNotice(state *NormalizedState, reason NoticeReason, baseValue int64, changes []AllocationChange) *AllocationNotice {
	if len(changes) == 0 {
		return nil
	}
	n := &AllocationNotice{Reason: reason, BaseValue: baseValue, Changes: changes}
	if reason == ReasonGoalTarget {
		return n
	}

	goals := make(map[string]bool)
	for _, c := range changes {
		if c.Before <= c.After {
			continue
		}
		goals[c.GoalID] = true
		if g, ok := state.Goals[c.GoalID]; ok && g.Inactive() {
			n.RequiresDirectEdit = true
		}
	}
	if len(goals) > 3 {
		n.RequiresDirectEdit = true
	}
	// Strictly more than 10% of the base: compare 10*reduced > base to stay
	// in integers.
	if 10*n.TotalReduced() > baseValue {
		n.RequiresDirectEdit = true
	}
	return n
}

package earmark

// NewGoal is the input for CreateGoal. ID is optional.
type NewGoal struct {
	ID        string
	Scope     Scope
	Name      string
	Target    int64
	Priority  int
	StartDate Date
	EndDate   Date
}

// CreateGoal adds an active goal to the state.
func (s *NormalizedState) CreateGoal(in NewGoal, meta EventMeta) (Mutation, error) {
	meta = meta.withDefaults()
	name, err := requireName("goal name", in.Name)
	if err != nil {
		return Mutation{}, err
	}
	if _, err := ParseScope(string(in.Scope)); err != nil {
		return Mutation{}, err
	}
	if err := requireNonNegative("target amount", in.Target); err != nil {
		return Mutation{}, err
	}
	if in.Priority < 0 {
		return Mutation{}, errNegativePriority(in.Priority)
	}
	if !in.StartDate.IsZero() && !in.EndDate.IsZero() && in.EndDate.Before(in.StartDate) {
		return Mutation{}, errDateOrder(in.StartDate, in.EndDate)
	}
	id := in.ID
	if id == "" {
		id = meta.NewID()
	}
	if _, exists := s.Goals[id]; exists {
		return Mutation{}, errDuplicateID("goal", id)
	}

	next := s.Clone()
	next.Goals[id] = Goal{
		ID:        id,
		Scope:     in.Scope,
		Name:      name,
		Target:    in.Target,
		Priority:  in.Priority,
		Status:    GoalStatusActive,
		StartDate: in.StartDate,
		EndDate:   in.EndDate,
	}
	return Mutation{
		State: next,
		Events: []PendingEvent{newEvent(meta, GoalCreated{
			GoalID:   id,
			Name:     name,
			Scope:    in.Scope,
			Target:   in.Target,
			Priority: in.Priority,
		})},
	}, nil
}

// GoalUpdate is the input for UpdateGoal. Nil fields are left untouched.
type GoalUpdate struct {
	GoalID    string
	Name      *string
	Target    *int64
	Priority  *int
	StartDate *Date
	EndDate   *Date
}

// UpdateGoal edits a goal. A spent goal is immutable. Shrinking the target
// below the goal's current allocation total reduces its allocations to fit,
// using the standard reduction order; the notice never requires a direct
// edit since the user just asked for the smaller target.
func (s *NormalizedState) UpdateGoal(in GoalUpdate, meta EventMeta) (Mutation, error) {
	meta = meta.withDefaults()
	g, ok := s.Goals[in.GoalID]
	if !ok {
		return Mutation{}, errUnknown("goal", in.GoalID)
	}
	if g.Spent() {
		return Mutation{}, errGoalSpent(g.ID)
	}

	oldTarget := g.Target
	if in.Name != nil {
		name, err := requireName("goal name", *in.Name)
		if err != nil {
			return Mutation{}, err
		}
		g.Name = name
	}
	if in.Target != nil {
		if err := requireNonNegative("target amount", *in.Target); err != nil {
			return Mutation{}, err
		}
		g.Target = *in.Target
	}
	if in.Priority != nil {
		if *in.Priority < 0 {
			return Mutation{}, errNegativePriority(*in.Priority)
		}
		g.Priority = *in.Priority
	}
	if in.StartDate != nil {
		g.StartDate = *in.StartDate
	}
	if in.EndDate != nil {
		g.EndDate = *in.EndDate
	}
	if !g.StartDate.IsZero() && !g.EndDate.IsZero() && g.EndDate.Before(g.StartDate) {
		return Mutation{}, errDateOrder(g.StartDate, g.EndDate)
	}

	next := s.Clone()
	next.Goals[g.ID] = g

	events := []PendingEvent{newEvent(meta, GoalUpdated{
		GoalID:    g.ID,
		Name:      g.Name,
		OldTarget: oldTarget,
		NewTarget: g.Target,
		Priority:  g.Priority,
	})}

	var notice *AllocationNotice
	if g.Target < s.GoalTotal(g.ID) {
		changes := reduceToTotal(next, next.AllocationsFor(g.ID), g.Target)
		applyChanges(next, changes)
		if len(changes) > 0 {
			notice = newNotice(s, ReasonGoalTarget, g.Target, changes)
			events = append(events, newEvent(meta, AllocationsReduced{Reason: ReasonGoalTarget, Changes: changes}))
		}
	}
	return Mutation{State: next, Events: events, Notice: notice}, nil
}

// CloseGoal transitions an active goal to closed, stamping ClosedAt.
func (s *NormalizedState) CloseGoal(goalID string, meta EventMeta) (Mutation, error) {
	meta = meta.withDefaults()
	g, ok := s.Goals[goalID]
	if !ok {
		return Mutation{}, errUnknown("goal", goalID)
	}
	if g.Spent() {
		return Mutation{}, errGoalSpent(goalID)
	}
	if g.Status != GoalStatusActive {
		return Mutation{}, errTransition(goalID, g.Status, GoalStatusClosed)
	}

	next := s.Clone()
	closedAt := meta.Now
	g.Status = GoalStatusClosed
	g.ClosedAt = &closedAt
	next.Goals[goalID] = g
	return Mutation{
		State:  next,
		Events: []PendingEvent{newEvent(meta, GoalClosed{GoalID: goalID, ClosedAt: closedAt})},
	}, nil
}

// ReopenGoal transitions a closed (not spent) goal back to active. The goal
// re-enters the queue behind every existing active goal: its priority becomes
// max(active priorities)+1.
func (s *NormalizedState) ReopenGoal(goalID string, meta EventMeta) (Mutation, error) {
	meta = meta.withDefaults()
	g, ok := s.Goals[goalID]
	if !ok {
		return Mutation{}, errUnknown("goal", goalID)
	}
	if g.Spent() {
		return Mutation{}, errGoalSpent(goalID)
	}
	if g.Status != GoalStatusClosed {
		return Mutation{}, errTransition(goalID, g.Status, GoalStatusActive)
	}

	next := s.Clone()
	g.Status = GoalStatusActive
	g.ClosedAt = nil
	g.Priority = s.maxActivePriority() + 1
	next.Goals[goalID] = g
	return Mutation{
		State:  next,
		Events: []PendingEvent{newEvent(meta, GoalReopened{GoalID: goalID, Priority: g.Priority})},
	}, nil
}

// DeleteGoal removes a goal and its allocations. A spent goal cannot be
// deleted; its audit trail must stay reachable.
func (s *NormalizedState) DeleteGoal(goalID string, meta EventMeta) (Mutation, error) {
	meta = meta.withDefaults()
	g, ok := s.Goals[goalID]
	if !ok {
		return Mutation{}, errUnknown("goal", goalID)
	}
	if g.Spent() {
		return Mutation{}, errGoalSpent(goalID)
	}

	next := s.Clone()
	delete(next.Goals, goalID)
	var removed int
	for _, a := range s.AllocationsFor(goalID) {
		delete(next.Allocations, a.ID)
		removed++
	}
	return Mutation{
		State: next,
		Events: []PendingEvent{newEvent(meta, GoalDeleted{
			GoalID:             goalID,
			Name:               g.Name,
			RemovedAllocations: removed,
		})},
	}, nil
}

package earmark

// NewPosition is the input for CreatePosition. ID is optional; Mode defaults
// to fixed.
type NewPosition struct {
	ID          string
	AccountID   string
	AssetType   AssetType
	Label       string
	MarketValue int64
	Mode        AllocationMode
}

// CreatePosition adds a position to an existing account.
func (s *NormalizedState) CreatePosition(in NewPosition, meta EventMeta) (Mutation, error) {
	meta = meta.withDefaults()
	if _, ok := s.Accounts[in.AccountID]; !ok {
		return Mutation{}, errUnknown("account", in.AccountID)
	}
	label, err := requireName("position label", in.Label)
	if err != nil {
		return Mutation{}, err
	}
	if _, err := ParseAssetType(string(in.AssetType)); err != nil {
		return Mutation{}, err
	}
	if err := requireNonNegative("market value", in.MarketValue); err != nil {
		return Mutation{}, err
	}
	mode := in.Mode
	if mode == "" {
		mode = ModeFixed
	} else if _, err := ParseAllocationMode(string(mode)); err != nil {
		return Mutation{}, err
	}
	id := in.ID
	if id == "" {
		id = meta.NewID()
	}
	if _, exists := s.Positions[id]; exists {
		return Mutation{}, errDuplicateID("position", id)
	}

	next := s.Clone()
	next.Positions[id] = Position{
		ID:          id,
		AccountID:   in.AccountID,
		AssetType:   in.AssetType,
		Label:       label,
		MarketValue: in.MarketValue,
		Mode:        mode,
		UpdatedAt:   meta.Now,
	}
	return Mutation{
		State: next,
		Events: []PendingEvent{newEvent(meta, PositionCreated{
			PositionID:  id,
			AccountID:   in.AccountID,
			AssetType:   in.AssetType,
			Label:       label,
			MarketValue: in.MarketValue,
			Mode:        mode,
		})},
	}, nil
}

// PositionUpdate is the input for UpdatePosition. Nil fields are left
// untouched.
type PositionUpdate struct {
	PositionID  string
	AccountID   *string
	AssetType   *AssetType
	Label       *string
	MarketValue *int64
	Mode        *AllocationMode
}

// UpdatePosition edits a position. A market value change triggers the
// allocation recalculation engine according to the position's mode; any
// resulting reduction is reported through the mutation's notice.
func (s *NormalizedState) UpdatePosition(in PositionUpdate, meta EventMeta) (Mutation, error) {
	meta = meta.withDefaults()
	pos, ok := s.Positions[in.PositionID]
	if !ok {
		return Mutation{}, errUnknown("position", in.PositionID)
	}

	if in.Label != nil {
		label, err := requireName("position label", *in.Label)
		if err != nil {
			return Mutation{}, err
		}
		pos.Label = label
	}
	if in.AssetType != nil {
		if _, err := ParseAssetType(string(*in.AssetType)); err != nil {
			return Mutation{}, err
		}
		pos.AssetType = *in.AssetType
	}
	if in.Mode != nil {
		if _, err := ParseAllocationMode(string(*in.Mode)); err != nil {
			return Mutation{}, err
		}
		pos.Mode = *in.Mode
	}
	if in.AccountID != nil {
		acc, ok := s.Accounts[*in.AccountID]
		if !ok {
			return Mutation{}, errUnknown("account", *in.AccountID)
		}
		// Moving a position must not break the scope invariant of any
		// allocation that draws on it.
		for _, a := range s.AllocationsOf(pos.ID) {
			if g, ok := s.Goals[a.GoalID]; ok && g.Scope != acc.Scope {
				return Mutation{}, errScopeMismatch(g.ID, pos.ID)
			}
		}
		pos.AccountID = *in.AccountID
	}
	oldValue := pos.MarketValue
	if in.MarketValue != nil {
		if err := requireNonNegative("market value", *in.MarketValue); err != nil {
			return Mutation{}, err
		}
		pos.MarketValue = *in.MarketValue
	}
	pos.UpdatedAt = meta.Now

	next := s.Clone()
	next.Positions[pos.ID] = pos

	events := []PendingEvent{newEvent(meta, PositionUpdated{
		PositionID: pos.ID,
		Label:      pos.Label,
		OldValue:   oldValue,
		NewValue:   pos.MarketValue,
		Mode:       pos.Mode,
	})}

	var notice *AllocationNotice
	if pos.MarketValue != oldValue {
		changes := rescalePosition(next, pos, oldValue, pos.MarketValue)
		applyChanges(next, changes)
		if reduced := reducedOnly(changes); len(reduced) > 0 {
			notice = newNotice(s, ReasonPositionValue, pos.MarketValue, reduced)
			events = append(events, newEvent(meta, AllocationsReduced{Reason: ReasonPositionValue, Changes: reduced}))
		}
	}
	return Mutation{State: next, Events: events, Notice: notice}, nil
}

// DeletePosition removes a position and every allocation drawing on it.
func (s *NormalizedState) DeletePosition(positionID string, meta EventMeta) (Mutation, error) {
	meta = meta.withDefaults()
	pos, ok := s.Positions[positionID]
	if !ok {
		return Mutation{}, errUnknown("position", positionID)
	}

	next := s.Clone()
	delete(next.Positions, positionID)
	var removed int
	for _, a := range s.AllocationsOf(positionID) {
		delete(next.Allocations, a.ID)
		removed++
	}
	return Mutation{
		State: next,
		Events: []PendingEvent{newEvent(meta, PositionDeleted{
			PositionID:         positionID,
			Label:              pos.Label,
			RemovedAllocations: removed,
		})},
	}, nil
}

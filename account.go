package earmark

// NewAccount is the input for CreateAccount. ID is optional; when empty a
// fresh one is generated from the event meta.
type NewAccount struct {
	ID    string
	Scope Scope
	Name  string
}

// CreateAccount adds an account to the state.
func (s *NormalizedState) CreateAccount(in NewAccount, meta EventMeta) (Mutation, error) {
	meta = meta.withDefaults()
	name, err := requireName("account name", in.Name)
	if err != nil {
		return Mutation{}, err
	}
	if _, err := ParseScope(string(in.Scope)); err != nil {
		return Mutation{}, err
	}
	id := in.ID
	if id == "" {
		id = meta.NewID()
	}
	if _, exists := s.Accounts[id]; exists {
		return Mutation{}, errDuplicateID("account", id)
	}

	next := s.Clone()
	next.Accounts[id] = Account{ID: id, Scope: in.Scope, Name: name}
	return Mutation{
		State:  next,
		Events: []PendingEvent{newEvent(meta, AccountCreated{AccountID: id, Name: name, Scope: in.Scope})},
	}, nil
}

// RenameAccount changes an account's display name.
func (s *NormalizedState) RenameAccount(accountID, name string, meta EventMeta) (Mutation, error) {
	meta = meta.withDefaults()
	acc, ok := s.Accounts[accountID]
	if !ok {
		return Mutation{}, errUnknown("account", accountID)
	}
	trimmed, err := requireName("account name", name)
	if err != nil {
		return Mutation{}, err
	}

	next := s.Clone()
	from := acc.Name
	acc.Name = trimmed
	next.Accounts[accountID] = acc
	return Mutation{
		State:  next,
		Events: []PendingEvent{newEvent(meta, AccountRenamed{AccountID: accountID, From: from, To: trimmed})},
	}, nil
}

// DeleteAccount removes an account, all of its positions, and every
// allocation drawing on those positions.
func (s *NormalizedState) DeleteAccount(accountID string, meta EventMeta) (Mutation, error) {
	meta = meta.withDefaults()
	acc, ok := s.Accounts[accountID]
	if !ok {
		return Mutation{}, errUnknown("account", accountID)
	}

	next := s.Clone()
	delete(next.Accounts, accountID)
	var removedPositions, removedAllocations int
	for _, p := range s.PositionsOf(accountID) {
		delete(next.Positions, p.ID)
		removedPositions++
		for _, a := range s.AllocationsOf(p.ID) {
			delete(next.Allocations, a.ID)
			removedAllocations++
		}
	}
	return Mutation{
		State: next,
		Events: []PendingEvent{newEvent(meta, AccountDeleted{
			AccountID:          accountID,
			Name:               acc.Name,
			RemovedPositions:   removedPositions,
			RemovedAllocations: removedAllocations,
		})},
	}, nil
}

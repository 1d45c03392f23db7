package earmark

import "testing"

func TestCreateAccount(t *testing.T) {
	s := NewState()
	m, err := s.CreateAccount(NewAccount{Name: "  Main Bank  ", Scope: ScopePersonal}, testMeta())
	if err != nil {
		t.Fatal(err)
	}
	acc := m.State.SortedAccounts()[0]
	if acc.Name != "Main Bank" {
		t.Errorf("name = %q, want trimmed %q", acc.Name, "Main Bank")
	}
	if acc.Scope != ScopePersonal {
		t.Errorf("scope = %q", acc.Scope)
	}
	if len(m.Events) != 1 || m.Events[0].Type() != EvAccountCreated {
		t.Errorf("events = %v, want one account_created", m.Events)
	}
	// The input state stays untouched.
	if len(s.Accounts) != 0 {
		t.Error("mutation modified its input state")
	}
}

func TestCreateAccountRejects(t *testing.T) {
	s := NewState()
	if _, err := s.CreateAccount(NewAccount{Name: "   ", Scope: ScopePersonal}, testMeta()); err == nil {
		t.Error("blank name accepted")
	}
	if _, err := s.CreateAccount(NewAccount{Name: "x", Scope: "household"}, testMeta()); err == nil {
		t.Error("unknown scope accepted")
	}
	f := newFixture().account("acc", ScopePersonal)
	if _, err := f.state.CreateAccount(NewAccount{ID: "acc", Name: "x", Scope: ScopePersonal}, testMeta()); err == nil {
		t.Error("duplicate id accepted")
	}
}

func TestRenameAccount(t *testing.T) {
	f := newFixture().account("acc", ScopePersonal)
	m, err := f.state.RenameAccount("acc", "Savings", testMeta())
	if err != nil {
		t.Fatal(err)
	}
	if got := m.State.Accounts["acc"].Name; got != "Savings" {
		t.Errorf("name = %q", got)
	}
	if _, err := f.state.RenameAccount("nope", "x", testMeta()); err == nil {
		t.Error("unknown account accepted")
	}
}

func TestDeleteAccountCascades(t *testing.T) {
	f := newFixture().
		account("acc", ScopePersonal).
		account("other", ScopePersonal).
		position("p1", "acc", 100, ModeFixed).
		position("p2", "acc", 100, ModeFixed).
		position("p3", "other", 100, ModeFixed).
		goal("g", ScopePersonal, 300, 0).
		alloc("a1", "g", "p1", 50).
		alloc("a2", "g", "p2", 50).
		alloc("a3", "g", "p3", 50)

	m, err := f.state.DeleteAccount("acc", testMeta())
	if err != nil {
		t.Fatal(err)
	}
	next := m.State
	if _, ok := next.Accounts["acc"]; ok {
		t.Error("account still present")
	}
	if len(next.Positions) != 1 {
		t.Errorf("positions left = %d, want 1", len(next.Positions))
	}
	wantAmounts(t, next, map[string]int64{"g/p3": 50})

	deleted := m.Events[0].Payload.(AccountDeleted)
	if deleted.RemovedPositions != 2 || deleted.RemovedAllocations != 2 {
		t.Errorf("cascade counts = %+v", deleted)
	}
}

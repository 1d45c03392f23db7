package earmark

import "testing"

func TestCreatePosition(t *testing.T) {
	f := newFixture().account("acc", ScopePersonal)
	m, err := f.state.CreatePosition(NewPosition{
		AccountID:   "acc",
		Label:       "Livret A",
		AssetType:   AssetSavings,
		MarketValue: 1000,
	}, testMeta())
	if err != nil {
		t.Fatal(err)
	}
	pos := m.State.SortedPositions()[0]
	if pos.Mode != ModeFixed {
		t.Errorf("mode = %q, want default fixed", pos.Mode)
	}
	if pos.MarketValue != 1000 {
		t.Errorf("value = %d", pos.MarketValue)
	}
}

func TestCreatePositionRejects(t *testing.T) {
	f := newFixture().account("acc", ScopePersonal)
	cases := []struct {
		name string
		in   NewPosition
	}{
		{"unknown account", NewPosition{AccountID: "nope", Label: "x", AssetType: AssetCash}},
		{"blank label", NewPosition{AccountID: "acc", Label: " ", AssetType: AssetCash}},
		{"bad asset type", NewPosition{AccountID: "acc", Label: "x", AssetType: "nft"}},
		{"negative value", NewPosition{AccountID: "acc", Label: "x", AssetType: AssetCash, MarketValue: -1}},
		{"bad mode", NewPosition{AccountID: "acc", Label: "x", AssetType: AssetCash, Mode: "auto"}},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.state.CreatePosition(tt.in, testMeta()); err == nil {
				t.Error("accepted")
			}
		})
	}
}

func TestUpdatePositionValueShrinksAllocations(t *testing.T) {
	f := newFixture().
		account("acc", ScopePersonal).
		position("pos", "acc", 100, ModeFixed).
		goal("g", ScopePersonal, 100, 0).
		alloc("a", "g", "pos", 80)

	value := int64(50)
	m, err := f.state.UpdatePosition(PositionUpdate{PositionID: "pos", MarketValue: &value}, testMeta())
	if err != nil {
		t.Fatal(err)
	}
	wantAmounts(t, m.State, map[string]int64{"g/pos": 50})

	if m.Notice == nil {
		t.Fatal("expected a notice")
	}
	if m.Notice.Reason != ReasonPositionValue {
		t.Errorf("reason = %q", m.Notice.Reason)
	}
	// Reduced 30 out of a base of 50: well above 10%.
	if !m.Notice.RequiresDirectEdit {
		t.Error("a 60% reduction should require a direct edit")
	}
	if len(m.Events) != 2 || m.Events[1].Type() != EvAllocationsReduced {
		t.Errorf("events = %v, want position_updated then allocations_reduced", m.Events)
	}
}

func TestUpdatePositionSmallShrinkNeedsNoDirectEdit(t *testing.T) {
	f := newFixture().
		account("acc", ScopePersonal).
		position("pos", "acc", 1000, ModeFixed).
		goal("g", ScopePersonal, 2000, 0).
		alloc("a", "g", "pos", 1000)

	value := int64(950)
	m, err := f.state.UpdatePosition(PositionUpdate{PositionID: "pos", MarketValue: &value}, testMeta())
	if err != nil {
		t.Fatal(err)
	}
	// Reduced 50 against a base of 950: 10*50 <= 950.
	if m.Notice == nil || m.Notice.RequiresDirectEdit {
		t.Errorf("notice = %+v, want one without direct edit", m.Notice)
	}
}

func TestUpdatePositionGrowthKeepsFixedAllocations(t *testing.T) {
	f := newFixture().
		account("acc", ScopePersonal).
		position("pos", "acc", 100, ModeFixed).
		goal("g", ScopePersonal, 100, 0).
		alloc("a", "g", "pos", 80)

	value := int64(500)
	m, err := f.state.UpdatePosition(PositionUpdate{PositionID: "pos", MarketValue: &value}, testMeta())
	if err != nil {
		t.Fatal(err)
	}
	wantAmounts(t, m.State, map[string]int64{"g/pos": 80})
	if m.Notice != nil {
		t.Errorf("unexpected notice %+v", m.Notice)
	}
}

func TestUpdatePositionCrossScopeMoveRejected(t *testing.T) {
	f := newFixture().
		account("mine", ScopePersonal).
		account("ours", ScopeShared).
		position("pos", "mine", 100, ModeFixed).
		goal("g", ScopePersonal, 100, 0).
		alloc("a", "g", "pos", 50)

	target := "ours"
	if _, err := f.state.UpdatePosition(PositionUpdate{PositionID: "pos", AccountID: &target}, testMeta()); err == nil {
		t.Error("cross-scope move accepted while allocated")
	}

	// Without the allocation the move is fine.
	delete(f.state.Allocations, "a")
	if _, err := f.state.UpdatePosition(PositionUpdate{PositionID: "pos", AccountID: &target}, testMeta()); err != nil {
		t.Errorf("unallocated move rejected: %v", err)
	}
}

func TestDeletePositionCascades(t *testing.T) {
	f := newFixture().
		account("acc", ScopePersonal).
		position("pos", "acc", 100, ModeFixed).
		goal("g", ScopePersonal, 100, 0).
		alloc("a", "g", "pos", 50)

	m, err := f.state.DeletePosition("pos", testMeta())
	if err != nil {
		t.Fatal(err)
	}
	if len(m.State.Positions) != 0 || len(m.State.Allocations) != 0 {
		t.Error("cascade incomplete")
	}
	if got := m.Events[0].Payload.(PositionDeleted).RemovedAllocations; got != 1 {
		t.Errorf("removed allocations = %d", got)
	}
}

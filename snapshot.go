package earmark

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// Snapshot is the single remote value a space is synchronized through: a
// monotonic version, the full normalized state, and the time it was written.
// The remote object is guarded by an opaque version tag; Version is the
// domain-level counter that also stamps stored events.
type Snapshot struct {
	Version   int64
	State     *NormalizedState
	UpdatedAt time.Time
}

// jsonState is the persisted shape of a NormalizedState: sorted arrays, so
// the document is stable and diffable.
type jsonState struct {
	Accounts    []Account    `json:"accounts"`
	Positions   []Position   `json:"positions"`
	Goals       []Goal       `json:"goals"`
	Allocations []Allocation `json:"allocations"`
}

type jsonSnapshot struct {
	Version   int64     `json:"version"`
	State     jsonState `json:"stateJson"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// EncodeSnapshot writes the snapshot as a single JSON document.
func EncodeSnapshot(w io.Writer, snap *Snapshot) error {
	doc := jsonSnapshot{
		Version: snap.Version,
		State: jsonState{
			Accounts:    snap.State.SortedAccounts(),
			Positions:   snap.State.SortedPositions(),
			Goals:       snap.State.SortedGoals(),
			Allocations: snap.State.SortedAllocations(),
		},
		UpdatedAt: snap.UpdatedAt,
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// DecodeSnapshot reads a snapshot document. Referential integrity is not
// checked here; every load is followed by a Repair pass.
func DecodeSnapshot(r io.Reader) (*Snapshot, error) {
	var doc jsonSnapshot
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("invalid snapshot document: %w", err)
	}
	if doc.Version < 0 {
		return nil, fmt.Errorf("invalid snapshot version %d", doc.Version)
	}
	state := NewState()
	for _, a := range doc.State.Accounts {
		state.Accounts[a.ID] = a
	}
	for _, p := range doc.State.Positions {
		state.Positions[p.ID] = p
	}
	for _, g := range doc.State.Goals {
		state.Goals[g.ID] = g
	}
	for _, a := range doc.State.Allocations {
		state.Allocations[a.ID] = a
	}
	return &Snapshot{Version: doc.Version, State: state, UpdatedAt: doc.UpdatedAt}, nil
}

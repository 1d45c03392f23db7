package earmark

import (
	"fmt"
	"strings"
)

// requireName validates and normalizes a user-supplied name or label.
func requireName(field, s string) (string, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return "", fmt.Errorf("%s must not be empty", field)
	}
	return trimmed, nil
}

// requireNonNegative validates an amount field.
func requireNonNegative(field string, v int64) error {
	if v < 0 {
		return fmt.Errorf("%s must not be negative, got %d", field, v)
	}
	return nil
}

// errUnknown reports a reference to an entity that does not exist.
func errUnknown(kind, id string) error {
	return fmt.Errorf("unknown %s: %q", kind, id)
}

// errDuplicateID reports an id collision on creation.
func errDuplicateID(kind, id string) error {
	return fmt.Errorf("%s %q already exists", kind, id)
}

// errScopeMismatch reports an allocation linking entities across scopes.
func errScopeMismatch(goalID, positionID string) error {
	return fmt.Errorf("goal %q and position %q are in different scopes", goalID, positionID)
}

// errGoalSpent reports an attempt to touch a spent (terminal) goal.
func errGoalSpent(goalID string) error {
	return fmt.Errorf("goal %q has been spent and is immutable", goalID)
}

// errTransition reports an illegal goal lifecycle transition.
func errTransition(goalID string, from, to GoalStatus) error {
	return fmt.Errorf("goal %q cannot move from %s to %s", goalID, from, to)
}

func errNegativePriority(p int) error {
	return fmt.Errorf("priority must not be negative, got %d", p)
}

func errDateOrder(start, end Date) error {
	return fmt.Errorf("end date %s is before start date %s", end, start)
}

// requireMeta fills the pieces of an EventMeta a caller left out, so domain
// functions can always mint events.
func (m EventMeta) withDefaults() EventMeta {
	if m.NewID == nil {
		m.NewID = newID
	}
	if m.Now.IsZero() {
		m.Now = now()
	}
	return m
}

package earmark

import (
	"time"
)

// EventType is a typed string identifying the kind of an audit event.
type EventType string

// Event types recorded in the audit log.
const (
	EvAccountCreated     EventType = "account_created"
	EvAccountRenamed     EventType = "account_renamed"
	EvAccountDeleted     EventType = "account_deleted"
	EvPositionCreated    EventType = "position_created"
	EvPositionUpdated    EventType = "position_updated"
	EvPositionDeleted    EventType = "position_deleted"
	EvGoalCreated        EventType = "goal_created"
	EvGoalUpdated        EventType = "goal_updated"
	EvGoalClosed         EventType = "goal_closed"
	EvGoalReopened       EventType = "goal_reopened"
	EvGoalDeleted        EventType = "goal_deleted"
	EvAllocationSet      EventType = "allocation_set"
	EvAllocationsReduced EventType = "allocations_reduced"
	EvGoalSpent          EventType = "goal_spent"
	EvSpendUndone        EventType = "spend_undone"
	EvStateRepaired      EventType = "state_repaired"
)

// Payload is the typed content of an audit event. Each event type has its own
// payload struct; the Kind method is the discriminator used by the codec.
type Payload interface {
	Kind() EventType
}

// PendingEvent is an audit record held in memory until the next successful
// save assigns it a snapshot version.
type PendingEvent struct {
	ID        string
	CreatedAt time.Time
	Payload   Payload
}

// Type returns the event type, derived from the payload.
func (e PendingEvent) Type() EventType { return e.Payload.Kind() }

// StoredEvent is a PendingEvent after save time: it carries the version of
// the snapshot its mutation produced.
type StoredEvent struct {
	PendingEvent
	Version int64
}

// newEvent mints a pending event from meta and a payload.
func newEvent(meta EventMeta, p Payload) PendingEvent {
	return PendingEvent{ID: meta.NewID(), CreatedAt: meta.Now, Payload: p}
}

// --- payloads ---

// AccountCreated records a new account.
type AccountCreated struct {
	AccountID string `json:"accountId"`
	Name      string `json:"name"`
	Scope     Scope  `json:"scope"`
}

func (AccountCreated) Kind() EventType { return EvAccountCreated }

// AccountRenamed records an account rename.
type AccountRenamed struct {
	AccountID string `json:"accountId"`
	From      string `json:"from"`
	To        string `json:"to"`
}

func (AccountRenamed) Kind() EventType { return EvAccountRenamed }

// AccountDeleted records an account deletion and the size of its cascade.
type AccountDeleted struct {
	AccountID          string `json:"accountId"`
	Name               string `json:"name"`
	RemovedPositions   int    `json:"removedPositions"`
	RemovedAllocations int    `json:"removedAllocations"`
}

func (AccountDeleted) Kind() EventType { return EvAccountDeleted }

// PositionCreated records a new position.
type PositionCreated struct {
	PositionID  string         `json:"positionId"`
	AccountID   string         `json:"accountId"`
	AssetType   AssetType      `json:"assetType"`
	Label       string         `json:"label"`
	MarketValue int64          `json:"marketValue"`
	Mode        AllocationMode `json:"allocationMode"`
}

func (PositionCreated) Kind() EventType { return EvPositionCreated }

// PositionUpdated records a position edit. OldValue and NewValue are equal
// when the market value did not change.
type PositionUpdated struct {
	PositionID string         `json:"positionId"`
	Label      string         `json:"label"`
	OldValue   int64          `json:"oldValue"`
	NewValue   int64          `json:"newValue"`
	Mode       AllocationMode `json:"allocationMode"`
}

func (PositionUpdated) Kind() EventType { return EvPositionUpdated }

// PositionDeleted records a position deletion and its cascade.
type PositionDeleted struct {
	PositionID         string `json:"positionId"`
	Label              string `json:"label"`
	RemovedAllocations int    `json:"removedAllocations"`
}

func (PositionDeleted) Kind() EventType { return EvPositionDeleted }

// GoalCreated records a new goal.
type GoalCreated struct {
	GoalID   string `json:"goalId"`
	Name     string `json:"name"`
	Scope    Scope  `json:"scope"`
	Target   int64  `json:"targetAmount"`
	Priority int    `json:"priority"`
}

func (GoalCreated) Kind() EventType { return EvGoalCreated }

// GoalUpdated records a goal edit.
type GoalUpdated struct {
	GoalID    string `json:"goalId"`
	Name      string `json:"name"`
	OldTarget int64  `json:"oldTarget"`
	NewTarget int64  `json:"newTarget"`
	Priority  int    `json:"priority"`
}

func (GoalUpdated) Kind() EventType { return EvGoalUpdated }

// GoalClosed records an active goal being closed.
type GoalClosed struct {
	GoalID   string    `json:"goalId"`
	ClosedAt time.Time `json:"closedAt"`
}

func (GoalClosed) Kind() EventType { return EvGoalClosed }

// GoalReopened records a closed goal returning to active, with its new
// priority (always behind every existing active goal).
type GoalReopened struct {
	GoalID   string `json:"goalId"`
	Priority int    `json:"priority"`
}

func (GoalReopened) Kind() EventType { return EvGoalReopened }

// GoalDeleted records a goal deletion and its cascade.
type GoalDeleted struct {
	GoalID             string `json:"goalId"`
	Name               string `json:"name"`
	RemovedAllocations int    `json:"removedAllocations"`
}

func (GoalDeleted) Kind() EventType { return EvGoalDeleted }

// AllocationSet records a direct allocation edit. After == 0 means the
// allocation was deleted.
type AllocationSet struct {
	GoalID     string `json:"goalId"`
	PositionID string `json:"positionId"`
	Before     int64  `json:"before"`
	After      int64  `json:"after"`
}

func (AllocationSet) Kind() EventType { return EvAllocationSet }

// AllocationsReduced records automatic or batch reductions of allocations.
type AllocationsReduced struct {
	Reason  NoticeReason       `json:"reason"`
	Changes []AllocationChange `json:"changes"`
}

func (AllocationsReduced) Kind() EventType { return EvAllocationsReduced }

// SpendPayment is the per-position detail of a spend: the amount paid from
// the position, the allocation that was consumed, and the position's market
// value before and after.
type SpendPayment struct {
	PositionID  string `json:"positionId"`
	Amount      int64  `json:"amount"`
	Allocated   int64  `json:"allocatedAmount"`
	ValueBefore int64  `json:"valueBefore"`
	ValueAfter  int64  `json:"valueAfter"`
}

// GoalSpent records a goal being spent. The payload is a full snapshot of the
// operation, sufficient to reverse it.
type GoalSpent struct {
	GoalID   string         `json:"goalId"`
	SpentAt  time.Time      `json:"spentAt"`
	Payments []SpendPayment `json:"payments"`
}

func (GoalSpent) Kind() EventType { return EvGoalSpent }

// SpendUndone records a spend being reversed.
type SpendUndone struct {
	GoalID  string    `json:"goalId"`
	SpentAt time.Time `json:"spentAt"`
}

func (SpendUndone) Kind() EventType { return EvSpendUndone }

// StateRepaired summarizes what an integrity-repair pass changed.
type StateRepaired struct {
	ClampedValues      int `json:"clampedValues"`
	DroppedAllocations int `json:"droppedAllocations"`
	Deduplicated       int `json:"deduplicated"`
	ReducedAllocations int `json:"reducedAllocations"`
	RemovedEmpty       int `json:"removedEmpty"`
}

func (StateRepaired) Kind() EventType { return EvStateRepaired }

// IsRepair reports whether the event is a synthetic correction event rather
// than a user edit. Repair-only pending queues do not count as "dirty" for
// the advisory lease.
func (e PendingEvent) IsRepair() bool { return e.Type() == EvStateRepaired }

package earmark

import "fmt"

// Scope partitions accounts and goals. Entities in different scopes may never
// be linked by an allocation.
type Scope string

const (
	// ScopePersonal is the private partition of a single user.
	ScopePersonal Scope = "personal"
	// ScopeShared is the partition of a shared folder.
	ScopeShared Scope = "shared"
)

// ParseScope parses a string into a Scope.
func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case ScopePersonal, ScopeShared:
		return Scope(s), nil
	default:
		return "", fmt.Errorf("unknown scope: %q", s)
	}
}

// AssetType classifies what kind of asset a position represents.
type AssetType string

// The eight supported asset kinds.
const (
	AssetCash       AssetType = "cash"
	AssetSavings    AssetType = "savings"
	AssetSecurities AssetType = "securities"
	AssetFund       AssetType = "fund"
	AssetBond       AssetType = "bond"
	AssetPension    AssetType = "pension"
	AssetProperty   AssetType = "property"
	AssetCrypto     AssetType = "crypto"
)

// AssetTypes returns all valid asset types, in display order.
func AssetTypes() []AssetType {
	return []AssetType{
		AssetCash, AssetSavings, AssetSecurities, AssetFund,
		AssetBond, AssetPension, AssetProperty, AssetCrypto,
	}
}

// ParseAssetType parses a string into an AssetType.
func ParseAssetType(s string) (AssetType, error) {
	for _, t := range AssetTypes() {
		if AssetType(s) == t {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown asset type: %q", s)
}

// AllocationMode defines how a position reacts to market value changes.
type AllocationMode string

const (
	// ModeFixed leaves allocations untouched unless they no longer fit.
	ModeFixed AllocationMode = "fixed"
	// ModeRatio scales all allocations proportionally with the value.
	ModeRatio AllocationMode = "ratio"
	// ModePriority feeds value increases to the most urgent goals first.
	ModePriority AllocationMode = "priority"
)

// ParseAllocationMode parses a string into an AllocationMode.
func ParseAllocationMode(s string) (AllocationMode, error) {
	switch AllocationMode(s) {
	case ModeFixed, ModeRatio, ModePriority:
		return AllocationMode(s), nil
	default:
		return "", fmt.Errorf("unknown allocation mode: %q", s)
	}
}

// GoalStatus is the lifecycle state of a goal. A spent goal keeps status
// "closed"; it is distinguished by its SpentAt timestamp.
type GoalStatus string

const (
	// GoalStatusActive is a goal currently being saved for.
	GoalStatusActive GoalStatus = "active"
	// GoalStatusClosed is a goal no longer receiving funds. Only closed
	// goals can be spent or reopened.
	GoalStatusClosed GoalStatus = "closed"
)

// ParseGoalStatus parses a string into a GoalStatus.
func ParseGoalStatus(s string) (GoalStatus, error) {
	switch GoalStatus(s) {
	case GoalStatusActive, GoalStatusClosed:
		return GoalStatus(s), nil
	default:
		return "", fmt.Errorf("unknown goal status: %q", s)
	}
}

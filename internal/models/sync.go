package models

import "time"

// FilterOperator compares a remote attribute against a filter value.
type FilterOperator string

const (
	OperatorEqual       FilterOperator = "EQ"
	OperatorNotEqual    FilterOperator = "NE"
	OperatorContains    FilterOperator = "CONTAINS"
	OperatorStartsWith  FilterOperator = "STARTS_WITH"
	OperatorEndsWith    FilterOperator = "ENDS_WITH"
	OperatorGreaterThan FilterOperator = "GT"
	OperatorLessThan    FilterOperator = "LT"
)

// LinkedAction handles remote records already linked to a local account.
type LinkedAction string

const (
	LinkedIgnore       LinkedAction = "IGNORE"
	LinkedUpdateEntity LinkedAction = "UPDATE_ENTITY"
	LinkedUnlink       LinkedAction = "UNLINK"
)

// UnlinkedAction handles remote records that correlate to a local entity
// without an account link.
type UnlinkedAction string

const (
	UnlinkedIgnore           UnlinkedAction = "IGNORE"
	UnlinkedLink             UnlinkedAction = "LINK"
	UnlinkedLinkAndUpdate    UnlinkedAction = "LINK_AND_UPDATE_ACCOUNT"
)

// MissingEntityAction handles remote records with no correlating local
// entity.
type MissingEntityAction string

const (
	MissingEntityIgnore MissingEntityAction = "IGNORE"
	MissingEntityCreate MissingEntityAction = "CREATE_ENTITY"
)

// MissingAccountAction handles locally linked accounts absent from the
// remote enumeration (reconciliation only).
type MissingAccountAction string

const (
	MissingAccountIgnore        MissingAccountAction = "IGNORE"
	MissingAccountDeleteEntity  MissingAccountAction = "DELETE_ENTITY"
	MissingAccountCreateAccount MissingAccountAction = "CREATE_ACCOUNT"
)

// SyncConfig configures one synchronization of a system mapping.
type SyncConfig struct {
	ID              string
	SystemMappingID string
	Name            string
	Enabled         bool

	// CorrelationAttribute names the remote schema attribute used to match
	// a record to a local entity when it is not already linked by UID.
	CorrelationAttribute string

	// TokenAttribute carries the incremental watermark; Token holds the
	// last persisted value.
	TokenAttribute string
	Token          string

	// CustomFilter enables filtered (incremental) enumeration using
	// FilterAttribute/FilterOperator against the current token.
	CustomFilter    bool
	FilterAttribute string
	FilterOperator  FilterOperator

	Reconciliation bool

	LinkedAction         LinkedAction
	UnlinkedAction       UnlinkedAction
	MissingEntityAction  MissingEntityAction
	MissingAccountAction MissingAccountAction

	Running   bool
	CreatedAt time.Time
}

// RunState is the lifecycle of one synchronization run.
type RunState string

const (
	RunIdle                RunState = "IDLE"
	RunRunning             RunState = "RUNNING"
	RunCompleted           RunState = "COMPLETED"
	RunCompletedWithErrors RunState = "COMPLETED_WITH_ERRORS"
)

// ItemResult is the outcome of one processed record.
type ItemResult string

const (
	ResultOK      ItemResult = "OK"
	ResultError   ItemResult = "ERROR"
	ResultWarning ItemResult = "WARNING"
)

// SyncLog records one synchronization run.
type SyncLog struct {
	ID            string
	SyncConfigID  string
	State         RunState
	Started       time.Time
	Ended         *time.Time
	Token         string
	ContainsError bool
}

// SyncActionLog is one per-run bucket, keyed by the action actually executed.
type SyncActionLog struct {
	ID        string
	SyncLogID string
	Action    string
	Count     int
}

// SyncItemLog is one per-item outcome inside an action bucket.
type SyncItemLog struct {
	ID          string
	ActionLogID string
	// Identification is the record UID (or local entity identifier for
	// missing-account items).
	Identification string
	DisplayName    string
	Message        string
	Result         ItemResult
	CreatedAt      time.Time
}

package guard

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Protected entity kinds. Deletes on these tables must pass through the
// guard; everything else is unguarded.
const (
	EntityAccount      = "account"
	EntityJournalEntry = "journal_entry"
	EntityInvoice      = "invoice"
	EntityCustomer     = "customer"
	EntityFixedAsset   = "fixed_asset"
	EntityCurrency     = "currency"
)

// Violation is the first rule of a guard checklist that rejected the
// operation. The message is specific enough to act on.
type Violation struct {
	Entity  string
	Rule    string
	Message string
}

func (v *Violation) Error() string {
	return fmt.Sprintf("guard: %s", v.Message)
}

// DeletionLogEntry captures the full row removed by an allowed deletion,
// enabling point-in-time recovery.
type DeletionLogEntry struct {
	ID            uuid.UUID
	TableName     string
	RecordID      int64
	Snapshot      json.RawMessage
	DeletedBy     int64
	DeletedAt     time.Time
	IsRecoverable bool
	RecoveredAt   *time.Time
}

var (
	// ErrUnknownEntity indicates no guard is registered for the kind.
	ErrUnknownEntity = errors.New("guard: unknown entity kind")
	// ErrRecordNotFound indicates the target row does not exist.
	ErrRecordNotFound = errors.New("guard: record not found")
	// ErrNotRecoverable indicates the log entry is missing or already
	// recovered.
	ErrNotRecoverable = errors.New("guard: deletion log entry not recoverable")
)

// tableFor maps entity kinds to their physical tables. Only whitelisted
// tables ever reach the dynamic recovery SQL.
var tableFor = map[string]string{
	EntityAccount:      "accounts",
	EntityJournalEntry: "journal_entries",
	EntityInvoice:      "invoices",
	EntityCustomer:     "customers",
	EntityFixedAsset:   "fixed_assets",
	EntityCurrency:     "currencies",
}

// entityForTable is the inverse of tableFor, used by recovery.
var entityForTable = func() map[string]string {
	m := make(map[string]string, len(tableFor))
	for entity, table := range tableFor {
		m[table] = entity
	}
	return m
}()

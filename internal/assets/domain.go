package assets

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DepreciationMethod enumerates supported depreciation methods.
type DepreciationMethod string

const (
	MethodStraightLine     DepreciationMethod = "STRAIGHT_LINE"
	MethodDecliningBalance DepreciationMethod = "DECLINING_BALANCE"
)

// AssetStatus enumerates the fixed asset lifecycle.
type AssetStatus string

const (
	AssetStatusDraft   AssetStatus = "DRAFT"
	AssetStatusActive  AssetStatus = "ACTIVE"
	AssetStatusRetired AssetStatus = "RETIRED"
)

// ScheduleStatus enumerates depreciation schedule row states. A row moves
// PENDING -> POSTED exactly once, never back.
type ScheduleStatus string

const (
	ScheduleStatusPending   ScheduleStatus = "PENDING"
	ScheduleStatusPosted    ScheduleStatus = "POSTED"
	ScheduleStatusCancelled ScheduleStatus = "CANCELLED"
)

// FixedAsset models a depreciable asset with its ledger account links.
type FixedAsset struct {
	ID                   int64
	Code                 string
	Name                 string
	PurchaseCost         float64
	SalvageValue         float64
	UsefulLifeYears      int
	Method               DepreciationMethod
	PurchaseDate         time.Time
	Status               AssetStatus
	ExpenseAccountID     int64
	AccumulatedAccountID int64
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// DepreciationSchedule is one monthly depreciation period for an asset.
type DepreciationSchedule struct {
	ID             int64
	AssetID        int64
	ScheduleDate   time.Time
	Amount         float64
	Accumulated    float64
	BookValue      float64
	Status         ScheduleStatus
	JournalEntryID *int64
	Notes          string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// DueRow is a pending schedule row joined with the asset fields needed to
// post it.
type DueRow struct {
	Schedule             DepreciationSchedule
	AssetCode            string
	ExpenseAccountID     int64
	AccumulatedAccountID int64
}

// BatchError records one failed row of a ProcessDue run.
type BatchError struct {
	ScheduleID int64  `json:"schedule_id"`
	AssetCode  string `json:"asset_code"`
	Message    string `json:"message"`
}

// BatchResult summarizes a ProcessDue run.
type BatchResult struct {
	Processed   int          `json:"processed"`
	TotalAmount float64      `json:"total_amount"`
	Errors      []BatchError `json:"errors,omitempty"`
}

// CreateInput groups fields required to register an asset.
type CreateInput struct {
	Code                 string
	Name                 string
	PurchaseCost         float64
	SalvageValue         float64
	UsefulLifeYears      int
	Method               DepreciationMethod
	PurchaseDate         time.Time
	ExpenseAccountID     int64
	AccumulatedAccountID int64
}

var (
	// ErrAssetNotFound indicates a missing asset.
	ErrAssetNotFound = errors.New("assets: fixed asset not found")
	// ErrRunInProgress indicates another depreciation batch holds the lock.
	ErrRunInProgress = errors.New("assets: depreciation run already in progress")
)

// Validate ensures the asset input can produce a coherent schedule.
func (in CreateInput) Validate() error {
	if strings.TrimSpace(in.Code) == "" {
		return errors.New("assets: code required")
	}
	if strings.TrimSpace(in.Name) == "" {
		return errors.New("assets: name required")
	}
	if in.PurchaseCost <= 0 {
		return errors.New("assets: purchase cost must be positive")
	}
	if in.SalvageValue < 0 || in.SalvageValue >= in.PurchaseCost {
		return errors.New("assets: salvage value must be >= 0 and below cost")
	}
	if in.UsefulLifeYears <= 0 {
		return errors.New("assets: useful life must be at least one year")
	}
	if in.Method != MethodStraightLine && in.Method != MethodDecliningBalance {
		return fmt.Errorf("assets: unknown method %q", in.Method)
	}
	if in.PurchaseDate.IsZero() {
		return errors.New("assets: purchase date required")
	}
	if in.ExpenseAccountID == 0 || in.AccumulatedAccountID == 0 {
		return errors.New("assets: expense and accumulated accounts required")
	}
	return nil
}

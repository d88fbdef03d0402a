package accounts

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// AccountType enumerates chart-of-accounts categories.
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeRevenue   AccountType = "REVENUE"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// Valid reports whether the account type is a known category.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeRevenue, AccountTypeExpense:
		return true
	}
	return false
}

// DebitNormal reports whether balances of this type grow with debits.
func (t AccountType) DebitNormal() bool {
	return t == AccountTypeAsset || t == AccountTypeExpense
}

// Account models a chart of accounts node. Balance is a running signed
// total maintained exclusively by the posting engine.
type Account struct {
	ID           int64
	Code         string
	Name         string
	Type         AccountType
	ParentID     *int64
	Balance      float64
	IsActive     bool
	IsSystem     bool
	CurrencyCode string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CreateInput groups fields required to create an account.
type CreateInput struct {
	Code         string
	Name         string
	Type         AccountType
	CurrencyCode string
}

var (
	// ErrNotFound indicates a missing account.
	ErrNotFound = errors.New("accounts: account not found")
	// ErrCodeTaken indicates the code is already in use.
	ErrCodeTaken = errors.New("accounts: code already in use")
	// ErrParentNotFound indicates the parent implied by the code is missing.
	ErrParentNotFound = errors.New("accounts: parent account not found")
	// ErrSystemAccount indicates the operation targets a root/system account.
	ErrSystemAccount = errors.New("accounts: system account is protected")
)

// IsRootCode reports whether code is a top-level chart code ("1".."5").
// Root accounts are system accounts and permanently undeletable.
func IsRootCode(code string) bool {
	return !strings.Contains(code, ".")
}

// ParentCode returns the code one level up the hierarchy, or "" for roots.
func ParentCode(code string) string {
	idx := strings.LastIndex(code, ".")
	if idx < 0 {
		return ""
	}
	return code[:idx]
}

// Validate ensures the create input is coherent.
func (in CreateInput) Validate() error {
	code := strings.TrimSpace(in.Code)
	if code == "" {
		return errors.New("accounts: code required")
	}
	for _, seg := range strings.Split(code, ".") {
		if seg == "" {
			return fmt.Errorf("accounts: malformed code %q", in.Code)
		}
	}
	if strings.TrimSpace(in.Name) == "" {
		return errors.New("accounts: name required")
	}
	if !in.Type.Valid() {
		return fmt.Errorf("accounts: unknown type %q", in.Type)
	}
	return nil
}

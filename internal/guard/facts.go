package guard

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Fact interfaces keep the guards free of SQL so the checklists are
// testable without a live database. FactStore is the pgx implementation
// of all of them.

// AccountFacts answers questions about chart-of-accounts rows.
type AccountFacts interface {
	AccountRow(ctx context.Context, id int64) (code string, balance float64, isSystem bool, found bool, err error)
	AccountHasLedgerLines(ctx context.Context, id int64) (bool, error)
	AccountHasLinkedParties(ctx context.Context, id int64) (bool, error)
}

// JournalEntryFacts answers questions about journal entries.
type JournalEntryFacts interface {
	JournalEntryRow(ctx context.Context, id int64) (status string, isOpening, isDepreciation bool, found bool, err error)
	JournalEntryInClosedPeriod(ctx context.Context, id int64) (bool, error)
}

// InvoiceFacts answers questions about invoices.
type InvoiceFacts interface {
	InvoiceRow(ctx context.Context, id int64) (status string, paidAmount float64, found bool, err error)
	InvoiceHasJournalEntry(ctx context.Context, id int64) (bool, error)
}

// CustomerFacts answers questions about customers.
type CustomerFacts interface {
	CustomerExists(ctx context.Context, id int64) (bool, error)
	CustomerHasInvoices(ctx context.Context, id int64) (bool, error)
	CustomerAccountHasActivity(ctx context.Context, id int64) (bool, error)
}

// FixedAssetFacts answers questions about fixed assets.
type FixedAssetFacts interface {
	FixedAssetRow(ctx context.Context, id int64) (status string, found bool, err error)
	FixedAssetHasScheduleRows(ctx context.Context, id int64) (bool, error)
	FixedAssetAccountsHaveHistory(ctx context.Context, id int64) (bool, error)
}

// CurrencyFacts answers questions about currencies.
type CurrencyFacts interface {
	CurrencyRow(ctx context.Context, id int64) (code string, found bool, err error)
	CurrencyReferenced(ctx context.Context, code string) (bool, error)
}

// FactStore implements every fact interface against PostgreSQL.
type FactStore struct {
	db *pgxpool.Pool
}

// NewFactStore constructs the pgx-backed fact store.
func NewFactStore(db *pgxpool.Pool) *FactStore {
	return &FactStore{db: db}
}

func (f *FactStore) AccountRow(ctx context.Context, id int64) (string, float64, bool, bool, error) {
	var code string
	var balance float64
	var isSystem bool
	err := f.db.QueryRow(ctx, `SELECT code, balance, is_system FROM accounts WHERE id=$1`, id).Scan(&code, &balance, &isSystem)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", 0, false, false, nil
		}
		return "", 0, false, false, err
	}
	return code, balance, isSystem, true, nil
}

func (f *FactStore) AccountHasLedgerLines(ctx context.Context, id int64) (bool, error) {
	return f.exists(ctx, `SELECT EXISTS (SELECT 1 FROM journal_entry_lines WHERE account_id=$1)`, id)
}

func (f *FactStore) AccountHasLinkedParties(ctx context.Context, id int64) (bool, error) {
	return f.exists(ctx, `SELECT EXISTS (
SELECT 1 FROM customers WHERE account_id=$1
UNION ALL
SELECT 1 FROM fixed_assets WHERE expense_account_id=$1 OR accumulated_account_id=$1)`, id)
}

func (f *FactStore) JournalEntryRow(ctx context.Context, id int64) (string, bool, bool, bool, error) {
	var status string
	var isOpening, isDepreciation bool
	err := f.db.QueryRow(ctx, `SELECT status, is_opening, is_depreciation FROM journal_entries WHERE id=$1`, id).
		Scan(&status, &isOpening, &isDepreciation)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, false, false, nil
		}
		return "", false, false, false, err
	}
	return status, isOpening, isDepreciation, true, nil
}

func (f *FactStore) JournalEntryInClosedPeriod(ctx context.Context, id int64) (bool, error) {
	return f.exists(ctx, `SELECT EXISTS (
SELECT 1 FROM journal_entries e
JOIN fiscal_periods p ON e.date BETWEEN p.start_date AND p.end_date
WHERE e.id=$1 AND p.status <> 'OPEN')`, id)
}

func (f *FactStore) InvoiceRow(ctx context.Context, id int64) (string, float64, bool, error) {
	var status string
	var paid float64
	err := f.db.QueryRow(ctx, `SELECT status, paid_amount FROM invoices WHERE id=$1`, id).Scan(&status, &paid)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", 0, false, nil
		}
		return "", 0, false, err
	}
	return status, paid, true, nil
}

func (f *FactStore) InvoiceHasJournalEntry(ctx context.Context, id int64) (bool, error) {
	return f.exists(ctx, `SELECT EXISTS (SELECT 1 FROM invoices WHERE id=$1 AND journal_entry_id IS NOT NULL)`, id)
}

func (f *FactStore) CustomerExists(ctx context.Context, id int64) (bool, error) {
	return f.exists(ctx, `SELECT EXISTS (SELECT 1 FROM customers WHERE id=$1)`, id)
}

func (f *FactStore) CustomerHasInvoices(ctx context.Context, id int64) (bool, error) {
	return f.exists(ctx, `SELECT EXISTS (SELECT 1 FROM invoices WHERE customer_id=$1)`, id)
}

func (f *FactStore) CustomerAccountHasActivity(ctx context.Context, id int64) (bool, error) {
	return f.exists(ctx, `SELECT EXISTS (
SELECT 1 FROM customers c
JOIN accounts a ON a.id = c.account_id
WHERE c.id=$1 AND (ABS(a.balance) > 0.01
   OR EXISTS (SELECT 1 FROM journal_entry_lines l WHERE l.account_id = a.id)))`, id)
}

func (f *FactStore) FixedAssetRow(ctx context.Context, id int64) (string, bool, error) {
	var status string
	err := f.db.QueryRow(ctx, `SELECT status FROM fixed_assets WHERE id=$1`, id).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return status, true, nil
}

func (f *FactStore) FixedAssetHasScheduleRows(ctx context.Context, id int64) (bool, error) {
	return f.exists(ctx, `SELECT EXISTS (SELECT 1 FROM depreciation_schedules WHERE asset_id=$1)`, id)
}

func (f *FactStore) FixedAssetAccountsHaveHistory(ctx context.Context, id int64) (bool, error) {
	return f.exists(ctx, `SELECT EXISTS (
SELECT 1 FROM fixed_assets fa
JOIN journal_entry_lines l ON l.account_id IN (fa.expense_account_id, fa.accumulated_account_id)
WHERE fa.id=$1)`, id)
}

func (f *FactStore) CurrencyRow(ctx context.Context, id int64) (string, bool, error) {
	var code string
	err := f.db.QueryRow(ctx, `SELECT code FROM currencies WHERE id=$1`, id).Scan(&code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return code, true, nil
}

// CurrencyReferenced checks accounts only: journal entries carry no
// currency column in this schema, so an entry can reference a currency
// solely through its lines' accounts.
func (f *FactStore) CurrencyReferenced(ctx context.Context, code string) (bool, error) {
	return f.exists(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE currency_code=$1)`, code)
}

func (f *FactStore) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var exists bool
	err := f.db.QueryRow(ctx, query, args...).Scan(&exists)
	return exists, err
}

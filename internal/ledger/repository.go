package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/accounts"
	"github.com/meridian-erp/meridian-erp/internal/platform/db"
)

// RepositoryPort abstracts transactional repository behaviour.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetEntryWithLines(ctx context.Context, entryID int64) (JournalEntry, error)
	ListEntries(ctx context.Context) ([]JournalEntry, error)
}

// TxRepository exposes operations available within a posting transaction.
type TxRepository interface {
	GetAccountForUpdate(ctx context.Context, accountID int64) (accounts.Account, error)
	InsertEntry(ctx context.Context, in EntryInput, entryNumber string, reversalOf *int64) (JournalEntry, error)
	InsertLines(ctx context.Context, entryID int64, lines []LineInput) ([]JournalEntryLine, error)
	ApplyBalanceDelta(ctx context.Context, accountID int64, delta float64) error
	GetEntryWithLinesForUpdate(ctx context.Context, entryID int64) (JournalEntry, error)
	MarkReversed(ctx context.Context, entryID int64, reason string) error
	OpeningEntryExists(ctx context.Context) (bool, error)
}

const entryColumns = `id, entry_number, document_type, date, description, status, total_debit, total_credit,
is_opening, is_depreciation, posted_by, fiscal_year, reversal_reason, reversal_of_id, created_at, updated_at`

// Repository persists journal entries and applies balance effects.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx executes fn within a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("ledger repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

func scanEntry(row pgx.Row) (JournalEntry, error) {
	var e JournalEntry
	err := row.Scan(&e.ID, &e.EntryNumber, &e.DocumentType, &e.Date, &e.Description, &e.Status,
		&e.TotalDebit, &e.TotalCredit, &e.IsOpening, &e.IsDepreciation, &e.PostedBy, &e.FiscalYear,
		&e.ReversalReason, &e.ReversalOfID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return JournalEntry{}, ErrEntryNotFound
		}
		return JournalEntry{}, err
	}
	return e, nil
}

func (r *txRepository) GetAccountForUpdate(ctx context.Context, accountID int64) (accounts.Account, error) {
	var a accounts.Account
	err := r.tx.QueryRow(ctx, `SELECT id, code, name, type, parent_id, balance, is_active, is_system, currency_code, created_at, updated_at
FROM accounts WHERE id=$1 FOR UPDATE`, accountID).
		Scan(&a.ID, &a.Code, &a.Name, &a.Type, &a.ParentID, &a.Balance, &a.IsActive, &a.IsSystem, &a.CurrencyCode, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return accounts.Account{}, ErrAccountNotFound
		}
		return accounts.Account{}, err
	}
	return a, nil
}

func (r *txRepository) InsertEntry(ctx context.Context, in EntryInput, entryNumber string, reversalOf *int64) (JournalEntry, error) {
	debit, credit := in.Totals()
	row := r.tx.QueryRow(ctx, `INSERT INTO journal_entries
(entry_number, document_type, date, description, status, total_debit, total_credit, is_opening, is_depreciation, posted_by, fiscal_year, reversal_of_id)
VALUES ($1,$2,$3,$4,'POSTED',$5,$6,$7,$8,$9,$10,$11)
RETURNING `+entryColumns,
		entryNumber, in.DocumentType, in.Date, in.Description, toNumeric(debit), toNumeric(credit),
		in.IsOpening, in.IsDepreciation, nullInt(in.PostedBy), in.Date.Year(), reversalOf)
	entry, err := scanEntry(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.ConstraintName == "uq_journal_entries_opening" {
			return JournalEntry{}, ErrOpeningEntryExists
		}
		return JournalEntry{}, err
	}
	return entry, nil
}

func (r *txRepository) InsertLines(ctx context.Context, entryID int64, lines []LineInput) ([]JournalEntryLine, error) {
	out := make([]JournalEntryLine, 0, len(lines))
	for _, line := range lines {
		var inserted JournalEntryLine
		err := r.tx.QueryRow(ctx, `INSERT INTO journal_entry_lines (entry_id, account_id, debit, credit, description)
VALUES ($1,$2,$3,$4,$5) RETURNING id, entry_id, account_id, debit, credit, description, created_at`,
			entryID, line.AccountID, toNumeric(line.Debit), toNumeric(line.Credit), line.Description).
			Scan(&inserted.ID, &inserted.EntryID, &inserted.AccountID, &inserted.Debit, &inserted.Credit, &inserted.Description, &inserted.CreatedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, inserted)
	}
	return out, nil
}

// ApplyBalanceDelta adjusts the running signed balance in the database so
// concurrent posts to the same account serialize on the row.
func (r *txRepository) ApplyBalanceDelta(ctx context.Context, accountID int64, delta float64) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE accounts SET balance = balance + $2, updated_at = NOW() WHERE id=$1`, accountID, toNumeric(delta))
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *txRepository) GetEntryWithLinesForUpdate(ctx context.Context, entryID int64) (JournalEntry, error) {
	entry, err := scanEntry(r.tx.QueryRow(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE id=$1 FOR UPDATE`, entryID))
	if err != nil {
		return JournalEntry{}, err
	}
	entry.Lines, err = queryLines(ctx, r.tx, entryID)
	if err != nil {
		return JournalEntry{}, err
	}
	return entry, nil
}

func (r *txRepository) MarkReversed(ctx context.Context, entryID int64, reason string) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE journal_entries SET status='REVERSED', reversal_reason=$2, updated_at=NOW()
WHERE id=$1 AND status='POSTED'`, entryID, reason)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrInvalidStatus
	}
	return nil
}

func (r *txRepository) OpeningEntryExists(ctx context.Context) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM journal_entries WHERE is_opening)`).Scan(&exists)
	return exists, err
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func queryLines(ctx context.Context, q queryer, entryID int64) ([]JournalEntryLine, error) {
	rows, err := q.Query(ctx, `SELECT id, entry_id, account_id, debit, credit, description, created_at
FROM journal_entry_lines WHERE entry_id=$1 ORDER BY id ASC`, entryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []JournalEntryLine
	for rows.Next() {
		var line JournalEntryLine
		if err := rows.Scan(&line.ID, &line.EntryID, &line.AccountID, &line.Debit, &line.Credit, &line.Description, &line.CreatedAt); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// GetEntryWithLines fetches an entry and its lines outside a transaction.
func (r *Repository) GetEntryWithLines(ctx context.Context, entryID int64) (JournalEntry, error) {
	entry, err := scanEntry(r.pool.QueryRow(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE id=$1`, entryID))
	if err != nil {
		return JournalEntry{}, err
	}
	entry.Lines, err = queryLines(ctx, r.pool, entryID)
	if err != nil {
		return JournalEntry{}, err
	}
	return entry, nil
}

// ListEntries returns all journal entries, newest first.
func (r *Repository) ListEntries(ctx context.Context) ([]JournalEntry, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+entryColumns+` FROM journal_entries ORDER BY id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []JournalEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func nullInt(val int64) any {
	if val == 0 {
		return nil
	}
	return val
}

func toNumeric(v float64) any {
	return fmt.Sprintf("%.2f", v)
}

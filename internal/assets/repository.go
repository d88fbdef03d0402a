package assets

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const assetColumns = `id, code, name, purchase_cost, salvage_value, useful_life_years, method, purchase_date,
status, expense_account_id, accumulated_account_id, created_at, updated_at`

const scheduleColumns = `id, asset_id, schedule_date, amount, accumulated, book_value, status, journal_entry_id, notes, created_at, updated_at`

// Repository persists fixed assets and their depreciation schedules.
type Repository interface {
	InsertAsset(ctx context.Context, in CreateInput) (FixedAsset, error)
	GetAsset(ctx context.Context, id int64) (FixedAsset, error)
	ListAssets(ctx context.Context) ([]FixedAsset, error)
	SetAssetStatus(ctx context.Context, id int64, status AssetStatus) error

	DeletePendingRows(ctx context.Context, assetID int64) (int64, error)
	InsertScheduleRows(ctx context.Context, rows []DepreciationSchedule) error
	ListSchedule(ctx context.Context, assetID int64) ([]DepreciationSchedule, error)
	ListDue(ctx context.Context, asOf time.Time) ([]DueRow, error)
	MarkPosted(ctx context.Context, scheduleID, journalEntryID int64) error
	RecordRowError(ctx context.Context, scheduleID int64, note string) error
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs the pgx-backed repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func scanAsset(row pgx.Row) (FixedAsset, error) {
	var a FixedAsset
	err := row.Scan(&a.ID, &a.Code, &a.Name, &a.PurchaseCost, &a.SalvageValue, &a.UsefulLifeYears, &a.Method,
		&a.PurchaseDate, &a.Status, &a.ExpenseAccountID, &a.AccumulatedAccountID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return FixedAsset{}, ErrAssetNotFound
		}
		return FixedAsset{}, err
	}
	return a, nil
}

func (r *repository) InsertAsset(ctx context.Context, in CreateInput) (FixedAsset, error) {
	row := r.db.QueryRow(ctx, `INSERT INTO fixed_assets
(code, name, purchase_cost, salvage_value, useful_life_years, method, purchase_date, status, expense_account_id, accumulated_account_id)
VALUES ($1,$2,$3,$4,$5,$6,$7,'DRAFT',$8,$9) RETURNING `+assetColumns,
		in.Code, in.Name, in.PurchaseCost, in.SalvageValue, in.UsefulLifeYears, in.Method, in.PurchaseDate,
		in.ExpenseAccountID, in.AccumulatedAccountID)
	return scanAsset(row)
}

func (r *repository) GetAsset(ctx context.Context, id int64) (FixedAsset, error) {
	return scanAsset(r.db.QueryRow(ctx, `SELECT `+assetColumns+` FROM fixed_assets WHERE id=$1`, id))
}

func (r *repository) ListAssets(ctx context.Context) ([]FixedAsset, error) {
	rows, err := r.db.Query(ctx, `SELECT `+assetColumns+` FROM fixed_assets ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var assets []FixedAsset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		assets = append(assets, a)
	}
	return assets, rows.Err()
}

func (r *repository) SetAssetStatus(ctx context.Context, id int64, status AssetStatus) error {
	cmd, err := r.db.Exec(ctx, `UPDATE fixed_assets SET status=$2, updated_at=NOW() WHERE id=$1`, id, status)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAssetNotFound
	}
	return nil
}

// DeletePendingRows clears not-yet-posted rows ahead of regeneration.
// Posted rows are immutable and untouched.
func (r *repository) DeletePendingRows(ctx context.Context, assetID int64) (int64, error) {
	cmd, err := r.db.Exec(ctx, `DELETE FROM depreciation_schedules WHERE asset_id=$1 AND status='PENDING'`, assetID)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *repository) InsertScheduleRows(ctx context.Context, rows []DepreciationSchedule) error {
	for _, row := range rows {
		_, err := r.db.Exec(ctx, `INSERT INTO depreciation_schedules
(asset_id, schedule_date, amount, accumulated, book_value, status)
VALUES ($1,$2,$3,$4,$5,$6)`,
			row.AssetID, row.ScheduleDate, row.Amount, row.Accumulated, row.BookValue, row.Status)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *repository) ListSchedule(ctx context.Context, assetID int64) ([]DepreciationSchedule, error) {
	rows, err := r.db.Query(ctx, `SELECT `+scheduleColumns+` FROM depreciation_schedules
WHERE asset_id=$1 ORDER BY schedule_date`, assetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSchedules(rows)
}

func (r *repository) ListDue(ctx context.Context, asOf time.Time) ([]DueRow, error) {
	rows, err := r.db.Query(ctx, `SELECT s.id, s.asset_id, s.schedule_date, s.amount, s.accumulated, s.book_value,
s.status, s.journal_entry_id, s.notes, s.created_at, s.updated_at,
a.code, a.expense_account_id, a.accumulated_account_id
FROM depreciation_schedules s
JOIN fixed_assets a ON a.id = s.asset_id
WHERE s.status='PENDING' AND s.schedule_date <= $1
ORDER BY s.schedule_date, s.id`, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var due []DueRow
	for rows.Next() {
		var d DueRow
		s := &d.Schedule
		if err := rows.Scan(&s.ID, &s.AssetID, &s.ScheduleDate, &s.Amount, &s.Accumulated, &s.BookValue,
			&s.Status, &s.JournalEntryID, &s.Notes, &s.CreatedAt, &s.UpdatedAt,
			&d.AssetCode, &d.ExpenseAccountID, &d.AccumulatedAccountID); err != nil {
			return nil, err
		}
		due = append(due, d)
	}
	return due, rows.Err()
}

// MarkPosted flips a row PENDING -> POSTED exactly once.
func (r *repository) MarkPosted(ctx context.Context, scheduleID, journalEntryID int64) error {
	cmd, err := r.db.Exec(ctx, `UPDATE depreciation_schedules
SET status='POSTED', journal_entry_id=$2, updated_at=NOW()
WHERE id=$1 AND status='PENDING'`, scheduleID, journalEntryID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return errors.New("assets: schedule row is not pending")
	}
	return nil
}

func (r *repository) RecordRowError(ctx context.Context, scheduleID int64, note string) error {
	_, err := r.db.Exec(ctx, `UPDATE depreciation_schedules SET notes=$2, updated_at=NOW() WHERE id=$1`, scheduleID, note)
	return err
}

func collectSchedules(rows pgx.Rows) ([]DepreciationSchedule, error) {
	var out []DepreciationSchedule
	for rows.Next() {
		var s DepreciationSchedule
		if err := rows.Scan(&s.ID, &s.AssetID, &s.ScheduleDate, &s.Amount, &s.Accumulated, &s.BookValue,
			&s.Status, &s.JournalEntryID, &s.Notes, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

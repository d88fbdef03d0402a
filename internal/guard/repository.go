package guard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/platform/db"
)

const logColumns = `id, table_name, record_id, snapshot, deleted_by, deleted_at, is_recoverable, recovered_at`

// Repository persists deletion log entries and performs the guarded
// snapshot-then-delete and snapshot-replay operations.
type Repository interface {
	DeleteWithSnapshot(ctx context.Context, table string, recordID, actor int64) (DeletionLogEntry, error)
	Recover(ctx context.Context, logID uuid.UUID) (DeletionLogEntry, error)
	ListLog(ctx context.Context, limit int) ([]DeletionLogEntry, error)
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs the pgx-backed repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

// DeleteWithSnapshot captures the full row, logs it, and deletes it in one
// transaction. The table name is interpolated but only ever comes from the
// entity whitelist.
func (r *repository) DeleteWithSnapshot(ctx context.Context, table string, recordID, actor int64) (DeletionLogEntry, error) {
	if _, ok := entityForTable[table]; !ok {
		return DeletionLogEntry{}, ErrUnknownEntity
	}
	var entry DeletionLogEntry
	err := db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		var snapshot json.RawMessage
		err := tx.QueryRow(ctx, fmt.Sprintf(`SELECT row_to_json(t) FROM %s t WHERE id=$1 FOR UPDATE`, table), recordID).Scan(&snapshot)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrRecordNotFound
			}
			return err
		}

		err = tx.QueryRow(ctx, `INSERT INTO deletion_log (id, table_name, record_id, snapshot, deleted_by)
VALUES ($1,$2,$3,$4,$5) RETURNING `+logColumns,
			uuid.New(), table, recordID, snapshot, actor).
			Scan(&entry.ID, &entry.TableName, &entry.RecordID, &entry.Snapshot, &entry.DeletedBy, &entry.DeletedAt, &entry.IsRecoverable, &entry.RecoveredAt)
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id=$1`, table), recordID)
		return err
	})
	if err != nil {
		return DeletionLogEntry{}, err
	}
	return entry, nil
}

// Recover replays the captured snapshot into its source table and marks
// the log entry consumed. Re-insertion is a single row, so foreign key
// ordering reduces to surfacing a descriptive error when a referenced
// parent no longer exists.
func (r *repository) Recover(ctx context.Context, logID uuid.UUID) (DeletionLogEntry, error) {
	var entry DeletionLogEntry
	err := db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `UPDATE deletion_log SET is_recoverable=FALSE, recovered_at=NOW()
WHERE id=$1 AND is_recoverable RETURNING `+logColumns, logID).
			Scan(&entry.ID, &entry.TableName, &entry.RecordID, &entry.Snapshot, &entry.DeletedBy, &entry.DeletedAt, &entry.IsRecoverable, &entry.RecoveredAt)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotRecoverable
			}
			return err
		}
		if _, ok := entityForTable[entry.TableName]; !ok {
			return ErrUnknownEntity
		}

		_, err = tx.Exec(ctx, fmt.Sprintf(`INSERT INTO %s SELECT * FROM jsonb_populate_record(NULL::%s, $1::jsonb)`, entry.TableName, entry.TableName), entry.Snapshot)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) {
				switch pgErr.Code {
				case "23503":
					return fmt.Errorf("guard: recover %s/%d: referenced record missing: %s", entry.TableName, entry.RecordID, pgErr.Detail)
				case "23505":
					return fmt.Errorf("guard: recover %s/%d: record already exists", entry.TableName, entry.RecordID)
				}
			}
			return err
		}
		return nil
	})
	if err != nil {
		return DeletionLogEntry{}, err
	}
	return entry, nil
}

func (r *repository) ListLog(ctx context.Context, limit int) ([]DeletionLogEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.db.Query(ctx, `SELECT `+logColumns+` FROM deletion_log ORDER BY deleted_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []DeletionLogEntry
	for rows.Next() {
		var entry DeletionLogEntry
		if err := rows.Scan(&entry.ID, &entry.TableName, &entry.RecordID, &entry.Snapshot, &entry.DeletedBy, &entry.DeletedAt, &entry.IsRecoverable, &entry.RecoveredAt); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

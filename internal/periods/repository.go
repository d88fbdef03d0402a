package periods

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository interface {
	FindByDate(ctx context.Context, date time.Time) (Period, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

// FindByDate returns the period covering the supplied date.
func (r *repository) FindByDate(ctx context.Context, date time.Time) (Period, error) {
	var p Period
	err := r.db.QueryRow(ctx, `SELECT id, code, start_date, end_date, status, closed_at, closed_by, created_at, updated_at
FROM fiscal_periods WHERE $1 BETWEEN start_date AND end_date ORDER BY start_date LIMIT 1`, date).
		Scan(&p.ID, &p.Code, &p.StartDate, &p.EndDate, &p.Status, &p.ClosedAt, &p.ClosedBy, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Period{}, ErrNotFound
		}
		return Period{}, err
	}
	return p, nil
}

package sequence

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository owns document_sequences. Increments happen inside the
// database so two concurrent callers can never read the same value.
type Repository interface {
	EnsureSequence(ctx context.Context, documentType string, fiscalYear int) error
	Allocate(ctx context.Context, documentType string, fiscalYear int) (DocumentSequence, error)
	List(ctx context.Context) ([]DocumentSequence, error)
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs the pgx-backed repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

// EnsureSequence lazily creates the sequence row with defaults derived
// from the document type.
func (r *repository) EnsureSequence(ctx context.Context, documentType string, fiscalYear int) error {
	prefix := strings.ToUpper(documentType)
	_, err := r.db.Exec(ctx, `INSERT INTO document_sequences (document_type, prefix, current_number, fiscal_year, format_pattern)
VALUES ($1, $2, 0, $3, $4)
ON CONFLICT (document_type) DO NOTHING`, documentType, prefix, fiscalYear, DefaultFormatPattern)
	return err
}

// Allocate increments the counter and returns the resulting state. A
// fiscal year change resets the counter to 1 in the same statement, so
// the read-modify-write never leaves the database.
func (r *repository) Allocate(ctx context.Context, documentType string, fiscalYear int) (DocumentSequence, error) {
	var seq DocumentSequence
	err := r.db.QueryRow(ctx, `UPDATE document_sequences
SET current_number = CASE WHEN fiscal_year = $2 THEN current_number + 1 ELSE 1 END,
    fiscal_year = $2,
    updated_at = NOW()
WHERE document_type = $1
RETURNING document_type, prefix, current_number, fiscal_year, format_pattern, created_at, updated_at`, documentType, fiscalYear).
		Scan(&seq.DocumentType, &seq.Prefix, &seq.CurrentNumber, &seq.FiscalYear, &seq.FormatPattern, &seq.CreatedAt, &seq.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return DocumentSequence{}, ErrNotConfigured
		}
		return DocumentSequence{}, err
	}
	return seq, nil
}

func (r *repository) List(ctx context.Context) ([]DocumentSequence, error) {
	rows, err := r.db.Query(ctx, `SELECT document_type, prefix, current_number, fiscal_year, format_pattern, created_at, updated_at
FROM document_sequences ORDER BY document_type`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var sequences []DocumentSequence
	for rows.Next() {
		var seq DocumentSequence
		if err := rows.Scan(&seq.DocumentType, &seq.Prefix, &seq.CurrentNumber, &seq.FiscalYear, &seq.FormatPattern, &seq.CreatedAt, &seq.UpdatedAt); err != nil {
			return nil, err
		}
		sequences = append(sequences, seq)
	}
	return sequences, rows.Err()
}

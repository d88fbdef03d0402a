package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

// MetricsPort counts integrity findings per check.
type MetricsPort interface {
	CountIntegrityFinding(check string)
}

// GLIntegrityChecker audits ledger invariants that the posting path is
// supposed to hold. Findings are logged and counted, never repaired.
type GLIntegrityChecker struct {
	pool    *pgxpool.Pool
	logger  *slog.Logger
	metrics MetricsPort
}

// NewGLIntegrityChecker constructs the checker.
func NewGLIntegrityChecker(pool *pgxpool.Pool, logger *slog.Logger, metrics MetricsPort) *GLIntegrityChecker {
	return &GLIntegrityChecker{pool: pool, logger: logger, metrics: metrics}
}

// Handler returns the asynq handler running all checks.
func (c *GLIntegrityChecker) Handler() asynq.HandlerFunc {
	return func(ctx context.Context, _ *asynq.Task) error {
		return c.Run(ctx)
	}
}

// Run executes the checks concurrently.
func (c *GLIntegrityChecker) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.checkUnbalancedEntries(ctx) })
	g.Go(func() error { return c.checkMultipleOpeningEntries(ctx) })
	g.Go(func() error { return c.checkOrphanLines(ctx) })
	g.Go(func() error { return c.checkPostedWithoutLines(ctx) })
	g.Go(func() error { return c.checkBalanceDrift(ctx) })
	return g.Wait()
}

// checkUnbalancedEntries finds posted entries whose stored totals drifted
// apart or disagree with their lines.
func (c *GLIntegrityChecker) checkUnbalancedEntries(ctx context.Context) error {
	rows, err := c.pool.Query(ctx, `SELECT e.id, e.entry_number
FROM journal_entries e
JOIN journal_entry_lines l ON l.entry_id = e.id
WHERE e.status IN ('POSTED','REVERSED')
GROUP BY e.id, e.entry_number
HAVING ABS(SUM(l.debit) - SUM(l.credit)) > 0.01
    OR ABS(SUM(l.debit) - e.total_debit) > 0.01
    OR ABS(SUM(l.credit) - e.total_credit) > 0.01`)
	if err != nil {
		return err
	}
	defer rows.Close()
	return c.report(rows, "unbalanced_entry", "posted entry does not balance")
}

func (c *GLIntegrityChecker) checkMultipleOpeningEntries(ctx context.Context) error {
	rows, err := c.pool.Query(ctx, `SELECT id, entry_number FROM journal_entries
WHERE is_opening AND status <> 'DRAFT'
ORDER BY id OFFSET 1`)
	if err != nil {
		return err
	}
	defer rows.Close()
	return c.report(rows, "duplicate_opening", "more than one opening entry exists")
}

func (c *GLIntegrityChecker) checkOrphanLines(ctx context.Context) error {
	rows, err := c.pool.Query(ctx, `SELECT l.id, COALESCE(e.entry_number, '')
FROM journal_entry_lines l
LEFT JOIN journal_entries e ON e.id = l.entry_id
WHERE e.id IS NULL`)
	if err != nil {
		return err
	}
	defer rows.Close()
	return c.report(rows, "orphan_line", "journal line without a parent entry")
}

func (c *GLIntegrityChecker) checkPostedWithoutLines(ctx context.Context) error {
	rows, err := c.pool.Query(ctx, `SELECT e.id, e.entry_number
FROM journal_entries e
LEFT JOIN journal_entry_lines l ON l.entry_id = e.id
WHERE e.status IN ('POSTED','REVERSED')
GROUP BY e.id, e.entry_number
HAVING COUNT(l.id) < 2`)
	if err != nil {
		return err
	}
	defer rows.Close()
	return c.report(rows, "entry_without_lines", "posted entry has fewer than two lines")
}

// checkBalanceDrift reconciles each stored account balance against the
// sum of its lines. Reversed entries keep their lines in the sum since
// the mirror entry carries the offset.
func (c *GLIntegrityChecker) checkBalanceDrift(ctx context.Context) error {
	rows, err := c.pool.Query(ctx, `SELECT a.id, a.code
FROM accounts a
LEFT JOIN journal_entry_lines l ON l.account_id = a.id
LEFT JOIN journal_entries e ON e.id = l.entry_id AND e.status IN ('POSTED','REVERSED')
GROUP BY a.id, a.code
HAVING ABS(a.balance - COALESCE(SUM(l.debit - l.credit) FILTER (WHERE e.id IS NOT NULL), 0)) > 0.01`)
	if err != nil {
		return err
	}
	defer rows.Close()
	return c.report(rows, "balance_drift", "account balance disagrees with its lines")
}

type idRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func (c *GLIntegrityChecker) report(rows idRows, check, message string) error {
	for rows.Next() {
		var id int64
		var number string
		if err := rows.Scan(&id, &number); err != nil {
			return err
		}
		if c.metrics != nil {
			c.metrics.CountIntegrityFinding(check)
		}
		c.logger.Warn("ledger integrity finding",
			slog.String("check", check),
			slog.Int64("id", id),
			slog.String("entry_number", number),
			slog.String("detail", message))
	}
	return rows.Err()
}

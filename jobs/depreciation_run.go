package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/meridian-erp/meridian-erp/internal/assets"
)

// DepreciationRunner drives the depreciation batch.
type DepreciationRunner interface {
	ProcessDue(ctx context.Context, asOf time.Time, actor int64) (assets.BatchResult, error)
}

// NewDepreciationHandler returns the asynq handler for depreciation runs.
// A run already holding the lock is treated as success so the scheduler
// does not retry into a live batch.
func NewDepreciationHandler(runner DepreciationRunner, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload DepreciationPayload
		if len(t.Payload()) > 0 {
			if err := json.Unmarshal(t.Payload(), &payload); err != nil {
				return asynq.SkipRetry
			}
		}
		result, err := runner.ProcessDue(ctx, payload.AsOfDate(), payload.ActorID)
		if err != nil {
			if errors.Is(err, assets.ErrRunInProgress) {
				logger.Info("depreciation run skipped, another run holds the lock")
				return nil
			}
			return err
		}
		logger.Info("depreciation run finished",
			slog.Int("processed", result.Processed),
			slog.Float64("total_amount", result.TotalAmount),
			slog.Int("failed", len(result.Errors)))
		for _, rowErr := range result.Errors {
			logger.Warn("depreciation row failed",
				slog.Int64("schedule_id", rowErr.ScheduleID),
				slog.String("asset", rowErr.AssetCode),
				slog.String("error", rowErr.Message))
		}
		return nil
	}
}

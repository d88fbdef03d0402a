package jobs

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/assets"
)

type stubRunner struct {
	asOf   time.Time
	actor  int64
	result assets.BatchResult
	err    error
}

func (s *stubRunner) ProcessDue(ctx context.Context, asOf time.Time, actor int64) (assets.BatchResult, error) {
	s.asOf = asOf
	s.actor = actor
	return s.result, s.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDepreciationHandlerPassesPayload(t *testing.T) {
	runner := &stubRunner{result: assets.BatchResult{Processed: 3, TotalAmount: 300}}
	handler := NewDepreciationHandler(runner, discardLogger())

	task, err := NewDepreciationTask(DepreciationPayload{AsOf: "2025-04-01", ActorID: 7})
	require.NoError(t, err)

	require.NoError(t, handler(context.Background(), task))
	require.Equal(t, time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), runner.asOf)
	require.Equal(t, int64(7), runner.actor)
}

func TestDepreciationHandlerSkipsWhenRunInProgress(t *testing.T) {
	runner := &stubRunner{err: assets.ErrRunInProgress}
	handler := NewDepreciationHandler(runner, discardLogger())

	task, err := NewDepreciationTask(DepreciationPayload{})
	require.NoError(t, err)

	// The batch lock being held is not a retryable failure.
	require.NoError(t, handler(context.Background(), task))
}

func TestDepreciationHandlerRejectsBadPayload(t *testing.T) {
	runner := &stubRunner{}
	handler := NewDepreciationHandler(runner, discardLogger())

	task := asynq.NewTask(TaskDepreciationProcessDue, []byte("{not json"))
	err := handler(context.Background(), task)
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestDepreciationPayloadDefaultDate(t *testing.T) {
	var payload DepreciationPayload
	require.NoError(t, json.Unmarshal([]byte(`{}`), &payload))
	require.WithinDuration(t, time.Now(), payload.AsOfDate(), time.Minute)
}

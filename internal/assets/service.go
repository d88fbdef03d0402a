package assets

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Poster posts journal entries produced by the depreciation batch.
type Poster interface {
	Post(ctx context.Context, input ledger.EntryInput) (ledger.JournalEntry, error)
}

// MetricsPort counts posted depreciation rows.
type MetricsPort interface {
	CountDepreciationRows(n int)
}

// AuditPort records asset lifecycle actions after they succeed.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// DepreciationDocumentType is the sequence key for depreciation entries.
const DepreciationDocumentType = "DEP"

const runLockTTL = 5 * time.Minute

// Service manages fixed assets and drives the depreciation batch.
type Service struct {
	repo    Repository
	poster  Poster
	locker  *redislock.Client
	audit   AuditPort
	metrics MetricsPort
	now     func() time.Time
}

// NewService wires the asset service. locker may be nil, in which case
// ProcessDue runs without cross-process serialization (tests, CLI against
// a dev database).
func NewService(repo Repository, poster Poster, rdb *redis.Client, audit AuditPort, metrics MetricsPort) *Service {
	var locker *redislock.Client
	if rdb != nil {
		locker = redislock.New(rdb)
	}
	return &Service{repo: repo, poster: poster, locker: locker, audit: audit, metrics: metrics, now: time.Now}
}

// WithNow overrides the clock. Test hook.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Create registers a new asset in DRAFT status.
func (s *Service) Create(ctx context.Context, in CreateInput, actor int64) (FixedAsset, error) {
	if err := in.Validate(); err != nil {
		return FixedAsset{}, err
	}
	asset, err := s.repo.InsertAsset(ctx, in)
	if err != nil {
		return FixedAsset{}, err
	}
	s.recordAudit(ctx, actor, "asset.create", asset.ID, map[string]any{"code": asset.Code})
	return asset, nil
}

// Get returns one asset.
func (s *Service) Get(ctx context.Context, id int64) (FixedAsset, error) {
	return s.repo.GetAsset(ctx, id)
}

// List returns all assets ordered by code.
func (s *Service) List(ctx context.Context) ([]FixedAsset, error) {
	return s.repo.ListAssets(ctx)
}

// GenerateSchedule (re)builds the asset's monthly depreciation plan.
// Rows already posted to the ledger are kept; only pending rows are
// replaced. Returns the number of rows written.
func (s *Service) GenerateSchedule(ctx context.Context, assetID, actor int64) (int, error) {
	asset, err := s.repo.GetAsset(ctx, assetID)
	if err != nil {
		return 0, err
	}
	if asset.Status == AssetStatusRetired {
		return 0, fmt.Errorf("assets: asset %s is retired", asset.Code)
	}
	if _, err := s.repo.DeletePendingRows(ctx, assetID); err != nil {
		return 0, err
	}
	rows := buildSchedule(asset)
	if err := s.repo.InsertScheduleRows(ctx, rows); err != nil {
		return 0, err
	}
	if asset.Status == AssetStatusDraft {
		if err := s.repo.SetAssetStatus(ctx, assetID, AssetStatusActive); err != nil {
			return 0, err
		}
	}
	s.recordAudit(ctx, actor, "asset.schedule.generate", assetID, map[string]any{"rows": len(rows)})
	return len(rows), nil
}

// Schedule returns the asset's full schedule, posted rows included.
func (s *Service) Schedule(ctx context.Context, assetID int64) ([]DepreciationSchedule, error) {
	if _, err := s.repo.GetAsset(ctx, assetID); err != nil {
		return nil, err
	}
	return s.repo.ListSchedule(ctx, assetID)
}

// ProcessDue posts every pending schedule row dated on or before asOf.
// Each row posts independently: a failure is collected into the result
// and the batch keeps going. The run is serialized across processes via
// a redis lock so two workers never double-post the same rows.
func (s *Service) ProcessDue(ctx context.Context, asOf time.Time, actor int64) (BatchResult, error) {
	if s.locker != nil {
		lock, err := s.locker.Obtain(ctx, shared.DepreciationRunLockKey, runLockTTL, nil)
		if err != nil {
			if errors.Is(err, redislock.ErrNotObtained) {
				return BatchResult{}, ErrRunInProgress
			}
			return BatchResult{}, err
		}
		defer func() { _ = lock.Release(context.WithoutCancel(ctx)) }()
	}

	due, err := s.repo.ListDue(ctx, asOf)
	if err != nil {
		return BatchResult{}, err
	}

	var result BatchResult
	for _, row := range due {
		if err := s.postRow(ctx, row, actor); err != nil {
			result.Errors = append(result.Errors, BatchError{
				ScheduleID: row.Schedule.ID,
				AssetCode:  row.AssetCode,
				Message:    err.Error(),
			})
			_ = s.repo.RecordRowError(ctx, row.Schedule.ID, err.Error())
			continue
		}
		result.Processed++
		result.TotalAmount += row.Schedule.Amount
	}
	if s.metrics != nil && result.Processed > 0 {
		s.metrics.CountDepreciationRows(result.Processed)
	}
	s.recordAudit(ctx, actor, "depreciation.run", 0, map[string]any{
		"as_of":     asOf.Format("2006-01-02"),
		"processed": result.Processed,
		"failed":    len(result.Errors),
	})
	return result, nil
}

func (s *Service) postRow(ctx context.Context, row DueRow, actor int64) error {
	entry, err := s.poster.Post(ctx, ledger.EntryInput{
		Date:           row.Schedule.ScheduleDate,
		Description:    fmt.Sprintf("Depreciation %s %s", row.AssetCode, row.Schedule.ScheduleDate.Format("2006-01")),
		DocumentType:   DepreciationDocumentType,
		PostedBy:       actor,
		IsDepreciation: true,
		Lines: []ledger.LineInput{
			{AccountID: row.ExpenseAccountID, Debit: row.Schedule.Amount, Description: "Depreciation expense"},
			{AccountID: row.AccumulatedAccountID, Credit: row.Schedule.Amount, Description: "Accumulated depreciation"},
		},
	})
	if err != nil {
		return err
	}
	// The entry commits in the poster's transaction; a crash before
	// MarkPosted leaves the row PENDING with its entry already in the
	// ledger, and the next run would post that period again.
	return s.repo.MarkPosted(ctx, row.Schedule.ID, entry.ID)
}

func (s *Service) recordAudit(ctx context.Context, actor int64, action string, assetID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor,
		Action:   action,
		Entity:   "fixed_asset",
		EntityID: fmt.Sprintf("%d", assetID),
		Meta:     meta,
		At:       s.now(),
	})
}

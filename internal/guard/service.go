package guard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// MetricsPort counts guard rejections.
type MetricsPort interface {
	CountGuardRejection(entity, rule string)
}

// AuditPort records guard decisions.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service dispatches delete attempts to the registered guard for the
// entity kind, logs allowed deletions, and replays them on recovery.
type Service struct {
	repo     Repository
	registry map[string]Guard
	audit    AuditPort
	metrics  MetricsPort
	now      func() time.Time
}

// NewService constructs the guard service with the supplied guards.
func NewService(repo Repository, audit AuditPort, metrics MetricsPort, guards ...Guard) *Service {
	registry := make(map[string]Guard, len(guards))
	for _, g := range guards {
		registry[g.Entity()] = g
	}
	return &Service{repo: repo, registry: registry, audit: audit, metrics: metrics, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Check runs the entity's checklist without mutating anything. A nil
// violation with allowed=true means the delete may proceed.
func (s *Service) Check(ctx context.Context, entity string, recordID int64) (bool, *Violation, error) {
	g, ok := s.registry[entity]
	if !ok {
		return false, nil, fmt.Errorf("%w: %s", ErrUnknownEntity, entity)
	}
	err := g.CheckDelete(ctx, recordID)
	if err == nil {
		return true, nil, nil
	}
	var v *Violation
	if errors.As(err, &v) {
		if s.metrics != nil {
			s.metrics.CountGuardRejection(v.Entity, v.Rule)
		}
		return false, v, nil
	}
	return false, nil, err
}

// AuthorizeDelete runs the checklist and, when it passes, captures the row
// into the deletion log and deletes it.
func (s *Service) AuthorizeDelete(ctx context.Context, entity string, recordID, actor int64) (DeletionLogEntry, error) {
	allowed, v, err := s.Check(ctx, entity, recordID)
	if err != nil {
		return DeletionLogEntry{}, err
	}
	if !allowed {
		return DeletionLogEntry{}, v
	}
	entry, err := s.repo.DeleteWithSnapshot(ctx, tableFor[entity], recordID, actor)
	if err != nil {
		return DeletionLogEntry{}, err
	}
	s.recordAudit(ctx, actor, "guard.delete", entry, nil)
	return entry, nil
}

// Recover re-inserts the captured snapshot and marks the log entry
// consumed.
func (s *Service) Recover(ctx context.Context, logID uuid.UUID, actor int64) (DeletionLogEntry, error) {
	entry, err := s.repo.Recover(ctx, logID)
	if err != nil {
		return DeletionLogEntry{}, err
	}
	s.recordAudit(ctx, actor, "guard.recover", entry, map[string]any{"log_id": logID.String()})
	return entry, nil
}

// ListLog returns recent deletion log entries.
func (s *Service) ListLog(ctx context.Context, limit int) ([]DeletionLogEntry, error) {
	return s.repo.ListLog(ctx, limit)
}

func (s *Service) recordAudit(ctx context.Context, actor int64, action string, entry DeletionLogEntry, extra map[string]any) {
	if s.audit == nil {
		return
	}
	meta := map[string]any{"table": entry.TableName, "record_id": entry.RecordID}
	for k, v := range extra {
		meta[k] = v
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor,
		Action:   action,
		Entity:   entry.TableName,
		EntityID: fmt.Sprintf("%d", entry.RecordID),
		Meta:     meta,
		At:       s.now(),
	})
}

package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// AuditPort records registry events for compliance.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates chart-of-accounts maintenance. Balances are owned by
// the posting engine; this service never writes them.
type Service struct {
	repo  Repository
	audit AuditPort
	now   func() time.Time
}

// NewService constructs the registry service.
func NewService(repo Repository, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Create adds an account under the parent implied by its code. Root codes
// become system accounts.
func (s *Service) Create(ctx context.Context, in CreateInput, actor int64) (Account, error) {
	if err := in.Validate(); err != nil {
		return Account{}, err
	}
	in.Code = strings.TrimSpace(in.Code)
	var parentID *int64
	if parent := ParentCode(in.Code); parent != "" {
		p, err := s.repo.GetByCode(ctx, parent)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return Account{}, fmt.Errorf("%w: %s", ErrParentNotFound, parent)
			}
			return Account{}, err
		}
		parentID = &p.ID
	}
	account, err := s.repo.Insert(ctx, in, parentID, IsRootCode(in.Code))
	if err != nil {
		return Account{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actor,
			Action:   "account.create",
			Entity:   "account",
			EntityID: fmt.Sprintf("%d", account.ID),
			Meta:     map[string]any{"code": account.Code, "type": string(account.Type)},
			At:       s.now(),
		})
	}
	return account, nil
}

// Get returns the account by id.
func (s *Service) Get(ctx context.Context, id int64) (Account, error) {
	return s.repo.Get(ctx, id)
}

// GetByCode returns the account by its hierarchical code.
func (s *Service) GetByCode(ctx context.Context, code string) (Account, error) {
	return s.repo.GetByCode(ctx, code)
}

// List returns accounts ordered by code.
func (s *Service) List(ctx context.Context, activeOnly bool) ([]Account, error) {
	return s.repo.List(ctx, activeOnly)
}

// Deactivate retires an account without destroying it. System accounts
// cannot be deactivated.
func (s *Service) Deactivate(ctx context.Context, id int64, actor int64) error {
	account, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if account.IsSystem {
		return ErrSystemAccount
	}
	if err := s.repo.SetActive(ctx, id, false); err != nil {
		return err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actor,
			Action:   "account.deactivate",
			Entity:   "account",
			EntityID: fmt.Sprintf("%d", id),
			Meta:     map[string]any{"code": account.Code},
			At:       s.now(),
		})
	}
	return nil
}

// EnsureAccount returns the account with the given code, creating it when
// absent. Used for system-managed accounts such as the opening offset.
func (s *Service) EnsureAccount(ctx context.Context, code, name string, accType AccountType, actor int64) (Account, error) {
	account, err := s.repo.GetByCode(ctx, code)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Account{}, err
	}
	account, err = s.Create(ctx, CreateInput{Code: code, Name: name, Type: accType}, actor)
	if err != nil {
		if errors.Is(err, ErrCodeTaken) {
			// Lost a create race; the row exists now.
			return s.repo.GetByCode(ctx, code)
		}
		return Account{}, err
	}
	return account, nil
}

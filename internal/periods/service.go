package periods

import (
	"context"
	"errors"
	"time"
)

// Service answers whether a date may still receive postings. Periods are
// opt-in: a date no period covers posts freely.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// EnsureOpenForPosting returns ErrClosed when the date falls inside a
// closed or archived period.
func (s *Service) EnsureOpenForPosting(ctx context.Context, date time.Time) error {
	period, err := s.repo.FindByDate(ctx, date)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	if period.Status != PeriodStatusOpen {
		return ErrClosed
	}
	return nil
}

package sequence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Service hands out gap-free document numbers scoped by fiscal year.
type Service struct {
	repo Repository
}

// NewService constructs the sequencer.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// NextNumber allocates the next number for the document type at the given
// date and formats it with the sequence's pattern.
//
// Allocation commits independently of the caller's transaction: when a
// posting fails after its number was allocated, the counter keeps the
// increment. A gap in the series is acceptable; a duplicate never is.
func (s *Service) NextNumber(ctx context.Context, documentType string, date time.Time) (string, error) {
	documentType = strings.TrimSpace(documentType)
	if documentType == "" {
		return "", errors.New("sequence: document type required")
	}
	fiscalYear := date.Year()

	seq, err := s.repo.Allocate(ctx, documentType, fiscalYear)
	if errors.Is(err, ErrNotConfigured) {
		if createErr := s.repo.EnsureSequence(ctx, documentType, fiscalYear); createErr != nil {
			return "", fmt.Errorf("%w: auto-create failed: %v", ErrNotConfigured, createErr)
		}
		seq, err = s.repo.Allocate(ctx, documentType, fiscalYear)
	}
	if err != nil {
		return "", err
	}
	return Format(seq.FormatPattern, seq.Prefix, seq.FiscalYear, seq.CurrentNumber), nil
}

// List returns all configured sequences.
func (s *Service) List(ctx context.Context) ([]DocumentSequence, error) {
	return s.repo.List(ctx)
}

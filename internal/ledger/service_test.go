package ledger

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/accounts"
	"github.com/meridian-erp/meridian-erp/internal/periods"
)

type memoryRepo struct {
	accounts   map[int64]accounts.Account
	entries    map[int64]*JournalEntry
	nextEntry  int64
	nextLine   int64
	hasOpening bool
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo(accs ...accounts.Account) *memoryRepo {
	repo := &memoryRepo{
		accounts: make(map[int64]accounts.Account),
		entries:  make(map[int64]*JournalEntry),
	}
	for _, acc := range accs {
		repo.accounts[acc.ID] = acc
	}
	return repo
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) GetEntryWithLines(ctx context.Context, entryID int64) (JournalEntry, error) {
	entry, ok := r.entries[entryID]
	if !ok {
		return JournalEntry{}, ErrEntryNotFound
	}
	return *entry, nil
}

func (r *memoryRepo) ListEntries(ctx context.Context) ([]JournalEntry, error) {
	out := make([]JournalEntry, 0, len(r.entries))
	for _, entry := range r.entries {
		out = append(out, *entry)
	}
	return out, nil
}

func (tx *memoryTx) GetAccountForUpdate(ctx context.Context, accountID int64) (accounts.Account, error) {
	acc, ok := tx.repo.accounts[accountID]
	if !ok {
		return accounts.Account{}, ErrAccountNotFound
	}
	return acc, nil
}

func (tx *memoryTx) InsertEntry(ctx context.Context, in EntryInput, entryNumber string, reversalOf *int64) (JournalEntry, error) {
	if in.IsOpening && tx.repo.hasOpening {
		return JournalEntry{}, ErrOpeningEntryExists
	}
	tx.repo.nextEntry++
	debit, credit := in.Totals()
	entry := &JournalEntry{
		ID:             tx.repo.nextEntry,
		EntryNumber:    entryNumber,
		DocumentType:   in.DocumentType,
		Date:           in.Date,
		Description:    in.Description,
		Status:         StatusPosted,
		TotalDebit:     debit,
		TotalCredit:    credit,
		IsOpening:      in.IsOpening,
		IsDepreciation: in.IsDepreciation,
		PostedBy:       in.PostedBy,
		FiscalYear:     in.Date.Year(),
		ReversalOfID:   reversalOf,
	}
	tx.repo.entries[entry.ID] = entry
	if in.IsOpening {
		tx.repo.hasOpening = true
	}
	return *entry, nil
}

func (tx *memoryTx) InsertLines(ctx context.Context, entryID int64, lines []LineInput) ([]JournalEntryLine, error) {
	entry := tx.repo.entries[entryID]
	out := make([]JournalEntryLine, 0, len(lines))
	for _, line := range lines {
		tx.repo.nextLine++
		inserted := JournalEntryLine{
			ID:          tx.repo.nextLine,
			EntryID:     entryID,
			AccountID:   line.AccountID,
			Debit:       line.Debit,
			Credit:      line.Credit,
			Description: line.Description,
		}
		entry.Lines = append(entry.Lines, inserted)
		out = append(out, inserted)
	}
	return out, nil
}

func (tx *memoryTx) ApplyBalanceDelta(ctx context.Context, accountID int64, delta float64) error {
	acc, ok := tx.repo.accounts[accountID]
	if !ok {
		return ErrAccountNotFound
	}
	acc.Balance += delta
	tx.repo.accounts[accountID] = acc
	return nil
}

func (tx *memoryTx) GetEntryWithLinesForUpdate(ctx context.Context, entryID int64) (JournalEntry, error) {
	return tx.repo.GetEntryWithLines(ctx, entryID)
}

func (tx *memoryTx) MarkReversed(ctx context.Context, entryID int64, reason string) error {
	entry, ok := tx.repo.entries[entryID]
	if !ok || entry.Status != StatusPosted {
		return ErrInvalidStatus
	}
	entry.Status = StatusReversed
	entry.ReversalReason = &reason
	return nil
}

func (tx *memoryTx) OpeningEntryExists(ctx context.Context) (bool, error) {
	return tx.repo.hasOpening, nil
}

type stubNumbers struct {
	calls int
}

func (n *stubNumbers) NextNumber(ctx context.Context, documentType string, date time.Time) (string, error) {
	n.calls++
	return fmt.Sprintf("%s-%d-%06d", documentType, date.Year(), n.calls), nil
}

type closedPeriods struct{}

func (closedPeriods) EnsureOpenForPosting(ctx context.Context, date time.Time) error {
	return periods.ErrClosed
}

// togglePeriods stays open until flipped, so a period can close between
// posting and reversal.
type togglePeriods struct{ closed bool }

func (g *togglePeriods) EnsureOpenForPosting(ctx context.Context, date time.Time) error {
	if g.closed {
		return periods.ErrClosed
	}
	return nil
}

func cashAccount() accounts.Account {
	return accounts.Account{ID: 1, Code: "1.1", Name: "Cash", Type: accounts.AccountTypeAsset, IsActive: true}
}

func revenueAccount() accounts.Account {
	return accounts.Account{ID: 2, Code: "4.1", Name: "Sales", Type: accounts.AccountTypeRevenue, IsActive: true}
}

func entryDate() time.Time {
	return time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)
}

func TestPostBalancedEntry(t *testing.T) {
	repo := newMemoryRepo(cashAccount(), revenueAccount())
	svc := NewService(repo, &stubNumbers{}, nil, nil)
	ctx := context.Background()

	entry, err := svc.Post(ctx, EntryInput{
		Date:        entryDate(),
		Description: "Cash sale",
		PostedBy:    7,
		Lines: []LineInput{
			{AccountID: 1, Debit: 150},
			{AccountID: 2, Credit: 150},
		},
	})
	require.NoError(t, err)
	require.Equal(t, StatusPosted, entry.Status)
	require.Equal(t, "JE-2025-000001", entry.EntryNumber)
	require.Equal(t, 2025, entry.FiscalYear)
	require.InDelta(t, 150, entry.TotalDebit, 0.001)
	require.InDelta(t, 150, entry.TotalCredit, 0.001)
	require.Len(t, entry.Lines, 2)

	require.InDelta(t, 150, repo.accounts[1].Balance, 0.001)
	require.InDelta(t, -150, repo.accounts[2].Balance, 0.001)
}

func TestPostUnbalancedEntryRejectedBeforeWrites(t *testing.T) {
	repo := newMemoryRepo(cashAccount(), revenueAccount())
	numbers := &stubNumbers{}
	svc := NewService(repo, numbers, nil, nil)

	_, err := svc.Post(context.Background(), EntryInput{
		Date:        entryDate(),
		Description: "Broken",
		Lines: []LineInput{
			{AccountID: 1, Debit: 100},
			{AccountID: 2, Credit: 99.90},
		},
	})
	require.ErrorIs(t, err, ErrUnbalanced)
	require.Zero(t, numbers.calls)
	require.Empty(t, repo.entries)
	require.Zero(t, repo.accounts[1].Balance)
}

func TestPostWithinTolerance(t *testing.T) {
	repo := newMemoryRepo(cashAccount(), revenueAccount())
	svc := NewService(repo, &stubNumbers{}, nil, nil)

	_, err := svc.Post(context.Background(), EntryInput{
		Date:        entryDate(),
		Description: "Rounding residue",
		Lines: []LineInput{
			{AccountID: 1, Debit: 100},
			{AccountID: 2, Credit: 99.99},
		},
	})
	require.NoError(t, err)
}

func TestPostInactiveAccountRejected(t *testing.T) {
	inactive := revenueAccount()
	inactive.IsActive = false
	repo := newMemoryRepo(cashAccount(), inactive)
	svc := NewService(repo, &stubNumbers{}, nil, nil)

	_, err := svc.Post(context.Background(), EntryInput{
		Date:        entryDate(),
		Description: "Sale to closed account",
		Lines: []LineInput{
			{AccountID: 1, Debit: 50},
			{AccountID: 2, Credit: 50},
		},
	})
	require.ErrorIs(t, err, ErrAccountInactive)
	require.Empty(t, repo.entries)
}

func TestPostUnknownAccountRejected(t *testing.T) {
	repo := newMemoryRepo(cashAccount())
	svc := NewService(repo, &stubNumbers{}, nil, nil)

	_, err := svc.Post(context.Background(), EntryInput{
		Date:        entryDate(),
		Description: "Ghost account",
		Lines: []LineInput{
			{AccountID: 1, Debit: 50},
			{AccountID: 99, Credit: 50},
		},
	})
	require.ErrorIs(t, err, ErrAccountNotFound)
}

func TestPostClosedPeriodRejected(t *testing.T) {
	repo := newMemoryRepo(cashAccount(), revenueAccount())
	svc := NewService(repo, &stubNumbers{}, closedPeriods{}, nil)

	_, err := svc.Post(context.Background(), EntryInput{
		Date:        entryDate(),
		Description: "Late posting",
		Lines: []LineInput{
			{AccountID: 1, Debit: 10},
			{AccountID: 2, Credit: 10},
		},
	})
	require.ErrorIs(t, err, ErrPeriodClosed)
}

func TestSecondOpeningEntryRejected(t *testing.T) {
	repo := newMemoryRepo(cashAccount(), revenueAccount())
	svc := NewService(repo, &stubNumbers{}, nil, nil)
	ctx := context.Background()

	input := EntryInput{
		Date:        entryDate(),
		Description: "Opening",
		IsOpening:   true,
		Lines: []LineInput{
			{AccountID: 1, Debit: 500},
			{AccountID: 2, Credit: 500},
		},
	}
	_, err := svc.Post(ctx, input)
	require.NoError(t, err)

	_, err = svc.Post(ctx, input)
	require.ErrorIs(t, err, ErrOpeningEntryExists)
}

func TestReverseMirrorsLinesAndRestoresBalances(t *testing.T) {
	repo := newMemoryRepo(cashAccount(), revenueAccount())
	svc := NewService(repo, &stubNumbers{}, nil, nil)
	ctx := context.Background()

	entry, err := svc.Post(ctx, EntryInput{
		Date:        entryDate(),
		Description: "Cash sale",
		Lines: []LineInput{
			{AccountID: 1, Debit: 200},
			{AccountID: 2, Credit: 200},
		},
	})
	require.NoError(t, err)

	reversal, err := svc.Reverse(ctx, ReverseInput{EntryID: entry.ID, Reason: "entered twice", ActorID: 3})
	require.NoError(t, err)
	require.Equal(t, StatusPosted, reversal.Status)
	require.NotNil(t, reversal.ReversalOfID)
	require.Equal(t, entry.ID, *reversal.ReversalOfID)
	require.Contains(t, reversal.Description, entry.EntryNumber)

	require.InDelta(t, 200, reversal.Lines[0].Credit, 0.001)
	require.InDelta(t, 200, reversal.Lines[1].Debit, 0.001)

	require.Zero(t, repo.accounts[1].Balance)
	require.Zero(t, repo.accounts[2].Balance)

	original, err := svc.GetEntry(ctx, entry.ID)
	require.NoError(t, err)
	require.Equal(t, StatusReversed, original.Status)
	require.NotNil(t, original.ReversalReason)
	require.Equal(t, "entered twice", *original.ReversalReason)
}

func TestReverseTwiceRejected(t *testing.T) {
	repo := newMemoryRepo(cashAccount(), revenueAccount())
	svc := NewService(repo, &stubNumbers{}, nil, nil)
	ctx := context.Background()

	entry, err := svc.Post(ctx, EntryInput{
		Date:        entryDate(),
		Description: "Cash sale",
		Lines: []LineInput{
			{AccountID: 1, Debit: 75},
			{AccountID: 2, Credit: 75},
		},
	})
	require.NoError(t, err)

	_, err = svc.Reverse(ctx, ReverseInput{EntryID: entry.ID, Reason: "first", ActorID: 1})
	require.NoError(t, err)

	_, err = svc.Reverse(ctx, ReverseInput{EntryID: entry.ID, Reason: "second", ActorID: 1})
	require.ErrorIs(t, err, ErrAlreadyReversed)
}

func TestReverseIntoClosedPeriodRejected(t *testing.T) {
	repo := newMemoryRepo(cashAccount(), revenueAccount())
	guard := &togglePeriods{}
	svc := NewService(repo, &stubNumbers{}, guard, nil)
	ctx := context.Background()

	entry, err := svc.Post(ctx, EntryInput{
		Date:        entryDate(),
		Description: "Cash sale",
		Lines: []LineInput{
			{AccountID: 1, Debit: 60},
			{AccountID: 2, Credit: 60},
		},
	})
	require.NoError(t, err)

	guard.closed = true
	_, err = svc.Reverse(ctx, ReverseInput{EntryID: entry.ID, Reason: "late fix", ActorID: 1})
	require.ErrorIs(t, err, ErrPeriodClosed)

	current, err := svc.GetEntry(ctx, entry.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPosted, current.Status)
}

func TestReverseOfReversalRejected(t *testing.T) {
	repo := newMemoryRepo(cashAccount(), revenueAccount())
	svc := NewService(repo, &stubNumbers{}, nil, nil)
	ctx := context.Background()

	entry, err := svc.Post(ctx, EntryInput{
		Date:        entryDate(),
		Description: "Cash sale",
		Lines: []LineInput{
			{AccountID: 1, Debit: 40},
			{AccountID: 2, Credit: 40},
		},
	})
	require.NoError(t, err)

	reversal, err := svc.Reverse(ctx, ReverseInput{EntryID: entry.ID, Reason: "entered twice", ActorID: 1})
	require.NoError(t, err)

	_, err = svc.Reverse(ctx, ReverseInput{EntryID: reversal.ID, Reason: "undo the undo", ActorID: 1})
	require.ErrorIs(t, err, ErrInvalidStatus)
}

func TestReverseUnknownEntry(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, &stubNumbers{}, nil, nil)

	_, err := svc.Reverse(context.Background(), ReverseInput{EntryID: 42, Reason: "missing", ActorID: 1})
	require.ErrorIs(t, err, ErrEntryNotFound)
}

func TestValidateTooFewLines(t *testing.T) {
	err := EntryInput{
		Date:        entryDate(),
		Description: "One leg",
		Lines:       []LineInput{{AccountID: 1, Debit: 10}},
	}.Validate()
	require.ErrorIs(t, err, ErrTooFewLines)
}

func TestValidateTwoSidedLineRejected(t *testing.T) {
	err := EntryInput{
		Date:        entryDate(),
		Description: "Both sides",
		Lines: []LineInput{
			{AccountID: 1, Debit: 10, Credit: 10},
			{AccountID: 2, Credit: 10},
		},
	}.Validate()
	require.Error(t, err)
}

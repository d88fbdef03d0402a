package opening

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/accounts"
	"github.com/meridian-erp/meridian-erp/internal/ledger"
)

type stubAccounts struct {
	list    []accounts.Account
	ensured []string
}

func (s *stubAccounts) List(ctx context.Context, activeOnly bool) ([]accounts.Account, error) {
	return s.list, nil
}

func (s *stubAccounts) EnsureAccount(ctx context.Context, code, name string, accType accounts.AccountType, actor int64) (accounts.Account, error) {
	s.ensured = append(s.ensured, code)
	return accounts.Account{ID: 999, Code: code, Name: name, Type: accType, IsActive: true}, nil
}

type capturePoster struct {
	input  ledger.EntryInput
	called bool
	err    error
}

func (p *capturePoster) Post(ctx context.Context, input ledger.EntryInput) (ledger.JournalEntry, error) {
	p.input = input
	p.called = true
	if p.err != nil {
		return ledger.JournalEntry{}, p.err
	}
	debit, credit := input.Totals()
	return ledger.JournalEntry{
		ID:          1,
		EntryNumber: "OPN-2025-000001",
		Status:      ledger.StatusPosted,
		TotalDebit:  debit,
		TotalCredit: credit,
		IsOpening:   input.IsOpening,
	}, nil
}

func acc(id int64, code string, accType accounts.AccountType, balance float64) accounts.Account {
	return accounts.Account{ID: id, Code: code, Type: accType, Balance: balance, IsActive: true}
}

func openingDate() time.Time {
	return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
}

func lineFor(t *testing.T, input ledger.EntryInput, accountID int64) ledger.LineInput {
	t.Helper()
	for _, line := range input.Lines {
		if line.AccountID == accountID {
			return line
		}
	}
	t.Fatalf("no line for account %d", accountID)
	return ledger.LineInput{}
}

func TestCreateOpeningEntrySidesByAccountType(t *testing.T) {
	accs := &stubAccounts{list: []accounts.Account{
		acc(1, "1.1", accounts.AccountTypeAsset, 5000),     // debit
		acc(2, "2.1", accounts.AccountTypeLiability, 2000), // credit
		acc(3, "3.1", accounts.AccountTypeEquity, 3000),    // credit
	}}
	poster := &capturePoster{}
	svc := NewService(accs, poster, "3.99")

	entry, err := svc.CreateOpeningEntry(context.Background(), openingDate(), 7)
	require.NoError(t, err)
	require.True(t, poster.input.IsOpening)
	require.Equal(t, DocumentType, poster.input.DocumentType)
	require.Len(t, poster.input.Lines, 3)

	require.InDelta(t, 5000, lineFor(t, poster.input, 1).Debit, 0.001)
	require.InDelta(t, 2000, lineFor(t, poster.input, 2).Credit, 0.001)
	require.InDelta(t, 3000, lineFor(t, poster.input, 3).Credit, 0.001)

	// Already balanced: no offset account is touched.
	require.Empty(t, accs.ensured)
	require.InDelta(t, entry.TotalDebit, entry.TotalCredit, 0.01)
}

func TestCreateOpeningEntrySignFlip(t *testing.T) {
	// A negative asset balance moves to the credit side, a negative
	// liability balance to the debit side.
	accs := &stubAccounts{list: []accounts.Account{
		acc(1, "1.1", accounts.AccountTypeAsset, -400),
		acc(2, "2.1", accounts.AccountTypeLiability, -400),
	}}
	poster := &capturePoster{}
	svc := NewService(accs, poster, "3.99")

	_, err := svc.CreateOpeningEntry(context.Background(), openingDate(), 7)
	require.NoError(t, err)

	require.InDelta(t, 400, lineFor(t, poster.input, 1).Credit, 0.001)
	require.InDelta(t, 400, lineFor(t, poster.input, 2).Debit, 0.001)
}

func TestCreateOpeningEntryInsertsPlugLine(t *testing.T) {
	accs := &stubAccounts{list: []accounts.Account{
		acc(1, "1.1", accounts.AccountTypeAsset, 5000),
		acc(2, "2.1", accounts.AccountTypeLiability, 2000),
	}}
	poster := &capturePoster{}
	svc := NewService(accs, poster, "3.99")

	_, err := svc.CreateOpeningEntry(context.Background(), openingDate(), 7)
	require.NoError(t, err)
	require.Equal(t, []string{"3.99"}, accs.ensured)
	require.Len(t, poster.input.Lines, 3)

	plug := lineFor(t, poster.input, 999)
	require.InDelta(t, 3000, plug.Credit, 0.001)
	require.Contains(t, plug.Description, "موازنة افتتاحية")

	debit, credit := poster.input.Totals()
	require.InDelta(t, debit, credit, 0.01)
}

func TestCreateOpeningEntryPlugOnDebitSide(t *testing.T) {
	accs := &stubAccounts{list: []accounts.Account{
		acc(2, "2.1", accounts.AccountTypeLiability, 1500),
	}}
	poster := &capturePoster{}
	svc := NewService(accs, poster, "3.99")

	_, err := svc.CreateOpeningEntry(context.Background(), openingDate(), 7)
	require.NoError(t, err)

	plug := lineFor(t, poster.input, 999)
	require.InDelta(t, 1500, plug.Debit, 0.001)
}

func TestCreateOpeningEntrySkipsNearZeroBalances(t *testing.T) {
	accs := &stubAccounts{list: []accounts.Account{
		acc(1, "1.1", accounts.AccountTypeAsset, 0.01),
		acc(2, "1.2", accounts.AccountTypeAsset, 100),
		acc(3, "3.1", accounts.AccountTypeEquity, 100),
	}}
	poster := &capturePoster{}
	svc := NewService(accs, poster, "3.99")

	_, err := svc.CreateOpeningEntry(context.Background(), openingDate(), 7)
	require.NoError(t, err)
	require.Len(t, poster.input.Lines, 2)
}

func TestCreateOpeningEntrySkipsPlugWithinOneCent(t *testing.T) {
	// 100 - 99.99 leaves a float64 residue just over 0.01; the composer
	// must treat it as balanced and not manufacture a plug line.
	accs := &stubAccounts{list: []accounts.Account{
		acc(1, "1.1", accounts.AccountTypeAsset, 100),
		acc(2, "2.1", accounts.AccountTypeLiability, 99.99),
	}}
	poster := &capturePoster{}
	svc := NewService(accs, poster, "3.99")

	_, err := svc.CreateOpeningEntry(context.Background(), openingDate(), 7)
	require.NoError(t, err)
	require.Len(t, poster.input.Lines, 2)
	require.Empty(t, accs.ensured)
}

func TestCreateOpeningEntryPropagatesExistsError(t *testing.T) {
	accs := &stubAccounts{list: []accounts.Account{
		acc(1, "1.1", accounts.AccountTypeAsset, 100),
		acc(3, "3.1", accounts.AccountTypeEquity, 100),
	}}
	poster := &capturePoster{err: ledger.ErrOpeningEntryExists}
	svc := NewService(accs, poster, "3.99")

	_, err := svc.CreateOpeningEntry(context.Background(), openingDate(), 7)
	require.ErrorIs(t, err, ledger.ErrOpeningEntryExists)
}

package guard

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// stubFacts answers every fact interface from plain fields.
type stubFacts struct {
	accountCode    string
	accountBalance float64
	accountSystem  bool
	accountFound   bool
	ledgerLines    bool
	linkedParties  bool

	entryStatus   string
	entryOpening  bool
	entryDeprec   bool
	entryFound    bool
	entryInClosed bool

	invoiceStatus string
	invoicePaid   float64
	invoiceFound  bool
	invoiceLinked bool

	customerFound    bool
	customerInvoices bool
	customerActivity bool

	assetStatus  string
	assetFound   bool
	assetRows    bool
	assetHistory bool

	currencyCode  string
	currencyFound bool
	currencyRefd  bool
}

func (s *stubFacts) AccountRow(ctx context.Context, id int64) (string, float64, bool, bool, error) {
	return s.accountCode, s.accountBalance, s.accountSystem, s.accountFound, nil
}
func (s *stubFacts) AccountHasLedgerLines(ctx context.Context, id int64) (bool, error) {
	return s.ledgerLines, nil
}
func (s *stubFacts) AccountHasLinkedParties(ctx context.Context, id int64) (bool, error) {
	return s.linkedParties, nil
}
func (s *stubFacts) JournalEntryRow(ctx context.Context, id int64) (string, bool, bool, bool, error) {
	return s.entryStatus, s.entryOpening, s.entryDeprec, s.entryFound, nil
}
func (s *stubFacts) JournalEntryInClosedPeriod(ctx context.Context, id int64) (bool, error) {
	return s.entryInClosed, nil
}
func (s *stubFacts) InvoiceRow(ctx context.Context, id int64) (string, float64, bool, error) {
	return s.invoiceStatus, s.invoicePaid, s.invoiceFound, nil
}
func (s *stubFacts) InvoiceHasJournalEntry(ctx context.Context, id int64) (bool, error) {
	return s.invoiceLinked, nil
}
func (s *stubFacts) CustomerExists(ctx context.Context, id int64) (bool, error) {
	return s.customerFound, nil
}
func (s *stubFacts) CustomerHasInvoices(ctx context.Context, id int64) (bool, error) {
	return s.customerInvoices, nil
}
func (s *stubFacts) CustomerAccountHasActivity(ctx context.Context, id int64) (bool, error) {
	return s.customerActivity, nil
}
func (s *stubFacts) FixedAssetRow(ctx context.Context, id int64) (string, bool, error) {
	return s.assetStatus, s.assetFound, nil
}
func (s *stubFacts) FixedAssetHasScheduleRows(ctx context.Context, id int64) (bool, error) {
	return s.assetRows, nil
}
func (s *stubFacts) FixedAssetAccountsHaveHistory(ctx context.Context, id int64) (bool, error) {
	return s.assetHistory, nil
}
func (s *stubFacts) CurrencyRow(ctx context.Context, id int64) (string, bool, error) {
	return s.currencyCode, s.currencyFound, nil
}
func (s *stubFacts) CurrencyReferenced(ctx context.Context, code string) (bool, error) {
	return s.currencyRefd, nil
}

func requireViolation(t *testing.T, err error, rule string) {
	t.Helper()
	var v *Violation
	require.ErrorAs(t, err, &v)
	require.Equal(t, rule, v.Rule)
	require.NotEmpty(t, v.Message)
}

func TestAccountGuardChecklistOrder(t *testing.T) {
	ctx := context.Background()

	// Root accounts are rejected before anything else, even with a
	// clean balance and no history.
	facts := &stubFacts{accountCode: "1", accountFound: true}
	requireViolation(t, NewAccountGuard(facts).CheckDelete(ctx, 1), "system_account")

	facts = &stubFacts{accountCode: "1.5", accountFound: true, accountBalance: 10, ledgerLines: true}
	requireViolation(t, NewAccountGuard(facts).CheckDelete(ctx, 1), "nonzero_balance")

	facts = &stubFacts{accountCode: "1.5", accountFound: true, ledgerLines: true, linkedParties: true}
	requireViolation(t, NewAccountGuard(facts).CheckDelete(ctx, 1), "ledger_history")

	facts = &stubFacts{accountCode: "1.5", accountFound: true, linkedParties: true}
	requireViolation(t, NewAccountGuard(facts).CheckDelete(ctx, 1), "linked_parties")

	facts = &stubFacts{accountCode: "1.5", accountFound: true}
	require.NoError(t, NewAccountGuard(facts).CheckDelete(ctx, 1))

	facts = &stubFacts{}
	require.ErrorIs(t, NewAccountGuard(facts).CheckDelete(ctx, 1), ErrRecordNotFound)
}

func TestAccountGuardFlaggedSystemAccount(t *testing.T) {
	// A dotted code alone does not make an account deletable when the
	// row itself is flagged as a system account.
	facts := &stubFacts{accountCode: "1.5.9", accountFound: true, accountSystem: true}
	requireViolation(t, NewAccountGuard(facts).CheckDelete(context.Background(), 1), "system_account")
}

func TestAccountGuardBalanceTolerance(t *testing.T) {
	facts := &stubFacts{accountCode: "1.5", accountFound: true, accountBalance: 0.01}
	require.NoError(t, NewAccountGuard(facts).CheckDelete(context.Background(), 1))

	// float64 residue a hair over one cent still counts as zero.
	facts = &stubFacts{accountCode: "1.5", accountFound: true, accountBalance: 100 - 99.99}
	require.NoError(t, NewAccountGuard(facts).CheckDelete(context.Background(), 1))
}

func TestJournalEntryGuardChecklistOrder(t *testing.T) {
	ctx := context.Background()

	facts := &stubFacts{entryFound: true, entryStatus: "POSTED", entryOpening: true}
	requireViolation(t, NewJournalEntryGuard(facts).CheckDelete(ctx, 1), "posted")

	facts = &stubFacts{entryFound: true, entryStatus: "DRAFT", entryOpening: true}
	requireViolation(t, NewJournalEntryGuard(facts).CheckDelete(ctx, 1), "opening_entry")

	facts = &stubFacts{entryFound: true, entryStatus: "DRAFT", entryDeprec: true}
	requireViolation(t, NewJournalEntryGuard(facts).CheckDelete(ctx, 1), "depreciation_entry")

	facts = &stubFacts{entryFound: true, entryStatus: "DRAFT", entryInClosed: true}
	requireViolation(t, NewJournalEntryGuard(facts).CheckDelete(ctx, 1), "period_closed")

	facts = &stubFacts{entryFound: true, entryStatus: "DRAFT"}
	require.NoError(t, NewJournalEntryGuard(facts).CheckDelete(ctx, 1))
}

func TestJournalEntryGuardRejectsReversed(t *testing.T) {
	// A REVERSED entry was posted once; it stays in the ledger alongside
	// its mirror.
	facts := &stubFacts{entryFound: true, entryStatus: "REVERSED"}
	requireViolation(t, NewJournalEntryGuard(facts).CheckDelete(context.Background(), 1), "posted")
}

func TestInvoiceGuardChecklistOrder(t *testing.T) {
	ctx := context.Background()

	facts := &stubFacts{invoiceFound: true, invoiceStatus: "COMPLETED", invoicePaid: 50}
	requireViolation(t, NewInvoiceGuard(facts).CheckDelete(ctx, 1), "completed")

	facts = &stubFacts{invoiceFound: true, invoiceStatus: "DRAFT", invoicePaid: 50}
	requireViolation(t, NewInvoiceGuard(facts).CheckDelete(ctx, 1), "paid")

	facts = &stubFacts{invoiceFound: true, invoiceStatus: "DRAFT", invoiceLinked: true}
	requireViolation(t, NewInvoiceGuard(facts).CheckDelete(ctx, 1), "journal_linked")

	facts = &stubFacts{invoiceFound: true, invoiceStatus: "DRAFT"}
	require.NoError(t, NewInvoiceGuard(facts).CheckDelete(ctx, 1))
}

func TestCustomerGuardChecklistOrder(t *testing.T) {
	ctx := context.Background()

	facts := &stubFacts{customerFound: true, customerInvoices: true, customerActivity: true}
	requireViolation(t, NewCustomerGuard(facts).CheckDelete(ctx, 1), "has_invoices")

	facts = &stubFacts{customerFound: true, customerActivity: true}
	requireViolation(t, NewCustomerGuard(facts).CheckDelete(ctx, 1), "account_activity")

	facts = &stubFacts{customerFound: true}
	require.NoError(t, NewCustomerGuard(facts).CheckDelete(ctx, 1))
}

func TestFixedAssetGuardChecklistOrder(t *testing.T) {
	ctx := context.Background()

	facts := &stubFacts{assetFound: true, assetStatus: "ACTIVE", assetRows: true}
	requireViolation(t, NewFixedAssetGuard(facts).CheckDelete(ctx, 1), "active")

	facts = &stubFacts{assetFound: true, assetStatus: "DRAFT", assetRows: true}
	requireViolation(t, NewFixedAssetGuard(facts).CheckDelete(ctx, 1), "schedule_rows")

	facts = &stubFacts{assetFound: true, assetStatus: "RETIRED", assetHistory: true}
	requireViolation(t, NewFixedAssetGuard(facts).CheckDelete(ctx, 1), "ledger_history")

	facts = &stubFacts{assetFound: true, assetStatus: "DRAFT"}
	require.NoError(t, NewFixedAssetGuard(facts).CheckDelete(ctx, 1))
}

func TestCurrencyGuardChecklistOrder(t *testing.T) {
	ctx := context.Background()

	facts := &stubFacts{currencyFound: true, currencyCode: "usd"}
	requireViolation(t, NewCurrencyGuard(facts, "USD").CheckDelete(ctx, 1), "base_currency")

	facts = &stubFacts{currencyFound: true, currencyCode: "EUR", currencyRefd: true}
	requireViolation(t, NewCurrencyGuard(facts, "USD").CheckDelete(ctx, 1), "referenced")

	facts = &stubFacts{currencyFound: true, currencyCode: "EUR"}
	require.NoError(t, NewCurrencyGuard(facts, "USD").CheckDelete(ctx, 1))
}

// memoryLog is a Repository stub recording delete/recover calls.
type memoryLog struct {
	deleted   []DeletionLogEntry
	recovered map[uuid.UUID]bool
}

func newMemoryLog() *memoryLog {
	return &memoryLog{recovered: make(map[uuid.UUID]bool)}
}

func (m *memoryLog) DeleteWithSnapshot(ctx context.Context, table string, recordID, actor int64) (DeletionLogEntry, error) {
	entry := DeletionLogEntry{
		ID:            uuid.New(),
		TableName:     table,
		RecordID:      recordID,
		DeletedBy:     actor,
		IsRecoverable: true,
	}
	m.deleted = append(m.deleted, entry)
	return entry, nil
}

func (m *memoryLog) Recover(ctx context.Context, logID uuid.UUID) (DeletionLogEntry, error) {
	for i, entry := range m.deleted {
		if entry.ID == logID {
			if m.recovered[logID] {
				return DeletionLogEntry{}, ErrNotRecoverable
			}
			m.recovered[logID] = true
			m.deleted[i].IsRecoverable = false
			return m.deleted[i], nil
		}
	}
	return DeletionLogEntry{}, ErrNotRecoverable
}

func (m *memoryLog) ListLog(ctx context.Context, limit int) ([]DeletionLogEntry, error) {
	return m.deleted, nil
}

type countingMetrics struct {
	rejections map[string]int
}

func (c *countingMetrics) CountGuardRejection(entity, rule string) {
	if c.rejections == nil {
		c.rejections = make(map[string]int)
	}
	c.rejections[entity+"/"+rule]++
}

func TestServiceCheckUnknownEntity(t *testing.T) {
	svc := NewService(newMemoryLog(), nil, nil)
	_, _, err := svc.Check(context.Background(), "warehouse", 1)
	require.ErrorIs(t, err, ErrUnknownEntity)
}

func TestServiceAuthorizeDeleteLogsSnapshot(t *testing.T) {
	repo := newMemoryLog()
	facts := &stubFacts{accountCode: "1.5", accountFound: true}
	svc := NewService(repo, nil, nil, NewAccountGuard(facts))
	ctx := context.Background()

	entry, err := svc.AuthorizeDelete(ctx, EntityAccount, 12, 9)
	require.NoError(t, err)
	require.Equal(t, "accounts", entry.TableName)
	require.Equal(t, int64(12), entry.RecordID)
	require.Equal(t, int64(9), entry.DeletedBy)
	require.True(t, entry.IsRecoverable)
	require.Len(t, repo.deleted, 1)
}

func TestServiceAuthorizeDeleteRejectionCountsMetric(t *testing.T) {
	repo := newMemoryLog()
	metrics := &countingMetrics{}
	facts := &stubFacts{accountCode: "1", accountFound: true}
	svc := NewService(repo, nil, metrics, NewAccountGuard(facts))

	_, err := svc.AuthorizeDelete(context.Background(), EntityAccount, 1, 9)
	requireViolation(t, err, "system_account")
	require.Empty(t, repo.deleted)
	require.Equal(t, 1, metrics.rejections["account/system_account"])
}

func TestServiceRecoverOnce(t *testing.T) {
	repo := newMemoryLog()
	facts := &stubFacts{accountCode: "1.5", accountFound: true}
	svc := NewService(repo, nil, nil, NewAccountGuard(facts))
	ctx := context.Background()

	entry, err := svc.AuthorizeDelete(ctx, EntityAccount, 12, 9)
	require.NoError(t, err)

	restored, err := svc.Recover(ctx, entry.ID, 9)
	require.NoError(t, err)
	require.False(t, restored.IsRecoverable)

	_, err = svc.Recover(ctx, entry.ID, 9)
	require.ErrorIs(t, err, ErrNotRecoverable)
}

package guard

import (
	"context"
	"fmt"
	"strings"

	"github.com/meridian-erp/meridian-erp/internal/ledger"
)

// Guard evaluates an ordered checklist before a delete on one protected
// entity kind. The first violated rule is returned as a *Violation;
// infrastructure failures come back as plain errors.
type Guard interface {
	Entity() string
	CheckDelete(ctx context.Context, recordID int64) error
}

func violation(entity, rule, message string) *Violation {
	return &Violation{Entity: entity, Rule: rule, Message: message}
}

// AccountGuard protects chart-of-accounts rows.
type AccountGuard struct {
	facts AccountFacts
}

func NewAccountGuard(facts AccountFacts) *AccountGuard {
	return &AccountGuard{facts: facts}
}

func (g *AccountGuard) Entity() string { return EntityAccount }

func (g *AccountGuard) CheckDelete(ctx context.Context, recordID int64) error {
	code, balance, isSystem, found, err := g.facts.AccountRow(ctx, recordID)
	if err != nil {
		return err
	}
	if !found {
		return ErrRecordNotFound
	}
	// Root codes carry no dot; the flag also covers system accounts
	// created deeper in the tree.
	if isSystem || !strings.Contains(code, ".") {
		return violation(EntityAccount, "system_account",
			fmt.Sprintf("cannot delete account %s: system account", code))
	}
	if !ledger.WithinTolerance(balance) {
		return violation(EntityAccount, "nonzero_balance",
			fmt.Sprintf("cannot delete account %s: balance is %.2f, must be zero", code, balance))
	}
	hasLines, err := g.facts.AccountHasLedgerLines(ctx, recordID)
	if err != nil {
		return err
	}
	if hasLines {
		return violation(EntityAccount, "ledger_history",
			fmt.Sprintf("cannot delete account %s: contains ledger history", code))
	}
	linked, err := g.facts.AccountHasLinkedParties(ctx, recordID)
	if err != nil {
		return err
	}
	if linked {
		return violation(EntityAccount, "linked_parties",
			fmt.Sprintf("cannot delete account %s: linked to customers or fixed assets", code))
	}
	return nil
}

// JournalEntryGuard protects journal entries. Posted history is immutable;
// reversal is the only correction path.
type JournalEntryGuard struct {
	facts JournalEntryFacts
}

func NewJournalEntryGuard(facts JournalEntryFacts) *JournalEntryGuard {
	return &JournalEntryGuard{facts: facts}
}

func (g *JournalEntryGuard) Entity() string { return EntityJournalEntry }

func (g *JournalEntryGuard) CheckDelete(ctx context.Context, recordID int64) error {
	status, isOpening, isDepreciation, found, err := g.facts.JournalEntryRow(ctx, recordID)
	if err != nil {
		return err
	}
	if !found {
		return ErrRecordNotFound
	}
	// Anything past DRAFT has entered the ledger. A REVERSED entry was
	// posted too; deleting it would orphan its mirror's balance effect.
	if status != "DRAFT" {
		return violation(EntityJournalEntry, "posted",
			"cannot delete journal entry: posted history is immutable, correct by reversal")
	}
	if isOpening {
		return violation(EntityJournalEntry, "opening_entry",
			"cannot delete journal entry: opening balance entry")
	}
	if isDepreciation {
		return violation(EntityJournalEntry, "depreciation_entry",
			"cannot delete journal entry: generated by depreciation")
	}
	closed, err := g.facts.JournalEntryInClosedPeriod(ctx, recordID)
	if err != nil {
		return err
	}
	if closed {
		return violation(EntityJournalEntry, "period_closed",
			"cannot delete journal entry: its period is closed or archived")
	}
	return nil
}

// InvoiceGuard protects invoices.
type InvoiceGuard struct {
	facts InvoiceFacts
}

func NewInvoiceGuard(facts InvoiceFacts) *InvoiceGuard {
	return &InvoiceGuard{facts: facts}
}

func (g *InvoiceGuard) Entity() string { return EntityInvoice }

func (g *InvoiceGuard) CheckDelete(ctx context.Context, recordID int64) error {
	status, paidAmount, found, err := g.facts.InvoiceRow(ctx, recordID)
	if err != nil {
		return err
	}
	if !found {
		return ErrRecordNotFound
	}
	if status == "COMPLETED" {
		return violation(EntityInvoice, "completed", "cannot delete invoice: already completed")
	}
	if paidAmount > 0 {
		return violation(EntityInvoice, "paid",
			fmt.Sprintf("cannot delete invoice: %.2f already paid", paidAmount))
	}
	linked, err := g.facts.InvoiceHasJournalEntry(ctx, recordID)
	if err != nil {
		return err
	}
	if linked {
		return violation(EntityInvoice, "journal_linked",
			"cannot delete invoice: linked to a journal entry")
	}
	return nil
}

// CustomerGuard protects customers.
type CustomerGuard struct {
	facts CustomerFacts
}

func NewCustomerGuard(facts CustomerFacts) *CustomerGuard {
	return &CustomerGuard{facts: facts}
}

func (g *CustomerGuard) Entity() string { return EntityCustomer }

func (g *CustomerGuard) CheckDelete(ctx context.Context, recordID int64) error {
	found, err := g.facts.CustomerExists(ctx, recordID)
	if err != nil {
		return err
	}
	if !found {
		return ErrRecordNotFound
	}
	hasInvoices, err := g.facts.CustomerHasInvoices(ctx, recordID)
	if err != nil {
		return err
	}
	if hasInvoices {
		return violation(EntityCustomer, "has_invoices", "cannot delete customer: has invoices")
	}
	active, err := g.facts.CustomerAccountHasActivity(ctx, recordID)
	if err != nil {
		return err
	}
	if active {
		return violation(EntityCustomer, "account_activity",
			"cannot delete customer: linked account has balance or ledger history")
	}
	return nil
}

// FixedAssetGuard protects fixed assets.
type FixedAssetGuard struct {
	facts FixedAssetFacts
}

func NewFixedAssetGuard(facts FixedAssetFacts) *FixedAssetGuard {
	return &FixedAssetGuard{facts: facts}
}

func (g *FixedAssetGuard) Entity() string { return EntityFixedAsset }

func (g *FixedAssetGuard) CheckDelete(ctx context.Context, recordID int64) error {
	status, found, err := g.facts.FixedAssetRow(ctx, recordID)
	if err != nil {
		return err
	}
	if !found {
		return ErrRecordNotFound
	}
	if status == "ACTIVE" {
		return violation(EntityFixedAsset, "active", "cannot delete fixed asset: still active")
	}
	hasRows, err := g.facts.FixedAssetHasScheduleRows(ctx, recordID)
	if err != nil {
		return err
	}
	if hasRows {
		return violation(EntityFixedAsset, "schedule_rows",
			"cannot delete fixed asset: has depreciation schedule rows")
	}
	hasHistory, err := g.facts.FixedAssetAccountsHaveHistory(ctx, recordID)
	if err != nil {
		return err
	}
	if hasHistory {
		return violation(EntityFixedAsset, "ledger_history",
			"cannot delete fixed asset: its accounts have ledger history")
	}
	return nil
}

// CurrencyGuard protects currencies.
type CurrencyGuard struct {
	facts        CurrencyFacts
	baseCurrency string
}

func NewCurrencyGuard(facts CurrencyFacts, baseCurrency string) *CurrencyGuard {
	return &CurrencyGuard{facts: facts, baseCurrency: strings.ToUpper(baseCurrency)}
}

func (g *CurrencyGuard) Entity() string { return EntityCurrency }

func (g *CurrencyGuard) CheckDelete(ctx context.Context, recordID int64) error {
	code, found, err := g.facts.CurrencyRow(ctx, recordID)
	if err != nil {
		return err
	}
	if !found {
		return ErrRecordNotFound
	}
	if strings.ToUpper(code) == g.baseCurrency {
		return violation(EntityCurrency, "base_currency",
			fmt.Sprintf("cannot delete currency %s: base currency", code))
	}
	referenced, err := g.facts.CurrencyReferenced(ctx, code)
	if err != nil {
		return err
	}
	if referenced {
		return violation(EntityCurrency, "referenced",
			fmt.Sprintf("cannot delete currency %s: referenced by accounts", code))
	}
	return nil
}

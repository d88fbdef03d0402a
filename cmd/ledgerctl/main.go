// ledgerctl is the operator CLI for the Meridian ledger: opening entry
// creation, depreciation scheduling and runs, sequence inspection and
// deletion-log recovery, all against the configured database.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/meridian-erp/meridian-erp/internal/accounts"
	"github.com/meridian-erp/meridian-erp/internal/app"
	"github.com/meridian-erp/meridian-erp/internal/assets"
	"github.com/meridian-erp/meridian-erp/internal/guard"
	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/opening"
	"github.com/meridian-erp/meridian-erp/internal/periods"
	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	"github.com/meridian-erp/meridian-erp/internal/sequence"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

type runtime struct {
	pool     *pgxpool.Pool
	sequence *sequence.Service
	assets   *assets.Service
	opening  *opening.Service
	guard    *guard.Service
}

func newRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, err
	}
	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		return nil, err
	}
	auditLogger := shared.NewAuditLogger(pool)

	accountsService := accounts.NewService(accounts.NewRepository(pool), auditLogger)
	sequenceService := sequence.NewService(sequence.NewRepository(pool))
	periodsService := periods.NewService(periods.NewRepository(pool))
	ledgerService := ledger.NewService(ledger.NewRepository(pool), sequenceService, periodsService, auditLogger)

	facts := guard.NewFactStore(pool)
	guardService := guard.NewService(guard.NewRepository(pool), auditLogger, nil,
		guard.NewAccountGuard(facts),
		guard.NewJournalEntryGuard(facts),
		guard.NewInvoiceGuard(facts),
		guard.NewCustomerGuard(facts),
		guard.NewFixedAssetGuard(facts),
		guard.NewCurrencyGuard(facts, cfg.BaseCurrency),
	)

	// No redis client: CLI runs are ad hoc and unserialized.
	assetsService := assets.NewService(assets.NewRepository(pool), ledgerService, nil, auditLogger, nil)
	openingService := opening.NewService(accountsService, ledgerService, cfg.OpeningOffsetCode)

	return &runtime{
		pool:     pool,
		sequence: sequenceService,
		assets:   assetsService,
		opening:  openingService,
		guard:    guardService,
	}, nil
}

func (rt *runtime) close() {
	rt.pool.Close()
}

func parseDateFlag(cmd *cobra.Command, name string) (time.Time, error) {
	raw, err := cmd.Flags().GetString(name)
	if err != nil {
		return time.Time{}, err
	}
	if raw == "" {
		return time.Now(), nil
	}
	return time.Parse("2006-01-02", raw)
}

func actorFlag(cmd *cobra.Command) int64 {
	actor, _ := cmd.Flags().GetInt64("actor")
	return actor
}

func newOpeningCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "opening", Short: "Opening balance entry"}
	create := &cobra.Command{
		Use:   "create",
		Short: "Compose and post the opening balance entry",
		RunE: func(cmd *cobra.Command, _ []string) error {
			date, err := parseDateFlag(cmd, "date")
			if err != nil {
				return err
			}
			rt, err := newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.close()
			entry, err := rt.opening.CreateOpeningEntry(cmd.Context(), date, actorFlag(cmd))
			if err != nil {
				return err
			}
			fmt.Printf("posted %s: %d lines, debit %.2f credit %.2f\n",
				entry.EntryNumber, len(entry.Lines), entry.TotalDebit, entry.TotalCredit)
			return nil
		},
	}
	create.Flags().String("date", "", "entry date (YYYY-MM-DD, default today)")
	cmd.AddCommand(create)
	return cmd
}

func newDepreciationCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "depreciation", Short: "Depreciation scheduling and runs"}

	generate := &cobra.Command{
		Use:   "generate <asset-id>",
		Short: "Rebuild the pending schedule for one asset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var assetID int64
			if _, err := fmt.Sscanf(args[0], "%d", &assetID); err != nil {
				return fmt.Errorf("asset id must be numeric: %w", err)
			}
			rt, err := newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.close()
			rows, err := rt.assets.GenerateSchedule(cmd.Context(), assetID, actorFlag(cmd))
			if err != nil {
				return err
			}
			fmt.Printf("generated %d schedule rows\n", rows)
			return nil
		},
	}

	run := &cobra.Command{
		Use:   "run",
		Short: "Post all depreciation rows due",
		RunE: func(cmd *cobra.Command, _ []string) error {
			asOf, err := parseDateFlag(cmd, "as-of")
			if err != nil {
				return err
			}
			rt, err := newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.close()
			result, err := rt.assets.ProcessDue(cmd.Context(), asOf, actorFlag(cmd))
			if err != nil {
				return err
			}
			fmt.Printf("posted %d rows, total %.2f\n", result.Processed, result.TotalAmount)
			for _, rowErr := range result.Errors {
				fmt.Printf("  failed %s row %d: %s\n", rowErr.AssetCode, rowErr.ScheduleID, rowErr.Message)
			}
			return nil
		},
	}
	run.Flags().String("as-of", "", "cutoff date (YYYY-MM-DD, default today)")

	cmd.AddCommand(generate, run)
	return cmd
}

func newSequenceCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "sequence", Short: "Document sequences"}
	next := &cobra.Command{
		Use:   "next <document-type>",
		Short: "Allocate and print the next document number",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := parseDateFlag(cmd, "date")
			if err != nil {
				return err
			}
			rt, err := newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.close()
			number, err := rt.sequence.NextNumber(cmd.Context(), args[0], date)
			if err != nil {
				return err
			}
			fmt.Println(number)
			return nil
		},
	}
	next.Flags().String("date", "", "date deciding the fiscal year (default today)")
	cmd.AddCommand(next)
	return cmd
}

func newRecoverCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recover <log-id>",
		Short: "Restore a deleted record from the deletion log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("log id must be a uuid: %w", err)
			}
			rt, err := newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.close()
			entry, err := rt.guard.Recover(cmd.Context(), logID, actorFlag(cmd))
			if err != nil {
				return err
			}
			fmt.Printf("restored %s record %d\n", entry.TableName, entry.RecordID)
			return nil
		},
	}
}

func main() {
	root := &cobra.Command{
		Use:           "ledgerctl",
		Short:         "Meridian ledger operations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().Int64("actor", 0, "acting user id recorded in the audit trail")
	root.AddCommand(newOpeningCmd(), newDepreciationCmd(), newSequenceCmd(), newRecoverCmd())

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"flowtrack/internal/core"
	"flowtrack/internal/store"
)

// importRecord is one element of the JSON array accepted by import. It is
// the same shape the memory backend seeds from.
type importRecord struct {
	Owner    string     `json:"owner"`
	Amount   core.Money `json:"amount"`
	Category string     `json:"category"`
	Notes    string     `json:"notes"`
	Date     string     `json:"date"`
}

// importResult reports what happened to each record.
type importResult struct {
	Imported int
	Rejected []string
}

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import FILE|-",
		Short: "Import transactions from a JSON array",
		Long: `Import reads a JSON array of {owner, amount, category, notes, date}
objects and writes each valid record to the configured backend. Records
without an owner go to --owner. Invalid records are reported and skipped.
Use - to read from standard input.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			var in io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("open import file: %w", err)
				}
				defer f.Close()
				in = f
			}

			res, loc, err := openBackend(ctx)
			if err != nil {
				return err
			}
			defer res.Close()

			dryRun, _ := cmd.Flags().GetBool("dry-run")
			var writer store.TransactionWriter = res.Store
			if dryRun {
				writer = nil
			}
			result, err := importTransactions(ctx, writer, in, loc, owner())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, msg := range result.Rejected {
				fmt.Fprintf(out, "skipped: %s\n", msg)
			}
			verb := "Imported"
			if dryRun {
				verb = "Would import"
			}
			fmt.Fprintf(out, "%s %d transactions, skipped %d\n", verb, result.Imported, len(result.Rejected))
			return nil
		},
	}
	cmd.Flags().Bool("dry-run", false, "validate the file without writing")
	return cmd
}

// importTransactions validates every record in r and creates the valid ones
// through w. A nil w only validates.
func importTransactions(ctx context.Context, w store.TransactionWriter, r io.Reader, loc *time.Location, defaultOwner string) (importResult, error) {
	var recs []importRecord
	if err := json.NewDecoder(r).Decode(&recs); err != nil {
		return importResult{}, fmt.Errorf("decode import file: %w", err)
	}

	var result importResult
	for i, rec := range recs {
		tx, err := rec.toTransaction(loc, defaultOwner)
		if err != nil {
			result.Rejected = append(result.Rejected, fmt.Sprintf("record %d: %v", i, err))
			continue
		}
		if w != nil {
			if _, err := w.Create(ctx, tx); err != nil {
				return result, fmt.Errorf("record %d: %w", i, err)
			}
		}
		result.Imported++
	}
	return result, nil
}

func (rec importRecord) toTransaction(loc *time.Location, defaultOwner string) (core.Transaction, error) {
	cat, err := core.ParseCategory(rec.Category)
	if err != nil {
		return core.Transaction{}, err
	}
	date, err := core.ParseDate(rec.Date, loc)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("%w: %q", err, rec.Date)
	}
	owner := strings.TrimSpace(rec.Owner)
	if owner == "" {
		owner = defaultOwner
	}
	tx := core.Transaction{
		Owner:    owner,
		Amount:   rec.Amount,
		Category: cat,
		Notes:    strings.TrimSpace(rec.Notes),
		Date:     date,
	}
	return tx, tx.Validate()
}

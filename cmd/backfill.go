package main

import (
	"context"
	"sync/atomic"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/harmonia-saude/leadops-cli/internal/lead"
	"github.com/harmonia-saude/leadops-cli/internal/phone"
)

var (
	backfillBatchSize int
	backfillWorkers   int
	backfillDryRun    bool
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Rewrite legacy stored phones to canonical form",
	Long:  "Walks every stored lead and normalizes phones saved before canonicalization was enforced (bare digits, missing country code, missing ninth digit).",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		store, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		var scanned, rewritten, unparseable atomic.Int64

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(backfillWorkers)

		afterID := ""
		for {
			batch, err := store.ListLeads(ctx, afterID, backfillBatchSize)
			if err != nil {
				return err
			}
			if len(batch) == 0 {
				break
			}
			afterID = batch[len(batch)-1].ID

			for _, l := range batch {
				scanned.Add(1)
				if phone.IsCanonical(l.Phone) {
					continue
				}
				g.Go(func() error {
					return backfillOne(gctx, store, l, &rewritten, &unparseable)
				})
			}
		}

		if err := g.Wait(); err != nil {
			return err
		}

		zap.L().Info("backfill complete",
			zap.Int64("scanned", scanned.Load()),
			zap.Int64("rewritten", rewritten.Load()),
			zap.Int64("unparseable", unparseable.Load()),
			zap.Bool("dry_run", backfillDryRun),
		)
		return nil
	},
}

func backfillOne(ctx context.Context, store lead.Store, l lead.Lead, rewritten, unparseable *atomic.Int64) error {
	canonical, err := phone.Normalize(l.Phone, resolverRegions()...)
	if err != nil {
		unparseable.Add(1)
		zap.L().Warn("lead phone cannot be normalized",
			zap.String("id", l.ID),
			zap.String("phone", l.Phone),
		)
		return nil
	}
	if canonical == l.Phone {
		return nil
	}

	if backfillDryRun {
		rewritten.Add(1)
		zap.L().Info("would rewrite phone",
			zap.String("id", l.ID),
			zap.String("from", l.Phone),
			zap.String("to", canonical),
		)
		return nil
	}

	if err := store.UpdatePhone(ctx, l.ID, canonical); err != nil {
		// Likely a unique collision: another lead already owns the
		// canonical number. Leave the row for manual merge.
		zap.L().Warn("phone rewrite failed",
			zap.String("id", l.ID),
			zap.String("to", canonical),
			zap.Error(err),
		)
		return nil
	}
	rewritten.Add(1)
	return nil
}

func init() {
	backfillCmd.Flags().IntVar(&backfillBatchSize, "batch-size", 500, "leads fetched per page")
	backfillCmd.Flags().IntVar(&backfillWorkers, "workers", 4, "concurrent rewrite workers")
	backfillCmd.Flags().BoolVar(&backfillDryRun, "dry-run", false, "log rewrites without applying them")
	rootCmd.AddCommand(backfillCmd)
}

package main

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/harmonia-saude/leadops-cli/internal/db"
	"github.com/harmonia-saude/leadops-cli/internal/lead"
	"github.com/harmonia-saude/leadops-cli/internal/phone"
)

var (
	importCSVPath string
	importSource  string
	importTags    []string
)

// importRow is one funnel export line. Header names match the spreadsheet
// the marketing team exports, including the pt-BR aliases.
type importRow struct {
	Name  string `csv:"name"`
	Nome  string `csv:"nome,omitempty"`
	Email string `csv:"email"`
	Phone string `csv:"phone"`
	Fone  string `csv:"telefone,omitempty"`
}

func (r importRow) name() string {
	if r.Name != "" {
		return r.Name
	}
	return r.Nome
}

func (r importRow) phone() string {
	if r.Phone != "" {
		return r.Phone
	}
	return r.Fone
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import leads from a funnel CSV export",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		store, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Migrate(ctx); err != nil {
			return err
		}

		f, err := os.Open(importCSVPath)
		if err != nil {
			return eris.Wrap(err, "open csv")
		}
		defer f.Close()

		denylist, err := initDenylist()
		if err != nil {
			return err
		}

		leads, skipped, err := readLeadCSV(f, denylist, resolverRegions())
		if err != nil {
			return err
		}

		var imported int
		if pg, ok := store.(*lead.PostgresStore); ok {
			imported, err = bulkImport(ctx, pg, leads)
		} else {
			imported, err = rowImport(ctx, store, leads)
		}
		if err != nil {
			return err
		}

		zap.L().Info("import complete",
			zap.Int("imported", imported),
			zap.Int("skipped", skipped),
			zap.String("csv", importCSVPath),
		)
		return nil
	},
}

// readLeadCSV decodes, normalizes, and filters the export. Rows whose phone
// cannot be normalized or is denylisted are skipped, not fatal: one garbage
// row must not sink a 40k-line export.
func readLeadCSV(r io.Reader, denylist *phone.Denylist, regions []string) ([]lead.Lead, int, error) {
	csvReader := csv.NewReader(r)
	csvReader.LazyQuotes = true

	dec, err := csvutil.NewDecoder(csvReader)
	if err != nil {
		return nil, 0, eris.Wrap(err, "csv header")
	}

	titleCaser := cases.Title(language.BrazilianPortuguese)

	var (
		leads   []lead.Lead
		skipped int
		seen    = make(map[string]int)
	)
	for {
		var row importRow
		if err := dec.Decode(&row); err == io.EOF {
			break
		} else if err != nil {
			return nil, 0, eris.Wrap(err, "csv row")
		}

		canonical, err := phone.Normalize(row.phone(), regions...)
		if err != nil {
			zap.L().Debug("skipping row with unusable phone",
				zap.String("raw", row.phone()),
				zap.String("email", row.Email),
			)
			skipped++
			continue
		}
		if denylist.Contains(canonical) {
			skipped++
			continue
		}

		l := lead.Lead{
			Phone:  canonical,
			Email:  strings.ToLower(strings.TrimSpace(row.Email)),
			Name:   titleCaser.String(strings.TrimSpace(row.name())),
			Source: importSource,
			Tags:   importTags,
		}
		// Last occurrence of a duplicated phone wins inside one file.
		if i, ok := seen[canonical]; ok {
			leads[i] = l
			skipped++
			continue
		}
		seen[canonical] = len(leads)
		leads = append(leads, l)
	}
	return leads, skipped, nil
}

func bulkImport(ctx context.Context, st *lead.PostgresStore, leads []lead.Lead) (int, error) {
	now := time.Now().UTC()
	rows := make([][]any, 0, len(leads))
	for _, l := range leads {
		tags := l.Tags
		if tags == nil {
			tags = []string{}
		}
		rows = append(rows, []any{
			uuid.NewString(), l.Phone, l.Email, l.Name, l.Source, tags, now, now,
		})
	}

	n, err := db.BulkUpsert(ctx, st.Pool(), db.UpsertConfig{
		Table:        "leads",
		Columns:      []string{"id", "phone", "email", "name", "source", "tags", "created_at", "updated_at"},
		ConflictKeys: []string{"phone"},
		UpdateCols:   []string{"email", "name", "updated_at"},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "bulk upsert")
	}
	return int(n), nil
}

func rowImport(ctx context.Context, store lead.Store, leads []lead.Lead) (int, error) {
	var imported int
	for i := range leads {
		if err := store.UpsertLead(ctx, &leads[i]); err != nil {
			return imported, eris.Wrapf(err, "upsert %s", leads[i].Phone)
		}
		imported++
	}
	return imported, nil
}

func init() {
	importCmd.Flags().StringVar(&importCSVPath, "csv", "", "path to CSV file (required)")
	importCmd.Flags().StringVar(&importSource, "source", lead.SourceImport, "source label for imported leads")
	importCmd.Flags().StringSliceVar(&importTags, "tag", nil, "tag to apply to every imported lead (repeatable)")
	_ = importCmd.MarkFlagRequired("csv")
	rootCmd.AddCommand(importCmd)
}

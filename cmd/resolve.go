package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/harmonia-saude/leadops-cli/internal/lead"
)

var (
	resolvePhone string
	resolveEmail string
	resolveHeal  bool
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve a phone or email to a stored lead",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if resolvePhone == "" && resolveEmail == "" {
			return eris.New("at least one of --phone or --email is required")
		}

		store, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		denylist, err := initDenylist()
		if err != nil {
			return err
		}
		if resolveHeal {
			cfg.Resolver.SelfHeal = true
		}
		resolver := initResolver(store, denylist)

		result := resolver.Resolve(ctx, lead.Input{Phone: resolvePhone, Email: resolveEmail})

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	resolveCmd.Flags().StringVar(&resolvePhone, "phone", "", "raw phone number")
	resolveCmd.Flags().StringVar(&resolveEmail, "email", "", "email address")
	resolveCmd.Flags().BoolVar(&resolveHeal, "heal", false, "rewrite matched lead's stored phone to canonical form")
	rootCmd.AddCommand(resolveCmd)
}

package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/AnthusAI/plexus-dashboard/internal/store"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <kind> <identifier>",
	Short: "Resolve a human identifier to a canonical ID",
	Long:  "Kind is one of: account, scorecard, score. Tries direct ID, key, display name, then external ID.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind := store.Kind(args[0])
		switch kind {
		case store.KindAccount, store.KindScorecard, store.KindScore:
		default:
			return eris.Errorf("unknown kind %q", args[0])
		}

		env, err := initClient()
		if err != nil {
			return err
		}
		defer env.Close()

		id, ok := env.Resolver.Resolve(cmd.Context(), kind, args[1])
		if !ok {
			return eris.Errorf("no %s found for %q", kind, args[1])
		}
		fmt.Println(id)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(resolveCmd)
}

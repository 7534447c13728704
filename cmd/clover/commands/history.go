package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newHistoryCmd cria o comando `clover history` para inspecionar o log de
// dispatch.
func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent queries and how they were routed",
		Long: `Show the most recent queries, newest first, with the rule that
handled each one. Unhandled queries are marked with a dash; they are the
candidates for new rules or better phrasing.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			limit, _ := cmd.Flags().GetInt("limit")

			st, cleanup, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			entries, err := st.RecentDispatches(limit)
			if err != nil {
				return fmt.Errorf("loading history: %w", err)
			}
			if len(entries) == 0 {
				fmt.Println("No queries yet.")
				return nil
			}
			for _, e := range entries {
				rule := e.Rule
				if !e.Handled {
					rule = "-"
				}
				fmt.Printf("  %s  %-12s %s\n", e.CreatedAt.Format("Jan 2 15:04"), rule, e.Query)
			}
			return nil
		},
	}

	cmd.Flags().Int("limit", 20, "maximum entries to show")
	return cmd
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"jobsince/internal/model"
)

func NewStatusCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show per-state counts of the jobs in the run history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := e.openHistory()
			if err != nil {
				return err
			}
			defer st.Close()

			stats, err := st.HistoryStatus(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			total := 0
			fmt.Fprintln(out, "History Status:")
			for _, state := range model.States {
				fmt.Fprintf(out, "  %-14s %d\n", state, stats[state])
				total += stats[state]
			}
			fmt.Fprintf(out, "  %-14s %d\n", "TOTAL", total)
			return nil
		},
	}
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func NewResetCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Forget the last session and clear the run history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := e.openHistory()
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.ResetHistory(cmd.Context()); err != nil {
				return fmt.Errorf("failed to clear history: %w", err)
			}
			if err := e.sessions().Remove(); err != nil {
				return fmt.Errorf("failed to remove session state: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Session state and run history cleared.")
			return nil
		},
	}
}

package cli

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"jobsince/internal/model"
)

func NewHistoryCmd(e *env) *cobra.Command {
	var (
		state string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List jobs reported by previous runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var filter model.State
			if state != "" {
				s, ok := model.LookupState(state)
				if !ok {
					return fmt.Errorf("%w: %q (valid: %s)", ErrInvalidState, state, validStates())
				}
				filter = s
			}

			st, err := e.openHistory()
			if err != nil {
				return err
			}
			defer st.Close()

			entries, err := st.ListHistory(cmd.Context(), filter, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No jobs in history.")
				return nil
			}

			for _, en := range entries {
				j := en.Job
				end := "-"
				if j.EndTime != nil {
					end = j.EndTime.Local().Format("2006-01-02 15:04")
				}
				fmt.Fprintf(out, "%s | %-13s | ended %s | exit=%s | reported %s | %s\n",
					j.JobID, j.State, end, exitString(j.ExitCode), humanize.Time(en.ReportedAt), j.Name)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&state, "state", "", "Filter by job state")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of jobs to show (0 for all)")
	return cmd
}

func NewRunsCmd(e *env) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List previous successful runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := e.openHistory()
			if err != nil {
				return err
			}
			defer st.Close()

			runs, err := st.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded.")
				return nil
			}

			for _, r := range runs {
				fmt.Fprintf(out, "%s | user=%s | since %s | %d jobs | %s\n",
					r.ID, r.User, r.LowerBound.Local().Format("2006-01-02 15:04"), r.JobCount, humanize.Time(r.FinishedAt))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs to show (0 for all)")
	return cmd
}

func exitString(code *int) string {
	if code == nil {
		return "-"
	}
	return fmt.Sprint(*code)
}

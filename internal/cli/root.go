// Package cli wires the jobsince commands.
package cli

import (
	"fmt"
	"io"
	"os"
	"os/user"
	"regexp"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"jobsince/internal/accounting"
	"jobsince/internal/config"
	"jobsince/internal/logging"
	"jobsince/internal/model"
	"jobsince/internal/parser"
	"jobsince/internal/present"
	"jobsince/internal/session"
	"jobsince/internal/store"
	"jobsince/internal/window"
)

// Version is set at build time.
var Version = "dev"

// env holds what every command needs once flags are parsed.
type env struct {
	cfg    *config.Config
	logger *zap.Logger
	owner  string

	verbose bool
	color   string
}

func (e *env) load(cmd *cobra.Command) error {
	overrides := map[string]any{}
	if e.verbose {
		overrides["logging.level"] = "debug"
	}
	if cmd.Flags().Changed("color") {
		overrides["output.color"] = e.color
	}

	cfg, err := config.Load(cmd.Context(), overrides)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Logging.Level, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	e.cfg = cfg
	e.logger = logger
	e.owner = currentUser()
	return nil
}

func (e *env) sessions() *session.Store {
	return session.NewStore(e.cfg.State.Dir, e.logger)
}

func (e *env) openHistory() (*store.Store, error) {
	st, err := store.NewStore(e.cfg.History.Path)
	if err != nil {
		return nil, fmt.Errorf("open history %s: %w", e.cfg.History.Path, err)
	}
	return st, nil
}

func NewRootCmd() *cobra.Command {
	e := &env{}

	var (
		day    bool
		since  string
		states []string
		who    string
	)

	cmd := &cobra.Command{
		Use:   "jobsince [hours]",
		Short: "List cluster jobs that finished since you last looked",
		Long: `jobsince lists jobs from the Slurm accounting history that finished in a
time window. With no arguments the window starts at your previous successful
run (or 24 hours ago on the first run).

Examples:
  jobsince                      # since last time
  jobsince 6                    # the last 6 hours
  jobsince --day                # since local midnight
  jobsince --since 2025-01-01T08:00:00 --state FAILED --state TIMEOUT`,
		Version:       Version,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return e.load(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := parseStates(states)
			if err != nil {
				return err
			}

			intent := window.Intent{Since: since, SinceGiven: cmd.Flags().Changed("since"), Day: day}
			if len(args) == 1 {
				intent.Hours = args[0]
				intent.HoursGiven = true
			}

			app, cleanup, err := e.newApp(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			return app.Run(cmd.Context(), Options{Intent: intent, States: parsed, User: who})
		},
	}

	cmd.SetFlagErrorFunc(hoursFlagError)

	cmd.PersistentFlags().BoolVarP(&e.verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&e.color, "color", "auto", "colorize output: auto, always or never")

	cmd.Flags().BoolVar(&day, "day", false, "jobs finished since local midnight")
	cmd.Flags().StringVar(&since, "since", "", "jobs finished since `YYYY-MM-DDTHH:MM:SS` (local, or with Z / offset)")
	cmd.Flags().StringSliceVar(&states, "state", nil, "only show jobs in this state (repeatable); the run still moves the last-run checkpoint")
	cmd.Flags().StringVarP(&who, "user", "u", "", "list jobs of this user (default: current user); the run still moves your own last-run checkpoint")

	cmd.AddCommand(NewHistoryCmd(e))
	cmd.AddCommand(NewRunsCmd(e))
	cmd.AddCommand(NewStatusCmd(e))
	cmd.AddCommand(NewResetCmd(e))
	cmd.AddCommand(NewConfigCmd(e))
	return cmd
}

func (e *env) newApp(cmd *cobra.Command) (*App, func(), error) {
	cleanup := func() {}

	resolver := window.NewResolver(e.owner)
	resolver.Fallback = e.cfg.Window.Fallback

	p := parser.New(e.logger)

	app := &App{
		Querier:   accounting.NewSacct(e.cfg.Accounting.Command, e.cfg.Accounting.Timeout, e.logger),
		Sessions:  e.sessions(),
		Resolver:  resolver,
		Parser:    p,
		Presenter: present.NewPresenter(cmd.OutOrStdout(), wantColor(e.cfg.Output.Color, cmd.OutOrStdout())),
		Logger:    e.logger,
		Owner:     e.owner,
	}

	if e.cfg.History.Enabled {
		st, err := e.openHistory()
		if err != nil {
			e.logger.Warn("run history disabled for this run", zap.Error(err))
		} else {
			app.History = st
			cleanup = func() { _ = st.Close() }
		}
	}
	return app, cleanup, nil
}

// negativeNumber matches what pflag reports as an unknown shorthand when a
// negative hour count is given, e.g. "-5".
var negativeNumber = regexp.MustCompile(`^-[0-9][0-9.]*$`)

// hoursFlagError reports "jobsince -5" as a bad duration rather than an
// unknown flag.
func hoursFlagError(cmd *cobra.Command, err error) error {
	msg := err.Error()
	if cmd.HasParent() || !strings.HasPrefix(msg, "unknown shorthand flag") {
		return err
	}
	i := strings.LastIndex(msg, " in ")
	if i < 0 {
		return err
	}
	if tok := msg[i+len(" in "):]; negativeNumber.MatchString(tok) {
		return fmt.Errorf("%w: %q is not a non-negative number of hours", window.ErrInvalidDuration, tok)
	}
	return err
}

func parseStates(values []string) ([]model.State, error) {
	var out []model.State
	seen := map[model.State]bool{}
	for _, v := range values {
		s, ok := model.LookupState(v)
		if !ok {
			return nil, fmt.Errorf("%w: %q (valid: %s)", ErrInvalidState, v, validStates())
		}
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out, nil
}

func validStates() string {
	names := make([]string, len(model.States))
	for i, s := range model.States {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}

func wantColor(mode string, out io.Writer) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	}
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := out.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func currentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return os.Getenv("USER")
}

package cli

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"jobsince/internal/accounting"
	"jobsince/internal/model"
	"jobsince/internal/parser"
	"jobsince/internal/present"
	"jobsince/internal/session"
	"jobsince/internal/store"
	"jobsince/internal/window"
)

// App runs one "what finished since" query end to end.
type App struct {
	Querier   accounting.Querier
	Sessions  *session.Store
	Resolver  *window.Resolver
	Parser    *parser.Parser
	Presenter *present.Presenter
	// History is nil when the run log is disabled.
	History *store.Store
	Logger  *zap.Logger

	// Owner is the effective OS user; it owns the session state.
	Owner string
}

type Options struct {
	Intent window.Intent
	States []model.State
	// User is whose jobs to list. Empty means Owner.
	User string
}

// Run resolves the window, queries the backend, prints the table and only
// then advances the session checkpoint. Any error before rendering leaves the
// checkpoint untouched.
func (a *App) Run(ctx context.Context, opts Options) error {
	logger := a.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	last := a.Sessions.Load()
	w, err := a.Resolver.Resolve(opts.Intent, last)
	if err != nil {
		return err
	}

	user := opts.User
	if user == "" {
		user = a.Owner
	}
	logger.Debug("resolved time window",
		zap.String("mode", string(w.Mode)),
		zap.Time("lower", w.Lower),
		zap.Time("upper", w.Upper),
		zap.String("user", user))

	raw, err := a.Querier.Query(ctx, accounting.Query{Since: w.Lower, User: user, States: opts.States})
	if err != nil {
		return err
	}

	res, err := a.Parser.ParseBytes(raw)
	if err != nil {
		return err
	}
	if n := res.Stats.Anomalies(); n > 0 {
		logger.Warn("some accounting output could not be read cleanly",
			zap.Int("malformed_lines", res.Stats.Malformed),
			zap.Int("unknown_states", res.Stats.UnknownStates),
			zap.Int("bad_timestamps", res.Stats.BadTimes))
	}

	if _, err := a.Presenter.Render(res.Records, opts.States, user, w.Lower); err != nil {
		return fmt.Errorf("render: %w", err)
	}

	if a.History != nil {
		shown := present.Filter(res.Records, opts.States, user)
		run := model.Run{User: user, Owner: a.Owner, LowerBound: w.Lower, FinishedAt: w.Upper}
		if _, err := a.History.RecordRun(ctx, run, shown); err != nil {
			logger.Warn("could not record run history", zap.Error(err))
		}
	}

	if err := a.Sessions.Save(model.SessionState{LastInvocationTime: w.Upper, OwnerUser: a.Owner}); err != nil {
		return fmt.Errorf("save session state: %w", err)
	}
	return nil
}

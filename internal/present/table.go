package present

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/muesli/termenv"
	"github.com/ncruces/go-strftime"

	"jobsince/internal/model"
)

const (
	timeFormat   = "%b-%d %H:%M"
	maxNameWidth = 30
)

var headers = []string{"Job ID", "Job Name", "State", "Start", "End", "Exit"}

type palette struct {
	title   lipgloss.Style
	header  lipgloss.Style
	cell    lipgloss.Style
	dim     lipgloss.Style
	success lipgloss.Style
	warning lipgloss.Style
	notice  lipgloss.Style
	unknown lipgloss.Style
}

func newPalette(r *lipgloss.Renderer) palette {
	return palette{
		title:   r.NewStyle().Bold(true).Underline(true),
		header:  r.NewStyle().Bold(true).PaddingRight(2),
		cell:    r.NewStyle().PaddingRight(2),
		dim:     r.NewStyle().Foreground(lipgloss.Color("3")),
		success: r.NewStyle().Foreground(lipgloss.Color("2")),
		warning: r.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		notice:  r.NewStyle().Foreground(lipgloss.Color("3")),
		unknown: r.NewStyle().Foreground(lipgloss.Color("5")),
	}
}

func (p palette) state(s model.State) lipgloss.Style {
	switch s {
	case model.StateCompleted:
		return p.success
	case model.StateFailed, model.StateTimeout, model.StateNodeFail, model.StateOutOfMemory:
		return p.warning
	case model.StateCancelled, model.StatePreempted:
		return p.notice
	default:
		return p.unknown
	}
}

// Presenter writes the finished-jobs table to Out.
type Presenter struct {
	Out      io.Writer
	Color    bool
	Location *time.Location
	Now      func() time.Time
}

func NewPresenter(out io.Writer, color bool) *Presenter {
	return &Presenter{Out: out, Color: color, Location: time.Local, Now: time.Now}
}

// Render filters records by states and user, sorts them by end time and
// prints them under a header naming the lower bound. It returns the rows
// printed.
func (p *Presenter) Render(records []model.JobRecord, states []model.State, user string, since time.Time) (int, error) {
	rows := Filter(records, states, user)
	SortByEnd(rows)

	r := lipgloss.NewRenderer(p.Out)
	if p.Color {
		r.SetColorProfile(termenv.ANSI256)
	} else {
		r.SetColorProfile(termenv.Ascii)
	}
	pal := newPalette(r)

	sinceLabel := fmt.Sprintf("%s (%s)", p.formatTime(since), humanize.RelTime(since, p.now(), "ago", "from now"))
	if len(rows) == 0 {
		_, err := fmt.Fprintf(p.Out, "%s %s\n", pal.title.Render("No jobs have finished since"), pal.dim.Render(sinceLabel))
		return 0, err
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderTop(false).
		BorderBottom(false).
		BorderLeft(false).
		BorderRight(false).
		BorderColumn(false).
		BorderHeader(true).
		BorderStyle(r.NewStyle()).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return pal.header
			}
			return pal.cell
		})

	for _, rec := range rows {
		t.Row(
			rec.JobID,
			truncate(rec.Name, maxNameWidth),
			pal.state(rec.State).Render(stateLabel(rec)),
			p.optionalTime(rec.StartTime, "NOT STARTED", pal),
			p.optionalTime(rec.EndTime, "UNKNOWN", pal),
			exitLabel(rec.ExitCode),
		)
	}

	if _, err := fmt.Fprintf(p.Out, "%s %s\n", pal.title.Render("Jobs finished since"), pal.dim.Render(sinceLabel)); err != nil {
		return 0, err
	}
	if _, err := fmt.Fprintln(p.Out, t.Render()); err != nil {
		return 0, err
	}
	return len(rows), nil
}

func (p *Presenter) now() time.Time {
	if p.Now == nil {
		return time.Now()
	}
	return p.Now()
}

func (p *Presenter) formatTime(t time.Time) string {
	loc := p.Location
	if loc == nil {
		loc = time.Local
	}
	return strftime.Format(timeFormat, t.In(loc))
}

func (p *Presenter) optionalTime(t *time.Time, missing string, pal palette) string {
	if t == nil {
		return pal.dim.Render(missing)
	}
	return p.formatTime(*t)
}

func stateLabel(rec model.JobRecord) string {
	if rec.State == model.StateUnknown && rec.RawState != "" && rec.RawState != string(model.StateUnknown) {
		return fmt.Sprintf("%s (%s)", model.StateUnknown, rec.RawState)
	}
	return string(rec.State)
}

func exitLabel(code *int) string {
	if code == nil {
		return "-"
	}
	return strconv.Itoa(*code)
}

func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width-1]) + "…"
}

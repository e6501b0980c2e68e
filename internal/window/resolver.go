package window

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"jobsince/internal/model"
)

var (
	ErrInvalidTimestamp = errors.New("invalid timestamp")
	ErrInvalidDuration  = errors.New("invalid duration")
)

// DefaultFallback is the lookback used when no session has been recorded yet.
const DefaultFallback = 24 * time.Hour

const maxHours = math.MaxInt64 / int64(time.Hour)

// localLayouts are interpreted in the resolver's location.
var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Intent is what the user asked for on the command line.
type Intent struct {
	Since string // --since, verbatim
	Hours string // bare positional argument, verbatim
	Day   bool   // --day

	// SinceGiven and HoursGiven mark a value that was passed, even if empty.
	SinceGiven bool
	HoursGiven bool
}

type Mode string

const (
	ModeSince    Mode = "since"
	ModeHours    Mode = "hours"
	ModeDay      Mode = "day"
	ModeSession  Mode = "session"
	ModeFallback Mode = "fallback"
)

// Window is a resolved query range. Upper is the "now" the run started at.
type Window struct {
	Lower time.Time
	Upper time.Time
	Mode  Mode
}

type Resolver struct {
	Now      func() time.Time
	Location *time.Location
	Fallback time.Duration
	User     string
}

func NewResolver(user string) *Resolver {
	return &Resolver{
		Now:      time.Now,
		Location: time.Local,
		Fallback: DefaultFallback,
		User:     user,
	}
}

// Resolve picks the lower bound in priority order: --since, hours, --day,
// the stored session, then the fallback lookback. A lower bound in the
// future is returned as is.
func (r *Resolver) Resolve(in Intent, last *model.SessionState) (Window, error) {
	loc := r.location()
	now := r.Now().In(loc)

	switch {
	case in.SinceGiven || in.Since != "":
		t, err := ParseTimestamp(in.Since, loc)
		if err != nil {
			return Window{}, err
		}
		return Window{Lower: t, Upper: now, Mode: ModeSince}, nil

	case in.HoursGiven || in.Hours != "":
		n, err := strconv.ParseInt(strings.TrimSpace(in.Hours), 10, 64)
		if err != nil || n < 0 {
			return Window{}, fmt.Errorf("%w: %q is not a non-negative number of hours", ErrInvalidDuration, in.Hours)
		}
		if n > maxHours {
			return Window{}, fmt.Errorf("%w: %q hours is out of range", ErrInvalidDuration, in.Hours)
		}
		return Window{Lower: now.Add(-time.Duration(n) * time.Hour), Upper: now, Mode: ModeHours}, nil

	case in.Day:
		y, m, d := now.Date()
		return Window{Lower: time.Date(y, m, d, 0, 0, 0, 0, loc), Upper: now, Mode: ModeDay}, nil
	}

	if last != nil && !last.LastInvocationTime.IsZero() && last.OwnerUser == r.User {
		return Window{Lower: last.LastInvocationTime.In(loc), Upper: now, Mode: ModeSession}, nil
	}

	fallback := r.Fallback
	if fallback <= 0 {
		fallback = DefaultFallback
	}
	return Window{Lower: now.Add(-fallback), Upper: now, Mode: ModeFallback}, nil
}

func (r *Resolver) location() *time.Location {
	if r.Location == nil {
		return time.Local
	}
	return r.Location
}

// ParseTimestamp accepts ISO-8601 local times (no zone, read in loc) and
// RFC 3339 times carrying Z or an explicit offset.
func ParseTimestamp(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q (expected YYYY-MM-DDTHH:MM:SS, optionally with Z or an offset)", ErrInvalidTimestamp, s)
}

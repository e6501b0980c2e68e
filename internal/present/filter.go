package present

import (
	"sort"

	"jobsince/internal/model"
)

// Filter keeps finished records whose state is one of states and that belong
// to user. An empty states list or user matches everything, as does a record
// without a user. The input is not modified.
func Filter(records []model.JobRecord, states []model.State, user string) []model.JobRecord {
	want := make(map[model.State]bool, len(states))
	for _, s := range states {
		want[s] = true
	}

	out := make([]model.JobRecord, 0, len(records))
	for _, r := range records {
		if model.IsActiveState(r.RawState) {
			continue
		}
		if len(want) > 0 && !want[r.State] {
			continue
		}
		if user != "" && r.User != "" && r.User != user {
			continue
		}
		out = append(out, r)
	}
	return out
}

// SortByEnd orders records by end time, oldest first. Records without an end
// time go last; ties keep their backend order.
func SortByEnd(records []model.JobRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i].EndTime, records[j].EndTime
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.Before(*b)
		}
	})
}

package model

import "time"

// SessionState is the checkpoint written after every successful run.
type SessionState struct {
	LastInvocationTime time.Time
	OwnerUser          string
}

// Run is one successful invocation as recorded in the history database.
type Run struct {
	ID         string
	User       string
	Owner      string
	LowerBound time.Time
	FinishedAt time.Time
	JobCount   int
}

package domain

import "errors"

var (
	// ErrNotFound indicates that a requested job was not found.
	ErrNotFound = errors.New("scheduled job not found")
	// ErrNoDueJobs indicates that no jobs are currently due for processing.
	ErrNoDueJobs = errors.New("no due jobs found")
)

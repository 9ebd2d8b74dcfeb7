package timetable

// Package-level constants for timetable reconciliation.

const (
	// MatchTolerance is how far, in minutes, a slot assignment's start may
	// drift from a period's start and still fill that period.
	MatchTolerance = 5

	// placeholderPrefix starts the id of every synthesized slot.
	placeholderPrefix = "placeholder"
)

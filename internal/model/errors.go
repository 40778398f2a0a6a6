package model

import "errors"

// Error taxonomy for the sequential pipeline. All of these are fatal:
// the pipeline never retries on its own.
var (
	// ErrConfiguration reports a missing or invalid directory, structure
	// reference, or pattern. Raised before any processing starts.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrPatternMismatch reports a discovered file that fails to yield an
	// order key from the filename order pattern.
	ErrPatternMismatch = errors.New("filename does not match order pattern")

	// ErrUnknownVariable reports a refinable or plotted variable name that
	// the refinement engine does not declare.
	ErrUnknownVariable = errors.New("unknown variable")

	// ErrOrderingViolation reports a directory listing that contradicts
	// the previously committed file order. Requires an operator restart.
	ErrOrderingViolation = errors.New("input file ordering violation")

	// ErrMissingCheckpoint reports an absent result file during resume.
	ErrMissingCheckpoint = errors.New("missing checkpoint result file")

	// ErrUnknownInputFile reports a resume target that is not among the
	// known input files.
	ErrUnknownInputFile = errors.New("unknown input file")
)

package domain

import "errors"

// Tier failures are internal control flow: they advance the pipeline to
// the next tier and are never raised to API callers.
var (
	ErrFetchFailed   = errors.New("fetch_failed")
	ErrParseFailed   = errors.New("parse_failed")
	ErrNoPriorTable  = errors.New("no_prior_table")
	ErrRunInProgress = errors.New("acquisition_in_progress")
	ErrRunSuperseded = errors.New("run_superseded")
)

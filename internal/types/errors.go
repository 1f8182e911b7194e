package types

import "errors"

// Error classes shared by every meteodb component. Callers classify a
// returned error with errors.Is.
var (
	// ErrTransient covers network failures, timeouts and temporary store
	// errors. The caller is expected to retry.
	ErrTransient = errors.New("transient store failure")

	// ErrFatalSetup is returned by store constructors when a connection,
	// schema step or statement preparation fails.
	ErrFatalSetup = errors.New("fatal setup failure")

	// ErrMalformedInput covers bad UUID strings, unknown field names and
	// values of the wrong type.
	ErrMalformedInput = errors.New("malformed input")

	// ErrInconsistentInput is raised when aggregation inputs do not belong
	// to the declared station, month or year.
	ErrInconsistentInput = errors.New("inconsistent input")

	// ErrNotPresent is returned when reading a field whose presence flag is
	// false.
	ErrNotPresent = errors.New("field not present")

	// ErrRangeSpansDays is returned when a deletion range leaves its
	// calendar day.
	ErrRangeSpansDays = errors.New("range spans more than one day")
)

package pipeline

import "github.com/joseph-ayodele/ratecon-tracker/internal/common"

// Error is what callers of Run see on failure. Its message is always
// common.UserMessage; the typed cause stays reachable through errors.As.
type Error struct {
	Stage string
	Kind  common.ErrorKind
	Err   error
}

func (e *Error) Error() string { return common.UserMessage }

func (e *Error) Unwrap() error { return e.Err }

// Detail is the underlying failure text, for logs and run history only.
func (e *Error) Detail() string {
	if e.Err == nil {
		return e.Stage
	}
	return e.Stage + ": " + e.Err.Error()
}

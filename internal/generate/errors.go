package generate

import "fmt"

// TransientError marks a failure worth retrying: network trouble,
// timeouts, rate limits, service-side errors.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient generation failure: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError marks a ticket that cannot be processed no matter how
// often it is retried, e.g. empty content.
type PermanentError struct {
	Reason string
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("permanent generation failure: %s", e.Reason)
}

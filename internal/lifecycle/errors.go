package lifecycle

import (
	"errors"
	"fmt"
)

// ErrConflict signals that the invoice changed under a transition (the
// optimistic version guard failed). The caller must reload and retry.
var ErrConflict = errors.New("invoice was modified concurrently")

// InvalidTransitionError reports a lifecycle event that is not legal from
// the invoice's current status. No state or audit mutation happened.
type InvalidTransitionError struct {
	From  string
	Event Event
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition: cannot apply %q to invoice in status %s", string(e.Event), e.From)
}

// IsInvalidTransition reports whether err is an InvalidTransitionError
func IsInvalidTransition(err error) bool {
	var ite *InvalidTransitionError
	return errors.As(err, &ite)
}

package voting

import (
	"errors"
	"fmt"

	"campusvote/models"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrValidation           = errors.New("validation failed")
	ErrOpenElectionExists   = errors.New("only one ballot at a time: another election has not ended")
	ErrElectionActive       = errors.New("election is active")
	ErrElectionLocked       = errors.New("election can only be changed while pending")
	ErrElectionNotActive    = errors.New("election is not accepting votes")
	ErrEmptyBallot          = errors.New("ballot contains no votes")
	ErrBallotRejected       = errors.New("ballot rejected")
	ErrConcurrentSubmission = errors.New("ballot conflicted with a concurrent submission, please retry")
)

// TransitionError is returned when an action is not allowed from the
// election's current status.
type TransitionError struct {
	ElectionID uint
	From       models.ElectionStatus
	Action     models.ElectionAction
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s election %d: status is %s", e.Action, e.ElectionID, e.From)
}

func notFound(what string, id uint) error {
	return fmt.Errorf("%s %d: %w", what, id, ErrNotFound)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

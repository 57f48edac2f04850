package attendance

import (
	"errors"

	attendancestore "github.com/dalemusser/teampulse/internal/app/store/attendance"
)

// Validation errors. They describe a request the caller can fix and leave
// stored state unchanged.
var (
	ErrInvalidCode     = errors.New("Invalid attendance code")
	ErrAlreadySignedIn = attendancestore.ErrAlreadySignedIn
	ErrNotTeamMember   = errors.New("not a member of this team")
	ErrNotTeamAdmin    = errors.New("team admin role required")
	ErrBadDate         = errors.New("date must be YYYY-MM-DD")
)

// TransientError wraps a store failure. The operation may succeed on retry.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

func transient(op string, err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Op: op, Err: err}
}

// IsValidation reports whether err is one of the validation errors above.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidCode) ||
		errors.Is(err, ErrAlreadySignedIn) ||
		errors.Is(err, ErrNotTeamMember) ||
		errors.Is(err, ErrNotTeamAdmin) ||
		errors.Is(err, ErrBadDate)
}

// IsTransient reports whether err came from the backing store.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

package ledger

import "errors"

// Precondition failures. Every one of them is detected before any state is
// touched, so a caller can fix the input or the identity and retry the call.
var (
	ErrUnauthorized        = errors.New("caller is not the system owner")
	ErrUserNotVerified     = errors.New("user is not verified")
	ErrIndexOutOfRange     = errors.New("project index out of range")
	ErrAlreadyVerified     = errors.New("content hash already verified")
	ErrReviewerNotVerified = errors.New("reviewer is not verified")
	ErrProjectNotVerified  = errors.New("project not verified")
	ErrDuplicateReview     = errors.New("reviewer already reviewed this project")
)

var (
	// ErrOwnerMismatch is returned by Open when the store was initialised
	// by a different owner. Ownership cannot be transferred.
	ErrOwnerMismatch = errors.New("store is owned by a different principal")
	// ErrInvalidArgument rejects an empty owner or badge recipient.
	ErrInvalidArgument = errors.New("invalid argument")
)

var preconditions = []error{
	ErrUnauthorized,
	ErrUserNotVerified,
	ErrIndexOutOfRange,
	ErrAlreadyVerified,
	ErrReviewerNotVerified,
	ErrProjectNotVerified,
	ErrDuplicateReview,
	ErrInvalidArgument,
}

// IsPrecondition reports whether err is a caller-correctable rejection
// rather than an infrastructure failure.
func IsPrecondition(err error) bool {
	for _, p := range preconditions {
		if errors.Is(err, p) {
			return true
		}
	}
	return false
}

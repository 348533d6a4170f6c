package maild

import "errors"

// Protocol-level errors. Messages are user-facing ERROR reasons.
var (
	// ErrAuthFailed is the single generic login failure. Unknown account
	// and wrong password are deliberately indistinguishable to a remote
	// party.
	ErrAuthFailed = errors.New("invalid username or password")

	// ErrNotAuthenticated is returned when a mailbox operation or logout
	// is requested by an unauthenticated session.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrAlreadyAuthenticated is returned when registration or login is
	// requested by a session that is already authenticated.
	ErrAlreadyAuthenticated = errors.New("already authenticated")

	// ErrInvalidSelection is returned when an inbox selection is outside
	// the bounds of the last listing.
	ErrInvalidSelection = errors.New("invalid message selection")
)

package store

import "errors"

// Store errors. The messages for validation and delivery errors are
// user-facing: the router forwards them verbatim as ERROR reasons.
var (
	// ErrAccountExists is returned when registration collides with an
	// existing account, under case-insensitive comparison.
	ErrAccountExists = errors.New("username is already taken")

	// ErrForbiddenUsername is returned when a username contains characters
	// from the forbidden set or non-printable runes.
	ErrForbiddenUsername = errors.New("username contains forbidden characters")

	// ErrEmptyUsername is returned when a username is empty.
	ErrEmptyUsername = errors.New("username must not be empty")

	// ErrUsernameTooLong is returned when a username exceeds the length cap.
	ErrUsernameTooLong = errors.New("username is too long")

	// ErrWeakPassword is returned when a password fails the strength policy.
	ErrWeakPassword = errors.New("password is too weak: use at least 8 characters mixing upper case, lower case, digits or symbols")

	// ErrUnknownAccount is returned when no account matches a username.
	// The auth layer collapses this with ErrCredentialMismatch before it
	// reaches a remote party.
	ErrUnknownAccount = errors.New("no such account")

	// ErrCredentialMismatch is returned when the password digest does not
	// match the stored credential.
	ErrCredentialMismatch = errors.New("credential mismatch")

	// ErrUnknownRecipient is returned when an internal destination matches
	// no account. The message has been diverted to the lost-mail area.
	ErrUnknownRecipient = errors.New("recipient does not exist")

	// ErrExternalDestination is returned for destinations outside this
	// server's domain; outbound relay is not supported.
	ErrExternalDestination = errors.New("external destinations are not supported")

	// ErrInvalidAddress is returned for destinations that are not of the
	// form local@domain.
	ErrInvalidAddress = errors.New("invalid destination address")

	// ErrNoSuchMessage is returned when a message identifier resolves to
	// nothing in the mailbox.
	ErrNoSuchMessage = errors.New("no such message")
)

// Package maild implements the protocol layer of the mail service: the
// per-connection session state machine, the session table, the auth service
// and the request router. The package never touches the network; the server
// package hands it decoded frames and writes back whatever it returns.
package maild

import "github.com/glomail/maild/internal/store"

// State represents the authentication state of a session.
type State int

const (
	// StateUnauthenticated is the initial state; only registration, login
	// and BYE are valid.
	StateUnauthenticated State = iota

	// StateAuthenticated allows the mailbox operations and logout.
	StateAuthenticated
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "UNAUTHENTICATED"
	case StateAuthenticated:
		return "AUTHENTICATED"
	default:
		return "UNKNOWN"
	}
}

// Session is the per-connection protocol state: the authentication state,
// the account bound to the connection, and the listing snapshot that gives
// INBOX_SELECTION a stable numbering.
type Session struct {
	state    State
	username string // lowercased account identity, empty when unauthenticated
	listing  []store.Summary
}

// NewSession returns a session in the unauthenticated state.
func NewSession() *Session {
	return &Session{state: StateUnauthenticated}
}

// State returns the current authentication state.
func (s *Session) State() State {
	return s.state
}

// IsAuthenticated reports whether the session is bound to an account.
func (s *Session) IsAuthenticated() bool {
	return s.state == StateAuthenticated
}

// Username returns the bound account identity, or "" when unauthenticated.
func (s *Session) Username() string {
	return s.username
}

// SetAuthenticated binds the session to an account and transitions to
// StateAuthenticated.
func (s *Session) SetAuthenticated(username string) {
	s.state = StateAuthenticated
	s.username = username
	s.listing = nil
}

// ClearAuthenticated unbinds the account and returns the session to the
// unauthenticated state, dropping any cached listing.
func (s *Session) ClearAuthenticated() {
	s.state = StateUnauthenticated
	s.username = ""
	s.listing = nil
}

// SetListing caches a listing snapshot. Selection numbers refer to this
// snapshot until the next listing replaces it.
func (s *Session) SetListing(listing []store.Summary) {
	s.listing = listing
}

// HasListing reports whether a listing snapshot has been taken.
func (s *Session) HasListing() bool {
	return s.listing != nil
}

// Select resolves a 1-based choice against the cached listing snapshot.
func (s *Session) Select(choice int) (store.Summary, error) {
	if choice < 1 || choice > len(s.listing) {
		return store.Summary{}, ErrInvalidSelection
	}
	return s.listing[choice-1], nil
}

package maild

import (
	"context"
	"errors"
	"strings"

	"github.com/glomail/maild/internal/store"
)

// Auth implements registration, login and logout on top of the mailbox
// store, transitioning the calling session on success.
type Auth struct {
	store *store.Store
}

// NewAuth creates the auth service.
func NewAuth(st *store.Store) *Auth {
	return &Auth{store: st}
}

// Register validates and creates an account, then authenticates the calling
// session as that account. Validation failures keep their distinct reasons:
// forbidden characters, duplicate username and weak password each surface
// as-is.
func (a *Auth) Register(ctx context.Context, sess *Session, username, password string) error {
	if sess.IsAuthenticated() {
		return ErrAlreadyAuthenticated
	}
	if err := a.store.CreateAccount(ctx, username, password); err != nil {
		return err
	}
	sess.SetAuthenticated(strings.ToLower(username))
	return nil
}

// Login verifies the credentials and authenticates the calling session.
// Unknown account and wrong password both collapse into ErrAuthFailed.
func (a *Auth) Login(ctx context.Context, sess *Session, username, password string) error {
	if sess.IsAuthenticated() {
		return ErrAlreadyAuthenticated
	}
	if err := a.store.VerifyCredential(ctx, username, password); err != nil {
		if errors.Is(err, store.ErrUnknownAccount) || errors.Is(err, store.ErrCredentialMismatch) {
			return ErrAuthFailed
		}
		return err
	}
	sess.SetAuthenticated(strings.ToLower(username))
	return nil
}

// Logout returns the session to the unauthenticated state. Calling it on an
// unauthenticated session is an error, not a no-op.
func (a *Auth) Logout(sess *Session) error {
	if !sess.IsAuthenticated() {
		return ErrNotAuthenticated
	}
	sess.ClearAuthenticated()
	return nil
}

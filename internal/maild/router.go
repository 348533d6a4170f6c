package maild

import (
	"context"
	"errors"
	"time"

	"github.com/glomail/maild/internal/logging"
	"github.com/glomail/maild/internal/metrics"
	"github.com/glomail/maild/internal/store"
	"github.com/glomail/maild/internal/wire"
)

// internalErrorReason is what a remote party sees when a storage or
// encoding failure occurs; details stay in the server log.
const internalErrorReason = "internal server error"

// userFacingErrors are passed through verbatim as ERROR reasons. Anything
// else is an internal failure and is masked.
var userFacingErrors = []error{
	ErrAuthFailed,
	ErrNotAuthenticated,
	ErrAlreadyAuthenticated,
	ErrInvalidSelection,
	store.ErrAccountExists,
	store.ErrForbiddenUsername,
	store.ErrEmptyUsername,
	store.ErrUsernameTooLong,
	store.ErrWeakPassword,
	store.ErrUnknownRecipient,
	store.ErrExternalDestination,
	store.ErrInvalidAddress,
}

// Router decodes one request per invocation, checks the session's
// authentication state for the request kind, calls exactly one auth or
// store operation, and encodes the response. It satisfies the server's
// Handler interface; all invocations happen on the server's dispatch
// goroutine.
type Router struct {
	auth      *Auth
	store     *store.Store
	table     *Table
	collector metrics.Collector
}

// NewRouter wires the router to its collaborators. A nil collector falls
// back to the no-op implementation.
func NewRouter(auth *Auth, st *store.Store, table *Table, collector metrics.Collector) *Router {
	if collector == nil {
		collector = &metrics.NoopCollector{}
	}
	return &Router{auth: auth, store: st, table: table, collector: collector}
}

// HandleConnect registers a fresh unauthenticated session for a connection.
func (r *Router) HandleConnect(connID uint64) {
	r.table.Add(connID)
}

// HandleDisconnect removes the connection's session, whatever its state.
func (r *Router) HandleDisconnect(connID uint64) {
	r.table.Remove(connID)
}

// HandleRequest processes one framed request and returns the encoded
// response. A nil response with closeConn set means the connection should
// be closed without replying (BYE). Business errors become ERROR responses;
// they never close the connection.
func (r *Router) HandleRequest(ctx context.Context, connID uint64, frame []byte) (resp []byte, closeConn bool) {
	logger := logging.FromContext(ctx)

	sess, ok := r.table.Lookup(connID)
	if !ok {
		// Defensive: the server always announces connections first.
		sess = r.table.Add(connID)
	}

	msg, err := wire.Decode(frame)
	if err != nil {
		logger.Debug("rejecting malformed request", "error", err.Error())
		return errorResponse("malformed request"), false
	}

	r.collector.RequestProcessed(string(msg.Header))

	switch msg.Header {
	case wire.HeaderAuthRegister:
		return r.handleRegister(ctx, sess, msg), false
	case wire.HeaderAuthLogin:
		return r.handleLogin(ctx, sess, msg), false
	case wire.HeaderAuthLogout:
		return r.handleLogout(ctx, sess), false
	case wire.HeaderEmailSending:
		return r.handleSend(ctx, sess, msg), false
	case wire.HeaderInboxListing:
		return r.handleListing(ctx, sess), false
	case wire.HeaderInboxSelect:
		return r.handleSelection(ctx, sess, msg), false
	case wire.HeaderStatsRequest:
		return r.handleStats(ctx, sess), false
	case wire.HeaderBye:
		// No response; the server closes the connection.
		return nil, true
	case wire.HeaderOK, wire.HeaderError:
		return errorResponse("unexpected response header in request"), false
	default:
		return errorResponse("unsupported request"), false
	}
}

func (r *Router) handleRegister(ctx context.Context, sess *Session, msg wire.Message) []byte {
	p, err := msg.AuthPayload()
	if err != nil {
		return errorResponse("malformed credentials payload")
	}

	err = r.auth.Register(ctx, sess, p.Username, p.Password)
	r.collector.AuthAttempt("register", err == nil)
	if err != nil {
		logging.FromContext(ctx).Info("registration refused",
			"username", p.Username,
			"reason", err.Error(),
		)
		return r.errorFor(ctx, err)
	}

	logging.FromContext(ctx).Info("account registered", "username", sess.Username())
	return okResponse(nil)
}

func (r *Router) handleLogin(ctx context.Context, sess *Session, msg wire.Message) []byte {
	p, err := msg.AuthPayload()
	if err != nil {
		return errorResponse("malformed credentials payload")
	}

	err = r.auth.Login(ctx, sess, p.Username, p.Password)
	r.collector.AuthAttempt("login", err == nil)
	if err != nil {
		logging.FromContext(ctx).Info("login failed",
			"username", p.Username,
			"reason", err.Error(),
		)
		return r.errorFor(ctx, err)
	}

	logging.FromContext(ctx).Info("login successful", "username", sess.Username())
	return okResponse(nil)
}

func (r *Router) handleLogout(ctx context.Context, sess *Session) []byte {
	username := sess.Username()
	if err := r.auth.Logout(sess); err != nil {
		return r.errorFor(ctx, err)
	}
	logging.FromContext(ctx).Info("logout", "username", username)
	return okResponse(nil)
}

func (r *Router) handleSend(ctx context.Context, sess *Session, msg wire.Message) []byte {
	if !sess.IsAuthenticated() {
		return r.errorFor(ctx, ErrNotAuthenticated)
	}

	p, err := msg.SendPayload()
	if err != nil {
		return errorResponse("malformed email payload")
	}

	stored := store.Message{
		Sender:      r.store.Address(sess.Username()),
		Destination: p.Destination,
		Subject:     p.Subject,
		Date:        time.Now().UTC(),
		Content:     p.Content,
	}
	if err := r.store.Deliver(ctx, p.Destination, stored); err != nil {
		if errors.Is(err, store.ErrUnknownRecipient) {
			r.collector.MessageLost()
		}
		return r.errorFor(ctx, err)
	}

	r.collector.MessageDelivered(int64(len(stored.Content)))
	logging.FromContext(ctx).Info("message delivered",
		"sender", stored.Sender,
		"destination", stored.Destination,
	)
	return okResponse(nil)
}

func (r *Router) handleListing(ctx context.Context, sess *Session) []byte {
	if !sess.IsAuthenticated() {
		return r.errorFor(ctx, ErrNotAuthenticated)
	}

	summaries, err := r.store.ListMessages(ctx, sess.Username())
	if err != nil {
		return r.errorFor(ctx, err)
	}
	sess.SetListing(summaries)

	entries := make([]wire.ListingEntry, len(summaries))
	for i, s := range summaries {
		entries[i] = wire.ListingEntry{
			Number:  i + 1,
			Sender:  s.Sender,
			Subject: s.Subject,
			Date:    s.Date.Format(time.RFC3339),
		}
	}
	return okResponse(wire.ListingPayload{Entries: entries})
}

func (r *Router) handleSelection(ctx context.Context, sess *Session, msg wire.Message) []byte {
	if !sess.IsAuthenticated() {
		return r.errorFor(ctx, ErrNotAuthenticated)
	}

	p, err := msg.ChoicePayload()
	if err != nil {
		return errorResponse("malformed selection payload")
	}

	// A selection before any listing resolves against a fresh snapshot,
	// which then becomes the cached numbering.
	if !sess.HasListing() {
		summaries, err := r.store.ListMessages(ctx, sess.Username())
		if err != nil {
			return r.errorFor(ctx, err)
		}
		sess.SetListing(summaries)
	}

	summary, err := sess.Select(p.Choice)
	if err != nil {
		return r.errorFor(ctx, err)
	}

	stored, err := r.store.GetMessage(ctx, sess.Username(), summary.UID)
	if err != nil {
		// The file vanished between listing and selection.
		if errors.Is(err, store.ErrNoSuchMessage) {
			return r.errorFor(ctx, ErrInvalidSelection)
		}
		return r.errorFor(ctx, err)
	}

	return okResponse(wire.EmailPayload{
		Sender:      stored.Sender,
		Destination: stored.Destination,
		Subject:     stored.Subject,
		Date:        stored.Date.Format(time.RFC3339),
		Content:     stored.Content,
	})
}

func (r *Router) handleStats(ctx context.Context, sess *Session) []byte {
	if !sess.IsAuthenticated() {
		return r.errorFor(ctx, ErrNotAuthenticated)
	}

	stats, err := r.store.Stats(ctx, sess.Username())
	if err != nil {
		return r.errorFor(ctx, err)
	}
	return okResponse(wire.StatsPayload{Count: stats.Count, TotalBytes: stats.TotalBytes})
}

// errorFor maps an operation error to an ERROR response, passing through
// user-facing reasons and masking everything else.
func (r *Router) errorFor(ctx context.Context, err error) []byte {
	for _, known := range userFacingErrors {
		if errors.Is(err, known) {
			return errorResponse(known.Error())
		}
	}
	logging.FromContext(ctx).Error("request failed", "error", err.Error())
	return errorResponse(internalErrorReason)
}

func okResponse(payload any) []byte {
	return wire.MustEncode(wire.HeaderOK, payload)
}

func errorResponse(reason string) []byte {
	return wire.MustEncode(wire.HeaderError, wire.ErrorPayload{Reason: reason})
}

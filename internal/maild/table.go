package maild

// Table maps connection identities to their sessions. It is owned by the
// router and, like everything in this package, is only touched from the
// server's dispatch goroutine, so it needs no locking. Entries are created
// on accept and removed on disconnect; a restart invalidates every session
// by construction.
type Table struct {
	sessions map[uint64]*Session
}

// NewTable returns an empty session table.
func NewTable() *Table {
	return &Table{sessions: make(map[uint64]*Session)}
}

// Add creates and tracks a fresh unauthenticated session for a connection.
// Adding an id that is already tracked replaces the old session.
func (t *Table) Add(connID uint64) *Session {
	sess := NewSession()
	t.sessions[connID] = sess
	return sess
}

// Lookup returns the session bound to a connection, if any.
func (t *Table) Lookup(connID uint64) (*Session, bool) {
	sess, ok := t.sessions[connID]
	return sess, ok
}

// Remove drops the session for a connection. Safe to call for an untracked
// id.
func (t *Table) Remove(connID uint64) {
	delete(t.sessions, connID)
}

// Len returns the number of tracked sessions.
func (t *Table) Len() int {
	return len(t.sessions)
}

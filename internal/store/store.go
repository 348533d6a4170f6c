// Package store implements the filesystem-backed mailbox store: account
// creation and credential verification, per-account message files, the
// lost-mail area, and mailbox statistics.
//
// On-disk layout under the store root:
//
//	users/<username>/passwd.json        credential record
//	users/<username>/messages/<uid>.json one file per message
//	lost/<uid>.json                     messages to nonexistent accounts
//
// Account directories are named by the lowercased username; account identity
// is case-insensitive throughout. Message files are self-describing JSON and
// are written via a temp file and rename, so no reader ever observes a
// partial message.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	usersDir    = "users"
	lostDir     = "lost"
	messagesDir = "messages"
	passwdFile  = "passwd.json"
	messageExt  = ".json"
	tmpPrefix   = "tmp-"
)

// Message is one stored mail message. Content fields are immutable once the
// message has been written to a mailbox.
type Message struct {
	Sender      string    `json:"sender"`
	Destination string    `json:"destination"`
	Subject     string    `json:"subject"`
	Date        time.Time `json:"date"`
	Content     string    `json:"content"`
}

// Summary is the listing view of a stored message.
type Summary struct {
	UID     string
	Sender  string
	Subject string
	Date    time.Time
	Size    int64
}

// Stats reports mailbox usage for one account.
type Stats struct {
	Count      int
	TotalBytes int64
}

// credentialRecord is the on-disk credential file. Username preserves the
// display case from registration; the digest is a bcrypt hash.
type credentialRecord struct {
	Username string    `json:"username"`
	Digest   string    `json:"digest"`
	Created  time.Time `json:"created"`
}

// Store is a filesystem-backed mailbox store rooted at a data directory and
// owning one internal mail domain.
type Store struct {
	root   string
	domain string
}

// New opens a store rooted at dir for the given internal domain, creating
// the users and lost-mail directories if needed.
func New(dir, domain string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("store: data directory is required")
	}
	if domain == "" {
		return nil, errors.New("store: domain is required")
	}
	for _, sub := range []string{usersDir, lostDir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o700); err != nil {
			return nil, fmt.Errorf("store: creating %s directory: %w", sub, err)
		}
	}
	return &Store{root: dir, domain: strings.ToLower(domain)}, nil
}

// Domain returns the store's internal mail domain.
func (s *Store) Domain() string {
	return s.domain
}

// accountDir returns the directory for an account, keyed by the lowercased
// username.
func (s *Store) accountDir(username string) string {
	return filepath.Join(s.root, usersDir, strings.ToLower(username))
}

// CreateAccount validates the credentials and durably creates the account.
// Validation runs before any filesystem mutation, so a rejected registration
// leaves no partial state. Duplicate detection rides on the atomicity of
// mkdir: concurrent registrations for the same name cannot both succeed.
func (s *Store) CreateAccount(ctx context.Context, username, password string) error {
	if err := ValidateUsername(username); err != nil {
		return err
	}
	if err := ValidatePassword(password); err != nil {
		return err
	}

	digest, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("store: hashing password: %w", err)
	}

	dir := s.accountDir(username)
	if err := os.Mkdir(dir, 0o700); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return ErrAccountExists
		}
		return fmt.Errorf("store: creating account directory: %w", err)
	}

	record := credentialRecord{
		Username: username,
		Digest:   string(digest),
		Created:  time.Now().UTC(),
	}
	if err := s.finishAccount(dir, record); err != nil {
		// Roll back so a failed registration leaves no partial account.
		_ = os.RemoveAll(dir)
		return err
	}
	return nil
}

func (s *Store) finishAccount(dir string, record credentialRecord) error {
	if err := os.Mkdir(filepath.Join(dir, messagesDir), 0o700); err != nil {
		return fmt.Errorf("store: creating messages directory: %w", err)
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("store: encoding credential record: %w", err)
	}
	if err := writeFileAtomic(dir, passwdFile, data, 0o600); err != nil {
		return fmt.Errorf("store: writing credential record: %w", err)
	}
	return nil
}

// AccountExists reports whether an account exists for the username, under
// case-insensitive identity. Names the naming policy rejects can never be
// accounts, so they report false without touching the filesystem; otherwise
// a path-meaningful name like ".." would resolve to a real directory.
func (s *Store) AccountExists(username string) bool {
	if ValidateUsername(username) != nil {
		return false
	}
	info, err := os.Stat(s.accountDir(username))
	return err == nil && info.IsDir()
}

// VerifyCredential checks a username and password against the stored
// credential record. It returns ErrUnknownAccount or ErrCredentialMismatch;
// callers decide how much of that distinction to expose.
func (s *Store) VerifyCredential(ctx context.Context, username, password string) error {
	if ValidateUsername(username) != nil {
		return ErrUnknownAccount
	}
	data, err := os.ReadFile(filepath.Join(s.accountDir(username), passwdFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrUnknownAccount
		}
		return fmt.Errorf("store: reading credential record: %w", err)
	}

	var record credentialRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return fmt.Errorf("store: decoding credential record: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(record.Digest), []byte(password)); err != nil {
		return ErrCredentialMismatch
	}
	return nil
}

// ListMessages returns summaries of the account's messages, most recent
// first. An account with no messages yields an empty slice, not an error.
// The order is a pure function of the stored messages: date descending with
// the UID as tie-break, so repeated listings are stable absent new arrivals.
func (s *Store) ListMessages(ctx context.Context, username string) ([]Summary, error) {
	if !s.AccountExists(username) {
		return nil, ErrUnknownAccount
	}

	dir := filepath.Join(s.accountDir(username), messagesDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("store: reading mailbox: %w", err)
	}

	summaries := make([]Summary, 0, len(entries))
	for _, entry := range entries {
		uid, ok := messageUID(entry)
		if !ok {
			continue
		}
		msg, size, err := s.readMessageFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			// Skip unreadable entries rather than failing the listing.
			continue
		}
		summaries = append(summaries, Summary{
			UID:     uid,
			Sender:  msg.Sender,
			Subject: msg.Subject,
			Date:    msg.Date,
			Size:    size,
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		if !summaries[i].Date.Equal(summaries[j].Date) {
			return summaries[i].Date.After(summaries[j].Date)
		}
		return summaries[i].UID > summaries[j].UID
	})
	return summaries, nil
}

// GetMessage retrieves the full message with the given UID from the
// account's mailbox.
func (s *Store) GetMessage(ctx context.Context, username, uid string) (Message, error) {
	if !s.AccountExists(username) {
		return Message{}, ErrUnknownAccount
	}
	if !validUID(uid) {
		return Message{}, ErrNoSuchMessage
	}

	path := filepath.Join(s.accountDir(username), messagesDir, uid+messageExt)
	msg, _, err := s.readMessageFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Message{}, ErrNoSuchMessage
		}
		return Message{}, err
	}
	return msg, nil
}

// Deliver routes a message to its destination address. Internal destinations
// resolve against existing accounts; an internal destination with no account
// diverts the message to the lost-mail area and still reports
// ErrUnknownRecipient. External destinations are rejected without any write.
func (s *Store) Deliver(ctx context.Context, destination string, msg Message) error {
	local, domain, err := SplitAddress(destination)
	if err != nil {
		return err
	}
	if !s.IsInternal(domain) {
		return ErrExternalDestination
	}

	if !s.AccountExists(local) {
		if lostErr := s.writeLost(msg); lostErr != nil {
			return fmt.Errorf("store: writing lost mail: %w", lostErr)
		}
		return ErrUnknownRecipient
	}

	dir := filepath.Join(s.accountDir(local), messagesDir)
	if err := s.writeMessage(dir, msg); err != nil {
		return fmt.Errorf("store: delivering message: %w", err)
	}
	return nil
}

// Stats reports the message count and total stored bytes for an account.
func (s *Store) Stats(ctx context.Context, username string) (Stats, error) {
	if !s.AccountExists(username) {
		return Stats{}, ErrUnknownAccount
	}

	dir := filepath.Join(s.accountDir(username), messagesDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Stats{}, fmt.Errorf("store: reading mailbox: %w", err)
	}

	var stats Stats
	for _, entry := range entries {
		if _, ok := messageUID(entry); !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		stats.Count++
		stats.TotalBytes += info.Size()
	}
	return stats, nil
}

// writeLost stores a message in the shared lost-mail area.
func (s *Store) writeLost(msg Message) error {
	return s.writeMessage(filepath.Join(s.root, lostDir), msg)
}

// writeMessage durably writes one message file into dir under a fresh UID.
func (s *Store) writeMessage(dir string, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding message: %w", err)
	}
	name := uuid.NewString() + messageExt
	return writeFileAtomic(dir, name, data, 0o600)
}

// readMessageFile reads and decodes one message file, returning its size.
func (s *Store) readMessageFile(path string) (Message, int64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Message{}, 0, err
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, 0, fmt.Errorf("store: decoding message file %s: %w", filepath.Base(path), err)
	}
	return msg, int64(len(data)), nil
}

// messageUID extracts the UID from a mailbox directory entry, skipping
// temp files and anything that is not a message file.
func messageUID(entry fs.DirEntry) (string, bool) {
	name := entry.Name()
	if entry.IsDir() || strings.HasPrefix(name, tmpPrefix) || !strings.HasSuffix(name, messageExt) {
		return "", false
	}
	return strings.TrimSuffix(name, messageExt), true
}

// validUID rejects UIDs that could traverse out of the mailbox directory.
// Stored UIDs are UUID strings, so anything else is not a message of ours.
func validUID(uid string) bool {
	if uid == "" || strings.ContainsAny(uid, "/\\") || strings.Contains(uid, "..") {
		return false
	}
	return true
}

// writeFileAtomic writes data to dir/name via a temp file and rename so a
// crash or concurrent reader never sees a partial file. The file is synced
// before the rename; a message is durable before delivery is acknowledged.
func writeFileAtomic(dir, name string, data []byte, perm fs.FileMode) error {
	tmp, err := os.CreateTemp(dir, tmpPrefix+"*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		if tmpName != "" {
			_ = os.Remove(tmpName)
		}
	}()

	if err := tmp.Chmod(perm); err != nil {
		_ = tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, filepath.Join(dir, name)); err != nil {
		return err
	}
	tmpName = ""
	return nil
}

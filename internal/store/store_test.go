package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const (
	testDomain   = "glo2000.ca"
	testPassword = "Str0ngPassw!"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir(), testDomain)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s
}

func TestCreateAccount(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if err := s.CreateAccount(ctx, "alice", testPassword); err != nil {
		t.Fatalf("CreateAccount() error = %v", err)
	}

	if !s.AccountExists("alice") {
		t.Error("AccountExists(alice) = false after creation")
	}
	if !s.AccountExists("ALICE") {
		t.Error("AccountExists(ALICE) = false, identity should be case-insensitive")
	}
}

func TestCreateAccountDuplicate(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if err := s.CreateAccount(ctx, "alice", testPassword); err != nil {
		t.Fatalf("CreateAccount() error = %v", err)
	}

	// Any case variation of an existing name collides.
	for _, name := range []string{"alice", "Alice", "ALICE"} {
		if err := s.CreateAccount(ctx, name, testPassword); !errors.Is(err, ErrAccountExists) {
			t.Errorf("CreateAccount(%q) = %v, want ErrAccountExists", name, err)
		}
	}
}

func TestCreateAccountValidation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	tests := []struct {
		name     string
		username string
		password string
		wantErr  error
	}{
		{name: "Forbidden username", username: "a/b", password: testPassword, wantErr: ErrForbiddenUsername},
		{name: "Empty username", username: "", password: testPassword, wantErr: ErrEmptyUsername},
		{name: "Weak password", username: "carol", password: "weak", wantErr: ErrWeakPassword},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.CreateAccount(ctx, tt.username, tt.password); !errors.Is(err, tt.wantErr) {
				t.Errorf("CreateAccount() = %v, want %v", err, tt.wantErr)
			}
		})
	}

	// Rejected registrations leave no account directories behind.
	entries, err := os.ReadDir(filepath.Join(s.root, usersDir))
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("users directory has %d entries after rejected registrations, want 0", len(entries))
	}
}

func TestVerifyCredential(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if err := s.CreateAccount(ctx, "alice", testPassword); err != nil {
		t.Fatalf("CreateAccount() error = %v", err)
	}

	tests := []struct {
		name     string
		username string
		password string
		wantErr  error
	}{
		{name: "Correct credentials", username: "alice", password: testPassword},
		{name: "Case-insensitive lookup", username: "Alice", password: testPassword},
		{name: "Wrong password", username: "alice", password: "Wr0ngPassw!", wantErr: ErrCredentialMismatch},
		{name: "Unknown account", username: "bob", password: testPassword, wantErr: ErrUnknownAccount},
		{name: "Path-meaningful username", username: "..", password: testPassword, wantErr: ErrUnknownAccount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.VerifyCredential(ctx, tt.username, tt.password); !errors.Is(err, tt.wantErr) {
				t.Errorf("VerifyCredential() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCredentialNotStoredPlaintext(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if err := s.CreateAccount(ctx, "alice", testPassword); err != nil {
		t.Fatalf("CreateAccount() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(s.accountDir("alice"), passwdFile))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if strings.Contains(string(data), testPassword) {
		t.Error("credential file contains the plaintext password")
	}
}

func TestListMessagesEmpty(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if err := s.CreateAccount(ctx, "alice", testPassword); err != nil {
		t.Fatalf("CreateAccount() error = %v", err)
	}

	summaries, err := s.ListMessages(ctx, "alice")
	if err != nil {
		t.Fatalf("ListMessages() error = %v, want nil for empty mailbox", err)
	}
	if len(summaries) != 0 {
		t.Errorf("ListMessages() = %d entries, want 0", len(summaries))
	}
}

func TestListMessagesUnknownAccount(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.ListMessages(context.Background(), "ghost"); !errors.Is(err, ErrUnknownAccount) {
		t.Errorf("ListMessages() = %v, want ErrUnknownAccount", err)
	}
}

func TestDeliverRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if err := s.CreateAccount(ctx, "alice", testPassword); err != nil {
		t.Fatalf("CreateAccount() error = %v", err)
	}

	sent := Message{
		Sender:      "alice@glo2000.ca",
		Destination: "alice@glo2000.ca",
		Subject:     "greetings",
		Date:        time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Content:     "hello\nworld\n",
	}
	if err := s.Deliver(ctx, sent.Destination, sent); err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}

	summaries, err := s.ListMessages(ctx, "alice")
	if err != nil {
		t.Fatalf("ListMessages() error = %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("ListMessages() = %d entries, want 1", len(summaries))
	}
	if summaries[0].Sender != sent.Sender || summaries[0].Subject != sent.Subject {
		t.Errorf("summary = %+v", summaries[0])
	}

	got, err := s.GetMessage(ctx, "alice", summaries[0].UID)
	if err != nil {
		t.Fatalf("GetMessage() error = %v", err)
	}
	if got != sent {
		t.Errorf("GetMessage() = %+v, want %+v", got, sent)
	}
}

func TestDeliverCaseInsensitiveRecipient(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if err := s.CreateAccount(ctx, "alice", testPassword); err != nil {
		t.Fatalf("CreateAccount() error = %v", err)
	}

	msg := Message{Sender: "alice@glo2000.ca", Destination: "Alice@GLO2000.CA", Date: time.Now().UTC()}
	if err := s.Deliver(ctx, msg.Destination, msg); err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}

	summaries, err := s.ListMessages(ctx, "alice")
	if err != nil {
		t.Fatalf("ListMessages() error = %v", err)
	}
	if len(summaries) != 1 {
		t.Errorf("ListMessages() = %d entries, want 1", len(summaries))
	}
}

func TestDeliverUnknownRecipientGoesToLost(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	msg := Message{
		Sender:      "alice@glo2000.ca",
		Destination: "bob@glo2000.ca",
		Subject:     "orphan",
		Date:        time.Now().UTC(),
		Content:     "nobody home",
	}
	if err := s.Deliver(ctx, msg.Destination, msg); !errors.Is(err, ErrUnknownRecipient) {
		t.Fatalf("Deliver() = %v, want ErrUnknownRecipient", err)
	}

	entries, err := os.ReadDir(filepath.Join(s.root, lostDir))
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("lost-mail area has %d entries, want exactly 1", len(entries))
	}
}

func TestDeliverPathMeaningfulLocalGoesToLost(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if err := s.CreateAccount(ctx, "bob", testPassword); err != nil {
		t.Fatalf("CreateAccount() error = %v", err)
	}

	// Locals that resolve to real directories when joined into a path are
	// unknown recipients, never accounts.
	locals := []string{"..", ".", "../users/bob", `..\users\bob`}
	for _, local := range locals {
		msg := Message{
			Sender:      "bob@glo2000.ca",
			Destination: local + "@glo2000.ca",
			Subject:     "stray",
			Date:        time.Now().UTC(),
			Content:     "misrouted",
		}
		if err := s.Deliver(ctx, msg.Destination, msg); !errors.Is(err, ErrUnknownRecipient) {
			t.Errorf("Deliver(%q) = %v, want ErrUnknownRecipient", msg.Destination, err)
		}
	}

	// Exactly one lost-mail entry per attempt.
	entries, err := os.ReadDir(filepath.Join(s.root, lostDir))
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != len(locals) {
		t.Errorf("lost-mail area has %d entries, want %d", len(entries), len(locals))
	}

	// Nothing aliased into bob's mailbox.
	summaries, err := s.ListMessages(ctx, "bob")
	if err != nil {
		t.Fatalf("ListMessages() error = %v", err)
	}
	if len(summaries) != 0 {
		t.Errorf("bob's mailbox has %d messages, want 0", len(summaries))
	}
}

func TestAccountExistsRejectsPathNames(t *testing.T) {
	s := newTestStore(t)

	// "." and ".." stat real directories under the store root; neither is
	// an account.
	for _, name := range []string{".", "..", "../users", "a/b", ""} {
		if s.AccountExists(name) {
			t.Errorf("AccountExists(%q) = true, want false", name)
		}
	}
}

func TestDeliverExternalRejected(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	msg := Message{Sender: "alice@glo2000.ca", Destination: "bob@example.com", Date: time.Now().UTC()}
	if err := s.Deliver(ctx, msg.Destination, msg); !errors.Is(err, ErrExternalDestination) {
		t.Fatalf("Deliver() = %v, want ErrExternalDestination", err)
	}

	// External rejection writes nothing, not even lost mail.
	entries, err := os.ReadDir(filepath.Join(s.root, lostDir))
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("lost-mail area has %d entries, want 0", len(entries))
	}
}

func TestDeliverInvalidAddress(t *testing.T) {
	s := newTestStore(t)
	err := s.Deliver(context.Background(), "not-an-address", Message{})
	if !errors.Is(err, ErrInvalidAddress) {
		t.Errorf("Deliver() = %v, want ErrInvalidAddress", err)
	}
}

func TestListMessagesOrder(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if err := s.CreateAccount(ctx, "alice", testPassword); err != nil {
		t.Fatalf("CreateAccount() error = %v", err)
	}

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	subjects := []string{"first", "second", "third"}
	for i, subject := range subjects {
		msg := Message{
			Sender:      "alice@glo2000.ca",
			Destination: "alice@glo2000.ca",
			Subject:     subject,
			Date:        base.Add(time.Duration(i) * time.Minute),
		}
		if err := s.Deliver(ctx, msg.Destination, msg); err != nil {
			t.Fatalf("Deliver(%q) error = %v", subject, err)
		}
	}

	summaries, err := s.ListMessages(ctx, "alice")
	if err != nil {
		t.Fatalf("ListMessages() error = %v", err)
	}
	want := []string{"third", "second", "first"}
	if len(summaries) != len(want) {
		t.Fatalf("ListMessages() = %d entries, want %d", len(summaries), len(want))
	}
	for i, subject := range want {
		if summaries[i].Subject != subject {
			t.Errorf("summaries[%d].Subject = %q, want %q", i, summaries[i].Subject, subject)
		}
	}

	// The order is stable across repeated listings.
	again, err := s.ListMessages(ctx, "alice")
	if err != nil {
		t.Fatalf("ListMessages() error = %v", err)
	}
	for i := range summaries {
		if again[i].UID != summaries[i].UID {
			t.Errorf("listing order changed between calls at index %d", i)
		}
	}
}

func TestGetMessageErrors(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if err := s.CreateAccount(ctx, "alice", testPassword); err != nil {
		t.Fatalf("CreateAccount() error = %v", err)
	}

	tests := []struct {
		name     string
		username string
		uid      string
		wantErr  error
	}{
		{name: "Unknown account", username: "ghost", uid: "any", wantErr: ErrUnknownAccount},
		{name: "Unknown uid", username: "alice", uid: "no-such-uid", wantErr: ErrNoSuchMessage},
		{name: "Traversal uid", username: "alice", uid: "../passwd", wantErr: ErrNoSuchMessage},
		{name: "Empty uid", username: "alice", uid: "", wantErr: ErrNoSuchMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.GetMessage(ctx, tt.username, tt.uid); !errors.Is(err, tt.wantErr) {
				t.Errorf("GetMessage() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if err := s.CreateAccount(ctx, "alice", testPassword); err != nil {
		t.Fatalf("CreateAccount() error = %v", err)
	}

	stats, err := s.Stats(ctx, "alice")
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.Count != 0 || stats.TotalBytes != 0 {
		t.Errorf("Stats() = %+v, want zero", stats)
	}

	for i := 0; i < 3; i++ {
		msg := Message{
			Sender:      "alice@glo2000.ca",
			Destination: "alice@glo2000.ca",
			Subject:     "stats",
			Date:        time.Now().UTC(),
			Content:     "payload",
		}
		if err := s.Deliver(ctx, msg.Destination, msg); err != nil {
			t.Fatalf("Deliver() error = %v", err)
		}
	}

	stats, err = s.Stats(ctx, "alice")
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.Count != 3 {
		t.Errorf("Stats().Count = %d, want 3", stats.Count)
	}
	if stats.TotalBytes <= 0 {
		t.Errorf("Stats().TotalBytes = %d, want > 0", stats.TotalBytes)
	}
}

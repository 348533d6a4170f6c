package store

import (
	"fmt"
	"strings"
)

// SplitAddress splits an address of the form local@domain. Both parts must
// be non-empty and the address must contain exactly one separator.
func SplitAddress(addr string) (local, domain string, err error) {
	local, domain, ok := strings.Cut(addr, "@")
	if !ok || local == "" || domain == "" || strings.Contains(domain, "@") {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidAddress, addr)
	}
	return local, domain, nil
}

// IsInternal reports whether the address domain belongs to this server.
// Domains compare case-insensitively.
func (s *Store) IsInternal(domain string) bool {
	return strings.EqualFold(domain, s.domain)
}

// Address returns the canonical internal address for an account name.
func (s *Store) Address(username string) string {
	return strings.ToLower(username) + "@" + s.domain
}

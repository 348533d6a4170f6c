// Package wire defines the message schema and frame codec for the maild
// protocol. Every exchange on the wire is one frame in each direction: a
// 4-byte big-endian length prefix followed by a JSON-encoded tagged record.
//
// Incoming bytes are never evaluated or interpreted beyond structured JSON
// decoding; every payload field is checked for presence and type before the
// request is dispatched.
package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Header discriminates the kind of a request or response message.
type Header string

// The closed set of message kinds.
const (
	HeaderAuthRegister Header = "AUTH_REGISTER"
	HeaderAuthLogin    Header = "AUTH_LOGIN"
	HeaderAuthLogout   Header = "AUTH_LOGOUT"
	HeaderEmailSending Header = "EMAIL_SENDING"
	HeaderInboxListing Header = "INBOX_LISTING_REQUEST"
	HeaderInboxSelect  Header = "INBOX_SELECTION"
	HeaderStatsRequest Header = "STATS_REQUEST"
	HeaderOK           Header = "OK"
	HeaderError        Header = "ERROR"
	HeaderBye          Header = "BYE"
)

// Valid reports whether h is a member of the protocol's header set.
func (h Header) Valid() bool {
	switch h {
	case HeaderAuthRegister, HeaderAuthLogin, HeaderAuthLogout,
		HeaderEmailSending, HeaderInboxListing, HeaderInboxSelect,
		HeaderStatsRequest, HeaderOK, HeaderError, HeaderBye:
		return true
	default:
		return false
	}
}

// Message is one framed protocol message. Payload is header-dependent and
// absent for AUTH_LOGOUT, INBOX_LISTING_REQUEST, STATS_REQUEST and BYE.
type Message struct {
	Header  Header          `json:"header"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// AuthPayload accompanies AUTH_REGISTER and AUTH_LOGIN requests.
type AuthPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// ErrorPayload accompanies ERROR responses.
type ErrorPayload struct {
	Reason string `json:"reason"`
}

// SendPayload accompanies EMAIL_SENDING requests. The server stamps the
// sender address and the date; clients supply only what they control.
type SendPayload struct {
	Destination string `json:"destination"`
	Subject     string `json:"subject"`
	Content     string `json:"content"`
}

// ListingEntry is one line of an inbox listing. Number is the 1-based
// position used by a subsequent INBOX_SELECTION.
type ListingEntry struct {
	Number  int    `json:"number"`
	Sender  string `json:"sender"`
	Subject string `json:"subject"`
	Date    string `json:"date"`
}

// ListingPayload accompanies a successful INBOX_LISTING_REQUEST response.
type ListingPayload struct {
	Entries []ListingEntry `json:"entries"`
}

// ChoicePayload accompanies INBOX_SELECTION requests.
type ChoicePayload struct {
	Choice int `json:"choice"`
}

// EmailPayload accompanies a successful INBOX_SELECTION response and carries
// the full stored message.
type EmailPayload struct {
	Sender      string `json:"sender"`
	Destination string `json:"destination"`
	Subject     string `json:"subject"`
	Date        string `json:"date"`
	Content     string `json:"content"`
}

// StatsPayload accompanies a successful STATS_REQUEST response.
type StatsPayload struct {
	Count      int   `json:"count"`
	TotalBytes int64 `json:"total_bytes"`
}

// Decode parses one message body. The header must be a member of the
// protocol's header set; the payload is kept raw for per-kind decoding.
func Decode(body []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(body, &m); err != nil {
		return Message{}, fmt.Errorf("decoding message: %w", err)
	}
	if m.Header == "" {
		return Message{}, fmt.Errorf("message has no header")
	}
	if !m.Header.Valid() {
		return Message{}, fmt.Errorf("unknown header %q", m.Header)
	}
	return m, nil
}

// Encode serializes a message with the given header and payload. A nil
// payload produces a message with no payload field.
func Encode(header Header, payload any) ([]byte, error) {
	m := Message{Header: header}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding %s payload: %w", header, err)
		}
		m.Payload = raw
	}
	body, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encoding %s message: %w", header, err)
	}
	return body, nil
}

// MustEncode is Encode for payload values that cannot fail to marshal,
// such as the fixed payload structs in this package.
func MustEncode(header Header, payload any) []byte {
	body, err := Encode(header, payload)
	if err != nil {
		panic(err)
	}
	return body
}

// decodeStrict unmarshals raw into v, rejecting unknown fields so that a
// malformed or mistyped payload is reported before any field is used.
func decodeStrict(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return fmt.Errorf("payload is missing")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	return nil
}

// AuthPayload decodes the payload of an AUTH_REGISTER or AUTH_LOGIN request.
func (m Message) AuthPayload() (AuthPayload, error) {
	var p AuthPayload
	if err := decodeStrict(m.Payload, &p); err != nil {
		return AuthPayload{}, fmt.Errorf("%s payload: %w", m.Header, err)
	}
	if p.Username == "" {
		return AuthPayload{}, fmt.Errorf("%s payload: username is missing", m.Header)
	}
	if p.Password == "" {
		return AuthPayload{}, fmt.Errorf("%s payload: password is missing", m.Header)
	}
	return p, nil
}

// SendPayload decodes the payload of an EMAIL_SENDING request. Subject and
// content may be empty; the destination may not.
func (m Message) SendPayload() (SendPayload, error) {
	var p SendPayload
	if err := decodeStrict(m.Payload, &p); err != nil {
		return SendPayload{}, fmt.Errorf("%s payload: %w", m.Header, err)
	}
	if p.Destination == "" {
		return SendPayload{}, fmt.Errorf("%s payload: destination is missing", m.Header)
	}
	return p, nil
}

// ChoicePayload decodes the payload of an INBOX_SELECTION request.
func (m Message) ChoicePayload() (ChoicePayload, error) {
	var p ChoicePayload
	if err := decodeStrict(m.Payload, &p); err != nil {
		return ChoicePayload{}, fmt.Errorf("%s payload: %w", m.Header, err)
	}
	return p, nil
}

// ErrorPayload decodes the payload of an ERROR response.
func (m Message) ErrorPayload() (ErrorPayload, error) {
	var p ErrorPayload
	if err := decodeStrict(m.Payload, &p); err != nil {
		return ErrorPayload{}, fmt.Errorf("%s payload: %w", m.Header, err)
	}
	return p, nil
}

// ListingPayload decodes the payload of a successful listing response.
func (m Message) ListingPayload() (ListingPayload, error) {
	var p ListingPayload
	if err := decodeStrict(m.Payload, &p); err != nil {
		return ListingPayload{}, fmt.Errorf("%s payload: %w", m.Header, err)
	}
	return p, nil
}

// EmailPayload decodes the payload of a successful selection response.
func (m Message) EmailPayload() (EmailPayload, error) {
	var p EmailPayload
	if err := decodeStrict(m.Payload, &p); err != nil {
		return EmailPayload{}, fmt.Errorf("%s payload: %w", m.Header, err)
	}
	return p, nil
}

// StatsPayload decodes the payload of a successful stats response.
func (m Message) StatsPayload() (StatsPayload, error) {
	var p StatsPayload
	if err := decodeStrict(m.Payload, &p); err != nil {
		return StatsPayload{}, fmt.Errorf("%s payload: %w", m.Header, err)
	}
	return p, nil
}

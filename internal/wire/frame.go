package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// DefaultMaxFrameBytes bounds frame bodies when no limit is configured.
const DefaultMaxFrameBytes = 1 << 20

// lengthSize is the size of the big-endian length prefix.
const lengthSize = 4

var (
	// ErrFrameTooLarge is returned when a peer announces a frame larger
	// than the configured maximum. The connection is no longer usable
	// because the oversized body was not consumed.
	ErrFrameTooLarge = errors.New("frame exceeds maximum size")

	// ErrEmptyFrame is returned for a zero-length frame; every protocol
	// message has at least a header.
	ErrEmptyFrame = errors.New("empty frame")
)

// ReadFrame reads one length-prefixed frame body from r. The reader may
// deliver bytes in arbitrarily small pieces; ReadFrame blocks until a full
// frame is assembled or the reader fails.
func ReadFrame(r io.Reader, maxBytes int) ([]byte, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxFrameBytes
	}

	var prefix [lengthSize]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("reading frame length: %w", io.ErrUnexpectedEOF)
		}
		return nil, err
	}

	length := binary.BigEndian.Uint32(prefix[:])
	if length == 0 {
		return nil, ErrEmptyFrame
	}
	if length > uint32(maxBytes) {
		return nil, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, length, maxBytes)
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("reading frame body: %w", io.ErrUnexpectedEOF)
		}
		return nil, fmt.Errorf("reading frame body: %w", err)
	}
	return body, nil
}

// WriteFrame writes one length-prefixed frame to w.
func WriteFrame(w io.Writer, body []byte, maxBytes int) error {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxFrameBytes
	}
	if len(body) == 0 {
		return ErrEmptyFrame
	}
	if len(body) > maxBytes {
		return fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, len(body), maxBytes)
	}

	var prefix [lengthSize]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(body)))
	if _, err := w.Write(prefix[:]); err != nil {
		return fmt.Errorf("writing frame length: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("writing frame body: %w", err)
	}
	return nil
}

// ReadMessage reads and decodes one protocol message from r.
func ReadMessage(r io.Reader, maxBytes int) (Message, error) {
	body, err := ReadFrame(r, maxBytes)
	if err != nil {
		return Message{}, err
	}
	return Decode(body)
}

// WriteMessage encodes and writes one protocol message to w.
func WriteMessage(w io.Writer, header Header, payload any, maxBytes int) error {
	body, err := Encode(header, payload)
	if err != nil {
		return err
	}
	return WriteFrame(w, body, maxBytes)
}

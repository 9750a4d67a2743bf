// Package nativemsg implements the native-messaging wire format: each
// message is a 4-byte little-endian length prefix followed by that many
// bytes of UTF-8 JSON.
package nativemsg

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/gqlrelay/gqlrelay/internal/proto"
)

// ErrTruncatedFrame reports a frame cut short mid-header or mid-payload.
// The stream cannot be resynchronized afterwards.
var ErrTruncatedFrame = errors.New("nativemsg: truncated frame")

// MalformedFrameError reports a payload that is not valid JSON. The length
// prefix is trusted, so a malformed payload means stream integrity is lost
// and the channel must be abandoned.
type MalformedFrameError struct {
	Err error
}

func (e *MalformedFrameError) Error() string {
	return fmt.Sprintf("nativemsg: malformed frame: %v", e.Err)
}

func (e *MalformedFrameError) Unwrap() error { return e.Err }

// Encode marshals v and writes it to w as a single frame. It fails only on
// non-serializable input or a write error.
func Encode(w io.Writer, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var hdr [4]byte
	binary.LittleEndian.PutUint32(hdr[:], uint32(len(payload)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err = w.Write(payload)
	return err
}

// Decode reads the next frame from r. io.EOF is returned only at a frame
// boundary and signals that the peer closed the channel cleanly; a partial
// header or payload yields ErrTruncatedFrame.
func Decode(r io.Reader) (*proto.Envelope, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrTruncatedFrame
		}
		return nil, err
	}
	length := binary.LittleEndian.Uint32(hdr[:])
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrTruncatedFrame
		}
		return nil, err
	}
	var env proto.Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, &MalformedFrameError{Err: err}
	}
	env.Raw = payload
	return &env, nil
}

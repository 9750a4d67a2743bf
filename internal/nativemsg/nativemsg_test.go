package nativemsg

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/gqlrelay/gqlrelay/internal/proto"
)

func TestEncodeWritesLengthPrefix(t *testing.T) {
	var buf bytes.Buffer
	env := &proto.Envelope{Type: proto.TypeReady, Message: "hello"}
	if err := Encode(&buf, env); err != nil {
		t.Fatalf("encode: %v", err)
	}
	raw := buf.Bytes()
	if len(raw) < 4 {
		t.Fatalf("frame too short: %d bytes", len(raw))
	}
	length := binary.LittleEndian.Uint32(raw[:4])
	if int(length) != len(raw)-4 {
		t.Fatalf("prefix %d does not match payload length %d", length, len(raw)-4)
	}
	if !json.Valid(raw[4:]) {
		t.Fatalf("payload is not valid JSON: %q", raw[4:])
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	payload := json.RawMessage(`{"type":"response","id":"r1","success":true,"data":{"a":1}}`)
	var buf bytes.Buffer
	if err := Encode(&buf, payload); err != nil {
		t.Fatalf("encode: %v", err)
	}
	env, err := Decode(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !bytes.Equal(env.Raw, payload) {
		t.Fatalf("round trip changed payload: %s != %s", env.Raw, payload)
	}
	if env.Type != proto.TypeResponse || env.ID != "r1" {
		t.Fatalf("unexpected envelope %+v", env)
	}
	if env.Success == nil || !*env.Success {
		t.Fatalf("expected success=true, got %v", env.Success)
	}
}

func TestDecodeCleanEOF(t *testing.T) {
	if _, err := Decode(bytes.NewReader(nil)); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF got %v", err)
	}
}

func TestDecodeTruncatedHeader(t *testing.T) {
	if _, err := Decode(bytes.NewReader([]byte{0x05, 0x00})); !errors.Is(err, ErrTruncatedFrame) {
		t.Fatalf("expected ErrTruncatedFrame got %v", err)
	}
}

func TestDecodeTruncatedPayload(t *testing.T) {
	var buf bytes.Buffer
	var hdr [4]byte
	binary.LittleEndian.PutUint32(hdr[:], 10)
	buf.Write(hdr[:])
	buf.WriteString(`{"a`)
	if _, err := Decode(&buf); !errors.Is(err, ErrTruncatedFrame) {
		t.Fatalf("expected ErrTruncatedFrame got %v", err)
	}
}

func TestDecodeMalformedJSON(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte(`{"type":`)
	var hdr [4]byte
	binary.LittleEndian.PutUint32(hdr[:], uint32(len(payload)))
	buf.Write(hdr[:])
	buf.Write(payload)
	_, err := Decode(&buf)
	var mf *MalformedFrameError
	if !errors.As(err, &mf) {
		t.Fatalf("expected MalformedFrameError got %v", err)
	}
}

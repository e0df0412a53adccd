package transport

import (
	"encoding/binary"
	"fmt"
	"io"

	"hubd/internal/proto"
)

// maxFrameBytes bounds a single wire frame. Full observations carry raw
// camera frames, so the limit is generous but still finite.
const maxFrameBytes = 64 << 20

// request is the envelope for one endpoint call.
type request struct {
	Endpoint string           `cbor:"endpoint"`
	Data     proto.RawMessage `cbor:"data,omitempty"`
	Token    string           `cbor:"token,omitempty"`
}

// reply mirrors a request on the same connection. Exactly one of Error or
// Data is meaningful; an empty reply means success with no payload.
type reply struct {
	Error string           `cbor:"error,omitempty"`
	Data  proto.RawMessage `cbor:"data,omitempty"`
}

// writeFrame writes a 4-byte big-endian length prefix followed by the CBOR
// encoding of v.
func writeFrame(w io.Writer, v any) error {
	payload, err := proto.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	if len(payload) > maxFrameBytes {
		return fmt.Errorf("frame too large: %d bytes", len(payload))
	}
	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(payload)))
	if _, err := w.Write(prefix[:]); err != nil {
		return err
	}
	_, err = w.Write(payload)
	return err
}

// readFrame reads one length-prefixed frame and decodes it into v.
func readFrame(r io.Reader, v any) error {
	var prefix [4]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return err
	}
	n := binary.BigEndian.Uint32(prefix[:])
	if n > maxFrameBytes {
		return fmt.Errorf("frame too large: %d bytes", n)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return err
	}
	return proto.Unmarshal(payload, v)
}

// Package transport — envelope.go
//
// Concrete framing for the "compose_message(id, body) -> bytes"
// contract. Layout:
//
//	[4 bytes BE: total body length including the 8-byte id]
//	[8 bytes BE: sprinkler id]
//	[body bytes: the notification payload, "k = v" per line]
//
// The length prefix covers id+body so a reader can allocate exactly once.
package transport

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MaxBodyBytes bounds a single envelope's body to defend the reader
// against a corrupt or hostile length prefix.
const MaxBodyBytes = 1 << 20 // 1 MiB

// Envelope is the decoded form of one framed message.
type Envelope struct {
	SprinklerID uint64
	Body        []byte
}

// Compose serialises id and body into the wire framing described above.
// This is the concrete implementation behind the opaque
// compose_message(id, body) -> bytes contract.
func Compose(id uint64, body []byte) []byte {
	out := make([]byte, 4+8+len(body))
	binary.BigEndian.PutUint32(out[0:4], uint32(8+len(body)))
	binary.BigEndian.PutUint64(out[4:12], id)
	copy(out[12:], body)
	return out
}

// WriteEnvelope writes Compose(id, body) to w.
func WriteEnvelope(w io.Writer, id uint64, body []byte) error {
	_, err := w.Write(Compose(id, body))
	return err
}

// ReadEnvelope reads and decodes one framed message from r.
func ReadEnvelope(r io.Reader) (Envelope, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return Envelope{}, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n < 8 {
		return Envelope{}, fmt.Errorf("transport: envelope length %d shorter than id field", n)
	}
	if n > MaxBodyBytes {
		return Envelope{}, fmt.Errorf("transport: envelope length %d exceeds max %d", n, MaxBodyBytes)
	}
	rest := make([]byte, n)
	if _, err := io.ReadFull(r, rest); err != nil {
		return Envelope{}, err
	}
	id := binary.BigEndian.Uint64(rest[0:8])
	body := rest[8:]
	return Envelope{SprinklerID: id, Body: body}, nil
}

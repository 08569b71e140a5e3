// Package codec implements the wire framing described in spec §4.1: each
// protocol message is a 4-byte big-endian length prefix followed by that
// many bytes of UTF-8 JSON. WriteFrame assembles the outgoing frame in a
// buffer drawn from the teacher's sync.Pool-backed bufpool; ReadFrame
// allocates a fresh body slice for each frame it reads.
package codec

import (
	"encoding/binary"
	"encoding/json"
	"io"
	"time"
	"unicode/utf8"

	"github.com/SpacksD/Printer-connect/pkg/apperr"
	"github.com/SpacksD/Printer-connect/pkg/utils/bufpool"
	"lol.mleku.dev/chk"
)

// DefaultMaxFrameBytes is the default frame-length ceiling (200 MiB),
// spec §4.1.
const DefaultMaxFrameBytes = 200 * 1024 * 1024

// lengthPrefixSize is the number of bytes in the frame's length prefix.
const lengthPrefixSize = 4

// Headers carries the bearer-token header of an Envelope.
type Headers struct {
	Authorization string `json:"Authorization,omitempty"`
}

// Envelope is the wire-level JSON message body, spec §6.
type Envelope struct {
	Version     string          `json:"version"`
	MessageType string          `json:"message_type"`
	Timestamp   string          `json:"timestamp"`
	Headers     Headers         `json:"headers,omitempty"`
	Data        json.RawMessage `json:"data,omitempty"`
}

// NowTimestamp formats the current time as the ISO-8601 timestamp used on
// the wire.
func NowTimestamp() string { return time.Now().UTC().Format(time.RFC3339) }

// framingError wraps err as an apperr.Input error with the FRAMING_ERROR
// wire code.
func framingError(message string, err error) *apperr.Error {
	return apperr.Wrap(apperr.Input, "FRAMING_ERROR", message, err)
}

// ReadFrame reads exactly one length-prefixed JSON envelope from r,
// enforcing maxBytes as the ceiling on the declared length. It reads
// exactly L body bytes before attempting to parse, per spec §4.1.
func ReadFrame(r io.Reader, maxBytes uint32) (env *Envelope, err error) {
	if maxBytes == 0 {
		maxBytes = DefaultMaxFrameBytes
	}
	var lenBuf [lengthPrefixSize]byte
	if _, err = io.ReadFull(r, lenBuf[:]); chk.E(err) {
		err = framingError("failed to read frame length prefix", err)
		return
	}
	length := binary.BigEndian.Uint32(lenBuf[:])
	if length == 0 {
		err = framingError("zero-length frame", nil)
		return
	}
	if length > maxBytes {
		err = framingError("frame length exceeds configured ceiling", nil)
		return
	}
	body := make([]byte, length)
	if _, err = io.ReadFull(r, body); chk.E(err) {
		err = framingError("failed to read frame body", err)
		return
	}
	if !utf8.Valid(body) {
		err = framingError("frame body is not valid UTF-8", nil)
		return
	}
	env = new(Envelope)
	if err = json.Unmarshal(body, env); chk.E(err) {
		err = framingError("failed to decode frame body as JSON", err)
		return
	}
	return
}

// WriteFrame serializes env as JSON and writes it to w as one
// length-prefixed frame.
func WriteFrame(w io.Writer, env *Envelope) (err error) {
	var body []byte
	if body, err = json.Marshal(env); chk.E(err) {
		err = framingError("failed to encode frame body as JSON", err)
		return
	}
	if len(body) > DefaultMaxFrameBytes {
		err = framingError("encoded response exceeds frame ceiling", nil)
		return
	}
	buf := bufpool.Get()
	defer func() { bufpool.Put(buf) }()
	var lenPrefix [lengthPrefixSize]byte
	binary.BigEndian.PutUint32(lenPrefix[:], uint32(len(body)))
	buf = append(buf, lenPrefix[:]...)
	buf = append(buf, body...)
	if _, err = w.Write(buf); chk.E(err) {
		err = framingError("failed to write frame", err)
		return
	}
	return
}

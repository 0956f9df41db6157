package codec

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MaxFrameBytes bounds a single frame's total size (header + payload) so a
// malicious or confused peer cannot force unbounded buffering.
const MaxFrameBytes = 32 * 1024 * 1024

// Frame is a decoded wire packet: a header plus its opaque payload bytes.
// The payload's structure is determined by Header.PacketType; callers pass
// the bytes to a Reader keyed on that type.
type Frame struct {
	Header  Header
	Payload []byte
}

// Encode serializes f as header||payload, preceded by a 4-byte big-endian
// length prefix so it can be written directly to a stream socket. This
// mirrors the teacher's length-prefixed framing, generalized from a JSON
// body to the fixed 16-byte header plus packet-specific payload.
func (f Frame) Encode() []byte {
	body := append(f.Header.Encode(), f.Payload...)
	out := make([]byte, 4+len(body))
	binary.BigEndian.PutUint32(out[:4], uint32(len(body)))
	copy(out[4:], body)
	return out
}

// WriteFrame writes f to w using the length-prefixed encoding.
func WriteFrame(w io.Writer, f Frame) error {
	_, err := w.Write(f.Encode())
	return err
}

// ReadFrame reads one length-prefixed frame from r.
func ReadFrame(r io.Reader) (Frame, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return Frame{}, err
	}
	length := binary.BigEndian.Uint32(lenBuf[:])
	if length > MaxFrameBytes {
		return Frame{}, fmt.Errorf("codec: frame of %d bytes exceeds %d-byte limit", length, MaxFrameBytes)
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return Frame{}, err
	}
	header, err := DecodeHeader(body)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Header: header, Payload: body[HeaderSize:]}, nil
}

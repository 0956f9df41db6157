package codec

import (
	"encoding/binary"
	"fmt"
)

// Writer accumulates a packet payload using the wire format's primitive
// encodings: length-prefixed UTF-8 strings, big-endian counters, and
// fixed-size raw public keys.
type Writer struct {
	buf []byte
}

// NewWriter returns an empty payload Writer.
func NewWriter() *Writer { return &Writer{} }

// Bytes returns the accumulated payload.
func (w *Writer) Bytes() []byte { return w.buf }

// WriteString appends s with a 1-byte length prefix if it fits in 255
// bytes, otherwise a 2-byte length prefix.
func (w *Writer) WriteString(s string) error {
	if len(s) <= 255 {
		w.buf = append(w.buf, byte(len(s)))
		w.buf = append(w.buf, s...)
		return nil
	}
	if len(s) > 65535 {
		return fmt.Errorf("codec: string of %d bytes exceeds 65535-byte limit", len(s))
	}
	var prefix [2]byte
	binary.BigEndian.PutUint16(prefix[:], uint16(len(s)))
	w.buf = append(w.buf, prefix[:]...)
	w.buf = append(w.buf, s...)
	return nil
}

// WriteCounter appends a 4-byte big-endian unsigned counter.
func (w *Writer) WriteCounter(n uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], n)
	w.buf = append(w.buf, b[:]...)
}

// WritePublicKey appends a raw 32-byte public key. It panics if key is not
// exactly 32 bytes, since that indicates a programmer error upstream
// rather than a malformed wire payload.
func (w *Writer) WritePublicKey(key []byte) {
	if len(key) != 32 {
		panic(fmt.Sprintf("codec: public key must be 32 bytes, got %d", len(key)))
	}
	w.buf = append(w.buf, key...)
}

// WriteRaw appends arbitrary bytes verbatim, used for already-framed
// sub-payloads (e.g. a signature or hash whose length is implicit).
func (w *Writer) WriteRaw(b []byte) { w.buf = append(w.buf, b...) }

// Reader consumes a payload produced by Writer.
type Reader struct {
	buf []byte
	pos int
}

// NewReader wraps buf for sequential decoding.
func NewReader(buf []byte) *Reader { return &Reader{buf: buf} }

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.buf) - r.pos }

// ReadString reads a 1-byte-length-prefixed UTF-8 string. It does not
// fall back to the 2-byte form; callers that know a field uses the 2-byte
// form must call ReadLongString instead.
func (r *Reader) ReadString() (string, error) {
	if r.Remaining() < 1 {
		return "", fmt.Errorf("codec: truncated string length prefix")
	}
	n := int(r.buf[r.pos])
	r.pos++
	return r.readN(n)
}

// ReadLongString reads a 2-byte-length-prefixed UTF-8 string.
func (r *Reader) ReadLongString() (string, error) {
	if r.Remaining() < 2 {
		return "", fmt.Errorf("codec: truncated long string length prefix")
	}
	n := int(binary.BigEndian.Uint16(r.buf[r.pos : r.pos+2]))
	r.pos += 2
	return r.readN(n)
}

func (r *Reader) readN(n int) (string, error) {
	if r.Remaining() < n {
		return "", fmt.Errorf("codec: truncated string body, want %d have %d", n, r.Remaining())
	}
	s := string(r.buf[r.pos : r.pos+n])
	r.pos += n
	return s, nil
}

// ReadCounter reads a 4-byte big-endian unsigned counter.
func (r *Reader) ReadCounter() (uint32, error) {
	if r.Remaining() < 4 {
		return 0, fmt.Errorf("codec: truncated counter")
	}
	n := binary.BigEndian.Uint32(r.buf[r.pos : r.pos+4])
	r.pos += 4
	return n, nil
}

// ReadPublicKey reads a raw 32-byte public key.
func (r *Reader) ReadPublicKey() ([]byte, error) {
	if r.Remaining() < 32 {
		return nil, fmt.Errorf("codec: truncated public key")
	}
	key := make([]byte, 32)
	copy(key, r.buf[r.pos:r.pos+32])
	r.pos += 32
	return key, nil
}

// ReadRaw reads the remaining unread bytes verbatim.
func (r *Reader) ReadRaw() []byte {
	rest := r.buf[r.pos:]
	r.pos = len(r.buf)
	return rest
}

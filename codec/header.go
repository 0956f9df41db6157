// Package codec implements the Modulr wire format: a fixed 16-byte header
// followed by a packet-type-specific payload. Encoding and decoding are
// pure functions so the dispatcher in the orchestrator package can be
// tested without a socket.
package codec

import (
	"encoding/binary"
	"fmt"
	"time"
)

// HeaderSize is the fixed length of every frame's header, per the wire
// format's offset table (version/timestamp/packet_type/flags).
const HeaderSize = 16

// UserType identifies the role of the sender, carried in the top two bits
// of the flags byte.
type UserType uint8

const (
	UserClient     UserType = 0
	UserPartner    UserType = 1
	UserValidator  UserType = 2
	UserChainOwner UserType = 3
)

// Version is the protocol version embedded in every header.
type Version struct {
	Year       uint16
	Month      uint8
	Day        uint8
	Subversion uint8
}

// Header is the decoded form of the 16-byte wire header.
type Header struct {
	Version      Version
	Timestamp    time.Time
	PacketType   PacketType
	UserType     UserType
	AckRequested bool
}

// Encode serializes h into a fresh 16-byte big-endian buffer.
func (h Header) Encode() []byte {
	buf := make([]byte, HeaderSize)
	binary.BigEndian.PutUint16(buf[0:2], h.Version.Year)
	buf[2] = h.Version.Month
	buf[3] = h.Version.Day
	buf[4] = h.Version.Subversion
	binary.BigEndian.PutUint64(buf[5:13], uint64(h.Timestamp.Unix()))
	binary.BigEndian.PutUint16(buf[13:15], uint16(h.PacketType))
	buf[15] = byte(h.UserType)<<6 | boolBit(h.AckRequested)
	return buf
}

// DecodeHeader parses the first 16 bytes of buf as a Header. Packets
// shorter than HeaderSize are rejected with a typed error; an unknown
// packet_type still decodes successfully, the dispatcher decides whether
// to act on it.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, fmt.Errorf("%w: got %d bytes, want %d", ErrShortHeader, len(buf), HeaderSize)
	}
	h := Header{
		Version: Version{
			Year:       binary.BigEndian.Uint16(buf[0:2]),
			Month:      buf[2],
			Day:        buf[3],
			Subversion: buf[4],
		},
		Timestamp:  time.Unix(int64(binary.BigEndian.Uint64(buf[5:13])), 0).UTC(),
		PacketType: PacketType(binary.BigEndian.Uint16(buf[13:15])),
		UserType:   UserType(buf[15] >> 6),
	}
	h.AckRequested = buf[15]&0x01 != 0
	return h, nil
}

func boolBit(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// ErrShortHeader is returned by DecodeHeader when buf is shorter than
// HeaderSize.
var ErrShortHeader = fmt.Errorf("codec: frame shorter than %d-byte header", HeaderSize)

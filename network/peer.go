// Package network handles peer-to-peer communication over TCP/TLS using
// the codec package's fixed 16-byte header and length-prefixed frames.
package network

import (
	"crypto/tls"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/undchain/modulr/codec"
)

// Peer represents a connected remote node, speaking the wire frame
// format defined by codec.Frame.
type Peer struct {
	ID   string
	Addr string

	conn   net.Conn
	mu     sync.Mutex
	closed bool
}

// NewPeer wraps an established TCP connection as a Peer.
func NewPeer(id, addr string, conn net.Conn) *Peer {
	return &Peer{ID: id, Addr: addr, conn: conn}
}

// Connect dials the remote address and returns a connected Peer. If
// tlsCfg is non-nil the connection is established over TLS.
func Connect(id, addr string, tlsCfg *tls.Config) (*Peer, error) {
	var conn net.Conn
	var err error
	if tlsCfg != nil {
		conn, err = tls.Dial("tcp", addr, tlsCfg)
	} else {
		conn, err = net.Dial("tcp", addr)
	}
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", addr, err)
	}
	return NewPeer(id, addr, conn), nil
}

// Send writes a framed packet (header + payload) to the peer.
func (p *Peer) Send(f codec.Frame) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return fmt.Errorf("peer %s closed", p.ID)
	}
	return codec.WriteFrame(p.conn, f)
}

// Receive reads the next frame. A 30-second read deadline prevents a
// stalled peer from blocking indefinitely.
func (p *Peer) Receive() (codec.Frame, error) {
	_ = p.conn.SetReadDeadline(time.Now().Add(30 * time.Second))
	return codec.ReadFrame(p.conn)
}

// Close terminates the peer connection.
func (p *Peer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		p.conn.Close()
	}
}

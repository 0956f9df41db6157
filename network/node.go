package network

import (
	"crypto/tls"
	"encoding/json"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/undchain/modulr/chain"
	"github.com/undchain/modulr/codec"
	"github.com/undchain/modulr/txpool"
)

// FrameHandler is called for each received frame, keyed by packet type.
type FrameHandler func(peer *Peer, f codec.Frame)

// DefaultMaxPeers is the default limit on simultaneous peer connections.
const DefaultMaxPeers = 50

// Node listens for incoming peers and manages outgoing connections,
// dispatching received frames by codec.PacketType.
type Node struct {
	nodeID     string
	listenAddr string
	pool       *txpool.Pool
	tlsConfig  *tls.Config // nil → plain TCP
	maxPeers   int
	log        *logrus.Entry

	mu       sync.RWMutex
	peers    map[string]*Peer
	handlers map[codec.PacketType]FrameHandler

	listener net.Listener
	stopCh   chan struct{}
}

// NewNode creates a Node that will listen on listenAddr. If tlsCfg is
// non-nil the listener and outgoing connections use TLS.
func NewNode(nodeID, listenAddr string, pool *txpool.Pool, tlsCfg *tls.Config) *Node {
	n := &Node{
		nodeID:     nodeID,
		listenAddr: listenAddr,
		pool:       pool,
		tlsConfig:  tlsCfg,
		maxPeers:   DefaultMaxPeers,
		peers:      make(map[string]*Peer),
		handlers:   make(map[codec.PacketType]FrameHandler),
		stopCh:     make(chan struct{}),
		log:        logrus.WithField("component", "network"),
	}
	n.Handle(codec.JobFile, n.handleTx)
	return n
}

// Handle registers a handler for the given packet type.
func (n *Node) Handle(typ codec.PacketType, h FrameHandler) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handlers[typ] = h
}

// Start begins accepting connections.
func (n *Node) Start() error {
	var ln net.Listener
	var err error
	if n.tlsConfig != nil {
		ln, err = tls.Listen("tcp", n.listenAddr, n.tlsConfig)
	} else {
		ln, err = net.Listen("tcp", n.listenAddr)
	}
	if err != nil {
		return err
	}
	n.listener = ln
	go n.acceptLoop()
	return nil
}

// Stop shuts down the node.
func (n *Node) Stop() {
	close(n.stopCh)
	if n.listener != nil {
		n.listener.Close()
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, p := range n.peers {
		p.Close()
	}
}

// AddPeer dials addr and registers the peer.
func (n *Node) AddPeer(id, addr string) error {
	peer, err := Connect(id, addr, n.tlsConfig)
	if err != nil {
		return err
	}
	n.mu.Lock()
	n.peers[id] = peer
	n.mu.Unlock()
	go n.readLoop(peer)
	return nil
}

// Peer returns the connected peer with the given id, or nil if not found.
func (n *Node) Peer(id string) *Peer {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.peers[id]
}

// Broadcast sends f to every connected peer.
func (n *Node) Broadcast(f codec.Frame) {
	n.mu.RLock()
	peers := make([]*Peer, 0, len(n.peers))
	for _, p := range n.peers {
		peers = append(peers, p)
	}
	n.mu.RUnlock()
	for _, p := range peers {
		if err := p.Send(f); err != nil {
			n.log.WithField("peer", p.ID).WithError(err).Warn("broadcast failed")
		}
	}
}

// BroadcastTx frames and sends tx to all peers as a JOB_FILE packet.
func (n *Node) BroadcastTx(tx *chain.Transaction) error {
	data, err := json.Marshal(tx)
	if err != nil {
		return err
	}
	f := codec.Frame{
		Header:  codec.Header{PacketType: codec.JobFile},
		Payload: data,
	}
	n.Broadcast(f)
	return nil
}

// BroadcastBlock frames and sends block to all peers as a proposal: no
// AFP is attached, so receivers route it through the consensus voting
// path (Syncer.OnProposal) instead of committing it straight to chain.
func (n *Node) BroadcastBlock(block *chain.Block) error {
	data, err := json.Marshal(BlocksResponse{Blocks: []*chain.Block{block}})
	if err != nil {
		return err
	}
	f := codec.Frame{
		Header:  codec.Header{PacketType: codec.SyncCoChain},
		Payload: data,
	}
	n.Broadcast(f)
	return nil
}

// BroadcastFinalizedBlock announces block together with its
// quorum-majority AFP, letting receivers apply it directly (via
// Blockchain.AddBlock's majority check) instead of voting on it
// themselves. Used both right after local finalization and by the
// periodic proof-sharing task re-announcing the tip.
func (n *Node) BroadcastFinalizedBlock(block *chain.Block, afp *chain.AFP) error {
	data, err := json.Marshal(BlocksResponse{Blocks: []*chain.Block{block}, AFPs: []*chain.AFP{afp}})
	if err != nil {
		return err
	}
	f := codec.Frame{
		Header:  codec.Header{PacketType: codec.SyncCoChain},
		Payload: data,
	}
	n.Broadcast(f)
	return nil
}

func (n *Node) acceptLoop() {
	for {
		conn, err := n.listener.Accept()
		if err != nil {
			select {
			case <-n.stopCh:
				return
			default:
				n.log.WithError(err).Warn("accept error")
				time.Sleep(100 * time.Millisecond)
				continue
			}
		}
		n.mu.RLock()
		peerCount := len(n.peers)
		n.mu.RUnlock()
		if peerCount >= n.maxPeers {
			n.log.WithField("peer", conn.RemoteAddr()).Warn("max peers reached, rejecting")
			conn.Close()
			continue
		}
		peer := NewPeer(conn.RemoteAddr().String(), conn.RemoteAddr().String(), conn)
		n.mu.Lock()
		n.peers[peer.ID] = peer
		n.mu.Unlock()
		go n.readLoop(peer)
	}
}

func (n *Node) readLoop(peer *Peer) {
	defer func() {
		if r := recover(); r != nil {
			n.log.WithField("peer", peer.ID).Errorf("readLoop panic: %v", r)
		}
		peer.Close()
		n.mu.Lock()
		delete(n.peers, peer.ID)
		n.mu.Unlock()
	}()
	for {
		f, err := peer.Receive()
		if err != nil {
			return
		}
		n.mu.RLock()
		h, ok := n.handlers[f.Header.PacketType]
		n.mu.RUnlock()
		if ok {
			h(peer, f)
		}
	}
}

func (n *Node) handleTx(_ *Peer, f codec.Frame) {
	var tx chain.Transaction
	if err := json.Unmarshal(f.Payload, &tx); err != nil {
		n.log.WithError(err).Warn("unmarshal tx")
		return
	}
	if err := tx.Verify(); err != nil {
		n.log.WithError(err).Warn("reject invalid tx signature")
		return
	}
	if err := n.pool.Add(&tx); err != nil {
		n.log.WithError(err).Debug("mempool add rejected")
	}
}

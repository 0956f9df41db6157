package network

import (
	"encoding/json"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/undchain/modulr/chain"
	"github.com/undchain/modulr/codec"
	"github.com/undchain/modulr/crypto"
	"github.com/undchain/modulr/txpool"
)

func TestPeerSendReceiveRoundTrip(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	server := NewPeer("server", "", serverConn)
	client := NewPeer("client", "", clientConn)

	frame := codec.Frame{
		Header:  codec.Header{PacketType: codec.Heartbeat},
		Payload: []byte("ping"),
	}

	done := make(chan error, 1)
	go func() { done <- client.Send(frame) }()

	got, err := server.Receive()
	require.NoError(t, err)
	require.NoError(t, <-done)
	require.Equal(t, codec.Heartbeat, got.Header.PacketType)
	require.Equal(t, []byte("ping"), got.Payload)
}

func TestHandleTxAddsValidSignedTxToPool(t *testing.T) {
	pool := txpool.NewPool(nil)
	n := NewNode("node1", "127.0.0.1:0", pool, nil)

	priv, _, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	tx, err := chain.NewTransaction(chain.TxReliabilitySignal, 0, 0, map[string]string{"job_id": "j1"})
	require.NoError(t, err)
	tx.Sign(priv)

	payload, err := json.Marshal(tx)
	require.NoError(t, err)

	n.handleTx(nil, codec.Frame{Payload: payload})
	require.Equal(t, 1, pool.Size())
}

func TestHandleTxRejectsTamperedSignature(t *testing.T) {
	pool := txpool.NewPool(nil)
	n := NewNode("node1", "127.0.0.1:0", pool, nil)

	priv, _, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	tx, err := chain.NewTransaction(chain.TxReliabilitySignal, 0, 0, map[string]string{"job_id": "j1"})
	require.NoError(t, err)
	tx.Sign(priv)
	tx.Sig = "00"

	payload, err := json.Marshal(tx)
	require.NoError(t, err)

	n.handleTx(nil, codec.Frame{Payload: payload})
	require.Zero(t, pool.Size())
}

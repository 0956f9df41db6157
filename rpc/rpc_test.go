package rpc

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/undchain/modulr/chain"
	"github.com/undchain/modulr/crypto"
	"github.com/undchain/modulr/epoch"
	"github.com/undchain/modulr/kvstore"
	"github.com/undchain/modulr/reliability"
	"github.com/undchain/modulr/sector"
	"github.com/undchain/modulr/txpool"
)

const testNetworkID = "modulr-testnet"

func newTestHandler(t *testing.T) (*Handler, string) {
	t.Helper()

	priv, pub, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	h := epoch.New(1, "hash1", testNetworkID, epoch.Params{LeadershipTimeframeMs: 2000}, 0)
	h.RegisterPool(pub.Hex())
	require.NoError(t, h.SetLeadersSequence([]byte("seed")))
	h.SetQuorum([]string{pub.Hex()})

	db := kvstore.NewMemDB()
	store := chain.NewStore(db)
	bc := chain.NewBlockchain(store, testNetworkID)
	require.NoError(t, bc.Init(h.FullID()))

	block := chain.NewBlock(pub.Hex(), h.FullID(), "", 0, 0, nil)
	block.Sign(testNetworkID, priv)
	afp := &chain.AFP{}
	require.NoError(t, bc.AddBlock(block, afp))

	sectors := map[string]*sector.Manager{
		"sector1": sector.NewManager("sector1", 0),
	}
	rel := reliability.NewManager(0)
	pool := txpool.NewPool(nil)

	return NewHandler(bc, pool, h, sectors, rel, testNetworkID), pub.Hex()
}

func dispatch(t *testing.T, h *Handler, method string, params any) Response {
	t.Helper()
	raw, err := json.Marshal(params)
	require.NoError(t, err)
	return h.Dispatch(Request{JSONRPC: "2.0", ID: json.RawMessage("1"), Method: method, Params: raw})
}

func TestGetEpoch(t *testing.T) {
	h, _ := newTestHandler(t)
	resp := dispatch(t, h, "getEpoch", map[string]any{})
	require.Nil(t, resp.Error)
	require.NotNil(t, resp.Result)
}

func TestGetBlockReturnsTip(t *testing.T) {
	h, _ := newTestHandler(t)
	resp := dispatch(t, h, "getBlock", map[string]any{})
	require.Nil(t, resp.Error)
	require.NotNil(t, resp.Result)
}

func TestGetValidatorSet(t *testing.T) {
	h, pubHex := newTestHandler(t)
	resp := dispatch(t, h, "getValidatorSet", map[string]any{})
	require.Nil(t, resp.Error)
	quorum, ok := resp.Result.([]string)
	require.True(t, ok)
	require.Contains(t, quorum, pubHex)
}

func TestGetSectorLastConfirmed(t *testing.T) {
	h, _ := newTestHandler(t)
	resp := dispatch(t, h, "getSector", map[string]any{"sector_id": "sector1"})
	require.Nil(t, resp.Error)
	require.NotNil(t, resp.Result)
}

func TestGetSectorUnknownID(t *testing.T) {
	h, _ := newTestHandler(t)
	resp := dispatch(t, h, "getSector", map[string]any{"sector_id": "nope"})
	require.NotNil(t, resp.Error)
	require.Equal(t, CodeInvalidParams, resp.Error.Code)
}

func TestGetChallengeSeed(t *testing.T) {
	h, _ := newTestHandler(t)
	resp := dispatch(t, h, "getChallengeSeed", map[string]any{})
	require.Nil(t, resp.Error)
	require.NotNil(t, resp.Result)
}

func TestGetReliabilityRequiresUserID(t *testing.T) {
	h, _ := newTestHandler(t)
	resp := dispatch(t, h, "getReliability", map[string]any{})
	require.NotNil(t, resp.Error)
	require.Equal(t, CodeInvalidParams, resp.Error.Code)
}

func TestGetReliabilityReturnsSummary(t *testing.T) {
	h, _ := newTestHandler(t)
	resp := dispatch(t, h, "getReliability", map[string]any{"user_id": "alice"})
	require.Nil(t, resp.Error)
	require.NotNil(t, resp.Result)
}

func TestSendTxAcceptsValidSignature(t *testing.T) {
	h, _ := newTestHandler(t)

	priv, _, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	tx, err := chain.NewTransaction(chain.TxReliabilitySignal, 0, 0, map[string]string{"job_id": "j1"})
	require.NoError(t, err)
	tx.Sign(priv)

	resp := dispatch(t, h, "sendTx", tx)
	require.Nil(t, resp.Error)
	require.Equal(t, 1, h.pool.Size())
}

func TestSendTxRejectsTamperedSignature(t *testing.T) {
	h, _ := newTestHandler(t)

	priv, _, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	tx, err := chain.NewTransaction(chain.TxReliabilitySignal, 0, 0, map[string]string{"job_id": "j1"})
	require.NoError(t, err)
	tx.Sign(priv)
	tx.Sig = "00"

	resp := dispatch(t, h, "sendTx", tx)
	require.NotNil(t, resp.Error)
	require.Zero(t, h.pool.Size())
}

func TestGetMempoolSize(t *testing.T) {
	h, _ := newTestHandler(t)
	resp := dispatch(t, h, "getMempoolSize", map[string]any{})
	require.Nil(t, resp.Error)
	require.EqualValues(t, 0, resp.Result)
}

func TestDispatchMethodNotFound(t *testing.T) {
	h, _ := newTestHandler(t)
	resp := dispatch(t, h, "noSuchMethod", map[string]any{})
	require.NotNil(t, resp.Error)
	require.Equal(t, CodeMethodNotFound, resp.Error.Code)
}

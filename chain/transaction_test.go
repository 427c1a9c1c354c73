package chain

import (
	"encoding/json"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/stretchr/testify/require"
)

func newKey(t *testing.T) *btcec.PrivateKey {
	t.Helper()
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	return priv
}

func TestCalculateHashIsDeterministic(t *testing.T) {
	tx := &Transaction{BlockIndex: 3}
	tx.AddInput(UTXO{TxHash: "abc", OutputIndex: 0})
	tx.AddOutput(10, "0xrecipient")

	h1 := tx.CalculateHash()
	h2 := tx.CalculateHash()
	content := tx.contentString()
	require.NotEmpty(t, h1)
	require.Equal(t, h1, h2)
	require.Contains(t, content, "abc:0")
	require.Contains(t, content, "10:0xrecipient")
}

func TestSignAndVerifySignatureRoundTrip(t *testing.T) {
	priv := newKey(t)
	tx := &Transaction{BlockIndex: 1}
	tx.AddOutput(50, "0xminer")
	tx.CalculateHash()
	tx.Sign(priv)

	require.True(t, tx.VerifySignature())
}

func TestVerifySignatureFailsIfHashChangedAfterSigning(t *testing.T) {
	priv := newKey(t)
	tx := &Transaction{BlockIndex: 1}
	tx.AddOutput(50, "0xminer")
	tx.CalculateHash()
	tx.Sign(priv)

	tx.TxHash = "tampered"
	require.False(t, tx.VerifySignature())
}

func TestIsCoinbase(t *testing.T) {
	cb := NewCoinbase("0xminer", 2)
	require.True(t, cb.IsCoinbase())
	require.Equal(t, int64(CoinbaseReward), cb.Outputs[0].Amount)

	spend := &Transaction{}
	spend.AddInput(UTXO{TxHash: "x", OutputIndex: 0})
	require.False(t, spend.IsCoinbase())
}

func TestTransactionJSONRoundTrip(t *testing.T) {
	priv := newKey(t)
	tx := &Transaction{BlockIndex: 4}
	tx.AddInput(UTXO{TxHash: "parent", OutputIndex: 1, Amount: 10, RecipientAddress: "0xsender"})
	tx.AddOutput(10, "0xrecipient")
	tx.CalculateHash()
	tx.Sign(priv)

	encoded, err := json.Marshal(tx)
	require.NoError(t, err)

	var decoded Transaction
	require.NoError(t, json.Unmarshal(encoded, &decoded))

	require.Equal(t, tx.TxHash, decoded.TxHash)
	require.Equal(t, tx.Signature, decoded.Signature)
	require.Equal(t, tx.SenderPublicKey, decoded.SenderPublicKey)
	require.True(t, decoded.VerifySignature())
}

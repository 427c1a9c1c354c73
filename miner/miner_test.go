package miner

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/koabula/peercoin-node/chain"
)

func never() bool { return false }

func TestAttemptProducesValidProofOfWork(t *testing.T) {
	idx := chain.NewUTXOIndex()
	block, included, excluded, ok := Attempt(1, "previoushash", nil, idx, "0xminer", never)

	require.True(t, ok)
	require.True(t, chain.HasValidProofOfWork(block.Hash, chain.Difficulty))
	require.Len(t, included, 1)
	require.True(t, included[0].IsCoinbase())
	require.Empty(t, excluded)
}

func TestAttemptHonorsInterruptImmediately(t *testing.T) {
	idx := chain.NewUTXOIndex()
	_, _, _, ok := Attempt(1, "previoushash", nil, idx, "0xminer", func() bool { return true })
	require.False(t, ok)
}

func TestAttemptExcludesInvalidMempoolTransactions(t *testing.T) {
	idx := chain.NewUTXOIndex()

	bad := &chain.Transaction{BlockIndex: 1}
	bad.AddInput(chain.UTXO{TxHash: "ghost", OutputIndex: 0})
	bad.AddOutput(10, "0xrecipient")
	bad.CalculateHash()

	_, included, excluded, ok := Attempt(1, "previoushash", []*chain.Transaction{bad}, idx, "0xminer", never)
	require.True(t, ok)
	require.Len(t, included, 1)
	require.True(t, included[0].IsCoinbase())
	require.Len(t, excluded, 1)
	require.Equal(t, bad.TxHash, excluded[0].TxHash)
}

package chain

import (
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/stretchr/testify/require"
)

func TestValidateCoinbaseAcceptsExactReward(t *testing.T) {
	cb := NewCoinbase("0xminer", 1)
	require.NoError(t, ValidateCoinbase(cb))
}

func TestValidateCoinbaseRejectsWrongAmount(t *testing.T) {
	cb := &Transaction{BlockIndex: 1}
	cb.AddOutput(999, "0xminer")
	cb.CalculateHash()
	require.ErrorIs(t, ValidateCoinbase(cb), ErrBadCoinbase)
}

func TestValidateSpendChecksBalanceAndSignature(t *testing.T) {
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	funding := UTXO{TxHash: "parenttx", OutputIndex: 0, Amount: 10, RecipientAddress: "0xsender"}
	idx := NewUTXOIndex()
	idx.Put(funding)

	tx := &Transaction{BlockIndex: 1}
	tx.AddInput(funding)
	tx.AddOutput(10, "0xrecipient")
	tx.CalculateHash()
	tx.Sign(priv)

	require.NoError(t, ValidateSpend(tx, idx, map[string]bool{}))
}

func TestValidateSpendRejectsAmountMismatch(t *testing.T) {
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	funding := UTXO{TxHash: "parenttx", OutputIndex: 0, Amount: 10, RecipientAddress: "0xsender"}
	idx := NewUTXOIndex()
	idx.Put(funding)

	tx := &Transaction{BlockIndex: 1}
	tx.AddInput(funding)
	tx.AddOutput(999, "0xrecipient")
	tx.CalculateHash()
	tx.Sign(priv)

	require.ErrorIs(t, ValidateSpend(tx, idx, map[string]bool{}), ErrAmountMismatch)
}

func TestValidateSpendRejectsMissingUTXO(t *testing.T) {
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	idx := NewUTXOIndex()
	tx := &Transaction{BlockIndex: 1}
	tx.AddInput(UTXO{TxHash: "ghost", OutputIndex: 0})
	tx.AddOutput(10, "0xrecipient")
	tx.CalculateHash()
	tx.Sign(priv)

	require.ErrorIs(t, ValidateSpend(tx, idx, map[string]bool{}), ErrUTXOMissing)
}

func TestValidateSpendRejectsDoubleSpendWithinBlock(t *testing.T) {
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	funding := UTXO{TxHash: "parenttx", OutputIndex: 0, Amount: 10, RecipientAddress: "0xsender"}
	idx := NewUTXOIndex()
	idx.Put(funding)

	tx := &Transaction{BlockIndex: 1}
	tx.AddInput(funding)
	tx.AddOutput(10, "0xrecipient")
	tx.CalculateHash()
	tx.Sign(priv)

	used := map[string]bool{}
	require.NoError(t, ValidateSpend(tx, idx, used))
	require.ErrorIs(t, ValidateSpend(tx, idx, used), ErrDoubleSpend)
}

func TestVerifyBlockTransactionsPrunesInvalidEntries(t *testing.T) {
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	idx := NewUTXOIndex()
	cb := NewCoinbase("0xminer", 1)

	badTx := &Transaction{BlockIndex: 1}
	badTx.AddInput(UTXO{TxHash: "ghost", OutputIndex: 0})
	badTx.AddOutput(10, "0xrecipient")
	badTx.CalculateHash()
	badTx.Sign(priv)

	valid, excluded := VerifyBlockTransactions([]*Transaction{cb, badTx}, idx)
	require.Len(t, valid, 1)
	require.Equal(t, cb.TxHash, valid[0].TxHash)
	require.Len(t, excluded, 1)
	require.Equal(t, badTx.TxHash, excluded[0].TxHash)
}

func TestProcessBlockTransactionsUpdatesIndex(t *testing.T) {
	idx := NewUTXOIndex()
	cb := NewCoinbase("0xminer", 0)
	ProcessBlockTransactions([]*Transaction{cb}, idx)

	require.Equal(t, int64(CoinbaseReward), idx.Balance("0xminer"))
	require.Equal(t, 1, idx.Len())
}

func TestUTXOIndexSnapshotRestore(t *testing.T) {
	idx := NewUTXOIndex()
	idx.Put(UTXO{TxHash: "a", OutputIndex: 0, Amount: 5, RecipientAddress: "0xone"})

	snap := idx.Snapshot()
	idx.Put(UTXO{TxHash: "b", OutputIndex: 0, Amount: 7, RecipientAddress: "0xtwo"})
	require.Equal(t, 2, idx.Len())

	idx.Restore(snap)
	require.Equal(t, 1, idx.Len())
}

package chain

import "fmt"

// UTXOIndex is the global set of unspent outputs, keyed by
// "tx_hash:output_index". It holds no lock of its own — callers (the node
// package) serialize access to it under the same lock that guards the
// chain, since the two must always be mutated together.
type UTXOIndex struct {
	entries map[string]UTXO
}

// NewUTXOIndex returns an empty index.
func NewUTXOIndex() *UTXOIndex {
	return &UTXOIndex{entries: make(map[string]UTXO)}
}

// Put inserts or overwrites a UTXO.
func (idx *UTXOIndex) Put(u UTXO) {
	idx.entries[u.Key()] = u
}

// Remove deletes a UTXO by key.
func (idx *UTXOIndex) Remove(key string) {
	delete(idx.entries, key)
}

// Get looks up a UTXO by key.
func (idx *UTXOIndex) Get(key string) (UTXO, bool) {
	u, ok := idx.entries[key]
	return u, ok
}

// Balance sums every unspent output paying address.
func (idx *UTXOIndex) Balance(address string) int64 {
	var total int64
	for _, u := range idx.entries {
		if u.RecipientAddress == address {
			total += u.Amount
		}
	}
	return total
}

// SpendableFor returns every unspent output paying address, in no
// particular order.
func (idx *UTXOIndex) SpendableFor(address string) []UTXO {
	var out []UTXO
	for _, u := range idx.entries {
		if u.RecipientAddress == address {
			out = append(out, u)
		}
	}
	return out
}

// Snapshot returns a copy of the index's entries; together with Restore it
// gives a caller a private copy of the index to work on outside the chain
// lock.
func (idx *UTXOIndex) Snapshot() map[string]UTXO {
	cp := make(map[string]UTXO, len(idx.entries))
	for k, v := range idx.entries {
		cp[k] = v
	}
	return cp
}

// Restore replaces the index's entries with a previously taken snapshot.
func (idx *UTXOIndex) Restore(snapshot map[string]UTXO) {
	idx.entries = snapshot
}

// Len returns the number of unspent outputs tracked.
func (idx *UTXOIndex) Len() int {
	return len(idx.entries)
}

// ValidateCoinbase checks that tx is a well-formed block reward: no inputs,
// exactly one output, and that output paying exactly CoinbaseReward.
func ValidateCoinbase(tx *Transaction) error {
	if !tx.IsCoinbase() {
		return fmt.Errorf("%w: coinbase has inputs", ErrBadCoinbase)
	}
	if len(tx.Outputs) != 1 {
		return fmt.Errorf("%w: coinbase must have exactly one output", ErrBadCoinbase)
	}
	if tx.Outputs[0].Amount != CoinbaseReward {
		return fmt.Errorf("%w: coinbase pays %d, want %d", ErrBadCoinbase, tx.Outputs[0].Amount, CoinbaseReward)
	}
	return nil
}

// ValidateSpend checks a non-coinbase transaction against idx and a set of
// keys already consumed earlier in the same block (used): every input must
// exist and be unspent, the signature must verify, and total input amount
// must equal total output amount.
func ValidateSpend(tx *Transaction, idx *UTXOIndex, used map[string]bool) error {
	if tx.IsCoinbase() {
		return fmt.Errorf("%w: expected a spending transaction", ErrBadCoinbase)
	}
	if !tx.VerifySignature() {
		return ErrSignatureInvalid
	}

	var inputTotal int64
	for _, in := range tx.Inputs {
		key := in.Key()
		if used[key] {
			return ErrDoubleSpend
		}
		stored, ok := idx.Get(key)
		if !ok {
			return ErrUTXOMissing
		}
		inputTotal += stored.Amount
	}

	var outputTotal int64
	for _, out := range tx.Outputs {
		outputTotal += out.Amount
	}

	if inputTotal != outputTotal {
		return ErrAmountMismatch
	}

	for _, in := range tx.Inputs {
		used[in.Key()] = true
	}
	return nil
}

// VerifyBlockTransactions checks an ordered transaction list the way a
// candidate block's body is checked before mining or accepting it: the
// first transaction must be a valid coinbase, and every transaction after
// it must be a valid spend against idx with no UTXO reused twice within the
// block. It returns the subset that passed, in order, and separately the
// subset that failed, preserving the reference implementation's behavior of
// pruning bad transactions rather than rejecting the whole block — callers
// are expected to also drop the excluded set from the mempool.
func VerifyBlockTransactions(txs []*Transaction, idx *UTXOIndex) (valid, excluded []*Transaction) {
	if len(txs) == 0 {
		return nil, nil
	}

	used := make(map[string]bool)

	if err := ValidateCoinbase(txs[0]); err == nil {
		valid = append(valid, txs[0])
	} else {
		excluded = append(excluded, txs[0])
	}

	for _, tx := range txs[1:] {
		if err := ValidateSpend(tx, idx, used); err == nil {
			valid = append(valid, tx)
		} else {
			excluded = append(excluded, tx)
		}
	}
	return valid, excluded
}

// ProcessBlockTransactions folds a block's (already-validated) transactions
// into idx: every input is removed, every output is added. The coinbase is
// expected first and processed the same way as any other transaction (it
// simply has no inputs to remove).
func ProcessBlockTransactions(txs []*Transaction, idx *UTXOIndex) {
	for _, tx := range txs {
		for _, in := range tx.Inputs {
			idx.Remove(in.Key())
		}
		for _, out := range tx.Outputs {
			idx.Put(out)
		}
	}
}

// VerifyBlockchainTransactions replays every block's transactions over a
// fresh index from genesis, used to validate a whole candidate chain
// received from a peer. It returns the resulting index on success. On
// failure the caller's existing index is left untouched since this builds
// a new one rather than mutating in place.
func VerifyBlockchainTransactions(blocks []*Block) (*UTXOIndex, error) {
	idx := NewUTXOIndex()
	for _, b := range blocks {
		txs := b.Transactions()
		if len(txs) == 0 {
			continue
		}
		valid, _ := VerifyBlockTransactions(txs, idx)
		if len(valid) != len(txs) {
			return nil, fmt.Errorf("%w: block %d contains an invalid transaction", ErrBadCoinbase, b.Index)
		}
		ProcessBlockTransactions(valid, idx)
	}
	return idx, nil
}

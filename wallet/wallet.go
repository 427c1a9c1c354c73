// Package wallet holds a node's own signing key, its derived address, and
// its locally cached view of the UTXOs it owns.
package wallet

import (
	"fmt"
	"sync"

	"github.com/koabula/peercoin-node/chain"
	"github.com/koabula/peercoin-node/cryptoutil"
)

// Wallet is the key material and spendable-output cache for one node
// identity. A node has exactly one wallet; there is no multi-wallet
// management here since nothing in this system has a UI to pick between
// them.
type Wallet struct {
	keys    *cryptoutil.KeyPair
	address string

	mu       sync.RWMutex
	utxoPool []chain.UTXO
}

// New generates a fresh key pair and derives its address.
func New() (*Wallet, error) {
	keys, err := cryptoutil.GenerateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("wallet: %w", err)
	}
	return &Wallet{
		keys:    keys,
		address: cryptoutil.DeriveAddress(keys.Public),
	}, nil
}

// Address returns the wallet's address.
func (w *Wallet) Address() string {
	return w.address
}

// Balance sums the wallet's cached spendable outputs.
func (w *Wallet) Balance() int64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	var total int64
	for _, u := range w.utxoPool {
		total += u.Amount
	}
	return total
}

// UTXOPool returns a copy of the wallet's cached spendable outputs.
func (w *Wallet) UTXOPool() []chain.UTXO {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]chain.UTXO, len(w.utxoPool))
	copy(out, w.utxoPool)
	return out
}

// SyncUTXO refreshes the wallet's cached view from the authoritative
// global index. Call after every block is mined or accepted.
func (w *Wallet) SyncUTXO(idx *chain.UTXOIndex) {
	fresh := idx.SpendableFor(w.address)
	w.mu.Lock()
	w.utxoPool = fresh
	w.mu.Unlock()
}

// CreateTransaction builds and signs a transaction paying amount to
// recipient, selecting spendable outputs greedily (in cache order) until
// the amount is covered, and returning any excess as a change output back
// to the wallet's own address. It returns ErrInsufficientFunds if the
// cached pool can't cover amount.
//
// The wallet does not remove the spent UTXOs from its own cache here —
// they stay until the cache is refreshed by SyncUTXO once the enclosing
// block is mined or accepted, matching the reference implementation.
func (w *Wallet) CreateTransaction(amount int64, recipient string, blockIndex int) (*chain.Transaction, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", chain.ErrAmountMismatch)
	}

	w.mu.RLock()
	pool := make([]chain.UTXO, len(w.utxoPool))
	copy(pool, w.utxoPool)
	w.mu.RUnlock()

	var selected []chain.UTXO
	var total int64
	for _, u := range pool {
		selected = append(selected, u)
		total += u.Amount
		if total >= amount {
			break
		}
	}
	if total < amount {
		return nil, chain.ErrInsufficientFunds
	}

	tx := &chain.Transaction{BlockIndex: blockIndex}
	for _, u := range selected {
		tx.AddInput(u)
	}
	tx.AddOutput(amount, recipient)
	if change := total - amount; change > 0 {
		tx.AddOutput(change, w.address)
	}
	tx.CalculateHash()
	tx.Sign(w.keys.Private)

	return tx, nil
}

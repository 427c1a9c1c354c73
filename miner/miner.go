// Package miner implements the proof-of-work search that turns a mempool
// snapshot into a new block.
package miner

import (
	"time"

	"github.com/koabula/peercoin-node/chain"
)

// Attempt mines one candidate block on top of a chain tip.
//
// mempoolTxs should be a snapshot taken under the mempool lock before
// calling Attempt — mining does not hold that lock itself, since the
// search can run for an unbounded time and must not block transactions
// arriving from peers.
//
// interrupted is polled once per nonce; when it returns true, Attempt
// abandons the search and returns ok=false. This lets the caller cancel
// mining as soon as a block from a peer makes the in-progress attempt
// moot, mirroring the reference implementation's getBlock/foundExternal
// flag.
//
// excluded reports mempool transactions pruned as invalid (double-spends,
// missing UTXOs, bad signatures) — the caller must also drop these from the
// mempool, or they would be retried and silently excluded forever.
func Attempt(height int, previousHash string, mempoolTxs []*chain.Transaction, idx *chain.UTXOIndex, minerAddress string, interrupted func() bool) (block *chain.Block, included, excluded []*chain.Transaction, ok bool) {
	coinbase := chain.NewCoinbase(minerAddress, height)
	candidate := append([]*chain.Transaction{coinbase}, mempoolTxs...)

	valid, invalid := chain.VerifyBlockTransactions(candidate, idx)

	timestamp := time.Now().Unix()
	b := chain.NewBlock(height, valid, previousHash, 0, timestamp, minerAddress)
	for nonce := 0; ; nonce++ {
		if interrupted() {
			return nil, nil, nil, false
		}
		b.SetNonce(nonce)
		if chain.HasValidProofOfWork(b.Hash, chain.Difficulty) {
			return b, valid, invalid, true
		}
	}
}

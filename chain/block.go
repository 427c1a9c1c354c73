package chain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/koabula/peercoin-node/merkle"
)

// Block is a single link in the chain. Its transactions are not a separate
// field: each transaction is serialized to JSON and used as one Merkle
// leaf, so the Merkle tree is simultaneously the transaction list and its
// own commitment. This mirrors the reference implementation, which builds
// a block's Merkle tree directly from `json.dumps(tx.to_json())` strings
// and recovers transactions later by parsing each leaf.
type Block struct {
	Index        int
	Timestamp    int64
	MerkleTree   *merkle.Tree
	MerkleRoot   string
	PreviousHash string
	Nonce        int
	MinerAddress string
	Hash         string
}

// NewBlock builds a block's Merkle tree from txs (coinbase first), stamps
// MerkleRoot and Hash, but does not mine it — callers drive the nonce
// search themselves (see the miner package) so that an externally-arrived
// block can interrupt the search.
func NewBlock(index int, txs []*Transaction, previousHash string, nonce int, timestamp int64, minerAddress string) *Block {
	tree := merkle.New(leavesFor(txs))

	b := &Block{
		Index:        index,
		Timestamp:    timestamp,
		MerkleTree:   tree,
		MerkleRoot:   tree.RootHash(),
		PreviousHash: previousHash,
		Nonce:        nonce,
		MinerAddress: minerAddress,
	}
	b.Hash = b.calculateHash()
	return b
}

func leavesFor(txs []*Transaction) []string {
	leaves := make([]string, len(txs))
	for i, tx := range txs {
		encoded, err := json.Marshal(tx)
		if err != nil {
			// Transaction JSON-encoding only fails on a programmer error
			// (an unmarshalable field), never on untrusted input.
			panic(fmt.Sprintf("chain: encode transaction leaf: %v", err))
		}
		leaves[i] = string(encoded)
	}
	return leaves
}

// Transactions parses each Merkle leaf back into a Transaction, skipping
// any leaf that isn't valid transaction JSON (the genesis block's single
// leaf is a plain string and is silently skipped this way, matching the
// reference implementation's behavior).
func (b *Block) Transactions() []*Transaction {
	if b.MerkleTree == nil {
		return nil
	}
	var txs []*Transaction
	for _, leaf := range b.MerkleTree.Leaves() {
		if leaf.Data == nil {
			continue
		}
		var tx Transaction
		if err := json.Unmarshal([]byte(*leaf.Data), &tx); err != nil {
			continue
		}
		txs = append(txs, &tx)
	}
	return txs
}

// calculateHash computes the block hash: SHA256 of the index, timestamp,
// merkle root, previous hash and nonce, each rendered as a decimal/plain
// string and concatenated with no separators.
func (b *Block) calculateHash() string {
	s := strconv.Itoa(b.Index) +
		strconv.FormatInt(b.Timestamp, 10) +
		b.MerkleRoot +
		b.PreviousHash +
		strconv.Itoa(b.Nonce)
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// SetNonce updates Nonce and recomputes Hash, without rebuilding the Merkle
// tree. Used by the mining loop's brute-force search.
func (b *Block) SetNonce(nonce int) {
	b.Nonce = nonce
	b.Hash = b.calculateHash()
}

// HasValidProofOfWork reports whether Hash begins with difficulty '0'
// characters. This is a string predicate over the hex digest, not a
// big.Int numeric threshold — and it is deliberately reused both to accept
// a finished block and as the mining loop's own stopping condition.
func HasValidProofOfWork(hash string, difficulty int) bool {
	if len(hash) < difficulty {
		return false
	}
	for i := 0; i < difficulty; i++ {
		if hash[i] != '0' {
			return false
		}
	}
	return true
}

type wireBlock struct {
	Index        int          `json:"index"`
	Timestamp    int64        `json:"timestamp"`
	MerkleTree   *merkle.Tree `json:"merkle_tree"`
	PreviousHash string       `json:"previous_hash"`
	Nonce        int          `json:"nonce"`
	MinerAddress string       `json:"miner_address"`
	Hash         string       `json:"hash"`
}

// MarshalJSON renders the block for the wire.
func (b *Block) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireBlock{
		Index:        b.Index,
		Timestamp:    b.Timestamp,
		MerkleTree:   b.MerkleTree,
		PreviousHash: b.PreviousHash,
		Nonce:        b.Nonce,
		MinerAddress: b.MinerAddress,
		Hash:         b.Hash,
	})
}

// UnmarshalJSON reconstructs a block from its wire form, trusting the
// stored hash and Merkle tree rather than recomputing them (the caller is
// expected to validate with HasValidProofOfWork and a hash recompute
// afterward).
func (b *Block) UnmarshalJSON(data []byte) error {
	var w wireBlock
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("%w: %v", ErrDecodeError, err)
	}
	b.Index = w.Index
	b.Timestamp = w.Timestamp
	b.MerkleTree = w.MerkleTree
	if w.MerkleTree != nil {
		b.MerkleRoot = w.MerkleTree.RootHash()
	}
	b.PreviousHash = w.PreviousHash
	b.Nonce = w.Nonce
	b.MinerAddress = w.MinerAddress
	b.Hash = w.Hash
	return nil
}

// RecomputeHash returns what Hash should be given the block's current
// fields, for validating a received block against tampering.
func (b *Block) RecomputeHash() string {
	return b.calculateHash()
}

// Genesis builds the fixed first block of the chain: index 0, a
// single-leaf Merkle tree over a constant string, an all-zero previous
// hash, and nonce 0 — never mined, matching the reference implementation's
// create_genesis_block.
func Genesis() *Block {
	tree := merkle.New([]string{"Genesis Block"})
	b := &Block{
		Index:        0,
		Timestamp:    0,
		MerkleTree:   tree,
		MerkleRoot:   tree.RootHash(),
		PreviousHash: "0",
		Nonce:        0,
	}
	b.Hash = b.calculateHash()
	return b
}

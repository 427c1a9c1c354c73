package chain

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/koabula/peercoin-node/cryptoutil"
)

// CoinbaseReward is the fixed amount minted by a block's coinbase output.
const CoinbaseReward = 50

// UTXO is a single unspent transaction output: an amount payable to an
// address, tagged with the transaction hash and output index that produced
// it so it can be referenced as a future input.
type UTXO struct {
	TxHash          string `json:"tx_hash"`
	OutputIndex     int    `json:"output_index"`
	Amount          int64  `json:"amount"`
	RecipientAddress string `json:"recipient_address"`
}

// Key identifies a UTXO uniquely within the global index.
func (u UTXO) Key() string {
	return u.TxHash + ":" + strconv.Itoa(u.OutputIndex)
}

// Transaction moves value from a set of existing outputs (Inputs) to a new
// set of outputs, signed by the sender's key. A coinbase transaction has no
// inputs and is not signed.
type Transaction struct {
	Inputs          []UTXO `json:"-"`
	Outputs         []UTXO `json:"-"`
	TxHash          string `json:"tx_hash"`
	Signature       []byte `json:"-"`
	SenderPublicKey []byte `json:"-"`
	BlockIndex      int    `json:"block_index"`
}

// wireTransaction mirrors the reference implementation's to_json/from_json:
// signature and public key are base64-encoded, everything else is plain
// JSON.
type wireTransaction struct {
	Inputs          []UTXO `json:"inputs"`
	Outputs         []UTXO `json:"outputs"`
	TxHash          string `json:"tx_hash"`
	Signature       string `json:"signature"`
	SenderPublicKey string `json:"sender_public_key"`
	BlockIndex      int    `json:"block_index"`
}

// MarshalJSON renders the transaction in the node's wire form.
func (t *Transaction) MarshalJSON() ([]byte, error) {
	w := wireTransaction{
		Inputs:     t.Inputs,
		Outputs:    t.Outputs,
		TxHash:     t.TxHash,
		BlockIndex: t.BlockIndex,
	}
	if t.Inputs == nil {
		w.Inputs = []UTXO{}
	}
	if t.Outputs == nil {
		w.Outputs = []UTXO{}
	}
	if t.Signature != nil {
		w.Signature = base64.StdEncoding.EncodeToString(t.Signature)
	}
	if t.SenderPublicKey != nil {
		w.SenderPublicKey = base64.StdEncoding.EncodeToString(t.SenderPublicKey)
	}
	return json.Marshal(w)
}

// UnmarshalJSON parses the node's wire form back into a Transaction.
func (t *Transaction) UnmarshalJSON(b []byte) error {
	var w wireTransaction
	if err := json.Unmarshal(b, &w); err != nil {
		return fmt.Errorf("%w: %v", ErrDecodeError, err)
	}
	t.Inputs = w.Inputs
	t.Outputs = w.Outputs
	t.TxHash = w.TxHash
	t.BlockIndex = w.BlockIndex
	if w.Signature != "" {
		sig, err := base64.StdEncoding.DecodeString(w.Signature)
		if err != nil {
			return fmt.Errorf("%w: signature: %v", ErrDecodeError, err)
		}
		t.Signature = sig
	}
	if w.SenderPublicKey != "" {
		pub, err := base64.StdEncoding.DecodeString(w.SenderPublicKey)
		if err != nil {
			return fmt.Errorf("%w: sender_public_key: %v", ErrDecodeError, err)
		}
		t.SenderPublicKey = pub
	}
	return nil
}

// AddInput appends a spent output reference to the transaction.
func (t *Transaction) AddInput(u UTXO) {
	t.Inputs = append(t.Inputs, u)
}

// AddOutput appends a new output paying amount to recipient. The output's
// TxHash is left blank until CalculateHash is called, matching the
// reference implementation's two-phase construction.
func (t *Transaction) AddOutput(amount int64, recipient string) {
	t.Outputs = append(t.Outputs, UTXO{
		OutputIndex:      len(t.Outputs),
		Amount:           amount,
		RecipientAddress: recipient,
	})
}

// contentString builds the canonical content string that CalculateHash
// hashes: every input as "tx_hash:output_index", every output as
// "amount:recipient_address", then the block index, all concatenated with
// no separators.
func (t *Transaction) contentString() string {
	s := ""
	for _, in := range t.Inputs {
		s += in.TxHash + ":" + strconv.Itoa(in.OutputIndex)
	}
	for _, out := range t.Outputs {
		s += strconv.FormatInt(out.Amount, 10) + ":" + out.RecipientAddress
	}
	s += strconv.Itoa(t.BlockIndex)
	return s
}

// CalculateHash computes and stores TxHash, then stamps every output with
// that hash (outputs are only valid UTXOs once their parent tx hash is
// known).
func (t *Transaction) CalculateHash() string {
	sum := sha256.Sum256([]byte(t.contentString()))
	t.TxHash = hex.EncodeToString(sum[:])
	for i := range t.Outputs {
		t.Outputs[i].TxHash = t.TxHash
	}
	return t.TxHash
}

// Sign signs the transaction with priv. TxHash must already be set. The
// signed digest is SHA256 of the ASCII hex string of TxHash, not the raw
// hash bytes — a reference-implementation quirk preserved for wire
// compatibility, not corrected here.
func (t *Transaction) Sign(priv *btcec.PrivateKey) {
	t.Signature = cryptoutil.SignDigest(priv, t.TxHash)
	t.SenderPublicKey = priv.PubKey().SerializeUncompressed()
}

// VerifySignature checks Signature against SenderPublicKey and TxHash. It
// returns false (never an error) on any malformed-signature condition,
// matching the reference implementation's try/except-turned-bool.
func (t *Transaction) VerifySignature() bool {
	if t.Signature == nil || t.SenderPublicKey == nil || t.TxHash == "" {
		return false
	}
	pub, err := cryptoutil.ParsePublicKey(t.SenderPublicKey)
	if err != nil {
		return false
	}
	return cryptoutil.VerifyDigest(pub, t.TxHash, t.Signature)
}

// IsCoinbase reports whether this transaction mints new coins rather than
// spending existing outputs.
func (t *Transaction) IsCoinbase() bool {
	return len(t.Inputs) == 0
}

// NewCoinbase builds the block reward transaction paying CoinbaseReward to
// minerAddress at the given block index, with its hash already calculated.
func NewCoinbase(minerAddress string, blockIndex int) *Transaction {
	tx := &Transaction{BlockIndex: blockIndex}
	tx.AddOutput(CoinbaseReward, minerAddress)
	tx.CalculateHash()
	return tx
}

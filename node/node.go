// Package node assembles the chain, mempool, wallet, and peer table behind
// a small set of coarse locks, and drives the background loops (mining,
// heartbeat, peer sync) that keep a running node alive.
package node

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/vrecan/death/v3"
	"go.uber.org/zap"

	"github.com/koabula/peercoin-node/chain"
	"github.com/koabula/peercoin-node/metrics"
	"github.com/koabula/peercoin-node/miner"
	"github.com/koabula/peercoin-node/p2p"
	"github.com/koabula/peercoin-node/wallet"
)

// Port is the fixed TCP port every node listens on. Peers are identified by
// bare IP address; the port is never part of the peer set.
const Port = "5000"

// helloInterval and staleAfter control the peer liveness heartbeat: every
// node announces itself on helloInterval, and a peer not heard from for
// staleAfter is dropped.
const (
	helloInterval = 5 * time.Second
	staleAfter    = 10 * time.Second
	syncInterval  = 1 * time.Second
)

// Node is one running participant: it holds the chain, the global UTXO
// index, the mempool, the peer table, and its own wallet, and exposes the
// operations a front end (shell, GUI, test harness) would call.
type Node struct {
	logger *zap.Logger
	selfIP string

	wallet *wallet.Wallet

	listener net.Listener

	chainMu sync.Mutex
	chain   *chain.Blockchain
	utxo    *chain.UTXOIndex

	mempoolMu sync.Mutex
	mempool   []*chain.Transaction

	dataMu    sync.Mutex
	dataQueue []string

	signalMu      sync.Mutex
	foundExternal bool

	peersMu   sync.Mutex
	peers     map[string]struct{}
	helloSeen map[string]time.Time

	stopCh chan struct{}
}

// New constructs a node identified by selfIP, seeded with 127.0.0.1 as its
// only known peer, matching the reference implementation's seed list.
func New(selfIP string, logger *zap.Logger) (*Node, error) {
	w, err := wallet.New()
	if err != nil {
		return nil, fmt.Errorf("node: %w", err)
	}

	n := &Node{
		logger:    logger,
		selfIP:    selfIP,
		wallet:    w,
		chain:     chain.NewBlockchain(),
		utxo:      chain.NewUTXOIndex(),
		dataQueue: []string{fmt.Sprintf("Created by %s", selfIP)},
		peers:     map[string]struct{}{"127.0.0.1": {}},
		helloSeen: make(map[string]time.Time),
		stopCh:    make(chan struct{}),
	}
	return n, nil
}

// Address returns this node's peer address (its own IP).
func (n *Node) Address() string { return n.selfIP }

// ReadWalletAddress returns the node's coin address.
func (n *Node) ReadWalletAddress() string { return n.wallet.Address() }

// ReadBalance returns the node's locally cached wallet balance.
func (n *Node) ReadBalance() int64 { return n.wallet.Balance() }

// Start binds the listener, announces this node to its peers, and launches
// the background goroutines that keep it running: connection dispatch,
// heartbeat, mining, and wallet UTXO resync.
func (n *Node) Start() error {
	ln, err := net.Listen("tcp", net.JoinHostPort(n.selfIP, Port))
	if err != nil {
		return fmt.Errorf("node: listen: %w", err)
	}
	n.listener = ln

	n.broadcast(p2p.TagJoin, n.selfIP)

	go p2p.Serve(ln, n.logger, n.dispatch)
	go n.helloLoop()
	go n.mineLoop()
	go n.syncLoop()
	go n.watchShutdown()

	n.logger.Info("node started", zap.String("address", n.selfIP), zap.String("wallet_address", n.wallet.Address()))
	return nil
}

// Stop closes the listener and signals background loops to exit.
func (n *Node) Stop() {
	close(n.stopCh)
	if n.listener != nil {
		n.listener.Close()
	}
}

// watchShutdown ties process signals to Stop via death/v3. There is no
// database handle to close (this node keeps no persistent storage); the
// shutdown closes the listener and signals the background loops.
func (n *Node) watchShutdown() {
	d := death.NewDeath(syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	d.WaitForDeathWithFunc(func() {
		n.logger.Info("shutting down")
		n.Stop()
	})
}

// broadcast sends one message to every known peer except ourselves,
// best-effort: a peer that can't be reached is logged and otherwise
// ignored, never treated as a fatal error.
func (n *Node) broadcast(tag p2p.Tag, payload string) {
	n.peersMu.Lock()
	targets := make([]string, 0, len(n.peers))
	for peer := range n.peers {
		if peer == n.selfIP {
			continue
		}
		targets = append(targets, peer)
	}
	n.peersMu.Unlock()

	for _, peer := range targets {
		addr := net.JoinHostPort(peer, Port)
		if err := p2p.Dial(addr, tag, payload); err != nil {
			n.logger.Debug("peer unreachable", zap.String("peer", peer), zap.String("conn_id", uuid.NewString()), zap.Error(err))
		}
	}
	metrics.PeerCount.Set(float64(len(targets)))
}

// dispatch routes one received message to its handler, matching the exact
// tag table the reference implementation's handle_connection switches on.
func (n *Node) dispatch(tag p2p.Tag, payload string, from net.Addr) {
	switch tag {
	case p2p.TagData:
		n.handleData(payload)
	case p2p.TagHello:
		n.handleHello(payload)
	case p2p.TagJoin:
		n.handleJoin(payload)
	case p2p.TagIntroduce:
		n.handleIntroduce(payload)
	case p2p.TagOneBlock:
		n.handleOneBlock(payload)
	case p2p.TagBlockchainReq:
		n.handleBlockchainRequest(payload)
	case p2p.TagBlockchainReply:
		n.handleBlockchainReply(payload)
	case p2p.TagTransaction:
		n.handleTransaction(payload)
	default:
		n.logger.Debug("unhandled tag", zap.String("tag", string(tag)))
	}
}

func (n *Node) handleData(payload string) {
	n.dataMu.Lock()
	n.dataQueue = append(n.dataQueue, payload)
	n.dataMu.Unlock()
}

func (n *Node) handleHello(peer string) {
	n.peersMu.Lock()
	n.peers[peer] = struct{}{}
	n.helloSeen[peer] = time.Now()
	n.peersMu.Unlock()
}

func (n *Node) handleJoin(peer string) {
	n.peersMu.Lock()
	n.peers[peer] = struct{}{}
	n.peersMu.Unlock()

	addr := net.JoinHostPort(peer, Port)
	if err := p2p.Dial(addr, p2p.TagIntroduce, n.selfIP); err != nil {
		n.logger.Debug("failed to introduce to new peer", zap.String("peer", peer), zap.Error(err))
	}
}

func (n *Node) handleIntroduce(peer string) {
	n.peersMu.Lock()
	n.peers[peer] = struct{}{}
	n.peersMu.Unlock()
}

func (n *Node) handleTransaction(payload string) {
	var tx chain.Transaction
	if err := json.Unmarshal([]byte(payload), &tx); err != nil {
		n.logger.Debug("dropped malformed transaction", zap.Error(err))
		return
	}
	if !tx.VerifySignature() {
		n.logger.Debug("dropped transaction with invalid signature", zap.String("tx_hash", tx.TxHash))
		return
	}

	n.mempoolMu.Lock()
	defer n.mempoolMu.Unlock()
	for _, existing := range n.mempool {
		if existing.TxHash == tx.TxHash {
			return
		}
	}
	n.mempool = append(n.mempool, &tx)
	metrics.MempoolSize.Set(float64(len(n.mempool)))
}

// handleOneBlock processes a block gossiped by a peer.
//
// If the block's index is more than one ahead of our height, we request
// the sender's full chain instead of trying to append it — but we send
// that request to block.MinerAddress rather than to whoever relayed the
// message to us. Those are usually the same peer but are not guaranteed to
// be; this is a reference-implementation quirk preserved deliberately, not
// corrected.
func (n *Node) handleOneBlock(payload string) {
	var b chain.Block
	if err := json.Unmarshal([]byte(payload), &b); err != nil {
		n.logger.Debug("dropped malformed block", zap.Error(err))
		return
	}

	n.chainMu.Lock()
	height := n.chain.Height()
	n.chainMu.Unlock()

	if b.Index > height+1 {
		addr := net.JoinHostPort(b.MinerAddress, Port)
		if err := p2p.Dial(addr, p2p.TagBlockchainReq, n.selfIP); err != nil {
			n.logger.Debug("failed to request blockchain", zap.String("peer", b.MinerAddress), zap.Error(err))
		}
		return
	}

	n.chainMu.Lock()
	defer n.chainMu.Unlock()

	if err := n.chain.IsBlockValid(&b); err != nil {
		n.logger.Debug("rejected block", zap.Int("index", b.Index), zap.Error(err))
		return
	}

	txs := b.Transactions()
	valid, _ := chain.VerifyBlockTransactions(txs, n.utxo)
	if len(valid) != len(txs) {
		n.logger.Debug("rejected block: invalid transactions", zap.Int("index", b.Index))
		return
	}

	n.signalMu.Lock()
	n.foundExternal = true
	n.signalMu.Unlock()

	n.chain.Append(&b)
	chain.ProcessBlockTransactions(valid, n.utxo)
	n.wallet.SyncUTXO(n.utxo)

	metrics.ChainHeight.Set(float64(n.chain.Height()))
	metrics.UTXOSetSize.Set(float64(n.utxo.Len()))
	metrics.BlocksReceived.WithLabelValues("accepted").Inc()
	n.logger.Info("accepted block", zap.Int("index", b.Index), zap.String("hash", b.Hash))
}

func (n *Node) handleBlockchainRequest(requester string) {
	n.chainMu.Lock()
	blocks := n.chain.Blocks
	encoded, err := json.Marshal(blocks)
	n.chainMu.Unlock()
	if err != nil {
		n.logger.Error("failed to encode chain for request", zap.Error(err))
		return
	}

	addr := net.JoinHostPort(requester, Port)
	if err := p2p.Dial(addr, p2p.TagBlockchainReply, string(encoded)); err != nil {
		n.logger.Debug("failed to send blockchain", zap.String("peer", requester), zap.Error(err))
	}
}

func (n *Node) handleBlockchainReply(payload string) {
	var candidate []*chain.Block
	if err := json.Unmarshal([]byte(payload), &candidate); err != nil {
		n.logger.Debug("failed to decode blockchain reply", zap.Error(err))
		return
	}

	n.chainMu.Lock()
	currentLen := n.chain.Height()
	n.chainMu.Unlock()

	if len(candidate) <= currentLen {
		return
	}
	if err := chain.IsChainValid(candidate); err != nil {
		n.logger.Info("rejected blockchain: invalid chain", zap.Error(err))
		return
	}

	newIdx, err := chain.VerifyBlockchainTransactions(candidate)
	if err != nil {
		n.logger.Info("rejected blockchain: invalid transactions", zap.Error(err))
		return
	}

	n.chainMu.Lock()
	n.chain.ReplaceWith(candidate)
	n.utxo = newIdx
	n.wallet.SyncUTXO(n.utxo)
	metrics.UTXOSetSize.Set(float64(n.utxo.Len()))
	n.chainMu.Unlock()

	metrics.ChainHeight.Set(float64(len(candidate)))
	n.logger.Info("synchronized blockchain", zap.Int("height", len(candidate)))
}

// SubmitTransfer builds, signs, and broadcasts a transaction paying amount
// to recipient from this node's own wallet.
func (n *Node) SubmitTransfer(amount int64, recipient string) (*chain.Transaction, error) {
	n.chainMu.Lock()
	height := n.chain.Height()
	n.chainMu.Unlock()

	tx, err := n.wallet.CreateTransaction(amount, recipient, height)
	if err != nil {
		return nil, err
	}

	n.mempoolMu.Lock()
	n.mempool = append(n.mempool, tx)
	metrics.MempoolSize.Set(float64(len(n.mempool)))
	n.mempoolMu.Unlock()

	encoded, err := json.Marshal(tx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", chain.ErrDecodeError, err)
	}
	n.broadcast(p2p.TagTransaction, string(encoded))
	metrics.TransactionsRelayed.Inc()
	return tx, nil
}

func (n *Node) interrupted() bool {
	n.signalMu.Lock()
	defer n.signalMu.Unlock()
	return n.foundExternal
}

// mineLoop repeatedly snapshots the mempool and chain tip, runs a mining
// attempt against that snapshot outside any lock, and appends the result
// if nothing else interrupted it first. If the mempool still has entries
// once a block is mined, it starts the next attempt immediately instead of
// waiting, matching the reference implementation's recursive mine_thread.
func (n *Node) mineLoop() {
	for {
		select {
		case <-n.stopCh:
			return
		default:
		}

		n.mempoolMu.Lock()
		mempoolSnapshot := make([]*chain.Transaction, len(n.mempool))
		copy(mempoolSnapshot, n.mempool)
		n.mempoolMu.Unlock()

		n.chainMu.Lock()
		height := n.chain.Height()
		prevHash := n.chain.Tip().Hash
		utxoSnapshot := chain.NewUTXOIndex()
		utxoSnapshot.Restore(n.utxo.Snapshot())
		n.chainMu.Unlock()

		n.signalMu.Lock()
		n.foundExternal = false
		n.signalMu.Unlock()

		block, included, excluded, ok := miner.Attempt(height, prevHash, mempoolSnapshot, utxoSnapshot, n.wallet.Address(), n.interrupted)
		if !ok {
			continue
		}
		// The coinbase pays the wallet address; the block's MinerAddress is
		// this node's peer IP, where a peer that falls behind requests the chain.
		block.MinerAddress = n.selfIP

		n.chainMu.Lock()
		err := n.chain.IsBlockValid(block)
		if err == nil {
			n.chain.Append(block)
			chain.ProcessBlockTransactions(included, n.utxo)
			n.wallet.SyncUTXO(n.utxo)
			metrics.ChainHeight.Set(float64(n.chain.Height()))
			metrics.UTXOSetSize.Set(float64(n.utxo.Len()))
		}
		n.chainMu.Unlock()

		if err != nil {
			n.logger.Debug("mined block no longer valid", zap.Error(err))
			continue
		}

		encoded, encErr := json.Marshal(block)
		if encErr == nil {
			n.broadcast(p2p.TagOneBlock, string(encoded))
		}

		drop := make(map[string]bool, len(included)+len(excluded))
		for _, tx := range included {
			if !tx.IsCoinbase() {
				drop[tx.TxHash] = true
			}
		}
		for _, tx := range excluded {
			drop[tx.TxHash] = true
		}
		n.mempoolMu.Lock()
		var remaining []*chain.Transaction
		for _, tx := range n.mempool {
			if !drop[tx.TxHash] {
				remaining = append(remaining, tx)
			}
		}
		n.mempool = remaining
		mempoolNonEmpty := len(n.mempool) > 0
		metrics.MempoolSize.Set(float64(len(n.mempool)))
		n.mempoolMu.Unlock()

		metrics.BlocksMined.Inc()
		n.logger.Info("mined block", zap.Int("index", block.Index), zap.String("hash", block.Hash), zap.Int64("balance", n.wallet.Balance()))

		if !mempoolNonEmpty {
			time.Sleep(100 * time.Millisecond)
		}
	}
}

// helloLoop broadcasts a liveness heartbeat and evicts peers that have
// gone quiet, matching the reference implementation's 5-second announce /
// 10-second eviction cadence.
func (n *Node) helloLoop() {
	ticker := time.NewTicker(helloInterval)
	defer ticker.Stop()
	for {
		select {
		case <-n.stopCh:
			return
		case <-ticker.C:
			n.broadcast(p2p.TagHello, n.selfIP)

			now := time.Now()
			n.peersMu.Lock()
			for peer, last := range n.helloSeen {
				if now.Sub(last) > staleAfter {
					delete(n.peers, peer)
					delete(n.helloSeen, peer)
					n.logger.Debug("evicted stale peer", zap.String("peer", peer))
				}
			}
			n.peersMu.Unlock()
		}
	}
}

// syncLoop periodically refreshes the wallet's cached spendable-output
// view from the authoritative UTXO index.
func (n *Node) syncLoop() {
	ticker := time.NewTicker(syncInterval)
	defer ticker.Stop()
	for {
		select {
		case <-n.stopCh:
			return
		case <-ticker.C:
			n.chainMu.Lock()
			idxCopy := chain.NewUTXOIndex()
			idxCopy.Restore(n.utxo.Snapshot())
			n.chainMu.Unlock()
			n.wallet.SyncUTXO(idxCopy)
		}
	}
}

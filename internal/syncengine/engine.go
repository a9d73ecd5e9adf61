package syncengine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"neptunewallet/internal/archival"
	"neptunewallet/internal/keys"
	"neptunewallet/internal/mutatorset"
	"neptunewallet/internal/nodeclient"
	"neptunewallet/internal/spend"
	"neptunewallet/internal/walletstore"
	"neptunewallet/internal/wtypes"
)

// PrepareBatchSize is how many blocks FakeArchivalState.Prepare pulls ahead
// of the cursor in one round trip (§4.6 "main loop" step 1).
const PrepareBatchSize = 50

// idlePoll is how long a paused loop waits before re-checking its state.
const idlePoll = 10 * time.Second

// tipWait is how long the loop sleeps once it has caught up to the tip and
// is waiting for a new block to appear.
const tipWait = 60 * time.Second

// errorBackoff is how long the loop sleeps after a failed prefetch, fetch,
// fork check or ingest before retrying.
const errorBackoff = 5 * time.Second

// cancelTimeout bounds how long CancelSync waits for the loop to notice
// cancellation and settle into Stopped before giving up.
const cancelTimeout = 5 * time.Second

// Engine is the wallet's chain-following state machine (§4.6): a single
// goroutine that walks the canonical chain forward from the stored tip,
// scans each block against the key hierarchy, commits discoveries through
// WalletStore, detects and resolves reorgs, and periodically re-proves
// in-flight spends. Grounded on sync.rs's task-plus-channel shape.
type Engine struct {
	archival *archival.FakeArchivalState
	store    *walletstore.Store
	entropy  *keys.WalletEntropy
	keyCache *keys.Cache
	acc      *mutatorset.Accumulator
	node     *nodeclient.Client
	wallet   *spend.Wallet

	numFutureKeys uint64

	state      stateBox
	waiters    *waiters
	height     atomic.Uint64
	cancel     chan struct{}
	cancelOnce sync.Once
	resetReq   chan resetRequest
}

type resetRequest struct {
	height uint64
	digest wtypes.Digest
	done   chan error
}

func New(arc *archival.FakeArchivalState, store *walletstore.Store, entropy *keys.WalletEntropy, keyCache *keys.Cache, acc *mutatorset.Accumulator, node *nodeclient.Client, wallet *spend.Wallet, numFutureKeys uint64) *Engine {
	e := &Engine{
		archival:      arc,
		store:         store,
		entropy:       entropy,
		keyCache:      keyCache,
		acc:           acc,
		node:          node,
		wallet:        wallet,
		numFutureKeys: numFutureKeys,
		waiters:       newWaiters(),
		cancel:        make(chan struct{}),
		resetReq:      make(chan resetRequest),
	}
	e.state.store(Stopped)
	return e
}

// Start seeds the cursor height and the accumulator (from the tip block's
// after-state) from the store's current tip and spawns the ingest loop. Key
// watermarks are read from the store on every block. Returns once the
// initial state is loaded; the loop itself runs in the background until
// Stopped.
func (e *Engine) Start(ctx context.Context) error {
	height, _, ok, err := e.store.Tip(ctx)
	if err != nil {
		return fmt.Errorf("start sync engine: read tip: %w", err)
	}
	if ok {
		e.height.Store(height)
		tip, err := e.archival.GetBlockByHeight(ctx, height)
		if err != nil {
			return fmt.Errorf("start sync engine: fetch tip block: %w", err)
		}
		if tip != nil {
			e.acc.ResetTo(tip.AoclSizeAfter)
		}
	}

	if !e.state.cas(Stopped, Syncing) {
		return fmt.Errorf("start sync engine: already running (state %s)", e.state.load())
	}
	go e.run(ctx)
	return nil
}

func (e *Engine) run(ctx context.Context) {
	defer e.state.store(Stopped)

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.cancel:
			return
		case req := <-e.resetReq:
			req.done <- e.doReset(ctx, req.height, req.digest)
			continue
		default:
		}

		switch e.state.load() {
		case WaitPause:
			e.state.store(Paused)
			e.waiters.broadcast()
			continue
		case Paused:
			select {
			case <-ctx.Done():
				return
			case <-e.cancel:
				return
			case req := <-e.resetReq:
				req.done <- e.doReset(ctx, req.height, req.digest)
			case <-time.After(idlePoll):
			}
			continue
		}

		cur := e.height.Load()
		next := cur + 1

		if (next-1)%PrepareBatchSize == 0 || cur == 0 {
			if err := e.archival.Prepare(ctx, next, PrepareBatchSize); err != nil {
				time.Sleep(errorBackoff)
				continue
			}
		}

		block, err := e.archival.GetBlockByHeight(ctx, next)
		if err != nil {
			time.Sleep(errorBackoff)
			continue
		}
		if block == nil {
			// Caught up to the remote tip: re-prove near-tip pending
			// transactions, then wait for a new block to appear.
			e.tryReprovePending(ctx, cur)
			select {
			case <-ctx.Done():
				return
			case <-e.cancel:
				return
			case req := <-e.resetReq:
				req.done <- e.doReset(ctx, req.height, req.digest)
			case <-time.After(tipWait):
			}
			continue
		}

		if forked, err := e.detectFork(ctx, block); err != nil {
			time.Sleep(errorBackoff)
			continue
		} else if forked {
			continue // reorg walk already rewound the cursor; retry from there
		}

		if err := e.ingestBlock(ctx, block); err != nil {
			time.Sleep(errorBackoff)
			continue
		}

		e.height.Store(next)
	}
}

// detectFork checks the new block's parent against the stored tip digest.
// A mismatch means the remote chain reorganized underneath the wallet; this
// walks backward via GetBlockInfo until it finds a canonical ancestor, then
// rewinds WalletStore, the block cache and the local accumulator to that
// point (§4.6 "reorg handling").
func (e *Engine) detectFork(ctx context.Context, block *wtypes.ExportedBlock) (bool, error) {
	_, tipDigest, ok, err := e.store.Tip(ctx)
	if err != nil {
		return false, fmt.Errorf("detect fork: read tip: %w", err)
	}
	if !ok || block.Header.Height == 0 {
		return false, nil
	}
	if block.Header.PrevBlockDigest == tipDigest {
		return false, nil
	}

	walk := tipDigest
	var forkInfo *wtypes.BlockInfo
	for {
		info, err := e.node.GetBlockInfo(ctx, walk)
		if err != nil {
			return false, fmt.Errorf("reorg walk: %w", err)
		}
		if info == nil {
			return false, fmt.Errorf("reorg walk: ancestor %s not found", walk.String())
		}
		if info.IsCanonical {
			forkInfo = info
			break
		}
		walk = info.PrevBlockDigest
	}

	forkBlock, err := e.archival.GetBlockByDigest(ctx, forkInfo.Digest)
	if err != nil {
		return false, fmt.Errorf("reorg: refetch fork-point block: %w", err)
	}
	if forkBlock == nil {
		return false, fmt.Errorf("reorg: fork-point block %s vanished", forkInfo.Digest.String())
	}

	e.wallet.Lock()
	defer e.wallet.Unlock()

	if err := e.store.ReorganizeToHeight(ctx, forkInfo.Height, forkInfo.Digest); err != nil {
		return false, fmt.Errorf("reorg: rewind store: %w", err)
	}
	if err := e.archival.ResetToHeight(ctx, forkInfo.Height); err != nil {
		return false, fmt.Errorf("reorg: rewind cache: %w", err)
	}
	e.acc.ResetTo(forkBlock.AoclSizeAfter)
	e.height.Store(forkInfo.Height)
	return true, nil
}

// ingestBlock scans one block and commits the result, holding the spend
// lock for the duration (§5: "a spend never sees a partial block commit").
func (e *Engine) ingestBlock(ctx context.Context, block *wtypes.ExportedBlock) error {
	e.wallet.Lock()
	defer e.wallet.Unlock()

	watermarkGen, err := e.store.Watermark(ctx, 0)
	if err != nil {
		return fmt.Errorf("ingest block %d: read generation watermark: %w", block.Header.Height, err)
	}
	watermarkSym, err := e.store.Watermark(ctx, 1)
	if err != nil {
		return fmt.Errorf("ingest block %d: read symmetric watermark: %w", block.Header.Height, err)
	}
	rawHashKeys, err := e.store.RawHashKeys(ctx)
	if err != nil {
		return fmt.Errorf("ingest block %d: read raw hash keys: %w", block.Header.Height, err)
	}

	result := blockScan(e.entropy, e.keyCache, e.acc, e.numFutureKeys, watermarkGen, watermarkSym, rawHashKeys, block)

	removals := make([]wtypes.AbsoluteIndexSet, len(block.Removals))
	for i, r := range block.Removals {
		removals[i] = r.AbsoluteIndices
	}

	in := walletstore.BlockApplyInput{
		Height:          block.Header.Height,
		BlockDigest:     block.Hash(),
		Incoming:        result.incoming,
		BlockRemovals:   removals,
		GuesserPreimage: result.guesserPreimage,
	}
	if result.watermarkGen > watermarkGen {
		wm := result.watermarkGen
		in.WatermarkGen = &wm
	}
	if result.watermarkSym > watermarkSym {
		wm := result.watermarkSym
		in.WatermarkSym = &wm
	}

	if _, err := e.store.ApplyBlock(ctx, in); err != nil {
		return fmt.Errorf("ingest block %d: apply: %w", block.Header.Height, err)
	}
	return nil
}

// tryReprovePending runs the pending-transaction updater only when the
// chain is near real time, per ShouldUpdate's heuristic against the last
// ingested block's timestamp.
func (e *Engine) tryReprovePending(ctx context.Context, atHeight uint64) {
	block, err := e.archival.GetBlockByHeight(ctx, atHeight)
	if err != nil || block == nil {
		return
	}
	if !spend.ShouldUpdate(block.Header.Timestamp, time.Now()) {
		return
	}
	_ = e.wallet.ReProvePending(ctx)
}

// Status reports the engine's current lifecycle stage and cursor height.
func (e *Engine) Status() Status {
	return Status{State: e.state.load(), Height: e.height.Load()}
}

// ResetToHeight pauses the loop, rewinds the store/cache/accumulator to the
// given height and digest, and resumes. Used by the RPC layer's manual
// rescan/recovery operation (§4.6).
func (e *Engine) ResetToHeight(ctx context.Context, height uint64, digest wtypes.Digest) error {
	if !e.state.cas(Syncing, WaitPause) {
		return fmt.Errorf("reset to height: engine not syncing (state %s)", e.state.load())
	}
	for e.state.load() != Paused {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.waiters.wait():
		}
	}

	done := make(chan error, 1)
	e.resetReq <- resetRequest{height: height, digest: digest, done: done}
	if err := <-done; err != nil {
		e.state.store(Syncing)
		return err
	}

	e.state.store(Syncing)
	e.waiters.broadcast()
	return nil
}

func (e *Engine) doReset(ctx context.Context, height uint64, digest wtypes.Digest) error {
	e.wallet.Lock()
	defer e.wallet.Unlock()

	if err := e.store.ReorganizeToHeight(ctx, height, digest); err != nil {
		return fmt.Errorf("reset to height %d: rewind store: %w", height, err)
	}
	if err := e.archival.ResetToHeight(ctx, height); err != nil {
		return fmt.Errorf("reset to height %d: rewind cache: %w", height, err)
	}
	block, err := e.archival.GetBlockByDigest(ctx, digest)
	if err != nil {
		return fmt.Errorf("reset to height %d: refetch block: %w", height, err)
	}
	if block != nil {
		e.acc.ResetTo(block.AoclSizeAfter)
	}
	e.height.Store(height)
	return nil
}

// CancelSync requests the loop stop and waits up to cancelTimeout for it to
// settle into Stopped before giving up (§4.6 "cancel_sync").
func (e *Engine) CancelSync() error {
	e.cancelOnce.Do(func() { close(e.cancel) })
	deadline := time.After(cancelTimeout)
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if e.state.load() == Stopped {
				return nil
			}
		case <-deadline:
			return fmt.Errorf("cancel sync: timed out after %s", cancelTimeout)
		}
	}
}

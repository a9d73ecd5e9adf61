// Package archival implements FakeArchivalState (§4.4): the single seam the
// rest of the wallet uses to resolve a block, whatever tier actually holds
// it. Grounded on blockchain_synchronization.go's layered-lookup shape in
// the teacher, generalized to memory/disk/snapshot/remote resolution.
package archival

import (
	"context"
	"fmt"

	"neptunewallet/internal/blockcache"
	"neptunewallet/internal/nodeclient"
	"neptunewallet/internal/snapshot"
	"neptunewallet/internal/wtypes"
)

// FakeArchivalState owns the block cache and, optionally, a snapshot store,
// and is the only component that talks to NodeClient for block bodies.
type FakeArchivalState struct {
	cache    blockcache.Cache
	snapshot *snapshot.Store
	node     *nodeclient.Client
	network  wtypes.Network
}

func New(cache blockcache.Cache, snap *snapshot.Store, node *nodeclient.Client, network wtypes.Network) *FakeArchivalState {
	return &FakeArchivalState{cache: cache, snapshot: snap, node: node, network: network}
}

// Prepare ensures [height, height+batchSize) is resolvable without a
// per-block remote round trip, amortizing the fetch cost over a batch.
func (a *FakeArchivalState) Prepare(ctx context.Context, height uint64, batchSize uint64) error {
	if a.cache.IsPersist() && a.cache.HasBlockByHeight(height) {
		return nil
	}

	if a.snapshot != nil {
		blocks, ok, err := a.snapshot.ReadBlocks(a.network, height, height+batchSize)
		if err != nil {
			return fmt.Errorf("prepare from snapshot: %w", err)
		}
		if ok {
			ptrs := make([]*wtypes.ExportedBlock, len(blocks))
			for i := range blocks {
				ptrs[i] = &blocks[i]
			}
			return a.cache.AddBlocksTemp(ctx, ptrs)
		}
	}

	blocks, err := a.node.RequestBlockBatch(ctx, height, batchSize)
	if err != nil {
		return fmt.Errorf("prepare from node: %w", err)
	}
	ptrs := make([]*wtypes.ExportedBlock, len(blocks))
	for i := range blocks {
		ptrs[i] = &blocks[i]
	}
	return a.cache.AddBlocks(ctx, ptrs)
}

// GetBlockByHeight resolves memory -> disk -> remote, committing any remote
// fetch to the cache before returning.
func (a *FakeArchivalState) GetBlockByHeight(ctx context.Context, height uint64) (*wtypes.ExportedBlock, error) {
	if block, ok, err := a.cache.GetByHeight(ctx, height); err != nil {
		return nil, fmt.Errorf("cache lookup by height: %w", err)
	} else if ok {
		return block, nil
	}

	block, err := a.node.RequestBlock(ctx, height)
	if err != nil {
		return nil, fmt.Errorf("remote fetch by height: %w", err)
	}
	if block == nil {
		return nil, nil
	}
	if err := a.cache.AddBlock(ctx, block); err != nil {
		return nil, fmt.Errorf("commit remote block to cache: %w", err)
	}
	return block, nil
}

// GetBlockByDigest resolves memory -> disk -> remote, same commit contract
// as GetBlockByHeight.
func (a *FakeArchivalState) GetBlockByDigest(ctx context.Context, digest wtypes.Digest) (*wtypes.ExportedBlock, error) {
	if block, ok, err := a.cache.GetByDigest(ctx, digest); err != nil {
		return nil, fmt.Errorf("cache lookup by digest: %w", err)
	} else if ok {
		return block, nil
	}

	block, err := a.node.RequestBlockByDigest(ctx, digest)
	if err != nil {
		return nil, fmt.Errorf("remote fetch by digest: %w", err)
	}
	if block == nil {
		return nil, nil
	}
	if err := a.cache.AddBlock(ctx, block); err != nil {
		return nil, fmt.Errorf("commit remote block to cache: %w", err)
	}
	return block, nil
}

// ResetToHeight discards cached blocks from h+1 onward, used after a reorg
// walk has located the fork point.
func (a *FakeArchivalState) ResetToHeight(ctx context.Context, h uint64) error {
	if err := a.cache.DeleteFromHeight(ctx, h+1); err != nil {
		return fmt.Errorf("reset cache to height %d: %w", h, err)
	}
	return nil
}

// GetByHeight adapts FakeArchivalState to snapshot.BlockSource so
// generate_snapshot can pull its range straight from whichever tier
// currently holds it.
func (a *FakeArchivalState) GetByHeight(height uint64) (*wtypes.ExportedBlock, error) {
	return a.GetBlockByHeight(context.Background(), height)
}

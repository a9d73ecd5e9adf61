// Package prover wraps the zero-knowledge proof machine as an opaque,
// long-running job (§1: the proof system itself is explicitly out of
// scope). Grounded on the teacher's worker-pool idiom in
// core/blockchain_compression.go's background-goroutine pattern, generalized
// to a bounded pool of blocking workers since proving is CPU-bound and must
// not stall the sync loop or the spend pipeline's caller.
package prover

import (
	"context"
	"fmt"
)

// TransactionDetails is the opaque input to proof construction. The spend
// package owns its concrete shape; this package only needs to pass it
// through.
type TransactionDetails interface{}

// ProofCollection is the opaque output: whatever byte-serializable artifact
// NodeClient's broadcast_tx expects as a transfer-shaped transaction body.
type ProofCollection []byte

// Prover builds a ProofCollection from TransactionDetails. The real
// implementation is a multi-minute STARK proving pipeline; this interface
// exists so the spend pipeline, the sync engine and tests never depend on
// its internals.
type Prover interface {
	Prove(ctx context.Context, details TransactionDetails) (ProofCollection, error)
}

// Pool bounds how many Prove calls run at once. Each call runs on the
// caller's goroutine; a call made while every slot is taken blocks until
// a slot frees up (or ctx ends), which for a proof machine is the desired
// backpressure.
type Pool struct {
	inner Prover
	sem   chan struct{}
}

func NewPool(inner Prover, concurrency int) *Pool {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Pool{inner: inner, sem: make(chan struct{}, concurrency)}
}

// Prove blocks until a worker slot is free, then runs inner.Prove on it.
func (p *Pool) Prove(ctx context.Context, details TransactionDetails) (ProofCollection, error) {
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-p.sem }()

	proof, err := p.inner.Prove(ctx, details)
	if err != nil {
		return nil, fmt.Errorf("prove transaction: %w", err)
	}
	return proof, nil
}

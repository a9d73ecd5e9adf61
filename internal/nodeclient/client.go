// Package nodeclient is the typed HTTP facade over the remote node's REST
// surface, grounded on rpc_client/mod.rs: the same five operations, the same
// timeouts, the same broadcast error classification.
package nodeclient

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"neptunewallet/internal/wtypes"
)

// Client is a typed facade over one remote node's REST surface. The base
// URL can be swapped at runtime (SetRestServer) the way the original's
// atomic-pointer-backed rest_server field allows reconfiguration without
// tearing down the client.
type Client struct {
	httpClient *http.Client
	baseURL    atomicString
}

func New(baseURL string) *Client {
	c := &Client{httpClient: &http.Client{}}
	c.baseURL.store(baseURL)
	return c
}

func (c *Client) SetRestServer(base string) { c.baseURL.store(base) }
func (c *Client) restServer() string        { return c.baseURL.load() }

// BroadcastError classifies failures from broadcast_transaction the way the
// spend pipeline needs to decide whether a retry is worthwhile.
type BroadcastError struct {
	Kind BroadcastErrorKind
	Err  error
}

type BroadcastErrorKind int

const (
	BroadcastServer BroadcastErrorKind = iota
	BroadcastBusy
	BroadcastTimeout
	BroadcastConnection
	BroadcastInternal
)

func (e *BroadcastError) Error() string {
	switch e.Kind {
	case BroadcastBusy:
		return "proof machine is busy"
	case BroadcastTimeout:
		return "connection timeout"
	case BroadcastConnection:
		return fmt.Sprintf("connection error: %v", e.Err)
	case BroadcastInternal:
		return fmt.Sprintf("internal error: %v", e.Err)
	default:
		return fmt.Sprintf("server error: %v", e.Err)
	}
}

func (e *BroadcastError) Unwrap() error { return e.Err }

// IsBusy reports whether err is a retryable prover-busy broadcast error.
func IsBusy(err error) bool {
	var be *BroadcastError
	return errors.As(err, &be) && be.Kind == BroadcastBusy
}

func classifyNetErr(err error) *BroadcastError {
	var netErr net4xxTimeout
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &BroadcastError{Kind: BroadcastTimeout, Err: err}
	}
	return &BroadcastError{Kind: BroadcastConnection, Err: err}
}

type net4xxTimeout interface {
	Timeout() bool
}

// GetTipInfo fetches the highest canonical block summary. 15s timeout.
func (c *Client) GetTipInfo(ctx context.Context) (*wtypes.BlockInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	return c.getBlockInfo(ctx, "tip")
}

// GetBlockInfo fetches a block summary by digest, including the
// is_canonical flag used by the reorg walker. 15s timeout.
func (c *Client) GetBlockInfo(ctx context.Context, digest wtypes.Digest) (*wtypes.BlockInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	return c.getBlockInfo(ctx, digest.String())
}

func (c *Client) getBlockInfo(ctx context.Context, path string) (*wtypes.BlockInfo, error) {
	u := fmt.Sprintf("%s/rpc/block_info/%s", c.restServer(), url.PathEscape(path))
	var info wtypes.BlockInfo
	ok, err := c.getJSON(ctx, u, &info)
	if err != nil || !ok {
		return nil, err
	}
	return &info, nil
}

// RequestBlock fetches a single block by height, proof omitted. 30s timeout.
func (c *Client) RequestBlock(ctx context.Context, height uint64) (*wtypes.ExportedBlock, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	u := fmt.Sprintf("%s/rpc/block/%d?include_proof=false", c.restServer(), height)
	return c.getBlock(ctx, u)
}

// RequestBlockByDigest fetches a single block by digest. 30s timeout.
func (c *Client) RequestBlockByDigest(ctx context.Context, digest wtypes.Digest) (*wtypes.ExportedBlock, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	u := fmt.Sprintf("%s/rpc/block/%s?include_proof=false", c.restServer(), digest.String())
	return c.getBlock(ctx, u)
}

func (c *Client) getBlock(ctx context.Context, u string) (*wtypes.ExportedBlock, error) {
	var block wtypes.ExportedBlock
	ok, err := c.getJSON(ctx, u, &block)
	if err != nil || !ok {
		return nil, err
	}
	return &block, nil
}

// RequestBlockBatch fetches a contiguous range of blocks for bulk sync.
// 120s timeout; body is gob-encoded, standing in for the original's
// length-prefixed bincode batch encoding (see DESIGN.md wire-codec note).
func (c *Client) RequestBlockBatch(ctx context.Context, startHeight, count uint64) ([]wtypes.ExportedBlock, error) {
	ctx, cancel := context.WithTimeout(ctx, 120*time.Second)
	defer cancel()
	u := fmt.Sprintf("%s/rpc/batch_block/%d/%d?include_proof=false", c.restServer(), startHeight, count)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build batch request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyNetErr(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("batch_block: server returned %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read batch body: %w", err)
	}
	var blocks []wtypes.ExportedBlock
	if err := gob.NewDecoder(bytes.NewReader(body)).Decode(&blocks); err != nil {
		return nil, fmt.Errorf("decode batch body: %w", err)
	}
	return blocks, nil
}

// MsmpResponse is the server's answer to restore_msmps: fresh membership
// proofs for the requested index sets plus the tip state they were proven
// against.
type MsmpResponse struct {
	AoclLeafIndices []uint64
	TipMutatorSetSize uint64
	TipHeight         uint64
}

// RestoreMsmps asks the node to rebuild membership proofs for the given
// absolute index sets against the live tip.
func (c *Client) RestoreMsmps(ctx context.Context, indexSets []wtypes.AbsoluteIndexSet) (*MsmpResponse, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(indexSets); err != nil {
		return nil, fmt.Errorf("encode msmp request: %w", err)
	}
	u := fmt.Sprintf("%s/rpc/generate_membership_proof", c.restServer())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, &buf)
	if err != nil {
		return nil, fmt.Errorf("build msmp request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyNetErr(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("generate_membership_proof: server returned %d", resp.StatusCode)
	}
	var out MsmpResponse
	if err := gob.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode msmp response: %w", err)
	}
	return &out, nil
}

type broadcastResponse struct {
	Status  uint64
	Message string
}

// BroadcastTransaction submits a transfer-shaped (witness-stripped)
// transaction and returns the broadcast txid on success.
func (c *Client) BroadcastTransaction(ctx context.Context, txid string, transferTx []byte) (string, error) {
	u := fmt.Sprintf("%s/rpc/broadcast_tx", c.restServer())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(transferTx))
	if err != nil {
		return "", &BroadcastError{Kind: BroadcastInternal, Err: err}
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", classifyNetErr(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", &BroadcastError{Kind: BroadcastServer, Err: fmt.Errorf("http %d", resp.StatusCode)}
	}
	var parsed broadcastResponse
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &BroadcastError{Kind: BroadcastInternal, Err: err}
	}
	if err := jsonUnmarshal(body, &parsed); err != nil {
		return "", &BroadcastError{Kind: BroadcastInternal, Err: err}
	}
	if parsed.Status != 0 {
		if parsed.Message == "proof machine is busy" {
			return "", &BroadcastError{Kind: BroadcastBusy}
		}
		return "", &BroadcastError{Kind: BroadcastServer, Err: errors.New(parsed.Message)}
	}
	return txid, nil
}

func (c *Client) getJSON(ctx context.Context, u string, out interface{}) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false, fmt.Errorf("build request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, classifyNetErr(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode >= 400 {
		return false, fmt.Errorf("%s: server returned %d", u, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, fmt.Errorf("read response body: %w", err)
	}
	if len(body) == 0 || string(body) == "null" {
		return false, nil
	}
	if err := jsonUnmarshal(body, out); err != nil {
		return false, fmt.Errorf("decode response: %w", err)
	}
	return true, nil
}

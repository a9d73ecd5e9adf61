// Package wtypes holds the wire- and domain-level types shared by every
// wallet-core component: digests, amounts, UTXOs, blocks and the mutator-set
// record shapes that travel between NodeClient, BlockCache, WalletStore and
// SyncEngine.
package wtypes

import (
	"encoding/binary"
	"fmt"

	"github.com/decred/dcrd/chaincfg/chainhash"
)

// Digest is the fixed-size content hash used throughout the wallet: block
// hashes, UTXO content digests, sender-randomness and receiver-preimage
// values, and addition-record commitments all share this shape.
type Digest = chainhash.Hash

// DigestFromString parses a digest previously rendered with String(), used
// when round-tripping tip and block-reference columns through SQLite.
func DigestFromString(s string) (Digest, error) {
	h, err := chainhash.NewHashFromStr(s)
	if err != nil {
		return Digest{}, err
	}
	return *h, nil
}

// Network identifies which chain a wallet, cache or snapshot belongs to.
// The numeric tag is part of the on-disk snapshot format (§4.3) and must not
// be renumbered.
type Network uint8

const (
	NetworkMain Network = iota
	NetworkTestnetMock
	NetworkRegTest
	// NetworkTestnet(i) = 3+i for i >= 0; see TestnetTag.
)

func TestnetTag(i uint8) Network { return Network(3 + i) }

func (n Network) String() string {
	switch n {
	case NetworkMain:
		return "main"
	case NetworkTestnetMock:
		return "testnet-mock"
	case NetworkRegTest:
		return "regtest"
	default:
		return fmt.Sprintf("testnet-%d", uint8(n)-3)
	}
}

// Timestamp is milliseconds since the Unix epoch, matching the original's
// millisecond-resolution block timestamps.
type Timestamp int64

func (t Timestamp) Millis() int64 { return int64(t) }

// NativeCurrencyAmount is an integer count of nano-units (nau), the smallest
// denomination. All arithmetic is done in nau to avoid floating point.
type NativeCurrencyAmount int64

const NauPerCoin NativeCurrencyAmount = 1_000_000_000_000

func (a NativeCurrencyAmount) ToNau() int64 { return int64(a) }

func FromNau(n int64) NativeCurrencyAmount { return NativeCurrencyAmount(n) }

func (a NativeCurrencyAmount) String() string {
	whole := int64(a) / int64(NauPerCoin)
	frac := int64(a) % int64(NauPerCoin)
	if frac < 0 {
		frac = -frac
	}
	return fmt.Sprintf("%d.%012d", whole, frac)
}

// AbsoluteIndexSet is the deterministic set of SWBF bit positions identifying
// one UTXO at spend time. It is derived deterministically, so two index sets
// computed over the same inputs compare equal; slots keep their derivation
// order and are not sorted.
type AbsoluteIndexSet struct {
	Indices [NumTrialsIndexSet]uint64
}

// NumTrialsIndexSet mirrors the number of index-set slots used by the
// mutator set's removal-record derivation.
const NumTrialsIndexSet = 45

// ComputeAbsoluteIndexSet derives the absolute index set for a UTXO from its
// content digest, sender randomness, receiver preimage and AOCL leaf index.
// It expands a blake3 keyed hash into NumTrialsIndexSet 64-bit window
// positions, following the original's item||randomness||preimage||index
// expansion shape.
func ComputeAbsoluteIndexSet(item, senderRandomness, receiverPreimage Digest, aoclIndex uint64) AbsoluteIndexSet {
	seed := make([]byte, 0, 32*3+8)
	seed = append(seed, item[:]...)
	seed = append(seed, senderRandomness[:]...)
	seed = append(seed, receiverPreimage[:]...)
	var idxBuf [8]byte
	binary.LittleEndian.PutUint64(idxBuf[:], aoclIndex)
	seed = append(seed, idxBuf[:]...)

	var set AbsoluteIndexSet
	for i := 0; i < NumTrialsIndexSet; i++ {
		h := blake3Keyed(seed, uint32(i))
		set.Indices[i] = binary.LittleEndian.Uint64(h[:8])
	}
	return set
}

// Utxo is a single spendable output: an amount locked behind a lock-script
// digest, with an optional release date enforcing a timelock.
type Utxo struct {
	LockScriptHash Digest
	Amount         NativeCurrencyAmount
	ReleaseDate    *Timestamp
}

func (u Utxo) GetNativeCurrencyAmount() NativeCurrencyAmount { return u.Amount }

// AdditionRecord is the canonical commitment to a newly-created UTXO as it
// appears in a block.
type AdditionRecord struct {
	Commitment Digest
}

// RemovalRecord is the spend commitment for one UTXO as it appears among a
// block's transaction inputs.
type RemovalRecord struct {
	AbsoluteIndices AbsoluteIndexSet
}

// MutatorSetUpdate is the ordered list of additions and removals a block
// applies to the mutator set, in canonical order.
type MutatorSetUpdate struct {
	Additions []AdditionRecord
	Removals  []RemovalRecord
}

// BlockHeader carries the fields the wallet needs for reorg detection and
// guesser-fee discovery.
type BlockHeader struct {
	Height          uint64
	Timestamp       Timestamp
	PrevBlockDigest Digest
	GuesserDigest   Digest
}

// TransactionKernel is the subset of a block's transaction the wallet scans:
// its inputs (removal records) for outgoing detection and its announcements
// for incoming-UTXO discovery.
type TransactionKernel struct {
	Inputs        []RemovalRecord
	Announcements []PublicAnnouncement
}

// PublicAnnouncement is the per-output scan material a spending key trial-
// decrypts. The real protocol ships this encrypted under the receiving
// key's public material; building that encryption scheme is explicitly the
// opaque, out-of-scope ZK-adjacent machinery (§1), so this port carries the
// announcement in the clear and has a spending key recognise it by lock-
// script-hash match instead of trial decryption. The matched fields
// (sender randomness, receiver preimage) are exactly what real trial
// decryption would yield on success.
type PublicAnnouncement struct {
	LockScriptHash   Digest
	UtxoVal          Utxo
	SenderRandomness Digest
	ReceiverPreimage Digest
}

// ExportedBlock is the block shape the remote node serves; proofs are
// omitted by the server (include_proof=false).
type ExportedBlock struct {
	Header          BlockHeader
	Additions       []AdditionRecord
	Removals        []RemovalRecord
	Announcements   []PublicAnnouncement // Announcements[i] corresponds to Additions[i]
	GuesserFeeUtxos []Utxo
	// AoclSizeAfter is the cumulative mutator-set AOCL leaf count once this
	// block's additions are applied, letting a reorg rebuild the local
	// accumulator from a single re-fetched block instead of replaying from
	// genesis.
	AoclSizeAfter uint64
	digest        *Digest
}

func (b *ExportedBlock) Hash() Digest {
	if b.digest != nil {
		return *b.digest
	}
	h := chainhash.HashH(encodeHeaderForHash(b.Header))
	b.digest = &h
	return h
}

func encodeHeaderForHash(h BlockHeader) []byte {
	buf := make([]byte, 0, 8+8+32+32)
	var heightBuf [8]byte
	binary.LittleEndian.PutUint64(heightBuf[:], h.Height)
	buf = append(buf, heightBuf[:]...)
	var tsBuf [8]byte
	binary.LittleEndian.PutUint64(tsBuf[:], uint64(h.Timestamp))
	buf = append(buf, tsBuf[:]...)
	buf = append(buf, h.PrevBlockDigest[:]...)
	buf = append(buf, h.GuesserDigest[:]...)
	return buf
}

func (b *ExportedBlock) MutatorSetUpdate() MutatorSetUpdate {
	return MutatorSetUpdate{Additions: b.Additions, Removals: b.Removals}
}

func (b *ExportedBlock) TransactionKernel() TransactionKernel {
	return TransactionKernel{Inputs: b.Removals, Announcements: b.Announcements}
}

// BlockInfo is the lightweight block summary used by the reorg walker.
type BlockInfo struct {
	Height          uint64
	Digest          Digest
	PrevBlockDigest Digest
	IsCanonical     bool
}

// IncomingUtxo is a UTXO discovered by scanning a transaction kernel against
// one of the wallet's derived keys, or credited as a guesser-fee payout.
type IncomingUtxo struct {
	UtxoVal          Utxo
	SenderRandomness Digest
	ReceiverPreimage Digest
	IsGuesserFee     bool
}

func (u IncomingUtxo) Utxo() Utxo                  { return u.UtxoVal }
func (u IncomingUtxo) SenderRand() Digest          { return u.SenderRandomness }
func (u IncomingUtxo) Preimage() Digest            { return u.ReceiverPreimage }
func (u IncomingUtxo) GuesserFee() bool            { return u.IsGuesserFee }

// AdditionRecordOf derives the addition record for an incoming UTXO given
// its content digest; used as the hash map key when matching a block's
// addition records against both newly-scanned incoming UTXOs and previously
// recorded expected UTXOs.
func AdditionRecordOf(item, senderRandomness, receiverPreimage Digest) AdditionRecord {
	buf := make([]byte, 0, 96)
	buf = append(buf, item[:]...)
	buf = append(buf, senderRandomness[:]...)
	buf = append(buf, receiverPreimage[:]...)
	return AdditionRecord{Commitment: chainhash.HashH(buf)}
}

// HashBytes hashes an arbitrary byte string, used wherever a component
// needs a digest over its own wire shape (transaction ids) rather than one
// of the domain-specific hash functions above.
func HashBytes(b []byte) Digest { return chainhash.HashH(b) }

// HashUtxo computes a UTXO's content digest, the basis for its addition
// record and absolute index set.
func HashUtxo(u Utxo) Digest {
	buf := make([]byte, 0, 32+8)
	buf = append(buf, u.LockScriptHash[:]...)
	var amtBuf [8]byte
	binary.LittleEndian.PutUint64(amtBuf[:], uint64(u.Amount))
	buf = append(buf, amtBuf[:]...)
	return chainhash.HashH(buf)
}

// UtxoRecoveryData is everything WalletStore needs to later reconstruct a
// membership proof for a UTXO it owns, without re-deriving the spending key
// that found it. AoclIndex is fixed at the moment the UTXO's addition
// record is applied to the mutator set, in block-canonical order.
type UtxoRecoveryData struct {
	UtxoVal          Utxo
	SenderRandomness Digest
	ReceiverPreimage Digest
	AoclIndex        uint64
}

// AbsI computes the absolute index set this recovery data's UTXO will spend
// under, given its own content digest.
func (r UtxoRecoveryData) AbsI() AbsoluteIndexSet {
	item := HashUtxo(r.UtxoVal)
	return ComputeAbsoluteIndexSet(item, r.SenderRandomness, r.ReceiverPreimage, r.AoclIndex)
}

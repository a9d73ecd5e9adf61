// Package keys derives the wallet's spending-key families from a single
// master entropy value, grounded on the hierarchical-deterministic
// derivation shape used by the pack's memwallet (hdIndex / hdRoot over
// decred/dcrd/hdkeychain) rather than the original's algebraic key schedule,
// which has no equivalent in the Go ecosystem represented in the pack.
package keys

import (
	"fmt"

	"github.com/decred/dcrd/bech32"
	"github.com/decred/dcrd/chaincfg/chainhash"
	"github.com/decred/dcrd/chaincfg/v3"
	"github.com/decred/dcrd/hdkeychain/v3"

	"neptunewallet/internal/wtypes"
)

func chainhashHash(b []byte) wtypes.Digest { return chainhash.HashH(b) }

// Hardened derivation branches separating the three deterministic key
// families under one master entropy value. Values are arbitrary but fixed;
// changing them would silently re-derive a different wallet.
const (
	branchGeneration uint32 = hdkeychain.HardenedKeyStart + 1900
	branchSymmetric  uint32 = hdkeychain.HardenedKeyStart + 1901
	branchGuesser    uint32 = hdkeychain.HardenedKeyStart + 1902
)

// Family distinguishes the two infinite key families the scanner probes.
type Family int

const (
	FamilyGeneration Family = iota
	FamilySymmetric
)

func (f Family) String() string {
	if f == FamilyGeneration {
		return "generation"
	}
	return "symmetric"
}

// WalletEntropy is the single master secret a wallet is built from. It never
// touches disk; only derived-key indices are persisted.
type WalletEntropy struct {
	master *hdkeychain.ExtendedKey
	params *chaincfg.Params
}

// NewWalletEntropy builds the master key from a seed (e.g. a BIP-39
// mnemonic's derived seed bytes, produced upstream of this package).
func NewWalletEntropy(seed []byte, params *chaincfg.Params) (*WalletEntropy, error) {
	master, err := hdkeychain.NewMaster(seed, params)
	if err != nil {
		return nil, fmt.Errorf("derive master key: %w", err)
	}
	return &WalletEntropy{master: master, params: params}, nil
}

func (w *WalletEntropy) branch(branch uint32) (*hdkeychain.ExtendedKey, error) {
	child, err := w.master.Child(branch)
	if err != nil {
		return nil, fmt.Errorf("derive branch %d: %w", branch, err)
	}
	return child, nil
}

func (w *WalletEntropy) deriveIndex(branch uint32, index uint64) (*hdkeychain.ExtendedKey, error) {
	b, err := w.branch(branch)
	if err != nil {
		return nil, err
	}
	// index is folded into two 31-bit hardened child steps so indices far
	// beyond a single uint32 child index stay reachable without overflowing
	// the hardened-start offset. Only the low 62 bits of index are used:
	// indices that differ only above bit 61 derive the same key.
	hi := uint32(index>>31) | hdkeychain.HardenedKeyStart
	lo := uint32(index&0x7fffffff) | hdkeychain.HardenedKeyStart
	mid, err := b.Child(hi)
	if err != nil {
		return nil, fmt.Errorf("derive index hi %d: %w", index, err)
	}
	leaf, err := mid.Child(lo)
	if err != nil {
		return nil, fmt.Errorf("derive index lo %d: %w", index, err)
	}
	return leaf, nil
}

// NthGenerationSpendingKey derives the generation-family spending key at
// index i. Panics only on key-derivation failure, which for hardened HD
// derivation happens with negligible probability (~1 in 2^127).
func (w *WalletEntropy) NthGenerationSpendingKey(i uint64) SpendingKey {
	k, err := w.nth(FamilyGeneration, i)
	if err != nil {
		panic(err)
	}
	return k
}

// NthSymmetricKey derives the symmetric-family spending key at index i.
func (w *WalletEntropy) NthSymmetricKey(i uint64) SpendingKey {
	k, err := w.nth(FamilySymmetric, i)
	if err != nil {
		panic(err)
	}
	return k
}

func (w *WalletEntropy) nth(family Family, i uint64) (SpendingKey, error) {
	branch := branchGeneration
	if family == FamilySymmetric {
		branch = branchSymmetric
	}
	leaf, err := w.deriveIndex(branch, i)
	if err != nil {
		return SpendingKey{}, err
	}
	return newSpendingKey(family, i, leaf)
}

// DeriveSenderRandomness derives the per-output blinding value used when
// this wallet sends a payment: a hash of master entropy, the tip height the
// transaction was built against, and the receiver's lock-script digest, so
// the same payment shape never repeats its addressed data (§4.6 step 4).
func (w *WalletEntropy) DeriveSenderRandomness(tipHeight uint64, receiver wtypes.Digest) wtypes.Digest {
	pub := w.master.String()
	buf := make([]byte, 0, len(pub)+8+32)
	buf = append(buf, []byte(pub)...)
	var heightBuf [8]byte
	for i := 0; i < 8; i++ {
		heightBuf[i] = byte(tipHeight >> (8 * i))
	}
	buf = append(buf, heightBuf[:]...)
	buf = append(buf, receiver[:]...)
	return chainhashHash(buf)
}

// GuesserFeeKey derives the single fixed guesser-fee key used to claim
// proof-of-work reward UTXOs this wallet's node guessed.
func (w *WalletEntropy) GuesserFeeKey() (SpendingKey, error) {
	leaf, err := w.branch(branchGuesser)
	if err != nil {
		return SpendingKey{}, err
	}
	return newSpendingKey(FamilyGeneration, 0, leaf)
}

// SpendingKey is a single derived key: it can produce a receiving address,
// a lock-script digest, a privacy preimage, and scan a transaction kernel
// for UTXOs addressed to it.
type SpendingKey struct {
	family   Family
	index    uint64
	lockHash wtypes.Digest
	preimage wtypes.Digest
}

func newSpendingKey(family Family, index uint64, leaf *hdkeychain.ExtendedKey) (SpendingKey, error) {
	pub, err := leaf.Neuter()
	if err != nil {
		return SpendingKey{}, fmt.Errorf("neuter leaf key: %w", err)
	}
	serialized := pub.SerializedPubKey()
	return SpendingKey{
		family:   family,
		index:    index,
		lockHash: domainDigest(serialized, "lock-script"),
		preimage: domainDigest(serialized, "receiver-preimage"),
	}, nil
}

// domainDigest hashes a public-key byte string under a fixed domain label so
// the lock-script digest and receiver preimage derived from the same key
// are unlinkable from each other.
func domainDigest(pub []byte, domain string) wtypes.Digest {
	buf := make([]byte, 0, len(pub)+len(domain))
	buf = append(buf, []byte(domain)...)
	buf = append(buf, pub...)
	return chainhashHash(buf)
}

func (k SpendingKey) Family() Family          { return k.family }
func (k SpendingKey) Index() uint64           { return k.index }
func (k SpendingKey) LockScriptHash() wtypes.Digest { return k.lockHash }
func (k SpendingKey) ReceiverPreimage() wtypes.Digest { return k.preimage }

// ToAddress renders the key's receiving address as bech32m, HRP selected by
// network, mirroring the pack's bech32 usage for address encoding.
func (k SpendingKey) ToAddress(network wtypes.Network) (string, error) {
	hrp := hrpFor(network)
	converted, err := bech32.ConvertBits(k.lockHash[:], 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("convert address bits: %w", err)
	}
	encoded, err := bech32.EncodeM(hrp, converted)
	if err != nil {
		return "", fmt.Errorf("bech32m encode address: %w", err)
	}
	return encoded, nil
}

func hrpFor(network wtypes.Network) string {
	switch network {
	case wtypes.NetworkMain:
		return "neptw"
	case wtypes.NetworkTestnetMock:
		return "neptwtm"
	case wtypes.NetworkRegTest:
		return "neptwrt"
	default:
		return "neptwtest"
	}
}

// ScanForAnnouncedUtxos trial-matches every announcement in the kernel
// against this key's lock-script hash (see wtypes.PublicAnnouncement for
// why this stands in for real trial decryption).
func (k SpendingKey) ScanForAnnouncedUtxos(tk wtypes.TransactionKernel) []wtypes.IncomingUtxo {
	var found []wtypes.IncomingUtxo
	for _, ann := range tk.Announcements {
		if ann.LockScriptHash != k.lockHash {
			continue
		}
		found = append(found, wtypes.IncomingUtxo{
			UtxoVal:          ann.UtxoVal,
			SenderRandomness: ann.SenderRandomness,
			ReceiverPreimage: ann.ReceiverPreimage,
		})
	}
	return found
}

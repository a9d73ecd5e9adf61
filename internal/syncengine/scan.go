package syncengine

import (
	"neptunewallet/internal/keys"
	"neptunewallet/internal/mutatorset"
	"neptunewallet/internal/wtypes"
)

// scanResult is everything blockScan discovers about one block, ready to
// hand to walletstore.ApplyBlock.
type scanResult struct {
	incoming        []wtypes.UtxoRecoveryData
	watermarkGen    uint64
	watermarkSym    uint64
	guesserPreimage *wtypes.Digest
}

// blockScan implements §4.5's "Block scan (single block)" steps 1-2: sweep
// the key families across the scan horizon, recognise guesser-fee payouts,
// and assign each discovered UTXO its AOCL leaf index by advancing acc in
// block-canonical order alongside the sweep.
func blockScan(entropy *keys.WalletEntropy, cache *keys.Cache, acc *mutatorset.Accumulator, numFutureKeys uint64, watermarkGen, watermarkSym uint64, rawHashKeys []wtypes.Digest, block *wtypes.ExportedBlock) scanResult {
	res := scanResult{watermarkGen: watermarkGen, watermarkSym: watermarkSym}

	genKeys := deriveRange(entropy, cache, keys.FamilyGeneration, watermarkGen+numFutureKeys)
	symKeys := deriveRange(entropy, cache, keys.FamilySymmetric, watermarkSym+numFutureKeys)

	for i, ann := range block.Announcements {
		matched, matchedFamily, matchedIndex, viaRawHash := matchAnnouncement(ann, genKeys, symKeys, rawHashKeys)
		aoclIndex := acc.AoclSize()
		if matched != nil {
			res.incoming = append(res.incoming, wtypes.UtxoRecoveryData{
				UtxoVal:          matched.UtxoVal,
				SenderRandomness: matched.SenderRandomness,
				ReceiverPreimage: matched.ReceiverPreimage,
				AoclIndex:        aoclIndex,
			})
			if !viaRawHash {
				if matchedFamily == keys.FamilyGeneration && matchedIndex > res.watermarkGen {
					res.watermarkGen = matchedIndex
				}
				if matchedFamily == keys.FamilySymmetric && matchedIndex > res.watermarkSym {
					res.watermarkSym = matchedIndex
				}
			}
		}
		if i < len(block.Additions) {
			acc.Add(block.Additions[i])
		}
	}
	// Additions beyond the announcement slice (shouldn't happen per the
	// ExportedBlock contract, but keeps the AOCL count correct if a server
	// ever omits announcements for unannounced system outputs).
	for i := len(block.Announcements); i < len(block.Additions); i++ {
		acc.Add(block.Additions[i])
	}

	guesserKey, err := entropy.GuesserFeeKey()
	if err == nil && guesserKey.LockScriptHash() == block.Header.GuesserDigest {
		blockHash := block.Hash()
		for _, feeUtxo := range block.GuesserFeeUtxos {
			res.incoming = append(res.incoming, wtypes.UtxoRecoveryData{
				UtxoVal:          feeUtxo,
				SenderRandomness: blockHash,
				ReceiverPreimage: guesserKey.ReceiverPreimage(),
				AoclIndex:        acc.AoclSize(),
			})
			acc.Add(wtypes.AdditionRecordOf(wtypes.HashUtxo(feeUtxo), blockHash, guesserKey.ReceiverPreimage()))
		}
		if len(block.GuesserFeeUtxos) > 0 {
			preimage := guesserKey.ReceiverPreimage()
			res.guesserPreimage = &preimage
		}
	}

	for _, r := range block.Removals {
		acc.Remove(r)
	}

	return res
}

func deriveRange(entropy *keys.WalletEntropy, cache *keys.Cache, family keys.Family, horizon uint64) []keys.SpendingKey {
	out := make([]keys.SpendingKey, 0, horizon)
	for i := uint64(0); i < horizon; i++ {
		var k keys.SpendingKey
		if family == keys.FamilyGeneration {
			k = cache.GetOrDerive(family, i, entropy.NthGenerationSpendingKey)
		} else {
			k = cache.GetOrDerive(family, i, entropy.NthSymmetricKey)
		}
		out = append(out, k)
	}
	return out
}

// matchAnnouncement trial-matches one announcement against the derived
// generation/symmetric key sweep first, then falls back to the wallet's
// known raw-hash keys: guesser-fee receiver-preimages claimed in an
// earlier block, re-recognised here without probing any derived-key
// family (§4.5 "Raw-hash key set", §8 scenario 6). A raw-hash match never
// advances a watermark — it isn't indexed by either key family.
func matchAnnouncement(ann wtypes.PublicAnnouncement, genKeys, symKeys []keys.SpendingKey, rawHashKeys []wtypes.Digest) (matched *wtypes.IncomingUtxo, family keys.Family, index uint64, viaRawHash bool) {
	tk := wtypes.TransactionKernel{Announcements: []wtypes.PublicAnnouncement{ann}}
	for i, k := range genKeys {
		if found := k.ScanForAnnouncedUtxos(tk); len(found) > 0 {
			return &found[0], keys.FamilyGeneration, uint64(i), false
		}
	}
	for i, k := range symKeys {
		if found := k.ScanForAnnouncedUtxos(tk); len(found) > 0 {
			return &found[0], keys.FamilySymmetric, uint64(i), false
		}
	}
	for _, raw := range rawHashKeys {
		if ann.ReceiverPreimage == raw {
			return &wtypes.IncomingUtxo{
				UtxoVal:          ann.UtxoVal,
				SenderRandomness: ann.SenderRandomness,
				ReceiverPreimage: ann.ReceiverPreimage,
			}, keys.FamilyGeneration, 0, true
		}
	}
	return nil, keys.FamilyGeneration, 0, false
}

package wtypes

import (
	"encoding/binary"

	"lukechampine.com/blake3"
)

// blake3Keyed derives the i-th 32-byte expansion window of seed by hashing
// the full seed followed by i, used to spread one absolute-index-set
// derivation across NumTrialsIndexSet independent-looking positions.
func blake3Keyed(seed []byte, i uint32) [32]byte {
	h := blake3.New(32, nil)
	h.Write(seed)
	var iBuf [4]byte
	binary.LittleEndian.PutUint32(iBuf[:], i)
	h.Write(iBuf[:])
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

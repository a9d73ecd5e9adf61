// Package snapshot implements the read (and supplemented write) side of
// wallet-bootstrap snapshot files: a directory of `*.snapshot` archives that
// let a fresh wallet seed its block cache without replaying the chain from
// genesis. Grounded on block_cache.rs for the binary-framing idiom and on
// fake_archival_state.rs for the producer side the distilled spec dropped.
package snapshot

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/klauspost/compress/zstd"

	"neptunewallet/internal/wtypes"
)

const (
	headerFixedSize  = 8 + 8 + 1 // start_height, end_height, network_tag
	positionEntrySize = 8 + 8    // pos, size
)

// blockPosition mirrors BlockPosition{pos, size} in the on-disk layout.
type blockPosition struct {
	Pos  uint64
	Size uint64
}

// file describes one opened *.snapshot archive: its header plus the byte
// offset where the dictionary (and after it, the frames) begins.
type file struct {
	path         string
	network      wtypes.Network
	startHeight  uint64
	endHeight    uint64
	positions    []blockPosition
	dict         []byte
	framesOffset int64
}

// Store resolves read_blocks queries across every *.snapshot file in a
// directory.
type Store struct {
	dir   string
	files []*file
}

// Open scans dir for *.snapshot files and parses each header eagerly; frame
// bytes are read lazily per request.
func Open(dir string) (*Store, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return &Store{dir: dir}, nil
		}
		return nil, fmt.Errorf("read snapshot dir: %w", err)
	}
	s := &Store{dir: dir}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".snapshot" {
			continue
		}
		f, err := openFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("open snapshot %s: %w", e.Name(), err)
		}
		s.files = append(s.files, f)
	}
	return s, nil
}

func openFile(path string) (*file, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(raw) < headerFixedSize {
		return nil, fmt.Errorf("truncated header")
	}
	start := binary.LittleEndian.Uint64(raw[0:8])
	end := binary.LittleEndian.Uint64(raw[8:16])
	networkTag := raw[16]

	n := int(end - start)
	posTableEnd := headerFixedSize + n*positionEntrySize
	if len(raw) < posTableEnd+8 {
		return nil, fmt.Errorf("truncated position table")
	}
	positions := make([]blockPosition, n)
	cursor := headerFixedSize
	for i := 0; i < n; i++ {
		positions[i] = blockPosition{
			Pos:  binary.LittleEndian.Uint64(raw[cursor : cursor+8]),
			Size: binary.LittleEndian.Uint64(raw[cursor+8 : cursor+16]),
		}
		cursor += positionEntrySize
	}

	dictSize := binary.LittleEndian.Uint64(raw[cursor : cursor+8])
	cursor += 8
	if len(raw) < cursor+int(dictSize) {
		return nil, fmt.Errorf("truncated dictionary")
	}
	dict := append([]byte(nil), raw[cursor:cursor+int(dictSize)]...)
	cursor += int(dictSize)

	return &file{
		path:         path,
		network:      networkTagToNetwork(networkTag),
		startHeight:  start,
		endHeight:    end,
		positions:    positions,
		dict:         dict,
		framesOffset: int64(cursor),
	}, nil
}

func networkTagToNetwork(tag byte) wtypes.Network {
	switch {
	case tag == 0:
		return wtypes.NetworkMain
	case tag == 1:
		return wtypes.NetworkTestnetMock
	case tag == 2:
		return wtypes.NetworkRegTest
	default:
		return wtypes.TestnetTag(tag - 3)
	}
}

func networkToTag(n wtypes.Network) byte {
	switch n {
	case wtypes.NetworkMain:
		return 0
	case wtypes.NetworkTestnetMock:
		return 1
	case wtypes.NetworkRegTest:
		return 2
	default:
		return byte(n) // wtypes.TestnetTag(i) is already 3+i
	}
}

func (f *file) covers(network wtypes.Network, start, end uint64) bool {
	return f.network == network && start >= f.startHeight && end <= f.endHeight
}

// ReadBlocks returns the decoded blocks in [start, end) if some snapshot
// file fully contains that range for network, else (nil, false). Decoding
// runs synchronously here; callers that must not block their event loop
// should invoke this from a worker goroutine, matching the "blocking
// worker" requirement (§4.3) without tying this package to a particular
// scheduler.
func (s *Store) ReadBlocks(network wtypes.Network, start, end uint64) ([]wtypes.ExportedBlock, bool, error) {
	for _, f := range s.files {
		if !f.covers(network, start, end) {
			continue
		}
		blocks, err := f.readRange(start, end)
		if err != nil {
			return nil, false, fmt.Errorf("read snapshot %s: %w", f.path, err)
		}
		return blocks, true, nil
	}
	return nil, false, nil
}

func (f *file) readRange(start, end uint64) ([]wtypes.ExportedBlock, error) {
	raw, err := os.ReadFile(f.path)
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderDicts(f.dict))
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	defer dec.Close()

	out := make([]wtypes.ExportedBlock, 0, end-start)
	for h := start; h < end; h++ {
		idx := h - f.startHeight
		pos := f.positions[idx]
		frameStart := f.framesOffset + int64(pos.Pos)
		frameEnd := frameStart + int64(pos.Size)
		if frameEnd > int64(len(raw)) {
			return nil, fmt.Errorf("frame for height %d exceeds file bounds", h)
		}
		decoded, err := dec.DecodeAll(raw[frameStart:frameEnd], nil)
		if err != nil {
			return nil, fmt.Errorf("decompress height %d: %w", h, err)
		}
		block, err := decodeGobBlock(decoded)
		if err != nil {
			return nil, fmt.Errorf("decode height %d: %w", h, err)
		}
		if block.Header.Height != h {
			return nil, fmt.Errorf("fatal snapshot mismatch: requested height %d, decoded height %d", h, block.Header.Height)
		}
		out = append(out, *block)
	}
	return out, nil
}

// BlockSource is anything that can supply blocks by height for snapshot
// generation: FakeArchivalState and DiskCache both satisfy a narrowed view
// of this in practice.
type BlockSource interface {
	GetByHeight(height uint64) (*wtypes.ExportedBlock, error)
}

// Generate writes one *.snapshot file covering [start, end) for network,
// pulling blocks from src. This is the producer half of ReadBlocks'
// contract, supplemented from the original's fake_archival_state.rs so the
// round-trip testable property in §8 is exercisable without a live node.
func Generate(dir string, network wtypes.Network, start, end uint64, src BlockSource) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}

	serialized := make([][]byte, 0, end-start)
	for h := start; h < end; h++ {
		block, err := src.GetByHeight(h)
		if err != nil {
			return "", fmt.Errorf("fetch block %d: %w", h, err)
		}
		raw, err := encodeGobBlock(block)
		if err != nil {
			return "", fmt.Errorf("serialize block %d: %w", h, err)
		}
		serialized = append(serialized, raw)
	}

	dict := trainDictionary(serialized)

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderDict(dict))
	if err != nil {
		return "", fmt.Errorf("create zstd encoder: %w", err)
	}
	defer enc.Close()

	var frames bytes.Buffer
	positions := make([]blockPosition, 0, len(serialized))
	for _, raw := range serialized {
		compressed := enc.EncodeAll(raw, nil)
		positions = append(positions, blockPosition{Pos: uint64(frames.Len()), Size: uint64(len(compressed))})
		frames.Write(compressed)
	}

	var out bytes.Buffer
	var hdr [8]byte
	binary.LittleEndian.PutUint64(hdr[:], start)
	out.Write(hdr[:])
	binary.LittleEndian.PutUint64(hdr[:], end)
	out.Write(hdr[:])
	out.WriteByte(networkToTag(network))
	for _, p := range positions {
		binary.LittleEndian.PutUint64(hdr[:], p.Pos)
		out.Write(hdr[:])
		binary.LittleEndian.PutUint64(hdr[:], p.Size)
		out.Write(hdr[:])
	}
	binary.LittleEndian.PutUint64(hdr[:], uint64(len(dict)))
	out.Write(hdr[:])
	out.Write(dict)
	out.Write(frames.Bytes())

	path := filepath.Join(dir, fmt.Sprintf("%d_%d.snapshot", start, end))
	if err := os.WriteFile(path, out.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("write snapshot file: %w", err)
	}
	return path, nil
}

// trainDictionary is a deliberately simple stand-in for zstd's zdict
// trainer, which has no Go binding in the available ecosystem (see
// DESIGN.md). It samples a prefix of each serialized block, on the
// assumption that block headers carry the most repeated byte structure,
// and deduplicates down to dictSizeLimit bytes.
func trainDictionary(serialized [][]byte) []byte {
	const sampleLen = 64
	const dictSizeLimit = 16 * 1024

	var dict bytes.Buffer
	seen := make(map[string]struct{})
	for _, raw := range serialized {
		n := sampleLen
		if n > len(raw) {
			n = len(raw)
		}
		sample := raw[:n]
		key := string(sample)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		if dict.Len()+len(sample) > dictSizeLimit {
			break
		}
		dict.Write(sample)
	}
	return dict.Bytes()
}

// ListFiles returns the paths of the *.snapshot files found under dir,
// sorted lexically by path (not numerically by start height), for
// diagnostics and the list_cache_files-style RPC.
func ListFiles(dir string) ([]string, error) {
	var names []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && filepath.Ext(path) == ".snapshot" {
			names = append(names, path)
		}
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("walk snapshot dir: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

func encodeGobBlock(block *wtypes.ExportedBlock) ([]byte, error) {
	var buf bytes.Buffer
	if err := gobEncode(&buf, block); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeGobBlock(raw []byte) (*wtypes.ExportedBlock, error) {
	var block wtypes.ExportedBlock
	if err := gobDecode(bytes.NewReader(raw), &block); err != nil {
		return nil, err
	}
	return &block, nil
}

// gobEncode/gobDecode are indirected through a tiny wrapper so this file's
// import list stays focused on the binary framing; see codec.go.
func gobEncode(w io.Writer, v interface{}) error { return gobEncoder(w, v) }
func gobDecode(r io.Reader, v interface{}) error { return gobDecoder(r, v) }

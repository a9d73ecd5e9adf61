package blockcache

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"
	_ "github.com/mattn/go-sqlite3"

	"neptunewallet/internal/wtypes"
)

// BlockBatchSize is the number of blocks grouped into one append-only
// `<batch>.block` file.
const BlockBatchSize = 2000

// DiskCache layers a persistent, dictionary-compressed block store under a
// MemoryCache front. Writes are strictly append-then-index (§4.2): a crash
// between the frame write and the index INSERT leaves an unindexed tail,
// which is harmless — the next run simply re-adds the block and the stale
// bytes are never referenced.
type DiskCache struct {
	memory  *MemoryCache
	blockDir string
	network wtypes.Network
	db      *sql.DB

	mu    sync.Mutex // serializes append-then-index per batch file
	files map[uint64]*os.File
}

func NewDiskCache(dataDir string, network wtypes.Network, cacheSize int) (*DiskCache, error) {
	blockDir := filepath.Join(dataDir, fmt.Sprintf("%s_block", network.String()))
	if err := os.MkdirAll(blockDir, 0o755); err != nil {
		return nil, fmt.Errorf("create block cache dir: %w", err)
	}
	dbPath := filepath.Join(blockDir, "block.db")
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open block cache index: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS block_cache (
		height INTEGER NOT NULL,
		hash TEXT PRIMARY KEY,
		pos INTEGER NOT NULL,
		length INTEGER NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("migrate block_cache table: %w", err)
	}
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_block_cache_height ON block_cache (height)`); err != nil {
		return nil, fmt.Errorf("migrate block_cache index: %w", err)
	}
	return &DiskCache{
		memory:   NewMemoryCache(cacheSize),
		blockDir: blockDir,
		network:  network,
		db:       db,
		files:    make(map[uint64]*os.File),
	}, nil
}

func (d *DiskCache) IsPersist() bool { return true }

func batchOf(height uint64) uint64 { return height / BlockBatchSize }

func (d *DiskCache) batchFile(batch uint64) (*os.File, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if f, ok := d.files[batch]; ok {
		return f, nil
	}
	path := filepath.Join(d.blockDir, fmt.Sprintf("%d.block", batch))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open batch file %d: %w", batch, err)
	}
	d.files[batch] = f
	return f, nil
}

func encodeBlock(block *wtypes.ExportedBlock) ([]byte, error) {
	var raw bytes.Buffer
	if err := gob.NewEncoder(&raw).Encode(block); err != nil {
		return nil, fmt.Errorf("serialize block: %w", err)
	}
	var out bytes.Buffer
	enc, err := zstd.NewWriter(&out, zstd.WithEncoderDict(embeddedDict))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	if _, err := enc.Write(raw.Bytes()); err != nil {
		enc.Close()
		return nil, fmt.Errorf("compress block: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("finish block compression: %w", err)
	}
	return out.Bytes(), nil
}

func decodeBlock(frame []byte) (*wtypes.ExportedBlock, error) {
	dec, err := zstd.NewReader(bytes.NewReader(frame), zstd.WithDecoderDicts(embeddedDict))
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	defer dec.Close()
	decoded, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("decompress block: %w", err)
	}
	var block wtypes.ExportedBlock
	if err := gob.NewDecoder(bytes.NewReader(decoded)).Decode(&block); err != nil {
		return nil, fmt.Errorf("deserialize block: %w", err)
	}
	return &block, nil
}

// AddBlock appends the block's compressed frame then indexes it: the order
// is the durability invariant documented in §4.2.
func (d *DiskCache) AddBlock(ctx context.Context, block *wtypes.ExportedBlock) error {
	frame, err := encodeBlock(block)
	if err != nil {
		return err
	}
	batch := batchOf(block.Header.Height)
	f, err := d.batchFile(batch)
	if err != nil {
		return err
	}

	d.mu.Lock()
	pos, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		d.mu.Unlock()
		return fmt.Errorf("seek batch file %d: %w", batch, err)
	}
	if _, err := f.Write(frame); err != nil {
		d.mu.Unlock()
		return fmt.Errorf("write block frame: %w", err)
	}
	if err := f.Sync(); err != nil {
		d.mu.Unlock()
		return fmt.Errorf("flush block frame: %w", err)
	}
	d.mu.Unlock()

	digest := block.Hash()
	if _, err := d.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO block_cache (height, hash, pos, length) VALUES (?, ?, ?, ?)`,
		block.Header.Height, digest.String(), pos, len(frame)); err != nil {
		return fmt.Errorf("index block frame: %w", err)
	}

	return d.memory.AddBlock(ctx, block)
}

func (d *DiskCache) AddBlocks(ctx context.Context, blocks []*wtypes.ExportedBlock) error {
	for _, b := range blocks {
		if err := d.AddBlock(ctx, b); err != nil {
			return err
		}
	}
	return nil
}

// AddBlocksTemp is a soft write: memory layer only, never the disk. Used
// when seeding blocks already durable in a snapshot file.
func (d *DiskCache) AddBlocksTemp(ctx context.Context, blocks []*wtypes.ExportedBlock) error {
	return d.memory.AddBlocks(ctx, blocks)
}

func (d *DiskCache) HasBlockByHeight(height uint64) bool {
	if d.memory.HasBlockByHeight(height) {
		return true
	}
	var n int
	_ = d.db.QueryRow(`SELECT COUNT(1) FROM block_cache WHERE height = ?`, height).Scan(&n)
	return n > 0
}

func (d *DiskCache) GetByHeight(ctx context.Context, height uint64) (*wtypes.ExportedBlock, bool, error) {
	if b, ok, _ := d.memory.GetByHeight(ctx, height); ok {
		return b, true, nil
	}
	var hash string
	var pos, length int64
	err := d.db.QueryRowContext(ctx,
		`SELECT hash, pos, length FROM block_cache WHERE height = ? LIMIT 1`, height).
		Scan(&hash, &pos, &length)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query block_cache by height: %w", err)
	}
	block, err := d.readFrame(height, pos, length)
	if err != nil {
		return nil, false, err
	}
	return block, true, nil
}

func (d *DiskCache) GetByDigest(ctx context.Context, digest wtypes.Digest) (*wtypes.ExportedBlock, bool, error) {
	if b, ok, _ := d.memory.GetByDigest(ctx, digest); ok {
		return b, true, nil
	}
	var height int64
	var pos, length int64
	err := d.db.QueryRowContext(ctx,
		`SELECT height, pos, length FROM block_cache WHERE hash = ? LIMIT 1`, digest.String()).
		Scan(&height, &pos, &length)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query block_cache by digest: %w", err)
	}
	block, err := d.readFrame(uint64(height), pos, length)
	if err != nil {
		return nil, false, err
	}
	return block, true, nil
}

func (d *DiskCache) readFrame(height uint64, pos, length int64) (*wtypes.ExportedBlock, error) {
	f, err := d.batchFile(batchOf(height))
	if err != nil {
		return nil, err
	}
	frame := make([]byte, length)
	if _, err := f.ReadAt(frame, pos); err != nil {
		// Corrupt-cache condition (§7): row references a position past
		// EOF or a truncated frame. Caller falls back to remote fetch.
		return nil, fmt.Errorf("read block frame at %d+%d: %w", pos, length, err)
	}
	block, err := decodeBlock(frame)
	if err != nil {
		return nil, fmt.Errorf("corrupt cache frame at height %d: %w", height, err)
	}
	if block.Header.Height != height {
		return nil, fmt.Errorf("corrupt cache: frame at height %d decoded height %d", height, block.Header.Height)
	}
	return block, nil
}

// DeleteFromHeight deletes index rows with height >= h; batch files are not
// truncated, matching §4.2's "obsolete frames are simply unreferenced"
// contract.
func (d *DiskCache) DeleteFromHeight(ctx context.Context, height uint64) error {
	if _, err := d.db.ExecContext(ctx, `DELETE FROM block_cache WHERE height >= ?`, height); err != nil {
		return fmt.Errorf("delete block_cache rows: %w", err)
	}
	return d.memory.DeleteFromHeight(ctx, height)
}

// DeleteBlockFile parses the file name for its batch number, deletes the
// index rows in that height range, then unlinks the file.
func (d *DiskCache) DeleteBlockFile(ctx context.Context, path string) error {
	var batch uint64
	base := filepath.Base(path)
	if _, err := fmt.Sscanf(base, "%d.block", &batch); err != nil {
		return fmt.Errorf("parse batch file name %q: %w", base, err)
	}
	start := batch * BlockBatchSize
	end := start + BlockBatchSize
	if _, err := d.db.ExecContext(ctx,
		`DELETE FROM block_cache WHERE height >= ? AND height < ?`, start, end); err != nil {
		return fmt.Errorf("delete rows for batch file %d: %w", batch, err)
	}
	d.mu.Lock()
	if f, ok := d.files[batch]; ok {
		f.Close()
		delete(d.files, batch)
	}
	d.mu.Unlock()
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("unlink batch file %s: %w", path, err)
	}
	return nil
}

// CacheFileInfo describes one on-disk batch file for ListCacheFiles.
type CacheFileInfo struct {
	Network     wtypes.Network
	StartHeight uint64
	EndHeight   uint64
	SizeBytes   int64
}

// ListCacheFiles enumerates *.block files across known network
// subdirectories under dataDir.
func ListCacheFiles(dataDir string) ([]CacheFileInfo, error) {
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		return nil, fmt.Errorf("read data dir: %w", err)
	}
	var out []CacheFileInfo
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		var network wtypes.Network
		known := false
		for n := 0; n < 256; n++ {
			if wtypes.Network(n).String()+"_block" == e.Name() {
				network, known = wtypes.Network(n), true
				break
			}
		}
		if !known {
			continue
		}
		netDir := filepath.Join(dataDir, e.Name())
		files, err := os.ReadDir(netDir)
		if err != nil {
			continue
		}
		for _, bf := range files {
			var batch uint64
			if _, err := fmt.Sscanf(bf.Name(), "%d.block", &batch); err != nil {
				continue
			}
			info, err := bf.Info()
			if err != nil {
				continue
			}
			out = append(out, CacheFileInfo{
				Network:     network,
				StartHeight: batch * BlockBatchSize,
				EndHeight:   (batch + 1) * BlockBatchSize,
				SizeBytes:   info.Size(),
			})
		}
	}
	return out, nil
}

func (d *DiskCache) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, f := range d.files {
		f.Close()
	}
	return d.db.Close()
}

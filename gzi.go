package faigz

import (
	"encoding/binary"
	"fmt"

	"github.com/google/btree"
	"go.uber.org/zap"

	"github.com/waveygang/faigz/env"
)

const gziEntrySize = 16

// BlockIndex is the in-memory form of a `.gzi` sidecar: the block starts of a
// BGZF stream keyed by uncompressed offset, with the implicit (0, 0) entry for
// the first block inserted at load time.
//
// A BlockIndex is read-only after parse and is shared by every Reader attached
// to a Meta; no Reader owns or frees it.
type BlockIndex struct {
	index *btree.BTreeG[*env.BlockOffsetEntry]

	numBlocks int64
}

// parseBlockIndex decodes the little-endian `.gzi` wire form:
// a u64 count of explicit entries followed by that many
// (u64 compressed, u64 uncompressed) pairs in ascending uncompressed order.
func parseBlockIndex(p []byte, logger *zap.Logger) (*BlockIndex, error) {
	if len(p) < 8 {
		return nil, fmt.Errorf("%w: block index header is too small: %d", ErrIndexMalformed, len(p))
	}

	n := binary.LittleEndian.Uint64(p[0:8])
	if n > uint64(len(p)-8)/gziEntrySize {
		return nil, fmt.Errorf("%w: block index declares %d entries, have %d bytes",
			ErrIndexMalformed, n, len(p)-8)
	}
	if uint64(len(p)-8) != n*gziEntrySize {
		return nil, fmt.Errorf("%w: block index trailing garbage: %d bytes after %d entries",
			ErrIndexMalformed, uint64(len(p)-8)-n*gziEntrySize, n)
	}

	t := btree.NewG(8, env.Less)
	prev := &env.BlockOffsetEntry{}
	t.ReplaceOrInsert(prev)

	for i := uint64(0); i < n; i++ {
		off := 8 + i*gziEntrySize
		entry := &env.BlockOffsetEntry{
			CompOffset:   binary.LittleEndian.Uint64(p[off : off+8]),
			UncompOffset: binary.LittleEndian.Uint64(p[off+8 : off+16]),
		}

		if entry.UncompOffset <= prev.UncompOffset || entry.CompOffset <= prev.CompOffset {
			return nil, fmt.Errorf("%w: block index entry %d is not ascending: %d/%d after %d/%d",
				ErrIndexMalformed, i,
				entry.CompOffset, entry.UncompOffset, prev.CompOffset, prev.UncompOffset)
		}

		logger.Debug("block index entry", zap.Uint64("i", i), zap.Object("entry", entry))
		t.ReplaceOrInsert(entry)
		prev = entry
	}

	return &BlockIndex{
		index:     t,
		numBlocks: int64(n) + 1,
	}, nil
}

// marshalBlockIndex is the inverse of parseBlockIndex. The implicit first
// entry is not written.
func marshalBlockIndex(entries []env.BlockOffsetEntry) []byte {
	p := make([]byte, 8+len(entries)*gziEntrySize)
	binary.LittleEndian.PutUint64(p[0:8], uint64(len(entries)))
	for i, e := range entries {
		off := 8 + i*gziEntrySize
		binary.LittleEndian.PutUint64(p[off:off+8], e.CompOffset)
		binary.LittleEndian.PutUint64(p[off+8:off+16], e.UncompOffset)
	}
	return p
}

// NumBlocks returns the number of indexed blocks, counting the implicit
// first block.
func (b *BlockIndex) NumBlocks() int64 { return b.numBlocks }

// Lookup resolves an uncompressed position to the entry of the block
// containing it and the number of uncompressed bytes to skip within that
// block. The implicit (0, 0) entry guarantees a hit for any position.
func (b *BlockIndex) Lookup(off uint64) (*env.BlockOffsetEntry, uint64) {
	var found *env.BlockOffsetEntry
	b.index.DescendLessOrEqual(&env.BlockOffsetEntry{UncompOffset: off}, func(e *env.BlockOffsetEntry) bool {
		found = e
		return false
	})
	return found, off - found.UncompOffset
}

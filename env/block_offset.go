package env

import (
	"go.uber.org/zap/zapcore"
)

// BlockOffsetEntry maps the start of one BGZF block between the compressed
// and uncompressed byte streams. Entries are ordered by UncompOffset; the
// table always carries an implicit (0, 0) entry for the first block.
type BlockOffsetEntry struct {
	// CompOffset is the offset of the block within the compressed stream.
	CompOffset uint64
	// UncompOffset is the offset of the block's first payload byte within
	// the uncompressed stream.
	UncompOffset uint64
}

func (o *BlockOffsetEntry) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddUint64("CompOffset", o.CompOffset)
	enc.AddUint64("UncompOffset", o.UncompOffset)

	return nil
}

func Less(a, b *BlockOffsetEntry) bool {
	return a.UncompOffset < b.UncompOffset
}

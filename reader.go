package faigz

import (
	"fmt"
	"io"
	"math"

	"github.com/biogo/hts/bgzf"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// decoder is the private data stream a Reader owns: positioned by
// uncompressed offset, read sequentially from there.
type decoder interface {
	seek(off int64) error
	io.Reader
	io.Closer
}

// plainDecoder serves uncompressed sources straight from the file handle.
type plainDecoder struct {
	rs io.ReadSeekCloser
}

func (d *plainDecoder) seek(off int64) error {
	_, err := d.rs.Seek(off, io.SeekStart)
	return err
}

func (d *plainDecoder) Read(p []byte) (int, error) { return d.rs.Read(p) }

func (d *plainDecoder) Close() error { return d.rs.Close() }

// bgzfDecoder serves BGZF sources through a private decompressor that
// borrows the Meta's shared block-offset table for virtual seeks. The table
// is never owned here, so closing the decoder never touches it.
type bgzfDecoder struct {
	rs     io.ReadSeekCloser
	bg     *bgzf.Reader
	blocks *BlockIndex
}

func (d *bgzfDecoder) seek(off int64) error {
	entry, skip := d.blocks.Lookup(uint64(off))

	if skip <= math.MaxUint16 {
		return d.bg.Seek(bgzf.Offset{File: int64(entry.CompOffset), Block: uint16(skip)})
	}

	// Sparse table: land on the block start and discard up to the target.
	if err := d.bg.Seek(bgzf.Offset{File: int64(entry.CompOffset)}); err != nil {
		return err
	}
	_, err := io.CopyN(io.Discard, d.bg, int64(skip))
	return err
}

func (d *bgzfDecoder) Read(p []byte) (int, error) { return d.bg.Read(p) }

func (d *bgzfDecoder) Close() error {
	return multierr.Append(d.bg.Close(), d.rs.Close())
}

// Reader is a per-worker fetch handle. It owns a private decoder and file
// descriptor and borrows the shared Meta, holding one reference on it until
// Close. Two Readers never interfere; a single Reader is not goroutine-safe.
type Reader struct {
	meta *Meta
	dec  decoder

	logger *zap.Logger

	closed atomic.Bool
}

// NewReader opens a fetch handle on the Meta's source file. For BGZF sources
// the decoder shares the Meta's block-offset table instead of loading its
// own copy of the `.gzi` sidecar.
func NewReader(meta *Meta) (*Reader, error) {
	if err := meta.ref(); err != nil {
		return nil, err
	}

	rs, err := meta.o.env.OpenData(meta.path)
	if err != nil {
		_ = meta.Close()
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceMissing, meta.path, err)
	}

	r := &Reader{
		meta:   meta,
		logger: meta.o.logger,
	}

	if meta.isBGZF {
		bg, err := bgzf.NewReader(rs, 1)
		if err != nil {
			err = multierr.Combine(
				fmt.Errorf("%w: %s: %v", ErrIO, meta.path, err),
				rs.Close(),
				meta.Close(),
			)
			return nil, err
		}
		r.dec = &bgzfDecoder{rs: rs, bg: bg, blocks: meta.blocks}
	} else {
		r.dec = &plainDecoder{rs: rs}
	}

	return r, nil
}

// Close tears down the private decoder and releases the Reader's reference
// on the shared Meta. Safe to call more than once.
func (r *Reader) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	return multierr.Append(r.dec.Close(), r.meta.Close())
}

// Meta returns the shared index this Reader borrows.
func (r *Reader) Meta() *Meta { return r.meta }

// FetchSeq retrieves the payload bytes of the named sequence for the
// inclusive position range [beg, end]. Out-of-range positions are clamped
// into the sequence; a range that clamps to nothing yields an empty,
// non-nil slice and no error.
func (r *Reader) FetchSeq(name string, beg, end int64) ([]byte, error) {
	rec, beg, end, err := r.adjust(name, beg, end)
	if err != nil {
		return nil, err
	}
	return r.retrieve(rec, rec.seqOffset, beg, end)
}

// FetchQual retrieves quality bytes for the inclusive position range
// [beg, end]. Fails with ErrNotFastq on a FASTA index; otherwise identical
// to FetchSeq with the quality payload offset.
func (r *Reader) FetchQual(name string, beg, end int64) ([]byte, error) {
	if r.meta.format != FormatFastq {
		return nil, ErrNotFastq
	}

	rec, beg, end, err := r.adjust(name, beg, end)
	if err != nil {
		return nil, err
	}
	return r.retrieve(rec, rec.qualOffset, beg, end)
}

// adjust resolves the descriptor and clamps an inclusive caller range into
// the 0-based half-open interval [beg, end) the translator works on.
func (r *Reader) adjust(name string, beg, end int64) (faiRecord, int64, int64, error) {
	if r.closed.Load() {
		return faiRecord{}, 0, 0, fmt.Errorf("%w: reader is closed", ErrIO)
	}

	rec, ok := r.meta.byName[name]
	if !ok {
		return faiRecord{}, 0, 0, fmt.Errorf("%w: %q", ErrUnknownSequence, name)
	}

	// An inverted range clamps to empty, not to a single base.
	if end < beg {
		return rec, 0, 0, nil
	}

	if beg < 0 {
		beg = 0
	} else if beg > rec.length {
		beg = rec.length
	}

	if end < 0 {
		end = 0
	} else if end >= rec.length {
		end = rec.length - 1
	}

	end++ // inclusive to exclusive
	if end > rec.length {
		end = rec.length
	}
	if end < beg {
		end = beg
	}

	return rec, beg, end, nil
}

// retrieve reads the half-open payload range [beg, end) whose wrapped
// layout begins at base, stripping line terminators.
//
// Raw lines land in the result buffer at the payload write position, so each
// terminator is overwritten by the following read; the buffer is
// over-allocated by one terminator width to absorb the final overhang.
func (r *Reader) retrieve(rec faiRecord, base, beg, end int64) ([]byte, error) {
	if end == beg {
		return []byte{}, nil
	}

	plan, err := planRead(base, beg, end, rec.lineBases, rec.lineWidth)
	if err != nil {
		return nil, err
	}

	if err := r.dec.seek(plan.firstByte); err != nil {
		return nil, fmt.Errorf("%w: seek to %d: %v", ErrIO, plan.firstByte, err)
	}

	r.logger.Debug("retrieve",
		zap.Int64("base", base),
		zap.Int64("beg", beg),
		zap.Int64("end", end),
		zap.Int64("firstByte", plan.firstByte))

	buf := make([]byte, plan.n+(rec.lineWidth-rec.lineBases))

	if plan.single {
		if _, err := io.ReadFull(r.dec, buf[:plan.n]); err != nil {
			return nil, fmt.Errorf("%w: short read: %v", ErrIO, err)
		}
		return buf[:plan.n:plan.n], nil
	}

	var w int64
	if _, err := io.ReadFull(r.dec, buf[w:w+plan.firstRaw]); err != nil {
		return nil, fmt.Errorf("%w: short read: %v", ErrIO, err)
	}
	w += plan.firstBases

	for i := int64(0); i < plan.full; i++ {
		if _, err := io.ReadFull(r.dec, buf[w:w+rec.lineWidth]); err != nil {
			return nil, fmt.Errorf("%w: short read: %v", ErrIO, err)
		}
		w += rec.lineBases
	}

	if _, err := io.ReadFull(r.dec, buf[w:w+plan.tail]); err != nil {
		return nil, fmt.Errorf("%w: short read: %v", ErrIO, err)
	}

	return buf[:plan.n:plan.n], nil
}

package faigz

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/waveygang/faigz/env"
)

// osEnv is the Environment implementation for the local filesystem.
type osEnv struct{}

func (osEnv) OpenData(path string) (io.ReadSeekCloser, error) {
	return os.Open(path)
}

func (osEnv) ReadIndex(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func (osEnv) ReadBlockIndex(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func (osEnv) WriteSidecar(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Meta is the shared, immutable index of one FASTA or FASTQ file: the
// sequence directory from the `.fai` sidecar plus, for BGZF sources, the
// block-offset table from the `.gzi` sidecar.
//
// A Meta is reference counted. Load returns it with a count of one; every
// Reader holds one reference for its lifetime, and Ref takes one for any
// other holder. Close releases a reference, tearing the index down when the
// count reaches zero. All other state is read-only after Load and may be
// consulted concurrently without synchronization.
type Meta struct {
	names  []string
	byName map[string]faiRecord

	format Format
	isBGZF bool

	// blocks is non-nil iff isBGZF. Readers borrow it; none owns it.
	blocks *BlockIndex

	path string

	o metaOptions

	refs atomic.Int32
}

// Load builds the shared index for a data file from its sidecars. The
// derived paths are path+".fai" and path+".gzi"; the `.gzi` is required only
// when the data file is BGZF-framed. With WithCreate, missing sidecars are
// built by scanning the source; otherwise their absence is ErrIndexMissing.
//
// Load fails atomically: on any error, no partially constructed index is
// returned.
func Load(path string, format Format, opts ...Option) (*Meta, error) {
	m := &Meta{
		format: format,
		path:   path,
	}

	m.o.setDefault()
	for _, o := range opts {
		if err := o(&m.o); err != nil {
			return nil, err
		}
	}

	var err error
	m.isBGZF, err = detectBGZF(m.o.env, path)
	if err != nil {
		return nil, err
	}

	faiPath := path + ".fai"
	fai, err := readSidecar(m.o.env.ReadIndex, faiPath, func() error {
		return BuildIndex(path, format, m.o.env, m.o.logger)
	}, m.o.create)
	if err != nil {
		return nil, err
	}

	m.names, m.byName, err = parseIndex(fai, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", faiPath, err)
	}

	if m.isBGZF {
		gziPath := path + ".gzi"
		gzi, err := readSidecar(m.o.env.ReadBlockIndex, gziPath, func() error {
			return BuildBlockIndex(path, m.o.env, m.o.logger)
		}, m.o.create)
		if err != nil {
			return nil, err
		}

		m.blocks, err = parseBlockIndex(gzi, m.o.logger)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", gziPath, err)
		}
	}

	m.o.logger.Debug("index loaded",
		zap.String("path", path),
		zap.Stringer("format", format),
		zap.Bool("bgzf", m.isBGZF),
		zap.Int("sequences", len(m.names)))

	m.refs.Store(1)
	return m, nil
}

// readSidecar fetches one sidecar, optionally building it on first miss.
func readSidecar(read func(string) ([]byte, error), path string, build func() error, create bool) ([]byte, error) {
	p, err := read(path)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s: %v", ErrIO, path, err)
	}
	if !create {
		return nil, fmt.Errorf("%w: %s", ErrIndexMissing, path)
	}

	if err := build(); err != nil {
		return nil, err
	}

	p, err = read(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s after build: %v", ErrIO, path, err)
	}
	return p, nil
}

// detectBGZF sniffs the data file header for the BGZF extra subfield.
func detectBGZF(e env.Environment, path string) (bool, error) {
	f, err := e.OpenData(path)
	if err != nil {
		return false, fmt.Errorf("%w: %s: %v", ErrSourceMissing, path, err)
	}
	defer f.Close()

	var hdr [18]byte
	if _, err := io.ReadFull(f, hdr[:]); err != nil {
		// Too short to carry a BGZF header; treat as plain text.
		return false, nil
	}

	const (
		gzipID1    = 0x1f
		gzipID2    = 0x8b
		gzipCM     = 8
		flagFEXTRA = 1 << 2
	)
	if hdr[0] != gzipID1 || hdr[1] != gzipID2 {
		return false, nil
	}
	if hdr[2] != gzipCM || hdr[3]&flagFEXTRA == 0 || hdr[12] != 'B' || hdr[13] != 'C' {
		return false, fmt.Errorf("faigz: %s: gzip input lacks BGZF framing", path)
	}
	return true, nil
}

// Ref acquires one extra reference, extending the index's lifetime for a
// holder other than a Reader. It fails with ErrReleased once the count has
// reached zero.
func (m *Meta) Ref() (*Meta, error) {
	if err := m.ref(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Meta) ref() error {
	for {
		n := m.refs.Load()
		if n <= 0 {
			return ErrReleased
		}
		if m.refs.CompareAndSwap(n, n+1) {
			return nil
		}
	}
}

// Close releases one reference. The holder that drops the count to zero
// tears down the sequence directory and the block-offset table; earlier
// calls merely decrement and return.
func (m *Meta) Close() error {
	n := m.refs.Dec()
	if n > 0 {
		return nil
	}
	if n < 0 {
		return ErrReleased
	}

	m.names = nil
	m.byName = nil
	m.blocks = nil
	return nil
}

// NSeq returns the number of sequences in the index.
func (m *Meta) NSeq() int { return len(m.names) }

// SeqName returns the name of the i-th sequence in insertion order.
func (m *Meta) SeqName(i int) (string, error) {
	if i < 0 || i >= len(m.names) {
		return "", fmt.Errorf("%w: id %d of %d", ErrUnknownSequence, i, len(m.names))
	}
	return m.names[i], nil
}

// SeqLen returns the logical length of the named sequence.
func (m *Meta) SeqLen(name string) (int64, error) {
	rec, ok := m.byName[name]
	if !ok {
		return -1, fmt.Errorf("%w: %q", ErrUnknownSequence, name)
	}
	return rec.length, nil
}

// HasSeq reports whether the named sequence exists in the index.
func (m *Meta) HasSeq(name string) bool {
	_, ok := m.byName[name]
	return ok
}

// Format returns the index format.
func (m *Meta) Format() Format { return m.format }

// IsCompressed reports whether the source is BGZF-framed.
func (m *Meta) IsCompressed() bool { return m.isBGZF }

// SourcePath returns the path of the data file.
func (m *Meta) SourcePath() string { return m.path }

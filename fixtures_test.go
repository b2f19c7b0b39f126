package faigz

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// memEnv is an in-memory Environment for tests that never touch disk.
type memEnv struct {
	files map[string][]byte
}

type memFile struct {
	*bytes.Reader
}

func (memFile) Close() error { return nil }

func (e memEnv) OpenData(path string) (io.ReadSeekCloser, error) {
	p, ok := e.files[path]
	if !ok {
		return nil, fs.ErrNotExist
	}
	return memFile{bytes.NewReader(p)}, nil
}

func (e memEnv) read(path string) ([]byte, error) {
	p, ok := e.files[path]
	if !ok {
		return nil, fs.ErrNotExist
	}
	return p, nil
}

func (e memEnv) ReadIndex(path string) ([]byte, error)      { return e.read(path) }
func (e memEnv) ReadBlockIndex(path string) ([]byte, error) { return e.read(path) }

func (e memEnv) WriteSidecar(path string, data []byte) error {
	e.files[path] = data
	return nil
}

// genSeq returns n deterministic payload bytes so any slice of a fetch can
// be checked against the generator.
func genSeq(n int) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = "ACGTRYKMSWBDHVN"[(i*7+i/13)%15]
	}
	return p
}

// genQual returns n deterministic Phred-style quality bytes distinct from
// genSeq output.
func genQual(n int) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = byte('!' + (i*5+3)%40)
	}
	return p
}

type seqFixture struct {
	name  string
	seq   []byte
	width int
}

// buildFasta renders fixtures as wrapped FASTA text plus the matching `.fai`
// sidecar contents.
func buildFasta(seqs []seqFixture) (data, fai []byte) {
	var db, fb bytes.Buffer
	for _, s := range seqs {
		fmt.Fprintf(&db, ">%s\n", s.name)
		offset := db.Len()

		lineBases := s.width
		if len(s.seq) < lineBases {
			lineBases = len(s.seq)
		}

		for i := 0; i < len(s.seq); i += s.width {
			end := i + s.width
			if end > len(s.seq) {
				end = len(s.seq)
			}
			db.Write(s.seq[i:end])
			db.WriteByte('\n')
		}

		fmt.Fprintf(&fb, "%s\t%d\t%d\t%d\t%d\n", s.name, len(s.seq), offset, lineBases, lineBases+1)
	}
	return db.Bytes(), fb.Bytes()
}

// buildFastq renders fixtures as wrapped FASTQ text (quality wrapped the
// same as sequence) plus the matching `.fai` sidecar contents.
func buildFastq(seqs []seqFixture) (data, fai []byte) {
	var db, fb bytes.Buffer
	for _, s := range seqs {
		fmt.Fprintf(&db, "@%s\n", s.name)
		seqOffset := db.Len()

		lineBases := s.width
		if len(s.seq) < lineBases {
			lineBases = len(s.seq)
		}

		wrap := func(p []byte) {
			for i := 0; i < len(p); i += s.width {
				end := i + s.width
				if end > len(p) {
					end = len(p)
				}
				db.Write(p[i:end])
				db.WriteByte('\n')
			}
		}

		wrap(s.seq)
		db.WriteString("+\n")
		qualOffset := db.Len()
		wrap(genQual(len(s.seq)))

		fmt.Fprintf(&fb, "%s\t%d\t%d\t%d\t%d\t%d\n", s.name, len(s.seq), seqOffset, lineBases, lineBases+1, qualOffset)
	}
	return db.Bytes(), fb.Bytes()
}

// writeFixture drops data and sidecar files into a temp dir and returns the
// data path.
func writeFixture(t *testing.T, name string, data, fai []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	if fai != nil {
		require.NoError(t, os.WriteFile(path+".fai", fai, 0o644))
	}
	return path
}

// chr1Fixture is the canonical single-sequence layout: 180 bases wrapped at
// 60, line stride 61.
func chr1Fixture() []seqFixture {
	return []seqFixture{{name: "chr1", seq: genSeq(180), width: 60}}
}

// abcFixture is the canonical directory layout: three short sequences.
func abcFixture() []seqFixture {
	return []seqFixture{
		{name: "a", seq: genSeq(10), width: 60},
		{name: "b", seq: genSeq(20), width: 60},
		{name: "c", seq: genSeq(30), width: 60},
	}
}

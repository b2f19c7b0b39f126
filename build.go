package faigz

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/biogo/hts/bgzf"
	"github.com/klauspost/compress/gzip"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/waveygang/faigz/env"
)

// BuildIndex scans the source file and writes its `.fai` sidecar. BGZF
// sources are scanned through a decompressor; offsets in the sidecar are
// always positions in the uncompressed stream.
func BuildIndex(path string, format Format, e env.Environment, logger *zap.Logger) (err error) {
	rs, err := e.OpenData(path)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSourceMissing, path, err)
	}
	defer func() { err = multierr.Append(err, rs.Close()) }()

	var src io.Reader = rs
	if isBGZF, derr := detectBGZF(e, path); derr != nil {
		return derr
	} else if isBGZF {
		bg, berr := bgzf.NewReader(rs, 1)
		if berr != nil {
			return fmt.Errorf("%w: %s: %v", ErrIO, path, berr)
		}
		defer func() { err = multierr.Append(err, bg.Close()) }()
		src = bg
	}

	names, byName, err := scanRecords(src, format)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	logger.Debug("index built", zap.String("path", path), zap.Int("sequences", len(names)))
	return e.WriteSidecar(path+".fai", marshalIndex(names, byName, format))
}

// lineScanner tracks the uncompressed offset of every line it hands out.
type lineScanner struct {
	br  *bufio.Reader
	off int64 // offset of the next line start
}

// next returns one line's payload (terminators stripped), its start offset,
// and its raw width including terminators. io.EOF signals the end.
func (s *lineScanner) next() (payload []byte, start, width int64, err error) {
	start = s.off
	raw, err := s.br.ReadBytes('\n')
	if len(raw) == 0 {
		return nil, start, 0, err
	}

	width = int64(len(raw))
	s.off += width

	payload = bytes.TrimRight(raw, "\r\n")
	return payload, start, width, nil
}

// scanRecords walks the uncompressed stream and derives one faiRecord per
// sequence. Wrapped lines within a record must share one geometry; only the
// final line of a payload may be short.
func scanRecords(src io.Reader, format Format) ([]string, map[string]faiRecord, error) {
	if format == FormatFastq {
		return scanFastq(src)
	}
	return scanFasta(src)
}

func scanFasta(src io.Reader) ([]string, map[string]faiRecord, error) {
	names := []string{}
	byName := make(map[string]faiRecord)

	sc := &lineScanner{br: bufio.NewReader(src)}

	var cur faiRecord
	var curName string
	lastShort := false

	flush := func() error {
		if curName == "" {
			return nil
		}
		if _, ok := byName[curName]; ok {
			return fmt.Errorf("%w: %q", ErrDuplicateName, curName)
		}
		cur.id = len(names)
		names = append(names, curName)
		byName[curName] = cur
		return nil
	}

	for {
		payload, start, width, err := sc.next()
		if err == io.EOF && len(payload) == 0 && width == 0 {
			break
		}
		if err != nil && err != io.EOF {
			return nil, nil, fmt.Errorf("%w: %v", ErrIO, err)
		}

		switch {
		case len(payload) > 0 && payload[0] == '>':
			if err := flush(); err != nil {
				return nil, nil, err
			}
			curName = headerName(payload[1:])
			if curName == "" {
				return nil, nil, fmt.Errorf("%w: empty header at offset %d", ErrIndexMalformed, start)
			}
			cur = faiRecord{seqOffset: start + width}
			lastShort = false

		case curName == "":
			if len(payload) == 0 {
				continue
			}
			return nil, nil, fmt.Errorf("%w: payload before first header at offset %d", ErrIndexMalformed, start)

		case len(payload) == 0:
			// Blank line ends the record body; a further payload line would
			// make the record non-contiguous.
			lastShort = true

		default:
			if lastShort {
				return nil, nil, fmt.Errorf("%w: ragged line in %q at offset %d", ErrIndexMalformed, curName, start)
			}
			if cur.length == 0 {
				cur.lineBases = int64(len(payload))
				cur.lineWidth = width
			}
			if int64(len(payload)) > cur.lineBases || (int64(len(payload)) == cur.lineBases && width != cur.lineWidth) {
				return nil, nil, fmt.Errorf("%w: ragged line in %q at offset %d", ErrIndexMalformed, curName, start)
			}
			if int64(len(payload)) < cur.lineBases {
				lastShort = true
			}
			cur.length += int64(len(payload))
		}

		if err == io.EOF {
			break
		}
	}

	if err := flush(); err != nil {
		return nil, nil, err
	}
	return names, byName, nil
}

func scanFastq(src io.Reader) ([]string, map[string]faiRecord, error) {
	names := []string{}
	byName := make(map[string]faiRecord)

	sc := &lineScanner{br: bufio.NewReader(src)}

	for {
		header, start, width, err := sc.next()
		if err == io.EOF && len(header) == 0 && width == 0 {
			break
		}
		if err != nil && err != io.EOF {
			return nil, nil, fmt.Errorf("%w: %v", ErrIO, err)
		}
		if len(header) == 0 {
			continue
		}
		if header[0] != '@' {
			return nil, nil, fmt.Errorf("%w: want '@' header at offset %d", ErrIndexMalformed, start)
		}

		name := headerName(header[1:])
		if name == "" {
			return nil, nil, fmt.Errorf("%w: empty header at offset %d", ErrIndexMalformed, start)
		}
		if _, ok := byName[name]; ok {
			return nil, nil, fmt.Errorf("%w: %q", ErrDuplicateName, name)
		}

		rec := faiRecord{id: len(names), seqOffset: start + width}

		// Sequence lines run until the '+' separator.
		short := false
		for {
			payload, lstart, lwidth, err := sc.next()
			if err != nil && err != io.EOF {
				return nil, nil, fmt.Errorf("%w: %v", ErrIO, err)
			}
			if len(payload) == 0 {
				return nil, nil, fmt.Errorf("%w: truncated record %q", ErrIndexMalformed, name)
			}
			if payload[0] == '+' {
				rec.qualOffset = lstart + lwidth
				break
			}
			if rec.length == 0 {
				rec.lineBases = int64(len(payload))
				rec.lineWidth = lwidth
			} else if short || int64(len(payload)) > rec.lineBases ||
				(int64(len(payload)) == rec.lineBases && lwidth != rec.lineWidth) {
				return nil, nil, fmt.Errorf("%w: ragged line in %q at offset %d", ErrIndexMalformed, name, lstart)
			}
			if int64(len(payload)) < rec.lineBases {
				short = true
			}
			rec.length += int64(len(payload))
		}

		// Quality lines mirror the sequence payload byte count and wrapping.
		var qlen int64
		qshort := false
		for qlen < rec.length {
			payload, lstart, lwidth, err := sc.next()
			if err != nil && err != io.EOF {
				return nil, nil, fmt.Errorf("%w: %v", ErrIO, err)
			}
			if len(payload) == 0 && lwidth == 0 {
				return nil, nil, fmt.Errorf("%w: truncated quality in %q", ErrIndexMalformed, name)
			}
			if qshort {
				return nil, nil, fmt.Errorf("%w: ragged quality line in %q at offset %d", ErrIndexMalformed, name, lstart)
			}
			qlen += int64(len(payload))
			if qlen > rec.length {
				return nil, nil, fmt.Errorf("%w: quality longer than sequence in %q at offset %d", ErrIndexMalformed, name, lstart)
			}
			if int64(len(payload)) != rec.lineBases || lwidth != rec.lineWidth {
				qshort = true
			}
		}

		names = append(names, name)
		byName[name] = rec
	}

	return names, byName, nil
}

// headerName extracts the sequence name: the first whitespace-delimited word
// after the marker byte.
func headerName(p []byte) string {
	if i := bytes.IndexAny(p, " \t"); i >= 0 {
		p = p[:i]
	}
	return string(p)
}

// BuildBlockIndex walks the BGZF members of the data file and writes the
// `.gzi` sidecar: one (compressed, uncompressed) offset pair per block start
// after the first, in stream order.
//
// Each member's total size comes from its BSIZE extra subfield; the member
// is then decompressed in isolation to count its payload bytes.
func BuildBlockIndex(path string, e env.Environment, logger *zap.Logger) (err error) {
	rs, err := e.OpenData(path)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSourceMissing, path, err)
	}
	defer func() { err = multierr.Append(err, rs.Close()) }()

	br := bufio.NewReader(rs)

	var entries []env.BlockOffsetEntry
	var comp, uncomp uint64
	var zr gzip.Reader
	member := make([]byte, 0, bgzf.MaxBlockSize)

	for {
		var hdr [18]byte
		if _, err := io.ReadFull(br, hdr[:]); err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("%w: %s: truncated block header at %d: %v", ErrIndexMalformed, path, comp, err)
		}

		if hdr[0] != 0x1f || hdr[1] != 0x8b || hdr[3]&(1<<2) == 0 || hdr[12] != 'B' || hdr[13] != 'C' {
			return fmt.Errorf("%w: %s: not a BGZF block at %d", ErrIndexMalformed, path, comp)
		}

		bsize := uint64(binary.LittleEndian.Uint16(hdr[16:18])) + 1
		if bsize < uint64(len(hdr)) {
			return fmt.Errorf("%w: %s: block at %d declares size %d", ErrIndexMalformed, path, comp, bsize)
		}

		member = append(member[:0], hdr[:]...)
		member = append(member, make([]byte, bsize-uint64(len(hdr)))...)
		if _, err := io.ReadFull(br, member[len(hdr):]); err != nil {
			return fmt.Errorf("%w: %s: truncated block at %d: %v", ErrIndexMalformed, path, comp, err)
		}

		if err := zr.Reset(bytes.NewReader(member)); err != nil {
			return fmt.Errorf("%w: %s: block at %d: %v", ErrIndexMalformed, path, comp, err)
		}
		zr.Multistream(false)

		n, err := io.Copy(io.Discard, &zr)
		if err != nil {
			return fmt.Errorf("%w: %s: block at %d: %v", ErrIndexMalformed, path, comp, err)
		}

		comp += bsize
		uncomp += uint64(n)

		entries = append(entries, env.BlockOffsetEntry{CompOffset: comp, UncompOffset: uncomp})
	}

	// Entries mark block starts; drop those at or past the end of the
	// payload (the terminating empty block contributes nothing).
	for len(entries) > 0 && entries[len(entries)-1].UncompOffset >= uncomp {
		entries = entries[:len(entries)-1]
	}

	logger.Debug("block index built",
		zap.String("path", path),
		zap.Int("blocks", len(entries)+1),
		zap.Uint64("uncompressed", uncomp))

	return e.WriteSidecar(path+".gzi", marshalBlockIndex(entries))
}

package faigz

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// faiRecord is the physical layout descriptor for one sequence, one line of
// the `.fai` sidecar.
type faiRecord struct {
	// id is the dense position of the record in insertion order.
	id int

	// length is the logical base count, excluding line terminators.
	length int64

	// lineBases is the payload bytes per full wrapped line.
	lineBases int64
	// lineWidth is the on-disk bytes per line including terminators.
	lineWidth int64

	// seqOffset is the uncompressed offset of the first payload byte.
	seqOffset int64
	// qualOffset is the uncompressed offset of the first quality byte.
	// FASTQ only; zero otherwise.
	qualOffset int64
}

// parseIndex decodes a `.fai` sidecar: one tab-separated record per line,
// FASTA carrying five columns and FASTQ six (a seventh, the quality line
// stride, is tolerated but must match the sequence stride). An empty trailing
// line is tolerated.
func parseIndex(p []byte, format Format) ([]string, map[string]faiRecord, error) {
	names := []string{}
	byName := make(map[string]faiRecord)

	for i, line := range bytes.Split(p, []byte{'\n'}) {
		line = bytes.TrimSuffix(line, []byte{'\r'})
		if len(line) == 0 {
			continue
		}

		cols := strings.Split(string(line), "\t")
		switch {
		case format == FormatFasta && len(cols) != 5:
			return nil, nil, fmt.Errorf("%w: line %d: want 5 columns, have %d", ErrIndexMalformed, i+1, len(cols))
		case format == FormatFastq && len(cols) != 6 && len(cols) != 7:
			return nil, nil, fmt.Errorf("%w: line %d: want 6 or 7 columns, have %d", ErrIndexMalformed, i+1, len(cols))
		}

		name := cols[0]
		if name == "" {
			return nil, nil, fmt.Errorf("%w: line %d: empty sequence name", ErrIndexMalformed, i+1)
		}
		if _, ok := byName[name]; ok {
			return nil, nil, fmt.Errorf("%w: %q", ErrDuplicateName, name)
		}

		var parseErr error
		field := func(col int) int64 {
			v, err := strconv.ParseInt(cols[col], 10, 64)
			if (err != nil || v < 0) && parseErr == nil {
				parseErr = fmt.Errorf("%w: line %d column %d: bad value %q", ErrIndexMalformed, i+1, col+1, cols[col])
			}
			return v
		}

		rec := faiRecord{
			id:        len(names),
			length:    field(1),
			seqOffset: field(2),
			lineBases: field(3),
			lineWidth: field(4),
		}
		if parseErr != nil {
			return nil, nil, parseErr
		}

		if format == FormatFastq {
			v, err := strconv.ParseInt(cols[5], 10, 64)
			if err != nil || v < 0 {
				return nil, nil, fmt.Errorf("%w: line %d: bad quality offset %q", ErrIndexMalformed, i+1, cols[5])
			}
			rec.qualOffset = v

			if len(cols) == 7 {
				v, err := strconv.ParseInt(cols[6], 10, 64)
				if err != nil || v != rec.lineWidth {
					return nil, nil, fmt.Errorf("%w: line %d: quality stride %q does not match line stride %d",
						ErrIndexMalformed, i+1, cols[6], rec.lineWidth)
				}
			}
		}

		names = append(names, name)
		byName[name] = rec
	}

	return names, byName, nil
}

// marshalIndex is the inverse of parseIndex, emitting records in id order.
func marshalIndex(names []string, byName map[string]faiRecord, format Format) []byte {
	var buf bytes.Buffer
	for _, name := range names {
		rec := byName[name]
		fmt.Fprintf(&buf, "%s\t%d\t%d\t%d\t%d", name, rec.length, rec.seqOffset, rec.lineBases, rec.lineWidth)
		if format == FormatFastq {
			fmt.Fprintf(&buf, "\t%d", rec.qualOffset)
		}
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

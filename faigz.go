package faigz

/*
Package faigz provides reentrant random access to FASTA and FASTQ files,
including BGZF-compressed variants.

The index state is split in two:

  - Meta holds everything that is expensive to build and safe to share:
    the sequence directory parsed from the `.fai` sidecar, the BGZF
    block-offset table parsed from the `.gzi` sidecar, and the source path.
    A Meta is immutable after Load and reference counted.

  - Reader is a per-worker handle owning a private file descriptor and
    decompressor. Any number of Readers can fetch concurrently against one
    Meta without sharing a decoder or re-reading the sidecars.

## `.fai` sidecar

One record per sequence, tab separated:

	name	length	seq_offset	line_payload	line_stride

FASTQ records append the quality payload offset (and, optionally, the quality
line stride, which must equal the sequence line stride). Offsets are positions
in the uncompressed byte stream.

## `.gzi` sidecar

Little-endian binary:

	u64 N
	N x (u64 compressed_offset, u64 uncompressed_offset)

An implicit leading (0, 0) pair is inserted at load time. Entries are sorted
by uncompressed offset and resolve an uncompressed position P to the
compressed offset of the block containing it plus an intra-block skip.
*/

import "errors"

// Format selects how the source file and its index are interpreted.
type Format int

const (
	// FormatFasta indexes name plus wrapped sequence payload.
	FormatFasta Format = iota
	// FormatFastq additionally carries a quality payload per record.
	FormatFastq
)

func (f Format) String() string {
	switch f {
	case FormatFasta:
		return "fasta"
	case FormatFastq:
		return "fastq"
	}
	return "unknown"
}

var (
	// ErrSourceMissing is returned when the data file cannot be opened.
	ErrSourceMissing = errors.New("faigz: source file missing")

	// ErrIndexMissing is returned by Load when a required sidecar is absent
	// and WithCreate was not given.
	ErrIndexMissing = errors.New("faigz: index file missing")

	// ErrIndexMalformed is returned when `.fai` or `.gzi` contents cannot be
	// parsed.
	ErrIndexMalformed = errors.New("faigz: malformed index")

	// ErrDuplicateName is returned when two `.fai` records share a name.
	ErrDuplicateName = errors.New("faigz: duplicate sequence name")

	// ErrUnknownSequence is returned when a name or id is not in the index,
	// or a region string cannot be resolved.
	ErrUnknownSequence = errors.New("faigz: unknown sequence")

	// ErrBadGeometry is returned for descriptors with a zero line payload or
	// ranges that would overflow.
	ErrBadGeometry = errors.New("faigz: bad line geometry")

	// ErrNotFastq is returned by FetchQual on a FASTA source.
	ErrNotFastq = errors.New("faigz: not a fastq index")

	// ErrIO is returned when a seek or read fails after a successful open.
	// Short reads are ErrIO; the partial buffer is discarded.
	ErrIO = errors.New("faigz: read failed")

	// ErrReleased is returned by Ref, NewReader and Meta.Close when the
	// Meta's reference count already reached zero.
	ErrReleased = errors.New("faigz: index released")
)

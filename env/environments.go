package env

import "io"

// Environment can be used to inject a custom view of the source file and its
// sidecars that is different from the local filesystem. This is useful when,
// for example, the index bytes are served from memory or object storage.
type Environment interface {
	// OpenData opens the data file for reading. Each call returns an
	// independent handle; Readers never share one.
	OpenData(path string) (io.ReadSeekCloser, error)

	// ReadIndex returns the contents of the `.fai` sidecar.
	// A missing sidecar is reported with an error satisfying
	// errors.Is(err, fs.ErrNotExist).
	ReadIndex(path string) ([]byte, error)

	// ReadBlockIndex returns the contents of the `.gzi` sidecar, with the
	// same missing-file convention as ReadIndex.
	ReadBlockIndex(path string) ([]byte, error)

	// WriteSidecar atomically replaces a sidecar file. Only used when index
	// construction is requested.
	WriteSidecar(path string, data []byte) error
}

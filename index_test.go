package faigz

import (
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadQueries(t *testing.T) {
	t.Parallel()

	data, fai := buildFasta(abcFixture())
	path := writeFixture(t, "abc.fa", data, fai)

	meta, err := Load(path, FormatFasta)
	require.NoError(t, err)
	defer meta.Close()

	assert.Equal(t, 3, meta.NSeq())
	assert.Equal(t, FormatFasta, meta.Format())
	assert.False(t, meta.IsCompressed())
	assert.Equal(t, path, meta.SourcePath())

	name, err := meta.SeqName(1)
	require.NoError(t, err)
	assert.Equal(t, "b", name)

	_, err = meta.SeqName(3)
	assert.ErrorIs(t, err, ErrUnknownSequence)
	_, err = meta.SeqName(-1)
	assert.ErrorIs(t, err, ErrUnknownSequence)

	length, err := meta.SeqLen("c")
	require.NoError(t, err)
	assert.Equal(t, int64(30), length)

	_, err = meta.SeqLen("d")
	assert.ErrorIs(t, err, ErrUnknownSequence)

	assert.True(t, meta.HasSeq("a"))
	assert.False(t, meta.HasSeq("d"))
}

func TestLoadMissingSource(t *testing.T) {
	t.Parallel()

	_, err := Load(t.TempDir()+"/nope.fa", FormatFasta)
	assert.ErrorIs(t, err, ErrSourceMissing)
}

func TestLoadMissingIndex(t *testing.T) {
	t.Parallel()

	data, _ := buildFasta(abcFixture())
	path := writeFixture(t, "abc.fa", data, nil)

	_, err := Load(path, FormatFasta)
	assert.ErrorIs(t, err, ErrIndexMissing)
}

func TestLoadCreateBuildsIndex(t *testing.T) {
	t.Parallel()

	data, fai := buildFasta(abcFixture())
	path := writeFixture(t, "abc.fa", data, nil)

	meta, err := Load(path, FormatFasta, WithCreate())
	require.NoError(t, err)
	defer meta.Close()

	assert.Equal(t, 3, meta.NSeq())

	// The sidecar written by the builder matches the canonical rendering.
	built, err := os.ReadFile(path + ".fai")
	require.NoError(t, err)
	assert.Equal(t, fai, built)
}

func TestLoadMalformedIndex(t *testing.T) {
	t.Parallel()

	data, _ := buildFasta(abcFixture())
	path := writeFixture(t, "abc.fa", data, []byte("a\tnot-a-number\t6\t60\t61\n"))

	_, err := Load(path, FormatFasta)
	assert.ErrorIs(t, err, ErrIndexMalformed)
}

func TestLoadCustomEnvironment(t *testing.T) {
	t.Parallel()

	data, _ := buildFasta(abcFixture())
	e := memEnv{files: map[string][]byte{"mem/abc.fa": data}}

	// The builder writes into the environment, not the filesystem.
	meta, err := Load("mem/abc.fa", FormatFasta, WithEnvironment(e), WithCreate())
	require.NoError(t, err)
	defer meta.Close()

	assert.Contains(t, e.files, "mem/abc.fa.fai")

	reader, err := NewReader(meta)
	require.NoError(t, err)
	defer reader.Close()

	got, err := reader.FetchSeq("b", 0, 19)
	require.NoError(t, err)
	assert.Equal(t, genSeq(20), got)
}

func TestRefCounting(t *testing.T) {
	t.Parallel()

	data, fai := buildFasta(abcFixture())
	path := writeFixture(t, "abc.fa", data, fai)

	meta, err := Load(path, FormatFasta)
	require.NoError(t, err)

	// An extra holder plus a Reader, released in an arbitrary order.
	held, err := meta.Ref()
	require.NoError(t, err)
	assert.Same(t, meta, held)

	reader, err := NewReader(meta)
	require.NoError(t, err)

	require.NoError(t, meta.Close())   // Load's reference
	require.NoError(t, reader.Close()) // Reader's reference

	// The held reference keeps the directory alive.
	assert.True(t, meta.HasSeq("a"))

	require.NoError(t, held.Close()) // last one out

	_, err = meta.Ref()
	assert.ErrorIs(t, err, ErrReleased)
	_, err = NewReader(meta)
	assert.ErrorIs(t, err, ErrReleased)
	assert.ErrorIs(t, meta.Close(), ErrReleased)
}

func TestRefCountingConcurrent(t *testing.T) {
	t.Parallel()

	data, fai := buildFasta(abcFixture())
	path := writeFixture(t, "abc.fa", data, fai)

	meta, err := Load(path, FormatFasta)
	require.NoError(t, err)

	const workers = 16
	var wg sync.WaitGroup
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				held, err := meta.Ref()
				if err != nil {
					errs[i] = err
					return
				}
				if err := held.Close(); err != nil {
					errs[i] = err
					return
				}
			}
		}()
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "worker %d", i)
	}

	require.NoError(t, meta.Close())
	_, err = meta.Ref()
	assert.ErrorIs(t, err, ErrReleased)
}

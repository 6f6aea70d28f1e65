package source

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/filterx/internal/testutil"
)

func readAll(t *testing.T, src LineSource) []string {
	t.Helper()
	var lines []string
	for {
		line, err := src.ReadLine()
		if err == io.EOF {
			return lines
		}
		require.NoError(t, err)
		lines = append(lines, line)
	}
}

func TestPlainSourceDeliversBlankLines(t *testing.T) {
	path := testutil.WriteFile(t, t.TempDir(), "a.csv", "1,a\n\n2,b\r\n3,c")

	src, err := Open(path)
	require.NoError(t, err)
	defer src.Close()

	lines := readAll(t, src)
	assert.Equal(t, []string{"1,a\n", "\n", "2,b\r\n", "3,c"}, lines)
	assert.Equal(t, 4, src.LineNumber())
	assert.Equal(t, path, src.Name())

	// EOF is sticky.
	_, err = src.ReadLine()
	assert.Equal(t, io.EOF, err)
}

func TestGzipSourceDeliversBlankLines(t *testing.T) {
	path := testutil.WriteGzip(t, t.TempDir(), "a.csv.gz", "1,a\n\n\n2,b\n")

	src, err := Open(path)
	require.NoError(t, err)
	defer src.Close()

	lines := readAll(t, src)
	assert.Equal(t, []string{"1,a\n", "\n", "\n", "2,b\n"}, lines)
	assert.Equal(t, 4, src.LineNumber())
}

func TestEmptyFile(t *testing.T) {
	path := testutil.WriteFile(t, t.TempDir(), "empty.csv", "")

	src, err := Open(path)
	require.NoError(t, err)
	defer src.Close()

	_, err = src.ReadLine()
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, 0, src.LineNumber())
}

func TestSingleByteFileIsPlain(t *testing.T) {
	path := testutil.WriteFile(t, t.TempDir(), "one.csv", "x")

	src, err := Open(path)
	require.NoError(t, err)
	defer src.Close()

	assert.Equal(t, []string{"x"}, readAll(t, src))
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.csv"))
	require.Error(t, err)
	assert.True(t, IsInputError(err))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestCorruptGzipHeader(t *testing.T) {
	path := testutil.WriteFile(t, t.TempDir(), "bad.gz", "\x1f\x8bnot really gzip")

	_, err := Open(path)
	require.Error(t, err)
	assert.True(t, IsInputError(err))
	assert.Contains(t, err.Error(), "gzip header")
}

func TestNewReaderLongLine(t *testing.T) {
	long := strings.Repeat("x", 3*readBufferSize)
	src, err := NewReader("mem", io.NopCloser(strings.NewReader(long+"\nshort\n")))
	require.NoError(t, err)

	lines := readAll(t, src)
	require.Len(t, lines, 2)
	assert.Equal(t, long+"\n", lines[0])
	assert.Equal(t, "short\n", lines[1])
	assert.NoError(t, src.Close())
}

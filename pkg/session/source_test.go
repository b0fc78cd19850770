package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeTempSource(t *testing.T) string {
	t.Helper()
	file := filepath.Join(t.TempDir(), "main.c")
	content := "line one\nline two\nline three\nline four\nline five\n"
	require.NoError(t, os.WriteFile(file, []byte(content), 0644))
	return file
}

func TestSourceLine(t *testing.T) {
	file := writeTempSource(t)

	txt, err := sourceLine(file, 2)
	require.NoError(t, err)
	require.Equal(t, "line two", txt)

	_, err = sourceLine(file, 0)
	require.Error(t, err)

	_, err = sourceLine(file, 100)
	require.Error(t, err)

	_, err = sourceLine(filepath.Join(t.TempDir(), "nope.c"), 1)
	require.Error(t, err)
}

func TestListFile(t *testing.T) {
	file := writeTempSource(t)

	lines, offset, err := listFile(file, 3, 2)
	require.NoError(t, err)
	require.Equal(t, 1, offset)
	require.Equal(t, []string{"line two", "line three", "line four", "line five"}, lines)

	// range clamped at the start of the file
	lines, offset, err = listFile(file, 1, 5)
	require.NoError(t, err)
	require.Equal(t, 0, offset)
	require.Equal(t, "line one", lines[0])
}

func TestParseAddress(t *testing.T) {
	addr, err := parseAddress("0x4011a1")
	require.NoError(t, err)
	require.Equal(t, uintptr(0x4011a1), addr)

	addr, err = parseAddress("4011A1")
	require.NoError(t, err)
	require.Equal(t, uintptr(0x4011a1), addr)

	_, err = parseAddress("not-an-address")
	require.Error(t, err)
}

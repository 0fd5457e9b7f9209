package transfer

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// checkSameContents fails unless both files hold identical bytes.
func checkSameContents(t *testing.T, a, b string) {
	t.Helper()
	aData, err := os.ReadFile(a)
	require.NoError(t, err)
	bData, err := os.ReadFile(b)
	require.NoError(t, err)
	require.Equal(t, aData, bData)
}

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	dst := filepath.Join(dir, "dst.bin")
	require.NoError(t, os.WriteFile(src, []byte("payload bytes"), 0644))

	require.NoError(t, CopyFile(src, dst))
	checkSameContents(t, src, dst)

	err := CopyFile(dir, filepath.Join(dir, "never"))
	require.Error(t, err, "directories are not copyable")
}

func TestGzipRoundTrip(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "notes.txt")
	content := strings.Repeat("all work and no play\n", 200)
	require.NoError(t, os.WriteFile(src, []byte(content), 0644))

	gz, err := GzipToTemp(src)
	require.NoError(t, err)
	defer os.Remove(gz)

	gzInfo, err := os.Stat(gz)
	require.NoError(t, err)
	assert.Less(t, gzInfo.Size(), int64(len(content)), "repetitive text must shrink")

	restored := filepath.Join(dir, "restored.txt")
	require.NoError(t, GunzipFile(gz, restored))
	checkSameContents(t, src, restored)
}

func buildArchive(t *testing.T, entries map[string]string) io.Reader {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(zw)
	for name, content := range entries {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     name,
			Mode:     0644,
			Size:     int64(len(content)),
			Typeflag: tar.TypeReg,
		}))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, zw.Close())
	return &buf
}

func TestUntarStream(t *testing.T) {
	dir := t.TempDir()
	archive := buildArchive(t, map[string]string{
		"storctl":        "#!binary",
		"docs/README.md": "read me",
	})

	written, err := UntarStream(archive, dir)
	require.NoError(t, err)
	require.Len(t, written, 2)

	data, err := os.ReadFile(filepath.Join(dir, "storctl"))
	require.NoError(t, err)
	assert.Equal(t, "#!binary", string(data))
	data, err = os.ReadFile(filepath.Join(dir, "docs", "README.md"))
	require.NoError(t, err)
	assert.Equal(t, "read me", string(data))
}

func TestUntarStreamRejectsEscapes(t *testing.T) {
	dir := t.TempDir()
	archive := buildArchive(t, map[string]string{
		"../evil": "nope",
	})

	_, err := UntarStream(archive, dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "escapes destination")
	_, statErr := os.Stat(filepath.Join(filepath.Dir(dir), "evil"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestGuessContentType(t *testing.T) {
	ctype, encoding := GuessContentType("report.txt")
	assert.Equal(t, "text/plain; charset=utf-8", ctype)
	assert.Empty(t, encoding)

	ctype, encoding = GuessContentType("report.txt.gz")
	assert.Equal(t, "text/plain; charset=utf-8", ctype)
	assert.Equal(t, "gzip", encoding)

	ctype, encoding = GuessContentType("blob.qqq")
	assert.Empty(t, ctype)
	assert.Empty(t, encoding)
}

func TestHumanSize(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1 KB"},
		{1536, "1.5 KB"},
		{2621440, "2.5 MB"},
		{1 << 30, "1 GB"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, HumanSize(c.in), "HumanSize(%d)", c.in)
	}
}

func TestProgressPrinter(t *testing.T) {
	var buf bytes.Buffer
	report := NewProgressPrinter(&buf, "Uploading", 1024)
	report(512)
	report(1024)
	out := buf.String()
	assert.Contains(t, out, "Uploading: 512 B/1 KB")
	assert.Contains(t, out, "Uploading: 1 KB/1 KB")
	assert.True(t, strings.HasSuffix(out, "\n"), "finished transfers end the line")
}

func TestProgressReader(t *testing.T) {
	var last int64
	r := NewProgressReader(strings.NewReader(strings.Repeat("z", 300)), func(n int64) {
		last = n
	})
	n, err := io.Copy(io.Discard, r)
	require.NoError(t, err)
	assert.Equal(t, int64(300), n)
	assert.Equal(t, int64(300), last)
}

func TestFreeSpace(t *testing.T) {
	free, err := FreeSpace(os.TempDir())
	require.NoError(t, err)
	assert.Greater(t, free, int64(0))
}

package cloud

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/objtools/storctl/pkg/provider"
)

func TestWantsResumable(t *testing.T) {
	google := testProfile(t, provider.Google, "")
	aws := testProfile(t, provider.AWS, "")
	body := strings.NewReader("0123456789")

	c := &s3Client{profile: google, opts: Options{ResumableThreshold: 5, TrackerDir: t.TempDir()}}
	size, ok := c.wantsResumable(body)
	assert.True(t, ok)
	assert.Equal(t, int64(10), size)

	c.opts.ResumableThreshold = 20
	_, ok = c.wantsResumable(body)
	assert.False(t, ok, "below threshold")

	c.opts.ResumableThreshold = 5
	c.opts.TrackerDir = ""
	_, ok = c.wantsResumable(body)
	assert.False(t, ok, "no tracker dir")

	c = &s3Client{profile: aws, opts: Options{ResumableThreshold: 5, TrackerDir: t.TempDir()}}
	_, ok = c.wantsResumable(body)
	assert.False(t, ok, "provider without a resumable header")
}

func TestSeekSize(t *testing.T) {
	r := strings.NewReader("hello world")
	_, err := r.Seek(6, io.SeekStart)
	require.NoError(t, err)

	size, err := seekSize(r)
	require.NoError(t, err)
	assert.Equal(t, int64(5), size, "size counts from the current position")

	rest, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "world", string(rest), "position must be preserved")
}

func TestParseRangeEnd(t *testing.T) {
	cases := []struct {
		hdr  string
		want int64
	}{
		{"bytes=0-99", 100},
		{"bytes=0-0", 1},
		{"", 0},
		{"bytes=0-", 0},
		{"items=0-99", 0},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, parseRangeEnd(c.hdr), "header %q", c.hdr)
	}
}

func TestTrackerPath(t *testing.T) {
	c := &s3Client{opts: Options{TrackerDir: filepath.Join("/tmp", "trk")}}
	got := c.trackerPath("b", `dir/sub\obj.txt`)
	assert.Equal(t, filepath.Join("/tmp", "trk", "resumable_upload__b__dir_sub_obj.txt.url"), got)
}

func TestResumableFreshSession(t *testing.T) {
	rec := &recorder{}
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.observe(r)
		switch r.Method {
		case http.MethodPost:
			w.Header().Set("Location", srv.URL+"/session/1")
			w.WriteHeader(http.StatusCreated)
		case http.MethodPut:
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusTeapot)
		}
	}))
	defer srv.Close()

	trackerDir := t.TempDir()
	p := testProfile(t, provider.Google, srv.URL)
	c := newTestClient(t, p, Options{ResumableThreshold: 4, TrackerDir: trackerDir})

	var progress atomic.Int64
	content := []byte("0123456789")
	err := c.PutObject(context.Background(), "bucket", "big.bin", bytes.NewReader(content), PutOptions{
		ContentType: "application/octet-stream",
		Progress:    func(n int64) { progress.Store(n) },
	})
	require.NoError(t, err)

	require.Equal(t, []string{"POST /bucket/big.bin", "PUT /session/1"}, rec.seen())
	open := rec.header(0)
	assert.Equal(t, "start", open.Get("x-goog-resumable"))
	assert.Equal(t, "application/octet-stream", open.Get("Content-Type"))

	put := rec.header(1)
	assert.Equal(t, "bytes 0-9/10", put.Get("Content-Range"))
	assert.Equal(t, content, rec.body(1))
	assert.Equal(t, int64(10), progress.Load())

	entries, err := os.ReadDir(trackerDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "tracker file should be gone after success")
}

func TestResumableResumesFromTracker(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.observe(r)
		if r.Method != http.MethodPut {
			w.WriteHeader(http.StatusTeapot)
			return
		}
		if strings.HasPrefix(r.Header.Get("Content-Range"), "bytes */") {
			w.Header().Set("Range", "bytes=0-3")
			w.WriteHeader(http.StatusPermanentRedirect)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	trackerDir := t.TempDir()
	p := testProfile(t, provider.Google, srv.URL)
	c := newTestClient(t, p, Options{ResumableThreshold: 4, TrackerDir: trackerDir})

	tracker := c.trackerPath("bucket", "big.bin")
	require.NoError(t, os.WriteFile(tracker, []byte(srv.URL+"/session/9\n"), 0600))

	var progress atomic.Int64
	err := c.PutObject(context.Background(), "bucket", "big.bin", strings.NewReader("0123456789"), PutOptions{
		Progress: func(n int64) { progress.Store(n) },
	})
	require.NoError(t, err)

	require.Equal(t, []string{"PUT /session/9", "PUT /session/9"}, rec.seen())
	assert.Equal(t, "bytes */10", rec.header(0).Get("Content-Range"))
	assert.Equal(t, "bytes 4-9/10", rec.header(1).Get("Content-Range"))
	assert.Equal(t, "456789", string(rec.body(1)), "only the missing suffix should go up")
	assert.Equal(t, int64(10), progress.Load(), "progress counts the already-landed prefix")

	_, err = os.Stat(tracker)
	assert.True(t, os.IsNotExist(err))
}

func TestResumableProbeFindsUploadDone(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.observe(r)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	trackerDir := t.TempDir()
	p := testProfile(t, provider.Google, srv.URL)
	c := newTestClient(t, p, Options{ResumableThreshold: 4, TrackerDir: trackerDir})

	tracker := c.trackerPath("bucket", "big.bin")
	require.NoError(t, os.WriteFile(tracker, []byte(srv.URL+"/session/5\n"), 0600))

	err := c.PutObject(context.Background(), "bucket", "big.bin", strings.NewReader("0123456789"), PutOptions{})
	require.NoError(t, err)

	assert.Equal(t, []string{"PUT /session/5"}, rec.seen(), "a finished session needs no data")
	_, err = os.Stat(tracker)
	assert.True(t, os.IsNotExist(err))
}

func TestResumableStaleSessionRestarts(t *testing.T) {
	rec := &recorder{}
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.observe(r)
		switch {
		case r.Method == http.MethodPut && strings.HasPrefix(r.URL.Path, "/session/dead"):
			w.WriteHeader(http.StatusNotFound)
		case r.Method == http.MethodPost:
			w.Header().Set("Location", srv.URL+"/session/fresh")
			w.WriteHeader(http.StatusCreated)
		default:
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer srv.Close()

	trackerDir := t.TempDir()
	p := testProfile(t, provider.Google, srv.URL)
	c := newTestClient(t, p, Options{ResumableThreshold: 4, TrackerDir: trackerDir})

	tracker := c.trackerPath("bucket", "big.bin")
	require.NoError(t, os.WriteFile(tracker, []byte(srv.URL+"/session/dead\n"), 0600))

	content := []byte("0123456789")
	err := c.PutObject(context.Background(), "bucket", "big.bin", bytes.NewReader(content), PutOptions{})
	require.NoError(t, err)

	require.Equal(t, []string{
		"PUT /session/dead",
		"POST /bucket/big.bin",
		"PUT /session/fresh",
	}, rec.seen())
	assert.Equal(t, content, rec.body(2), "a rejected session restarts from zero")
}

func TestResumableSessionOpenRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	trackerDir := t.TempDir()
	p := testProfile(t, provider.Google, srv.URL)
	c := newTestClient(t, p, Options{ResumableThreshold: 4, TrackerDir: trackerDir})

	err := c.PutObject(context.Background(), "bucket", "big.bin", strings.NewReader("0123456789"), PutOptions{})
	var upErr *ResumableUploadError
	require.ErrorAs(t, err, &upErr)
	assert.Contains(t, upErr.Message, "session open")

	entries, err := os.ReadDir(trackerDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "no session, nothing to track")
}

func TestResumableBelowThresholdSingleShot(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.observe(r)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := testProfile(t, provider.Google, srv.URL)
	c := newTestClient(t, p, Options{ResumableThreshold: 100, TrackerDir: t.TempDir()})

	err := c.PutObject(context.Background(), "bucket", "small.bin", strings.NewReader("small"), PutOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"PUT /bucket/small.bin"}, rec.seen(), "small uploads take the single-shot path")
}

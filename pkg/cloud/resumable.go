package cloud

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/objtools/storctl/pkg/provider"
)

// Resumable uploads: providers that advertise a resumable header accept a
// session-open POST answered with a session URI in Location; the body then
// goes up with PUTs against that URI. Status 308 on a probe means the
// session is live and its Range header says how much already landed. The
// session URI persists in a tracker file so an interrupted upload resumes
// on the next invocation.

const (
	sessionStale = iota
	sessionLive
	sessionDone
)

// wantsResumable reports whether this upload should take the resumable path
// and, when it should, the body size.
func (c *s3Client) wantsResumable(body io.ReadSeeker) (int64, bool) {
	if c.profile.Header(provider.HeaderResumableUpload) == "" ||
		c.opts.ResumableThreshold <= 0 || c.opts.TrackerDir == "" {
		return 0, false
	}
	size, err := seekSize(body)
	if err != nil {
		return 0, false
	}
	return size, size >= c.opts.ResumableThreshold
}

// seekSize measures the bytes remaining in body without disturbing its
// position.
func seekSize(body io.ReadSeeker) (int64, error) {
	cur, err := body.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, err
	}
	end, err := body.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, err
	}
	if _, err := body.Seek(cur, io.SeekStart); err != nil {
		return 0, err
	}
	return end - cur, nil
}

func (c *s3Client) putResumable(ctx context.Context, bucket, object string, body io.ReadSeeker, size int64, opts PutOptions) error {
	tracker := c.trackerPath(bucket, object)

	var offset int64
	session := c.readTracker(tracker)
	if session != "" {
		c.log.WithField("object", object).Debug("Probing persisted upload session")
		state, resumeAt := c.probeSession(ctx, session, size)
		switch state {
		case sessionDone:
			os.Remove(tracker)
			return nil
		case sessionLive:
			offset = resumeAt
		default:
			// Stale or rejected session: start over.
			os.Remove(tracker)
			session = ""
		}
	}

	if session == "" {
		var err error
		if session, err = c.openSession(ctx, bucket, object, opts); err != nil {
			return err
		}
		c.writeTracker(tracker, session)
	}

	if err := c.uploadRange(ctx, session, body, offset, size, opts.Progress); err != nil {
		return err
	}
	os.Remove(tracker)
	return nil
}

// trackerPath names the file holding one object's session URI, flattening
// path separators out of the object name.
func (c *s3Client) trackerPath(bucket, object string) string {
	name := fmt.Sprintf("resumable_upload__%s__%s.url", bucket, object)
	name = strings.NewReplacer("/", "_", "\\", "_").Replace(name)
	return filepath.Join(c.opts.TrackerDir, name)
}

func (c *s3Client) readTracker(path string) string {
	b, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}

func (c *s3Client) writeTracker(path, session string) {
	// Session URIs authorize writes to the object; keep them private.
	if err := os.WriteFile(path, []byte(session+"\n"), 0600); err != nil {
		c.log.WithField("tracker", path).WithError(err).Debug("Unable to persist upload session")
	}
}

// openSession asks the backend for a session URI. Object attributes ride on
// the opening request; the data PUTs carry only bytes.
func (c *s3Client) openSession(ctx context.Context, bucket, object string, opts PutOptions) (string, error) {
	u := *c.endpoint
	u.Path = "/" + pathEscape(bucket+"/"+object)
	req, err := http.NewRequest(http.MethodPost, u.String(), nil)
	if err != nil {
		return "", &ClientError{Reason: "unable to build resumable session request: " + err.Error()}
	}
	req.Header.Set(c.profile.Header(provider.HeaderResumableUpload), "start")
	if opts.ContentType != "" {
		req.Header.Set("Content-Type", opts.ContentType)
	}
	if opts.ContentEncoding != "" {
		req.Header.Set("Content-Encoding", opts.ContentEncoding)
	}
	if opts.CannedACL != "" {
		req.Header.Set(c.profile.Header(provider.HeaderACL), opts.CannedACL)
	}
	metaPrefix := c.profile.Header(provider.HeaderMetadataPrefix)
	for k, v := range opts.Metadata {
		req.Header.Set(metaPrefix+k, v)
	}
	for k, v := range c.opts.ExtraHeaders {
		req.Header.Set(k, v)
	}
	if err := c.signRaw(req, nil); err != nil {
		return "", err
	}

	resp, err := c.http.Do(req.WithContext(ctx))
	if err != nil {
		return "", err
	}
	defer drainClose(resp.Body)
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", &ResumableUploadError{
			Message: fmt.Sprintf("session open for %s/%s rejected with status %d", bucket, object, resp.StatusCode),
		}
	}
	session := resp.Header.Get("Location")
	if session == "" {
		return "", &ResumableUploadError{Message: "session open returned no session URI"}
	}
	return session, nil
}

// probeSession asks a persisted session how much of the upload it has.
func (c *s3Client) probeSession(ctx context.Context, session string, size int64) (int, int64) {
	req, err := http.NewRequest(http.MethodPut, session, nil)
	if err != nil {
		return sessionStale, 0
	}
	req.Header.Set("Content-Range", fmt.Sprintf("bytes */%d", size))
	if err := c.signRaw(req, nil); err != nil {
		return sessionStale, 0
	}

	resp, err := c.http.Do(req.WithContext(ctx))
	if err != nil {
		return sessionStale, 0
	}
	defer drainClose(resp.Body)
	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		return sessionDone, 0
	case http.StatusPermanentRedirect: // the backend's "resume incomplete"
		return sessionLive, parseRangeEnd(resp.Header.Get("Range"))
	default:
		return sessionStale, 0
	}
}

// parseRangeEnd turns "bytes=0-N" into the next offset N+1. No header means
// nothing landed yet.
func parseRangeEnd(rangeHdr string) int64 {
	const prefix = "bytes="
	if !strings.HasPrefix(rangeHdr, prefix) {
		return 0
	}
	dash := strings.LastIndex(rangeHdr, "-")
	if dash < 0 {
		return 0
	}
	end, err := strconv.ParseInt(rangeHdr[dash+1:], 10, 64)
	if err != nil || end < 0 {
		return 0
	}
	return end + 1
}

// uploadRange sends body from offset through the end of the upload.
func (c *s3Client) uploadRange(ctx context.Context, session string, body io.ReadSeeker, offset, size int64, progress func(int64)) error {
	if _, err := body.Seek(offset, io.SeekStart); err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPut, session, nil)
	if err != nil {
		return &ClientError{Reason: "unable to build resumable upload request: " + err.Error()}
	}
	req.Header.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", offset, size-1, size))
	req.ContentLength = size - offset
	for k, v := range c.opts.ExtraHeaders {
		req.Header.Set(k, v)
	}
	// Sign against the bare body, then swap in the progress wrapper so the
	// signer's hashing pass doesn't count as transfer.
	if err := c.signRaw(req, body); err != nil {
		return err
	}
	if progress != nil {
		reported := progress
		if offset > 0 {
			reported = func(n int64) { progress(offset + n) }
		}
		req.Body = io.NopCloser(&progressReader{rs: body, fn: reported})
	}

	resp, err := c.http.Do(req.WithContext(ctx))
	if err != nil {
		return err
	}
	defer drainClose(resp.Body)
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return &ResumableUploadError{
			Message: fmt.Sprintf("upload PUT rejected with status %d", resp.StatusCode),
		}
	}
	return nil
}

func drainClose(rc io.ReadCloser) {
	io.Copy(io.Discard, io.LimitReader(rc, 4<<10))
	rc.Close()
}

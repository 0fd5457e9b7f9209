// Package cloud talks to the storage backends. One client implementation
// covers both providers: everything provider-specific (endpoint, credential
// fields, wire header names, error class names) comes out of the resolved
// profile, so nothing in here or above branches on aws-vs-google.
package cloud

import (
	"context"
	"io"
	"time"

	"github.com/objtools/storctl/pkg/provider"
)

// Bucket is one listing entry from ListBuckets.
type Bucket struct {
	Name         string
	CreationDate time.Time
}

// Object describes one stored object. Metadata holds user metadata with the
// provider's metadata prefix already stripped.
type Object struct {
	Bucket          string
	Name            string
	Size            int64
	LastModified    time.Time
	ETag            string
	StorageClass    string
	ContentType     string
	ContentEncoding string
	Metadata        map[string]string
}

// PutOptions carries the optional attributes of an upload.
type PutOptions struct {
	ContentType     string
	ContentEncoding string
	CannedACL       string
	Metadata        map[string]string
	// Progress, when set, observes byte counts as the body is consumed.
	// Rewinds (retries) reset the count.
	Progress func(transferred int64)
}

// CopyOptions carries the optional attributes of a server-side copy.
type CopyOptions struct {
	CannedACL string
	// PreserveACL asks the backend to carry the source ACL over where the
	// canned ACL is unset.
	PreserveACL bool
}

// ACLSetting is either a canned ACL name or a full XML document, never both.
type ACLSetting struct {
	Canned string
	XML    string
}

// StorageClient is the narrow surface the commands run against. All calls
// block; the context bounds them.
type StorageClient interface {
	Provider() *provider.Profile

	ListBuckets(ctx context.Context) ([]Bucket, error)
	CreateBucket(ctx context.Context, bucket string) error
	DeleteBucket(ctx context.Context, bucket string) error

	// ListObjects streams every object under prefix to fn, paging
	// internally. fn returning an error stops the walk and surfaces it.
	ListObjects(ctx context.Context, bucket, prefix string, fn func(Object) error) error
	StatObject(ctx context.Context, bucket, object string) (Object, error)
	GetObject(ctx context.Context, bucket, object string) (io.ReadCloser, Object, error)
	PutObject(ctx context.Context, bucket, object string, body io.ReadSeeker, opts PutOptions) error
	CopyObject(ctx context.Context, srcBucket, srcObject, dstBucket, dstObject string, opts CopyOptions) error
	DeleteObject(ctx context.Context, bucket, object string) error

	// GetACL returns the raw ACL XML in the provider's own dialect.
	GetACL(ctx context.Context, bucket, object string) (string, error)
	SetACL(ctx context.Context, bucket, object string, acl ACLSetting) error
}

// Options tunes client construction. Zero values take the transport section
// defaults.
type Options struct {
	Region string
	// ExtraHeaders go out on every request (the CLI's -h flag).
	ExtraHeaders map[string]string
	// DebugHTTP logs requests; DebugHTTPBody additionally logs payloads.
	DebugHTTP     bool
	DebugHTTPBody bool
	NumRetries    int
	Proxy         string
	// InsecureSkipVerify disables TLS certificate checks, for endpoints
	// behind interception proxies.
	InsecureSkipVerify bool
	// ResumableThreshold is the upload size at which providers that
	// advertise a resumable header switch to the resumable session
	// protocol. Zero disables resumable uploads.
	ResumableThreshold int64
	// TrackerDir persists resumable session URIs across invocations.
	// Resumable uploads need it; empty disables them.
	TrackerDir string
}

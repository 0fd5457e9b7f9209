package cloud

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/objtools/storctl/pkg/acl"
	"github.com/objtools/storctl/pkg/provider"
)

// Fake is an in-memory StorageClient. It stands in for a real endpoint in
// tests, answering with the profile's error classes and ACL dialect so
// failures and ACL documents look exactly like wire responses. Not safe for
// concurrent use.
type Fake struct {
	profile *provider.Profile
	now     func() time.Time
	buckets map[string]*fakeBucket
}

type fakeBucket struct {
	created time.Time
	acl     string
	objects map[string]*fakeObject
}

type fakeObject struct {
	data []byte
	meta Object
	acl  string
}

func NewFake(p *provider.Profile) *Fake {
	return &Fake{
		profile: p,
		now:     time.Now,
		buckets: make(map[string]*fakeBucket),
	}
}

func (f *Fake) Provider() *provider.Profile {
	return f.profile
}

func (f *Fake) respErr(kind provider.ErrorKind, status int, code string) *ResponseError {
	return &ResponseError{
		ClassName: f.profile.ErrorClass(kind),
		Status:    status,
		Code:      code,
		Reason:    http.StatusText(status),
	}
}

func (f *Fake) bucket(name string, kind provider.ErrorKind) (*fakeBucket, error) {
	b, ok := f.buckets[name]
	if !ok {
		return nil, f.respErr(kind, http.StatusNotFound, "NoSuchBucket")
	}
	return b, nil
}

func (f *Fake) ListBuckets(ctx context.Context) ([]Bucket, error) {
	names := make([]string, 0, len(f.buckets))
	for name := range f.buckets {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]Bucket, len(names))
	for i, name := range names {
		out[i] = Bucket{Name: name, CreationDate: f.buckets[name].created}
	}
	return out, nil
}

func (f *Fake) CreateBucket(ctx context.Context, bucket string) error {
	if _, ok := f.buckets[bucket]; ok {
		return f.respErr(provider.ErrorCreate, http.StatusConflict, "BucketAlreadyOwnedByYou")
	}
	f.buckets[bucket] = &fakeBucket{
		created: f.now(),
		acl:     "private",
		objects: make(map[string]*fakeObject),
	}
	return nil
}

func (f *Fake) DeleteBucket(ctx context.Context, bucket string) error {
	b, err := f.bucket(bucket, provider.ErrorResponse)
	if err != nil {
		return err
	}
	if len(b.objects) > 0 {
		return f.respErr(provider.ErrorResponse, http.StatusConflict, "BucketNotEmpty")
	}
	delete(f.buckets, bucket)
	return nil
}

func (f *Fake) ListObjects(ctx context.Context, bucket, prefix string, fn func(Object) error) error {
	b, err := f.bucket(bucket, provider.ErrorResponse)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(b.objects))
	for name := range b.objects {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		if err := fn(b.objects[name].meta); err != nil {
			return err
		}
	}
	return nil
}

func (f *Fake) object(bucket, object string, kind provider.ErrorKind) (*fakeObject, error) {
	b, err := f.bucket(bucket, kind)
	if err != nil {
		return nil, err
	}
	o, ok := b.objects[object]
	if !ok {
		return nil, f.respErr(kind, http.StatusNotFound, "NoSuchKey")
	}
	return o, nil
}

func (f *Fake) StatObject(ctx context.Context, bucket, object string) (Object, error) {
	o, err := f.object(bucket, object, provider.ErrorResponse)
	if err != nil {
		return Object{}, err
	}
	return o.meta, nil
}

func (f *Fake) GetObject(ctx context.Context, bucket, object string) (io.ReadCloser, Object, error) {
	o, err := f.object(bucket, object, provider.ErrorResponse)
	if err != nil {
		return nil, Object{}, err
	}
	data := append([]byte(nil), o.data...)
	return io.NopCloser(bytes.NewReader(data)), o.meta, nil
}

func (f *Fake) PutObject(ctx context.Context, bucket, object string, body io.ReadSeeker, opts PutOptions) error {
	b, err := f.bucket(bucket, provider.ErrorCreate)
	if err != nil {
		return err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	if opts.Progress != nil {
		opts.Progress(int64(len(data)))
	}
	sum := md5.Sum(data)
	meta := Object{
		Bucket:          bucket,
		Name:            object,
		Size:            int64(len(data)),
		LastModified:    f.now(),
		ETag:            hex.EncodeToString(sum[:]),
		StorageClass:    "STANDARD",
		ContentType:     opts.ContentType,
		ContentEncoding: opts.ContentEncoding,
	}
	if len(opts.Metadata) > 0 {
		meta.Metadata = make(map[string]string, len(opts.Metadata))
		for k, v := range opts.Metadata {
			meta.Metadata[k] = v
		}
	}
	objACL := opts.CannedACL
	if objACL == "" {
		objACL = "private"
	}
	b.objects[object] = &fakeObject{data: data, meta: meta, acl: objACL}
	return nil
}

func (f *Fake) CopyObject(ctx context.Context, srcBucket, srcObject, dstBucket, dstObject string, opts CopyOptions) error {
	src, err := f.object(srcBucket, srcObject, provider.ErrorCopy)
	if err != nil {
		return err
	}
	dst, err := f.bucket(dstBucket, provider.ErrorCopy)
	if err != nil {
		return err
	}
	meta := src.meta
	meta.Bucket = dstBucket
	meta.Name = dstObject
	meta.LastModified = f.now()
	objACL := opts.CannedACL
	if objACL == "" {
		objACL = "private"
		if opts.PreserveACL {
			objACL = src.acl
		}
	}
	dst.objects[dstObject] = &fakeObject{
		data: append([]byte(nil), src.data...),
		meta: meta,
		acl:  objACL,
	}
	return nil
}

func (f *Fake) DeleteObject(ctx context.Context, bucket, object string) error {
	b, err := f.bucket(bucket, provider.ErrorResponse)
	if err != nil {
		return err
	}
	if _, ok := b.objects[object]; !ok {
		return f.respErr(provider.ErrorResponse, http.StatusNotFound, "NoSuchKey")
	}
	delete(b.objects, object)
	return nil
}

// GetACL answers in the profile's ACL dialect: canned grants render to a
// full document, stored XML comes back verbatim.
func (f *Fake) GetACL(ctx context.Context, bucket, object string) (string, error) {
	stored, err := f.aclSlot(bucket, object)
	if err != nil {
		return "", err
	}
	if strings.HasPrefix(strings.TrimSpace(*stored), "<") {
		return *stored, nil
	}
	return acl.CannedDocument(f.profile.ACL, *stored, "fake-owner").Render(), nil
}

func (f *Fake) SetACL(ctx context.Context, bucket, object string, setting ACLSetting) error {
	stored, err := f.aclSlot(bucket, object)
	if err != nil {
		return err
	}
	if setting.XML != "" {
		*stored = setting.XML
		return nil
	}
	if !f.profile.HasCannedACL(setting.Canned) {
		return f.respErr(provider.ErrorResponse, http.StatusBadRequest, "InvalidArgument")
	}
	*stored = setting.Canned
	return nil
}

func (f *Fake) aclSlot(bucket, object string) (*string, error) {
	b, err := f.bucket(bucket, provider.ErrorPermissions)
	if err != nil {
		return nil, err
	}
	if object == "" {
		return &b.acl, nil
	}
	o, ok := b.objects[object]
	if !ok {
		return nil, f.respErr(provider.ErrorPermissions, http.StatusNotFound, "NoSuchKey")
	}
	return &o.acl, nil
}

// ObjectACL exposes the stored ACL value for assertions.
func (f *Fake) ObjectACL(bucket, object string) string {
	o, err := f.object(bucket, object, provider.ErrorResponse)
	if err != nil {
		return ""
	}
	return o.acl
}

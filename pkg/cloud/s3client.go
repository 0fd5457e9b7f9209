package cloud

import (
	"bytes"
	"context"
	"crypto/tls"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	v4 "github.com/aws/aws-sdk-go/aws/signer/v4"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/sirupsen/logrus"

	"github.com/objtools/storctl/pkg/provider"
)

const (
	defaultRegion = "us-east-1"
	sdkPrefix     = "x-amz-"
)

// s3Client drives one provider endpoint through the S3 wire protocol. The
// profile supplies the host, the credentials, and the header vocabulary;
// request/response hooks rename headers between the SDK's x-amz- family and
// the profile's own prefix, so the same code serves both backends.
type s3Client struct {
	profile  *provider.Profile
	svc      *s3.S3
	creds    *credentials.Credentials
	http     *http.Client
	log      *logrus.Entry
	opts     Options
	endpoint *url.URL

	// Last error body seen by the unmarshal hook. One command per process
	// and no internal parallelism, so a single slot is enough.
	lastErrBody string
}

// endpointURL normalizes a profile host into a full endpoint. Hosts are
// plain hostnames by default; a host override may carry its own scheme for
// local or non-TLS endpoints.
func endpointURL(host string) (*url.URL, error) {
	endpoint := host
	if !strings.Contains(endpoint, "://") {
		endpoint = "https://" + endpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return nil, &ClientError{Reason: "bad endpoint host " + host}
	}
	return u, nil
}

// NewClient builds a client for the profile. Fails before any network I/O
// when no auth handler claims the profile or the transport options don't
// build.
func NewClient(p *provider.Profile, logger *logrus.Logger, opts Options) (StorageClient, error) {
	if _, err := selectAuthHandler(p); err != nil {
		return nil, err
	}

	httpClient, err := buildHTTPClient(opts)
	if err != nil {
		return nil, err
	}

	endpoint, err := endpointURL(p.Host)
	if err != nil {
		return nil, err
	}

	if opts.Region == "" {
		opts.Region = defaultRegion
	}

	entry := logger.WithField("module", "cloud")
	creds := credentials.NewStaticCredentials(p.AccessKey, p.SecretKey, "")

	cfg := &aws.Config{
		Region:           aws.String(opts.Region),
		Endpoint:         aws.String(endpoint.String()),
		S3ForcePathStyle: aws.Bool(true),
		Credentials:      creds,
		HTTPClient:       httpClient,
		Logger: aws.LoggerFunc(func(args ...interface{}) {
			entry.Debug(args...)
		}),
	}
	if opts.NumRetries > 0 {
		cfg.MaxRetries = aws.Int(opts.NumRetries)
	}
	if opts.DebugHTTPBody {
		cfg.LogLevel = aws.LogLevel(aws.LogDebugWithHTTPBody)
	} else if opts.DebugHTTP {
		cfg.LogLevel = aws.LogLevel(aws.LogDebug)
	}

	sess, err := session.NewSession()
	if err != nil {
		return nil, &ClientError{Reason: "unable to create transport session: " + err.Error()}
	}

	c := &s3Client{
		profile:  p,
		creds:    creds,
		http:     httpClient,
		log:      entry,
		opts:     opts,
		endpoint: endpoint,
	}
	c.svc = s3.New(sess, cfg)
	c.svc.Handlers.Build.PushBack(c.decorateRequest)
	c.svc.Handlers.UnmarshalMeta.PushFront(c.normalizeResponseHeaders)
	c.svc.Handlers.UnmarshalError.PushFront(c.captureErrorBody)
	return c, nil
}

func buildHTTPClient(opts Options) (*http.Client, error) {
	tr := &http.Transport{Proxy: http.ProxyFromEnvironment}
	if opts.Proxy != "" {
		u, err := url.Parse(opts.Proxy)
		if err != nil {
			return nil, &ClientError{Reason: "bad proxy URL " + opts.Proxy}
		}
		tr.Proxy = http.ProxyURL(u)
	}
	if opts.InsecureSkipVerify {
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &http.Client{Transport: tr}, nil
}

func (c *s3Client) Provider() *provider.Profile {
	return c.profile
}

// decorateRequest runs at build time, before signing: global extra headers
// go on, then every x-amz- header the SDK emitted is renamed into the
// profile's header family when that family differs.
func (c *s3Client) decorateRequest(r *request.Request) {
	h := r.HTTPRequest.Header
	for k, v := range c.opts.ExtraHeaders {
		h.Set(k, v)
	}
	prefix := c.profile.Header(provider.HeaderPrefix)
	if prefix == sdkPrefix {
		return
	}
	renames := make(map[string][]string)
	for name, vals := range h {
		if lower := strings.ToLower(name); strings.HasPrefix(lower, sdkPrefix) {
			renames[prefix+lower[len(sdkPrefix):]] = vals
			delete(h, name)
		}
	}
	for name, vals := range renames {
		for _, v := range vals {
			h.Add(name, v)
		}
	}
}

// normalizeResponseHeaders is the inbound inverse: responses from a
// different header family are renamed to x-amz- so the SDK's unmarshalers
// (metadata, storage class, version info) see them.
func (c *s3Client) normalizeResponseHeaders(r *request.Request) {
	if r.HTTPResponse == nil {
		return
	}
	prefix := c.profile.Header(provider.HeaderPrefix)
	if prefix == sdkPrefix {
		return
	}
	h := r.HTTPResponse.Header
	renames := make(map[string][]string)
	for name, vals := range h {
		if lower := strings.ToLower(name); strings.HasPrefix(lower, prefix) {
			renames[sdkPrefix+lower[len(prefix):]] = vals
			delete(h, name)
		}
	}
	for name, vals := range renames {
		for _, v := range vals {
			h.Add(name, v)
		}
	}
}

// captureErrorBody tees the error response body so ResponseError can carry
// it (some backends put a <Details> element there).
func (c *s3Client) captureErrorBody(r *request.Request) {
	if r.HTTPResponse == nil || r.HTTPResponse.Body == nil {
		return
	}
	b, err := io.ReadAll(io.LimitReader(r.HTTPResponse.Body, 64<<10))
	if err != nil {
		return
	}
	r.HTTPResponse.Body.Close()
	r.HTTPResponse.Body = io.NopCloser(bytes.NewReader(b))
	c.lastErrBody = string(b)
}

// translate converts SDK failures into the provider's error classes. kind
// narrows to the specific class only for the statuses that family covers;
// everything else reports as the response class.
func (c *s3Client) translate(kind provider.ErrorKind, err error) error {
	if err == nil {
		return nil
	}
	if reqErr, ok := err.(awserr.RequestFailure); ok {
		status := reqErr.StatusCode()
		switch kind {
		case provider.ErrorCreate:
			if status != http.StatusConflict {
				kind = provider.ErrorResponse
			}
		case provider.ErrorPermissions:
			if status != http.StatusForbidden && status != http.StatusUnauthorized {
				kind = provider.ErrorResponse
			}
		}
		body := c.lastErrBody
		c.lastErrBody = ""
		return &ResponseError{
			ClassName: c.profile.ErrorClass(kind),
			Status:    status,
			Code:      reqErr.Code(),
			Reason:    http.StatusText(status),
			Body:      body,
		}
	}
	if aerr, ok := err.(awserr.Error); ok {
		// No HTTP response. Surface the original chain so socket-level
		// failures stay classifiable.
		if orig := aerr.OrigErr(); orig != nil {
			return orig
		}
	}
	return err
}

func (c *s3Client) ListBuckets(ctx context.Context) ([]Bucket, error) {
	out, err := c.svc.ListBucketsWithContext(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return nil, c.translate(provider.ErrorResponse, err)
	}
	buckets := make([]Bucket, 0, len(out.Buckets))
	for _, b := range out.Buckets {
		buckets = append(buckets, Bucket{
			Name:         aws.StringValue(b.Name),
			CreationDate: aws.TimeValue(b.CreationDate),
		})
	}
	return buckets, nil
}

func (c *s3Client) CreateBucket(ctx context.Context, bucket string) error {
	input := &s3.CreateBucketInput{Bucket: aws.String(bucket)}
	if c.opts.Region != defaultRegion {
		input.CreateBucketConfiguration = &s3.CreateBucketConfiguration{
			LocationConstraint: aws.String(c.opts.Region),
		}
	}
	_, err := c.svc.CreateBucketWithContext(ctx, input)
	return c.translate(provider.ErrorCreate, err)
}

func (c *s3Client) DeleteBucket(ctx context.Context, bucket string) error {
	_, err := c.svc.DeleteBucketWithContext(ctx, &s3.DeleteBucketInput{
		Bucket: aws.String(bucket),
	})
	return c.translate(provider.ErrorResponse, err)
}

func (c *s3Client) ListObjects(ctx context.Context, bucket, prefix string, fn func(Object) error) error {
	input := &s3.ListObjectsInput{
		Bucket:  aws.String(bucket),
		MaxKeys: aws.Int64(1000),
	}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}
	for {
		out, err := c.svc.ListObjectsWithContext(ctx, input)
		if err != nil {
			return c.translate(provider.ErrorResponse, err)
		}
		for _, o := range out.Contents {
			obj := Object{
				Bucket:       bucket,
				Name:         aws.StringValue(o.Key),
				Size:         aws.Int64Value(o.Size),
				LastModified: aws.TimeValue(o.LastModified),
				ETag:         strings.Trim(aws.StringValue(o.ETag), `"`),
				StorageClass: aws.StringValue(o.StorageClass),
			}
			if err := fn(obj); err != nil {
				return err
			}
		}
		if !aws.BoolValue(out.IsTruncated) || len(out.Contents) == 0 {
			return nil
		}
		marker := aws.StringValue(out.NextMarker)
		if marker == "" {
			marker = aws.StringValue(out.Contents[len(out.Contents)-1].Key)
		}
		input.Marker = aws.String(marker)
	}
}

func (c *s3Client) StatObject(ctx context.Context, bucket, object string) (Object, error) {
	out, err := c.svc.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(object),
	})
	if err != nil {
		return Object{}, c.translate(provider.ErrorResponse, err)
	}
	return Object{
		Bucket:          bucket,
		Name:            object,
		Size:            aws.Int64Value(out.ContentLength),
		LastModified:    aws.TimeValue(out.LastModified),
		ETag:            strings.Trim(aws.StringValue(out.ETag), `"`),
		StorageClass:    aws.StringValue(out.StorageClass),
		ContentType:     aws.StringValue(out.ContentType),
		ContentEncoding: aws.StringValue(out.ContentEncoding),
		Metadata:        aws.StringValueMap(out.Metadata),
	}, nil
}

func (c *s3Client) GetObject(ctx context.Context, bucket, object string) (io.ReadCloser, Object, error) {
	out, err := c.svc.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(object),
	})
	if err != nil {
		return nil, Object{}, c.translate(provider.ErrorResponse, err)
	}
	obj := Object{
		Bucket:          bucket,
		Name:            object,
		Size:            aws.Int64Value(out.ContentLength),
		LastModified:    aws.TimeValue(out.LastModified),
		ETag:            strings.Trim(aws.StringValue(out.ETag), `"`),
		StorageClass:    aws.StringValue(out.StorageClass),
		ContentType:     aws.StringValue(out.ContentType),
		ContentEncoding: aws.StringValue(out.ContentEncoding),
		Metadata:        aws.StringValueMap(out.Metadata),
	}
	return out.Body, obj, nil
}

func (c *s3Client) PutObject(ctx context.Context, bucket, object string, body io.ReadSeeker, opts PutOptions) error {
	if size, ok := c.wantsResumable(body); ok {
		return c.putResumable(ctx, bucket, object, body, size, opts)
	}
	input := &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(object),
		Body:   aws.ReadSeekCloser(wrapProgress(body, opts.Progress)),
	}
	if opts.ContentType != "" {
		input.ContentType = aws.String(opts.ContentType)
	}
	if opts.ContentEncoding != "" {
		input.ContentEncoding = aws.String(opts.ContentEncoding)
	}
	if opts.CannedACL != "" {
		input.ACL = aws.String(opts.CannedACL)
	}
	if len(opts.Metadata) > 0 {
		input.Metadata = aws.StringMap(opts.Metadata)
	}
	_, err := c.svc.PutObjectWithContext(ctx, input)
	return c.translate(provider.ErrorCreate, err)
}

func (c *s3Client) CopyObject(ctx context.Context, srcBucket, srcObject, dstBucket, dstObject string, opts CopyOptions) error {
	input := &s3.CopyObjectInput{
		Bucket:            aws.String(dstBucket),
		Key:               aws.String(dstObject),
		CopySource:        aws.String(pathEscape(srcBucket + "/" + srcObject)),
		MetadataDirective: aws.String(s3.MetadataDirectiveCopy),
	}
	if opts.CannedACL != "" {
		input.ACL = aws.String(opts.CannedACL)
	}
	_, err := c.svc.CopyObjectWithContext(ctx, input)
	return c.translate(provider.ErrorCopy, err)
}

func (c *s3Client) DeleteObject(ctx context.Context, bucket, object string) error {
	_, err := c.svc.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(object),
	})
	return c.translate(provider.ErrorResponse, err)
}

// GetACL fetches the ?acl subresource raw rather than through the SDK: each
// backend answers in its own XML dialect and the SDK would flatten one of
// them into the wrong shape.
func (c *s3Client) GetACL(ctx context.Context, bucket, object string) (string, error) {
	body, err := c.rawACLRequest(ctx, http.MethodGet, bucket, object, nil, nil)
	return body, err
}

func (c *s3Client) SetACL(ctx context.Context, bucket, object string, acl ACLSetting) error {
	if acl.Canned != "" {
		hdr := map[string]string{c.profile.Header(provider.HeaderACL): acl.Canned}
		_, err := c.rawACLRequest(ctx, http.MethodPut, bucket, object, strings.NewReader(""), hdr)
		return err
	}
	_, err := c.rawACLRequest(ctx, http.MethodPut, bucket, object, strings.NewReader(acl.XML), nil)
	return err
}

// rawACLRequest performs a signed request against the ?acl subresource and
// returns the response body verbatim.
func (c *s3Client) rawACLRequest(ctx context.Context, method, bucket, object string, body io.ReadSeeker, hdr map[string]string) (string, error) {
	u := *c.endpoint
	u.Path = "/" + bucket
	u.RawQuery = "acl"
	if object != "" {
		u.Path += "/" + object
	}
	req, err := http.NewRequest(method, u.String(), nil)
	if err != nil {
		return "", &ClientError{Reason: "unable to build ACL request: " + err.Error()}
	}
	for k, v := range c.opts.ExtraHeaders {
		req.Header.Set(k, v)
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}

	if err := c.signRaw(req, body); err != nil {
		return "", err
	}

	resp, err := c.http.Do(req.WithContext(ctx))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= 300 {
		code, _ := xmlElement(string(b), "Code")
		return "", &ResponseError{
			ClassName: c.permissionsClass(resp.StatusCode),
			Status:    resp.StatusCode,
			Code:      code,
			Reason:    http.StatusText(resp.StatusCode),
			Body:      string(b),
		}
	}
	return string(b), nil
}

// signRaw signs a hand-built request outside the SDK's handler stack. The
// signer installs body as the request body; a nil body signs as empty.
func (c *s3Client) signRaw(req *http.Request, body io.ReadSeeker) error {
	signer := v4.NewSigner(c.creds)
	if _, err := signer.Sign(req, body, "s3", c.opts.Region, time.Now()); err != nil {
		return &ClientError{Reason: "unable to sign request: " + err.Error()}
	}
	return nil
}

func (c *s3Client) permissionsClass(status int) string {
	if status == http.StatusForbidden || status == http.StatusUnauthorized {
		return c.profile.ErrorClass(provider.ErrorPermissions)
	}
	return c.profile.ErrorClass(provider.ErrorResponse)
}

// xmlElement pulls the text of the first <tag> element out of an XML blob.
// Good enough for error bodies; real documents go through pkg/acl.
func xmlElement(body, tag string) (string, bool) {
	openTag, closeTag := "<"+tag+">", "</"+tag+">"
	start := strings.Index(body, openTag)
	if start < 0 {
		return "", false
	}
	rest := body[start+len(openTag):]
	end := strings.Index(rest, closeTag)
	if end < 0 {
		return "", false
	}
	return rest[:end], true
}

func pathEscape(s string) string {
	parts := strings.Split(s, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

// progressReader counts consumed bytes. Signing and SDK retries rewind the
// body; a rewind to the start resets the count so the observer never sees
// double.
type progressReader struct {
	rs io.ReadSeeker
	fn func(int64)
	n  int64
}

func wrapProgress(rs io.ReadSeeker, fn func(int64)) io.ReadSeeker {
	if fn == nil {
		return rs
	}
	return &progressReader{rs: rs, fn: fn}
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.rs.Read(b)
	if n > 0 {
		p.n += int64(n)
		p.fn(p.n)
	}
	return n, err
}

func (p *progressReader) Seek(offset int64, whence int) (int64, error) {
	pos, err := p.rs.Seek(offset, whence)
	if err == nil && offset == 0 && whence == io.SeekStart {
		p.n = 0
	}
	return pos, err
}

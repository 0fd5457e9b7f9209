package cloud

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/objtools/storctl/pkg/provider"
)

// ErrNotReadyToAuthenticate means no registered auth handler could serve the
// request (typically: no credentials from any source).
var ErrNotReadyToAuthenticate = errors.New("no handler was ready to authenticate")

// ResponseError is a non-2xx answer from a provider. ClassName carries the
// provider-specific error class (S3ResponseError, GSCopyError, ...) resolved
// from the profile's error map, so messages read the way users of either
// backend expect.
type ResponseError struct {
	ClassName string
	Status    int
	Code      string
	Reason    string
	Body      string
}

func (e *ResponseError) Error() string {
	if d, ok := e.Detail(); ok {
		return fmt.Sprintf("%s: status=%d, code=%s, reason=%s, detail=%s.",
			e.ClassName, e.Status, e.Code, e.Reason, d)
	}
	return fmt.Sprintf("%s: status=%d, code=%s, reason=%s.",
		e.ClassName, e.Status, e.Code, e.Reason)
}

// Detail extracts the <Details> element some backends embed in error bodies.
func (e *ResponseError) Detail() (string, bool) {
	return xmlElement(e.Body, "Details")
}

// ClientError is a failure on our side of the wire: transport construction,
// data integrity, anything that never got a response. ClassName defaults to
// "ClientError"; data-integrity failures carry the profile's data-error
// class.
type ClientError struct {
	ClassName string
	Reason    string
}

func (e *ClientError) Error() string {
	name := e.ClassName
	if name == "" {
		name = "ClientError"
	}
	return fmt.Sprintf("%s: %s", name, e.Reason)
}

// NewDataError builds a data-integrity ClientError (hash mismatch, truncated
// transfer) carrying the profile's class name for the data kind.
func NewDataError(p *provider.Profile, format string, args ...interface{}) *ClientError {
	return &ClientError{
		ClassName: p.ErrorClass(provider.ErrorData),
		Reason:    fmt.Sprintf(format, args...),
	}
}

// ResumableUploadError means the resumable transfer protocol gave up.
type ResumableUploadError struct {
	Message string
}

func (e *ResumableUploadError) Error() string {
	return e.Message
}

// TooManyAuthHandlersError means more than one registered handler claimed it
// could authenticate, which leaves the choice ambiguous.
type TooManyAuthHandlersError struct {
	Handlers []string
}

func (e *TooManyAuthHandlersError) Error() string {
	return fmt.Sprintf("%d auth handlers ready to authenticate (%s), expected exactly one",
		len(e.Handlers), strings.Join(e.Handlers, ", "))
}

// AuthHandler signs requests for profiles it knows how to serve. Handlers
// register at init time; exactly one must claim a given profile.
type AuthHandler interface {
	Name() string
	// Ready reports whether the handler can authenticate for this profile.
	Ready(p *provider.Profile) bool
}

var authHandlers []AuthHandler

// RegisterAuthHandler adds a handler to the selection set. Not safe for
// concurrent use; call from init.
func RegisterAuthHandler(h AuthHandler) {
	authHandlers = append(authHandlers, h)
}

// selectAuthHandler picks the unique ready handler for a profile. Zero ready
// handlers degrade to a credential error precise enough to tell the user
// which option to set, or ErrNotReadyToAuthenticate when nothing at all is
// configured.
func selectAuthHandler(p *provider.Profile) (AuthHandler, error) {
	var ready []AuthHandler
	for _, h := range authHandlers {
		if h.Ready(p) {
			ready = append(ready, h)
		}
	}
	switch len(ready) {
	case 1:
		return ready[0], nil
	case 0:
		src := p.CredentialSource()
		if p.AccessKey != "" && p.SecretKey == "" {
			return nil, &provider.CredentialError{Provider: p.Name, Field: src.SecretKeyOption}
		}
		if p.AccessKey == "" && p.SecretKey != "" {
			return nil, &provider.CredentialError{Provider: p.Name, Field: src.AccessKeyOption}
		}
		return nil, ErrNotReadyToAuthenticate
	default:
		names := make([]string, len(ready))
		for i, h := range ready {
			names[i] = h.Name()
		}
		return nil, &TooManyAuthHandlersError{Handlers: names}
	}
}

// hmacKeys is the stock handler: HMAC access/secret key signing, the scheme
// both backends accept on their S3-compatible endpoints.
type hmacKeys struct{}

func (hmacKeys) Name() string { return "hmac-keys" }

func (hmacKeys) Ready(p *provider.Profile) bool {
	return p.AccessKey != "" && p.SecretKey != ""
}

func init() {
	RegisterAuthHandler(hmacKeys{})
}

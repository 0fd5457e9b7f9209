// Package uri parses and classifies the storage URIs accepted on the
// command line: s3://bucket/object, gs://bucket/object, file:///path, or a
// bare local path.
package uri

import (
	"fmt"
	"strings"
)

const (
	SchemeS3   = "s3"
	SchemeGS   = "gs"
	SchemeFile = "file"
)

// InvalidURIError reports a URI that can't name anything we know how to
// reach. The bare message (no prefix) is what reaches the failure
// translator.
type InvalidURIError struct {
	Message string
}

func (e *InvalidURIError) Error() string {
	return e.Message
}

// StorageURI names a bucket, an object, or a local file. For cloud schemes
// Bucket/Object hold the split remainder (either may be empty); for the file
// scheme the path lives in Object and Bucket is always empty.
type StorageURI struct {
	Scheme string
	Bucket string
	Object string
}

// Parse splits a raw command-line token into a StorageURI. Tokens without a
// scheme are taken as local paths. Wildcard characters pass through
// untouched; expansion happens later.
func Parse(raw string) (StorageURI, error) {
	if raw == "" {
		return StorageURI{}, &InvalidURIError{Message: "Invalid URI \"\""}
	}
	idx := strings.Index(raw, "://")
	if idx < 0 {
		return StorageURI{Scheme: SchemeFile, Object: raw}, nil
	}
	scheme := strings.ToLower(raw[:idx])
	rest := raw[idx+len("://"):]
	switch scheme {
	case SchemeFile:
		return StorageURI{Scheme: SchemeFile, Object: rest}, nil
	case SchemeS3, SchemeGS:
		var bucket, object string
		if slash := strings.Index(rest, "/"); slash >= 0 {
			bucket, object = rest[:slash], rest[slash+1:]
		} else {
			bucket = rest
		}
		if bucket == "" && object != "" {
			return StorageURI{}, &InvalidURIError{
				Message: fmt.Sprintf("Invalid URI %q: missing bucket name", raw),
			}
		}
		return StorageURI{Scheme: scheme, Bucket: bucket, Object: object}, nil
	default:
		return StorageURI{}, &InvalidURIError{
			Message: fmt.Sprintf("Unrecognized scheme %q in URI %q", scheme, raw),
		}
	}
}

// MustParse is Parse for compile-time constant URIs in tests and defaults.
func MustParse(raw string) StorageURI {
	u, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return u
}

func (u StorageURI) String() string {
	switch {
	case u.Scheme == SchemeFile:
		return SchemeFile + "://" + u.Object
	case u.Bucket == "":
		return u.Scheme + "://"
	default:
		return u.Scheme + "://" + u.Bucket + "/" + u.Object
	}
}

func (u StorageURI) IsFileURI() bool {
	return u.Scheme == SchemeFile
}

func (u StorageURI) IsCloudURI() bool {
	return u.Scheme == SchemeS3 || u.Scheme == SchemeGS
}

// IsProviderURI reports a scheme token followed by nothing at all, like
// "gs://". A URI with any bucket text, even wildcarded, is not bare.
func (u StorageURI) IsProviderURI() bool {
	return u.IsCloudURI() && u.Bucket == "" && u.Object == ""
}

// NamesBucket reports a cloud URI that names a bucket and no object.
func (u StorageURI) NamesBucket() bool {
	return u.IsCloudURI() && u.Bucket != "" && u.Object == ""
}

// NamesObject reports a cloud URI with a nonempty object name.
func (u StorageURI) NamesObject() bool {
	return u.IsCloudURI() && u.Object != ""
}

// NamesContainer reports a cloud URI that can hold other things: a bare
// provider or a bucket. File URIs need a stat to decide and are handled by
// the callers that own filesystem access.
func (u StorageURI) NamesContainer() bool {
	return u.IsProviderURI() || u.NamesBucket()
}

// Path returns the local path for file URIs.
func (u StorageURI) Path() string {
	return u.Object
}

// WithObject returns a copy naming a different object in the same bucket.
func (u StorageURI) WithObject(object string) StorageURI {
	u.Object = object
	return u
}

// ContainsWildcard reports whether any component carries *, ?, or a bracket
// class.
func (u StorageURI) ContainsWildcard() bool {
	return strings.ContainsAny(u.Bucket, "*?[") || strings.ContainsAny(u.Object, "*?[")
}

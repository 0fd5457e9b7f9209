// Package wildcard expands URI patterns into concrete storage URIs. Cloud
// patterns resolve through bucket and object listings; file patterns walk
// the local tree. `*` and `?` stay inside one path component, `**` crosses
// components, and bracket classes pass through unchanged.
package wildcard

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/objtools/storctl/pkg/cloud"
	"github.com/objtools/storctl/pkg/uri"
)

const wildcardChars = "*?["

// Error reports an expansion that produced nothing usable. Its reason is
// shown to the user verbatim.
type Error struct {
	Reason string
}

func (e *Error) Error() string {
	return e.Reason
}

// NoMatches reports whether err is an expansion miss. Listings treat a miss
// as an empty result rather than a failure.
func NoMatches(err error) bool {
	var werr *Error
	return errors.As(err, &werr) && strings.Contains(werr.Reason, "No matches")
}

func noMatches(u uri.StorageURI) *Error {
	return &Error{Reason: fmt.Sprintf("No matches for %q.", u.String())}
}

func invalidPattern(u uri.StorageURI, err error) *Error {
	return &Error{Reason: fmt.Sprintf("Invalid wildcard %q: %v", u.String(), err)}
}

// Source is the slice of the storage surface expansion reads: bucket and
// object listings plus single-object stats.
type Source interface {
	ListBuckets(ctx context.Context) ([]cloud.Bucket, error)
	ListObjects(ctx context.Context, bucket, prefix string, fn func(cloud.Object) error) error
	StatObject(ctx context.Context, bucket, object string) (cloud.Object, error)
}

// Expander resolves wildcard patterns against cloud listings and the local
// filesystem. Clients resolves the source serving a URI scheme lazily, so
// expansion only touches providers a pattern actually names.
type Expander struct {
	Clients func(scheme string) (Source, error)
}

// Expand resolves u into the URIs it names. URIs without wildcard characters
// pass through untouched (existence stays the caller's concern); patterns
// that match nothing fail with *Error.
func (e *Expander) Expand(ctx context.Context, u uri.StorageURI) ([]uri.StorageURI, error) {
	if !u.ContainsWildcard() {
		return []uri.StorageURI{u}, nil
	}
	if u.IsFileURI() {
		return expandFile(u)
	}
	return e.expandCloud(ctx, u)
}

// Objects is Expand for callers that need listing metadata: it returns the
// matched objects themselves. A URI without wildcards stats its single
// object.
func (e *Expander) Objects(ctx context.Context, u uri.StorageURI) ([]cloud.Object, error) {
	if !u.IsCloudURI() || u.Object == "" {
		return nil, &Error{Reason: fmt.Sprintf("No object pattern in %q.", u.String())}
	}
	src, err := e.Clients(u.Scheme)
	if err != nil {
		return nil, err
	}
	if !u.ContainsWildcard() {
		obj, err := src.StatObject(ctx, u.Bucket, u.Object)
		if err != nil {
			return nil, err
		}
		return []cloud.Object{obj}, nil
	}
	buckets, err := matchBuckets(ctx, src, u)
	if err != nil {
		return nil, err
	}
	var out []cloud.Object
	for _, bucket := range buckets {
		objs, err := matchObjects(ctx, src, bucket, u.Object)
		if err != nil {
			return nil, err
		}
		out = append(out, objs...)
	}
	if len(out) == 0 {
		return nil, noMatches(u)
	}
	return out, nil
}

func (e *Expander) expandCloud(ctx context.Context, u uri.StorageURI) ([]uri.StorageURI, error) {
	src, err := e.Clients(u.Scheme)
	if err != nil {
		return nil, err
	}
	buckets, err := matchBuckets(ctx, src, u)
	if err != nil {
		return nil, err
	}
	if u.Object == "" {
		if len(buckets) == 0 {
			return nil, noMatches(u)
		}
		out := make([]uri.StorageURI, len(buckets))
		for i, bucket := range buckets {
			out[i] = uri.StorageURI{Scheme: u.Scheme, Bucket: bucket}
		}
		return out, nil
	}
	var out []uri.StorageURI
	for _, bucket := range buckets {
		objs, err := matchObjects(ctx, src, bucket, u.Object)
		if err != nil {
			return nil, err
		}
		for _, o := range objs {
			out = append(out, uri.StorageURI{Scheme: u.Scheme, Bucket: bucket, Object: o.Name})
		}
	}
	if len(out) == 0 {
		return nil, noMatches(u)
	}
	return out, nil
}

func matchBuckets(ctx context.Context, src Source, u uri.StorageURI) ([]string, error) {
	if !strings.ContainsAny(u.Bucket, wildcardChars) {
		return []string{u.Bucket}, nil
	}
	re, err := translate(u.Bucket)
	if err != nil {
		return nil, invalidPattern(u, err)
	}
	all, err := src.ListBuckets(ctx)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, b := range all {
		if re.MatchString(b.Name) {
			names = append(names, b.Name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// matchObjects lists with the pattern's literal prefix so the server bounds
// the walk, then filters by the full pattern.
func matchObjects(ctx context.Context, src Source, bucket, pattern string) ([]cloud.Object, error) {
	re, err := translate(pattern)
	if err != nil {
		return nil, invalidPattern(uri.StorageURI{Scheme: uri.SchemeGS, Bucket: bucket, Object: pattern}, err)
	}
	var out []cloud.Object
	err = src.ListObjects(ctx, bucket, literalPrefix(pattern), func(o cloud.Object) error {
		if re.MatchString(o.Name) {
			out = append(out, o)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func expandFile(u uri.StorageURI) ([]uri.StorageURI, error) {
	pattern := filepath.ToSlash(u.Path())
	re, err := translate(pattern)
	if err != nil {
		return nil, invalidPattern(u, err)
	}
	root := literalDir(pattern)
	if _, err := os.Stat(root); err != nil {
		if os.IsNotExist(err) {
			return nil, noMatches(u)
		}
		return nil, err
	}

	recursive := strings.Contains(pattern, "**")
	maxDepth := strings.Count(pattern, "/")
	var matches []uri.StorageURI
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, werr error) error {
		if werr != nil {
			return werr
		}
		if p == root {
			return nil
		}
		slashed := filepath.ToSlash(p)
		// ** enumerates files; non-recursive patterns also surface the
		// directories they match so callers can treat them as containers.
		if re.MatchString(slashed) && !(recursive && d.IsDir()) {
			matches = append(matches, uri.StorageURI{Scheme: uri.SchemeFile, Object: p})
		}
		if d.IsDir() && !recursive && strings.Count(slashed, "/") >= maxDepth {
			return filepath.SkipDir
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, noMatches(u)
	}
	return matches, nil
}

// literalDir is the deepest directory a file pattern names before its first
// wildcard, the point the walk starts from.
func literalDir(pattern string) string {
	i := strings.IndexAny(pattern, wildcardChars)
	if i < 0 {
		i = len(pattern)
	}
	slash := strings.LastIndex(pattern[:i], "/")
	switch {
	case slash < 0:
		return "."
	case slash == 0:
		return "/"
	default:
		return pattern[:slash]
	}
}

// literalPrefix is the pattern's leading non-wildcard text, usable as a
// server-side listing prefix.
func literalPrefix(pattern string) string {
	if i := strings.IndexAny(pattern, wildcardChars); i >= 0 {
		return pattern[:i]
	}
	return pattern
}

// translate compiles a storage wildcard pattern into an anchored regexp.
func translate(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("^")
	for i := 0; i < len(pattern); i++ {
		switch c := pattern[i]; c {
		case '*':
			if i+1 < len(pattern) && pattern[i+1] == '*' {
				b.WriteString(".*")
				i++
			} else {
				b.WriteString("[^/]*")
			}
		case '?':
			b.WriteString("[^/]")
		case '[':
			j := i + 1
			if j < len(pattern) && (pattern[j] == '!' || pattern[j] == '^') {
				j++
			}
			if j < len(pattern) && pattern[j] == ']' {
				j++
			}
			for j < len(pattern) && pattern[j] != ']' {
				j++
			}
			if j >= len(pattern) {
				b.WriteString(regexp.QuoteMeta("["))
			} else {
				class := pattern[i : j+1]
				class = strings.Replace(class, "[!", "[^", 1)
				b.WriteString(class)
				i = j
			}
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}

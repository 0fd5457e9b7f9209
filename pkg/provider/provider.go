// Package provider resolves a provider name (aws, google) into everything
// the rest of the tool needs to talk to that backend: credentials, endpoint
// host, concrete wire header names, canned ACL vocabulary, and the error
// class names its transport failures carry. Callers never branch on the
// provider; they read the resolved profile.
package provider

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// UnknownProviderError reports a name outside the closed provider set. This
// is a configuration-level failure and is printed raw.
type UnknownProviderError struct {
	Name string
}

func (e *UnknownProviderError) Error() string {
	known := make([]string, 0, len(Names()))
	for _, n := range Names() {
		known = append(known, string(n))
	}
	return fmt.Sprintf("no provider registered for %q (known providers: %s)",
		e.Name, strings.Join(known, ", "))
}

// CredentialError reports a profile attribute an operation needed but
// resolution left unset. Field carries the config option name so the message
// tells the user exactly what to set.
type CredentialError struct {
	Provider Name
	Field    string
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("provider %s has no value for %s", e.Provider, e.Field)
}

// MissingSecret reports whether the unset attribute is the secret key, which
// gets the friendlier first-run guidance.
func (e *CredentialError) MissingSecret() bool {
	return strings.Contains(e.Field, "secret")
}

// Credentials carries explicit keys supplied by a caller; either field may
// be empty.
type Credentials struct {
	AccessKey string
	SecretKey string
}

// ConfigStore is the slice of the persisted configuration the resolver
// reads: string options out of the credentials section. Unset options return
// the empty string.
type ConfigStore interface {
	CredentialOption(option string) string
}

// Profile is the resolved, immutable identity of one provider for the life
// of the process.
type Profile struct {
	Name       Name
	AccessKey  string
	SecretKey  string
	Host       string
	ACL        ACLVocabulary
	CannedACLs []string

	headers map[HeaderKey]string
	classes map[ErrorKind]string
}

// Header returns the concrete wire header name for an abstract key. Empty
// means the provider has no such header.
func (p *Profile) Header(key HeaderKey) string {
	return p.headers[key]
}

// ErrorClass returns the provider's class name for an abstract error kind,
// e.g. ErrorResponse -> "GSResponseError".
func (p *Profile) ErrorClass(kind ErrorKind) string {
	return p.classes[kind]
}

// HasCannedACL reports whether name is a canned ACL this provider accepts.
func (p *Profile) HasCannedACL(name string) bool {
	for _, c := range p.CannedACLs {
		if c == name {
			return true
		}
	}
	return false
}

// CredentialSource returns the option names this profile's keys were (or
// would be) resolved from.
func (p *Profile) CredentialSource() CredentialSource {
	return credentialSources[p.Name]
}

// AccessKeyEnvVar is the environment variable consulted for the access key.
func (s CredentialSource) AccessKeyEnvVar() string {
	return strings.ToUpper(s.AccessKeyOption)
}

// SecretKeyEnvVar is the environment variable consulted for the secret key.
func (s CredentialSource) SecretKeyEnvVar() string {
	return strings.ToUpper(s.SecretKeyOption)
}

// Registry builds and caches profiles. One registry per process; profiles
// resolve lazily on first use and live until exit.
type Registry struct {
	store ConfigStore
	log   *logrus.Entry

	mu       sync.Mutex
	profiles map[Name]*Profile
}

func NewRegistry(store ConfigStore, logger *logrus.Logger) *Registry {
	return &Registry{
		store:    store,
		log:      logger.WithField("module", "provider"),
		profiles: make(map[Name]*Profile),
	}
}

// Resolve returns the cached profile for name, building it on first use with
// no explicit credentials.
func (r *Registry) Resolve(name Name) (*Profile, error) {
	return r.ResolveWith(name, Credentials{})
}

// ResolveWith is Resolve with explicit credentials, which take precedence
// over the environment and the config store. The first resolution of a name
// wins; later calls return the cached profile unchanged.
func (r *Registry) ResolveWith(name Name, explicit Credentials) (*Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.profiles[name]; ok {
		return p, nil
	}

	headers, ok := headerInfo[name]
	if !ok {
		return nil, &UnknownProviderError{Name: string(name)}
	}

	src := credentialSources[name]
	p := &Profile{
		Name:       name,
		AccessKey:  r.resolveKey(explicit.AccessKey, src.AccessKeyEnvVar(), src.AccessKeyOption),
		SecretKey:  r.resolveKey(explicit.SecretKey, src.SecretKeyEnvVar(), src.SecretKeyOption),
		ACL:        aclVocabularies[name],
		CannedACLs: append([]string(nil), cannedACLs[name]...),
		headers:    headers,
		classes:    errorClasses[name],
	}

	host := hostSources[name]
	p.Host = r.resolveKey("", strings.ToUpper(host.Option), host.Option)
	if p.Host == "" {
		p.Host = host.Default
	}

	r.log.WithField("provider", name).Debug("Resolved provider profile")
	r.profiles[name] = p
	return p, nil
}

// ResolveScheme resolves the provider serving a URI scheme.
func (r *Registry) ResolveScheme(scheme string) (*Profile, error) {
	name, err := ForScheme(scheme)
	if err != nil {
		return nil, err
	}
	return r.Resolve(name)
}

// resolveKey applies the precedence order for one key: explicit caller
// value, then environment, then the persisted config, then unset. Unset is
// valid here; protected operations fail later with a CredentialError.
func (r *Registry) resolveKey(explicit, envVar, option string) string {
	if explicit != "" {
		return explicit
	}
	if v, ok := os.LookupEnv(envVar); ok && v != "" {
		return v
	}
	if r.store != nil {
		if v := r.store.CredentialOption(option); v != "" {
			return v
		}
	}
	return ""
}

package provider

// Static per-provider lookup tables. Pure data: header vocabularies, error
// class names, canned ACL sets, credential option names, and host options,
// keyed by provider name. Constructed once, never mutated; init() refuses to
// start with a partial row.

// Name identifies one storage backend.
type Name string

const (
	AWS    Name = "aws"
	Google Name = "google"
)

// Names lists the closed set of providers in declaration order.
func Names() []Name {
	return []Name{AWS, Google}
}

// HeaderKey is the provider-independent name for a wire header concern. Every
// provider row maps every key; a provider that has no such header on the wire
// maps it to the empty string.
type HeaderKey string

const (
	HeaderPrefix              HeaderKey = "prefix"
	HeaderMetadataPrefix      HeaderKey = "metadata-prefix"
	HeaderACL                 HeaderKey = "acl-header"
	HeaderAuth                HeaderKey = "auth-header"
	HeaderCopySource          HeaderKey = "copy-source-header"
	HeaderCopySourceVersionID HeaderKey = "copy-source-version-id-header"
	HeaderDeleteMarker        HeaderKey = "delete-marker-header"
	HeaderDate                HeaderKey = "date-header"
	HeaderMetadataDirective   HeaderKey = "metadata-directive-header"
	HeaderResumableUpload     HeaderKey = "resumable-upload-header"
	HeaderSecurityToken       HeaderKey = "security-token-header"
	HeaderStorageClass        HeaderKey = "storage-class-header"
	HeaderMFA                 HeaderKey = "mfa-header"
	HeaderVersionID           HeaderKey = "version-id-header"
)

var allHeaderKeys = []HeaderKey{
	HeaderPrefix, HeaderMetadataPrefix, HeaderACL, HeaderAuth,
	HeaderCopySource, HeaderCopySourceVersionID, HeaderDeleteMarker,
	HeaderDate, HeaderMetadataDirective, HeaderResumableUpload,
	HeaderSecurityToken, HeaderStorageClass, HeaderMFA, HeaderVersionID,
}

// ErrorKind is the provider-independent name for a failure family reported
// by the transport.
type ErrorKind string

const (
	ErrorCopy        ErrorKind = "copy-error"
	ErrorCreate      ErrorKind = "create-error"
	ErrorData        ErrorKind = "data-error"
	ErrorPermissions ErrorKind = "permissions-error"
	ErrorResponse    ErrorKind = "response-error"
)

var allErrorKinds = []ErrorKind{
	ErrorCopy, ErrorCreate, ErrorData, ErrorPermissions, ErrorResponse,
}

// CredentialSource names where a provider's keys live: config option names in
// the credentials section. The matching environment variable is the option
// name upper-cased (AccessKeyEnvVar/SecretKeyEnvVar).
type CredentialSource struct {
	AccessKeyOption string
	SecretKeyOption string
}

// HostSource names the config option overriding the endpoint host, and the
// default endpoint used when the option is unset.
type HostSource struct {
	Option  string
	Default string
}

// ACLVocabulary describes the XML dialect a provider speaks for access
// control lists. The codec in pkg/acl is driven entirely by this table.
type ACLVocabulary struct {
	// Class is the diagnostic handle for this dialect, shown when a payload
	// fails to parse.
	Class string
	// RootTag is the document element ("AccessControlPolicy" for S3,
	// "AccessControlList" for GCS).
	RootTag string
	// EntriesTag wraps the grant list; EntryTag is one grant.
	EntriesTag string
	EntryTag   string
	// GranteeTag identifies who a grant applies to ("Grantee" vs "Scope"),
	// and GranteeTypeAttr the attribute carrying the grantee kind
	// ("xsi:type" vs "type").
	GranteeTag      string
	GranteeTypeAttr string
	// Permissions lists the permission tokens the dialect accepts.
	Permissions []string
}

const (
	awsHeaderPrefix  = "x-amz-"
	googHeaderPrefix = "x-goog-"
)

var headerInfo = map[Name]map[HeaderKey]string{
	AWS: {
		HeaderPrefix:              awsHeaderPrefix,
		HeaderMetadataPrefix:      awsHeaderPrefix + "meta-",
		HeaderACL:                 awsHeaderPrefix + "acl",
		HeaderAuth:                "AWS",
		HeaderCopySource:          awsHeaderPrefix + "copy-source",
		HeaderCopySourceVersionID: awsHeaderPrefix + "copy-source-version-id",
		HeaderDeleteMarker:        awsHeaderPrefix + "delete-marker",
		HeaderDate:                awsHeaderPrefix + "date",
		HeaderMetadataDirective:   awsHeaderPrefix + "metadata-directive",
		HeaderResumableUpload:     "",
		HeaderSecurityToken:       awsHeaderPrefix + "security-token",
		HeaderStorageClass:        awsHeaderPrefix + "storage-class",
		HeaderMFA:                 awsHeaderPrefix + "mfa",
		HeaderVersionID:           awsHeaderPrefix + "version-id",
	},
	Google: {
		HeaderPrefix:              googHeaderPrefix,
		HeaderMetadataPrefix:      googHeaderPrefix + "meta-",
		HeaderACL:                 googHeaderPrefix + "acl",
		HeaderAuth:                "GOOG1",
		HeaderCopySource:          googHeaderPrefix + "copy-source",
		HeaderCopySourceVersionID: googHeaderPrefix + "copy-source-version-id",
		HeaderDeleteMarker:        googHeaderPrefix + "delete-marker",
		HeaderDate:                googHeaderPrefix + "date",
		HeaderMetadataDirective:   googHeaderPrefix + "metadata-directive",
		HeaderResumableUpload:     googHeaderPrefix + "resumable",
		HeaderSecurityToken:       "",
		HeaderStorageClass:        googHeaderPrefix + "storage-class",
		HeaderMFA:                 "",
		HeaderVersionID:           googHeaderPrefix + "version-id",
	},
}

var errorClasses = map[Name]map[ErrorKind]string{
	AWS: {
		ErrorCopy:        "S3CopyError",
		ErrorCreate:      "S3CreateError",
		ErrorData:        "S3DataError",
		ErrorPermissions: "S3PermissionsError",
		ErrorResponse:    "S3ResponseError",
	},
	Google: {
		ErrorCopy:        "GSCopyError",
		ErrorCreate:      "GSCreateError",
		ErrorData:        "GSDataError",
		ErrorPermissions: "GSPermissionsError",
		ErrorResponse:    "GSResponseError",
	},
}

var cannedACLs = map[Name][]string{
	AWS: {
		"private",
		"public-read",
		"public-read-write",
		"authenticated-read",
		"bucket-owner-read",
		"bucket-owner-full-control",
		"log-delivery-write",
	},
	Google: {
		"private",
		"public-read",
		"public-read-write",
		"authenticated-read",
		"bucket-owner-read",
		"bucket-owner-full-control",
		"project-private",
	},
}

var credentialSources = map[Name]CredentialSource{
	AWS: {
		AccessKeyOption: "aws_access_key_id",
		SecretKeyOption: "aws_secret_access_key",
	},
	Google: {
		AccessKeyOption: "gs_access_key_id",
		SecretKeyOption: "gs_secret_access_key",
	},
}

var hostSources = map[Name]HostSource{
	AWS:    {Option: "s3_host", Default: "s3.amazonaws.com"},
	Google: {Option: "gs_host", Default: "storage.googleapis.com"},
}

var aclVocabularies = map[Name]ACLVocabulary{
	AWS: {
		Class:           "S3Acl",
		RootTag:         "AccessControlPolicy",
		EntriesTag:      "AccessControlList",
		EntryTag:        "Grant",
		GranteeTag:      "Grantee",
		GranteeTypeAttr: "xsi:type",
		Permissions: []string{
			"READ", "WRITE", "READ_ACP", "WRITE_ACP", "FULL_CONTROL",
		},
	},
	Google: {
		Class:           "GSAcl",
		RootTag:         "AccessControlList",
		EntriesTag:      "Entries",
		EntryTag:        "Entry",
		GranteeTag:      "Scope",
		GranteeTypeAttr: "type",
		Permissions: []string{
			"READ", "WRITE", "FULL_CONTROL",
		},
	},
}

var schemeToProvider = map[string]Name{
	"s3": AWS,
	"gs": Google,
}

// VocabularyFor returns the ACL dialect for a provider straight from the
// table, for callers that need the codec without resolving a full profile.
func VocabularyFor(name Name) ACLVocabulary {
	return aclVocabularies[name]
}

// Sources returns the credential option names for a provider, for callers
// that need the names without resolving a full profile.
func Sources(name Name) CredentialSource {
	return credentialSources[name]
}

// ForScheme maps a cloud URI scheme to the provider that serves it.
func ForScheme(scheme string) (Name, error) {
	name, ok := schemeToProvider[scheme]
	if !ok {
		return "", &UnknownProviderError{Name: scheme}
	}
	return name, nil
}

// Scheme returns the URI scheme served by a provider (the inverse of
// ForScheme).
func Scheme(name Name) string {
	for scheme, p := range schemeToProvider {
		if p == name {
			return scheme
		}
	}
	return ""
}

func init() {
	// A missing table row is a bug in this file, not a runtime condition.
	for _, name := range Names() {
		headers, ok := headerInfo[name]
		if !ok {
			panic("provider: no header row for " + string(name))
		}
		for _, key := range allHeaderKeys {
			if _, ok := headers[key]; !ok {
				panic("provider: " + string(name) + " missing header key " + string(key))
			}
		}
		classes, ok := errorClasses[name]
		if !ok {
			panic("provider: no error class row for " + string(name))
		}
		for _, kind := range allErrorKinds {
			if _, ok := classes[kind]; !ok {
				panic("provider: " + string(name) + " missing error kind " + string(kind))
			}
		}
		if _, ok := credentialSources[name]; !ok {
			panic("provider: no credential source for " + string(name))
		}
		if _, ok := hostSources[name]; !ok {
			panic("provider: no host source for " + string(name))
		}
		if _, ok := aclVocabularies[name]; !ok {
			panic("provider: no ACL vocabulary for " + string(name))
		}
		if len(cannedACLs[name]) == 0 {
			panic("provider: no canned ACLs for " + string(name))
		}
	}
}

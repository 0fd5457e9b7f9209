package provider

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
)

type fakeStore map[string]string

func (s fakeStore) CredentialOption(option string) string {
	return s[option]
}

func newTestRegistry(store ConfigStore) *Registry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewRegistry(store, logger)
}

func clearCredentialEnv(t *testing.T) {
	t.Helper()
	for _, name := range Names() {
		src := credentialSources[name]
		t.Setenv(src.AccessKeyEnvVar(), "")
		t.Setenv(src.SecretKeyEnvVar(), "")
	}
	t.Setenv("S3_HOST", "")
	t.Setenv("GS_HOST", "")
}

func TestResolvePopulatesEveryMapping(t *testing.T) {
	clearCredentialEnv(t)
	r := newTestRegistry(nil)
	for _, name := range Names() {
		p, err := r.Resolve(name)
		if err != nil {
			t.Fatalf("Resolve(%s) failed: %v", name, err)
		}
		for _, key := range allHeaderKeys {
			if _, ok := p.headers[key]; !ok {
				t.Errorf("%s: header key %s missing", name, key)
			}
		}
		for _, kind := range allErrorKinds {
			if p.ErrorClass(kind) == "" {
				t.Errorf("%s: error kind %s unpopulated", name, kind)
			}
		}
		if len(p.CannedACLs) == 0 {
			t.Errorf("%s: no canned ACLs", name)
		}
		if p.ACL.RootTag == "" || p.ACL.GranteeTag == "" {
			t.Errorf("%s: incomplete ACL vocabulary %+v", name, p.ACL)
		}
		if p.Host == "" {
			t.Errorf("%s: no default host", name)
		}
	}
}

func TestProviderRowsDiffer(t *testing.T) {
	clearCredentialEnv(t)
	r := newTestRegistry(nil)
	aws, err := r.Resolve(AWS)
	if err != nil {
		t.Fatal(err)
	}
	goog, err := r.Resolve(Google)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		key  HeaderKey
		aws  string
		goog string
	}{
		{HeaderPrefix, "x-amz-", "x-goog-"},
		{HeaderMetadataPrefix, "x-amz-meta-", "x-goog-meta-"},
		{HeaderACL, "x-amz-acl", "x-goog-acl"},
		{HeaderAuth, "AWS", "GOOG1"},
		{HeaderCopySource, "x-amz-copy-source", "x-goog-copy-source"},
		{HeaderResumableUpload, "", "x-goog-resumable"},
		{HeaderSecurityToken, "x-amz-security-token", ""},
		{HeaderMFA, "x-amz-mfa", ""},
	}
	for _, tt := range tests {
		t.Run(string(tt.key), func(t *testing.T) {
			if got := aws.Header(tt.key); got != tt.aws {
				t.Errorf("aws %s = %q, want %q", tt.key, got, tt.aws)
			}
			if got := goog.Header(tt.key); got != tt.goog {
				t.Errorf("google %s = %q, want %q", tt.key, got, tt.goog)
			}
		})
	}

	if aws.ErrorClass(ErrorResponse) != "S3ResponseError" {
		t.Errorf("aws response class = %q", aws.ErrorClass(ErrorResponse))
	}
	if goog.ErrorClass(ErrorResponse) != "GSResponseError" {
		t.Errorf("google response class = %q", goog.ErrorClass(ErrorResponse))
	}
	if !aws.HasCannedACL("log-delivery-write") || aws.HasCannedACL("project-private") {
		t.Error("aws canned ACL set wrong")
	}
	if !goog.HasCannedACL("project-private") || goog.HasCannedACL("log-delivery-write") {
		t.Error("google canned ACL set wrong")
	}
}

func TestCredentialPrecedence(t *testing.T) {
	tests := []struct {
		name     string
		explicit Credentials
		env      map[string]string
		store    fakeStore
		wantAK   string
		wantSK   string
	}{
		{
			name:     "explicit wins over everything",
			explicit: Credentials{AccessKey: "AK-arg", SecretKey: "SK-arg"},
			env:      map[string]string{"AWS_ACCESS_KEY_ID": "AK-env", "AWS_SECRET_ACCESS_KEY": "SK-env"},
			store:    fakeStore{"aws_access_key_id": "AK-cfg", "aws_secret_access_key": "SK-cfg"},
			wantAK:   "AK-arg",
			wantSK:   "SK-arg",
		},
		{
			name:   "environment wins over config",
			env:    map[string]string{"AWS_ACCESS_KEY_ID": "AK-env", "AWS_SECRET_ACCESS_KEY": "SK-env"},
			store:  fakeStore{"aws_access_key_id": "AK-cfg", "aws_secret_access_key": "SK-cfg"},
			wantAK: "AK-env",
			wantSK: "SK-env",
		},
		{
			name:   "config is the fallback",
			store:  fakeStore{"aws_access_key_id": "AK-cfg", "aws_secret_access_key": "SK-cfg"},
			wantAK: "AK-cfg",
			wantSK: "SK-cfg",
		},
		{
			name:   "keys resolve independently",
			env:    map[string]string{"AWS_ACCESS_KEY_ID": "AK-env"},
			store:  fakeStore{"aws_secret_access_key": "SK-cfg"},
			wantAK: "AK-env",
			wantSK: "SK-cfg",
		},
		{
			name:   "unset everywhere stays unset",
			wantAK: "",
			wantSK: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearCredentialEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			r := newTestRegistry(tt.store)
			p, err := r.ResolveWith(AWS, tt.explicit)
			if err != nil {
				t.Fatal(err)
			}
			if p.AccessKey != tt.wantAK {
				t.Errorf("access key = %q, want %q", p.AccessKey, tt.wantAK)
			}
			if p.SecretKey != tt.wantSK {
				t.Errorf("secret key = %q, want %q", p.SecretKey, tt.wantSK)
			}
		})
	}
}

func TestResolveTwiceYieldsSameProfile(t *testing.T) {
	clearCredentialEnv(t)
	r := newTestRegistry(fakeStore{"gs_access_key_id": "GOOGAK"})
	first, err := r.Resolve(Google)
	if err != nil {
		t.Fatal(err)
	}
	second, err := r.Resolve(Google)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Error("second Resolve returned a different profile")
	}
	for _, key := range allHeaderKeys {
		if first.Header(key) != second.Header(key) {
			t.Errorf("header %s differs between resolutions", key)
		}
	}
}

func TestResolveUnknownProvider(t *testing.T) {
	r := newTestRegistry(nil)
	_, err := r.Resolve(Name("rackspace"))
	if err == nil {
		t.Fatal("expected error")
	}
	if _, ok := err.(*UnknownProviderError); !ok {
		t.Fatalf("expected *UnknownProviderError, got %T", err)
	}
}

func TestForScheme(t *testing.T) {
	if name, err := ForScheme("s3"); err != nil || name != AWS {
		t.Errorf("ForScheme(s3) = %v, %v", name, err)
	}
	if name, err := ForScheme("gs"); err != nil || name != Google {
		t.Errorf("ForScheme(gs) = %v, %v", name, err)
	}
	if _, err := ForScheme("http"); err == nil {
		t.Error("ForScheme(http) should fail")
	}
	if Scheme(AWS) != "s3" || Scheme(Google) != "gs" {
		t.Error("Scheme() inverse mapping wrong")
	}
}

func TestHostOverride(t *testing.T) {
	clearCredentialEnv(t)
	r := newTestRegistry(fakeStore{"s3_host": "minio.example.net"})
	p, err := r.Resolve(AWS)
	if err != nil {
		t.Fatal(err)
	}
	if p.Host != "minio.example.net" {
		t.Errorf("host = %q, want override", p.Host)
	}

	r = newTestRegistry(nil)
	p, err = r.Resolve(AWS)
	if err != nil {
		t.Fatal(err)
	}
	if p.Host != "s3.amazonaws.com" {
		t.Errorf("default host = %q", p.Host)
	}
}

func TestEnvVarNamesDeriveFromOptions(t *testing.T) {
	src := credentialSources[AWS]
	if src.AccessKeyEnvVar() != "AWS_ACCESS_KEY_ID" || src.SecretKeyEnvVar() != "AWS_SECRET_ACCESS_KEY" {
		t.Errorf("aws env vars: %s, %s", src.AccessKeyEnvVar(), src.SecretKeyEnvVar())
	}
	src = credentialSources[Google]
	if src.AccessKeyEnvVar() != "GS_ACCESS_KEY_ID" || src.SecretKeyEnvVar() != "GS_SECRET_ACCESS_KEY" {
		t.Errorf("google env vars: %s, %s", src.AccessKeyEnvVar(), src.SecretKeyEnvVar())
	}
}

func TestCredentialErrorClassifiesSecret(t *testing.T) {
	withSecret := &CredentialError{Provider: Google, Field: "gs_secret_access_key"}
	if !withSecret.MissingSecret() {
		t.Error("secret key field not recognized")
	}
	withAccess := &CredentialError{Provider: Google, Field: "gs_access_key_id"}
	if withAccess.MissingSecret() {
		t.Error("access key field misclassified as secret")
	}
}

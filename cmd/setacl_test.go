package cmd

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/objtools/storctl/pkg/provider"
)

const testACLXML = `<AccessControlList>
  <Entries>
    <Entry>
      <Scope type="AllUsers"></Scope>
      <Permission>READ</Permission>
    </Entry>
  </Entries>
</AccessControlList>
`

func TestSetACLCanned(t *testing.T) {
	env := newTestTool(t)
	f := env.fake(t, provider.Google)
	makeBucket(t, f, "vault")
	putObject(t, f, "vault", "a.txt", "x")
	putObject(t, f, "vault", "b.txt", "y")

	err := setaclCmd.RunE(setaclCmd, []string{"public-read", "gs://vault/*"})
	if err != nil {
		t.Fatalf("setacl failed: %v", err)
	}
	for _, object := range []string{"a.txt", "b.txt"} {
		if got := f.ObjectACL("vault", object); got != "public-read" {
			t.Errorf("Wrong ACL on %s: %q", object, got)
		}
	}
	out := env.out.String()
	if !strings.Contains(out, "Setting ACL on gs://vault/a.txt...\n") {
		t.Errorf("Missing progress line: %q", out)
	}
}

func TestSetACLCannedOnBucket(t *testing.T) {
	env := newTestTool(t)
	f := env.fake(t, provider.Google)
	makeBucket(t, f, "vault")

	err := setaclCmd.RunE(setaclCmd, []string{"private", "gs://vault"})
	if err != nil {
		t.Fatalf("setacl failed: %v", err)
	}
	if !strings.Contains(env.out.String(), "Setting ACL on gs://vault/...\n") {
		t.Errorf("Missing progress line: %q", env.out.String())
	}
}

func TestSetACLInvalidCannedName(t *testing.T) {
	env := newTestTool(t)
	f := env.fake(t, provider.Google)
	makeBucket(t, f, "vault")
	putObject(t, f, "vault", "a.txt", "x")

	err := setaclCmd.RunE(setaclCmd, []string{"not-an-acl", "gs://vault/a.txt"})
	expectCommandError(t, err, `Invalid canned ACL "not-an-acl".`)
}

func TestSetACLFromXMLFile(t *testing.T) {
	env := newTestTool(t)
	f := env.fake(t, provider.Google)
	makeBucket(t, f, "vault")
	putObject(t, f, "vault", "a.txt", "x")
	path := filepath.Join(t.TempDir(), "acl.xml")
	writeFile(t, path, testACLXML)

	err := setaclCmd.RunE(setaclCmd, []string{path, "gs://vault/a.txt"})
	if err != nil {
		t.Fatalf("setacl failed: %v", err)
	}
	if got := f.ObjectACL("vault", "a.txt"); got != testACLXML {
		t.Errorf("Stored ACL does not match file:\n%q", got)
	}
}

func TestSetACLRejectsBadXML(t *testing.T) {
	env := newTestTool(t)
	f := env.fake(t, provider.Google)
	makeBucket(t, f, "vault")
	putObject(t, f, "vault", "a.txt", "x")
	dir := t.TempDir()

	malformed := filepath.Join(dir, "broken.xml")
	writeFile(t, malformed, "<AccessControlList><Entries>")
	err := setaclCmd.RunE(setaclCmd, []string{malformed, "gs://vault/a.txt"})
	expectCommandError(t, err, "Requested ACL is invalid: malformed ACL XML")

	badPerm := filepath.Join(dir, "badperm.xml")
	writeFile(t, badPerm, strings.Replace(testACLXML, "READ", "SNOOP", 1))
	err = setaclCmd.RunE(setaclCmd, []string{badPerm, "gs://vault/a.txt"})
	expectCommandError(t, err, `Requested ACL is invalid: invalid permission "SNOOP"`)
}

func TestSetACLRefusesMixedProviders(t *testing.T) {
	env := newTestTool(t)
	gs := env.fake(t, provider.Google)
	s3 := env.fake(t, provider.AWS)
	makeBucket(t, gs, "vault")
	makeBucket(t, s3, "bucket")
	putObject(t, gs, "vault", "a.txt", "x")
	putObject(t, s3, "bucket", "b.txt", "y")

	err := setaclCmd.RunE(setaclCmd, []string{"private", "gs://vault/a.txt", "s3://bucket/b.txt"})
	expectCommandError(t, err, `"setacl" command spanning providers not allowed.`)
}

package cmd

import (
	"strings"
	"testing"

	"github.com/objtools/storctl/pkg/provider"
)

func TestGetACLRendersIndentedXML(t *testing.T) {
	env := newTestTool(t)
	f := env.fake(t, provider.Google)
	makeBucket(t, f, "vault")
	putObject(t, f, "vault", "a.txt", "x")

	if err := getaclCmd.RunE(getaclCmd, []string{"gs://vault/a.txt"}); err != nil {
		t.Fatalf("getacl failed: %v", err)
	}
	out := env.out.String()
	if !strings.HasPrefix(out, "<AccessControlList>\n") {
		t.Errorf("Wrong document root: %q", out)
	}
	if !strings.Contains(out, "FULL_CONTROL") {
		t.Errorf("Owner grant missing: %q", out)
	}
	if !strings.HasSuffix(out, "\n") {
		t.Error("Rendered ACL should end with a newline")
	}
}

func TestGetACLBucket(t *testing.T) {
	env := newTestTool(t)
	makeBucket(t, env.fake(t, provider.Google), "vault")

	if err := getaclCmd.RunE(getaclCmd, []string{"gs://vault"}); err != nil {
		t.Fatalf("getacl failed: %v", err)
	}
	if !strings.Contains(env.out.String(), "<AccessControlList>") {
		t.Errorf("Wrong output: %q", env.out.String())
	}
}

func TestGetACLWildcardMustBeUnique(t *testing.T) {
	env := newTestTool(t)
	f := env.fake(t, provider.Google)
	makeBucket(t, f, "vault")
	putObject(t, f, "vault", "a.txt", "x")
	putObject(t, f, "vault", "b.txt", "y")

	err := getaclCmd.RunE(getaclCmd, []string{"gs://vault/*.txt"})
	expectCommandError(t, err, `Wildcards must resolve to exactly one object for "getacl" command.`)
}

func TestGetACLNeedsBucket(t *testing.T) {
	env := newTestTool(t)
	env.fake(t, provider.Google)

	err := getaclCmd.RunE(getaclCmd, []string{"gs://"})
	expectCommandError(t, err, `"getacl" command must specify a bucket or object.`)
}

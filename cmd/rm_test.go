package cmd

import (
	"context"
	"strings"
	"testing"

	"github.com/objtools/storctl/pkg/provider"
)

func TestRmSingleObject(t *testing.T) {
	env := newTestTool(t)
	f := env.fake(t, provider.Google)
	makeBucket(t, f, "vault")
	putObject(t, f, "vault", "a.txt", "x")

	if err := rmCmd.RunE(rmCmd, []string{"gs://vault/a.txt"}); err != nil {
		t.Fatalf("rm failed: %v", err)
	}
	if _, err := f.StatObject(context.Background(), "vault", "a.txt"); err == nil {
		t.Error("Object still exists after rm")
	}
	if got := env.out.String(); got != "Removing gs://vault/a.txt...\n" {
		t.Errorf("Wrong output: %q", got)
	}
}

func TestRmWildcard(t *testing.T) {
	env := newTestTool(t)
	f := env.fake(t, provider.Google)
	makeBucket(t, f, "vault")
	putObject(t, f, "vault", "logs/a.txt", "a")
	putObject(t, f, "vault", "logs/b.txt", "b")
	putObject(t, f, "vault", "keep.txt", "k")

	if err := rmCmd.RunE(rmCmd, []string{"gs://vault/logs/*"}); err != nil {
		t.Fatalf("rm failed: %v", err)
	}
	if _, err := f.StatObject(context.Background(), "vault", "keep.txt"); err != nil {
		t.Errorf("Unmatched object was removed: %v", err)
	}
	if _, err := f.StatObject(context.Background(), "vault", "logs/a.txt"); err == nil {
		t.Error("Matched object still exists")
	}
}

func TestRmRefusesBuckets(t *testing.T) {
	env := newTestTool(t)
	makeBucket(t, env.fake(t, provider.Google), "vault")

	err := rmCmd.RunE(rmCmd, []string{"gs://vault/"})
	expectCommandError(t, err,
		"\"rm\" command will not remove buckets. To delete this/these bucket(s) do:\n\tstorctl rm gs://vault/*\n\tstorctl rb gs://vault")
}

func TestRmMissingObject(t *testing.T) {
	env := newTestTool(t)
	makeBucket(t, env.fake(t, provider.Google), "vault")

	if err := rmCmd.RunE(rmCmd, []string{"gs://vault/nope.txt"}); err == nil {
		t.Error("Expected an error removing a missing object")
	}
}

func TestRmForceContinuesPastFailures(t *testing.T) {
	env := newTestTool(t)
	f := env.fake(t, provider.Google)
	makeBucket(t, f, "vault")
	putObject(t, f, "vault", "real.txt", "x")

	rmCmdConfig.force = true
	defer func() { rmCmdConfig.force = false }()
	err := rmCmd.RunE(rmCmd, []string{"gs://vault/nope.txt", "gs://vault/real.txt"})
	if err != nil {
		t.Fatalf("rm -f should swallow failures, got %v", err)
	}
	if _, err := f.StatObject(context.Background(), "vault", "real.txt"); err == nil {
		t.Error("Later object was not removed")
	}
	if !strings.Contains(env.errOut.String(), "GSResponseError") {
		t.Errorf("Failure not reported on stderr: %q", env.errOut.String())
	}
}

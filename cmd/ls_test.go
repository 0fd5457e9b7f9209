package cmd

import (
	"strings"
	"testing"

	"github.com/objtools/storctl/pkg/provider"
)

func resetLsFlags() {
	lsCmdConfig.bucketInfo = false
	lsCmdConfig.long = false
	lsCmdConfig.detail = false
}

func TestLsDefaultListsGoogleBuckets(t *testing.T) {
	env := newTestTool(t)
	f := env.fake(t, provider.Google)
	makeBucket(t, f, "alpha")
	makeBucket(t, f, "beta")

	if err := lsCmd.RunE(lsCmd, nil); err != nil {
		t.Fatalf("ls failed: %v", err)
	}
	if got := env.out.String(); got != "gs://alpha/\ngs://beta/\n" {
		t.Errorf("Wrong listing: %q", got)
	}
}

func TestLsProviderURI(t *testing.T) {
	env := newTestTool(t)
	f := env.fake(t, provider.AWS)
	makeBucket(t, f, "mine")

	if err := lsCmd.RunE(lsCmd, []string{"s3://"}); err != nil {
		t.Fatalf("ls failed: %v", err)
	}
	if got := env.out.String(); got != "s3://mine/\n" {
		t.Errorf("Wrong listing: %q", got)
	}
	// No buckets at all is an empty listing, not a failure.
	env.out.Reset()
	if err := lsCmd.RunE(lsCmd, []string{"gs://"}); err != nil {
		t.Fatalf("ls of empty provider failed: %v", err)
	}
	if env.out.Len() != 0 {
		t.Errorf("Expected no output, got %q", env.out.String())
	}
}

func TestLsBucketContents(t *testing.T) {
	env := newTestTool(t)
	f := env.fake(t, provider.Google)
	makeBucket(t, f, "logs")
	putObject(t, f, "logs", "b.txt", "bb")
	putObject(t, f, "logs", "a.txt", "a")

	if err := lsCmd.RunE(lsCmd, []string{"gs://logs"}); err != nil {
		t.Fatalf("ls failed: %v", err)
	}
	if got := env.out.String(); got != "gs://logs/a.txt\ngs://logs/b.txt\n" {
		t.Errorf("Wrong listing: %q", got)
	}

	// An empty bucket lists nothing rather than failing on the implicit
	// wildcard.
	makeBucket(t, f, "empty")
	env.out.Reset()
	if err := lsCmd.RunE(lsCmd, []string{"gs://empty"}); err != nil {
		t.Fatalf("ls of empty bucket failed: %v", err)
	}
	if env.out.Len() != 0 {
		t.Errorf("Expected no output, got %q", env.out.String())
	}
}

func TestLsLongListing(t *testing.T) {
	env := newTestTool(t)
	f := env.fake(t, provider.Google)
	makeBucket(t, f, "logs")
	putObject(t, f, "logs", "a.txt", "aaa")
	putObject(t, f, "logs", "b.txt", "bb")

	lsCmdConfig.long = true
	defer resetLsFlags()
	if err := lsCmd.RunE(lsCmd, []string{"gs://logs"}); err != nil {
		t.Fatalf("ls -l failed: %v", err)
	}
	out := env.out.String()
	if !strings.Contains(out, "gs://logs/a.txt") || !strings.Contains(out, "gs://logs/b.txt") {
		t.Errorf("Entries missing from long listing: %q", out)
	}
	if !strings.HasSuffix(out, "TOTAL: 2 objects, 5 bytes (5 B)\n") {
		t.Errorf("Wrong totals line: %q", out)
	}
}

func TestLsBucketInfo(t *testing.T) {
	env := newTestTool(t)
	f := env.fake(t, provider.Google)
	makeBucket(t, f, "logs")
	putObject(t, f, "logs", "a.txt", "aa")

	lsCmdConfig.bucketInfo = true
	lsCmdConfig.long = true
	defer resetLsFlags()
	if err := lsCmd.RunE(lsCmd, []string{"gs://logs"}); err != nil {
		t.Fatalf("ls -lb failed: %v", err)
	}
	out := env.out.String()
	if !strings.Contains(out, "gs://logs/ : 1 objects, 2 B\n") {
		t.Errorf("Wrong bucket info line: %q", out)
	}
}

func TestLsDetailListing(t *testing.T) {
	env := newTestTool(t)
	f := env.fake(t, provider.Google)
	makeBucket(t, f, "logs")
	putObject(t, f, "logs", "a.txt", "aa")

	lsCmdConfig.detail = true
	defer resetLsFlags()
	if err := lsCmd.RunE(lsCmd, []string{"gs://logs/a.txt"}); err != nil {
		t.Fatalf("ls -L failed: %v", err)
	}
	out := env.out.String()
	for _, want := range []string{"gs://logs/a.txt:", "\tObject size:\t2", "\tLast mod:\t", "\tMIME type:\t", "\tEtag:\t", "\tACL:\t"} {
		if !strings.Contains(out, want) {
			t.Errorf("Detail listing missing %q:\n%s", want, out)
		}
	}
}

func TestLsMissingObjectFails(t *testing.T) {
	env := newTestTool(t)
	f := env.fake(t, provider.Google)
	makeBucket(t, f, "logs")

	// Explicitly named objects must exist, unlike bucket listings.
	if err := lsCmd.RunE(lsCmd, []string{"gs://logs/nope.txt"}); err == nil {
		t.Error("Expected an error for a missing object")
	}
	if err := lsCmd.RunE(lsCmd, []string{"gs://logs/nope*"}); err == nil {
		t.Error("Expected an error for an unmatched wildcard")
	}
}

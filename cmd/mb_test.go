package cmd

import (
	"context"
	"testing"

	"github.com/objtools/storctl/pkg/provider"
)

func TestMbCreatesBuckets(t *testing.T) {
	env := newTestTool(t)
	f := env.fake(t, provider.Google)

	if err := mbCmd.RunE(mbCmd, []string{"gs://fresh", "gs://fresher"}); err != nil {
		t.Fatalf("mb failed: %v", err)
	}
	buckets, err := f.ListBuckets(context.Background())
	if err != nil {
		t.Fatalf("ListBuckets failed: %v", err)
	}
	if len(buckets) != 2 || buckets[0].Name != "fresh" || buckets[1].Name != "fresher" {
		t.Errorf("Wrong buckets: %v", buckets)
	}
	if got := env.out.String(); got != "Creating gs://fresh/...\nCreating gs://fresher/...\n" {
		t.Errorf("Wrong output: %q", got)
	}
}

func TestMbExistingBucketFails(t *testing.T) {
	env := newTestTool(t)
	makeBucket(t, env.fake(t, provider.Google), "taken")

	if err := mbCmd.RunE(mbCmd, []string{"gs://taken"}); err == nil {
		t.Error("Expected an error creating an existing bucket")
	}
}

func TestRbRemovesBucket(t *testing.T) {
	env := newTestTool(t)
	f := env.fake(t, provider.Google)
	makeBucket(t, f, "done")

	if err := rbCmd.RunE(rbCmd, []string{"gs://done"}); err != nil {
		t.Fatalf("rb failed: %v", err)
	}
	buckets, err := f.ListBuckets(context.Background())
	if err != nil {
		t.Fatalf("ListBuckets failed: %v", err)
	}
	if len(buckets) != 0 {
		t.Errorf("Bucket still present: %v", buckets)
	}
	if got := env.out.String(); got != "Removing gs://done/...\n" {
		t.Errorf("Wrong output: %q", got)
	}
}

func TestRbRefusesObjectURI(t *testing.T) {
	env := newTestTool(t)
	makeBucket(t, env.fake(t, provider.Google), "full")

	err := rbCmd.RunE(rbCmd, []string{"gs://full/obj.txt"})
	expectCommandError(t, err, `"rb" command requires a URI with no object name`)
}

func TestRbNonEmptyBucketFails(t *testing.T) {
	env := newTestTool(t)
	f := env.fake(t, provider.Google)
	makeBucket(t, f, "full")
	putObject(t, f, "full", "obj.txt", "x")

	if err := rbCmd.RunE(rbCmd, []string{"gs://full"}); err == nil {
		t.Error("Expected an error removing a non-empty bucket")
	}
}

func TestRbWildcard(t *testing.T) {
	env := newTestTool(t)
	f := env.fake(t, provider.Google)
	makeBucket(t, f, "tmp-one")
	makeBucket(t, f, "tmp-two")
	makeBucket(t, f, "keep")

	if err := rbCmd.RunE(rbCmd, []string{"gs://tmp-*"}); err != nil {
		t.Fatalf("rb failed: %v", err)
	}
	buckets, err := f.ListBuckets(context.Background())
	if err != nil {
		t.Fatalf("ListBuckets failed: %v", err)
	}
	if len(buckets) != 1 || buckets[0].Name != "keep" {
		t.Errorf("Wrong remaining buckets: %v", buckets)
	}
}

package cmd

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/objtools/storctl/pkg/cloud"
	"github.com/objtools/storctl/pkg/transfer"
	"github.com/objtools/storctl/pkg/uri"
	"github.com/objtools/storctl/pkg/wildcard"
)

var lsCmdConfig struct {
	bucketInfo bool
	long       bool
	detail     bool
}

type listingStyle int

const (
	listShort listingStyle = iota
	listLong
	listLongLong
)

var lsCmd = &cobra.Command{
	Use:   "ls [-b] [-l] [-L] [uri...]",
	Short: "List buckets and objects",
	Long: `Lists buckets and objects. With no arguments lists the gs:// buckets
of the configured account. A provider URI lists that provider's buckets, a
bucket URI lists the objects it holds (or the bucket itself with -b), and an
object URI lists the matching objects. -l adds size and timestamp, -L adds
metadata and ACLs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		style := listShort
		if lsCmdConfig.long {
			style = listLong
		}
		if lsCmdConfig.detail {
			style = listLongLong
		}
		if len(args) == 0 {
			args = []string{"gs://"}
		}

		var totalObjs, totalBytes int64
		for _, arg := range args {
			u, err := uri.Parse(arg)
			if err != nil {
				return err
			}

			switch {
			case u.Bucket == "":
				// Provider URI: add a bucket wildcard to list buckets.
				buckets, err := ctl.expandTolerant(ctx, uri.StorageURI{Scheme: u.Scheme, Bucket: "*"})
				if err != nil {
					return err
				}
				for _, b := range buckets {
					objs, bytes, err := ctl.printBucketInfo(ctx, b, style)
					if err != nil {
						return err
					}
					totalObjs += objs
					totalBytes += bytes
				}

			case u.Object == "":
				if lsCmdConfig.bucketInfo {
					buckets, err := ctl.expandTolerant(ctx, u)
					if err != nil {
						return err
					}
					for _, b := range buckets {
						objs, bytes, err := ctl.printBucketInfo(ctx, b, style)
						if err != nil {
							return err
						}
						totalObjs += objs
						totalBytes += bytes
					}
				} else {
					objs, err := ctl.objectsTolerant(ctx, u.WithObject("*"))
					if err != nil {
						return err
					}
					for _, obj := range objs {
						bytes, err := ctl.printObjectInfo(ctx, u, obj, style)
						if err != nil {
							return err
						}
						totalObjs++
						totalBytes += bytes
					}
				}

			default:
				objs, err := ctl.expander().Objects(ctx, u)
				if err != nil {
					return err
				}
				for _, obj := range objs {
					bytes, err := ctl.printObjectInfo(ctx, u, obj, style)
					if err != nil {
						return err
					}
					totalObjs++
					totalBytes += bytes
				}
			}
		}

		if style != listShort {
			fmt.Fprintf(ctl.out, "TOTAL: %d objects, %d bytes (%s)\n",
				totalObjs, totalBytes, transfer.HumanSize(totalBytes))
		}
		return nil
	},
}

// expandTolerant expands a wildcard but treats zero matches as an empty
// listing rather than a failure.
func (t *tool) expandTolerant(ctx context.Context, u uri.StorageURI) ([]uri.StorageURI, error) {
	matches, err := t.expander().Expand(ctx, u)
	if err != nil && !wildcard.NoMatches(err) {
		return nil, err
	}
	return matches, nil
}

// objectsTolerant is expandTolerant for object listings.
func (t *tool) objectsTolerant(ctx context.Context, u uri.StorageURI) ([]cloud.Object, error) {
	objs, err := t.expander().Objects(ctx, u)
	if err != nil && !wildcard.NoMatches(err) {
		return nil, err
	}
	return objs, nil
}

// printBucketInfo lists one bucket and returns its object and byte counts.
// Counts come from walking the bucket, so the short style skips them.
func (t *tool) printBucketInfo(ctx context.Context, b uri.StorageURI, style listingStyle) (int64, int64, error) {
	if style == listShort {
		fmt.Fprintln(t.out, b)
		return 0, 0, nil
	}

	var objs, bytes int64
	contents, err := t.objectsTolerant(ctx, b.WithObject("*"))
	if err != nil {
		return 0, 0, err
	}
	for _, obj := range contents {
		objs++
		bytes += obj.Size
	}

	if style == listLong {
		fmt.Fprintf(t.out, "%s : %d objects, %s\n", b, objs, transfer.HumanSize(bytes))
		return objs, bytes, nil
	}
	client, err := t.clientForScheme(b.Scheme)
	if err != nil {
		return 0, 0, err
	}
	aclText, err := client.GetACL(ctx, b.Bucket, "")
	if err != nil {
		return 0, 0, err
	}
	fmt.Fprintf(t.out, "%s :\n\t%d objects, %s\n\tACL: %s\n",
		b, objs, transfer.HumanSize(bytes), aclText)
	return objs, bytes, nil
}

// printObjectInfo lists one object and returns the size it contributed to
// the listing totals.
func (t *tool) printObjectInfo(ctx context.Context, iterated uri.StorageURI, obj cloud.Object, style listingStyle) (int64, error) {
	uriStr := fmt.Sprintf("%s://%s/%s", iterated.Scheme, obj.Bucket, obj.Name)

	switch style {
	case listShort:
		fmt.Fprintln(t.out, uriStr)
		return 0, nil

	case listLong:
		// Exclude timestamp fractional seconds.
		timestamp := obj.LastModified.UTC().Format("2006-01-02T15:04:05")
		fmt.Fprintf(t.out, "%10d  %s  %s\n", obj.Size, timestamp, uriStr)
		return obj.Size, nil

	default:
		client, err := t.clientForScheme(iterated.Scheme)
		if err != nil {
			return 0, err
		}
		// Listing entries carry no content metadata; fetch the full record.
		full, err := client.StatObject(ctx, obj.Bucket, obj.Name)
		if err != nil {
			return 0, err
		}
		fmt.Fprintf(t.out, "%s:\n", uriStr)
		fmt.Fprintf(t.out, "\tObject size:\t%d\n", full.Size)
		fmt.Fprintf(t.out, "\tLast mod:\t%s\n", full.LastModified.UTC().Format("2006-01-02T15:04:05Z"))
		fmt.Fprintf(t.out, "\tMIME type:\t%s\n", full.ContentType)
		if full.ContentEncoding != "" {
			fmt.Fprintf(t.out, "\tContent-Encoding:\t%s\n", full.ContentEncoding)
		}
		if len(full.Metadata) > 0 {
			names := make([]string, 0, len(full.Metadata))
			for name := range full.Metadata {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintf(t.out, "\tMetadata:\t%s = %s\n", name, full.Metadata[name])
			}
		}
		fmt.Fprintf(t.out, "\tEtag:\t%s\n", strings.Trim(full.ETag, `"'`))
		aclText, err := client.GetACL(ctx, obj.Bucket, obj.Name)
		if err != nil {
			return 0, err
		}
		fmt.Fprintf(t.out, "\tACL:\t%s\n", aclText)
		return full.Size, nil
	}
}

func init() {
	addCommand(lsCmd, mustSpec("ls"))
	lsCmd.Flags().BoolVarP(&lsCmdConfig.bucketInfo, "bucket", "b", false,
		"list info about the bucket itself instead of its contents")
	lsCmd.Flags().BoolVarP(&lsCmdConfig.long, "long", "l", false,
		"long listing: size, timestamp, uri")
	lsCmd.Flags().BoolVarP(&lsCmdConfig.detail, "detail", "L", false,
		"full listing: metadata, content type, and ACL per entry")
}

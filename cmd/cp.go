package cmd

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/objtools/storctl/pkg/cloud"
	"github.com/objtools/storctl/pkg/command"
	"github.com/objtools/storctl/pkg/transfer"
	"github.com/objtools/storctl/pkg/uri"
	"github.com/objtools/storctl/pkg/wildcard"
)

var cpCmdConfig struct {
	cannedACL      string
	recursive      bool
	recursiveAlias bool
	guessType      bool
	gzipExts       string
}

var cpCmd = &cobra.Command{
	Use:   "cp [-a acl] [-r] [-t] [-z ext,...] src... dst",
	Short: "Copy files and objects",
	Long: `Copies between local files and cloud objects, in any direction.
Sources may be wildcards, directories, or buckets (the latter two need -r).
Copies within one provider run server side; copies across providers spool
through a local temp file. With multiple sources the destination must name
a bucket or directory.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return ctl.copyObjects(context.Background(), args, cpRequestFlags(), "cp")
	},
}

// cpFlags carries the copy options shared by cp and mv.
type cpFlags struct {
	cannedACL string
	recursive bool
	guessType bool
	gzipExts  []string
}

func cpRequestFlags() cpFlags {
	flags := cpFlags{
		cannedACL: cpCmdConfig.cannedACL,
		recursive: cpCmdConfig.recursive || cpCmdConfig.recursiveAlias,
		guessType: cpCmdConfig.guessType,
	}
	if cpCmdConfig.gzipExts != "" {
		flags.gzipExts = strings.Split(cpCmdConfig.gzipExts, ",")
	}
	return flags
}

// cpSource pairs a source argument with the concrete URIs it expanded to.
// Destination naming needs the original: copying a container mirrors the
// hierarchy below it, while copying a plain file or object uses just the
// final name component.
type cpSource struct {
	src     uri.StorageURI
	matches []uri.StorageURI
}

func (t *tool) copyObjects(ctx context.Context, args []string, flags cpFlags, cmdName string) error {
	srcs, err := t.expandCopySources(ctx, args[:len(args)-1], flags.recursive)
	if err != nil {
		return err
	}
	dst, multi, err := t.checkCopyRequest(ctx, srcs, args[len(args)-1], cmdName)
	if err != nil {
		return err
	}
	if multi {
		dst, err = adjustMultiSrcDst(srcs, dst)
		if err != nil {
			return err
		}
	}

	start := time.Now()
	var totalBytes int64
	for _, s := range srcs {
		for _, exp := range s.matches {
			fmt.Fprintf(t.out, "Copying %s...\n", exp)
			target, err := constructDstURI(s.src, exp, dst)
			if err != nil {
				return err
			}
			n, err := t.performCopy(ctx, exp, target, flags)
			if err != nil {
				return err
			}
			totalBytes += n
		}
	}

	if t.debug == 3 && totalBytes != 0 {
		elapsed := time.Since(start).Seconds()
		rate := int64(float64(totalBytes) / elapsed)
		fmt.Fprintf(t.out, "Total bytes copied=%d, total elapsed time=%5.3f secs (%sps)\n",
			totalBytes, elapsed, transfer.HumanSize(rate))
	}
	return nil
}

// copySourceKind classifies a source for expansion purposes: cloud buckets
// and local directories hold other things and need -r.
func copySourceKind(u uri.StorageURI) (container bool, desc string) {
	if u.IsFileURI() {
		fi, err := os.Stat(u.Path())
		return err == nil && fi.IsDir(), "directory"
	}
	return u.NamesContainer(), "bucket"
}

// expandCopySources expands wildcards and containers in the source
// arguments. File wildcards expand first so a directory matched by a pattern
// becomes its own source entry; hierarchy naming depends on knowing which
// directory a file arrived through.
func (t *tool) expandCopySources(ctx context.Context, rawArgs []string, recursive bool) ([]cpSource, error) {
	exp := t.expander()

	var srcURIs []uri.StorageURI
	for _, raw := range rawArgs {
		u, err := uri.Parse(raw)
		if err != nil {
			return nil, err
		}
		if u.IsFileURI() && u.ContainsWildcard() {
			matches, err := exp.Expand(ctx, u)
			if err != nil {
				return nil, err
			}
			srcURIs = append(srcURIs, matches...)
		} else {
			srcURIs = append(srcURIs, u)
		}
	}

	srcs := make([]cpSource, 0, len(srcURIs))
	for _, u := range srcURIs {
		entry := cpSource{src: u}
		container, desc := copySourceKind(u)
		switch {
		case container && !recursive:
			fmt.Fprintf(t.out, "Omitting %s %q.\n", desc, u)
		case container:
			var pattern uri.StorageURI
			if u.IsFileURI() {
				pattern = uri.StorageURI{
					Scheme: uri.SchemeFile,
					Object: strings.TrimRight(u.Path(), "/") + "/**",
				}
			} else {
				pattern = u.WithObject("*")
			}
			matches, err := exp.Expand(ctx, pattern)
			if err != nil && !wildcard.NoMatches(err) {
				return nil, err
			}
			entry.matches = matches
		case u.ContainsWildcard():
			matches, err := exp.Expand(ctx, u)
			if err != nil {
				return nil, err
			}
			entry.matches = matches
		default:
			entry.matches = []uri.StorageURI{u}
		}
		srcs = append(srcs, entry)
	}
	return srcs, nil
}

// checkCopyRequest validates the request shape and resolves the base
// destination the per-source destinations derive from.
func (t *tool) checkCopyRequest(ctx context.Context, srcs []cpSource, dstArg, cmdName string) (uri.StorageURI, bool, error) {
	dst, err := uri.Parse(dstArg)
	if err != nil {
		return uri.StorageURI{}, false, err
	}
	if dst.ContainsWildcard() {
		matches, err := t.expander().Expand(ctx, dst)
		if err != nil {
			return uri.StorageURI{}, false, err
		}
		if len(matches) > 1 {
			return uri.StorageURI{}, false, command.Errorf("Destination (%s) matches more than 1 URI", dstArg)
		}
		dst = matches[0]
	}

	// The entire expansion can come up empty, for example when the request
	// named only directories without -r.
	haveWork := false
	for _, s := range srcs {
		if len(s.matches) > 0 {
			haveWork = true
			break
		}
	}
	if !haveWork {
		return uri.StorageURI{}, false, command.Errorf("Nothing to copy")
	}

	multi := len(srcs) > 1 || len(srcs[0].matches) > 1
	if multi {
		if err := insistContainer(cmdName, dst); err != nil {
			return uri.StorageURI{}, false, err
		}
	}

	// Refuse src/dst pairs that would overwrite their own source. This is
	// stricter than UNIX cp; partially completed cloud copies are risky.
	for _, s := range srcs {
		for _, exp := range s.matches {
			target, err := constructDstURI(s.src, exp, dst)
			if err != nil {
				return uri.StorageURI{}, false, err
			}
			if srcDstSame(exp, target) {
				return uri.StorageURI{}, false, command.Errorf(
					"cp: %q and %q are the same object - abort.", exp, target)
			}
		}
	}

	return dst, multi, nil
}

// insistContainer rejects a destination naming a single object or file when
// a multi-source request needs somewhere to copy into.
func insistContainer(cmdName string, u uri.StorageURI) error {
	singleton := u.NamesObject()
	if u.IsFileURI() {
		fi, err := os.Stat(u.Path())
		singleton = err == nil && fi.Mode().IsRegular()
	}
	if singleton {
		return command.Errorf("Destination StorageUri must name a bucket or directory for the\nmultiple source form of the %q command.", cmdName)
	}
	return nil
}

// adjustMultiSrcDst makes container-to-directory copies work like UNIX
// "cp -r": copying a container into an existing directory re-roots the
// destination under dir/<container name>, and a missing destination
// directory is created.
func adjustMultiSrcDst(srcs []cpSource, dst uri.StorageURI) (uri.StorageURI, error) {
	first := srcs[0].src
	if container, _ := copySourceKind(first); container && dst.IsFileURI() {
		if fi, err := os.Stat(dst.Path()); err == nil && fi.IsDir() {
			name := first.Bucket
			if first.IsFileURI() {
				name = filepath.Base(strings.TrimRight(first.Path(), "/"))
			}
			dst = dst.WithObject(strings.TrimRight(filepath.Join(dst.Path(), name), "/"))
		}
	}
	if dst.IsFileURI() {
		if _, err := os.Stat(dst.Path()); os.IsNotExist(err) {
			if err := os.MkdirAll(dst.Path(), 0755); err != nil {
				return dst, errors.Wrap(err, "Failed to create destination directory")
			}
		}
	}
	return dst, nil
}

// constructDstURI names the destination for one expanded source. Copying a
// plain file or object into a container uses the final name component, like
// UNIX cp; copying a container mirrors the hierarchy from the container's
// final path component down.
func constructDstURI(src, exp, base uri.StorageURI) (uri.StorageURI, error) {
	container := base.NamesContainer()
	if base.IsFileURI() {
		fi, err := os.Stat(base.Path())
		container = err == nil && fi.IsDir()
	}
	if !container {
		return base, nil
	}

	var dstName string
	if srcContainer, _ := copySourceKind(src); srcContainer {
		// A bucket source has no path prefix, so each object keeps its full
		// name; a directory keeps everything from its final component down.
		start := ""
		if src.Object != "" {
			start = filepath.Base(strings.TrimRight(src.Object, "/"))
		}
		idx := strings.Index(exp.Object, start)
		if idx < 0 {
			idx = 0
		}
		dstName = exp.Object[idx:]
	} else {
		dstName = filepath.Base(exp.Object)
	}

	if base.IsFileURI() {
		dstName = filepath.Join(base.Path(), dstName)
		if err := checkDirFileConflict(exp, dstName); err != nil {
			return uri.StorageURI{}, err
		}
	}
	return base.WithObject(dstName), nil
}

// checkDirFileConflict refuses a local destination path blocked by the
// filesystem: a file sitting where a directory must be created, or a
// directory sitting where the file must go.
func checkDirFileConflict(src uri.StorageURI, dstPath string) error {
	finalDir := filepath.Dir(dstPath)
	if fi, err := os.Stat(finalDir); err == nil && fi.Mode().IsRegular() {
		return command.Errorf("Cannot retrieve %s because it a file exists where a directory needs to be created (%s).",
			src, finalDir)
	}
	if fi, err := os.Stat(dstPath); err == nil && fi.IsDir() {
		return command.Errorf("Cannot retrieve %s because a directory exists (%s) where the file needs to be created.",
			src, dstPath)
	}
	return nil
}

// srcDstSame reports whether the pair names one object. Hard and symbolic
// links are not considered.
func srcDstSame(src, dst uri.StorageURI) bool {
	if src.IsFileURI() && dst.IsFileURI() {
		return filepath.Clean(src.Path()) == filepath.Clean(dst.Path())
	}
	return src.String() == dst.String()
}

// performCopy moves one object, choosing the mode that avoids extra copying
// of potentially very large data.
func (t *tool) performCopy(ctx context.Context, src, dst uri.StorageURI, flags cpFlags) (int64, error) {
	switch {
	case src.IsCloudURI() && dst.IsCloudURI() && src.Scheme == dst.Scheme:
		return t.copySameProvider(ctx, src, dst)
	case src.IsCloudURI() && dst.IsCloudURI():
		return t.copyAcrossProviders(ctx, src, dst, flags)
	case src.IsFileURI() && dst.IsCloudURI():
		return t.uploadFile(ctx, src, dst, flags)
	case src.IsCloudURI() && dst.IsFileURI():
		return t.downloadObject(ctx, src, dst)
	default:
		return t.copyLocal(src, dst)
	}
}

// statSource resolves the source object's metadata, mapping a missing
// object onto the user-facing message.
func (t *tool) statSource(ctx context.Context, u uri.StorageURI) (cloud.Object, cloud.StorageClient, error) {
	client, err := t.clientForScheme(u.Scheme)
	if err != nil {
		return cloud.Object{}, nil, err
	}
	obj, err := client.StatObject(ctx, u.Bucket, u.Object)
	if err != nil {
		var respErr *cloud.ResponseError
		if errors.As(err, &respErr) && respErr.Status == http.StatusNotFound {
			return cloud.Object{}, nil, command.Errorf("%q does not exist.", u)
		}
		return cloud.Object{}, nil, err
	}
	return obj, client, nil
}

// copySameProvider copies object to object within one provider, which the
// server performs by itself from a copy-source header.
func (t *tool) copySameProvider(ctx context.Context, src, dst uri.StorageURI) (int64, error) {
	obj, client, err := t.statSource(ctx, src)
	if err != nil {
		return 0, err
	}
	if err := client.CopyObject(ctx, src.Bucket, src.Object, dst.Bucket, dst.Object, cloud.CopyOptions{}); err != nil {
		return 0, err
	}
	return obj.Size, nil
}

// copyAcrossProviders copies through a local temp file. Killing the process
// partway and restarting repeats the whole transfer, because the temp name
// differs per incarnation.
func (t *tool) copyAcrossProviders(ctx context.Context, src, dst uri.StorageURI, flags cpFlags) (int64, error) {
	obj, _, err := t.statSource(ctx, src)
	if err != nil {
		return 0, err
	}
	if free, err := transfer.FreeSpace(os.TempDir()); err == nil && free < obj.Size {
		return 0, command.Errorf("Inadequate temp space available to perform the requested copy")
	}

	tmp, err := os.CreateTemp("", "storctl-cp-")
	if err != nil {
		return 0, errors.Wrap(err, "Failed to create temp file")
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	spool := uri.StorageURI{Scheme: uri.SchemeFile, Object: tmpPath}
	if _, err := t.downloadObject(ctx, src, spool); err != nil {
		return 0, err
	}
	if _, err := t.uploadFile(ctx, spool, dst, flags); err != nil {
		return 0, err
	}
	return obj.Size, nil
}

// uploadFile sends one local file to a cloud object, applying the upload
// flags. The storage client takes the resumable path by itself when the
// size and provider call for it.
func (t *tool) uploadFile(ctx context.Context, src, dst uri.StorageURI, flags cpFlags) (int64, error) {
	srcPath := src.Path()
	fi, err := os.Stat(srcPath)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, command.Errorf("%q does not exist.", src)
		}
		return 0, err
	}

	client, err := t.clientForScheme(dst.Scheme)
	if err != nil {
		return 0, err
	}

	var opts cloud.PutOptions
	if flags.cannedACL != "" {
		if !client.Provider().HasCannedACL(flags.cannedACL) {
			return 0, command.Errorf("Invalid canned ACL %q.", flags.cannedACL)
		}
		opts.CannedACL = flags.cannedACL
	}
	if flags.guessType {
		ctype, encoding := transfer.GuessContentType(srcPath)
		if ctype != "" {
			fmt.Fprintf(t.out, "\t[Setting Content-Type=%s]\n", ctype)
			opts.ContentType = ctype
		} else {
			fmt.Fprintln(t.out, "\t[Unknown content type -> using application/octet stream]")
		}
		if encoding != "" {
			opts.ContentEncoding = encoding
		}
	}

	uploadPath := srcPath
	size := fi.Size()
	if gzipMatches(flags.gzipExts, srcPath) {
		if t.debug >= 2 {
			fmt.Fprintf(t.out, "Compressing %s (to tmp)...\n", srcPath)
		}
		// Assume the compressed copy is at most 2x the source; it normally
		// comes out smaller.
		if free, err := transfer.FreeSpace(os.TempDir()); err == nil && free < 2*size {
			return 0, command.Errorf("Inadequate temp space available to compress %s", srcPath)
		}
		gzipPath, err := transfer.GzipToTemp(srcPath)
		if err != nil {
			return 0, err
		}
		defer os.Remove(gzipPath)
		opts.ContentEncoding = "gzip"
		uploadPath = gzipPath
		gfi, err := os.Stat(gzipPath)
		if err != nil {
			return 0, err
		}
		size = gfi.Size()
	}

	f, err := os.Open(uploadPath)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	if threshold := t.mgr.ResumableThreshold(); threshold > 0 && size >= threshold {
		opts.Progress = transfer.NewProgressPrinter(t.errOut, "Uploading", size)
	}
	if err := client.PutObject(ctx, dst.Bucket, dst.Object, f, opts); err != nil {
		return 0, err
	}
	return size, nil
}

// downloadObject fetches one object into a local file. Objects stored
// gzip-encoded but not named *.gz land in a predictable temp name and are
// inflated afterwards.
func (t *tool) downloadObject(ctx context.Context, src, dst uri.StorageURI) (int64, error) {
	obj, client, err := t.statSource(ctx, src)
	if err != nil {
		return 0, err
	}

	fileName := dst.Path()
	if dir := filepath.Dir(fileName); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return 0, errors.Wrap(err, "Failed to create destination directory")
		}
	}

	downloadName := fileName
	needUnzip := false
	if obj.ContentEncoding == "gzip" && !strings.HasSuffix(fileName, ".gz") {
		downloadName = fileName + "_.gztmp"
		needUnzip = true
	}

	body, _, err := client.GetObject(ctx, src.Bucket, src.Object)
	if err != nil {
		return 0, err
	}
	defer body.Close()

	var in io.Reader = body
	if threshold := t.mgr.ResumableThreshold(); threshold > 0 && obj.Size >= threshold {
		in = transfer.NewProgressReader(body, transfer.NewProgressPrinter(t.errOut, "Downloading", obj.Size))
	}

	out, err := os.Create(downloadName)
	if err != nil {
		return 0, err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return 0, errors.Wrap(err, "Failed to download "+src.String())
	}
	if err := out.Close(); err != nil {
		return 0, err
	}

	if needUnzip {
		if t.debug >= 2 {
			fmt.Fprintf(t.out, "Uncompressing tmp to %s...\n", fileName)
		}
		if err := transfer.GunzipFile(downloadName, fileName); err != nil {
			return 0, err
		}
		if err := os.Remove(downloadName); err != nil {
			return 0, err
		}
	}
	return obj.Size, nil
}

func (t *tool) copyLocal(src, dst uri.StorageURI) (int64, error) {
	fi, err := os.Stat(src.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return 0, command.Errorf("%q does not exist.", src)
		}
		return 0, err
	}
	if err := transfer.CopyFile(src.Path(), dst.Path()); err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

// gzipMatches reports whether the file's final extension is in the -z list.
func gzipMatches(exts []string, name string) bool {
	if len(exts) == 0 {
		return false
	}
	idx := strings.LastIndex(name, ".")
	if idx < 0 || idx == len(name)-1 {
		return false
	}
	ext := name[idx+1:]
	for _, e := range exts {
		if e == ext {
			return true
		}
	}
	return false
}

func init() {
	addCommand(cpCmd, mustSpec("cp"))
	cpCmd.Flags().StringVarP(&cpCmdConfig.cannedACL, "canned-acl", "a", "",
		"apply this canned ACL to uploaded objects")
	cpCmd.Flags().BoolVarP(&cpCmdConfig.recursive, "recursive", "r", false,
		"copy directories and buckets recursively")
	cpCmd.Flags().BoolVarP(&cpCmdConfig.recursiveAlias, "Recursive", "R", false,
		"same as --recursive")
	cpCmd.Flags().BoolVarP(&cpCmdConfig.guessType, "guess-content-type", "t", false,
		"set Content-Type from the file name")
	cpCmd.Flags().StringVarP(&cpCmdConfig.gzipExts, "gzip", "z", "",
		"comma-separated extensions to gzip before uploading")
}

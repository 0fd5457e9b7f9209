// Package transfer holds the local-file plumbing the copy machinery shares:
// plain file copies, gzip spooling for compressed uploads and downloads,
// release-archive unpacking, content-type guesses, free-space checks, and
// progress reporting.
package transfer

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"math"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// CopyFile copies a regular file, creating or truncating the destination.
func CopyFile(src, dst string) error {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return err
	}
	if !srcInfo.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file", src)
	}

	source, err := os.Open(src)
	if err != nil {
		return err
	}
	defer source.Close()

	destination, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer destination.Close()

	if _, err := io.Copy(destination, source); err != nil {
		return errors.Wrap(err, "Failed to copy "+src)
	}
	return nil
}

// GzipToTemp compresses path into a fresh temp file and returns the temp
// path. The caller removes it when done.
func GzipToTemp(path string) (string, error) {
	src, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer src.Close()

	tmp, err := os.CreateTemp("", "storctl-gzip-")
	if err != nil {
		return "", errors.Wrap(err, "Failed to create temp file for compression")
	}
	zw := gzip.NewWriter(tmp)
	zw.Name = filepath.Base(path)
	if _, err := io.Copy(zw, src); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", errors.Wrap(err, "Failed to compress "+path)
	}
	if err := zw.Close(); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", errors.Wrap(err, "Failed to compress "+path)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}

// GunzipFile inflates src into dst.
func GunzipFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	zr, err := gzip.NewReader(in)
	if err != nil {
		return errors.Wrap(err, "Failed to read gzip stream from "+src)
	}
	defer zr.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, zr); err != nil {
		out.Close()
		return errors.Wrap(err, "Failed to inflate "+src)
	}
	return out.Close()
}

// UntarStream unpacks a gzipped tar stream under dstPath and returns the
// paths it wrote. Entries that would escape dstPath abort the unpack.
func UntarStream(src io.Reader, dstPath string) ([]string, error) {
	zr, err := gzip.NewReader(src)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to read archive compression header")
	}
	tr := tar.NewReader(zr)

	var written []string
	for {
		header, err := tr.Next()
		switch {
		case err == io.EOF:
			return written, nil
		case err != nil:
			return written, errors.Wrap(err, "Failed to read archive")
		case header == nil:
			continue
		}

		target := filepath.Join(dstPath, header.Name)
		if !strings.HasPrefix(target, filepath.Clean(dstPath)+string(os.PathSeparator)) {
			return written, fmt.Errorf("archive entry escapes destination: %s", header.Name)
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return written, errors.Wrap(err, "Failed to create directory "+target)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return written, errors.Wrap(err, "Failed to create directory for "+target)
			}
			f, err := os.OpenFile(target, os.O_CREATE|os.O_RDWR|os.O_TRUNC, os.FileMode(header.Mode))
			if err != nil {
				return written, errors.Wrap(err, "Failed to create "+target)
			}
			if _, err := io.Copy(f, tr); err != nil {
				f.Close()
				return written, errors.Wrap(err, "Failed to extract "+target)
			}
			if err := f.Close(); err != nil {
				return written, err
			}
			written = append(written, target)
		}
	}
}

// encodingsByExt names the extensions that describe a transfer encoding
// rather than a media type; the type is guessed from what remains.
var encodingsByExt = map[string]string{
	".gz":  "gzip",
	".Z":   "compress",
	".bz2": "bzip2",
	".xz":  "xz",
}

// GuessContentType maps a file name to a media type and, when the name ends
// in a compression extension, the transfer encoding. Unknown extensions
// return an empty type.
func GuessContentType(name string) (ctype, encoding string) {
	if enc, ok := encodingsByExt[path.Ext(name)]; ok {
		encoding = enc
		name = strings.TrimSuffix(name, path.Ext(name))
	}
	return mime.TypeByExtension(path.Ext(name)), encoding
}

var sizeUnits = []struct {
	shift uint
	label string
}{
	{0, "B"}, {10, "KB"}, {20, "MB"}, {30, "GB"}, {40, "TB"}, {50, "PB"},
}

// HumanSize renders a byte count with its largest fitting unit, rounded to
// two decimals.
func HumanSize(num int64) string {
	i := 0
	for i+1 < len(sizeUnits) && num >= 1<<sizeUnits[i+1].shift {
		i++
	}
	scaled := float64(num) / float64(int64(1)<<sizeUnits[i].shift)
	rounded := math.Round(scaled*100) / 100
	return strconv.FormatFloat(rounded, 'f', -1, 64) + " " + sizeUnits[i].label
}

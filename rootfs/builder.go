// Package rootfs materializes a container's root filesystem by extracting
// an image's layers, in manifest order, onto a single directory. Extraction
// is Go-native (archive/tar + compress/gzip) rather than shelling out to
// tar, because the runtime needs to intercept whiteout and opaque-directory
// markers as they stream past — something an opaque `tar -xzf` invocation
// cannot do.
package rootfs

import (
	"archive/tar"
	"bufio"
	"bytes"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/bibin-skaria/rustainer/internal/rerr"
	"github.com/bibin-skaria/rustainer/internal/rlog"
)

const (
	whiteoutPrefix = ".wh."
	opaqueMarker   = ".wh..wh..opq"
)

// Build extracts each layer blob (named <blobDir>/<digest-hex>) onto dest
// in order. On failure it surfaces a RootfsError carrying the offending
// layer digest; it does not attempt cleanup — the caller decides whether
// to remove the partial container directory.
func Build(blobDir string, layerDigests []string, dest string) error {
	log := rlog.For("rootfs")
	for i, digest := range layerDigests {
		blobPath := filepath.Join(blobDir, digest)
		log.WithField("digest", digest).Infof("extracting layer %d/%d", i+1, len(layerDigests))
		if err := extractLayer(blobPath, dest); err != nil {
			return rerr.Rootfs(digest, "layer extraction failed", err)
		}
	}
	return nil
}

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// extractLayer sniffs the blob's compression from its magic bytes rather
// than trusting a file extension (blobs are named by bare digest). Gzip is
// the common case; zstd-compressed layers are supported the same way the
// teacher's layer manager splits on MediaType, just decided from content
// instead of a media-type string the blob file doesn't carry.
func extractLayer(blobPath, dest string) error {
	f, err := os.Open(blobPath)
	if err != nil {
		return err
	}
	defer f.Close()

	br := bufio.NewReader(f)
	magic, err := br.Peek(4)
	if err != nil && err != io.EOF {
		return err
	}

	var decompressed io.Reader
	switch {
	case bytes.Equal(magic, zstdMagic):
		zr, err := zstd.NewReader(br)
		if err != nil {
			return err
		}
		defer zr.Close()
		decompressed = zr
	default:
		gz, err := gzip.NewReader(br)
		if err != nil {
			return err
		}
		defer gz.Close()
		decompressed = gz
	}

	tr := tar.NewReader(decompressed)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if err := applyEntry(tr, header, dest); err != nil {
			return err
		}
	}
	return nil
}

// applyEntry handles one tar entry, including whiteout and opaque-directory
// translation that a plain `tar -xzf` extraction does not perform.
func applyEntry(tr *tar.Reader, header *tar.Header, dest string) error {
	base := filepath.Base(header.Name)
	dir := filepath.Dir(header.Name)

	if base == opaqueMarker {
		return emptyDir(filepath.Join(dest, dir))
	}
	if strings.HasPrefix(base, whiteoutPrefix) {
		original := strings.TrimPrefix(base, whiteoutPrefix)
		return os.RemoveAll(filepath.Join(dest, dir, original))
	}

	target := filepath.Join(dest, header.Name)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	switch header.Typeflag {
	case tar.TypeDir:
		return os.MkdirAll(target, os.FileMode(header.Mode))
	case tar.TypeReg:
		out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(header.Mode))
		if err != nil {
			return err
		}
		defer out.Close()
		if _, err := io.Copy(out, tr); err != nil {
			return err
		}
		return os.Chtimes(target, header.ModTime, header.ModTime)
	case tar.TypeSymlink:
		_ = os.Remove(target)
		return os.Symlink(header.Linkname, target)
	case tar.TypeLink:
		return os.Link(filepath.Join(dest, header.Linkname), target)
	default:
		return nil
	}
}

// emptyDir removes the contents of dir (produced by prior layers) without
// removing dir itself, per the opaque-directory marker's semantics.
func emptyDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

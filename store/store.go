// Package store defines the on-disk layout for pulled images and running
// containers. Nothing in here touches the registry or a namespace — it is
// pure path arithmetic plus the directory-creation idempotency every other
// package relies on.
package store

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/bibin-skaria/rustainer/internal/rerr"
)

// Root is the base directory under which images/ and containers/ live.
// Kept a package variable (not a constant) so tests can point it at a
// temp directory without environment-variable plumbing.
var Root = "."

// EscapeRepo replaces "/" with "_" so a repository name can be used as a
// single path segment. Lossy against repositories already containing "_",
// which is accepted: such names are rare on the upstream registry.
func EscapeRepo(repo string) string {
	return strings.ReplaceAll(repo, "/", "_")
}

// UnescapeRepo is EscapeRepo's inverse.
func UnescapeRepo(escaped string) string {
	return strings.ReplaceAll(escaped, "_", "/")
}

// ImageDir returns ./images/<repo_escaped>/<tag>.
func ImageDir(repo, tag string) string {
	return filepath.Join(Root, "images", EscapeRepo(repo), tag)
}

// ImagesRoot returns ./images.
func ImagesRoot() string {
	return filepath.Join(Root, "images")
}

// ContainerDir returns ./containers/<id>.
func ContainerDir(id string) string {
	return filepath.Join(Root, "containers", id)
}

// ContainersRoot returns ./containers.
func ContainersRoot() string {
	return filepath.Join(Root, "containers")
}

// RootfsDir returns ./containers/<id>/rootfs.
func RootfsDir(id string) string {
	return filepath.Join(ContainerDir(id), "rootfs")
}

// EnsureDir recursively creates dir, tolerating "already exists". Every
// write elsewhere in the runtime is "create parent, then write file" — no
// temp-file atomic rename, since images and containers are reproducible.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return rerr.StoreIO(dir, err)
	}
	return nil
}

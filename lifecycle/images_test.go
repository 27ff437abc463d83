package lifecycle

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/bibin-skaria/rustainer/store"
)

func writeManifestFixture(t *testing.T, dir string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	manifestJSON := `{
		"schemaVersion": 2,
		"mediaType": "application/vnd.docker.distribution.manifest.v2+json",
		"config": {"mediaType": "application/vnd.docker.container.image.v1+json", "size": 100, "digest": "sha256:` + hex64('a') + `"},
		"layers": [{"mediaType": "application/vnd.docker.image.rootfs.diff.tar.gzip", "size": 900, "digest": "sha256:` + hex64('b') + `"}]
	}`
	if err := os.WriteFile(filepath.Join(dir, "manifest.json"), []byte(manifestJSON), 0o644); err != nil {
		t.Fatalf("writing manifest fixture: %v", err)
	}
}

func hex64(b byte) string {
	out := make([]byte, 64)
	for i := range out {
		out[i] = b
	}
	return string(out)
}

func TestListImagesSortedByRepository(t *testing.T) {
	store.Root = t.TempDir()
	defer func() { store.Root = "." }()

	writeManifestFixture(t, store.ImageDir("library/zeta", "latest"))
	writeManifestFixture(t, store.ImageDir("library/alpha", "latest"))

	rows, err := ListImages()
	if err != nil {
		t.Fatalf("ListImages: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Repository != "library/alpha" || rows[1].Repository != "library/zeta" {
		t.Errorf("expected alphabetical order, got %s then %s", rows[0].Repository, rows[1].Repository)
	}
}

func TestListImagesComputesSizeAndID(t *testing.T) {
	store.Root = t.TempDir()
	defer func() { store.Root = "." }()

	writeManifestFixture(t, store.ImageDir("library/thing", "latest"))

	rows, err := ListImages()
	if err != nil {
		t.Fatalf("ListImages: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0].Size != 1000 {
		t.Errorf("Size = %d, want 1000", rows[0].Size)
	}
	if rows[0].ImageID != hex64('a')[:12] {
		t.Errorf("ImageID = %q, want first 12 hex chars of config digest", rows[0].ImageID)
	}
}

func TestListImagesEmptyWhenNoImagesDir(t *testing.T) {
	store.Root = t.TempDir()
	defer func() { store.Root = "." }()

	rows, err := ListImages()
	if err != nil {
		t.Fatalf("ListImages: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("expected no rows, got %d", len(rows))
	}
}

func TestFormatImagesTableIncludesHeader(t *testing.T) {
	var buf bytes.Buffer
	FormatImagesTable(&buf, nil)
	if !bytes.Contains(buf.Bytes(), []byte("REPOSITORY")) {
		t.Errorf("expected table header in output")
	}
}

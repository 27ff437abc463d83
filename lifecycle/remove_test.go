package lifecycle

import (
	"os"
	"testing"

	"github.com/bibin-skaria/rustainer/internal/rerr"
	"github.com/bibin-skaria/rustainer/store"
)

func TestRemoveRejectsMissingContainer(t *testing.T) {
	store.Root = t.TempDir()
	defer func() { store.Root = "." }()

	err := Remove("rustainer_9999999999")
	if err == nil {
		t.Fatalf("expected error for missing container")
	}
	if !rerr.Is(err, rerr.KindContainerNotFound) {
		t.Errorf("expected KindContainerNotFound, got %v", err)
	}
}

func TestRemoveDeletesContainerDirectory(t *testing.T) {
	store.Root = t.TempDir()
	defer func() { store.Root = "." }()

	dir := store.ContainerDir("rustainer_1700000000")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := WriteMetadata(dir, Metadata{Image: "library/alpine:latest"}); err != nil {
		t.Fatalf("WriteMetadata: %v", err)
	}

	if err := Remove("rustainer_1700000000"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("expected container directory to be removed")
	}
}

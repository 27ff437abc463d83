package registry

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/bibin-skaria/rustainer/manifest"
	"github.com/bibin-skaria/rustainer/store"
)

func TestPullWritesManifestLast(t *testing.T) {
	c := newTestClient(t)
	store.Root = t.TempDir()
	defer func() { store.Root = "." }()

	ref := manifest.ImageReference{Repository: "library/alpine", Tag: "latest"}
	resolved, err := c.Pull(ref)
	if err != nil {
		t.Fatalf("Pull: %v", err)
	}

	dir := store.ImageDir(ref.Repository, ref.Tag)

	configPath := filepath.Join(dir, resolved.Config.Digest.Hex)
	if _, err := os.Stat(configPath); err != nil {
		t.Errorf("config blob not written: %v", err)
	}
	layerPath := filepath.Join(dir, resolved.Layers[0].Digest.Hex)
	if _, err := os.Stat(layerPath); err != nil {
		t.Errorf("layer blob not written: %v", err)
	}

	manifestPath := filepath.Join(dir, "manifest.json")
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		t.Fatalf("manifest.json not written: %v", err)
	}
	var persisted manifest.ImageManifest
	if err := json.Unmarshal(data, &persisted); err != nil {
		t.Fatalf("manifest.json is not valid JSON: %v", err)
	}
	if persisted.Config.Digest.String() != resolved.Config.Digest.String() {
		t.Errorf("persisted manifest config digest mismatch")
	}
}

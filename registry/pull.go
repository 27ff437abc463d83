package registry

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/bibin-skaria/rustainer/internal/rerr"
	"github.com/bibin-skaria/rustainer/internal/rlog"
	"github.com/bibin-skaria/rustainer/manifest"
	"github.com/bibin-skaria/rustainer/store"
)

// Pull resolves ref, downloads the config and layer blobs, and writes the
// resolved manifest last. Manifest presence is the image-complete signal
// the lifecycle listing relies on, so it must be the final write.
func (c *Client) Pull(ref manifest.ImageReference) (manifest.ImageManifest, error) {
	log := rlog.For("registry").WithField("ref", ref.String())
	log.Info("pulling image")

	token, err := c.GetToken(ref.Repository)
	if err != nil {
		return manifest.ImageManifest{}, err
	}

	resolved, err := c.Resolve(ref.Repository, ref.Tag, token)
	if err != nil {
		return manifest.ImageManifest{}, err
	}

	dir := store.ImageDir(ref.Repository, ref.Tag)
	if err := store.EnsureDir(dir); err != nil {
		return manifest.ImageManifest{}, err
	}

	log.WithField("digest", resolved.Config.Digest.String()).Info("downloading config blob")
	if err := c.DownloadBlob(ref.Repository, resolved.Config.Digest, token, dir); err != nil {
		return manifest.ImageManifest{}, err
	}

	for i, layer := range resolved.Layers {
		log.WithField("digest", layer.Digest.String()).Infof("downloading layer %d/%d", i+1, len(resolved.Layers))
		if err := c.DownloadBlob(ref.Repository, layer.Digest, token, dir); err != nil {
			return manifest.ImageManifest{}, err
		}
	}

	data, err := json.MarshalIndent(resolved, "", "  ")
	if err != nil {
		return manifest.ImageManifest{}, rerr.ManifestDecode("failed to re-serialize resolved manifest", err)
	}
	manifestPath := filepath.Join(dir, "manifest.json")
	if err := os.WriteFile(manifestPath, data, 0o644); err != nil {
		return manifest.ImageManifest{}, rerr.StoreIO(manifestPath, err)
	}

	log.Info("pull complete")
	return resolved, nil
}

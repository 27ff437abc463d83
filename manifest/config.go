package manifest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	v1 "github.com/google/go-containerregistry/pkg/v1"
	specs "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/bibin-skaria/rustainer/internal/rerr"
)

// RuntimeConfig is the projection of the OCI image config the launcher
// actually needs. Unknown fields in the source JSON are ignored; missing
// ones default to empty sequences or strings.
type RuntimeConfig struct {
	Env        []string
	Cmd        []string
	Entrypoint []string
	WorkingDir string
	User       string
}

// LoadConfig reads <imageDir>/<digest-minus-prefix> as an OCI image config
// document and projects it to the fields the launcher consumes.
func LoadConfig(imageDir string, digest v1.Hash) (RuntimeConfig, error) {
	path := filepath.Join(imageDir, strings.TrimPrefix(digest.String(), "sha256:"))
	data, err := os.ReadFile(path)
	if err != nil {
		return RuntimeConfig{}, rerr.StoreIO(path, err)
	}

	var img specs.Image
	if err := json.Unmarshal(data, &img); err != nil {
		return RuntimeConfig{}, rerr.ManifestDecode("config blob is not valid OCI image config JSON", err)
	}

	return RuntimeConfig{
		Env:        img.Config.Env,
		Cmd:        img.Config.Cmd,
		Entrypoint: img.Config.Entrypoint,
		WorkingDir: img.Config.WorkingDir,
		User:       img.Config.User,
	}, nil
}

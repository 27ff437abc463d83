// Package lifecycle implements the operations that read and mutate
// container/image state after a pull or run: listing images, listing
// containers, and removing a container along with its network and
// process footprint.
package lifecycle

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/bibin-skaria/rustainer/internal/rerr"
)

// Metadata is the per-container record persisted at
// ./containers/<id>/metadata.json. Name is a display label only — per
// spec the directory/netns key is always the container_id, never the
// user-supplied --name.
type Metadata struct {
	Image   string   `json:"image"`
	Command []string `json:"command"`
	Ports   []string `json:"ports"`
	Name    string   `json:"name,omitempty"`
}

// field accessors defaulting to "N/A" for display, per spec §4.7.
func (m Metadata) DisplayImage() string {
	if m.Image == "" {
		return "N/A"
	}
	return m.Image
}

func (m Metadata) DisplayName() string {
	if m.Name == "" {
		return "N/A"
	}
	return m.Name
}

func (m Metadata) DisplayCommand() string {
	if len(m.Command) == 0 {
		return "N/A"
	}
	return strings.Join(m.Command, " ")
}

func (m Metadata) DisplayPorts() string {
	if len(m.Ports) == 0 {
		return "N/A"
	}
	return strings.Join(m.Ports, ",")
}

// WriteMetadata persists m to <containerDir>/metadata.json.
func WriteMetadata(containerDir string, m Metadata) error {
	path := filepath.Join(containerDir, "metadata.json")
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return rerr.StoreIO(path, err)
	}
	return nil
}

// ReadMetadata loads <containerDir>/metadata.json. Missing fields default
// to their zero value, which DisplayImage/DisplayName project to "N/A".
func ReadMetadata(containerDir string) (Metadata, error) {
	path := filepath.Join(containerDir, "metadata.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return Metadata{}, rerr.StoreIO(path, err)
	}
	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return Metadata{}, rerr.ManifestDecode("metadata.json is not valid JSON", err)
	}
	return m, nil
}

// Package manifest models the registry's v2 manifest and manifest-list
// documents, the platform selection rule used to flatten a list into a
// single manifest, and the image config blob the launcher reads env/cmd
// from. Digests and platform comparisons are expressed with
// go-containerregistry's v1 types rather than bare strings, the same
// types the remote/auth side of that ecosystem standardizes on.
package manifest

import (
	"fmt"

	v1 "github.com/google/go-containerregistry/pkg/v1"
)

// Media types accepted from the registry. All four are sent on every manifest
// request's Accept header so the server can return whichever applies.
const (
	MediaTypeManifest     = "application/vnd.docker.distribution.manifest.v2+json"
	MediaTypeManifestList = "application/vnd.docker.distribution.manifest.list.v2+json"
	MediaTypeOCIManifest  = "application/vnd.oci.image.manifest.v1+json"
	MediaTypeOCIIndex     = "application/vnd.oci.image.index.v1+json"
)

// Descriptor points at a content-addressed blob.
type Descriptor struct {
	MediaType string  `json:"mediaType"`
	Size      int64   `json:"size"`
	Digest    v1.Hash `json:"digest"`
}

// ImageManifest is the single-platform v2 manifest: a config descriptor
// plus the ordered layer stack.
type ImageManifest struct {
	SchemaVersion int          `json:"schemaVersion"`
	MediaType     string       `json:"mediaType"`
	Config        Descriptor   `json:"config"`
	Layers        []Descriptor `json:"layers"`
}

// PlatformManifest is one entry of a ManifestList.
type PlatformManifest struct {
	MediaType string       `json:"mediaType"`
	Size      int64        `json:"size"`
	Digest    v1.Hash      `json:"digest"`
	Platform  *v1.Platform `json:"platform,omitempty"`
}

// ManifestList is the multi-arch index; SelectPlatform flattens it to a
// single PlatformManifest entry to re-fetch.
type ManifestList struct {
	SchemaVersion int                `json:"schemaVersion"`
	MediaType     string             `json:"mediaType"`
	Manifests     []PlatformManifest `json:"manifests"`
}

// ManifestOrList is an explicit sum type over the two document shapes the
// registry can hand back for a given reference. Decode chooses the case by
// inspecting which of "manifests" (list) or "layers" (single) the raw JSON
// carries, never by an untagged/dynamic unmarshal.
type ManifestOrList struct {
	Single *ImageManifest
	List   *ManifestList
}

// IsList reports whether the envelope holds a manifest list.
func (m ManifestOrList) IsList() bool { return m.List != nil }

// SelectPlatform applies the selection rule: prefer the first entry with
// os=linux, architecture=amd64; otherwise the first entry; on an empty
// list, selection is impossible.
func (l ManifestList) SelectPlatform() (PlatformManifest, error) {
	if len(l.Manifests) == 0 {
		return PlatformManifest{}, fmt.Errorf("manifest list has no entries")
	}
	for _, m := range l.Manifests {
		if m.Platform != nil && m.Platform.OS == "linux" && m.Platform.Architecture == "amd64" {
			return m, nil
		}
	}
	return l.Manifests[0], nil
}

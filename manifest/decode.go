package manifest

import (
	"encoding/json"
	"fmt"

	digest "github.com/opencontainers/go-digest"
)

// Decode discriminates a manifest response body by structure: presence of
// a top-level "manifests" array means a list, presence of "layers" means a
// single image manifest. This replaces a dynamically-typed/untagged
// decode with an explicit two-shape check, so exactly one of the
// ManifestOrList fields is set on success.
func Decode(body []byte) (ManifestOrList, error) {
	var probe struct {
		Manifests json.RawMessage `json:"manifests"`
		Layers    json.RawMessage `json:"layers"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return ManifestOrList{}, fmt.Errorf("decoding manifest envelope: %w", err)
	}

	switch {
	case probe.Manifests != nil:
		var list ManifestList
		if err := json.Unmarshal(body, &list); err != nil {
			return ManifestOrList{}, fmt.Errorf("decoding manifest list: %w", err)
		}
		if err := validateListDigests(list); err != nil {
			return ManifestOrList{}, err
		}
		return ManifestOrList{List: &list}, nil
	case probe.Layers != nil:
		var single ImageManifest
		if err := json.Unmarshal(body, &single); err != nil {
			return ManifestOrList{}, fmt.Errorf("decoding image manifest: %w", err)
		}
		if err := validateManifestDigests(single); err != nil {
			return ManifestOrList{}, err
		}
		return ManifestOrList{Single: &single}, nil
	default:
		return ManifestOrList{}, fmt.Errorf("manifest body has neither manifests nor layers field")
	}
}

// validateDigest runs every digest the registry hands back through
// go-digest's own grammar before it is trusted as a blob filename or
// config-blob lookup key.
func validateDigest(s string) error {
	if err := digest.Digest(s).Validate(); err != nil {
		return fmt.Errorf("invalid digest %q: %w", s, err)
	}
	return nil
}

func validateManifestDigests(m ImageManifest) error {
	if err := validateDigest(m.Config.Digest.String()); err != nil {
		return err
	}
	for _, l := range m.Layers {
		if err := validateDigest(l.Digest.String()); err != nil {
			return err
		}
	}
	return nil
}

func validateListDigests(l ManifestList) error {
	for _, m := range l.Manifests {
		if err := validateDigest(m.Digest.String()); err != nil {
			return err
		}
	}
	return nil
}

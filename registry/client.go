// Package registry talks to a Docker-compatible registry over the literal
// v2 HTTP API: anonymous bearer token acquisition, manifest negotiation
// (single manifest vs manifest list), and blob download. It intentionally
// does not use go-containerregistry's remote package — the spec calls for
// the token/Accept-header/redirect mechanics to be visible and directly
// testable against a fake HTTP server, which remote.Get abstracts away.
package registry

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	v1 "github.com/google/go-containerregistry/pkg/v1"

	"github.com/bibin-skaria/rustainer/internal/rerr"
	"github.com/bibin-skaria/rustainer/internal/rlog"
	"github.com/bibin-skaria/rustainer/manifest"
)

const (
	defaultAuthBase     = "https://auth.docker.io/token"
	defaultRegistryBase = "https://registry-1.docker.io"
)

// Client is a stateless HTTP client for the registry v2 API. AuthBase and
// RegistryBase are fields (not constants) so tests can point them at an
// httptest.Server.
type Client struct {
	HTTP         *http.Client
	AuthBase     string
	RegistryBase string
}

// NewClient builds a Client pointed at Docker Hub with a sane timeout.
func NewClient() *Client {
	return &Client{
		HTTP:         &http.Client{Timeout: 60 * time.Second},
		AuthBase:     defaultAuthBase,
		RegistryBase: defaultRegistryBase,
	}
}

type tokenResponse struct {
	Token string `json:"token"`
}

// GetToken obtains an anonymous pull-scoped bearer token for repository.
func (c *Client) GetToken(repository string) (string, error) {
	log := rlog.For("registry")
	url := fmt.Sprintf("%s?service=registry.docker.io&scope=repository:%s:pull", c.AuthBase, repository)
	log.WithField("repository", repository).Debug("requesting registry token")

	resp, err := c.HTTP.Get(url)
	if err != nil {
		return "", rerr.Auth("token request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", rerr.Registry(resp.StatusCode, "token endpoint returned non-2xx", nil)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", rerr.Auth("token response is not valid JSON", err)
	}
	return tr.Token, nil
}

// GetManifest fetches the manifest or manifest list for repository at
// reference (a tag or a digest), sending Accept headers for both shapes.
func (c *Client) GetManifest(repository, reference, token string) (manifest.ManifestOrList, error) {
	log := rlog.For("registry")
	url := fmt.Sprintf("%s/v2/%s/manifests/%s", c.RegistryBase, repository, reference)

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return manifest.ManifestOrList{}, rerr.Registry(0, "building manifest request", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", strings.Join([]string{
		manifest.MediaTypeManifest,
		manifest.MediaTypeManifestList,
		manifest.MediaTypeOCIManifest,
		manifest.MediaTypeOCIIndex,
	}, ", "))

	log.WithFields(map[string]interface{}{"repository": repository, "reference": reference}).Debug("fetching manifest")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return manifest.ManifestOrList{}, rerr.Registry(0, "manifest request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return manifest.ManifestOrList{}, rerr.Registry(resp.StatusCode, "reading manifest body", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return manifest.ManifestOrList{}, rerr.Registry(resp.StatusCode, "manifest endpoint returned non-2xx", nil)
	}

	envelope, err := manifest.Decode(body)
	if err != nil {
		return manifest.ManifestOrList{}, rerr.ManifestDecode("failed to decode manifest response", err)
	}
	return envelope, nil
}

// Resolve fetches repository:tag and, if the registry returns a manifest
// list, selects a platform and re-fetches the concrete manifest by digest.
func (c *Client) Resolve(repository, tag, token string) (manifest.ImageManifest, error) {
	envelope, err := c.GetManifest(repository, tag, token)
	if err != nil {
		return manifest.ImageManifest{}, err
	}

	if envelope.IsList() {
		selected, err := envelope.List.SelectPlatform()
		if err != nil {
			return manifest.ImageManifest{}, rerr.PlatformUnavailable()
		}
		envelope, err = c.GetManifest(repository, selected.Digest.String(), token)
		if err != nil {
			return manifest.ImageManifest{}, err
		}
		if envelope.IsList() {
			return manifest.ImageManifest{}, rerr.ManifestDecode("registry returned a list for a digest reference", nil)
		}
	}
	return *envelope.Single, nil
}

// DownloadBlob streams /v2/<repository>/blobs/<digest> to
// <destDir>/<digest-without-prefix>, following redirects (the registry
// commonly 307s to a CDN). Partial files from a failed download are left
// in place; a re-pull simply overwrites them.
func (c *Client) DownloadBlob(repository string, digest v1.Hash, token, destDir string) error {
	log := rlog.For("registry")
	url := fmt.Sprintf("%s/v2/%s/blobs/%s", c.RegistryBase, repository, digest.String())

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return rerr.Registry(0, "building blob request", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	log.WithFields(map[string]interface{}{"repository": repository, "digest": digest.String()}).Debug("downloading blob")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return rerr.Registry(0, "blob request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return rerr.Registry(resp.StatusCode, "blob endpoint returned non-2xx", nil)
	}

	destPath := filepath.Join(destDir, digest.Hex)
	f, err := os.Create(destPath)
	if err != nil {
		return rerr.StoreIO(destPath, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		return rerr.StoreIO(destPath, err)
	}
	return nil
}

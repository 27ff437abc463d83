package registry

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	v1 "github.com/google/go-containerregistry/pkg/v1"

	"github.com/bibin-skaria/rustainer/internal/rerr"
)

const fakeDigest = "sha256:b49b96bfa4b2c4b3b8b4b8b4b8b4b8b4b8b4b8b4b8b4b8b4b8b4b8b4b8b4b8b4"

func newFakeRegistry(t *testing.T) (*httptest.Server, *httptest.Server) {
	authMux := http.NewServeMux()
	authMux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"token":"fake-token"}`)
	})
	authSrv := httptest.NewServer(authMux)

	regMux := http.NewServeMux()
	regMux.HandleFunc("/v2/library/alpine/manifests/latest", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer fake-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/vnd.docker.distribution.manifest.v2+json")
		fmt.Fprintf(w, `{
			"schemaVersion": 2,
			"mediaType": "application/vnd.docker.distribution.manifest.v2+json",
			"config": {"mediaType": "application/vnd.docker.container.image.v1+json", "size": 10, "digest": %q},
			"layers": [{"mediaType": "application/vnd.docker.image.rootfs.diff.tar.gzip", "size": 20, "digest": %q}]
		}`, fakeDigest, fakeDigest)
	})
	regMux.HandleFunc("/v2/library/missing/manifests/latest", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	regMux.HandleFunc("/v2/library/alpine/blobs/"+fakeDigest, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "blob-bytes")
	})
	regSrv := httptest.NewServer(regMux)

	return authSrv, regSrv
}

func newTestClient(t *testing.T) *Client {
	authSrv, regSrv := newFakeRegistry(t)
	t.Cleanup(authSrv.Close)
	t.Cleanup(regSrv.Close)
	return &Client{
		HTTP:         http.DefaultClient,
		AuthBase:     authSrv.URL + "/token",
		RegistryBase: regSrv.URL,
	}
}

func TestGetToken(t *testing.T) {
	c := newTestClient(t)
	token, err := c.GetToken("library/alpine")
	if err != nil {
		t.Fatalf("GetToken: %v", err)
	}
	if token != "fake-token" {
		t.Errorf("token = %q, want fake-token", token)
	}
}

func TestGetManifestSingle(t *testing.T) {
	c := newTestClient(t)
	token, _ := c.GetToken("library/alpine")

	envelope, err := c.GetManifest("library/alpine", "latest", token)
	if err != nil {
		t.Fatalf("GetManifest: %v", err)
	}
	if envelope.IsList() {
		t.Fatalf("expected single manifest")
	}
	if len(envelope.Single.Layers) != 1 {
		t.Fatalf("expected 1 layer, got %d", len(envelope.Single.Layers))
	}
}

func TestGetManifestNon2xxIsRegistryError(t *testing.T) {
	c := newTestClient(t)
	token, _ := c.GetToken("library/alpine")

	_, err := c.GetManifest("library/missing", "latest", token)
	if err == nil {
		t.Fatalf("expected error for missing manifest")
	}
	if !rerr.Is(err, rerr.KindRegistry) {
		t.Errorf("expected KindRegistry, got %v", err)
	}
}

func TestDownloadBlob(t *testing.T) {
	c := newTestClient(t)
	token, _ := c.GetToken("library/alpine")
	dest := t.TempDir()

	digest, err := v1.NewHash(fakeDigest)
	if err != nil {
		t.Fatalf("NewHash: %v", err)
	}
	if err := c.DownloadBlob("library/alpine", digest, token, dest); err != nil {
		t.Fatalf("DownloadBlob: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dest, digest.Hex))
	if err != nil {
		t.Fatalf("reading downloaded blob: %v", err)
	}
	if string(data) != "blob-bytes" {
		t.Errorf("blob contents = %q", string(data))
	}
}

func TestResolveSingleManifest(t *testing.T) {
	c := newTestClient(t)
	token, _ := c.GetToken("library/alpine")

	m, err := c.Resolve("library/alpine", "latest", token)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if m.Config.Digest.String() != fakeDigest {
		t.Errorf("config digest = %s, want %s", m.Config.Digest, fakeDigest)
	}
}

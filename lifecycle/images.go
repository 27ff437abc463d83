package lifecycle

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bibin-skaria/rustainer/internal/sizefmt"
	"github.com/bibin-skaria/rustainer/manifest"
	"github.com/bibin-skaria/rustainer/store"
)

// ImageRow is one rendered line of `rustainer images`.
type ImageRow struct {
	Repository string
	Tag        string
	ImageID    string
	Size       int64
	Created    time.Time
}

// ListImages enumerates ./images/*/*; each <repo>/<tag>/manifest.json
// yields one row. Rows are sorted by repository ascending.
func ListImages() ([]ImageRow, error) {
	root := store.ImagesRoot()
	repoDirs, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var rows []ImageRow
	for _, repoDir := range repoDirs {
		if !repoDir.IsDir() {
			continue
		}
		repoPath := filepath.Join(root, repoDir.Name())
		tagDirs, err := os.ReadDir(repoPath)
		if err != nil {
			continue
		}
		for _, tagDir := range tagDirs {
			if !tagDir.IsDir() {
				continue
			}
			row, ok := readImageRow(repoDir.Name(), tagDir.Name(), filepath.Join(repoPath, tagDir.Name()))
			if ok {
				rows = append(rows, row)
			}
		}
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].Repository < rows[j].Repository })
	return rows, nil
}

func readImageRow(escapedRepo, tag, dir string) (ImageRow, bool) {
	manifestPath := filepath.Join(dir, "manifest.json")
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return ImageRow{}, false
	}
	var m manifest.ImageManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return ImageRow{}, false
	}

	size := m.Config.Size
	for _, l := range m.Layers {
		size += l.Size
	}

	return ImageRow{
		Repository: store.UnescapeRepo(escapedRepo),
		Tag:        tag,
		ImageID:    shortDigest(m.Config.Digest.String()),
		Size:       size,
		Created:    manifestCreationTime(manifestPath),
	}, true
}

func shortDigest(digest string) string {
	hex := strings.TrimPrefix(digest, "sha256:")
	if len(hex) > 12 {
		return hex[:12]
	}
	return hex
}

// manifestCreationTime returns the manifest file's modification time, or
// the epoch when the file cannot be stat'ed. The file's birth time is not
// consulted: Go's stdlib does not expose a portable birth time on every
// platform/FS.
func manifestCreationTime(path string) time.Time {
	info, err := os.Stat(path)
	if err != nil {
		return time.Unix(0, 0).UTC()
	}
	return info.ModTime()
}

// FormatImagesTable renders rows as a fixed-width table.
func FormatImagesTable(w io.Writer, rows []ImageRow) {
	fmt.Fprintf(w, "%-30s %-15s %-15s %-10s %s\n", "REPOSITORY", "TAG", "IMAGE ID", "SIZE", "CREATED")
	for _, r := range rows {
		fmt.Fprintf(w, "%-30s %-15s %-15s %-10s %s\n",
			r.Repository, r.Tag, r.ImageID, sizefmt.FormatSize(r.Size), r.Created.Format(time.RFC3339))
	}
}

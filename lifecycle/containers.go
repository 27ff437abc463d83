package lifecycle

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/bibin-skaria/rustainer/store"
)

// ContainerRow is one rendered line of `rustainer ps`.
type ContainerRow struct {
	ID      string
	Image   string
	Command string
	Created time.Time
	Status  string
	Ports   string
}

// ListContainers enumerates ./containers/*, reading each metadata.json and
// probing `ip netns list` once to determine which containers are running.
func ListContainers() ([]ContainerRow, error) {
	root := store.ContainersRoot()
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	netnsOutput, _ := exec.Command("ip", "netns", "list").CombinedOutput()
	netnsList := string(netnsOutput)

	var rows []ContainerRow
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		id := e.Name()
		dir := filepath.Join(root, id)
		meta, err := ReadMetadata(dir)
		if err != nil {
			meta = Metadata{}
		}

		status := "exited"
		if strings.Contains(netnsList, id) {
			status = "running"
		}

		rows = append(rows, ContainerRow{
			ID:      id,
			Image:   meta.DisplayImage(),
			Command: meta.DisplayCommand(),
			Created: creationTimeFromID(id),
			Status:  status,
			Ports:   meta.DisplayPorts(),
		})
	}
	return rows, nil
}

// creationTimeFromID derives the creation time from the integer suffix of
// a "rustainer_<unix_seconds>" container ID.
func creationTimeFromID(id string) time.Time {
	const prefix = "rustainer_"
	if !strings.HasPrefix(id, prefix) {
		return time.Unix(0, 0).UTC()
	}
	secs, err := strconv.ParseInt(strings.TrimPrefix(id, prefix), 10, 64)
	if err != nil {
		return time.Unix(0, 0).UTC()
	}
	return time.Unix(secs, 0).UTC()
}

// NewContainerID mints a fresh container_id; it doubles as the directory
// key, the network namespace name, and the substring every supervising
// process's argv must carry.
func NewContainerID(nowUnix int64) string {
	return fmt.Sprintf("rustainer_%d", nowUnix)
}

// FormatContainersTable renders rows as a tab-separated table.
func FormatContainersTable(w io.Writer, rows []ContainerRow) {
	fmt.Fprintln(w, "CONTAINER ID\tIMAGE\tCOMMAND\tCREATED\tSTATUS\tPORTS")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Image, r.Command, r.Created.Format(time.RFC3339), r.Status, r.Ports)
	}
}

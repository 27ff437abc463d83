package lifecycle

import (
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/bibin-skaria/rustainer/internal/rerr"
	"github.com/bibin-skaria/rustainer/internal/rlog"
	"github.com/bibin-skaria/rustainer/netplumb"
	"github.com/bibin-skaria/rustainer/store"
)

// Remove stops and deletes a container: kills any surviving processes
// inside and supervising it on the host, waits for them to be reaped,
// replays its recorded network teardown, flushes FORWARD as the documented
// legacy fallback, deletes the namespace, and removes the container
// directory. Every step tolerates the underlying piece already being gone.
func Remove(containerID string) error {
	log := rlog.For("lifecycle").WithField("container_id", containerID)
	dir := store.ContainerDir(containerID)

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return rerr.ContainerNotFound(containerID)
	}

	teardownPath := filepath.Join(dir, "teardown.log")
	tlog, err := netplumb.ReadTeardownLog(teardownPath)
	if err != nil {
		log.WithError(err).Warn("could not read teardown log, continuing with best-effort cleanup")
		tlog, _ = netplumb.ReadTeardownLog("")
	}

	if netnsExists(containerID) {
		killNetnsProcesses(containerID)
		killSupervisors(containerID)
	}

	time.Sleep(500 * time.Millisecond)

	netplumb.Teardown(containerID, tlog)

	log.Info("removing container directory")
	if err := os.RemoveAll(dir); err != nil {
		return rerr.StoreIO(dir, err)
	}
	return nil
}

func netnsExists(containerID string) bool {
	out, err := exec.Command("ip", "netns", "list").CombinedOutput()
	if err != nil {
		return false
	}
	return strings.Contains(string(out), containerID)
}

// killNetnsProcesses kills every process inside the container's network
// namespace via nsenter+killall5, the same blunt instrument spec.md
// documents (it does not attempt a graceful SIGTERM-then-SIGKILL sequence
// — cgroup-scoped process management is an explicit non-goal).
func killNetnsProcesses(containerID string) {
	nsPath := filepath.Join("/var/run/netns", containerID)
	_ = exec.Command("nsenter", "--net="+nsPath, "--", "killall5", "-9").Run()
}

// killSupervisors finds host-side processes whose argv carries both the
// container ID and "chroot" or "unshare" — the ip-netns-exec/unshare/
// chroot chain that supervises the container — and kills them directly,
// since they live in the host PID namespace and killall5 inside the
// netns cannot reach them.
func killSupervisors(containerID string) {
	out, err := exec.Command("ps", "-eo", "pid,args").CombinedOutput()
	if err != nil {
		return
	}
	for _, line := range strings.Split(string(out), "\n") {
		if !strings.Contains(line, containerID) {
			continue
		}
		if !strings.Contains(line, "chroot") && !strings.Contains(line, "unshare") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if pid, err := strconv.Atoi(fields[0]); err == nil {
			_ = exec.Command("kill", "-9", strconv.Itoa(pid)).Run()
		}
	}
}

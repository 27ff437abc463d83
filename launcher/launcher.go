// Package launcher composes the container's environment and argv, then
// spawns it via `ip netns exec ... unshare ... chroot ...`. Namespace
// creation itself is entirely delegated to that subprocess chain — this
// package never calls unshare(2)/clone(2)/chroot(2) directly, matching
// spec's "treat ip/unshare/chroot as opaque processes" boundary.
package launcher

import (
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/bibin-skaria/rustainer/internal/rerr"
	"github.com/bibin-skaria/rustainer/internal/rlog"
)

// MergeEnv starts from the image's ordered Env and applies user overrides
// last. Both are "KEY=VALUE"; entries without "=" are silently dropped.
// Duplicate keys: last write wins for the value, while the merged slice
// keeps each key at the position where it FIRST appeared (a later
// duplicate updates the value in place and does not move the key).
func MergeEnv(imageEnv, overrides []string) []string {
	order := []string{}
	values := map[string]string{}

	apply := func(entries []string) {
		for _, e := range entries {
			i := strings.Index(e, "=")
			if i < 0 {
				continue
			}
			key, val := e[:i], e[i+1:]
			if _, exists := values[key]; !exists {
				order = append(order, key)
			}
			values[key] = val
		}
	}
	apply(imageEnv)
	apply(overrides)

	merged := make([]string, 0, len(order))
	for _, key := range order {
		merged = append(merged, key+"="+values[key])
	}
	return merged
}

// SelectCommand implements the four-way command-selection rule. It is
// total: every combination of inputs yields a non-empty argv.
func SelectCommand(userCmd, entrypoint, imageCmd []string) []string {
	if len(userCmd) > 0 {
		return userCmd
	}
	if len(entrypoint) > 0 {
		return append(append([]string{}, entrypoint...), imageCmd...)
	}
	if len(imageCmd) > 0 {
		return imageCmd
	}
	return []string{"/bin/sh"}
}

// Spawner builds the `ip netns exec <id> unshare --mount --uts --ipc --pid
// --fork --mount-proc chroot <rootfs> <argv...>` command line. Detached
// mode redirects all three standard streams to /dev/null and returns
// after a short grace sleep without waiting; foreground mode inherits the
// parent's stdio and waits, invoking teardown unconditionally and mapping
// the exit status to success or ContainerExitError.
type Spawner struct {
	ContainerID string
	Rootfs      string
	Argv        []string
	Env         []string
}

func (s Spawner) command() *exec.Cmd {
	args := []string{
		"netns", "exec", s.ContainerID,
		"unshare", "--mount", "--uts", "--ipc", "--pid", "--fork", "--mount-proc",
		"chroot", s.Rootfs,
	}
	args = append(args, s.Argv...)
	cmd := exec.Command("ip", args...)
	cmd.Env = s.Env
	return cmd
}

// RunDetached starts the container process without waiting, sleeps to give
// it time to bind its ports, and returns. The container keeps running;
// teardown is deferred to an explicit `rustainer rm`.
func (s Spawner) RunDetached() error {
	log := rlog.For("launcher").WithField("container_id", s.ContainerID)
	cmd := s.command()

	devnull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	defer devnull.Close()
	cmd.Stdin, cmd.Stdout, cmd.Stderr = devnull, devnull, devnull

	log.Info("spawning detached container process")
	if err := cmd.Start(); err != nil {
		return err
	}
	time.Sleep(2 * time.Second)
	return nil
}

// RunForeground starts the container process with inherited stdio, waits
// for it to exit, and always invokes teardown before returning — success
// maps to a nil error, any non-zero exit maps to rerr.ContainerExit.
func (s Spawner) RunForeground(teardown func()) error {
	log := rlog.For("launcher").WithField("container_id", s.ContainerID)
	cmd := s.command()
	cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr

	log.Info("spawning foreground container process")
	runErr := cmd.Run()
	teardown()

	if runErr == nil {
		return nil
	}
	if exitErr, ok := runErr.(*exec.ExitError); ok {
		return rerr.ContainerExit(exitErr.ExitCode())
	}
	return runErr
}

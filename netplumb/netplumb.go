// Package netplumb drives the host-level network plumbing transaction: a
// shared bridge, a per-container veth pair, namespace attach, and per-port
// DNAT rules. Every external command is invoked opaquely via os/exec — the
// runtime treats `ip`, `iptables`, and `sysctl` as black boxes whose exit
// code and stderr are the only observable signal, the same boundary the
// teacher's executors draw around `podman`/`docker`/`unshare`.
package netplumb

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/bibin-skaria/rustainer/internal/rerr"
	"github.com/bibin-skaria/rustainer/internal/rlog"
)

// Subnet is the single fixed bridge subnet this runtime uses. spec.md
// resolves the upstream's 172.18-vs-172.19 split in favor of 172.18; this
// runtime does not attempt to detect or migrate hosts carrying 172.19-era
// state from an earlier build.
const (
	BridgeName    = "rustainer0"
	BridgeAddr    = "172.18.0.1/16"
	BridgeIP      = "172.18.0.1"
	Subnet        = "172.18.0.0/16"
	interfaceName = "eth0"
)

// PortMapping is one host_port:container_port pair.
type PortMapping struct {
	HostPort      uint16
	ContainerPort uint16
}

// ParsePortSpec parses "host:container". Single-token specs are rejected —
// publish-same-port shorthand is not supported by this runtime.
func ParsePortSpec(spec string) (PortMapping, error) {
	parts := strings.Split(spec, ":")
	if len(parts) != 2 {
		return PortMapping{}, rerr.PortSpec(spec, "expected exactly one ':' separating host and container ports")
	}
	host, err := parsePort(parts[0])
	if err != nil {
		return PortMapping{}, rerr.PortSpec(spec, "invalid host port: "+err.Error())
	}
	ctr, err := parsePort(parts[1])
	if err != nil {
		return PortMapping{}, rerr.PortSpec(spec, "invalid container port: "+err.Error())
	}
	return PortMapping{HostPort: host, ContainerPort: ctr}, nil
}

func parsePort(s string) (uint16, error) {
	var v uint32
	if _, err := fmt.Sscanf(s, "%d", &v); err != nil {
		return 0, err
	}
	if v == 0 || v > 65535 {
		return 0, fmt.Errorf("out of range: %s", s)
	}
	return uint16(v), nil
}

// ContainerIP is the naive, deterministic-but-collision-prone allocation
// formula spec.md fixes: 172.18.0.<(len(id) mod 254)+2>. Kept exactly as
// specified because it is an explicit testable property (§8: "the formula
// is deterministic in container_id"); it is the only allocator in this
// package, and two IDs of equal length get the same address.
func ContainerIP(containerID string) string {
	n := (len(containerID) % 254) + 2
	return fmt.Sprintf("172.18.0.%d", n)
}

func shortID(containerID string) string {
	var b strings.Builder
	for _, r := range containerID {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			if b.Len() == 8 {
				break
			}
		}
	}
	return b.String()
}

func vethHost(containerID string) string { return "veth" + shortID(containerID) + "h" }
func vethCtr(containerID string) string  { return "veth" + shortID(containerID) + "c" }

// acceptIf treats a failing command as success when its output contains
// any of the given substrings — the idempotency contract every setup step
// in this package relies on ("File exists", "already exists", and so on).
func acceptIf(output string, err error, substrings ...string) error {
	if err == nil {
		return nil
	}
	for _, s := range substrings {
		if strings.Contains(output, s) {
			return nil
		}
	}
	return err
}

// Setup runs the full plumbing sequence for containerID at containerIP
// with the given port mappings, recording each completed step to a
// teardown log so Teardown can unwind exactly what was done regardless of
// where a later step fails. Every subprocess this function launches is
// started with ctx, so a caller that cancels ctx on SIGINT/SIGTERM (see
// cmd/rustainer) interrupts setup mid-sequence instead of leaving a
// blocking `ip`/`iptables` invocation to run to completion.
func Setup(ctx context.Context, containerID, containerIP string, ports []PortMapping, log *TeardownLog) error {
	l := rlog.For("netplumb").WithField("container_id", containerID)
	l.Info("starting network setup")

	if err := enableForwarding(ctx); err != nil {
		return rerr.NetworkSetup("ip_forward", "sysctl failed", err)
	}

	if err := createNetns(ctx, containerID); err != nil {
		return rerr.NetworkSetup("netns_add", "creating network namespace failed", err)
	}
	log.Record("ip", "netns", "delete", containerID)

	if err := ensureBridge(ctx); err != nil {
		return rerr.NetworkSetup("ensure_bridge", "bridge setup failed", err)
	}

	if err := createVethPair(ctx, containerID); err != nil {
		return rerr.NetworkSetup("veth_pair", "veth pair creation failed", err)
	}
	log.Record("ip", "link", "delete", vethHost(containerID))

	if err := configureContainerInterface(ctx, containerID, containerIP); err != nil {
		return rerr.NetworkSetup("configure_interface", "container interface setup failed", err)
	}

	for _, p := range ports {
		if err := installPortForward(ctx, containerIP, p); err != nil {
			return rerr.NetworkSetup("port_forward", fmt.Sprintf("port %d:%d", p.HostPort, p.ContainerPort), err)
		}
		log.RecordPortForward(containerIP, p)
	}

	l.Info("network setup complete")
	return nil
}

func enableForwarding(ctx context.Context) error {
	out, err := exec.CommandContext(ctx, "sysctl", "-w", "net.ipv4.ip_forward=1").CombinedOutput()
	return acceptIf(string(out), err)
}

func createNetns(ctx context.Context, containerID string) error {
	out, err := exec.CommandContext(ctx, "ip", "netns", "add", containerID).CombinedOutput()
	return acceptIf(string(out), err, "File exists")
}

func ensureBridge(ctx context.Context) error {
	if _, err := exec.CommandContext(ctx, "ip", "link", "show", BridgeName).CombinedOutput(); err == nil {
		return nil
	}
	steps := [][]string{
		{"ip", "link", "add", BridgeName, "type", "bridge"},
		{"ip", "addr", "add", BridgeAddr, "dev", BridgeName},
		{"ip", "link", "set", BridgeName, "up"},
		{"iptables", "-t", "nat", "-A", "POSTROUTING", "-s", Subnet, "!", "-o", BridgeName, "-j", "MASQUERADE"},
		{"iptables", "-A", "FORWARD", "-i", BridgeName, "-o", BridgeName, "-j", "ACCEPT"},
	}
	for _, args := range steps {
		out, err := exec.CommandContext(ctx, args[0], args[1:]...).CombinedOutput()
		if err := acceptIf(string(out), err, "File exists", "already exists"); err != nil {
			return fmt.Errorf("%s: %w (%s)", strings.Join(args, " "), err, out)
		}
	}
	return nil
}

func createVethPair(ctx context.Context, containerID string) error {
	h, c := vethHost(containerID), vethCtr(containerID)
	steps := [][]string{
		{"ip", "link", "add", h, "type", "veth", "peer", "name", c},
		{"ip", "link", "set", c, "netns", containerID},
		{"ip", "link", "set", h, "master", BridgeName},
		{"ip", "link", "set", h, "up"},
	}
	for _, args := range steps {
		out, err := exec.CommandContext(ctx, args[0], args[1:]...).CombinedOutput()
		if err := acceptIf(string(out), err, "File exists"); err != nil {
			return fmt.Errorf("%s: %w (%s)", strings.Join(args, " "), err, out)
		}
	}
	return nil
}

func nsExec(ctx context.Context, containerID string, args ...string) *exec.Cmd {
	full := append([]string{"netns", "exec", containerID}, args...)
	return exec.CommandContext(ctx, "ip", full...)
}

func configureContainerInterface(ctx context.Context, containerID, containerIP string) error {
	c := vethCtr(containerID)
	steps := []*exec.Cmd{
		nsExec(ctx, containerID, "ip", "link", "set", c, "name", interfaceName),
		nsExec(ctx, containerID, "ip", "link", "set", "lo", "up"),
		nsExec(ctx, containerID, "ip", "addr", "add", containerIP+"/16", "dev", interfaceName),
		nsExec(ctx, containerID, "ip", "link", "set", interfaceName, "up"),
	}
	for _, cmd := range steps {
		out, err := cmd.CombinedOutput()
		if err := acceptIf(string(out), err, "File exists"); err != nil {
			return fmt.Errorf("%s: %w (%s)", strings.Join(cmd.Args, " "), err, out)
		}
	}
	time.Sleep(100 * time.Millisecond)

	route := nsExec(ctx, containerID, "ip", "route", "add", "default", "via", BridgeIP)
	out, err := route.CombinedOutput()
	return acceptIf(string(out), err, "File exists")
}

func installPortForward(ctx context.Context, containerIP string, p PortMapping) error {
	dest := fmt.Sprintf("%s:%d", containerIP, p.ContainerPort)
	hostPort := fmt.Sprintf("%d", p.HostPort)
	steps := [][]string{
		{"iptables", "-t", "nat", "-A", "PREROUTING", "-p", "tcp", "--dport", hostPort, "-j", "DNAT", "--to-destination", dest},
		{"iptables", "-t", "nat", "-A", "OUTPUT", "-p", "tcp", "--dport", hostPort, "-j", "DNAT", "--to-destination", dest},
		{"iptables", "-A", "FORWARD", "-p", "tcp", "-d", containerIP, "--dport", fmt.Sprintf("%d", p.ContainerPort), "-m", "conntrack", "--ctstate", "NEW,ESTABLISHED", "-j", "ACCEPT"},
		{"iptables", "-A", "FORWARD", "-p", "tcp", "-s", containerIP, "--sport", fmt.Sprintf("%d", p.ContainerPort), "-m", "conntrack", "--ctstate", "ESTABLISHED", "-j", "ACCEPT"},
	}
	for _, args := range steps {
		out, err := exec.CommandContext(ctx, args[0], args[1:]...).CombinedOutput()
		if err != nil {
			return fmt.Errorf("%s: %w (%s)", strings.Join(args, " "), err, out)
		}
	}
	return nil
}

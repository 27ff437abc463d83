// Command rustainer is the CLI surface over the runtime core: pull, run,
// images, ps, and rm. Every subcommand's job is to parse flags into the
// typed requests the core packages consume, then print either a result or
// the error's message to stderr — the core never talks to the terminal.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bibin-skaria/rustainer/internal/rerr"
	"github.com/bibin-skaria/rustainer/internal/rlog"
	"github.com/bibin-skaria/rustainer/launcher"
	"github.com/bibin-skaria/rustainer/lifecycle"
	"github.com/bibin-skaria/rustainer/manifest"
	"github.com/bibin-skaria/rustainer/netplumb"
	"github.com/bibin-skaria/rustainer/registry"
	"github.com/bibin-skaria/rustainer/rootfs"
	"github.com/bibin-skaria/rustainer/store"
)

var (
	Version   = "dev"
	GitCommit = "unknown"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "rustainer",
		Short:   "A minimal OCI-style container runtime",
		Version: fmt.Sprintf("%s (commit: %s)", Version, GitCommit),
	}
	cmd.AddCommand(newPullCommand())
	cmd.AddCommand(newRunCommand())
	cmd.AddCommand(newImagesCommand())
	cmd.AddCommand(newPsCommand())
	cmd.AddCommand(newRmCommand())
	return cmd
}

func newPullCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "pull <image>",
		Short: "Pull an image from a registry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref := manifest.ParseImageReference(args[0])
			client := registry.NewClient()
			if _, err := client.Pull(ref); err != nil {
				return err
			}
			fmt.Printf("pulled %s\n", ref.String())
			return nil
		},
	}
}

func newRunCommand() *cobra.Command {
	var (
		name        string
		detach      bool
		interactive bool
		tty         bool
		envs        []string
		volumes     []string
		ports       []string
	)

	cmd := &cobra.Command{
		Use:   "run <image> [command...]",
		Short: "Run a container from a local image",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref := manifest.ParseImageReference(args[0])
			userCmd := args[1:]

			return runContainer(runRequest{
				Ref:         ref,
				Name:        name,
				Detach:      detach,
				Interactive: interactive,
				TTY:         tty,
				EnvOverride: envs,
				Volumes:     volumes,
				Ports:       ports,
				UserCmd:     userCmd,
			})
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "display name for the container")
	cmd.Flags().BoolVarP(&detach, "detach", "d", false, "run the container in the background")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "keep stdin open")
	cmd.Flags().BoolVarP(&tty, "tty", "t", false, "allocate a pseudo-terminal")
	cmd.Flags().StringArrayVarP(&envs, "env", "e", nil, "set environment variables (KEY=VALUE)")
	cmd.Flags().StringArrayVarP(&volumes, "volume", "v", nil, "HOST:CONTAINER volume mount (accepted, unimplemented)")
	cmd.Flags().StringArrayVarP(&ports, "port", "p", nil, "HOST:CONTAINER port mapping")
	return cmd
}

func newImagesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "images",
		Short: "List local images",
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, err := lifecycle.ListImages()
			if err != nil {
				return err
			}
			lifecycle.FormatImagesTable(os.Stdout, rows)
			return nil
		},
	}
}

func newPsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ps",
		Short: "List containers",
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, err := lifecycle.ListContainers()
			if err != nil {
				return err
			}
			lifecycle.FormatContainersTable(os.Stdout, rows)
			return nil
		},
	}
}

func newRmCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Stop and remove a container",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := lifecycle.Remove(args[0]); err != nil {
				return err
			}
			fmt.Println(args[0])
			return nil
		},
	}
}

type runRequest struct {
	Ref         manifest.ImageReference
	Name        string
	Detach      bool
	Interactive bool
	TTY         bool
	EnvOverride []string
	Volumes     []string
	Ports       []string
	UserCmd     []string
}

func runContainer(req runRequest) error {
	log := rlog.For("cmd")
	if len(req.Volumes) > 0 {
		log.WithField("volumes", req.Volumes).Debug("volume mounts are accepted but not implemented; ignoring")
	}

	imageDir := store.ImageDir(req.Ref.Repository, req.Ref.Tag)
	if _, err := os.Stat(imageDir); os.IsNotExist(err) {
		return rerr.ImageNotFound(req.Ref.String())
	}

	var m manifest.ImageManifest
	if err := loadJSONFile(filepath.Join(imageDir, "manifest.json"), &m); err != nil {
		return rerr.ImageNotFound(req.Ref.String())
	}

	cfg, err := manifest.LoadConfig(imageDir, m.Config.Digest)
	if err != nil {
		return err
	}

	ports := make([]netplumb.PortMapping, 0, len(req.Ports))
	for _, spec := range req.Ports {
		p, err := netplumb.ParsePortSpec(spec)
		if err != nil {
			return err
		}
		ports = append(ports, p)
	}

	containerID := lifecycle.NewContainerID(time.Now().Unix())
	containerDir := store.ContainerDir(containerID)
	if err := store.EnsureDir(containerDir); err != nil {
		return err
	}
	rootfsDir := store.RootfsDir(containerID)
	if err := store.EnsureDir(rootfsDir); err != nil {
		return err
	}

	layerDigests := make([]string, 0, len(m.Layers))
	for _, l := range m.Layers {
		layerDigests = append(layerDigests, l.Digest.Hex)
	}
	if err := rootfs.Build(imageDir, layerDigests, rootfsDir); err != nil {
		return err
	}

	portSpecs := make([]string, len(req.Ports))
	copy(portSpecs, req.Ports)
	if err := lifecycle.WriteMetadata(containerDir, lifecycle.Metadata{
		Image:   req.Ref.String(),
		Command: launcher.SelectCommand(req.UserCmd, cfg.Entrypoint, cfg.Cmd),
		Ports:   portSpecs,
		Name:    req.Name,
	}); err != nil {
		return err
	}

	containerIP := netplumb.ContainerIP(containerID)
	teardownPath := filepath.Join(containerDir, "teardown.log")
	tlog, err := netplumb.OpenTeardownLog(teardownPath)
	if err != nil {
		return err
	}

	setupCtx, stopSetup := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = netplumb.Setup(setupCtx, containerID, containerIP, ports, tlog)
	stopSetup()
	if err != nil {
		netplumb.Teardown(containerID, tlog)
		return err
	}

	spawner := launcher.Spawner{
		ContainerID: containerID,
		Rootfs:      rootfsDir,
		Argv:        launcher.SelectCommand(req.UserCmd, cfg.Entrypoint, cfg.Cmd),
		Env:         launcher.MergeEnv(cfg.Env, req.EnvOverride),
	}

	if req.Detach {
		if err := spawner.RunDetached(); err != nil {
			netplumb.Teardown(containerID, tlog)
			return err
		}
		fmt.Println(containerID)
		return nil
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Warn("received interrupt, tearing down container")
		netplumb.Teardown(containerID, tlog)
		os.Exit(130)
	}()

	return spawner.RunForeground(func() {
		netplumb.Teardown(containerID, tlog)
	})
}

func loadJSONFile(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// Package rerr defines the fixed error taxonomy the runtime surfaces to the
// CLI boundary. Unlike a general-purpose error builder, this package models
// exactly the error kinds the runtime can produce — there is no retry or
// severity machinery because the core never retries an operation itself.
package rerr

import "fmt"

// Kind identifies one of the runtime's error categories.
type Kind string

const (
	KindImageRefParse      Kind = "image_ref_parse"
	KindAuth               Kind = "auth"
	KindRegistry           Kind = "registry"
	KindManifestDecode     Kind = "manifest_decode"
	KindPlatformUnavailable Kind = "platform_unavailable"
	KindStoreIO            Kind = "store_io"
	KindRootfs             Kind = "rootfs"
	KindImageNotFound      Kind = "image_not_found"
	KindNetworkSetup       Kind = "network_setup"
	KindPortSpec           Kind = "port_spec"
	KindContainerExit      Kind = "container_exit"
	KindContainerNotFound  Kind = "container_not_found"
)

// Error is the concrete error type returned by every core package. Fields
// beyond Kind/Message/Cause are populated only when that Kind uses them.
type Error struct {
	Kind    Kind
	Message string
	Cause   error

	// Kind-specific context.
	Status    int    // KindRegistry: HTTP status code
	Path      string // KindStoreIO: filesystem path
	Digest    string // KindRootfs: layer digest
	Ref       string // KindImageNotFound: "repo:tag"
	Step      string // KindNetworkSetup: which setup step failed
	Spec      string // KindPortSpec: the malformed port spec
	ExitCode  int    // KindContainerExit
	Container string // KindContainerNotFound
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindRegistry:
		return fmt.Sprintf("registry error (status %d): %s", e.Status, e.Message)
	case KindStoreIO:
		return fmt.Sprintf("store I/O error at %q: %s", e.Path, e.Message)
	case KindRootfs:
		return fmt.Sprintf("rootfs error (layer %s): %s", e.Digest, e.Message)
	case KindImageNotFound:
		return fmt.Sprintf("image %s not found locally: %s", e.Ref, e.Message)
	case KindNetworkSetup:
		return fmt.Sprintf("network setup failed at step %q: %s", e.Step, e.Message)
	case KindPortSpec:
		return fmt.Sprintf("invalid port spec %q: %s", e.Spec, e.Message)
	case KindContainerExit:
		return fmt.Sprintf("container exited with code %d", e.ExitCode)
	case KindContainerNotFound:
		return fmt.Sprintf("container %q not found", e.Container)
	default:
		return e.Message
	}
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether err (or any error it wraps) carries the given Kind.
func Is(err error, kind Kind) bool {
	for err != nil {
		if re, ok := err.(*Error); ok {
			if re.Kind == kind {
				return true
			}
			err = re.Cause
			continue
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

func ImageRefParse(msg string) *Error {
	return &Error{Kind: KindImageRefParse, Message: msg}
}

func Auth(msg string, cause error) *Error {
	return &Error{Kind: KindAuth, Message: msg, Cause: cause}
}

func Registry(status int, msg string, cause error) *Error {
	return &Error{Kind: KindRegistry, Status: status, Message: msg, Cause: cause}
}

func ManifestDecode(msg string, cause error) *Error {
	return &Error{Kind: KindManifestDecode, Message: msg, Cause: cause}
}

func PlatformUnavailable() *Error {
	return &Error{Kind: KindPlatformUnavailable, Message: "manifest list has no usable entries"}
}

func StoreIO(path string, cause error) *Error {
	return &Error{Kind: KindStoreIO, Path: path, Message: cause.Error(), Cause: cause}
}

func Rootfs(digest, msg string, cause error) *Error {
	return &Error{Kind: KindRootfs, Digest: digest, Message: msg, Cause: cause}
}

func ImageNotFound(ref string) *Error {
	return &Error{Kind: KindImageNotFound, Ref: ref, Message: "run 'rustainer pull' first"}
}

func NetworkSetup(step, msg string, cause error) *Error {
	return &Error{Kind: KindNetworkSetup, Step: step, Message: msg, Cause: cause}
}

func PortSpec(spec, msg string) *Error {
	return &Error{Kind: KindPortSpec, Spec: spec, Message: msg}
}

func ContainerExit(code int) *Error {
	return &Error{Kind: KindContainerExit, ExitCode: code}
}

func ContainerNotFound(id string) *Error {
	return &Error{Kind: KindContainerNotFound, Container: id}
}

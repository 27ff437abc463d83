package rerr

import (
	"fmt"
	"testing"
)

func TestIsUnwrapsChain(t *testing.T) {
	inner := Registry(404, "not found", nil)
	wrapped := fmt.Errorf("pulling layer: %w", inner)

	if !Is(wrapped, KindRegistry) {
		t.Fatalf("expected Is to find KindRegistry through fmt.Errorf wrap")
	}
	if Is(wrapped, KindRootfs) {
		t.Fatalf("did not expect KindRootfs to match")
	}
}

func TestIsNestedRerr(t *testing.T) {
	inner := StoreIO("/var/lib/rustainer/images/x", fmt.Errorf("permission denied"))
	outer := &Error{Kind: KindRootfs, Digest: "sha256:abc", Cause: inner}

	if !Is(outer, KindStoreIO) {
		t.Fatalf("expected Is to find wrapped KindStoreIO")
	}
	if !Is(outer, KindRootfs) {
		t.Fatalf("expected Is to find outer KindRootfs")
	}
}

func TestErrorMessages(t *testing.T) {
	cases := []struct {
		err  *Error
		want string
	}{
		{ContainerExit(137), "container exited with code 137"},
		{ContainerNotFound("abc123"), `container "abc123" not found`},
		{PortSpec("80:abc", "invalid host port"), `invalid port spec "80:abc": invalid host port`},
	}
	for _, c := range cases {
		if got := c.err.Error(); got != c.want {
			t.Errorf("Error() = %q, want %q", got, c.want)
		}
	}
}

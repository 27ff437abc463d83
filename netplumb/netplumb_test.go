package netplumb

import (
	"fmt"
	"testing"
)

func TestParsePortSpecValid(t *testing.T) {
	m, err := ParsePortSpec("8080:80")
	if err != nil {
		t.Fatalf("ParsePortSpec: %v", err)
	}
	if m.HostPort != 8080 || m.ContainerPort != 80 {
		t.Errorf("got %+v", m)
	}
}

func TestParsePortSpecRejectsSingleToken(t *testing.T) {
	if _, err := ParsePortSpec("8080"); err == nil {
		t.Fatalf("expected error for publish-same-port shorthand")
	}
}

func TestParsePortSpecRejectsOutOfRange(t *testing.T) {
	cases := []string{"0:80", "70000:80", "8080:0", "8080:99999"}
	for _, c := range cases {
		if _, err := ParsePortSpec(c); err == nil {
			t.Errorf("expected error for %q", c)
		}
	}
}

func TestParsePortSpecRejectsExtraColons(t *testing.T) {
	if _, err := ParsePortSpec("127.0.0.1:8080:80"); err == nil {
		t.Fatalf("expected error for three-part spec")
	}
}

func TestContainerIPDeterministic(t *testing.T) {
	id := "rustainer_1700000000"
	a := ContainerIP(id)
	b := ContainerIP(id)
	if a != b {
		t.Fatalf("ContainerIP not deterministic: %q vs %q", a, b)
	}
}

func TestContainerIPFormula(t *testing.T) {
	id := "rustainer_1700000000"
	want := (len(id) % 254) + 2
	got := ContainerIP(id)
	wantIP := "172.18.0."
	if len(got) < len(wantIP) || got[:len(wantIP)] != wantIP {
		t.Fatalf("ContainerIP = %q, want prefix %q", got, wantIP)
	}
	if got != fmt.Sprintf("%s%d", wantIP, want) {
		t.Errorf("ContainerIP = %q, want %s%d", got, wantIP, want)
	}
}

func TestShortIDAlphanumericOnly(t *testing.T) {
	id := "rustainer_1700000000"
	h := vethHost(id)
	c := vethCtr(id)
	if h == c {
		t.Fatalf("host and container veth names must differ")
	}
	if len(h) > len("veth")+8+1 {
		t.Errorf("vethHost name too long: %q", h)
	}
	if got := shortID("ab_cd-ef.gh!ij"); got != "abcdefgh" {
		t.Errorf("shortID = %q, want abcdefgh", got)
	}
}

func TestAcceptIfToleratesExpectedSubstring(t *testing.T) {
	err := acceptIf("RTNETLINK answers: File exists", errFake{}, "File exists")
	if err != nil {
		t.Errorf("expected acceptIf to tolerate 'File exists', got %v", err)
	}
}

func TestAcceptIfPropagatesUnexpectedError(t *testing.T) {
	err := acceptIf("permission denied", errFake{}, "File exists")
	if err == nil {
		t.Errorf("expected acceptIf to propagate unrelated errors")
	}
}

type errFake struct{}

func (errFake) Error() string { return "exit status 1" }

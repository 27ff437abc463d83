package lifecycle

import (
	"reflect"
	"testing"
)

func TestMetadataDisplayDefaults(t *testing.T) {
	var m Metadata
	if m.DisplayImage() != "N/A" {
		t.Errorf("DisplayImage() = %q, want N/A", m.DisplayImage())
	}
	if m.DisplayName() != "N/A" {
		t.Errorf("DisplayName() = %q, want N/A", m.DisplayName())
	}
}

func TestMetadataDisplayPopulated(t *testing.T) {
	m := Metadata{Image: "library/redis:7", Name: "my-cache"}
	if m.DisplayImage() != "library/redis:7" {
		t.Errorf("DisplayImage() = %q", m.DisplayImage())
	}
	if m.DisplayName() != "my-cache" {
		t.Errorf("DisplayName() = %q", m.DisplayName())
	}
}

func TestMetadataDisplayCommandAndPortsDefaults(t *testing.T) {
	var m Metadata
	if m.DisplayCommand() != "N/A" {
		t.Errorf("DisplayCommand() = %q, want N/A", m.DisplayCommand())
	}
	if m.DisplayPorts() != "N/A" {
		t.Errorf("DisplayPorts() = %q, want N/A", m.DisplayPorts())
	}

	m = Metadata{Command: []string{"nginx", "-g", "daemon off;"}, Ports: []string{"80:80", "443:443"}}
	if m.DisplayCommand() != "nginx -g daemon off;" {
		t.Errorf("DisplayCommand() = %q", m.DisplayCommand())
	}
	if m.DisplayPorts() != "80:80,443:443" {
		t.Errorf("DisplayPorts() = %q", m.DisplayPorts())
	}
}

func TestWriteReadMetadataRoundTrip(t *testing.T) {
	dir := t.TempDir()
	want := Metadata{Image: "library/nginx:latest", Command: []string{"nginx"}, Ports: []string{"80:80"}, Name: "web"}
	if err := WriteMetadata(dir, want); err != nil {
		t.Fatalf("WriteMetadata: %v", err)
	}
	got, err := ReadMetadata(dir)
	if err != nil {
		t.Fatalf("ReadMetadata: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, want)
	}
}

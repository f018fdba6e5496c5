package config

import (
	"testing"

	"github.com/accessio/accessio/pkg/xerrors"
)

func TestFromMap_RequireMissingKeyIsConfigInvalid(t *testing.T) {
	m := NewFromMap("s3", map[string]string{})
	_, err := m.Require("bucket")
	if !xerrors.IsKind(err, xerrors.KindConfigInvalid) {
		t.Fatalf("expected ConfigInvalid, got %v", err)
	}
}

func TestFromMap_RequirePresent(t *testing.T) {
	m := NewFromMap("s3", map[string]string{"bucket": "my-bucket"})
	v, err := m.Require("bucket")
	if err != nil {
		t.Fatalf("Require: %v", err)
	}
	if v != "my-bucket" {
		t.Fatalf("got %q, want %q", v, "my-bucket")
	}
}

func TestFromMap_OptionalIntFallsBackToDefault(t *testing.T) {
	m := NewFromMap("s3", map[string]string{})
	n, err := m.OptionalInt("chunk_size", 8*1024*1024)
	if err != nil {
		t.Fatalf("OptionalInt: %v", err)
	}
	if n != 8*1024*1024 {
		t.Fatalf("got %d, want default", n)
	}
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"1024", 1024},
		{"1KB", 1024},
		{"1MB", 1024 * 1024},
		{"1GB", 1024 * 1024 * 1024},
		{"2MiB", 2 * 1024 * 1024},
	}
	for _, tt := range tests {
		got, err := ParseSize(tt.in)
		if err != nil {
			t.Fatalf("ParseSize(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseSize(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestParseSize_Malformed(t *testing.T) {
	if _, err := ParseSize("not-a-size"); err == nil {
		t.Fatal("expected an error for malformed size")
	}
}

package render

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

// Disabled rendering must look like success with no ref, so the crawler
// never special-cases it.
func TestNop(t *testing.T) {
	ref, err := Nop{}.Screenshot(context.Background(), "acme", "https://acme.example")
	if err != nil {
		t.Fatalf("Nop.Screenshot: %v", err)
	}
	if ref != "" {
		t.Errorf("ref = %q, want empty", ref)
	}
}

func TestSlug(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Acme Corp", "acme-corp"},
		{"acme", "acme"},
		{"Acme / EU (beta)", "acme-eu-beta"},
		{"--weird--", "weird"},
		{"***", "site"},
	}
	for _, tt := range tests {
		if got := slug(tt.in); got != tt.want {
			t.Errorf("slug(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// writeAtomic must create parents, leave the final bytes in place, and
// leave no .tmp behind.
func TestWriteAtomic(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "acme", "shot.png")

	if err := writeAtomic(target, []byte("png-bytes")); err != nil {
		t.Fatalf("writeAtomic: %v", err)
	}

	got, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(got) != "png-bytes" {
		t.Errorf("content = %q, want %q", got, "png-bytes")
	}
	if _, err := os.Stat(target + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("tmp file left behind: %v", err)
	}
}

// Default file names must sort chronologically so the newest capture for a
// page is the lexicographically last ref.
func TestConfigDefaults_FileID(t *testing.T) {
	cfg := Config{}
	cfg.defaults()

	id := cfg.FileID()
	if len(id) < len("20060102T150405Z_")+6 {
		t.Errorf("id %q shorter than timestamped form", id)
	}
	if id[8] != 'T' || id[15] != 'Z' {
		t.Errorf("id %q missing timestamp markers", id)
	}
}

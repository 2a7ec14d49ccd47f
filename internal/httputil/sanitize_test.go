package httputil

import (
	"path/filepath"
	"testing"
)

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"valid HTTPS", "https://tikwm.com/api/", false},
		{"HTTP rejected", "http://tikwm.com/api/", true},
		{"javascript scheme rejected", "javascript:alert(1)", true},
		{"empty string", "", true},
		{"no host", "https://", true},
		{"valid with query", "https://tiklydown.com/getAjax?", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
		})
	}
}

func TestValidateEndpoint(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"https", "https://ssstik.io/abc", false},
		{"http loopback", "http://127.0.0.1:8080/api", false},
		{"ftp rejected", "ftp://example.com/file", true},
		{"no host", "http://", true},
		{"garbage", "://nope", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEndpoint(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateEndpoint(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
		})
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"normal filename", "users.csv", "users.csv"},
		{"path traversal", "../../etc/passwd", "passwd"},
		{"directory components", "/var/lib/tokgrab/users.csv", "users.csv"},
		{"null bytes", "users\x00.csv", "users.csv"},
		{"colon", "users:2026.csv", "users_2026.csv"},
		{"double dots", "users..csv", "users_csv"},
		{"empty string", "", "untitled"},
		{"just dot", ".", "untitled"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SanitizeFilename(tt.input)
			if got != tt.expected {
				t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestSafePath(t *testing.T) {
	dir := t.TempDir()

	path, err := SafePath(dir, "../../etc/passwd")
	if err != nil {
		t.Fatalf("SafePath() error: %v", err)
	}
	if filepath.Dir(path) != dir {
		t.Errorf("SafePath() = %q, want a file inside %q", path, dir)
	}
	if filepath.Base(path) != "passwd" {
		t.Errorf("base = %q, want passwd", filepath.Base(path))
	}
}

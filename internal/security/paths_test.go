package security

import (
	"os"
	"path/filepath"
	"testing"
)

func TestValidatePathWithinDirectory(t *testing.T) {
	tmpDir := t.TempDir()

	safeDir := filepath.Join(tmpDir, "safe")
	unsafeDir := filepath.Join(tmpDir, "unsafe")
	for _, d := range []string{safeDir, unsafeDir} {
		if err := os.MkdirAll(d, 0755); err != nil {
			t.Fatalf("Failed to create %s: %v", d, err)
		}
	}
	symlinkPath := filepath.Join(safeDir, "evil-symlink")
	if err := os.Symlink(unsafeDir, symlinkPath); err != nil {
		t.Fatalf("Failed to create symlink: %v", err)
	}

	tests := []struct {
		name      string
		filePath  string
		safeDir   string
		wantError bool
	}{
		{"valid path within directory", filepath.Join(safeDir, "clip.png"), safeDir, false},
		{"valid nested path", filepath.Join(safeDir, "plots", "clip.png"), safeDir, false},
		{"path traversal with ..", filepath.Join(safeDir, "..", "clip.png"), safeDir, true},
		{"relative traversal", "../../../etc/passwd", safeDir, true},
		{"absolute path outside safe dir", "/etc/passwd", safeDir, true},
		{"new file under symlinked dir", filepath.Join(symlinkPath, "clip.png"), safeDir, true},
		{"symlink itself", symlinkPath, safeDir, true},
		{"missing safe dir", filepath.Join(tmpDir, "none", "clip.png"), filepath.Join(tmpDir, "none"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePathWithinDirectory(tt.filePath, tt.safeDir)
			if (err != nil) != tt.wantError {
				t.Errorf("ValidatePathWithinDirectory(%q, %q) error = %v, wantError %v",
					tt.filePath, tt.safeDir, err, tt.wantError)
			}
		})
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"squats-2026_05_01", "squats-2026_05_01"},
		{"bench press (set 2)", "bench_press_set_2"},
		{"../../etc/passwd", "etc_passwd"},
		{"..", "unknown"},
		{"", "unknown"},
		{"ünïcode clip", "n_code_clip"},
	}
	for _, tt := range tests {
		if got := SanitizeFilename(tt.in); got != tt.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	long := make([]byte, 300)
	for i := range long {
		long[i] = 'a'
	}
	if got := SanitizeFilename(string(long)); len(got) != 128 {
		t.Errorf("long name sanitized to %d bytes, want 128", len(got))
	}
}

func TestReportPath(t *testing.T) {
	dir := t.TempDir()

	got, err := ReportPath(dir, "/videos/morning squats.jsonl", ".png")
	if err != nil {
		t.Fatalf("ReportPath failed: %v", err)
	}
	if want := filepath.Join(dir, "morning_squats.png"); got != want {
		t.Errorf("ReportPath = %q, want %q", got, want)
	}

	if _, err := ReportPath(filepath.Join(dir, "missing"), "clip.jsonl", ".html"); err == nil {
		t.Error("ReportPath should fail when the output directory does not exist")
	}
}

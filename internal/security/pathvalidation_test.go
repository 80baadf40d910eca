package security

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePathWithinDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "snapshots"), 0o755))

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"file in directory", filepath.Join(dir, "backup.db"), false},
		{"nested new file", filepath.Join(dir, "snapshots", "a", "b.db"), false},
		{"directory itself", dir, false},
		{"parent escape", filepath.Join(dir, "..", "backup.db"), true},
		{"absolute elsewhere", "/etc/passwd", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePathWithinDirectory(tt.path, dir)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidatePathWithinDirectory_Symlink(t *testing.T) {
	dir := t.TempDir()
	outside := t.TempDir()
	link := filepath.Join(dir, "escape")
	if err := os.Symlink(outside, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	assert.Error(t, ValidatePathWithinDirectory(filepath.Join(link, "new.db"), dir))
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"yuanshan", "yuanshan"},
		{"Songshan Airport (RCSS)", "Songshan_Airport_RCSS"},
		{"../../etc/passwd", "etc_passwd"},
		{"site-1.v2", "site-1.v2"},
		{"", "unknown"},
		{"///", "unknown"},
		{"松山", "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeFilename(tt.in), "SanitizeFilename(%q)", tt.in)
	}

	long := SanitizeFilename(strings.Repeat("a", 300))
	assert.Len(t, long, maxFilenameLen)
}

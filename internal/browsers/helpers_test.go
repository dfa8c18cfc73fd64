package browsers

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func mkdir(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(path, 0o755))
}

// linuxResolver points a linux layout at a temporary root
func linuxResolver(t *testing.T) (*PathResolver, string) {
	t.Helper()
	root := t.TempDir()
	return &PathResolver{
		OS:       "linux",
		Root:     root,
		Getenv:   func(string) string { return "" },
		LookPath: func(string) (string, error) { return "", os.ErrNotExist },
	}, root
}

func token(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

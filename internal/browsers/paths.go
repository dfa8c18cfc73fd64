package browsers

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// browserConfig defines browser-specific locations relative to a user's home
// directory and the system root
type browserConfig struct {
	WindowsPath []string
	MacOSPath   []string
	LinuxPath   []string

	// installation markers
	WindowsBinaries [][]string
	MacOSApp        string
	Binaries        []string
}

var browserConfigs = map[Family]browserConfig{
	Firefox: {
		WindowsPath: []string{"AppData", "Roaming", "Mozilla", "Firefox", "Profiles"},
		MacOSPath:   []string{"Library", "Application Support", "Firefox", "Profiles"},
		LinuxPath:   []string{".mozilla", "firefox"},
		WindowsBinaries: [][]string{
			{"Program Files", "Mozilla Firefox", "firefox.exe"},
			{"Program Files (x86)", "Mozilla Firefox", "firefox.exe"},
		},
		MacOSApp: "Firefox.app",
		Binaries: []string{"firefox", "firefox-esr"},
	},
	Chrome: {
		WindowsPath: []string{"AppData", "Local", "Google", "Chrome", "User Data"},
		MacOSPath:   []string{"Library", "Application Support", "Google", "Chrome"},
		LinuxPath:   []string{".config", "google-chrome"},
		WindowsBinaries: [][]string{
			{"Program Files", "Google", "Chrome", "Application", "chrome.exe"},
			{"Program Files (x86)", "Google", "Chrome", "Application", "chrome.exe"},
		},
		MacOSApp: "Google Chrome.app",
		Binaries: []string{"google-chrome", "google-chrome-stable", "chrome"},
	},
	Edge: {
		WindowsPath: []string{"AppData", "Local", "Microsoft", "Edge", "User Data"},
		MacOSPath:   []string{"Library", "Application Support", "Microsoft Edge"},
		LinuxPath:   []string{".config", "microsoft-edge"},
		WindowsBinaries: [][]string{
			{"Program Files (x86)", "Microsoft", "Edge", "Application", "msedge.exe"},
			{"Program Files", "Microsoft", "Edge", "Application", "msedge.exe"},
		},
		MacOSApp: "Microsoft Edge.app",
		Binaries: []string{"microsoft-edge", "microsoft-edge-stable", "edge"},
	},
}

// binDirs are searched for browser binaries when scanning a mounted image
var binDirs = []string{"usr/bin", "usr/local/bin", "snap/bin", "bin"}

// PathResolver derives browser locations for an OS family. Root, when set,
// redirects every path into a mounted image instead of the live system.
type PathResolver struct {
	OS       string
	Root     string
	Getenv   func(string) string
	LookPath func(string) (string, error)
}

// NewPathResolver creates a resolver for the given GOOS value backed by the live environment
func NewPathResolver(goos, root string) *PathResolver {
	return &PathResolver{
		OS:       goos,
		Root:     root,
		Getenv:   os.Getenv,
		LookPath: exec.LookPath,
	}
}

// Supported reports whether the OS family has known browser locations
func (r *PathResolver) Supported() bool {
	switch r.OS {
	case "windows", "darwin", "linux":
		return true
	}
	return false
}

func (r *PathResolver) base() (string, error) {
	if !r.Supported() {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedPlatform, r.OS)
	}
	if r.Root != "" {
		return r.Root, nil
	}
	if r.OS != "windows" {
		return string(filepath.Separator), nil
	}
	drive := ""
	if r.Getenv != nil {
		drive = r.Getenv("SystemDrive")
	}
	if drive == "" {
		return "", fmt.Errorf("%w: SystemDrive is not set", ErrUnsupportedPlatform)
	}
	return drive + string(filepath.Separator), nil
}

// UsersRoot returns the directory that holds per-user home directories
func (r *PathResolver) UsersRoot() (string, error) {
	base, err := r.base()
	if err != nil {
		return "", err
	}
	if r.OS == "linux" {
		return filepath.Join(base, "home"), nil
	}
	return filepath.Join(base, "Users"), nil
}

// HomeDir returns the home directory of username
func (r *PathResolver) HomeDir(username string) (string, error) {
	if r.OS == "linux" && username == "root" {
		base, err := r.base()
		if err != nil {
			return "", err
		}
		return filepath.Join(base, "root"), nil
	}
	users, err := r.UsersRoot()
	if err != nil {
		return "", err
	}
	return filepath.Join(users, username), nil
}

// ProfileRoot returns the directory holding the browser's profiles for username
func (r *PathResolver) ProfileRoot(username string, family Family) (string, error) {
	config, ok := browserConfigs[family]
	if !ok {
		return "", fmt.Errorf("unknown browser %q", family)
	}
	home, err := r.HomeDir(username)
	if err != nil {
		return "", err
	}

	switch r.OS {
	case "windows":
		return filepath.Join(home, filepath.Join(config.WindowsPath...)), nil
	case "darwin": // macOS
		return filepath.Join(home, filepath.Join(config.MacOSPath...)), nil
	default:
		return filepath.Join(home, filepath.Join(config.LinuxPath...)), nil
	}
}

// IsBrowserInstalled checks for the browser's executable. Any resolution error,
// including ErrUnsupportedPlatform, means the browser is absent.
func (r *PathResolver) IsBrowserInstalled(family Family) bool {
	config, ok := browserConfigs[family]
	if !ok {
		return false
	}
	base, err := r.base()
	if err != nil {
		return false
	}

	switch r.OS {
	case "windows":
		for _, segments := range config.WindowsBinaries {
			if exists(filepath.Join(base, filepath.Join(segments...))) {
				return true
			}
		}
		return false
	case "darwin":
		if exists(filepath.Join(base, "Applications", config.MacOSApp)) {
			return true
		}
	}

	if r.Root != "" {
		for _, dir := range binDirs {
			for _, bin := range config.Binaries {
				if exists(filepath.Join(r.Root, dir, bin)) {
					return true
				}
			}
		}
		return false
	}

	if r.LookPath == nil {
		return false
	}
	for _, bin := range config.Binaries {
		if _, err := r.LookPath(bin); err == nil {
			return true
		}
	}
	return false
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

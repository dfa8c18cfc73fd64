package browsers

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/djherbis/times"
	"go.uber.org/zap"
)

const chromiumManifest = "manifest.json"

// revisionSuffix is the "_0" style suffix Chromium appends to unpacked version directories
var revisionSuffix = regexp.MustCompile(`_\d+$`)

// ChromiumLoader handles Chromium-based browser extensions (Chrome, Edge)
type ChromiumLoader struct {
	family Family
	paths  *PathResolver
	logger *zap.Logger
}

// NewChromium creates a loader for a Chromium-derived browser
func NewChromium(family Family, paths *PathResolver, logger *zap.Logger) *ChromiumLoader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChromiumLoader{
		family: family,
		paths:  paths,
		logger: logger.With(zap.String("browser", string(family))),
	}
}

// Family returns the browser this loader reads
func (l *ChromiumLoader) Family() Family { return l.family }

// Installed reports whether the browser's executable is present
func (l *ChromiumLoader) Installed() bool { return l.paths.IsBrowserInstalled(l.family) }

// Profiles returns the profile directory names listed in Local State, sorted
func (l *ChromiumLoader) Profiles(username string) ([]string, error) {
	userData, err := l.paths.ProfileRoot(username, l.family)
	if err != nil {
		return nil, err
	}

	localStatePath := filepath.Join(userData, "Local State")
	data, err := os.ReadFile(localStatePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: Local State not found at %s", ErrMissingArtifact, localStatePath)
		}
		return nil, fmt.Errorf("%w: failed to read %s: %v", ErrMalformedArtifact, localStatePath, err)
	}

	var localState struct {
		Profile struct {
			InfoCache map[string]json.RawMessage `json:"info_cache"`
		} `json:"profile"`
	}
	if err := json.Unmarshal(data, &localState); err != nil {
		return nil, fmt.Errorf("%w: failed to parse %s: %v", ErrMalformedArtifact, localStatePath, err)
	}
	if localState.Profile.InfoCache == nil {
		return nil, fmt.Errorf("%w: no profile.info_cache in %s", ErrMalformedArtifact, localStatePath)
	}

	profiles := make([]string, 0, len(localState.Profile.InfoCache))
	for dir := range localState.Profile.InfoCache {
		profiles = append(profiles, dir)
	}
	sort.Strings(profiles)
	return profiles, nil
}

// Extensions loads every unpacked extension of every profile listed for the user
func (l *ChromiumLoader) Extensions(username string) Result {
	var result Result

	profiles, err := l.Profiles(username)
	if err != nil {
		result.fail(Failure{Browser: l.family, Username: username, Err: err})
		return result
	}
	userData, err := l.paths.ProfileRoot(username, l.family)
	if err != nil {
		result.fail(Failure{Browser: l.family, Username: username, Err: err})
		return result
	}

	for _, profile := range profiles {
		profileDir := filepath.Join(userData, profile)
		extensionsPath := filepath.Join(profileDir, "Extensions")

		folders, err := extensionFolders(extensionsPath)
		if err != nil {
			if errors.Is(err, ErrMissingArtifact) {
				l.logger.Debug("no installed extensions for profile",
					zap.String("user", username),
					zap.String("profile", profile))
				continue
			}
			result.fail(Failure{Browser: l.family, Username: username, Profile: profile, Path: extensionsPath, Err: err})
			continue
		}

		connections := ExtractConnections(profileDir)
		for _, folder := range folders {
			ext, err := l.loadExtension(username, profile, filepath.Join(extensionsPath, folder), connections)
			if err != nil {
				result.fail(Failure{
					Browser:  l.family,
					Username: username,
					Profile:  profile,
					Path:     filepath.Join(extensionsPath, folder),
					Err:      err,
				})
				continue
			}
			result.Extensions = append(result.Extensions, ext)
		}
	}

	return result
}

// extensionFolders lists extension directories, skipping Chromium's Temp staging area
func extensionFolders(extensionsPath string) ([]string, error) {
	entries, err := os.ReadDir(extensionsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrMissingArtifact, extensionsPath)
		}
		return nil, fmt.Errorf("%w: failed to read extensions directory %s: %v", ErrMalformedArtifact, extensionsPath, err)
	}

	var folders []string
	for _, entry := range entries {
		if !entry.IsDir() || entry.Name() == "Temp" {
			continue
		}
		folders = append(folders, entry.Name())
	}
	sort.Strings(folders)
	return folders, nil
}

// versionDir picks the lexicographically first version-numbered subdirectory.
// A profile mid-update can hold two versions; the earliest name wins.
func versionDir(extensionDir string) (string, error) {
	entries, err := os.ReadDir(extensionDir)
	if err != nil {
		return "", fmt.Errorf("%w: failed to read version directory: %v", ErrMalformedArtifact, err)
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() && name != "" && name[0] >= '0' && name[0] <= '9' {
			return name, nil
		}
	}
	return "", fmt.Errorf("%w: no version directory in %s", ErrMissingArtifact, extensionDir)
}

// NormalizeVersion strips the packaging revision suffix from a version directory name
func NormalizeVersion(dirName string) string {
	return revisionSuffix.ReplaceAllString(dirName, "")
}

type chromiumManifestData struct {
	Name                    string          `json:"name"`
	Description             string          `json:"description"`
	Author                  json.RawMessage `json:"author"`
	HomepageURL             string          `json:"homepage_url"`
	App                     json.RawMessage `json:"app"`
	Permissions             json.RawMessage `json:"permissions"`
	HostPermissions         json.RawMessage `json:"hostPermissions"`
	HostPermissionsSnake    json.RawMessage `json:"host_permissions"`
	OptionalPermissions     json.RawMessage `json:"optional_permissions"`
	OptionalHostPermissions json.RawMessage `json:"optional_host_permissions"`
}

func (l *ChromiumLoader) loadExtension(username, profile, extensionDir string, connections []Connection) (Extension, error) {
	extensionID := filepath.Base(extensionDir)

	info, err := os.Stat(extensionDir)
	if err != nil {
		return Extension{}, fmt.Errorf("%w: %v", ErrMissingArtifact, err)
	}
	version, err := versionDir(extensionDir)
	if err != nil {
		return Extension{}, err
	}

	versionPath := filepath.Join(extensionDir, version)
	manifestPath := filepath.Join(versionPath, chromiumManifest)
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		if os.IsNotExist(err) {
			return Extension{}, fmt.Errorf("%w: %s", ErrMissingArtifact, manifestPath)
		}
		return Extension{}, fmt.Errorf("%w: failed to read manifest %s: %v", ErrMalformedArtifact, manifestPath, err)
	}
	var manifest chromiumManifestData
	if err := json.Unmarshal(data, &manifest); err != nil {
		return Extension{}, fmt.Errorf("%w: failed to parse manifest %s: %v", ErrMalformedArtifact, manifestPath, err)
	}

	name, description := manifest.Name, manifest.Description
	kind := KindExtension
	if shapeOf(manifest.App) == "object" {
		kind = KindApp
	}

	if isPlaceholder(name) {
		kind = KindApp
		catalog, err := LoadCatalog(versionPath)
		switch {
		case err == nil:
			if name, err = ResolveMessage(name, catalog); err != nil {
				return Extension{}, fmt.Errorf("name: %w", err)
			}
			if description, err = ResolveMessage(description, catalog); err != nil {
				return Extension{}, fmt.Errorf("description: %w", err)
			}
		case errors.Is(err, ErrMissingArtifact):
			l.logger.Debug("no English locale catalog, keeping placeholder",
				zap.String("extension", extensionID),
				zap.String("name", name))
		default:
			return Extension{}, err
		}
	}

	perms, err := stringList(manifest.Permissions)
	if err != nil {
		return Extension{}, fmt.Errorf("permissions: %w", err)
	}
	hostRaw := manifest.HostPermissions
	if len(hostRaw) == 0 {
		hostRaw = manifest.HostPermissionsSnake
	}
	hosts, err := stringList(hostRaw)
	if err != nil {
		return Extension{}, fmt.Errorf("host permissions: %w", err)
	}
	optional, err := stringList(manifest.OptionalPermissions)
	if err != nil {
		return Extension{}, fmt.Errorf("optional permissions: %w", err)
	}
	optionalHosts, err := stringList(manifest.OptionalHostPermissions)
	if err != nil {
		return Extension{}, fmt.Errorf("optional host permissions: %w", err)
	}
	userPerms := &PermissionSet{Permissions: perms, Origins: hosts}

	installed, updated := folderTimes(info)

	return Extension{
		Username:            username,
		Browser:             l.family,
		Profile:             profile,
		ID:                  extensionID,
		Risk:                ClassifyPermissions(userPerms),
		Name:                name,
		Version:             NormalizeVersion(version),
		Kind:                kind,
		Description:         description,
		Creator:             authorOf(manifest.Author),
		HomepageURL:         manifest.HomepageURL,
		Active:              true,
		InstallDate:         installed,
		UpdateDate:          updated,
		Path:                extensionDir,
		UserPermissions:     userPerms,
		OptionalPermissions: &PermissionSet{Permissions: optional, Origins: optionalHosts},
		Connections:         connectionsFor(connections, extensionID),
	}, nil
}

// folderTimes uses the birth time as install date where the filesystem records it,
// the inode change time otherwise, and the modification time as update date
func folderTimes(info os.FileInfo) (time.Time, time.Time) {
	if info.Sys() == nil {
		return info.ModTime(), info.ModTime()
	}
	ts := times.Get(info)
	switch {
	case ts.HasBirthTime():
		return ts.BirthTime(), ts.ModTime()
	case ts.HasChangeTime():
		return ts.ChangeTime(), ts.ModTime()
	}
	return ts.ModTime(), ts.ModTime()
}

// authorOf accepts both "author": "name" and "author": {"email": "..."}
func authorOf(raw json.RawMessage) string {
	switch shapeOf(raw) {
	case "string":
		var s string
		_ = json.Unmarshal(raw, &s)
		return s
	case "object":
		var a struct {
			Name  string `json:"name"`
			Email string `json:"email"`
		}
		_ = json.Unmarshal(raw, &a)
		if a.Name != "" {
			return a.Name
		}
		return a.Email
	}
	return ""
}

package browsers

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"
)

const firefoxManifest = "extensions.json"

// FirefoxLoader reads extensions.json from every Firefox profile of a user
type FirefoxLoader struct {
	paths  *PathResolver
	logger *zap.Logger
}

// NewFirefox creates a Firefox loader
func NewFirefox(paths *PathResolver, logger *zap.Logger) *FirefoxLoader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FirefoxLoader{paths: paths, logger: logger.With(zap.String("browser", string(Firefox)))}
}

// Family returns Firefox
func (l *FirefoxLoader) Family() Family { return Firefox }

// Installed reports whether a Firefox binary is present
func (l *FirefoxLoader) Installed() bool { return l.paths.IsBrowserInstalled(Firefox) }

// Profiles returns the extensions.json files of the user's profiles, sorted by path
func (l *FirefoxLoader) Profiles(username string) ([]string, error) {
	basePath, err := l.paths.ProfileRoot(username, Firefox)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(basePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: profiles directory not found at %s", ErrMissingArtifact, basePath)
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedArtifact, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrMalformedArtifact, basePath)
	}

	matches, err := doublestar.Glob(os.DirFS(basePath), "*/"+firefoxManifest)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list profiles in %s: %v", ErrMalformedArtifact, basePath, err)
	}

	var files []string
	for _, match := range matches {
		path := filepath.Join(basePath, filepath.FromSlash(match))
		if fi, err := os.Stat(path); err != nil || fi.IsDir() {
			continue
		}
		files = append(files, path)
	}
	sort.Strings(files)
	return files, nil
}

// Extensions maps every addon of every profile to a record. A profile whose
// extensions.json cannot be read or parsed is reported and skipped, as is a
// single addon that cannot be mapped.
func (l *FirefoxLoader) Extensions(username string) Result {
	var result Result

	files, err := l.Profiles(username)
	if err != nil {
		result.fail(Failure{Browser: Firefox, Username: username, Err: err})
		return result
	}

	for _, file := range files {
		profile := filepath.Base(filepath.Dir(file))
		exts, err := l.readProfile(username, profile, file, &result)
		if err != nil {
			result.fail(Failure{Browser: Firefox, Username: username, Profile: profile, Path: file, Err: err})
			continue
		}
		l.logger.Debug("loaded profile",
			zap.String("user", username),
			zap.String("profile", profile),
			zap.Int("extensions", len(exts)))
		result.Extensions = append(result.Extensions, exts...)
	}

	if len(result.Extensions) == 0 {
		l.logger.Debug("no extensions found across profiles", zap.String("user", username))
	}
	return result
}

type firefoxAddon struct {
	ID                  string          `json:"id"`
	Version             string          `json:"version"`
	Type                string          `json:"type"`
	Active              bool            `json:"active"`
	InstallDate         epochMillis     `json:"installDate"`
	UpdateDate          epochMillis     `json:"updateDate"`
	Path                string          `json:"path"`
	UserPermissions     json.RawMessage `json:"userPermissions"`
	OptionalPermissions json.RawMessage `json:"optionalPermissions"`
	DefaultLocale       struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Creator     string `json:"creator"`
		HomepageURL string `json:"homepageURL"`
	} `json:"defaultLocale"`
}

// readProfile maps the addons of one extensions.json. A file-level error is
// returned; a bad addon is recorded on result and its siblings still load.
func (l *FirefoxLoader) readProfile(username, profile, file string, result *Result) ([]Extension, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read %s: %v", ErrMalformedArtifact, file, err)
	}

	var extData struct {
		Addons []json.RawMessage `json:"addons"`
	}
	if err := json.Unmarshal(data, &extData); err != nil {
		return nil, fmt.Errorf("%w: failed to parse %s: %v", ErrMalformedArtifact, file, err)
	}

	seen := make(map[string]bool, len(extData.Addons))
	extensions := make([]Extension, 0, len(extData.Addons))
	for i, raw := range extData.Addons {
		ext, err := mapAddon(username, profile, raw)
		if err != nil {
			result.fail(Failure{
				Browser:  Firefox,
				Username: username,
				Profile:  profile,
				Path:     file,
				Err:      fmt.Errorf("addon %d (%s): %w", i, addonID(raw), err),
			})
			continue
		}
		if seen[ext.ID] {
			l.logger.Debug("duplicate addon id", zap.String("profile", profile), zap.String("id", ext.ID))
			continue
		}
		seen[ext.ID] = true
		extensions = append(extensions, ext)
	}
	return extensions, nil
}

func mapAddon(username, profile string, raw json.RawMessage) (Extension, error) {
	var addon firefoxAddon
	if err := json.Unmarshal(raw, &addon); err != nil {
		return Extension{}, fmt.Errorf("%w: %v", ErrMalformedArtifact, err)
	}

	userPerms, err := parsePermissionBlock(addon.UserPermissions)
	if err != nil {
		return Extension{}, fmt.Errorf("userPermissions: %w", err)
	}
	optionalPerms, err := parsePermissionBlock(addon.OptionalPermissions)
	if err != nil {
		return Extension{}, fmt.Errorf("optionalPermissions: %w", err)
	}

	return Extension{
		Username:            username,
		Browser:             Firefox,
		Profile:             profile,
		ID:                  addon.ID,
		Risk:                ClassifyPermissions(userPerms),
		Name:                addon.DefaultLocale.Name,
		Version:             addon.Version,
		Kind:                Kind(addon.Type),
		Description:         addon.DefaultLocale.Description,
		Creator:             addon.DefaultLocale.Creator,
		HomepageURL:         addon.DefaultLocale.HomepageURL,
		Active:              addon.Active,
		InstallDate:         addon.InstallDate.Time(),
		UpdateDate:          addon.UpdateDate.Time(),
		Path:                addon.Path,
		UserPermissions:     userPerms,
		OptionalPermissions: optionalPerms,
		Connections:         []Connection{},
	}, nil
}

// addonID recovers the id of an addon entry that failed to map, for reporting
func addonID(raw json.RawMessage) string {
	var entry struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &entry); err != nil || entry.ID == "" {
		return "unknown id"
	}
	return entry.ID
}

// epochMillis accepts epoch milliseconds written either as a number or a string
type epochMillis int64

func (e *epochMillis) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "" || s == "null" {
		*e = 0
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid epoch milliseconds %q: %w", s, err)
	}
	*e = epochMillis(f)
	return nil
}

// Time converts epoch milliseconds to a time.Time
func (e epochMillis) Time() time.Time {
	return time.UnixMilli(int64(e))
}

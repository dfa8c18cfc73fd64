package browsers

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const (
	extCookies = "abcdefghijklmnopabcdefghijklmnop"
	extLocale  = "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	extMulti   = "cccccccccccccccccccccccccccccccc"
)

func chromeUserData(root, user string) string {
	return filepath.Join(root, "home", user, ".config", "google-chrome")
}

func localState(profiles ...string) string {
	cache := ""
	for i, p := range profiles {
		if i > 0 {
			cache += ","
		}
		cache += fmt.Sprintf(`%q: {"name": "Person %d"}`, p, i+1)
	}
	return `{"profile": {"info_cache": {` + cache + `}}}`
}

func TestChromiumEndToEndSingleExtension(t *testing.T) {
	r, root := linuxResolver(t)
	userData := chromeUserData(root, "alice")
	writeFile(t, filepath.Join(userData, "Local State"), localState("Default"))
	ext := filepath.Join(userData, "Default", "Extensions")
	writeFile(t, filepath.Join(ext, extCookies, "1.2.3_0", "manifest.json"),
		`{"name": "Cookie Helper", "version": "1.2.3", "description": "Edits cookies", "author": "ACME", "permissions": ["cookies"]}`)
	writeFile(t, filepath.Join(ext, "Temp", "scratch", "manifest.json"), `{"name": "staging"}`)

	result := NewChromium(Chrome, r, zaptest.NewLogger(t)).Extensions("alice")

	require.Empty(t, result.Failures)
	require.Len(t, result.Extensions, 1)
	got := result.Extensions[0]
	assert.Equal(t, extCookies, got.ID)
	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, Chrome, got.Browser)
	assert.Equal(t, "Default", got.Profile)
	assert.Equal(t, Flagged, got.Risk)
	assert.Equal(t, KindExtension, got.Kind)
	assert.Equal(t, "Cookie Helper", got.Name)
	assert.Equal(t, "Edits cookies", got.Description)
	assert.Equal(t, "ACME", got.Creator)
	assert.Equal(t, "1.2.3", got.Version)
	assert.True(t, got.Active)
	assert.Equal(t, filepath.Join(ext, extCookies), got.Path)
	assert.Equal(t, []string{"cookies"}, got.UserPermissions.Permissions)
	assert.Nil(t, got.UserPermissions.Origins)
	require.NotNil(t, got.OptionalPermissions)
	assert.Nil(t, got.OptionalPermissions.Permissions)
	assert.NotNil(t, got.Connections)
	assert.Empty(t, got.Connections)
	assert.False(t, got.InstallDate.IsZero())
	assert.False(t, got.UpdateDate.IsZero())
}

func TestChromiumFolderOrderAndLocales(t *testing.T) {
	r, root := linuxResolver(t)
	userData := filepath.Join(root, "home", "bob", ".config", "microsoft-edge")
	writeFile(t, filepath.Join(userData, "Local State"), localState("Profile 1", "Default"))

	def := filepath.Join(userData, "Default", "Extensions")
	writeFile(t, filepath.Join(def, extMulti, "2.0.0_0", "manifest.json"), `{"name": "Multi new"}`)
	writeFile(t, filepath.Join(def, extMulti, "10.0.0_1", "manifest.json"), `{"name": "Multi first"}`)
	writeFile(t, filepath.Join(def, extMulti, "metadata", "computed_hashes.json"), `{}`)
	writeFile(t, filepath.Join(def, extLocale, "137.0.1_0", "manifest.json"),
		`{"name": "__MSG_appName__", "description": "__MSG_appDesc__", "author": {"email": "dev@example.com"},
		  "host_permissions": ["https://*/*"], "optional_permissions": ["tabs"], "homepage_url": "https://example.com"}`)
	writeFile(t, filepath.Join(def, extLocale, "137.0.1_0", "_locales", "en", "messages.json"),
		`{"appname": {"message": "Localized"}, "appdesc": "desc_key", "desc_key": {"message": "Nested description"}}`)
	writeFile(t, filepath.Join(def, "loose-file.txt"), "not an extension")

	p1 := filepath.Join(userData, "Profile 1", "Extensions")
	writeFile(t, filepath.Join(p1, extCookies, "1.0_0", "manifest.json"), `{"name": "Plain", "permissions": ["storage"]}`)

	result := NewChromium(Edge, r, zaptest.NewLogger(t)).Extensions("bob")

	require.Empty(t, result.Failures)
	require.Len(t, result.Extensions, 3)

	localized := result.Extensions[0]
	assert.Equal(t, "Default", localized.Profile)
	assert.Equal(t, extLocale, localized.ID)
	assert.Equal(t, "Localized", localized.Name)
	assert.Equal(t, "Nested description", localized.Description)
	assert.Equal(t, KindApp, localized.Kind)
	assert.Equal(t, "137.0.1", localized.Version)
	assert.Equal(t, "dev@example.com", localized.Creator)
	assert.Equal(t, "https://example.com", localized.HomepageURL)
	assert.Equal(t, []string{"https://*/*"}, localized.UserPermissions.Origins)
	assert.Equal(t, []string{"tabs"}, localized.OptionalPermissions.Permissions)
	assert.Equal(t, Clear, localized.Risk, "origins and optional permissions do not flag")

	multi := result.Extensions[1]
	assert.Equal(t, extMulti, multi.ID)
	assert.Equal(t, "Multi first", multi.Name, "lexicographically first version directory wins")
	assert.Equal(t, "10.0.0", multi.Version)

	plain := result.Extensions[2]
	assert.Equal(t, "Profile 1", plain.Profile)
	assert.Equal(t, Edge, plain.Browser)
	assert.Equal(t, "Plain", plain.Name)
}

func TestChromiumPerExtensionFailures(t *testing.T) {
	r, root := linuxResolver(t)
	userData := chromeUserData(root, "alice")
	writeFile(t, filepath.Join(userData, "Local State"), localState("Default"))
	ext := filepath.Join(userData, "Default", "Extensions")
	writeFile(t, filepath.Join(ext, "aaaa", "1.0_0", "manifest.json"), `{"name": `)
	writeFile(t, filepath.Join(ext, "bbbb", "1.0_0", "manifest.json"), `{"name": "__MSG_x__"}`)
	writeFile(t, filepath.Join(ext, "bbbb", "1.0_0", "_locales", "en", "messages.json"), `{"x": 7}`)
	writeFile(t, filepath.Join(ext, "cccc", "1.0_0", "manifest.json"), `{"name": "ok", "permissions": {"tabs": true}}`)
	mkdir(t, filepath.Join(ext, "dddd"))
	writeFile(t, filepath.Join(ext, "eeee", "3.1_0", "manifest.json"), `{"name": "Survivor"}`)

	result := NewChromium(Chrome, r, zaptest.NewLogger(t)).Extensions("alice")

	require.Len(t, result.Extensions, 1)
	assert.Equal(t, "Survivor", result.Extensions[0].Name)

	require.Len(t, result.Failures, 4)
	assert.ErrorIs(t, result.Failures[0].Err, ErrMalformedArtifact)
	assert.ErrorIs(t, result.Failures[1].Err, ErrUnexpectedCatalogShape)
	assert.ErrorIs(t, result.Failures[2].Err, ErrPermissionType)
	assert.ErrorIs(t, result.Failures[3].Err, ErrMissingArtifact)
	for _, f := range result.Failures {
		assert.Equal(t, "Default", f.Profile)
	}
}

func TestChromiumPlaceholderWithoutCatalog(t *testing.T) {
	r, root := linuxResolver(t)
	userData := chromeUserData(root, "alice")
	writeFile(t, filepath.Join(userData, "Local State"), localState("Default"))
	writeFile(t, filepath.Join(userData, "Default", "Extensions", extLocale, "1.0_0", "manifest.json"),
		`{"name": "__MSG_appName__"}`)

	result := NewChromium(Chrome, r, zaptest.NewLogger(t)).Extensions("alice")

	require.Len(t, result.Extensions, 1)
	assert.Equal(t, "__MSG_appName__", result.Extensions[0].Name)
	assert.Equal(t, KindApp, result.Extensions[0].Kind)
}

func TestChromiumConnectionsAttachedByExtensionID(t *testing.T) {
	r, root := linuxResolver(t)
	userData := chromeUserData(root, "alice")
	writeFile(t, filepath.Join(userData, "Local State"), localState("Default"))
	ext := filepath.Join(userData, "Default", "Extensions")
	writeFile(t, filepath.Join(ext, extA, "1.0_0", "manifest.json"), `{"name": "Talks to the network"}`)
	writeFile(t, filepath.Join(ext, extCookies, "1.0_0", "manifest.json"), `{"name": "Quiet"}`)
	writeFile(t, filepath.Join(userData, "Default", "Network", "Network Persistent State"), networkStateFixture())

	result := NewChromium(Chrome, r, zaptest.NewLogger(t)).Extensions("alice")

	require.Len(t, result.Extensions, 2)
	assert.Equal(t, extA, result.Extensions[0].ID)
	assert.Len(t, result.Extensions[0].Connections, 2)
	assert.Empty(t, result.Extensions[1].Connections)
}

func TestChromiumUserLevelFailures(t *testing.T) {
	r, root := linuxResolver(t)
	l := NewChromium(Chrome, r, zaptest.NewLogger(t))

	result := l.Extensions("alice")
	require.Len(t, result.Failures, 1)
	assert.ErrorIs(t, result.Failures[0].Err, ErrMissingArtifact)

	writeFile(t, filepath.Join(chromeUserData(root, "alice"), "Local State"), `{"profile": `)
	result = l.Extensions("alice")
	require.Len(t, result.Failures, 1)
	assert.ErrorIs(t, result.Failures[0].Err, ErrMalformedArtifact)

	writeFile(t, filepath.Join(chromeUserData(root, "alice"), "Local State"), `{"browser": {}}`)
	result = l.Extensions("alice")
	require.Len(t, result.Failures, 1)
	assert.ErrorIs(t, result.Failures[0].Err, ErrMalformedArtifact)
}

func TestChromiumProfileWithoutExtensionsDir(t *testing.T) {
	r, root := linuxResolver(t)
	userData := chromeUserData(root, "alice")
	writeFile(t, filepath.Join(userData, "Local State"), localState("Default", "Guest Profile"))
	writeFile(t, filepath.Join(userData, "Default", "Extensions", extCookies, "1.0_0", "manifest.json"), `{"name": "x"}`)

	result := NewChromium(Chrome, r, zaptest.NewLogger(t)).Extensions("alice")

	assert.Empty(t, result.Failures)
	assert.Len(t, result.Extensions, 1)
}

func TestNormalizeVersion(t *testing.T) {
	assert.Equal(t, "137.0.1", NormalizeVersion("137.0.1_0"))
	assert.Equal(t, "4.2", NormalizeVersion("4.2_12"))
	assert.Equal(t, "1.10", NormalizeVersion("1.10"))
	assert.Equal(t, "1.0_0.5", NormalizeVersion("1.0_0.5"))
}

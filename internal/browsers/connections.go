package browsers

import (
	"encoding/base64"
	"encoding/json"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

const extensionScheme = "chrome-extension://"

// networkStatePaths are tried in order, relative to a Chromium profile directory
var networkStatePaths = [][]string{
	{"Network", "Network Persistent State"},
	{"Network Persistent State"},
}

type networkEntry struct {
	Server        string            `json:"server"`
	Host          string            `json:"host"`
	Anonymization []json.RawMessage `json:"anonymization"`
}

type networkState struct {
	Net struct {
		HTTPServerProperties struct {
			Servers []json.RawMessage `json:"servers"`
			Broken  []json.RawMessage `json:"broken_alternative_services"`
		} `json:"http_server_properties"`
	} `json:"net"`
}

// ExtractConnections reads the profile's persisted network state and returns the
// entries whose anonymization key points at an extension. A missing or unparsable
// file yields an empty slice: a fresh profile has no network history.
func ExtractConnections(profilePath string) []Connection {
	connections := []Connection{}

	var data []byte
	found := false
	for _, rel := range networkStatePaths {
		b, err := os.ReadFile(filepath.Join(profilePath, filepath.Join(rel...)))
		if err == nil {
			data, found = b, true
			break
		}
	}
	if !found {
		return connections
	}

	var state networkState
	if err := json.Unmarshal(data, &state); err != nil {
		return connections
	}

	props := state.Net.HTTPServerProperties
	for _, raw := range props.Servers {
		if c, ok := correlate(raw, true); ok {
			connections = append(connections, c)
		}
	}
	for _, raw := range props.Broken {
		if c, ok := correlate(raw, false); ok {
			connections = append(connections, c)
		}
	}
	return connections
}

func correlate(raw json.RawMessage, active bool) (Connection, bool) {
	var entry networkEntry
	if err := json.Unmarshal(raw, &entry); err != nil || len(entry.Anonymization) == 0 {
		return Connection{}, false
	}

	var token string
	if err := json.Unmarshal(entry.Anonymization[0], &token); err != nil {
		return Connection{}, false
	}
	decoded, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return Connection{}, false
	}
	text := string(decoded)
	idx := strings.Index(text, extensionScheme)
	if idx < 0 {
		return Connection{}, false
	}

	domain := entry.Host
	if active {
		domain = hostOnly(entry.Server)
	}
	if domain == "" {
		return Connection{}, false
	}
	return Connection{
		Domain:      domain,
		Active:      active,
		ExtensionID: extensionIDAt(text[idx+len(extensionScheme):]),
	}, true
}

// hostOnly strips the scheme and port from a "https://host:443" server key
func hostOnly(server string) string {
	if strings.Contains(server, "://") {
		if u, err := url.Parse(server); err == nil && u.Hostname() != "" {
			return u.Hostname()
		}
		server = server[strings.Index(server, "://")+3:]
	}
	if host, _, err := net.SplitHostPort(server); err == nil {
		return host
	}
	return strings.TrimSuffix(server, "/")
}

// extensionIDAt reads the extension id that follows the chrome-extension:// scheme
func extensionIDAt(s string) string {
	end := 0
	for end < len(s) {
		c := s[end]
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') {
			break
		}
		end++
	}
	return s[:end]
}

// connectionsFor selects the connections attributed to one extension
func connectionsFor(all []Connection, extensionID string) []Connection {
	matched := []Connection{}
	for _, c := range all {
		if c.ExtensionID != "" && c.ExtensionID == extensionID {
			matched = append(matched, c)
		}
	}
	return matched
}

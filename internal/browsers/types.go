package browsers

import (
	"strings"
	"time"
)

// Family identifies a supported browser family
type Family string

const (
	Firefox Family = "Firefox"
	Chrome  Family = "Chrome"
	Edge    Family = "Edge"
)

// Families lists the supported browsers in scan order
var Families = []Family{Firefox, Chrome, Edge}

// DisplayName returns the vendor name of the browser
func (f Family) DisplayName() string {
	switch f {
	case Firefox:
		return "Mozilla Firefox"
	case Chrome:
		return "Google Chrome"
	case Edge:
		return "Microsoft Edge"
	}
	return string(f)
}

// ParseFamily matches a browser name case-insensitively against the supported families
func ParseFamily(name string) (Family, bool) {
	for _, f := range Families {
		if strings.EqualFold(name, string(f)) || strings.EqualFold(name, f.DisplayName()) {
			return f, true
		}
	}
	return "", false
}

// Kind is the extension type as reported by the browser
type Kind string

const (
	KindExtension Kind = "extension"
	KindApp       Kind = "app"
)

// RiskFlag is an advisory classification of declared permissions
type RiskFlag string

const (
	Clear   RiskFlag = "clear"
	Flagged RiskFlag = "flagged"
)

// PermissionSet holds declared capability and origin permissions.
// A nil slice means the key was absent; an empty slice is an explicit empty grant.
type PermissionSet struct {
	Permissions []string `json:"permissions"`
	Origins     []string `json:"origins"`
}

// Connection is an outbound host seen in browser network state and tied to an extension
type Connection struct {
	Domain      string `json:"domain"`
	Active      bool   `json:"active"`
	ExtensionID string `json:"extensionId,omitempty"`
}

// Extension represents one installed extension for one user, browser and profile
type Extension struct {
	Username            string         `json:"username"`
	Browser             Family         `json:"browser"`
	Profile             string         `json:"profile"`
	ID                  string         `json:"id"`
	Risk                RiskFlag       `json:"risk"`
	Name                string         `json:"name"`
	Version             string         `json:"version"`
	Kind                Kind           `json:"kind"`
	Description         string         `json:"description"`
	Creator             string         `json:"creator"`
	HomepageURL         string         `json:"homepageUrl"`
	Active              bool           `json:"active"`
	InstallDate         time.Time      `json:"installDate"`
	UpdateDate          time.Time      `json:"updateDate"`
	Path                string         `json:"path"`
	UserPermissions     *PermissionSet `json:"userPermissions"`
	OptionalPermissions *PermissionSet `json:"optionalPermissions"`
	Connections         []Connection   `json:"connections"`
}

// Failure records one user, profile or extension that could not be loaded
type Failure struct {
	Browser  Family
	Username string
	Profile  string
	Path     string
	Err      error
}

func (f Failure) Error() string {
	var b strings.Builder
	b.WriteString(string(f.Browser))
	b.WriteString(" user ")
	b.WriteString(f.Username)
	if f.Profile != "" {
		b.WriteString(" profile ")
		b.WriteString(f.Profile)
	}
	if f.Path != "" {
		b.WriteString(" (")
		b.WriteString(f.Path)
		b.WriteString(")")
	}
	b.WriteString(": ")
	b.WriteString(f.Err.Error())
	return b.String()
}

func (f Failure) Unwrap() error { return f.Err }

// Result is what a loader returns for one user: the records it could build and what it had to skip
type Result struct {
	Extensions []Extension
	Failures   []Failure
}

func (r *Result) fail(f Failure) {
	r.Failures = append(r.Failures, f)
}

package browsers

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Browser is one browser family's view of a machine
type Browser interface {
	Family() Family
	Installed() bool
	Profiles(username string) ([]string, error)
	Extensions(username string) Result
}

// ScanContext is built once per scan and read-only afterwards
type ScanContext struct {
	OS        string
	Browsers  []Browser
	Usernames []string
}

// ContextOptions narrows what NewScanContext detects
type ContextOptions struct {
	// Usernames pins the accounts to scan; empty means every local account
	Usernames []string
	// Only restricts the browsers considered; empty means all families
	Only []Family
}

// NewScanContext detects installed browsers and local accounts once.
// An unsupported OS yields a context with no browsers rather than an error.
func NewScanContext(paths *PathResolver, opts ContextOptions, logger *zap.Logger) *ScanContext {
	if logger == nil {
		logger = zap.NewNop()
	}
	sc := &ScanContext{OS: paths.OS}

	if !paths.Supported() {
		logger.Warn("unsupported system detected", zap.String("os", paths.OS))
		return sc
	}

	for _, family := range Families {
		if !wanted(family, opts.Only) {
			continue
		}
		var b Browser
		if family == Firefox {
			b = NewFirefox(paths, logger)
		} else {
			b = NewChromium(family, paths, logger)
		}
		if b.Installed() {
			logger.Info("browser found", zap.String("browser", string(family)))
			sc.Browsers = append(sc.Browsers, b)
		} else {
			logger.Info("browser not found", zap.String("browser", string(family)))
		}
	}

	if len(opts.Usernames) > 0 {
		sc.Usernames = append([]string(nil), opts.Usernames...)
		sort.Strings(sc.Usernames)
		return sc
	}
	users, err := ListUsers(paths)
	if err != nil {
		logger.Warn("failed to enumerate users", zap.Error(err))
	}
	sc.Usernames = users
	return sc
}

func wanted(family Family, only []Family) bool {
	if len(only) == 0 {
		return true
	}
	for _, f := range only {
		if f == family {
			return true
		}
	}
	return false
}

// ignoredHomes are placeholder profiles that never belong to a real account
var ignoredHomes = map[string]bool{
	"public":       true,
	"default":      true,
	"default user": true,
	"all users":    true,
	"shared":       true,
	"guest":        true,
	"lost+found":   true,
}

// ListUsers enumerates local accounts from the home directories under the users root
func ListUsers(paths *PathResolver) ([]string, error) {
	root, err := paths.UsersRoot()
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to read users directory %s: %w", root, err)
	}

	var users []string
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() || strings.HasPrefix(name, ".") || ignoredHomes[strings.ToLower(name)] {
			continue
		}
		users = append(users, name)
	}
	if paths.OS == "linux" {
		if home, err := paths.HomeDir("root"); err == nil && exists(home) {
			users = append(users, "root")
		}
	}
	sort.Strings(users)
	return users, nil
}

// BrowserInventory holds the utility's main functionality
type BrowserInventory struct {
	ctx    *ScanContext
	logger *zap.Logger
}

// NewBrowserInventory creates a new inventory instance over a prepared scan context
func NewBrowserInventory(ctx *ScanContext, logger *zap.Logger) *BrowserInventory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BrowserInventory{ctx: ctx, logger: logger}
}

// Scan runs every installed browser's loader over every user. Records come out
// grouped Firefox, Chrome, Edge; failures are logged and skipped.
func (bi *BrowserInventory) Scan() []Extension {
	allExtensions := []Extension{}

	for _, family := range Families {
		for _, b := range bi.ctx.Browsers {
			if b.Family() != family {
				continue
			}
			for _, username := range bi.ctx.Usernames {
				result := b.Extensions(username)
				for _, f := range result.Failures {
					bi.logFailure(f)
				}
				allExtensions = append(allExtensions, result.Extensions...)
			}
		}
	}

	bi.logger.Info("scan complete",
		zap.Int("users", len(bi.ctx.Usernames)),
		zap.Int("browsers", len(bi.ctx.Browsers)),
		zap.Int("extensions", len(allExtensions)))
	return allExtensions
}

func (bi *BrowserInventory) logFailure(f Failure) {
	fields := []zap.Field{
		zap.String("browser", string(f.Browser)),
		zap.String("user", f.Username),
		zap.String("profile", f.Profile),
		zap.String("path", f.Path),
		zap.Error(f.Err),
	}
	if errors.Is(f.Err, ErrMissingArtifact) && f.Profile == "" {
		bi.logger.Debug("browser data not present for user", fields...)
		return
	}
	bi.logger.Warn("skipped", fields...)
}

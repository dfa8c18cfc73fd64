package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/lotekdan/go-browser-inventory/internal/browsers"
	"github.com/lotekdan/go-browser-inventory/internal/logging"
)

const (
	DefaultConfigPath = "browser-inventory.yml"
	EnvPrefix         = "BROWSER_INVENTORY"

	DefaultRiskURL = "https://api.crxcavator.io/v1/report"
)

// Config holds the merged settings for one scan run. Environment variables use
// the BROWSER_INVENTORY_ prefix, e.g. BROWSER_INVENTORY_LOG_LEVEL. Keys carry no
// envconfig tag so unprefixed names like OS are never consulted.
type Config struct {
	Browsers   []string `yaml:"browsers" split_words:"true"`
	Users      []string `yaml:"users" split_words:"true"`
	Root       string   `yaml:"root" split_words:"true"`
	OS         string   `yaml:"os" split_words:"true"`
	Format     string   `yaml:"format" split_words:"true"`
	Database   string   `yaml:"database" split_words:"true"`
	LogLevel   string   `yaml:"logLevel" split_words:"true"`
	LogFile    string   `yaml:"logFile" split_words:"true"`
	RiskReport bool     `yaml:"riskReport" split_words:"true"`
	RiskURL    string   `yaml:"riskURL" split_words:"true"`
}

// Overrides captures values coming from CLI flags. Zero values mean "not set".
type Overrides struct {
	Browsers   []string
	Users      []string
	Root       string
	OS         string
	Format     string
	Database   string
	LogLevel   string
	LogFile    string
	RiskReport *bool
	RiskURL    string
}

// Loader merges configuration coming from files, environment variables, and CLI flags.
type Loader struct {
	ConfigPath string
}

// Default returns the baseline configuration when nothing else is provided.
func Default() Config {
	return Config{
		Format:   "text",
		LogLevel: "info",
		RiskURL:  DefaultRiskURL,
	}
}

// Load resolves the final configuration: defaults, then file, then environment, then flags.
// A missing file is only an error when a non-default path was requested.
func (l Loader) Load(override Overrides) (Config, error) {
	cfg := Default()

	path := l.ConfigPath
	if path == "" {
		path = DefaultConfigPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case os.IsNotExist(err) && path == DefaultConfigPath:
	default:
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to load environment: %w", err)
	}

	cfg.apply(override)
	cfg.Browsers = cleanList(cfg.Browsers)
	cfg.Users = cleanList(cfg.Users)

	return cfg, nil
}

func (c *Config) apply(src Overrides) {
	if len(src.Browsers) > 0 {
		c.Browsers = src.Browsers
	}
	if len(src.Users) > 0 {
		c.Users = src.Users
	}
	if src.Root != "" {
		c.Root = src.Root
	}
	if src.OS != "" {
		c.OS = src.OS
	}
	if src.Format != "" {
		c.Format = src.Format
	}
	if src.Database != "" {
		c.Database = src.Database
	}
	if src.LogLevel != "" {
		c.LogLevel = src.LogLevel
	}
	if src.LogFile != "" {
		c.LogFile = src.LogFile
	}
	if src.RiskReport != nil {
		c.RiskReport = *src.RiskReport
	}
	if src.RiskURL != "" {
		c.RiskURL = src.RiskURL
	}
}

// Validate rejects values the scanner cannot act on.
func (c Config) Validate() error {
	if _, err := c.Families(); err != nil {
		return err
	}
	switch c.OS {
	case "", "windows", "darwin", "linux":
	default:
		return fmt.Errorf("unsupported os %q (valid: windows, darwin, linux)", c.OS)
	}
	switch strings.ToLower(c.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("unsupported format %q (valid: text, json)", c.Format)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	if c.RiskReport && c.RiskURL == "" {
		return errors.New("risk report enabled without a risk URL")
	}
	return nil
}

// Families converts the configured browser names; empty means every browser.
func (c Config) Families() ([]browsers.Family, error) {
	var out []browsers.Family
	for _, name := range c.Browsers {
		f, ok := browsers.ParseFamily(name)
		if !ok {
			return nil, fmt.Errorf("invalid browser %q (valid: chrome, edge, firefox)", name)
		}
		out = append(out, f)
	}
	return out, nil
}

// TargetOS is the OS layout to scan, defaulting to the running system.
func (c Config) TargetOS() string {
	if c.OS != "" {
		return c.OS
	}
	return runtime.GOOS
}

func cleanList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// pkg/config/config.go - settings for the app store and its package managers.

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/windowsadmins/appstore/pkg/logging"
)

// Placeholders substituted into command templates.
const (
	QueryPlaceholder     = "{query}"
	PackageIDPlaceholder = "{package_id}"
)

// SettingsFileName is the default settings file name.
const SettingsFileName = "settings.yaml"

// SettingsEnvVar overrides the settings file location.
const SettingsEnvVar = "APPSTORE_SETTINGS"

// ManagerConfig describes how to drive one package manager.
type ManagerConfig struct {
	SearchCommand    string `yaml:"search_command,omitempty" json:"search_command,omitempty"`
	ListCommand      string `yaml:"list_command,omitempty" json:"list_command,omitempty"`
	ShowCommand      string `yaml:"show_command,omitempty" json:"show_command,omitempty"`
	InstallCommand   string `yaml:"install_command,omitempty" json:"install_command,omitempty"`
	UpdateCommand    string `yaml:"update_command,omitempty" json:"update_command,omitempty"`
	UninstallCommand string `yaml:"uninstall_command,omitempty" json:"uninstall_command,omitempty"`
	SearchParser     string `yaml:"search_parser,omitempty" json:"search_parser,omitempty"`
	ListParser       string `yaml:"list_parser,omitempty" json:"list_parser,omitempty"`
	ShowParser       string `yaml:"show_parser,omitempty" json:"show_parser,omitempty"`

	// Parser is the single-parser key written by early settings files.
	Parser string `yaml:"parser,omitempty" json:"parser,omitempty"`
}

// Command returns the template configured for action ("search", "list",
// "show", "install", "update", "uninstall").
func (m ManagerConfig) Command(action string) string {
	switch action {
	case "search":
		return m.SearchCommand
	case "list":
		return m.ListCommand
	case "show":
		return m.ShowCommand
	case "install":
		return m.InstallCommand
	case "update":
		return m.UpdateCommand
	case "uninstall":
		return m.UninstallCommand
	}
	return ""
}

// SearchParserName falls back to the legacy single parser key.
func (m ManagerConfig) SearchParserName() string {
	if m.SearchParser != "" {
		return m.SearchParser
	}
	return m.Parser
}

func (m ManagerConfig) isEmpty() bool {
	return m.SearchCommand == "" && m.ListCommand == "" && m.InstallCommand == "" &&
		m.UpdateCommand == "" && m.UninstallCommand == "" && m.ShowCommand == ""
}

// Configuration holds the app store settings.
type Configuration struct {
	Managers              Managers `yaml:"managers"`
	CachePath             string   `yaml:"cache_path,omitempty"`
	ImageCachePath        string   `yaml:"image_cache_path,omitempty"`
	LogPath               string   `yaml:"log_path,omitempty"`
	LogLevel              string   `yaml:"log_level,omitempty"`
	LogoWorkers           int      `yaml:"logo_workers,omitempty"`
	VerifyWorkers         int      `yaml:"verify_workers,omitempty"`
	CommandTimeoutMinutes int      `yaml:"command_timeout_minutes,omitempty"`
	ImageSearchURL        string   `yaml:"image_search_url,omitempty"`
	FetchLogos            bool     `yaml:"fetch_logos"`

	// Path the configuration was loaded from; not persisted.
	Path string `yaml:"-"`
}

// DefaultManagers returns the built-in winget, chocolatey and scoop entries.
func DefaultManagers() Managers {
	var m Managers
	m.Set("winget", ManagerConfig{
		SearchCommand:    `winget search --query "{query}" --accept-source-agreements --disable-interactivity`,
		ListCommand:      `winget list --accept-source-agreements --disable-interactivity`,
		ShowCommand:      `winget show --id "{package_id}" --exact --accept-source-agreements --disable-interactivity`,
		InstallCommand:   `winget install --id "{package_id}" --exact --accept-source-agreements --accept-package-agreements --disable-interactivity`,
		UpdateCommand:    `winget upgrade --id "{package_id}" --exact --accept-source-agreements --accept-package-agreements --disable-interactivity`,
		UninstallCommand: `winget uninstall --id "{package_id}" --exact --accept-source-agreements --disable-interactivity`,
		SearchParser:     "winget_search",
		ListParser:       "winget_list",
		ShowParser:       "winget_show",
	})
	m.Set("chocolatey", ManagerConfig{
		SearchCommand:    `choco search {query} --limit-output --exact`,
		ListCommand:      `choco list --limit-output`,
		InstallCommand:   `choco install {package_id} -y`,
		UpdateCommand:    `choco upgrade {package_id} -y`,
		UninstallCommand: `choco uninstall {package_id} -y`,
		SearchParser:     "choco_search",
		ListParser:       "choco_list",
	})
	m.Set("scoop", ManagerConfig{
		SearchCommand:    `scoop search {query}`,
		ListCommand:      `scoop list`,
		InstallCommand:   `scoop install {package_id}`,
		UpdateCommand:    `scoop update {package_id}`,
		UninstallCommand: `scoop uninstall {package_id}`,
		SearchParser:     "scoop_search",
		ListParser:       "scoop_list",
	})
	return m
}

// baseDir is where settings, cache and logs live by default.
func baseDir() string {
	if dir, err := os.UserConfigDir(); err == nil && dir != "" {
		return filepath.Join(dir, "AppStore")
	}
	return "."
}

// DefaultSettingsPath returns the settings file location, honoring
// APPSTORE_SETTINGS and, on Windows, the registry.
func DefaultSettingsPath() string {
	if p := os.Getenv(SettingsEnvVar); p != "" {
		return p
	}
	if p := registrySettingsPath(); p != "" {
		return p
	}
	return filepath.Join(baseDir(), SettingsFileName)
}

// GetDefaultConfig provides default configuration values.
func GetDefaultConfig() *Configuration {
	cfg := &Configuration{
		Managers:   DefaultManagers(),
		FetchLogos: true,
	}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills unset options.
func (c *Configuration) ApplyDefaults() {
	if c.CachePath == "" {
		if dir, err := os.UserCacheDir(); err == nil && dir != "" {
			c.CachePath = filepath.Join(dir, "AppStore")
		} else {
			c.CachePath = filepath.Join(baseDir(), "cache")
		}
	}
	if c.ImageCachePath == "" {
		c.ImageCachePath = filepath.Join(c.CachePath, "images")
	}
	if c.LogPath == "" {
		c.LogPath = filepath.Join(c.CachePath, "logs")
	}
	if c.LogLevel == "" {
		c.LogLevel = "INFO"
	}
	if c.LogoWorkers <= 0 {
		c.LogoWorkers = 10
	}
	if c.VerifyWorkers <= 0 {
		c.VerifyWorkers = 8
	}
	if c.CommandTimeoutMinutes <= 0 {
		c.CommandTimeoutMinutes = 15
	}
	if c.ImageSearchURL == "" {
		c.ImageSearchURL = "https://duckduckgo.com"
	}
	if c.Managers.Len() == 0 {
		c.Managers = DefaultManagers()
	}
}

// setCachePath moves CachePath to dir. Image and log directories that were
// derived from the old cache path follow it; explicitly set ones stay.
func (c *Configuration) setCachePath(dir string) {
	if dir == "" || dir == c.CachePath {
		return
	}
	old := c.CachePath
	c.CachePath = dir
	if c.ImageCachePath == "" || c.ImageCachePath == filepath.Join(old, "images") {
		c.ImageCachePath = filepath.Join(dir, "images")
	}
	if c.LogPath == "" || c.LogPath == filepath.Join(old, "logs") {
		c.LogPath = filepath.Join(dir, "logs")
	}
}

// LoadConfig reads the settings file at path. A missing or unreadable file
// yields the built-in defaults, as does a file that fails to parse.
// Settings files written as JSON load too, since JSON is valid YAML.
func LoadConfig(path string) (*Configuration, error) {
	if path == "" {
		path = DefaultSettingsPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logging.Warn("Failed to read settings file, using defaults", "path", path, "error", err)
		} else {
			logging.Debug("Settings file does not exist, using defaults", "path", path)
		}
		cfg := GetDefaultConfig()
		applyRegistryOverrides(cfg)
		cfg.Path = path
		return cfg, nil
	}

	cfg, err := Parse(data)
	if err != nil {
		logging.Warn("Failed to parse settings file, using defaults", "path", path, "error", err)
		cfg = GetDefaultConfig()
	}
	applyRegistryOverrides(cfg)
	cfg.Path = path
	return cfg, nil
}

// Parse decodes settings. Both the current layout (options plus a
// "managers" mapping) and the flat manager-name mapping of older settings
// files are accepted.
func Parse(data []byte) (*Configuration, error) {
	cfg := &Configuration{FetchLogos: true}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("decoding settings: %w", err)
	}

	if cfg.Managers.Len() == 0 {
		var legacy Managers
		if err := yaml.Unmarshal(data, &legacy); err == nil {
			for _, name := range legacy.Names() {
				if mc, _ := legacy.Get(name); !mc.isEmpty() {
					cfg.Managers.Set(name, mc)
				}
			}
		}
	}

	cfg.ApplyDefaults()
	return cfg, nil
}

// SaveConfig writes the configuration as YAML to path, or to cfg.Path when
// path is empty.
func SaveConfig(cfg *Configuration, path string) error {
	if path == "" {
		path = cfg.Path
	}
	if path == "" {
		path = DefaultSettingsPath()
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to serialize configuration: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create configuration directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}
	logging.Debug("Saved settings", "path", path)
	return nil
}

// AddManager registers a user-defined package manager. Search and install
// commands are required and must reference {query} and {package_id}.
func (c *Configuration) AddManager(name string, mc ManagerConfig) error {
	name = strings.ToLower(strings.TrimSpace(name))
	mc.SearchCommand = strings.TrimSpace(mc.SearchCommand)
	mc.InstallCommand = strings.TrimSpace(mc.InstallCommand)

	if name == "" || mc.SearchCommand == "" || mc.InstallCommand == "" {
		return errors.New("manager name, search command and install command are required")
	}
	if !strings.Contains(mc.SearchCommand, QueryPlaceholder) {
		return fmt.Errorf("search command must contain %q", QueryPlaceholder)
	}
	if !strings.Contains(mc.InstallCommand, PackageIDPlaceholder) {
		return fmt.Errorf("install command must contain %q", PackageIDPlaceholder)
	}
	for _, cmd := range []string{mc.UpdateCommand, mc.UninstallCommand, mc.ShowCommand} {
		if cmd != "" && !strings.Contains(cmd, PackageIDPlaceholder) {
			return fmt.Errorf("command %q must contain %q", cmd, PackageIDPlaceholder)
		}
	}
	if mc.SearchParser == "" && mc.Parser == "" {
		mc.SearchParser = "generic"
	}
	if mc.ListCommand != "" && mc.ListParser == "" {
		mc.ListParser = "generic"
	}

	c.Managers.Set(name, mc)
	return nil
}

//go:build windows

package config

import (
	"strconv"

	"golang.org/x/sys/windows/registry"

	"github.com/windowsadmins/appstore/pkg/logging"
)

// PolicyRegistryPath holds machine-wide overrides pushed by management tooling.
const PolicyRegistryPath = `SOFTWARE\AppStore\Config`

func openPolicyKey() (registry.Key, bool) {
	key, err := registry.OpenKey(registry.LOCAL_MACHINE, PolicyRegistryPath, registry.READ)
	if err != nil {
		return 0, false
	}
	return key, true
}

// registrySettingsPath returns the SettingsPath policy value, if any.
func registrySettingsPath() string {
	key, ok := openPolicyKey()
	if !ok {
		return ""
	}
	defer key.Close()
	val, _, err := key.GetStringValue("SettingsPath")
	if err != nil {
		return ""
	}
	return val
}

// applyRegistryOverrides lets policy values win over the settings file.
func applyRegistryOverrides(cfg *Configuration) {
	key, ok := openPolicyKey()
	if !ok {
		return
	}
	defer key.Close()

	loadStringFromRegistry(key, "LogLevel", &cfg.LogLevel)
	var cachePath string
	loadStringFromRegistry(key, "CachePath", &cachePath)
	cfg.setCachePath(cachePath)
	loadStringFromRegistry(key, "ImageCachePath", &cfg.ImageCachePath)
	loadStringFromRegistry(key, "ImageSearchURL", &cfg.ImageSearchURL)
	loadIntFromRegistry(key, "CommandTimeoutMinutes", &cfg.CommandTimeoutMinutes)
	loadBoolFromRegistry(key, "FetchLogos", &cfg.FetchLogos)
}

func loadStringFromRegistry(key registry.Key, valueName string, target *string) {
	if val, _, err := key.GetStringValue(valueName); err == nil && val != "" {
		*target = val
		logging.Debug("Policy override", "name", valueName, "value", val)
	}
}

// loadBoolFromRegistry accepts "true"/"false", "1"/"0" strings or a DWORD.
func loadBoolFromRegistry(key registry.Key, valueName string, target *bool) {
	if val, _, err := key.GetStringValue(valueName); err == nil {
		if parsed, parseErr := strconv.ParseBool(val); parseErr == nil {
			*target = parsed
			logging.Debug("Policy override", "name", valueName, "value", parsed)
			return
		}
	}
	if val, _, err := key.GetIntegerValue(valueName); err == nil {
		*target = val != 0
		logging.Debug("Policy override", "name", valueName, "value", val != 0)
	}
}

func loadIntFromRegistry(key registry.Key, valueName string, target *int) {
	if val, _, err := key.GetStringValue(valueName); err == nil {
		if parsed, parseErr := strconv.Atoi(val); parseErr == nil && parsed > 0 {
			*target = parsed
			return
		}
	}
	if val, _, err := key.GetIntegerValue(valueName); err == nil && val > 0 {
		*target = int(val)
	}
}

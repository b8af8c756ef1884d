//go:build !windows

package config

func registrySettingsPath() string { return "" }

func applyRegistryOverrides(*Configuration) {}

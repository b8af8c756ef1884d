//go:build windows

package sysinfo

import (
	"runtime"

	"github.com/windowsadmins/appstore/pkg/logging"
	"github.com/yusufpapurcu/wmi"
)

// Win32_OperatingSystem is the subset of the WMI class we read.
type Win32_OperatingSystem struct {
	Caption     string
	Version     string
	BuildNumber string
}

func osVersion() (string, string) {
	var systems []Win32_OperatingSystem
	err := wmi.Query("SELECT Caption, Version, BuildNumber FROM Win32_OperatingSystem", &systems)
	if err != nil {
		logging.Warn("Failed to query operating system information", "error", err)
		return runtime.GOOS, ""
	}
	if len(systems) == 0 {
		return runtime.GOOS, ""
	}
	return systems[0].Caption, systems[0].Version
}

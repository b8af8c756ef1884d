//go:build !windows

package sysinfo

import "runtime"

func osVersion() (string, string) {
	return runtime.GOOS, ""
}

// pkg/sysinfo/sysinfo.go - host facts shown by "appstore doctor".

package sysinfo

import (
	"os"
	"os/exec"
	"runtime"

	"github.com/windowsadmins/appstore/pkg/command"
	"github.com/windowsadmins/appstore/pkg/config"
	"github.com/windowsadmins/appstore/pkg/logging"
)

// Info describes the host and the package managers available on it.
type Info struct {
	Hostname  string            `yaml:"hostname"`
	OS        string            `yaml:"os"`
	OSVersion string            `yaml:"os_version"`
	Arch      string            `yaml:"arch"`
	Managers  []ManagerPresence `yaml:"managers"`
}

// ManagerPresence reports whether a manager's executable resolves on PATH.
type ManagerPresence struct {
	Name       string `yaml:"name"`
	Executable string `yaml:"executable"`
	Path       string `yaml:"path,omitempty"`
	Found      bool   `yaml:"found"`
}

var lookPath = exec.LookPath

// Collect gathers host facts and checks each configured manager. The
// executable is the first word of its search command, or its list command.
func Collect(cfg *config.Configuration) Info {
	info := Info{Arch: runtime.GOARCH}
	info.Hostname, _ = os.Hostname()
	info.OS, info.OSVersion = osVersion()

	for _, name := range cfg.Managers.Names() {
		mc, _ := cfg.Managers.Get(name)
		exe := Executable(mc)
		if exe == "" {
			continue
		}
		p := ManagerPresence{Name: name, Executable: exe}
		if path, err := lookPath(exe); err == nil {
			p.Path, p.Found = path, true
		} else {
			logging.Debug("Package manager not on PATH", "manager", name, "executable", exe)
		}
		info.Managers = append(info.Managers, p)
	}
	return info
}

// Executable returns the program a manager's commands start with.
func Executable(mc config.ManagerConfig) string {
	for _, tmpl := range []string{mc.SearchCommand, mc.ListCommand, mc.InstallCommand} {
		if tmpl == "" {
			continue
		}
		if args, err := command.Expand(tmpl, nil); err == nil {
			return args[0]
		}
	}
	return ""
}

// pkg/blocking/blocking.go - detects package manager processes that are
// already running before the store starts another operation.

package blocking

import (
	"path/filepath"
	"strings"

	"github.com/shirou/gopsutil/v3/process"
	"github.com/windowsadmins/appstore/pkg/logging"
)

// Executables lists the processes each built-in manager runs as.
var Executables = map[string][]string{
	"winget":     {"winget.exe", "AppInstallerCLI.exe"},
	"chocolatey": {"choco.exe", "chocolatey.exe"},
	"scoop":      {"scoop.ps1", "scoop.cmd"},
}

// Process is the part of a running process the matcher looks at.
type Process struct {
	Name string
	Exe  string
}

// ProcessLister returns the running processes.
type ProcessLister func() ([]Process, error)

// SystemProcesses lists processes with gopsutil.
func SystemProcesses() ([]Process, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, err
	}
	out := make([]Process, 0, len(procs))
	for _, proc := range procs {
		name, err := proc.Name()
		if err != nil {
			continue
		}
		exe, _ := proc.Exe()
		out = append(out, Process{Name: name, Exe: exe})
	}
	return out, nil
}

// Matches reports whether proc is appName. appName may be a full path, an
// executable name, or a bare name with or without ".exe".
func Matches(proc Process, appName string) bool {
	clean := strings.ToLower(appName)
	name := strings.ToLower(proc.Name)

	switch {
	case strings.HasPrefix(clean, "/") || strings.HasPrefix(clean, "c:\\"):
		return proc.Exe != "" && strings.EqualFold(filepath.Clean(proc.Exe), filepath.Clean(appName))
	case strings.HasSuffix(clean, ".exe"):
		return name == clean
	default:
		return name == clean || name == clean+".exe"
	}
}

// RunningManagers returns the managers in names that have a process running.
func RunningManagers(names []string) []string {
	return runningManagers(names, SystemProcesses)
}

func runningManagers(names []string, list ProcessLister) []string {
	procs, err := list()
	if err != nil {
		logging.Error("Failed to get process list", "error", err)
		return nil
	}

	var running []string
	for _, manager := range names {
		exes, ok := Executables[strings.ToLower(manager)]
		if !ok {
			exes = []string{manager}
		}
	found:
		for _, exe := range exes {
			for _, proc := range procs {
				if Matches(proc, exe) {
					logging.Debug("Found running package manager", "manager", manager, "process", proc.Name)
					running = append(running, manager)
					break found
				}
			}
		}
	}
	return running
}

// pkg/version/version.go - build information and package version comparison.

package version

import (
	"fmt"
	"strings"

	goversion "github.com/hashicorp/go-version"
)

// These values are private which ensures they can only be set with the build flags.
var (
	version   = "unknown"
	branch    = "unknown"
	revision  = "unknown"
	goVersion = "unknown"
	buildDate = "unknown"
	appName   = "appstore"
)

// Info is a structure with version build information about the current application.
type Info struct {
	Version   string `json:"version" yaml:"version"`
	Branch    string `json:"branch" yaml:"branch"`
	Revision  string `json:"revision" yaml:"revision"`
	GoVersion string `json:"go_version" yaml:"go_version"`
	BuildDate string `json:"build_date" yaml:"build_date"`
}

// Version returns a structure with the current version information.
func Version() Info {
	return Info{
		Version:   version,
		Branch:    branch,
		Revision:  revision,
		GoVersion: goVersion,
		BuildDate: buildDate,
	}
}

// Print outputs the application name and version string.
func Print() {
	fmt.Printf("%s %s\n", appName, Version().Version)
}

// PrintFull prints the application name and detailed version information.
func PrintFull() {
	v := Version()
	fmt.Printf("%s %s\n", appName, v.Version)
	fmt.Printf("  branch: \t%s\n", v.Branch)
	fmt.Printf("  revision: \t%s\n", v.Revision)
	fmt.Printf("  build date: \t%s\n", v.BuildDate)
	fmt.Printf("  go version: \t%s\n", v.GoVersion)
}

// clean strips the decorations package managers put around versions,
// e.g. winget's "< 1.2" or a leading "v".
func clean(v string) string {
	v = strings.TrimSpace(v)
	v = strings.TrimLeft(v, "<>= ")
	v = strings.TrimPrefix(v, "v")
	return v
}

// IsNewer reports whether latest is strictly newer than installed.
// If either side does not parse, no update is assumed.
func IsNewer(installed, latest string) bool {
	if strings.TrimSpace(installed) == "" || strings.TrimSpace(latest) == "" {
		return false
	}
	vInstalled, errInstalled := goversion.NewVersion(clean(installed))
	vLatest, errLatest := goversion.NewVersion(clean(latest))
	if errInstalled != nil || errLatest != nil {
		return false
	}
	return vInstalled.LessThan(vLatest)
}

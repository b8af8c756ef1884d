// pkg/parser/parser.go - parsing of package manager console output.
//
// winget prints fixed-width tables whose column offsets are taken from the
// header line above a row of dashes; chocolatey prints one package per line;
// scoop prints either bucket sections or a whitespace-separated table.

package parser

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Package is one row of search or list output.
type Package struct {
	Name            string `json:"name" yaml:"name"`
	ID              string `json:"id" yaml:"id"`
	Version         string `json:"version,omitempty" yaml:"version,omitempty"`
	Available       string `json:"available,omitempty" yaml:"available,omitempty"`
	Source          string `json:"source,omitempty" yaml:"source,omitempty"`
	Manager         string `json:"manager" yaml:"manager"`
	UpdateAvailable bool   `json:"update_available" yaml:"update_available"`
}

// ShowInfo holds the versions reported by a package detail command.
type ShowInfo struct {
	Latest    string
	Installed string
}

// Func parses search or list output.
type Func func(output string) []Package

// ShowFunc parses package detail output.
type ShowFunc func(output string) ShowInfo

var parsers = map[string]Func{
	"winget_search": WingetSearch,
	"winget_list":   WingetList,
	"choco_search":  ChocoSearch,
	"choco_list":    ChocoList,
	"scoop_search":  ScoopSearch,
	"scoop_list":    ScoopList,
	"generic":       Generic,
}

var showParsers = map[string]ShowFunc{
	"winget_show": WingetShow,
}

// Lookup returns the list/search parser registered under name.
func Lookup(name string) (Func, bool) {
	f, ok := parsers[normalizeName(name)]
	return f, ok
}

// LookupShow returns the detail parser registered under name.
func LookupShow(name string) (ShowFunc, bool) {
	f, ok := showParsers[normalizeName(name)]
	return f, ok
}

// Names lists the registered list/search parser names.
func Names() []string {
	names := make([]string, 0, len(parsers))
	for n := range parsers {
		names = append(names, n)
	}
	return names
}

// normalizeName accepts the older "parse_winget_output" style names too.
func normalizeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	switch name {
	case "parse_winget_output":
		return "winget_search"
	case "parse_generic_output", "":
		return "generic"
	}
	name = strings.TrimPrefix(name, "parse_")
	return strings.TrimSuffix(name, "_output")
}

// Lines splits raw command output into lines. CRLF endings are folded, text
// overwritten by carriage returns (progress spinners) is discarded and
// invalid UTF-8 is dropped.
func Lines(output string) []string {
	output = strings.ToValidUTF8(output, "")
	output = strings.ReplaceAll(output, "\r\n", "\n")
	output = strings.Trim(output, "\n")
	if strings.TrimSpace(output) == "" {
		return nil
	}
	lines := strings.Split(output, "\n")
	for i, line := range lines {
		if idx := strings.LastIndex(line, "\r"); idx >= 0 {
			lines[i] = line[idx+1:]
		}
	}
	return lines
}

// FindHeader locates the header of a dashed table. The separator is the first
// line whose trimmed text starts with "---"; the header is the line above it.
// It returns -1 when there is no such pair.
func FindHeader(lines []string) (header string, index int) {
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "---") {
			if i > 0 {
				return lines[i-1], i - 1
			}
			break
		}
	}
	return "", -1
}

// column returns the rune offset of label in header at or after from, or -1.
func column(header []rune, label string, from int) int {
	if from < 0 || from > len(header) {
		return -1
	}
	idx := strings.Index(string(header[from:]), label)
	if idx < 0 {
		return -1
	}
	return from + utf8.RuneCountInString(string(header[from:])[:idx])
}

// cut returns the trimmed runes [start:end) of row; out-of-range bounds are
// clamped and end < 0 means the end of the row.
func cut(row []rune, start, end int) string {
	if start < 0 {
		start = 0
	}
	if end < 0 || end > len(row) {
		end = len(row)
	}
	if start >= end {
		return ""
	}
	return strings.TrimSpace(string(row[start:end]))
}

// wingetFooter matches the summary lines winget prints under a table.
var wingetFooter = regexp.MustCompile(`^\d+ (upgrades? available|package\(s\) )`)

func isWingetFooter(line string) bool {
	return wingetFooter.MatchString(strings.TrimSpace(line))
}

// WingetSearch parses `winget search` tables.
func WingetSearch(output string) []Package {
	lines := Lines(output)
	headerLine, headerIndex := FindHeader(lines)
	if headerIndex < 0 {
		return nil
	}
	header := []rune(headerLine)
	namePos := column(header, "Name", 0)
	idPos := column(header, "Id", 0)
	if namePos < 0 || idPos < 0 {
		return nil
	}
	// Without a Version column the Id runs to the end of the row.
	versionPos := column(header, "Version", idPos)
	versionEnd, sourcePos := -1, -1
	if versionPos >= 0 {
		versionEnd = column(header, "Match", versionPos)
		sourcePos = column(header, "Source", versionPos)
		if versionEnd < 0 {
			versionEnd = sourcePos
		}
	}

	var results []Package
	for _, line := range lines[headerIndex+2:] {
		if isWingetFooter(line) {
			continue
		}
		row := []rune(line)
		name, id := cut(row, namePos, idPos), cut(row, idPos, versionPos)
		if name == "" || id == "" {
			continue
		}
		pkg := Package{Name: name, ID: id}
		if versionPos >= 0 {
			pkg.Version = cut(row, versionPos, versionEnd)
		}
		if sourcePos >= 0 {
			pkg.Source = cut(row, sourcePos, -1)
		}
		results = append(results, pkg)
	}
	return results
}

// WingetList parses `winget list` tables. The Available column is only
// printed by winget when at least one package has an upgrade.
func WingetList(output string) []Package {
	lines := Lines(output)
	headerLine, headerIndex := FindHeader(lines)
	if headerIndex < 0 {
		return nil
	}
	header := []rune(headerLine)
	namePos := column(header, "Name", 0)
	idPos := column(header, "Id", 0)
	versionPos := column(header, "Version", max(idPos, 0))
	if namePos < 0 || idPos < 0 || versionPos < 0 {
		return nil
	}
	availablePos := column(header, "Available", versionPos)
	sourcePos := column(header, "Source", versionPos)

	versionEnd, availableEnd := availablePos, sourcePos
	if availablePos < 0 {
		versionEnd = sourcePos
	}

	var results []Package
	for _, line := range lines[headerIndex+2:] {
		if isWingetFooter(line) {
			continue
		}
		row := []rune(line)
		name, id := cut(row, namePos, idPos), cut(row, idPos, versionPos)
		if name == "" || id == "" {
			continue
		}
		pkg := Package{
			Name:    name,
			ID:      id,
			Version: cut(row, versionPos, versionEnd),
		}
		if availablePos >= 0 {
			pkg.Available = cut(row, availablePos, availableEnd)
			pkg.UpdateAvailable = pkg.Available != ""
		}
		if sourcePos >= 0 {
			pkg.Source = cut(row, sourcePos, -1)
		}
		results = append(results, pkg)
	}
	return results
}

// WingetShow extracts the available and installed versions from `winget show`.
func WingetShow(output string) ShowInfo {
	var info ShowInfo
	for _, line := range Lines(output) {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		switch strings.TrimSpace(key) {
		case "Version":
			info.Latest = strings.TrimSpace(value)
		case "Installed Version":
			info.Installed = strings.TrimSpace(value)
		}
	}
	return info
}

// isChocoBanner matches the "Chocolatey v2.2.2" line choco prints first.
func isChocoBanner(line string) bool {
	fields := strings.Fields(line)
	return len(fields) == 2 && strings.EqualFold(fields[0], "chocolatey") && strings.HasPrefix(fields[1], "v")
}

// ChocoSearch parses `choco search`. Each remaining line is a package; with
// --limit-output the line is "id|version".
func ChocoSearch(output string) []Package {
	var results []Package
	for _, line := range Lines(output) {
		line = strings.TrimSpace(line)
		if line == "" || strings.Contains(strings.ToLower(line), "packages found") || isChocoBanner(line) {
			continue
		}
		id, ver, _ := strings.Cut(line, "|")
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		results = append(results, Package{Name: id, ID: id, Version: strings.TrimSpace(ver)})
	}
	return results
}

// ChocoList parses `choco list`. Lines are "id version" or "id|version".
func ChocoList(output string) []Package {
	var results []Package
	for _, line := range Lines(output) {
		if isChocoBanner(line) {
			continue
		}
		var parts []string
		if strings.Contains(line, "|") {
			parts = strings.Split(strings.TrimSpace(line), "|")
		} else {
			parts = strings.Fields(line)
		}
		if len(parts) != 2 {
			continue
		}
		id, ver := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
		if id == "" {
			continue
		}
		results = append(results, Package{Name: id, ID: id, Version: ver})
	}
	return results
}

// ScoopSearch parses `scoop search`. Older scoop prints "'main' bucket:"
// sections of indented names; newer releases print a dashed table.
func ScoopSearch(output string) []Package {
	lines := Lines(output)
	if headerLine, headerIndex := FindHeader(lines); headerIndex >= 0 && strings.HasPrefix(strings.TrimSpace(headerLine), "Name") {
		return scoopTable(lines[headerIndex+2:])
	}

	var results []Package
	inResults := false
	bucket := ""
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasSuffix(line, "bucket:") {
			inResults = true
			bucket = strings.Trim(strings.TrimSpace(strings.TrimSuffix(line, "bucket:")), "'")
			continue
		}
		if !inResults {
			continue
		}
		first, _ := utf8.DecodeRuneInString(line)
		if !unicode.IsLetter(first) && !unicode.IsDigit(first) {
			inResults = false
			continue
		}
		fields := strings.Fields(line)
		pkg := Package{Name: fields[0], ID: fields[0], Source: bucket}
		if len(fields) > 1 {
			pkg.Version = strings.Trim(fields[1], "()")
		}
		results = append(results, pkg)
	}
	return results
}

// ScoopList parses `scoop list`.
func ScoopList(output string) []Package {
	lines := Lines(output)
	if _, headerIndex := FindHeader(lines); headerIndex >= 0 {
		return scoopTable(lines[headerIndex+2:])
	}

	var results []Package
	if len(lines) < 2 {
		return nil
	}
	for _, line := range lines[2:] {
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "-") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) >= 2 {
			results = append(results, Package{Name: fields[0], ID: fields[0], Version: fields[1]})
		}
	}
	return results
}

// scoopTable reads "Name Version Source ..." rows. Scoop names never contain
// spaces, so plain field splitting is enough.
func scoopTable(rows []string) []Package {
	var results []Package
	for _, line := range rows {
		fields := strings.Fields(line)
		if len(fields) == 0 || strings.HasPrefix(fields[0], "-") {
			continue
		}
		pkg := Package{Name: fields[0], ID: fields[0]}
		if len(fields) > 1 {
			pkg.Version = fields[1]
		}
		if len(fields) > 2 {
			pkg.Source = fields[2]
		}
		results = append(results, pkg)
	}
	return results
}

// Generic treats the first word of each line as the package id.
func Generic(output string) []Package {
	var results []Package
	for _, line := range Lines(output) {
		if fields := strings.Fields(line); len(fields) > 0 {
			results = append(results, Package{Name: fields[0], ID: fields[0]})
		}
	}
	return results
}

package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"

	"github.com/windowsadmins/appstore/pkg/logo"
	"github.com/windowsadmins/appstore/pkg/parser"
	"github.com/windowsadmins/appstore/pkg/store"
)

func writePackages(w io.Writer, format string, pkgs []parser.Package, installed bool) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if pkgs == nil {
			pkgs = []parser.Package{}
		}
		return enc.Encode(pkgs)
	case "yaml":
		return writeYAML(w, pkgs)
	case "", "table":
	default:
		return fmt.Errorf("%w: unknown output format %q", errUsage, format)
	}

	var rows [][]string
	header := []string{"Name", "ID", "Version", "Source", "Manager"}
	if installed {
		header[3] = "Available"
		for _, p := range pkgs {
			available := ""
			if p.UpdateAvailable {
				available = p.Available
				if available == "" {
					available = "yes"
				}
			}
			rows = append(rows, []string{p.Name, p.ID, p.Version, available, p.Manager})
		}
	} else {
		for _, p := range pkgs {
			rows = append(rows, []string{p.Name, p.ID, p.Version, p.Source, p.Manager})
		}
	}

	table := newTable(w)
	table.SetHeader(header)
	table.AppendBulk(rows)
	table.Render()
	return nil
}

// newTable returns a borderless, left-aligned table in the style of
// kubectl output.
func newTable(w io.Writer) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)
	return table
}

func writeYAML(w io.Writer, v interface{}) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func writeSummary(w io.Writer, sum store.Summary) {
	fmt.Fprintf(w, "Updated %d of %d applications.\n", len(sum.Updated), sum.Total)
	for _, out := range sum.Failed {
		fmt.Fprintf(w, "  failed: %s (%s): %s\n", out.Package.Name, out.Package.Manager, out.Message)
	}
}

func writeLogos(w io.Writer, names []string, logos map[string]logo.Logo) {
	table := newTable(w)
	table.SetHeader([]string{"Name", "Logo"})
	for _, name := range names {
		l, ok := logos[name]
		switch {
		case !ok:
			table.Append([]string{name, "skipped"})
		case l.Placeholder:
			table.Append([]string{name, "placeholder"})
		default:
			table.Append([]string{name, l.Path})
		}
	}
	table.Render()
}

// Package report holds the discovery result rows and renders them as text
// tables, JSON or YAML.
package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"
)

// Output formats
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// Formats lists the supported output formats.
var Formats = []string{FormatTable, FormatJSON, FormatYAML}

// ServiceRow is one attribute of the services view.
type ServiceRow struct {
	Handle      string `json:"handle" yaml:"handle"`
	UUID        string `json:"uuid" yaml:"uuid"`
	Description string `json:"description" yaml:"description"`
	Value       string `json:"value" yaml:"value"`
}

// CharacteristicRow is one characteristic of the characteristics view.
type CharacteristicRow struct {
	Handle      string `json:"handle" yaml:"handle"`
	UUID        string `json:"uuid" yaml:"uuid"`
	Description string `json:"description" yaml:"description"`
	Properties  string `json:"properties" yaml:"properties"`
	Value       string `json:"value" yaml:"value"`
}

// Report is the complete result of one discovery run.
type Report struct {
	Address         string              `json:"address" yaml:"address"`
	Services        []ServiceRow        `json:"services" yaml:"services"`
	Characteristics []CharacteristicRow `json:"characteristics" yaml:"characteristics"`
}

// Options controls rendering.
type Options struct {
	Format   string // FormatTable (default), FormatJSON or FormatYAML
	MaxWidth int    // table cell wrap width, 0 disables wrapping
	Color    bool   // colour table headers
}

// Render writes rep to w in the requested format.
func Render(w io.Writer, rep *Report, opts *Options) error {
	if opts == nil {
		opts = &Options{MaxWidth: DefaultMaxWidth}
	}

	switch opts.Format {
	case "", FormatTable:
		return renderTables(w, rep, opts)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(rep); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported output format %q (must be one of %v)", opts.Format, Formats)
	}
}

// ServicesTable builds the services view.
func ServicesTable(rows []ServiceRow) *Table {
	t := NewTable("Handle", "UUID", "Description", "Value")
	for _, r := range rows {
		t.AddRow(r.Handle, r.UUID, r.Description, r.Value)
	}
	return t
}

// CharacteristicsTable builds the characteristics view.
func CharacteristicsTable(rows []CharacteristicRow) *Table {
	t := NewTable("Handle", "UUID", "Description", "Properties", "Value")
	for _, r := range rows {
		t.AddRow(r.Handle, r.UUID, r.Description, r.Properties, r.Value)
	}
	return t
}

// RenderServices writes the services view as a text table.
func RenderServices(w io.Writer, rows []ServiceRow, opts *Options) error {
	return renderTable(w, ServicesTable(rows), opts)
}

// RenderCharacteristics writes the characteristics view as a text table.
func RenderCharacteristics(w io.Writer, rows []CharacteristicRow, opts *Options) error {
	return renderTable(w, CharacteristicsTable(rows), opts)
}

func renderTables(w io.Writer, rep *Report, opts *Options) error {
	if err := RenderServices(w, rep.Services, opts); err != nil {
		return err
	}
	return RenderCharacteristics(w, rep.Characteristics, opts)
}

func renderTable(w io.Writer, t *Table, opts *Options) error {
	if opts == nil {
		opts = &Options{MaxWidth: DefaultMaxWidth}
	}
	var header *color.Color
	if opts.Color {
		header = color.New(color.Bold, color.FgCyan)
	}
	return t.WithMaxWidth(opts.MaxWidth).WithHeaderColor(header).Render(w)
}

// Package output prints command results as tables, JSON or YAML.
package output

import (
	"fmt"
	"io"
	"strings"
)

// Format is an output format selected with -o.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat parses a format name. The empty string means table.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "table", "":
		return FormatTable, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("invalid output format: %q (valid: table, json, yaml)", s)
	}
}

func (f Format) String() string {
	return string(f)
}

// Print writes data in format f. Table output needs a TableRenderer; other
// values fall back to JSON.
func Print(w io.Writer, f Format, data any) error {
	switch f {
	case FormatJSON:
		return PrintJSON(w, data)
	case FormatYAML:
		return PrintYAML(w, data)
	case FormatTable:
		if r, ok := data.(TableRenderer); ok {
			return PrintTable(w, r)
		}
		return PrintJSON(w, data)
	default:
		return fmt.Errorf("unknown format: %s", f)
	}
}

// Color codes used for health and result columns.
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
)

// Colorizer wraps words in ANSI colors when enabled.
type Colorizer struct {
	Enabled bool
}

func (c Colorizer) wrap(code, s string) string {
	if !c.Enabled {
		return s
	}
	return code + s + colorReset
}

// Green colors s green.
func (c Colorizer) Green(s string) string { return c.wrap(colorGreen, s) }

// Red colors s red.
func (c Colorizer) Red(s string) string { return c.wrap(colorRed, s) }

// Yellow colors s yellow.
func (c Colorizer) Yellow(s string) string { return c.wrap(colorYellow, s) }

// Health colors a share health name: Healthy green, Unhealthy red, the
// rest yellow.
func (c Colorizer) Health(h string) string {
	switch h {
	case "Healthy", "MountedHealthy":
		return c.Green(h)
	case "Unhealthy", "NotMounted", "MountedStale":
		return c.Red(h)
	default:
		return c.Yellow(h)
	}
}

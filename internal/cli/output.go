// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-esapi.
//
// go-esapi is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package cli

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/go-tpm/tpm2"
)

// OutputFormat defines the output format type
type OutputFormat string

const (
	OutputFormatText OutputFormat = "text"
	OutputFormatJSON OutputFormat = "json"
)

// Printer handles formatted output
type Printer struct {
	format OutputFormat
	writer io.Writer
}

// NewPrinter creates a new Printer
func NewPrinter(format string, writer io.Writer) *Printer {
	return &Printer{
		format: OutputFormat(format),
		writer: writer,
	}
}

// PropertyValue is one row of the properties command
type PropertyValue struct {
	Name  string
	Tag   tpm2.TPMPT
	Value uint32
	Found bool
}

// PrintProperties prints TPM property values
func (p *Printer) PrintProperties(props []PropertyValue) error {
	switch p.format {
	case OutputFormatJSON:
		list := make([]map[string]interface{}, len(props))
		for i, prop := range props {
			entry := map[string]interface{}{
				"name": prop.Name,
				"tag":  fmt.Sprintf("0x%08x", uint32(prop.Tag)),
			}
			if prop.Found {
				entry["value"] = prop.Value
			}
			list[i] = entry
		}
		return p.printJSON(map[string]interface{}{
			"properties": list,
		})
	case OutputFormatText:
		for _, prop := range props {
			if !prop.Found {
				fmt.Fprintf(p.writer, "%-20s (not reported)\n", prop.Name)
				continue
			}
			fmt.Fprintf(p.writer, "%-20s 0x%08x (%d)\n", prop.Name, prop.Value, prop.Value)
		}
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintRandom prints random bytes as hex
func (p *Printer) PrintRandom(data []byte) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"bytes": len(data),
			"hex":   hex.EncodeToString(data),
		})
	case OutputFormatText:
		fmt.Fprintln(p.writer, hex.EncodeToString(data))
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintHandles prints a handle listing for one range
func (p *Printer) PrintHandles(kind string, list []tpm2.TPMHandle) error {
	switch p.format {
	case OutputFormatJSON:
		out := make([]string, len(list))
		for i, h := range list {
			out[i] = fmt.Sprintf("0x%08x", uint32(h))
		}
		return p.printJSON(map[string]interface{}{
			"type":    kind,
			"handles": out,
		})
	case OutputFormatText:
		if len(list) == 0 {
			fmt.Fprintf(p.writer, "No %s handles\n", kind)
			return nil
		}
		for _, h := range list {
			fmt.Fprintf(p.writer, "0x%08x\n", uint32(h))
		}
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintHandle prints a single handle with a label
func (p *Printer) PrintHandle(label string, h tpm2.TPMHandle) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			label: fmt.Sprintf("0x%08x", uint32(h)),
		})
	case OutputFormatText:
		fmt.Fprintf(p.writer, "%s: 0x%08x\n", label, uint32(h))
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintSuccess prints a success message
func (p *Printer) PrintSuccess(message string) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"status":  "success",
			"message": message,
		})
	case OutputFormatText:
		fmt.Fprintln(p.writer, message)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintError prints an error message
func (p *Printer) PrintError(err error) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"status": "error",
			"error":  err.Error(),
		})
	default:
		fmt.Fprintf(p.writer, "Error: %v\n", err)
		return nil
	}
}

// printJSON prints data as JSON
func (p *Printer) printJSON(data interface{}) error {
	encoder := json.NewEncoder(p.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

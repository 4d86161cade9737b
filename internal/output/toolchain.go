// Package output serializes a resolved toolchain.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/StinkyLord/clangcl-adapter/internal/model"
)

// Formats accepted by Write.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatBat  = "bat" // cmd.exe "set" lines for the search-path variables
)

// exportedVars are the environment variables written alongside the
// toolchain. The full environment is too large and may hold secrets.
var exportedVars = []string{"PATH", "INCLUDE", "LIB"}

// document is the serialized form of a toolchain.
type document struct {
	model.Toolchain `yaml:",inline"`
	Env             map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
}

func newDocument(tc *model.Toolchain) document {
	env := map[string]string{}
	for _, k := range exportedVars {
		if v, ok := tc.Env.Lookup(k); ok {
			env[k] = v
		}
	}
	return document{Toolchain: *tc, Env: env}
}

// Render returns tc encoded in the given format.
func Render(tc *model.Toolchain, format string) ([]byte, error) {
	switch format {
	case FormatJSON, "":
		data, err := json.MarshalIndent(newDocument(tc), "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to marshal toolchain JSON: %w", err)
		}
		return append(data, '\n'), nil
	case FormatYAML, "yml":
		data, err := yaml.Marshal(newDocument(tc))
		if err != nil {
			return nil, fmt.Errorf("failed to marshal toolchain YAML: %w", err)
		}
		return data, nil
	case FormatBat:
		var b strings.Builder
		b.WriteString("@echo off\r\n")
		for _, k := range exportedVars {
			if v, ok := tc.Env.Lookup(k); ok {
				fmt.Fprintf(&b, "set \"%s=%s\"\r\n", k, v)
			}
		}
		fmt.Fprintf(&b, "set \"CC=%s\"\r\n", tc.Compiler)
		fmt.Fprintf(&b, "set \"CL=%s\"\r\n", strings.Join(tc.CompileOptions, " "))
		return []byte(b.String()), nil
	default:
		return nil, fmt.Errorf("unsupported format %q (supported: json, yaml, bat)", format)
	}
}

// Write renders tc and writes it to outputPath. If outputPath is "-", it
// writes to stdout.
func Write(tc *model.Toolchain, outputPath, format string) error {
	data, err := Render(tc, format)
	if err != nil {
		return err
	}
	if outputPath == "-" {
		return writeTo(os.Stdout, data)
	}
	return os.WriteFile(outputPath, data, 0644)
}

func writeTo(w io.Writer, data []byte) error {
	_, err := w.Write(data)
	return err
}

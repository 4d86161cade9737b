// Package compiledb records compiler invocations in a compile_commands.json
// compilation database so editors and clang tooling see the exact flags
// clang-cl was given.
package compiledb

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// FileName is the conventional name of a compilation database.
const FileName = "compile_commands.json"

// Command represents one entry in compile_commands.json.
type Command struct {
	Directory string   `json:"directory"`
	Arguments []string `json:"arguments"`
	File      string   `json:"file"`
	Output    string   `json:"output,omitempty"`
}

// NewCommand builds an entry for compiling file in directory. Relative
// paths in the database are resolved against directory.
func NewCommand(directory, compiler string, args []string, file, output string) Command {
	argv := make([]string, 0, len(args)+1)
	argv = append(argv, compiler)
	argv = append(argv, args...)
	return Command{
		Directory: directory,
		Arguments: argv,
		File:      file,
		Output:    output,
	}
}

// key identifies an entry: one translation unit per output.
func (c Command) key() string {
	file := c.File
	if !filepath.IsAbs(file) {
		file = filepath.Join(c.Directory, file)
	}
	return filepath.Clean(file) + "\x00" + c.Output
}

// Read loads a compilation database. A missing file is an empty database.
func Read(path string) ([]Command, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var commands []Command
	if err := json.Unmarshal(data, &commands); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return commands, nil
}

// Merge replaces entries of existing that compile the same file to the same
// output with the ones in updates and appends the rest. The result is sorted
// by file for stable diffs.
func Merge(existing, updates []Command) []Command {
	byKey := make(map[string]int, len(existing)+len(updates))
	out := make([]Command, 0, len(existing)+len(updates))
	for _, c := range append(append([]Command(nil), existing...), updates...) {
		if i, ok := byKey[c.key()]; ok {
			out[i] = c
			continue
		}
		byKey[c.key()] = len(out)
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].File < out[j].File
	})
	return out
}

// Update merges updates into the database at path and writes it back.
func Update(path string, updates []Command) error {
	existing, err := Read(path)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(Merge(existing, updates), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal compilation database: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}

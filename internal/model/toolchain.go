// Package model defines the configuration values shared by the base vendor
// toolchain, the clang-cl adapter and the CLI.
package model

import (
	"path/filepath"
	"strings"

	"github.com/StinkyLord/clangcl-adapter/internal/pathlist"
)

// Toolchain is a fully resolved compiler configuration. It is created by the
// base toolchain and adjusted in place by the adapter during initialization.
type Toolchain struct {
	Name                string   `json:"name" yaml:"name"`                 // "msvc" or "clang-cl"
	Compiler            string   `json:"compiler" yaml:"compiler"`         // Resolved executable path
	Version             string   `json:"version,omitempty" yaml:"version,omitempty"`
	Target              string   `json:"target,omitempty" yaml:"target,omitempty"` // i686 or x86_64
	PlatformBits        int      `json:"platformBits" yaml:"platform_bits"`
	PlatSpec            string   `json:"platSpec,omitempty" yaml:"plat_spec,omitempty"` // vcvarsall argument
	CompileOptions      []string `json:"compileOptions" yaml:"compile_options"`
	CompileOptionsDebug []string `json:"compileOptionsDebug" yaml:"compile_options_debug"`
	IncludeDirs         []string `json:"includeDirs" yaml:"include_dirs"`
	LibraryDirs         []string `json:"libraryDirs,omitempty" yaml:"library_dirs,omitempty"`
	Libraries           []string `json:"libraries,omitempty" yaml:"libraries,omitempty"`

	// Env is handed to every subprocess the toolchain runs. It is never
	// written back to the process environment.
	Env Env `json:"-" yaml:"-"`
}

// AddLibraryDir registers a library search directory once.
func (t *Toolchain) AddLibraryDir(dir string) {
	t.LibraryDirs = pathlist.AppendUnique(t.LibraryDirs, dir)
}

// AddLibrary registers a library name once.
func (t *Toolchain) AddLibrary(name string) {
	t.Libraries = pathlist.AppendUnique(t.Libraries, name)
}

// Options returns the release or debug compile-option list.
func (t *Toolchain) Options(debug bool) []string {
	if debug {
		return t.CompileOptionsDebug
	}
	return t.CompileOptions
}

// cxxExts are sources compiled with /Tp; everything else gets /Tc.
var cxxExts = map[string]bool{
	".cpp": true, ".cc": true, ".cxx": true, ".c++": true,
}

// CompileArgs returns the argument list (without the executable) that
// compiles src into obj:
//
//	/c <options...> /I<dir>... /Tc<src>|/Tp<src> /Fo<obj>
func (t *Toolchain) CompileArgs(src, obj string, debug bool) []string {
	opts := t.Options(debug)
	args := make([]string, 0, len(opts)+len(t.IncludeDirs)+3)
	args = append(args, "/c")
	args = append(args, opts...)
	for _, dir := range t.IncludeDirs {
		args = append(args, "/I"+dir)
	}
	if cxxExts[strings.ToLower(filepath.Ext(src))] {
		args = append(args, "/Tp"+src)
	} else {
		args = append(args, "/Tc"+src)
	}
	args = append(args, "/Fo"+obj)
	return args
}

// ObjectName maps a source file to its object file inside outDir. A relative
// source keeps its directory below outDir, so a/foo.c and b/foo.c get
// distinct objects. Absolute sources and sources outside the working
// directory are placed directly in outDir.
func ObjectName(src, outDir string) string {
	base := filepath.Base(src)
	obj := strings.TrimSuffix(base, filepath.Ext(base)) + ".obj"

	dir := filepath.Dir(filepath.Clean(src))
	if filepath.IsAbs(src) || filepath.VolumeName(src) != "" ||
		dir == ".." || strings.HasPrefix(dir, ".."+string(filepath.Separator)) {
		dir = ""
	}
	return filepath.Join(outDir, dir, obj)
}

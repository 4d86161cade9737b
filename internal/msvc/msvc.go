// Package msvc provides the base vendor toolchain: the default cl.exe option
// lists and the developer environment produced by vcvarsall.bat.
package msvc

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/StinkyLord/clangcl-adapter/internal/model"
	"github.com/StinkyLord/clangcl-adapter/internal/pathlist"
)

// Compiler is the vendor compiler executable name.
const Compiler = "cl.exe"

// Default option lists of the vendor toolchain.
var (
	defaultCompileOptions      = []string{"/nologo", "/Ox", "/W3", "/GL", "/DNDEBUG", "/MD"}
	defaultCompileOptionsDebug = []string{"/nologo", "/Od", "/MDd", "/Zi", "/W3", "/D_DEBUG"}
)

// PlatSpec returns the vcvarsall.bat argument for a target bit width.
func PlatSpec(bits int) string {
	if bits == 32 {
		return "x86"
	}
	return "x86_amd64"
}

// Defaults returns a toolchain carrying only the vendor option lists.
func Defaults(bits int) *model.Toolchain {
	return &model.Toolchain{
		Name:                "msvc",
		Compiler:            Compiler,
		PlatformBits:        bits,
		PlatSpec:            PlatSpec(bits),
		CompileOptions:      append([]string(nil), defaultCompileOptions...),
		CompileOptionsDebug: append([]string(nil), defaultCompileOptionsDebug...),
	}
}

// Base initializes the vendor toolchain from a developer environment.
type Base struct {
	Bits    int
	Loader  Loader
	Verbose bool
	Log     io.Writer // defaults to os.Stderr
}

// Initialize loads the developer environment and seeds the include and
// library directories from its INCLUDE and LIB lists. The returned toolchain
// owns its Env; the process environment is left alone.
func (b *Base) Initialize(ctx context.Context) (*model.Toolchain, error) {
	if b.Loader == nil {
		return nil, fmt.Errorf("msvc: no environment loader configured")
	}
	platSpec := PlatSpec(b.Bits)
	env, err := b.Loader.Load(ctx, platSpec)
	if err != nil {
		return nil, fmt.Errorf("loading developer environment for %s: %w", platSpec, err)
	}

	tc := Defaults(b.Bits)
	tc.Env = env
	tc.IncludeDirs = pathlist.Dedup(pathlist.Split(env.Get("INCLUDE")))
	tc.LibraryDirs = pathlist.Dedup(pathlist.Split(env.Get("LIB")))

	// A missing cl.exe is not fatal here: adapters replace the compiler.
	if cl := FindExe(Compiler, env.Get("PATH")); cl != "" {
		tc.Compiler = cl
	}

	b.logf("  [msvc] %s: %d include dir(s), %d library dir(s), compiler %s\n",
		platSpec, len(tc.IncludeDirs), len(tc.LibraryDirs), tc.Compiler)
	return tc, nil
}

func (b *Base) logf(format string, args ...any) {
	if !b.Verbose {
		return
	}
	w := b.Log
	if w == nil {
		w = os.Stderr
	}
	fmt.Fprintf(w, format, args...)
}

// FindExe searches the directories of a PATH-style list for name and returns
// the absolute path of the first regular file found, or "" if there is none.
func FindExe(name, searchPath string) string {
	for _, dir := range pathlist.Split(searchPath) {
		dir = strings.Trim(dir, `"`)
		abs, err := filepath.Abs(dir)
		if err != nil {
			continue
		}
		candidate := filepath.Join(abs, name)
		if info, err := os.Stat(candidate); err == nil && info.Mode().IsRegular() {
			return candidate
		}
	}
	return ""
}

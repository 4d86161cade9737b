// Package clangcl adapts the vendor MSVC toolchain to drive clang-cl.exe
// instead of cl.exe. The produced objects stay link-compatible with the MSVC
// runtime; clang's own headers and builtins library are wired in and the
// vendor headers that break clang are filtered out.
package clangcl

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/StinkyLord/clangcl-adapter/internal/model"
	"github.com/StinkyLord/clangcl-adapter/internal/msvc"
	"github.com/StinkyLord/clangcl-adapter/internal/pathlist"
	"github.com/StinkyLord/clangcl-adapter/internal/runner"
)

// DefaultCompiler is the executable searched for on PATH.
const DefaultCompiler = "clang-cl.exe"

// Option tweaks applied to the vendor option lists.
var (
	// Whole-program optimization flags clang-cl rejects.
	removedOptions = []string{"/GL", "/GL-"}

	vendorOptLevel = "/Ox"
	clangOptLevel  = "/O2"

	appendedOptions = []string{
		"/GS-",
		"-Wno-visibility",
		"-Wno-logical-op-parentheses",
		"-Wno-microsoft-include",
		"-Wno-shift-op-parentheses",
	}

	// sse2Option is required on i686 where the MSVC runtime assumes SSE2.
	sse2Option = "/arch:SSE2"
)

// DefaultBlockedIncludes are substrings of include directories whose headers
// use intrinsics clang cannot compile. Visual Studio 14.0 headers are kept.
var DefaultBlockedIncludes = []string{"Windows Kits", "MSVC", "2019"}

// BaseInitializer produces the vendor toolchain the adapter starts from.
type BaseInitializer interface {
	Initialize(ctx context.Context) (*model.Toolchain, error)
}

// Adapter turns a vendor toolchain into a clang-cl toolchain.
type Adapter struct {
	PlatformBits int    // 32 or 64
	Compiler     string // executable name, DefaultCompiler when empty

	// BlockedIncludes replaces DefaultBlockedIncludes when non-nil.
	BlockedIncludes []string

	// ExtraCompileOptions are appended to both option lists after the
	// built-in adjustments, so they win over them.
	ExtraCompileOptions []string

	// AlwaysLinkBuiltins registers clang_rt.builtins on 64-bit targets too.
	AlwaysLinkBuiltins bool

	// ExemptClangInclude keeps clang's own include dir even when it matches
	// the blocklist, as it does for a clang bundled with Visual Studio 2019
	// under "...\2019\...\VC\Tools\Llvm".
	ExemptClangInclude bool

	Runner  runner.Runner // defaults to runner.OSRunner{}
	Verbose bool
	Log     io.Writer // defaults to os.Stderr
}

// New creates an Adapter for the given bit width.
func New(bits int) *Adapter {
	return &Adapter{PlatformBits: bits}
}

// Initialize runs the base toolchain and adjusts its result for clang-cl.
// prior is the caller's environment before the base toolchain ran; its LIB
// and INCLUDE lists are merged back into the toolchain environment.
//
// Every failure is fatal and returned as a *Error wrapping one of the
// package's sentinel errors (or the base toolchain's error).
func (a *Adapter) Initialize(ctx context.Context, base BaseInitializer, prior model.Env) (*model.Toolchain, error) {
	if a.PlatformBits != 32 && a.PlatformBits != 64 {
		return nil, fmt.Errorf("unsupported platform bits %d (want 32 or 64)", a.PlatformBits)
	}

	// The base toolchain may replace LIB and INCLUDE; keep the caller's.
	priorLib := prior.Get("LIB")
	priorInclude := prior.Get("INCLUDE")

	tc, err := base.Initialize(ctx)
	if err != nil {
		return nil, fmt.Errorf("initializing base toolchain: %w", err)
	}
	tc.Name = "clang-cl"
	tc.PlatformBits = a.PlatformBits
	tc.Env = tc.Env.Clone()

	if err := a.locateCompiler(tc); err != nil {
		return nil, err
	}
	a.adjustOptions(tc)

	tc.Env.Set("LIB", pathlist.Merge(priorLib, tc.Env.Get("LIB")))
	tc.Env.Set("INCLUDE", pathlist.Merge(priorInclude, tc.Env.Get("INCLUDE")))

	out, err := a.queryVersion(ctx, tc)
	if err != nil {
		return nil, err
	}
	if err := a.checkTarget(tc, out); err != nil {
		return nil, err
	}

	resourceDir, err := a.resourceDir(tc)
	if err != nil {
		return nil, err
	}
	// clang's own headers go first.
	include := filepath.Join(resourceDir, "include")
	if a.ExemptClangInclude {
		kept := pathlist.Filter(tc.IncludeDirs, a.blocked())
		tc.IncludeDirs = pathlist.Dedup(append([]string{include}, kept...))
	} else {
		dirs := append([]string{include}, tc.IncludeDirs...)
		tc.IncludeDirs = pathlist.Dedup(pathlist.Filter(dirs, a.blocked()))
	}
	a.logf("  [clang-cl] %d include dir(s) after filtering\n", len(tc.IncludeDirs))

	if a.PlatformBits == 32 || a.AlwaysLinkBuiltins {
		if err := a.addBuiltins(tc, resourceDir); err != nil {
			return nil, err
		}
	}
	return tc, nil
}

func (a *Adapter) locateCompiler(tc *model.Toolchain) error {
	name := a.Compiler
	if name == "" {
		name = DefaultCompiler
	}
	cc := msvc.FindExe(name, tc.Env.Get("PATH"))
	if cc == "" {
		return &Error{
			Op:     "locate compiler",
			Detail: "unable to locate " + name + "; it should be on the path",
			Err:    ErrExecutableNotFound,
		}
	}
	tc.Compiler = cc
	a.logf("  [clang-cl] Using %s\n", cc)
	return nil
}

func (a *Adapter) adjustOptions(tc *model.Toolchain) {
	opts := make([]string, 0, len(tc.CompileOptions)+len(appendedOptions)+2)
	for _, o := range tc.CompileOptions {
		if contains(removedOptions, o) || o == vendorOptLevel {
			continue
		}
		opts = append(opts, o)
	}
	opts = append(opts, clangOptLevel)
	opts = append(opts, appendedOptions...)
	tc.CompileOptions = opts

	if a.PlatformBits == 32 {
		tc.CompileOptions = append(tc.CompileOptions, sse2Option)
		tc.CompileOptionsDebug = append(tc.CompileOptionsDebug, sse2Option)
	}
	if len(a.ExtraCompileOptions) > 0 {
		tc.CompileOptions = append(tc.CompileOptions, a.ExtraCompileOptions...)
		tc.CompileOptionsDebug = append(tc.CompileOptionsDebug, a.ExtraCompileOptions...)
	}
}

func (a *Adapter) queryVersion(ctx context.Context, tc *model.Toolchain) (string, error) {
	r := a.Runner
	if r == nil {
		r = runner.OSRunner{}
	}
	command := []string{tc.Compiler, "--version"}
	out, err := runner.Output(ctx, r, command, tc.Env.Environ())
	if err != nil {
		return "", &Error{
			Op:      "query compiler version",
			Detail:  err.Error(),
			Command: command,
			Output:  out,
			Err:     ErrVersionUndetectable,
		}
	}

	tc.Version = ParseVersion(out)
	if tc.Version == "" {
		return "", &Error{
			Op:      "query compiler version",
			Detail:  "the clang version could not be detected from the version string",
			Command: command,
			Output:  out,
			Err:     ErrVersionUndetectable,
		}
	}
	a.logf("  [clang-cl] Detected clang %s\n", tc.Version)
	return out, nil
}

// checkTarget forbids building 32-bit objects with a 64-bit clang and vice
// versa.
func (a *Adapter) checkTarget(tc *model.Toolchain, versionOutput string) error {
	target := TargetArch(a.PlatformBits)
	if !strings.Contains(versionOutput, target) {
		return &Error{
			Op:      "check compiler target",
			Detail:  fmt.Sprintf("clang-cl must target %s when building for %d-bit windows", target, a.PlatformBits),
			Command: []string{tc.Compiler, "--version"},
			Output:  versionOutput,
			Err:     ErrArchMismatch,
		}
	}
	tc.Target = target
	return nil
}

// resourceDir returns <compiler dir>/../lib/clang/<version>. clang 16 and
// later name the directory after the major version only.
func (a *Adapter) resourceDir(tc *model.Toolchain) (string, error) {
	root, err := filepath.Abs(filepath.Join(filepath.Dir(tc.Compiler), "..", "lib", "clang"))
	if err != nil {
		return "", fmt.Errorf("resolving clang resource root: %w", err)
	}

	candidates := []string{filepath.Join(root, tc.Version)}
	if major := MajorVersion(tc.Version); major != "" && major != tc.Version {
		candidates = append(candidates, filepath.Join(root, major))
	}
	for _, dir := range candidates {
		if dirExists(filepath.Join(dir, "include")) {
			return dir, nil
		}
	}
	return "", &Error{
		Op: "locate clang includes",
		Detail: filepath.Join(candidates[0], "include") +
			" could not be found; it contains headers required by clang-cl",
		Err: ErrMissingDirectory,
	}
}

func (a *Adapter) addBuiltins(tc *model.Toolchain, resourceDir string) error {
	libDir := filepath.Join(resourceDir, "lib", "windows")
	if !dirExists(libDir) {
		return &Error{
			Op:     "locate clang libraries",
			Detail: libDir + " could not be found",
			Err:    ErrMissingDirectory,
		}
	}
	tc.AddLibraryDir(libDir)

	lib := BuiltinsLibrary(a.PlatformBits)
	if info, err := os.Stat(filepath.Join(libDir, lib+".lib")); err != nil || info.IsDir() {
		return &Error{
			Op: "locate clang libraries",
			Detail: fmt.Sprintf("%s.lib could not be found in %s; it supplies built-ins clang-cl uses that are not part of MSVC",
				lib, libDir),
			Err: ErrMissingLibrary,
		}
	}
	tc.AddLibrary(lib)
	a.logf("  [clang-cl] Linking %s from %s\n", lib, libDir)
	return nil
}

func (a *Adapter) blocked() []string {
	if a.BlockedIncludes != nil {
		return a.BlockedIncludes
	}
	return DefaultBlockedIncludes
}

func (a *Adapter) logf(format string, args ...any) {
	if !a.Verbose {
		return
	}
	w := a.Log
	if w == nil {
		w = os.Stderr
	}
	fmt.Fprintf(w, format, args...)
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

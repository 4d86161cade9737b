package msvc

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding/unicode"

	"github.com/StinkyLord/clangcl-adapter/internal/model"
	"github.com/StinkyLord/clangcl-adapter/internal/runner"
)

// Loader produces the developer environment for a vcvarsall platform spec.
type Loader interface {
	Load(ctx context.Context, platSpec string) (model.Env, error)
}

// StaticLoader returns an environment that is already activated, e.g. a
// "Developer Command Prompt" or a CI image with INCLUDE/LIB preset.
type StaticLoader struct {
	Env model.Env
}

func (l StaticLoader) Load(context.Context, string) (model.Env, error) {
	return l.Env.Clone(), nil
}

// VCVarsLoader runs vcvarsall.bat and captures the environment it leaves
// behind. The command line is handed to cmd.exe as is:
//
//	cmd.exe /u /c ""<vcvarsall.bat>" <platSpec> && set"
type VCVarsLoader struct {
	Path   string           // vcvarsall.bat
	Runner runner.RawRunner // defaults to runner.OSRunner{}
	Env    model.Env        // environment the batch file starts from
}

// VCVarsCmdLine returns the cmd.exe command line that runs vcvarsall and
// dumps the resulting environment. cmd.exe strips the outer pair of quotes
// and keeps the quotes around the batch file path.
func VCVarsCmdLine(vcvarsall, platSpec string) string {
	return fmt.Sprintf(`cmd.exe /u /c ""%s" %s && set"`, vcvarsall, platSpec)
}

func (l VCVarsLoader) Load(ctx context.Context, platSpec string) (model.Env, error) {
	if _, err := os.Stat(l.Path); err != nil {
		return model.Env{}, fmt.Errorf("vcvarsall.bat not found at %q: %w", l.Path, err)
	}
	r := l.Runner
	if r == nil {
		r = runner.OSRunner{}
	}

	var env []string
	if l.Env.Len() > 0 {
		env = l.Env.Environ()
	}
	out, err := runner.RawOutput(ctx, r, "cmd.exe", VCVarsCmdLine(l.Path, platSpec), env)
	if err != nil {
		return model.Env{}, fmt.Errorf("running vcvarsall.bat %s: %w", platSpec, err)
	}

	vc := ParseSetOutput(DecodeConsole([]byte(out)))
	if _, ok := vc.Lookup("INCLUDE"); !ok {
		return model.Env{}, fmt.Errorf("vcvarsall.bat %s did not set INCLUDE; is the C++ workload installed?", platSpec)
	}
	return vc, nil
}

// DecodeConsole converts the output of `cmd /u` (UTF-16LE) to a string.
// Output that is not UTF-16 is returned unchanged.
func DecodeConsole(b []byte) string {
	if len(b) < 2 || bytes.IndexByte(b, 0) < 0 {
		return string(b)
	}
	dec := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()
	s, err := dec.Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(s)
}

// ParseSetOutput parses the KEY=VALUE lines printed by `set`. Banner lines
// printed by vcvarsall.bat before the dump are ignored.
func ParseSetOutput(out string) model.Env {
	var env model.Env
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, "\r")
		k, v, ok := strings.Cut(line, "=")
		if !ok || k == "" || strings.ContainsAny(k, " \t*[") {
			continue
		}
		env.Set(k, v)
	}
	return env
}

// vswhereArgs select the newest Visual Studio with the x86/x64 C++ tools.
var vswhereArgs = []string{
	"-latest", "-prefer",
	"-requires", "Microsoft.VisualStudio.Component.VC.Tools.x86.x64",
	"-property", "installationPath",
	"-products", "*",
}

// FindVCVarsAll locates vcvarsall.bat through vswhere.exe.
func FindVCVarsAll(ctx context.Context, r runner.Runner, env model.Env) (string, error) {
	root := env.Get("ProgramFiles(x86)")
	if root == "" {
		root = env.Get("ProgramFiles")
	}
	if root == "" {
		return "", fmt.Errorf("cannot locate vswhere.exe: ProgramFiles(x86) is not set")
	}
	vswhere := filepath.Join(root, "Microsoft Visual Studio", "Installer", "vswhere.exe")
	if _, err := os.Stat(vswhere); err != nil {
		return "", fmt.Errorf("vswhere.exe not found at %q: %w", vswhere, err)
	}

	out, err := runner.Output(ctx, r, append([]string{vswhere}, vswhereArgs...), env.Environ())
	if err != nil {
		return "", fmt.Errorf("running vswhere.exe: %w", err)
	}
	install := strings.TrimSpace(out)
	if install == "" {
		return "", fmt.Errorf("vswhere.exe found no Visual Studio with C++ build tools")
	}

	vcvarsall := filepath.Join(install, "VC", "Auxiliary", "Build", "vcvarsall.bat")
	if _, err := os.Stat(vcvarsall); err != nil {
		return "", fmt.Errorf("vcvarsall.bat not found at %q: %w", vcvarsall, err)
	}
	return vcvarsall, nil
}

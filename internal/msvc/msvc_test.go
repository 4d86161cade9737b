package msvc

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/unicode"

	"github.com/StinkyLord/clangcl-adapter/internal/model"
	"github.com/StinkyLord/clangcl-adapter/internal/pathlist"
	"github.com/StinkyLord/clangcl-adapter/internal/runner"
)

// recordingRunner returns a canned result and remembers the last command.
type recordingRunner struct {
	stdout  string
	err     error
	command []string
	cmdLine string
	env     []string
}

func (r *recordingRunner) Run(_ context.Context, command []string, env []string) (*runner.Result, error) {
	r.command = command
	r.env = env
	if r.err != nil {
		return &runner.Result{ExitCode: 1}, r.err
	}
	return &runner.Result{Stdout: r.stdout}, nil
}

func (r *recordingRunner) RunRaw(_ context.Context, exe, cmdLine string, env []string) (*runner.Result, error) {
	r.cmdLine = cmdLine
	return r.Run(context.Background(), []string{exe}, env)
}

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, nil, 0644))
}

func encodeUTF16(t *testing.T, s string) []byte {
	t.Helper()
	b, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder().Bytes([]byte(s))
	require.NoError(t, err)
	return b
}

func TestPlatSpec(t *testing.T) {
	assert.Equal(t, "x86", PlatSpec(32))
	assert.Equal(t, "x86_amd64", PlatSpec(64))
}

func TestDefaults_ReturnsFreshSlices(t *testing.T) {
	a := Defaults(64)
	a.CompileOptions[0] = "/changed"

	b := Defaults(64)
	assert.Equal(t, "/nologo", b.CompileOptions[0])
	assert.Contains(t, b.CompileOptions, "/Ox")
	assert.Contains(t, b.CompileOptions, "/GL")
	assert.Contains(t, b.CompileOptionsDebug, "/Zi")
}

func TestFindExe(t *testing.T) {
	dir1 := t.TempDir()
	dir2 := t.TempDir()
	touch(t, filepath.Join(dir2, "clang-cl.exe"))
	// A directory with the executable's name must not match.
	require.NoError(t, os.Mkdir(filepath.Join(dir1, "clang-cl.exe"), 0755))

	got := FindExe("clang-cl.exe", pathlist.Join([]string{dir1, dir2}))
	assert.Equal(t, filepath.Join(dir2, "clang-cl.exe"), got)

	assert.Empty(t, FindExe("clang-cl.exe", dir1))
	assert.Empty(t, FindExe("clang-cl.exe", ""))
}

func TestBase_Initialize_SeedsDirsFromEnv(t *testing.T) {
	bin := t.TempDir()
	touch(t, filepath.Join(bin, Compiler))

	env := model.NewEnv([]string{
		"PATH=" + bin,
		"INCLUDE=" + pathlist.Join([]string{"/vc/include", "/kits/ucrt", "/vc/include"}),
		"LIB=" + pathlist.Join([]string{"/vc/lib"}),
	})
	var log bytes.Buffer
	base := &Base{Bits: 64, Loader: StaticLoader{Env: env}, Verbose: true, Log: &log}

	tc, err := base.Initialize(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"/vc/include", "/kits/ucrt"}, tc.IncludeDirs)
	assert.Equal(t, []string{"/vc/lib"}, tc.LibraryDirs)
	assert.Equal(t, filepath.Join(bin, Compiler), tc.Compiler)
	assert.Equal(t, "x86_amd64", tc.PlatSpec)
	assert.Equal(t, bin, tc.Env.Get("path"))
	assert.Contains(t, log.String(), "[msvc]")
}

func TestBase_Initialize_NoLoader(t *testing.T) {
	_, err := (&Base{Bits: 64}).Initialize(context.Background())
	assert.Error(t, err)
}

func TestStaticLoader_ReturnsCopy(t *testing.T) {
	env := model.NewEnv([]string{"LIB=/a"})
	got, err := StaticLoader{Env: env}.Load(context.Background(), "x86")
	require.NoError(t, err)

	got.Set("LIB", "/b")
	assert.Equal(t, "/a", env.Get("LIB"))
}

func TestParseSetOutput(t *testing.T) {
	out := "**********\r\n" +
		"** Visual Studio 2022 Developer Command Prompt v17.8\r\n" +
		"[vcvarsall.bat] Environment initialized for: 'x64'\r\n" +
		"INCLUDE=C:\\VC\\include;C:\\Kits\\ucrt\r\n" +
		"LIB=C:\\VC\\lib\\x64\r\n" +
		"ProgramFiles(x86)=C:\\Program Files (x86)\r\n" +
		"Path=C:\\VC\\bin\r\n"

	env := ParseSetOutput(out)

	assert.Equal(t, `C:\VC\include;C:\Kits\ucrt`, env.Get("INCLUDE"))
	assert.Equal(t, `C:\VC\lib\x64`, env.Get("lib"))
	assert.Equal(t, `C:\Program Files (x86)`, env.Get("ProgramFiles(x86)"))
	assert.Equal(t, `C:\VC\bin`, env.Get("PATH"))
	assert.Equal(t, 4, env.Len())
}

func TestDecodeConsole(t *testing.T) {
	assert.Equal(t, "LIB=x\r\n", DecodeConsole(encodeUTF16(t, "LIB=x\r\n")))
	assert.Equal(t, "plain ascii", DecodeConsole([]byte("plain ascii")))
}

func TestVCVarsLoader_Load(t *testing.T) {
	vcvarsall := filepath.Join(t.TempDir(), "vcvarsall.bat")
	touch(t, vcvarsall)
	r := &recordingRunner{stdout: string(encodeUTF16(t, "INCLUDE=C:\\inc\r\nLIB=C:\\lib\r\n"))}

	env, err := VCVarsLoader{Path: vcvarsall, Runner: r, Env: model.NewEnv([]string{"A=1"})}.Load(context.Background(), "x86")

	require.NoError(t, err)
	assert.Equal(t, `C:\inc`, env.Get("INCLUDE"))
	assert.Equal(t, `C:\lib`, env.Get("LIB"))
	assert.Equal(t, []string{"cmd.exe"}, r.command)
	assert.Equal(t, `cmd.exe /u /c ""`+vcvarsall+`" x86 && set"`, r.cmdLine)
	assert.Equal(t, []string{"A=1"}, r.env)
}

func TestVCVarsCmdLine_PathWithSpaces(t *testing.T) {
	path := `C:\Program Files\Microsoft Visual Studio\2022\Community\VC\Auxiliary\Build\vcvarsall.bat`

	line := VCVarsCmdLine(path, "x86_amd64")

	assert.Equal(t,
		`cmd.exe /u /c ""C:\Program Files\Microsoft Visual Studio\2022\Community\VC\Auxiliary\Build\vcvarsall.bat" x86_amd64 && set"`,
		line)
	assert.NotContains(t, line, `\"`)
}

func TestVCVarsLoader_MissingBatchFile(t *testing.T) {
	_, err := VCVarsLoader{Path: filepath.Join(t.TempDir(), "nope.bat")}.Load(context.Background(), "x86")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestVCVarsLoader_NoInclude(t *testing.T) {
	vcvarsall := filepath.Join(t.TempDir(), "vcvarsall.bat")
	touch(t, vcvarsall)
	r := &recordingRunner{stdout: "PATH=C:\\bin\r\n"}

	_, err := VCVarsLoader{Path: vcvarsall, Runner: r}.Load(context.Background(), "x86")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "did not set INCLUDE")
}

func TestVCVarsLoader_RunnerFailure(t *testing.T) {
	vcvarsall := filepath.Join(t.TempDir(), "vcvarsall.bat")
	touch(t, vcvarsall)
	boom := errors.New("boom")

	_, err := VCVarsLoader{Path: vcvarsall, Runner: &recordingRunner{err: boom}}.Load(context.Background(), "x86")

	assert.ErrorIs(t, err, boom)
}

func TestFindVCVarsAll(t *testing.T) {
	pf := t.TempDir()
	vswhere := filepath.Join(pf, "Microsoft Visual Studio", "Installer", "vswhere.exe")
	touch(t, vswhere)
	install := filepath.Join(pf, "Microsoft Visual Studio", "2022", "BuildTools")
	vcvarsall := filepath.Join(install, "VC", "Auxiliary", "Build", "vcvarsall.bat")
	touch(t, vcvarsall)

	r := &recordingRunner{stdout: install + "\r\n"}
	got, err := FindVCVarsAll(context.Background(), r, model.NewEnv([]string{"ProgramFiles(x86)=" + pf}))

	require.NoError(t, err)
	assert.Equal(t, vcvarsall, got)
	assert.Equal(t, vswhere, r.command[0])
	assert.Contains(t, r.command, "installationPath")
}

func TestFindVCVarsAll_NoProgramFiles(t *testing.T) {
	_, err := FindVCVarsAll(context.Background(), &recordingRunner{}, model.Env{})
	assert.Error(t, err)
}

package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/StinkyLord/clangcl-adapter/internal/clangcl"
	"github.com/StinkyLord/clangcl-adapter/internal/compiledb"
	"github.com/StinkyLord/clangcl-adapter/internal/config"
	"github.com/StinkyLord/clangcl-adapter/internal/model"
	"github.com/StinkyLord/clangcl-adapter/internal/msvc"
	"github.com/StinkyLord/clangcl-adapter/internal/output"
	"github.com/StinkyLord/clangcl-adapter/internal/runner"
)

const toolVersion = "1.0.0"

var (
	flagConfig    string
	flagVerbose   bool
	flagSet       []string
	flagBits      int
	flagVCVarsAll string

	flagOutput string
	flagFormat string

	flagDebug     bool
	flagOutDir    string
	flagCompileDB string
)

var rootCmd = &cobra.Command{
	Use:   "clangcl-adapter",
	Short: "Drive clang-cl through an MSVC toolchain setup",
	Long: `clangcl-adapter configures clang-cl.exe as a drop-in replacement for the
MSVC compiler cl.exe while keeping objects link-compatible with the MSVC
runtime.

Initialization:
  • captures the caller's INCLUDE and LIB lists
  • loads the MSVC developer environment (vcvarsall.bat or the current shell)
  • locates clang-cl.exe on PATH and checks its version and target
  • rewrites cl.exe options clang-cl rejects (/GL, /Ox) and silences
    MSVC-header warnings
  • puts clang's own headers first and drops vendor headers that break clang
  • links clang_rt.builtins on 32-bit targets`,
	SilenceUsage: true,
}

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Resolve the clang-cl toolchain and print it",
	Long: `Resolve the clang-cl toolchain and write it as JSON, YAML or a cmd.exe
script setting INCLUDE, LIB, CC and CL.

Examples:
  clangcl-adapter configure
  clangcl-adapter configure --bits 32 --format bat --output clang-env.bat
  clangcl-adapter configure --set blocked_includes=MSVC --format yaml`,
	Args: cobra.NoArgs,
	RunE: runConfigure,
}

var compileCmd = &cobra.Command{
	Use:   "compile <source>...",
	Short: "Compile C/C++ sources with the resolved clang-cl toolchain",
	Long: `Compile each source to an object file with clang-cl and record the
invocations in a compile_commands.json database.

Examples:
  clangcl-adapter compile src/foo.c src/bar.cpp --out-dir build
  clangcl-adapter compile src/foo.c --debug --compile-db ""`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCompile,
}

var initConfigCmd = &cobra.Command{
	Use:   "init-config",
	Short: "Write the default configuration file",
	Args:  cobra.NoArgs,
	RunE:  runInitConfig,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "clangcl-adapter v%s\n", toolVersion)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flagConfig, "config", "c", "", "Config file (default ~/.config/clangcl-adapter/config.yaml)")
	pf.BoolVarP(&flagVerbose, "verbose", "v", false, "Enable verbose output")
	pf.StringArrayVar(&flagSet, "set", nil, "Override a config key, e.g. --set platform_bits=32 (repeatable)")
	pf.IntVar(&flagBits, "bits", 0, "Target bit width: 32 or 64 (default from config)")
	pf.StringVar(&flagVCVarsAll, "vcvarsall", "", "Path to vcvarsall.bat (default: current environment or vswhere)")

	configureCmd.Flags().StringVarP(&flagOutput, "output", "o", "-", "Output file path (use '-' for stdout)")
	configureCmd.Flags().StringVarP(&flagFormat, "format", "f", output.FormatJSON, "Output format: json, yaml, bat")

	compileCmd.Flags().BoolVar(&flagDebug, "debug", false, "Use the debug option list")
	compileCmd.Flags().StringVar(&flagOutDir, "out-dir", ".", "Directory for object files")
	compileCmd.Flags().StringVar(&flagCompileDB, "compile-db", compiledb.FileName,
		"Compilation database to update (empty to skip)")

	rootCmd.AddCommand(configureCmd, compileCmd, initConfigCmd, versionCmd)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig applies, in increasing precedence: defaults, config file,
// --set overrides, dedicated flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyOverrides(flagSet); err != nil {
		return nil, err
	}
	if flagBits != 0 {
		cfg.PlatformBits = flagBits
	}
	if flagVCVarsAll != "" {
		cfg.VCVarsAll = flagVCVarsAll
	}
	if flagVerbose {
		cfg.Verbose = true
	}
	return cfg, cfg.Validate()
}

// loaderFor picks where the MSVC developer environment comes from.
func loaderFor(ctx context.Context, cfg *config.Config, prior model.Env, r runner.OSRunner) msvc.Loader {
	if cfg.VCVarsAll != "" {
		return msvc.VCVarsLoader{Path: cfg.VCVarsAll, Runner: r, Env: prior}
	}
	// Outside a developer prompt on Windows, ask vswhere for Visual Studio.
	if runtime.GOOS == "windows" && prior.Get("INCLUDE") == "" {
		if path, err := msvc.FindVCVarsAll(ctx, r, prior); err == nil {
			if cfg.Verbose {
				fmt.Fprintf(os.Stderr, "  [msvc] Found %s\n", path)
			}
			return msvc.VCVarsLoader{Path: path, Runner: r, Env: prior}
		} else if cfg.Verbose {
			fmt.Fprintf(os.Stderr, "  [msvc] %v; using the current environment\n", err)
		}
	}
	return msvc.StaticLoader{Env: prior}
}

func resolveToolchain(ctx context.Context, cfg *config.Config) (*model.Toolchain, error) {
	prior := model.OSEnv()
	r := runner.OSRunner{}

	base := &msvc.Base{
		Bits:    cfg.PlatformBits,
		Loader:  loaderFor(ctx, cfg, prior, r),
		Verbose: cfg.Verbose,
	}
	adapter := clangcl.New(cfg.PlatformBits)
	adapter.Compiler = cfg.Compiler
	adapter.BlockedIncludes = cfg.BlockedIncludes
	adapter.ExtraCompileOptions = cfg.ExtraCompileOptions
	adapter.AlwaysLinkBuiltins = cfg.AlwaysLinkBuiltins
	adapter.ExemptClangInclude = cfg.ExemptClangInclude
	adapter.Runner = r
	adapter.Verbose = cfg.Verbose

	tc, err := adapter.Initialize(ctx, base, prior)
	if err != nil {
		return nil, fmt.Errorf("clang-cl initialization failed: %w", err)
	}
	return tc, nil
}

func runConfigure(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Verbose {
		fmt.Fprintf(os.Stderr, "clangcl-adapter v%s\n", toolVersion)
	}

	tc, err := resolveToolchain(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	if err := output.Write(tc, flagOutput, flagFormat); err != nil {
		return fmt.Errorf("failed to write toolchain: %w", err)
	}
	if flagOutput != "-" {
		fmt.Fprintf(os.Stderr, "Toolchain written to: %s\n", flagOutput)
	}
	return nil
}

func runCompile(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	tc, err := resolveToolchain(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("cannot determine working directory: %w", err)
	}
	units, err := planCompile(args, flagOutDir)
	if err != nil {
		return err
	}

	// The database records every source compiled before a failure.
	entries, compileErr := compileUnits(cmd.Context(), runner.OSRunner{}, tc, cwd, units, flagDebug, cfg.Verbose)

	if flagCompileDB != "" && len(entries) > 0 {
		dbPath, err := filepath.Abs(flagCompileDB)
		if err != nil {
			return fmt.Errorf("cannot resolve %q: %w", flagCompileDB, err)
		}
		if err := compiledb.Update(dbPath, entries); err != nil {
			return fmt.Errorf("failed to update compilation database: %w", err)
		}
		if cfg.Verbose {
			fmt.Fprintf(os.Stderr, "Compilation database updated: %s\n", dbPath)
		}
	}
	if compileErr != nil {
		return compileErr
	}

	fmt.Fprintf(os.Stderr, "Compiled %d source(s)\n", len(entries))
	return nil
}

// compileUnit is one source and the object it compiles to.
type compileUnit struct {
	src string
	obj string
}

// planCompile assigns an object file to every source and rejects sources
// that would overwrite each other's object.
func planCompile(srcs []string, outDir string) ([]compileUnit, error) {
	owner := make(map[string]string, len(srcs))
	units := make([]compileUnit, 0, len(srcs))
	for _, src := range srcs {
		obj := model.ObjectName(src, outDir)
		key := filepath.Clean(obj)
		if runtime.GOOS == "windows" {
			key = strings.ToLower(key)
		}
		if prev, ok := owner[key]; ok {
			if filepath.Clean(prev) == filepath.Clean(src) {
				continue
			}
			return nil, fmt.Errorf("%s and %s would both compile to %s", prev, src, obj)
		}
		owner[key] = src
		units = append(units, compileUnit{src: src, obj: obj})
	}
	return units, nil
}

// compileUnits runs the compiler once per unit and stops at the first
// failure. It returns the database entries of the units that compiled.
func compileUnits(ctx context.Context, r runner.Runner, tc *model.Toolchain, cwd string,
	units []compileUnit, debug, verbose bool) ([]compiledb.Command, error) {
	var entries []compiledb.Command
	for _, u := range units {
		if err := os.MkdirAll(filepath.Dir(u.obj), 0755); err != nil {
			return entries, fmt.Errorf("cannot create %q: %w", filepath.Dir(u.obj), err)
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "  [compile] %s -> %s\n", u.src, u.obj)
		}

		compileArgs := tc.CompileArgs(u.src, u.obj, debug)
		res, err := r.Run(ctx, append([]string{tc.Compiler}, compileArgs...), tc.Env.Environ())
		if res != nil {
			// clang-cl reports diagnostics on stdout like cl.exe does.
			fmt.Fprint(os.Stderr, res.Stdout, res.Stderr)
		}
		if err != nil {
			return entries, fmt.Errorf("compiling %s: %w", u.src, err)
		}
		entries = append(entries, compiledb.NewCommand(cwd, tc.Compiler, compileArgs, u.src, u.obj))
	}
	return entries, nil
}

func runInitConfig(cmd *cobra.Command, args []string) error {
	path := flagConfig
	if path == "" {
		path = config.DefaultPath()
		if path == "" {
			return fmt.Errorf("cannot determine home directory; pass --config")
		}
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}

	cfg := config.DefaultConfig()
	if err := cfg.ApplyOverrides(flagSet); err != nil {
		return err
	}
	if err := config.Save(cfg, path); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Config written to: %s\n", path)
	return nil
}

package clangcl

import (
	"strings"
)

// ParseVersion extracts the version from `clang-cl --version` output: the
// text following the first "version" up to the end of that line, trimmed.
// It returns "" when there is no such token.
//
//	clang version 17.0.6
//	Target: x86_64-pc-windows-msvc
func ParseVersion(out string) string {
	loc := strings.Index(out, "version")
	if loc < 0 {
		return ""
	}
	rest := out[loc+len("version"):]
	line, _, _ := strings.Cut(rest, "\n")
	return strings.TrimSpace(line)
}

// MajorVersion returns the leading numeric component of a version, e.g. "17"
// for "17.0.6" or "14" for "14.0.0-1ubuntu1".
func MajorVersion(version string) string {
	end := 0
	for end < len(version) && version[end] >= '0' && version[end] <= '9' {
		end++
	}
	return version[:end]
}

// TargetArch is the token the compiler's target triple must contain.
func TargetArch(bits int) string {
	if bits == 32 {
		return "i686"
	}
	return "x86_64"
}

// BuiltinsArch is the architecture suffix of the clang_rt.builtins library.
func BuiltinsArch(bits int) string {
	if bits == 64 {
		return "x86_64"
	}
	return "i386"
}

// BuiltinsLibrary is the name of the compiler runtime support library.
func BuiltinsLibrary(bits int) string {
	return "clang_rt.builtins-" + BuiltinsArch(bits)
}

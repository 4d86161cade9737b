package model

import (
	"os"
	"sort"
	"strings"
)

// Env is an explicit process environment. Lookups are case-insensitive the
// way they are on Windows, so "lib", "Lib" and "LIB" name the same variable.
// The casing of the first Set wins when the environment is exported.
type Env struct {
	vars map[string]envVar
}

type envVar struct {
	key   string
	value string
}

// NewEnv builds an Env from KEY=VALUE pairs as returned by os.Environ.
// Malformed entries without '=' are ignored.
func NewEnv(pairs []string) Env {
	e := Env{vars: make(map[string]envVar, len(pairs))}
	for _, kv := range pairs {
		// Windows keeps per-drive cwd entries like "=C:=C:\dir"; skip them.
		if strings.HasPrefix(kv, "=") {
			continue
		}
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		e.Set(k, v)
	}
	return e
}

// OSEnv snapshots the current process environment.
func OSEnv() Env {
	return NewEnv(os.Environ())
}

// Get returns the value of key, or "" when it is unset.
func (e Env) Get(key string) string {
	return e.vars[strings.ToUpper(key)].value
}

// Lookup is like Get but also reports whether key is set.
func (e Env) Lookup(key string) (string, bool) {
	v, ok := e.vars[strings.ToUpper(key)]
	return v.value, ok
}

// Set assigns key. Setting a key on the zero Env allocates its map.
func (e *Env) Set(key, value string) {
	if e.vars == nil {
		e.vars = make(map[string]envVar)
	}
	norm := strings.ToUpper(key)
	if cur, ok := e.vars[norm]; ok {
		key = cur.key
	}
	e.vars[norm] = envVar{key: key, value: value}
}

// Clone returns an independent copy.
func (e Env) Clone() Env {
	c := Env{vars: make(map[string]envVar, len(e.vars))}
	for k, v := range e.vars {
		c.vars[k] = v
	}
	return c
}

// Len returns the number of variables.
func (e Env) Len() int { return len(e.vars) }

// Environ returns the environment as sorted KEY=VALUE pairs, suitable for
// exec.Cmd.Env.
func (e Env) Environ() []string {
	out := make([]string, 0, len(e.vars))
	for _, v := range e.vars {
		out = append(out, v.key+"="+v.value)
	}
	sort.Strings(out)
	return out
}

// Map returns the variables keyed by their exported casing.
func (e Env) Map() map[string]string {
	out := make(map[string]string, len(e.vars))
	for _, v := range e.vars {
		out[v.key] = v.value
	}
	return out
}

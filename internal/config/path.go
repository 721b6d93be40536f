package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PathGate decides whether a candidate path names a usable config file.
type PathGate struct {
	normalize func(string) (string, error)
	stat      func(string) (os.FileInfo, error)
}

// NewPathGate returns a gate using filepath normalization and os.Stat.
func NewPathGate() *PathGate {
	return &PathGate{normalize: normalizePath, stat: os.Stat}
}

// WithNormalizer returns a copy of the gate using fn to normalize paths.
func (g *PathGate) WithNormalizer(fn func(string) (string, error)) *PathGate {
	cp := *g
	cp.normalize = fn
	return &cp
}

// Valid reports whether path is non-empty, normalizes cleanly, exists, is a
// regular file and carries the .ef extension in any case. It never panics.
func (g *PathGate) Valid(path string) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()

	if path == "" {
		return false
	}
	norm, err := g.normalize(path)
	if err != nil || norm == "" {
		return false
	}
	info, err := g.stat(norm)
	if err != nil {
		return false
	}
	if !info.Mode().IsRegular() {
		return false
	}
	return strings.EqualFold(filepath.Ext(norm), Extension)
}

// ValidateFilePath applies the default PathGate to path.
func ValidateFilePath(path string) bool {
	return NewPathGate().Valid(path)
}

func normalizePath(path string) (string, error) {
	if strings.ContainsRune(path, 0) {
		return "", fmt.Errorf("path contains NUL byte")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", path, err)
	}
	return filepath.Clean(abs), nil
}

func isAbs(p string) bool { return filepath.IsAbs(p) }

func joinDir(source, rel string) string {
	return filepath.Join(filepath.Dir(source), rel)
}

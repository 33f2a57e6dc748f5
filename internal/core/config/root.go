package config

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	apperrors "linkgraph/internal/core/errors"
)

const (
	EnvRoot       = "LINKGRAPH_ROOT"
	EnvLegacyRoot = "CPPROOT"
)

// ResolveRoot picks the project root. An explicit flag or paths.root must
// exist; the environment and $HOME/src fallbacks are skipped when they do not
// resolve to a directory.
func ResolveRoot(flagRoot string, cfg *Config) (string, error) {
	explicit := strings.TrimSpace(flagRoot)
	if explicit == "" && cfg != nil {
		explicit = cfg.Paths.Root
	}
	if explicit != "" {
		root, err := realDir(explicit)
		if err != nil {
			return "", apperrors.AddContext(apperrors.Wrap(err, apperrors.CodeUsage, "project root does not exist"), apperrors.CtxPath, explicit)
		}
		return root, nil
	}

	candidates := make([]string, 0, 3)
	for _, key := range []string{EnvRoot, EnvLegacyRoot} {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			candidates = append(candidates, v)
		}
	}
	if home := homeDir(); home != "" {
		candidates = append(candidates, filepath.Join(home, "src"))
	}

	for _, c := range candidates {
		if root, err := realDir(c); err == nil {
			return root, nil
		}
	}
	return "", apperrors.New(apperrors.CodeUsage,
		fmt.Sprintf("could not resolve a project root: set --root, paths.root, %s or %s, or create $HOME/src", EnvRoot, EnvLegacyRoot))
}

func realDir(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(real)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%q is not a directory", real)
	}
	return real, nil
}

func homeDir() string {
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return home
	}
	if u, err := user.Current(); err == nil {
		return u.HomeDir
	}
	return ""
}

// ResolveRelative joins path onto base unless path is already absolute.
func ResolveRelative(base, path string) string {
	path = strings.TrimSpace(path)
	if path == "" || filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(base, path)
}

package loader

import (
	"fmt"
	"os"
	"path/filepath"

	apperrors "linkgraph/internal/core/errors"
	"linkgraph/internal/shared/util"

	"github.com/gobwas/glob"
)

// compilePatterns compiles exclusion globs, reporting the first bad pattern.
func compilePatterns(kind string, patterns []string) ([]glob.Glob, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeUsage, fmt.Sprintf("invalid exclude %s pattern %q", kind, p))
		}
		globs = append(globs, g)
	}
	return globs, nil
}

func matchesAny(globs []glob.Glob, name string) bool {
	for _, g := range globs {
		if g.Match(name) {
			return true
		}
	}
	return false
}

// DiscoverPackages lists the immediate, non-hidden child directories of root
// in directory-listing order, minus those matching excludes.
func DiscoverPackages(root string, excludes []string) ([]string, error) {
	globs, err := compilePatterns("package", excludes)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, apperrors.AddContext(
			apperrors.Wrap(err, apperrors.CodeUsage, "unable to read project root"),
			apperrors.CtxPath, root,
		)
	}

	var pkgs []string
	for _, e := range entries {
		name := e.Name()
		if util.IsHidden(name) {
			continue
		}
		if !isDir(root, e) {
			continue
		}
		if matchesAny(globs, name) {
			continue
		}
		pkgs = append(pkgs, name)
	}
	return pkgs, nil
}

// isDir follows symlinks so linked package directories are discovered.
func isDir(root string, e os.DirEntry) bool {
	if e.IsDir() {
		return true
	}
	if e.Type()&os.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(filepath.Join(root, e.Name()))
	return err == nil && info.IsDir()
}

// SourceFilter selects compilable files inside one package directory.
type SourceFilter struct {
	SourceSuffixes []string
	HeaderSuffixes []string
	excludes       []glob.Glob
}

func NewSourceFilter(sourceSuffixes, headerSuffixes, excludes []string) (*SourceFilter, error) {
	globs, err := compilePatterns("file", excludes)
	if err != nil {
		return nil, err
	}
	return &SourceFilter{
		SourceSuffixes: sourceSuffixes,
		HeaderSuffixes: headerSuffixes,
		excludes:       globs,
	}, nil
}

func (f *SourceFilter) IsHeaderFile(name string) bool {
	_, ok := util.MatchSuffix(name, f.HeaderSuffixes)
	return ok
}

// SourceSuffix returns the source suffix name carries, if it is a source.
func (f *SourceFilter) SourceSuffix(name string) (string, bool) {
	if f.IsHeaderFile(name) {
		return "", false
	}
	return util.MatchSuffix(name, f.SourceSuffixes)
}

// excluded matches patterns against the base name, or against the
// package-relative path when the pattern names a directory.
func (f *SourceFilter) excluded(pkg, name string) bool {
	return matchesAny(f.excludes, name) || matchesAny(f.excludes, util.NormalizePatternPath(pkg+"/"+name))
}

// ListSources returns the source files directly inside dir, non-recursively,
// in directory-listing order. Two sources that differ only in their suffix
// would compile to the same object and are a USAGE error.
func (f *SourceFilter) ListSources(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, apperrors.AddContext(
			apperrors.Wrap(err, apperrors.CodeUsage, "unable to read package directory"),
			apperrors.CtxPath, dir,
		)
	}

	pkg := filepath.Base(dir)
	var sources []string
	stems := make(map[string]string)
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || util.IsHidden(name) {
			continue
		}
		suffix, ok := f.SourceSuffix(name)
		if !ok {
			continue
		}
		if f.excluded(pkg, name) {
			continue
		}
		stem := util.TrimLastSuffix(name, suffix)
		if prev, dup := stems[stem]; dup {
			return nil, apperrors.AddContext(
				apperrors.New(apperrors.CodeUsage, fmt.Sprintf("sources %s and %s compile to the same object", prev, name)),
				apperrors.CtxPath, dir,
			)
		}
		stems[stem] = name
		sources = append(sources, filepath.Join(dir, name))
	}
	return sources, nil
}

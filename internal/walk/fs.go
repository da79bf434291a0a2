package walk

import (
	"context"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Extensions flow checks by default.
var Extensions = []string{".js", ".jsx", ".mjs", ".cjs"}

// directories never holding project sources
var skipDirs = []string{"node_modules", "flow-typed"}

// Sources is a convenience wrapper around FS for a directory on disk.
// Yielded paths are absolute.
func Sources(ctx context.Context, dir string, exts []string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		abs, err := filepath.Abs(dir)
		if err != nil {
			yield(dir, err)
			return
		}
		root, err := os.OpenRoot(abs)
		if err != nil {
			yield(abs, err)
			return
		}
		defer func() { _ = root.Close() }()
		for path, err := range FS(ctx, root.FS(), abs, exts) {
			if !yield(path, err) {
				return
			}
		}
	}
}

// FS recursively walks root and yields the path of every regular file with
// one of exts, prefixed with name. Hidden directories and dependency
// directories like node_modules are skipped. It does not follow symlinks.
// An error is yielded together with the path it belongs to and the walk
// continues. A done ctx yields its error once and ends the walk.
func FS(ctx context.Context, root fs.FS, name string, exts []string) iter.Seq2[string, error] {
	if root == nil {
		panic("root is nil")
	}

	return func(yield func(string, error) bool) {
		fn := func(path string, d fs.DirEntry, err error) error {
			if err := ctx.Err(); err != nil {
				yield(filepath.Join(name, filepath.FromSlash(path)), err)
				return fs.SkipAll
			}
			if err != nil {
				if !yield(filepath.Join(name, path), err) {
					return fs.SkipAll
				}
				return nil
			}
			if d.IsDir() {
				if path != "." && skipDir(d.Name()) {
					return fs.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() || !slices.Contains(exts, filepath.Ext(path)) {
				return nil
			}
			if !yield(filepath.Join(name, filepath.FromSlash(path)), nil) {
				return fs.SkipAll
			}
			return nil
		}
		_ = fs.WalkDir(root, ".", fn)
	}
}

func skipDir(name string) bool {
	return strings.HasPrefix(name, ".") || slices.Contains(skipDirs, name)
}

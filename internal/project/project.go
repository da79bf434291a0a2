// Package project answers the questions asked before flow is executed:
// does the project opt in to type checking, and where is the flow binary.
package project

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/zaggino/brackets-flow/internal/model"
)

var ErrNoRoot = errors.New("no flow project found")

// Locator implements service.Locator on top of the local filesystem.
type Locator struct {
	configFile string
	binary     string
}

func NewLocator(cfg model.Flow) Locator {
	l := Locator{configFile: cfg.ConfigFile}
	if l.configFile == "" {
		l.configFile = model.DefaultConfigFile
	}
	if cfg.Binary != nil {
		l.binary = *cfg.Binary
	}
	return l
}

// HasConfig reports whether root contains the flow configuration file.
func (l Locator) HasConfig(root string) bool {
	return isRegular(filepath.Join(root, l.configFile))
}

// Binary returns the flow executable to use for root. An explicitly
// configured binary wins, then the project's node_modules, then $PATH.
func (l Locator) Binary(root string) (string, bool) {
	if l.binary != "" {
		return l.explicit(root)
	}

	local := filepath.Join(root, "node_modules", ".bin", flowName())
	if isRegular(local) {
		return local, true
	}

	path, err := exec.LookPath("flow")
	if err != nil {
		return "", false
	}
	return path, true
}

func (l Locator) explicit(root string) (string, bool) {
	if filepath.IsAbs(l.binary) {
		return l.binary, isRegular(l.binary)
	}
	// bare name: search $PATH as a shell would
	if filepath.Base(l.binary) == l.binary {
		path, err := exec.LookPath(l.binary)
		if err != nil {
			return "", false
		}
		return path, true
	}
	path := filepath.Join(root, l.binary)
	return path, isRegular(path)
}

// FindRoot returns the nearest directory above file holding the flow config.
func (l Locator) FindRoot(file string) (string, error) {
	abs, err := filepath.Abs(file)
	if err != nil {
		return "", err
	}
	dir := filepath.Dir(abs)
	for {
		if l.HasConfig(dir) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrNoRoot
		}
		dir = parent
	}
}

func flowName() string {
	if runtime.GOOS == "windows" {
		return "flow.cmd"
	}
	return "flow"
}

func isRegular(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

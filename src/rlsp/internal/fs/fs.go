package fs

import (
	"os"
	"path/filepath"

	"go.uber.org/fx"
)

const (
	_envDataHome = "XDG_DATA_HOME"
	_appDir      = "rlsp"
)

// Module is the Fx module for this package.
var Module = fx.Provide(New)

// RlspFS will wrap the filesystem operations used by rlsp.
type RlspFS interface {
	UserDataDir() (string, error)
	MkdirAll(path string) error
	FileExists(path string) (bool, error)
	ReadFile(name string) ([]byte, error)
	WriteFile(name string, data string) error
	Rename(oldpath string, newpath string) error
	TempFile(dir string, pattern string) (*os.File, error)
	Remove(name string) error
}

type fsImpl struct{}

// New creates a new RlspFS.
func New() RlspFS {
	return fsImpl{}
}

// UserDataDir returns the per-user directory for persisted rlsp state.
// It follows XDG_DATA_HOME and falls back to ~/.local/share.
func (fsImpl) UserDataDir() (string, error) {
	if dir := os.Getenv(_envDataHome); dir != "" {
		return filepath.Join(dir, _appDir), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "share", _appDir), nil
}

// MkdirAll creates a directory and all its parents.
func (fsImpl) MkdirAll(path string) error { return os.MkdirAll(path, os.ModePerm) }

func (fsImpl) FileExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return !info.IsDir(), nil
}

func (fsImpl) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(name)
}

func (fsImpl) WriteFile(name string, data string) error {
	return os.WriteFile(name, []byte(data), 0644)
}

func (fsImpl) Rename(oldpath string, newpath string) error {
	return os.Rename(oldpath, newpath)
}

func (fsImpl) TempFile(dir string, pattern string) (*os.File, error) {
	return os.CreateTemp(dir, pattern)
}

func (fsImpl) Remove(name string) error {
	return os.Remove(name)
}

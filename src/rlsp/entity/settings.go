package entity

import (
	"fmt"
	"strings"
)

// Backend is one of the supported remote language server implementations.
type Backend string

const (
	// BackendPyright runs pyright-langserver.
	BackendPyright Backend = "pyright"
	// BackendTy runs the ty server.
	BackendTy Backend = "ty"
	// BackendPylsp runs python-lsp-server.
	BackendPylsp Backend = "pylsp"
)

// Backends lists every supported backend.
var Backends = []Backend{BackendPyright, BackendTy, BackendPylsp}

// ParseBackend returns the Backend named by s.
func ParseBackend(s string) (Backend, error) {
	name := Backend(strings.ToLower(strings.TrimSpace(s)))
	for _, b := range Backends {
		if b == name {
			return b, nil
		}
	}
	return "", fmt.Errorf("unknown backend %q, expected one of %v", s, Backends)
}

// Settings is the current selection for one editor session.
type Settings struct {
	// Host is an ssh host alias, empty when unset.
	Host string `json:"host" yaml:"host"`
	// Environment is the root of a virtual environment on Host, never ending in /bin or /bin/python.
	Environment string `json:"environment" yaml:"environment"`
	// WorkspaceRoot is an absolute path on Host, empty to auto-detect.
	WorkspaceRoot string  `json:"workspaceRoot" yaml:"workspaceRoot"`
	Backend       Backend `json:"backend" yaml:"backend"`
	AutoInstall   bool    `json:"autoInstall" yaml:"autoInstall"`
	NotifyOnStart bool    `json:"notifyOnStart" yaml:"notifyOnStart"`
}

// ValidationKey returns the backend|host|environment key the provisioner tracks.
func (s Settings) ValidationKey() string {
	return fmt.Sprintf("%s|%s|%s", s.Backend, s.Host, s.Environment)
}

// ValidationSessionCache short circuits repeated provisioning checks within one editor session.
type ValidationSessionCache struct {
	// LastChecked holds the last key checked, suffixed with MissingSuffix when the check failed.
	LastChecked string
	// Prompted is set while an interactive prompt is in flight and cleared once it is answered.
	Prompted bool
}

// MissingSuffix marks a negative entry in ValidationSessionCache.LastChecked.
const MissingSuffix = ":missing"

// Reset clears the cached result.
func (c *ValidationSessionCache) Reset() {
	c.LastChecked = ""
}

// Package remotepath maps between native paths on a remote host and the
// virtual remote-path URIs that the editor uses to name remote buffers.
package remotepath

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"go.lsp.dev/uri"
)

// DefaultScheme is the scheme used for virtual paths when none is configured.
const DefaultScheme = "scp"

var (
	// ErrNoHost is returned when a native path is translated without a host.
	ErrNoHost = errors.New("virtual path requires a host")
	// ErrNotFileURI is returned when a URI passed for translation is not a file:// URI.
	ErrNotFileURI = errors.New("not a file URI")
)

// Suffixes stripped from an environment path, longest first.
var _environmentSuffixes = []string{"/bin/python3", "/bin/python", "/bin"}

// Translator converts paths for a single virtual path scheme.
type Translator struct {
	Scheme string
}

// New returns a Translator for scheme, or for DefaultScheme when scheme is empty.
func New(scheme string) Translator {
	if scheme == "" {
		scheme = DefaultScheme
	}
	return Translator{Scheme: scheme}
}

func (t Translator) prefix() string {
	return t.Scheme + "://"
}

// ToVirtual returns the virtual URI of path on host.
// Absolute paths use the double slash form scheme://host//path, everything else scheme://host/path.
func (t Translator) ToVirtual(path string, host string) (string, error) {
	if host == "" {
		return "", fmt.Errorf("translating %q: %w", path, ErrNoHost)
	}
	if strings.HasPrefix(path, "/") {
		return t.prefix() + host + "//" + strings.TrimPrefix(path, "/"), nil
	}
	return t.prefix() + host + "/" + path, nil
}

// FromVirtual splits a virtual URI into its host and native absolute path.
// ok is false when v is not a virtual URI of this scheme.
func (t Translator) FromVirtual(v string) (host string, path string, ok bool) {
	rest, found := strings.CutPrefix(v, t.prefix())
	if !found {
		return "", "", false
	}

	host, path, found = strings.Cut(rest, "/")
	if !found || host == "" {
		return "", "", false
	}

	// scheme://host//abs has a leading slash left in path, scheme://host/rel does not.
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return host, path, true
}

// IsVirtual reports whether v is a virtual URI of this scheme.
func (t Translator) IsVirtual(v string) bool {
	_, _, ok := t.FromVirtual(v)
	return ok
}

// FileURIToVirtual rewrites a native file:// URI into a virtual URI on host.
func (t Translator) FileURIToVirtual(fileURI string, host string) (string, error) {
	path, ok := FileURIToPath(fileURI)
	if !ok {
		return "", fmt.Errorf("translating %q: %w", fileURI, ErrNotFileURI)
	}
	return t.ToVirtual(path, host)
}

// VirtualToFileURI rewrites a virtual URI into the file:// URI used by the remote server.
func (t Translator) VirtualToFileURI(v string) (string, bool) {
	_, path, ok := t.FromVirtual(v)
	if !ok {
		return "", false
	}
	return PathToFileURI(path), true
}

// FileURIToPath returns the decoded path of a file:// URI.
func FileURIToPath(fileURI string) (string, bool) {
	u, err := uri.Parse(fileURI)
	if err != nil || !strings.HasPrefix(string(u), uri.FileScheme+":///") {
		return "", false
	}
	// Remote paths are slash separated whatever the local OS.
	return filepath.ToSlash(u.Filename()), true
}

// PathToFileURI returns the file:// URI for a native absolute path.
func PathToFileURI(path string) string {
	return string(uri.File(path))
}

// NormalizeEnvironmentPath returns the virtual environment root that raw points into.
// Surrounding whitespace, trailing slashes and a trailing interpreter or bin directory are removed.
// ok is false for empty input.
func NormalizeEnvironmentPath(raw string) (string, bool) {
	p := strings.TrimSpace(raw)
	if p == "" {
		return "", false
	}

	for {
		prev := p
		p = trimTrailingSlashes(p)
		for _, suffix := range _environmentSuffixes {
			if strings.HasSuffix(p, suffix) {
				p = strings.TrimSuffix(p, suffix)
				break
			}
		}
		if p == "" {
			// Only reachable from an absolute path such as "/bin".
			p = "/"
		}
		if p == prev {
			return p, true
		}
	}
}

func trimTrailingSlashes(p string) string {
	trimmed := strings.TrimRight(p, "/")
	if trimmed == "" && strings.HasPrefix(p, "/") {
		return "/"
	}
	return trimmed
}

// Package identity persists the environments used per host and the environments known to have a working backend.
package identity

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/uber/rlsp/src/rlsp/entity"
	"github.com/uber/rlsp/src/rlsp/internal/errors"
	"github.com/uber/rlsp/src/rlsp/internal/fs"
	"github.com/uber/rlsp/src/rlsp/internal/remotepath"
	"go.uber.org/config"
	"go.uber.org/fx"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	_configKeyDataDir = "identity.dataDir"

	_historyFile    = "environments.json"
	_validationFile = "validated.json"
)

// Module provides the Store.
var Module = fx.Provide(New)

// Store is the durable record of remote identities.
// Reads happen once, lazily. Every mutation is written back on a best effort basis.
type Store interface {
	// Remember moves env to the front of host's history and makes it the last used environment.
	Remember(host string, env string)
	// IsValid reports whether env was validated under key, see ValidationKey.
	IsValid(key string, env string) bool
	// MarkValid records that env has a working backend under key.
	MarkValid(key string, env string)
	// Forget drops env from host's history and validation entries, or the whole host when env is empty.
	Forget(host string, env string)
	// ForgetValidation drops every validated environment under key.
	ForgetValidation(key string)
	// KnownHosts returns every host with a remembered environment, sorted.
	KnownHosts() []string
	// Environments returns host's environments, most recently used first.
	Environments(host string) []string
	// LastEnvironment returns the environment host used last, or "".
	LastEnvironment(host string) string
	// Validated returns the validated environments per key.
	Validated() map[string][]string
}

// ValidationKey returns the key that scopes validation to a backend on a host.
func ValidationKey(backend entity.Backend, host string) string {
	return string(backend) + ":" + host
}

type hostHistory struct {
	Envs    []string `json:"envs"`
	LastEnv string   `json:"last_env"`
}

type store struct {
	mu     sync.Mutex
	once   sync.Once
	fs     fs.RlspFS
	dir    string
	logger *zap.SugaredLogger

	history map[string]*hostHistory
	valid   map[string]map[string]bool
}

// Params are the dependencies of New.
type Params struct {
	fx.In

	FS     fs.RlspFS
	Config config.Provider
	Logger *zap.SugaredLogger
}

// New returns a Store in the configured data directory, or the per-user data directory by default.
func New(p Params) (Store, error) {
	var dir string
	if err := p.Config.Get(_configKeyDataDir).Populate(&dir); err != nil {
		return nil, fmt.Errorf("getting config field %q: %w", _configKeyDataDir, err)
	}
	if dir == "" {
		var err error
		if dir, err = p.FS.UserDataDir(); err != nil {
			return nil, fmt.Errorf("resolving data directory: %w", err)
		}
	}
	return NewInDir(p.FS, dir, p.Logger), nil
}

// NewInDir returns a Store persisted under dir.
func NewInDir(filesystem fs.RlspFS, dir string, logger *zap.SugaredLogger) Store {
	return &store{
		fs:     filesystem,
		dir:    dir,
		logger: logger.Named("identity"),
	}
}

func (s *store) Remember(host string, env string) {
	env, ok := remotepath.NormalizeEnvironmentPath(env)
	if host == "" || !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()

	h, ok := s.history[host]
	if !ok {
		h = &hostHistory{}
		s.history[host] = h
	}
	h.Envs = append([]string{env}, slices.DeleteFunc(h.Envs, func(e string) bool { return e == env })...)
	h.LastEnv = env

	s.report(s.saveHistory())
}

func (s *store) IsValid(key string, env string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()

	return s.valid[key][env]
}

func (s *store) MarkValid(key string, env string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()

	envs, ok := s.valid[key]
	if !ok {
		envs = make(map[string]bool)
		s.valid[key] = envs
	}
	envs[env] = true

	s.report(s.saveValidation())
}

func (s *store) Forget(host string, env string) {
	if host == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()

	if env == "" {
		delete(s.history, host)
		for key := range s.valid {
			if keyHost(key) == host {
				delete(s.valid, key)
			}
		}
		s.report(s.save())
		return
	}

	if normalized, ok := remotepath.NormalizeEnvironmentPath(env); ok {
		env = normalized
	}

	if h, ok := s.history[host]; ok {
		h.Envs = slices.DeleteFunc(h.Envs, func(e string) bool { return e == env })
		if h.LastEnv == env {
			h.LastEnv = ""
			if len(h.Envs) > 0 {
				h.LastEnv = h.Envs[0]
			}
		}
		if len(h.Envs) == 0 {
			delete(s.history, host)
		}
	}
	for key, envs := range s.valid {
		if keyHost(key) != host {
			continue
		}
		delete(envs, env)
		if len(envs) == 0 {
			delete(s.valid, key)
		}
	}
	s.report(s.save())
}

func (s *store) ForgetValidation(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()

	delete(s.valid, key)
	s.report(s.saveValidation())
}

func (s *store) KnownHosts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()

	hosts := make([]string, 0, len(s.history))
	for host := range s.history {
		hosts = append(hosts, host)
	}
	sort.Strings(hosts)
	return hosts
}

func (s *store) Environments(host string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()

	h, ok := s.history[host]
	if !ok {
		return nil
	}
	return slices.Clone(h.Envs)
}

func (s *store) LastEnvironment(host string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()

	if h, ok := s.history[host]; ok {
		return h.LastEnv
	}
	return ""
}

func (s *store) Validated() map[string][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()

	out := make(map[string][]string, len(s.valid))
	for key, envs := range s.valid {
		list := make([]string, 0, len(envs))
		for env, ok := range envs {
			if ok {
				list = append(list, env)
			}
		}
		sort.Strings(list)
		out[key] = list
	}
	return out
}

// ensureLoaded must be called with mu held.
func (s *store) ensureLoaded() {
	s.once.Do(func() {
		history, err := s.loadHistory()
		if err != nil {
			s.logger.Warnw("starting with empty environment history", "error", err)
			history = make(map[string]*hostHistory)
		}
		s.history = history

		valid, err := s.loadValidation()
		if err != nil {
			s.logger.Warnw("starting with empty validation cache", "error", err)
			valid = make(map[string]map[string]bool)
		}
		s.valid = valid
	})
}

// loadHistory returns a CorruptedStoreError for any unreadable document. A missing document is empty.
func (s *store) loadHistory() (map[string]*hostHistory, error) {
	history := make(map[string]*hostHistory)
	if err := s.load(_historyFile, &history); err != nil {
		return nil, err
	}
	for host, h := range history {
		if h == nil {
			delete(history, host)
		}
	}
	return history, nil
}

// loadValidation returns a CorruptedStoreError for any unreadable document. A missing document is empty.
func (s *store) loadValidation() (map[string]map[string]bool, error) {
	valid := make(map[string]map[string]bool)
	if err := s.load(_validationFile, &valid); err != nil {
		return nil, err
	}
	for key, envs := range valid {
		if envs == nil {
			delete(valid, key)
		}
	}
	return valid, nil
}

func (s *store) load(name string, v any) error {
	path := filepath.Join(s.dir, name)
	data, err := s.fs.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return &errors.CorruptedStoreError{Path: path, Err: err}
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &errors.CorruptedStoreError{Path: path, Err: err}
	}
	return nil
}

func (s *store) save() error {
	return multierr.Append(s.saveHistory(), s.saveValidation())
}

func (s *store) saveHistory() error {
	return s.write(_historyFile, s.history)
}

func (s *store) saveValidation() error {
	return s.write(_validationFile, s.valid)
}

// write replaces the document through a rename so a crash never leaves it half written.
func (s *store) write(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling %s: %w", name, err)
	}
	if err := s.fs.MkdirAll(s.dir); err != nil {
		return fmt.Errorf("creating %s: %w", s.dir, err)
	}
	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"
	if err := s.fs.WriteFile(tmp, string(data)); err != nil {
		return fmt.Errorf("writing %s: %w", tmp, err)
	}
	if err := s.fs.Rename(tmp, path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}

// report logs a failed save. Persistence failures never reach the caller.
func (s *store) report(err error) {
	for _, e := range multierr.Errors(err) {
		s.logger.Warnw("persisting identity store", "error", e)
	}
}

func keyHost(key string) string {
	_, host, _ := strings.Cut(key, ":")
	return host
}

// Package sessionconfig holds the host, environment and backend selection of each editor session.
package sessionconfig

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/uber/rlsp/src/rlsp/entity"
	"github.com/uber/rlsp/src/rlsp/internal/remotepath"
	"github.com/uber/rlsp/src/rlsp/repository/identity"
	"go.uber.org/config"
	"go.uber.org/fx"
)

const _configKey = "session"

// Module provides the Factory.
var Module = fx.Provide(NewFactory)

// Defaults are the process wide session defaults, usually expanded from RLSP_* environment variables.
type Defaults struct {
	Host          string `yaml:"host"`
	Environment   string `yaml:"environment"`
	WorkspaceRoot string `yaml:"workspaceRoot"`
	Backend       string `yaml:"backend"`
	AutoInstall   bool   `yaml:"autoInstall"`
	NotifyOnStart bool   `yaml:"notifyOnStart"`
	AllowPrompt   bool   `yaml:"allowPrompt"`
}

// InitializationOptions are the per session overrides sent by the editor in initialize.
type InitializationOptions struct {
	Host          *string `json:"host,omitempty"`
	Environment   *string `json:"environment,omitempty"`
	WorkspaceRoot *string `json:"workspaceRoot,omitempty"`
	Backend       *string `json:"backend,omitempty"`
	AutoInstall   *bool   `json:"autoInstall,omitempty"`
	NotifyOnStart *bool   `json:"notifyOnStart,omitempty"`
	AllowPrompt   *bool   `json:"allowPrompt,omitempty"`
}

// ParseInitializationOptions decodes the initializationOptions member of initialize params.
// Nil input yields empty options.
func ParseInitializationOptions(raw interface{}) (*InitializationOptions, error) {
	opts := &InitializationOptions{}
	if raw == nil {
		return opts, nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encoding initialization options: %w", err)
	}
	if err := json.Unmarshal(data, opts); err != nil {
		return nil, fmt.Errorf("decoding initialization options: %w", err)
	}
	return opts, nil
}

// Factory creates a Config for each editor session.
type Factory struct {
	defaults Defaults
	store    identity.Store
}

// Params are the dependencies of NewFactory.
type Params struct {
	fx.In

	Config   config.Provider
	Identity identity.Store
}

// NewFactory reads the session defaults from configuration.
func NewFactory(p Params) (*Factory, error) {
	var d Defaults
	if err := p.Config.Get(_configKey).Populate(&d); err != nil {
		return nil, fmt.Errorf("getting config field %q: %w", _configKey, err)
	}
	if d.Backend == "" {
		d.Backend = string(entity.BackendPyright)
	}
	if _, err := entity.ParseBackend(d.Backend); err != nil {
		return nil, fmt.Errorf("invalid default backend: %w", err)
	}
	return &Factory{defaults: d, store: p.Identity}, nil
}

// New returns a Config seeded from the defaults, then opts, then the host's last used environment.
func (f *Factory) New(opts *InitializationOptions) (*Config, error) {
	d := f.defaults
	allowPrompt := d.AllowPrompt
	if opts != nil {
		overrideString(&d.Host, opts.Host)
		overrideString(&d.Environment, opts.Environment)
		overrideString(&d.WorkspaceRoot, opts.WorkspaceRoot)
		overrideString(&d.Backend, opts.Backend)
		overrideBool(&d.AutoInstall, opts.AutoInstall)
		overrideBool(&d.NotifyOnStart, opts.NotifyOnStart)
		overrideBool(&allowPrompt, opts.AllowPrompt)
	}

	backend, err := entity.ParseBackend(d.Backend)
	if err != nil {
		return nil, err
	}

	c := &Config{
		settings: entity.Settings{
			Host:          strings.TrimSpace(d.Host),
			Backend:       backend,
			AutoInstall:   d.AutoInstall,
			NotifyOnStart: d.NotifyOnStart,
		},
		allowPrompt: allowPrompt,
		store:       f.store,
	}
	if env, ok := remotepath.NormalizeEnvironmentPath(d.Environment); ok {
		c.settings.Environment = env
	} else if c.settings.Host != "" {
		c.settings.Environment = f.store.LastEnvironment(c.settings.Host)
	}
	if err := c.SetWorkspaceRoot(d.WorkspaceRoot); err != nil {
		return nil, err
	}
	return c, nil
}

// Config is the mutable selection of one session.
// It is only touched from the event loop.
type Config struct {
	settings    entity.Settings
	allowPrompt bool
	cache       entity.ValidationSessionCache
	store       identity.Store
}

// Settings returns a copy of the current selection.
func (c *Config) Settings() entity.Settings {
	return c.settings
}

// AllowPrompt reports whether the user may be asked for missing values.
func (c *Config) AllowPrompt() bool {
	return c.allowPrompt
}

// Cache returns the session's validation cache.
func (c *Config) Cache() *entity.ValidationSessionCache {
	return &c.cache
}

// SetHost selects host and switches to the environment it used last.
func (c *Config) SetHost(host string) {
	host = strings.TrimSpace(host)
	if host == c.settings.Host {
		return
	}
	c.settings.Host = host
	c.settings.Environment = ""
	if host != "" {
		c.settings.Environment = c.store.LastEnvironment(host)
	}
	c.cache.Reset()
}

// SetEnvironment selects the normalized environment and remembers it for the current host.
func (c *Config) SetEnvironment(raw string) error {
	env, ok := remotepath.NormalizeEnvironmentPath(raw)
	if !ok {
		return fmt.Errorf("empty environment path")
	}
	c.settings.Environment = env
	if c.settings.Host != "" {
		c.store.Remember(c.settings.Host, env)
	}
	c.cache.Reset()
	return nil
}

// ClearEnvironment falls back to the host's default interpreter.
func (c *Config) ClearEnvironment() {
	if c.settings.Environment == "" {
		return
	}
	c.settings.Environment = ""
	c.cache.Reset()
}

// SetWorkspaceRoot selects an absolute root, or auto-detection when path is empty.
func (c *Config) SetWorkspaceRoot(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		c.settings.WorkspaceRoot = ""
		return nil
	}
	if !strings.HasPrefix(path, "/") {
		return fmt.Errorf("workspace root %q is not absolute", path)
	}
	if trimmed := strings.TrimRight(path, "/"); trimmed != "" {
		path = trimmed
	} else {
		path = "/"
	}
	c.settings.WorkspaceRoot = path
	return nil
}

// SetBackend selects the backend named name.
func (c *Config) SetBackend(name string) error {
	backend, err := entity.ParseBackend(name)
	if err != nil {
		return err
	}
	if backend != c.settings.Backend {
		c.settings.Backend = backend
		c.cache.Reset()
	}
	return nil
}

// SetAutoInstall controls whether a missing backend is installed without asking.
func (c *Config) SetAutoInstall(v bool) {
	c.settings.AutoInstall = v
}

// SetNotifyOnStart controls whether the editor is told when a server attaches.
func (c *Config) SetNotifyOnStart(v bool) {
	c.settings.NotifyOnStart = v
}

// Apply sets every value present in opts. It reports whether the host, environment, workspace root
// or backend changed, which needs a new server.
func (c *Config) Apply(opts *InitializationOptions) (restart bool, err error) {
	before := c.settings
	if opts.Backend != nil {
		if err := c.SetBackend(*opts.Backend); err != nil {
			return false, err
		}
	}
	if opts.WorkspaceRoot != nil {
		if err := c.SetWorkspaceRoot(*opts.WorkspaceRoot); err != nil {
			return false, err
		}
	}
	if opts.Host != nil {
		c.SetHost(*opts.Host)
	}
	if opts.Environment != nil {
		if strings.TrimSpace(*opts.Environment) == "" {
			c.ClearEnvironment()
		} else if err := c.SetEnvironment(*opts.Environment); err != nil {
			return false, err
		}
	}
	overrideBool(&c.settings.AutoInstall, opts.AutoInstall)
	overrideBool(&c.settings.NotifyOnStart, opts.NotifyOnStart)
	overrideBool(&c.allowPrompt, opts.AllowPrompt)

	after := c.settings
	return before.Host != after.Host ||
		before.Environment != after.Environment ||
		before.WorkspaceRoot != after.WorkspaceRoot ||
		before.Backend != after.Backend, nil
}

func overrideString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func overrideBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

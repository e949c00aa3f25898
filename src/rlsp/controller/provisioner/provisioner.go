// Package provisioner makes sure a backend is installed and runnable in a remote environment before a server is launched.
package provisioner

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/uber-go/tally"
	sessionconfig "github.com/uber/rlsp/src/rlsp/controller/session-config"
	"github.com/uber/rlsp/src/rlsp/entity"
	ideclient "github.com/uber/rlsp/src/rlsp/gateway/ide-client"
	remoteshell "github.com/uber/rlsp/src/rlsp/gateway/remote-shell"
	"github.com/uber/rlsp/src/rlsp/internal/backend"
	"github.com/uber/rlsp/src/rlsp/internal/eventloop"
	"github.com/uber/rlsp/src/rlsp/repository/identity"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	_actionInstall = "Install"
	_actionCancel  = "Cancel"

	_logPrefix = "rlsp"

	// Exit code of the detection script when the interpreter itself does not run.
	_exitInterpreterBroken = 2
	// Exit code ssh uses for its own failures.
	_exitTransportFailure = 255
)

// Module provides the Provisioner.
var Module = fx.Provide(New)

// Provisioner checks and installs backends.
// All methods must be called from the event loop, and callbacks are delivered on it.
type Provisioner interface {
	// EnsureReady calls cb with true once the configured backend is runnable on the configured host.
	EnsureReady(ctx context.Context, cfg *sessionconfig.Config, cb func(ok bool))
	// State returns the last known state of the settings' backend|host|environment key.
	State(s entity.Settings) entity.ProvisionState
}

// Params are the dependencies of New.
type Params struct {
	fx.In

	Runner   remoteshell.Runner
	Identity identity.Store
	IDE      ideclient.Gateway
	Loop     eventloop.Scheduler
	Logger   *zap.SugaredLogger
	Stats    tally.Scope
}

type keyState struct {
	state   entity.ProvisionState
	waiters []func(ok bool)
}

type provisioner struct {
	runner remoteshell.Runner
	store  identity.Store
	ide    ideclient.Gateway
	loop   eventloop.Scheduler
	logger *zap.SugaredLogger
	stats  tally.Scope

	keys map[string]*keyState
}

// New creates a Provisioner.
func New(p Params) Provisioner {
	return &provisioner{
		runner: p.Runner,
		store:  p.Identity,
		ide:    p.IDE,
		loop:   p.Loop,
		logger: p.Logger.With("plugin", "provisioner"),
		stats:  p.Stats.SubScope("provisioner"),
		keys:   make(map[string]*keyState),
	}
}

// attempt is one check of a single key, shared by every session waiting on that key.
type attempt struct {
	ctx      context.Context
	settings entity.Settings
	spec     backend.Spec
	key      string
	python   string
	// owner is the session that started the attempt and may be prompted.
	owner *sessionconfig.Config
	cb    func(ok bool)
	// retried is set once the user supplied a replacement environment.
	retried bool
}

func (p *provisioner) State(s entity.Settings) entity.ProvisionState {
	if ks, ok := p.keys[s.ValidationKey()]; ok {
		return ks.state
	}
	return entity.ProvisionUnchecked
}

func (p *provisioner) EnsureReady(ctx context.Context, cfg *sessionconfig.Config, cb func(ok bool)) {
	p.ensure(ctx, cfg, cb, false)
}

func (p *provisioner) ensure(ctx context.Context, cfg *sessionconfig.Config, cb func(ok bool), retried bool) {
	s := cfg.Settings()
	key := s.ValidationKey()
	cache := cfg.Cache()

	switch cache.LastChecked {
	case key:
		cb(true)
		return
	case key + entity.MissingSuffix:
		cb(false)
		return
	}

	if s.Host == "" {
		if cfg.AllowPrompt() && !cache.Prompted {
			p.promptHost(ctx, cfg, cb)
			return
		}
		cache.LastChecked = key + entity.MissingSuffix
		p.ide.Report(ctx, entity.SeverityWarning, "rlsp: no remote host configured, remote language server disabled")
		cb(false)
		return
	}

	spec, err := backend.For(s.Backend)
	if err != nil {
		p.logger.Errorw("resolving backend", "error", err)
		cb(false)
		return
	}

	if p.store.IsValid(identity.ValidationKey(s.Backend, s.Host), s.Environment) {
		p.stats.Counter("cache_hit").Inc(1)
		cache.LastChecked = key
		cb(true)
		return
	}

	waiter := func(ok bool) {
		if ok {
			cfg.Cache().LastChecked = key
		} else {
			cfg.Cache().LastChecked = key + entity.MissingSuffix
		}
		cb(ok)
	}
	if ks, ok := p.keys[key]; ok && ks.state == entity.ProvisionChecking {
		ks.waiters = append(ks.waiters, waiter)
		return
	}
	p.keys[key] = &keyState{state: entity.ProvisionChecking, waiters: []func(bool){waiter}}

	a := &attempt{
		ctx:      ctx,
		settings: s,
		spec:     spec,
		key:      key,
		python:   backend.InterpreterPath(s.Environment),
		owner:    cfg,
		cb:       cb,
		retried:  retried,
	}
	p.logger.Infow("checking remote backend", "backend", s.Backend, "host", s.Host, "environment", s.Environment)
	p.probe(a)
}

// promptHost asks for a host and retries with the answer. One prompt is in flight per session.
func (p *provisioner) promptHost(ctx context.Context, cfg *sessionconfig.Config, cb func(ok bool)) {
	cfg.Cache().Prompted = true
	req := entity.InputRequest{
		Kind:    entity.InputHost,
		Prompt:  "Remote host (ssh alias)",
		Choices: p.store.KnownHosts(),
	}
	p.ide.Input(ctx, req, func(resp entity.InputResponse) {
		p.loop.Post(func() {
			cfg.Cache().Prompted = false
			if resp.Cancelled || strings.TrimSpace(resp.Value) == "" {
				p.logger.Info("host prompt cancelled")
				cfg.Cache().LastChecked = cfg.Settings().ValidationKey() + entity.MissingSuffix
				cb(false)
				return
			}
			cfg.SetHost(resp.Value)
			p.ensure(ctx, cfg, cb, false)
		})
	})
}

// probe verifies the interpreter with an executable bit test, then a version run.
func (p *provisioner) probe(a *attempt) {
	timeout := p.runner.Timeouts().Probe
	p.run(a, backend.ExecutableProbe(a.python), timeout, func(res remoteshell.Result) {
		if res.Success {
			p.detect(a, false)
			return
		}
		if unreachable(res) {
			p.fail(a, entity.SeverityError, fmt.Sprintf("rlsp: cannot reach %s (%s)", a.settings.Host, exitDescription(res)), res)
			return
		}
		p.run(a, backend.VersionProbe(a.python), timeout, func(res remoteshell.Result) {
			if res.Success {
				p.detect(a, false)
				return
			}
			p.interpreterMissing(a, res)
		})
	})
}

func (p *provisioner) interpreterMissing(a *attempt, res remoteshell.Result) {
	cache := a.owner.Cache()
	if !a.retried && a.owner.AllowPrompt() && !cache.Prompted {
		cache.Prompted = true
		req := entity.InputRequest{
			Kind:    entity.InputEnvironment,
			Prompt:  fmt.Sprintf("Python interpreter %s not found on %s. Remote environment path", a.python, a.settings.Host),
			Default: a.settings.Environment,
			Choices: p.store.Environments(a.settings.Host),
		}
		p.ide.Input(a.ctx, req, func(resp entity.InputResponse) {
			p.loop.Post(func() {
				cache.Prompted = false
				if resp.Cancelled || a.owner.SetEnvironment(resp.Value) != nil {
					p.fail(a, entity.SeverityWarning, fmt.Sprintf("rlsp: python interpreter %s not found on %s", a.python, a.settings.Host), res)
					return
				}
				p.handOff(a)
				p.ensure(a.ctx, a.owner, a.cb, true)
			})
		})
		return
	}
	p.fail(a, entity.SeverityWarning, fmt.Sprintf("rlsp: python interpreter %s not found on %s", a.python, a.settings.Host), res)
}

// handOff resolves every session but the owner, which retries under a new key.
func (p *provisioner) handOff(a *attempt) {
	ks := p.keys[a.key]
	ks.state = entity.ProvisionMissing
	waiters := ks.waiters[1:]
	ks.waiters = nil
	for _, w := range waiters {
		w(false)
	}
}

func (p *provisioner) detect(a *attempt, installed bool) {
	p.run(a, a.spec.DetectScript(a.python, a.settings.Environment), p.runner.Timeouts().Detect, func(res remoteshell.Result) {
		switch {
		case res.Success:
			p.succeed(a)
		case unreachable(res):
			p.fail(a, entity.SeverityError, fmt.Sprintf("rlsp: cannot reach %s (%s)", a.settings.Host, exitDescription(res)), res)
		case res.ExitCode == _exitInterpreterBroken:
			p.fail(a, entity.SeverityError, fmt.Sprintf("rlsp: python interpreter %s on %s does not run", a.python, a.settings.Host), res)
		case installed:
			p.stats.Counter("install_failed").Inc(1)
			p.fail(a, entity.SeverityError, fmt.Sprintf("rlsp: %s was installed on %s but is still not detected", a.spec.Package, a.settings.Host), res)
		case a.settings.AutoInstall:
			p.install(a)
		default:
			p.confirmInstall(a)
		}
	})
}

func (p *provisioner) confirmInstall(a *attempt) {
	msg := fmt.Sprintf("%s is not installed for %s on %s. Install it with pip?", a.spec.Package, a.python, a.settings.Host)
	p.ide.Confirm(a.ctx, msg, []string{_actionInstall, _actionCancel}, func(choice string, ok bool) {
		p.loop.Post(func() {
			if !ok || choice != _actionInstall {
				p.logger.Infow("install declined", "backend", a.settings.Backend, "host", a.settings.Host)
				p.ide.Report(a.ctx, entity.SeverityInfo, fmt.Sprintf("rlsp: %s is not installed, remote language server disabled for this session", a.spec.Package))
				p.resolve(a, false)
				return
			}
			p.install(a)
		})
	})
}

func (p *provisioner) install(a *attempt) {
	p.ide.Report(a.ctx, entity.SeverityInfo, fmt.Sprintf("rlsp: installing %s on %s", a.spec.Package, a.settings.Host))
	p.run(a, a.spec.InstallScript(a.python), p.runner.Timeouts().Install, func(res remoteshell.Result) {
		if !res.Success {
			p.stats.Counter("install_failed").Inc(1)
			p.fail(a, entity.SeverityError, fmt.Sprintf("rlsp: installing %s on %s failed (%s)", a.spec.Package, a.settings.Host, exitDescription(res)), res)
			return
		}
		p.stats.Counter("installed").Inc(1)
		p.detect(a, true)
	})
}

func (p *provisioner) succeed(a *attempt) {
	p.stats.Counter("validated").Inc(1)
	p.store.MarkValid(identity.ValidationKey(a.settings.Backend, a.settings.Host), a.settings.Environment)
	p.store.Remember(a.settings.Host, a.settings.Environment)
	p.logger.Infow("remote backend ready", "backend", a.settings.Backend, "host", a.settings.Host, "environment", a.settings.Environment)
	p.resolve(a, true)
}

// fail reports msg with the captured remote output and resolves the key as missing.
func (p *provisioner) fail(a *attempt, severity entity.Severity, msg string, res remoteshell.Result) {
	p.logger.Warnw(msg, "exitCode", res.ExitCode, "signal", res.Signal, "stderr", res.Stderr)
	p.ide.Report(a.ctx, severity, msg)
	if out := res.Output(); out != "" {
		p.writeOutput(a.ctx, out)
	}
	p.resolve(a, false)
}

func (p *provisioner) resolve(a *attempt, ok bool) {
	ks := p.keys[a.key]
	if ok {
		ks.state = entity.ProvisionValid
	} else {
		p.stats.Counter("missing").Inc(1)
		ks.state = entity.ProvisionMissing
	}
	waiters := ks.waiters
	ks.waiters = nil
	for _, w := range waiters {
		w(ok)
	}
}

// run executes script for a and continues with next on the event loop.
func (p *provisioner) run(a *attempt, script string, timeout time.Duration, next func(remoteshell.Result)) {
	p.runner.Run(a.ctx, a.settings.Host, script, timeout, func(res remoteshell.Result) {
		p.loop.Post(func() { next(res) })
	})
}

func (p *provisioner) writeOutput(ctx context.Context, out string) {
	w, err := p.ide.GetLogMessageWriter(ctx, _logPrefix)
	if err != nil {
		p.logger.Debugw("no IDE log writer", "error", err)
		return
	}
	if _, err := io.WriteString(w, out); err != nil {
		p.logger.Debugw("writing remote output to IDE", "error", err)
	}
}

func unreachable(res remoteshell.Result) bool {
	return res.TimedOut || res.SpawnFailed || res.ExitCode == _exitTransportFailure
}

func exitDescription(res remoteshell.Result) string {
	if res.TimedOut {
		return "timed out"
	}
	return entity.ExitStatus{Code: res.ExitCode, Signal: res.Signal}.String()
}

// Package remoteshell runs shell scripts on remote hosts through an ssh compatible binary.
package remoteshell

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/uber/rlsp/src/rlsp/internal/backend"
	"github.com/uber/rlsp/src/rlsp/internal/clock"
	"github.com/uber/rlsp/src/rlsp/internal/executor"
	"go.uber.org/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const _configKey = "remoteShell"

const (
	_defaultBinary           = "ssh"
	_defaultProbeTimeout     = 10 * time.Second
	_defaultDetectTimeout    = 15 * time.Second
	_defaultInstallTimeout   = 300 * time.Second
	_defaultWorkspaceTimeout = 10 * time.Second

	// _waitDelay bounds how long a killed command's output is still read while descendants hold its pipes.
	_waitDelay = 2 * time.Second
)

// _defaultOptions keep ssh from prompting and detect dead connections.
var _defaultOptions = []string{
	"-o", "BatchMode=yes",
	"-o", "ConnectTimeout=10",
	"-o", "ServerAliveInterval=10",
	"-o", "ServerAliveCountMax=3",
}

// Module provides the Runner.
var Module = fx.Provide(New)

// Result is the outcome of one command.
type Result struct {
	Success  bool
	Stdout   []string
	Stderr   []string
	ExitCode int
	// Signal names the signal that terminated the process, empty otherwise.
	Signal      string
	TimedOut    bool
	SpawnFailed bool
}

// Output joins stdout and stderr for display.
func (r Result) Output() string {
	return strings.Join(append(append([]string{}, r.Stdout...), r.Stderr...), "\n")
}

// Timeouts are the per call defaults for each kind of remote operation.
type Timeouts struct {
	Probe     time.Duration
	Detect    time.Duration
	Install   time.Duration
	Workspace time.Duration
}

// Runner executes commands asynchronously.
// Callbacks run on a goroutine owned by the Runner and fire exactly once per command.
type Runner interface {
	// Run executes script with sh on host.
	Run(ctx context.Context, host string, script string, timeout time.Duration, cb func(Result))
	// RunArgv executes argv locally. It panics when argv is empty.
	RunArgv(ctx context.Context, argv []string, timeout time.Duration, cb func(Result))
	// Argv returns the local command line that runs script on host.
	Argv(host string, script string) []string
	// Timeouts returns the configured defaults.
	Timeouts() Timeouts
}

type settings struct {
	Binary           string        `yaml:"binary"`
	Options          []string      `yaml:"options"`
	ProbeTimeout     time.Duration `yaml:"probeTimeout"`
	DetectTimeout    time.Duration `yaml:"detectTimeout"`
	InstallTimeout   time.Duration `yaml:"installTimeout"`
	WorkspaceTimeout time.Duration `yaml:"workspaceTimeout"`
}

type runner struct {
	binary   string
	options  []string
	timeouts Timeouts
	executor executor.Executor
	clock    clock.Clock
	logger   *zap.SugaredLogger
}

// Params are the dependencies of New.
type Params struct {
	fx.In

	Config   config.Provider
	Executor executor.Executor
	Clock    clock.Clock
	Logger   *zap.SugaredLogger
}

// New creates a Runner from the remoteShell config block.
func New(p Params) (Runner, error) {
	var s settings
	if err := p.Config.Get(_configKey).Populate(&s); err != nil {
		return nil, fmt.Errorf("getting config field %q: %w", _configKey, err)
	}
	r := &runner{
		binary:  s.Binary,
		options: s.Options,
		timeouts: Timeouts{
			Probe:     orDefault(s.ProbeTimeout, _defaultProbeTimeout),
			Detect:    orDefault(s.DetectTimeout, _defaultDetectTimeout),
			Install:   orDefault(s.InstallTimeout, _defaultInstallTimeout),
			Workspace: orDefault(s.WorkspaceTimeout, _defaultWorkspaceTimeout),
		},
		executor: p.Executor,
		clock:    p.Clock,
		logger:   p.Logger.Named("remote-shell"),
	}
	if r.binary == "" {
		r.binary = _defaultBinary
	}
	if r.options == nil {
		r.options = _defaultOptions
	}
	return r, nil
}

func (r *runner) Timeouts() Timeouts {
	return r.timeouts
}

func (r *runner) Argv(host string, script string) []string {
	argv := make([]string, 0, len(r.options)+3)
	argv = append(argv, r.binary)
	argv = append(argv, r.options...)
	return append(argv, host, "sh -c "+backend.Quote(script))
}

func (r *runner) Run(ctx context.Context, host string, script string, timeout time.Duration, cb func(Result)) {
	r.RunArgv(ctx, r.Argv(host, script), timeout, cb)
}

func (r *runner) RunArgv(ctx context.Context, argv []string, timeout time.Duration, cb func(Result)) {
	if len(argv) == 0 {
		panic("remoteshell: empty argv")
	}
	if timeout <= 0 {
		timeout = r.timeouts.Install
	}

	cmdCtx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(cmdCtx, argv[0], argv[1:]...)
	cmd.WaitDelay = _waitDelay

	var finished atomic.Bool
	deliver := func(res Result) {
		if finished.CompareAndSwap(false, true) {
			cb(res)
		}
	}

	timer := r.clock.AfterFunc(timeout, func() {
		r.logger.Warnw("remote command timed out", "argv", argv, "timeout", timeout)
		deliver(Result{
			ExitCode: -1,
			Stderr:   []string{fmt.Sprintf("command timed out after %s", timeout)},
			TimedOut: true,
		})
		cancel()
	})

	go func() {
		defer cancel()
		stdout, stderr, code, err := r.executor.Run(cmd)
		timer.Stop()
		deliver(r.result(argv, stdout, stderr, code, err))
	}()
}

func (r *runner) result(argv []string, stdout string, stderr string, code int, err error) Result {
	res := Result{
		Stdout:   splitLines(stdout),
		Stderr:   splitLines(stderr),
		ExitCode: code,
	}
	if err == nil {
		res.Success = true
		return res
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		r.logger.Warnw("failed to start remote command", "argv", argv, "error", err)
		res.ExitCode = 1
		res.SpawnFailed = true
		res.Stderr = append(res.Stderr, fmt.Sprintf("failed to run %s: %v", argv[0], err))
		return res
	}
	if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		res.Signal = ws.Signal().String()
	}
	res.ExitCode = exitErr.ExitCode()
	return res
}

func splitLines(s string) []string {
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func orDefault(d time.Duration, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

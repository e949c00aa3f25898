// Package lsclient launches remote language servers and speaks JSON-RPC to them over the remote shell's stdio.
package lsclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/uber/rlsp/src/rlsp/entity"
	remoteshell "github.com/uber/rlsp/src/rlsp/gateway/remote-shell"
	"github.com/uber/rlsp/src/rlsp/internal/executor"
	"github.com/uber/rlsp/src/rlsp/internal/fs"
	"github.com/uber/rlsp/src/rlsp/internal/logfilewriter"
	"github.com/uber/rlsp/src/rlsp/internal/serverinfofile"
	"go.lsp.dev/jsonrpc2"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	_outputName = "remote-server"
	_exitGrace  = 100 * time.Millisecond
)

// ErrServerExited is returned for calls still pending when the server's connection closes.
var ErrServerExited = errors.New("remote language server exited")

// Module provides the Launcher.
var Module = fx.Provide(New)

// Request describes one server process.
type Request struct {
	Host   string
	Script string
	// Name labels the server's stderr in the output log.
	Name string
	// Handler serves requests and notifications sent by the server.
	Handler jsonrpc2.Handler
	// OnExit is called once, on its own goroutine, after the process ended and every
	// message it sent was handled.
	OnExit func(entity.ExitStatus)
}

// Launcher starts remote language servers.
type Launcher interface {
	// Launch starts req.Script on req.Host and connects to it.
	Launch(ctx context.Context, req Request) (Client, error)
}

// Client is a connection to one running server.
type Client interface {
	// Call sends a request and returns the raw result.
	Call(ctx context.Context, method string, params interface{}) (json.RawMessage, error)
	// Notify sends a notification.
	Notify(ctx context.Context, method string, params interface{}) error
	// Stop kills the server process. OnExit still fires.
	Stop()
	// PID is the local process id of the remote shell.
	PID() int
}

// Params are the dependencies of New.
type Params struct {
	fx.In

	Runner         remoteshell.Runner
	Executor       executor.Executor
	FS             fs.RlspFS
	Lifecycle      fx.Lifecycle
	ServerInfoFile serverinfofile.ServerInfoFile
	Logger         *zap.SugaredLogger
}

type launcher struct {
	runner             remoteshell.Runner
	executor           executor.Executor
	logger             *zap.SugaredLogger
	outputWriterParams logfilewriter.Params

	outputOnce sync.Once
	output     *logfilewriter.OutputWriter
}

// New creates a Launcher.
func New(p Params) Launcher {
	return &launcher{
		runner:   p.Runner,
		executor: p.Executor,
		logger:   p.Logger.Named("language-server"),
		outputWriterParams: logfilewriter.Params{
			FS:             p.FS,
			Lifecycle:      p.Lifecycle,
			ServerInfoFile: p.ServerInfoFile,
		},
	}
}

func (l *launcher) Launch(ctx context.Context, req Request) (Client, error) {
	argv := l.runner.Argv(req.Host, req.Script)
	cmd := exec.Command(argv[0], argv[1:]...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	// Wait returns only after the process's stdout was copied into outW.
	outR, outW := io.Pipe()
	cmd.Stdout = outW
	stderr := l.stderr(req.Name)
	cmd.Stderr = stderr

	if err := l.executor.Start(cmd); err != nil {
		stdin.Close()
		outR.Close()
		return nil, fmt.Errorf("starting remote server on %s: %w", req.Host, err)
	}

	conn := jsonrpc2.NewConn(jsonrpc2.NewStream(&pipes{Reader: outR, WriteCloser: stdin}))
	c := &client{conn: conn, cmd: cmd}
	handler := req.Handler
	if handler == nil {
		handler = jsonrpc2.MethodNotFoundHandler
	}
	conn.Go(context.WithoutCancel(ctx), handler)

	go func() {
		waitErr := cmd.Wait()
		outW.Close()
		<-conn.Done()
		if closer, ok := stderr.(io.Closer); ok {
			closer.Close()
		}
		status := exitStatus(cmd.ProcessState, waitErr)
		l.logger.Infow("remote server exited", "host", req.Host, "name", req.Name, "pid", c.PID(), "status", status.String())
		if req.OnExit != nil {
			req.OnExit(status)
		}
	}()

	l.logger.Infow("remote server started", "host", req.Host, "name", req.Name, "pid", c.PID())
	return c, nil
}

// stderr returns the log stream for a server, creating the output log on first use.
func (l *launcher) stderr(name string) io.Writer {
	l.outputOnce.Do(func() {
		var err error
		if l.output, err = logfilewriter.SetupOutputWriter(l.outputWriterParams, _outputName); err != nil {
			l.logger.Warnw("remote server output will be discarded", "error", err)
		}
	})
	if l.output == nil {
		return io.Discard
	}
	return l.output.Stream(name)
}

type client struct {
	conn     jsonrpc2.Conn
	cmd      *exec.Cmd
	stopOnce sync.Once
}

type callResult struct {
	result json.RawMessage
	err    error
}

// Call returns ErrServerExited for a call left unanswered when the connection closes.
// jsonrpc2 on its own keeps such a call pending until ctx is done.
func (c *client) Call(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan callResult, 1)
	go func() {
		var result json.RawMessage
		_, err := c.conn.Call(ctx, method, params, &result)
		done <- callResult{result: result, err: err}
	}()

	select {
	case r := <-done:
		return r.result, r.err
	case <-c.conn.Done():
	}

	// A response read before the connection closed is already buffered for the call.
	select {
	case r := <-done:
		return r.result, r.err
	case <-time.After(_exitGrace):
		cancel()
		<-done
		return nil, fmt.Errorf("%s: %w", method, ErrServerExited)
	}
}

func (c *client) Notify(ctx context.Context, method string, params interface{}) error {
	return c.conn.Notify(ctx, method, params)
}

func (c *client) Stop() {
	c.stopOnce.Do(func() {
		if c.cmd.Process != nil {
			c.cmd.Process.Kill()
		}
	})
}

func (c *client) PID() int {
	if c.cmd.Process == nil {
		return 0
	}
	return c.cmd.Process.Pid
}

// pipes joins the process's stdout and stdin into the stream jsonrpc2 expects.
type pipes struct {
	io.Reader
	io.WriteCloser
}

func (p *pipes) Close() error {
	err := p.WriteCloser.Close()
	if r, ok := p.Reader.(io.Closer); ok {
		err = errors.Join(err, r.Close())
	}
	return err
}

func exitStatus(state *os.ProcessState, err error) entity.ExitStatus {
	if state == nil {
		return entity.ExitStatus{Code: 1}
	}
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return entity.ExitStatus{Code: -1, Signal: ws.Signal().String()}
	}
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return entity.ExitStatus{Code: 1}
	}
	return entity.ExitStatus{Code: state.ExitCode()}
}

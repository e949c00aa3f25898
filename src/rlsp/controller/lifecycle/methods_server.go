package lifecycle

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/uber/rlsp/src/rlsp/entity"
	lsclient "github.com/uber/rlsp/src/rlsp/gateway/language-server"
	remoteshell "github.com/uber/rlsp/src/rlsp/gateway/remote-shell"
	"github.com/uber/rlsp/src/rlsp/internal/backend"
	"github.com/uber/rlsp/src/rlsp/internal/remotepath"
	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
)

// enable provisions and starts a server unless one is already on its way.
func (m *manager) enable(s *session) {
	if s.closed || s.stopped {
		return
	}
	switch s.state {
	case entity.LifecycleProvisioning, entity.LifecycleStarting, entity.LifecycleAttached:
		return
	}

	m.cancelReconnect(s)
	s.gen++
	gen := s.gen
	s.state = entity.LifecycleProvisioning
	m.provisioner.EnsureReady(s.ctx, s.cfg, func(ok bool) {
		if s.closed || s.gen != gen {
			return
		}
		if !ok {
			s.state = entity.LifecycleIdle
			return
		}
		m.resolveRoot(s, gen)
	})
}

// resolveRoot picks the workspace root in order: configured, the editor's root on the same host,
// the enclosing git repository of the last buffer, the last buffer's directory.
func (m *manager) resolveRoot(s *session, gen int) {
	settings := s.cfg.Settings()
	if settings.WorkspaceRoot != "" {
		m.start(s, settings.WorkspaceRoot)
		return
	}
	if host, root, ok := m.translator.FromVirtual(s.editorRoot); ok && host == settings.Host {
		m.start(s, root)
		return
	}
	_, file, ok := m.translator.FromVirtual(string(s.lastBuffer))
	if !ok {
		m.start(s, "")
		return
	}

	dir := path.Dir(file)
	script := fmt.Sprintf("cd %s && git rev-parse --show-toplevel", backend.Quote(dir))
	m.runner.Run(s.ctx, settings.Host, script, m.runner.Timeouts().Workspace, func(res remoteshell.Result) {
		m.loop.Post(func() {
			if s.closed || s.gen != gen {
				return
			}
			root := dir
			if res.Success && len(res.Stdout) > 0 {
				if top := strings.TrimSpace(res.Stdout[0]); strings.HasPrefix(top, "/") {
					root = top
				}
			}
			m.start(s, root)
		})
	})
}

func (m *manager) start(s *session, root string) {
	settings := s.cfg.Settings()
	spec, err := backend.For(settings.Backend)
	if err != nil {
		m.ide.Report(s.ctx, entity.SeverityError, fmt.Sprintf("rlsp: %v", err))
		s.state = entity.LifecycleIdle
		return
	}

	s.state = entity.LifecycleStarting
	att := &attachment{
		outbox:   m.newOutbox(),
		host:     settings.Host,
		root:     root,
		settings: settings,
	}
	client, err := m.launcher.Launch(s.ctx, lsclient.Request{
		Host:    settings.Host,
		Script:  spec.LaunchScript(backend.InterpreterPath(settings.Environment), settings.Environment, root),
		Name:    fmt.Sprintf("%s %s", settings.Host, settings.Backend),
		Handler: m.serverHandler(s, att),
		OnExit: func(status entity.ExitStatus) {
			m.loop.Post(func() { m.exited(s, att, status) })
		},
	})
	if err != nil {
		m.logger.Warnw("launching server", "session", s.id, "host", settings.Host, "error", err)
		m.ide.Report(s.ctx, entity.SeverityError, fmt.Sprintf("rlsp: starting %s on %s failed: %v", settings.Backend, settings.Host, err))
		s.state = entity.LifecycleIdle
		return
	}

	att.client = client
	att.active.Store(true)
	s.current = att
	m.started.Inc(1)
	m.logger.Infow("server started", "session", s.id, "host", att.host, "backend", settings.Backend, "root", root, "pid", client.PID())

	params := m.initializeParams(s, root)
	att.outbox.Start()
	att.outbox.Post(func() {
		ctx, cancel := context.WithTimeout(s.ctx, _initializeTimeout)
		defer cancel()
		result, err := client.Call(ctx, protocol.MethodInitialize, params)
		m.loop.Post(func() { m.initialized(s, att, result, err) })
	})
}

func (m *manager) initializeParams(s *session, root string) map[string]interface{} {
	capabilities := s.capabilities
	if len(capabilities) == 0 {
		capabilities = json.RawMessage(`{}`)
	}
	params := map[string]interface{}{
		"processId":    nil,
		"clientInfo":   map[string]string{"name": _clientName},
		"capabilities": capabilities,
		"rootUri":      nil,
		"rootPath":     nil,
	}
	if root != "" {
		rootURI := remotepath.PathToFileURI(root)
		params["rootUri"] = rootURI
		params["rootPath"] = root
		params["workspaceFolders"] = workspaceFolders(root)
	}
	return params
}

func (m *manager) initialized(s *session, att *attachment, result json.RawMessage, err error) {
	if s.closed || s.current != att {
		return
	}
	if err != nil {
		// The kill below is seen by exited as an abnormal exit, which applies the reconnect policy.
		m.logger.Warnw("initializing server", "session", s.id, "host", att.host, "error", err)
		m.ide.Report(s.ctx, entity.SeverityError, fmt.Sprintf("rlsp: initializing %s on %s failed: %v", att.settings.Backend, att.host, err))
		att.client.Stop()
		return
	}

	s.state = entity.LifecycleAttached
	s.attempted = false
	m.send(s, att, protocol.MethodInitialized, &protocol.InitializedParams{})
	for _, uri := range s.order {
		if m.onHost(uri, att.host) {
			m.sendOpen(s, att, s.docs[uri])
		}
	}

	name := gjson.GetBytes(result, "serverInfo.name").String()
	m.logger.Infow("server attached", "session", s.id, "host", att.host, "server", name, "documents", len(s.order))
	if att.settings.NotifyOnStart {
		m.ide.Report(s.ctx, entity.SeverityInfo, fmt.Sprintf("rlsp: %s attached on %s", att.settings.Backend, att.host))
	}
}

// detach stops the current server on purpose. Its exit is absorbed by the suppress count.
func (m *manager) detach(s *session) {
	att := s.current
	if att == nil {
		return
	}
	s.current = nil
	att.active.Store(false)
	att.stopped = true
	s.suppress++
	att.client.Stop()
}

func (m *manager) exited(s *session, att *attachment, status entity.ExitStatus) {
	m.releaseOutbox(att)

	current := s.current == att
	if current {
		s.current = nil
		att.active.Store(false)
	}
	if s.closed {
		return
	}

	switch {
	case status.Clean():
		m.exitsClean.Inc(1)
		if att.stopped && s.suppress > 0 {
			s.suppress--
		}
		if current {
			s.state = entity.LifecycleExitedClean
		}
		m.logger.Infow("server exited", "session", s.id, "host", att.host, "status", status.String())
	case s.suppress > 0:
		s.suppress--
		m.exitsSuppressed.Inc(1)
		if current {
			s.state = entity.LifecycleIdle
		}
		m.logger.Infow("server stopped", "session", s.id, "host", att.host, "status", status.String())
	default:
		m.exitsAbnormal.Inc(1)
		m.logger.Warnw("server crashed", "session", s.id, "host", att.host, "status", status.String(), "current", current)
		if current {
			s.state = entity.LifecycleExitedAbnormal
			m.crashed(s, att, status)
		}
	}
}

// crashed allows one automatic reconnect until a server attaches again.
func (m *manager) crashed(s *session, att *attachment, status entity.ExitStatus) {
	if s.reconnect != nil {
		return
	}
	if s.attempted {
		s.state = entity.LifecycleGivenUp
		m.givenUp.Inc(1)
		m.ide.Report(s.ctx, entity.SeverityError, fmt.Sprintf(
			"rlsp: %s on %s exited again (%s), run rlsp.restart to start it", att.settings.Backend, att.host, status))
		return
	}

	s.attempted = true
	s.state = entity.LifecycleReconnectPending
	m.reconnectsScheduled.Inc(1)
	m.ide.Report(s.ctx, entity.SeverityWarning, fmt.Sprintf(
		"rlsp: %s on %s exited (%s), reconnecting in %s", att.settings.Backend, att.host, status, m.delay))

	gen, buffer := s.gen, s.lastBuffer
	s.reconnect = m.clock.AfterFunc(m.delay, func() {
		m.loop.Post(func() { m.reconnectFired(s, gen, buffer) })
	})
}

func (m *manager) reconnectFired(s *session, gen int, buffer protocol.DocumentURI) {
	if s.closed || s.gen != gen || s.reconnect == nil {
		return
	}
	s.reconnect = nil
	if _, ok := s.docs[buffer]; !ok {
		m.logger.Infow("abandoning reconnect, buffer was closed", "session", s.id, "buffer", buffer)
		s.state = entity.LifecycleIdle
		return
	}
	m.enable(s)
}

func (m *manager) cancelReconnect(s *session) {
	if s.reconnect == nil {
		return
	}
	s.reconnect.Stop()
	s.reconnect = nil
}

func (m *manager) releaseOutbox(att *attachment) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), _outboxStopTimeout)
		defer cancel()
		if err := att.outbox.Stop(ctx); err != nil {
			m.logger.Debugw("stopping outbox", "host", att.host, "error", err)
		}
	}()
}

// send queues a notification behind every message already queued for att.
func (m *manager) send(s *session, att *attachment, method string, params interface{}) {
	att.outbox.Post(func() {
		if err := att.client.Notify(s.ctx, method, params); err != nil {
			m.logger.Debugw("dropping notification", "method", method, "host", att.host, "error", err)
		}
	})
}

// serverHandler serves the messages a server sends. It runs on the connection's goroutine.
func (m *manager) serverHandler(s *session, att *attachment) jsonrpc2.Handler {
	return func(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
		_, isCall := req.(*jsonrpc2.Call)
		if !att.active.Load() {
			if isCall {
				return reply(ctx, nil, jsonrpc2.NewError(jsonrpc2.InternalError, "server is detached"))
			}
			return nil
		}

		if req.Method() == protocol.MethodWorkspaceWorkspaceFolders {
			if att.root == "" {
				return reply(ctx, nil, nil)
			}
			return reply(ctx, workspaceFolders(att.root), nil)
		}

		params := m.rewriter.ToEditor(att.host, req.Method(), req.Params())
		if !isCall {
			if err := m.ide.Notify(s.ctx, req.Method(), params); err != nil {
				m.logger.Debugw("relaying notification to editor", "method", req.Method(), "error", err)
			}
			return nil
		}

		method := req.Method()
		go func() {
			result, err := m.ide.Call(s.ctx, method, params)
			if err != nil {
				reply(ctx, nil, err)
				return
			}
			reply(ctx, m.rewriter.ToServer(method, result), nil)
		}()
		return nil
	}
}

func workspaceFolders(root string) []protocol.WorkspaceFolder {
	return []protocol.WorkspaceFolder{{
		URI:  remotepath.PathToFileURI(root),
		Name: path.Base(root),
	}}
}

package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uber-go/tally"
	"github.com/uber/rlsp/src/rlsp/controller/provisioner/provisionermock"
	"github.com/uber/rlsp/src/rlsp/controller/rewriter"
	sessionconfig "github.com/uber/rlsp/src/rlsp/controller/session-config"
	"github.com/uber/rlsp/src/rlsp/entity"
	"github.com/uber/rlsp/src/rlsp/factory"
	"github.com/uber/rlsp/src/rlsp/gateway/ide-client/ideclientmock"
	lsclient "github.com/uber/rlsp/src/rlsp/gateway/language-server"
	"github.com/uber/rlsp/src/rlsp/gateway/language-server/lsclientmock"
	remoteshell "github.com/uber/rlsp/src/rlsp/gateway/remote-shell"
	"github.com/uber/rlsp/src/rlsp/gateway/remote-shell/remoteshellmock"
	"github.com/uber/rlsp/src/rlsp/internal/clock/clocktest"
	rlsperrors "github.com/uber/rlsp/src/rlsp/internal/errors"
	"github.com/uber/rlsp/src/rlsp/internal/eventloop/eventlooptest"
	"github.com/uber/rlsp/src/rlsp/internal/remotepath"
	"github.com/uber/rlsp/src/rlsp/mapper"
	"github.com/uber/rlsp/src/rlsp/repository/identity/identitymock"
	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
	"go.uber.org/config"
	"go.uber.org/goleak"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
)

const (
	_main  = "scp://h1//srv/app/main.py"
	_other = "scp://h1//srv/app/other.py"
)

var _timeouts = remoteshell.Timeouts{Workspace: 10 * time.Second}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type immediateOutbox struct {
	eventlooptest.Immediate
}

func (immediateOutbox) Start() {}

func (immediateOutbox) Stop(context.Context) error { return nil }

type fixture struct {
	ctrl     *gomock.Controller
	prov     *provisionermock.MockProvisioner
	launcher *lsclientmock.MockLauncher
	runner   *remoteshellmock.MockRunner
	ide      *ideclientmock.MockGateway
	store    *identitymock.MockStore
	clock    *clocktest.Fake
	stats    tally.TestScope
	m        *manager
}

func newFixture(t *testing.T) *fixture {
	ctrl := gomock.NewController(t)
	f := &fixture{
		ctrl:     ctrl,
		prov:     provisionermock.NewMockProvisioner(ctrl),
		launcher: lsclientmock.NewMockLauncher(ctrl),
		runner:   remoteshellmock.NewMockRunner(ctrl),
		ide:      ideclientmock.NewMockGateway(ctrl),
		store:    identitymock.NewMockStore(ctrl),
		clock:    clocktest.New(),
		stats:    tally.NewTestScope("", nil),
	}
	f.runner.EXPECT().Timeouts().Return(_timeouts).AnyTimes()
	f.store.EXPECT().LastEnvironment(gomock.Any()).Return("").AnyTimes()

	provider, err := config.NewStaticProvider(map[string]interface{}{})
	require.NoError(t, err)
	translator := remotepath.New("")
	m, err := New(Params{
		Config:      provider,
		Provisioner: f.prov,
		Launcher:    f.launcher,
		Runner:      f.runner,
		Rewriter: rewriter.New(rewriter.Params{
			Translator: translator,
			Logger:     zap.NewNop().Sugar(),
			Stats:      tally.NoopScope,
		}),
		Translator: translator,
		IDE:        f.ide,
		Loop:       eventlooptest.Immediate{},
		Clock:      f.clock,
		Logger:     zap.NewNop().Sugar(),
		Stats:      f.stats,
	})
	require.NoError(t, err)
	f.m = m.(*manager)
	f.m.newOutbox = func() outbox { return immediateOutbox{} }
	return f
}

func (f *fixture) open(t *testing.T, session map[string]interface{}, init Init) uuid.UUID {
	provider, err := config.NewStaticProvider(map[string]interface{}{"session": session})
	require.NoError(t, err)
	configs, err := sessionconfig.NewFactory(sessionconfig.Params{Config: provider, Identity: f.store})
	require.NoError(t, err)
	cfg, err := configs.New(nil)
	require.NoError(t, err)

	id := factory.UUID()
	require.NoError(t, f.m.Open(id, cfg, init))
	return id
}

func (f *fixture) expectReady(ok bool) *gomock.Call {
	return f.prov.EXPECT().EnsureReady(gomock.Any(), gomock.Any(), gomock.Any()).Do(
		func(_ context.Context, _ *sessionconfig.Config, cb func(bool)) {
			cb(ok)
		})
}

func (f *fixture) status(t *testing.T, id uuid.UUID) entity.Status {
	s, err := f.m.Status(id)
	require.NoError(t, err)
	return s
}

func (f *fixture) counter(name string) int64 {
	c, ok := f.stats.Snapshot().Counters()["lifecycle."+name+"+"]
	if !ok {
		return 0
	}
	return c.Value()
}

type message struct {
	method string
	params string
}

// server records what the manager sends to one launched process.
type server struct {
	client     *lsclientmock.MockClient
	req        lsclient.Request
	initParams string
	sent       []message
	stops      int
}

func (f *fixture) expectServer(t *testing.T) *server {
	srv := &server{client: lsclientmock.NewMockClient(f.ctrl)}
	f.launcher.EXPECT().Launch(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req lsclient.Request) (lsclient.Client, error) {
			srv.req = req
			return srv.client, nil
		})
	srv.client.EXPECT().PID().Return(42).AnyTimes()
	srv.client.EXPECT().Stop().Do(func() { srv.stops++ }).AnyTimes()
	srv.client.EXPECT().Notify(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, method string, params interface{}) error {
			srv.sent = append(srv.sent, message{method: method, params: marshal(t, params)})
			return nil
		}).AnyTimes()
	return srv
}

func (srv *server) expectInitialize(t *testing.T, err error) {
	srv.client.EXPECT().Call(gomock.Any(), protocol.MethodInitialize, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ string, params interface{}) (json.RawMessage, error) {
			srv.initParams = marshal(t, params)
			if err != nil {
				return nil, err
			}
			return json.RawMessage(`{"capabilities":{},"serverInfo":{"name":"pyright"}}`), nil
		})
}

func (srv *server) methods() []string {
	var out []string
	for _, m := range srv.sent {
		out = append(out, m.method)
	}
	return out
}

// attach opens _main on h1 and waits for a server that initializes.
func (f *fixture) attach(t *testing.T) (uuid.UUID, *server) {
	id := f.open(t, map[string]interface{}{"host": "h1", "workspaceRoot": "/srv/app"}, Init{})
	srv := f.reattach(t)
	require.NoError(t, f.m.DidOpen(id, doc(_main)))
	require.Equal(t, "attached", f.status(t, id).State)
	return id, srv
}

// reattach expects the next enable to succeed.
func (f *fixture) reattach(t *testing.T) *server {
	f.expectReady(true)
	srv := f.expectServer(t)
	srv.expectInitialize(t, nil)
	return srv
}

func doc(uri string) entity.Document {
	return entity.Document{URI: protocol.DocumentURI(uri), LanguageID: "python", Version: 1, Text: "print(1)\n"}
}

func marshal(t *testing.T, v interface{}) string {
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return string(data)
}

func TestConfiguredDelay(t *testing.T) {
	provider, err := config.NewStaticProvider(map[string]interface{}{"reconnect": map[string]interface{}{"delay": "5s"}})
	require.NoError(t, err)
	m, err := New(Params{
		Config: provider,
		Logger: zap.NewNop().Sugar(),
		Stats:  tally.NoopScope,
	})
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, m.(*manager).delay)

	f := newFixture(t)
	assert.Equal(t, _defaultReconnectDelay, f.m.delay)
}

func TestOpenTwice(t *testing.T) {
	f := newFixture(t)
	id := f.open(t, map[string]interface{}{}, Init{})
	cfg, err := f.m.Config(id)
	require.NoError(t, err)
	assert.Error(t, f.m.Open(id, cfg, Init{}))
}

func TestUnknownSession(t *testing.T) {
	f := newFixture(t)
	id := factory.UUID()

	_, err := f.m.Status(id)
	got, ok := rlsperrors.NotFoundUUID(err)
	require.True(t, ok)
	assert.Equal(t, id, got)

	assert.Error(t, f.m.DidOpen(id, doc(_main)))
	assert.Error(t, f.m.Restart(id))
	assert.Error(t, f.m.Close(id))

	var replied error
	f.m.Request(context.Background(), id, "textDocument/hover", nil, func(_ json.RawMessage, err error) { replied = err })
	_, ok = rlsperrors.NotFoundUUID(replied)
	assert.True(t, ok)
}

func TestDidOpenAttaches(t *testing.T) {
	f := newFixture(t)
	id, srv := f.attach(t)

	assert.Equal(t, "h1", srv.req.Host)
	assert.Equal(t, "h1 pyright", srv.req.Name)
	assert.Contains(t, srv.req.Script, "cd '/srv/app'")
	assert.Contains(t, srv.req.Script, "pyright-langserver")
	assert.JSONEq(t, `{
		"processId": null,
		"clientInfo": {"name": "rlsp"},
		"capabilities": {},
		"rootUri": "file:///srv/app",
		"rootPath": "/srv/app",
		"workspaceFolders": [{"uri": "file:///srv/app", "name": "app"}]
	}`, srv.initParams)

	require.Equal(t, []string{protocol.MethodInitialized, protocol.MethodTextDocumentDidOpen}, srv.methods())
	assert.JSONEq(t,
		`{"textDocument":{"uri":"file:///srv/app/main.py","languageId":"python","version":1,"text":"print(1)\n"}}`,
		srv.sent[1].params)
	assert.Equal(t, int64(1), f.counter("started"))

	// A second buffer goes straight to the attached server.
	require.NoError(t, f.m.DidOpen(id, doc(_other)))
	require.Len(t, srv.sent, 3)
	assert.Contains(t, srv.sent[2].params, "file:///srv/app/other.py")
	assert.Equal(t, 2, f.status(t, id).OpenDocuments)
}

func TestEditorCapabilitiesPassedThrough(t *testing.T) {
	f := newFixture(t)
	id := f.open(t, map[string]interface{}{"host": "h1", "workspaceRoot": "/srv/app"},
		Init{Capabilities: json.RawMessage(`{"textDocument":{"hover":{}}}`)})
	srv := f.reattach(t)
	require.NoError(t, f.m.DidOpen(id, doc(_main)))
	assert.Contains(t, srv.initParams, `"capabilities":{"textDocument":{"hover":{}}}`)
}

func TestNotifyOnStart(t *testing.T) {
	f := newFixture(t)
	id := f.open(t, map[string]interface{}{"host": "h1", "workspaceRoot": "/srv/app", "notifyOnStart": true}, Init{})
	f.reattach(t)
	f.ide.EXPECT().Report(gomock.Any(), entity.SeverityInfo, "rlsp: pyright attached on h1")
	require.NoError(t, f.m.DidOpen(id, doc(_main)))
}

func TestLocalBufferIgnored(t *testing.T) {
	f := newFixture(t)
	id := f.open(t, map[string]interface{}{"host": "h1"}, Init{})

	require.NoError(t, f.m.DidOpen(id, doc("file:///tmp/local.py")))
	s := f.status(t, id)
	assert.Equal(t, "idle", s.State)
	assert.Zero(t, s.OpenDocuments)
}

func TestHostTakenFromBuffer(t *testing.T) {
	f := newFixture(t)
	id := f.open(t, map[string]interface{}{}, Init{})

	f.expectReady(false)
	require.NoError(t, f.m.DidOpen(id, doc("scp://h2//srv/x.py")))
	s := f.status(t, id)
	assert.Equal(t, "h2", s.Settings.Host)
	assert.Equal(t, "idle", s.State)

	// Buffers on another host are not this session's.
	require.NoError(t, f.m.DidOpen(id, doc("scp://h3//srv/y.py")))
	assert.Equal(t, 1, f.status(t, id).OpenDocuments)
}

func TestHostAndRootTakenFromEditorRoot(t *testing.T) {
	f := newFixture(t)
	id := f.open(t, map[string]interface{}{}, Init{RootURI: "scp://h4//srv/repo"})
	assert.Equal(t, "h4", f.status(t, id).Settings.Host)

	srv := f.reattach(t)
	require.NoError(t, f.m.DidOpen(id, doc("scp://h4//srv/repo/pkg/a.py")))
	assert.Contains(t, srv.req.Script, "cd '/srv/repo'")
}

func TestWorkspaceRootDetection(t *testing.T) {
	tests := []struct {
		name   string
		result remoteshell.Result
		want   string
	}{
		{
			name:   "git toplevel",
			result: remoteshell.Result{Success: true, Stdout: []string{"/srv/app"}},
			want:   "/srv/app",
		},
		{
			name:   "not a repository",
			result: remoteshell.Result{ExitCode: 128, Stderr: []string{"fatal: not a git repository"}},
			want:   "/srv/app/pkg",
		},
		{
			name:   "unexpected output",
			result: remoteshell.Result{Success: true, Stdout: []string{"warning: something"}},
			want:   "/srv/app/pkg",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			id := f.open(t, map[string]interface{}{"host": "h1"}, Init{RootURI: "file:///home/me/project"})

			f.runner.EXPECT().Run(gomock.Any(), "h1", "cd '/srv/app/pkg' && git rev-parse --show-toplevel", _timeouts.Workspace, gomock.Any()).Do(
				func(_ context.Context, _ string, _ string, _ time.Duration, cb func(remoteshell.Result)) {
					cb(tt.result)
				})
			srv := f.reattach(t)
			require.NoError(t, f.m.DidOpen(id, doc("scp://h1//srv/app/pkg/mod.py")))

			assert.Contains(t, srv.req.Script, "cd '"+tt.want+"'")
			assert.Contains(t, srv.initParams, `"rootPath":"`+tt.want+`"`)
		})
	}
}

func TestProvisionerDeclined(t *testing.T) {
	f := newFixture(t)
	id := f.open(t, map[string]interface{}{"host": "h1", "workspaceRoot": "/srv/app"}, Init{})

	f.expectReady(false)
	require.NoError(t, f.m.DidOpen(id, doc(_main)))
	assert.Equal(t, "idle", f.status(t, id).State)
	assert.Zero(t, f.counter("started"))
}

func TestLaunchFailure(t *testing.T) {
	f := newFixture(t)
	id := f.open(t, map[string]interface{}{"host": "h1", "workspaceRoot": "/srv/app"}, Init{})

	f.expectReady(true)
	f.launcher.EXPECT().Launch(gomock.Any(), gomock.Any()).Return(nil, errors.New("no ssh"))
	f.ide.EXPECT().Report(gomock.Any(), entity.SeverityError, "rlsp: starting pyright on h1 failed: no ssh")
	require.NoError(t, f.m.DidOpen(id, doc(_main)))
	assert.Equal(t, "idle", f.status(t, id).State)
	assert.Zero(t, f.clock.Pending())
}

func TestReconnectBound(t *testing.T) {
	f := newFixture(t)
	id, srv := f.attach(t)

	f.ide.EXPECT().Report(gomock.Any(), entity.SeverityWarning, "rlsp: pyright on h1 exited (exit code 1), reconnecting in 20s")
	srv.req.OnExit(entity.ExitStatus{Code: 1})
	s := f.status(t, id)
	assert.Equal(t, "reconnect_pending", s.State)
	assert.True(t, s.Attempted)
	assert.Equal(t, 1, f.clock.Pending())

	// The reconnect's own start fails before attaching.
	f.expectReady(true)
	retry := f.expectServer(t)
	retry.expectInitialize(t, errors.New("boom"))
	f.ide.EXPECT().Report(gomock.Any(), entity.SeverityError, "rlsp: initializing pyright on h1 failed: boom")
	f.clock.Advance(20 * time.Second)
	assert.Equal(t, "starting", f.status(t, id).State)
	assert.Equal(t, 1, retry.stops)

	f.ide.EXPECT().Report(gomock.Any(), entity.SeverityError, "rlsp: pyright on h1 exited again (signal killed), run rlsp.restart to start it")
	retry.req.OnExit(entity.ExitStatus{Code: -1, Signal: "killed"})
	assert.Equal(t, "given_up", f.status(t, id).State)
	assert.Zero(t, f.clock.Pending())
	assert.Equal(t, int64(1), f.counter("reconnects_scheduled"))
	assert.Equal(t, int64(1), f.counter("given_up"))
	assert.Equal(t, int64(2), f.counter("exits_abnormal"))

	// Opening files does not leave the given up state, a manual restart does.
	require.NoError(t, f.m.DidOpen(id, doc(_other)))
	assert.Equal(t, "given_up", f.status(t, id).State)

	restarted := f.reattach(t)
	require.NoError(t, f.m.Restart(id))
	s = f.status(t, id)
	assert.Equal(t, "attached", s.State)
	assert.False(t, s.Attempted)
	assert.Equal(t, []string{protocol.MethodInitialized, protocol.MethodTextDocumentDidOpen, protocol.MethodTextDocumentDidOpen}, restarted.methods())
}

func TestReconnectAllowanceResetsOnAttach(t *testing.T) {
	f := newFixture(t)
	id, srv := f.attach(t)

	f.ide.EXPECT().Report(gomock.Any(), entity.SeverityWarning, gomock.Any()).Times(2)
	srv.req.OnExit(entity.ExitStatus{Code: 1})

	second := f.reattach(t)
	f.clock.Advance(20 * time.Second)
	s := f.status(t, id)
	assert.Equal(t, "attached", s.State)
	assert.False(t, s.Attempted)
	assert.Equal(t, []string{protocol.MethodInitialized, protocol.MethodTextDocumentDidOpen}, second.methods())

	second.req.OnExit(entity.ExitStatus{Code: -1, Signal: "segmentation fault"})
	assert.Equal(t, "reconnect_pending", f.status(t, id).State)
	assert.Equal(t, int64(2), f.counter("reconnects_scheduled"))
	assert.Zero(t, f.counter("given_up"))
}

func TestSuppressAbsorbsIntentionalStops(t *testing.T) {
	f := newFixture(t)
	id, first := f.attach(t)

	second := f.reattach(t)
	require.NoError(t, f.m.Restart(id))
	third := f.reattach(t)
	require.NoError(t, f.m.Restart(id))

	assert.Equal(t, 1, first.stops)
	assert.Equal(t, 1, second.stops)
	assert.Equal(t, 2, f.status(t, id).SuppressCount)

	first.req.OnExit(entity.ExitStatus{Code: -1, Signal: "killed"})
	second.req.OnExit(entity.ExitStatus{Code: -1, Signal: "killed"})

	s := f.status(t, id)
	assert.Equal(t, "attached", s.State)
	assert.Zero(t, s.SuppressCount)
	assert.Zero(t, f.clock.Pending())
	assert.Equal(t, int64(2), f.counter("exits_suppressed"))
	assert.Zero(t, f.counter("reconnects_scheduled"))
	assert.Zero(t, third.stops)
}

func TestReconnectAbandonedWhenBufferClosed(t *testing.T) {
	f := newFixture(t)
	id, srv := f.attach(t)

	f.ide.EXPECT().Report(gomock.Any(), entity.SeverityWarning, gomock.Any())
	srv.req.OnExit(entity.ExitStatus{Code: 1})
	require.NoError(t, f.m.DidClose(id, _main))

	f.clock.Advance(20 * time.Second)
	assert.Equal(t, "idle", f.status(t, id).State)
}

func TestFileOpenSupersedesReconnect(t *testing.T) {
	f := newFixture(t)
	id, srv := f.attach(t)

	f.ide.EXPECT().Report(gomock.Any(), entity.SeverityWarning, gomock.Any())
	srv.req.OnExit(entity.ExitStatus{Code: 1})

	f.reattach(t)
	require.NoError(t, f.m.DidOpen(id, doc(_other)))
	assert.Equal(t, "attached", f.status(t, id).State)
	assert.Zero(t, f.clock.Pending())

	// The stopped timer never runs the enable path again.
	f.clock.Advance(time.Minute)
	assert.Equal(t, "attached", f.status(t, id).State)
}

func TestCleanExit(t *testing.T) {
	f := newFixture(t)
	id, srv := f.attach(t)

	srv.req.OnExit(entity.ExitStatus{})
	assert.Equal(t, "exited_clean", f.status(t, id).State)
	assert.Zero(t, f.clock.Pending())
	assert.Equal(t, int64(1), f.counter("exits_clean"))

	f.reattach(t)
	require.NoError(t, f.m.DidOpen(id, doc(_other)))
	assert.Equal(t, "attached", f.status(t, id).State)
}

func TestStopKeepsServerDown(t *testing.T) {
	f := newFixture(t)
	id, srv := f.attach(t)

	require.NoError(t, f.m.Stop(id))
	assert.Equal(t, 1, srv.stops)
	assert.Equal(t, "idle", f.status(t, id).State)

	require.NoError(t, f.m.DidOpen(id, doc(_other)))
	assert.Equal(t, "idle", f.status(t, id).State)
	require.NoError(t, f.m.SettingsChanged(id))
	assert.Equal(t, "idle", f.status(t, id).State)

	srv.req.OnExit(entity.ExitStatus{Code: -1, Signal: "killed"})
	assert.Equal(t, int64(1), f.counter("exits_suppressed"))
	assert.Zero(t, f.status(t, id).SuppressCount)

	f.reattach(t)
	require.NoError(t, f.m.Restart(id))
	assert.Equal(t, "attached", f.status(t, id).State)
}

func TestSettingsChangedRestarts(t *testing.T) {
	f := newFixture(t)
	id, srv := f.attach(t)

	cfg, err := f.m.Config(id)
	require.NoError(t, err)
	require.NoError(t, cfg.SetBackend("ty"))

	next := f.reattach(t)
	require.NoError(t, f.m.SettingsChanged(id))
	assert.Equal(t, 1, srv.stops)
	assert.Equal(t, "h1 ty", next.req.Name)
	assert.Contains(t, next.req.Script, "'ty' 'server'")
}

func TestHostSwitchDropsOtherHostBuffers(t *testing.T) {
	f := newFixture(t)
	id, srv := f.attach(t)

	cfg, err := f.m.Config(id)
	require.NoError(t, err)
	cfg.SetHost("h2")

	// Nothing is open on h2, so no server starts until an h2 buffer is opened.
	require.NoError(t, f.m.SettingsChanged(id))
	assert.Equal(t, 1, srv.stops)
	assert.Equal(t, "idle", f.status(t, id).State)

	next := f.reattach(t)
	require.NoError(t, f.m.DidOpen(id, doc("scp://h2//opt/svc/app.py")))
	assert.Equal(t, "h2", next.req.Host)

	var opened []string
	for _, msg := range next.sent {
		if msg.method == protocol.MethodTextDocumentDidOpen {
			opened = append(opened, msg.params)
		}
	}
	require.Len(t, opened, 1)
	assert.Contains(t, opened[0], `"uri":"file:///opt/svc/app.py"`)
	assert.NotContains(t, opened[0], "/srv/app/main.py")

	// The h1 buffer is no longer tracked, switching back needs a new didOpen.
	require.NoError(t, f.m.DidChange(id, _main, 2, "x"))
	assert.Equal(t, []string{protocol.MethodInitialized, protocol.MethodTextDocumentDidOpen}, next.methods())
}

func TestRestartResetsPromptGuard(t *testing.T) {
	f := newFixture(t)
	id := f.open(t, map[string]interface{}{"host": "h1"}, Init{})
	cfg, err := f.m.Config(id)
	require.NoError(t, err)
	cfg.Cache().Prompted = true
	cfg.Cache().LastChecked = "pyright|h1|" + entity.MissingSuffix

	require.NoError(t, f.m.Restart(id))
	assert.False(t, cfg.Cache().Prompted)
	assert.Empty(t, cfg.Cache().LastChecked)
	assert.Equal(t, "idle", f.status(t, id).State, "nothing to start without an open buffer")
}

func TestCloseStopsServer(t *testing.T) {
	f := newFixture(t)
	id, srv := f.attach(t)

	require.NoError(t, f.m.Close(id))
	assert.Equal(t, 1, srv.stops)
	_, err := f.m.Status(id)
	assert.Error(t, err)

	srv.req.OnExit(entity.ExitStatus{Code: -1, Signal: "killed"})
	assert.Zero(t, f.counter("exits_suppressed"))
	assert.Zero(t, f.clock.Pending())
}

func TestDocumentSync(t *testing.T) {
	f := newFixture(t)
	id, srv := f.attach(t)

	require.NoError(t, f.m.DidChange(id, _main, 2, "x = 2\n"))
	require.NoError(t, f.m.DidChange(id, "scp://h1//srv/app/untracked.py", 2, ""))
	require.Len(t, srv.sent, 3)
	assert.Equal(t, protocol.MethodTextDocumentDidChange, srv.sent[2].method)
	assert.JSONEq(t,
		`{"textDocument":{"uri":"file:///srv/app/main.py","version":2},"contentChanges":[{"text":"x = 2\n"}]}`,
		srv.sent[2].params)

	// The replay after a restart carries the latest text.
	next := f.reattach(t)
	require.NoError(t, f.m.Restart(id))
	require.Len(t, next.sent, 2)
	assert.JSONEq(t,
		`{"textDocument":{"uri":"file:///srv/app/main.py","languageId":"python","version":2,"text":"x = 2\n"}}`,
		next.sent[1].params)

	require.NoError(t, f.m.DidClose(id, _main))
	require.Len(t, next.sent, 3)
	assert.Equal(t, protocol.MethodTextDocumentDidClose, next.sent[2].method)
	assert.JSONEq(t, `{"textDocument":{"uri":"file:///srv/app/main.py"}}`, next.sent[2].params)
	assert.Zero(t, f.status(t, id).OpenDocuments)
}

func TestRequest(t *testing.T) {
	f := newFixture(t)
	id := f.open(t, map[string]interface{}{"host": "h1", "workspaceRoot": "/srv/app"}, Init{})
	params := json.RawMessage(`{"textDocument":{"uri":"scp://h1//srv/app/main.py"},"position":{"line":1,"character":2}}`)

	t.Run("not attached", func(t *testing.T) {
		var replied error
		f.m.Request(context.Background(), id, protocol.MethodTextDocumentDefinition, params, func(_ json.RawMessage, err error) {
			replied = err
		})
		assert.True(t, rlsperrors.IsNotAttached(replied))
	})

	srv := f.reattach(t)
	require.NoError(t, f.m.DidOpen(id, doc(_main)))

	t.Run("rewritten both ways", func(t *testing.T) {
		srv.client.EXPECT().Call(gomock.Any(), protocol.MethodTextDocumentDefinition, gomock.Any()).DoAndReturn(
			func(_ context.Context, _ string, p interface{}) (json.RawMessage, error) {
				assert.JSONEq(t, `{"textDocument":{"uri":"file:///srv/app/main.py"},"position":{"line":1,"character":2}}`, marshal(t, p))
				return json.RawMessage(`[{"uri":"file:///srv/app/lib.py","range":{"start":{"line":3,"character":0},"end":{"line":3,"character":4}}}]`), nil
			})
		result, err := request(t, f.m, id, protocol.MethodTextDocumentDefinition, params)
		require.NoError(t, err)
		assert.JSONEq(t,
			`[{"uri":"scp://h1//srv/app/lib.py","range":{"start":{"line":3,"character":0},"end":{"line":3,"character":4}}}]`,
			string(result))
	})

	t.Run("server error", func(t *testing.T) {
		srv.client.EXPECT().Call(gomock.Any(), protocol.MethodTextDocumentHover, gomock.Any()).Return(nil, errors.New("boom"))
		_, err := request(t, f.m, id, protocol.MethodTextDocumentHover, params)
		assert.EqualError(t, err, "boom")
	})

	t.Run("server exits mid request", func(t *testing.T) {
		srv.client.EXPECT().Call(gomock.Any(), protocol.MethodTextDocumentHover, gomock.Any()).Return(
			nil, fmt.Errorf("%s: %w", protocol.MethodTextDocumentHover, lsclient.ErrServerExited))
		_, err := request(t, f.m, id, protocol.MethodTextDocumentHover, params)
		assert.ErrorIs(t, err, lsclient.ErrServerExited)
	})
}

func request(t *testing.T, m Manager, id uuid.UUID, method string, params json.RawMessage) (json.RawMessage, error) {
	type answer struct {
		result json.RawMessage
		err    error
	}
	done := make(chan answer, 1)
	m.Request(context.Background(), id, method, params, func(result json.RawMessage, err error) {
		done <- answer{result: result, err: err}
	})
	select {
	case a := <-done:
		return a.result, a.err
	case <-time.After(5 * time.Second):
		t.Fatal("no reply")
		return nil, nil
	}
}

func TestNotify(t *testing.T) {
	f := newFixture(t)
	id := f.open(t, map[string]interface{}{"host": "h1", "workspaceRoot": "/srv/app"}, Init{})
	params := json.RawMessage(`{"textDocument":{"uri":"scp://h1//srv/app/main.py"}}`)

	assert.True(t, rlsperrors.IsNotAttached(f.m.Notify(id, protocol.MethodTextDocumentDidSave, params)))

	srv := f.reattach(t)
	require.NoError(t, f.m.DidOpen(id, doc(_main)))
	require.NoError(t, f.m.Notify(id, protocol.MethodTextDocumentDidSave, params))
	require.Len(t, srv.sent, 3)
	assert.Equal(t, protocol.MethodTextDocumentDidSave, srv.sent[2].method)
	assert.JSONEq(t, `{"textDocument":{"uri":"file:///srv/app/main.py"}}`, srv.sent[2].params)
}

func TestServerMessages(t *testing.T) {
	f := newFixture(t)
	id, srv := f.attach(t)
	ctx := context.Background()

	t.Run("notification relayed to the editor", func(t *testing.T) {
		f.ide.EXPECT().Notify(gomock.Any(), protocol.MethodTextDocumentPublishDiagnostics, gomock.Any()).DoAndReturn(
			func(ctx context.Context, _ string, params interface{}) error {
				got, err := mapper.ContextToSessionUUID(ctx)
				require.NoError(t, err)
				assert.Equal(t, id, got)
				assert.JSONEq(t, `{"uri":"scp://h1//srv/app/main.py","diagnostics":[]}`, marshal(t, params))
				return nil
			})
		req := factory.JSONRPCNotification(protocol.MethodTextDocumentPublishDiagnostics,
			json.RawMessage(`{"uri":"file:///srv/app/main.py","diagnostics":[]}`))
		require.NoError(t, srv.req.Handler(ctx, noReply(t), req))
	})

	t.Run("workspace folders answered locally", func(t *testing.T) {
		var result interface{}
		reply := func(_ context.Context, r interface{}, err error) error {
			require.NoError(t, err)
			result = r
			return nil
		}
		require.NoError(t, srv.req.Handler(ctx, reply, factory.JSONRPCRequest(protocol.MethodWorkspaceWorkspaceFolders, nil)))
		assert.JSONEq(t, `[{"uri":"file:///srv/app","name":"app"}]`, marshal(t, result))
	})

	t.Run("request relayed to the editor", func(t *testing.T) {
		f.ide.EXPECT().Call(gomock.Any(), protocol.MethodWorkspaceConfiguration, gomock.Any()).DoAndReturn(
			func(_ context.Context, _ string, params interface{}) (json.RawMessage, error) {
				assert.JSONEq(t, `{"items":[{"scopeUri":"scp://h1//srv/app","section":"python"}]}`, marshal(t, params))
				return json.RawMessage(`[{"analysis":{}}]`), nil
			})
		done := make(chan string, 1)
		reply := func(_ context.Context, r interface{}, err error) error {
			require.NoError(t, err)
			done <- marshal(t, r)
			return nil
		}
		req := factory.JSONRPCRequest(protocol.MethodWorkspaceConfiguration,
			json.RawMessage(`{"items":[{"scopeUri":"file:///srv/app","section":"python"}]}`))
		require.NoError(t, srv.req.Handler(ctx, reply, req))
		select {
		case got := <-done:
			assert.JSONEq(t, `[{"analysis":{}}]`, got)
		case <-time.After(5 * time.Second):
			t.Fatal("no reply")
		}
	})

	t.Run("detached server is refused", func(t *testing.T) {
		require.NoError(t, f.m.Stop(id))

		var replied error
		reply := func(_ context.Context, _ interface{}, err error) error {
			replied = err
			return nil
		}
		require.NoError(t, srv.req.Handler(ctx, reply, factory.JSONRPCRequest(protocol.MethodWorkspaceConfiguration, nil)))
		var rpcErr *jsonrpc2.Error
		require.ErrorAs(t, replied, &rpcErr)
		assert.Equal(t, jsonrpc2.InternalError, rpcErr.Code)

		req := factory.JSONRPCNotification(protocol.MethodWindowLogMessage, json.RawMessage(`{"type":3,"message":"hi"}`))
		require.NoError(t, srv.req.Handler(ctx, noReply(t), req))
	})
}

func noReply(t *testing.T) jsonrpc2.Replier {
	return func(context.Context, interface{}, error) error {
		t.Error("notification was replied to")
		return nil
	}
}

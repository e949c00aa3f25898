// Package lifecycle starts, stops and reconnects the remote language server of each editor session.
package lifecycle

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gofrs/uuid"
	"github.com/uber-go/tally"
	"github.com/uber/rlsp/src/rlsp/controller/provisioner"
	"github.com/uber/rlsp/src/rlsp/controller/rewriter"
	sessionconfig "github.com/uber/rlsp/src/rlsp/controller/session-config"
	"github.com/uber/rlsp/src/rlsp/entity"
	ideclient "github.com/uber/rlsp/src/rlsp/gateway/ide-client"
	lsclient "github.com/uber/rlsp/src/rlsp/gateway/language-server"
	remoteshell "github.com/uber/rlsp/src/rlsp/gateway/remote-shell"
	"github.com/uber/rlsp/src/rlsp/internal/clock"
	"github.com/uber/rlsp/src/rlsp/internal/errors"
	"github.com/uber/rlsp/src/rlsp/internal/eventloop"
	"github.com/uber/rlsp/src/rlsp/internal/remotepath"
	"github.com/uber/rlsp/src/rlsp/mapper"
	"go.lsp.dev/protocol"
	"go.uber.org/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	_configKey = "reconnect"

	_defaultReconnectDelay = 20 * time.Second
	_initializeTimeout     = time.Minute
	_outboxStopTimeout     = 5 * time.Second

	_clientName = "rlsp"
)

// Module provides the Manager.
var Module = fx.Provide(New)

// Init is what the editor told the daemon about itself in initialize.
type Init struct {
	// RootURI is the editor's workspace root, virtual or not.
	RootURI string
	// Capabilities are the editor's client capabilities, passed on to every server.
	Capabilities json.RawMessage
}

// Manager owns the remote server of every editor session.
// Methods must be called from the event loop.
type Manager interface {
	// Open registers a session.
	Open(id uuid.UUID, cfg *sessionconfig.Config, init Init) error
	// Close stops the session's server and forgets the session.
	Close(id uuid.UUID) error

	// DidOpen tracks doc and starts a server for it when none is attached.
	DidOpen(id uuid.UUID, doc entity.Document) error
	// DidChange replaces the tracked text of uri.
	DidChange(id uuid.UUID, uri protocol.DocumentURI, version int32, text string) error
	// DidClose stops tracking uri.
	DidClose(id uuid.UUID, uri protocol.DocumentURI) error

	// Request forwards an editor request to the attached server.
	// reply is called exactly once, from any goroutine.
	Request(ctx context.Context, id uuid.UUID, method string, params json.RawMessage, reply func(json.RawMessage, error))
	// Notify forwards an editor notification to the attached server.
	Notify(id uuid.UUID, method string, params json.RawMessage) error

	// Restart stops the current server and runs the enable path again.
	Restart(id uuid.UUID) error
	// Stop stops the current server and keeps it stopped until Restart.
	Stop(id uuid.UUID) error
	// SettingsChanged restarts the server so that it picks up new settings.
	SettingsChanged(id uuid.UUID) error

	// Status describes the session.
	Status(id uuid.UUID) (entity.Status, error)
	// Config returns the session's selection.
	Config(id uuid.UUID) (*sessionconfig.Config, error)
}

// Params are the dependencies of New.
type Params struct {
	fx.In

	Config      config.Provider
	Provisioner provisioner.Provisioner
	Launcher    lsclient.Launcher
	Runner      remoteshell.Runner
	Rewriter    rewriter.Rewriter
	Translator  remotepath.Translator
	IDE         ideclient.Gateway
	Loop        eventloop.Scheduler
	Clock       clock.Clock
	Logger      *zap.SugaredLogger
	Stats       tally.Scope
}

type settings struct {
	Delay time.Duration `yaml:"delay"`
}

// outbox orders the messages written to one server.
type outbox interface {
	Post(task func())
	Start()
	Stop(ctx context.Context) error
}

type manager struct {
	provisioner provisioner.Provisioner
	launcher    lsclient.Launcher
	runner      remoteshell.Runner
	rewriter    rewriter.Rewriter
	translator  remotepath.Translator
	ide         ideclient.Gateway
	loop        eventloop.Scheduler
	clock       clock.Clock
	logger      *zap.SugaredLogger
	delay       time.Duration
	newOutbox   func() outbox

	started             tally.Counter
	exitsClean          tally.Counter
	exitsAbnormal       tally.Counter
	exitsSuppressed     tally.Counter
	reconnectsScheduled tally.Counter
	givenUp             tally.Counter

	sessions map[uuid.UUID]*session
}

type session struct {
	id  uuid.UUID
	ctx context.Context
	cfg *sessionconfig.Config

	editorRoot   string
	capabilities json.RawMessage

	state entity.LifecycleState
	docs  map[protocol.DocumentURI]*entity.Document
	// order keeps didOpen replay in the order the editor opened documents.
	order      []protocol.DocumentURI
	lastBuffer protocol.DocumentURI

	// attempted is set when an automatic reconnect was scheduled and cleared once a server attaches.
	attempted bool
	// suppress counts servers stopped on purpose whose exit has not been seen yet.
	suppress int
	// stopped is set by Stop and keeps file opens from starting a server.
	stopped bool
	closed  bool

	reconnect clock.Timer
	// gen invalidates callbacks of superseded enable attempts and timers.
	gen     int
	current *attachment
}

// attachment is one launched server process.
type attachment struct {
	client   lsclient.Client
	outbox   outbox
	host     string
	root     string
	settings entity.Settings
	// active is read by the server's message handler outside the loop.
	active  atomic.Bool
	stopped bool
}

// New creates a Manager.
func New(p Params) (Manager, error) {
	var s settings
	if err := p.Config.Get(_configKey).Populate(&s); err != nil {
		return nil, fmt.Errorf("getting config field %q: %w", _configKey, err)
	}
	if s.Delay <= 0 {
		s.Delay = _defaultReconnectDelay
	}

	logger := p.Logger.With("plugin", "lifecycle")
	stats := p.Stats.SubScope("lifecycle")
	return &manager{
		provisioner: p.Provisioner,
		launcher:    p.Launcher,
		runner:      p.Runner,
		rewriter:    p.Rewriter,
		translator:  p.Translator,
		ide:         p.IDE,
		loop:        p.Loop,
		clock:       p.Clock,
		logger:      logger,
		delay:       s.Delay,
		newOutbox: func() outbox {
			return eventloop.NewLoop(logger.Named("outbox"))
		},

		started:             stats.Counter("started"),
		exitsClean:          stats.Counter("exits_clean"),
		exitsAbnormal:       stats.Counter("exits_abnormal"),
		exitsSuppressed:     stats.Counter("exits_suppressed"),
		reconnectsScheduled: stats.Counter("reconnects_scheduled"),
		givenUp:             stats.Counter("given_up"),

		sessions: make(map[uuid.UUID]*session),
	}, nil
}

func (m *manager) Open(id uuid.UUID, cfg *sessionconfig.Config, init Init) error {
	if _, ok := m.sessions[id]; ok {
		return fmt.Errorf("session %s is already open", id)
	}
	s := &session{
		id:           id,
		ctx:          mapper.SessionUUIDToContext(context.Background(), id),
		cfg:          cfg,
		editorRoot:   init.RootURI,
		capabilities: init.Capabilities,
		state:        entity.LifecycleIdle,
		docs:         make(map[protocol.DocumentURI]*entity.Document),
	}
	if host, _, ok := m.translator.FromVirtual(init.RootURI); ok && cfg.Settings().Host == "" {
		cfg.SetHost(host)
	}
	m.sessions[id] = s
	return nil
}

func (m *manager) Close(id uuid.UUID) error {
	s, err := m.session(id)
	if err != nil {
		return err
	}
	s.closed = true
	m.cancelReconnect(s)
	m.detach(s)
	delete(m.sessions, id)
	return nil
}

func (m *manager) Status(id uuid.UUID) (entity.Status, error) {
	s, err := m.session(id)
	if err != nil {
		return entity.Status{}, err
	}
	return entity.Status{
		State:         s.state.String(),
		Settings:      s.cfg.Settings(),
		Attempted:     s.attempted,
		SuppressCount: s.suppress,
		OpenDocuments: len(s.docs),
	}, nil
}

func (m *manager) Config(id uuid.UUID) (*sessionconfig.Config, error) {
	s, err := m.session(id)
	if err != nil {
		return nil, err
	}
	return s.cfg, nil
}

func (m *manager) session(id uuid.UUID) (*session, error) {
	s, ok := m.sessions[id]
	if !ok {
		return nil, &errors.UUIDNotFoundError{UUID: id}
	}
	return s, nil
}

// attached returns the attachment that may receive forwarded traffic.
func (s *session) attached() *attachment {
	if s.state != entity.LifecycleAttached {
		return nil
	}
	return s.current
}

// Package rlspdaemon implements the rlsp-daemon business logic.
package rlspdaemon

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gofrs/uuid"
	"github.com/uber/rlsp/src/rlsp/controller/lifecycle"
	sessionconfig "github.com/uber/rlsp/src/rlsp/controller/session-config"
	ideclient "github.com/uber/rlsp/src/rlsp/gateway/ide-client"
	"github.com/uber/rlsp/src/rlsp/internal/clock"
	"github.com/uber/rlsp/src/rlsp/internal/eventloop"
	"github.com/uber/rlsp/src/rlsp/mapper"
	"github.com/uber/rlsp/src/rlsp/repository/identity"
	"github.com/uber/rlsp/src/rlsp/repository/session"
	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
	"go.uber.org/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	_idleTimeoutMinutesKey = "idleTimeoutMinutes"

	_serverName = "rlsp"
)

// Module provides the Controller.
var Module = fx.Provide(New)

// Controller orchestrates the business logic for each request.
type Controller interface {
	// LSP Methods defined per protocol.
	Initialize(ctx context.Context, params *protocol.InitializeParams) (*protocol.InitializeResult, error)
	Initialized(ctx context.Context, params *protocol.InitializedParams) error
	Shutdown(ctx context.Context) error
	Exit(ctx context.Context) error

	// Document related methods.
	DidOpen(ctx context.Context, params *protocol.DidOpenTextDocumentParams) error
	DidChange(ctx context.Context, params *protocol.DidChangeTextDocumentParams) error
	DidClose(ctx context.Context, params *protocol.DidCloseTextDocumentParams) error

	// Workspace related methods.
	DidChangeConfiguration(ctx context.Context, params *protocol.DidChangeConfigurationParams) error
	ExecuteCommand(ctx context.Context, params *protocol.ExecuteCommandParams) (interface{}, error)

	// Forward relays a request to the session's remote server. reply is called exactly once.
	// Without an attached server the result is null.
	Forward(ctx context.Context, method string, params json.RawMessage, reply func(json.RawMessage, error))
	// ForwardNotification relays a notification to the session's remote server, or drops it when none is attached.
	ForwardNotification(ctx context.Context, method string, params json.RawMessage) error

	// Custom methods for use within this service.
	InitSession(ctx context.Context, conn jsonrpc2.Conn) (uuid.UUID, error)
	EndSession(ctx context.Context, id uuid.UUID) error
}

// Params are inbound parameters to initialize a new controller.
type Params struct {
	fx.In

	Shutdowner    fx.Shutdowner
	Sessions      session.Repository
	IdeGateway    ideclient.Gateway
	Lifecycle     lifecycle.Manager
	SessionConfig *sessionconfig.Factory
	Identity      identity.Store
	Loop          eventloop.Scheduler
	Clock         clock.Clock
	Logger        *zap.SugaredLogger
	Config        config.Provider
}

type controller struct {
	sessions    session.Repository
	shutdowner  fx.Shutdowner
	ideGateway  ideclient.Gateway
	lifecycle   lifecycle.Manager
	configs     *sessionconfig.Factory
	identity    identity.Store
	loop        eventloop.Scheduler
	clock       clock.Clock
	logger      *zap.SugaredLogger
	idleTimer   clock.Timer
	idleTimerMu sync.Mutex
	idleTimeout time.Duration
}

// New constructs a new top-level controller for the service.
func New(p Params) (Controller, error) {
	var timeoutMinutes int64
	if err := p.Config.Get(_idleTimeoutMinutesKey).Populate(&timeoutMinutes); err != nil {
		return nil, fmt.Errorf("getting config field %q: %w", _idleTimeoutMinutesKey, err)
	}

	c := &controller{
		sessions:    p.Sessions,
		shutdowner:  p.Shutdowner,
		ideGateway:  p.IdeGateway,
		lifecycle:   p.Lifecycle,
		configs:     p.SessionConfig,
		identity:    p.Identity,
		loop:        p.Loop,
		clock:       p.Clock,
		logger:      p.Logger.With("plugin", "rlsp-daemon"),
		idleTimeout: time.Duration(timeoutMinutes) * time.Minute,
	}
	if err := c.refreshIdleTimer(context.Background()); err != nil {
		return nil, err
	}
	return c, nil
}

// onLoop runs f on the event loop and returns its error.
func (c *controller) onLoop(ctx context.Context, f func() error) error {
	var err error
	if loopErr := c.loop.Do(ctx, func() { err = f() }); loopErr != nil {
		return loopErr
	}
	return err
}

// sessionID returns the session that sent the current request.
func sessionID(ctx context.Context) (uuid.UUID, error) {
	id, err := mapper.ContextToSessionUUID(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("getting session from context: %w", err)
	}
	return id, nil
}

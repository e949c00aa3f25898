package rlspdaemon

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/gofrs/uuid"
	"github.com/uber/rlsp/src/rlsp/controller/lifecycle"
	sessionconfig "github.com/uber/rlsp/src/rlsp/controller/session-config"
	"github.com/uber/rlsp/src/rlsp/entity"
	"github.com/uber/rlsp/src/rlsp/internal/errors"
	"github.com/uber/rlsp/src/rlsp/mapper"
	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
)

// Initialize creates the session's configuration from initializationOptions and registers it with the lifecycle manager.
// The remote server itself is started by the first remote buffer.
func (c *controller) Initialize(ctx context.Context, params *protocol.InitializeParams) (*protocol.InitializeResult, error) {
	s, err := c.sessions.GetFromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting session from context: %w", err)
	}

	opts, err := sessionconfig.ParseInitializationOptions(params.InitializationOptions)
	if err != nil {
		return nil, err
	}
	cfg, err := c.configs.New(opts)
	if err != nil {
		return nil, fmt.Errorf("configuring session: %w", err)
	}
	capabilities, err := json.Marshal(params.Capabilities)
	if err != nil {
		return nil, fmt.Errorf("encoding client capabilities: %w", err)
	}

	s.InitializeParams = params
	if params.ClientInfo != nil {
		s.ClientName = entity.ClientName(params.ClientInfo.Name)
	}
	if err := c.sessions.Set(ctx, s); err != nil {
		return nil, fmt.Errorf("setting updated session state: %w", err)
	}

	init := lifecycle.Init{RootURI: editorRoot(params), Capabilities: capabilities}
	if err := c.onLoop(ctx, func() error { return c.lifecycle.Open(s.UUID, cfg, init) }); err != nil {
		return nil, fmt.Errorf("opening session: %w", err)
	}

	settings := cfg.Settings()
	c.logger.Infow("session initialized",
		"session", s.UUID,
		"client", s.ClientName,
		"root", init.RootURI,
		"host", settings.Host,
		"environment", settings.Environment,
		"backend", settings.Backend,
	)

	return &protocol.InitializeResult{
		Capabilities: serverCapabilities(),
		ServerInfo: &protocol.ServerInfo{
			Name: _serverName,
		},
	}, nil
}

// Initialized handles any actions that need to occur immediately after initialization.
func (c *controller) Initialized(ctx context.Context, params *protocol.InitializedParams) error {
	id, err := sessionID(ctx)
	if err != nil {
		return err
	}
	c.logger.Debugw("session ready", "session", id)
	return nil
}

// Shutdown stops the session's remote server. Later requests are refused.
func (c *controller) Shutdown(ctx context.Context) error {
	id, err := sessionID(ctx)
	if err != nil {
		return err
	}
	return c.onLoop(ctx, func() error { return c.lifecycle.Close(id) })
}

// Exit closes the editor connection. Session cleanup follows from the connection ending.
func (c *controller) Exit(ctx context.Context) error {
	s, err := c.sessions.GetFromContext(ctx)
	if err != nil {
		return fmt.Errorf("error during session exit: %w", err)
	}
	if s.Conn == nil {
		return c.EndSession(ctx, s.UUID)
	}
	return s.Conn.Close()
}

// InitSession creates a new empty session and returns its UUID.
func (c *controller) InitSession(ctx context.Context, conn jsonrpc2.Conn) (uuid.UUID, error) {
	defer c.refreshIdleTimer(ctx)

	id, err := uuid.NewV4()
	if err != nil {
		return uuid.Nil, err
	}

	s := mapper.UUIDToSession(id, conn)
	if err := c.ideGateway.RegisterClient(ctx, id, conn); err != nil {
		return uuid.Nil, err
	}

	if err := c.sessions.Set(ctx, s); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// EndSession includes any cleanup at the end of the session, during or after the last JSON-RPC request.
func (c *controller) EndSession(ctx context.Context, id uuid.UUID) error {
	defer c.refreshIdleTimer(ctx)

	err := c.onLoop(ctx, func() error { return c.lifecycle.Close(id) })
	if _, notFound := errors.NotFoundUUID(err); err != nil && !notFound {
		c.logger.Errorw("closing session", "session", id, "error", err)
	}

	if err := c.ideGateway.DeregisterClient(ctx, id); err != nil {
		c.logger.Error(err)
	}

	return c.sessions.Delete(ctx, id)
}

// refreshIdleTimer ensures that the service shuts down after a defined inactivity period with no connections.
func (c *controller) refreshIdleTimer(ctx context.Context) error {
	if c.idleTimeout <= 0 {
		return nil
	}

	c.idleTimerMu.Lock()
	defer c.idleTimerMu.Unlock()

	// First call, from New, starts the timer and leaves it running prior to the first connection.
	if c.idleTimer == nil {
		c.idleTimer = c.clock.AfterFunc(c.idleTimeout, c.idleShutdown)
		return nil
	}

	// Subsequent calls stop the timer and restart it only if no connections are active.
	currentSessions, err := c.sessions.SessionCount(ctx)
	if err != nil {
		return fmt.Errorf("error resetting timeout: %w", err)
	}

	c.idleTimer.Stop()
	if currentSessions == 0 {
		c.idleTimer = c.clock.AfterFunc(c.idleTimeout, c.idleShutdown)
	}
	return nil
}

func (c *controller) idleShutdown() {
	c.logger.Info("Shutdown signal received.")
	if err := c.shutdowner.Shutdown(); err != nil {
		os.Exit(1)
	}
}

// editorRoot returns the root the editor opened, preferring rootUri over the first workspace folder.
func editorRoot(params *protocol.InitializeParams) string {
	if params.RootURI != "" {
		return string(params.RootURI)
	}
	if len(params.WorkspaceFolders) > 0 {
		return params.WorkspaceFolders[0].URI
	}
	return ""
}

// serverCapabilities advertises what any supported backend can serve.
// Requests the attached server does not support are answered by it.
func serverCapabilities() protocol.ServerCapabilities {
	return protocol.ServerCapabilities{
		TextDocumentSync: protocol.TextDocumentSyncOptions{
			OpenClose: true,
			Change:    protocol.TextDocumentSyncKindFull,
			Save:      &protocol.SaveOptions{},
		},
		CompletionProvider: &protocol.CompletionOptions{
			TriggerCharacters: []string{"."},
		},
		HoverProvider: true,
		SignatureHelpProvider: &protocol.SignatureHelpOptions{
			TriggerCharacters: []string{"(", ","},
		},
		DeclarationProvider:        true,
		DefinitionProvider:         true,
		TypeDefinitionProvider:     true,
		ReferencesProvider:         true,
		DocumentHighlightProvider:  true,
		DocumentSymbolProvider:     true,
		WorkspaceSymbolProvider:    true,
		CodeActionProvider:         true,
		DocumentFormattingProvider: true,
		RenameProvider:             true,
		ExecuteCommandProvider: &protocol.ExecuteCommandOptions{
			Commands: Commands,
		},
	}
}

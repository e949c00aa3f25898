// Package ideclient sends outbound notifications and calls to connected editor sessions.
package ideclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/uuid"
	"github.com/uber/rlsp/src/rlsp/entity"
	"github.com/uber/rlsp/src/rlsp/internal/clock"
	"github.com/uber/rlsp/src/rlsp/mapper"
	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	_errSendToClient = "sending call/notification to IDE: %w"

	_timeoutUserSelectionMoreInfo = time.Second * 5
	_timeoutUserSelectionEnd      = time.Minute * 2

	_titleUserInputProgress          = "User Input Needed"
	_messageUserInputProgressInitial = "Please make a selection from the prompt."
	_messageUserInputProgressUpdate  = "Waiting for a selection. Click here to expand notifications if you don't see a prompt."

	// MethodInput requests a free form value from the editor.
	MethodInput = "rlsp/input"
)

// Module provides the Gateway.
var Module = fx.Provide(New)

// Gateway is used to send outbound notifications and calls to the editor.
// All calls to the gateway should include a context with a session UUID, which will be used to route outbound calls and notifications to the correct editor session.
type Gateway interface {
	// RegisterClient registers a new client with the gateway. Should be called each time a new editor connection is initialized.
	RegisterClient(ctx context.Context, id uuid.UUID, conn jsonrpc2.Conn) error
	// DeregisterClient removes a client from the gateway. Should be called each time an editor connection is closed.
	DeregisterClient(ctx context.Context, id uuid.UUID) error

	ShowMessage(ctx context.Context, params *protocol.ShowMessageParams) error
	ShowMessageRequest(ctx context.Context, params *protocol.ShowMessageRequestParams) (*protocol.MessageActionItem, error)
	LogMessage(ctx context.Context, params *protocol.LogMessageParams) error

	// Call relays a request to the editor and returns its raw result.
	Call(ctx context.Context, method string, params interface{}) (json.RawMessage, error)
	// Notify relays a notification to the editor.
	Notify(ctx context.Context, method string, params interface{}) error

	// Report shows message to the user. Delivery failures are only logged.
	Report(ctx context.Context, severity entity.Severity, message string)
	// Confirm asks the user to pick one of actions. cb receives the chosen title, or ok false when dismissed.
	// cb runs on a gateway owned goroutine.
	Confirm(ctx context.Context, message string, actions []string, cb func(choice string, ok bool))
	// Input asks the editor for a free form value. Editors that do not implement it count as cancelled.
	// cb runs on a gateway owned goroutine.
	Input(ctx context.Context, req entity.InputRequest, cb func(entity.InputResponse))

	// GetLogMessageWriter returns an io.Writer that can be used to log messages to the editor.
	// Do not store or use across requests, get a new one each time as needed.
	GetLogMessageWriter(ctx context.Context, prefix string) (io.Writer, error)
}

type gateway struct {
	clients     map[uuid.UUID]protocol.Client
	connections map[uuid.UUID]jsonrpc2.Conn
	clientsMu   sync.Mutex
	logger      *zap.Logger
	clock       clock.Clock
}

// New returns a Gateway for sending editor notifications and calls.
func New(logger *zap.Logger, c clock.Clock) Gateway {
	return &gateway{
		clients:     make(map[uuid.UUID]protocol.Client),
		connections: make(map[uuid.UUID]jsonrpc2.Conn),
		logger:      logger,
		clock:       c,
	}
}

func (g *gateway) RegisterClient(ctx context.Context, id uuid.UUID, conn jsonrpc2.Conn) error {
	g.clientsMu.Lock()
	defer g.clientsMu.Unlock()

	g.clients[id] = protocol.ClientDispatcher(conn, g.logger)
	g.connections[id] = conn
	return nil
}

func (g *gateway) DeregisterClient(ctx context.Context, id uuid.UUID) error {
	g.clientsMu.Lock()
	defer g.clientsMu.Unlock()

	delete(g.clients, id)
	delete(g.connections, id)
	return nil
}

func (g *gateway) ShowMessage(ctx context.Context, params *protocol.ShowMessageParams) error {
	c, _, err := g.getClient(ctx)
	if err != nil {
		return fmt.Errorf(_errSendToClient, err)
	}
	return c.ShowMessage(ctx, params)
}

func (g *gateway) ShowMessageRequest(ctx context.Context, params *protocol.ShowMessageRequestParams) (*protocol.MessageActionItem, error) {
	c, _, err := g.getClient(ctx)
	if err != nil {
		return nil, fmt.Errorf(_errSendToClient, err)
	}

	if params.Type > protocol.MessageTypeError {
		// Messages levels Warn and below get hidden if the user has their notifications silenced.
		// Guide them to check their notifications.
		showMessageDone, err := g.showWaitingForUserSelection(ctx)
		if err != nil {
			return nil, fmt.Errorf(_errSendToClient, err)
		}
		defer showMessageDone()
	}

	return c.ShowMessageRequest(ctx, params)
}

func (g *gateway) LogMessage(ctx context.Context, params *protocol.LogMessageParams) error {
	c, _, err := g.getClient(ctx)
	if err != nil {
		return fmt.Errorf(_errSendToClient, err)
	}
	return c.LogMessage(ctx, params)
}

func (g *gateway) Call(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	_, conn, err := g.getClient(ctx)
	if err != nil {
		return nil, fmt.Errorf(_errSendToClient, err)
	}
	var result json.RawMessage
	if _, err := conn.Call(ctx, method, params, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (g *gateway) Notify(ctx context.Context, method string, params interface{}) error {
	_, conn, err := g.getClient(ctx)
	if err != nil {
		return fmt.Errorf(_errSendToClient, err)
	}
	return conn.Notify(ctx, method, params)
}

func (g *gateway) Report(ctx context.Context, severity entity.Severity, message string) {
	err := g.ShowMessage(ctx, &protocol.ShowMessageParams{
		Message: message,
		Type:    severityToMessageType(severity),
	})
	if err != nil {
		g.logger.Warn("reporting to IDE", zap.String("severity", severity.String()), zap.String("message", message), zap.Error(err))
	}
}

func (g *gateway) Confirm(ctx context.Context, message string, actions []string, cb func(choice string, ok bool)) {
	items := make([]protocol.MessageActionItem, 0, len(actions))
	for _, a := range actions {
		items = append(items, protocol.MessageActionItem{Title: a})
	}
	go func() {
		item, err := g.ShowMessageRequest(ctx, &protocol.ShowMessageRequestParams{
			Message: message,
			Type:    protocol.MessageTypeInfo,
			Actions: items,
		})
		if err != nil {
			g.logger.Warn("confirmation request failed", zap.Error(err))
			cb("", false)
			return
		}
		if item == nil || item.Title == "" {
			cb("", false)
			return
		}
		cb(item.Title, true)
	}()
}

func (g *gateway) Input(ctx context.Context, req entity.InputRequest, cb func(entity.InputResponse)) {
	go func() {
		raw, err := g.Call(ctx, MethodInput, req)
		if err != nil {
			g.logger.Info("input request not answered", zap.String("kind", string(req.Kind)), zap.Error(err))
			cb(entity.InputResponse{Cancelled: true})
			return
		}
		var resp entity.InputResponse
		if len(raw) == 0 || string(raw) == "null" {
			cb(entity.InputResponse{Cancelled: true})
			return
		}
		if err := json.Unmarshal(raw, &resp); err != nil {
			g.logger.Warn("decoding input response", zap.Error(err))
			cb(entity.InputResponse{Cancelled: true})
			return
		}
		resp.Value = strings.TrimSpace(resp.Value)
		if resp.Value == "" {
			resp.Cancelled = true
		}
		cb(resp)
	}()
}

func (g *gateway) getClient(ctx context.Context) (protocol.Client, jsonrpc2.Conn, error) {
	g.clientsMu.Lock()
	defer g.clientsMu.Unlock()

	id, err := mapper.ContextToSessionUUID(ctx)
	if err != nil {
		return nil, nil, err
	}

	client, ok := g.clients[id]
	if !ok {
		return nil, nil, fmt.Errorf("client with id %q not found", id)
	}

	conn, ok := g.connections[id]
	if !ok {
		return nil, nil, fmt.Errorf("client with id %q not found", id)
	}
	return client, conn, nil
}

// showWaitingForUserSelection sends a notification to the editor that a user selection is required.
// This is added in case the editor has notifications hidden, to make the user aware that their action is needed.
func (g *gateway) showWaitingForUserSelection(ctx context.Context) (doneFunc func(), err error) {
	c, _, err := g.getClient(ctx)
	if err != nil {
		return nil, fmt.Errorf(_errSendToClient, err)
	}

	tokenID, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf(_errSendToClient, err)
	}

	token := protocol.NewProgressToken(tokenID.String())
	if err := c.WorkDoneProgressCreate(ctx, &protocol.WorkDoneProgressCreateParams{Token: *token}); err != nil {
		return nil, fmt.Errorf("creating user input progress: %w", err)
	}
	if err := c.Progress(ctx, &protocol.ProgressParams{
		Token: *token,
		Value: &protocol.WorkDoneProgressBegin{
			Kind:        protocol.WorkDoneProgressKindBegin,
			Title:       _titleUserInputProgress,
			Message:     _messageUserInputProgressInitial,
			Cancellable: true,
		},
	}); err != nil {
		return nil, fmt.Errorf("starting user input progress: %w", err)
	}

	updateProgressTimer := g.clock.AfterFunc(_timeoutUserSelectionMoreInfo, func() {
		c.Progress(ctx, &protocol.ProgressParams{
			Token: *token,
			Value: &protocol.WorkDoneProgressReport{
				Kind:    protocol.WorkDoneProgressKindReport,
				Message: _messageUserInputProgressUpdate,
			},
		})
	})

	// The user may ignore the prompt, so the hint is not shown indefinitely.
	endProgressFunc := func() {
		c.Progress(ctx, &protocol.ProgressParams{
			Token: *token,
			Value: &protocol.WorkDoneProgressEnd{Kind: protocol.WorkDoneProgressKindEnd},
		})
	}
	endProgressTimer := g.clock.AfterFunc(_timeoutUserSelectionEnd, endProgressFunc)

	doneFunc = func() {
		updateProgressTimer.Stop()
		if endProgressTimer.Stop() {
			endProgressFunc()
		}
	}
	return doneFunc, nil
}

func severityToMessageType(s entity.Severity) protocol.MessageType {
	switch s {
	case entity.SeverityError:
		return protocol.MessageTypeError
	case entity.SeverityWarning:
		return protocol.MessageTypeWarning
	default:
		return protocol.MessageTypeInfo
	}
}

// logMessageWriter implements io.Writer to allow logging to the editor in situations that require an io.Writer.
type logMessageWriter struct {
	client protocol.Client
	ctx    context.Context
	prefix string
}

func (g *gateway) GetLogMessageWriter(ctx context.Context, prefix string) (io.Writer, error) {
	c, _, err := g.getClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting IDE log message writer: %w", err)
	}
	return &logMessageWriter{
		client: c,
		ctx:    ctx,
		prefix: prefix,
	}, nil
}

func (w *logMessageWriter) Write(p []byte) (n int, err error) {
	str := strings.TrimSuffix(string(p), "\n")
	if err := w.client.LogMessage(w.ctx, &protocol.LogMessageParams{
		Message: fmt.Sprintf("[%s] %s", w.prefix, str),
		Type:    protocol.MessageTypeLog,
	}); err != nil {
		return 0, fmt.Errorf("writing to IDE log message writer: %w", err)
	}
	return len(p), nil
}

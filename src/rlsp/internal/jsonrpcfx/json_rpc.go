package jsonrpcfx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"

	"github.com/gofrs/uuid"
	"github.com/uber/rlsp/src/rlsp/internal/serverinfofile"
	"go.lsp.dev/jsonrpc2"
	"go.uber.org/config"
	"go.uber.org/fx"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	_configKey = "jsonrpc"
	_outputKey = "lsp-address"
)

// Mode selects how editors reach the daemon.
type Mode string

const (
	// ModeStdio serves a single editor over the process's stdin and stdout.
	ModeStdio Mode = "stdio"
	// ModeTCP serves any number of editors on a TCP address.
	ModeTCP Mode = "tcp"
)

// Module is an fx module to handle JSON-RPC requests.
var Module = fx.Provide(New)

// JSONRPCModule represents a module to manage JSON-RPC requests.
type JSONRPCModule interface {
	OnStart(ctx context.Context) error
	OnStop(ctx context.Context) error
	ServeStream(ctx context.Context, conn jsonrpc2.Conn) error
	RegisterConnectionManager(connectionManager ConnectionManager) error
	Mode() Mode
}

// Router serves as the interface through which handling of requests will be implemented.
type Router interface {
	HandleReq(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error
	UUID() uuid.UUID
}

// ConnectionManager will manage each active connection and its corresponding Router throughout the lifecycle of a connection.
type ConnectionManager interface {
	NewConnection(ctx context.Context, conn jsonrpc2.Conn) (router Router, err error)
	RemoveConnection(ctx context.Context, id uuid.UUID)
}

type settings struct {
	Mode    Mode   `yaml:"mode"`
	Address string `yaml:"address"`
}

type module struct {
	settings

	connectionMgr  ConnectionManager
	ln             net.Listener
	stdio          io.ReadWriteCloser
	logger         *zap.SugaredLogger
	serverInfoFile serverinfofile.ServerInfoFile
	shutdowner     fx.Shutdowner
}

// Params define values to be used by JsonRpcHandler.
type Params struct {
	fx.In

	Config         config.Provider
	Lifecycle      fx.Lifecycle
	Logger         *zap.SugaredLogger
	ServerInfoFile serverinfofile.ServerInfoFile
	Shutdowner     fx.Shutdowner
}

// New creates a module serving JSON-RPC in the configured mode.
func New(p Params) (JSONRPCModule, error) {
	if p.Lifecycle == nil || p.Config == nil {
		return nil, errors.New("required parameters are missing")
	}

	m := module{
		logger:         p.Logger,
		serverInfoFile: p.ServerInfoFile,
		shutdowner:     p.Shutdowner,
	}

	if err := m.processConfig(p.Config); err != nil {
		return nil, err
	}

	p.Lifecycle.Append(fx.Hook{
		OnStart: m.OnStart,
		OnStop:  m.OnStop,
	})

	return &m, nil
}

// OnStart binds the transport and then begins handling incoming connections.
func (m *module) OnStart(ctx context.Context) error {
	if m.settings.Mode == ModeStdio {
		if m.stdio == nil {
			m.stdio = stdStreams{ReadCloser: os.Stdin, WriteCloser: os.Stdout}
		}
		go m.serveStdio()
		return nil
	}

	if err := m.setup(); err != nil {
		return err
	}
	go m.start()
	return nil
}

// OnStop closes the transport. Open connections end with it.
func (m *module) OnStop(ctx context.Context) error {
	switch {
	case m.ln != nil:
		return m.ln.Close()
	case m.stdio != nil:
		return m.stdio.Close()
	}
	return nil
}

// ServeStream is called when a new connection is initiated. Requests received via the connection will be routed to the handler, and answered via the connection's replier.
func (m *module) ServeStream(ctx context.Context, conn jsonrpc2.Conn) error {
	if m.connectionMgr == nil {
		m.logger.Errorf("cannot serve connection, no connection manager set")
		return errors.New("cannot serve connection, no connection manager set")
	}

	// Start handling the connection.
	handler, err := m.connectionMgr.NewConnection(ctx, conn)
	if err != nil {
		return err
	}
	m.logger.Infow("client connected", zap.Stringer("uuid", handler.UUID()))
	conn.Go(ctx, handler.HandleReq)

	// Block indefinitely until connection closed.
	<-conn.Done()

	// Cleanup after connection.
	m.connectionMgr.RemoveConnection(ctx, handler.UUID())
	m.logger.Infow("client disconnected", zap.Stringer("uuid", handler.UUID()))

	return conn.Err()
}

// RegisterConnectionManager sets the connection manager, which keeps track of current active connections and provides a Router implementation.
func (m *module) RegisterConnectionManager(connectionMgr ConnectionManager) error {
	if m.connectionMgr != nil {
		return errors.New("cannot register a duplicate connection manager")
	}
	m.connectionMgr = connectionMgr
	return nil
}

func (m *module) Mode() Mode {
	return m.settings.Mode
}

// setup should be called after creation of a new handler to set initial values.
func (m *module) setup() error {
	if m.Address == "" {
		return errors.New("setup called before address is set")
	}

	addr, err := net.ResolveTCPAddr("tcp", m.Address)
	if err != nil {
		return err
	}

	m.ln, err = net.ListenTCP("tcp", addr)
	return err
}

// start will begin serving connections, and panic on error.
func (m *module) start() {
	address := m.ln.Addr().String()
	if err := m.serverInfoFile.UpdateField(_outputKey, address); err != nil {
		panic(err)
	}

	m.logger.Infow("started JSON-RPC inbound", zap.String("mode", string(ModeTCP)), zap.String("address", address))
	if err := jsonrpc2.Serve(context.Background(), m.ln, m, 0); err != nil && !errors.Is(err, net.ErrClosed) {
		panic(err)
	}
}

// serveStdio serves the editor that launched the process, and shuts the process down once it disconnects.
func (m *module) serveStdio() {
	m.logger.Infow("started JSON-RPC inbound", zap.String("mode", string(ModeStdio)))
	conn := jsonrpc2.NewConn(jsonrpc2.NewStream(m.stdio))
	if err := m.ServeStream(context.Background(), conn); err != nil && !errors.Is(err, io.EOF) {
		m.logger.Warnw("stdio connection ended", zap.Error(err))
	}
	if err := m.shutdowner.Shutdown(); err != nil {
		m.logger.Errorw("requesting shutdown", zap.Error(err))
	}
}

// processConfig will parse the configuration for any values required by this module.
func (m *module) processConfig(cfg config.Provider) error {
	val := cfg.Get(_configKey)
	if err := val.Populate(&m.settings); err != nil {
		// incorrectly formatted config
		return fmt.Errorf("getting config field %q: %w", _configKey, err)
	}

	switch m.settings.Mode {
	case "":
		m.settings.Mode = ModeTCP
	case ModeStdio, ModeTCP:
	default:
		return fmt.Errorf("unknown %s.mode %q, expected %q or %q", _configKey, m.settings.Mode, ModeStdio, ModeTCP)
	}

	if m.settings.Mode == ModeTCP && m.settings.Address == "" {
		// yaml is missing either the key or value
		return fmt.Errorf("missing field %q in config", _configKey+".address")
	}

	return nil
}

// stdStreams joins the process's standard streams into one stream.
type stdStreams struct {
	io.ReadCloser
	io.WriteCloser
}

func (s stdStreams) Close() error {
	return multierr.Append(s.ReadCloser.Close(), s.WriteCloser.Close())
}

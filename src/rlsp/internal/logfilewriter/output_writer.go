// Package logfilewriter collects human readable output into a temporary file the editor can tail.
package logfilewriter

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/uber/rlsp/src/rlsp/internal/fs"
	"github.com/uber/rlsp/src/rlsp/internal/serverinfofile"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	_fmtOutputKey = "output:%s"
	_dirName      = "rlsp"
)

// Params define the dependencies for SetupOutputWriter.
type Params struct {
	FS             fs.RlspFS
	Lifecycle      fx.Lifecycle
	ServerInfoFile serverinfofile.ServerInfoFile
}

// OutputWriter writes lines of output to one log file.
type OutputWriter struct {
	logger *zap.SugaredLogger
	path   string
}

// SetupOutputWriter creates a log file under the user's temp directory and publishes
// its path in the server info file as output:<name>. The file is removed on shutdown.
func SetupOutputWriter(p Params, name string) (*OutputWriter, error) {
	logsDirPath := filepath.Join(os.TempDir(), _dirName, name)
	if err := p.FS.MkdirAll(logsDirPath); err != nil {
		return nil, err
	}

	logFile, err := p.FS.TempFile(logsDirPath, "")
	if err != nil {
		return nil, err
	}

	if err := p.ServerInfoFile.UpdateField(fmt.Sprintf(_fmtOutputKey, name), logFile.Name()); err != nil {
		logFile.Close()
		return nil, err
	}

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		zapcore.AddSync(logFile),
		zap.InfoLevel,
	)
	w := &OutputWriter{logger: zap.New(core).Sugar(), path: logFile.Name()}

	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			w.logger.Sync()
			logFile.Close()
			return p.FS.Remove(logFile.Name())
		},
	})

	return w, nil
}

// Path is the location of the log file.
func (o *OutputWriter) Path() string {
	return o.path
}

// Write logs each non-empty line of p.
func (o *OutputWriter) Write(p []byte) (int, error) {
	for _, line := range bytes.Split(p, []byte("\n")) {
		if len(line) > 0 {
			o.logger.Info(string(line))
		}
	}
	return len(p), nil
}

// Stream returns a writer for one producer. Lines are prefixed and only logged once complete,
// so output arriving in arbitrary chunks is not split mid-line.
func (o *OutputWriter) Stream(prefix string) *LineWriter {
	return &LineWriter{logger: o.logger.With("source", prefix)}
}

// LineWriter buffers partial lines until a newline or Close.
type LineWriter struct {
	mu      sync.Mutex
	logger  *zap.SugaredLogger
	pending []byte
}

func (l *LineWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.pending = append(l.pending, p...)
	for {
		i := bytes.IndexByte(l.pending, '\n')
		if i < 0 {
			break
		}
		if line := bytes.TrimRight(l.pending[:i], "\r"); len(line) > 0 {
			l.logger.Info(string(line))
		}
		l.pending = l.pending[i+1:]
	}
	return len(p), nil
}

// Close logs any unterminated trailing line.
func (l *LineWriter) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.pending) > 0 {
		l.logger.Info(string(l.pending))
		l.pending = nil
	}
	return nil
}

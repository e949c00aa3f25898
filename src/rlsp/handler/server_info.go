package handler

import (
	"fmt"
	"os"
	"strconv"

	"github.com/uber/rlsp/src/rlsp/internal/jsonrpcfx"
	"github.com/uber/rlsp/src/rlsp/internal/serverinfofile"
)

const (
	_infoKeyPID  = "pid"
	_infoKeyMode = "jsonrpc-mode"
)

// Output process details for tools that locate a running daemon.
// The JSON-RPC module adds its own listen address once it is bound.
func outputServerInfo(jsonrpcmod jsonrpcfx.JSONRPCModule, infofile serverinfofile.ServerInfoFile) error {
	fields := []struct{ key, value string }{
		{_infoKeyPID, strconv.Itoa(os.Getpid())},
		{_infoKeyMode, string(jsonrpcmod.Mode())},
	}
	for _, f := range fields {
		if err := infofile.UpdateField(f.key, f.value); err != nil {
			return fmt.Errorf("outputting %q to info file: %w", f.key, err)
		}
	}
	return nil
}

package gateway

import (
	ideclient "github.com/uber/rlsp/src/rlsp/gateway/ide-client"
	lsclient "github.com/uber/rlsp/src/rlsp/gateway/language-server"
	remoteshell "github.com/uber/rlsp/src/rlsp/gateway/remote-shell"
	"go.uber.org/fx"
)

// Module provides the outbound clients: the editor, the remote shell and the remote language server.
var Module = fx.Options(
	ideclient.Module,
	remoteshell.Module,
	lsclient.Module,
)

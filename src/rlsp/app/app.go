package app

import (
	"context"
	"time"

	"github.com/uber-go/tally"
	"github.com/uber/rlsp/src/rlsp/gateway"
	"github.com/uber/rlsp/src/rlsp/handler"
	"github.com/uber/rlsp/src/rlsp/internal/clock"
	"github.com/uber/rlsp/src/rlsp/internal/core"
	"github.com/uber/rlsp/src/rlsp/internal/eventloop"
	"github.com/uber/rlsp/src/rlsp/internal/executor"
	"github.com/uber/rlsp/src/rlsp/internal/fs"
	"github.com/uber/rlsp/src/rlsp/internal/jsonrpcfx"
	"github.com/uber/rlsp/src/rlsp/internal/serverinfofile"
	"github.com/uber/rlsp/src/rlsp/repository/identity"
	"go.uber.org/fx"
)

const _serviceName = "rlsp"

// Module defines the rlsp daemon application module.
var Module = fx.Options(
	gateway.Module, // outbounds
	handler.Module, // inbounds
	jsonrpcfx.Module,
	eventloop.Module,
	clock.Module,
	fs.Module,
	executor.Module,
	serverinfofile.Module,
	identity.Module,
	core.ConfigModule,
	core.LoggerModule,
	fx.Provide(newRootScope),
	fx.Decorate(decorateConfigProvider),
)

func newRootScope(lc fx.Lifecycle) tally.Scope {
	rs, closer := tally.NewRootScope(tally.ScopeOptions{
		Tags: map[string]string{
			"service": _serviceName,
		},
	}, 1*time.Second)

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return closer.Close()
		},
	})

	return rs
}

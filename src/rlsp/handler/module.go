package handler

import (
	controller "github.com/uber/rlsp/src/rlsp/controller"
	rlspdaemon "github.com/uber/rlsp/src/rlsp/controller/rlsp-daemon"
	handler "github.com/uber/rlsp/src/rlsp/handler/rlsp-daemon"
	"github.com/uber/rlsp/src/rlsp/repository/session"
	"go.uber.org/fx"
)

// Module provides the rlsp daemon's editor facing handlers into an Fx application.
var Module = fx.Options(
	controller.Module,
	session.Module,
	fx.Provide(handler.New),
	fx.Invoke(outputServerInfo),
	fx.Invoke(func(m handler.Handler) {}),
	fx.Invoke(func(m rlspdaemon.Controller) {}),
)

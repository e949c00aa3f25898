package controller

import (
	"github.com/uber/rlsp/src/rlsp/controller/lifecycle"
	"github.com/uber/rlsp/src/rlsp/controller/provisioner"
	"github.com/uber/rlsp/src/rlsp/controller/rewriter"
	rlspdaemon "github.com/uber/rlsp/src/rlsp/controller/rlsp-daemon"
	sessionconfig "github.com/uber/rlsp/src/rlsp/controller/session-config"
	"go.uber.org/fx"
)

var Module = fx.Options(
	rlspdaemon.Module,
	lifecycle.Module,
	provisioner.Module,
	rewriter.Module,
	sessionconfig.Module,
)

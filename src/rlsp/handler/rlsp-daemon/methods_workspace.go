package rlspdaemon

import (
	"context"

	controller "github.com/uber/rlsp/src/rlsp/controller/rlsp-daemon"
	"github.com/uber/rlsp/src/rlsp/mapper"
	"go.lsp.dev/jsonrpc2"
)

func (r *jsonRPCRouter) DidChangeConfiguration(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	params, err := mapper.RequestToDidChangeConfigurationParams(req)
	if err != nil {
		return reply(ctx, nil, err)
	}

	err = r.rlspdaemon.DidChangeConfiguration(ctx, params)
	return reply(ctx, nil, err)
}

// ExecuteCommand runs rlsp.* commands in the daemon and forwards all others to the remote server.
func (r *jsonRPCRouter) ExecuteCommand(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	params, err := mapper.RequestToExecuteCommandParams(req)
	if err != nil {
		return reply(ctx, nil, err)
	}
	if !controller.IsCommand(params.Command) {
		return r.Forward(ctx, reply, req)
	}

	result, err := r.rlspdaemon.ExecuteCommand(ctx, params)
	return reply(ctx, result, err)
}

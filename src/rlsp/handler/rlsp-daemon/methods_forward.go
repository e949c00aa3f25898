package rlspdaemon

import (
	"context"
	"encoding/json"

	"go.lsp.dev/jsonrpc2"
)

// Forward relays a request or notification the daemon does not handle itself.
// Calls are answered asynchronously, so the connection keeps reading while the remote server works.
func (r *jsonRPCRouter) Forward(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	if _, ok := req.(*jsonrpc2.Call); !ok {
		err := r.rlspdaemon.ForwardNotification(ctx, req.Method(), req.Params())
		return reply(ctx, nil, err)
	}

	r.rlspdaemon.Forward(ctx, req.Method(), req.Params(), func(result json.RawMessage, err error) {
		reply(ctx, result, err)
	})
	return nil
}

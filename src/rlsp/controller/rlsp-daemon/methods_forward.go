package rlspdaemon

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/uber/rlsp/src/rlsp/internal/errors"
)

func (c *controller) Forward(ctx context.Context, method string, params json.RawMessage, reply func(json.RawMessage, error)) {
	id, err := sessionID(ctx)
	if err != nil {
		reply(nil, err)
		return
	}

	var once sync.Once
	relay := func(result json.RawMessage, err error) {
		once.Do(func() {
			if errors.IsNotAttached(err) {
				reply(nil, nil)
				return
			}
			reply(result, err)
		})
	}
	if err := c.loop.Do(ctx, func() { c.lifecycle.Request(ctx, id, method, params, relay) }); err != nil {
		relay(nil, err)
	}
}

func (c *controller) ForwardNotification(ctx context.Context, method string, params json.RawMessage) error {
	id, err := sessionID(ctx)
	if err != nil {
		return err
	}
	err = c.onLoop(ctx, func() error { return c.lifecycle.Notify(id, method, params) })
	if errors.IsNotAttached(err) {
		c.logger.Debugw("dropping notification, no server attached", "session", id, "method", method)
		return nil
	}
	return err
}

// Package eventlooptest provides a Scheduler that runs tasks inline for tests.
package eventlooptest

import (
	"context"

	"github.com/uber/rlsp/src/rlsp/internal/eventloop"
)

// Immediate runs every task on the calling goroutine as soon as it is posted.
type Immediate struct{}

var _ eventloop.Scheduler = Immediate{}

// Post implements eventloop.Scheduler.
func (Immediate) Post(task func()) {
	task()
}

// Do implements eventloop.Scheduler.
func (Immediate) Do(_ context.Context, task func()) error {
	task()
	return nil
}

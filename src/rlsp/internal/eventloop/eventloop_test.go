package eventloop

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newStartedLoop(t *testing.T) *Loop {
	l := NewLoop(zap.NewNop().Sugar())
	l.Start()
	t.Cleanup(func() {
		require.NoError(t, l.Stop(context.Background()))
	})
	return l
}

func TestPostOrder(t *testing.T) {
	l := newStartedLoop(t)

	var mu sync.Mutex
	var got []int
	for i := 0; i < 100; i++ {
		i := i
		l.Post(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		})
	}
	require.NoError(t, l.Do(context.Background(), func() {}))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 100)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestPostFromTask(t *testing.T) {
	l := newStartedLoop(t)

	done := make(chan struct{})
	l.Post(func() {
		l.Post(func() { close(done) })
	})

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("nested task did not run")
	}
}

func TestPanicRecovery(t *testing.T) {
	core, recorded := observer.New(zapcore.ErrorLevel)
	l := NewLoop(zap.New(core).Sugar())
	l.Start()
	defer l.Stop(context.Background())

	l.Post(func() { panic("boom") })
	ran := false
	require.NoError(t, l.Do(context.Background(), func() { ran = true }))

	assert.True(t, ran)
	assert.Equal(t, 1, recorded.FilterMessage("task panicked").Len())
}

func TestDoContextCancelled(t *testing.T) {
	l := newStartedLoop(t)

	release := make(chan struct{})
	l.Post(func() { <-release })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := l.Do(ctx, func() {})
	assert.ErrorIs(t, err, context.Canceled)
	close(release)
}

func TestClosed(t *testing.T) {
	l := NewLoop(zap.NewNop().Sugar())
	l.Start()
	require.NoError(t, l.Stop(context.Background()))

	l.Post(func() { t.Error("task ran after close") })
	assert.ErrorIs(t, l.Do(context.Background(), func() {}), ErrClosed)
}

func TestStopDrainsQueue(t *testing.T) {
	l := NewLoop(zap.NewNop().Sugar())
	ran := 0
	l.Post(func() { ran++ })
	l.Post(func() { ran++ })
	l.Start()
	require.NoError(t, l.Stop(context.Background()))
	assert.Equal(t, 2, ran)
}

func TestStopWithoutStart(t *testing.T) {
	l := NewLoop(zap.NewNop().Sugar())
	assert.NoError(t, l.Stop(context.Background()))
}

func TestModule(t *testing.T) {
	var s Scheduler
	app := fxtest.New(
		t,
		fx.Provide(func() *zap.SugaredLogger { return zap.NewNop().Sugar() }),
		Module,
		fx.Populate(&s),
	)
	app.RequireStart()

	ran := false
	require.NoError(t, s.Do(context.Background(), func() { ran = true }))
	assert.True(t, ran)

	app.RequireStop()
}

package async

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() (*logrus.Logger, *test.Hook) {
	logger, hook := test.NewNullLogger()
	logger.SetOutput(io.Discard)
	return logger, hook
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task did not finish")
	}
}

func TestSafeGo_Success(t *testing.T) {
	logger, hook := quietLogger()
	executed := atomic.Bool{}

	done := SafeGo(context.Background(), logger, time.Second, "test task", func(ctx context.Context) error {
		executed.Store(true)
		return nil
	})
	waitDone(t, done)

	assert.True(t, executed.Load())
	assert.Empty(t, hook.AllEntries())
}

func TestSafeGo_WithError(t *testing.T) {
	logger, hook := quietLogger()

	done := SafeGo(context.Background(), logger, time.Second, "test task", func(ctx context.Context) error {
		return errors.New("test error")
	})
	waitDone(t, done)

	require.Len(t, hook.AllEntries(), 1)
	entry := hook.LastEntry()
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "test task", entry.Data["task"])
}

func TestSafeGo_Timeout(t *testing.T) {
	logger, _ := quietLogger()
	completed := atomic.Bool{}

	done := SafeGo(context.Background(), logger, 50*time.Millisecond, "test task", func(ctx context.Context) error {
		select {
		case <-time.After(time.Second):
			completed.Store(true)
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	waitDone(t, done)

	assert.False(t, completed.Load(), "function should have been canceled by timeout")
}

func TestSafeGo_PanicRecovery(t *testing.T) {
	logger, hook := quietLogger()

	done := SafeGo(context.Background(), logger, time.Second, "test task", func(ctx context.Context) error {
		panic("test panic")
	})
	waitDone(t, done)

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
	assert.Equal(t, "test panic", hook.LastEntry().Data["panic"])
}

func TestSafeGo_ContextCancellation(t *testing.T) {
	logger, _ := quietLogger()
	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})

	done := SafeGo(ctx, logger, 5*time.Second, "test task", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})

	<-started
	cancel()
	waitDone(t, done)
}

func TestSafeGo_NilLogger(t *testing.T) {
	done := SafeGo(context.Background(), nil, time.Second, "test task", func(ctx context.Context) error {
		return nil
	})
	waitDone(t, done)
}

func TestSafeGoNoError(t *testing.T) {
	logger, _ := quietLogger()
	executed := atomic.Bool{}

	done := SafeGoNoError(context.Background(), logger, time.Second, "test task", func(ctx context.Context) {
		executed.Store(true)
	})
	waitDone(t, done)

	assert.True(t, executed.Load())
}

package relay

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/s0ra0000/sushi-go-backend/internal/hub"
)

type nopBroadcaster struct{}

func (nopBroadcaster) Broadcast(room hub.RoomID, event string, payload any) {}

func TestListener_RetriesFailedSubscribeUntilCanceled(t *testing.T) {
	l := NewListener("postgres://unreachable/db", "game_events", NewRouter(nopBroadcaster{}))

	var attempts atomic.Int64
	l.dial = func(ctx context.Context) (*pgx.Conn, error) {
		attempts.Add(1)
		return nil, errors.New("connection refused")
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(done)
	}()

	// 失败的订阅按退避间隔持续重试（初始 500ms），不会放弃
	require.Eventually(t, func() bool { return attempts.Load() >= 3 },
		10*time.Second, 20*time.Millisecond, "订阅失败后应持续重试")

	// 只有 ctx 取消能终止主循环
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("ctx 取消后 Run 应当退出")
	}
}

func TestListener_CancelBeforeFirstSubscribeStopsRun(t *testing.T) {
	l := NewListener("postgres://unreachable/db", "game_events", NewRouter(nopBroadcaster{}))
	l.dial = func(ctx context.Context) (*pgx.Conn, error) {
		return nil, errors.New("connection refused")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("已取消的 ctx 下 Run 应立即退出")
	}
}

package relay

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"
)

// Listener 维护一条到数据库的持久通知订阅。
// 进程级别只有一个实例，进程启动时建立订阅；连接断开后自动重连并重新订阅
// （指数退避加抖动，无限重试）——静默的永久断连会让整条中继路径失效。
type Listener struct {
	channel string
	router  *Router

	// dial 建立专用连接并完成频道订阅，测试中可替换
	dial func(ctx context.Context) (*pgx.Conn, error)
}

// NewListener 创建 Listener 实例。
// channel 是数据库通知频道名，router 接收每条成功收取的原始负载。
func NewListener(connString, channel string, router *Router) *Listener {
	if router == nil {
		panic("Router cannot be nil for Listener")
	}
	l := &Listener{channel: channel, router: router}
	l.dial = func(ctx context.Context) (*pgx.Conn, error) {
		conn, err := pgx.Connect(ctx, connString)
		if err != nil {
			return nil, err
		}
		if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{channel}.Sanitize()); err != nil {
			closeConn(conn)
			return nil, err
		}
		return conn, nil
	}
	return l
}

// Run 启动订阅主循环，直到 ctx 取消才返回。
// 应在单独的 goroutine 中运行。
func (l *Listener) Run(ctx context.Context) {
	log := logrus.WithField("channel", l.channel)
	log.Info("Listener: starting notification subscription")

	for {
		conn, err := l.subscribe(ctx)
		if err != nil {
			// subscribe 只在 ctx 取消时放弃重试
			log.Info("Listener: shutting down")
			return
		}
		log.Info("Listener: subscribed to notification channel")

		l.receive(ctx, conn)
		closeConn(conn)

		if ctx.Err() != nil {
			log.Info("Listener: shutting down")
			return
		}
		log.Warn("Listener: connection lost, resubscribing")
	}
}

// subscribe 建立订阅，失败时按退避策略重试。
func (l *Listener) subscribe(ctx context.Context) (*pgx.Conn, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 30 * time.Second
	bo.MaxElapsedTime = 0 // 永不放弃，只有 ctx 取消能终止

	var conn *pgx.Conn
	operation := func() error {
		var err error
		if conn, err = l.dial(ctx); err != nil {
			logrus.WithField("channel", l.channel).
				WithError(err).Warn("Listener: subscribe failed, will retry")
			return err
		}
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return nil, err
	}
	return conn, nil
}

// receive 串行收取通知并同步交给 Router。
// 频道是串行投递的，Router 不能长时间阻塞，否则会延迟后续全部事件。
// 返回意味着连接出错或 ctx 取消，由调用方决定是否重连。
func (l *Listener) receive(ctx context.Context, conn *pgx.Conn) {
	for {
		notification, err := conn.WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() == nil {
				logrus.WithField("channel", l.channel).
					WithError(err).Warn("Listener: wait for notification failed")
			}
			return
		}

		logrus.WithFields(logrus.Fields{
			"channel":      notification.Channel,
			"payload_size": len(notification.Payload),
		}).Debug("Listener: notification received")

		l.router.Route([]byte(notification.Payload))
	}
}

// closeConn 带超时地关闭一条专用连接，不依赖可能已取消的调用方 ctx。
func closeConn(conn *pgx.Conn) {
	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	_ = conn.Close(closeCtx)
	cancel()
}

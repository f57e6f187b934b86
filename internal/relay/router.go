package relay

import (
	"github.com/sirupsen/logrus"

	"github.com/s0ra0000/sushi-go-backend/internal/domain"
	"github.com/s0ra0000/sushi-go-backend/internal/hub"
)

// Broadcaster 是 Router 对房间注册表的最小依赖。
type Broadcaster interface {
	Broadcast(room hub.RoomID, event string, payload any)
}

// Router 将一条解码后的数据库通知路由到目标会话房间。
// 不做过滤、排序或去重：按当前成员快照至多投递一次，
// 上游重复通知会原样重复广播。
type Router struct {
	hub Broadcaster
}

// NewRouter 创建 Router 实例。
func NewRouter(b Broadcaster) *Router {
	if b == nil {
		panic("Broadcaster cannot be nil for Router")
	}
	return &Router{hub: b}
}

// Route 解析一条原始通知负载并广播到对应的会话房间。
// 事件名取自负载本身（数据驱动），完整负载原样作为消息体转发。
// 畸形负载只记录日志后丢弃，绝不 panic，也绝不广播。
func (r *Router) Route(payload []byte) {
	n, err := domain.ParseNotification(payload)
	if err != nil {
		logrus.WithField("payload_size", len(payload)).
			WithError(err).Warn("Router: dropping malformed notification")
		return
	}

	room := hub.SessionRoom(n.SessionID)
	logrus.WithFields(logrus.Fields{
		"session_id": n.SessionID,
		"event":      n.Event,
		"room":       room,
	}).Info("Router: relaying notification")

	r.hub.Broadcast(room, n.Event, n.Raw)
}

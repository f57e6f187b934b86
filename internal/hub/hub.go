package hub

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/s0ra0000/sushi-go-backend/internal/dto"
)

// RoomID 标识一个广播组：全局会话列表房间，或某个游戏会话的专属房间。
type RoomID string

// ListRoom 是全局的会话列表房间，所有关注会话列表的客户端加入此房间。
const ListRoom RoomID = "session_list"

// SessionRoom 根据会话 ID 生成对应的房间标识，命名规则固定为 session_<id>。
func SessionRoom(sessionID int64) RoomID {
	return RoomID(fmt.Sprintf("session_%d", sessionID))
}

// IsSession 判断房间是否为某个会话的专属房间。
func (r RoomID) IsSession() bool {
	return r != ListRoom && strings.HasPrefix(string(r), "session_")
}

// Hub 维护房间到客户端集合的内存映射，支持加入、退出和广播。
// 成员关系由互斥锁保护：监听器路径和请求处理路径会并发触达这里。
type Hub struct {
	mu sync.RWMutex
	// rooms 按房间组织客户端集合
	rooms map[RoomID]map[*Client]struct{}
	// membership 是反向索引，记录每个客户端当前所在的房间，供 LeaveAll 使用
	membership map[*Client]map[RoomID]struct{}
}

// New 创建一个空的 Hub 实例。
// Hub 不是全局状态，由 bootstrap 创建后注入到需要它的组件。
func New() *Hub {
	return &Hub{
		rooms:      make(map[RoomID]map[*Client]struct{}),
		membership: make(map[*Client]map[RoomID]struct{}),
	}
}

// Join 将客户端加入指定房间，重复加入是幂等的。
// 一个连接最多同时属于一个会话房间：加入新的会话房间会先退出旧的。
// 列表房间的成员资格与会话房间相互独立。
func (h *Hub) Join(c *Client, room RoomID) {
	if c == nil {
		logrus.Error("Hub: Attempted to join with a nil client")
		return
	}

	h.mu.Lock()
	if room.IsSession() {
		// 会话房间互斥：先移除已有的其他会话房间成员资格
		for joined := range h.membership[c] {
			if joined.IsSession() && joined != room {
				h.removeLocked(c, joined)
			}
		}
	}
	if _, ok := h.rooms[room]; !ok {
		h.rooms[room] = make(map[*Client]struct{})
	}
	h.rooms[room][c] = struct{}{}
	if _, ok := h.membership[c]; !ok {
		h.membership[c] = make(map[RoomID]struct{})
	}
	h.membership[c][room] = struct{}{}
	h.mu.Unlock()

	logrus.WithFields(logrus.Fields{"conn_id": c.ID(), "room": room}).Info("Hub: Client joined room")
}

// Leave 将客户端移出指定房间，客户端不在房间内时为空操作。
func (h *Hub) Leave(c *Client, room RoomID) {
	if c == nil {
		return
	}
	h.mu.Lock()
	h.removeLocked(c, room)
	h.mu.Unlock()

	logrus.WithFields(logrus.Fields{"conn_id": c.ID(), "room": room}).Debug("Hub: Client left room")
}

// LeaveAll 将客户端从其所属的全部房间移除。
// 传输层断开时必须调用，防止成员残留和房间无限增长。
func (h *Hub) LeaveAll(c *Client) {
	if c == nil {
		return
	}
	h.mu.Lock()
	for room := range h.membership[c] {
		h.removeLocked(c, room)
	}
	h.mu.Unlock()

	logrus.WithField("conn_id", c.ID()).Info("Hub: Client removed from all rooms")
}

// removeLocked 在持有写锁的前提下移除一条成员关系，房间变空时删除房间记录。
func (h *Hub) removeLocked(c *Client, room RoomID) {
	if members, ok := h.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	if joined, ok := h.membership[c]; ok {
		delete(joined, room)
		if len(joined) == 0 {
			delete(h.membership, c)
		}
	}
}

// Broadcast 将事件投递给房间当前的全部成员。
// 成员集合在调用时刻快照，广播期间的加入/退出不保证一致性（尽力而为）。
// payload 可以是 json.RawMessage（原样转发）或任意可序列化的值。
func (h *Hub) Broadcast(room RoomID, event string, payload any) {
	data, err := marshalData(payload)
	if err != nil {
		logrus.WithFields(logrus.Fields{"room": room, "event": event}).
			WithError(err).Error("Hub: Failed to marshal broadcast payload")
		return
	}
	message, err := json.Marshal(dto.Envelope{Event: event, Data: data})
	if err != nil {
		logrus.WithFields(logrus.Fields{"room": room, "event": event}).
			WithError(err).Error("Hub: Failed to marshal broadcast envelope")
		return
	}

	// 在读锁内复制接收者列表，避免发送期间长时间持锁
	h.mu.RLock()
	members := h.rooms[room]
	recipients := make([]*Client, 0, len(members))
	for c := range members {
		recipients = append(recipients, c)
	}
	h.mu.RUnlock()

	if len(recipients) == 0 {
		return
	}

	logCtx := logrus.WithFields(logrus.Fields{
		"room":            room,
		"event":           event,
		"recipient_count": len(recipients),
	})
	logCtx.Debug("Hub: Broadcasting event")

	for _, c := range recipients {
		// 非阻塞发送，慢客户端丢弃这一条；快照后才断开的客户端由 Send 拒绝
		c.Send(message)
	}
}

// marshalData 将广播负载规整为 json.RawMessage。
func marshalData(payload any) (json.RawMessage, error) {
	switch v := payload.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return v, nil
	case []byte:
		return json.RawMessage(v), nil
	default:
		return json.Marshal(v)
	}
}

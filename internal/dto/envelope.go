package dto

import "encoding/json"

// Envelope 是 WebSocket 双向通信的统一消息格式。
// event 是事件名（客户端命令或服务端推送），data 是任意 JSON 负载。
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// 客户端到服务端的事件名。
// 服务端到客户端的事件名是数据驱动的（例如 sessions_changed、updatePlayers、
// 以及从数据库通知原样转发的任意事件），不在此枚举。
const (
	EventSessionList     = "session_list"
	EventJoinSessionRoom = "joinSessionRoom"
	EventLeaveSession    = "leaveSession"
)

// SessionRoomPayload 是 joinSessionRoom / leaveSession 事件的负载。
type SessionRoomPayload struct {
	SessionID int64  `json:"sessionId"`
	Token     string `json:"token"`
}

// PlayersPayload 是 updatePlayers 事件的负载：会话当前的成员快照。
type PlayersPayload struct {
	Players json.RawMessage `json:"players"`
}

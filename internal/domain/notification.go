package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedNotification 表示通知负载不是 JSON 或缺少必需字段。
// 这类通知只记录日志后丢弃，绝不向客户端传播。
var ErrMalformedNotification = errors.New("domain: malformed notification payload")

// Notification 是数据库通过通知频道推送的一条事件。
// 必需字段为 session_id 和 event，其余字段随 Raw 原样转发。
type Notification struct {
	SessionID int64           // 目标游戏会话 ID
	Event     string          // 数据驱动的事件名，例如 "countdown"
	Raw       json.RawMessage // 完整原始负载，广播时原样使用
}

// ParseNotification 解析并校验一条原始通知负载。
// 非 JSON、缺少 event、缺少或非法的 session_id 都返回 ErrMalformedNotification。
func ParseNotification(payload []byte) (*Notification, error) {
	var fields struct {
		SessionID *int64 `json:"session_id"`
		Event     string `json:"event"`
	}
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedNotification, err)
	}
	if fields.SessionID == nil || *fields.SessionID <= 0 {
		return nil, fmt.Errorf("%w: missing or invalid session_id", ErrMalformedNotification)
	}
	if fields.Event == "" {
		return nil, fmt.Errorf("%w: missing event", ErrMalformedNotification)
	}

	raw := make(json.RawMessage, len(payload))
	copy(raw, payload)
	return &Notification{
		SessionID: *fields.SessionID,
		Event:     fields.Event,
		Raw:       raw,
	}, nil
}

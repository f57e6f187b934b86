package hub

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096

	// 每个客户端发送通道的缓冲区大小。
	sendBufferSize = 256
)

// MessageHandler 处理客户端发来的单条原始消息。
// 由 WebSocket 协议层实现，在客户端自己的读 goroutine 中同步调用。
type MessageHandler interface {
	OnMessage(c *Client, data []byte)
	// OnDisconnect 在客户端的成员关系被清理后调用一次。
	OnDisconnect(c *Client)
}

// Client 代表一条到客户端的实时双向连接。
// 生命周期：传输层连接时创建，断开时销毁；销毁时必须退出其所属的全部房间。
type Client struct {
	id      string
	hub     *Hub
	conn    *websocket.Conn
	handler MessageHandler

	// mu 保护 closed 与发送通道的关闭时序：
	// 广播路径只能通过 Send 投递，保证绝不向已关闭的通道发送
	mu     sync.Mutex
	closed bool
	send   chan []byte
}

// NewClient 创建 Client 实例并分配唯一连接标识。
func NewClient(hub *Hub, conn *websocket.Conn, handler MessageHandler) *Client {
	return &Client{
		id:      uuid.NewString(),
		hub:     hub,
		conn:    conn,
		handler: handler,
		send:    make(chan []byte, sendBufferSize),
	}
}

// ID 返回连接的唯一标识。
func (c *Client) ID() string { return c.id }

// Run 启动客户端的读写 goroutine。
func (c *Client) Run() {
	go c.writePump()
	go c.readPump()
}

// Send 将一条已编码的消息放入客户端的发送队列（非阻塞）。
// 连接已关闭或队列已满时丢弃并返回 false。
func (c *Client) Send(message []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- message:
		return true
	default:
		logrus.WithField("conn_id", c.id).Warn("Client: send channel full, dropping message")
		return false
	}
}

// close 标记连接已关闭并关闭发送通道（仅一次），由此驱动 writePump 退出。
// 先在锁内置位，再关闭通道：持锁的 Send 要么在关闭前完成投递，
// 要么看到 closed 后拒绝，两者都不会触达已关闭的通道。
func (c *Client) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	close(c.send)
}

// readPump 将消息从 WebSocket 连接泵入协议层。
// 在自己的 goroutine 中运行；退出时清理该连接的全部房间成员关系。
func (c *Client) readPump() {
	defer func() {
		// 断开清理：退出全部房间，然后结束写 goroutine
		c.hub.LeaveAll(c)
		if c.handler != nil {
			c.handler.OnDisconnect(c)
		}
		c.close()
		c.conn.Close()
		logrus.WithField("conn_id", c.id).Info("Client: readPump exited, connection cleaned up")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			logCtx := logrus.WithField("conn_id", c.id)
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logCtx.WithError(err).Warn("Client: WebSocket read error (unexpected close)")
			} else {
				logCtx.Debug("Client: WebSocket connection closed")
			}
			break
		}

		// 只处理文本消息；协议层在本 goroutine 中同步处理，
		// 慢的数据库调用只会延迟这一条连接自己的后续命令
		if messageType == websocket.TextMessage && c.handler != nil {
			c.handler.OnMessage(c, message)
		}
	}
}

// writePump 将发送队列中的消息写入 WebSocket 连接，并周期性发送 Ping。
// 在自己的 goroutine 中运行。
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		logrus.WithField("conn_id", c.id).Debug("Client: writePump exited")
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// 发送通道已关闭，通知对端后退出
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logrus.WithField("conn_id", c.id).WithError(err).Warn("Client: failed to write message to websocket")
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logrus.WithField("conn_id", c.id).WithError(err).Warn("Client: failed to send ping message")
				return
			}
		}
	}
}

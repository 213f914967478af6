package internal

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// 系統設計問題：
//   如何把對局協調層的廣播語義落到持久雙向連接上？
//
// 核心挑戰：
//   1. 實時通信：對局狀態變更需要立即推送給所有成員
//   2. 連接管理：斷線必須轉化為協調層的斷線事件（判負 / 銷毀）
//   3. 心跳機制：檢測死連接（網絡異常、客戶端崩潰）
//   4. 順序保證：單一連線的訊息按到達順序交給協調層
//
// 設計方案：
//   ✅ WebSocket - 全雙工通信（低延遲、服務器推送）
//   ✅ Hub 模式 - 集中管理所有連接，實作 Emitter 抽象
//   ✅ Ping/Pong 心跳 - 檢測死連接（54s/60s）
//   ✅ 緩衝 channel - 異步發送（不阻塞協調層）

// MessageSink 入站事件的接收端（由協調器實現）。
//
// Hub 為每條連線附加不可偽造的連線身份；訊息按單一連線
// 的到達順序交付（readPump 單 goroutine 循環保證 FIFO）。
type MessageSink interface {
	HandleMessage(connID string, raw []byte)
	HandleDisconnect(connID string)
}

// Hub WebSocket 連接中心。
//
// 集中管理所有客戶端連接並實作協調層的 Emitter 抽象。
// 對局成員清單由協調層提供，Hub 只按連線 ID 尋址，
// 不重複維護對局成員關係。
type Hub struct {
	sink     MessageSink
	logger   *slog.Logger
	upgrader websocket.Upgrader

	clients map[string]*client // connID -> client
	mu      sync.RWMutex
}

// client 單一 WebSocket 連接
type client struct {
	id        string
	conn      *websocket.Conn
	send      chan []byte
	hub       *Hub
	closeOnce sync.Once // 確保 channel 只關閉一次
}

// NewHub 創建 WebSocket Hub
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// 在生產環境應該檢查來源
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		clients: make(map[string]*client),
	}
}

// SetSink 綁定入站事件接收端（啟動前呼叫一次）
func (hub *Hub) SetSink(sink MessageSink) {
	hub.sink = sink
}

// 驗證介面實現
var _ Emitter = (*Hub)(nil)

// ServeWS 處理 WebSocket 連接。
//
// 每條連接分配一個不可偽造的連線 ID，升級後立即告知客戶端
//（客戶端據此在 roleAssignment 中認出自己的座位）。
func (hub *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := hub.upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.logger.Error("升級 WebSocket 失敗", "error", err)
		return
	}

	cl := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, 256),
		hub:  hub,
	}

	hub.mu.Lock()
	hub.clients[cl.id] = cl
	hub.mu.Unlock()

	go cl.writePump()
	go cl.readPump()

	hub.Notify(cl.id, Event{
		Type: EventConnected,
		Data: map[string]any{"connectionId": cl.id},
	})

	hub.logger.Info("WebSocket 連接建立", "conn_id", cl.id)
}

// Broadcast 推播事件給一組連線（Emitter 實現）
func (hub *Hub) Broadcast(connIDs []string, event Event) {
	message, err := json.Marshal(event)
	if err != nil {
		hub.logger.Error("序列化事件失敗", "event", event.Type, "error", err)
		return
	}

	hub.mu.RLock()
	defer hub.mu.RUnlock()
	for _, connID := range connIDs {
		hub.sendLocked(connID, message)
	}
}

// Notify 推播事件給單一連線（Emitter 實現）
func (hub *Hub) Notify(connID string, event Event) {
	message, err := json.Marshal(event)
	if err != nil {
		hub.logger.Error("序列化事件失敗", "event", event.Type, "error", err)
		return
	}

	hub.mu.RLock()
	defer hub.mu.RUnlock()
	hub.sendLocked(connID, message)
}

// sendLocked 非阻塞發送（需持有讀鎖）
func (hub *Hub) sendLocked(connID string, message []byte) {
	cl, exists := hub.clients[connID]
	if !exists {
		return
	}
	select {
	case cl.send <- message:
	default:
		// 連接緩衝區滿了，丟棄（慢客戶端不拖累對局）
		hub.logger.Warn("連接緩衝區滿", "conn_id", connID)
	}
}

// unregister 取消註冊連接
func (hub *Hub) unregister(cl *client) {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	if actual, exists := hub.clients[cl.id]; exists && actual == cl {
		delete(hub.clients, cl.id)
		cl.closeOnce.Do(func() {
			close(cl.send)
		})
	}
}

// Stop 停止 Hub：關閉所有連接
func (hub *Hub) Stop() {
	hub.mu.Lock()
	for _, cl := range hub.clients {
		cl.closeOnce.Do(func() {
			close(cl.send)
		})
		cl.conn.Close()
	}
	hub.clients = make(map[string]*client)
	hub.mu.Unlock()

	hub.logger.Info("WebSocket Hub 已停止")
}

// ConnectionCount 當前連接數（統計用）
func (hub *Hub) ConnectionCount() int {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	return len(hub.clients)
}

// readPump 讀取客戶端消息。
//
// 心跳機制（讀取端）：60 秒內沒有任何消息（包括 Pong）即視為
// 死連接；收到 Pong 重置超時。配合 writePump 的 54 秒 Ping
//（留 6 秒余量給網絡傳輸與處理）。
//
// 連接結束時（正常關閉或死連接）統一轉化為協調層的斷線事件。
func (c *client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
		c.hub.sink.HandleDisconnect(c.id)
	}()

	if err := c.conn.SetReadDeadline(time.Now().Add(60 * time.Second)); err != nil {
		c.hub.logger.Error("設置讀取期限失敗", "error", err)
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(60 * time.Second)); err != nil {
			c.hub.logger.Error("設置讀取期限失敗", "error", err)
		}
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Error("WebSocket 讀取錯誤",
					"error", err,
					"conn_id", c.id)
			}
			break
		}

		if messageType == websocket.TextMessage {
			c.hub.sink.HandleMessage(c.id, message)
		}
	}
}

// writePump 寫入消息到客戶端。
//
// 心跳機制（發送端）：每 54 秒發送 Ping（避開常見的 60 秒
// 代理超時閾值）。異步發送經由緩衝 channel，批量清空隊列。
func (c *client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
				c.hub.logger.Error("設置寫入期限失敗", "error", err)
			}
			if !ok {
				// Hub 關閉了通道，優雅關閉連接
				deadline := time.Now().Add(time.Second)
				if err := c.conn.SetWriteDeadline(deadline); err == nil {
					_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				}
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

			// 批量發送隊列中的消息
			n := len(c.send)
			for i := 0; i < n; i++ {
				if err := c.conn.WriteMessage(websocket.TextMessage, <-c.send); err != nil {
					c.hub.logger.Error("發送消息失敗", "error", err)
					return
				}
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
				c.hub.logger.Error("設置寫入期限失敗", "error", err)
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

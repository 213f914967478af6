package internal

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/koopa0/system-design/14-match-orchestration/internal/game"
	"github.com/koopa0/system-design/14-match-orchestration/internal/quoridor"
	apperrors "github.com/koopa0/system-design/14-match-orchestration/pkg/errors"
)

// 系統設計問題：
//   多場並行對局、各自獨立計時、訊息可能亂序或惡意，
//   如何保證每場對局只有單一事實來源？
//
// 核心挑戰：
//   1. 路由：每條入站訊息 O(1) 找到所屬對局（不靠客戶端自報）
//   2. 原子性：對局狀態轉換不能被其他事件的處理撕裂
//   3. 局部失敗：斷線、超時只影響自己的對局，不波及進程
//   4. 清理：對局銷毀由連線驅動，與勝負結果無關
//
// 設計方案：
//   ✅ 單一互斥鎖串行化所有入站事件（訊息、斷線、計時信號），
//      每個處理器運行至完成，對局轉換天然原子
//   ✅ 註冊表 + 反向索引（connID → sessionID）事務性同步維護
//   ✅ 計時回呼重新檢查對局狀態，途中信號安全丟棄
//   ✅ 協調層只依賴 Emitter 抽象，不依賴具體傳輸

// EngineFactory 規則引擎工廠（測試可注入替身）
type EngineFactory func(cfg game.Config) game.RuleEngine

// ConfigProvider 局人數 → 對局配置（測試可縮短時間預算）
type ConfigProvider func(partySize int) (game.Config, error)

// Coordinator 對局協調器。
//
// 獨佔擁有配對佇列、對局註冊表與連線索引；所有可變狀態
// 只透過本結構的方法變更，其他元件從不直接觸碰。
type Coordinator struct {
	emitter    Emitter
	matchmaker *Matchmaker
	logger     *slog.Logger

	mu          sync.Mutex
	sessions    map[string]*Session // sessionID -> Session
	connSession map[string]string   // connID -> sessionID（O(1) 路由索引）

	newEngine     EngineFactory
	configFor     ConfigProvider
	clockInterval time.Duration
}

// Option 協調器選項
type Option func(*Coordinator)

// WithEngineFactory 替換規則引擎工廠
func WithEngineFactory(factory EngineFactory) Option {
	return func(c *Coordinator) { c.newEngine = factory }
}

// WithConfigProvider 替換配置推導（測試用：縮短時間預算）
func WithConfigProvider(provider ConfigProvider) Option {
	return func(c *Coordinator) { c.configFor = provider }
}

// WithClockInterval 替換計時 tick 間隔（測試用）
func WithClockInterval(interval time.Duration) Option {
	return func(c *Coordinator) { c.clockInterval = interval }
}

// NewCoordinator 創建對局協調器。
//
// 預設使用 Quoridor 規則引擎與每秒一次的計時 tick。
func NewCoordinator(emitter Emitter, logger *slog.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		emitter:     emitter,
		matchmaker:  NewMatchmaker(logger),
		logger:      logger,
		sessions:    make(map[string]*Session),
		connSession: make(map[string]string),
		newEngine: func(cfg game.Config) game.RuleEngine {
			return quoridor.New(cfg)
		},
		configFor:     game.ConfigForPartySize,
		clockInterval: DefaultClockInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HandleMessage 解析並分派一條客戶端訊息。
//
// 發送者連線身份由傳輸層提供。格式錯誤只回報給發送者，
// 不影響任何對局狀態。
func (c *Coordinator) HandleMessage(connID string, raw []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.logger.Debug("解析客戶端訊息失敗", "conn_id", connID, "error", err)
		c.emitter.Notify(connID, errorEvent(apperrors.ErrCodeInvalidInput, "malformed message"))
		return
	}

	switch msg.Type {
	case MsgFindGame:
		c.HandleFindGame(connID, msg.PartySize)
	case MsgRequestMove:
		if msg.MoveData == nil {
			c.emitter.Notify(connID, errorEvent(apperrors.ErrCodeInvalidInput, "missing moveData"))
			return
		}
		c.HandleMove(connID, *msg.MoveData)
	case MsgResign:
		c.HandleResign(connID)
	case MsgRequestDraw:
		c.HandleDrawOffer(connID)
	case MsgRespondToDraw:
		c.HandleDrawResponse(connID, msg.Accepted)
	default:
		c.logger.Debug("收到未知訊息類型", "conn_id", connID, "type", msg.Type)
		c.emitter.Notify(connID, errorEvent(apperrors.ErrCodeInvalidInput, "unknown message type"))
	}
}

// HandleFindGame 處理配對請求。
//
// 已在進行中對局的連線不得重複配對；已結束對局的成員
// 允許再次配對（釋放舊對局的成員資格，必要時順帶銷毀）。
func (c *Coordinator) HandleFindGame(connID string, partySize int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if sid, ok := c.connSession[connID]; ok {
		s := c.sessions[sid]
		if s.Status != SessionFinished {
			c.emitter.Notify(connID, errorEvent(apperrors.ErrCodeInvalidInput, "already in a game"))
			return
		}
		c.releaseMembershipLocked(s, connID)
	}

	cfg, err := c.configFor(partySize)
	if err != nil {
		c.emitter.Notify(connID, errorEvent(apperrors.ErrCodeInvalidPartySize, apperrors.ErrInvalidPartySize.Message))
		return
	}

	group, remaining, err := c.matchmaker.Enqueue(connID, partySize)
	if err != nil {
		c.emitter.Notify(connID, errorEvent(apperrors.Code(err), err.Error()))
		return
	}

	c.emitter.Notify(connID, waitingEvent(remaining))

	if group != nil {
		c.realizeLocked(group, cfg)
	}
}

// realizeLocked 將成團的整組連線落地為一場對局。
//
// 順序要求：先註冊（對局可路由）、再精確一次廣播 gameStart、
// 最後轉 active 並啟動計時器。廣播緊跟註冊，確保成員隨後的
// 訊息不會跑在對局可路由之前。需持有 c.mu。
func (c *Coordinator) realizeLocked(group []string, cfg game.Config) {
	id := "session_" + uuid.NewString()
	engine := c.newEngine(cfg)
	s := newSession(id, cfg, group, engine)

	c.sessions[id] = s
	for _, connID := range group {
		c.connSession[connID] = id
	}

	c.emitter.Broadcast(s.Members(), gameStartEvent(s, engine.State()))
	s.Status = SessionActive

	s.Clock = NewClock(
		cfg.Roles,
		cfg.TimePerPlayer(),
		c.clockInterval,
		func() (game.Role, bool) { return c.currentTurn(id) },
		func(role game.Role) { c.handleClockTimeout(id, role) },
		func(clocks map[game.Role]int64) { c.broadcastClocks(id, clocks) },
	)
	s.Clock.Start()

	c.logger.Info("對局建立",
		"session_id", id,
		"party_size", cfg.PartySize,
		"role_assignment", s.RoleAssignment())
}

// LookupByConnection 查詢連線所屬的對局（O(1)）
func (c *Coordinator) LookupByConnection(connID string) (*Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lookupLocked(connID)
}

// lookupLocked 需持有 c.mu
func (c *Coordinator) lookupLocked(connID string) (*Session, bool) {
	sid, ok := c.connSession[connID]
	if !ok {
		return nil, false
	}
	s, ok := c.sessions[sid]
	return s, ok
}

// HandleDisconnect 處理傳輸層斷線事件。
//
// 依序：移出配對佇列（冪等）→ 歸因到座位 → 進行中則
// 斷線判負 → 最後一位成員離線則銷毀對局。
func (c *Coordinator) HandleDisconnect(connID string) {
	c.matchmaker.RemoveIfQueued(connID)

	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.lookupLocked(connID)
	if !ok {
		return
	}

	role, hasRole := s.RoleOf(connID)
	anyLeft := s.MarkDisconnected(connID)
	delete(c.connSession, connID)

	if s.Status == SessionActive && hasRole {
		c.logger.Info("玩家於對局中斷線",
			"session_id", s.ID,
			"conn_id", connID,
			"role", role)
		s.Engine.ForceLoss(role, game.CauseDisconnection)
		c.finishSessionLocked(s, role)
	}

	// 防禦性覆蓋 forming / finished：無人在線一律銷毀
	if !anyLeft {
		c.disposeLocked(s)
	}
}

// finishSessionLocked 將對局轉為終態並廣播結局。
//
// 結束原因與贏家以規則引擎的權威狀態為準；計時器立即取消。
// 需持有 c.mu。
func (c *Coordinator) finishSessionLocked(s *Session, loser game.Role) {
	s.Status = SessionFinished
	s.PendingDrawOfferFrom = ""
	if s.Clock != nil {
		s.Clock.Stop()
	}

	final := s.Engine.State()
	c.emitter.Broadcast(s.ConnectedMembers(), gameOverEvent(final.EndCause, final.Winner, loser, final))

	c.logger.Info("對局結束",
		"session_id", s.ID,
		"cause", final.EndCause,
		"winner", final.Winner)
}

// disposeLocked 將對局從註冊表移除（需持有 c.mu）。
//
// 只在最後一位成員斷線後呼叫；對已結束的對局同樣安全。
func (c *Coordinator) disposeLocked(s *Session) {
	if s.Clock != nil {
		s.Clock.Stop()
	}
	for _, connID := range s.Members() {
		if c.connSession[connID] == s.ID {
			delete(c.connSession, connID)
		}
	}
	delete(c.sessions, s.ID)

	c.logger.Info("對局銷毀", "session_id", s.ID)
}

// releaseMembershipLocked 釋放已結束對局的成員資格（再配對前）。
//
// 需持有 c.mu。最後一位釋放者順帶銷毀對局。
func (c *Coordinator) releaseMembershipLocked(s *Session, connID string) {
	anyLeft := s.MarkDisconnected(connID)
	delete(c.connSession, connID)
	if !anyLeft {
		c.disposeLocked(s)
	}
}

// currentTurn 計時器查詢當前回合方（對局不在進行中時 ok 為 false）
func (c *Coordinator) currentTurn(sessionID string) (game.Role, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.sessions[sessionID]
	if !ok || s.Status != SessionActive {
		return "", false
	}
	return s.Engine.State().PlayerTurn, true
}

// broadcastClocks 定期推播剩餘時間
func (c *Coordinator) broadcastClocks(sessionID string, clocks map[game.Role]int64) {
	c.mu.Lock()
	s, ok := c.sessions[sessionID]
	if !ok || s.Status != SessionActive {
		c.mu.Unlock()
		return
	}
	members := s.ConnectedMembers()
	c.mu.Unlock()

	c.emitter.Broadcast(members, clockUpdateEvent(clocks))
}

// handleClockTimeout 計時器超時信號。
//
// 信號可能與其他結束路徑競速，先重新檢查對局仍在進行中。
func (c *Coordinator) handleClockTimeout(sessionID string, role game.Role) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.sessions[sessionID]
	if !ok || s.Status != SessionActive {
		return
	}

	c.logger.Info("玩家超時",
		"session_id", sessionID,
		"role", role)
	s.Engine.ForceLoss(role, game.CauseTimeout)
	c.finishSessionLocked(s, role)
}

// Stats 統計資訊
func (c *Coordinator) Stats() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()

	byStatus := make(map[SessionStatus]int)
	connectedPlayers := 0
	for _, s := range c.sessions {
		byStatus[s.Status]++
		connectedPlayers += len(s.ConnectedMembers())
	}

	return map[string]any{
		"total_sessions":    len(c.sessions),
		"by_status":         byStatus,
		"connected_players": connectedPlayers,
		"queue_lengths":     c.matchmaker.QueueLengths(),
	}
}

// Stop 停止協調器：取消所有計時器並清空註冊表
func (c *Coordinator) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, s := range c.sessions {
		if s.Clock != nil {
			s.Clock.Stop()
		}
	}
	c.sessions = make(map[string]*Session)
	c.connSession = make(map[string]string)

	c.logger.Info("對局協調器已停止")
}

package internal

import (
	"time"

	"github.com/koopa0/system-design/14-match-orchestration/internal/game"
)

// SessionStatus 對局生命週期狀態
//
// 有限狀態機設計：
//
//	forming → active → finished
//
// 狀態轉換規則：
//   - forming → active：gameStart 廣播完成、計時器啟動
//   - active → finished：勝利 / 認輸 / 和棋 / 斷線 / 超時
//   - finished 為終態；任何座位的任何訊息都不再改變狀態
//
// forming 是暫態，外部不可觀察：對局已註冊可路由，
// 但初始廣播尚未完成前不接受對局內訊息。
type SessionStatus string

const (
	// SessionForming 對局已註冊，初始廣播尚未完成
	SessionForming SessionStatus = "forming"
	// SessionActive 對局進行中
	SessionActive SessionStatus = "active"
	// SessionFinished 對局已結束（終態）
	SessionFinished SessionStatus = "finished"
)

// Session 一場進行中或已結束的對局。
//
// 對局獨佔自己的規則引擎與計時器，兩者從不跨對局共享。
// 座位分配在對局存續期間固定不變（雙射：連線 ↔ 座位）。
// 對局的銷毀由連線驅動：最後一位成員斷線才從註冊表移除，
// 與勝負結果無關。
//
// 本結構不自帶鎖：所有欄位只由協調器在其互斥鎖內存取。
type Session struct {
	ID     string
	Config game.Config

	Engine game.RuleEngine
	Clock  *Clock

	Status               SessionStatus
	PendingDrawOfferFrom game.Role // "" 表示沒有待決提議

	members   []string                 // conn ID（入隊順序，決定座位）
	roles     map[string]game.Role     // connID -> 座位
	conns     map[game.Role]string     // 座位 -> connID
	connected map[string]bool          // 仍在線的成員
	CreatedAt time.Time
}

// newSession 按到達順序為整組連線分配座位。
//
// 第一位連線取得配置座位序列的第一個座位，依此類推。
func newSession(id string, cfg game.Config, group []string, engine game.RuleEngine) *Session {
	s := &Session{
		ID:        id,
		Config:    cfg,
		Engine:    engine,
		Status:    SessionForming,
		members:   append([]string(nil), group...),
		roles:     make(map[string]game.Role, len(group)),
		conns:     make(map[game.Role]string, len(group)),
		connected: make(map[string]bool, len(group)),
		CreatedAt: time.Now(),
	}
	for i, connID := range group {
		role := cfg.Roles[i]
		s.roles[connID] = role
		s.conns[role] = connID
		s.connected[connID] = true
	}
	return s
}

// RoleOf 查詢連線的座位
func (s *Session) RoleOf(connID string) (game.Role, bool) {
	role, ok := s.roles[connID]
	return role, ok
}

// ConnOf 查詢座位的連線
func (s *Session) ConnOf(role game.Role) (string, bool) {
	connID, ok := s.conns[role]
	return connID, ok
}

// RoleAssignment 完整座位分配（connID -> 座位），用於 gameStart 廣播
func (s *Session) RoleAssignment() map[string]game.Role {
	assignment := make(map[string]game.Role, len(s.roles))
	for connID, role := range s.roles {
		assignment[connID] = role
	}
	return assignment
}

// Opponent 2 人局中指定座位的對手座位
func (s *Session) Opponent(role game.Role) (game.Role, bool) {
	if len(s.Config.Roles) != 2 {
		return "", false
	}
	for _, r := range s.Config.Roles {
		if r != role {
			return r, true
		}
	}
	return "", false
}

// ConnectedMembers 仍在線成員的連線清單（廣播目標）
func (s *Session) ConnectedMembers() []string {
	connIDs := make([]string, 0, len(s.members))
	for _, connID := range s.members {
		if s.connected[connID] {
			connIDs = append(connIDs, connID)
		}
	}
	return connIDs
}

// MarkDisconnected 標記成員離線；返回是否還有在線成員
func (s *Session) MarkDisconnected(connID string) (anyLeft bool) {
	s.connected[connID] = false
	for _, online := range s.connected {
		if online {
			return true
		}
	}
	return false
}

// Members 全體成員（含已離線者）
func (s *Session) Members() []string {
	return append([]string(nil), s.members...)
}

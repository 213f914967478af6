package internal

import (
	"github.com/koopa0/system-design/14-match-orchestration/internal/game"
)

// 入站訊息類型（客戶端 → 伺服器）
const (
	MsgFindGame      = "findGame"
	MsgRequestMove   = "requestMove"
	MsgResign        = "resign"
	MsgRequestDraw   = "requestDraw"
	MsgRespondToDraw = "respondToDraw"
)

// ClientMessage 客戶端訊息。
//
// 發送者的連線身份由傳輸層附加，不由客戶端自報；
// 各欄位僅在對應的訊息類型下有意義。
type ClientMessage struct {
	Type      string     `json:"type"`
	PartySize int        `json:"partySize,omitempty"` // findGame
	MoveData  *game.Move `json:"moveData,omitempty"`  // requestMove
	Accepted  bool       `json:"accepted,omitempty"`  // respondToDraw
}

// 出站事件類型（伺服器 → 客戶端）
const (
	EventConnected          = "connected"
	EventWaiting            = "waiting"
	EventGameStart          = "gameStart"
	EventGameState          = "gameState"
	EventClockUpdate        = "clockUpdate"
	EventDrawOfferReceived  = "drawOfferReceived"
	EventDrawOfferPending   = "drawOfferPending"
	EventDrawOfferRescinded = "drawOfferRescinded"
	EventGameOver           = "gameOver"
	EventError              = "error"
)

// Event 伺服器推播事件
type Event struct {
	Type string `json:"event"`
	Data any    `json:"data,omitempty"`
}

// Emitter 傳輸邊界的出站抽象。
//
// 協調層只依賴這兩個操作，不依賴具體傳輸實現；
// 成員清單由協調層提供，對局註冊表因此保持單一事實來源。
type Emitter interface {
	// Broadcast 推播給指定的一組連線
	Broadcast(connIDs []string, event Event)

	// Notify 推播給單一連線
	Notify(connID string, event Event)
}

// errorEvent 僅發給違規發送者的錯誤通知
func errorEvent(code, message string) Event {
	return Event{
		Type: EventError,
		Data: map[string]any{
			"code":    code,
			"message": message,
		},
	}
}

// waitingEvent 配對等待確認（附還缺幾位玩家）
func waitingEvent(remaining int) Event {
	return Event{
		Type: EventWaiting,
		Data: map[string]any{
			"remaining": remaining,
		},
	}
}

// gameStartEvent 對局建立廣播（精確一次，註冊完成後發出）
func gameStartEvent(s *Session, initial game.GameState) Event {
	return Event{
		Type: EventGameStart,
		Data: map[string]any{
			"sessionId":      s.ID,
			"roleAssignment": s.RoleAssignment(),
			"initialState":   initial,
			"config":         s.Config,
		},
	}
}

// gameStateEvent 每步走子後的狀態廣播（附各座位剩餘時間）
func gameStateEvent(state game.GameState, clocks map[game.Role]int64) Event {
	return Event{
		Type: EventGameState,
		Data: map[string]any{
			"state":  state,
			"clocks": clocks,
		},
	}
}

// clockUpdateEvent 計時器定期推播
func clockUpdateEvent(clocks map[game.Role]int64) Event {
	return Event{
		Type: EventClockUpdate,
		Data: map[string]any{
			"clocks": clocks,
		},
	}
}

// gameOverEvent 結局廣播。winner/loser 可為空（如和棋、4 人局判負）。
func gameOverEvent(cause game.EndCause, winner, loser game.Role, final game.GameState) Event {
	data := map[string]any{
		"cause": cause,
		"state": final,
	}
	if winner != "" {
		data["winner"] = winner
	}
	if loser != "" {
		data["loser"] = loser
	}
	return Event{
		Type: EventGameOver,
		Data: data,
	}
}

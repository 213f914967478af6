package internal

import (
	"github.com/koopa0/system-design/14-match-orchestration/internal/game"
	apperrors "github.com/koopa0/system-design/14-match-orchestration/pkg/errors"
)

// 回合與和棋協議狀態機。
//
// 對局內每條訊息先按「對局狀態 × 當前回合 × 待決提議」過濾合法性，
// 合法才交給規則引擎或計時器；違規只回報給發送者，從不改變對局狀態。
// finished 是終態：任何座位的任何訊息都被靜默吞掉。
// 查無對局或查無座位的訊息視為斷線競速產生的殘留，靜默忽略。

// HandleMove 處理走子請求。
//
// 合法性閘門：
//  1. 對局存在且進行中
//  2. 發送者座位等於引擎的當前回合方（否則僅回 NOT_YOUR_TURN 給發送者）
//  3. 規則引擎接受走子（否則原樣轉告引擎的拒絕理由，狀態不變）
//
// 被接受的走子自動撤銷待決和棋提議（硬性不變量），
// 然後廣播新狀態；引擎判定分出勝負時對局隨即轉為終態。
func (c *Coordinator) HandleMove(connID string, move game.Move) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, role, ok := c.senderLocked(connID)
	if !ok || s.Status != SessionActive {
		return
	}

	if s.Engine.State().PlayerTurn != role {
		c.emitter.Notify(connID, errorEvent(apperrors.ErrCodeNotYourTurn, apperrors.ErrNotYourTurn.Message))
		return
	}

	if err := s.Engine.ApplyMove(role, move); err != nil {
		// 規則層拒絕：原樣轉告發送者，不廣播、不改狀態
		c.emitter.Notify(connID, errorEvent(apperrors.ErrCodeIllegalMove, err.Error()))
		return
	}

	if s.PendingDrawOfferFrom != "" {
		s.PendingDrawOfferFrom = ""
		c.emitter.Broadcast(s.ConnectedMembers(), Event{Type: EventDrawOfferRescinded})
	}

	state := s.Engine.State()
	c.emitter.Broadcast(s.ConnectedMembers(), gameStateEvent(state, s.Clock.Remaining()))

	if state.Status == game.StatusFinished {
		c.finishSessionLocked(s, "")
	}
}

// HandleResign 處理認輸。
//
// 無論是否輪到發送者，認輸一律有效；判負歸因於發送者座位。
func (c *Coordinator) HandleResign(connID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, role, ok := c.senderLocked(connID)
	if !ok || s.Status != SessionActive {
		return
	}

	c.logger.Info("玩家認輸", "session_id", s.ID, "role", role)
	s.Engine.ForceLoss(role, game.CauseResignation)
	c.finishSessionLocked(s, role)
}

// HandleDrawOffer 處理和棋提議。
//
// 僅 2 人局支援雙邊和棋協商；同一時間最多一個待決提議。
// 提議只定向通知對手（非全域廣播），並單獨確認提議者。
func (c *Coordinator) HandleDrawOffer(connID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, role, ok := c.senderLocked(connID)
	if !ok || s.Status != SessionActive {
		return
	}

	if s.Config.PartySize != 2 {
		c.emitter.Notify(connID, errorEvent(apperrors.ErrCodeDrawNotSupported, apperrors.ErrDrawNotSupported.Message))
		return
	}
	if s.PendingDrawOfferFrom != "" {
		c.emitter.Notify(connID, errorEvent(apperrors.ErrCodeDrawAlreadyPending, apperrors.ErrDrawAlreadyPending.Message))
		return
	}

	s.PendingDrawOfferFrom = role

	if opponent, ok := s.Opponent(role); ok {
		if opponentConn, ok := s.ConnOf(opponent); ok {
			c.emitter.Notify(opponentConn, Event{
				Type: EventDrawOfferReceived,
				Data: map[string]any{"from": role},
			})
		}
	}
	c.emitter.Notify(connID, Event{Type: EventDrawOfferPending})
}

// HandleDrawResponse 處理和棋回應。
//
// 只有非提議方可以回應；沒有待決提議（含提議者自答）回 NO_ACTIVE_OFFER。
// 接受 → 經規則引擎以「雙方同意和棋」結束對局並廣播結局；
// 拒絕 → 清除提議並向全對局廣播撤銷（兩側 UI 都要清掉待決指示）。
func (c *Coordinator) HandleDrawResponse(connID string, accepted bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, role, ok := c.senderLocked(connID)
	if !ok || s.Status != SessionActive {
		return
	}

	if s.PendingDrawOfferFrom == "" || s.PendingDrawOfferFrom == role {
		c.emitter.Notify(connID, errorEvent(apperrors.ErrCodeNoActiveOffer, apperrors.ErrNoActiveOffer.Message))
		return
	}

	if accepted {
		s.Engine.ForceDraw(game.CauseDrawAgreement)
		c.finishSessionLocked(s, "")
		return
	}

	s.PendingDrawOfferFrom = ""
	c.emitter.Broadcast(s.ConnectedMembers(), Event{Type: EventDrawOfferRescinded})
}

// senderLocked 把發送者連線解析為（對局, 座位）。
//
// 查無對局或座位不屬於該對局時返回 ok=false（邊界靜默忽略）。
// 需持有 c.mu。
func (c *Coordinator) senderLocked(connID string) (*Session, game.Role, bool) {
	s, ok := c.lookupLocked(connID)
	if !ok {
		c.logger.Debug("訊息查無所屬對局", "conn_id", connID)
		return nil, "", false
	}
	role, ok := s.RoleOf(connID)
	if !ok {
		c.logger.Debug("連線不在對局座位分配中", "conn_id", connID, "session_id", s.ID)
		return nil, "", false
	}
	return s, role, true
}

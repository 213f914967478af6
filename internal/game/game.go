// Package game 定義對局協調層與規則引擎之間的共享型別。
//
// 協調層只讀取 GameState 的 Status 與 PlayerTurn，其餘棋盤資料
// 視為不透明，原樣廣播給客戶端。
package game

import (
	"fmt"
	"time"
)

// Role 對局內的固定座位身份，與連線身份分離。
//
// 四個座位沿棋盤四邊順時針排列：
//
//	player1（下邊）→ player2（左邊）→ player3（上邊）→ player4（右邊）
//
// 2 人局使用 player1 與 player3（對面座位，而非相鄰座位）。
type Role string

const (
	RolePlayer1 Role = "player1"
	RolePlayer2 Role = "player2"
	RolePlayer3 Role = "player3"
	RolePlayer4 Role = "player4"
)

// AllRoles 完整座位枚舉（按座位順序）
var AllRoles = [4]Role{RolePlayer1, RolePlayer2, RolePlayer3, RolePlayer4}

// RolesForPartySize 返回指定局人數使用的座位。
//
// 座位選擇規則：
//   - 2 人局：player1 與 player3（對面）
//   - 4 人局：全部四個座位
func RolesForPartySize(partySize int) ([]Role, error) {
	switch partySize {
	case 2:
		return []Role{RolePlayer1, RolePlayer3}, nil
	case 4:
		return []Role{RolePlayer1, RolePlayer2, RolePlayer3, RolePlayer4}, nil
	default:
		return nil, fmt.Errorf("不支援的局人數: %d", partySize)
	}
}

// Status 對局進行狀態
type Status string

const (
	// StatusActive 對局進行中
	StatusActive Status = "active"
	// StatusFinished 對局已結束（終態）
	StatusFinished Status = "finished"
)

// EndCause 對局結束原因
type EndCause string

const (
	// CauseVictory 棋子抵達目標邊（規則引擎自行判定）
	CauseVictory EndCause = "victory"
	// CauseResignation 認輸
	CauseResignation EndCause = "resignation"
	// CauseDisconnection 斷線判負
	CauseDisconnection EndCause = "disconnection"
	// CauseTimeout 超時判負
	CauseTimeout EndCause = "timeout"
	// CauseDrawAgreement 雙方同意和棋
	CauseDrawAgreement EndCause = "draw by agreement"
)

// Position 棋盤格座標。Row 0 為上邊，Col 0 為左邊。
type Position struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// WallOrientation 牆的方向
type WallOrientation string

const (
	// Horizontal 水平牆：擋住 (Row,Col)、(Row,Col+1) 與其下方格子之間的通道
	Horizontal WallOrientation = "horizontal"
	// Vertical 垂直牆：擋住 (Row,Col)、(Row+1,Col) 與其右方格子之間的通道
	Vertical WallOrientation = "vertical"
)

// Wall 已放置的牆。座標為牆的左上錨點（槽位座標，範圍 0..BoardSize-2）。
type Wall struct {
	Position    Position        `json:"position"`
	Orientation WallOrientation `json:"orientation"`
}

// MoveType 走子類型
type MoveType string

const (
	// MovePawn 移動棋子
	MovePawn MoveType = "pawn"
	// MoveWall 放置牆
	MoveWall MoveType = "wall"
)

// Move 一次走子請求。Orientation 僅在放牆時有意義。
type Move struct {
	Type        MoveType        `json:"type"`
	To          Position        `json:"to"`
	Orientation WallOrientation `json:"orientation,omitempty"`
}

// GameState 規則引擎擁有的權威對局狀態快照。
type GameState struct {
	Status     Status           `json:"status"`
	PlayerTurn Role             `json:"playerTurn"`
	Pawns      map[Role]Position `json:"pawns"`
	WallsLeft  map[Role]int      `json:"wallsLeft"`
	Walls      []Wall            `json:"walls"`
	Winner     Role              `json:"winner,omitempty"`
	EndCause   EndCause          `json:"endCause,omitempty"`
}

// RuleEngine 規則引擎契約。
//
// 協調層透過此介面消費外部協作者：走子合法性、棋盤與牆存量、
// 勝負判定全部由引擎擁有，協調層不二次猜測。
// 所有方法同步且不阻塞；單一對局的引擎不會被並發存取。
type RuleEngine interface {
	// State 返回當前權威狀態的快照
	State() GameState

	// ApplyMove 套用指定座位的走子；不合法時返回錯誤且狀態不變
	ApplyMove(role Role, move Move) error

	// ForceLoss 協調層強制判負（認輸、斷線、超時），對局轉為終態
	ForceLoss(loser Role, cause EndCause)

	// ForceDraw 協調層強制和棋，對局轉為終態
	ForceDraw(cause EndCause)
}

// Config 按局人數推導的對局配置。
//
// 容量規劃（沿用原始遊戲的配置）：
//   - 2 人局：每人 10 面牆、300000 毫秒
//   - 4 人局：每人 5 面牆、300000 毫秒
type Config struct {
	PartySize       int    `json:"partySize"`
	BoardSize       int    `json:"boardSize"`
	WallsPerPlayer  int    `json:"wallsPerPlayer"`
	TimePerPlayerMS int64  `json:"timePerPlayer"`
	Roles           []Role `json:"roles"`
}

const (
	defaultBoardSize = 9
	defaultTime      = 5 * time.Minute
)

// SupportedPartySizes 支援的局人數
var SupportedPartySizes = []int{2, 4}

// ConfigForPartySize 返回指定局人數的對局配置。
//
// 局人數不受支援時返回錯誤（配對入口以此驗證 findGame 請求）。
func ConfigForPartySize(partySize int) (Config, error) {
	roles, err := RolesForPartySize(partySize)
	if err != nil {
		return Config{}, err
	}

	walls := 5
	if partySize == 2 {
		walls = 10
	}

	return Config{
		PartySize:       partySize,
		BoardSize:       defaultBoardSize,
		WallsPerPlayer:  walls,
		TimePerPlayerMS: defaultTime.Milliseconds(),
		Roles:           roles,
	}, nil
}

// TimePerPlayer 以 time.Duration 表示的每人時間預算
func (c Config) TimePerPlayer() time.Duration {
	return time.Duration(c.TimePerPlayerMS) * time.Millisecond
}

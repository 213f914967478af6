// Package quoridor 實作 Quoridor 棋的規則引擎。
//
// 引擎擁有單一對局的權威狀態：棋子位置、牆存量、回合輪轉與勝負判定。
// 協調層透過 game.RuleEngine 介面消費本引擎，除 Status 與 PlayerTurn
// 外不解讀棋盤資料。
//
// 規則要點：
//   - 棋子每回合沿上下左右移動一格；相鄰格被對方棋子佔據時可直跳，
//     直跳被牆擋住時可斜跳
//   - 牆佔兩格寬，不可重疊、不可交叉，且放置後每個棋子都必須
//     仍有路徑抵達自己的目標邊（BFS 連通性檢查）
//   - 棋子抵達目標邊即獲勝
package quoridor

import (
	"fmt"

	"github.com/koopa0/system-design/14-match-orchestration/internal/game"
)

// Engine Quoridor 規則引擎。
//
// 單一對局獨佔一個引擎實例；協調層保證不會並發存取，
// 因此不需要內部鎖。
type Engine struct {
	cfg game.Config

	status    game.Status
	turnIdx   int // cfg.Roles 的索引
	pawns     map[game.Role]game.Position
	wallsLeft map[game.Role]int
	walls     []game.Wall

	// 牆錨點索引（加速通道檢查）
	hWalls map[game.Position]bool
	vWalls map[game.Position]bool

	winner   game.Role
	endCause game.EndCause
}

// 驗證介面實現
var _ game.RuleEngine = (*Engine)(nil)

// New 依配置建立新對局。
//
// 起始位置（以 9x9 棋盤為例）：
//   - player1 下邊中央 (8,4)，目標上邊
//   - player3 上邊中央 (0,4)，目標下邊
//   - player2 左邊中央 (4,0)，目標右邊
//   - player4 右邊中央 (4,8)，目標左邊
//
// 首個回合屬於配置座位序列的第一個座位。
func New(cfg game.Config) *Engine {
	n := cfg.BoardSize
	mid := n / 2

	starts := map[game.Role]game.Position{
		game.RolePlayer1: {Row: n - 1, Col: mid},
		game.RolePlayer2: {Row: mid, Col: 0},
		game.RolePlayer3: {Row: 0, Col: mid},
		game.RolePlayer4: {Row: mid, Col: n - 1},
	}

	e := &Engine{
		cfg:       cfg,
		status:    game.StatusActive,
		pawns:     make(map[game.Role]game.Position, len(cfg.Roles)),
		wallsLeft: make(map[game.Role]int, len(cfg.Roles)),
		hWalls:    make(map[game.Position]bool),
		vWalls:    make(map[game.Position]bool),
	}

	for _, role := range cfg.Roles {
		e.pawns[role] = starts[role]
		e.wallsLeft[role] = cfg.WallsPerPlayer
	}

	return e
}

// State 返回當前權威狀態的快照（深拷貝，呼叫端可安全序列化）
func (e *Engine) State() game.GameState {
	pawns := make(map[game.Role]game.Position, len(e.pawns))
	for r, p := range e.pawns {
		pawns[r] = p
	}
	wallsLeft := make(map[game.Role]int, len(e.wallsLeft))
	for r, w := range e.wallsLeft {
		wallsLeft[r] = w
	}
	walls := make([]game.Wall, len(e.walls))
	copy(walls, e.walls)

	return game.GameState{
		Status:     e.status,
		PlayerTurn: e.cfg.Roles[e.turnIdx],
		Pawns:      pawns,
		WallsLeft:  wallsLeft,
		Walls:      walls,
		Winner:     e.winner,
		EndCause:   e.endCause,
	}
}

// ApplyMove 套用指定座位的走子。
//
// 不合法的走子返回錯誤且狀態完全不變；合法走子套用後檢查勝利條件，
// 未分勝負則輪轉到下一個座位。
func (e *Engine) ApplyMove(role game.Role, move game.Move) error {
	if e.status != game.StatusActive {
		return fmt.Errorf("對局已結束")
	}
	if e.cfg.Roles[e.turnIdx] != role {
		return fmt.Errorf("不是 %s 的回合", role)
	}

	switch move.Type {
	case game.MovePawn:
		if err := e.movePawn(role, move.To); err != nil {
			return err
		}
	case game.MoveWall:
		if err := e.placeWall(role, game.Wall{Position: move.To, Orientation: move.Orientation}); err != nil {
			return err
		}
	default:
		return fmt.Errorf("未知的走子類型: %q", move.Type)
	}

	// 勝利判定：棋子抵達目標邊
	if e.reachedGoal(role, e.pawns[role]) {
		e.status = game.StatusFinished
		e.winner = role
		e.endCause = game.CauseVictory
		return nil
	}

	e.turnIdx = (e.turnIdx + 1) % len(e.cfg.Roles)
	return nil
}

// ForceLoss 強制判負（認輸、斷線、超時）。
//
// 2 人局由對手獲勝；4 人局不指定單一贏家，僅記錄結束原因。
// 對已結束的對局呼叫是冪等的 no-op。
func (e *Engine) ForceLoss(loser game.Role, cause game.EndCause) {
	if e.status != game.StatusActive {
		return
	}
	e.status = game.StatusFinished
	e.endCause = cause

	if len(e.cfg.Roles) == 2 {
		for _, r := range e.cfg.Roles {
			if r != loser {
				e.winner = r
				break
			}
		}
	}
}

// ForceDraw 強制和棋。對已結束的對局呼叫是冪等的 no-op。
func (e *Engine) ForceDraw(cause game.EndCause) {
	if e.status != game.StatusActive {
		return
	}
	e.status = game.StatusFinished
	e.endCause = cause
}

// movePawn 驗證並套用棋子移動
func (e *Engine) movePawn(role game.Role, to game.Position) error {
	if !e.inBounds(to) {
		return fmt.Errorf("目標格超出棋盤: (%d,%d)", to.Row, to.Col)
	}

	for _, dest := range e.legalPawnMoves(role) {
		if dest == to {
			e.pawns[role] = to
			return nil
		}
	}
	return fmt.Errorf("不合法的棋子移動: (%d,%d)", to.Row, to.Col)
}

// legalPawnMoves 枚舉指定座位當前所有合法的棋子目標格。
//
// 對每個方向依序檢查：通道未被牆擋住 → 空格直接走；
// 被棋子佔據 → 嘗試直跳；直跳不可行 → 嘗試兩側斜跳。
func (e *Engine) legalPawnMoves(role game.Role) []game.Position {
	from := e.pawns[role]
	dirs := []game.Position{{Row: -1}, {Row: 1}, {Col: -1}, {Col: 1}}

	var moves []game.Position
	for _, d := range dirs {
		adj := game.Position{Row: from.Row + d.Row, Col: from.Col + d.Col}
		if !e.inBounds(adj) || !e.canStep(from, adj) {
			continue
		}

		if !e.occupied(adj) {
			moves = append(moves, adj)
			continue
		}

		// 直跳
		beyond := game.Position{Row: adj.Row + d.Row, Col: adj.Col + d.Col}
		if e.inBounds(beyond) && e.canStep(adj, beyond) && !e.occupied(beyond) {
			moves = append(moves, beyond)
			continue
		}

		// 斜跳（直跳被牆或棋盤邊緣擋住時）
		for _, pd := range perpendicular(d) {
			side := game.Position{Row: adj.Row + pd.Row, Col: adj.Col + pd.Col}
			if e.inBounds(side) && e.canStep(adj, side) && !e.occupied(side) {
				moves = append(moves, side)
			}
		}
	}
	return moves
}

// placeWall 驗證並套用放牆
func (e *Engine) placeWall(role game.Role, wall game.Wall) error {
	if e.wallsLeft[role] <= 0 {
		return fmt.Errorf("沒有剩餘的牆")
	}
	if wall.Orientation != game.Horizontal && wall.Orientation != game.Vertical {
		return fmt.Errorf("未知的牆方向: %q", wall.Orientation)
	}

	// 錨點必須落在槽位範圍內（牆佔兩格寬）
	p := wall.Position
	if p.Row < 0 || p.Col < 0 || p.Row > e.cfg.BoardSize-2 || p.Col > e.cfg.BoardSize-2 {
		return fmt.Errorf("牆錨點超出範圍: (%d,%d)", p.Row, p.Col)
	}

	if e.wallConflicts(wall) {
		return fmt.Errorf("牆與既有牆重疊或交叉")
	}

	// 試放後檢查每個棋子仍可抵達目標邊
	e.setWall(wall, true)
	for _, r := range e.cfg.Roles {
		if !e.hasPathToGoal(r) {
			e.setWall(wall, false)
			return fmt.Errorf("放牆會封死 %s 的路徑", r)
		}
	}

	e.walls = append(e.walls, wall)
	e.wallsLeft[role]--
	return nil
}

// wallConflicts 檢查重疊（同向相鄰錨點）與交叉（同錨點異向）
func (e *Engine) wallConflicts(wall game.Wall) bool {
	p := wall.Position
	if wall.Orientation == game.Horizontal {
		return e.hWalls[p] ||
			e.hWalls[game.Position{Row: p.Row, Col: p.Col - 1}] ||
			e.hWalls[game.Position{Row: p.Row, Col: p.Col + 1}] ||
			e.vWalls[p]
	}
	return e.vWalls[p] ||
		e.vWalls[game.Position{Row: p.Row - 1, Col: p.Col}] ||
		e.vWalls[game.Position{Row: p.Row + 1, Col: p.Col}] ||
		e.hWalls[p]
}

// setWall 在錨點索引中登記或撤銷一面牆（試放時用）
func (e *Engine) setWall(wall game.Wall, present bool) {
	idx := e.hWalls
	if wall.Orientation == game.Vertical {
		idx = e.vWalls
	}
	if present {
		idx[wall.Position] = true
	} else {
		delete(idx, wall.Position)
	}
}

// canStep 檢查相鄰兩格之間的通道是否未被牆擋住
func (e *Engine) canStep(from, to game.Position) bool {
	switch {
	case to.Row == from.Row+1 && to.Col == from.Col: // 向下
		return !e.hWalls[game.Position{Row: from.Row, Col: from.Col}] &&
			!e.hWalls[game.Position{Row: from.Row, Col: from.Col - 1}]
	case to.Row == from.Row-1 && to.Col == from.Col: // 向上
		return !e.hWalls[game.Position{Row: to.Row, Col: to.Col}] &&
			!e.hWalls[game.Position{Row: to.Row, Col: to.Col - 1}]
	case to.Col == from.Col+1 && to.Row == from.Row: // 向右
		return !e.vWalls[game.Position{Row: from.Row, Col: from.Col}] &&
			!e.vWalls[game.Position{Row: from.Row - 1, Col: from.Col}]
	case to.Col == from.Col-1 && to.Row == from.Row: // 向左
		return !e.vWalls[game.Position{Row: to.Row, Col: to.Col}] &&
			!e.vWalls[game.Position{Row: to.Row - 1, Col: to.Col}]
	}
	return false
}

// hasPathToGoal BFS 檢查指定座位的棋子是否仍可抵達目標邊
func (e *Engine) hasPathToGoal(role game.Role) bool {
	start := e.pawns[role]
	if e.reachedGoal(role, start) {
		return true
	}

	n := e.cfg.BoardSize
	visited := make([]bool, n*n)
	visited[start.Row*n+start.Col] = true
	queue := []game.Position{start}

	dirs := []game.Position{{Row: -1}, {Row: 1}, {Col: -1}, {Col: 1}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		for _, d := range dirs {
			next := game.Position{Row: cur.Row + d.Row, Col: cur.Col + d.Col}
			if !e.inBounds(next) || visited[next.Row*n+next.Col] || !e.canStep(cur, next) {
				continue
			}
			if e.reachedGoal(role, next) {
				return true
			}
			visited[next.Row*n+next.Col] = true
			queue = append(queue, next)
		}
	}
	return false
}

// reachedGoal 檢查位置是否位於該座位的目標邊
func (e *Engine) reachedGoal(role game.Role, p game.Position) bool {
	n := e.cfg.BoardSize
	switch role {
	case game.RolePlayer1:
		return p.Row == 0
	case game.RolePlayer2:
		return p.Col == n-1
	case game.RolePlayer3:
		return p.Row == n-1
	case game.RolePlayer4:
		return p.Col == 0
	}
	return false
}

func (e *Engine) inBounds(p game.Position) bool {
	return p.Row >= 0 && p.Row < e.cfg.BoardSize && p.Col >= 0 && p.Col < e.cfg.BoardSize
}

func (e *Engine) occupied(p game.Position) bool {
	for _, pos := range e.pawns {
		if pos == p {
			return true
		}
	}
	return false
}

// perpendicular 返回與給定方向垂直的兩個方向
func perpendicular(d game.Position) [2]game.Position {
	if d.Row != 0 {
		return [2]game.Position{{Col: -1}, {Col: 1}}
	}
	return [2]game.Position{{Row: -1}, {Row: 1}}
}

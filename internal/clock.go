package internal

import (
	"sync"
	"time"

	"github.com/koopa0/system-design/14-match-orchestration/internal/game"
)

// DefaultClockInterval 計時器預設 tick 間隔
const DefaultClockInterval = time.Second

// TurnFunc 查詢當前回合方。
//
// 每次 tick 都即時查詢，而不是由計時器自行追蹤回合，
// 避免走子切換回合後計時對象漂移。ok 為 false 表示對局
// 已不在進行中，該次 tick 不扣任何人時間。
type TurnFunc func() (game.Role, bool)

// Clock 單一對局的權威倒數計時器。
//
// 設計要點：
//   - 只扣當前回合方的時間（時間記在行棋方頭上，不是雙方同時扣）
//   - 按實際經過時間扣減（elapsed delta），而非固定粒度，避免漂移
//   - 某方時間歸零時恰好發出一次超時信號（後續 tick 不重複發）
//   - Stop 之後不再 tick、不再發信號；可安全重複呼叫
type Clock struct {
	interval  time.Duration
	remaining map[game.Role]time.Duration

	turn      TurnFunc
	onTimeout func(game.Role)
	onTick    func(map[game.Role]int64) // 可為 nil（不推播剩餘時間）

	mu       sync.Mutex
	fired    bool
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewClock 創建計時器並為每個座位配置相同的時間預算。
//
// interval <= 0 時使用 DefaultClockInterval。
// 建立後須呼叫 Start 才開始計時。
func NewClock(roles []game.Role, budget, interval time.Duration, turn TurnFunc, onTimeout func(game.Role), onTick func(map[game.Role]int64)) *Clock {
	if interval <= 0 {
		interval = DefaultClockInterval
	}
	remaining := make(map[game.Role]time.Duration, len(roles))
	for _, role := range roles {
		remaining[role] = budget
	}
	return &Clock{
		interval:  interval,
		remaining: remaining,
		turn:      turn,
		onTimeout: onTimeout,
		onTick:    onTick,
		stopCh:    make(chan struct{}),
	}
}

// Start 啟動計時 goroutine
func (c *Clock) Start() {
	go c.run()
}

// Stop 取消計時（冪等）。
//
// 對局離開 active 狀態或被銷毀時呼叫；已在途中的超時回呼
// 由協調層重新檢查對局狀態後丟棄。
func (c *Clock) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
	})
}

// Remaining 各座位剩餘時間快照（毫秒）
func (c *Clock) Remaining() map[game.Role]int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// snapshotLocked 需持有 c.mu
func (c *Clock) snapshotLocked() map[game.Role]int64 {
	snapshot := make(map[game.Role]int64, len(c.remaining))
	for role, d := range c.remaining {
		snapshot[role] = d.Milliseconds()
	}
	return snapshot
}

// run 計時主迴圈。
//
// 回呼（turn、onTimeout、onTick）一律在釋放 c.mu 之後呼叫，
// 避免與協調層的鎖形成交叉鎖序。
func (c *Clock) run() {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case now := <-ticker.C:
			elapsed := now.Sub(last)
			last = now

			role, ok := c.turn()
			if !ok {
				continue
			}

			var (
				timedOut bool
				snapshot map[game.Role]int64
			)
			c.mu.Lock()
			if _, known := c.remaining[role]; known {
				c.remaining[role] -= elapsed
				if c.remaining[role] <= 0 {
					c.remaining[role] = 0
					if !c.fired {
						c.fired = true
						timedOut = true
					}
				}
			}
			if c.onTick != nil {
				snapshot = c.snapshotLocked()
			}
			c.mu.Unlock()

			if snapshot != nil {
				c.onTick(snapshot)
			}
			if timedOut {
				c.onTimeout(role)
				return
			}

		case <-c.stopCh:
			return
		}
	}
}

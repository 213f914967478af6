package internal_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koopa0/system-design/14-match-orchestration/internal"
	"github.com/koopa0/system-design/14-match-orchestration/internal/game"
)

// TestClock_ChargesOnlyCurrentTurn 測試只扣當前回合方的時間
func TestClock_ChargesOnlyCurrentTurn(t *testing.T) {
	roles := []game.Role{game.RolePlayer1, game.RolePlayer3}
	budget := 500 * time.Millisecond

	// 回合方固定為 player1
	turn := func() (game.Role, bool) { return game.RolePlayer1, true }

	clock := internal.NewClock(roles, budget, 20*time.Millisecond, turn,
		func(game.Role) {}, nil)
	clock.Start()
	defer clock.Stop()

	time.Sleep(150 * time.Millisecond)

	remaining := clock.Remaining()
	assert.Less(t, remaining[game.RolePlayer1], budget.Milliseconds(),
		"行棋方的時間應該被扣減")
	assert.Equal(t, budget.Milliseconds(), remaining[game.RolePlayer3],
		"非行棋方的時間不應該被扣減")
}

// TestClock_SingleTimeoutSignal 測試歸零時恰好發出一次超時信號
func TestClock_SingleTimeoutSignal(t *testing.T) {
	roles := []game.Role{game.RolePlayer1, game.RolePlayer3}

	var (
		fireCount atomic.Int32
		firedRole atomic.Value
		done      = make(chan struct{})
	)
	turn := func() (game.Role, bool) { return game.RolePlayer1, true }
	onTimeout := func(role game.Role) {
		firedRole.Store(role)
		if fireCount.Add(1) == 1 {
			close(done)
		}
	}

	clock := internal.NewClock(roles, 80*time.Millisecond, 20*time.Millisecond, turn, onTimeout, nil)
	clock.Start()
	defer clock.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("等待超時信號逾時")
	}

	// 再等幾個 tick 週期，確認不會重複發信號
	time.Sleep(120 * time.Millisecond)
	assert.Equal(t, int32(1), fireCount.Load(), "超時信號應該恰好發出一次")
	assert.Equal(t, game.RolePlayer1, firedRole.Load(), "超時應歸咎於時間歸零的一方")
	assert.Equal(t, int64(0), clock.Remaining()[game.RolePlayer1])
}

// TestClock_StopCancels 測試 Stop 之後不再發出超時信號
func TestClock_StopCancels(t *testing.T) {
	roles := []game.Role{game.RolePlayer1, game.RolePlayer3}

	var fireCount atomic.Int32
	turn := func() (game.Role, bool) { return game.RolePlayer1, true }

	clock := internal.NewClock(roles, 60*time.Millisecond, 20*time.Millisecond, turn,
		func(game.Role) { fireCount.Add(1) }, nil)
	clock.Start()
	clock.Stop()
	// 冪等：重複 Stop 不會 panic
	clock.Stop()

	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, int32(0), fireCount.Load(), "Stop 之後不應再發出超時信號")
}

// TestClock_PausesWhenGameNotRunning 測試 turn 回報非進行中時不扣時間
func TestClock_PausesWhenGameNotRunning(t *testing.T) {
	roles := []game.Role{game.RolePlayer1, game.RolePlayer3}
	budget := 300 * time.Millisecond

	turn := func() (game.Role, bool) { return "", false }

	clock := internal.NewClock(roles, budget, 20*time.Millisecond, turn,
		func(game.Role) {}, nil)
	clock.Start()
	defer clock.Stop()

	time.Sleep(120 * time.Millisecond)

	remaining := clock.Remaining()
	assert.Equal(t, budget.Milliseconds(), remaining[game.RolePlayer1])
	assert.Equal(t, budget.Milliseconds(), remaining[game.RolePlayer3])
}

// TestClock_OnTickSnapshot 測試每次 tick 推播的剩餘時間快照
func TestClock_OnTickSnapshot(t *testing.T) {
	roles := []game.Role{game.RolePlayer1, game.RolePlayer3}
	budget := time.Second

	var (
		mu        sync.Mutex
		snapshots []map[game.Role]int64
	)
	turn := func() (game.Role, bool) { return game.RolePlayer1, true }
	onTick := func(snapshot map[game.Role]int64) {
		mu.Lock()
		snapshots = append(snapshots, snapshot)
		mu.Unlock()
	}

	clock := internal.NewClock(roles, budget, 20*time.Millisecond, turn,
		func(game.Role) {}, onTick)
	clock.Start()
	time.Sleep(110 * time.Millisecond)
	clock.Stop()

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, snapshots, "應該至少收到一次快照")

	// 快照單調遞減，且兩個座位都在內
	prev := budget.Milliseconds()
	for _, snapshot := range snapshots {
		require.Contains(t, snapshot, game.RolePlayer1)
		require.Contains(t, snapshot, game.RolePlayer3)
		assert.LessOrEqual(t, snapshot[game.RolePlayer1], prev)
		prev = snapshot[game.RolePlayer1]
	}
}

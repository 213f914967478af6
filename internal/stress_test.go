package internal_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koopa0/system-design/14-match-orchestration/internal"
	"github.com/koopa0/system-design/14-match-orchestration/internal/game"
)

// TestStress_ConcurrentMatchmaking 壓力測試：大量玩家併發配對。
//
// 驗證不變量：每條連線至多屬於一場對局、gameStart 恰好
// 每場一次、全部斷線後註冊表清空。
func TestStress_ConcurrentMatchmaking(t *testing.T) {
	if testing.Short() {
		t.Skip("跳過壓力測試")
	}

	emitter := &fakeEmitter{}
	c := internal.NewCoordinator(emitter, testLogger())
	defer c.Stop()

	const pairCount = 100
	connIDs := make([]string, 0, pairCount*2)
	for i := 0; i < pairCount*2; i++ {
		connIDs = append(connIDs, fmt.Sprintf("conn_%03d", i))
	}

	var wg sync.WaitGroup
	for _, connID := range connIDs {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			c.HandleFindGame(id, 2)
		}(connID)
	}
	wg.Wait()

	// 偶數名玩家全部成局
	starts := emitter.ofType(internal.EventGameStart)
	require.Len(t, starts, pairCount)

	stats := c.Stats()
	assert.Equal(t, pairCount, stats["total_sessions"])
	assert.Equal(t, map[int]int{2: 0, 4: 0}, stats["queue_lengths"])

	// 每條連線恰好出現在一場對局的 gameStart 中
	seen := make(map[string]int)
	for _, start := range starts {
		for _, target := range start.targets {
			seen[target]++
		}
	}
	for _, connID := range connIDs {
		assert.Equal(t, 1, seen[connID], "連線 %s 的 gameStart 次數", connID)
	}

	// 全部斷線後註冊表清空
	for _, connID := range connIDs {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			c.HandleDisconnect(id)
		}(connID)
	}
	wg.Wait()

	assert.Equal(t, 0, c.Stats()["total_sessions"])
}

// TestStress_ConcurrentGameTraffic 壓力測試：多場對局同時收發訊息
func TestStress_ConcurrentGameTraffic(t *testing.T) {
	if testing.Short() {
		t.Skip("跳過壓力測試")
	}

	emitter := &fakeEmitter{}
	c := internal.NewCoordinator(emitter, testLogger())
	defer c.Stop()

	const gameCount = 50
	for i := 0; i < gameCount; i++ {
		c.HandleFindGame(fmt.Sprintf("white_%02d", i), 2)
		c.HandleFindGame(fmt.Sprintf("black_%02d", i), 2)
	}
	require.Equal(t, gameCount, c.Stats()["total_sessions"])
	emitter.reset()

	// 每場對局兩邊同時出手：行棋方走子、非行棋方認輸
	var wg sync.WaitGroup
	for i := 0; i < gameCount; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			c.HandleMove(fmt.Sprintf("white_%02d", idx),
				game.Move{Type: game.MovePawn, To: game.Position{Row: 7, Col: 4}})
		}(i)
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			c.HandleResign(fmt.Sprintf("black_%02d", idx))
		}(i)
	}
	wg.Wait()

	// 每場恰好結束一次（認輸一定生效；走子可能先到也可能後到）
	overs := emitter.ofType(internal.EventGameOver)
	assert.Len(t, overs, gameCount)
}

package internal_test

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koopa0/system-design/14-match-orchestration/internal"
	apperrors "github.com/koopa0/system-design/14-match-orchestration/pkg/errors"
)

// 創建測試用的 logger
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelError, // 測試時只顯示錯誤
	}))
}

// TestMatchmaker_Enqueue 測試入列與成團
func TestMatchmaker_Enqueue(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(m *internal.Matchmaker)
		connID   string
		size     int
		validate func(t *testing.T, group []string, remaining int, err error)
	}{
		{
			name:   "first player waits for one more",
			connID: "conn_a",
			size:   2,
			validate: func(t *testing.T, group []string, remaining int, err error) {
				require.NoError(t, err)
				assert.Nil(t, group)
				assert.Equal(t, 1, remaining)
			},
		},
		{
			name: "second player completes the pair",
			setup: func(m *internal.Matchmaker) {
				_, _, _ = m.Enqueue("conn_a", 2)
			},
			connID: "conn_b",
			size:   2,
			validate: func(t *testing.T, group []string, remaining int, err error) {
				require.NoError(t, err)
				assert.Equal(t, []string{"conn_a", "conn_b"}, group)
				assert.Equal(t, 0, remaining)
			},
		},
		{
			name: "four player queue needs four",
			setup: func(m *internal.Matchmaker) {
				_, _, _ = m.Enqueue("conn_a", 4)
				_, _, _ = m.Enqueue("conn_b", 4)
			},
			connID: "conn_c",
			size:   4,
			validate: func(t *testing.T, group []string, remaining int, err error) {
				require.NoError(t, err)
				assert.Nil(t, group)
				assert.Equal(t, 1, remaining)
			},
		},
		{
			name:   "unsupported party size",
			connID: "conn_a",
			size:   3,
			validate: func(t *testing.T, group []string, remaining int, err error) {
				require.Error(t, err)
				assert.Equal(t, apperrors.ErrCodeInvalidPartySize, apperrors.Code(err))
				assert.Nil(t, group)
			},
		},
		{
			name: "duplicate enqueue rejected",
			setup: func(m *internal.Matchmaker) {
				_, _, _ = m.Enqueue("conn_a", 2)
			},
			connID: "conn_a",
			size:   2,
			validate: func(t *testing.T, group []string, remaining int, err error) {
				require.Error(t, err)
				assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.Code(err))
			},
		},
		{
			name: "queues are bucketed by party size",
			setup: func(m *internal.Matchmaker) {
				_, _, _ = m.Enqueue("conn_a", 4)
			},
			connID: "conn_b",
			size:   2,
			validate: func(t *testing.T, group []string, remaining int, err error) {
				require.NoError(t, err)
				assert.Nil(t, group)
				assert.Equal(t, 1, remaining)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := internal.NewMatchmaker(testLogger())
			if tt.setup != nil {
				tt.setup(m)
			}
			group, remaining, err := m.Enqueue(tt.connID, tt.size)
			tt.validate(t, group, remaining, err)
		})
	}
}

// TestMatchmaker_FIFOOrdering 測試先到先配：成團恆為最早到達、
// 尚未成團的連線，且保持到達順序
func TestMatchmaker_FIFOOrdering(t *testing.T) {
	m := internal.NewMatchmaker(testLogger())

	var groups [][]string
	for i := 0; i < 7; i++ {
		connID := fmt.Sprintf("conn_%02d", i)
		group, _, err := m.Enqueue(connID, 2)
		require.NoError(t, err)

		// 只有佇列長度達到局人數的那一次入列會成團
		if i%2 == 1 {
			require.NotNil(t, group, "入列 %d 應該成團", i)
			groups = append(groups, group)
		} else {
			require.Nil(t, group, "入列 %d 不應該成團", i)
		}
	}

	assert.Equal(t, [][]string{
		{"conn_00", "conn_01"},
		{"conn_02", "conn_03"},
		{"conn_04", "conn_05"},
	}, groups)

	// 第七位還在等
	assert.Equal(t, map[int]int{2: 1, 4: 0}, m.QueueLengths())
}

// TestMatchmaker_FourPlayerGroup 測試 4 人佇列原子成團
func TestMatchmaker_FourPlayerGroup(t *testing.T) {
	m := internal.NewMatchmaker(testLogger())

	for _, connID := range []string{"a", "b", "c"} {
		group, _, err := m.Enqueue(connID, 4)
		require.NoError(t, err)
		require.Nil(t, group)
	}

	group, remaining, err := m.Enqueue("d", 4)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, group)
	assert.Equal(t, 0, remaining)
	assert.Equal(t, 0, m.QueueLengths()[4])
}

// TestMatchmaker_RemoveIfQueued 測試排隊中移除（斷線路徑）
func TestMatchmaker_RemoveIfQueued(t *testing.T) {
	m := internal.NewMatchmaker(testLogger())

	_, _, err := m.Enqueue("conn_a", 2)
	require.NoError(t, err)

	// 移除後佇列清空
	assert.True(t, m.RemoveIfQueued("conn_a"))
	assert.Equal(t, 0, m.QueueLengths()[2])

	// 冪等：再移除是 no-op
	assert.False(t, m.RemoveIfQueued("conn_a"))

	// 不在佇列中的連線是 no-op
	assert.False(t, m.RemoveIfQueued("conn_x"))

	// 被移除的連線不會出現在後續的成團中
	_, _, _ = m.Enqueue("conn_b", 2)
	group, _, err := m.Enqueue("conn_c", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"conn_b", "conn_c"}, group)

	// 移除後可以重新入列
	_, remaining, err := m.Enqueue("conn_a", 2)
	require.NoError(t, err)
	assert.Equal(t, 1, remaining)
}

// TestMatchmaker_ConcurrentEnqueue 測試併發入列的一致性：
// 每位玩家恰好出現在一個成團中或仍在佇列裡
func TestMatchmaker_ConcurrentEnqueue(t *testing.T) {
	m := internal.NewMatchmaker(testLogger())

	const playerCount = 40

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		grouped []string
	)
	for i := 0; i < playerCount; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			group, _, err := m.Enqueue(fmt.Sprintf("conn_%02d", idx), 2)
			assert.NoError(t, err)
			if group != nil {
				mu.Lock()
				grouped = append(grouped, group...)
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	// 偶數名玩家應全部成團，且無人重複
	assert.Len(t, grouped, playerCount)
	seen := make(map[string]bool)
	for _, connID := range grouped {
		assert.False(t, seen[connID], "玩家 %s 出現在多個成團中", connID)
		seen[connID] = true
	}
	assert.Equal(t, 0, m.QueueLengths()[2])
}

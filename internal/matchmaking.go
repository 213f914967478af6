package internal

import (
	"log/slog"
	"sync"

	"github.com/koopa0/system-design/14-match-orchestration/internal/game"
	apperrors "github.com/koopa0/system-design/14-match-orchestration/pkg/errors"
)

// 系統設計問題：
//   如何把等待中的玩家公平地組成對局？
//
// 核心挑戰：
//   1. 公平性：先到先配（FIFO），不跳過、不重排、不隨機取樣
//   2. 原子性：佇列滿員的那一次入列必須原子地取走整組玩家
//   3. 一致性：一個連線同時最多出現在一個佇列中
//   4. 取消：排隊中斷線必須在成團前移出佇列
//
// 設計方案：
//   ✅ 按局人數分桶的有序佇列（2 人局與 4 人局各一條）
//   ✅ 反向索引 queued（connID → 局人數）保證单一佇列不變量
//   ✅ Mutex 保護（入列與成團在同一臨界區內完成）

// Matchmaker 配對佇列管理器。
//
// 每個支援的局人數一條 FIFO 佇列；入列後若佇列長度達到局人數，
// 原子地取走最早的整組玩家成團。不滿員的佇列永遠不會產生部分成團，
// 也不做等待時間上限（湊不齊就一直等）。
type Matchmaker struct {
	queues map[int][]string // partySize -> conn ID（到達順序）
	queued map[string]int   // connID -> partySize（單一佇列不變量）
	mu     sync.Mutex
	logger *slog.Logger
}

// NewMatchmaker 創建配對管理器
func NewMatchmaker(logger *slog.Logger) *Matchmaker {
	queues := make(map[int][]string, len(game.SupportedPartySizes))
	for _, size := range game.SupportedPartySizes {
		queues[size] = nil
	}
	return &Matchmaker{
		queues: queues,
		queued: make(map[string]int),
		logger: logger,
	}
}

// Enqueue 將連線加入指定局人數的佇列。
//
// 返回值：
//   - group：佇列因此次入列而滿員時，按到達順序取走的整組連線；否則為 nil
//   - remaining：還缺幾位玩家（成團時為 0）
//   - err：局人數不支援，或該連線已在佇列中
func (m *Matchmaker) Enqueue(connID string, partySize int) (group []string, remaining int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	queue, ok := m.queues[partySize]
	if !ok {
		return nil, 0, apperrors.ErrInvalidPartySize
	}

	if _, exists := m.queued[connID]; exists {
		return nil, 0, apperrors.New(apperrors.ErrCodeInvalidInput, "already waiting for a game")
	}

	queue = append(queue, connID)
	m.queued[connID] = partySize

	m.logger.Info("玩家加入配對佇列",
		"conn_id", connID,
		"party_size", partySize,
		"queue_length", len(queue))

	// 滿員即原子成團：取走最早的 partySize 位（FIFO，不重排）
	if len(queue) >= partySize {
		group = queue[:partySize]
		m.queues[partySize] = append([]string(nil), queue[partySize:]...)
		for _, id := range group {
			delete(m.queued, id)
		}
		m.logger.Info("配對成團",
			"party_size", partySize,
			"group", group)
		return group, 0, nil
	}

	m.queues[partySize] = queue
	return nil, partySize - len(queue), nil
}

// RemoveIfQueued 將連線移出佇列（冪等）。
//
// 排隊中斷線時呼叫；連線不在任何佇列中（例如已成團）時為 no-op。
func (m *Matchmaker) RemoveIfQueued(connID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	partySize, exists := m.queued[connID]
	if !exists {
		return false
	}

	queue := m.queues[partySize]
	for i, id := range queue {
		if id == connID {
			m.queues[partySize] = append(queue[:i:i], queue[i+1:]...)
			break
		}
	}
	delete(m.queued, connID)

	m.logger.Info("玩家離開配對佇列",
		"conn_id", connID,
		"party_size", partySize)
	return true
}

// QueueLengths 各佇列當前長度（統計用）
func (m *Matchmaker) QueueLengths() map[int]int {
	m.mu.Lock()
	defer m.mu.Unlock()

	lengths := make(map[int]int, len(m.queues))
	for size, queue := range m.queues {
		lengths[size] = len(queue)
	}
	return lengths
}

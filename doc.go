// Package orchestration 提供了一個回合制棋盤遊戲的對局協調系統。
//
// 實現了一個支援 2 人與 4 人 Quoridor 對局的即時遊戲服務器，包含以下核心功能：
//
// 配對系統
//
// 提供按局人數分桶的 FIFO 配對佇列：
//   - 玩家按到達順序配對（不跳過、不重排）
//   - 佇列滿員時原子性成團
//   - 排隊中斷線自動移出佇列
//
// 對局生命週期管理
//
// 每場對局擁有獨立的規則引擎與計時器：
//   - 按位置分配座位（2 人局使用對面座位）
//   - 對局註冊後精確一次廣播 gameStart
//   - 清理由連線驅動：最後一位成員離線才銷毀對局
//
// # 回合與和棋協議
//
// 狀態機管理對局內所有訊息的合法性：
//   - 回合檢查（非你回合的走子僅回覆錯誤給發送者）
//   - 認輸、和棋提議與回應（僅 2 人局支援和棋協商）
//   - 任何被接受的走子自動撤銷待決和棋提議
//
// 權威計時
//
// 每場對局一個倒數計時器：
//   - 只扣當前回合方的時間（每次 tick 查詢即時 playerTurn）
//   - 按實際經過時間扣減（避免固定粒度漂移）
//   - 歸零時恰好發出一次超時信號，判定該方超時負
//
// # WebSocket 通訊
//
// 實現了即時雙向通訊機制：
//   - 支援心跳檢測（Ping/Pong）
//   - 對局廣播與單人通知
//   - 連接狀態管理
//
// 併發安全設計
//
// 協調器以單一互斥鎖串行化所有入站事件（訊息、斷線、計時信號），
// 每個處理器運行至完成，對局狀態轉換因此天然原子，無需每對局加鎖。
//
// 架構設計
//
// 系統採用分層架構設計：
//   - Hub 層：WebSocket 連接管理與訊息收發
//   - Coordinator 層：配對、對局註冊表與協議狀態機
//   - Engine 層：Quoridor 規則引擎（走子合法性與勝負判定）
package orchestration

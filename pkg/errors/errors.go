// Package errors 提供應用程式錯誤處理
package errors

import (
	"errors"
	"fmt"
)

// 定義錯誤碼
const (
	// ErrCodeInvalidPartySize 不支援的局人數
	ErrCodeInvalidPartySize = "INVALID_PARTY_SIZE"
	// ErrCodeNotYourTurn 非當前回合方
	ErrCodeNotYourTurn = "NOT_YOUR_TURN"
	// ErrCodeDrawNotSupported 該局人數不支援和棋協商
	ErrCodeDrawNotSupported = "DRAW_NOT_SUPPORTED"
	// ErrCodeDrawAlreadyPending 已有待決和棋提議
	ErrCodeDrawAlreadyPending = "DRAW_ALREADY_PENDING"
	// ErrCodeNoActiveOffer 沒有待決的和棋提議
	ErrCodeNoActiveOffer = "NO_ACTIVE_OFFER"
	// ErrCodeIllegalMove 規則引擎判定走子不合法
	ErrCodeIllegalMove = "ILLEGAL_MOVE"
	// ErrCodeSessionNotFound 對局不存在
	ErrCodeSessionNotFound = "SESSION_NOT_FOUND"
	// ErrCodeInvalidInput 無效輸入
	ErrCodeInvalidInput = "INVALID_INPUT"
	// ErrCodeInternal 內部錯誤
	ErrCodeInternal = "INTERNAL_ERROR"
)

// AppError 應用程式錯誤
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	Err     error  `json:"-"`
}

// Error 實現 error 介面
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 實現 errors.Unwrap
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is 實現 errors.Is
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New 創建新的應用程式錯誤
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap 包裝錯誤
func Wrap(err error, code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// WithDetails 添加詳細資訊
func (e *AppError) WithDetails(details string) *AppError {
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Err:     e.Err,
	}
}

// 預定義錯誤
var (
	// ErrInvalidPartySize 不支援的局人數
	ErrInvalidPartySize = New(ErrCodeInvalidPartySize, "unsupported party size")

	// ErrNotYourTurn 不是該玩家的回合
	ErrNotYourTurn = New(ErrCodeNotYourTurn, "not your turn")

	// ErrDrawNotSupported 和棋協商僅限 2 人局
	ErrDrawNotSupported = New(ErrCodeDrawNotSupported, "draw offers only supported in 2-player games")

	// ErrDrawAlreadyPending 已有待決和棋提議
	ErrDrawAlreadyPending = New(ErrCodeDrawAlreadyPending, "a draw offer is already pending")

	// ErrNoActiveOffer 沒有可回應的和棋提議
	ErrNoActiveOffer = New(ErrCodeNoActiveOffer, "there is no active draw offer")

	// ErrSessionNotFound 對局不存在
	ErrSessionNotFound = New(ErrCodeSessionNotFound, "session not found")
)

// Code 取出錯誤碼；非 AppError 一律視為內部錯誤
func Code(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

// IsSessionNotFound 檢查是否為對局不存在錯誤
func IsSessionNotFound(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == ErrCodeSessionNotFound
	}
	return false
}

// IsIllegalMove 檢查是否為規則引擎拒絕的走子
func IsIllegalMove(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == ErrCodeIllegalMove
	}
	return false
}

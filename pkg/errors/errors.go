// Package errors 提供群組聊天服務的應用程式錯誤
package errors

import (
	"errors"
	"fmt"
)

// 定義錯誤碼
const (
	// ErrCodeInvalidInput 無效輸入（使用者名稱格式錯誤等）
	ErrCodeInvalidInput = "INVALID_INPUT"
	// ErrCodePasswordRequired 建立群組時未提供密碼
	ErrCodePasswordRequired = "PASSWORD_REQUIRED"
	// ErrCodeWrongPassword 密碼錯誤
	ErrCodeWrongPassword = "WRONG_PASSWORD"
	// ErrCodeUsernameTaken 使用者名稱已被使用
	ErrCodeUsernameTaken = "USERNAME_TAKEN"
	// ErrCodeAlreadyJoined 連線已是成員
	ErrCodeAlreadyJoined = "ALREADY_JOINED"
	// ErrCodeUnauthorized 非房主執行房主操作
	ErrCodeUnauthorized = "UNAUTHORIZED"
	// ErrCodeNotFound 資源未找到
	ErrCodeNotFound = "NOT_FOUND"
	// ErrCodeConflict 狀態衝突（群組已存在 / 尚未建立）
	ErrCodeConflict = "CONFLICT"
)

// AppError 應用程式錯誤
//
// Message 是可直接回傳給客戶端的文字（join:error 的 message 欄位）。
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
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

// Is 以錯誤碼比對
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

// Newf 以格式化訊息創建錯誤
func Newf(code, format string, args ...any) *AppError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap 包裝錯誤
func Wrap(err error, code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// 預定義錯誤（授權類錯誤不會回傳給客戶端，只用於日誌與測試）
var (
	ErrNotHost         = New(ErrCodeUnauthorized, "only the host can handle join requests")
	ErrRequestNotFound = New(ErrCodeNotFound, "join request not found")
	ErrNotMember       = New(ErrCodeUnauthorized, "connection is not a group member")
	ErrGroupExists     = New(ErrCodeConflict, "group already has a host")
	ErrNoGroup         = New(ErrCodeConflict, "no group has been created")
)

// Code 取出錯誤碼，非 AppError 時回傳空字串
func Code(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// Message 取出可回傳給客戶端的訊息
func Message(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// IsValidation 檢查是否為驗證錯誤（需以 join:error 通知發起者）
func IsValidation(err error) bool {
	switch Code(err) {
	case ErrCodeInvalidInput, ErrCodePasswordRequired, ErrCodeWrongPassword,
		ErrCodeUsernameTaken, ErrCodeAlreadyJoined:
		return true
	}
	return false
}

// IsUnauthorized 檢查是否為授權錯誤
func IsUnauthorized(err error) bool {
	return Code(err) == ErrCodeUnauthorized
}

// IsNotFound 檢查是否為未找到錯誤
func IsNotFound(err error) bool {
	return Code(err) == ErrCodeNotFound
}

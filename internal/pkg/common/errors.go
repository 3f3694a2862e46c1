package common

import (
	"errors"
	"net/http"
)

// ErrorResponse 定義 API 錯誤響應結構
type ErrorResponse struct {
	Error string `json:"error"`
}

// CustomError 定義自定義錯誤類型
type CustomError struct {
	Code    string // 錯誤代碼
	Message string // 錯誤信息（可直接顯示給使用者）
	Err     error  // 原始錯誤
	Status  int    // HTTP 狀態碼
}

func (e *CustomError) Error() string {
	if e.Err != nil {
		return e.Code + ": " + e.Message + ": " + e.Err.Error()
	}
	return e.Code + ": " + e.Message
}

// Unwrap 返回原始錯誤
func (e *CustomError) Unwrap() error {
	return e.Err
}

// Is 以錯誤代碼比對，讓 errors.Is(err, ErrRateLimited) 可用於包裝後的錯誤
func (e *CustomError) Is(target error) bool {
	t, ok := target.(*CustomError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Wrap 複製錯誤並附上原始錯誤
func (e *CustomError) Wrap(err error) *CustomError {
	return &CustomError{Code: e.Code, Message: e.Message, Status: e.Status, Err: err}
}

// WithMessage 複製錯誤並替換訊息
func (e *CustomError) WithMessage(message string) *CustomError {
	return &CustomError{Code: e.Code, Message: message, Status: e.Status, Err: e.Err}
}

// NewError 創建新的自定義錯誤
func NewError(code string, message string, status int, err error) *CustomError {
	return &CustomError{
		Code:    code,
		Message: message,
		Status:  status,
		Err:     err,
	}
}

// NewValidationError 創建新的驗證錯誤
func NewValidationError(message string) error {
	return ErrValidation.WithMessage(message)
}

// IsValidationError 檢查是否為驗證錯誤
func IsValidationError(err error) bool {
	return errors.Is(err, ErrValidation)
}

// AsCustomError 取出錯誤鏈中的 CustomError，找不到時歸類為服務不可用
func AsCustomError(err error) *CustomError {
	var ce *CustomError
	if errors.As(err, &ce) {
		return ce
	}
	return ErrServiceUnavailable.Wrap(err)
}

// 預定義錯誤代碼
const (
	ErrCodeValidation         = "VALIDATION_ERROR"    // 400
	ErrCodeRateLimited        = "RATE_LIMITED"        // 429
	ErrCodeBodyTooLarge       = "BODY_TOO_LARGE"      // 413
	ErrCodeQuotaExceeded      = "QUOTA_EXCEEDED"      // 402
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE" // 500
	ErrCodeParse              = "PARSE_ERROR"         // 500
)

// GenericUpstreamMessage 所有上游錯誤對使用者顯示同一段訊息
const GenericUpstreamMessage = "We couldn't check this food right now. Please try again in a moment."

// 預定義錯誤
var (
	ErrValidation         = NewError(ErrCodeValidation, "Please enter a valid food name.", http.StatusBadRequest, nil)
	ErrRateLimited        = NewError(ErrCodeRateLimited, "Too many requests. Please wait a minute and try again.", http.StatusTooManyRequests, nil)
	ErrBodyTooLarge       = NewError(ErrCodeBodyTooLarge, "Request body too large", http.StatusRequestEntityTooLarge, nil)
	ErrQuotaExceeded      = NewError(ErrCodeQuotaExceeded, GenericUpstreamMessage, http.StatusPaymentRequired, nil)
	ErrServiceUnavailable = NewError(ErrCodeServiceUnavailable, GenericUpstreamMessage, http.StatusInternalServerError, nil)
	ErrParse              = NewError(ErrCodeParse, GenericUpstreamMessage, http.StatusInternalServerError, nil)
)

// UserMessage 返回可顯示給使用者的訊息；上游錯誤一律使用通用訊息
func UserMessage(err error) string {
	ce := AsCustomError(err)
	switch ce.Code {
	case ErrCodeValidation, ErrCodeRateLimited, ErrCodeBodyTooLarge:
		return ce.Message
	default:
		return GenericUpstreamMessage
	}
}

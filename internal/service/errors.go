package service

import (
	"errors"
	"fmt"
)

// ErrorCode 对外暴露的错误码，数值与历史接口保持一致
type ErrorCode int

const (
	CodeOK                  ErrorCode = 0
	CodeInsufficientBalance ErrorCode = 1
	CodeAccountNotFound     ErrorCode = 2
	CodeConnectionError     ErrorCode = 3 // 保留，当前统一归入 CodeSystemError
	CodeSystemError         ErrorCode = 4
	CodeResourceNotFound    ErrorCode = 5
	CodeValidationError     ErrorCode = 6
)

// Error 服务层错误
// 只携带错误码和可展示的信息，底层存储错误不会透出
type Error struct {
	Code    ErrorCode
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("code=%d: %s", e.Code, e.Message)
}

// Is 按错误码比较，errors.Is(err, ErrInsufficientBalance) 对任意同码错误成立
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

var (
	ErrInsufficientBalance = &Error{Code: CodeInsufficientBalance, Message: "余额不足"}
	ErrAccountNotFound     = &Error{Code: CodeAccountNotFound, Message: "账户不存在"}
	ErrSystem              = &Error{Code: CodeSystemError, Message: "system error"}
	ErrResourceNotFound    = &Error{Code: CodeResourceNotFound, Message: "资源不存在"}
)

func validationError(format string, args ...interface{}) *Error {
	return &Error{Code: CodeValidationError, Message: fmt.Sprintf(format, args...)}
}

func notFoundError(message string) *Error {
	return &Error{Code: CodeResourceNotFound, Message: message}
}

// CodeOf 取错误码，非服务层错误一律视为系统错误
func CodeOf(err error) ErrorCode {
	if err == nil {
		return CodeOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeSystemError
}

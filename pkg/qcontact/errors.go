package qcontact

import (
	"errors"
	"fmt"
)

// ErrorCode 错误分类码
type ErrorCode string

const (
	ErrCodeAuthentication ErrorCode = "AUTHENTICATION_ERROR"
	ErrCodeAuthorization  ErrorCode = "AUTHORIZATION_ERROR"
	ErrCodeNotFound       ErrorCode = "NOT_FOUND"
	ErrCodeValidation     ErrorCode = "VALIDATION_ERROR"
	ErrCodeServer         ErrorCode = "SERVER_ERROR"
	ErrCodeNetwork        ErrorCode = "NETWORK_ERROR"
	ErrCodeTimeout        ErrorCode = "TIMEOUT"
	ErrCodeRateLimited    ErrorCode = "RATE_LIMITED"
	ErrCodeParse          ErrorCode = "PARSE_ERROR"
	ErrCodeUnknown        ErrorCode = "UNKNOWN_ERROR"
)

// Error QContact API错误，携带分类码、HTTP状态和是否可重试
type Error struct {
	Code          ErrorCode
	Message       string
	StatusCode    int
	RequestURL    string
	RequestMethod string
	Recoverable   bool
	RetryAfter    int // 秒，仅429时有值
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("qcontact: %s (code=%s, status=%d, url=%s)", e.Message, e.Code, e.StatusCode, e.RequestURL)
	}
	return fmt.Sprintf("qcontact: %s (code=%s, url=%s)", e.Message, e.Code, e.RequestURL)
}

// AsError 提取QContact错误
func AsError(err error) (*Error, bool) {
	var qe *Error
	if errors.As(err, &qe) {
		return qe, true
	}
	return nil, false
}

// IsNotFound 判断是否为404错误
func IsNotFound(err error) bool {
	qe, ok := AsError(err)
	return ok && qe.Code == ErrCodeNotFound
}

// IsRecoverable 判断错误是否可重试（网络错误/超时/429/5xx）
func IsRecoverable(err error) bool {
	qe, ok := AsError(err)
	return ok && qe.Recoverable
}

// mapStatusCode HTTP状态码映射到错误分类码
func mapStatusCode(statusCode int) ErrorCode {
	switch statusCode {
	case 400, 422:
		return ErrCodeValidation
	case 401:
		return ErrCodeAuthentication
	case 403:
		return ErrCodeAuthorization
	case 404:
		return ErrCodeNotFound
	case 429:
		return ErrCodeRateLimited
	case 500, 502, 503, 504:
		return ErrCodeServer
	default:
		return ErrCodeUnknown
	}
}

// isRetryableStatus 429和5xx可重试
func isRetryableStatus(statusCode int) bool {
	return statusCode == 429 || statusCode >= 500
}

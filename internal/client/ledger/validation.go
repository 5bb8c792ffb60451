package ledger

import (
	"errors"
	"strings"
)

// ValidationError 本地校验失败，不会发往网络
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

// Validator 乐观写入前的本地校验
type Validator[T any] func(payload T) error

// NotBlank 要求文本去除首尾空白后非空
func NotBlank[T any](text func(T) string) Validator[T] {
	return func(payload T) error {
		if strings.TrimSpace(text(payload)) == "" {
			return &ValidationError{Reason: "text is empty"}
		}
		return nil
	}
}

func asValidationError(err error) *ValidationError {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve
	}
	return &ValidationError{Reason: err.Error()}
}

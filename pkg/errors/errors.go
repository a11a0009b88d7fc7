// Package errors 提供统一错误辅助，不依赖 internal
package errors

import (
	"errors"
	"fmt"
)

// 常用哨兵错误（可按需扩展错误码）
var (
	ErrNotFound   = errors.New("not found")
	ErrInvalidArg = errors.New("invalid argument")
)

// StageError 带阶段标签的错误：save/normalize/triage/upload 流水线用
type StageError struct {
	Stage string
	Err   error
}

// Error 实现 error
func (e *StageError) Error() string {
	return fmt.Sprintf("[%s] %v", e.Stage, e.Err)
}

// Unwrap 支持 errors.Is/As
func (e *StageError) Unwrap() error {
	return e.Err
}

// NewStageError 创建阶段错误
func NewStageError(stage string, err error) *StageError {
	return &StageError{Stage: stage, Err: err}
}

// Wrap 包装错误并附加消息
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf 带格式的 Wrap
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

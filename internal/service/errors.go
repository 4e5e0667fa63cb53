package service

import (
	"errors"
	"fmt"
)

var (
	// ErrPlanNotFound 在指定计划不存在时返回
	ErrPlanNotFound = errors.New("plan not found")
	// ErrSubtaskNotFound 在指定子任务不存在时返回
	ErrSubtaskNotFound = errors.New("subtask not found")
)

// FormatError 表示导入文档不符合计划语法，整个导入会被中止。
type FormatError struct {
	msg string
}

func (e *FormatError) Error() string { return e.msg }

func formatErrorf(format string, args ...any) *FormatError {
	return &FormatError{msg: fmt.Sprintf(format, args...)}
}

// ValidationError 表示调用方给出的身份、心情或提交引用缺失/非法。
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

func validationErrorf(format string, args ...any) *ValidationError {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

// ConflictError 表示任务不在期望状态或提交已变化，调用方应刷新后重试。
type ConflictError struct {
	msg string
}

func (e *ConflictError) Error() string { return e.msg }

func conflictErrorf(format string, args ...any) *ConflictError {
	return &ConflictError{msg: fmt.Sprintf(format, args...)}
}

// ForbiddenError 表示审批回避规则拒绝了本次操作。
type ForbiddenError struct {
	msg string
}

func (e *ForbiddenError) Error() string { return e.msg }

func forbiddenErrorf(format string, args ...any) *ForbiddenError {
	return &ForbiddenError{msg: fmt.Sprintf(format, args...)}
}

package model

import (
	"errors"
	"fmt"
)

// 错误分类：目录与对象存储操作统一使用这组哨兵错误包装，
// 调用方通过 errors.Is 判断类别.
var (
	// ErrNotFound 对象或记录不存在.
	ErrNotFound = errors.New("not found")
	// ErrConflict 条件写输掉竞争，并发方已完成同一工作.
	ErrConflict = errors.New("conflict")
	// ErrChecksum 摘要计算期间流读取失败.
	ErrChecksum = errors.New("checksum failure")
	// ErrTransient 可重试的存储 I/O 失败，由投递方重试.
	ErrTransient = errors.New("transient storage failure")
)

// IsNotFound 判断错误是否为"不存在"类别.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsConflict 判断错误是否为条件写冲突.
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

// IsTransient 判断错误是否可重试.
func IsTransient(err error) bool { return errors.Is(err, ErrTransient) }

// NotFoundf 构造带上下文的 NotFound 错误.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrNotFound)...)
}

// Transientf 构造带上下文的可重试错误.
func Transientf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrTransient)...)
}

package models

import (
	"errors"
	"fmt"
)

// ErrorCode 错误分类
type ErrorCode string

const (
	CodeInvalidURL        ErrorCode = "InvalidURL"
	CodeInvalidRequest    ErrorCode = "InvalidRequest"
	CodeDomainMismatch    ErrorCode = "DomainMismatch"
	CodeFetchFailure      ErrorCode = "FetchFailure"
	CodeTimeoutExceeded   ErrorCode = "TimeoutExceeded"
	CodeWorkDirFailure    ErrorCode = "WorkDirFailure"
	CodeArchiveFailure    ErrorCode = "ArchiveFailure"
	CodeConversionFailure ErrorCode = "ConversionFailure"
	CodeCleanupFailure    ErrorCode = "CleanupFailure"
)

// 与错误分类对应的哨兵错误, 通过 errors.Is 判断
var (
	ErrInvalidURL        = errors.New("无效的URL")
	ErrInvalidRequest    = errors.New("无效的任务请求")
	ErrDomainMismatch    = errors.New("域名不匹配")
	ErrFetchFailure      = errors.New("资源抓取失败")
	ErrTimeoutExceeded   = errors.New("全局超时")
	ErrWorkDirFailure    = errors.New("创建任务目录失败")
	ErrArchiveFailure    = errors.New("打包失败")
	ErrConversionFailure = errors.New("文档转换失败")
	ErrCleanupFailure    = errors.New("清理失败")
)

var sentinels = map[ErrorCode]error{
	CodeInvalidURL:        ErrInvalidURL,
	CodeInvalidRequest:    ErrInvalidRequest,
	CodeDomainMismatch:    ErrDomainMismatch,
	CodeFetchFailure:      ErrFetchFailure,
	CodeTimeoutExceeded:   ErrTimeoutExceeded,
	CodeWorkDirFailure:    ErrWorkDirFailure,
	CodeArchiveFailure:    ErrArchiveFailure,
	CodeConversionFailure: ErrConversionFailure,
	CodeCleanupFailure:    ErrCleanupFailure,
}

// JobError 带分类的任务错误
type JobError struct {
	Code ErrorCode
	Op   string // 出错阶段, 如 "archive"
	Err  error
}

// NewJobError 构造任务错误
func NewJobError(code ErrorCode, op string, err error) *JobError {
	return &JobError{Code: code, Op: op, Err: err}
}

// Error 实现error接口
func (e *JobError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s [%s]", e.Code, e.Op)
	}
	return fmt.Sprintf("%s [%s]: %v", e.Code, e.Op, e.Err)
}

// Unwrap 支持errors.Unwrap
func (e *JobError) Unwrap() error {
	return e.Err
}

// Is 使 errors.Is(err, ErrArchiveFailure) 等判断成立
func (e *JobError) Is(target error) bool {
	return sentinels[e.Code] == target
}

// CodeOf 提取错误分类, 非JobError返回空串
func CodeOf(err error) ErrorCode {
	var je *JobError
	if errors.As(err, &je) {
		return je.Code
	}
	return ""
}

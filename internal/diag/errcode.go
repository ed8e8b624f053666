package diag

import (
	"context"
	"errors"
	"io/fs"

	"oscarflow/pkg/contract"
)

// Code 是最小错误分类代码，用于日志/指标汇总；退出码由 ExitCode 单独映射。
type Code string

const (
	CodeUnknown   Code = "unknown"
	CodeConfig    Code = "config"
	CodeStructure Code = "structure"
	CodeParse     Code = "parse"
	CodeEmpty     Code = "empty"
	CodeIO        Code = "io"
	CodeCancel    Code = "cancel"
	CodeInvariant Code = "invariant"
)

// 进程退出码：调用方工具据此区分“配置错误”“输入结构错误”“没有可用数据”。
const (
	ExitOK        = 0
	ExitFailure   = 1
	ExitNoEvents  = 2
	ExitConfig    = 3
	ExitStructure = 4
)

// Classify 将错误归为最小分类。仅依赖哨兵错误与标准库错误类型，不做字符串匹配。
func Classify(err error) Code {
	if err == nil {
		return CodeUnknown
	}
	switch {
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return CodeCancel
	case errors.Is(err, contract.ErrUnknownFormat) || errors.Is(err, contract.ErrConfig):
		return CodeConfig
	case errors.Is(err, contract.ErrStructure):
		return CodeStructure
	case errors.Is(err, contract.ErrNoEvents):
		return CodeEmpty
	case errors.Is(err, contract.ErrParse):
		return CodeParse
	case errors.Is(err, contract.ErrShapeMismatch) || errors.Is(err, contract.ErrPathInvalid):
		return CodeInvariant
	}
	var perr *fs.PathError
	if errors.As(err, &perr) {
		return CodeIO
	}
	return CodeUnknown
}

// ExitCode 将运行结果映射为进程退出码。
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	switch Classify(err) {
	case CodeConfig:
		return ExitConfig
	case CodeStructure:
		return ExitStructure
	case CodeEmpty:
		return ExitNoEvents
	default:
		return ExitFailure
	}
}

package contract

import "errors"

// 最小错误分类：调用方仅通过 errors.Is 判定，不做字符串匹配。
var (
	// ErrUnknownFormat: 未知的 Oscar 格式变体（配置错误，处理前即失败）。
	ErrUnknownFormat = errors.New("unknown oscar format")
	// ErrConfig: 配置非法（数值范围、组件名等）。
	ErrConfig = errors.New("invalid configuration")
	// ErrStructure: 事件结构违例（end 无匹配 start、未知事件标签、事件外的粒子行）。
	// 输入违反格式约定，整次运行失败。
	ErrStructure = errors.New("event structure violation")
	// ErrParse: 行内容无法解析（字段不足、数值非法）。仅导致当前文件被跳过。
	ErrParse = errors.New("line parse error")
	// ErrNoEvents: 全部输入处理完毕后累计事件数为 0。
	ErrNoEvents = errors.New("no events collected")
	// ErrPathInvalid: 输出路径无效。
	ErrPathInvalid = errors.New("path invalid")
	// ErrShapeMismatch: 直方图形状不一致，无法合并。
	ErrShapeMismatch = errors.New("histogram shape mismatch")
)

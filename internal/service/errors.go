// Package service 包含了应用的业务逻辑层。
package service

import (
	"errors"
	"fmt"
)

// 业务错误的固定分类。这些是调用方可预期、可恢复的条件，
// 以类型化的错误值向上传递，由接口层翻译为 HTTP 状态码，绝不在内部重试。
var (
	// ErrNotFound 表示目标对话或用户不存在。
	ErrNotFound = errors.New("资源不存在")
	// ErrForbidden 表示调用者不拥有目标对话。
	// 无论对话是否存在都返回同一个错误，避免向非所有者泄漏存在性。
	ErrForbidden = errors.New("无权访问该对话")
	// ErrDuplicateName 表示创建或重命名与同一所有者的已有名称冲突。
	ErrDuplicateName = errors.New("对话名称已存在")
	// ErrUpstreamGeneration 表示外部回答生成服务失败或超时。
	// 该错误发生在任何账本写入之前，本轮不留下任何持久状态。
	ErrUpstreamGeneration = errors.New("回答生成失败")
)

// PartialTurnError 表示半截轮次：用户消息已持久化，AI 消息写入失败。
// 已提交的用户消息不回滚，账本保留一条未应答的人类消息，
// 下一次读取完整历史即可观察到，调用方可据此重试生成。
type PartialTurnError struct {
	ConversationUUID string
	// Answer 是已生成但未能入账的回答文本，随错误带出避免丢失。
	Answer string
	Err    error
}

// Error 实现 error 接口。
func (e *PartialTurnError) Error() string {
	return fmt.Sprintf("对话 %s 的轮次只写入了一半: %v", e.ConversationUUID, e.Err)
}

// Unwrap 返回底层持久化错误。
func (e *PartialTurnError) Unwrap() error {
	return e.Err
}

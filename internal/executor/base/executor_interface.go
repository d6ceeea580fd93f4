/**
 * 执行器接口定义
 * @author: sun977
 * @date: 2026.10.14
 * @description: 命令执行结果与执行器接口，Agent 主循环只依赖这里的类型
 * @func: Result 执行结果, Executor 执行器接口, Handler 单命令处理器
 */
package base

import (
	"context"

	"github.com/pma-it-suite/daemon/internal/model/client"
)

// ResultKind 执行结果种类
type ResultKind int

const (
	ResultSuccess   ResultKind = iota // 执行成功，Output 有效
	ResultFailure                     // 执行失败，Err 有效
	ResultUnhandled                   // 本端不处理的命令类型，Tag 有效
)

func (k ResultKind) String() string {
	switch k {
	case ResultSuccess:
		return "Success"
	case ResultFailure:
		return "Failure"
	case ResultUnhandled:
		return "Unhandled"
	default:
		return "Unknown"
	}
}

// Result 执行结果
type Result struct {
	Kind   ResultKind
	Output string
	Err    error
	Tag    client.CommandName
}

// Success 成功结果
func Success(output string) Result {
	return Result{Kind: ResultSuccess, Output: output}
}

// Failure 失败结果
func Failure(err error) Result {
	return Result{Kind: ResultFailure, Err: err}
}

// Unhandled 未处理结果
func Unhandled(tag client.CommandName) Result {
	return Result{Kind: ResultUnhandled, Tag: tag}
}

// ==================== 接口 ====================

// Executor 命令执行器
type Executor interface {
	// Execute 执行命令，不返回 error，所有失败都折叠进 Result
	Execute(ctx context.Context, cmd *client.Command) Result
}

// Handler 单一命令类型的处理器
type Handler interface {
	Handle(ctx context.Context, cmd *client.Command) (string, error)
}

// HandlerFunc 函数适配
type HandlerFunc func(ctx context.Context, cmd *client.Command) (string, error)

func (f HandlerFunc) Handle(ctx context.Context, cmd *client.Command) (string, error) {
	return f(ctx, cmd)
}

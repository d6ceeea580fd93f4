/**
 * 处理错误定义
 * @author: sun977
 * @date: 2026.10.14
 * @description: Launcher与Agent共用的错误分类，所有外部调用失败都归入固定的错误种类
 * @func: ErrorKind 错误种类, HandlerError 带命令ID的错误, KindOf 错误种类提取
 */
package base

import (
	"errors"
	"fmt"
)

// ErrorKind 错误种类
type ErrorKind string

const (
	IoError               ErrorKind = "IoError"               // 本地文件读写失败
	NetworkError          ErrorKind = "NetworkError"          // 网络传输失败
	ApiError              ErrorKind = "ApiError"              // 未归类的HTTP状态码
	ServerError           ErrorKind = "ServerError"           // 服务端500
	InputError            ErrorKind = "InputError"            // 400/422 请求参数错误
	NotFound              ErrorKind = "NotFound"              // 404
	SerializationError    ErrorKind = "SerializationError"    // JSON编解码失败
	ParseError            ErrorKind = "ParseError"            // 命令参数解析失败
	CommandExecutionError ErrorKind = "CommandExecutionError" // 命令执行失败
	UnknownError          ErrorKind = "UnknownError"          // 无法归类
)

// HandlerError 分类错误
// CommandID 仅在命令相关错误中填写
type HandlerError struct {
	Kind      ErrorKind
	CommandID string
	Message   string
	Err       error
}

// NewError 创建分类错误
func NewError(kind ErrorKind, message string, err error) *HandlerError {
	return &HandlerError{Kind: kind, Message: message, Err: err}
}

// NewCommandError 创建带命令ID的分类错误
func NewCommandError(kind ErrorKind, commandID, message string, err error) *HandlerError {
	return &HandlerError{Kind: kind, CommandID: commandID, Message: message, Err: err}
}

func (e *HandlerError) Error() string {
	msg := string(e.Kind)
	if e.CommandID != "" {
		msg += fmt.Sprintf(" [command %s]", e.CommandID)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}

// Is 按错误种类比较，errors.Is(err, &HandlerError{Kind: NotFound}) 成立即为同类
func (e *HandlerError) Is(target error) bool {
	t, ok := target.(*HandlerError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.CommandID == "" || t.CommandID == e.CommandID)
}

// KindOf 提取错误种类，非分类错误返回 UnknownError
func KindOf(err error) ErrorKind {
	var he *HandlerError
	if errors.As(err, &he) {
		return he.Kind
	}
	return UnknownError
}

// CommandIDOf 提取错误关联的命令ID
func CommandIDOf(err error) string {
	var he *HandlerError
	if errors.As(err, &he) {
		return he.CommandID
	}
	return ""
}

// IsKind 判断错误是否属于指定种类
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

/**
 * 通用响应结构体
 * @author: sun977
 * @date: 2026.10.14
 * @description: 控制端通用的简单响应结构
 */

package base

// OkResponse ping 等接口返回的 {"ok": ...}
type OkResponse struct {
	Ok bool `json:"ok"`
}

// MessageResponse 控制端错误/提示响应
type MessageResponse struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

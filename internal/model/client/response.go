/**
 * 通用响应模型
 * @author: sun977
 * @date: 2026.10.14
 * @description: 健康检查相关响应
 */
package client

// PingResponse GET /ping.json 响应
type PingResponse struct {
	Ok bool `json:"ok"`
}

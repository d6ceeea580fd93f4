/**
 * 通信错误定义
 * @author: sun977
 * @date: 2026.10.14
 * @description: 设备与控制端交互过程中的哨兵错误
 */
package client

import "errors"

var (
	// 身份相关错误
	ErrIdentityMissing = errors.New("user identity is not configured") // 缺少 user_id/user_secret
	ErrDeviceIDMissing = errors.New("device id is empty")              // 注册返回空设备ID

	// 响应相关错误
	ErrInvalidResponse = errors.New("invalid response from control server")
)

/**
 * 设备注册模型
 * @author: sun977
 * @date: 2026.10.14
 * @description: POST /devices/register 请求与响应
 */
package client

// RegisterDeviceRequest 设备注册请求
type RegisterDeviceRequest struct {
	DeviceName string `json:"device_name"`
	UserID     string `json:"user_id"`
	UserSecret string `json:"user_secret"`
	IssuerID   string `json:"issuer_id"`
}

// RegisterDeviceResponse 设备注册响应
type RegisterDeviceResponse struct {
	DeviceID string `json:"device_id"`
}

/*
 * @author: sun977
 * @date: 2026.10.14
 * @description: uuid工具包
 * @func: 请求追踪ID生成与校验
 */

package utils

import (
	"strings"

	"github.com/google/uuid"
)

// NewRequestID 生成请求追踪ID
func NewRequestID() string {
	return uuid.NewString()
}

// NewShortID 生成不带连字符的ID
func NewShortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// IsValidUUID 校验UUID格式
func IsValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

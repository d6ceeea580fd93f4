/**
 * 语义化版本
 * @author: sun977
 * @date: 2026.10.14
 * @description: 控制端下发的应用版本号，Launcher 依赖它判断是否需要升级
 * @func: SemanticVersion 比较/解析/格式化
 */
package client

import (
	"fmt"
	"strconv"
	"strings"
)

// SemanticVersion 语义化版本 {major, minor, patch}
type SemanticVersion struct {
	Major uint64 `json:"major" yaml:"major"`
	Minor uint64 `json:"minor" yaml:"minor"`
	Patch uint64 `json:"patch" yaml:"patch"`
}

// Compare 按 (major, minor, patch) 字典序比较
// 返回 -1 / 0 / 1
func (v SemanticVersion) Compare(other SemanticVersion) int {
	switch {
	case v.Major != other.Major:
		return cmpUint(v.Major, other.Major)
	case v.Minor != other.Minor:
		return cmpUint(v.Minor, other.Minor)
	default:
		return cmpUint(v.Patch, other.Patch)
	}
}

// Less 当前版本是否严格小于 other
func (v SemanticVersion) Less(other SemanticVersion) bool {
	return v.Compare(other) < 0
}

// IsZero 是否为 0.0.0
func (v SemanticVersion) IsZero() bool {
	return v == SemanticVersion{}
}

func (v SemanticVersion) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// ParseSemanticVersion 解析 "1.2.3" 或 "v1.2.3"
func ParseSemanticVersion(s string) (SemanticVersion, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "v")
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return SemanticVersion{}, fmt.Errorf("invalid semantic version %q", s)
	}

	var nums [3]uint64
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			return SemanticVersion{}, fmt.Errorf("invalid semantic version %q: %w", s, err)
		}
		nums[i] = n
	}
	return SemanticVersion{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

func cmpUint(a, b uint64) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

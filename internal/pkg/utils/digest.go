/*
 * @author: sun977
 * @date: 2026.10.14
 * @description: 文件摘要工具
 * @func: 以流式方式计算文件的 BLAKE3 摘要
 */

package utils

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/zeebo/blake3"
)

// HashFile 计算文件的 BLAKE3-256 摘要
func HashFile(path string) ([32]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return [32]byte{}, fmt.Errorf("opening %s for hashing: %w", path, err)
	}
	defer file.Close()

	hasher := blake3.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return [32]byte{}, fmt.Errorf("hashing %s: %w", path, err)
	}

	var digest [32]byte
	copy(digest[:], hasher.Sum(nil))
	return digest, nil
}

// HashBytes 计算内存数据的 BLAKE3-256 摘要
func HashBytes(data []byte) [32]byte {
	return blake3.Sum256(data)
}

// FormatDigest 摘要转十六进制字符串
func FormatDigest(digest [32]byte) string {
	return hex.EncodeToString(digest[:])
}

// Package checksum 提供对象内容的流式 SHA-256 摘要计算.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/yeisme/ingestvault/pkg/internal/model"
)

// SHA256Hex 流式读取 r 的全部内容并返回小写十六进制 SHA-256 摘要.
// 整个对象只经过一次读取，不会整体载入内存.
func SHA256Hex(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("read object stream: %w: %w", err, model.ErrChecksum)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

/**
 * @module crypto_utils
 * @description 加密工具模块，负责文件完整性哈希、API密钥生成、安全比较等功能
 * @architecture 加密工具集模式，提供哈希与密钥管理方法
 * @documentReference dev_docs/detection_requirements.md
 * @stateFlow 无状态哈希：文件字节 -> SHA-256 -> 十六进制摘要
 * @rules
 *   - 文件哈希统一使用SHA-256，摘要用于扫描记录去重与完整性展示
 *   - API密钥使用安全随机数生成，明文只在创建时返回一次
 *   - 密钥比较需要防时序攻击
 * @dependencies
 *   - crypto/sha256: 哈希算法
 *   - crypto/rand: 安全随机数
 *   - encoding/hex: 十六进制编码
 * @refs
 *   - service/scan/*: 扫描服务
 *   - service/sharing/*: API密钥管理
 */

package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"io"
)

// API密钥前缀，便于日志与审计中快速识别密钥来源
const apiKeyPrefix = "dsk"

// CryptoUtils 加密工具
type CryptoUtils struct{}

// NewCryptoUtils 创建新的加密工具实例
func NewCryptoUtils() *CryptoUtils {
	return &CryptoUtils{}
}

// SHA256Hex 计算字节数据的SHA-256十六进制摘要
func (cu *CryptoUtils) SHA256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// SHA256Stream 流式计算SHA-256摘要，大文件场景避免整体载入内存
func (cu *CryptoUtils) SHA256Stream(r io.Reader) (string, error) {
	hasher := sha256.New()
	if _, err := io.Copy(hasher, r); err != nil {
		return "", fmt.Errorf("读取数据流失败: %w", err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// GenerateAPIKey 生成API密钥明文，格式: dsk_<40位十六进制>
// 返回完整明文与用于索引展示的前缀段
func (cu *CryptoUtils) GenerateAPIKey() (plaintext, prefix string, err error) {
	raw := make([]byte, 20)
	if _, err := rand.Read(raw); err != nil {
		return "", "", fmt.Errorf("生成密钥随机数失败: %w", err)
	}

	plaintext = fmt.Sprintf("%s_%s", apiKeyPrefix, hex.EncodeToString(raw))
	// 前缀段取明文前12个字符，足够人工识别且不泄露密钥
	prefix = plaintext[:12]
	return plaintext, prefix, nil
}

// SecureCompare 安全比较字符串（防时序攻击）
func (cu *CryptoUtils) SecureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

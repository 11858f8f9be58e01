/*
 * @module service/sharing/apikey_service
 * @description API密钥服务，为CI/CD流水线调用扫描接口提供密钥签发、校验与管理
 * @architecture 分层架构 - 业务服务层
 * @documentReference dev_docs/detection_requirements.md
 * @stateFlow 密钥签发 -> bcrypt哈希落库 -> 请求携带明文 -> 前缀定位 -> 哈希比对
 * @rules 密钥明文只在签发时返回一次；库中仅存bcrypt哈希；过期或停用密钥校验失败
 * @dependencies golang.org/x/crypto/bcrypt, gorm.io/gorm
 * @refs api/middleware/apikey_auth.go, service/utils/crypto_utils.go
 */

package sharing

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"datascan-service/service/models"
	"datascan-service/service/utils"
)

var (
	// ErrInvalidKey 密钥无效、停用或已过期
	ErrInvalidKey = errors.New("API密钥无效")
)

// ApiKeyService API密钥服务
type ApiKeyService struct {
	db     *gorm.DB
	crypto *utils.CryptoUtils
}

// NewApiKeyService 创建API密钥服务实例
func NewApiKeyService(db *gorm.DB) *ApiKeyService {
	return &ApiKeyService{
		db:     db,
		crypto: utils.NewCryptoUtils(),
	}
}

// CreateKeyResult 密钥签发结果，PlainKey只在此处出现一次
type CreateKeyResult struct {
	Key      *models.ApiKey `json:"key"`
	PlainKey string         `json:"plain_key"`
}

// CreateKey 签发新密钥
func (s *ApiKeyService) CreateKey(name, description string, expiresAt *time.Time) (*CreateKeyResult, error) {
	if name == "" {
		return nil, fmt.Errorf("密钥名称不能为空")
	}

	plaintext, prefix, err := s.crypto.GenerateAPIKey()
	if err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("密钥哈希失败: %w", err)
	}

	key := &models.ApiKey{
		Name:        name,
		Description: description,
		KeyHash:     string(hash),
		KeyPrefix:   prefix,
		IsEnabled:   true,
		ExpiresAt:   expiresAt,
	}
	if err := s.db.Create(key).Error; err != nil {
		return nil, fmt.Errorf("保存API密钥失败: %w", err)
	}

	return &CreateKeyResult{Key: key, PlainKey: plaintext}, nil
}

// ValidateKey 校验密钥明文，成功返回对应的密钥记录并刷新最近使用时间
func (s *ApiKeyService) ValidateKey(plaintext string) (*models.ApiKey, error) {
	if len(plaintext) < 12 {
		return nil, ErrInvalidKey
	}
	prefix := plaintext[:12]

	// 前缀定位候选密钥，避免全表bcrypt比对
	var candidates []models.ApiKey
	if err := s.db.Where("key_prefix = ? AND is_enabled = ?", prefix, true).Find(&candidates).Error; err != nil {
		return nil, fmt.Errorf("查询API密钥失败: %w", err)
	}

	now := time.Now()
	for i := range candidates {
		key := &candidates[i]
		if key.ExpiresAt != nil && key.ExpiresAt.Before(now) {
			continue
		}
		if bcrypt.CompareHashAndPassword([]byte(key.KeyHash), []byte(plaintext)) == nil {
			s.db.Model(key).Update("last_used_at", now)
			return key, nil
		}
	}
	return nil, ErrInvalidKey
}

// ListKeys 查询全部密钥，按创建时间倒序
func (s *ApiKeyService) ListKeys() ([]models.ApiKey, error) {
	var keys []models.ApiKey
	if err := s.db.Order("created_at DESC").Find(&keys).Error; err != nil {
		return nil, fmt.Errorf("查询API密钥失败: %w", err)
	}
	return keys, nil
}

// DisableKey 停用密钥
func (s *ApiKeyService) DisableKey(id string) error {
	result := s.db.Model(&models.ApiKey{}).Where("id = ?", id).Update("is_enabled", false)
	if result.Error != nil {
		return fmt.Errorf("停用API密钥失败: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("API密钥不存在: %s", id)
	}
	return nil
}

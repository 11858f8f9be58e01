/*
 * @module service/models/scan
 * @description 扫描业务模型，定义扫描记录、审计日志、API密钥等持久化结构
 * @architecture 分层架构 - 数据模型层
 * @documentReference dev_docs/detection_requirements.md
 * @stateFlow 文件上传 -> 扫描执行 -> 记录持久化 -> 审计追踪
 * @rules 扫描记录与审计日志只增不改，保证可追溯性
 * @dependencies gorm.io/gorm, github.com/google/uuid
 * @refs service/scan/, service/audit/
 */

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ScanRecord 扫描记录模型，每次文件扫描持久化一条
type ScanRecord struct {
	ID           string       `gorm:"type:uuid;primary_key" json:"id"`
	FileName     string       `gorm:"not null;size:255" json:"file_name"`
	FileType     string       `gorm:"not null;size:16" json:"file_type"` // csv/png/jpg/jpeg/gif/bmp
	FileHash     string       `gorm:"not null;size:64;index" json:"file_hash"`
	FileSize     int64        `gorm:"not null;default:0" json:"file_size"`
	FindingCount int          `gorm:"not null;default:0" json:"finding_count"`
	HighCount    int          `gorm:"not null;default:0" json:"high_count"`
	MediumCount  int          `gorm:"not null;default:0" json:"medium_count"`
	LowCount     int          `gorm:"not null;default:0" json:"low_count"`
	Findings     FindingArray `gorm:"type:jsonb" json:"findings"`
	DurationMs   int64        `gorm:"not null;default:0" json:"duration_ms"`
	CreatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// BeforeCreate 创建前钩子
func (s *ScanRecord) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return nil
}

// AuditLog 审计日志模型，记录上传、扫描、导出等事件
type AuditLog struct {
	ID        string    `gorm:"type:uuid;primary_key" json:"id"`
	Event     string    `gorm:"not null;size:64;index" json:"event"` // file_upload/scan_completed/scan_failed/export/...
	FileHash  string    `gorm:"size:64" json:"file_hash,omitempty"`
	ClientIP  string    `gorm:"size:64" json:"client_ip,omitempty"`
	Detail    JSONB     `gorm:"type:jsonb" json:"detail,omitempty"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP;index" json:"timestamp"`
}

// BeforeCreate 创建前钩子
func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	return nil
}

// ApiKey 扫描API密钥模型，供CI/CD流水线调用扫描接口使用
type ApiKey struct {
	ID          string     `gorm:"type:uuid;primary_key" json:"id"`
	Name        string     `gorm:"not null;size:100" json:"name"`
	KeyHash     string     `gorm:"not null;size:128" json:"-"` // bcrypt哈希，不对外输出
	KeyPrefix   string     `gorm:"not null;size:16;index" json:"key_prefix"`
	IsEnabled   bool       `gorm:"not null;default:true" json:"is_enabled"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty"`
	CreatedAt   time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	Description string     `gorm:"size:255" json:"description,omitempty"`
}

// BeforeCreate 创建前钩子
func (k *ApiKey) BeforeCreate(tx *gorm.DB) error {
	if k.ID == "" {
		k.ID = uuid.New().String()
	}
	return nil
}

// SeverityChart 按严重程度统计的图表数据，前端饼图直接消费
type SeverityChart struct {
	Labels []string `json:"labels"`
	Values []int    `json:"values"`
	Colors []string `json:"colors"`
}

// ScanResult 单次扫描的完整返回结构
type ScanResult struct {
	ScanID     string           `json:"scan_id"`
	FileName   string           `json:"file_name"`
	FileType   string           `json:"file_type"`
	FileHash   string           `json:"file_hash"`
	Findings   []AnomalyFinding `json:"findings"`
	Chart      *SeverityChart   `json:"chart,omitempty"`
	DurationMs int64            `json:"duration_ms"`
}

// ScanEvent 扫描事件，经SSE与Kafka对外发布
type ScanEvent struct {
	Type      string    `json:"type"` // scan_started/scan_completed/scan_failed
	ScanID    string    `json:"scan_id"`
	FileName  string    `json:"file_name"`
	FileHash  string    `json:"file_hash,omitempty"`
	Findings  int       `json:"findings"`
	HighCount int       `json:"high_count"`
	Timestamp time.Time `json:"timestamp"`
}

/*
 * @module service/audit/audit_service
 * @description 审计日志服务，提供审计事件记录、分页查询与CSV导出功能
 * @architecture 分层架构 - 业务服务层
 * @documentReference dev_docs/detection_requirements.md
 * @stateFlow 业务事件 -> 审计记录落库 -> 查询/导出
 * @rules 审计日志只增不改；记录失败只告警不阻断业务主流程
 * @dependencies gorm.io/gorm, encoding/csv
 * @refs service/scan/scan_service.go, api/controllers/audit_controller.go
 */

package audit

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"datascan-service/service/models"
)

// Service 审计日志服务
type Service struct {
	db *gorm.DB
}

// NewService 创建审计日志服务实例
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Record 记录一条审计事件
// 落库失败只记录日志，不向调用方抛错，避免审计故障拖垮业务
func (s *Service) Record(event, fileHash, clientIP string, detail models.JSONB) {
	entry := &models.AuditLog{
		Event:    event,
		FileHash: fileHash,
		ClientIP: clientIP,
		Detail:   detail,
	}
	if err := s.db.Create(entry).Error; err != nil {
		slog.Error("审计日志记录失败", "event", event, "error", err)
	}
}

// List 分页查询审计日志，按时间倒序
func (s *Service) List(page, size int, event string) ([]models.AuditLog, int64, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}

	query := s.db.Model(&models.AuditLog{})
	if event != "" {
		query = query.Where("event = ?", event)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("统计审计日志失败: %w", err)
	}

	var logs []models.AuditLog
	err := query.Order("created_at DESC").
		Offset((page - 1) * size).
		Limit(size).
		Find(&logs).Error
	if err != nil {
		return nil, 0, fmt.Errorf("查询审计日志失败: %w", err)
	}

	return logs, total, nil
}

// ExportCSV 将审计日志导出为CSV，按时间倒序全量写出
func (s *Service) ExportCSV(w io.Writer) error {
	var logs []models.AuditLog
	if err := s.db.Order("created_at DESC").Find(&logs).Error; err != nil {
		return fmt.Errorf("查询审计日志失败: %w", err)
	}

	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"id", "event", "file_hash", "client_ip", "timestamp"}); err != nil {
		return fmt.Errorf("写入CSV表头失败: %w", err)
	}

	for _, entry := range logs {
		record := []string{
			entry.ID,
			entry.Event,
			entry.FileHash,
			entry.ClientIP,
			entry.CreatedAt.Format(time.RFC3339),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("写入CSV记录失败: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// CleanupBefore 删除指定时间之前的审计日志，返回删除数量
func (s *Service) CleanupBefore(cutoff time.Time) (int64, error) {
	result := s.db.Where("created_at < ?", cutoff).Delete(&models.AuditLog{})
	if result.Error != nil {
		return 0, fmt.Errorf("删除过期审计日志失败: %w", result.Error)
	}
	return result.RowsAffected, nil
}

/*
 * @module service/scan/scan_service
 * @description 扫描服务，编排单次文件扫描的完整流程：哈希、检测、统计、落库、事件与告警
 * @architecture 分层架构 - 业务服务层
 * @documentReference dev_docs/detection_requirements.md
 * @stateFlow 文件接收 -> SHA-256哈希 -> 类型分发检测 -> 严重程度统计 -> 扫描记录落库 -> 事件发布/告警
 * @rules 检测本身永不失败；事件发布与告警为尽力而为，不阻断扫描主流程
 * @dependencies datascan-service/service/detection, gorm.io/gorm
 * @refs service/audit/audit_service.go, service/monitoring/metrics_collector.go, client/connectors/
 */

package scan

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/gorm"

	"datascan-service/service/audit"
	"datascan-service/service/detection"
	"datascan-service/service/models"
	"datascan-service/service/monitoring"
	"datascan-service/service/utils"
)

// 严重程度饼图固定配色，前端直接消费
var severityColors = map[models.Severity]string{
	models.SeverityHigh:   "#dc3545",
	models.SeverityMedium: "#ffc107",
	models.SeverityLow:    "#28a745",
}

// EventPublisher 扫描事件发布接口，SSE与Kafka连接器均实现该接口
type EventPublisher interface {
	PublishScanEvent(ctx context.Context, event *models.ScanEvent) error
}

// AlertNotifier 高危结果告警接口，MQTT连接器实现该接口
type AlertNotifier interface {
	NotifyHighSeverity(ctx context.Context, event *models.ScanEvent, findings []models.AnomalyFinding) error
}

// Service 扫描服务
type Service struct {
	db         *gorm.DB
	crypto     *utils.CryptoUtils
	auditSvc   *audit.Service
	metrics    *monitoring.MetricsCollector
	ruleEngine *detection.ScriptRuleEngine
	publishers []EventPublisher
	notifier   AlertNotifier
}

// NewService 创建扫描服务实例
func NewService(db *gorm.DB, auditSvc *audit.Service, metrics *monitoring.MetricsCollector) *Service {
	return &Service{
		db:         db,
		crypto:     utils.NewCryptoUtils(),
		auditSvc:   auditSvc,
		metrics:    metrics,
		ruleEngine: detection.NewScriptRuleEngine(),
	}
}

// AddEventPublisher 注册扫描事件发布器
func (s *Service) AddEventPublisher(p EventPublisher) {
	if p != nil {
		s.publishers = append(s.publishers, p)
	}
}

// SetAlertNotifier 设置高危告警通知器
func (s *Service) SetAlertNotifier(n AlertNotifier) {
	s.notifier = n
}

// ScanRequest 单次扫描请求
type ScanRequest struct {
	FileName    string
	Data        []byte
	ClientIP    string
	MaxFindings int
	Rules       []detection.ScriptRule // 可选的自定义脚本规则
}

// ScanFile 执行一次文件扫描
// 支持csv表格检测与png/jpg/jpeg/gif/bmp图像取证，其余类型返回错误
func (s *Service) ScanFile(ctx context.Context, req *ScanRequest) (*models.ScanResult, error) {
	fileType, err := resolveFileType(req.FileName)
	if err != nil {
		s.auditSvc.Record("scan_rejected", "", req.ClientIP, models.JSONB{
			"file_name": req.FileName,
			"reason":    err.Error(),
		})
		return nil, err
	}

	fileHash := s.crypto.SHA256Hex(req.Data)
	started := time.Now()

	var findings []models.AnomalyFinding
	if fileType == "csv" {
		findings = detection.DetectCSVAnomalies(req.Data, req.MaxFindings)

		// 自定义脚本规则只在表格输入上执行，结果追加在确定性结果之后
		if len(req.Rules) > 0 {
			if ds, parseErr := detection.ParseCSV(req.Data); parseErr == nil {
				findings = append(findings, s.ruleEngine.ApplyRules(ctx, req.Rules, ds)...)
			}
		}
	} else {
		findings = detection.DetectImageBytes(req.Data)
	}

	duration := time.Since(started)
	high, medium, low := countBySeverity(findings)

	record := &models.ScanRecord{
		FileName:     req.FileName,
		FileType:     fileType,
		FileHash:     fileHash,
		FileSize:     int64(len(req.Data)),
		FindingCount: len(findings),
		HighCount:    high,
		MediumCount:  medium,
		LowCount:     low,
		Findings:     models.FindingArray(findings),
		DurationMs:   duration.Milliseconds(),
	}
	if err := s.db.Create(record).Error; err != nil {
		return nil, fmt.Errorf("保存扫描记录失败: %w", err)
	}

	s.auditSvc.Record("scan_completed", fileHash, req.ClientIP, models.JSONB{
		"scan_id":     record.ID,
		"file_name":   req.FileName,
		"file_type":   fileType,
		"findings":    len(findings),
		"high_count":  high,
		"duration_ms": duration.Milliseconds(),
	})

	if s.metrics != nil {
		s.metrics.RecordScan(fileType, "completed", findings, duration)
	}

	event := &models.ScanEvent{
		Type:      "scan_completed",
		ScanID:    record.ID,
		FileName:  req.FileName,
		FileHash:  fileHash,
		Findings:  len(findings),
		HighCount: high,
		Timestamp: time.Now(),
	}
	s.publishEvent(ctx, event)

	if high > 0 && s.notifier != nil {
		if err := s.notifier.NotifyHighSeverity(ctx, event, findings); err != nil {
			slog.Error("高危告警发送失败", "scan_id", record.ID, "error", err)
		}
	}

	return &models.ScanResult{
		ScanID:     record.ID,
		FileName:   req.FileName,
		FileType:   fileType,
		FileHash:   fileHash,
		Findings:   findings,
		Chart:      BuildSeverityChart(findings),
		DurationMs: duration.Milliseconds(),
	}, nil
}

// publishEvent 向所有已注册的发布器广播扫描事件
func (s *Service) publishEvent(ctx context.Context, event *models.ScanEvent) {
	for _, p := range s.publishers {
		if err := p.PublishScanEvent(ctx, event); err != nil {
			slog.Error("扫描事件发布失败", "scan_id", event.ScanID, "error", err)
		}
	}
}

// ListScans 分页查询扫描记录，按时间倒序
func (s *Service) ListScans(page, size int) ([]models.ScanRecord, int64, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}

	var total int64
	if err := s.db.Model(&models.ScanRecord{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("统计扫描记录失败: %w", err)
	}

	var records []models.ScanRecord
	err := s.db.Order("created_at DESC").
		Offset((page - 1) * size).
		Limit(size).
		Find(&records).Error
	if err != nil {
		return nil, 0, fmt.Errorf("查询扫描记录失败: %w", err)
	}
	return records, total, nil
}

// GetScan 按ID查询扫描记录
func (s *Service) GetScan(id string) (*models.ScanRecord, error) {
	var record models.ScanRecord
	if err := s.db.First(&record, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("扫描记录不存在: %w", err)
	}
	return &record, nil
}

// DeleteScan 删除扫描记录并记录审计事件
func (s *Service) DeleteScan(id, clientIP string) error {
	record, err := s.GetScan(id)
	if err != nil {
		return err
	}

	if err := s.db.Delete(&models.ScanRecord{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("删除扫描记录失败: %w", err)
	}

	s.auditSvc.Record("scan_deleted", record.FileHash, clientIP, models.JSONB{
		"scan_id":   id,
		"file_name": record.FileName,
	})
	return nil
}

// CleanupBefore 删除指定时间之前的扫描记录，返回删除数量
func (s *Service) CleanupBefore(cutoff time.Time) (int64, error) {
	result := s.db.Where("created_at < ?", cutoff).Delete(&models.ScanRecord{})
	if result.Error != nil {
		return 0, fmt.Errorf("删除过期扫描记录失败: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// BuildSeverityChart 构造按严重程度统计的饼图数据
// 没有任何结果时返回nil，前端按无图表处理
func BuildSeverityChart(findings []models.AnomalyFinding) *models.SeverityChart {
	if len(findings) == 0 {
		return nil
	}

	counts := map[models.Severity]int{}
	for _, f := range findings {
		counts[f.Severity]++
	}

	chart := &models.SeverityChart{}
	for _, sev := range []models.Severity{models.SeverityHigh, models.SeverityMedium, models.SeverityLow} {
		if counts[sev] == 0 {
			continue
		}
		chart.Labels = append(chart.Labels, string(sev))
		chart.Values = append(chart.Values, counts[sev])
		chart.Colors = append(chart.Colors, severityColors[sev])
	}
	return chart
}

// resolveFileType 按扩展名解析受支持的文件类型
func resolveFileType(fileName string) (string, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(fileName), "."))
	switch ext {
	case "csv", "png", "jpg", "jpeg", "gif", "bmp":
		return ext, nil
	}
	return "", fmt.Errorf("不支持的文件类型: %q，仅支持csv/png/jpg/jpeg/gif/bmp", ext)
}

// countBySeverity 统计各严重程度的结果数
func countBySeverity(findings []models.AnomalyFinding) (high, medium, low int) {
	for _, f := range findings {
		switch f.Severity {
		case models.SeverityHigh:
			high++
		case models.SeverityMedium:
			medium++
		case models.SeverityLow:
			low++
		}
	}
	return high, medium, low
}

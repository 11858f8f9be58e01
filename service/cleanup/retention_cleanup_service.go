/*
 * @module service/cleanup/retention_cleanup_service
 * @description 留存清理服务，负责定期清理过期的扫描记录与审计日志
 * @architecture 分层架构 - 业务服务层
 * @documentReference dev_docs/detection_requirements.md
 * @stateFlow 定时触发 -> 读取留存配置 -> 执行清理 -> 记录结果
 * @rules 清理失败只告警，不影响系统正常运行
 * @dependencies github.com/robfig/cron/v3
 * @refs service/scan/scan_service.go, service/audit/audit_service.go
 */

package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"

	"datascan-service/service/audit"
	"datascan-service/service/scan"
)

const (
	// 默认留存天数
	defaultScanRetentionDays  = 30
	defaultAuditRetentionDays = 90
)

// RetentionCleanupService 留存清理服务
type RetentionCleanupService struct {
	scanSvc  *scan.Service
	auditSvc *audit.Service
	cron     *cron.Cron
	ctx      context.Context
	cancel   context.CancelFunc
	started  bool
}

// NewRetentionCleanupService 创建留存清理服务实例
func NewRetentionCleanupService(scanSvc *scan.Service, auditSvc *audit.Service) *RetentionCleanupService {
	ctx, cancel := context.WithCancel(context.Background())

	return &RetentionCleanupService{
		scanSvc:  scanSvc,
		auditSvc: auditSvc,
		cron:     cron.New(cron.WithSeconds()),
		ctx:      ctx,
		cancel:   cancel,
		started:  false,
	}
}

// CleanupExpired 清理所有过期数据
func (s *RetentionCleanupService) CleanupExpired(ctx context.Context) error {
	slog.Info("开始清理过期数据")
	startTime := time.Now()

	scanRetentionDays := retentionDays("SCAN_RETENTION_DAYS", defaultScanRetentionDays)
	scanDeleted, err := s.scanSvc.CleanupBefore(time.Now().AddDate(0, 0, -scanRetentionDays))
	if err != nil {
		slog.Error("清理过期扫描记录失败", "error", err)
	} else {
		slog.Info("清理过期扫描记录完成", "deleted_count", scanDeleted, "retention_days", scanRetentionDays)
	}

	auditRetentionDays := retentionDays("AUDIT_RETENTION_DAYS", defaultAuditRetentionDays)
	auditDeleted, err := s.auditSvc.CleanupBefore(time.Now().AddDate(0, 0, -auditRetentionDays))
	if err != nil {
		slog.Error("清理过期审计日志失败", "error", err)
	} else {
		slog.Info("清理过期审计日志完成", "deleted_count", auditDeleted, "retention_days", auditRetentionDays)
	}

	slog.Info("过期数据清理完成",
		"scan_deleted", scanDeleted,
		"audit_deleted", auditDeleted,
		"duration_ms", time.Since(startTime).Milliseconds())

	return nil
}

// StartScheduledCleanup 启动定时清理任务
func (s *RetentionCleanupService) StartScheduledCleanup() error {
	if s.started {
		return fmt.Errorf("留存清理调度器已经启动")
	}

	slog.Info("启动留存清理调度器")

	// 每天凌晨2点执行清理任务
	// Cron表达式：秒 分 时 日 月 周
	_, err := s.cron.AddFunc("0 0 2 * * *", func() {
		slog.Info("开始执行定时留存清理任务")

		if err := s.CleanupExpired(s.ctx); err != nil {
			slog.Error("定时留存清理任务失败", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("添加定时任务失败: %w", err)
	}

	s.cron.Start()
	s.started = true

	slog.Info("留存清理调度器启动成功，将于每天凌晨2点执行清理任务")
	return nil
}

// StopScheduledCleanup 停止定时清理任务
func (s *RetentionCleanupService) StopScheduledCleanup() {
	if !s.started {
		return
	}

	slog.Info("停止留存清理调度器")

	s.cancel()
	if s.cron != nil {
		s.cron.Stop()
	}
	s.started = false

	slog.Info("留存清理调度器已停止")
}

// retentionDays 从环境变量读取留存天数配置
func retentionDays(envKey string, defaultDays int) int {
	if val := os.Getenv(envKey); val != "" {
		if days, err := strconv.Atoi(val); err == nil && days > 0 {
			return days
		}
	}
	return defaultDays
}

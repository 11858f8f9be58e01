/*
 * @module service/monitoring/metrics_collector
 * @description 指标收集器，负责暴露扫描业务的Prometheus指标并聚合扫描统计
 * @architecture 分层架构 - 业务服务层
 * @documentReference dev_docs/detection_requirements.md
 * @stateFlow 扫描完成 -> 指标打点 -> /metrics暴露 / 统计查询 -> 数据库聚合
 * @rules 指标打点不得阻塞扫描主流程；聚合查询只读
 * @dependencies github.com/prometheus/client_golang, gorm.io/gorm
 * @refs service/scan/scan_service.go, main.go
 */

package monitoring

import (
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gorm.io/gorm"

	"datascan-service/service/models"
)

var (
	scanTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "datascan_scans_total",
		Help: "累计扫描次数，按文件类型与结果状态区分",
	}, []string{"file_type", "status"})

	findingTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "datascan_findings_total",
		Help: "累计检测结果数，按严重程度区分",
	}, []string{"severity"})

	scanDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "datascan_scan_duration_seconds",
		Help:    "单次扫描耗时分布",
		Buckets: prometheus.DefBuckets,
	}, []string{"file_type"})
)

// MetricsCollector 指标收集器
type MetricsCollector struct {
	db *gorm.DB
}

// ScanMetrics 扫描业务聚合指标
type ScanMetrics struct {
	Timestamp      time.Time `json:"timestamp"`
	TotalScans     int64     `json:"total_scans"`      // 总扫描次数
	TotalFindings  int64     `json:"total_findings"`   // 总检测结果数
	HighFindings   int64     `json:"high_findings"`    // High结果数
	MediumFindings int64     `json:"medium_findings"`  // Medium结果数
	LowFindings    int64     `json:"low_findings"`     // Low结果数
	AvgDurationMs  float64   `json:"avg_duration_ms"`  // 平均扫描耗时
	GoroutineCount int       `json:"goroutine_count"`  // Goroutine数量
	HeapSize       uint64    `json:"heap_size"`        // 堆内存大小
}

// NewMetricsCollector 创建指标收集器实例
func NewMetricsCollector(db *gorm.DB) *MetricsCollector {
	return &MetricsCollector{
		db: db,
	}
}

// RecordScan 记录一次扫描的Prometheus指标
func (c *MetricsCollector) RecordScan(fileType, status string, findings []models.AnomalyFinding, duration time.Duration) {
	scanTotal.WithLabelValues(fileType, status).Inc()
	scanDuration.WithLabelValues(fileType).Observe(duration.Seconds())

	for _, f := range findings {
		findingTotal.WithLabelValues(string(f.Severity)).Inc()
	}
}

// CollectScanMetrics 聚合扫描业务指标
func (c *MetricsCollector) CollectScanMetrics() (*ScanMetrics, error) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	metrics := &ScanMetrics{
		Timestamp:      time.Now(),
		GoroutineCount: runtime.NumGoroutine(),
		HeapSize:       memStats.HeapAlloc,
	}

	type row struct {
		Total    int64
		Findings int64
		High     int64
		Medium   int64
		Low      int64
		AvgMs    float64
	}
	var agg row
	err := c.db.Model(&models.ScanRecord{}).
		Select("COUNT(*) AS total, COALESCE(SUM(finding_count),0) AS findings, COALESCE(SUM(high_count),0) AS high, COALESCE(SUM(medium_count),0) AS medium, COALESCE(SUM(low_count),0) AS low, COALESCE(AVG(duration_ms),0) AS avg_ms").
		Scan(&agg).Error
	if err != nil {
		return nil, err
	}

	metrics.TotalScans = agg.Total
	metrics.TotalFindings = agg.Findings
	metrics.HighFindings = agg.High
	metrics.MediumFindings = agg.Medium
	metrics.LowFindings = agg.Low
	metrics.AvgDurationMs = agg.AvgMs

	return metrics, nil
}

/*
 * @module service/summary/summary_service
 * @description 项目概要服务，生成服务元信息快照：版本、运行平台、路由、依赖与数据统计
 * @architecture 分层架构 - 业务服务层
 * @documentReference dev_docs/detection_requirements.md
 * @stateFlow 路由注册时采集 -> 概要查询时聚合 -> 快照返回
 * @rules 概要为只读快照，不缓存数据库统计
 * @dependencies runtime, gorm.io/gorm
 * @refs api/controllers/summary_controller.go, api/routes.go
 */

package summary

import (
	"runtime"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"datascan-service/service/models"
)

const (
	serviceName    = "datascan-service"
	serviceVersion = "1.0.0"
)

// RouteInfo 已注册路由信息
type RouteInfo struct {
	Method string `json:"method"`
	Path   string `json:"path"`
}

// PlatformInfo 运行平台信息
type PlatformInfo struct {
	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
	NumCPU    int    `json:"num_cpu"`
}

// StorageStats 数据库存量统计
type StorageStats struct {
	ScanRecords int64 `json:"scan_records"`
	AuditLogs   int64 `json:"audit_logs"`
	ApiKeys     int64 `json:"api_keys"`
}

// ProjectSummary 项目概要快照
type ProjectSummary struct {
	Name         string       `json:"name"`
	Version      string       `json:"version"`
	GeneratedAt  time.Time    `json:"generated_at"`
	UptimeSecond int64        `json:"uptime_seconds"`
	Platform     PlatformInfo `json:"platform"`
	Routes       []RouteInfo  `json:"routes"`
	Dependencies []string     `json:"dependencies"`
	Storage      StorageStats `json:"storage"`
}

// Service 项目概要服务
type Service struct {
	db        *gorm.DB
	startedAt time.Time

	mu     sync.RWMutex
	routes []RouteInfo
}

// 对外公布的核心依赖清单，与go.mod的直接依赖保持一致
var dependencies = []string{
	"github.com/dapr/go-sdk",
	"github.com/eclipse/paho.mqtt.golang",
	"github.com/go-chi/chi/v5",
	"github.com/go-redis/redis/v8",
	"github.com/lib/pq",
	"github.com/prometheus/client_golang",
	"github.com/robfig/cron/v3",
	"github.com/segmentio/kafka-go",
	"github.com/spf13/cast",
	"github.com/traefik/yaegi",
	"golang.org/x/crypto",
	"golang.org/x/image",
	"golang.org/x/text",
	"gorm.io/gorm",
}

// NewService 创建项目概要服务实例
func NewService(db *gorm.DB) *Service {
	return &Service{
		db:        db,
		startedAt: time.Now(),
	}
}

// RegisterRoutes 登记已注册的路由，路由初始化时调用一次
func (s *Service) RegisterRoutes(routes []RouteInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.routes = make([]RouteInfo, len(routes))
	copy(s.routes, routes)
	sort.Slice(s.routes, func(i, j int) bool {
		if s.routes[i].Path == s.routes[j].Path {
			return s.routes[i].Method < s.routes[j].Method
		}
		return s.routes[i].Path < s.routes[j].Path
	})
}

// BuildSummary 生成当前项目概要快照
func (s *Service) BuildSummary() (*ProjectSummary, error) {
	s.mu.RLock()
	routes := make([]RouteInfo, len(s.routes))
	copy(routes, s.routes)
	s.mu.RUnlock()

	summary := &ProjectSummary{
		Name:         serviceName,
		Version:      serviceVersion,
		GeneratedAt:  time.Now().UTC(),
		UptimeSecond: int64(time.Since(s.startedAt).Seconds()),
		Platform: PlatformInfo{
			GoVersion: runtime.Version(),
			OS:        runtime.GOOS,
			Arch:      runtime.GOARCH,
			NumCPU:    runtime.NumCPU(),
		},
		Routes:       routes,
		Dependencies: dependencies,
	}

	if s.db != nil {
		if err := s.db.Model(&models.ScanRecord{}).Count(&summary.Storage.ScanRecords).Error; err != nil {
			return nil, err
		}
		if err := s.db.Model(&models.AuditLog{}).Count(&summary.Storage.AuditLogs).Error; err != nil {
			return nil, err
		}
		if err := s.db.Model(&models.ApiKey{}).Count(&summary.Storage.ApiKeys).Error; err != nil {
			return nil, err
		}
	}

	return summary, nil
}

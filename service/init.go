/*
 * @module service/init
 * @description 服务初始化模块，负责数据库连接、迁移与各业务服务装配
 * @architecture 分层架构 - 服务层
 * @documentReference dev_docs/detection_requirements.md
 * @stateFlow 应用启动时执行初始化流程
 * @rules 确保所有依赖服务正常启动后才提供API服务
 * @dependencies gorm.io/gorm, gorm.io/driver/postgres
 * @refs api/routes.go, main.go
 */

package service

import (
	"fmt"
	"log"
	"os"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"datascan-service/client/connectors"
	"datascan-service/service/audit"
	"datascan-service/service/cleanup"
	"datascan-service/service/database"
	"datascan-service/service/event"
	"datascan-service/service/genai"
	"datascan-service/service/monitoring"
	"datascan-service/service/profile"
	"datascan-service/service/rate_limiter"
	"datascan-service/service/scan"
	"datascan-service/service/sharing"
	"datascan-service/service/summary"
)

var (
	DB                     *gorm.DB
	GlobalAuditService     *audit.Service
	GlobalMetricsCollector *monitoring.MetricsCollector
	GlobalScanService      *scan.Service
	GlobalEventService     *event.EventService
	GlobalApiKeyService    *sharing.ApiKeyService
	GlobalSummaryService   *summary.Service
	GlobalProfiler         *profile.Profiler
	GlobalExplainer        *genai.Explainer
	GlobalCleanupService   *cleanup.RetentionCleanupService
	GlobalRateLimiter      *rate_limiter.RedisRateLimiter
	GlobalKafkaConnector   *connectors.KafkaConnector
	GlobalMQTTConnector    *connectors.MQTTConnector
)

func init() {
	initDatabase()
	runMigrations()
	initServices()
}

// initDatabase 初始化数据库连接
func initDatabase() {
	var dsn string

	// 优先使用DATABASE_URL环境变量
	if databaseURL := os.Getenv("DATABASE_URL"); databaseURL != "" {
		dsn = databaseURL
	} else {
		// 使用分离的环境变量构建连接字符串
		host := getEnvWithDefault("DB_HOST", "localhost")
		port := getEnvWithDefault("DB_PORT", "5432")
		user := getEnvWithDefault("DB_USER", "postgres")
		password := getEnvWithDefault("DB_PASSWORD", "things2024")
		dbname := getEnvWithDefault("DB_NAME", "postgres")
		sslmode := getEnvWithDefault("DB_SSLMODE", "disable")
		schema := getEnvWithDefault("DB_SCHEMA", "public")

		dsn = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s search_path=%s TimeZone=Asia/Shanghai",
			host, port, user, password, dbname, sslmode, schema)
	}

	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("数据库连接失败: %v", err)
	}

	log.Println("数据库连接成功")
}

// getEnvWithDefault 获取环境变量，如果不存在则返回默认值
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// runMigrations 运行数据库迁移
func runMigrations() {
	log.Println("开始运行数据库迁移...")

	if err := database.AutoMigrate(DB); err != nil {
		log.Fatalf("数据库迁移失败: %v", err)
	}
	log.Println("数据库表结构迁移完成")

	if err := database.InitializeData(DB); err != nil {
		log.Fatalf("基础数据初始化失败: %v", err)
	}
	log.Println("基础数据初始化完成")

	log.Println("所有数据库迁移任务完成")
}

// initServices 初始化服务
func initServices() {
	GlobalAuditService = audit.NewService(DB)
	GlobalMetricsCollector = monitoring.NewMetricsCollector(DB)
	GlobalScanService = scan.NewService(DB, GlobalAuditService, GlobalMetricsCollector)

	// 事件服务承接SSE推送与跨实例广播
	GlobalEventService = event.NewEventService(DB)
	GlobalScanService.AddEventPublisher(GlobalEventService)

	GlobalApiKeyService = sharing.NewApiKeyService(DB)
	GlobalSummaryService = summary.NewService(DB)
	GlobalProfiler = profile.NewProfiler()
	GlobalExplainer = genai.NewExplainer()

	initConnectors()
	initRateLimiter()

	// 启动留存清理调度器
	GlobalCleanupService = cleanup.NewRetentionCleanupService(GlobalScanService, GlobalAuditService)
	if err := GlobalCleanupService.StartScheduledCleanup(); err != nil {
		log.Printf("启动留存清理调度器失败: %v", err)
	}

	log.Println("服务初始化完成")
}

// initConnectors 初始化外部消息连接器，未配置时跳过
func initConnectors() {
	if cfg := connectors.KafkaConfigFromEnv(); cfg != nil {
		GlobalKafkaConnector = connectors.NewKafkaConnector(cfg)
		if err := GlobalKafkaConnector.Connect(); err != nil {
			log.Printf("Kafka连接器初始化失败: %v", err)
		} else {
			GlobalScanService.AddEventPublisher(GlobalKafkaConnector)
		}
	}

	if cfg := connectors.MQTTConfigFromEnv(); cfg != nil {
		GlobalMQTTConnector = connectors.NewMQTTConnector(cfg)
		if err := GlobalMQTTConnector.Connect(); err != nil {
			log.Printf("MQTT连接器初始化失败: %v", err)
		} else {
			GlobalScanService.SetAlertNotifier(GlobalMQTTConnector)
		}
	}
}

// initRateLimiter 初始化Redis限流器，未配置REDIS_HOST时跳过
func initRateLimiter() {
	if os.Getenv("REDIS_HOST") == "" {
		log.Println("未配置REDIS_HOST，跳过限流器初始化")
		return
	}

	limiter, err := rate_limiter.NewRedisRateLimiter()
	if err != nil {
		log.Printf("Redis限流器初始化失败: %v", err)
		return
	}
	GlobalRateLimiter = limiter
}

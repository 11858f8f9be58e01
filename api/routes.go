/*
 * @module api/routes
 * @description API路由配置模块，负责初始化和配置所有HTTP路由
 * @architecture RESTful API架构
 * @documentReference dev_docs/detection_requirements.md
 * @stateFlow 无状态HTTP请求处理
 * @rules 遵循RESTful API设计规范，统一错误处理和响应格式
 * @dependencies github.com/go-chi/chi/v5, github.com/go-chi/cors, github.com/go-chi/render
 * @refs main.go
 */

package api

import (
	"datascan-service/api/controllers"
	apimiddleware "datascan-service/api/middleware"
	"datascan-service/service"
	"datascan-service/service/summary"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
)

// InitRoute 初始化所有API路由
func InitRoute(r *chi.Mux) {
	// 基础中间件
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(render.SetContentType(render.ContentTypeJSON))

	// CORS配置
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// API密钥鉴权
	authMiddleware := apimiddleware.NewApiKeyAuthMiddleware(service.GlobalApiKeyService)
	r.Use(authMiddleware.Middleware)

	// 健康检查
	healthController := controllers.NewHealthController()
	r.Get("/health", healthController.Health)
	r.Get("/ready", healthController.Ready)

	// SSE事件订阅
	eventController := controllers.NewEventController()
	r.Get("/sse/{user_name}", eventController.HandleSSE)
	r.Get("/events/connections", eventController.GetConnections)

	// 文件扫描
	scanController := controllers.NewScanController()
	rateLimitMiddleware := apimiddleware.NewRateLimitMiddleware(service.GlobalRateLimiter)
	r.Route("/scan", func(r chi.Router) {
		r.With(rateLimitMiddleware.Middleware).Post("/", scanController.Scan)
		r.Get("/status", scanController.Status)
	})

	// 扫描记录管理
	r.Route("/scans", func(r chi.Router) {
		r.Get("/", scanController.ListScans)
		r.Get("/{id}", scanController.GetScan)
		r.Delete("/{id}", scanController.DeleteScan)
	})

	// 审计日志
	r.Route("/audit-logs", func(r chi.Router) {
		auditController := controllers.NewAuditController()
		r.Get("/", auditController.ListAuditLogs)
		r.Get("/export", auditController.ExportAuditLogs)
	})

	// 数据集画像
	profileController := controllers.NewProfileController()
	r.Post("/profile", profileController.ProfileDataset)

	// LLM解释
	r.Route("/explain", func(r chi.Router) {
		explainController := controllers.NewExplainController()
		r.Post("/", explainController.ExplainTopic)
		r.Get("/topics", explainController.ListTopics)
		r.Post("/scans/{id}", explainController.ExplainScan)
	})

	// 项目概要
	summaryController := controllers.NewSummaryController()
	r.Get("/summary", summaryController.GetSummary)

	// API密钥管理
	r.Route("/api-keys", func(r chi.Router) {
		apiKeyController := controllers.NewApiKeyController()
		r.Post("/", apiKeyController.CreateApiKey)
		r.Get("/", apiKeyController.ListApiKeys)
		r.Delete("/{id}", apiKeyController.DisableApiKey)
	})

	// 登记路由清单供项目概要查询
	service.GlobalSummaryService.RegisterRoutes([]summary.RouteInfo{
		{Method: "GET", Path: "/health"},
		{Method: "GET", Path: "/ready"},
		{Method: "GET", Path: "/sse/{user_name}"},
		{Method: "GET", Path: "/events/connections"},
		{Method: "POST", Path: "/scan"},
		{Method: "GET", Path: "/scan/status"},
		{Method: "GET", Path: "/scans"},
		{Method: "GET", Path: "/scans/{id}"},
		{Method: "DELETE", Path: "/scans/{id}"},
		{Method: "GET", Path: "/audit-logs"},
		{Method: "GET", Path: "/audit-logs/export"},
		{Method: "POST", Path: "/profile"},
		{Method: "POST", Path: "/explain"},
		{Method: "GET", Path: "/explain/topics"},
		{Method: "POST", Path: "/explain/scans/{id}"},
		{Method: "GET", Path: "/summary"},
		{Method: "POST", Path: "/api-keys"},
		{Method: "GET", Path: "/api-keys"},
		{Method: "DELETE", Path: "/api-keys/{id}"},
	})
}

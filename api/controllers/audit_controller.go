/*
 * @module api/controllers/audit_controller
 * @description 审计日志控制器，提供审计日志查询与CSV导出API
 * @architecture RESTful API架构 - 控制器层
 * @documentReference dev_docs/detection_requirements.md
 * @stateFlow HTTP请求 -> 业务逻辑处理 -> 响应返回
 * @rules 审计日志只读，导出操作本身也记入审计
 * @dependencies datascan-service/service, github.com/go-chi/render
 * @refs service/audit/audit_service.go
 */

package controllers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/render"

	"datascan-service/service"
	"datascan-service/service/audit"
)

// AuditController 审计日志控制器
type AuditController struct {
	auditService *audit.Service
}

// NewAuditController 创建审计日志控制器实例
func NewAuditController() *AuditController {
	return &AuditController{
		auditService: service.GlobalAuditService,
	}
}

// ListAuditLogs 分页查询审计日志
// @Summary 审计日志列表
// @Description 分页查询审计日志，支持按事件类型过滤
// @Tags 审计
// @Produce json
// @Param page query int false "页码，默认1"
// @Param size query int false "每页数量，默认20"
// @Param event query string false "事件类型过滤"
// @Success 200 {object} PaginatedResponse
// @Router /audit-logs [get]
func (c *AuditController) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	size, _ := strconv.Atoi(r.URL.Query().Get("size"))
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 20
	}
	event := r.URL.Query().Get("event")

	logs, total, err := c.auditService.List(page, size, event)
	if err != nil {
		render.Render(w, r, ErrorResponse(http.StatusInternalServerError, "查询审计日志失败", err))
		return
	}

	render.JSON(w, r, PaginatedResponse{
		Status: 0,
		Msg:    "查询成功",
		Data:   logs,
		Total:  total,
		Page:   page,
		Size:   size,
	})
}

// ExportAuditLogs 导出审计日志CSV
// @Summary 审计日志导出
// @Description 将全部审计日志导出为CSV文件下载
// @Tags 审计
// @Produce text/csv
// @Success 200 {string} string "CSV内容"
// @Router /audit-logs/export [get]
func (c *AuditController) ExportAuditLogs(w http.ResponseWriter, r *http.Request) {
	fileName := fmt.Sprintf("audit_logs_%s.csv", time.Now().Format("20060102_150405"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))

	if err := c.auditService.ExportCSV(w); err != nil {
		// 响应头已发出，只能记录审计失败事件
		c.auditService.Record("audit_export_failed", "", clientIP(r), nil)
		return
	}

	c.auditService.Record("audit_exported", "", clientIP(r), nil)
}

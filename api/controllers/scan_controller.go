/*
 * @module api/controllers/scan_controller
 * @description 扫描控制器，提供文件上传扫描、扫描记录查询与删除API
 * @architecture RESTful API架构 - 控制器层
 * @documentReference dev_docs/detection_requirements.md
 * @stateFlow HTTP请求 -> 业务逻辑处理 -> 响应返回
 * @rules 遵循RESTful API设计规范，统一错误处理和响应格式
 * @dependencies datascan-service/service, github.com/go-chi/chi/v5, github.com/go-chi/render
 * @refs service/scan/scan_service.go
 */

package controllers

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"datascan-service/service"
	"datascan-service/service/detection"
	"datascan-service/service/scan"
)

// 上传文件大小上限：64MB
const maxUploadSize = 64 << 20

// ScanController 扫描控制器
type ScanController struct {
	scanService *scan.Service
}

// NewScanController 创建扫描控制器实例
func NewScanController() *ScanController {
	return &ScanController{
		scanService: service.GlobalScanService,
	}
}

// Scan 上传文件并执行扫描
// @Summary 文件扫描
// @Description 上传csv或图片文件，执行异常检测并返回检测结果
// @Tags 扫描
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "待扫描文件（csv/png/jpg/jpeg/gif/bmp）"
// @Param max_findings formData int false "最大返回结果数，默认50"
// @Param rules formData string false "自定义脚本规则JSON数组，仅对csv生效"
// @Success 200 {object} APIResponse
// @Failure 400 {object} APIResponse
// @Router /scan [post]
func (c *ScanController) Scan(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		render.Render(w, r, ErrorResponse(http.StatusBadRequest, "解析上传表单失败", err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		render.Render(w, r, ErrorResponse(http.StatusBadRequest, "缺少上传文件", err))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		render.Render(w, r, ErrorResponse(http.StatusBadRequest, "读取上传文件失败", err))
		return
	}

	maxFindings := 0
	if val := r.FormValue("max_findings"); val != "" {
		if parsed, parseErr := strconv.Atoi(val); parseErr == nil {
			maxFindings = parsed
		}
	}

	var rules []detection.ScriptRule
	if val := r.FormValue("rules"); val != "" {
		if err := json.Unmarshal([]byte(val), &rules); err != nil {
			render.Render(w, r, ErrorResponse(http.StatusBadRequest, "解析自定义规则失败", err))
			return
		}
	}

	result, err := c.scanService.ScanFile(r.Context(), &scan.ScanRequest{
		FileName:    header.Filename,
		Data:        data,
		ClientIP:    clientIP(r),
		MaxFindings: maxFindings,
		Rules:       rules,
	})
	if err != nil {
		render.Render(w, r, ErrorResponse(http.StatusBadRequest, "文件扫描失败", err))
		return
	}

	render.Render(w, r, SuccessResponse("扫描完成", result))
}

// Status 查询扫描服务聚合状态
// @Summary 扫描状态
// @Description 查询扫描服务的聚合统计指标
// @Tags 扫描
// @Produce json
// @Success 200 {object} APIResponse
// @Router /scan/status [get]
func (c *ScanController) Status(w http.ResponseWriter, r *http.Request) {
	metrics, err := service.GlobalMetricsCollector.CollectScanMetrics()
	if err != nil {
		render.Render(w, r, ErrorResponse(http.StatusInternalServerError, "查询扫描状态失败", err))
		return
	}

	render.Render(w, r, SuccessResponse("查询成功", map[string]interface{}{
		"metrics":         metrics,
		"sse_connections": service.GlobalEventService.ConnectionCount(),
	}))
}

// ListScans 分页查询扫描记录
// @Summary 扫描记录列表
// @Description 分页查询历史扫描记录，按时间倒序
// @Tags 扫描
// @Produce json
// @Param page query int false "页码，默认1"
// @Param size query int false "每页数量，默认20"
// @Success 200 {object} PaginatedResponse
// @Router /scans [get]
func (c *ScanController) ListScans(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	size, _ := strconv.Atoi(r.URL.Query().Get("size"))
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 20
	}

	records, total, err := c.scanService.ListScans(page, size)
	if err != nil {
		render.Render(w, r, ErrorResponse(http.StatusInternalServerError, "查询扫描记录失败", err))
		return
	}

	render.JSON(w, r, PaginatedResponse{
		Status: 0,
		Msg:    "查询成功",
		Data:   records,
		Total:  total,
		Page:   page,
		Size:   size,
	})
}

// GetScan 查询单条扫描记录
// @Summary 扫描记录详情
// @Description 按ID查询扫描记录详情
// @Tags 扫描
// @Produce json
// @Param id path string true "扫描记录ID"
// @Success 200 {object} APIResponse
// @Failure 404 {object} APIResponse
// @Router /scans/{id} [get]
func (c *ScanController) GetScan(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	record, err := c.scanService.GetScan(id)
	if err != nil {
		render.Render(w, r, ErrorResponse(http.StatusNotFound, "扫描记录不存在", err))
		return
	}

	render.Render(w, r, SuccessResponse("查询成功", record))
}

// DeleteScan 删除扫描记录
// @Summary 删除扫描记录
// @Description 按ID删除扫描记录并记录审计事件
// @Tags 扫描
// @Produce json
// @Param id path string true "扫描记录ID"
// @Success 200 {object} APIResponse
// @Failure 404 {object} APIResponse
// @Router /scans/{id} [delete]
func (c *ScanController) DeleteScan(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := c.scanService.DeleteScan(id, clientIP(r)); err != nil {
		render.Render(w, r, ErrorResponse(http.StatusNotFound, "删除扫描记录失败", err))
		return
	}

	render.Render(w, r, SuccessResponse("删除成功", map[string]interface{}{
		"id": id,
	}))
}

// clientIP 解析客户端IP，优先使用X-Forwarded-For
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return forwarded
	}
	return r.RemoteAddr
}

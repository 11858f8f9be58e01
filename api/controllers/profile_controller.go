/*
 * @module api/controllers/profile_controller
 * @description 数据集画像控制器，上传CSV生成训练就绪度报告
 * @architecture RESTful API架构 - 控制器层
 * @documentReference dev_docs/detection_requirements.md
 * @stateFlow HTTP请求 -> CSV解析与画像 -> 报告返回
 * @rules 画像为只读分析，不持久化上传数据
 * @dependencies datascan-service/service, github.com/go-chi/render
 * @refs service/profile/profiler.go
 */

package controllers

import (
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/render"

	"datascan-service/service"
	"datascan-service/service/profile"
)

// ProfileController 数据集画像控制器
type ProfileController struct {
	profiler *profile.Profiler
}

// NewProfileController 创建画像控制器实例
func NewProfileController() *ProfileController {
	return &ProfileController{
		profiler: service.GlobalProfiler,
	}
}

// ProfileDataset 生成数据集就绪度报告
// @Summary 数据集画像
// @Description 上传CSV文件，生成训练就绪度报告：列画像、目标变量分析、质量检查与建议
// @Tags 画像
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "待分析的CSV文件"
// @Success 200 {object} APIResponse
// @Failure 400 {object} APIResponse
// @Router /profile [post]
func (c *ProfileController) ProfileDataset(w http.ResponseWriter, r *http.Request) {
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

	if ext := strings.ToLower(filepath.Ext(header.Filename)); ext != ".csv" {
		render.Render(w, r, ErrorResponse(http.StatusBadRequest, "仅支持CSV文件画像", nil))
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		render.Render(w, r, ErrorResponse(http.StatusBadRequest, "读取上传文件失败", err))
		return
	}

	report, err := c.profiler.ProfileCSV(data)
	if err != nil {
		render.Render(w, r, ErrorResponse(http.StatusBadRequest, "生成数据集画像失败", err))
		return
	}

	service.GlobalAuditService.Record("dataset_profiled", "", clientIP(r), map[string]interface{}{
		"file_name":       header.Filename,
		"row_count":       report.RowCount,
		"readiness_score": report.ReadinessScore,
	})

	render.Render(w, r, SuccessResponse("画像完成", report))
}

/*
 * @module api/controllers/summary_controller
 * @description 项目概要控制器，提供服务元信息快照查询API
 * @architecture RESTful API架构 - 控制器层
 * @documentReference dev_docs/detection_requirements.md
 * @stateFlow HTTP请求 -> 概要聚合 -> 快照返回
 * @rules 概要为只读查询
 * @dependencies datascan-service/service, github.com/go-chi/render
 * @refs service/summary/summary_service.go
 */

package controllers

import (
	"net/http"

	"github.com/go-chi/render"

	"datascan-service/service"
	"datascan-service/service/summary"
)

// SummaryController 项目概要控制器
type SummaryController struct {
	summaryService *summary.Service
}

// NewSummaryController 创建概要控制器实例
func NewSummaryController() *SummaryController {
	return &SummaryController{
		summaryService: service.GlobalSummaryService,
	}
}

// GetSummary 查询项目概要
// @Summary 项目概要
// @Description 查询服务版本、运行平台、路由、依赖与数据统计快照
// @Tags 系统
// @Produce json
// @Success 200 {object} APIResponse
// @Router /summary [get]
func (c *SummaryController) GetSummary(w http.ResponseWriter, r *http.Request) {
	snapshot, err := c.summaryService.BuildSummary()
	if err != nil {
		render.Render(w, r, ErrorResponse(http.StatusInternalServerError, "生成项目概要失败", err))
		return
	}

	render.Render(w, r, SuccessResponse("查询成功", snapshot))
}

/*
 * @module api/controllers/explain_controller
 * @description 解释控制器，调用LLM将检测概念与扫描结果转译为通俗说明
 * @architecture RESTful API架构 - 控制器层
 * @documentReference dev_docs/detection_requirements.md
 * @stateFlow HTTP请求 -> 提示词构造 -> LLM调用 -> 解释文本返回
 * @rules 解释服务依赖外部LLM，失败时返回502由前端降级处理
 * @dependencies datascan-service/service, github.com/go-chi/chi/v5, github.com/go-chi/render
 * @refs service/genai/explainer.go
 */

package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"datascan-service/service"
	"datascan-service/service/genai"
)

// ExplainController 解释控制器
type ExplainController struct {
	explainer *genai.Explainer
}

// NewExplainController 创建解释控制器实例
func NewExplainController() *ExplainController {
	return &ExplainController{
		explainer: service.GlobalExplainer,
	}
}

// ExplainRequest 主题解释请求
type ExplainRequest struct {
	Topic   string                 `json:"topic" example:"anomaly_detection"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// ListTopics 查询内置解释主题
// @Summary 解释主题列表
// @Description 查询支持的内置解释主题
// @Tags 解释
// @Produce json
// @Success 200 {object} APIResponse
// @Router /explain/topics [get]
func (c *ExplainController) ListTopics(w http.ResponseWriter, r *http.Request) {
	render.Render(w, r, SuccessResponse("查询成功", map[string]interface{}{
		"topics": c.explainer.Topics(),
	}))
}

// ExplainTopic 解释指定主题
// @Summary 主题解释
// @Description 对指定主题生成面向非技术用户的通俗解释
// @Tags 解释
// @Accept json
// @Produce json
// @Param request body ExplainRequest true "解释请求"
// @Success 200 {object} APIResponse
// @Failure 502 {object} APIResponse
// @Router /explain [post]
func (c *ExplainController) ExplainTopic(w http.ResponseWriter, r *http.Request) {
	var req ExplainRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.Render(w, r, ErrorResponse(http.StatusBadRequest, "请求参数解析失败", err))
		return
	}
	if req.Topic == "" {
		render.Render(w, r, ErrorResponse(http.StatusBadRequest, "解释主题不能为空", nil))
		return
	}

	explanation, err := c.explainer.ExplainTopic(r.Context(), req.Topic, req.Context)
	if err != nil {
		render.Render(w, r, ErrorResponse(http.StatusBadGateway, "生成解释失败", err))
		return
	}

	render.Render(w, r, SuccessResponse("解释生成成功", map[string]interface{}{
		"topic":       req.Topic,
		"explanation": explanation,
	}))
}

// ExplainScan 解释扫描结果
// @Summary 扫描结果解释
// @Description 对指定扫描记录的检测结果生成通俗解释
// @Tags 解释
// @Produce json
// @Param id path string true "扫描记录ID"
// @Success 200 {object} APIResponse
// @Failure 404 {object} APIResponse
// @Failure 502 {object} APIResponse
// @Router /explain/scans/{id} [post]
func (c *ExplainController) ExplainScan(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	record, err := service.GlobalScanService.GetScan(id)
	if err != nil {
		render.Render(w, r, ErrorResponse(http.StatusNotFound, "扫描记录不存在", err))
		return
	}

	explanation, err := c.explainer.ExplainScanResults(r.Context(), record.Findings)
	if err != nil {
		render.Render(w, r, ErrorResponse(http.StatusBadGateway, "生成解释失败", err))
		return
	}

	render.Render(w, r, SuccessResponse("解释生成成功", map[string]interface{}{
		"scan_id":     id,
		"explanation": explanation,
	}))
}

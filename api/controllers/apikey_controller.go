/*
 * @module api/controllers/apikey_controller
 * @description API密钥控制器，提供密钥签发、查询与停用API
 * @architecture RESTful API架构 - 控制器层
 * @documentReference dev_docs/detection_requirements.md
 * @stateFlow HTTP请求 -> 业务逻辑处理 -> 响应返回
 * @rules 密钥明文只在签发响应中出现一次
 * @dependencies datascan-service/service, github.com/go-chi/chi/v5, github.com/go-chi/render
 * @refs service/sharing/apikey_service.go
 */

package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"datascan-service/service"
	"datascan-service/service/sharing"
)

// ApiKeyController API密钥控制器
type ApiKeyController struct {
	apiKeyService *sharing.ApiKeyService
}

// NewApiKeyController 创建API密钥控制器实例
func NewApiKeyController() *ApiKeyController {
	return &ApiKeyController{
		apiKeyService: service.GlobalApiKeyService,
	}
}

// CreateApiKeyRequest 密钥签发请求
type CreateApiKeyRequest struct {
	Name        string     `json:"name" example:"ci-pipeline"`
	Description string     `json:"description,omitempty" example:"CI流水线扫描调用"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// CreateApiKey 签发新密钥
// @Summary 签发API密钥
// @Description 签发新的扫描API密钥，明文仅在本次响应中返回
// @Tags 密钥管理
// @Accept json
// @Produce json
// @Param request body CreateApiKeyRequest true "密钥签发请求"
// @Success 200 {object} APIResponse
// @Failure 400 {object} APIResponse
// @Router /api-keys [post]
func (c *ApiKeyController) CreateApiKey(w http.ResponseWriter, r *http.Request) {
	var req CreateApiKeyRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.Render(w, r, ErrorResponse(http.StatusBadRequest, "请求参数解析失败", err))
		return
	}

	result, err := c.apiKeyService.CreateKey(req.Name, req.Description, req.ExpiresAt)
	if err != nil {
		render.Render(w, r, ErrorResponse(http.StatusBadRequest, "签发API密钥失败", err))
		return
	}

	service.GlobalAuditService.Record("apikey_created", "", clientIP(r), map[string]interface{}{
		"key_id":   result.Key.ID,
		"key_name": result.Key.Name,
	})

	render.Render(w, r, SuccessResponse("密钥签发成功", result))
}

// ListApiKeys 查询密钥列表
// @Summary API密钥列表
// @Description 查询全部API密钥，不包含密钥明文与哈希
// @Tags 密钥管理
// @Produce json
// @Success 200 {object} APIResponse
// @Router /api-keys [get]
func (c *ApiKeyController) ListApiKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := c.apiKeyService.ListKeys()
	if err != nil {
		render.Render(w, r, ErrorResponse(http.StatusInternalServerError, "查询API密钥失败", err))
		return
	}

	render.Render(w, r, SuccessResponse("查询成功", keys))
}

// DisableApiKey 停用密钥
// @Summary 停用API密钥
// @Description 按ID停用API密钥，停用后校验失败
// @Tags 密钥管理
// @Produce json
// @Param id path string true "密钥ID"
// @Success 200 {object} APIResponse
// @Failure 404 {object} APIResponse
// @Router /api-keys/{id} [delete]
func (c *ApiKeyController) DisableApiKey(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := c.apiKeyService.DisableKey(id); err != nil {
		render.Render(w, r, ErrorResponse(http.StatusNotFound, "停用API密钥失败", err))
		return
	}

	service.GlobalAuditService.Record("apikey_disabled", "", clientIP(r), map[string]interface{}{
		"key_id": id,
	})

	render.Render(w, r, SuccessResponse("密钥已停用", map[string]interface{}{
		"id": id,
	}))
}

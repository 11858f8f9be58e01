/*
 * @module api/controllers/response
 * @description 统一API响应结构，封装成功/失败响应与分页响应的构造
 * @architecture 分层架构 - API控制层
 * @documentReference dev_docs/detection_requirements.md
 * @stateFlow 控制器调用 -> 响应构造 -> render渲染输出
 * @rules 成功响应status为0，失败响应附加错误详情
 * @dependencies github.com/go-chi/render
 * @refs api/controllers/*.go
 */

package controllers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/render"
)

// APIResponse 统一API响应结构
type APIResponse struct {
	Status int         `json:"status" example:"0"`
	Msg    string      `json:"msg" example:"操作成功"`
	Data   interface{} `json:"data,omitempty"`

	httpStatusCode int
}

// Render 实现render.Renderer接口
func (resp *APIResponse) Render(w http.ResponseWriter, r *http.Request) error {
	if resp.httpStatusCode > 0 {
		render.Status(r, resp.httpStatusCode)
	}
	return nil
}

// SuccessResponse 构造成功响应
func SuccessResponse(msg string, data interface{}) *APIResponse {
	return &APIResponse{
		Status: 0,
		Msg:    msg,
		Data:   data,
	}
}

// ErrorResponse 构造错误响应
func ErrorResponse(status int, msg string, err error) *APIResponse {
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	return &APIResponse{
		Status:         status,
		Msg:            msg,
		httpStatusCode: status,
	}
}

// toJSON 序列化为JSON字符串，失败时返回空对象
func toJSON(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// PaginatedResponse 分页响应结构
type PaginatedResponse struct {
	Status int         `json:"status" example:"0"`
	Msg    string      `json:"msg" example:"操作成功"`
	Data   interface{} `json:"data"`
	Total  int64       `json:"total" example:"100"`
	Page   int         `json:"page" example:"1"`
	Size   int         `json:"size" example:"10"`
}

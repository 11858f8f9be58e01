/*
 * @module api/controllers/event_controller
 * @description 事件管理控制器，提供SSE连接与连接状态查询API
 * @architecture RESTful API架构 - 控制器层
 * @documentReference dev_docs/detection_requirements.md
 * @stateFlow SSE连接建立 -> 扫描事件推送 -> 连接断开清理
 * @rules 遵循RESTful API设计规范，统一错误处理和响应格式
 * @dependencies datascan-service/service, github.com/go-chi/chi/v5, github.com/go-chi/render
 * @refs service/event/event_service.go
 */

package controllers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"datascan-service/service"
	"datascan-service/service/event"
)

// EventController 事件管理控制器
type EventController struct {
	eventService *event.EventService
}

// NewEventController 创建事件控制器实例
func NewEventController() *EventController {
	return &EventController{
		eventService: service.GlobalEventService,
	}
}

// HandleSSE 处理SSE连接
// @Summary 建立SSE连接
// @Description 前端页面通过此接口建立SSE连接，接收扫描完成事件的实时推送
// @Tags 事件管理
// @Param user_name path string true "用户名"
// @Success 200 {string} string "SSE事件流"
// @Router /sse/{user_name} [get]
func (c *EventController) HandleSSE(w http.ResponseWriter, r *http.Request) {
	userName := chi.URLParam(r, "user_name")
	if userName == "" {
		http.Error(w, "用户名不能为空", http.StatusBadRequest)
		return
	}

	// 设置SSE响应头
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "Cache-Control")

	client := c.eventService.AddSSEConnection(userName, clientIP(r))
	defer c.eventService.RemoveSSEConnection(userName, client.ID)

	// 发送连接成功事件
	fmt.Fprintf(w, "data: {\"type\":\"connected\",\"connection_id\":\"%s\",\"timestamp\":\"%s\"}\n\n",
		client.ID, time.Now().Format(time.RFC3339))

	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}

	// 处理事件推送
	for {
		select {
		case ev := <-client.Channel:
			fmt.Fprintf(w, "data: %s\n\n", toJSON(ev))

			if flusher, ok := w.(http.Flusher); ok {
				flusher.Flush()
			}

		case <-client.Done:
			return

		case <-r.Context().Done():
			return
		}
	}
}

// GetConnections 查询SSE连接状态
// @Summary SSE连接状态
// @Description 查询当前活跃的SSE连接数
// @Tags 事件管理
// @Produce json
// @Success 200 {object} APIResponse
// @Router /events/connections [get]
func (c *EventController) GetConnections(w http.ResponseWriter, r *http.Request) {
	render.Render(w, r, SuccessResponse("查询成功", map[string]interface{}{
		"active_connections": c.eventService.ConnectionCount(),
	}))
}

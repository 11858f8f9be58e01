/*
 * @module api/middleware/apikey_auth
 * @description API密钥鉴权中间件，验证X-API-Key请求头的有效性
 * @architecture 中间件模式 - HTTP请求拦截和验证
 * @documentReference dev_docs/detection_requirements.md
 * @stateFlow 密钥提取 -> 前缀定位 -> bcrypt比对 -> 上下文注入 -> 下一个处理器
 * @rules API_KEY_REQUIRED未开启时放行所有请求；白名单路径始终放行
 * @dependencies datascan-service/service/sharing, net/http
 * @refs service/sharing/apikey_service.go, api/routes.go
 */

package middleware

import (
	"context"
	"net/http"
	"os"
	"strings"

	"datascan-service/service/sharing"
)

// ContextKey 上下文键类型
type ContextKey string

// ApiKeyInfoKey 密钥信息在上下文中的键
const ApiKeyInfoKey ContextKey = "api_key_info"

// ApiKeyAuthMiddleware API密钥认证中间件
type ApiKeyAuthMiddleware struct {
	apiKeyService *sharing.ApiKeyService
	required      bool
	// 白名单路径（不需要鉴权）
	whitelistPaths []string
}

// NewApiKeyAuthMiddleware 创建API密钥认证中间件实例
// API_KEY_REQUIRED=true时开启强制鉴权，默认关闭以便本地开发
func NewApiKeyAuthMiddleware(apiKeyService *sharing.ApiKeyService) *ApiKeyAuthMiddleware {
	return &ApiKeyAuthMiddleware{
		apiKeyService: apiKeyService,
		required:      os.Getenv("API_KEY_REQUIRED") == "true",
		whitelistPaths: []string{
			"/health",
			"/ready",
			"/swagger",
			"/metrics",
			"/sse",
		},
	}
}

// IsWhitelistPath 检查路径是否在白名单中
func (m *ApiKeyAuthMiddleware) IsWhitelistPath(path string) bool {
	for _, whitelistPath := range m.whitelistPaths {
		// 支持前缀匹配
		if strings.HasPrefix(path, whitelistPath) {
			return true
		}
	}
	return false
}

// Middleware 认证中间件处理函数
func (m *ApiKeyAuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.required || m.IsWhitelistPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		plaintext := r.Header.Get("X-API-Key")
		if plaintext == "" {
			http.Error(w, "缺少X-API-Key请求头", http.StatusUnauthorized)
			return
		}

		key, err := m.apiKeyService.ValidateKey(plaintext)
		if err != nil {
			http.Error(w, "API密钥无效", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), ApiKeyInfoKey, key)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

/*
 * @module api/middleware/rate_limit
 * @description 上传限流中间件，基于Redis固定窗口限流保护扫描接口
 * @architecture 中间件模式 - HTTP请求拦截和限流
 * @documentReference dev_docs/detection_requirements.md
 * @stateFlow 请求拦截 -> 限流检查 -> 放行或429
 * @rules 限流器不可用时直接放行，限流是保护措施而非硬依赖
 * @dependencies datascan-service/service/rate_limiter, net/http
 * @refs service/rate_limiter/redis_rate_limiter.go, api/routes.go
 */

package middleware

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"

	"datascan-service/service/rate_limiter"
)

const (
	// 默认限流：全局每分钟120次，单IP每分钟20次
	defaultGlobalLimit   = 120
	defaultClientIPLimit = 20
	defaultWindowSeconds = 60
)

// RateLimitMiddleware 扫描上传限流中间件
type RateLimitMiddleware struct {
	limiter       *rate_limiter.RedisRateLimiter
	globalLimit   int
	clientIPLimit int
	windowSeconds int
}

// NewRateLimitMiddleware 创建限流中间件实例，limiter为nil时中间件退化为直通
func NewRateLimitMiddleware(limiter *rate_limiter.RedisRateLimiter) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		limiter:       limiter,
		globalLimit:   envInt("RATE_LIMIT_GLOBAL", defaultGlobalLimit),
		clientIPLimit: envInt("RATE_LIMIT_CLIENT_IP", defaultClientIPLimit),
		windowSeconds: envInt("RATE_LIMIT_WINDOW_SECONDS", defaultWindowSeconds),
	}
}

// Middleware 限流中间件处理函数
func (m *RateLimitMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.limiter == nil {
			next.ServeHTTP(w, r)
			return
		}

		clientIP := r.RemoteAddr
		if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
			clientIP = strings.TrimSpace(strings.Split(forwarded, ",")[0])
		}

		rules := []rate_limiter.RateLimitRule{
			{Type: "client_ip", TargetID: clientIP, TimeWindow: m.windowSeconds, MaxRequests: m.clientIPLimit},
			{Type: "global", TimeWindow: m.windowSeconds, MaxRequests: m.globalLimit},
		}

		result, err := m.limiter.CheckRateLimit(r.Context(), rules)
		if err != nil {
			// Redis故障时放行，限流失效不应阻断扫描
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt, 10))

		if !result.Allowed {
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprintf(w, `{"status":%d,"msg":%q}`, http.StatusTooManyRequests, result.Message)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// envInt 读取整型环境变量，解析失败时返回默认值
func envInt(key string, defaultValue int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}

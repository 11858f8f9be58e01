/*
 * @module api/middleware/apikey_auth_test
 * @description API密钥鉴权中间件单元测试，覆盖白名单、开关与密钥校验
 * @architecture 测试层
 * @documentReference dev_docs/detection_requirements.md
 * @stateFlow 请求构造 -> 中间件执行 -> 状态码断言
 * @rules 使用内存SQLite，测试之间相互独立
 * @dependencies net/http/httptest, github.com/stretchr/testify
 * @refs api/middleware/apikey_auth.go
 */

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datascan-service/service/models"
	"datascan-service/service/sharing"
	"datascan-service/testutil"
)

func newAuthTestEnv(t *testing.T) (*sharing.ApiKeyService, string) {
	t.Helper()
	tdb := testutil.NewTestDB()
	t.Cleanup(tdb.Close)

	svc := sharing.NewApiKeyService(tdb.DB)
	result, err := svc.CreateKey("test", "", nil)
	require.NoError(t, err)
	return svc, result.PlainKey
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddleware_DisabledByDefault(t *testing.T) {
	t.Setenv("API_KEY_REQUIRED", "")
	svc, _ := newAuthTestEnv(t)

	m := NewApiKeyAuthMiddleware(svc)
	req := httptest.NewRequest(http.MethodPost, "/scan", nil)
	rec := httptest.NewRecorder()

	m.Middleware(okHandler()).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMiddleware_RequiredWithValidKey(t *testing.T) {
	t.Setenv("API_KEY_REQUIRED", "true")
	svc, plainKey := newAuthTestEnv(t)

	m := NewApiKeyAuthMiddleware(svc)

	var injected *models.ApiKey
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		injected, _ = r.Context().Value(ApiKeyInfoKey).(*models.ApiKey)
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/scan", nil)
	req.Header.Set("X-API-Key", plainKey)
	rec := httptest.NewRecorder()

	m.Middleware(handler).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, injected)
	assert.Equal(t, "test", injected.Name)
}

func TestMiddleware_RequiredWithoutKey(t *testing.T) {
	t.Setenv("API_KEY_REQUIRED", "true")
	svc, _ := newAuthTestEnv(t)

	m := NewApiKeyAuthMiddleware(svc)
	req := httptest.NewRequest(http.MethodPost, "/scan", nil)
	rec := httptest.NewRecorder()

	m.Middleware(okHandler()).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMiddleware_RequiredWithWrongKey(t *testing.T) {
	t.Setenv("API_KEY_REQUIRED", "true")
	svc, _ := newAuthTestEnv(t)

	m := NewApiKeyAuthMiddleware(svc)
	req := httptest.NewRequest(http.MethodPost, "/scan", nil)
	req.Header.Set("X-API-Key", "dsk_wrongwrongwrongwrongwrongwrongwrong0000")
	rec := httptest.NewRecorder()

	m.Middleware(okHandler()).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMiddleware_WhitelistBypassesAuth(t *testing.T) {
	t.Setenv("API_KEY_REQUIRED", "true")
	svc, _ := newAuthTestEnv(t)

	m := NewApiKeyAuthMiddleware(svc)
	for _, path := range []string{"/health", "/ready", "/metrics", "/swagger/index.html", "/sse/admin"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()

		m.Middleware(okHandler()).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

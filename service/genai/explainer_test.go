/*
 * @module service/genai/explainer_test
 * @description LLM解释服务单元测试，使用本地HTTP桩模拟OpenAI兼容接口
 * @architecture 测试层
 * @documentReference dev_docs/detection_requirements.md
 * @stateFlow 桩服务启动 -> 解释调用 -> 请求与响应断言
 * @rules 测试不访问真实外部接口
 * @dependencies net/http/httptest, github.com/stretchr/testify
 * @refs service/genai/explainer.go
 */

package genai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datascan-service/service/models"
)

// newStubServer 返回固定回复的OpenAI兼容桩服务，并捕获最后一次请求
func newStubServer(t *testing.T, reply string, lastReq *chatRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		require.NoError(t, json.NewDecoder(r.Body).Decode(lastReq))

		resp := chatResponse{}
		resp.Choices = []struct {
			Message chatMessage `json:"message"`
		}{
			{Message: chatMessage{Role: "assistant", Content: reply}},
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestExplainTopic(t *testing.T) {
	var lastReq chatRequest
	server := newStubServer(t, "  Hashing is like a fingerprint.  ", &lastReq)
	defer server.Close()

	t.Setenv("OPENAI_BASE_URL", server.URL)
	t.Setenv("OPENAI_API_KEY", "test-key")

	explainer := NewExplainer()
	explanation, err := explainer.ExplainTopic(context.Background(), "hashing", nil)
	require.NoError(t, err)
	assert.Equal(t, "Hashing is like a fingerprint.", explanation)

	require.Len(t, lastReq.Messages, 2)
	assert.Equal(t, "system", lastReq.Messages[0].Role)
	assert.Contains(t, lastReq.Messages[1].Content, "hashing")
	assert.InDelta(t, 0.7, lastReq.Temperature, 1e-9)
	assert.Equal(t, 500, lastReq.MaxTokens)
}

func TestExplainTopic_WithContext(t *testing.T) {
	var lastReq chatRequest
	server := newStubServer(t, "ok", &lastReq)
	defer server.Close()

	t.Setenv("OPENAI_BASE_URL", server.URL)
	t.Setenv("OPENAI_API_KEY", "test-key")

	explainer := NewExplainer()
	_, err := explainer.ExplainTopic(context.Background(), "anomaly_detection", map[string]interface{}{
		"total_anomalies": 3,
	})
	require.NoError(t, err)

	assert.Contains(t, lastReq.Messages[1].Content, "Context to incorporate:")
	assert.Contains(t, lastReq.Messages[1].Content, "total_anomalies")
}

func TestExplainScanResults_SampleCap(t *testing.T) {
	var lastReq chatRequest
	server := newStubServer(t, "ok", &lastReq)
	defer server.Close()

	t.Setenv("OPENAI_BASE_URL", server.URL)
	t.Setenv("OPENAI_API_KEY", "test-key")

	findings := make([]models.AnomalyFinding, 25)
	for i := range findings {
		findings[i] = models.AnomalyFinding{
			Kind:     models.KindDataOutlier,
			Location: "Global",
			Severity: models.SeverityLow,
		}
	}

	explainer := NewExplainer()
	_, err := explainer.ExplainScanResults(context.Background(), findings)
	require.NoError(t, err)

	// 提示词只携带前10条样本，但报告总数
	var payload struct {
		TotalAnomalies  int                      `json:"total_anomalies"`
		SampleAnomalies []map[string]interface{} `json:"sample_anomalies"`
	}
	content := lastReq.Messages[1].Content
	jsonPart := content[strings.Index(content, "{"):]
	require.NoError(t, json.Unmarshal([]byte(jsonPart), &payload))
	assert.Equal(t, 25, payload.TotalAnomalies)
	assert.Len(t, payload.SampleAnomalies, 10)
}

func TestExplainTopic_MissingAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	explainer := NewExplainer()
	_, err := explainer.ExplainTopic(context.Background(), "hashing", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")
}

func TestTopics(t *testing.T) {
	explainer := NewExplainer()
	topics := explainer.Topics()
	assert.Len(t, topics, 5)
	assert.Contains(t, topics, "hashing")
	assert.Contains(t, topics, "process_overview")
}

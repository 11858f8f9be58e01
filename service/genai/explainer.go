/*
 * @module service/genai/explainer
 * @description 大模型解释服务，通过OpenAI兼容接口将检测技术概念和扫描结果转译为通俗说明
 * @architecture 适配器模式 - 封装外部LLM HTTP接口
 * @documentReference dev_docs/detection_requirements.md
 * @stateFlow 主题/结果选择 -> 提示词构造 -> LLM调用 -> 解释文本返回
 * @rules 解释服务是外部协作者，检测流程不依赖它；调用失败向上抛错由控制器处理
 * @dependencies net/http, encoding/json
 * @refs api/controllers/explain_controller.go
 */

package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"datascan-service/service/models"
)

// 内置主题提示词，与前端主题下拉项一一对应
var defaultPrompts = map[string]string{
	"hashing": "Explain what hashing is and why it's used for verifying file integrity. " +
		"Use simple terms and an analogy a non-technical person can understand.",
	"anomaly_detection": "Explain how anomaly detection works in this project. Describe methods like " +
		"robust z-scores (MAD), IQR fences, and what outliers mean in plain language.",
	"image_forensics": "Explain image forensics techniques used here: Error Level Analysis (ELA), " +
		"blur detection, and dynamic range. Use simple terms and examples.",
	"process_overview": "Explain the end-to-end process of this project: " +
		"uploading a file, detecting anomalies, cleaning data, and training models. " +
		"Describe each step in plain language for a non-technical audience.",
	"security": "Explain the security features in this project: audit logging, file hashing, " +
		"session tracking, and why they matter for data integrity.",
}

const systemPrompt = "You are a helpful explainer for non-technical audiences. Use simple language, analogies, and avoid jargon."

// 提示词中最多携带的结果样本数，避免超出token限制
const maxSampleFindings = 10

// Explainer LLM解释器
type Explainer struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewExplainer 创建解释器实例，配置来自环境变量
func NewExplainer() *Explainer {
	baseURL := os.Getenv("OPENAI_BASE_URL")
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	model := os.Getenv("OPENAI_MODEL")
	if model == "" {
		model = "gpt-4o-mini"
	}

	return &Explainer{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     os.Getenv("OPENAI_API_KEY"),
		model:      model,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Topics 返回内置主题列表
func (e *Explainer) Topics() []string {
	topics := make([]string, 0, len(defaultPrompts))
	for topic := range defaultPrompts {
		topics = append(topics, topic)
	}
	return topics
}

// ExplainTopic 解释指定主题，context为可选的附加上下文
func (e *Explainer) ExplainTopic(ctx context.Context, topic string, extra map[string]interface{}) (string, error) {
	prompt, ok := defaultPrompts[topic]
	if !ok {
		prompt = fmt.Sprintf("Explain the topic: %s", topic)
	}
	if len(extra) > 0 {
		ctxJSON, err := json.MarshalIndent(extra, "", "  ")
		if err != nil {
			return "", fmt.Errorf("序列化上下文失败: %w", err)
		}
		prompt = fmt.Sprintf("%s\n\nContext to incorporate:\n%s", prompt, ctxJSON)
	}
	return e.complete(ctx, prompt)
}

// ExplainScanResults 对扫描结果生成通俗解释，最多携带前10条结果
func (e *Explainer) ExplainScanResults(ctx context.Context, findings []models.AnomalyFinding) (string, error) {
	sample := findings
	if len(sample) > maxSampleFindings {
		sample = sample[:maxSampleFindings]
	}

	simplified := make([]map[string]interface{}, 0, len(sample))
	for _, f := range sample {
		simplified = append(simplified, map[string]interface{}{
			"type":        f.Kind,
			"location":    f.Location,
			"severity":    f.Severity,
			"description": f.Description,
		})
	}

	return e.ExplainTopic(ctx, "anomaly_detection", map[string]interface{}{
		"total_anomalies":  len(findings),
		"sample_anomalies": simplified,
	})
}

// chatRequest OpenAI兼容的聊天补全请求
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// complete 调用聊天补全接口并返回生成文本
func (e *Explainer) complete(ctx context.Context, prompt string) (string, error) {
	if e.apiKey == "" {
		return "", fmt.Errorf("OPENAI_API_KEY环境变量未设置")
	}

	body, err := json.Marshal(chatRequest{
		Model: e.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: 0.7,
		MaxTokens:   500,
	})
	if err != nil {
		return "", fmt.Errorf("构造请求失败: %w", err)
	}

	url := e.baseURL + "/v1/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("调用LLM接口失败: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("读取响应失败: %w", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("解析响应失败: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("LLM接口错误: %s", parsed.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("LLM接口返回状态码%d", resp.StatusCode)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("LLM接口未返回内容")
	}

	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

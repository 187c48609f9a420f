// Package llm 提供了调用大语言模型生成回答的客户端。
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"insurapolis-go/internal/config"
)

// MessageWriter 定义了写出流式分块的接口。
// websocket.Conn 与编排层的拦截器都满足该接口。
type MessageWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// Message 表示一条角色消息。
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenerateRequest 携带一次回答生成所需的全部输入：
// 问题、限定窗口的历史、检索上下文，以及保单要素。
type GenerateRequest struct {
	Question   string
	History    []Message
	Context    string
	Deductible string
	SumInsured string
}

// GenerateResult 是生成能力的产出：回答文本与 token/成本账目。
type GenerateResult struct {
	Answer           string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	Cost             float64
}

// Client 定义了回答生成客户端的接口。
type Client interface {
	// Generate 以完整请求调用聊天接口，一次性返回回答与用量。
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error)
	// StreamGenerate 将回答分块写入 writer，流结束后返回完整回答与用量。
	StreamGenerate(ctx context.Context, req GenerateRequest, writer MessageWriter) (*GenerateResult, error)
}

type openAICompatibleClient struct {
	cfg    config.LLMConfig
	client *http.Client
}

// NewClient 根据配置创建一个新的 LLM 客户端。
func NewClient(cfg config.LLMConfig) Client {
	return &openAICompatibleClient{
		cfg:    cfg,
		client: &http.Client{},
	}
}

type chatRequest struct {
	Model         string         `json:"model"`
	Messages      []Message      `json:"messages"`
	Stream        bool           `json:"stream"`
	StreamOptions *streamOptions `json:"stream_options,omitempty"`
	Temperature   *float64       `json:"temperature,omitempty"`
	TopP          *float64       `json:"top_p,omitempty"`
	MaxTokens     *int           `json:"max_tokens,omitempty"`
}

type streamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

type usagePayload struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Usage *usagePayload `json:"usage"`
}

// Generate 调用 OpenAI 兼容的 /chat/completions 接口并返回回答与用量。
func (c *openAICompatibleClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	resp, err := c.do(ctx, c.buildRequest(req, false))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取聊天响应失败: %w", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(bodyBytes, &parsed); err != nil {
		return nil, fmt.Errorf("解析聊天响应失败: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("聊天响应不包含任何候选")
	}

	result := &GenerateResult{Answer: parsed.Choices[0].Message.Content}
	if parsed.Usage != nil {
		result.PromptTokens = parsed.Usage.PromptTokens
		result.CompletionTokens = parsed.Usage.CompletionTokens
		result.TotalTokens = parsed.Usage.TotalTokens
	}
	result.Cost = ComputeCost(c.cfg.Pricing, result.PromptTokens, result.CompletionTokens)
	return result, nil
}

// StreamGenerate 以 SSE 形式流式读取回答，把每个分块写入 writer。
// 开启 include_usage 后，最后一个数据块携带完整用量。
func (c *openAICompatibleClient) StreamGenerate(ctx context.Context, req GenerateRequest, writer MessageWriter) (*GenerateResult, error) {
	resp, err := c.do(ctx, c.buildRequest(req, true))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var answer strings.Builder
	var usage usagePayload

	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("读取流式响应失败: %w", err)
		}

		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if strings.TrimSpace(data) == "[DONE]" {
			break
		}

		var chunk chatResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}
		if chunk.Usage != nil {
			usage = *chunk.Usage
		}
		if len(chunk.Choices) > 0 {
			content := chunk.Choices[0].Delta.Content
			if content == "" {
				continue
			}
			answer.WriteString(content)
			if err := writer.WriteMessage(websocket.TextMessage, []byte(content)); err != nil {
				return nil, fmt.Errorf("写出流式分块失败: %w", err)
			}
		}
	}

	result := &GenerateResult{
		Answer:           answer.String(),
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		TotalTokens:      usage.TotalTokens,
		Cost:             ComputeCost(c.cfg.Pricing, usage.PromptTokens, usage.CompletionTokens),
	}
	return result, nil
}

// buildRequest 组装聊天接口的请求体：system 提示 + 历史窗口 + 当前问题。
func (c *openAICompatibleClient) buildRequest(req GenerateRequest, stream bool) chatRequest {
	messages := make([]Message, 0, len(req.History)+2)
	messages = append(messages, Message{Role: "system", Content: c.buildSystemMessage(req)})
	for _, m := range req.History {
		role := m.Role
		// 账本角色映射到聊天接口角色
		switch role {
		case "human":
			role = "user"
		case "ai":
			role = "assistant"
		}
		messages = append(messages, Message{Role: role, Content: m.Content})
	}
	messages = append(messages, Message{Role: "user", Content: req.Question})

	body := chatRequest{
		Model:    c.cfg.Model,
		Messages: messages,
		Stream:   stream,
	}
	if stream {
		body.StreamOptions = &streamOptions{IncludeUsage: true}
	}
	if c.cfg.Generation.Temperature != 0 {
		t := c.cfg.Generation.Temperature
		body.Temperature = &t
	}
	if c.cfg.Generation.TopP != 0 {
		p := c.cfg.Generation.TopP
		body.TopP = &p
	}
	if c.cfg.Generation.MaxTokens != 0 {
		m := c.cfg.Generation.MaxTokens
		body.MaxTokens = &m
	}
	return body
}

// buildSystemMessage 按配置的规则与包裹符组装 system 提示，
// 把检索上下文与保单要素（免赔额、保额）一并注入。
func (c *openAICompatibleClient) buildSystemMessage(req GenerateRequest) string {
	refStart := c.cfg.Prompt.RefStart
	if refStart == "" {
		refStart = "<<REF>>"
	}
	refEnd := c.cfg.Prompt.RefEnd
	if refEnd == "" {
		refEnd = "<<END>>"
	}

	var sys strings.Builder
	if c.cfg.Prompt.Rules != "" {
		sys.WriteString(c.cfg.Prompt.Rules)
		sys.WriteString("\n\n")
	}
	if req.Deductible != "" {
		sys.WriteString("Franchise: ")
		sys.WriteString(req.Deductible)
		sys.WriteString("\n")
	}
	if req.SumInsured != "" {
		sys.WriteString("Somme assurée: ")
		sys.WriteString(req.SumInsured)
		sys.WriteString("\n")
	}
	sys.WriteString(refStart)
	sys.WriteString("\n")
	if req.Context != "" {
		sys.WriteString(req.Context)
	} else {
		noRes := c.cfg.Prompt.NoResultText
		if noRes == "" {
			noRes = "（本轮无检索结果）"
		}
		sys.WriteString(noRes)
		sys.WriteString("\n")
	}
	sys.WriteString(refEnd)
	return sys.String()
}

// do 发送请求并校验状态码。
func (c *openAICompatibleClient) do(ctx context.Context, body chatRequest) (*http.Response, error) {
	reqBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("序列化聊天请求失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.BaseURL+"/chat/completions", bytes.NewReader(reqBytes))
	if err != nil {
		return nil, fmt.Errorf("创建聊天请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	if body.Stream {
		req.Header.Set("Accept", "text/event-stream")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("调用聊天接口失败: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("聊天接口返回非 200 状态: %s, body: %s", resp.Status, string(bodyBytes))
	}
	return resp, nil
}

// ComputeCost 按配置的千 token 单价核算一次调用的货币成本。
func ComputeCost(pricing config.LLMPricingConfig, promptTokens, completionTokens int) float64 {
	return float64(promptTokens)/1000*pricing.PromptPer1K +
		float64(completionTokens)/1000*pricing.CompletionPer1K
}

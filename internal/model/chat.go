// Package model 包含了应用的数据模型定义。
package model

import "time"

// ChatMessageDTO 是消息在 API 响应中的投影。
type ChatMessageDTO struct {
	Role    string    `json:"role"`
	Content string    `json:"content"`
	Tokens  int       `json:"tokens"`
	Cost    float64   `json:"cost"`
	SendAt  time.Time `json:"sendAt"`
}

// ChatResult 是一次完整对话轮次的编排结果。
type ChatResult struct {
	Question    string           `json:"question"`
	Response    string           `json:"response"`
	ChatHistory []ChatMessageDTO `json:"chat_history"`
	TotalTokens int              `json:"total_tokens"`
	TotalCost   float64          `json:"total_cost"`
}

// PassageDTO 是检索器返回的一条条款段落。
type PassageDTO struct {
	Text     string  `json:"text"`
	Company  string  `json:"company"`
	Category string  `json:"category"`
	Type     string  `json:"type"`
	Article  string  `json:"article"`
	Package  string  `json:"package"`
	Source   string  `json:"source"`
	Score    float64 `json:"score"`
}

// MessagesToDTO 把账本消息投影为 API 视图。
func MessagesToDTO(messages []Message) []ChatMessageDTO {
	dtos := make([]ChatMessageDTO, 0, len(messages))
	for _, m := range messages {
		dtos = append(dtos, ChatMessageDTO{
			Role:    m.Payload.Role,
			Content: m.Payload.Content,
			Tokens:  m.Tokens,
			Cost:    m.Cost,
			SendAt:  m.SendAt,
		})
	}
	return dtos
}

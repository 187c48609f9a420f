// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"insurapolis-go/internal/config"
	"insurapolis-go/internal/model"
	"insurapolis-go/internal/repository"
	"insurapolis-go/pkg/kafka"
	"insurapolis-go/pkg/llm"
	"insurapolis-go/pkg/log"
)

// ChatService 定义了对话轮次的编排接口。
// 一次 Chat 调用依次经过：授权检查 → 历史窗口加载 → 回答生成 →
// 持久化人类消息 → 持久化 AI 消息 → 返回结果。
// 生成调用失败时账本不产生任何写入；AI 消息写入失败以 PartialTurnError 上报。
type ChatService interface {
	Chat(ctx context.Context, user *model.User, conversationUUID, question string) (*model.ChatResult, error)
	ChatStream(ctx context.Context, user *model.User, conversationUUID, question string, writer llm.MessageWriter, shouldStop func() bool) error
}

type chatService struct {
	conversationRepo repository.ConversationRepository
	messageRepo      repository.MessageRepository
	policyRepo       repository.PolicyRepository
	searchService    SearchService
	llmClient        llm.Client

	// publishUsage 默认指向 Kafka 生产者，失败只记录不影响本轮结果。
	publishUsage func(ctx context.Context, event kafka.UsageEvent) error
}

// NewChatService 创建一个新的 ChatService 实例。
func NewChatService(
	conversationRepo repository.ConversationRepository,
	messageRepo repository.MessageRepository,
	policyRepo repository.PolicyRepository,
	searchService SearchService,
	llmClient llm.Client,
) ChatService {
	return &chatService{
		conversationRepo: conversationRepo,
		messageRepo:      messageRepo,
		policyRepo:       policyRepo,
		searchService:    searchService,
		llmClient:        llmClient,
		publishUsage:     kafka.PublishUsageEvent,
	}
}

// Chat 编排一轮完整的问答。
func (s *chatService) Chat(ctx context.Context, user *model.User, conversationUUID, question string) (*model.ChatResult, error) {
	result, err := s.runTurn(ctx, user, conversationUUID, question, nil, nil)
	if err != nil {
		return nil, err
	}

	history, err := s.messageRepo.FullHistory(conversationUUID)
	if err != nil {
		// 轮次本身已成功落账，历史读取失败只降级为空投影
		log.Errorf("[ChatService] 读取完整历史失败, uuid: %s, error: %v", conversationUUID, err)
		history = nil
	}

	return &model.ChatResult{
		Question:    question,
		Response:    result.Answer,
		ChatHistory: model.MessagesToDTO(history),
		TotalTokens: result.TotalTokens,
		TotalCost:   result.Cost,
	}, nil
}

// ChatStream 是 Chat 的流式变体：回答分块经 writer 下发，
// 流结束后按同样的顺序持久化本轮消息并发送完成通知。
func (s *chatService) ChatStream(ctx context.Context, user *model.User, conversationUUID, question string, writer llm.MessageWriter, shouldStop func() bool) error {
	interceptor := &chunkInterceptor{writer: writer, shouldStop: shouldStop}
	if _, err := s.runTurn(ctx, user, conversationUUID, question, interceptor, shouldStop); err != nil {
		return err
	}
	sendCompletion(writer)
	return nil
}

// runTurn 执行一轮问答的公共路径。streamWriter 为 nil 时走一次性生成。
func (s *chatService) runTurn(ctx context.Context, user *model.User, conversationUUID, question string, streamWriter llm.MessageWriter, shouldStop func() bool) (*llm.GenerateResult, error) {
	// 1. 授权检查：短路于任何生成与持久化之前
	owned, err := s.conversationRepo.Owns(user.ID, conversationUUID)
	if err != nil {
		return nil, fmt.Errorf("授权检查失败: %w", err)
	}
	if !owned {
		return nil, ErrForbidden
	}

	// 2. 加载限定窗口的历史（默认最近 2 轮 = 4 条）
	window, err := s.messageRepo.RecentWindow(conversationUUID, config.Conf.Chat.HistoryWindowOrDefault())
	if err != nil {
		return nil, err
	}

	// 3. 保单要素与检索上下文。两者都是增强项，失败降级为空而不是中断本轮。
	deductible, sumInsured, filter := s.policyContext(user.ID)
	contextText := s.retrieveContext(ctx, question, filter)

	genReq := llm.GenerateRequest{
		Question:   question,
		History:    toLLMMessages(window),
		Context:    contextText,
		Deductible: deductible,
		SumInsured: sumInsured,
	}

	// 4. 调用外部生成能力。此调用可能很慢，期间不持有任何进程内锁；
	//    失败或取消时账本尚无本轮的任何写入。
	var result *llm.GenerateResult
	if streamWriter != nil {
		result, err = s.llmClient.StreamGenerate(ctx, genReq, streamWriter)
	} else {
		result, err = s.llmClient.Generate(ctx, genReq)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamGeneration, err)
	}

	// 5. 顺序持久化：先人类消息后 AI 消息，各自独立成事务。
	//    人类消息携带 prompt token 数，AI 消息携带 completion token 数，
	//    成本两边都记本次调用的总成本。
	if err := s.messageRepo.AppendUserMessage(conversationUUID, question, result.PromptTokens, result.Cost); err != nil {
		return nil, fmt.Errorf("持久化用户消息失败: %w", err)
	}
	if err := s.messageRepo.AppendAIMessage(conversationUUID, result.Answer, result.CompletionTokens, result.Cost); err != nil {
		return nil, &PartialTurnError{
			ConversationUUID: conversationUUID,
			Answer:           result.Answer,
			Err:              err,
		}
	}

	// 6. 用量事件下发 Kafka，即发即忘
	if s.publishUsage != nil {
		event := kafka.UsageEvent{
			EventID:          uuid.NewString(),
			UserID:           user.ID,
			ConversationUUID: conversationUUID,
			PromptTokens:     result.PromptTokens,
			CompletionTokens: result.CompletionTokens,
			TotalTokens:      result.TotalTokens,
			Cost:             result.Cost,
			OccurredAt:       time.Now(),
		}
		if err := s.publishUsage(ctx, event); err != nil {
			log.Errorf("[ChatService] 发布用量事件失败, uuid: %s, error: %v", conversationUUID, err)
		}
	}

	return result, nil
}

// policyContext 读取用户保单，整理为提示词要素与检索过滤器。
func (s *chatService) policyContext(userID uint) (deductible, sumInsured string, filter PassageFilter) {
	insurances, err := s.policyRepo.FindUserInsurances(userID)
	if err != nil {
		log.Warnf("[ChatService] 查询用户保单失败, userID: %d, error: %v", userID, err)
		return "", "", PassageFilter{}
	}

	var deductibles, sums []string
	for _, ins := range insurances {
		label := ins.Package.Name
		if label == "" {
			label = ins.Package.Product
		}
		if label != "" {
			filter.Packages = append(filter.Packages, label)
		}
		if ins.Package.Company != "" {
			filter.Companies = append(filter.Companies, ins.Package.Company)
		}
		deductibles = append(deductibles, fmt.Sprintf("%s: %.2f", label, ins.Deductible))
		sums = append(sums, fmt.Sprintf("%s: %s", label, ins.SumInsured))
	}
	return strings.Join(deductibles, "; "), strings.Join(sums, "; "), filter
}

// retrieveContext 检索条款段落并拼为上下文文本，失败时降级为空。
func (s *chatService) retrieveContext(ctx context.Context, question string, filter PassageFilter) string {
	if s.searchService == nil {
		return ""
	}
	passages, err := s.searchService.RetrievePassages(ctx, question, filter, config.Conf.Chat.RetrievalTopKOrDefault())
	if err != nil {
		log.Warnf("[ChatService] 检索条款段落失败: %v", err)
		return ""
	}
	if len(passages) == 0 {
		return ""
	}

	var b strings.Builder
	for i, p := range passages {
		label := p.Article
		if label == "" {
			label = p.Package
		}
		b.WriteString(fmt.Sprintf("[%d] (%s) %s\n", i+1, label, p.Text))
	}
	return b.String()
}

// toLLMMessages 把账本窗口投影为生成接口的消息序列。
func toLLMMessages(window []model.Message) []llm.Message {
	messages := make([]llm.Message, 0, len(window))
	for _, m := range window {
		messages = append(messages, llm.Message{Role: m.Payload.Role, Content: m.Payload.Content})
	}
	return messages
}

// chunkInterceptor 把原始分块包装成 {"chunk":"..."} 再写出，
// 停止标志生效后跳过下发但不中断生成。
type chunkInterceptor struct {
	writer     llm.MessageWriter
	shouldStop func() bool
}

// WriteMessage 满足 llm.MessageWriter 接口。
func (w *chunkInterceptor) WriteMessage(messageType int, data []byte) error {
	if w.shouldStop != nil && w.shouldStop() {
		return nil
	}
	payload := map[string]string{"chunk": string(data)}
	b, _ := json.Marshal(payload)
	return w.writer.WriteMessage(messageType, b)
}

// sendCompletion 发送完成通知 JSON。
func sendCompletion(writer llm.MessageWriter) {
	notif := map[string]interface{}{
		"type":      "completion",
		"status":    "finished",
		"message":   "响应已完成",
		"timestamp": time.Now().UnixMilli(),
	}
	b, _ := json.Marshal(notif)
	_ = writer.WriteMessage(websocket.TextMessage, b)
}

package repository

import (
	"testing"

	"github.com/google/uuid"

	"insurapolis-go/internal/model"
)

func TestMessageAppendAndFullHistory(t *testing.T) {
	db := newTestDB(t)
	convRepo := NewConversationRepository(db)
	msgRepo := NewMessageRepository(db)
	userID := mustCreateUser(t, db, "alice@example.com")
	conv := &model.Conversation{UUID: uuid.NewString(), Name: "historique", UserID: userID}
	if err := convRepo.Create(conv); err != nil {
		t.Fatalf("Create conversation: %v", err)
	}

	if err := msgRepo.AppendUserMessage(conv.UUID, "quelle est ma franchise ?", 7, 0.0012); err != nil {
		t.Fatalf("AppendUserMessage: %v", err)
	}
	if err := msgRepo.AppendAIMessage(conv.UUID, "votre franchise est de 300 CHF", 12, 0.0012); err != nil {
		t.Fatalf("AppendAIMessage: %v", err)
	}

	history, err := msgRepo.FullHistory(conv.UUID)
	if err != nil {
		t.Fatalf("FullHistory: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("len(history) = %d, want 2", len(history))
	}
	if history[0].Payload.Role != model.RoleHuman || history[1].Payload.Role != model.RoleAI {
		t.Fatalf("roles = [%s %s], want [human ai]", history[0].Payload.Role, history[1].Payload.Role)
	}
	if history[0].Payload.Content != "quelle est ma franchise ?" {
		t.Fatalf("content = %q", history[0].Payload.Content)
	}
	if history[0].Tokens != 7 || history[1].Tokens != 12 {
		t.Fatalf("tokens = [%d %d], want [7 12]", history[0].Tokens, history[1].Tokens)
	}
	if history[0].Cost != 0.0012 || history[1].Cost != 0.0012 {
		t.Fatalf("costs = [%v %v], want [0.0012 0.0012]", history[0].Cost, history[1].Cost)
	}
	if history[0].SendAt.IsZero() {
		t.Fatalf("SendAt is zero, want server-side timestamp")
	}
}

func TestMessageFullHistoryEmpty(t *testing.T) {
	db := newTestDB(t)
	convRepo := NewConversationRepository(db)
	msgRepo := NewMessageRepository(db)
	userID := mustCreateUser(t, db, "alice@example.com")
	conv := &model.Conversation{UUID: uuid.NewString(), Name: "vide", UserID: userID}
	if err := convRepo.Create(conv); err != nil {
		t.Fatalf("Create conversation: %v", err)
	}

	history, err := msgRepo.FullHistory(conv.UUID)
	if err != nil {
		t.Fatalf("FullHistory: %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("len(history) = %d, want 0", len(history))
	}
}

func TestMessageRecentWindow(t *testing.T) {
	db := newTestDB(t)
	convRepo := NewConversationRepository(db)
	msgRepo := NewMessageRepository(db)
	userID := mustCreateUser(t, db, "alice@example.com")
	conv := &model.Conversation{UUID: uuid.NewString(), Name: "fenêtre", UserID: userID}
	if err := convRepo.Create(conv); err != nil {
		t.Fatalf("Create conversation: %v", err)
	}

	contents := []string{"q1", "r1", "q2", "r2", "q3", "r3"}
	for i, content := range contents {
		if i%2 == 0 {
			if err := msgRepo.AppendUserMessage(conv.UUID, content, 1, 0); err != nil {
				t.Fatalf("append %s: %v", content, err)
			}
		} else {
			if err := msgRepo.AppendAIMessage(conv.UUID, content, 1, 0); err != nil {
				t.Fatalf("append %s: %v", content, err)
			}
		}
	}

	// 窗口取最近 4 条，升序返回
	window, err := msgRepo.RecentWindow(conv.UUID, 4)
	if err != nil {
		t.Fatalf("RecentWindow: %v", err)
	}
	want := []string{"q2", "r2", "q3", "r3"}
	if len(window) != len(want) {
		t.Fatalf("len(window) = %d, want %d", len(window), len(want))
	}
	for i, content := range want {
		if window[i].Payload.Content != content {
			t.Fatalf("window[%d] = %q, want %q", i, window[i].Payload.Content, content)
		}
	}

	// 消息不足窗口大小时全部返回
	window, err = msgRepo.RecentWindow(conv.UUID, 10)
	if err != nil {
		t.Fatalf("RecentWindow(10): %v", err)
	}
	if len(window) != len(contents) {
		t.Fatalf("len(window) = %d, want %d", len(window), len(contents))
	}

	// 非法窗口大小回退到默认值 4
	window, err = msgRepo.RecentWindow(conv.UUID, 0)
	if err != nil {
		t.Fatalf("RecentWindow(0): %v", err)
	}
	if len(window) != 4 {
		t.Fatalf("len(window) = %d, want 4", len(window))
	}
}

func TestMessageTotalTokensByUser(t *testing.T) {
	db := newTestDB(t)
	convRepo := NewConversationRepository(db)
	msgRepo := NewMessageRepository(db)
	aliceID := mustCreateUser(t, db, "alice@example.com")
	bobID := mustCreateUser(t, db, "bob@example.com")

	aliceConv1 := &model.Conversation{UUID: uuid.NewString(), Name: "alice 1", UserID: aliceID}
	aliceConv2 := &model.Conversation{UUID: uuid.NewString(), Name: "alice 2", UserID: aliceID}
	bobConv := &model.Conversation{UUID: uuid.NewString(), Name: "bob 1", UserID: bobID}
	for _, conv := range []*model.Conversation{aliceConv1, aliceConv2, bobConv} {
		if err := convRepo.Create(conv); err != nil {
			t.Fatalf("Create %s: %v", conv.Name, err)
		}
	}

	if err := msgRepo.AppendUserMessage(aliceConv1.UUID, "q", 10, 0.001); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := msgRepo.AppendAIMessage(aliceConv1.UUID, "r", 20, 0.001); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := msgRepo.AppendAIMessage(aliceConv2.UUID, "bienvenue", 12, 0); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := msgRepo.AppendUserMessage(bobConv.UUID, "q", 99, 0.01); err != nil {
		t.Fatalf("append: %v", err)
	}

	// 只统计本人的对话，跨对话求和
	total, err := msgRepo.TotalTokensByUser(aliceID)
	if err != nil {
		t.Fatalf("TotalTokensByUser(alice): %v", err)
	}
	if total != 42 {
		t.Fatalf("total(alice) = %d, want 42", total)
	}

	total, err = msgRepo.TotalTokensByUser(bobID)
	if err != nil {
		t.Fatalf("TotalTokensByUser(bob): %v", err)
	}
	if total != 99 {
		t.Fatalf("total(bob) = %d, want 99", total)
	}

	// 没有任何消息的用户得 0 而不是错误
	carolID := mustCreateUser(t, db, "carol@example.com")
	total, err = msgRepo.TotalTokensByUser(carolID)
	if err != nil {
		t.Fatalf("TotalTokensByUser(carol): %v", err)
	}
	if total != 0 {
		t.Fatalf("total(carol) = %d, want 0", total)
	}
}

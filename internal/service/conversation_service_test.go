package service

import (
	"errors"
	"strings"
	"testing"

	"insurapolis-go/internal/model"
)

func newTestConversationService() (ConversationService, *fakeConversationRepo, *fakeMessageRepo) {
	convRepo := newFakeConversationRepo()
	msgRepo := newFakeMessageRepo()
	return NewConversationService(convRepo, msgRepo), convRepo, msgRepo
}

func TestCreateConversationSeedsWelcome(t *testing.T) {
	svc, _, msgRepo := newTestConversationService()

	conv, history, err := svc.CreateConversation(1, "ma conversation")
	if err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}
	if conv.UUID == "" {
		t.Fatalf("UUID is empty")
	}
	if conv.Name != "ma conversation" {
		t.Fatalf("Name = %q", conv.Name)
	}

	// 账本的第一条记录是 AI 欢迎语，计 12 个 token，成本为 0
	msgs := msgRepo.messages[conv.UUID]
	if len(msgs) != 1 {
		t.Fatalf("len(messages) = %d, want 1", len(msgs))
	}
	if msgs[0].Payload.Role != model.RoleAI {
		t.Fatalf("role = %s, want ai", msgs[0].Payload.Role)
	}
	if msgs[0].Payload.Content != "Bienvenu chez Insurapolis, comment puis-je vous aider ?" {
		t.Fatalf("content = %q", msgs[0].Payload.Content)
	}
	if msgs[0].Tokens != 12 || msgs[0].Cost != 0 {
		t.Fatalf("accounting = (%d, %v), want (12, 0)", msgs[0].Tokens, msgs[0].Cost)
	}
	if len(history) != 1 || history[0].Role != model.RoleAI {
		t.Fatalf("history = %+v", history)
	}
}

func TestCreateConversationDefaultName(t *testing.T) {
	svc, _, _ := newTestConversationService()

	conv, _, err := svc.CreateConversation(1, "")
	if err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}
	if !strings.HasPrefix(conv.Name, "conv_") {
		t.Fatalf("default name = %q, want conv_ prefix", conv.Name)
	}
}

func TestCreateConversationDuplicateName(t *testing.T) {
	svc, _, _ := newTestConversationService()

	if _, _, err := svc.CreateConversation(1, "doublon"); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, _, err := svc.CreateConversation(1, "doublon")
	if !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("err = %v, want ErrDuplicateName", err)
	}

	// 另一个用户可以用同样的名称
	if _, _, err := svc.CreateConversation(2, "doublon"); err != nil {
		t.Fatalf("other user create: %v", err)
	}
}

func TestGetHistoryForbidden(t *testing.T) {
	svc, convRepo, _ := newTestConversationService()
	convRepo.add("conv-alice", 1, "conv alice")

	if _, err := svc.GetHistory(2, "conv-alice"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("GetHistory(other's) err = %v, want ErrForbidden", err)
	}
	if _, err := svc.GetHistory(2, "conv-absent"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("GetHistory(absent) err = %v, want ErrForbidden", err)
	}
}

func TestRenameConversationChecksOwnershipThenName(t *testing.T) {
	svc, convRepo, _ := newTestConversationService()
	convRepo.add("conv-1", 1, "ancien")
	convRepo.add("conv-2", 1, "autre")

	if err := svc.RenameConversation(2, "conv-1", "volé"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("rename by non-owner err = %v, want ErrForbidden", err)
	}
	if err := svc.RenameConversation(1, "conv-1", "autre"); !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("rename to taken name err = %v, want ErrDuplicateName", err)
	}
	if err := svc.RenameConversation(1, "conv-1", "nouveau"); err != nil {
		t.Fatalf("rename: %v", err)
	}
}

func TestDeleteConversationForbidden(t *testing.T) {
	svc, convRepo, _ := newTestConversationService()
	convRepo.add("conv-1", 1, "à garder")

	if err := svc.DeleteConversation(2, "conv-1"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("delete by non-owner err = %v, want ErrForbidden", err)
	}
	if err := svc.DeleteConversation(1, "conv-1"); err != nil {
		t.Fatalf("delete by owner: %v", err)
	}
	// 删除后再访问同样表现为 forbidden
	if err := svc.DeleteConversation(1, "conv-1"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("delete again err = %v, want ErrForbidden", err)
	}
}

package repository

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"insurapolis-go/internal/model"
)

func TestConversationCreateAndFind(t *testing.T) {
	db := newTestDB(t)
	repo := NewConversationRepository(db)
	userID := mustCreateUser(t, db, "alice@example.com")

	conv := &model.Conversation{UUID: uuid.NewString(), Name: "conv_20260828_100000", UserID: userID}
	if err := repo.Create(conv); err != nil {
		t.Fatalf("Create: %v", err)
	}

	found, err := repo.FindByUUID(conv.UUID)
	if err != nil {
		t.Fatalf("FindByUUID: %v", err)
	}
	if found.Name != conv.Name || found.UserID != userID {
		t.Fatalf("found = {%s %d}, want {%s %d}", found.Name, found.UserID, conv.Name, userID)
	}
}

func TestConversationDuplicateNameSameOwner(t *testing.T) {
	db := newTestDB(t)
	repo := NewConversationRepository(db)
	userID := mustCreateUser(t, db, "alice@example.com")

	first := &model.Conversation{UUID: uuid.NewString(), Name: "ma conversation", UserID: userID}
	if err := repo.Create(first); err != nil {
		t.Fatalf("Create first: %v", err)
	}

	dup := &model.Conversation{UUID: uuid.NewString(), Name: "ma conversation", UserID: userID}
	err := repo.Create(dup)
	if !errors.Is(err, ErrDuplicateConversationName) {
		t.Fatalf("Create dup err = %v, want ErrDuplicateConversationName", err)
	}
}

func TestConversationSameNameDifferentOwners(t *testing.T) {
	db := newTestDB(t)
	repo := NewConversationRepository(db)
	aliceID := mustCreateUser(t, db, "alice@example.com")
	bobID := mustCreateUser(t, db, "bob@example.com")

	// 名称唯一性以所有者为范围，不同用户可以重名
	if err := repo.Create(&model.Conversation{UUID: uuid.NewString(), Name: "assurance auto", UserID: aliceID}); err != nil {
		t.Fatalf("Create alice: %v", err)
	}
	if err := repo.Create(&model.Conversation{UUID: uuid.NewString(), Name: "assurance auto", UserID: bobID}); err != nil {
		t.Fatalf("Create bob: %v", err)
	}
}

func TestConversationRename(t *testing.T) {
	db := newTestDB(t)
	repo := NewConversationRepository(db)
	userID := mustCreateUser(t, db, "alice@example.com")

	conv := &model.Conversation{UUID: uuid.NewString(), Name: "ancien nom", UserID: userID}
	if err := repo.Create(conv); err != nil {
		t.Fatalf("Create: %v", err)
	}

	ok, err := repo.RenameByUUID(conv.UUID, "nouveau nom")
	if err != nil {
		t.Fatalf("RenameByUUID: %v", err)
	}
	if !ok {
		t.Fatalf("RenameByUUID ok = false, want true")
	}

	found, err := repo.FindByUUID(conv.UUID)
	if err != nil {
		t.Fatalf("FindByUUID: %v", err)
	}
	if found.Name != "nouveau nom" {
		t.Fatalf("Name = %q, want %q", found.Name, "nouveau nom")
	}

	// 不存在的 UUID 返回 (false, nil)
	ok, err = repo.RenameByUUID(uuid.NewString(), "x")
	if err != nil {
		t.Fatalf("RenameByUUID absent: %v", err)
	}
	if ok {
		t.Fatalf("RenameByUUID absent ok = true, want false")
	}
}

func TestConversationRenameToExistingName(t *testing.T) {
	db := newTestDB(t)
	repo := NewConversationRepository(db)
	userID := mustCreateUser(t, db, "alice@example.com")

	if err := repo.Create(&model.Conversation{UUID: uuid.NewString(), Name: "premier", UserID: userID}); err != nil {
		t.Fatalf("Create premier: %v", err)
	}
	second := &model.Conversation{UUID: uuid.NewString(), Name: "second", UserID: userID}
	if err := repo.Create(second); err != nil {
		t.Fatalf("Create second: %v", err)
	}

	_, err := repo.RenameByUUID(second.UUID, "premier")
	if !errors.Is(err, ErrDuplicateConversationName) {
		t.Fatalf("RenameByUUID err = %v, want ErrDuplicateConversationName", err)
	}
}

func TestConversationOwns(t *testing.T) {
	db := newTestDB(t)
	repo := NewConversationRepository(db)
	aliceID := mustCreateUser(t, db, "alice@example.com")
	bobID := mustCreateUser(t, db, "bob@example.com")

	conv := &model.Conversation{UUID: uuid.NewString(), Name: "conv alice", UserID: aliceID}
	if err := repo.Create(conv); err != nil {
		t.Fatalf("Create: %v", err)
	}

	ok, err := repo.Owns(aliceID, conv.UUID)
	if err != nil || !ok {
		t.Fatalf("Owns(alice) = (%v, %v), want (true, nil)", ok, err)
	}

	// 他人的对话与不存在的对话从谓词看不可区分
	ok, err = repo.Owns(bobID, conv.UUID)
	if err != nil || ok {
		t.Fatalf("Owns(bob) = (%v, %v), want (false, nil)", ok, err)
	}
	ok, err = repo.Owns(aliceID, uuid.NewString())
	if err != nil || ok {
		t.Fatalf("Owns(absent) = (%v, %v), want (false, nil)", ok, err)
	}
}

func TestConversationListByOwnerOrder(t *testing.T) {
	db := newTestDB(t)
	repo := NewConversationRepository(db)
	aliceID := mustCreateUser(t, db, "alice@example.com")
	bobID := mustCreateUser(t, db, "bob@example.com")

	names := []string{"premier", "deuxième", "troisième"}
	for _, name := range names {
		if err := repo.Create(&model.Conversation{UUID: uuid.NewString(), Name: name, UserID: aliceID}); err != nil {
			t.Fatalf("Create %s: %v", name, err)
		}
	}
	if err := repo.Create(&model.Conversation{UUID: uuid.NewString(), Name: "conv bob", UserID: bobID}); err != nil {
		t.Fatalf("Create bob: %v", err)
	}

	conversations, err := repo.ListByOwner(aliceID)
	if err != nil {
		t.Fatalf("ListByOwner: %v", err)
	}
	if len(conversations) != len(names) {
		t.Fatalf("len = %d, want %d", len(conversations), len(names))
	}
	for i, name := range names {
		if conversations[i].Name != name {
			t.Fatalf("conversations[%d].Name = %q, want %q", i, conversations[i].Name, name)
		}
	}
}

func TestConversationDeleteCascades(t *testing.T) {
	db := newTestDB(t)
	convRepo := NewConversationRepository(db)
	msgRepo := NewMessageRepository(db)
	userID := mustCreateUser(t, db, "alice@example.com")

	conv := &model.Conversation{UUID: uuid.NewString(), Name: "à supprimer", UserID: userID}
	if err := convRepo.Create(conv); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := msgRepo.AppendUserMessage(conv.UUID, "bonjour", 5, 0.001); err != nil {
		t.Fatalf("AppendUserMessage: %v", err)
	}
	if err := msgRepo.AppendAIMessage(conv.UUID, "bonjour, comment puis-je aider ?", 9, 0.001); err != nil {
		t.Fatalf("AppendAIMessage: %v", err)
	}

	ok, err := convRepo.DeleteByUUID(conv.UUID)
	if err != nil {
		t.Fatalf("DeleteByUUID: %v", err)
	}
	if !ok {
		t.Fatalf("DeleteByUUID ok = false, want true")
	}

	// 消息随对话级联删除
	var count int64
	if err := db.Model(&model.Message{}).Where("conversation_uuid = ?", conv.UUID).Count(&count).Error; err != nil {
		t.Fatalf("count messages: %v", err)
	}
	if count != 0 {
		t.Fatalf("orphan messages = %d, want 0", count)
	}

	// 再删一次返回 (false, nil)
	ok, err = convRepo.DeleteByUUID(conv.UUID)
	if err != nil {
		t.Fatalf("DeleteByUUID again: %v", err)
	}
	if ok {
		t.Fatalf("DeleteByUUID again ok = true, want false")
	}
}

func TestConversationNameExists(t *testing.T) {
	db := newTestDB(t)
	repo := NewConversationRepository(db)
	aliceID := mustCreateUser(t, db, "alice@example.com")
	bobID := mustCreateUser(t, db, "bob@example.com")

	if err := repo.Create(&model.Conversation{UUID: uuid.NewString(), Name: "existant", UserID: aliceID}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	exists, err := repo.NameExists(aliceID, "existant")
	if err != nil || !exists {
		t.Fatalf("NameExists(alice) = (%v, %v), want (true, nil)", exists, err)
	}
	exists, err = repo.NameExists(bobID, "existant")
	if err != nil || exists {
		t.Fatalf("NameExists(bob) = (%v, %v), want (false, nil)", exists, err)
	}
}

package repositories

import (
	"errors"
	"path/filepath"
	"testing"

	"tg-gemini/internal/database"
	"tg-gemini/internal/models"
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

func testUser(id int64) models.User {
	return models.User{
		Id:              id,
		ChatId:          id * 100,
		Username:        "alice",
		FirstName:       "Alice",
		FirstSeen:       1000,
		LastInteraction: 1000,
		CurrentChatMode: "assistant",
		CurrentModel:    "gemini-1.5-flash",
		UsedTokens:      map[string]models.TokenUsage{},
	}
}

func TestRegisterIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	repo := NewUserRepo(db)

	if err := repo.Register(testUser(1)); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := repo.SetCurrentChatMode(1, "code_assistant"); err != nil {
		t.Fatalf("SetCurrentChatMode failed: %v", err)
	}

	// Re-registering must not reset anything.
	if err := repo.Register(testUser(1)); err != nil {
		t.Fatalf("second Register failed: %v", err)
	}

	user, err := repo.GetUser(1)
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if user.CurrentChatMode != "code_assistant" {
		t.Errorf("re-registration overwrote chat mode: got %q", user.CurrentChatMode)
	}
}

func TestGetUserNotFound(t *testing.T) {
	repo := NewUserRepo(newTestDB(t))
	if _, err := repo.GetUser(42); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSettersRequireExistingUser(t *testing.T) {
	repo := NewUserRepo(newTestDB(t))
	if err := repo.SetCurrentChatMode(42, "assistant"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := repo.SetLastInteraction(42, 1234); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestAddUsedTokensAccumulates(t *testing.T) {
	repo := NewUserRepo(newTestDB(t))
	if err := repo.Register(testUser(1)); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if err := repo.AddUsedTokens(1, "gemini-1.5-flash", 5, 3); err != nil {
		t.Fatalf("AddUsedTokens failed: %v", err)
	}
	if err := repo.AddUsedTokens(1, "gemini-1.5-flash", 2, 1); err != nil {
		t.Fatalf("AddUsedTokens failed: %v", err)
	}
	if err := repo.AddUsedTokens(1, "gemini-1.5-pro", 10, 20); err != nil {
		t.Fatalf("AddUsedTokens failed: %v", err)
	}

	user, err := repo.GetUser(1)
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	flash := user.UsedTokens["gemini-1.5-flash"]
	if flash.InputTokens != 7 || flash.OutputTokens != 4 {
		t.Errorf("expected (7, 4) for flash, got (%d, %d)", flash.InputTokens, flash.OutputTokens)
	}
	pro := user.UsedTokens["gemini-1.5-pro"]
	if pro.InputTokens != 10 || pro.OutputTokens != 20 {
		t.Errorf("expected (10, 20) for pro, got (%d, %d)", pro.InputTokens, pro.OutputTokens)
	}
}

func TestCreateDialogRequiresUser(t *testing.T) {
	repo := NewDialogRepo(newTestDB(t))
	if _, err := repo.CreateDialog(42); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateDialogSnapshotsUserPreferences(t *testing.T) {
	db := newTestDB(t)
	userRepo := NewUserRepo(db)
	dialogRepo := NewDialogRepo(db)

	if err := userRepo.Register(testUser(1)); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := userRepo.SetCurrentChatMode(1, "text_improver"); err != nil {
		t.Fatalf("SetCurrentChatMode failed: %v", err)
	}

	dialog, err := dialogRepo.CreateDialog(1)
	if err != nil {
		t.Fatalf("CreateDialog failed: %v", err)
	}
	if dialog.ChatMode != "text_improver" || dialog.Model != "gemini-1.5-flash" {
		t.Errorf("unexpected snapshot: mode %q model %q", dialog.ChatMode, dialog.Model)
	}
	if dialog.Id == "" {
		t.Error("expected non-empty dialog id")
	}
}

func TestDialogMessagesRoundTrip(t *testing.T) {
	db := newTestDB(t)
	userRepo := NewUserRepo(db)
	dialogRepo := NewDialogRepo(db)

	if err := userRepo.Register(testUser(1)); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	dialog, err := dialogRepo.CreateDialog(1)
	if err != nil {
		t.Fatalf("CreateDialog failed: %v", err)
	}

	turns, err := dialogRepo.GetMessages(dialog.Id, 1)
	if err != nil {
		t.Fatalf("GetMessages failed: %v", err)
	}
	if len(turns) != 0 {
		t.Fatalf("expected fresh dialog to be empty, got %d turns", len(turns))
	}

	want := []models.Turn{
		{User: "hi", Bot: "hello", Date: 1},
		{User: "how are you", Bot: "fine", Date: 2},
	}
	if err := dialogRepo.ReplaceMessages(dialog.Id, 1, want); err != nil {
		t.Fatalf("ReplaceMessages failed: %v", err)
	}

	turns, err = dialogRepo.GetMessages(dialog.Id, 1)
	if err != nil {
		t.Fatalf("GetMessages failed: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(turns))
	}
	for i := range want {
		if turns[i] != want[i] {
			t.Errorf("turn %d: got %+v, want %+v", i, turns[i], want[i])
		}
	}
}

func TestDialogOwnershipIsEnforced(t *testing.T) {
	db := newTestDB(t)
	userRepo := NewUserRepo(db)
	dialogRepo := NewDialogRepo(db)

	alice := testUser(1)
	bob := testUser(2)
	bob.Username = "bob"
	if err := userRepo.Register(alice); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := userRepo.Register(bob); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	dialog, err := dialogRepo.CreateDialog(1)
	if err != nil {
		t.Fatalf("CreateDialog failed: %v", err)
	}

	if _, err := dialogRepo.GetMessages(dialog.Id, 2); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound for foreign reader, got %v", err)
	}
	if err := dialogRepo.ReplaceMessages(dialog.Id, 2, nil); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound for foreign writer, got %v", err)
	}
}

func TestListDialogsNewestFirst(t *testing.T) {
	db := newTestDB(t)
	userRepo := NewUserRepo(db)
	dialogRepo := NewDialogRepo(db)

	if err := userRepo.Register(testUser(1)); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	var ids []string
	for i := 0; i < 3; i++ {
		dialog, err := dialogRepo.CreateDialog(1)
		if err != nil {
			t.Fatalf("CreateDialog failed: %v", err)
		}
		// Spread start times apart; CreateDialog stamps wall-clock seconds.
		if _, err := db.Exec(`UPDATE dialogs SET start_time = ? WHERE id = ?`, 1000+i, dialog.Id); err != nil {
			t.Fatalf("failed to adjust start_time: %v", err)
		}
		ids = append(ids, dialog.Id)
	}

	metas, err := dialogRepo.ListDialogs(1)
	if err != nil {
		t.Fatalf("ListDialogs failed: %v", err)
	}
	if len(metas) != 3 {
		t.Fatalf("expected 3 dialogs, got %d", len(metas))
	}
	for i, meta := range metas {
		if meta.Id != ids[len(ids)-1-i] {
			t.Errorf("position %d: got %s, want %s", i, meta.Id, ids[len(ids)-1-i])
		}
	}
}

package source

import (
	"context"
	"os"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type fakeTelegramAPI struct {
	updates []tgbotapi.Update
	asked   []int
}

func (f *fakeTelegramAPI) GetUpdates(config tgbotapi.UpdateConfig) ([]tgbotapi.Update, error) {
	f.asked = append(f.asked, config.Offset)
	var out []tgbotapi.Update
	for _, u := range f.updates {
		if u.UpdateID >= config.Offset {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeTelegramAPI) GetMe() (tgbotapi.User, error) {
	return tgbotapi.User{UserName: "pigeon_bot"}, nil
}

func telegramUpdate(updateID int, userID int64, userName, text string) tgbotapi.Update {
	return tgbotapi.Update{
		UpdateID: updateID,
		Message: &tgbotapi.Message{
			MessageID: updateID,
			From:      &tgbotapi.User{ID: userID, UserName: userName},
			Date:      1700000100,
			Text:      text,
		},
	}
}

func TestTelegramSourceWritesAuthorizedMessage(t *testing.T) {
	inbox := t.TempDir()
	api := &fakeTelegramAPI{updates: []tgbotapi.Update{
		telegramUpdate(10, 42, "jane", "ship the feature"),
	}}

	src := NewTelegramSource(api, inbox, []int64{42}, nil)
	file, err := src.Poll(context.Background())
	if err != nil {
		t.Fatalf("Poll() error: %v", err)
	}
	if file == nil {
		t.Fatal("Poll() returned nil, want a file")
	}
	if file.Origin != OriginTelegram {
		t.Errorf("Origin = %q", file.Origin)
	}

	content, _ := os.ReadFile(file.Path)
	if !strings.Contains(string(content), "ship the feature") {
		t.Errorf("content missing message text:\n%s", content)
	}
}

func TestTelegramSourceSkipsUnauthorizedAndAdvancesOffset(t *testing.T) {
	api := &fakeTelegramAPI{updates: []tgbotapi.Update{
		telegramUpdate(10, 99, "stranger", "hello"),
	}}

	src := NewTelegramSource(api, t.TempDir(), []int64{42}, nil)
	file, err := src.Poll(context.Background())
	if err != nil {
		t.Fatalf("Poll() error: %v", err)
	}
	if file != nil {
		t.Errorf("unauthorized message produced file %+v", file)
	}
	if src.offset != 11 {
		t.Errorf("offset = %d, want 11 (past the skipped update)", src.offset)
	}
}

func TestTelegramSourceSkipsEmptyText(t *testing.T) {
	api := &fakeTelegramAPI{updates: []tgbotapi.Update{
		telegramUpdate(10, 42, "jane", "   "),
		telegramUpdate(11, 42, "jane", "real content"),
	}}

	src := NewTelegramSource(api, t.TempDir(), []int64{42}, nil)
	file, err := src.Poll(context.Background())
	if err != nil || file == nil {
		t.Fatalf("Poll() = %v, %v", file, err)
	}
	content, _ := os.ReadFile(file.Path)
	if !strings.Contains(string(content), "real content") {
		t.Errorf("expected the non-empty message, got:\n%s", content)
	}
}

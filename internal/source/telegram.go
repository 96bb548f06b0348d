package source

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	pigeonErrors "github.com/jjurach/pigeon/internal/errors"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramAPI is the slice of the bot API the source uses. *tgbotapi.BotAPI
// satisfies it.
type TelegramAPI interface {
	GetUpdates(config tgbotapi.UpdateConfig) ([]tgbotapi.Update, error)
	GetMe() (tgbotapi.User, error)
}

// TelegramSource polls a bot's pending updates and renders messages from
// authorized users into markdown files in the inbox.
type TelegramSource struct {
	api             TelegramAPI
	inboxDir        string
	authorizedUsers map[int64]struct{}
	logger          *slog.Logger

	// offset is the next update ID to request. Advancing past an update
	// acknowledges it to Telegram, filtered or not.
	offset int
}

func NewTelegramSource(api TelegramAPI, inboxDir string, authorizedUsers []int64, logger *slog.Logger) *TelegramSource {
	if logger == nil {
		logger = slog.Default()
	}

	authorized := make(map[int64]struct{}, len(authorizedUsers))
	for _, id := range authorizedUsers {
		authorized[id] = struct{}{}
	}

	return &TelegramSource{
		api:             api,
		inboxDir:        inboxDir,
		authorizedUsers: authorized,
		logger:          logger.With("source", "telegram"),
	}
}

func (t *TelegramSource) Name() string { return string(OriginTelegram) }

func (t *TelegramSource) Available(ctx context.Context) error {
	me, err := t.api.GetMe()
	if err != nil {
		return pigeonErrors.Transient("telegram connection failed: " + err.Error())
	}
	t.logger.Debug("Telegram auth ok", "bot", me.UserName)
	return nil
}

func (t *TelegramSource) Poll(ctx context.Context) (*SourceFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	updates, err := t.api.GetUpdates(tgbotapi.UpdateConfig{
		Offset: t.offset,
		Limit:  100,
	})
	if err != nil {
		return nil, pigeonErrors.Transient("get updates: " + err.Error())
	}

	for _, update := range updates {
		t.offset = update.UpdateID + 1

		msg := update.Message
		if msg == nil || msg.From == nil {
			continue
		}
		if _, ok := t.authorizedUsers[msg.From.ID]; !ok {
			t.logger.Debug("Skipping unauthorized user", "user_id", msg.From.ID)
			continue
		}
		text := strings.TrimSpace(msg.Text)
		if text == "" {
			continue
		}

		file, err := t.messageToFile(msg, text)
		if err != nil {
			return nil, err
		}
		return file, nil
	}

	return nil, nil
}

func (t *TelegramSource) messageToFile(msg *tgbotapi.Message, text string) (*SourceFile, error) {
	ts := time.Unix(int64(msg.Date), 0)
	userName := msg.From.UserName
	if userName == "" {
		userName = strings.TrimSpace(msg.From.FirstName + " " + msg.From.LastName)
	}
	if userName == "" {
		userName = fmt.Sprintf("%d", msg.From.ID)
	}

	content := fmt.Sprintf(`# Telegram Message

**Date:** %s
**User:** %s (%d)
**Source:** telegram

---

%s
`, ts.Format(time.RFC3339), userName, msg.From.ID, text)

	filename := fmt.Sprintf("%s-telegram-%s.md",
		ts.Format("20060102-150405"),
		strings.ToLower(Sanitize(strings.ReplaceAll(userName, " ", "-"))))

	filePath := filepath.Join(t.inboxDir, filename)
	filePath, err := UniquePath(filePath)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(filePath, []byte(content), 0644); err != nil {
		return nil, err
	}

	t.logger.Info("Created message file", "file", filepath.Base(filePath), "user", userName)

	return &SourceFile{
		Path:      filePath,
		Origin:    OriginTelegram,
		Timestamp: ts.Format(time.RFC3339),
		Metadata: map[string]string{
			"user_id":   fmt.Sprintf("%d", msg.From.ID),
			"user_name": userName,
			"msg_id":    fmt.Sprintf("%d", msg.MessageID),
		},
	}, nil
}

package source

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	pigeonErrors "github.com/jjurach/pigeon/internal/errors"

	"github.com/slack-go/slack"
)

// SlackAPI is the slice of the Slack Web API the source uses. *slack.Client
// satisfies it; tests substitute a fake.
type SlackAPI interface {
	AuthTestContext(ctx context.Context) (*slack.AuthTestResponse, error)
	GetConversationsContext(ctx context.Context, params *slack.GetConversationsParameters) ([]slack.Channel, string, error)
	GetConversationHistoryContext(ctx context.Context, params *slack.GetConversationHistoryParameters) (*slack.GetConversationHistoryResponse, error)
	GetUserInfoContext(ctx context.Context, user string) (*slack.User, error)
	GetConversationInfoContext(ctx context.Context, input *slack.GetConversationInfoInput) (*slack.Channel, error)
}

// SlackSource polls configured channels and renders authorized messages into
// markdown files in the inbox. One message per Poll call.
type SlackSource struct {
	api             SlackAPI
	inboxDir        string
	channels        []string
	authorizedUsers map[string]struct{}
	logger          *slog.Logger

	// lastSeenTS tracks the newest fetched message timestamp per resolved
	// channel ID. It advances even when every message is filtered out, so a
	// rejected message is never fetched twice.
	lastSeenTS   map[string]string
	userCache    map[string]*slack.User
	channelNames map[string]string
}

// NewSlackSource builds a source over the given API. channels may contain
// canonical IDs or plain names; authorizedUsers is the allow list of Slack
// user IDs.
func NewSlackSource(api SlackAPI, inboxDir string, channels, authorizedUsers []string, logger *slog.Logger) *SlackSource {
	if logger == nil {
		logger = slog.Default()
	}

	authorized := make(map[string]struct{}, len(authorizedUsers))
	for _, u := range authorizedUsers {
		authorized[u] = struct{}{}
	}

	return &SlackSource{
		api:             api,
		inboxDir:        inboxDir,
		channels:        channels,
		authorizedUsers: authorized,
		logger:          logger.With("source", "slack"),
		lastSeenTS:      make(map[string]string),
		userCache:       make(map[string]*slack.User),
		channelNames:    make(map[string]string),
	}
}

func (s *SlackSource) Name() string { return string(OriginSlack) }

func (s *SlackSource) Available(ctx context.Context) error {
	resp, err := s.api.AuthTestContext(ctx)
	if err != nil {
		return pigeonErrors.Transient("slack auth test failed: " + err.Error())
	}
	s.logger.Debug("Slack auth ok", "user_id", resp.UserID, "team_id", resp.TeamID)
	return nil
}

func (s *SlackSource) Poll(ctx context.Context) (*SourceFile, error) {
	if len(s.lastSeenTS) == 0 {
		if err := s.resolveChannels(ctx); err != nil {
			return nil, err
		}
	}

	for channelID := range s.lastSeenTS {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		messages, err := s.fetchNewMessages(ctx, channelID)
		if err != nil {
			s.logger.Error("History fetch failed", "channel", channelID, "error", err)
			continue
		}

		// History arrives newest-first; process oldest-first.
		for i := len(messages) - 1; i >= 0; i-- {
			file, err := s.messageToFile(ctx, messages[i], channelID)
			if err != nil {
				s.logger.Error("Failed to render message", "channel", channelID, "error", err)
				continue
			}
			if file != nil {
				return file, nil
			}
		}
	}

	return nil, nil
}

// resolveChannels maps configured channel names to canonical IDs, once per
// process. Entries that already look like IDs pass through.
func (s *SlackSource) resolveChannels(ctx context.Context) error {
	byName := make(map[string]string)
	cursor := ""
	for {
		channels, next, err := s.api.GetConversationsContext(ctx, &slack.GetConversationsParameters{
			Types:  []string{"public_channel", "private_channel"},
			Cursor: cursor,
			Limit:  200,
		})
		if err != nil {
			return pigeonErrors.Transient("list channels: " + err.Error())
		}
		for _, ch := range channels {
			byName[ch.Name] = ch.ID
		}
		if next == "" {
			break
		}
		cursor = next
	}

	for _, channel := range s.channels {
		switch {
		case strings.HasPrefix(channel, "C"):
			s.lastSeenTS[channel] = "0"
		case byName[channel] != "":
			s.lastSeenTS[byName[channel]] = "0"
		default:
			s.logger.Warn("Channel not found", "channel", channel)
		}
	}

	s.logger.Info("Resolved slack channels", "count", len(s.lastSeenTS))
	return nil
}

func (s *SlackSource) fetchNewMessages(ctx context.Context, channelID string) ([]slack.Message, error) {
	resp, err := s.api.GetConversationHistoryContext(ctx, &slack.GetConversationHistoryParameters{
		ChannelID: channelID,
		Oldest:    s.lastSeenTS[channelID],
		Limit:     100,
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Messages) > 0 {
		// Newest message is first. Advance unconditionally for forward
		// progress, even if every message gets filtered below.
		s.lastSeenTS[channelID] = resp.Messages[0].Timestamp
	}
	return resp.Messages, nil
}

// messageToFile filters one message and, if it survives, writes it to the
// inbox as markdown. A nil, nil return means the message was filtered.
func (s *SlackSource) messageToFile(ctx context.Context, msg slack.Message, channelID string) (*SourceFile, error) {
	userID := msg.User
	if userID == "" || !s.isAuthorized(userID, msg.BotID) {
		return nil, nil
	}

	// Thread replies are skipped; only top-level conversation counts.
	if msg.ThreadTimestamp != "" && msg.ThreadTimestamp != msg.Timestamp {
		return nil, nil
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return nil, nil
	}

	userName := s.displayName(ctx, userID)
	channelName := s.channelName(ctx, channelID)
	ts := parseSlackTimestamp(msg.Timestamp)

	content := fmt.Sprintf(`# Slack Message

**Date:** %s
**Channel:** #%s
**User:** %s (%s)
**Source:** slack

---

%s
`, ts.Format(time.RFC3339), channelName, userName, userID, text)

	filename := fmt.Sprintf("%s-slack-%s.md",
		ts.Format("20060102-150405"),
		strings.ToLower(Sanitize(strings.ReplaceAll(userName, " ", "-"))))

	filePath := filepath.Join(s.inboxDir, filename)
	filePath, err := UniquePath(filePath)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(filePath, []byte(content), 0644); err != nil {
		return nil, err
	}

	s.logger.Info("Created message file", "file", filepath.Base(filePath), "channel", channelName)

	return &SourceFile{
		Path:      filePath,
		Origin:    OriginSlack,
		Timestamp: ts.Format(time.RFC3339),
		Metadata: map[string]string{
			"channel":      channelID,
			"channel_name": channelName,
			"user_id":      userID,
			"user_name":    userName,
			"message_ts":   msg.Timestamp,
		},
	}, nil
}

// isAuthorized rejects bot authors (B-prefixed IDs or a bot_id field) and
// anyone outside the allow list.
func (s *SlackSource) isAuthorized(userID, botID string) bool {
	if botID != "" || strings.HasPrefix(userID, "B") {
		return false
	}
	_, ok := s.authorizedUsers[userID]
	return ok
}

func (s *SlackSource) displayName(ctx context.Context, userID string) string {
	if user, ok := s.userCache[userID]; ok {
		return preferredName(user, userID)
	}

	user, err := s.api.GetUserInfoContext(ctx, userID)
	if err != nil {
		s.logger.Warn("Failed to get user info", "user", userID, "error", err)
		return userID
	}
	s.userCache[userID] = user
	return preferredName(user, userID)
}

func preferredName(user *slack.User, fallback string) string {
	if user.RealName != "" {
		return user.RealName
	}
	if user.Name != "" {
		return user.Name
	}
	return fallback
}

func (s *SlackSource) channelName(ctx context.Context, channelID string) string {
	if name, ok := s.channelNames[channelID]; ok {
		return name
	}

	channel, err := s.api.GetConversationInfoContext(ctx, &slack.GetConversationInfoInput{
		ChannelID: channelID,
	})
	if err != nil {
		s.logger.Warn("Failed to get channel info", "channel", channelID, "error", err)
		return channelID
	}
	s.channelNames[channelID] = channel.Name
	return channel.Name
}

// parseSlackTimestamp converts a "1700000000.000100"-style ts to a time.
func parseSlackTimestamp(ts string) time.Time {
	seconds := ts
	if i := strings.IndexByte(ts, '.'); i >= 0 {
		seconds = ts[:i]
	}
	n, err := strconv.ParseInt(seconds, 10, 64)
	if err != nil {
		return time.Now()
	}
	return time.Unix(n, 0)
}

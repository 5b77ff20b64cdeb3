package notify

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramSender delivers notifications through the Telegram Bot API. The
// bot is created on first use because creating it calls getMe.
type TelegramSender struct {
	token      string
	chatID     int64
	endpoint   string
	client     *http.Client
	maxRetries int
	retryDelay time.Duration

	mu  sync.Mutex
	bot *tgbotapi.BotAPI
}

// NewTelegramSender creates a TelegramSender for the given bot token and
// numeric chat id.
func NewTelegramSender(token, chatID string) (*TelegramSender, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(chatID), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("telegram: invalid chat id %q: %w", chatID, err)
	}
	return &TelegramSender{
		token:      token,
		chatID:     id,
		endpoint:   tgbotapi.APIEndpoint,
		client:     &http.Client{Timeout: 10 * time.Second},
		maxRetries: 3,
		retryDelay: time.Second,
	}, nil
}

// Send posts the notification as a MarkdownV2 message with a bold title,
// retrying with linear backoff.
func (t *TelegramSender) Send(ctx context.Context, title, message string) error {
	bot, err := t.botAPI()
	if err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(t.chatID, fmt.Sprintf("*%s*\n%s", escapeMarkdownV2(title), escapeMarkdownV2(message)))
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	msg.DisableWebPagePreview = true

	var lastErr error
	for i := 0; i < t.maxRetries; i++ {
		if _, err := bot.Send(msg); err == nil {
			return nil
		} else {
			lastErr = err
		}
		if i == t.maxRetries-1 {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("telegram: send: %w", ctx.Err())
		case <-time.After(t.retryDelay * time.Duration(i+1)):
		}
	}
	return fmt.Errorf("telegram: send failed after %d attempts: %w", t.maxRetries, lastErr)
}

// Name returns the sender identifier.
func (t *TelegramSender) Name() string {
	return "telegram"
}

func (t *TelegramSender) botAPI() (*tgbotapi.BotAPI, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.bot != nil {
		return t.bot, nil
	}
	bot, err := tgbotapi.NewBotAPIWithClient(t.token, t.endpoint, t.client)
	if err != nil {
		return nil, fmt.Errorf("telegram: create bot: %w", err)
	}
	t.bot = bot
	return bot, nil
}

var markdownV2Replacer = strings.NewReplacer(
	"\\", "\\\\",
	"_", "\\_", "*", "\\*", "[", "\\[", "]", "\\]", "(", "\\(", ")", "\\)",
	"~", "\\~", "`", "\\`", ">", "\\>", "#", "\\#", "+", "\\+", "-", "\\-",
	"=", "\\=", "|", "\\|", "{", "\\{", "}", "\\}", ".", "\\.", "!", "\\!",
)

// escapeMarkdownV2 escapes the characters MarkdownV2 reserves.
func escapeMarkdownV2(s string) string {
	return markdownV2Replacer.Replace(s)
}

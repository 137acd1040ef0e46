package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Sender delivers a message to a user's external messenger account.
type Sender interface {
	Send(ctx context.Context, chatID, text string) error
}

// TelegramSender delivers messages through the Telegram Bot API.
type TelegramSender struct {
	client *resty.Client
	token  string
}

// NewTelegramSender creates a sender for the given bot token. baseURL is the
// API root, normally https://api.telegram.org.
func NewTelegramSender(baseURL, token string) *TelegramSender {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(2)
	return &TelegramSender{client: client, token: token}
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (s *TelegramSender) Send(ctx context.Context, chatID, text string) error {
	var result telegramResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"chat_id":    chatID,
			"text":       text,
			"parse_mode": "HTML",
		}).
		SetResult(&result).
		SetError(&result).
		Post(fmt.Sprintf("/bot%s/sendMessage", s.token))
	if err != nil {
		return fmt.Errorf("calling telegram: %w", err)
	}
	if resp.IsError() || !result.OK {
		return fmt.Errorf("telegram rejected message: %s", result.Description)
	}
	return nil
}

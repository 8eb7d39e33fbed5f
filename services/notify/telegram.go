package notify

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/codes"

	"github.com/go-resty/resty/v2"
)

// telegramMessageLimit is slightly under Telegram's 4096-char cap,
// leaving headroom for entity expansion.
const telegramMessageLimit = 4000

const telegramApiUrl = "https://api.telegram.org"

type TelegramConfig struct {
	BotToken string `json:"botToken"`
	ChatId   string `json:"chatId"`
	// ApiUrl overrides the Telegram API endpoint, used in tests.
	ApiUrl string `json:"apiUrl,omitempty"`
}

type Telegram struct {
	config TelegramConfig
	http   *resty.Client
}

func NewTelegram(config TelegramConfig) *Telegram {
	url := config.ApiUrl
	if url == "" {
		url = telegramApiUrl
	}
	return &Telegram{
		config: config,
		http:   resty.New().SetBaseURL(url),
	}
}

// Send posts the digest to the configured chat, split into multiple
// messages when it exceeds Telegram's length cap. The subject is not
// repeated: the digest text already opens with its own header.
func (t *Telegram) Send(ctx context.Context, subject, text string) error {
	ctx, span := tracer.Start(ctx, "telegram:Send")
	defer span.End()

	for _, chunk := range splitMessage(text, telegramMessageLimit) {
		res, err := t.http.R().
			SetContext(ctx).
			SetBody(map[string]any{
				"chat_id":                  t.config.ChatId,
				"text":                     chunk,
				"disable_web_page_preview": true,
			}).
			Post(fmt.Sprintf("/bot%s/sendMessage", t.config.BotToken))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("telegram: %w", err)
		}
		if res.IsError() {
			err := fmt.Errorf("telegram: status %d: %s", res.StatusCode(), res.String())
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
	}
	return nil
}

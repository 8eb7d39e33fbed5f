package notify

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/codes"

	"github.com/go-resty/resty/v2"
)

// discordMessageLimit is Discord's hard cap on webhook content.
const discordMessageLimit = 2000

type DiscordConfig struct {
	WebhookUrl string `json:"webhookUrl"`
}

type Discord struct {
	config DiscordConfig
	http   *resty.Client
}

func NewDiscord(config DiscordConfig) *Discord {
	return &Discord{
		config: config,
		http:   resty.New(),
	}
}

func (d *Discord) Send(ctx context.Context, subject, text string) error {
	ctx, span := tracer.Start(ctx, "discord:Send")
	defer span.End()

	for _, chunk := range splitMessage(text, discordMessageLimit) {
		res, err := d.http.R().
			SetContext(ctx).
			SetBody(map[string]any{"content": chunk}).
			Post(d.config.WebhookUrl)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("discord: %w", err)
		}
		if res.IsError() {
			err := fmt.Errorf("discord: status %d: %s", res.StatusCode(), res.String())
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
	}
	return nil
}

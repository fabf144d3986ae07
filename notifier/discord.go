// Package notifier implements the notification sink: a Discord
// webhook for production and a log-only sink for development.
package notifier

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/webhook"
	"github.com/disgoorg/snowflake/v2"

	"github.com/duskhaven/economy/economy/interfaces"
)

// DiscordSink posts broadcasts and structured events to a Discord
// webhook channel.
type DiscordSink struct {
	client webhook.Client
}

func NewDiscordSink(id snowflake.ID, token string) *DiscordSink {
	return &DiscordSink{client: webhook.New(id, token)}
}

var _ interfaces.Notifier = (*DiscordSink)(nil)

func (s *DiscordSink) Broadcast(_ context.Context, message string) {
	if _, err := s.client.CreateMessage(discord.WebhookMessageCreate{Content: message}); err != nil {
		slog.Error("webhook broadcast failed", slog.Any("error", err))
	}
}

func (s *DiscordSink) Emit(_ context.Context, event interfaces.Event) {
	fields := make([]discord.EmbedField, 0, len(event.Payload))
	for name, value := range event.Payload {
		fields = append(fields, discord.EmbedField{
			Name:  name,
			Value: fmt.Sprintf("%v", value),
		})
	}

	embed := discord.Embed{
		Title:     event.Kind,
		Fields:    fields,
		Timestamp: &event.At,
	}
	if _, err := s.client.CreateMessage(discord.WebhookMessageCreate{Embeds: []discord.Embed{embed}}); err != nil {
		slog.Error("webhook event emit failed",
			slog.String("kind", event.Kind),
			slog.Any("error", err))
	}
}

// LogSink writes notifications to the structured log. Used when no
// webhook is configured and in tests.
type LogSink struct{}

var _ interfaces.Notifier = LogSink{}

func (LogSink) Broadcast(_ context.Context, message string) {
	slog.Info("broadcast", slog.String("message", message))
}

func (LogSink) Emit(_ context.Context, event interfaces.Event) {
	attrs := []any{
		slog.String("kind", event.Kind),
		slog.Time("at", event.At),
	}
	for name, value := range event.Payload {
		attrs = append(attrs, slog.Any(name, value))
	}
	slog.Info("event", attrs...)
}

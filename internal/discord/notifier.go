package discord

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/samber/lo"

	"communitybot/internal/security"
)

var severityColors = map[security.Severity]int{
	security.SeverityLow:      0x57F287,
	security.SeverityMedium:   0xFEE75C,
	security.SeverityHigh:     0xE67E22,
	security.SeverityCritical: 0xED4245,
}

// NotifyAlert posts a batch of security events to an alert channel as one embed.
func (a *Adapter) NotifyAlert(ctx context.Context, channelID string, events []security.Event) error {
	if len(events) == 0 {
		return nil
	}
	if _, err := a.api.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{alertEmbed(events)},
	}, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("send alert to %s: %w", channelID, err)
	}
	return nil
}

func alertEmbed(events []security.Event) *discordgo.MessageEmbed {
	worst := lo.MaxBy(events, func(a, b security.Event) bool { return a.Severity > b.Severity })
	title := fmt.Sprintf("Security alert: %s", worst.Type)
	if len(events) > 1 {
		title = fmt.Sprintf("%d security events", len(events))
	}
	shown := events
	if len(shown) > maxEmbedFields {
		shown = shown[:maxEmbedFields]
	}
	embed := &discordgo.MessageEmbed{
		Title:     title,
		Color:     severityColors[worst.Severity],
		Timestamp: worst.Timestamp.UTC().Format(time.RFC3339),
		Fields: lo.Map(shown, func(e security.Event, _ int) *discordgo.MessageEmbedField {
			return &discordgo.MessageEmbedField{
				Name:  fmt.Sprintf("[%s] %s", e.Severity, e.Type),
				Value: alertLine(e),
			}
		}),
	}
	if len(events) > len(shown) {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("%d more not shown", len(events)-len(shown))}
	}
	return embed
}

func alertLine(e security.Event) string {
	parts := []string{fmt.Sprintf("<t:%d:R>", e.Timestamp.Unix())}
	if e.UserID != "" {
		parts = append(parts, fmt.Sprintf("<@%s>", e.UserID))
	}
	keys := lo.Keys(e.Details)
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %v", k, e.Details[k]))
	}
	line := strings.Join(parts, " · ")
	if len(line) > 1024 {
		line = line[:1021] + "..."
	}
	return line
}

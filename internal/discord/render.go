package discord

import (
	"github.com/bwmarrin/discordgo"
	"github.com/samber/lo"

	"communitybot/internal/dispatcher"
)

const (
	maxButtonsPerRow = 5
	maxRows          = 5
	maxEmbedFields   = 25
	embedColor       = 0x5865F2
)

func responseData(msg dispatcher.Message) *discordgo.InteractionResponseData {
	data := &discordgo.InteractionResponseData{
		Components: components(msg.Buttons),
	}
	if embed := embedFor(msg); embed != nil {
		data.Embeds = []*discordgo.MessageEmbed{embed}
	} else {
		data.Content = msg.Content
	}
	if msg.Ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	return data
}

func webhookEdit(msg dispatcher.Message) *discordgo.WebhookEdit {
	data := responseData(msg)
	edit := &discordgo.WebhookEdit{
		Content:    &data.Content,
		Components: &data.Components,
	}
	embeds := data.Embeds
	if embeds == nil {
		embeds = []*discordgo.MessageEmbed{}
	}
	edit.Embeds = &embeds
	return edit
}

// embedFor renders titled or fielded messages as an embed; plain text stays content.
func embedFor(msg dispatcher.Message) *discordgo.MessageEmbed {
	if msg.Title == "" && len(msg.Fields) == 0 {
		return nil
	}
	fields := lo.Map(msg.Fields, func(f dispatcher.Field, _ int) *discordgo.MessageEmbedField {
		return &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline}
	})
	if len(fields) > maxEmbedFields {
		fields = fields[:maxEmbedFields]
	}
	return &discordgo.MessageEmbed{
		Title:       msg.Title,
		Description: msg.Content,
		Color:       embedColor,
		Fields:      fields,
	}
}

func components(buttons []dispatcher.Button) []discordgo.MessageComponent {
	if len(buttons) == 0 {
		return []discordgo.MessageComponent{}
	}
	rows := lo.Chunk(buttons, maxButtonsPerRow)
	if len(rows) > maxRows {
		rows = rows[:maxRows]
	}
	return lo.Map(rows, func(row []dispatcher.Button, _ int) discordgo.MessageComponent {
		return discordgo.ActionsRow{
			Components: lo.Map(row, func(b dispatcher.Button, _ int) discordgo.MessageComponent {
				return discordgo.Button{
					Label:    b.Label,
					Style:    discordgo.PrimaryButton,
					CustomID: b.CustomID,
					Disabled: b.Disabled,
				}
			}),
		}
	})
}

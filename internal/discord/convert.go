// Package discord adapts the discordgo gateway and HTTP interactions to the
// transport-neutral interaction model, and renders dispatcher replies back.
package discord

import (
	"time"

	"github.com/bwmarrin/discordgo"

	"communitybot/internal/interaction"
)

// FromInteraction converts a platform interaction. Interactions the bot does
// not route, such as autocomplete or select menus, report false.
func FromInteraction(i *discordgo.Interaction, receivedAt time.Time) (*interaction.Interaction, bool) {
	if i == nil {
		return nil, false
	}
	in := &interaction.Interaction{
		ID:         i.ID,
		GuildID:    i.GuildID,
		ChannelID:  i.ChannelID,
		Token:      i.Token,
		ReceivedAt: receivedAt,
	}

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		data := i.ApplicationCommandData()
		in.Kind = interaction.KindSlashCommand
		in.CommandName = data.Name
		in.Options = commandOptions(data.Options)
	case discordgo.InteractionMessageComponent:
		data := i.MessageComponentData()
		if data.ComponentType != discordgo.ButtonComponent {
			return nil, false
		}
		in.Kind = interaction.KindButton
		in.CustomID = data.CustomID
	default:
		return nil, false
	}

	user := i.User
	if i.Member != nil {
		user = i.Member.User
		in.Member = &interaction.Member{
			Roles:         i.Member.Roles,
			Administrator: i.Member.Permissions&discordgo.PermissionAdministrator != 0,
		}
	}
	in.User = fromUser(user)
	return in, true
}

// FromMemberAdd converts a join event.
func FromMemberAdd(m *discordgo.GuildMemberAdd, receivedAt time.Time) *interaction.Interaction {
	in := &interaction.Interaction{
		Kind:       interaction.KindMemberJoin,
		GuildID:    m.GuildID,
		ReceivedAt: receivedAt,
	}
	if m.Member != nil {
		in.User = fromUser(m.User)
		in.ID = "join:" + m.GuildID + ":" + in.User.ID
	}
	return in
}

// FromMessage converts a guild message. Direct messages report false.
func FromMessage(m *discordgo.MessageCreate, receivedAt time.Time) (*interaction.Interaction, bool) {
	if m.Message == nil || m.Author == nil || m.GuildID == "" {
		return nil, false
	}
	return &interaction.Interaction{
		ID:         m.ID,
		Kind:       interaction.KindMessage,
		User:       fromUser(m.Author),
		GuildID:    m.GuildID,
		ChannelID:  m.ChannelID,
		Content:    m.Content,
		ReceivedAt: receivedAt,
	}, true
}

func fromUser(u *discordgo.User) interaction.User {
	if u == nil {
		return interaction.User{}
	}
	out := interaction.User{ID: u.ID, Username: u.Username, Bot: u.Bot}
	// Account age comes from the snowflake; an unparsable id reads as old.
	if created, err := discordgo.SnowflakeTimestamp(u.ID); err == nil {
		out.CreatedAt = created
	}
	return out
}

func commandOptions(opts []*discordgo.ApplicationCommandInteractionDataOption) map[string]any {
	if len(opts) == 0 {
		return nil
	}
	out := make(map[string]any, len(opts))
	for _, o := range opts {
		out[o.Name] = o.Value
	}
	return out
}

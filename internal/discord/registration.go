package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/samber/lo"

	"communitybot/internal/dispatcher"
	"communitybot/internal/permission"
)

var optionTypes = map[dispatcher.OptionType]discordgo.ApplicationCommandOptionType{
	dispatcher.OptionString:  discordgo.ApplicationCommandOptionString,
	dispatcher.OptionInteger: discordgo.ApplicationCommandOptionInteger,
	dispatcher.OptionBoolean: discordgo.ApplicationCommandOptionBoolean,
	dispatcher.OptionChannel: discordgo.ApplicationCommandOptionChannel,
}

// ApplicationCommands converts the catalogue into platform definitions.
// Default member permissions only hide admin commands in the client; the
// permission evaluator stays authoritative.
func ApplicationCommands(cmds []dispatcher.Command) []*discordgo.ApplicationCommand {
	return lo.Map(cmds, func(c dispatcher.Command, _ int) *discordgo.ApplicationCommand {
		out := &discordgo.ApplicationCommand{
			Name:         c.Name,
			Description:  c.Description,
			DMPermission: lo.ToPtr(c.Policy.Capability == permission.CapabilityPublic),
			Options:      lo.Map(c.Options, func(o dispatcher.OptionSpec, _ int) *discordgo.ApplicationCommandOption { return commandOption(o) }),
		}
		if c.Policy.Capability >= permission.CapabilityAdmin {
			out.DefaultMemberPermissions = lo.ToPtr(int64(discordgo.PermissionAdministrator))
		}
		return out
	})
}

func commandOption(o dispatcher.OptionSpec) *discordgo.ApplicationCommandOption {
	out := &discordgo.ApplicationCommandOption{
		Type:        optionTypes[o.Type],
		Name:        o.Name,
		Description: o.Description,
		Required:    o.Required,
		MinValue:    o.MinValue,
		MinLength:   o.MinLength,
		Choices: lo.Map(o.Choices, func(c string, _ int) *discordgo.ApplicationCommandOptionChoice {
			return &discordgo.ApplicationCommandOptionChoice{Name: c, Value: c}
		}),
	}
	if o.MaxValue != nil {
		out.MaxValue = *o.MaxValue
	}
	if o.MaxLength != nil {
		out.MaxLength = *o.MaxLength
	}
	if o.Type == dispatcher.OptionChannel {
		out.ChannelTypes = []discordgo.ChannelType{discordgo.ChannelTypeGuildText}
	}
	return out
}

// RegisterCommands replaces the application's commands. An empty guildID
// registers them globally.
func (a *Adapter) RegisterCommands(ctx context.Context, guildID string, cmds []dispatcher.Command) ([]*discordgo.ApplicationCommand, error) {
	registered, err := a.api.ApplicationCommandBulkOverwrite(a.appID, guildID, ApplicationCommands(cmds), discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("register commands: %w", err)
	}
	if a.logger != nil {
		a.logger.InfoContext(ctx, "commands registered", "guild_id", guildID, "count", len(registered))
	}
	return registered, nil
}

// ClearCommands removes every command, globally or for one guild.
func (a *Adapter) ClearCommands(ctx context.Context, guildID string) error {
	if _, err := a.api.ApplicationCommandBulkOverwrite(a.appID, guildID, []*discordgo.ApplicationCommand{}, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("clear commands: %w", err)
	}
	return nil
}

// ListCommands returns the registered commands, globally or for one guild.
func (a *Adapter) ListCommands(ctx context.Context, guildID string) ([]*discordgo.ApplicationCommand, error) {
	cmds, err := a.api.ApplicationCommands(a.appID, guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("list commands: %w", err)
	}
	return cmds, nil
}

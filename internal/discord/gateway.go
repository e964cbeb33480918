package discord

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"

	"communitybot/internal/interaction"
)

// Intents the bot subscribes to: interactions arrive regardless, joins and
// message content feed the security monitor.
const Intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMembers |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsMessageContent

// NewSession builds an unopened gateway session.
func NewSession(token string) (*discordgo.Session, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	s.Identify.Intents = Intents
	return s, nil
}

// Gateway feeds gateway events into the dispatcher.
type Gateway struct {
	session    *discordgo.Session
	adapter    *Adapter
	dispatcher Dispatcher
	logger     *slog.Logger
	removers   []func()
}

func NewGateway(session *discordgo.Session, adapter *Adapter, d Dispatcher, logger *slog.Logger) *Gateway {
	return &Gateway{session: session, adapter: adapter, dispatcher: d, logger: logger}
}

// Open attaches the event handlers and connects.
func (g *Gateway) Open() error {
	g.removers = append(g.removers,
		g.session.AddHandler(g.onInteraction),
		g.session.AddHandler(g.onMemberAdd),
		g.session.AddHandler(g.onMessage),
		g.session.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
			if g.logger != nil {
				g.logger.Info("gateway ready", "user", r.User.Username, "guilds", len(r.Guilds))
			}
		}),
	)
	if err := g.session.Open(); err != nil {
		return fmt.Errorf("open discord gateway: %w", err)
	}
	return nil
}

// Close detaches the handlers and disconnects.
func (g *Gateway) Close() error {
	for _, remove := range g.removers {
		remove()
	}
	g.removers = nil
	return g.session.Close()
}

func (g *Gateway) onInteraction(_ *discordgo.Session, i *discordgo.InteractionCreate) {
	_ = g.adapter.HandleInteraction(g.dispatcher, i.Interaction)
}

func (g *Gateway) onMemberAdd(_ *discordgo.Session, m *discordgo.GuildMemberAdd) {
	g.observe(FromMemberAdd(m, time.Now()))
}

func (g *Gateway) onMessage(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if in, ok := FromMessage(m, time.Now()); ok {
		g.observe(in)
	}
}

func (g *Gateway) observe(in *interaction.Interaction) {
	ctx := context.Background()
	if err := g.dispatcher.Dispatch(ctx, in); err != nil && g.logger != nil {
		g.logger.WarnContext(ctx, "event dispatch failed", "kind", string(in.Kind), "error", err)
	}
}

package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"communitybot/internal/dispatcher"
	"communitybot/internal/interaction"
)

// ResponseDeadline is how long the platform waits for the first response to
// an interaction.
const ResponseDeadline = 3 * time.Second

// API is the subset of *discordgo.Session the adapter calls.
type API interface {
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	InteractionResponseEdit(interaction *discordgo.Interaction, newresp *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	Guild(guildID string, options ...discordgo.RequestOption) (*discordgo.Guild, error)
	ApplicationCommandBulkOverwrite(appID string, guildID string, commands []*discordgo.ApplicationCommand, options ...discordgo.RequestOption) ([]*discordgo.ApplicationCommand, error)
	ApplicationCommands(appID, guildID string, options ...discordgo.RequestOption) ([]*discordgo.ApplicationCommand, error)
}

// Dispatcher runs one interaction through the pipeline.
type Dispatcher interface {
	Dispatch(ctx context.Context, in *interaction.Interaction) error
}

// Adapter implements the dispatcher's Responder, the monitor's AlertNotifier
// and the permission evaluator's OwnerResolver over the platform API.
type Adapter struct {
	api      API
	appID    string
	logger   *slog.Logger
	deadline time.Duration

	// pending holds interactions that have not been acknowledged yet.
	pending sync.Map // interaction id -> *pendingReply
}

// pendingReply tracks the first response of one interaction. HTTP
// interactions hand it to the waiting request instead of calling the API.
type pendingReply struct {
	once  sync.Once
	acked chan struct{}
	http  chan *discordgo.InteractionResponse
}

func (p *pendingReply) ack() {
	p.once.Do(func() { close(p.acked) })
}

type Option func(*Adapter)

func WithLogger(logger *slog.Logger) Option {
	return func(a *Adapter) {
		a.logger = logger
	}
}

// WithResponseDeadline overrides ResponseDeadline.
func WithResponseDeadline(d time.Duration) Option {
	return func(a *Adapter) {
		a.deadline = d
	}
}

func New(api API, appID string, opts ...Option) (*Adapter, error) {
	if api == nil {
		return nil, errors.New("discord api is required")
	}
	if appID == "" {
		return nil, errors.New("application id is required")
	}
	a := &Adapter{
		api:      api,
		appID:    appID,
		deadline: ResponseDeadline,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Reply sends the interaction's response message.
func (a *Adapter) Reply(ctx context.Context, in *interaction.Interaction, msg dispatcher.Message) error {
	return a.respond(ctx, in, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: responseData(msg),
	})
}

// Defer acknowledges the interaction; the reply follows through EditReply.
func (a *Adapter) Defer(ctx context.Context, in *interaction.Interaction, ephemeral bool) error {
	resp := &discordgo.InteractionResponse{Type: discordgo.InteractionResponseDeferredChannelMessageWithSource}
	if ephemeral {
		resp.Data = &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral}
	}
	return a.respond(ctx, in, resp)
}

// EditReply replaces the deferred response.
func (a *Adapter) EditReply(ctx context.Context, in *interaction.Interaction, msg dispatcher.Message) error {
	if _, err := a.api.InteractionResponseEdit(a.platformInteraction(in), webhookEdit(msg), discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("edit interaction response: %w", err)
	}
	return nil
}

func (a *Adapter) respond(ctx context.Context, in *interaction.Interaction, resp *discordgo.InteractionResponse) error {
	if v, ok := a.pending.LoadAndDelete(in.ID); ok {
		p := v.(*pendingReply)
		if p.http != nil {
			p.http <- resp
			p.ack()
			return nil
		}
		p.ack()
	}
	if err := a.api.InteractionRespond(a.platformInteraction(in), resp, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("respond to interaction: %w", err)
	}
	return nil
}

func (a *Adapter) platformInteraction(in *interaction.Interaction) *discordgo.Interaction {
	return &discordgo.Interaction{ID: in.ID, AppID: a.appID, Token: in.Token}
}

// track registers an interaction awaiting its first response.
func (a *Adapter) track(id string, overHTTP bool) *pendingReply {
	p := &pendingReply{acked: make(chan struct{})}
	if overHTTP {
		p.http = make(chan *discordgo.InteractionResponse, 1)
	}
	a.pending.Store(id, p)
	return p
}

// dispatch runs in through d. The interaction's context is cancelled when no
// response was produced within the deadline, which suppresses the late reply.
func (a *Adapter) dispatch(d Dispatcher, in *interaction.Interaction, p *pendingReply) <-chan error {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		timer := time.NewTimer(a.deadline)
		defer timer.Stop()
		select {
		case <-p.acked:
		case <-timer.C:
			a.pending.Delete(in.ID)
			cancel()
		case <-ctx.Done():
		}
	}()
	go func() {
		defer cancel()
		defer a.pending.Delete(in.ID)
		err := d.Dispatch(ctx, in)
		if err != nil && a.logger != nil {
			a.logger.WarnContext(ctx, "interaction dispatch failed",
				"interaction_id", in.ID,
				"kind", string(in.Kind),
				"error", err,
			)
		}
		done <- err
	}()
	return done
}

// HandleInteraction dispatches a gateway interaction and waits for the pipeline.
func (a *Adapter) HandleInteraction(d Dispatcher, i *discordgo.Interaction) error {
	in, ok := FromInteraction(i, time.Now())
	if !ok {
		return nil
	}
	return <-a.dispatch(d, in, a.track(in.ID, false))
}

// GuildOwner resolves the owner of a guild.
func (a *Adapter) GuildOwner(ctx context.Context, guildID string) (string, error) {
	g, err := a.api.Guild(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("fetch guild %s: %w", guildID, err)
	}
	return g.OwnerID, nil
}

package permission

import (
	"context"
	"errors"
	"log/slog"

	"communitybot/internal/audit"
	guildmodels "communitybot/internal/guild/models"
	"communitybot/internal/interaction"
	"communitybot/pkg/requestcontext"
)

// GuildStateSource reads the per-guild state. The guild service satisfies it.
type GuildStateSource interface {
	State(ctx context.Context, guildID string) (guildmodels.State, error)
}

// RestrictionSource reports an active restriction on a user, with the reason
// shown to them. The rate limiter and the security monitor both implement it.
type RestrictionSource interface {
	Restricted(ctx context.Context, userID string) (string, bool)
}

// OwnerResolver looks up the owner of a guild on the chat platform.
type OwnerResolver interface {
	GuildOwner(ctx context.Context, guildID string) (string, error)
}

type Evaluator struct {
	guilds         GuildStateSource
	policies       map[string]Policy
	restrictions   []RestrictionSource
	owners         OwnerResolver
	auditPublisher audit.Publisher
	logger         *slog.Logger
	metrics        *Metrics
}

type Option func(*Evaluator)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Evaluator) {
		e.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(e *Evaluator) {
		e.metrics = m
	}
}

func WithAuditPublisher(publisher audit.Publisher) Option {
	return func(e *Evaluator) {
		e.auditPublisher = publisher
	}
}

// WithRestrictionSources adds sources consulted in order at the restriction step.
func WithRestrictionSources(sources ...RestrictionSource) Option {
	return func(e *Evaluator) {
		for _, src := range sources {
			if src != nil {
				e.restrictions = append(e.restrictions, src)
			}
		}
	}
}

// WithOwnerResolver enables owner checks. Without one nobody holds the owner
// capability.
func WithOwnerResolver(r OwnerResolver) Option {
	return func(e *Evaluator) {
		e.owners = r
	}
}

// New builds an evaluator over the static policy table, keyed by command name
// or button route prefix.
func New(guilds GuildStateSource, policies map[string]Policy, opts ...Option) (*Evaluator, error) {
	if guilds == nil {
		return nil, errors.New("guild state source is required")
	}
	if len(policies) == 0 {
		return nil, errors.New("policy table is required")
	}
	e := &Evaluator{
		guilds:   guilds,
		policies: policies,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Policy returns the registered policy for name.
func (e *Evaluator) Policy(name string) (Policy, bool) {
	p, ok := e.policies[name]
	return p, ok
}

// Check evaluates the interaction against the named policy and audits the
// outcome. Evaluation stops at the first rule that denies.
func (e *Evaluator) Check(ctx context.Context, in *interaction.Interaction, name string) Decision {
	policy, ok := e.policies[name]
	var d Decision
	if !ok {
		d = deny(StepCapability, ReasonUnknownCommand)
	} else {
		d = e.evaluate(ctx, in, policy)
	}
	e.record(ctx, in, name, d)
	return d
}

func (e *Evaluator) evaluate(ctx context.Context, in *interaction.Interaction, policy Policy) Decision {
	now := requestcontext.Now(ctx)
	state := e.state(ctx, in.GuildID)

	// Rule 1: lockdown applies to every command in the guild
	if state.Lockdown.ActiveAt(now) {
		return deny(StepLockdown, ReasonLockdown)
	}

	// Rule 2: bots never run commands
	if in.User.Bot {
		return deny(StepBot, ReasonBot)
	}

	// Rule 3: account age, inclusive of exactly seven days
	if in.User.AccountAge(now) < MinAccountAge {
		return deny(StepAccountAge, ReasonAccountAge)
	}

	// Rule 4: restrictions held by the limiter or the monitor
	for _, src := range e.restrictions {
		if reason, restricted := src.Restricted(ctx, in.User.ID); restricted {
			if reason == "" {
				reason = ReasonRestricted
			}
			return deny(StepRestricted, reason)
		}
	}

	// Rule 5: capability
	if policy.Capability > CapabilityPublic || policy.LinksCommunity {
		if reason, ok := e.hasCapability(ctx, in, policy.Capability); !ok {
			return deny(StepCapability, reason)
		}
	}

	// Rule 6: community linking is reserved to the owner
	if policy.LinksCommunity && !e.isOwner(ctx, in) {
		return deny(StepOwnerLink, ReasonOwnerLinkOnly)
	}

	// Rule 7: linkage precondition
	if policy.RequiresLink && !state.Linked() {
		return deny(StepLinkage, ReasonLinkRequired)
	}

	return allow(state.CommunityID())
}

// state loads guild state. A failed load is treated as an unlinked guild
// without a lockdown so the pipeline keeps serving.
func (e *Evaluator) state(ctx context.Context, guildID string) guildmodels.State {
	if guildID == "" {
		return guildmodels.State{}
	}
	state, err := e.guilds.State(ctx, guildID)
	if err != nil {
		if e.logger != nil {
			e.logger.WarnContext(ctx, "guild state unavailable, treating guild as unlinked",
				"guild_id", guildID,
				"error", err,
			)
		}
		return guildmodels.State{GuildID: guildID}
	}
	return state
}

func (e *Evaluator) hasCapability(ctx context.Context, in *interaction.Interaction, required Capability) (string, bool) {
	if !in.InGuild() || in.Member == nil {
		return ReasonGuildOnly, false
	}
	switch required {
	case CapabilityAdmin:
		if in.Member.Administrator || e.isOwner(ctx, in) {
			return "", true
		}
		return ReasonAdminRequired, false
	case CapabilityOwner:
		if e.isOwner(ctx, in) {
			return "", true
		}
		return ReasonOwnerRequired, false
	default:
		return "", true
	}
}

func (e *Evaluator) isOwner(ctx context.Context, in *interaction.Interaction) bool {
	if e.owners == nil || !in.InGuild() {
		return false
	}
	ownerID, err := e.owners.GuildOwner(ctx, in.GuildID)
	if err != nil {
		if e.logger != nil {
			e.logger.WarnContext(ctx, "guild owner lookup failed", "guild_id", in.GuildID, "error", err)
		}
		return false
	}
	return ownerID != "" && ownerID == in.User.ID
}

func (e *Evaluator) record(ctx context.Context, in *interaction.Interaction, name string, d Decision) {
	e.metrics.observe(d)
	if d.Allowed {
		audit.LogAudit(ctx, e.logger, e.auditPublisher, audit.EventPermissionGranted,
			"user_id", in.User.ID,
			"guild_id", in.GuildID,
			"command", name,
		)
		return
	}
	audit.LogAudit(ctx, e.logger, e.auditPublisher, audit.EventPermissionDenied,
		"user_id", in.User.ID,
		"guild_id", in.GuildID,
		"command", name,
		"reason", d.Reason,
		"step", string(d.Step),
	)
}

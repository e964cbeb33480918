// Package dispatcher runs every inbound interaction through the protection
// pipeline: rate limit, permission, security observation, input validation,
// the guarded handler, audit and exactly one reply.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"
	"unicode/utf8"

	"github.com/getsentry/sentry-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"communitybot/internal/audit"
	"communitybot/internal/backend"
	"communitybot/internal/interaction"
	"communitybot/internal/permission"
	ratelimitmodels "communitybot/internal/ratelimit/models"
	"communitybot/internal/security"
	"communitybot/pkg/requestcontext"
)

// User-facing replies produced by the pipeline itself.
const (
	MessageUnknownCommand = "Unknown command."
	MessageInvalidButton  = "This button is invalid or has expired."
	MessageGenericFailure = "Something went wrong while running this command. Please try again later."
)

var tracer = otel.Tracer("communitybot/dispatcher")

// Responder is the reply capability of the chat platform.
type Responder interface {
	Reply(ctx context.Context, in *interaction.Interaction, msg Message) error
	Defer(ctx context.Context, in *interaction.Interaction, ephemeral bool) error
	EditReply(ctx context.Context, in *interaction.Interaction, msg Message) error
}

// RateLimiter admits or rejects one request per identifier and action.
type RateLimiter interface {
	Check(ctx context.Context, identifier string, action ratelimitmodels.Action) ratelimitmodels.Result
}

// PermissionChecker decides whether the invoker may run the named command or route.
type PermissionChecker interface {
	Check(ctx context.Context, in *interaction.Interaction, name string) permission.Decision
}

// SecurityMonitor is shown every interaction.
type SecurityMonitor interface {
	Observe(ctx context.Context, obs security.Observation) []security.Event
	ReportSuspicious(ctx context.Context, userID, guildID, reason string, details map[string]any) security.Event
}

type Dispatcher struct {
	registry       *Registry
	responder      Responder
	limiter        RateLimiter
	permissions    PermissionChecker
	monitor        SecurityMonitor
	auditPublisher audit.Publisher
	logger         *slog.Logger
	metrics        *Metrics
}

type Option func(*Dispatcher)

func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

func WithAuditPublisher(publisher audit.Publisher) Option {
	return func(d *Dispatcher) {
		d.auditPublisher = publisher
	}
}

func New(
	registry *Registry,
	responder Responder,
	limiter RateLimiter,
	permissions PermissionChecker,
	monitor SecurityMonitor,
	opts ...Option,
) (*Dispatcher, error) {
	if registry == nil {
		return nil, errors.New("registry is required")
	}
	if responder == nil {
		return nil, errors.New("responder is required")
	}
	if limiter == nil {
		return nil, errors.New("rate limiter is required")
	}
	if permissions == nil {
		return nil, errors.New("permission checker is required")
	}
	if monitor == nil {
		return nil, errors.New("security monitor is required")
	}
	d := &Dispatcher{
		registry:    registry,
		responder:   responder,
		limiter:     limiter,
		permissions: permissions,
		monitor:     monitor,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// target is the resolved command or button route of one interaction.
type target struct {
	name      string
	policyKey string
	sensitive bool
	deferred  bool
	schema    OptionsDecoder
	handler   Handler
	args      []string
	// invalid is set when a button custom id failed the grammar.
	invalid error
}

// Dispatch runs one interaction through the pipeline. Commands and buttons get
// exactly one reply; joins and messages are only observed. The returned error
// reports a failed reply or an unknown interaction kind.
func (d *Dispatcher) Dispatch(ctx context.Context, in *interaction.Interaction) (err error) {
	start := time.Now()
	ctx = requestcontext.WithRequestID(ctx, in.ID)
	ctx = requestcontext.WithUserID(ctx, in.User.ID)
	ctx = requestcontext.WithGuildID(ctx, in.GuildID)

	ctx, span := tracer.Start(ctx, "dispatcher.Dispatch", trace.WithAttributes(
		attribute.String("interaction.kind", string(in.Kind)),
		attribute.String("interaction.name", in.Name()),
		attribute.String("guild.id", in.GuildID),
	))
	outcome := "ok"
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.SetAttributes(attribute.String("dispatch.outcome", outcome))
		span.End()
		d.metrics.observeDispatch(in.Kind, outcome, time.Since(start))
	}()

	switch in.Kind {
	case interaction.KindMemberJoin:
		d.observe(ctx, in, security.ObserveMemberJoin, false, false)
		outcome = "observed"
		return nil
	case interaction.KindMessage:
		if !in.User.Bot {
			d.observe(ctx, in, security.ObserveMessage, false, false)
		}
		outcome = "observed"
		return nil
	case interaction.KindSlashCommand, interaction.KindButton:
	default:
		outcome = "unsupported"
		return fmt.Errorf("unsupported interaction kind %q", in.Kind)
	}

	outcome, err = d.run(ctx, in)
	return err
}

func (d *Dispatcher) run(ctx context.Context, in *interaction.Interaction) (string, error) {
	observeKind, action := security.ObserveCommand, ratelimitmodels.ActionCommand
	if in.Kind == interaction.KindButton {
		observeKind, action = security.ObserveButton, ratelimitmodels.ActionInteraction
	}

	// rate limit
	if res := d.limiter.Check(ctx, in.User.ID, action); !res.Allowed {
		d.observe(ctx, in, observeKind, false, true)
		return "rate_limited", d.reply(ctx, in, false, Message{Content: rateLimitMessage(res.RetryAfter), Ephemeral: true})
	}

	t, found := d.resolve(in)
	if !found {
		d.observe(ctx, in, observeKind, false, true)
		d.auditFailure(ctx, in, in.Name(), "unknown_command", nil)
		return "unknown", d.reply(ctx, in, false, Message{Content: MessageUnknownCommand, Ephemeral: true})
	}

	// permission, skipped for malformed custom ids which are rejected below
	var decision permission.Decision
	if t.invalid == nil {
		decision = d.permissions.Check(ctx, in, t.policyKey)
	}

	// security observation, regardless of the outcome so far
	d.observe(ctx, in, observeKind, t.sensitive, t.invalid != nil || !decision.Allowed)

	if t.invalid != nil {
		d.monitor.ReportSuspicious(ctx, in.User.ID, in.GuildID, "invalid custom id", map[string]any{
			"custom_id": truncate(in.CustomID, interaction.MaxCustomIDLength),
			"error":     t.invalid.Error(),
		})
		d.auditFailure(ctx, in, t.name, "invalid_custom_id", nil)
		return "invalid_custom_id", d.reply(ctx, in, false, Message{Content: MessageInvalidButton, Ephemeral: true})
	}
	if !decision.Allowed {
		return "denied", d.reply(ctx, in, false, Message{Content: decision.Reason, Ephemeral: true})
	}

	// input validation
	var opts any
	if t.schema != nil {
		var err error
		if opts, err = t.schema(in.Options); err != nil {
			msg := "Invalid options."
			var verr *interaction.ValidationError
			if errors.As(err, &verr) {
				msg = verr.Error()
			}
			d.auditFailure(ctx, in, t.name, "invalid_options", err)
			return "invalid_options", d.reply(ctx, in, false, Message{Content: msg, Ephemeral: true})
		}
	}

	deferred := false
	if t.deferred {
		if err := d.responder.Defer(ctx, in, true); err != nil {
			if d.logger != nil {
				d.logger.WarnContext(ctx, "failed to defer reply", "command", t.name, "error", err)
			}
		} else {
			deferred = true
		}
	}

	req := &Request{Interaction: in, CommunityID: decision.CommunityID, Options: opts, Args: t.args}
	msg, err := d.invoke(ctx, t, req)
	if err != nil {
		var uerr *UserError
		if errors.As(err, &uerr) {
			msg = Message{Content: uerr.Message, Ephemeral: true}
		} else {
			msg = Message{Content: MessageGenericFailure, Ephemeral: true}
			if d.logger != nil {
				d.logger.ErrorContext(ctx, "command failed", "command", t.name, "error", err)
			}
		}
		d.auditFailure(ctx, in, t.name, "handler_error", err)
		return "failed", d.reply(ctx, in, deferred, msg)
	}

	audit.LogAudit(ctx, d.logger, d.auditPublisher, audit.EventCommandExecuted,
		"user_id", in.User.ID,
		"guild_id", in.GuildID,
		"command", t.name,
		"success", true,
	)
	return "ok", d.reply(ctx, in, deferred, msg)
}

// resolve finds the command or button route. A malformed custom id still
// resolves, with invalid set, so it can be observed and reported.
func (d *Dispatcher) resolve(in *interaction.Interaction) (target, bool) {
	if in.Kind == interaction.KindSlashCommand {
		c, ok := d.registry.Command(in.CommandName)
		if !ok {
			return target{}, false
		}
		return target{
			name:      c.Name,
			policyKey: c.Name,
			sensitive: c.Sensitive,
			deferred:  c.Defer,
			schema:    c.Schema,
			handler:   c.Handler,
		}, true
	}

	id, err := interaction.ParseCustomID(in.CustomID)
	if err != nil {
		return target{name: "button", invalid: err}, true
	}
	route, args, ok := d.registry.Button(id)
	if !ok {
		return target{}, false
	}
	return target{
		name:      route.Prefix,
		policyKey: route.Prefix,
		sensitive: route.Sensitive,
		deferred:  route.Defer,
		handler:   route.Handler,
		args:      args,
	}, true
}

// invoke runs the handler with panics recovered and reported. The handler's
// context is detached from the interaction's cancellation so work completes
// even when the platform gives up on the reply.
func (d *Dispatcher) invoke(ctx context.Context, t target, req *Request) (msg Message, err error) {
	hctx, span := tracer.Start(context.WithoutCancel(ctx), "dispatcher.handler", trace.WithAttributes(
		attribute.String("command", t.name),
	))
	defer span.End()

	hub := sentry.CurrentHub().Clone()
	hub.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("command", t.name)
		scope.SetTag("guild_id", req.Interaction.GuildID)
		scope.SetUser(sentry.User{ID: req.Interaction.User.ID})
	})

	defer func() {
		if r := recover(); r != nil {
			hub.Recover(r)
			d.metrics.observePanic(t.name)
			err = fmt.Errorf("handler panic: %v", r)
			span.SetStatus(codes.Error, "panic")
		}
	}()

	msg, err = t.handler(hctx, req)
	if err != nil {
		var uerr *UserError
		if !errors.As(err, &uerr) {
			hub.CaptureException(err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}
	return msg, err
}

// reply sends the single reply for the interaction. A cancelled interaction
// gets none.
func (d *Dispatcher) reply(ctx context.Context, in *interaction.Interaction, deferred bool, msg Message) error {
	if ctx.Err() != nil {
		if d.logger != nil {
			d.logger.InfoContext(ctx, "interaction cancelled, reply suppressed", "interaction_id", in.ID)
		}
		return nil
	}
	if deferred {
		return d.responder.EditReply(ctx, in, msg)
	}
	return d.responder.Reply(ctx, in, msg)
}

func (d *Dispatcher) observe(ctx context.Context, in *interaction.Interaction, kind security.ObservationKind, sensitive, failed bool) {
	d.monitor.Observe(ctx, security.Observation{
		Kind:             kind,
		UserID:           in.User.ID,
		GuildID:          in.GuildID,
		AccountCreatedAt: in.User.CreatedAt,
		Sensitive:        sensitive,
		Content:          in.Content,
		SourceAddr:       in.SourceAddr,
		Failed:           failed,
	})
}

func (d *Dispatcher) auditFailure(ctx context.Context, in *interaction.Interaction, name, reason string, err error) {
	attrs := []any{
		"user_id", in.User.ID,
		"guild_id", in.GuildID,
		"command", name,
		"success", false,
		"reason", reason,
	}
	if kind := backend.KindOf(err); kind != 0 {
		attrs = append(attrs, "error_kind", kind.String())
	}
	if err != nil {
		attrs = append(attrs, "error", err.Error())
	}
	audit.LogAudit(ctx, d.logger, d.auditPublisher, audit.EventCommandFailed, attrs...)
}

func rateLimitMessage(retryAfter time.Duration) string {
	secs := int(math.Ceil(retryAfter.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return fmt.Sprintf("You're hitting the rate limit. Try again in %d seconds.", secs)
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

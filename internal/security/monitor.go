// Package security watches the interaction stream for abuse. Rules keep
// rolling windows per user and per guild; when one fires the monitor records
// a SecurityEvent, mirrors it to the audit log, alerts the guild and may
// restrict the user or lock the guild down.
package security

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"communitybot/internal/audit"
	guildmodels "communitybot/internal/guild/models"
	"communitybot/pkg/requestcontext"
)

// RestrictionReason is shown to users the monitor has restricted.
const RestrictionReason = "You are temporarily restricted due to suspicious activity"

// GuildStore reads guild state and applies lockdowns.
type GuildStore interface {
	State(ctx context.Context, guildID string) (guildmodels.State, error)
	SetLockdown(ctx context.Context, guildID, reason, actor string, duration time.Duration) (*guildmodels.Lockdown, error)
}

type Monitor struct {
	cfg            Config
	guilds         GuildStore
	auditPublisher audit.Publisher
	notifier       AlertNotifier
	logger         *slog.Logger
	metrics        *Metrics

	buffer *RingBuffer
	alerts *AlertQueue

	mu           sync.Mutex
	commands     *rollingWindow
	buttons      *rollingWindow
	joins        *rollingWindow
	violations   *rollingWindow
	failures     map[string]*rollingWindow // guild -> source address
	cooldowns    map[string]time.Time
	restrictions map[string]*Restriction
}

type Option func(*Monitor)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Monitor) {
		m.logger = logger
	}
}

func WithMetrics(metrics *Metrics) Option {
	return func(m *Monitor) {
		m.metrics = metrics
	}
}

func WithAuditPublisher(publisher audit.Publisher) Option {
	return func(m *Monitor) {
		m.auditPublisher = publisher
	}
}

func WithConfig(cfg Config) Option {
	return func(m *Monitor) {
		m.cfg = cfg
	}
}

// WithAlertNotifier sets where alerts are delivered. Without one alerts are
// only recorded.
func WithAlertNotifier(n AlertNotifier) Option {
	return func(m *Monitor) {
		m.notifier = n
	}
}

func New(guilds GuildStore, opts ...Option) (*Monitor, error) {
	if guilds == nil {
		return nil, errors.New("guild store is required")
	}
	m := &Monitor{
		cfg:    DefaultConfig(),
		guilds: guilds,
	}
	for _, opt := range opts {
		opt(m)
	}

	m.buffer = NewRingBuffer(m.cfg.EventBufferSize)
	m.alerts = NewAlertQueue(m.notifier, m.alertChannel, m.cfg.AlertHighWater, m.cfg.AlertTimeout, m.logger, m.metrics)
	m.commands = newRollingWindow(m.cfg.RapidCommands.Window)
	m.buttons = newRollingWindow(m.cfg.RapidButtons.Window)
	m.joins = newRollingWindow(m.cfg.MassJoins.Window)
	m.violations = newRollingWindow(m.cfg.Restriction.Window)
	m.failures = make(map[string]*rollingWindow)
	m.cooldowns = make(map[string]time.Time)
	m.restrictions = make(map[string]*Restriction)
	return m, nil
}

// Observe runs every rule against one observation and returns the events it
// produced, in emission order.
func (m *Monitor) Observe(ctx context.Context, obs Observation) []Event {
	now := requestcontext.Now(ctx)
	var (
		events   []Event
		lockdown bool
	)

	m.mu.Lock()
	switch obs.Kind {
	case ObserveCommand:
		if n := m.commands.add(obs.UserID, now); n > m.cfg.RapidCommands.Count && m.cool("rapid_commands:"+obs.UserID, now, m.cfg.RapidCommands.Window) {
			events = append(events, m.newEvent(EventRapidCommands, SeverityMedium, obs, now, map[string]any{
				"count":          n,
				"window_seconds": int(m.cfg.RapidCommands.Window.Seconds()),
			}))
			events = m.violate(events, obs, now)
		}
	case ObserveButton:
		if n := m.buttons.add(obs.UserID, now); n > m.cfg.RapidButtons.Count && m.cool("rapid_buttons:"+obs.UserID, now, m.cfg.RapidButtons.Window) {
			events = append(events, m.newEvent(EventRapidButtons, SeverityMedium, obs, now, map[string]any{
				"count":          n,
				"window_seconds": int(m.cfg.RapidButtons.Window.Seconds()),
			}))
			events = m.violate(events, obs, now)
		}
	case ObserveMemberJoin:
		if obs.GuildID != "" {
			if n := m.joins.add(obs.GuildID, now); n > m.cfg.MassJoins.Count && m.cool("mass_joins:"+obs.GuildID, now, m.cfg.MassJoins.Window) {
				events = append(events, m.newEvent(EventMassJoins, SeverityHigh, obs, now, map[string]any{
					"count":          n,
					"window_seconds": int(m.cfg.MassJoins.Window.Seconds()),
				}))
			}
		}
	}

	if obs.Sensitive && !obs.AccountCreatedAt.IsZero() && now.Sub(obs.AccountCreatedAt) < m.cfg.NewAccountAge &&
		m.cool("new_account:"+obs.UserID, now, m.cfg.NewAccountCooldown) {
		events = append(events, m.newEvent(EventNewAccountActivity, SeverityLow, obs, now, map[string]any{
			"account_age_hours": int(now.Sub(obs.AccountCreatedAt).Hours()),
		}))
	}

	if obs.Content != "" {
		if pattern, ok := m.matchContent(obs.Content); ok {
			events = append(events, m.newEvent(EventSuspiciousContent, SeverityMedium, obs, now, map[string]any{
				"pattern": pattern,
			}))
			events = m.violate(events, obs, now)
		}
	}

	if ev, ok := m.coordinated(obs, now); ok {
		events = append(events, ev)
		lockdown = m.cfg.CoordinatedAttack.LockdownDuration > 0
	}
	m.mu.Unlock()

	for _, ev := range events {
		m.emit(ctx, ev)
	}
	if lockdown {
		if err := m.TriggerEmergencyLockdown(ctx, obs.GuildID, "Coordinated attack detected", m.cfg.CoordinatedAttack.LockdownDuration); err != nil && m.logger != nil {
			m.logger.ErrorContext(ctx, "automatic lockdown failed", "guild_id", obs.GuildID, "error", err)
		}
	}
	return events
}

// ReportSuspicious records a suspicious_content event raised outside the
// content rules, such as a malformed button id.
func (m *Monitor) ReportSuspicious(ctx context.Context, userID, guildID, reason string, details map[string]any) Event {
	now := requestcontext.Now(ctx)
	d := maps.Clone(details)
	if d == nil {
		d = map[string]any{}
	}
	d["reason"] = reason
	obs := Observation{UserID: userID, GuildID: guildID}

	m.mu.Lock()
	events := []Event{m.newEvent(EventSuspiciousContent, SeverityMedium, obs, now, d)}
	events = m.violate(events, obs, now)
	m.mu.Unlock()

	for _, ev := range events {
		m.emit(ctx, ev)
	}
	return events[0]
}

func (m *Monitor) matchContent(content string) (string, bool) {
	for _, p := range m.cfg.SuspiciousPatterns {
		if p.MatchString(content) {
			return p.String(), true
		}
	}
	return "", false
}

// coordinated tracks failures per (guild, source) and fires when enough
// distinct sources each exceed the failure threshold. Must hold m.mu.
func (m *Monitor) coordinated(obs Observation, now time.Time) (Event, bool) {
	cfg := m.cfg.CoordinatedAttack
	if !cfg.Enabled || !obs.Failed || obs.SourceAddr == "" || obs.GuildID == "" {
		return Event{}, false
	}
	w := m.failures[obs.GuildID]
	if w == nil {
		w = newRollingWindow(cfg.Window)
		m.failures[obs.GuildID] = w
	}
	w.add(obs.SourceAddr, now)

	offenders := lo.Filter(lo.Keys(w.entries), func(source string, _ int) bool {
		return w.count(source, now) > cfg.FailuresPerSource
	})
	if len(offenders) < cfg.MinSources || !m.cool("coordinated_attack:"+obs.GuildID, now, cfg.Window) {
		return Event{}, false
	}
	return m.newEvent(EventCoordinatedAttack, SeverityCritical, Observation{GuildID: obs.GuildID}, now, map[string]any{
		"sources":        len(offenders),
		"window_seconds": int(cfg.Window.Seconds()),
	}), true
}

// violate adds a violation for the observed user and appends an
// auto_restriction event when the restriction ladder moves up. Must hold m.mu.
func (m *Monitor) violate(events []Event, obs Observation, now time.Time) []Event {
	if obs.UserID == "" {
		return events
	}
	cfg := m.cfg.Restriction
	n := m.violations.add(obs.UserID, now)

	r := m.restrictions[obs.UserID]
	if r == nil {
		r = &Restriction{UserID: obs.UserID}
		m.restrictions[obs.UserID] = r
	}
	m.decay(r, now)
	r.Violations = n

	var next RestrictionState
	var until time.Time
	switch {
	case n > cfg.Violations:
		next, until = StateExtendedRestriction, now.Add(cfg.Extended)
	case n == cfg.Violations:
		next, until = StateRestricted, now.Add(cfg.Duration)
	default:
		next = StateWarned
	}
	if next <= r.State {
		if r.State >= StateRestricted && until.After(r.Until) {
			r.Until = until
		}
		return events
	}
	r.State = next
	r.Until = until
	if next < StateRestricted {
		return events
	}
	return append(events, m.newEvent(EventAutoRestriction, SeverityHigh, obs, now, map[string]any{
		"state":      next.String(),
		"violations": n,
		"until":      until.UTC().Format(time.RFC3339),
	}))
}

// decay lowers an expired restriction. Must hold m.mu.
func (m *Monitor) decay(r *Restriction, now time.Time) {
	if r.State >= StateRestricted && !now.Before(r.Until) {
		r.State = StateWarned
		r.Until = time.Time{}
	}
	if r.State == StateWarned && m.violations.count(r.UserID, now) == 0 {
		r.State = StateClean
		r.Violations = 0
	}
}

// cool reports whether the rule keyed by key may fire, and starts its cooldown.
// Must hold m.mu.
func (m *Monitor) cool(key string, now time.Time, cooldown time.Duration) bool {
	if until, ok := m.cooldowns[key]; ok && now.Before(until) {
		return false
	}
	m.cooldowns[key] = now.Add(cooldown)
	return true
}

func (m *Monitor) activeRestrictions(now time.Time) int {
	return lo.CountBy(lo.Values(m.restrictions), func(r *Restriction) bool {
		return r.State >= StateRestricted && now.Before(r.Until)
	})
}

func (m *Monitor) newEvent(typ EventType, sev Severity, obs Observation, now time.Time, details map[string]any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      typ,
		Severity:  sev,
		UserID:    obs.UserID,
		GuildID:   obs.GuildID,
		Timestamp: now,
		Details:   details,
	}
}

// emit records the event, mirrors it to the audit log and queues an alert.
func (m *Monitor) emit(ctx context.Context, ev Event) {
	m.buffer.Enqueue(ev)
	m.metrics.observeEvent(ev)

	attrList := []any{
		"user_id", ev.UserID,
		"guild_id", ev.GuildID,
		"severity", ev.Severity.String(),
		"security_event_id", ev.ID,
	}
	for _, k := range slices.Sorted(maps.Keys(ev.Details)) {
		attrList = append(attrList, k, ev.Details[k])
	}
	audit.LogAudit(ctx, m.logger, m.auditPublisher, ev.Type.AuditType(), attrList...)

	m.alerts.Submit(ctx, ev)
}

// Restriction returns the user's current position on the restriction ladder.
func (m *Monitor) Restriction(ctx context.Context, userID string) Restriction {
	now := requestcontext.Now(ctx)
	m.mu.Lock()
	defer m.mu.Unlock()

	r := m.restrictions[userID]
	if r == nil {
		return Restriction{UserID: userID}
	}
	m.decay(r, now)
	return *r
}

// Restricted reports whether the user is currently blocked and why.
func (m *Monitor) Restricted(ctx context.Context, userID string) (string, bool) {
	r := m.Restriction(ctx, userID)
	if r.State >= StateRestricted {
		return RestrictionReason, true
	}
	return "", false
}

// TriggerEmergencyLockdown locks the guild for duration and raises a
// critical emergency_lockdown event.
func (m *Monitor) TriggerEmergencyLockdown(ctx context.Context, guildID, reason string, duration time.Duration) error {
	if guildID == "" {
		return errors.New("guild id is required")
	}
	actor := requestcontext.UserID(ctx)
	if actor == "" {
		actor = m.cfg.EmergencyLockActor
	}
	lockdown, err := m.guilds.SetLockdown(ctx, guildID, reason, actor, duration)
	if err != nil {
		return err
	}
	now := requestcontext.Now(ctx)
	m.emit(ctx, m.newEvent(EventEmergencyLockdown, SeverityCritical, Observation{UserID: requestcontext.UserID(ctx), GuildID: guildID}, now, map[string]any{
		"reason": reason,
		"until":  lockdown.Until.UTC().Format(time.RFC3339),
	}))
	return nil
}

// IsGuildLocked reports whether an unexpired lockdown applies to the guild.
func (m *Monitor) IsGuildLocked(ctx context.Context, guildID string) bool {
	if guildID == "" {
		return false
	}
	state, err := m.guilds.State(ctx, guildID)
	if err != nil {
		if m.logger != nil {
			m.logger.WarnContext(ctx, "guild state unavailable for lockdown check", "guild_id", guildID, "error", err)
		}
		return false
	}
	return state.Lockdown.ActiveAt(requestcontext.Now(ctx))
}

// Events returns recent events newest first, optionally for one guild.
func (m *Monitor) Events(guildID string, limit int) []Event {
	return m.buffer.Recent(guildID, limit)
}

// FlushAlerts delivers batched low and medium alerts and waits for immediate
// alerts still in flight.
func (m *Monitor) FlushAlerts(ctx context.Context) int {
	n := m.alerts.Flush(ctx)
	m.alerts.Wait()
	return n
}

// Alerts exposes the alert queue for health reporting.
func (m *Monitor) Alerts() *AlertQueue {
	return m.alerts
}

// Sweep drops expired window entries, cooldowns and lapsed restrictions.
func (m *Monitor) Sweep(ctx context.Context) {
	now := requestcontext.Now(ctx)
	m.mu.Lock()
	defer m.mu.Unlock()

	m.commands.sweep(now)
	m.buttons.sweep(now)
	m.joins.sweep(now)
	m.violations.sweep(now)
	for guildID, w := range m.failures {
		if w.sweep(now); w.len() == 0 {
			delete(m.failures, guildID)
		}
	}
	for key, until := range m.cooldowns {
		if !now.Before(until) {
			delete(m.cooldowns, key)
		}
	}
	for userID, r := range m.restrictions {
		m.decay(r, now)
		if r.State == StateClean {
			delete(m.restrictions, userID)
		}
	}
	m.metrics.setRestricted(m.activeRestrictions(now))
}

func (m *Monitor) alertChannel(ctx context.Context, guildID string) string {
	state, err := m.guilds.State(ctx, guildID)
	if err != nil {
		return ""
	}
	return state.AlertChannelID
}

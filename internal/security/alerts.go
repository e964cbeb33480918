package security

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/lo"
)

// AlertNotifier delivers alerts to a guild channel.
type AlertNotifier interface {
	NotifyAlert(ctx context.Context, channelID string, events []Event) error
}

// ChannelResolver returns the alert channel configured for a guild, or "".
type ChannelResolver func(ctx context.Context, guildID string) string

// AlertQueue sends high and critical events immediately on their own goroutine
// and batches the rest until Flush. Above the high-water mark low severity
// events are dropped.
type AlertQueue struct {
	notifier  AlertNotifier
	resolve   ChannelResolver
	highWater int
	timeout   time.Duration
	logger    *slog.Logger
	metrics   *Metrics

	mu      sync.Mutex
	pending []Event
	dropped int64

	inflight sync.WaitGroup
}

func NewAlertQueue(notifier AlertNotifier, resolve ChannelResolver, highWater int, timeout time.Duration, logger *slog.Logger, metrics *Metrics) *AlertQueue {
	if highWater <= 0 {
		highWater = 1000
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &AlertQueue{
		notifier:  notifier,
		resolve:   resolve,
		highWater: highWater,
		timeout:   timeout,
		logger:    logger,
		metrics:   metrics,
	}
}

// Submit routes one event. It reports whether the event was kept.
func (q *AlertQueue) Submit(ctx context.Context, ev Event) bool {
	if ev.GuildID == "" {
		return false
	}
	if ev.Severity >= SeverityHigh {
		q.inflight.Go(func() {
			q.send(ctx, "immediate", ev.GuildID, []Event{ev})
		})
		return true
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) >= q.highWater && ev.Severity <= SeverityLow {
		q.dropped++
		q.metrics.observeDrop()
		return false
	}
	q.pending = append(q.pending, ev)
	q.metrics.setQueueDepth(len(q.pending))
	return true
}

// Flush delivers every pending event grouped by guild and returns how many
// events were handed to the notifier.
func (q *AlertQueue) Flush(ctx context.Context) int {
	q.mu.Lock()
	batch := q.pending
	q.pending = nil
	q.metrics.setQueueDepth(0)
	q.mu.Unlock()

	if len(batch) == 0 {
		return 0
	}
	sent := 0
	for guildID, events := range lo.GroupBy(batch, func(e Event) string { return e.GuildID }) {
		if q.send(ctx, "batch", guildID, events) {
			sent += len(events)
		}
	}
	return sent
}

// Wait blocks until every immediate send started by Submit has finished.
func (q *AlertQueue) Wait() {
	q.inflight.Wait()
}

// Pending returns the number of queued events.
func (q *AlertQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Dropped returns how many low severity events were discarded.
func (q *AlertQueue) Dropped() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

func (q *AlertQueue) send(ctx context.Context, mode, guildID string, events []Event) bool {
	if q.notifier == nil || q.resolve == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), q.timeout)
	defer cancel()

	channelID := q.resolve(ctx, guildID)
	if channelID == "" {
		if q.logger != nil {
			q.logger.DebugContext(ctx, "no alert channel configured", "guild_id", guildID, "events", len(events))
		}
		return false
	}
	err := q.notifier.NotifyAlert(ctx, channelID, events)
	q.metrics.observeAlert(mode, err)
	if err != nil {
		if q.logger != nil {
			q.logger.WarnContext(ctx, "failed to deliver security alert",
				"guild_id", guildID,
				"channel_id", channelID,
				"events", len(events),
				"error", err,
			)
		}
		return false
	}
	return true
}

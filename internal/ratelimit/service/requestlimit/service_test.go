package requestlimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"communitybot/internal/audit"
	auditmemory "communitybot/internal/audit/store/memory"
	"communitybot/internal/ratelimit/config"
	"communitybot/internal/ratelimit/models"
	"communitybot/internal/ratelimit/store/bucket"
	"communitybot/internal/ratelimit/store/violation"
	"communitybot/pkg/requestcontext"
)

type failingBuckets struct {
	*bucket.InMemoryBucketStore
	panic bool
}

func (f failingBuckets) Allow(context.Context, string, int, time.Duration) (*models.Result, error) {
	if f.panic {
		panic("corrupted window")
	}
	return nil, errors.New("store unavailable")
}

type ServiceSuite struct {
	suite.Suite
	now        time.Time
	buckets    *bucket.InMemoryBucketStore
	violations *violation.InMemoryViolationStore
	auditStore *auditmemory.InMemoryStore
	service    *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.buckets = bucket.New()
	s.violations = violation.New()
	s.auditStore = auditmemory.NewInMemoryStore()
	auditSvc, err := audit.New(s.auditStore)
	s.Require().NoError(err)

	s.service, err = New(s.buckets, s.violations, WithAuditPublisher(auditSvc))
	s.Require().NoError(err)
}

func (s *ServiceSuite) at(offset time.Duration) context.Context {
	return requestcontext.WithTime(context.Background(), s.now.Add(offset))
}

func (s *ServiceSuite) TestNew() {
	s.Run("requires bucket store", func() {
		_, err := New(nil, s.violations)
		s.ErrorContains(err, "buckets store is required")
	})
	s.Run("requires violation store", func() {
		_, err := New(s.buckets, nil)
		s.ErrorContains(err, "violations store is required")
	})
}

func (s *ServiceSuite) TestCheck_BreachWithinWindow() {
	for i, want := range []int{4, 3, 2, 1, 0} {
		r := s.service.Check(s.at(time.Duration(i)*5*time.Second), "U", models.ActionCommand)
		s.True(r.Allowed)
		s.Equal(want, r.Remaining)
		s.Equal(5, r.Limit)
	}

	r := s.service.Check(s.at(30*time.Second), "U", models.ActionCommand)
	s.False(r.Allowed)
	s.Positive(r.RetryAfter)
	s.Equal(30*time.Second, r.RetryAfter)
	s.Equal(s.now.Add(time.Minute), r.ResetAt)
	s.Equal(models.EscalationWarn, r.Escalation)

	entries := s.auditStore.All()
	s.Require().Len(entries, 1)
	s.Equal(audit.EventRateLimitExceeded, entries[0].Type)
	s.Equal("U", entries[0].UserID)
	s.Equal("command", entries[0].Details["action"])
}

func (s *ServiceSuite) TestCheck_WindowBoundary() {
	for range 5 {
		s.Require().True(s.service.Check(s.at(0), "U", models.ActionCommand).Allowed)
	}
	s.False(s.service.Check(s.at(time.Minute-time.Millisecond), "U", models.ActionCommand).Allowed)
	s.True(s.service.Check(s.at(time.Minute), "U", models.ActionCommand).Allowed)
}

func (s *ServiceSuite) TestCheck_AcceptedNeverExceedsLimit() {
	accepted := 0
	for i := range 300 {
		if s.service.Check(s.at(time.Duration(i)*200*time.Millisecond), "U", models.ActionInteraction).Allowed {
			accepted++
		}
	}
	// 60s of traffic at 5/s against 10/min
	s.Equal(10, accepted)
}

func (s *ServiceSuite) TestCheckWithLimit_Override() {
	limit := models.Limit{Requests: 1, Window: 10 * time.Second}
	s.True(s.service.CheckWithLimit(s.at(0), "U", models.ActionAPI, limit).Allowed)
	s.False(s.service.CheckWithLimit(s.at(time.Second), "U", models.ActionAPI, limit).Allowed)
	s.True(s.service.CheckWithLimit(s.at(10*time.Second), "U", models.ActionAPI, limit).Allowed)
}

func (s *ServiceSuite) TestCheck_FailsOpen() {
	s.Run("unknown action", func() {
		r := s.service.Check(s.at(0), "U", "does-not-exist")
		s.True(r.Allowed)
	})

	s.Run("store error", func() {
		svc, err := New(failingBuckets{InMemoryBucketStore: bucket.New()}, violation.New())
		s.Require().NoError(err)
		r := svc.Check(s.at(0), "U", models.ActionCommand)
		s.True(r.Allowed)
		s.Equal(5, r.Remaining)
	})

	s.Run("store panic", func() {
		svc, err := New(failingBuckets{InMemoryBucketStore: bucket.New(), panic: true}, violation.New())
		s.Require().NoError(err)
		r := svc.Check(s.at(0), "U", models.ActionCommand)
		s.True(r.Allowed)
	})
}

func (s *ServiceSuite) TestCheckMultiple() {
	cfg := config.DefaultConfig()
	cfg.Actions[models.ActionGlobal] = models.Limit{Requests: 2, Window: 30 * time.Second}
	svc, err := New(bucket.New(), violation.New(), WithConfig(cfg))
	s.Require().NoError(err)

	r := svc.CheckMultiple(s.at(0), "U", models.ActionCommand, models.ActionGlobal)
	s.True(r.Allowed)
	s.Equal(1, r.Remaining)

	r = svc.CheckMultiple(s.at(time.Second), "U", models.ActionCommand, models.ActionGlobal)
	s.True(r.Allowed)
	s.Equal(0, r.Remaining)

	r = svc.CheckMultiple(s.at(2*time.Second), "U", models.ActionCommand, models.ActionGlobal)
	s.False(r.Allowed)
	s.Equal(models.ActionGlobal, r.Action)
	s.Equal(0, r.Remaining)
	s.Equal(28*time.Second, r.RetryAfter)
	s.Equal(1, r.Violations)
}

func (s *ServiceSuite) TestEscalation() {
	for range 5 {
		s.service.Check(s.at(0), "U", models.ActionCommand)
	}

	r := s.service.Check(s.at(time.Second), "U", models.ActionCommand)
	s.Equal(models.EscalationWarn, r.Escalation)
	_, restricted := s.service.ActiveRestriction(s.at(time.Second), "U")
	s.False(restricted)

	r = s.service.Check(s.at(2*time.Second), "U", models.ActionCommand)
	s.Equal(models.EscalationTemporary, r.Escalation)
	restriction, restricted := s.service.ActiveRestriction(s.at(2*time.Second), "U")
	s.True(restricted)
	s.Equal(s.now.Add(2*time.Second+5*time.Minute), restriction.Until)
	s.Equal(RestrictionReason, restriction.Reason)
	reason, blocked := s.service.Restricted(s.at(2*time.Second), "U")
	s.True(blocked)
	s.Equal(RestrictionReason, reason)

	r = s.service.Check(s.at(3*time.Second), "U", models.ActionCommand)
	s.Equal(models.EscalationExtended, r.Escalation)
	restriction, restricted = s.service.ActiveRestriction(s.at(20*time.Minute), "U")
	s.True(restricted)
	s.Equal(models.EscalationExtended, restriction.Level)

	_, restricted = s.service.ActiveRestriction(s.at(3*time.Second+30*time.Minute), "U")
	s.False(restricted)
}

func (s *ServiceSuite) TestCompactAndSweep() {
	s.service.Check(s.at(0), "idle", models.ActionCommand)
	for range 6 {
		s.service.Check(s.at(0), "noisy", models.ActionCommand)
	}

	stats := s.service.Compact(s.at(10 * time.Minute))
	s.Equal(2, stats.DroppedIdle)
	s.Zero(stats.Remaining)

	s.Equal(1, s.service.Sweep(s.at(16*time.Minute)))
}

package security

import (
	"regexp"
	"time"
)

// Threshold fires a rule when more than Count observations land in Window.
type Threshold struct {
	Count  int
	Window time.Duration
}

type CoordinatedAttackConfig struct {
	// Enabled requires a trusted source address on interactions.
	Enabled           bool
	MinSources        int
	FailuresPerSource int
	Window            time.Duration
	// LockdownDuration is applied to the guild when the rule fires; zero disables.
	LockdownDuration time.Duration
}

type RestrictionConfig struct {
	// Violations at which the user is restricted. Beyond it the restriction is extended.
	Violations int
	Window     time.Duration
	Duration   time.Duration
	Extended   time.Duration
}

type Config struct {
	RapidCommands      Threshold
	RapidButtons       Threshold
	MassJoins          Threshold
	NewAccountAge      time.Duration
	NewAccountCooldown time.Duration
	CoordinatedAttack  CoordinatedAttackConfig
	Restriction        RestrictionConfig
	SuspiciousPatterns []*regexp.Regexp

	EventBufferSize    int
	AlertHighWater     int
	AlertTimeout       time.Duration
	EmergencyLockActor string
}

// DefaultSuspiciousPatterns catch invite laundering, phishing links,
// credential requests and mass pings carrying external links.
var DefaultSuspiciousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(discord\.gg|discord(app)?\.com/invite)/[a-z0-9-]+`),
	regexp.MustCompile(`(?i)https?://[^\s]*(d[il1]sc[o0]rd|steamc[o0]mmunity|nitro)[^\s]*\.(ru|tk|ml|ga|cf|gq|xyz|top)\b`),
	regexp.MustCompile(`(?i)free\s+(discord\s+)?nitro`),
	regexp.MustCompile(`(?i)(send|give|share|tell)\s+(me\s+)?(your\s+)?(password|seed\s*phrase|private\s*key|2fa|token)`),
	regexp.MustCompile(`(?i)@(everyone|here)\b.*https?://`),
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		RapidCommands:      Threshold{Count: 10, Window: time.Minute},
		RapidButtons:       Threshold{Count: 12, Window: time.Minute},
		MassJoins:          Threshold{Count: 10, Window: 5 * time.Minute},
		NewAccountAge:      24 * time.Hour,
		NewAccountCooldown: time.Hour,
		CoordinatedAttack: CoordinatedAttackConfig{
			MinSources:        3,
			FailuresPerSource: 3,
			Window:            5 * time.Minute,
			LockdownDuration:  30 * time.Minute,
		},
		Restriction: RestrictionConfig{
			Violations: 3,
			Window:     15 * time.Minute,
			Duration:   5 * time.Minute,
			Extended:   30 * time.Minute,
		},
		SuspiciousPatterns: DefaultSuspiciousPatterns,
		EventBufferSize:    1000,
		AlertHighWater:     1000,
		AlertTimeout:       5 * time.Second,
		EmergencyLockActor: "security-monitor",
	}
}

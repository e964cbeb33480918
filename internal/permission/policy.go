// Package permission decides whether an interaction may run a command. Static
// per-command policy is combined with the guild's current state and with any
// restriction the rate limiter or security monitor holds on the invoker.
package permission

import "time"

// Capability is what an invoker must hold for a command.
type Capability int

const (
	CapabilityPublic Capability = iota
	CapabilityMember
	CapabilityAdmin
	CapabilityOwner
)

func (c Capability) String() string {
	switch c {
	case CapabilityMember:
		return "member"
	case CapabilityAdmin:
		return "admin"
	case CapabilityOwner:
		return "owner"
	default:
		return "public"
	}
}

// Policy is the static requirement attached to a command or button route.
type Policy struct {
	Capability Capability
	// RequiresLink denies the command until the guild is linked to a community.
	RequiresLink bool
	// LinksCommunity marks commands that change the guild's community link.
	// Only the guild owner may run them, administrators included.
	LinksCommunity bool
}

// MinAccountAge is the youngest account allowed to use commands.
const MinAccountAge = 7 * 24 * time.Hour

// Denial reasons shown to the invoker.
const (
	ReasonLockdown       = "Guild is under emergency lockdown"
	ReasonBot            = "Bots cannot use commands"
	ReasonAccountAge     = "Account must be at least 7 days old to use commands"
	ReasonRestricted     = "You are temporarily restricted from using commands"
	ReasonGuildOnly      = "This command can only be used in a server"
	ReasonAdminRequired  = "This command requires administrator permissions"
	ReasonOwnerRequired  = "This command requires server owner permissions"
	ReasonOwnerLinkOnly  = "Only the server owner can link communities"
	ReasonLinkRequired   = "This server is not linked to a community yet. Ask the server owner to run /link-community first"
	ReasonUnknownCommand = "Unknown command"
)

// Step names the rule that produced a decision.
type Step string

const (
	StepLockdown   Step = "lockdown"
	StepBot        Step = "bot"
	StepAccountAge Step = "account_age"
	StepRestricted Step = "restriction"
	StepCapability Step = "capability"
	StepOwnerLink  Step = "owner_link"
	StepLinkage    Step = "linkage"
	StepGranted    Step = "granted"
)

// Decision is the outcome of one check.
type Decision struct {
	Allowed bool
	Reason  string
	Step    Step
	// CommunityID is the linked community when the guild state was read.
	CommunityID string
}

func allow(communityID string) Decision {
	return Decision{Allowed: true, Step: StepGranted, CommunityID: communityID}
}

func deny(step Step, reason string) Decision {
	return Decision{Step: step, Reason: reason}
}

package commands

import (
	"github.com/samber/lo"

	"communitybot/internal/dispatcher"
	"communitybot/internal/permission"
)

// Button route prefixes.
const (
	RouteTaskComplete     = "task_complete"
	RouteTaskView         = "task_view"
	RouteTasksPage        = "tasks_page"
	RouteAllowlistConnect = "allowlist_connect"
)

var (
	public  = permission.Policy{Capability: permission.CapabilityPublic}
	member  = permission.Policy{Capability: permission.CapabilityMember}
	linked  = permission.Policy{Capability: permission.CapabilityMember, RequiresLink: true}
	admin   = permission.Policy{Capability: permission.CapabilityAdmin}
	adminLk = permission.Policy{Capability: permission.CapabilityAdmin, RequiresLink: true}
	linker  = permission.Policy{Capability: permission.CapabilityMember, LinksCommunity: true}
)

func (s *Set) buildCommands() []dispatcher.Command {
	return []dispatcher.Command{
		{
			Name:        "help",
			Description: "List the bot's commands",
			Policy:      public,
			Schema:      dispatcher.Schema[struct{}](),
			Handler:     s.help,
		},
		{
			Name:        "tasks",
			Description: "Browse the community's tasks",
			Policy:      linked,
			Defer:       true,
			Options: []dispatcher.OptionSpec{
				{Name: "page", Description: "Page number", Type: dispatcher.OptionInteger, MinValue: lo.ToPtr(1.0)},
			},
			Schema:  dispatcher.Schema[tasksOptions](),
			Handler: s.tasks,
		},
		{
			Name:        "complete-task",
			Description: "Submit a task as completed",
			Policy:      linked,
			Sensitive:   true,
			Defer:       true,
			Options: []dispatcher.OptionSpec{
				{Name: "task_id", Description: "Task to complete", Type: dispatcher.OptionString, Required: true, MaxLength: lo.ToPtr(64)},
			},
			Schema:  dispatcher.Schema[completeTaskOptions](),
			Handler: s.completeTask,
		},
		{
			Name:        "create-task",
			Description: "Create a task for the community",
			Policy:      adminLk,
			Defer:       true,
			Options: []dispatcher.OptionSpec{
				{Name: "type", Description: "Task type", Type: dispatcher.OptionString, Required: true, Choices: taskTypes},
				{Name: "title", Description: "Task title", Type: dispatcher.OptionString, Required: true, MinLength: lo.ToPtr(1), MaxLength: lo.ToPtr(100)},
				{Name: "description", Description: "What members must do", Type: dispatcher.OptionString, Required: true, MinLength: lo.ToPtr(1), MaxLength: lo.ToPtr(2000)},
				{Name: "points", Description: "Points awarded", Type: dispatcher.OptionInteger, MinValue: lo.ToPtr(0.0)},
			},
			Schema:  dispatcher.Schema[createTaskOptions](),
			Handler: s.createTask,
		},
		{
			Name:        "allowlist-connect",
			Description: "Join an allowlist",
			Policy:      linked,
			Sensitive:   true,
			Defer:       true,
			Options: []dispatcher.OptionSpec{
				{Name: "allowlist_id", Description: "Allowlist to join", Type: dispatcher.OptionString, Required: true, MaxLength: lo.ToPtr(64)},
				{Name: "wallet", Description: "Wallet address", Type: dispatcher.OptionString, MaxLength: lo.ToPtr(128)},
			},
			Schema:  dispatcher.Schema[allowlistConnectOptions](),
			Handler: s.allowlistConnect,
		},
		{
			Name:        "allowlist-status",
			Description: "Show your allowlist connections",
			Policy:      linked,
			Defer:       true,
			Schema:      dispatcher.Schema[struct{}](),
			Handler:     s.allowlistStatus,
		},
		{
			Name:        "link-account",
			Description: "Link your chat account to your community account",
			Policy:      member,
			Sensitive:   true,
			Defer:       true,
			Schema:      dispatcher.Schema[struct{}](),
			Handler:     s.linkAccount,
		},
		{
			Name:        "account-status",
			Description: "Show whether your account is linked",
			Policy:      member,
			Defer:       true,
			Schema:      dispatcher.Schema[struct{}](),
			Handler:     s.accountStatus,
		},
		{
			Name:        "link-community",
			Description: "Link this server to a community",
			Policy:      linker,
			Defer:       true,
			Options: []dispatcher.OptionSpec{
				{Name: "community_id", Description: "Community to link", Type: dispatcher.OptionString, Required: true, MaxLength: lo.ToPtr(64)},
			},
			Schema:  dispatcher.Schema[linkCommunityOptions](),
			Handler: s.linkCommunity,
		},
		{
			Name:        "unlink-community",
			Description: "Unlink this server from its community",
			Policy:      linker,
			Defer:       true,
			Schema:      dispatcher.Schema[struct{}](),
			Handler:     s.unlinkCommunity,
		},
		{
			Name:        "analytics",
			Description: "Show community engagement numbers",
			Policy:      adminLk,
			Defer:       true,
			Schema:      dispatcher.Schema[struct{}](),
			Handler:     s.analytics,
		},
		{
			Name:        "set-alert-channel",
			Description: "Choose where security alerts are posted",
			Policy:      admin,
			Options: []dispatcher.OptionSpec{
				{Name: "channel", Description: "Alert channel", Type: dispatcher.OptionChannel, Required: true},
			},
			Schema:  dispatcher.Schema[alertChannelOptions](),
			Handler: s.setAlertChannel,
		},
		{
			Name:        "lockdown",
			Description: "Block every command in this server for a while",
			Policy:      admin,
			Options: []dispatcher.OptionSpec{
				{Name: "minutes", Description: "Lockdown length", Type: dispatcher.OptionInteger, Required: true, MinValue: lo.ToPtr(1.0), MaxValue: lo.ToPtr(1440.0)},
				{Name: "reason", Description: "Why the server is locked", Type: dispatcher.OptionString, Required: true, MaxLength: lo.ToPtr(200)},
			},
			Schema:  dispatcher.Schema[lockdownOptions](),
			Handler: s.lockdown,
		},
		{
			Name:        "security-events",
			Description: "Show recent security events",
			Policy:      admin,
			Options: []dispatcher.OptionSpec{
				{Name: "limit", Description: "How many events", Type: dispatcher.OptionInteger, MinValue: lo.ToPtr(1.0), MaxValue: lo.ToPtr(float64(maxEvents))},
			},
			Schema:  dispatcher.Schema[securityEventsOptions](),
			Handler: s.securityEvents,
		},
	}
}

func (s *Set) buildButtons() []dispatcher.ButtonRoute {
	return []dispatcher.ButtonRoute{
		{Prefix: RouteTaskComplete, Policy: linked, Sensitive: true, Defer: true, Handler: s.taskCompleteButton},
		{Prefix: RouteTaskView, Policy: linked, Defer: true, Handler: s.taskViewButton},
		{Prefix: RouteTasksPage, Policy: linked, Defer: true, Handler: s.tasksPageButton},
		{Prefix: RouteAllowlistConnect, Policy: linked, Sensitive: true, Defer: true, Handler: s.allowlistConnectButton},
	}
}

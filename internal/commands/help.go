package commands

import (
	"context"
	"fmt"
	"sort"

	"github.com/samber/lo"

	"communitybot/internal/dispatcher"
	"communitybot/internal/permission"
)

func (s *Set) help(_ context.Context, _ *dispatcher.Request) (dispatcher.Message, error) {
	cmds := append([]dispatcher.Command(nil), s.commands...)
	sort.Slice(cmds, func(i, j int) bool {
		if cmds[i].Policy.Capability != cmds[j].Policy.Capability {
			return cmds[i].Policy.Capability < cmds[j].Policy.Capability
		}
		return cmds[i].Name < cmds[j].Name
	})
	return dispatcher.Message{
		Title: "Commands",
		Fields: lo.Map(cmds, func(c dispatcher.Command, _ int) dispatcher.Field {
			return dispatcher.Field{Name: "/" + c.Name, Value: helpLine(c)}
		}),
		Ephemeral: true,
	}, nil
}

func helpLine(c dispatcher.Command) string {
	switch {
	case c.Policy.LinksCommunity:
		return fmt.Sprintf("%s (server owner)", c.Description)
	case c.Policy.Capability >= permission.CapabilityAdmin:
		return fmt.Sprintf("%s (%s)", c.Description, c.Policy.Capability)
	default:
		return c.Description
	}
}

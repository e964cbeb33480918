package dispatcher

import (
	"errors"
	"fmt"
	"regexp"
	"sort"

	"communitybot/internal/interaction"
	"communitybot/internal/permission"
)

var (
	commandNamePattern = regexp.MustCompile(`^[a-z0-9-]{1,32}$`)
	routePrefixPattern = regexp.MustCompile(`^[a-z]+(?:_[a-z]+)*$`)
)

// Registry is the compile-time list of commands and button routes, indexed
// for dispatch.
type Registry struct {
	commands map[string]Command
	order    []string
	buttons  []ButtonRoute // longest prefix first
}

func NewRegistry(commands []Command, buttons []ButtonRoute) (*Registry, error) {
	r := &Registry{commands: make(map[string]Command, len(commands))}
	var errs []error
	for _, c := range commands {
		switch {
		case !commandNamePattern.MatchString(c.Name):
			errs = append(errs, fmt.Errorf("command %q: invalid name", c.Name))
		case c.Handler == nil:
			errs = append(errs, fmt.Errorf("command %q: handler is required", c.Name))
		default:
			if _, dup := r.commands[c.Name]; dup {
				errs = append(errs, fmt.Errorf("command %q: registered twice", c.Name))
				continue
			}
			r.commands[c.Name] = c
			r.order = append(r.order, c.Name)
		}
	}

	seen := map[string]bool{}
	for _, b := range buttons {
		switch {
		case !routePrefixPattern.MatchString(b.Prefix):
			errs = append(errs, fmt.Errorf("button route %q: invalid prefix", b.Prefix))
		case b.Handler == nil:
			errs = append(errs, fmt.Errorf("button route %q: handler is required", b.Prefix))
		case seen[b.Prefix]:
			errs = append(errs, fmt.Errorf("button route %q: registered twice", b.Prefix))
		case r.commands[b.Prefix].Handler != nil:
			errs = append(errs, fmt.Errorf("button route %q: collides with a command name", b.Prefix))
		default:
			seen[b.Prefix] = true
			r.buttons = append(r.buttons, b)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	sort.SliceStable(r.buttons, func(i, j int) bool {
		return len(r.buttons[i].Prefix) > len(r.buttons[j].Prefix)
	})
	return r, nil
}

// Command looks up a slash command by name.
func (r *Registry) Command(name string) (Command, bool) {
	c, ok := r.commands[name]
	return c, ok
}

// Commands returns every command in registration order.
func (r *Registry) Commands() []Command {
	out := make([]Command, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.commands[name])
	}
	return out
}

// Button resolves a validated custom id to the longest matching route.
func (r *Registry) Button(id interaction.CustomID) (ButtonRoute, []string, bool) {
	for _, b := range r.buttons {
		if args, ok := id.Args(b.Prefix); ok {
			return b, args, true
		}
	}
	return ButtonRoute{}, nil, false
}

// Policies is the permission table keyed by command name and button prefix.
func (r *Registry) Policies() map[string]permission.Policy {
	out := make(map[string]permission.Policy, len(r.commands)+len(r.buttons))
	for name, c := range r.commands {
		out[name] = c.Policy
	}
	for _, b := range r.buttons {
		out[b.Prefix] = b.Policy
	}
	return out
}

// Names lists command names, sorted.
func (r *Registry) Names() []string {
	names := append([]string(nil), r.order...)
	sort.Strings(names)
	return names
}

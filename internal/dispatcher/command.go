package dispatcher

import (
	"context"
	"fmt"

	"communitybot/internal/interaction"
	"communitybot/internal/permission"
)

// Message is a rendered reply. The platform adapter turns it into embeds and
// components.
type Message struct {
	Content   string
	Title     string
	Fields    []Field
	Buttons   []Button
	Ephemeral bool
}

type Field struct {
	Name   string
	Value  string
	Inline bool
}

// Button is a component whose CustomID must be built with
// interaction.BuildCustomID.
type Button struct {
	Label    string
	CustomID string
	Disabled bool
}

// Request is what a handler receives once the pipeline has admitted the
// interaction.
type Request struct {
	Interaction *interaction.Interaction
	// CommunityID is the guild's linked community, when it has one.
	CommunityID string
	// Options is the decoded value produced by the command's schema.
	Options any
	// Args are the custom id segments after the button route prefix.
	Args []string
}

// Handler runs one command or button. A returned *UserError is shown to the
// invoker; any other error becomes the generic failure reply.
type Handler func(ctx context.Context, req *Request) (Message, error)

// OptionsDecoder converts the raw options bag into a typed value.
type OptionsDecoder func(raw map[string]any) (any, error)

// Schema returns a decoder producing T through interaction.DecodeOptions.
func Schema[T any]() OptionsDecoder {
	return func(raw map[string]any) (any, error) {
		return interaction.DecodeOptions[T](raw)
	}
}

// Options returns the request's decoded options as T.
func Options[T any](req *Request) T {
	v, _ := req.Options.(T)
	return v
}

// OptionSpec describes one slash command option for registration.
type OptionSpec struct {
	Name        string
	Description string
	Type        OptionType
	Required    bool
	Choices     []string
	MinValue    *float64
	MaxValue    *float64
	MinLength   *int
	MaxLength   *int
}

type OptionType int

const (
	OptionString OptionType = iota + 1
	OptionInteger
	OptionBoolean
	OptionChannel
)

// Command is one slash command.
type Command struct {
	Name        string
	Description string
	Policy      permission.Policy
	// Sensitive commands feed the new account rule of the security monitor.
	Sensitive bool
	// Defer acknowledges before the handler runs, for handlers that call the backend.
	Defer   bool
	Options []OptionSpec
	Schema  OptionsDecoder
	Handler Handler
}

// ButtonRoute handles every button whose custom id starts with Prefix.
type ButtonRoute struct {
	Prefix    string
	Policy    permission.Policy
	Sensitive bool
	Defer     bool
	Handler   Handler
}

// UserError carries a message meant for the invoker.
type UserError struct {
	Message string
}

func (e *UserError) Error() string { return e.Message }

// Userf builds a *UserError.
func Userf(format string, args ...any) error {
	return &UserError{Message: fmt.Sprintf(format, args...)}
}

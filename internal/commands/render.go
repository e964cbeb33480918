package commands

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/samber/lo"

	"communitybot/internal/backend"
	"communitybot/internal/dispatcher"
	"communitybot/internal/interaction"
)

// Messages shown when the backend rejects or cannot serve a request.
const (
	messageBackendBusy     = "The community service is busy. Please try again shortly."
	messageBackendRejected = "The community service rejected the request: %s"
)

// backendFailure turns backend errors the invoker can act on into user errors.
// Everything else is returned unchanged and surfaces as the generic failure.
func backendFailure(err error, notFound string) error {
	var berr *backend.Error
	if !errors.As(err, &berr) {
		return err
	}
	switch berr.Kind {
	case backend.KindNotFound:
		if notFound != "" {
			return &dispatcher.UserError{Message: notFound}
		}
	case backend.KindValidation:
		msg := berr.Message
		if msg == "" {
			msg = "invalid input"
		}
		return dispatcher.Userf(messageBackendRejected, msg)
	case backend.KindRateLimited:
		return &dispatcher.UserError{Message: messageBackendBusy}
	}
	return err
}

// button builds a component whose custom id is guaranteed to parse. Ids that
// would not, such as backend ids with separators, yield nil.
func button(label, prefix string, args ...string) *dispatcher.Button {
	id := interaction.BuildCustomID(prefix, args...)
	if _, err := interaction.ParseCustomID(id); err != nil {
		return nil
	}
	return &dispatcher.Button{Label: truncate(label, maxButtonLabel), CustomID: id}
}

func buttons(candidates ...*dispatcher.Button) []dispatcher.Button {
	return lo.FilterMap(candidates, func(b *dispatcher.Button, _ int) (dispatcher.Button, bool) {
		if b == nil {
			return dispatcher.Button{}, false
		}
		return *b, true
	})
}

const maxButtonLabel = 80

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func taskField(t backend.Task) dispatcher.Field {
	return dispatcher.Field{
		Name:  fmt.Sprintf("%s (%d pts)", t.Title, t.Points),
		Value: fmt.Sprintf("`%s` · %s", t.ID, t.Type),
	}
}

func taskPageMessage(page *backend.TaskPage) dispatcher.Message {
	if len(page.Tasks) == 0 {
		return dispatcher.Message{Content: "There are no open tasks right now.", Ephemeral: true}
	}
	msg := dispatcher.Message{
		Title:     fmt.Sprintf("Tasks (page %d of %d)", page.Page, max(page.TotalPages, 1)),
		Fields:    lo.Map(page.Tasks, func(t backend.Task, _ int) dispatcher.Field { return taskField(t) }),
		Ephemeral: true,
	}
	candidates := lo.Map(page.Tasks, func(t backend.Task, _ int) *dispatcher.Button {
		return button("View "+t.Title, RouteTaskView, t.ID)
	})
	if page.Page > 1 {
		candidates = append(candidates, button("Previous", RouteTasksPage, strconv.Itoa(page.Page-1)))
	}
	if page.Page < page.TotalPages {
		candidates = append(candidates, button("Next", RouteTasksPage, strconv.Itoa(page.Page+1)))
	}
	msg.Buttons = buttons(candidates...)
	return msg
}

func taskMessage(t *backend.Task) dispatcher.Message {
	msg := dispatcher.Message{
		Title:   t.Title,
		Content: t.Description,
		Fields: []dispatcher.Field{
			{Name: "Type", Value: string(t.Type), Inline: true},
			{Name: "Points", Value: strconv.Itoa(t.Points), Inline: true},
		},
		Ephemeral: true,
	}
	if t.URL != "" {
		msg.Fields = append(msg.Fields, dispatcher.Field{Name: "Link", Value: t.URL})
	}
	if !t.EndsAt.IsZero() {
		msg.Fields = append(msg.Fields, dispatcher.Field{Name: "Ends", Value: fmt.Sprintf("<t:%d:R>", t.EndsAt.Unix())})
	}
	msg.Buttons = buttons(button("Complete", RouteTaskComplete, t.ID))
	return msg
}

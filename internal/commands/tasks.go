package commands

import (
	"context"
	"fmt"
	"strconv"

	"communitybot/internal/backend"
	"communitybot/internal/dispatcher"
	"communitybot/internal/records"
	"communitybot/pkg/requestcontext"
)

var taskTypes = []string{
	string(backend.TaskSocial),
	string(backend.TaskDiscord),
	string(backend.TaskQuiz),
	string(backend.TaskCustom),
}

type tasksOptions struct {
	Page int `json:"page" validate:"omitempty,min=1"`
}

type completeTaskOptions struct {
	TaskID string `json:"task_id" validate:"required,alphanum,max=64"`
}

type createTaskOptions struct {
	Type        string `json:"type" validate:"required,oneof=social discord quiz custom"`
	Title       string `json:"title" validate:"required,min=1,max=100"`
	Description string `json:"description" validate:"required,min=1,max=2000"`
	Points      int    `json:"points" validate:"gte=0"`
}

func (s *Set) tasks(ctx context.Context, req *dispatcher.Request) (dispatcher.Message, error) {
	opts := dispatcher.Options[tasksOptions](req)
	return s.listTasks(ctx, req.CommunityID, max(opts.Page, 1))
}

func (s *Set) tasksPageButton(ctx context.Context, req *dispatcher.Request) (dispatcher.Message, error) {
	page := 1
	if len(req.Args) > 0 {
		n, err := strconv.Atoi(req.Args[0])
		if err != nil || n < 1 {
			return dispatcher.Message{}, dispatcher.Userf("That page does not exist.")
		}
		page = n
	}
	return s.listTasks(ctx, req.CommunityID, page)
}

func (s *Set) listTasks(ctx context.Context, communityID string, page int) (dispatcher.Message, error) {
	result, err := s.backend.ListTasks(ctx, communityID, page)
	if err != nil {
		return dispatcher.Message{}, backendFailure(err, "That page does not exist.")
	}
	return taskPageMessage(result), nil
}

func (s *Set) taskViewButton(ctx context.Context, req *dispatcher.Request) (dispatcher.Message, error) {
	if len(req.Args) != 1 {
		return dispatcher.Message{}, dispatcher.Userf("This button is invalid or has expired.")
	}
	task, err := s.backend.Task(ctx, req.CommunityID, req.Args[0])
	if err != nil {
		return dispatcher.Message{}, backendFailure(err, fmt.Sprintf("Task %s was not found.", req.Args[0]))
	}
	return taskMessage(task), nil
}

func (s *Set) completeTask(ctx context.Context, req *dispatcher.Request) (dispatcher.Message, error) {
	opts := dispatcher.Options[completeTaskOptions](req)
	return s.submitCompletion(ctx, req, opts.TaskID)
}

func (s *Set) taskCompleteButton(ctx context.Context, req *dispatcher.Request) (dispatcher.Message, error) {
	if len(req.Args) != 1 {
		return dispatcher.Message{}, dispatcher.Userf("This button is invalid or has expired.")
	}
	return s.submitCompletion(ctx, req, req.Args[0])
}

func (s *Set) submitCompletion(ctx context.Context, req *dispatcher.Request, taskID string) (dispatcher.Message, error) {
	completion, err := s.backend.CompleteTask(ctx, req.CommunityID, taskID, req.Interaction.User.ID)
	if err != nil {
		return dispatcher.Message{}, backendFailure(err, fmt.Sprintf("Task %s was not found.", taskID))
	}
	content := fmt.Sprintf("Task %s submitted. Status: %s.", taskID, completion.Status)
	if completion.PointsAwarded > 0 {
		content = fmt.Sprintf("Task %s completed. You earned %d points.", taskID, completion.PointsAwarded)
	}
	return dispatcher.Message{Content: content, Ephemeral: true}, nil
}

func (s *Set) createTask(ctx context.Context, req *dispatcher.Request) (dispatcher.Message, error) {
	opts := dispatcher.Options[createTaskOptions](req)
	in := req.Interaction
	task, err := s.backend.CreateTask(ctx, req.CommunityID, backend.CreateTaskRequest{
		Type:        backend.TaskType(opts.Type),
		Title:       opts.Title,
		Description: opts.Description,
		Points:      opts.Points,
		CreatedBy:   in.User.ID,
	})
	if err != nil {
		return dispatcher.Message{}, backendFailure(err, "")
	}

	post := records.TaskPost{
		MessageID:   in.ID,
		GuildID:     in.GuildID,
		ChannelID:   in.ChannelID,
		CommunityID: req.CommunityID,
		TaskID:      task.ID,
		PostedBy:    in.User.ID,
		PostedAt:    requestcontext.Now(ctx),
	}
	if err := s.records.SaveTaskPost(ctx, post); err != nil {
		s.warn(ctx, "failed to record task post", "task_id", task.ID, "error", err)
	}

	msg := taskMessage(task)
	msg.Content = fmt.Sprintf("New task created.\n%s", task.Description)
	msg.Ephemeral = false
	return msg, nil
}

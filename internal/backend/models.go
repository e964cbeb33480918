package backend

import "time"

// TaskType is the closed set of task kinds the backend understands.
type TaskType string

const (
	TaskSocial  TaskType = "social"
	TaskDiscord TaskType = "discord"
	TaskQuiz    TaskType = "quiz"
	TaskCustom  TaskType = "custom"
)

type Community struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Task struct {
	ID          string    `json:"id"`
	CommunityID string    `json:"community_id"`
	Type        TaskType  `json:"type"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Points      int       `json:"points"`
	URL         string    `json:"url,omitempty"`
	EndsAt      time.Time `json:"ends_at,omitzero"`
}

type TaskPage struct {
	Tasks      []Task `json:"tasks"`
	Page       int    `json:"page"`
	TotalPages int    `json:"total_pages"`
}

type CreateTaskRequest struct {
	Type        TaskType `json:"type"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Points      int      `json:"points"`
	CreatedBy   string   `json:"created_by"`
}

type Completion struct {
	TaskID        string `json:"task_id"`
	UserID        string `json:"user_id"`
	Status        string `json:"status"`
	PointsAwarded int    `json:"points_awarded"`
}

type AllowlistConnection struct {
	AllowlistID string    `json:"allowlist_id"`
	UserID      string    `json:"user_id"`
	Wallet      string    `json:"wallet,omitempty"`
	Status      string    `json:"status"`
	ConnectedAt time.Time `json:"connected_at"`
}

type AllowlistStatus struct {
	Connections []AllowlistConnection `json:"connections"`
}

type Analytics struct {
	Members        int `json:"members"`
	ActiveMembers  int `json:"active_members"`
	TasksCompleted int `json:"tasks_completed"`
	PointsAwarded  int `json:"points_awarded"`
}

// UserLink is a chat user's link to a backend account.
type UserLink struct {
	UserID    string `json:"user_id"`
	Linked    bool   `json:"linked"`
	AccountID string `json:"account_id,omitempty"`
	Username  string `json:"username,omitempty"`
}

// LinkStart is returned when a user begins account linking.
type LinkStart struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

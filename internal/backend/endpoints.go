package backend

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"communitybot/internal/cache"
	guildmodels "communitybot/internal/guild/models"
)

func (c *Client) get(ctx context.Context, route, path string, query url.Values, out any) error {
	return c.do(ctx, call{route: route, method: http.MethodGet, path: path, query: query, out: out})
}

func (c *Client) post(ctx context.Context, route, path string, body, out any) error {
	return c.do(ctx, call{route: route, method: http.MethodPost, path: path, body: body, out: out})
}

// readThrough serves key from the cache, loading it at most once per key on a
// miss. When the load fails transiently a last known good copy is served if
// present; a definitive answer such as 404 drops the copy instead.
func readThrough[T any](ctx context.Context, c *Client, key cache.Key, route string, load func(context.Context) (T, error)) (T, error) {
	v, stale, err := cache.GetOrLoadStale(ctx, c.cache, key, key.Prefix().DefaultTTL(), c.staleTTL, func(ctx context.Context) (T, error) {
		v, err := load(ctx)
		if err != nil && !IsRetriable(err) {
			c.cache.Invalidate(ctx, key)
		}
		return v, err
	})
	if stale {
		c.metrics.observeStale(route)
	}
	return v, err
}

func seg(s string) string { return url.PathEscape(s) }

// ServerMapping returns the community a guild is linked to on the backend.
func (c *Client) ServerMapping(ctx context.Context, guildID string) (*guildmodels.ServerMapping, error) {
	const route = "/servers/{guild}/community"
	m, err := readThrough(ctx, c, cache.ServerMappingKey(guildID), route, func(ctx context.Context) (guildmodels.ServerMapping, error) {
		var m guildmodels.ServerMapping
		err := c.get(ctx, route, "/servers/"+seg(guildID)+"/community", nil, &m)
		return m, err
	})
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// LinkServer records the guild to community link on the backend.
func (c *Client) LinkServer(ctx context.Context, guildID, communityID, linkedBy string) (*guildmodels.ServerMapping, error) {
	var m guildmodels.ServerMapping
	err := c.post(ctx, "/servers/{guild}/community", "/servers/"+seg(guildID)+"/community", map[string]string{
		"community_id": communityID,
		"linked_by":    linkedBy,
	}, &m)
	c.cache.Invalidate(ctx, cache.ServerMappingKey(guildID), cache.GuildStateKey(guildID))
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// UnlinkServer removes the guild's community link on the backend.
func (c *Client) UnlinkServer(ctx context.Context, guildID string) error {
	err := c.do(ctx, call{
		route:  "/servers/{guild}/community",
		method: http.MethodDelete,
		path:   "/servers/" + seg(guildID) + "/community",
	})
	c.cache.Invalidate(ctx, cache.ServerMappingKey(guildID), cache.GuildStateKey(guildID))
	if IsNotFound(err) {
		return nil
	}
	return err
}

func (c *Client) Community(ctx context.Context, communityID string) (*Community, error) {
	var out Community
	if err := c.get(ctx, "/communities/{community}", "/communities/"+seg(communityID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListTasks returns one page of a community's active tasks.
func (c *Client) ListTasks(ctx context.Context, communityID string, page int) (*TaskPage, error) {
	const route = "/communities/{community}/tasks"
	page = max(page, 1)
	out, err := readThrough(ctx, c, cache.TaskListKey(communityID, page), route, func(ctx context.Context) (TaskPage, error) {
		var p TaskPage
		err := c.get(ctx, route, "/communities/"+seg(communityID)+"/tasks", url.Values{"page": {strconv.Itoa(page)}}, &p)
		return p, err
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Task returns one task's metadata.
func (c *Client) Task(ctx context.Context, communityID, taskID string) (*Task, error) {
	const route = "/communities/{community}/tasks/{task}"
	out, err := readThrough(ctx, c, cache.TaskKey(communityID, taskID), route, func(ctx context.Context) (Task, error) {
		var t Task
		err := c.get(ctx, route, "/communities/"+seg(communityID)+"/tasks/"+seg(taskID), nil, &t)
		return t, err
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateTask(ctx context.Context, communityID string, req CreateTaskRequest) (*Task, error) {
	var out Task
	err := c.post(ctx, "/communities/{community}/tasks", "/communities/"+seg(communityID)+"/tasks", req, &out)
	c.cache.DeletePattern(ctx, cache.TaskPattern(communityID))
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CompleteTask(ctx context.Context, communityID, taskID, userID string) (*Completion, error) {
	var out Completion
	err := c.post(ctx, "/communities/{community}/tasks/{task}/complete",
		"/communities/"+seg(communityID)+"/tasks/"+seg(taskID)+"/complete",
		map[string]string{"user_id": userID}, &out)
	c.cache.DeletePattern(ctx, cache.TaskPattern(communityID))
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ConnectAllowlist(ctx context.Context, communityID, allowlistID, userID, wallet string) (*AllowlistConnection, error) {
	var out AllowlistConnection
	err := c.post(ctx, "/communities/{community}/allowlists/{allowlist}/connect",
		"/communities/"+seg(communityID)+"/allowlists/"+seg(allowlistID)+"/connect",
		map[string]string{"user_id": userID, "wallet": wallet}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AllowlistStatus(ctx context.Context, communityID, userID string) (*AllowlistStatus, error) {
	var out AllowlistStatus
	err := c.get(ctx, "/communities/{community}/allowlists/status",
		"/communities/"+seg(communityID)+"/allowlists/status",
		url.Values{"user_id": {userID}}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Analytics(ctx context.Context, communityID string) (*Analytics, error) {
	var out Analytics
	if err := c.get(ctx, "/communities/{community}/analytics", "/communities/"+seg(communityID)+"/analytics", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UserLink returns whether the user has linked a backend account.
func (c *Client) UserLink(ctx context.Context, userID string) (*UserLink, error) {
	const route = "/users/{user}/link"
	out, err := readThrough(ctx, c, cache.UserLinkKey(userID), route, func(ctx context.Context) (UserLink, error) {
		var l UserLink
		err := c.get(ctx, route, "/users/"+seg(userID)+"/link", nil, &l)
		return l, err
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// StartLink begins account linking and returns the URL the user must visit.
func (c *Client) StartLink(ctx context.Context, userID string) (*LinkStart, error) {
	var out LinkStart
	err := c.post(ctx, "/users/{user}/link", "/users/"+seg(userID)+"/link", nil, &out)
	c.cache.Invalidate(ctx, cache.UserLinkKey(userID))
	if err != nil {
		return nil, err
	}
	return &out, nil
}

package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/WeichunK/calenote-sub000/internal/model"
)

// CreateTask creates a task and returns the authoritative entity.
func (c *Client) CreateTask(ctx context.Context, in model.TaskCreate) (model.Task, error) {
	var t model.Task
	if err := c.write(ctx, http.MethodPost, "/tasks", in, &t); err != nil {
		return model.Task{}, fmt.Errorf("create task: %w", err)
	}
	return t, nil
}

// GetTask fetches a single task by id, including its server-computed
// aggregate fields.
func (c *Client) GetTask(ctx context.Context, id string) (model.Task, error) {
	var t model.Task
	if err := c.get(ctx, "/tasks/"+id, nil, &t); err != nil {
		return model.Task{}, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// ListTasks fetches tasks matching the filter.
func (c *Client) ListTasks(ctx context.Context, f model.TaskFilter) ([]model.Task, error) {
	q := url.Values{}
	q.Set("calendar_id", f.CalendarID)
	if f.Status != "" {
		q.Set("status", f.Status)
	}

	var tasks []model.Task
	if err := c.get(ctx, "/tasks", q, &tasks); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// UpdateTask applies a partial update and returns the authoritative entity.
func (c *Client) UpdateTask(ctx context.Context, id string, in model.TaskUpdate) (model.Task, error) {
	var t model.Task
	if err := c.write(ctx, http.MethodPatch, "/tasks/"+id, in, &t); err != nil {
		return model.Task{}, fmt.Errorf("update task: %w", err)
	}
	return t, nil
}

// DeleteTask deletes a task.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	if err := c.write(ctx, http.MethodDelete, "/tasks/"+id, nil, nil); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

// ArchiveTask archives a task and returns the authoritative entity.
func (c *Client) ArchiveTask(ctx context.Context, id string) (model.Task, error) {
	var t model.Task
	if err := c.write(ctx, http.MethodPost, "/tasks/"+id+"/archive", nil, &t); err != nil {
		return model.Task{}, fmt.Errorf("archive task: %w", err)
	}
	return t, nil
}

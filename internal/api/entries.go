package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/WeichunK/calenote-sub000/internal/model"
)

// CreateEntry creates an entry and returns the authoritative entity.
func (c *Client) CreateEntry(ctx context.Context, in model.EntryCreate) (model.Entry, error) {
	var e model.Entry
	if err := c.write(ctx, http.MethodPost, "/entries", in, &e); err != nil {
		return model.Entry{}, fmt.Errorf("create entry: %w", err)
	}
	return e, nil
}

// GetEntry fetches a single entry by id.
func (c *Client) GetEntry(ctx context.Context, id string) (model.Entry, error) {
	var e model.Entry
	if err := c.get(ctx, "/entries/"+id, nil, &e); err != nil {
		return model.Entry{}, fmt.Errorf("get entry: %w", err)
	}
	return e, nil
}

// ListEntries fetches entries matching the filter.
func (c *Client) ListEntries(ctx context.Context, f model.EntryFilter) ([]model.Entry, error) {
	q := url.Values{}
	q.Set("calendar_id", f.CalendarID)
	if f.TaskID != nil {
		q.Set("task_id", *f.TaskID)
	}
	if f.EntryType != "" {
		q.Set("entry_type", f.EntryType)
	}
	if f.IsCompleted != nil {
		q.Set("is_completed", strconv.FormatBool(*f.IsCompleted))
	}
	if f.HasTimestamp != nil {
		q.Set("has_timestamp", strconv.FormatBool(*f.HasTimestamp))
	}
	if f.RangeStart != nil {
		q.Set("range_start", f.RangeStart.UTC().Format(time.RFC3339))
	}
	if f.RangeEnd != nil {
		q.Set("range_end", f.RangeEnd.UTC().Format(time.RFC3339))
	}
	if f.Search != "" {
		q.Set("search", f.Search)
	}

	var entries []model.Entry
	if err := c.get(ctx, "/entries", q, &entries); err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return entries, nil
}

// UpdateEntry applies a partial update and returns the authoritative entity.
func (c *Client) UpdateEntry(ctx context.Context, id string, in model.EntryUpdate) (model.Entry, error) {
	var e model.Entry
	if err := c.write(ctx, http.MethodPatch, "/entries/"+id, in, &e); err != nil {
		return model.Entry{}, fmt.Errorf("update entry: %w", err)
	}
	return e, nil
}

// DeleteEntry deletes an entry.
func (c *Client) DeleteEntry(ctx context.Context, id string) error {
	if err := c.write(ctx, http.MethodDelete, "/entries/"+id, nil, nil); err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	return nil
}

// CompleteEntry toggles completion and returns the authoritative entity.
func (c *Client) CompleteEntry(ctx context.Context, id string, completed bool) (model.Entry, error) {
	payload := struct {
		IsCompleted bool `json:"is_completed"`
	}{IsCompleted: completed}

	var e model.Entry
	if err := c.write(ctx, http.MethodPost, "/entries/"+id+"/complete", payload, &e); err != nil {
		return model.Entry{}, fmt.Errorf("complete entry: %w", err)
	}
	return e, nil
}

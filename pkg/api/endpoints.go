package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

func hookPath(hookID string, rest ...string) string {
	p := RouteHooks + "/" + url.PathEscape(hookID)
	for _, r := range rest {
		p += "/" + url.PathEscape(r)
	}
	return p
}

func eventPath(id string, rest ...string) string {
	p := RouteEvents + "/" + url.PathEscape(id)
	for _, r := range rest {
		p += "/" + r
	}
	return p
}

// Hooks

// CreateHook creates a hook with the client-chosen id in body.
func (c *Client) CreateHook(ctx context.Context, body HookCreateBody) (*Hook, error) {
	var h Hook
	if err := c.do(ctx, http.MethodPost, RouteHooks, body, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// GetHook retrieves one hook.
func (c *Client) GetHook(ctx context.Context, hookID string) (*Hook, error) {
	var h Hook
	if err := c.do(ctx, http.MethodGet, hookPath(hookID), nil, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// UpdateHookName sets or clears the display name of a hook.
func (c *Client) UpdateHookName(ctx context.Context, hookID string, body HookNameUpdateBody) (*Hook, error) {
	var h Hook
	if err := c.do(ctx, http.MethodPost, hookPath(hookID, suffixName), body, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// UpdateHookVisibility changes visibility and may claim an unowned hook.
func (c *Client) UpdateHookVisibility(ctx context.Context, hookID string, body HookVisibilityUpdateBody) (*Hook, error) {
	var h Hook
	if err := c.do(ctx, http.MethodPost, hookPath(hookID, suffixVisibility), body, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// MyHooks lists the hooks owned by the authenticated user.
func (c *Client) MyHooks(ctx context.Context) ([]Hook, error) {
	var hooks []Hook
	if err := c.do(ctx, http.MethodGet, RouteHooks, nil, &hooks); err != nil {
		return nil, err
	}
	return hooks, nil
}

// DeleteHook removes a hook.
func (c *Client) DeleteHook(ctx context.Context, hookID string) error {
	return c.do(ctx, http.MethodDelete, hookPath(hookID), nil, nil)
}

// Events

// Events lists a page of a hook's events, newest first.
func (c *Client) Events(ctx context.Context, hookID string, q EventsQuery) (*EventsList, error) {
	params := url.Values{}
	if q.Limit > 0 {
		params.Set(QueryParamLimit, strconv.Itoa(q.Limit))
	}
	if q.BeforeTs > 0 {
		params.Set(QueryParamBeforeTs, strconv.FormatInt(q.BeforeTs, 10))
	}
	if q.BeforeID != "" {
		params.Set(QueryParamBeforeID, q.BeforeID)
	}
	path := eventPath(hookID)
	if qs := params.Encode(); qs != "" {
		path += "?" + qs
	}

	var list EventsList
	if err := c.do(ctx, http.MethodGet, path, nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// BookmarkEvent sets or clears the bookmark flag of an event.
func (c *Client) BookmarkEvent(ctx context.Context, eventID string, state bool) (*Event, error) {
	var ev Event
	if err := c.do(ctx, http.MethodPost, eventPath(eventID, suffixBookmark), EventBookmarkBody{State: state}, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

// DeleteEvent removes an event.
func (c *Client) DeleteEvent(ctx context.Context, eventID string) error {
	return c.do(ctx, http.MethodDelete, eventPath(eventID), nil, nil)
}

// Columns

// HookColumns returns the events-table columns of a hook.
func (c *Client) HookColumns(ctx context.Context, hookID string) ([]Column, error) {
	var cols []Column
	if err := c.do(ctx, http.MethodGet, hookPath(hookID, suffixColumns), nil, &cols); err != nil {
		return nil, err
	}
	return cols, nil
}

// SaveHookColumns replaces the columns of a hook.
func (c *Client) SaveHookColumns(ctx context.Context, hookID string, body SaveColumnsBody) ([]Column, error) {
	var cols []Column
	if err := c.do(ctx, http.MethodPost, hookPath(hookID, suffixColumns), body, &cols); err != nil {
		return nil, err
	}
	return cols, nil
}

// Config

// Config retrieves the application configuration, including the broker URL.
func (c *Client) Config(ctx context.Context) (*AppConfig, error) {
	var cfg AppConfig
	if err := c.do(ctx, http.MethodGet, RouteConfig, nil, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// MQTTAuthUser returns broker credentials covering every hook of the user.
func (c *Client) MQTTAuthUser(ctx context.Context) (*MQTTCredentials, error) {
	var creds MQTTCredentials
	if err := c.do(ctx, http.MethodGet, RouteMQTTAuthUser, nil, &creds); err != nil {
		return nil, err
	}
	return &creds, nil
}

// MQTTAuthHook returns broker credentials limited to one hook.
func (c *Client) MQTTAuthHook(ctx context.Context, hookID string) (*MQTTCredentials, error) {
	var creds MQTTCredentials
	if err := c.do(ctx, http.MethodGet, RouteMQTTAuthHook+url.PathEscape(hookID), nil, &creds); err != nil {
		return nil, err
	}
	return &creds, nil
}

// Forward rules

// ForwardRules lists the forward rules of a hook.
func (c *Client) ForwardRules(ctx context.Context, hookID string) ([]ForwardRule, error) {
	var rules []ForwardRule
	if err := c.do(ctx, http.MethodGet, hookPath(hookID, suffixForwardRules), nil, &rules); err != nil {
		return nil, err
	}
	return rules, nil
}

// SaveForwardRule creates or updates a forward rule.
func (c *Client) SaveForwardRule(ctx context.Context, hookID string, rule ForwardRule) (*ForwardRule, error) {
	var saved ForwardRule
	if err := c.do(ctx, http.MethodPut, hookPath(hookID, suffixForwardRules), rule, &saved); err != nil {
		return nil, err
	}
	return &saved, nil
}

// DeleteForwardRule permanently removes a rule and its history.
func (c *Client) DeleteForwardRule(ctx context.Context, hookID, ruleID string) error {
	return c.do(ctx, http.MethodDelete, hookPath(hookID, suffixForwardRules, ruleID), nil, nil)
}

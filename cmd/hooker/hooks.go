package main

import (
	"fmt"

	"hooker/pkg/api"
	"hooker/pkg/jsonpath"

	"github.com/google/uuid"
)

// Hook Commands
type HooksCmd struct {
	List       HooksListCmd       `cmd:"" help:"List your hooks"`
	Get        HooksGetCmd        `cmd:"" help:"Show one hook"`
	Create     HooksCreateCmd     `cmd:"" help:"Create a new hook"`
	Delete     HooksDeleteCmd     `cmd:"" help:"Delete a hook"`
	Rename     HooksRenameCmd     `cmd:"" help:"Set or clear a hook name"`
	Visibility HooksVisibilityCmd `cmd:"" help:"Make a hook public or private"`
}

type HooksListCmd struct{}

func (c *HooksListCmd) Run(ctx *Context) error {
	rest, err := ctx.AuthAPI()
	if err != nil {
		return err
	}
	reqCtx, cancel := ctx.Request()
	defer cancel()

	hooks, err := rest.MyHooks(reqCtx)
	if err != nil {
		return err
	}
	if len(hooks) == 0 {
		ctx.printf("No hooks\n")
		return nil
	}

	ctx.printf("Hooks:\n")
	for _, h := range hooks {
		ctx.printf("  %s: %s (%s, %s)\n", h.ID, h.DisplayName(), h.Visibility, formatMillis(h.Timestamp))
	}
	return nil
}

type HooksGetCmd struct {
	ID string `arg:"" optional:"" help:"Hook ID (defaults to the profile hook)"`
}

func (c *HooksGetCmd) Run(ctx *Context) error {
	id, err := ctx.hookID(c.ID)
	if err != nil {
		return err
	}
	reqCtx, cancel := ctx.Request()
	defer cancel()

	h, err := ctx.API().GetHook(reqCtx, id)
	if err != nil {
		return err
	}
	return ctx.printJSON(h)
}

type HooksCreateCmd struct {
	Private bool `help:"Create the hook private (requires a token)"`
}

func (c *HooksCreateCmd) Run(ctx *Context) error {
	body := api.HookCreateBody{ID: uuid.NewString(), Visibility: api.VisibilityPublic}
	if c.Private {
		body.Visibility = api.VisibilityPrivate
	}

	// Anonymous hooks are claimed later with the verify token.
	var verify string
	if ctx.Config.Token == "" {
		if c.Private {
			return errNoToken
		}
		v, err := api.NewVerify()
		if err != nil {
			return err
		}
		verify = v
		body.OwnerVerify = &verify
	}

	reqCtx, cancel := ctx.Request()
	defer cancel()

	h, err := ctx.API().CreateHook(reqCtx, body)
	if err != nil {
		return err
	}

	ctx.printf("Hook created: %s\n", h.ID)
	ctx.printf("URL: %s\n", h.URL)
	if verify != "" {
		ctx.printf("Owner verify token: %s\n", verify)
		ctx.printf("SAVE THIS TOKEN! It is needed to claim the hook later.\n")
	}
	return nil
}

type HooksDeleteCmd struct {
	ID string `arg:"" help:"ID of the hook to delete"`
}

func (c *HooksDeleteCmd) Run(ctx *Context) error {
	reqCtx, cancel := ctx.Request()
	defer cancel()

	if err := ctx.API().DeleteHook(reqCtx, c.ID); err != nil {
		return err
	}
	ctx.printf("Hook %s deleted\n", c.ID)
	return nil
}

type HooksRenameCmd struct {
	ID   string `arg:"" help:"Hook ID"`
	Name string `arg:"" optional:"" help:"New name (omit to clear)"`
}

func (c *HooksRenameCmd) Run(ctx *Context) error {
	rest, err := ctx.AuthAPI()
	if err != nil {
		return err
	}
	reqCtx, cancel := ctx.Request()
	defer cancel()

	var body api.HookNameUpdateBody
	if c.Name != "" {
		body.Name = &c.Name
	}
	h, err := rest.UpdateHookName(reqCtx, c.ID, body)
	if err != nil {
		return err
	}
	ctx.printf("Hook %s is now %q\n", h.ID, h.DisplayName())
	return nil
}

type HooksVisibilityCmd struct {
	ID         string `arg:"" help:"Hook ID"`
	Visibility string `arg:"" enum:"public,private" help:"public or private"`
	Verify     string `help:"Owner verify token, to claim an anonymous hook"`
}

func (c *HooksVisibilityCmd) Run(ctx *Context) error {
	rest, err := ctx.AuthAPI()
	if err != nil {
		return err
	}
	reqCtx, cancel := ctx.Request()
	defer cancel()

	body := api.HookVisibilityUpdateBody{Visibility: api.VisibilityPublic}
	if c.Visibility == "private" {
		body.Visibility = api.VisibilityPrivate
	}
	if c.Verify != "" {
		body.OwnerVerify = &c.Verify
	}

	h, err := rest.UpdateHookVisibility(reqCtx, c.ID, body)
	if err != nil {
		return err
	}
	ctx.printf("Hook %s is now %s\n", h.ID, h.Visibility)
	return nil
}

// Event Commands
type EventsCmd struct {
	List     EventsListCmd     `cmd:"" help:"List a hook's events, newest first"`
	Bookmark EventsBookmarkCmd `cmd:"" help:"Bookmark an event"`
	Delete   EventsDeleteCmd   `cmd:"" help:"Delete an event"`
}

type EventsListCmd struct {
	Hook     string   `arg:"" optional:"" help:"Hook ID (defaults to the profile hook)"`
	Limit    int      `short:"n" default:"20" help:"Maximum events to show"`
	BeforeTs int64    `help:"Only events older than this millisecond timestamp"`
	BeforeID string   `help:"Tie-breaker for --before-ts"`
	JSONPath []string `name:"jsonpath" short:"p" help:"JSONPath expressions evaluated against each body"`
	JSON     bool     `help:"Print the raw page as JSON"`
}

func (c *EventsListCmd) Run(ctx *Context) error {
	id, err := ctx.hookID(c.Hook)
	if err != nil {
		return err
	}
	reqCtx, cancel := ctx.Request()
	defer cancel()

	page, err := ctx.API().Events(reqCtx, id, api.EventsQuery{Limit: c.Limit, BeforeTs: c.BeforeTs, BeforeID: c.BeforeID})
	if err != nil {
		return err
	}
	if c.JSON {
		return ctx.printJSON(page)
	}

	for _, ev := range page.Items {
		status := "-"
		if ev.ForwardStatus != nil {
			status = string(*ev.ForwardStatus)
		}
		mark := " "
		if ev.Bookmarked {
			mark = "*"
		}
		ctx.printf("%s %s %s %-6s %s%s (forward: %s)\n", mark, ev.ID, formatMillis(ev.Timestamp), ev.Method, ev.Path, query(ev.Querystring), status)
		for _, p := range c.JSONPath {
			v, ok := jsonpath.EvalString(ev.BodyText(), p)
			if !ok {
				v = "<not json>"
			}
			ctx.printf("    %s = %s\n", p, v)
		}
	}
	if page.NextCursor != nil {
		ctx.printf("More: --before-ts %d --before-id %s\n", page.NextCursor.BeforeTs, page.NextCursor.BeforeID)
	}
	return nil
}

func query(qs string) string {
	if qs == "" {
		return ""
	}
	return "?" + qs
}

type EventsBookmarkCmd struct {
	ID    string `arg:"" help:"Event ID"`
	Clear bool   `help:"Remove the bookmark instead"`
}

func (c *EventsBookmarkCmd) Run(ctx *Context) error {
	reqCtx, cancel := ctx.Request()
	defer cancel()

	ev, err := ctx.API().BookmarkEvent(reqCtx, c.ID, !c.Clear)
	if err != nil {
		return err
	}
	if ev.Bookmarked {
		ctx.printf("Event %s bookmarked\n", ev.ID)
	} else {
		ctx.printf("Event %s unbookmarked\n", ev.ID)
	}
	return nil
}

type EventsDeleteCmd struct {
	ID string `arg:"" help:"ID of the event to delete"`
}

func (c *EventsDeleteCmd) Run(ctx *Context) error {
	reqCtx, cancel := ctx.Request()
	defer cancel()

	if err := ctx.API().DeleteEvent(reqCtx, c.ID); err != nil {
		return err
	}
	ctx.printf("Event %s deleted\n", c.ID)
	return nil
}

// Column Commands
type ColumnsCmd struct {
	List ColumnsListCmd `cmd:"" help:"List a hook's columns"`
}

type ColumnsListCmd struct {
	Hook string `arg:"" optional:"" help:"Hook ID (defaults to the profile hook)"`
}

func (c *ColumnsListCmd) Run(ctx *Context) error {
	id, err := ctx.hookID(c.Hook)
	if err != nil {
		return err
	}
	reqCtx, cancel := ctx.Request()
	defer cancel()

	cols, err := ctx.API().HookColumns(reqCtx, id)
	if err != nil {
		return err
	}
	for _, col := range cols {
		shown := "hidden"
		if col.Show {
			shown = "shown"
		}
		line := fmt.Sprintf("  %s: %s [%s, %s]", col.ID, col.Name, col.Type, shown)
		if col.JSONPath != "" {
			line += " " + col.JSONPath
		}
		ctx.printf("%s\n", line)
	}
	return nil
}

// Forward Rule Commands
type ForwardRulesCmd struct {
	List   ForwardRulesListCmd   `cmd:"" help:"List a hook's forward rules"`
	Delete ForwardRulesDeleteCmd `cmd:"" help:"Delete a forward rule"`
}

type ForwardRulesListCmd struct {
	Hook string `arg:"" optional:"" help:"Hook ID (defaults to the profile hook)"`
}

func (c *ForwardRulesListCmd) Run(ctx *Context) error {
	id, err := ctx.hookID(c.Hook)
	if err != nil {
		return err
	}
	reqCtx, cancel := ctx.Request()
	defer cancel()

	rules, err := ctx.API().ForwardRules(reqCtx, id)
	if err != nil {
		return err
	}
	if len(rules) == 0 {
		ctx.printf("No forward rules\n")
		return nil
	}
	for _, r := range rules {
		state := "inactive"
		if r.IsActive {
			state = "active"
		}
		ctx.printf("  %s: %s (%s, %d pass / %d fail filters)\n", r.ID, r.TargetURL, state, len(r.PassFilters), len(r.FailFilters))
	}
	return nil
}

type ForwardRulesDeleteCmd struct {
	Hook string `arg:"" help:"Hook ID"`
	ID   string `arg:"" help:"Rule ID"`
}

func (c *ForwardRulesDeleteCmd) Run(ctx *Context) error {
	reqCtx, cancel := ctx.Request()
	defer cancel()

	if err := ctx.API().DeleteForwardRule(reqCtx, c.Hook, c.ID); err != nil {
		return err
	}
	ctx.printf("Forward rule %s deleted\n", c.ID)
	return nil
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"hooker/internal/config"
	"hooker/pkg/api"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"
)

// CLI defines the command-line interface structure.
type CLI struct {
	// Global flags
	Config  string `short:"c" help:"Profile file (defaults to the user config directory)" env:"HOOKER_CONFIG" type:"path"`
	BaseURL string `help:"Hooker API base URL (overrides the profile)"`
	Token   string `help:"Hooker API token (overrides the profile)"`
	Debug   bool   `help:"Enable debug logging"`

	// Commands
	Status       StatusCmd       `cmd:"" help:"Show the service configuration and broker location"`
	ShowConfig   ShowConfigCmd   `cmd:"" name:"config" help:"Print the effective configuration"`
	Hooks        HooksCmd        `cmd:"" help:"Manage hooks"`
	Events       EventsCmd       `cmd:"" help:"Browse captured events"`
	Columns      ColumnsCmd      `cmd:"" help:"Show hook column settings"`
	ForwardRules ForwardRulesCmd `cmd:"" name:"forward-rules" help:"Manage forward rules"`
	Watch        WatchCmd        `cmd:"" help:"Stream live notifications from the broker"`
	Relay        RelayCmd        `cmd:"" help:"Run or query the local relay"`
	Archive      ArchiveCmd      `cmd:"" help:"Browse the local event archive"`
	Consumers    ConsumersCmd    `cmd:"" help:"Manage relay consumers"`
	Queue        QueueCmd        `cmd:"" help:"Consume relayed messages from RabbitMQ"`
	Password     PasswordCmd     `cmd:"" help:"Password utilities"`
}

// Context holds shared CLI context.
type Context struct {
	Config config.Config
	Logger *log.Logger
	Out    io.Writer

	rest *api.Client
}

var errNoToken = errors.New("no API token configured (set HOOKER_TOKEN or token in the profile)")

// API returns the REST client for the configured service.
func (c *Context) API() *api.Client {
	if c.rest != nil {
		return c.rest
	}
	auth := api.TokenAuth(c.Config.Token)
	if c.Config.Token == "" {
		// Anonymous hooks and public endpoints take no credentials.
		auth = func(context.Context) (map[string]string, error) { return nil, nil }
	}
	c.rest = api.NewWithAuth(auth,
		api.WithBaseURL(c.Config.BaseURL),
		api.WithHTTPClient(&http.Client{Timeout: c.requestTimeout()}),
		api.WithLogger(c.Logger.WithPrefix("api")),
	)
	return c.rest
}

// AuthAPI is API for commands that need a signed-in user.
func (c *Context) AuthAPI() (*api.Client, error) {
	if c.Config.Token == "" {
		return nil, errNoToken
	}
	return c.API(), nil
}

func (c *Context) requestTimeout() time.Duration {
	return time.Duration(c.Config.RequestTimeoutSeconds) * time.Second
}

// Request returns a context bounded by the request timeout.
func (c *Context) Request() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), c.requestTimeout())
}

func (c *Context) printf(format string, args ...any) {
	fmt.Fprintf(c.Out, format, args...)
}

func (c *Context) printJSON(v any) error {
	enc := json.NewEncoder(c.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// hookID resolves an optional hook argument against the profile.
func (c *Context) hookID(arg string) (string, error) {
	if arg != "" {
		return arg, nil
	}
	if c.Config.HookID != "" {
		return c.Config.HookID, nil
	}
	return "", errors.New("no hook given (pass one or set HOOKER_HOOK_ID)")
}

func formatMillis(ms int64) string {
	return time.UnixMilli(ms).Format(time.RFC3339)
}

// ShowConfigCmd prints the merged configuration with secrets masked.
type ShowConfigCmd struct{}

func (c *ShowConfigCmd) Run(ctx *Context) error {
	data, err := ctx.Config.Redacted().YAML()
	if err != nil {
		return err
	}
	_, err = ctx.Out.Write(data)
	return err
}

// StatusCmd checks the service and reports where the broker lives.
type StatusCmd struct{}

func (c *StatusCmd) Run(ctx *Context) error {
	reqCtx, cancel := ctx.Request()
	defer cancel()

	cfg, err := ctx.API().Config(reqCtx)
	if err != nil {
		return fmt.Errorf("failed to reach service: %w", err)
	}

	ctx.printf("Service:   %s\n", ctx.API().BaseURL())
	ctx.printf("Broker:    %s\n", cfg.MQTT.BrokerURL)
	ctx.printf("Client ID: %s<millis>\n", cfg.MQTT.ClientIDPrefix)
	if cfg.SMTPBaseDomain != "" {
		ctx.printf("Email:     *@%s\n", cfg.SMTPBaseDomain)
	}

	if ctx.Config.Token == "" {
		ctx.printf("Account:   anonymous\n")
		return nil
	}
	hooks, err := ctx.API().MyHooks(reqCtx)
	if err != nil {
		return fmt.Errorf("failed to list hooks: %w", err)
	}
	ctx.printf("Hooks:     %d\n", len(hooks))
	return nil
}

// run parses args and executes the selected command.
func run(args []string, out io.Writer) error {
	var cli CLI
	parser, err := kong.New(&cli,
		kong.Name("hooker"),
		kong.Description("CLI client for the Hooker webhook inspection service"),
		kong.UsageOnError(),
		kong.Writers(out, out),
	)
	if err != nil {
		return err
	}
	kctx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	cfg, err := config.Load(cli.Config)
	if err != nil {
		return err
	}
	if cli.BaseURL != "" {
		cfg.BaseURL = cli.BaseURL
	}
	if cli.Token != "" {
		cfg.Token = cli.Token
	}
	if cli.Debug {
		cfg.Debug = true
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})
	logger.SetLevel(log.WarnLevel) // Quiet by default for CLI
	if cfg.Debug {
		logger.SetLevel(log.DebugLevel)
	}
	log.SetDefault(logger)

	return kctx.Run(&Context{Config: cfg, Logger: logger, Out: out})
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		log.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

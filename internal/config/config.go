package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"hooker/pkg/api"

	"gopkg.in/yaml.v3"
)

// Defaults
const (
	DefaultBaseURL                 = api.DefaultBaseURL
	DefaultDBPath                  = "./hooker.db"
	DefaultRelayPort               = "8080"
	DefaultRabbitHost              = "localhost"
	DefaultRabbitPort              = "5672"
	DefaultRabbitUser              = "guest"
	DefaultRabbitPass              = "guest"
	DefaultExchange                = "hooker.events"
	DefaultMessageTTL              = 300000 // 5 minutes
	DefaultMQTTQoS                 = 0
	DefaultWSBufferSize            = 64
	DefaultHTTPReadTimeoutSeconds  = 15
	DefaultHTTPIdleTimeoutSeconds  = 60
	DefaultHTTPReadHeaderTimeout   = 10
	DefaultWSWriteTimeoutSeconds   = 10
	DefaultRequestTimeoutSeconds   = 30
	DefaultSubscribeTimeoutSeconds = 10
)

// profileFile is looked up under os.UserConfigDir when no path is given.
const profileFile = "hooker/config.yaml"

// Config holds the CLI and relay configuration. Values come from the
// defaults, then an optional YAML profile, then environment variables.
type Config struct {
	BaseURL string `yaml:"base_url"`
	Token   string `yaml:"token"`
	// HookID scopes broker credentials to one hook. Empty means all hooks
	// of the token's user.
	HookID string `yaml:"hook_id"`
	UserID string `yaml:"user_id"`
	Debug  bool   `yaml:"debug"`

	DBPath string `yaml:"db_path"`

	RelayPort           string   `yaml:"relay_port"`
	RelayToken          string   `yaml:"relay_token"`
	RelayAllowedOrigins []string `yaml:"relay_allowed_origins"`
	RelayPatterns       []string `yaml:"relay_patterns"`

	RabbitURL  string `yaml:"rabbitmq_url"`
	RabbitHost string `yaml:"rabbitmq_host"`
	RabbitPort string `yaml:"rabbitmq_port"`
	RabbitUser string `yaml:"rabbitmq_user"`
	RabbitPass string `yaml:"rabbitmq_pass"`
	Exchange   string `yaml:"exchange"`
	MessageTTL int    `yaml:"message_ttl"`

	MQTTQoS                 int `yaml:"mqtt_qos"`
	WSBufferSize            int `yaml:"ws_buffer_size"`
	HTTPReadTimeoutSeconds  int `yaml:"http_read_timeout"`
	HTTPIdleTimeoutSeconds  int `yaml:"http_idle_timeout"`
	HTTPReadHeaderTimeout   int `yaml:"http_read_header_timeout"`
	WSWriteTimeoutSeconds   int `yaml:"ws_write_timeout"`
	RequestTimeoutSeconds   int `yaml:"request_timeout"`
	SubscribeTimeoutSeconds int `yaml:"subscribe_timeout"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		BaseURL:                 DefaultBaseURL,
		DBPath:                  DefaultDBPath,
		RelayPort:               DefaultRelayPort,
		RabbitHost:              DefaultRabbitHost,
		RabbitPort:              DefaultRabbitPort,
		RabbitUser:              DefaultRabbitUser,
		RabbitPass:              DefaultRabbitPass,
		Exchange:                DefaultExchange,
		MessageTTL:              DefaultMessageTTL,
		MQTTQoS:                 DefaultMQTTQoS,
		WSBufferSize:            DefaultWSBufferSize,
		HTTPReadTimeoutSeconds:  DefaultHTTPReadTimeoutSeconds,
		HTTPIdleTimeoutSeconds:  DefaultHTTPIdleTimeoutSeconds,
		HTTPReadHeaderTimeout:   DefaultHTTPReadHeaderTimeout,
		WSWriteTimeoutSeconds:   DefaultWSWriteTimeoutSeconds,
		RequestTimeoutSeconds:   DefaultRequestTimeoutSeconds,
		SubscribeTimeoutSeconds: DefaultSubscribeTimeoutSeconds,
	}
}

// Load builds the configuration. An explicit path (or HOOKER_CONFIG) must
// exist; the default profile location is skipped when missing.
func Load(path string) (Config, error) {
	cfg := Defaults()

	optional := false
	if path == "" {
		path = os.Getenv("HOOKER_CONFIG")
	}
	if path == "" {
		path = DefaultPath()
		optional = true
	}
	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			if !optional || !errors.Is(err, fs.ErrNotExist) {
				return Config{}, err
			}
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// DefaultPath is the profile location under the user config directory, or
// "" when there is none.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, profileFile)
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.BaseURL = getEnv("HOOKER_BASE_URL", c.BaseURL)
	c.Token = getEnv("HOOKER_TOKEN", c.Token)
	c.HookID = getEnv("HOOKER_HOOK_ID", c.HookID)
	c.UserID = getEnv("HOOKER_USER_ID", c.UserID)
	c.Debug = getEnvBool("HOOKER_DEBUG", c.Debug)
	c.DBPath = getEnv("HOOKER_DB_PATH", c.DBPath)
	c.RelayPort = getEnv("PORT", c.RelayPort)
	c.RelayToken = getEnv("HOOKER_RELAY_TOKEN", c.RelayToken)
	c.RelayAllowedOrigins = getEnvCSV("HOOKER_RELAY_ORIGINS", c.RelayAllowedOrigins)
	c.RelayPatterns = getEnvCSV("HOOKER_RELAY_PATTERNS", c.RelayPatterns)
	c.RabbitURL = getEnv("RABBITMQ_URL", c.RabbitURL)
	c.RabbitHost = getEnv("RABBITMQ_HOST", c.RabbitHost)
	c.RabbitPort = getEnv("RABBITMQ_PORT", c.RabbitPort)
	c.RabbitUser = getEnv("RABBITMQ_USER", c.RabbitUser)
	c.RabbitPass = getEnv("RABBITMQ_PASS", c.RabbitPass)
	c.Exchange = getEnv("HOOKER_EXCHANGE", c.Exchange)
	c.MessageTTL = getEnvInt("HOOKER_MESSAGE_TTL", c.MessageTTL)
	c.MQTTQoS = getEnvInt("HOOKER_MQTT_QOS", c.MQTTQoS)
	c.WSBufferSize = getEnvInt("HOOKER_WS_BUFFER", c.WSBufferSize)
	c.HTTPReadTimeoutSeconds = getEnvInt("HOOKER_HTTP_READ_TIMEOUT", c.HTTPReadTimeoutSeconds)
	c.HTTPIdleTimeoutSeconds = getEnvInt("HOOKER_HTTP_IDLE_TIMEOUT", c.HTTPIdleTimeoutSeconds)
	c.HTTPReadHeaderTimeout = getEnvInt("HOOKER_HTTP_READ_HEADER_TIMEOUT", c.HTTPReadHeaderTimeout)
	c.WSWriteTimeoutSeconds = getEnvInt("HOOKER_WS_WRITE_TIMEOUT", c.WSWriteTimeoutSeconds)
	c.RequestTimeoutSeconds = getEnvInt("HOOKER_REQUEST_TIMEOUT", c.RequestTimeoutSeconds)
	c.SubscribeTimeoutSeconds = getEnvInt("HOOKER_SUBSCRIBE_TIMEOUT", c.SubscribeTimeoutSeconds)
}

// AMQPURL returns RabbitURL, or one assembled from the host settings.
func (c Config) AMQPURL() string {
	if c.RabbitURL != "" {
		return c.RabbitURL
	}
	u := url.URL{
		Scheme: "amqp",
		User:   url.UserPassword(c.RabbitUser, c.RabbitPass),
		Host:   net.JoinHostPort(c.RabbitHost, c.RabbitPort),
		Path:   "/",
	}
	return u.String()
}

// Redacted returns a copy safe to print.
func (c Config) Redacted() Config {
	out := c
	if out.Token != "" {
		out.Token = redact
	}
	if out.RelayToken != "" {
		out.RelayToken = redact
	}
	if out.RabbitPass != "" {
		out.RabbitPass = redact
	}
	if out.RabbitURL != "" {
		if u, err := url.Parse(out.RabbitURL); err == nil && u.User != nil {
			u.User = url.UserPassword(u.User.Username(), redact)
			out.RabbitURL = u.String()
		}
	}
	return out
}

const redact = "xxxxx"

// YAML renders c as a profile file.
func (c Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvCSV(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

package pubsub

import (
	"context"
	"time"

	"hooker/pkg/api"
)

// BrokerConfig locates the broker.
type BrokerConfig struct {
	URL            string
	ClientIDPrefix string
}

// Credentials are short-lived broker credentials.
type Credentials struct {
	Username  string
	Password  string
	ExpiresAt time.Time
}

// CredentialSource supplies connection parameters on every Connect.
type CredentialSource interface {
	BrokerConfig(ctx context.Context) (BrokerConfig, error)
	Credentials(ctx context.Context) (Credentials, error)
}

// ConfigAPI is the part of the REST client that hands out broker access.
// *api.Client implements it.
type ConfigAPI interface {
	Config(ctx context.Context) (*api.AppConfig, error)
	MQTTAuthUser(ctx context.Context) (*api.MQTTCredentials, error)
	MQTTAuthHook(ctx context.Context, hookID string) (*api.MQTTCredentials, error)
}

type apiCredentials struct {
	api    ConfigAPI
	hookID string
}

// APICredentials fetches broker access from the REST API. With an empty
// hookID the credentials cover all of the user's hooks; otherwise only that
// hook's topics.
func APICredentials(c ConfigAPI, hookID string) CredentialSource {
	return &apiCredentials{api: c, hookID: hookID}
}

func (a *apiCredentials) BrokerConfig(ctx context.Context) (BrokerConfig, error) {
	cfg, err := a.api.Config(ctx)
	if err != nil {
		return BrokerConfig{}, err
	}
	return BrokerConfig{URL: cfg.MQTT.BrokerURL, ClientIDPrefix: cfg.MQTT.ClientIDPrefix}, nil
}

func (a *apiCredentials) Credentials(ctx context.Context) (Credentials, error) {
	var (
		creds *api.MQTTCredentials
		err   error
	)
	if a.hookID == "" {
		creds, err = a.api.MQTTAuthUser(ctx)
	} else {
		creds, err = a.api.MQTTAuthHook(ctx, a.hookID)
	}
	if err != nil {
		return Credentials{}, err
	}
	return Credentials{
		Username:  creds.Username,
		Password:  creds.Password,
		ExpiresAt: time.UnixMilli(creds.ExpiresAt),
	}, nil
}

package api

// AppConfig is the configuration the service exposes to clients.
type AppConfig struct {
	MQTT MQTTConfig `json:"mqtt"`
	// SMTPBaseDomain enables email ingestion when set.
	SMTPBaseDomain string `json:"smtpBaseDomain,omitempty"`
}

// MQTTConfig locates the broker.
type MQTTConfig struct {
	BrokerURL      string `json:"brokerUrl"`
	ClientIDPrefix string `json:"clientIdPrefix"`
}

// MQTTCredentials are short-lived broker credentials (JWT in Password).
type MQTTCredentials struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	ExpiresAt int64  `json:"expiresAt"`
}

type User struct {
	ID            string  `json:"id"`
	Email         string  `json:"email"`
	Name          *string `json:"name,omitempty"`
	AvatarURL     *string `json:"avatarUrl,omitempty"`
	EmailVerified bool    `json:"emailVerified"`
	CreatedAt     string  `json:"createdAt"` // ISO timestamp
	UpdatedAt     string  `json:"updatedAt"`
}

type AccessToken struct {
	ID          string `json:"id"`
	Token       string `json:"token"`
	Description string `json:"description"`
	LastUsed    *int64 `json:"lastUsed"`
	Timestamp   int64  `json:"timestamp"`
}

type AccessTokenBody struct {
	Description string `json:"description"`
}

type LoginBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginErrorCode explains a failed login.
type LoginErrorCode string

const (
	LoginNeedsVerified      LoginErrorCode = "needsVerified"
	LoginInvalidCredentials LoginErrorCode = "invalidCredentials"
)

// LoginResult carries either User (Success) or ErrorCode.
type LoginResult struct {
	Success   bool           `json:"success"`
	User      *User          `json:"user,omitempty"`
	ErrorCode LoginErrorCode `json:"errorCode,omitempty"`
}

type RegisterBody struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ChangePasswordBody struct {
	CurrentPassword string `json:"currentPassword,omitempty"`
	NewPassword     string `json:"newPassword"`
}

// ResetPasswordBody resets a password with an 8-character A-Z code.
type ResetPasswordBody struct {
	Code        string `json:"code"`
	NewPassword string `json:"newPassword"`
}

type VerifyEmailBody struct {
	Code string `json:"code"`
}

type DeleteAccountBody struct {
	Password string `json:"password,omitempty"`
}

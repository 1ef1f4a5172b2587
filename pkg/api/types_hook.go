package api

import (
	"crypto/rand"
	"fmt"
)

// HookVisibility controls who can read a hook's events.
type HookVisibility string

const (
	VisibilityPublic  HookVisibility = "Public"
	VisibilityPrivate HookVisibility = "Private"
)

// Hook is the parent record grouping captured events.
type Hook struct {
	ID          string         `json:"id"`
	Timestamp   int64          `json:"timestamp"`
	CreatedBy   *string        `json:"createdBy"` // nil for anonymous ownership
	OwnerVerify *string        `json:"ownerVerify,omitempty"`
	Visibility  HookVisibility `json:"visibility"`
	Name        *string        `json:"name,omitempty"`
	Node        string         `json:"node"` // execution node hosting the hook
	URL         string         `json:"url"`  // public URL to send webhooks to
}

// DisplayName returns the hook name, falling back to its id.
func (h Hook) DisplayName() string {
	if h.Name != nil && *h.Name != "" {
		return *h.Name
	}
	return h.ID
}

// HookCreateBody creates a hook with a client-chosen id.
type HookCreateBody struct {
	ID          string         `json:"id"`
	OwnerVerify *string        `json:"ownerVerify,omitempty"`
	Visibility  HookVisibility `json:"visibility,omitempty"`
}

// HookVisibilityUpdateBody changes visibility, optionally claiming an unowned hook.
type HookVisibilityUpdateBody struct {
	Visibility  HookVisibility `json:"visibility"`
	OwnerVerify *string        `json:"ownerVerify,omitempty"`
}

// HookClaimBody claims ownership of an unowned hook.
type HookClaimBody struct {
	OwnerVerify string `json:"ownerVerify"`
}

// HookNameUpdateBody sets the display name; nil clears it.
type HookNameUpdateBody struct {
	Name *string `json:"name"`
}

// HookURL is one of the public URLs of a hook. Exactly one per hook is primary.
type HookURL struct {
	ID        string `json:"id"`
	HookID    string `json:"hookId"`
	Name      string `json:"name"`
	Node      string `json:"node"`
	IsPrimary bool   `json:"isPrimary"`
	URL       string `json:"url"`
}

// HookURLCreateBody creates a non-primary hook URL.
// Name must match ^[a-z0-9_-]{1,50}$.
type HookURLCreateBody struct {
	Name string `json:"name"`
}

// Deleted is the payload of every "deleted" notification.
type Deleted struct {
	ID string `json:"id"`
}

const (
	verifyAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	verifyLength   = 25
)

// NewVerify generates an owner verification token for anonymous hooks.
func NewVerify() (string, error) {
	b := make([]byte, verifyLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate verify token: %w", err)
	}
	for i := range b {
		b[i] = verifyAlphabet[int(b[i])%len(verifyAlphabet)]
	}
	return string(b), nil
}

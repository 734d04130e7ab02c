// Package keyring provides access to the system keychain for storing
// API credentials.
package keyring

import (
	"fmt"

	"github.com/zalando/go-keyring"
)

const serviceName = "voicereply"

// APIKey represents a named credential stored in the keychain.
type APIKey string

const (
	// MailToken is the bearer token for the mail backend.
	MailToken APIKey = "mail-api-token"
	// Deepgram is the streaming recognition engine key.
	Deepgram APIKey = "deepgram-api-key"
	// OpenAI is the Whisper fallback engine key.
	OpenAI APIKey = "openai-api-key"
	// Anthropic is the devserver composition key.
	Anthropic APIKey = "anthropic-api-key"
)

// AllAPIKeys returns all known credential types for iteration.
func AllAPIKeys() []APIKey {
	return []APIKey{MailToken, Deepgram, OpenAI, Anthropic}
}

// DisplayName returns a human-readable name for the credential.
func (k APIKey) DisplayName() string {
	switch k {
	case MailToken:
		return "mail"
	case Deepgram:
		return "deepgram"
	case OpenAI:
		return "openai"
	case Anthropic:
		return "anthropic"
	default:
		return string(k)
	}
}

// Get retrieves a credential from the system keychain.
func Get(apiKey APIKey) (string, error) {
	value, err := keyring.Get(serviceName, string(apiKey))
	if err != nil {
		return "", fmt.Errorf("failed to get %s from keychain: %w", apiKey.DisplayName(), err)
	}

	return value, nil
}

// Set stores a credential in the system keychain.
func Set(apiKey APIKey, value string) error {
	if err := keyring.Set(serviceName, string(apiKey), value); err != nil {
		return fmt.Errorf("failed to set %s in keychain: %w", apiKey.DisplayName(), err)
	}

	return nil
}

// IsSet checks whether a credential exists in the keychain.
func IsSet(apiKey APIKey) bool {
	_, err := keyring.Get(serviceName, string(apiKey))

	return err == nil
}

// APIKeyFromServiceName maps a service name (e.g. "mail") to an APIKey.
func APIKeyFromServiceName(name string) (APIKey, error) {
	switch name {
	case "mail":
		return MailToken, nil
	case "deepgram":
		return Deepgram, nil
	case "openai":
		return OpenAI, nil
	case "anthropic":
		return Anthropic, nil
	default:
		return "", fmt.Errorf("unknown service: %s", name)
	}
}

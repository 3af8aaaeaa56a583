// Package credential stores the Anthropic API key in the OS keychain.
package credential

import (
	stderrors "errors"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	zkr "github.com/zalando/go-keyring"

	"github.com/hpungsan/objective/internal/errors"
)

const (
	serviceName = "objective"
	accountName = "anthropic-api-key"

	// EnvAPIKey is consulted when the keychain holds no key.
	EnvAPIKey = "ANTHROPIC_API_KEY"

	// EnvDisabled set to 1 skips the keychain entirely (headless/CI).
	EnvDisabled = "OBJECTIVE_KEYRING_DISABLED"
)

// Store reads and writes the cloud credential.
type Store struct {
	disabled bool
}

// New returns a Store. The keychain is bypassed when OBJECTIVE_KEYRING_DISABLED=1.
func New() *Store {
	return &Store{disabled: os.Getenv(EnvDisabled) == "1"}
}

// AnthropicKey returns the stored key, then the environment variable, then "".
// A missing key is not an error; the caller decides whether it needs one.
func (s *Store) AnthropicKey() (string, error) {
	if !s.disabled {
		key, err := zkr.Get(serviceName, accountName)
		switch {
		case err == nil && strings.TrimSpace(key) != "":
			return strings.TrimSpace(key), nil
		case err != nil && !stderrors.Is(err, zkr.ErrNotFound):
			log.Debug().Err(err).Msg("keychain unavailable, falling back to environment")
		}
	}
	return strings.TrimSpace(os.Getenv(EnvAPIKey)), nil
}

// SetAnthropicKey saves key in the keychain.
func (s *Store) SetAnthropicKey(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.NewValidation("api key must not be empty")
	}
	if s.disabled {
		return errors.NewConfig("keychain is disabled; set " + EnvAPIKey + " instead")
	}
	if err := zkr.Set(serviceName, accountName, key); err != nil {
		return errors.NewStorage("store api key", err)
	}
	return nil
}

// DeleteAnthropicKey removes the key from the keychain. Deleting a key that
// does not exist succeeds.
func (s *Store) DeleteAnthropicKey() error {
	if s.disabled {
		return nil
	}
	if err := zkr.Delete(serviceName, accountName); err != nil && !stderrors.Is(err, zkr.ErrNotFound) {
		return errors.NewStorage("delete api key", err)
	}
	return nil
}

// Package credentials stores session secrets in the OS keyring, with a
// fallback to environment variables for headless machines.
package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrNotFound is returned by keyrings when no secret is stored for an account.
var ErrNotFound = errors.New("credential not found")

// Source indicates where a secret was retrieved from
type Source string

const (
	SourceKeyring     Source = "keyring"
	SourceEnvironment Source = "environment"
	SourceNone        Source = "none"
)

// EnvPrefix starts the environment variable consulted when the keyring has no
// secret, e.g. GAMESHELF_SESSION for the "session" account.
const EnvPrefix = "GAMESHELF_"

// CredentialInfo contains credential information returned by Get()
type CredentialInfo struct {
	Source  Source // Where the secret came from
	Service string // Keyring service name
	Account string // Account within the service
	Secret  string // The secret itself, never serialized
	Found   bool   // Whether a secret was found
}

// JSON serializes the credential info to JSON (secret excluded)
func (c *CredentialInfo) JSON() ([]byte, error) {
	output := struct {
		Service string `json:"service"`
		Account string `json:"account"`
		Source  string `json:"source"`
		Found   bool   `json:"found"`
	}{
		Service: c.Service,
		Account: c.Account,
		Source:  string(c.Source),
		Found:   c.Found,
	}
	return json.Marshal(output)
}

// Keyring is the interface for keyring operations
type Keyring interface {
	Set(service, account, secret string) error
	Get(service, account string) (string, error)
	Delete(service, account string) error
}

// Manager handles credential operations for one keyring service
type Manager struct {
	keyring Keyring
	service string
}

// ManagerOption is a functional option for Manager
type ManagerOption func(*Manager)

// WithKeyring sets a custom keyring implementation
func WithKeyring(k Keyring) ManagerOption {
	return func(m *Manager) {
		m.keyring = k
	}
}

// NewManager creates a credential manager for the given keyring service.
func NewManager(service string, opts ...ManagerOption) *Manager {
	m := &Manager{
		keyring: &systemKeyring{},
		service: strings.TrimSpace(service),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Service returns the keyring service name.
func (m *Manager) Service() string {
	return m.service
}

// normalizeAccount normalizes account names to lowercase
func normalizeAccount(account string) string {
	return strings.ToLower(strings.TrimSpace(account))
}

// envKey returns the environment variable checked for account
func envKey(account string) string {
	r := strings.NewReplacer("-", "_", ".", "_", ":", "_")
	return EnvPrefix + strings.ToUpper(r.Replace(normalizeAccount(account)))
}

// Set stores a secret in the keyring
func (m *Manager) Set(ctx context.Context, account, secret string) error {
	if err := m.keyring.Set(m.service, normalizeAccount(account), secret); err != nil {
		return fmt.Errorf("failed to store %s in keyring: %w", account, err)
	}
	return nil
}

// Get retrieves a secret, trying the keyring first and then the environment.
// A missing secret is not an error: Found is false instead.
func (m *Manager) Get(ctx context.Context, account string) (*CredentialInfo, error) {
	account = normalizeAccount(account)
	info := &CredentialInfo{
		Source:  SourceNone,
		Service: m.service,
		Account: account,
	}

	secret, err := m.keyring.Get(m.service, account)
	if err == nil && secret != "" {
		info.Source = SourceKeyring
		info.Secret = secret
		info.Found = true
		return info, nil
	}
	if err != nil && !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrKeyringNotAvailable) {
		return nil, fmt.Errorf("failed to read %s from keyring: %w", account, err)
	}

	if v := os.Getenv(envKey(account)); v != "" {
		info.Source = SourceEnvironment
		info.Secret = v
		info.Found = true
	}
	return info, nil
}

// Delete removes a secret from the keyring. Deleting a missing secret is not
// an error.
func (m *Manager) Delete(ctx context.Context, account string) error {
	err := m.keyring.Delete(m.service, normalizeAccount(account))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return nil
}

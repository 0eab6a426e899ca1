package auth

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "kobomedia"
	keyringPrefix  = "token_"
	// keyringIndex lists the stored servers, since keyrings cannot be enumerated
	keyringIndex = "servers"
)

// KeyringStore implements TokenStore using the system keychain
type KeyringStore struct{}

// NewKeyringStore creates a keyring store after checking the keychain answers
func NewKeyringStore() (*KeyringStore, error) {
	testKey := "test_availability"
	if err := keyring.Set(keyringService, testKey, "test"); err != nil {
		return nil, fmt.Errorf("keyring not available: %w", err)
	}
	_ = keyring.Delete(keyringService, testKey)

	return &KeyringStore{}, nil
}

// Store saves the credential to the system keychain
func (k *KeyringStore) Store(cred *Credential) error {
	if cred == nil || cred.Server == "" {
		return ErrInvalidCredentials
	}

	data, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("failed to marshal credential: %w", err)
	}
	if err := keyring.Set(keyringService, keyringPrefix+cred.Server, string(data)); err != nil {
		return fmt.Errorf("failed to store in keyring: %w", err)
	}

	servers := k.servers()
	for _, s := range servers {
		if s == cred.Server {
			return nil
		}
	}
	return k.saveServers(append(servers, cred.Server))
}

// Retrieve gets the credential from the system keychain
func (k *KeyringStore) Retrieve(server string) (*Credential, error) {
	if server == "" {
		return nil, ErrInvalidCredentials
	}

	data, err := keyring.Get(keyringService, keyringPrefix+server)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, ErrCredentialsNotFound
		}
		return nil, fmt.Errorf("failed to retrieve from keyring: %w", err)
	}

	var cred Credential
	if err := json.Unmarshal([]byte(data), &cred); err != nil {
		return nil, fmt.Errorf("failed to unmarshal credential: %w", err)
	}
	return &cred, nil
}

// List returns every credential named in the server index
func (k *KeyringStore) List() ([]*Credential, error) {
	creds := []*Credential{}
	for _, server := range k.servers() {
		if cred, err := k.Retrieve(server); err == nil {
			creds = append(creds, cred)
		}
	}
	return creds, nil
}

// Delete removes the credential from the system keychain
func (k *KeyringStore) Delete(server string) error {
	if server == "" {
		return ErrInvalidCredentials
	}

	if err := keyring.Delete(keyringService, keyringPrefix+server); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return ErrCredentialsNotFound
		}
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}

	servers := k.servers()
	kept := servers[:0]
	for _, s := range servers {
		if s != server {
			kept = append(kept, s)
		}
	}
	return k.saveServers(kept)
}

// Exists checks if a credential exists in the keychain
func (k *KeyringStore) Exists(server string) bool {
	if server == "" {
		return false
	}
	_, err := keyring.Get(keyringService, keyringPrefix+server)
	return err == nil
}

func (k *KeyringStore) servers() []string {
	data, err := keyring.Get(keyringService, keyringIndex)
	if err != nil {
		return nil
	}
	var servers []string
	if err := json.Unmarshal([]byte(data), &servers); err != nil {
		return nil
	}
	return servers
}

func (k *KeyringStore) saveServers(servers []string) error {
	if len(servers) == 0 {
		if err := keyring.Delete(keyringService, keyringIndex); err != nil && !errors.Is(err, keyring.ErrNotFound) {
			return err
		}
		return nil
	}
	data, err := json.Marshal(servers)
	if err != nil {
		return err
	}
	return keyring.Set(keyringService, keyringIndex, string(data))
}

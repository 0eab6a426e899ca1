package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"
)

// Credential is the API token stored for one Kobo server
type Credential struct {
	// Server is the form-builder API host the token belongs to
	Server       string    `json:"server"`
	Token        string    `json:"token"`
	LastModified time.Time `json:"last_modified"`
}

// TokenStore is the interface for storing and retrieving tokens
type TokenStore interface {
	// Store saves the token of cred.Server
	Store(cred *Credential) error

	// Retrieve gets the token for a server
	Retrieve(server string) (*Credential, error)

	// List returns all stored credentials
	List() ([]*Credential, error)

	// Delete removes the token for a server
	Delete(server string) error

	// Exists checks if a token is stored for a server
	Exists(server string) bool
}

const credentialsFile = "credentials.enc"

// Manager handles token storage with fallback mechanisms
type Manager struct {
	stores []TokenStore
}

// NewManager uses the system keychain when it is reachable and an
// encrypted file in the config directory as fallback
func NewManager() (*Manager, error) {
	var stores []TokenStore

	if keyringStore, err := NewKeyringStore(); err == nil {
		stores = append(stores, keyringStore)
	}

	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	stores = append(stores, NewEncryptedFileStore(filepath.Join(configDir, credentialsFile)))
	return &Manager{stores: stores}, nil
}

// OpenManager returns a manager for token lookups. Unlike NewManager it
// never writes: the keychain is not tested and no passphrase is generated.
func OpenManager() (*Manager, error) {
	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}
	return &Manager{stores: []TokenStore{
		&KeyringStore{},
		NewEncryptedFileStore(filepath.Join(configDir, credentialsFile)),
	}}, nil
}

// NewManagerWithStores creates a manager over the given stores, tried in order
func NewManagerWithStores(stores ...TokenStore) *Manager {
	return &Manager{stores: stores}
}

// NormalizeServer reduces a server URL to the form used as storage key
func NormalizeServer(server string) string {
	return strings.TrimRight(strings.TrimSpace(server), "/")
}

// Store saves a token using the first store that accepts it
func (m *Manager) Store(server, token string) error {
	server = NormalizeServer(server)
	token = strings.TrimSpace(token)
	if server == "" {
		return errors.New("server is required")
	}
	if token == "" {
		return errors.New("token is required")
	}

	cred := &Credential{Server: server, Token: token, LastModified: time.Now()}

	var lastErr error
	for _, store := range m.stores {
		if err := store.Store(cred); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}

	if lastErr != nil {
		return fmt.Errorf("failed to store token: %w", lastErr)
	}
	return ErrStoreUnavailable
}

// Retrieve gets the credential from the first store that has it
func (m *Manager) Retrieve(server string) (*Credential, error) {
	server = NormalizeServer(server)
	for _, store := range m.stores {
		if cred, err := store.Retrieve(server); err == nil && cred != nil {
			return cred, nil
		}
	}
	return nil, fmt.Errorf("%w for server: %s", ErrCredentialsNotFound, server)
}

// Token returns just the stored token for server
func (m *Manager) Token(server string) (string, error) {
	cred, err := m.Retrieve(server)
	if err != nil {
		return "", err
	}
	return cred.Token, nil
}

// List returns the stored credentials of all stores, newest version per server
func (m *Manager) List() ([]*Credential, error) {
	byServer := make(map[string]*Credential)

	for _, store := range m.stores {
		creds, err := store.List()
		if err != nil {
			continue
		}
		for _, cred := range creds {
			if existing, ok := byServer[cred.Server]; !ok || cred.LastModified.After(existing.LastModified) {
				byServer[cred.Server] = cred
			}
		}
	}

	result := make([]*Credential, 0, len(byServer))
	for _, cred := range byServer {
		result = append(result, cred)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Server < result[j].Server })
	return result, nil
}

// Delete removes the token from every store holding it
func (m *Manager) Delete(server string) error {
	server = NormalizeServer(server)
	var deleted bool
	var lastErr error

	for _, store := range m.stores {
		if err := store.Delete(server); err == nil {
			deleted = true
		} else if !errors.Is(err, ErrCredentialsNotFound) {
			lastErr = err
		}
	}

	if !deleted && lastErr != nil {
		return fmt.Errorf("failed to delete token: %w", lastErr)
	}
	if !deleted {
		return fmt.Errorf("%w for server: %s", ErrCredentialsNotFound, server)
	}
	return nil
}

// getConfigDir returns the configuration directory path. It is created by
// whoever writes into it first.
func getConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "kobomedia")
	case "windows":
		configDir = filepath.Join(os.Getenv("APPDATA"), "kobomedia")
	default:
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			configDir = filepath.Join(xdgConfig, "kobomedia")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config", "kobomedia")
		}
	}

	return configDir, nil
}

// MaskToken masks all but the first 4 and last 4 characters of a token
func MaskToken(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// Errors
var (
	ErrCredentialsNotFound = errors.New("token not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrStoreUnavailable    = errors.New("token store unavailable")
)

package auth

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/crypto/pbkdf2"
)

const (
	vaultVersion   = 2
	vaultSaltLen   = 16
	vaultKeyLen    = 32
	kdfIterations  = 210000
	passphraseEnv  = "KOBOMEDIA_PASSPHRASE"
	passphraseName = ".passphrase"
)

// errNoPassphrase means a lookup found a credentials file but no passphrase
// to open it with. Only Store creates a passphrase.
var errNoPassphrase = errors.New("no passphrase available, set " + passphraseEnv + " or run 'kobomedia auth login'")

// vault is the credentials file. Each server's token is sealed on its own
// with the server URL as additional data, so an entry cannot be moved to
// another server without failing to open.
type vault struct {
	Version    int                   `json:"version"`
	Salt       []byte                `json:"salt"`
	Iterations int                   `json:"iterations"`
	Servers    map[string]vaultEntry `json:"servers"`
}

type vaultEntry struct {
	Sealed   []byte    `json:"sealed"`
	Modified time.Time `json:"modified"`
}

// passphraseFunc returns the vault passphrase. create is only true when a
// token is being written.
type passphraseFunc func(create bool) (string, error)

// EncryptedFileStore implements TokenStore with a file of AES-GCM sealed
// tokens, keyed with PBKDF2
type EncryptedFileStore struct {
	path       string
	passphrase passphraseFunc

	mu sync.Mutex
}

// NewEncryptedFileStore creates a store at path. The passphrase comes from
// KOBOMEDIA_PASSPHRASE, or from a .passphrase file in the config directory
// that is generated on the first Store.
func NewEncryptedFileStore(path string) *EncryptedFileStore {
	return &EncryptedFileStore{path: path, passphrase: configPassphrase}
}

// NewEncryptedFileStoreWithPassphrase creates a store with an explicit passphrase
func NewEncryptedFileStoreWithPassphrase(path, passphrase string) (*EncryptedFileStore, error) {
	if passphrase == "" {
		return nil, errors.New("passphrase cannot be empty")
	}
	return &EncryptedFileStore{
		path:       path,
		passphrase: func(bool) (string, error) { return passphrase, nil },
	}, nil
}

// Store seals cred.Token under cred.Server, replacing any previous token
func (e *EncryptedFileStore) Store(cred *Credential) error {
	if cred == nil || cred.Server == "" {
		return ErrInvalidCredentials
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	v, err := e.read()
	if errors.Is(err, fs.ErrNotExist) {
		v, err = newVault()
	}
	if err != nil {
		return err
	}

	key, err := e.key(v, true)
	if err != nil {
		return err
	}
	sealed, err := sealToken(key, cred.Server, cred.Token)
	if err != nil {
		return fmt.Errorf("failed to encrypt token: %w", err)
	}

	modified := cred.LastModified
	if modified.IsZero() {
		modified = time.Now()
	}
	v.Servers[cred.Server] = vaultEntry{Sealed: sealed, Modified: modified}
	return e.write(v)
}

// Retrieve opens the token stored for server
func (e *EncryptedFileStore) Retrieve(server string) (*Credential, error) {
	if server == "" {
		return nil, ErrInvalidCredentials
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	v, err := e.read()
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrCredentialsNotFound
	}
	if err != nil {
		return nil, err
	}

	entry, ok := v.Servers[server]
	if !ok {
		return nil, ErrCredentialsNotFound
	}
	key, err := e.key(v, false)
	if err != nil {
		return nil, err
	}
	return openEntry(key, server, entry)
}

// List opens every stored token, ordered by server
func (e *EncryptedFileStore) List() ([]*Credential, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	v, err := e.read()
	if errors.Is(err, fs.ErrNotExist) {
		return []*Credential{}, nil
	}
	if err != nil {
		return nil, err
	}
	if len(v.Servers) == 0 {
		return []*Credential{}, nil
	}

	key, err := e.key(v, false)
	if err != nil {
		return nil, err
	}

	servers := make([]string, 0, len(v.Servers))
	for server := range v.Servers {
		servers = append(servers, server)
	}
	sort.Strings(servers)

	creds := make([]*Credential, 0, len(servers))
	for _, server := range servers {
		cred, err := openEntry(key, server, v.Servers[server])
		if err != nil {
			return nil, err
		}
		creds = append(creds, cred)
	}
	return creds, nil
}

// Delete drops the entry for server. The file goes away with its last entry.
// No passphrase is needed.
func (e *EncryptedFileStore) Delete(server string) error {
	if server == "" {
		return ErrInvalidCredentials
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	v, err := e.read()
	if errors.Is(err, fs.ErrNotExist) {
		return ErrCredentialsNotFound
	}
	if err != nil {
		return err
	}
	if _, ok := v.Servers[server]; !ok {
		return ErrCredentialsNotFound
	}

	delete(v.Servers, server)
	if len(v.Servers) == 0 {
		return os.Remove(e.path)
	}
	return e.write(v)
}

// Exists reports whether a token for server can be opened
func (e *EncryptedFileStore) Exists(server string) bool {
	cred, err := e.Retrieve(server)
	return err == nil && cred != nil
}

func newVault() (*vault, error) {
	salt := make([]byte, vaultSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return &vault{
		Version:    vaultVersion,
		Salt:       salt,
		Iterations: kdfIterations,
		Servers:    make(map[string]vaultEntry),
	}, nil
}

// read returns an error wrapping fs.ErrNotExist when there is no file yet
func (e *EncryptedFileStore) read() (*vault, error) {
	content, err := os.ReadFile(e.path)
	if err != nil {
		return nil, err
	}

	var v vault
	if err := json.Unmarshal(content, &v); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", e.path, err)
	}
	if v.Version != vaultVersion {
		return nil, fmt.Errorf("unsupported credentials file version %d in %s", v.Version, e.path)
	}
	if len(v.Salt) == 0 || v.Iterations <= 0 {
		return nil, fmt.Errorf("credentials file %s has no key parameters", e.path)
	}
	if v.Servers == nil {
		v.Servers = make(map[string]vaultEntry)
	}
	return &v, nil
}

func (e *EncryptedFileStore) write(v *vault) error {
	content, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(e.path), 0700); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	tmp := e.path + ".tmp"
	if err := os.WriteFile(tmp, content, 0600); err != nil {
		return fmt.Errorf("failed to write credentials: %w", err)
	}
	if err := os.Rename(tmp, e.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write credentials: %w", err)
	}
	return nil
}

func (e *EncryptedFileStore) key(v *vault, create bool) ([]byte, error) {
	pass, err := e.passphrase(create)
	if err != nil {
		return nil, err
	}
	return pbkdf2.Key([]byte(pass), v.Salt, v.Iterations, vaultKeyLen, sha256.New), nil
}

func openEntry(key []byte, server string, entry vaultEntry) (*Credential, error) {
	token, err := openToken(key, server, entry.Sealed)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt token for %s: %w", server, err)
	}
	return &Credential{Server: server, Token: token, LastModified: entry.Modified}, nil
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// sealToken returns nonce || ciphertext with server bound as additional data
func sealToken(key []byte, server, token string) ([]byte, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return aead.Seal(nonce, nonce, []byte(token), []byte(server)), nil
}

func openToken(key []byte, server string, sealed []byte) (string, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return "", err
	}
	if len(sealed) < aead.NonceSize() {
		return "", errors.New("sealed token too short")
	}
	nonce, body := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, body, []byte(server))
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

// configPassphrase reads KOBOMEDIA_PASSPHRASE or the .passphrase file. The
// file is only generated when create is set.
func configPassphrase(create bool) (string, error) {
	if pass := os.Getenv(passphraseEnv); pass != "" {
		return pass, nil
	}

	dir, err := getConfigDir()
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, passphraseName)

	pass, err := readPassphrase(path)
	if err == nil {
		return pass, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return "", err
	}
	if !create {
		return "", errNoPassphrase
	}
	return createPassphrase(path)
}

func readPassphrase(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	pass := string(bytes.TrimSpace(content))
	if pass == "" {
		return "", fmt.Errorf("passphrase file %s is empty", path)
	}
	return pass, nil
}

// createPassphrase writes a fresh random passphrase. If another process
// created the file first, that one wins.
func createPassphrase(path string) (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate passphrase: %w", err)
	}
	pass := base64.RawURLEncoding.EncodeToString(raw)

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if errors.Is(err, fs.ErrExist) {
		return readPassphrase(path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to save passphrase: %w", err)
	}
	if _, err := f.WriteString(pass); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to save passphrase: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to save passphrase: %w", err)
	}
	return pass, nil
}

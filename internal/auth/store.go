package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/99designs/keyring"

	"github.com/yourname/outlook-cli/internal/config"
)

const (
	dirPermission  = 0700
	filePermission = 0600

	keyringService = "outlook-cli"
)

// ErrNotFound is returned by a Store when the key does not exist.
var ErrNotFound = errors.New("not found")

// Store persists opaque secrets (token records, the MSAL cache) by key.
type Store interface {
	Get(key string) ([]byte, error)
	Set(key string, data []byte) error
	Delete(key string) error
}

// OpenStore returns the store selected by the token_store setting.
// dir is the configuration directory.
func OpenStore(kind, dir string) (Store, error) {
	switch kind {
	case "", config.TokenStoreFile:
		return NewFileStore(filepath.Join(dir, "tokens")), nil
	case config.TokenStoreKeyring:
		ring, err := openKeyring(dir)
		if err != nil {
			return nil, err
		}
		return NewKeyringStore(ring), nil
	default:
		return nil, fmt.Errorf("unknown token store %q", kind)
	}
}

// FileStore keeps one owner-only file per key.
type FileStore struct {
	dir string
}

// NewFileStore creates a file store rooted at dir. The directory is created on first write.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

var keyReplacer = strings.NewReplacer("/", "_", "\\", "_", "..", "_")

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, keyReplacer.Replace(key)+".json")
}

// Get reads the value for key.
func (s *FileStore) Get(key string) ([]byte, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return data, nil
}

// Set writes the value for key with 0600 permissions.
func (s *FileStore) Set(key string, data []byte) error {
	if err := os.MkdirAll(s.dir, dirPermission); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}

	path := s.path(key)
	if err := os.WriteFile(path, data, filePermission); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	// WriteFile keeps the mode of an existing file
	return os.Chmod(path, filePermission)
}

// Delete removes key. Deleting a missing key is not an error.
func (s *FileStore) Delete(key string) error {
	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove %s: %w", key, err)
	}
	return nil
}

// KeyringStore keeps secrets in the OS keychain via 99designs/keyring.
type KeyringStore struct {
	ring keyring.Keyring
}

// NewKeyringStore wraps an opened keyring.
func NewKeyringStore(ring keyring.Keyring) *KeyringStore {
	return &KeyringStore{ring: ring}
}

func openKeyring(dir string) (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: keyringService,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  filepath.Join(dir, "keyring"),
		FilePasswordFunc:         keyring.TerminalPrompt,
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Get reads the value for key.
func (s *KeyringStore) Get(key string) ([]byte, error) {
	item, err := s.ring.Get(key)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting credential %q: %w", key, err)
	}
	return item.Data, nil
}

// Set stores the value for key.
func (s *KeyringStore) Set(key string, data []byte) error {
	err := s.ring.Set(keyring.Item{
		Key:         key,
		Data:        data,
		Label:       keyringService + " " + key,
		Description: "Microsoft Graph OAuth credential",
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *KeyringStore) Delete(key string) error {
	if err := s.ring.Remove(key); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}
	return nil
}

package storage

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	CacheDir        = ".cache/smartschool"
	CookieFile      = "cookies.json"
	IdentityFile    = "authenticated_user.yml"
	KeyFile         = ".key"
	CredentialsFile = "credentials.enc"
	TraceDir        = "dev_tracing"
)

// NewStorage opens the storage rooted at basePath, or at ~/.cache/smartschool
// when basePath is empty.
func NewStorage(basePath string) (*Storage, error) {
	if basePath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		basePath = filepath.Join(homeDir, CacheDir)
	}

	if err := os.MkdirAll(basePath, 0700); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	return &Storage{basePath: basePath}, nil
}

func (s *Storage) GetBasePath() string {
	return s.basePath
}

// AccountDir returns (and creates) the directory holding the state of one
// credential identity.
func (s *Storage) AccountDir(identity string) (string, error) {
	dir := filepath.Join(s.basePath, identity)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create account directory: %w", err)
	}
	return dir, nil
}

func (s *Storage) CookiePath(identity string) string {
	return filepath.Join(s.basePath, identity, CookieFile)
}

func (s *Storage) TracePath() string {
	return filepath.Join(s.basePath, TraceDir)
}

func (s *Storage) SaveIdentity(identity string, user Identity) error {
	dir, err := s.AccountDir(identity)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(map[string]any(user))
	if err != nil {
		return fmt.Errorf("failed to marshal identity: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, IdentityFile), data, 0600); err != nil {
		return fmt.Errorf("failed to write identity file: %w", err)
	}
	return nil
}

// LoadIdentity returns nil, nil when no identity was stored yet.
func (s *Storage) LoadIdentity(identity string) (Identity, error) {
	data, err := os.ReadFile(filepath.Join(s.basePath, identity, IdentityFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read identity file: %w", err)
	}

	var user Identity
	if err := yaml.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("failed to unmarshal identity: %w", err)
	}
	return user, nil
}

func (s *Storage) DeleteIdentity(identity string) error {
	err := os.Remove(filepath.Join(s.basePath, identity, IdentityFile))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete identity: %w", err)
	}
	return nil
}

func (s *Storage) DeleteCookies(identity string) error {
	path := s.CookiePath(identity)
	for _, p := range []string{path, path + ".lock"} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete cookies: %w", err)
		}
	}
	return nil
}

func (s *Storage) HasSession(identity string) bool {
	_, err := os.Stat(s.CookiePath(identity))
	return err == nil
}

func (s *Storage) loadOrGenerateKey() error {
	if s.key != nil {
		return nil
	}

	keyPath := filepath.Join(s.basePath, KeyFile)

	keyData, err := os.ReadFile(keyPath)
	if err == nil && len(keyData) == 32 {
		s.key = keyData
		return nil
	}

	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return fmt.Errorf("failed to generate encryption key: %w", err)
	}

	if err := os.WriteFile(keyPath, key, 0600); err != nil {
		return fmt.Errorf("failed to save encryption key: %w", err)
	}

	s.key = key
	return nil
}

func (s *Storage) encrypt(plaintext []byte) ([]byte, error) {
	if err := s.loadOrGenerateKey(); err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(s.key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func (s *Storage) decrypt(ciphertext []byte) ([]byte, error) {
	if err := s.loadOrGenerateKey(); err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(s.key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}

	nonce, ciphertext := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ciphertext, nil)
}

// SaveCredentials stores the credentials encrypted for quick re-login.
func (s *Storage) SaveCredentials(creds *StoredCredentials) error {
	jsonData, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	encrypted, err := s.encrypt(jsonData)
	if err != nil {
		return fmt.Errorf("failed to encrypt credentials: %w", err)
	}

	credsPath := filepath.Join(s.basePath, CredentialsFile)
	if err := os.WriteFile(credsPath, encrypted, 0600); err != nil {
		return fmt.Errorf("failed to write credentials file: %w", err)
	}

	return nil
}

// LoadCredentials returns nil, nil when nothing was saved.
func (s *Storage) LoadCredentials() (*StoredCredentials, error) {
	credsPath := filepath.Join(s.basePath, CredentialsFile)

	encrypted, err := os.ReadFile(credsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}

	decrypted, err := s.decrypt(encrypted)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt credentials: %w", err)
	}

	var creds StoredCredentials
	if err := json.Unmarshal(decrypted, &creds); err != nil {
		return nil, fmt.Errorf("failed to unmarshal credentials: %w", err)
	}

	return &creds, nil
}

func (s *Storage) HasCredentials() bool {
	_, err := os.Stat(filepath.Join(s.basePath, CredentialsFile))
	return err == nil
}

func (s *Storage) DeleteCredentials() error {
	err := os.Remove(filepath.Join(s.basePath, CredentialsFile))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete credentials: %w", err)
	}
	return nil
}

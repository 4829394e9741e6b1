package store

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/nacl/secretbox"

	"go-session-agent/internal/model"
)

const nonceSize = 24

// EncryptedFileStore seals the session record with nacl/secretbox before it
// touches disk. A record that fails to open (wrong key, flipped bytes) is
// reported as ErrCorrupt so the caller can invalidate the session rather
// than trust it.
type EncryptedFileStore struct {
	path string
	key  [32]byte
	mu   sync.Mutex
}

func NewEncryptedFileStore(path string, key []byte) (*EncryptedFileStore, error) {
	if path == "" {
		return nil, errors.New("session file path is required")
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("session key must be 32 bytes, got %d", len(key))
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create session directory: %w", err)
	}

	s := &EncryptedFileStore{path: path}
	copy(s.key[:], key)

	return s, nil
}

func (s *EncryptedFileStore) Get() (*model.SessionData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sealed, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if len(sealed) < nonceSize {
		return nil, fmt.Errorf("%w: record too short", ErrCorrupt)
	}

	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])

	plain, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, &s.key)
	if !ok {
		return nil, fmt.Errorf("%w: authentication failed", ErrCorrupt)
	}

	var session model.SessionData
	if err := json.Unmarshal(plain, &session); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	return &session, nil
}

func (s *EncryptedFileStore) Set(session *model.SessionData) error {
	if session == nil {
		return model.ErrInvalidInput
	}

	plain, err := json.Marshal(session)
	if err != nil {
		return err
	}

	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return err
	}

	sealed := secretbox.Seal(nonce[:], plain, &nonce, &s.key)

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, sealed, 0o600); err != nil {
		return err
	}

	return os.Rename(tmp, s.path)
}

func (s *EncryptedFileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}

	return err
}

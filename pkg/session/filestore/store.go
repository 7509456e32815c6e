// Package filestore provides an encrypted, file-backed session store.
// Values are sealed with XChaCha20-Poly1305 under a key derived from a
// passphrase with PBKDF2; the file is replaced atomically on every write.
package filestore

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/pbkdf2"

	"github.com/txn2/bmusic-client/pkg/session"
)

const (
	fileVersion      = 1
	saltLength       = 16
	pbkdf2Iterations = 100000
	filePerm         = 0o600
	dirPerm          = 0o700
)

// ErrPassphraseRequired is returned by New when no passphrase is configured.
var ErrPassphraseRequired = errors.New("filestore passphrase is required")

// ErrDecrypt is returned when a stored value cannot be opened.
var ErrDecrypt = errors.New("decrypting session value")

// Config configures the file session store.
type Config struct {
	// Path is the session file location.
	Path string

	// Passphrase is the secret the sealing key is derived from.
	Passphrase string
}

// fileData is the on-disk document.
type fileData struct {
	Version int               `json:"version"`
	Salt    string            `json:"salt"`
	Values  map[string]string `json:"values"`
}

// Store implements session.Store on top of a single JSON file.
type Store struct {
	path       string
	passphrase []byte

	mu          sync.Mutex
	cachedSalt  string
	cachedKey   []byte
	lastWritten [sha256.Size]byte
	closed      bool
}

// New creates a file session store. The file is created lazily on first write.
func New(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("filestore path is required")
	}
	if cfg.Passphrase == "" {
		return nil, ErrPassphraseRequired
	}
	return &Store{
		path:       cfg.Path,
		passphrase: []byte(cfg.Passphrase),
	}, nil
}

// Path returns the session file location.
func (s *Store) Path() string {
	return s.path
}

// Get returns the decrypted value stored under key.
func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", false, session.ErrClosed
	}

	doc, err := s.load()
	if err != nil {
		return "", false, err
	}
	sealed, ok := doc.Values[key]
	if !ok {
		return "", false, nil
	}

	aead, err := s.aead(doc.Salt)
	if err != nil {
		return "", false, err
	}
	plain, err := open(aead, key, sealed)
	if err != nil {
		return "", false, err
	}
	return plain, true, nil
}

// Set seals value and writes it under key.
func (s *Store) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return session.ErrClosed
	}

	doc, err := s.load()
	if err != nil {
		return err
	}
	aead, err := s.aead(doc.Salt)
	if err != nil {
		return err
	}
	sealed, err := seal(aead, key, value)
	if err != nil {
		return err
	}
	doc.Values[key] = sealed
	return s.write(doc)
}

// Remove deletes key from the file.
func (s *Store) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return session.ErrClosed
	}

	doc, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := doc.Values[key]; !ok {
		return nil
	}
	delete(doc.Values, key)
	return s.write(doc)
}

// Close marks the store closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// load reads the document, returning a fresh one when the file does not exist.
func (s *Store) load() (*fileData, error) {
	// #nosec G304 -- path comes from client configuration
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return s.newDocument()
	}
	if err != nil {
		return nil, fmt.Errorf("reading session file: %w", err)
	}

	var doc fileData
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing session file: %w", err)
	}
	if doc.Version != fileVersion {
		return nil, fmt.Errorf("unsupported session file version %d", doc.Version)
	}
	if doc.Values == nil {
		doc.Values = make(map[string]string)
	}
	return &doc, nil
}

func (*Store) newDocument() (*fileData, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generating salt: %w", err)
	}
	return &fileData{
		Version: fileVersion,
		Salt:    base64.StdEncoding.EncodeToString(salt),
		Values:  make(map[string]string),
	}, nil
}

// write replaces the file atomically via a temporary file and rename.
func (s *Store) write(doc *fileData) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding session file: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), dirPerm); err != nil {
		return fmt.Errorf("creating session directory: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, filePerm); err != nil {
		return fmt.Errorf("writing session file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replacing session file: %w", err)
	}
	s.lastWritten = sha256.Sum256(data)
	return nil
}

// aead returns the cipher for salt, deriving the key once per salt.
func (s *Store) aead(salt string) (cipher.AEAD, error) {
	if s.cachedKey == nil || s.cachedSalt != salt {
		raw, err := base64.StdEncoding.DecodeString(salt)
		if err != nil {
			return nil, fmt.Errorf("decoding salt: %w", err)
		}
		s.cachedKey = pbkdf2.Key(s.passphrase, raw, pbkdf2Iterations, chacha20poly1305.KeySize, sha256.New)
		s.cachedSalt = salt
	}
	aead, err := chacha20poly1305.NewX(s.cachedKey)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	return aead, nil
}

// ownWrite reports whether data is exactly what this store last wrote.
func (s *Store) ownWrite(data []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sha256.Sum256(data) == s.lastWritten
}

// Verify interface compliance.
var _ session.Store = (*Store)(nil)

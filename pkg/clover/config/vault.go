package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"golang.org/x/crypto/argon2"
)

// VaultFile is the default vault location, next to config.yaml.
// The vault exists for headless hosts without an OS keyring: secrets are
// sealed with AES-256-GCM under an Argon2id-derived key, so filesystem
// access alone does not expose them.
const VaultFile = ".clover.vault"

// ErrVaultLocked is returned by operations that need the derived key.
var ErrVaultLocked = errors.New("vault is locked")

// Argon2id parameters (OWASP recommended) and AES-256 key size.
const (
	argonTime    = 3
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
	saltLen      = 16
)

// verifyEntry is the well-known key used to detect wrong passwords.
const verifyEntry = "__verify__"

type vaultEntry struct {
	Nonce string `json:"nonce"`
	Data  string `json:"data"`
}

type vaultFile struct {
	Version int                   `json:"version"`
	Salt    string                `json:"salt"`
	Entries map[string]vaultEntry `json:"entries"`
}

// Vault is encrypted secret storage backed by a local file. The master
// password is never stored; only the derived key lives in memory while the
// vault is unlocked.
type Vault struct {
	path string
	data *vaultFile
	key  []byte
	mu   sync.RWMutex
}

// NewVault points at path without touching the file. Call Create or Unlock
// before reading or writing secrets.
func NewVault(path string) *Vault {
	return &Vault{path: path}
}

// Exists reports whether the vault file is on disk.
func (v *Vault) Exists() bool {
	_, err := os.Stat(v.path)
	return err == nil
}

// IsUnlocked reports whether Get/Set will work.
func (v *Vault) IsUnlocked() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.key != nil
}

// Create initializes an empty vault sealed with password.
func (v *Vault) Create(password string) error {
	if v.Exists() {
		return fmt.Errorf("vault already exists at %s", v.path)
	}

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("generating salt: %w", err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	v.key = deriveKey(password, salt)
	v.data = &vaultFile{
		Version: 1,
		Salt:    base64.StdEncoding.EncodeToString(salt),
		Entries: make(map[string]vaultEntry),
	}

	probe, err := seal(v.key, []byte("clover-vault-ok"))
	if err != nil {
		return fmt.Errorf("sealing verify entry: %w", err)
	}
	v.data.Entries[verifyEntry] = probe

	return v.saveLocked()
}

// Unlock loads the vault and derives the key from password. A wrong
// password fails on the verification entry.
func (v *Vault) Unlock(password string) error {
	raw, err := os.ReadFile(v.path)
	if err != nil {
		return fmt.Errorf("reading vault: %w", err)
	}

	var data vaultFile
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("parsing vault: %w", err)
	}

	salt, err := base64.StdEncoding.DecodeString(data.Salt)
	if err != nil {
		return fmt.Errorf("decoding salt: %w", err)
	}

	key := deriveKey(password, salt)
	if probe, ok := data.Entries[verifyEntry]; ok {
		if _, err := open(key, probe); err != nil {
			return fmt.Errorf("wrong vault password")
		}
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.key = key
	v.data = &data
	return nil
}

// Lock zeroes and drops the derived key.
func (v *Vault) Lock() {
	v.mu.Lock()
	defer v.mu.Unlock()
	for i := range v.key {
		v.key[i] = 0
	}
	v.key = nil
}

// Set seals value under name and persists the vault.
func (v *Vault) Set(name, value string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.key == nil {
		return ErrVaultLocked
	}

	entry, err := seal(v.key, []byte(value))
	if err != nil {
		return fmt.Errorf("sealing %s: %w", name, err)
	}
	v.data.Entries[name] = entry
	return v.saveLocked()
}

// Get returns the secret under name, or empty string when absent.
func (v *Vault) Get(name string) (string, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if v.key == nil {
		return "", ErrVaultLocked
	}

	entry, ok := v.data.Entries[name]
	if !ok {
		return "", nil
	}
	plain, err := open(v.key, entry)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", name, err)
	}
	return string(plain), nil
}

// Delete removes name and persists the vault.
func (v *Vault) Delete(name string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.key == nil {
		return ErrVaultLocked
	}
	delete(v.data.Entries, name)
	return v.saveLocked()
}

// List returns stored secret names, excluding internal entries. Empty when
// locked.
func (v *Vault) List() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if v.key == nil || v.data == nil {
		return nil
	}
	names := make([]string, 0, len(v.data.Entries))
	for name := range v.data.Entries {
		if name == verifyEntry {
			continue
		}
		names = append(names, name)
	}
	return names
}

func (v *Vault) saveLocked() error {
	data, err := json.MarshalIndent(v.data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling vault: %w", err)
	}
	if err := os.WriteFile(v.path, data, 0o600); err != nil {
		return fmt.Errorf("writing vault: %w", err)
	}
	return nil
}

// deriveKey runs Argon2id over the password with the vault's salt.
func deriveKey(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
}

// seal encrypts plaintext with AES-256-GCM under a fresh nonce.
func seal(key, plaintext []byte) (vaultEntry, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return vaultEntry{}, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return vaultEntry{}, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return vaultEntry{}, err
	}
	return vaultEntry{
		Nonce: base64.StdEncoding.EncodeToString(nonce),
		Data:  base64.StdEncoding.EncodeToString(gcm.Seal(nil, nonce, plaintext, nil)),
	}, nil
}

// open decrypts a vault entry.
func open(key []byte, entry vaultEntry) ([]byte, error) {
	nonce, err := base64.StdEncoding.DecodeString(entry.Nonce)
	if err != nil {
		return nil, fmt.Errorf("decoding nonce: %w", err)
	}
	data, err := base64.StdEncoding.DecodeString(entry.Data)
	if err != nil {
		return nil, fmt.Errorf("decoding ciphertext: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	plain, err := gcm.Open(nil, nonce, data, nil)
	if err != nil {
		return nil, fmt.Errorf("decryption failed")
	}
	return plain, nil
}

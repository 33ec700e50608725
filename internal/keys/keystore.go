package keys

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/crypto/argon2"
)

const keystoreVersion = 1

// Argon2id parameters for deriving the sealing key from the passphrase.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
	saltLen      = 16

	// bounds accepted when opening a keystore written elsewhere
	maxArgonTime   = 16
	maxArgonMemory = 1 << 20
)

var (
	ErrWrongPassphrase  = errors.New("keystore passphrase does not open the sealed key")
	ErrUnsupportedStore = errors.New("unsupported keystore version")
	ErrEmptyPassphrase  = errors.New("keystore passphrase is required")
)

// sealedKey is the on-disk form of the issuer seed.
type sealedKey struct {
	Version    int    `json:"version"`
	KDF        string `json:"kdf"`
	Time       uint32 `json:"time"`
	Memory     uint32 `json:"memory"`
	Threads    uint8  `json:"threads"`
	Salt       []byte `json:"salt"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

// Seal encrypts the private key seed with AES-256-GCM under an Argon2id
// key derived from passphrase.
func Seal(priv ed25519.PrivateKey, passphrase []byte) ([]byte, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, ErrInvalidPrivateKey
	}
	if len(passphrase) == 0 {
		return nil, ErrEmptyPassphrase
	}
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("read salt: %w", err)
	}
	aead, err := newAEAD(passphrase, salt, argonTime, argonMemory, argonThreads)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("read nonce: %w", err)
	}
	sealed := sealedKey{
		Version:    keystoreVersion,
		KDF:        "argon2id",
		Time:       argonTime,
		Memory:     argonMemory,
		Threads:    argonThreads,
		Salt:       salt,
		Nonce:      nonce,
		Ciphertext: aead.Seal(nil, nonce, priv.Seed(), nil),
	}
	return json.Marshal(sealed)
}

// Open reverses Seal.
func Open(data, passphrase []byte) (ed25519.PrivateKey, error) {
	var sealed sealedKey
	if err := json.Unmarshal(data, &sealed); err != nil {
		return nil, fmt.Errorf("decode keystore: %w", err)
	}
	if sealed.Version != keystoreVersion || sealed.KDF != "argon2id" {
		return nil, ErrUnsupportedStore
	}
	if !sealed.kdfParamsInRange() {
		return nil, ErrUnsupportedStore
	}
	aead, err := newAEAD(passphrase, sealed.Salt, sealed.Time, sealed.Memory, sealed.Threads)
	if err != nil {
		return nil, err
	}
	if len(sealed.Nonce) != aead.NonceSize() {
		return nil, ErrUnsupportedStore
	}
	seed, err := aead.Open(nil, sealed.Nonce, sealed.Ciphertext, nil)
	if err != nil {
		return nil, ErrWrongPassphrase
	}
	if len(seed) != ed25519.SeedSize {
		return nil, ErrInvalidPrivateKey
	}
	return ed25519.NewKeyFromSeed(seed), nil
}

// kdfParamsInRange rejects parameters argon2 would panic on or that would
// take unbounded time or memory to derive.
func (s sealedKey) kdfParamsInRange() bool {
	return s.Threads >= 1 &&
		s.Time >= 1 && s.Time <= maxArgonTime &&
		s.Memory >= 8*uint32(s.Threads) && s.Memory <= maxArgonMemory &&
		len(s.Salt) == saltLen
}

// LoadOrCreate opens the sealed key at path, or generates, seals and writes
// a new one when the file does not exist. created reports which happened.
func LoadOrCreate(path string, passphrase []byte, gen Generator) (priv ed25519.PrivateKey, created bool, err error) {
	data, err := os.ReadFile(path)
	if err == nil {
		priv, err = Open(data, passphrase)
		return priv, false, err
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, false, fmt.Errorf("read keystore: %w", err)
	}

	if gen == nil {
		gen = NewGenerator(nil)
	}
	_, priv, err = gen()
	if err != nil {
		return nil, false, err
	}
	sealed, err := Seal(priv, passphrase)
	if err != nil {
		return nil, false, err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, false, fmt.Errorf("create keystore dir: %w", err)
		}
	}
	if err := os.WriteFile(path, sealed, 0o600); err != nil {
		return nil, false, fmt.Errorf("write keystore: %w", err)
	}
	return priv, true, nil
}

func newAEAD(passphrase, salt []byte, time, memory uint32, threads uint8) (cipher.AEAD, error) {
	if len(passphrase) == 0 {
		return nil, ErrEmptyPassphrase
	}
	key := argon2.IDKey(passphrase, salt, time, memory, threads, argonKeyLen)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

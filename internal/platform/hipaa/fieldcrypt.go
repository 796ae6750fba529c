package hipaa

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// FieldCipher encrypts individual PHI column values at rest.
type FieldCipher interface {
	Seal(plaintext string) (string, error)
	Open(ciphertext string) (string, error)
}

// PlainCipher stores values unchanged. Development only.
type PlainCipher struct{}

func (PlainCipher) Seal(s string) (string, error) { return s, nil }
func (PlainCipher) Open(s string) (string, error) { return s, nil }

type gcmKey struct {
	aead cipher.AEAD
}

func newGCMKey(key []byte) (*gcmKey, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("field cipher: key must be 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("field cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("field cipher: %w", err)
	}
	return &gcmKey{aead: aead}, nil
}

// seal returns base64(nonce || ciphertext).
func (k *gcmKey) seal(plaintext string) (string, error) {
	nonce := make([]byte, k.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("field cipher: nonce: %w", err)
	}
	return base64.StdEncoding.EncodeToString(k.aead.Seal(nonce, nonce, []byte(plaintext), nil)), nil
}

func (k *gcmKey) open(encoded string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("field cipher: decode: %w", err)
	}
	n := k.aead.NonceSize()
	if len(data) < n {
		return "", errors.New("field cipher: ciphertext too short")
	}
	plain, err := k.aead.Open(nil, data[:n], data[n:], nil)
	if err != nil {
		return "", fmt.Errorf("field cipher: open: %w", err)
	}
	return string(plain), nil
}

// VersionedCipher seals with the newest key and opens with any known key.
// Ciphertexts are prefixed "v<version>:" so keys can be rotated without a
// bulk rewrite.
type VersionedCipher struct {
	current int
	keys    map[int]*gcmKey
}

// NewVersionedCipher builds a cipher from raw 32-byte keys by version. The
// highest version seals.
func NewVersionedCipher(keys map[int][]byte) (*VersionedCipher, error) {
	if len(keys) == 0 {
		return nil, errors.New("field cipher: no keys")
	}
	vc := &VersionedCipher{keys: make(map[int]*gcmKey, len(keys))}
	for v, raw := range keys {
		if v <= 0 {
			return nil, fmt.Errorf("field cipher: version must be positive, got %d", v)
		}
		k, err := newGCMKey(raw)
		if err != nil {
			return nil, fmt.Errorf("key v%d: %w", v, err)
		}
		vc.keys[v] = k
		if v > vc.current {
			vc.current = v
		}
	}
	return vc, nil
}

func (c *VersionedCipher) CurrentVersion() int {
	return c.current
}

func (c *VersionedCipher) Seal(plaintext string) (string, error) {
	sealed, err := c.keys[c.current].seal(plaintext)
	if err != nil {
		return "", err
	}
	return "v" + strconv.Itoa(c.current) + ":" + sealed, nil
}

func (c *VersionedCipher) Open(ciphertext string) (string, error) {
	v, body, err := splitVersion(ciphertext)
	if err != nil {
		return "", err
	}
	k, ok := c.keys[v]
	if !ok {
		return "", fmt.Errorf("field cipher: no key for version %d", v)
	}
	return k.open(body)
}

// Stale reports whether ciphertext was sealed with an older key.
func (c *VersionedCipher) Stale(ciphertext string) bool {
	v, _, err := splitVersion(ciphertext)
	return err != nil || v != c.current
}

func splitVersion(s string) (int, string, error) {
	head, body, ok := strings.Cut(s, ":")
	if !ok || !strings.HasPrefix(head, "v") {
		return 0, "", errors.New("field cipher: missing version prefix")
	}
	v, err := strconv.Atoi(head[1:])
	if err != nil {
		return 0, "", fmt.Errorf("field cipher: bad version %q", head)
	}
	return v, body, nil
}

// ParseKeyring parses "1:<hex>,2:<hex>" into raw keys by version.
func ParseKeyring(spec string) (map[int][]byte, error) {
	keys := make(map[int][]byte)
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		vs, hexKey, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("keyring entry %q: want <version>:<hex key>", part)
		}
		v, err := strconv.Atoi(vs)
		if err != nil {
			return nil, fmt.Errorf("keyring entry %q: bad version", part)
		}
		raw, err := hex.DecodeString(hexKey)
		if err != nil {
			return nil, fmt.Errorf("keyring entry v%d: not hex: %w", v, err)
		}
		if _, dup := keys[v]; dup {
			return nil, fmt.Errorf("keyring: duplicate version %d", v)
		}
		keys[v] = raw
	}
	return keys, nil
}

// NewFieldCipher returns a VersionedCipher for a non-empty keyring and a
// PlainCipher otherwise, logging which one is active.
func NewFieldCipher(keyring string, logger zerolog.Logger) (FieldCipher, error) {
	if strings.TrimSpace(keyring) == "" {
		logger.Warn().Msg("PHI field encryption disabled: PHI_ENCRYPTION_KEYS is not set")
		return PlainCipher{}, nil
	}
	keys, err := ParseKeyring(keyring)
	if err != nil {
		return nil, err
	}
	vc, err := NewVersionedCipher(keys)
	if err != nil {
		return nil, err
	}
	versions := make([]int, 0, len(keys))
	for v := range keys {
		versions = append(versions, v)
	}
	sort.Ints(versions)
	logger.Info().Ints("key_versions", versions).Int("current", vc.CurrentVersion()).Msg("PHI field encryption enabled")
	return vc, nil
}

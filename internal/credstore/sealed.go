package credstore

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/nacl/secretbox"
)

const nonceSize = 24

// builtinKey keeps tokens out of plain text when no key is configured. It is
// obfuscation only: anyone holding the binary can recover it.
var builtinKey = [32]byte{
	0x5c, 0x21, 0x9e, 0x04, 0xb7, 0x6a, 0xd3, 0x48,
	0x1f, 0xe2, 0x87, 0x3b, 0xc9, 0x50, 0x0d, 0x76,
	0xa4, 0x39, 0xf8, 0x62, 0x15, 0xcb, 0x8e, 0x2d,
	0x73, 0x06, 0xbf, 0x94, 0x41, 0xea, 0x58, 0x1c,
}

// ParseKey decodes a base64 32-byte key. An empty string yields the built-in key.
func ParseKey(s string) ([32]byte, error) {
	if s == "" {
		return builtinKey, nil
	}
	var key [32]byte
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return key, fmt.Errorf("decode key: %w", err)
	}
	if len(raw) != len(key) {
		return key, fmt.Errorf("key must be 32 bytes, got %d", len(raw))
	}
	copy(key[:], raw)
	return key, nil
}

// SealedStore encrypts selected keys with nacl/secretbox before handing them
// to the inner store. Other keys pass through unchanged.
type SealedStore struct {
	inner  Store
	key    [32]byte
	sealed map[string]bool
}

var _ Store = (*SealedStore)(nil)

// NewSealedStore wraps inner, sealing the values of keys.
func NewSealedStore(inner Store, key [32]byte, keys ...string) *SealedStore {
	m := make(map[string]bool, len(keys))
	for _, k := range keys {
		m[k] = true
	}
	return &SealedStore{inner: inner, key: key, sealed: m}
}

func (s *SealedStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.inner.Get(ctx, key)
	if err != nil || !s.sealed[key] {
		return data, err
	}
	plain, err := s.open(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, key, err)
	}
	return plain, nil
}

func (s *SealedStore) Set(ctx context.Context, key string, value []byte) error {
	if s.sealed[key] {
		var err error
		if value, err = s.seal(value); err != nil {
			return fmt.Errorf("seal %s: %w", key, err)
		}
	}
	return s.inner.Set(ctx, key, value)
}

func (s *SealedStore) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, key)
}

func (s *SealedStore) Close() error {
	return s.inner.Close()
}

// seal returns nonce || secretbox(value).
func (s *SealedStore) seal(value []byte) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return secretbox.Seal(nonce[:], value, &nonce, &s.key), nil
}

func (s *SealedStore) open(data []byte) ([]byte, error) {
	if len(data) < nonceSize+secretbox.Overhead {
		return nil, errors.New("ciphertext too short")
	}
	var nonce [nonceSize]byte
	copy(nonce[:], data[:nonceSize])
	plain, ok := secretbox.Open(nil, data[nonceSize:], &nonce, &s.key)
	if !ok {
		return nil, errors.New("decrypt failed")
	}
	return plain, nil
}

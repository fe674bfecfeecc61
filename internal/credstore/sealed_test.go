package credstore

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"testing"
)

func TestSealedStore_EncryptsSelectedKeys(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryStore()
	s := NewSealedStore(inner, builtinKey, KeyToken)

	if err := s.Set(ctx, KeyToken, []byte("secret-token")); err != nil {
		t.Fatal(err)
	}
	if err := s.Set(ctx, KeyRole, []byte("student")); err != nil {
		t.Fatal(err)
	}

	raw, _ := inner.Get(ctx, KeyToken)
	if bytes.Contains(raw, []byte("secret-token")) {
		t.Error("token stored in plain text")
	}
	raw, _ = inner.Get(ctx, KeyRole)
	if string(raw) != "student" {
		t.Errorf("role should pass through, got %q", raw)
	}

	got, err := s.Get(ctx, KeyToken)
	if err != nil || string(got) != "secret-token" {
		t.Errorf("Get = %q, %v", got, err)
	}
}

func TestSealedStore_WrongKey(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryStore()
	if err := NewSealedStore(inner, builtinKey, KeyToken).Set(ctx, KeyToken, []byte("x")); err != nil {
		t.Fatal(err)
	}

	var other [32]byte
	other[0] = 1
	_, err := NewSealedStore(inner, other, KeyToken).Get(ctx, KeyToken)
	if !errors.Is(err, ErrCorrupt) {
		t.Errorf("Get with wrong key: err = %v, want ErrCorrupt", err)
	}
}

func TestSealedStore_Truncated(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryStore()
	inner.Set(ctx, KeyToken, []byte("short"))

	_, err := NewSealedStore(inner, builtinKey, KeyToken).Get(ctx, KeyToken)
	if !errors.Is(err, ErrCorrupt) {
		t.Errorf("err = %v, want ErrCorrupt", err)
	}
}

func TestParseKey(t *testing.T) {
	k, err := ParseKey("")
	if err != nil || k != builtinKey {
		t.Errorf("empty key should give builtin key, err = %v", err)
	}

	raw := bytes.Repeat([]byte{7}, 32)
	k, err = ParseKey(base64.StdEncoding.EncodeToString(raw))
	if err != nil {
		t.Fatalf("ParseKey: %v", err)
	}
	if !bytes.Equal(k[:], raw) {
		t.Error("decoded key mismatch")
	}

	if _, err := ParseKey("!!"); err == nil {
		t.Error("expected error for bad base64")
	}
	if _, err := ParseKey(base64.StdEncoding.EncodeToString([]byte("too short"))); err == nil {
		t.Error("expected error for short key")
	}
}

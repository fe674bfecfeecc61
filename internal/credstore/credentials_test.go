package credstore

import (
	"context"
	"errors"
	"testing"

	"github.com/me/cognilearn/pkg/model"
)

func TestSaveLoadClear(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	want := Credentials{
		Token: "t1",
		User:  model.User{ID: "u1", Email: "a@b.com"},
		Role:  model.RoleTeacher,
	}
	if err := Save(ctx, s, want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	raw, _ := s.Get(ctx, KeyUser)
	if string(raw) != `{"id":"u1","email":"a@b.com"}` {
		t.Errorf("user stored as %s", raw)
	}

	got, err := Load(ctx, s)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != want {
		t.Errorf("Load = %+v, want %+v", got, want)
	}

	if err := Clear(ctx, s); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if s.Len() != 0 {
		t.Errorf("store has %d keys after Clear", s.Len())
	}
	if _, err := Load(ctx, s); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load after Clear: err = %v, want ErrNotFound", err)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		values map[string]string
		want   error
	}{
		{"token only", map[string]string{KeyToken: "t"}, ErrIncomplete},
		{"no role", map[string]string{KeyToken: "t", KeyUser: `{"id":"u"}`}, ErrIncomplete},
		{"empty token", map[string]string{KeyToken: "", KeyUser: `{"id":"u"}`, KeyRole: "student"}, ErrIncomplete},
		{"bad user json", map[string]string{KeyToken: "t", KeyUser: `{`, KeyRole: "student"}, ErrCorrupt},
		{"user without id", map[string]string{KeyToken: "t", KeyUser: `{"email":"x"}`, KeyRole: "student"}, ErrCorrupt},
		{"unknown role", map[string]string{KeyToken: "t", KeyUser: `{"id":"u"}`, KeyRole: "admin"}, model.ErrUnknownRole},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s := NewMemoryStore()
			for k, v := range tt.values {
				s.Set(ctx, k, []byte(v))
			}
			if _, err := Load(ctx, s); !errors.Is(err, tt.want) {
				t.Errorf("Load err = %v, want %v", err, tt.want)
			}
		})
	}
}

// failingStore fails Set for one key.
type failingStore struct {
	*MemoryStore
	failKey string
}

func (f *failingStore) Set(ctx context.Context, key string, value []byte) error {
	if key == f.failKey {
		return errors.New("disk full")
	}
	return f.MemoryStore.Set(ctx, key, value)
}

func TestSave_NoPartialState(t *testing.T) {
	ctx := context.Background()
	s := &failingStore{MemoryStore: NewMemoryStore(), failKey: KeyRole}

	err := Save(ctx, s, Credentials{Token: "t", User: model.User{ID: "u"}, Role: model.RoleStudent})
	if err == nil {
		t.Fatal("expected Save error")
	}
	if s.Len() != 0 {
		t.Errorf("store holds %d keys after failed Save, want 0", s.Len())
	}
}

// stuckStore fails Set for one key and every Delete.
type stuckStore struct {
	*MemoryStore
	failKey string
}

var (
	errSet    = errors.New("set failed")
	errDelete = errors.New("delete failed")
)

func (s *stuckStore) Set(ctx context.Context, key string, value []byte) error {
	if key == s.failKey {
		return errSet
	}
	return s.MemoryStore.Set(ctx, key, value)
}

func (s *stuckStore) Delete(context.Context, string) error { return errDelete }

func TestSave_RollbackFailureReported(t *testing.T) {
	ctx := context.Background()
	s := &stuckStore{MemoryStore: NewMemoryStore(), failKey: KeyUser}

	err := Save(ctx, s, Credentials{Token: "t", User: model.User{ID: "u"}, Role: model.RoleStudent})
	if !errors.Is(err, errSet) {
		t.Errorf("err = %v, want the set error", err)
	}
	if !errors.Is(err, errDelete) {
		t.Errorf("err = %v, want the rollback error", err)
	}
}

func TestSave_FailureClearsPreviousSession(t *testing.T) {
	ctx := context.Background()
	s := &failingStore{MemoryStore: NewMemoryStore()}
	if err := Save(ctx, s, Credentials{Token: "old", User: model.User{ID: "a"}, Role: model.RoleStudent}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	s.failKey = KeyUser
	if err := Save(ctx, s, Credentials{Token: "new", User: model.User{ID: "b"}, Role: model.RoleTeacher}); err == nil {
		t.Fatal("expected Save error")
	}
	if _, err := Load(ctx, s); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load after failed Save: err = %v, want ErrNotFound", err)
	}
}

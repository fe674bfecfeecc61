package credstore

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/me/cognilearn/internal/config"
	"github.com/me/cognilearn/internal/logging"
)

// backends returns a fresh instance of every Store implementation.
func backends(t *testing.T) map[string]Store {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	fs, err := NewFileStore(filepath.Join(dir, "files"))
	if err != nil {
		t.Fatalf("file store: %v", err)
	}
	sq, err := NewSQLiteStore(ctx, filepath.Join(dir, "creds.sqlite"), logging.Discard())
	if err != nil {
		t.Fatalf("sqlite store: %v", err)
	}
	bs, err := NewBoltStore(filepath.Join(dir, "creds.bolt"))
	if err != nil {
		t.Fatalf("bolt store: %v", err)
	}
	mr := miniredis.RunT(t)
	rs, err := NewRedisStore(ctx, "redis://"+mr.Addr()+"/0", "test:")
	if err != nil {
		t.Fatalf("redis store: %v", err)
	}

	stores := map[string]Store{
		"memory": NewMemoryStore(),
		"file":   fs,
		"sqlite": sq,
		"bolt":   bs,
		"redis":  rs,
		"sealed": NewSealedStore(NewMemoryStore(), builtinKey, KeyToken),
	}
	t.Cleanup(func() {
		for _, s := range stores {
			s.Close()
		}
	})
	return stores
}

func TestStore_Conformance(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := s.Get(ctx, KeyToken); !errors.Is(err, ErrNotFound) {
				t.Fatalf("Get on empty store: err = %v, want ErrNotFound", err)
			}

			if err := s.Set(ctx, KeyToken, []byte("t1")); err != nil {
				t.Fatalf("Set: %v", err)
			}
			got, err := s.Get(ctx, KeyToken)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if !bytes.Equal(got, []byte("t1")) {
				t.Errorf("Get = %q, want t1", got)
			}

			if err := s.Set(ctx, KeyToken, []byte("t2")); err != nil {
				t.Fatalf("Set overwrite: %v", err)
			}
			if got, _ := s.Get(ctx, KeyToken); !bytes.Equal(got, []byte("t2")) {
				t.Errorf("Get after overwrite = %q, want t2", got)
			}

			if err := s.Delete(ctx, KeyToken); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if _, err := s.Get(ctx, KeyToken); !errors.Is(err, ErrNotFound) {
				t.Errorf("Get after delete: err = %v, want ErrNotFound", err)
			}
			if err := s.Delete(ctx, KeyToken); err != nil {
				t.Errorf("Delete of missing key: %v", err)
			}
		})
	}
}

func TestFileStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s1, err := NewFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := s1.Set(ctx, KeyRole, []byte("parent")); err != nil {
		t.Fatal(err)
	}

	s2, err := NewFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	got, err := s2.Get(ctx, KeyRole)
	if err != nil || string(got) != "parent" {
		t.Errorf("Get after reopen = %q, %v", got, err)
	}
}

func TestBoltStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "creds.bolt")

	s1, err := NewBoltStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s1.Set(ctx, KeyUser, []byte(`{"id":"u1"}`)); err != nil {
		t.Fatal(err)
	}
	s1.Close()

	s2, err := NewBoltStore(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()
	got, err := s2.Get(ctx, KeyUser)
	if err != nil || string(got) != `{"id":"u1"}` {
		t.Errorf("Get after reopen = %q, %v", got, err)
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	tests := []struct {
		name    string
		cfg     config.StoreConfig
		sealed  bool
		wantErr bool
	}{
		{"file sealed", config.StoreConfig{Driver: config.DriverFile, Path: filepath.Join(dir, "f"), EncryptToken: true}, true, false},
		{"sqlite plain", config.StoreConfig{Driver: config.DriverSQLite, Path: filepath.Join(dir, "s.db")}, false, false},
		{"bolt plain", config.StoreConfig{Driver: config.DriverBolt, Path: filepath.Join(dir, "b.db")}, false, false},
		{"memory", config.StoreConfig{Driver: config.DriverMemory}, false, false},
		{"bad key", config.StoreConfig{Driver: config.DriverMemory, EncryptToken: true, Key: "short"}, false, true},
		{"unknown", config.StoreConfig{Driver: "etcd"}, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, err := Open(ctx, tt.cfg, nil)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Open() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			defer st.Close()
			if _, ok := st.(*SealedStore); ok != tt.sealed {
				t.Errorf("sealed = %v, want %v", ok, tt.sealed)
			}
		})
	}
}

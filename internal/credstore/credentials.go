package credstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/me/cognilearn/pkg/model"
)

// Persisted keys.
const (
	KeyToken = "token"
	KeyUser  = "user"
	KeyRole  = "role"
)

var allKeys = []string{KeyToken, KeyUser, KeyRole}

var (
	// ErrIncomplete means some but not all session keys are present.
	ErrIncomplete = errors.New("incomplete stored session")
	// ErrCorrupt means a stored value could not be decoded.
	ErrCorrupt = errors.New("corrupt stored session")
)

// Credentials is the durable projection of an authenticated session.
type Credentials struct {
	Token string
	User  model.User
	Role  model.Role
}

// Save writes all three keys. If any write fails every key is removed again,
// including those of a session saved earlier, so the store never holds a
// partial or mixed session. A failed rollback is joined to the returned error.
func Save(ctx context.Context, s Store, c Credentials) error {
	userJSON, err := json.Marshal(c.User)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	values := map[string][]byte{
		KeyToken: []byte(c.Token),
		KeyUser:  userJSON,
		KeyRole:  []byte(c.Role),
	}
	for _, key := range allKeys {
		if err := s.Set(ctx, key, values[key]); err != nil {
			err = fmt.Errorf("store %s: %w", key, err)
			if cerr := Clear(ctx, s); cerr != nil {
				return errors.Join(err, fmt.Errorf("roll back: %w", cerr))
			}
			return err
		}
	}
	return nil
}

// Load reads a stored session. It returns ErrNotFound when nothing is
// stored, ErrIncomplete when only some keys are present and ErrCorrupt when
// a value does not decode, including an unknown role.
func Load(ctx context.Context, s Store) (Credentials, error) {
	raw := make(map[string][]byte, len(allKeys))
	for _, key := range allKeys {
		v, err := s.Get(ctx, key)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return Credentials{}, fmt.Errorf("read %s: %w", key, err)
		}
		if len(v) == 0 {
			continue
		}
		raw[key] = v
	}
	switch len(raw) {
	case 0:
		return Credentials{}, ErrNotFound
	case len(allKeys):
	default:
		return Credentials{}, ErrIncomplete
	}

	var c Credentials
	c.Token = string(raw[KeyToken])
	if err := json.Unmarshal(raw[KeyUser], &c.User); err != nil {
		return Credentials{}, fmt.Errorf("%w: user: %v", ErrCorrupt, err)
	}
	if c.User.ID == "" {
		return Credentials{}, fmt.Errorf("%w: user has no id", ErrCorrupt)
	}
	role, err := model.ParseRole(string(raw[KeyRole]))
	if err != nil {
		return Credentials{}, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	c.Role = role
	return c, nil
}

// Clear deletes all three keys, attempting every delete even if one fails.
func Clear(ctx context.Context, s Store) error {
	var errs []error
	for _, key := range allKeys {
		if err := s.Delete(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("delete %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

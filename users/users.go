// Package users defines the credential lookup used by login and two read-only
// implementations: an in-memory directory loaded from JSON and a PostgreSQL
// reader in the postgres subpackage.
package users

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/MrEthical07/sessionguard/jwt"
	"github.com/go-playground/validator/v10"
)

// ErrNotFound is returned when no user has the requested login.
var ErrNotFound = errors.New("user not found")

// Record is the subset of a user account needed to authenticate.
type Record struct {
	UserID        string   `json:"user_id" validate:"required"`
	Login         string   `json:"login" validate:"required,max=100"`
	PasswordHash  string   `json:"password_hash" validate:"required"`
	Role          jwt.Role `json:"role" validate:"required,oneof=superuser admin user"`
	Subscriptions []string `json:"subscriptions" validate:"dive,required,max=50"`
	Active        bool     `json:"active"`
}

// Provider looks users up by login name.
type Provider interface {
	GetUserByLogin(ctx context.Context, login string) (Record, error)
}

// Static is an in-memory Provider. Logins are matched exactly.
type Static struct {
	mu    sync.RWMutex
	users map[string]Record
}

var validate = validator.New()

// NewStatic builds a directory from records, rejecting invalid or duplicate entries.
func NewStatic(records ...Record) (*Static, error) {
	s := &Static{users: make(map[string]Record, len(records))}
	for _, r := range records {
		if err := s.Put(r); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// LoadFile reads a JSON array of records from path.
func LoadFile(path string) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read users file: %w", err)
	}

	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse users file: %w", err)
	}
	return NewStatic(records...)
}

// Put adds or replaces a record after validating it.
func (s *Static) Put(r Record) error {
	r.Login = strings.TrimSpace(r.Login)
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("invalid user %q: %w", r.Login, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.users[r.Login]; ok && existing.UserID != r.UserID {
		return fmt.Errorf("duplicate login %q", r.Login)
	}
	s.users[r.Login] = r
	return nil
}

// GetUserByLogin implements Provider.
func (s *Static) GetUserByLogin(_ context.Context, login string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.users[login]
	if !ok {
		return Record{}, ErrNotFound
	}
	r.Subscriptions = append([]string(nil), r.Subscriptions...)
	return r, nil
}

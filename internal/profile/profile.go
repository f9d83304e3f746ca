// Package profile is the per-user profile, role and timeline configuration
// service. Every operation is a request against the key-value store made on
// behalf of the caller carried in the context; failures are returned to the
// caller and never retried.
package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/ivlev/trailer2video/internal/store"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidRole  = errors.New("invalid role")
)

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
	RoleGuest Role = "guest"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleUser, RoleGuest:
		return true
	}
	return false
}

type UserProfile struct {
	Name string `json:"name"`
}

type TimelineConfiguration struct {
	DefaultZoomLevel int64  `json:"defaultZoomLevel"`
	TimelineLayout   string `json:"timelineLayout"`
}

type callerKey struct{}

// WithCaller attaches the caller identity to ctx. An empty id is anonymous.
func WithCaller(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, callerKey{}, id)
}

func callerFrom(ctx context.Context) string {
	id, _ := ctx.Value(callerKey{}).(string)
	return id
}

type Service struct {
	kv store.KV
	mu sync.Mutex
}

// NewService seeds the given ids as admins when they have no role yet.
func NewService(kv store.KV, admins ...string) (*Service, error) {
	s := &Service{kv: kv}
	for _, id := range admins {
		if id == "" {
			continue
		}
		if _, err := s.storedRole(id); errors.Is(err, ErrNotFound) {
			if err := s.put(roleKey(id), RoleAdmin); err != nil {
				return nil, err
			}
		} else if err != nil {
			return nil, err
		}
	}
	return s, nil
}

func profileKey(id string) string { return "profile." + id }
func roleKey(id string) string    { return "role." + id }
func configKey(id string) string  { return "config." + id }

func (s *Service) GetCallerUserProfile(ctx context.Context) (*UserProfile, error) {
	caller := callerFrom(ctx)
	if caller == "" {
		return nil, ErrUnauthorized
	}
	var p UserProfile
	if err := s.get(profileKey(caller), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Service) SaveCallerUserProfile(ctx context.Context, p UserProfile) error {
	caller, err := s.requireRole(ctx, RoleUser)
	if err != nil {
		return err
	}
	return s.put(profileKey(caller), p)
}

// GetUserProfile is allowed for the user themself and for admins.
func (s *Service) GetUserProfile(ctx context.Context, user string) (*UserProfile, error) {
	caller := callerFrom(ctx)
	if caller != user {
		if _, err := s.requireRole(ctx, RoleAdmin); err != nil {
			return nil, err
		}
	}
	var p UserProfile
	if err := s.get(profileKey(user), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Service) GetUserConfiguration(ctx context.Context) (*TimelineConfiguration, error) {
	caller := callerFrom(ctx)
	if caller == "" {
		return nil, ErrUnauthorized
	}
	var c TimelineConfiguration
	if err := s.get(configKey(caller), &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Service) SaveUserConfiguration(ctx context.Context, c TimelineConfiguration) error {
	caller, err := s.requireRole(ctx, RoleUser)
	if err != nil {
		return err
	}
	return s.put(configKey(caller), c)
}

// GetCallerUserRole is guest for anonymous callers and user for
// authenticated callers without an assigned role.
func (s *Service) GetCallerUserRole(ctx context.Context) (Role, error) {
	caller := callerFrom(ctx)
	if caller == "" {
		return RoleGuest, nil
	}
	role, err := s.storedRole(caller)
	if errors.Is(err, ErrNotFound) {
		return RoleUser, nil
	}
	return role, err
}

func (s *Service) IsCallerAdmin(ctx context.Context) (bool, error) {
	role, err := s.GetCallerUserRole(ctx)
	if err != nil {
		return false, err
	}
	return role == RoleAdmin, nil
}

// AssignCallerUserRole sets the role of user. Only admins may assign roles.
func (s *Service) AssignCallerUserRole(ctx context.Context, user string, role Role) error {
	if !role.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	if user == "" {
		return fmt.Errorf("%w: empty user", ErrInvalidRole)
	}
	if _, err := s.requireRole(ctx, RoleAdmin); err != nil {
		return err
	}
	return s.put(roleKey(user), role)
}

// requireRole returns the caller when their role is at least min.
func (s *Service) requireRole(ctx context.Context, min Role) (string, error) {
	role, err := s.GetCallerUserRole(ctx)
	if err != nil {
		return "", err
	}
	if rank(role) < rank(min) {
		return "", fmt.Errorf("%w: %s role required", ErrUnauthorized, min)
	}
	return callerFrom(ctx), nil
}

func rank(r Role) int {
	switch r {
	case RoleAdmin:
		return 2
	case RoleUser:
		return 1
	}
	return 0
}

func (s *Service) storedRole(id string) (Role, error) {
	var r Role
	if err := s.get(roleKey(id), &r); err != nil {
		return "", err
	}
	return r, nil
}

func (s *Service) get(key string, v any) error {
	s.mu.Lock()
	raw, ok, err := s.kv.Get(key)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", key, err)
	}
	if !ok {
		return ErrNotFound
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", key, err)
	}
	return nil
}

func (s *Service) put(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.kv.Set(key, string(data)); err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	return nil
}

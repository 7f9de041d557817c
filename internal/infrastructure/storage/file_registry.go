package storage

import (
	"context"

	"DailyBriefing/internal/domain"
	"DailyBriefing/internal/ports"
)

// FileRegistry serves the users declared in the configuration file.
type FileRegistry struct {
	users []domain.User
}

var _ ports.UserRegistry = (*FileRegistry)(nil)

// NewFileRegistry keeps a copy of the declared users.
func NewFileRegistry(users []domain.User) *FileRegistry {
	return &FileRegistry{users: append([]domain.User(nil), users...)}
}

// ActiveUsers returns the active users in declaration order with only
// their active sources.
func (r *FileRegistry) ActiveUsers(context.Context) ([]domain.User, error) {
	var out []domain.User
	for _, u := range r.users {
		if !u.Active {
			continue
		}
		u.Sources = u.ActiveSources()
		out = append(out, u)
	}
	return out, nil
}

package domain

import "strings"

// User is a newspaper subscriber. The pipeline never modifies users.
type User struct {
	ID          int64
	Name        string
	Email       string
	KindleEmail string
	Active      bool
	Topics      []string
	Sources     []Source
}

// FirstName returns the first given name, used in document filenames.
func (u User) FirstName() string {
	fields := strings.Fields(u.Name)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// ActiveSources filters out deactivated feeds, keeping registry order.
func (u User) ActiveSources() []Source {
	out := make([]Source, 0, len(u.Sources))
	for _, s := range u.Sources {
		if s.Active {
			out = append(out, s)
		}
	}
	return out
}

// Source is an RSS or Atom feed owned by exactly one user.
type Source struct {
	ID     int64
	UserID int64
	Name   string
	URL    string
	Active bool
}

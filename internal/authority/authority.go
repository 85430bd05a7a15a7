// internal/authority/authority.go
package authority

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// DefaultRoles lists roles from least to most authority.
var DefaultRoles = []string{"Sales Rep", "Sales Manager", "Sales Director", "Administrator"}

// Actor is the acting user as reported by the identity collaborator.
type Actor struct {
	UserID   uuid.UUID
	Username string
	TenantID string
	Roles    []string
}

func (a Actor) HasRole(role string) bool {
	want := normalize(role)
	for _, r := range a.Roles {
		if normalize(r) == want {
			return true
		}
	}
	return false
}

// Hierarchy is an ordered role ladder. It is the single predicate used by both
// the approver check and the lock bypass.
type Hierarchy struct {
	names []string
	ranks map[string]int
}

func NewHierarchy(roles []string) (*Hierarchy, error) {
	if len(roles) == 0 {
		return nil, fmt.Errorf("role hierarchy must not be empty")
	}

	h := &Hierarchy{ranks: make(map[string]int, len(roles))}
	for i, role := range roles {
		key := normalize(role)
		if key == "" {
			return nil, fmt.Errorf("role at position %d is blank", i)
		}
		if _, dup := h.ranks[key]; dup {
			return nil, fmt.Errorf("role %q appears more than once", role)
		}
		h.ranks[key] = i
		h.names = append(h.names, strings.TrimSpace(role))
	}
	return h, nil
}

// MustHierarchy is NewHierarchy for static role lists.
func MustHierarchy(roles []string) *Hierarchy {
	h, err := NewHierarchy(roles)
	if err != nil {
		panic(err)
	}
	return h
}

func (h *Hierarchy) Roles() []string {
	out := make([]string, len(h.names))
	copy(out, h.names)
	return out
}

func (h *Hierarchy) TopRole() string {
	return h.names[len(h.names)-1]
}

// Level returns the rank of role, or false when the role is not on the ladder.
func (h *Hierarchy) Level(role string) (int, bool) {
	rank, ok := h.ranks[normalize(role)]
	return rank, ok
}

// HighestLevel is the best rank held by the actor, -1 if none of its roles are ranked.
func (h *Hierarchy) HighestLevel(actor Actor) int {
	best := -1
	for _, role := range actor.Roles {
		if rank, ok := h.Level(role); ok && rank > best {
			best = rank
		}
	}
	return best
}

func (h *Hierarchy) IsTop(actor Actor) bool {
	return h.HighestLevel(actor) == len(h.names)-1
}

// Satisfies reports whether actor holds required or an authority level at or
// above it. Unranked roles are satisfied by an exact match or the top level only.
func (h *Hierarchy) Satisfies(actor Actor, required string) bool {
	if actor.HasRole(required) {
		return true
	}
	if rank, ok := h.Level(required); ok {
		return h.HighestLevel(actor) >= rank
	}
	return h.IsTop(actor)
}

func normalize(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}

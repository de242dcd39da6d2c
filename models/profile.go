package models

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Profile edits are value-returning: each helper copies the receiver's slices
// and returns a new Profile, leaving the original untouched. The caller
// persists the returned value with a full document replace, so a half-applied
// edit can never be observed.

// ErrLastChild is returned when an edit would remove a profile's only child.
var ErrLastChild = errors.New("a profile must keep at least one child")

// WithChild returns a copy of the profile with a new child appended.
func (p Profile) WithChild(name string) (Profile, Child) {
	child := Child{ID: uuid.NewString(), Name: name}
	next := p
	next.Children = append(append([]Child{}, p.Children...), child)
	return next, child
}

// WithChildRenamed returns a copy of the profile with the named child's
// display name replaced.
func (p Profile) WithChildRenamed(childID, name string) (Profile, error) {
	next := p
	next.Children = append([]Child{}, p.Children...)
	for i := range next.Children {
		if next.Children[i].ID == childID {
			next.Children[i].Name = name
			return next, nil
		}
	}
	return Profile{}, fmt.Errorf("no child with id %s", childID)
}

// WithChildRemoved returns a copy of the profile without the named child.
// The last remaining child cannot be removed.
func (p Profile) WithChildRemoved(childID string) (Profile, error) {
	if len(p.Children) <= 1 {
		return Profile{}, ErrLastChild
	}
	next := p
	next.Children = make([]Child, 0, len(p.Children)-1)
	found := false
	for _, c := range p.Children {
		if c.ID == childID {
			found = true
			continue
		}
		next.Children = append(next.Children, c)
	}
	if !found {
		return Profile{}, fmt.Errorf("no child with id %s", childID)
	}
	return next, nil
}

// WithBehavior returns a copy of the profile with a new enabled behavior
// appended to the catalog.
func (p Profile) WithBehavior(label string) (Profile, Behavior) {
	behavior := Behavior{ID: uuid.NewString(), Label: label, Enabled: true}
	next := p
	next.Behaviors = append(append([]Behavior{}, p.Behaviors...), behavior)
	return next, behavior
}

// WithBehaviorEnabled returns a copy of the profile with the named behavior's
// enabled flag set. Disabling keeps the behavior and its history.
func (p Profile) WithBehaviorEnabled(behaviorID string, enabled bool) (Profile, error) {
	next := p
	next.Behaviors = append([]Behavior{}, p.Behaviors...)
	for i := range next.Behaviors {
		if next.Behaviors[i].ID == behaviorID {
			next.Behaviors[i].Enabled = enabled
			return next, nil
		}
	}
	return Profile{}, fmt.Errorf("no behavior with id %s", behaviorID)
}

// EnabledBehaviors returns the catalog entries currently enabled for scoring,
// in catalog order.
func (p Profile) EnabledBehaviors() []Behavior {
	var enabled []Behavior
	for _, b := range p.Behaviors {
		if b.Enabled {
			enabled = append(enabled, b)
		}
	}
	return enabled
}

// ChildByID looks a child up by its opaque identifier.
func (p Profile) ChildByID(childID string) (Child, bool) {
	for _, c := range p.Children {
		if c.ID == childID {
			return c, true
		}
	}
	return Child{}, false
}

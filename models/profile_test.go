package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testProfile() Profile {
	return Profile{
		Name: "Hill family",
		Children: []Child{
			{ID: "c1", Name: "Alice"},
			{ID: "c2", Name: "Bob"},
		},
		Behaviors: []Behavior{
			{ID: "b1", Label: "Completed chores", Enabled: true},
			{ID: "b2", Label: "Kind words", Enabled: false},
		},
	}
}

func TestWithChild(t *testing.T) {
	p := testProfile()
	next, child := p.WithChild("Cara")

	assert.NotEmpty(t, child.ID)
	assert.Equal(t, "Cara", child.Name)
	assert.Len(t, next.Children, 3)
	// The receiver is untouched.
	assert.Len(t, p.Children, 2)
}

func TestWithChildRenamed(t *testing.T) {
	p := testProfile()
	next, err := p.WithChildRenamed("c2", "Robert")
	assert.NoError(t, err)
	assert.Equal(t, "Robert", next.Children[1].Name)
	assert.Equal(t, "Bob", p.Children[1].Name)

	_, err = p.WithChildRenamed("missing", "X")
	assert.Error(t, err)
}

func TestWithChildRemoved(t *testing.T) {
	p := testProfile()
	next, err := p.WithChildRemoved("c1")
	assert.NoError(t, err)
	assert.Len(t, next.Children, 1)
	assert.Equal(t, "c2", next.Children[0].ID)
	assert.Len(t, p.Children, 2)

	_, err = p.WithChildRemoved("missing")
	assert.Error(t, err)

	// The last child can never be removed.
	_, err = next.WithChildRemoved("c2")
	assert.ErrorIs(t, err, ErrLastChild)
}

func TestWithBehavior(t *testing.T) {
	p := testProfile()
	next, behavior := p.WithBehavior("Homework done")
	assert.True(t, behavior.Enabled)
	assert.Len(t, next.Behaviors, 3)
	assert.Len(t, p.Behaviors, 2)
}

func TestWithBehaviorEnabled(t *testing.T) {
	p := testProfile()
	next, err := p.WithBehaviorEnabled("b1", false)
	assert.NoError(t, err)
	assert.False(t, next.Behaviors[0].Enabled)
	assert.True(t, p.Behaviors[0].Enabled)

	_, err = p.WithBehaviorEnabled("missing", true)
	assert.Error(t, err)
}

func TestEnabledBehaviors(t *testing.T) {
	p := testProfile()
	enabled := p.EnabledBehaviors()
	assert.Len(t, enabled, 1)
	assert.Equal(t, "b1", enabled[0].ID)
}

func TestChildByID(t *testing.T) {
	p := testProfile()
	child, ok := p.ChildByID("c2")
	assert.True(t, ok)
	assert.Equal(t, "Bob", child.Name)

	_, ok = p.ChildByID("missing")
	assert.False(t, ok)
}

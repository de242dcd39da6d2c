package models

import (
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Account is a parent login. One account owns one profile.
type Account struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Username     string             `bson:"username" json:"username"`
	PasswordHash string             `bson:"password_hash" json:"password_hash"`
	Email        string             `bson:"email" json:"email"`
}

// Child is a tracked subject inside a profile. The ID is an opaque string
// unique within the profile.
type Child struct {
	ID   string `bson:"id" json:"id"`
	Name string `bson:"name" json:"name"`
}

// Behavior is a named, toggleable dimension being scored. Disabled behaviors
// are hidden from the scoring surface but historical points recorded against
// them still count.
type Behavior struct {
	ID      string `bson:"id" json:"id"`
	Label   string `bson:"label" json:"label"`
	Enabled bool   `bson:"enabled" json:"enabled"`
}

// Profile is the single family document: children, behavior catalog, and
// reporting settings. WeekStartDay uses time.Weekday numbering (0 = Sunday).
type Profile struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	AccountID    primitive.ObjectID `bson:"account_id" json:"account_id"`
	Name         string             `bson:"name" json:"name"`
	Children     []Child            `bson:"children" json:"children"`
	Behaviors    []Behavior         `bson:"behaviors" json:"behaviors"`
	WeekStartDay int                `bson:"week_start_day" json:"week_start_day"`
}

// DayRecord holds the point values one child earned on one calendar date.
// Identity is the composite (profile_id, child_id, date); a unique compound
// index guarantees at most one record per pair. Date is a plain YYYY-MM-DD
// string, so lexicographic order is chronological order. Points maps behavior
// ID to a value in {-1, 0, +1}.
type DayRecord struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ProfileID primitive.ObjectID `bson:"profile_id" json:"profile_id"`
	ChildID   string             `bson:"child_id" json:"child_id"`
	Date      string             `bson:"date" json:"date"`
	Points    map[string]int     `bson:"points" json:"points"`
}

// Snapshot is one complete, self-consistent view of a profile's day records,
// delivered by the storage subscription whenever any record changes. Reports
// are always derived from exactly one snapshot; the ID lets consumers tell
// snapshots apart and drop superseded ones.
type Snapshot struct {
	ID        uuid.UUID          `json:"id"`
	ProfileID primitive.ObjectID `json:"profile_id"`
	Records   []DayRecord        `json:"records"`
	At        time.Time          `json:"at"`
}

package model

import "time"

// RefKind identifies which of a user's three reference sequences an
// operation targets.
type RefKind string

const (
	RefSkill   RefKind = "skill"
	RefProject RefKind = "project"
	RefEvent   RefKind = "event"
)

// Valid reports whether k is one of the three known kinds.
func (k RefKind) Valid() bool {
	return k == RefSkill || k == RefProject || k == RefEvent
}

// Entity is a Skill, Project or Event record. Users reference entities by
// id; beyond existing and carrying a display name, their internal shape is
// not this core's concern.
type Entity struct {
	ID        string    `json:"id"`
	Kind      RefKind   `json:"kind"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

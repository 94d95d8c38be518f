// Package model defines the data structures used throughout the application.
package model

import "time"

// User represents a registered community member and their contribution
// counters. The three reference slices hold ids of Skill/Project/Event
// records in the order they were attached; resolution happens explicitly
// through the repository, never implicitly at read time.
//
// Password holds the bcrypt hash, never the plaintext. The json:"-" tag
// keeps it out of every API response.
//
// LeaderboardRank is derived: it mirrors the last computed board and is
// rewritten wholesale on every recomputation. Zero means "not ranked yet".
//
// Version is the optimistic concurrency token for scalar updates. It is
// bumped by the store on every successful scalar write; a write carrying a
// stale version is rejected rather than allowed to clobber a concurrent one.
type User struct {
	ID               string    `json:"id"`
	Username         string    `json:"username"`
	Email            string    `json:"email"`
	Password         string    `json:"-"`
	FullName         string    `json:"fullName,omitempty"`
	Bio              string    `json:"bio,omitempty"`
	Location         string    `json:"location,omitempty"`
	GitContributions int       `json:"gitContributions"`
	HoursWorked      float64   `json:"hoursWorked"`
	Skills           []string  `json:"skills"`
	Projects         []string  `json:"projects"`
	EventsAttended   []string  `json:"eventsAttended"`
	LeaderboardRank  int       `json:"leaderboardRank"`
	Version          int64     `json:"-"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// Refs returns the reference sequence for the given kind.
func (u *User) Refs(kind RefKind) []string {
	switch kind {
	case RefSkill:
		return u.Skills
	case RefProject:
		return u.Projects
	case RefEvent:
		return u.EventsAttended
	}
	return nil
}

// Breadth is the count of distinct referenced entities across the three kinds.
func (u *User) Breadth() int {
	return len(u.Skills) + len(u.Projects) + len(u.EventsAttended)
}

// Package model defines the core memory data types.
package model

import "time"

// MemoryType is the category a memory belongs to. Keys are unique per
// (user, type) among active memories.
type MemoryType string

const (
	TypePreference     MemoryType = "preference"
	TypeFact           MemoryType = "fact"
	TypeEntity         MemoryType = "entity"
	TypeCommitment     MemoryType = "commitment"
	TypeInstruction    MemoryType = "instruction"
	TypeConstraint     MemoryType = "constraint"
	TypeHabit          MemoryType = "habit"
	TypeOpinion        MemoryType = "opinion"
	TypeTemporaryState MemoryType = "temporary_state"
	TypeGoal           MemoryType = "goal"
	TypeTest           MemoryType = "test"
)

// ValidTypes are the allowed memory types.
var ValidTypes = map[MemoryType]bool{
	TypePreference:     true,
	TypeFact:           true,
	TypeEntity:         true,
	TypeCommitment:     true,
	TypeInstruction:    true,
	TypeConstraint:     true,
	TypeHabit:          true,
	TypeOpinion:        true,
	TypeTemporaryState: true,
	TypeGoal:           true,
	TypeTest:           true,
}

// Valid reports whether t is one of the allowed memory types.
func (t MemoryType) Valid() bool {
	return ValidTypes[t]
}

// HighImportance is the importance score at or above which a memory counts
// as high importance in statistics.
const HighImportance = 0.8

// Memory represents a stored memory record.
type Memory struct {
	ID                   string     `json:"id"`
	UserID               string     `json:"user_id"`
	Type                 MemoryType `json:"type"`
	Key                  string     `json:"key"`
	Value                string     `json:"value"`
	Context              string     `json:"context,omitempty"`
	Confidence           float64    `json:"confidence"`
	Importance           float64    `json:"importance"`
	SourceConversationID string     `json:"source_conversation_id,omitempty"`
	SourceTurn           int        `json:"source_turn"`
	IsActive             bool       `json:"is_active"`
	AccessCount          int        `json:"access_count"`
	LastAccessedTurn     *int       `json:"last_accessed_turn,omitempty"`
	ExpiresAt            *time.Time `json:"expires_at,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// Expired reports whether the memory has an expiry at or before now.
func (m Memory) Expired(now time.Time) bool {
	return m.ExpiresAt != nil && !m.ExpiresAt.After(now)
}

// HoursSince returns the age of the memory in fractional hours at now.
func (m Memory) HoursSince(now time.Time) float64 {
	return now.Sub(m.CreatedAt).Hours()
}

// ValidScore reports whether v lies within [0, 1].
func ValidScore(v float64) bool {
	return v >= 0 && v <= 1
}

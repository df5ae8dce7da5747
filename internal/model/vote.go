package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Vote is one voter's current state toward one votable target.
// A row exists only while the state differs from (NO_VOTE, unshared);
// returning to the default state deletes the row instead of zeroing it.
type Vote struct {
	ID         string    `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	VoterID    string    `gorm:"type:uuid;not null;index:idx_voter_target,unique" json:"voter_id"`
	TargetType string    `gorm:"type:varchar(20);not null;index:idx_voter_target,unique" json:"target_type"` // topic, post
	TargetID   string    `gorm:"type:uuid;not null;index:idx_voter_target,unique" json:"target_id"`
	VoteType   string    `gorm:"type:varchar(10);not null;default:'NO_VOTE'" json:"vote_type"`
	IsShared   bool      `gorm:"not null;default:false" json:"is_shared"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`

	// Relationships
	Voter User `gorm:"foreignKey:VoterID;references:ID" json:"voter,omitempty"`
}

// BeforeCreate hook to generate UUID
func (v *Vote) BeforeCreate(tx *gorm.DB) error {
	if v.ID == "" {
		v.ID = uuid.New().String()
	}
	return nil
}

// TableName specifies the table name
func (Vote) TableName() string {
	return "votes"
}

// Constants for target types
const (
	TargetTypeTopic = "topic"
	TargetTypePost  = "post"
)

// Constants for vote types
const (
	VoteTypeLike    = "LIKE"
	VoteTypeDislike = "DISLIKE"
	VoteTypeNone    = "NO_VOTE"
)

// IsDefault reports whether the vote carries no state worth persisting.
func (v *Vote) IsDefault() bool {
	return v.VoteType == VoteTypeNone && !v.IsShared
}

// IsValidVoteType validates a vote type string
func IsValidVoteType(voteType string) bool {
	switch voteType {
	case VoteTypeLike, VoteTypeDislike, VoteTypeNone:
		return true
	}
	return false
}

// TargetRef identifies one votable target in a listing batch.
type TargetRef struct {
	Type string `json:"target_type"`
	ID   string `json:"target_id"`
}

// ViewerVote is the viewer-specific state attached to a target by bulk
// enrichment. The zero value is the "never voted" state.
type ViewerVote struct {
	VoteType string `json:"vote_type"`
	IsShared bool   `json:"is_shared"`
}

// Counters is a snapshot of a target's denormalized vote totals.
type Counters struct {
	Likes    int64 `json:"likes"`
	Dislikes int64 `json:"dislikes"`
	Shares   int64 `json:"shares"`
}

// CounterDelta is the signed change a single transition applies to a
// target's counters.
type CounterDelta struct {
	Likes    int64
	Dislikes int64
	Shares   int64
}

// IsZero reports whether the delta would change nothing.
func (d CounterDelta) IsZero() bool {
	return d.Likes == 0 && d.Dislikes == 0 && d.Shares == 0
}

// Add merges another delta into this one.
func (d CounterDelta) Add(other CounterDelta) CounterDelta {
	return CounterDelta{
		Likes:    d.Likes + other.Likes,
		Dislikes: d.Dislikes + other.Dislikes,
		Shares:   d.Shares + other.Shares,
	}
}
